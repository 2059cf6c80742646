package bus

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/atelier-live/atelier/go/internal/room/events"
)

// Handler consumes room events delivered by a bus.
type Handler func(ctx context.Context, event events.RoomEvent)

// Loopback is the in-process bus for single-node deployments and tests:
// events published by the engine are fanned out to subscribed handlers on a
// dedicated goroutine, preserving publish order.
type Loopback struct {
	mu       sync.RWMutex
	handlers []Handler
	ch       chan events.RoomEvent
}

// NewLoopback creates a loopback bus with a buffered delivery channel.
func NewLoopback() *Loopback {
	return &Loopback{
		ch: make(chan events.RoomEvent, 256),
	}
}

// Subscribe registers a handler for every subsequent event.
func (l *Loopback) Subscribe(h Handler) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.handlers = append(l.handlers, h)
}

// Publish enqueues an event without blocking the publisher. A full buffer
// drops the event; subscribers recover via sync requests.
func (l *Loopback) Publish(ctx context.Context, event events.RoomEvent) error {
	select {
	case l.ch <- event:
		return nil
	default:
		return fmt.Errorf("loopback buffer full, dropping %s for room %s", event.Type, event.RoomID)
	}
}

// Run dispatches queued events to handlers until ctx is cancelled.
func (l *Loopback) Run(ctx context.Context) {
	log.Info().Msg("loopback bus started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("loopback bus shutting down")
			return
		case event := <-l.ch:
			l.mu.RLock()
			handlers := append([]Handler(nil), l.handlers...)
			l.mu.RUnlock()
			for _, h := range handlers {
				h(ctx, event)
			}
		}
	}
}
