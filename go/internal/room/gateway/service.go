package gateway

import (
	"context"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/atelier-live/atelier/go/internal/room"
	"github.com/atelier-live/atelier/go/internal/room/events"
)

// Service is the room gateway: it owns the WebSocket connection pools, the
// inbound message router and, when NATS is enabled, the JetStream consumer
// that feeds broadcasts.
type Service struct {
	engine            *room.Registry
	connectionManager *ConnectionManager
	router            *Router
	wsHandler         *WebSocketHandler
	eventConsumer     *EventConsumer // nil when the loopback bus is wired directly
}

// Config holds configuration for the room gateway service
type Config struct {
	ConnectionConfig ConnectionConfig
	JetStream        JetStreamConsumerConfig
	UseJetStream     bool
}

// DefaultConfig returns default configuration for the room gateway
func DefaultConfig() Config {
	return Config{
		ConnectionConfig: DefaultConnectionConfig(),
		JetStream:        DefaultJetStreamConsumerConfig(),
	}
}

// NewService creates the gateway over an engine. With UseJetStream set, a
// JetStream consumer delivers engine events; otherwise the caller is expected
// to subscribe HandleRoomEvent on the loopback bus.
func NewService(engine *room.Registry, config Config) (*Service, error) {
	connectionManager := NewConnectionManager(config.ConnectionConfig)

	s := &Service{
		engine:            engine,
		connectionManager: connectionManager,
		wsHandler:         NewWebSocketHandler(connectionManager),
	}
	s.router = NewRouter(engine, connectionManager)
	connectionManager.SetMessageHandler(s.router)
	connectionManager.SetDisconnectHandler(engine.Leave)

	if config.UseJetStream {
		consumer, err := NewEventConsumer(connectionManager, config.JetStream)
		if err != nil {
			return nil, fmt.Errorf("create event consumer: %w", err)
		}
		s.eventConsumer = consumer
	}

	return s, nil
}

// Start runs the gateway until ctx is cancelled.
func (s *Service) Start(ctx context.Context) error {
	log.Info().Msg("starting room gateway service")

	go s.connectionManager.Start(ctx)

	if s.eventConsumer != nil {
		go func() {
			if err := s.eventConsumer.Start(ctx); err != nil {
				log.Error().Err(err).Msg("event consumer failed")
			}
		}()
	}

	<-ctx.Done()

	log.Info().Msg("room gateway service shutting down")
	return s.Stop()
}

// Stop gracefully shuts down the gateway service
func (s *Service) Stop() error {
	if s.eventConsumer != nil {
		if err := s.eventConsumer.Stop(); err != nil {
			log.Error().Err(err).Msg("failed to stop event consumer")
		}
	}
	log.Info().Msg("room gateway service stopped")
	return nil
}

// HandleRoomEvent is the loopback-bus sink: it fans an engine event out to
// the room's connections without NATS in the path.
func (s *Service) HandleRoomEvent(ctx context.Context, event events.RoomEvent) {
	s.connectionManager.BroadcastToRoom(event.RoomID, &event)
}

// EventConsumer exposes the JetStream consumer for extra sinks. Nil in
// loopback mode.
func (s *Service) EventConsumer() *EventConsumer {
	return s.eventConsumer
}

// RegisterRoutes registers the gateway's HTTP routes.
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws", s.wsHandler.HandleRoomConnection)
	mux.HandleFunc("/rooms", s.HandleCreateRoom)
	mux.HandleFunc("/rooms/stats", s.HandleStats)
	log.Info().Msg("room gateway routes registered")
}
