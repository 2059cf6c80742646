package main

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/atelier-live/atelier/go/clients/guestbook_client"
	"github.com/atelier-live/atelier/go/clients/scoring_client"
	"github.com/atelier-live/atelier/go/internal/room"
	"github.com/atelier-live/atelier/go/internal/room/bus"
	"github.com/atelier-live/atelier/go/internal/room/gateway"
	"github.com/atelier-live/atelier/go/internal/transcript"
)

// Services holds everything the server wires together.
type Services struct {
	Engine    *room.Registry
	Gateway   *gateway.Service
	Loopback  *bus.Loopback            // nil when NATS carries the events
	Publisher *bus.JetStreamPublisher  // nil in loopback mode
	Scoring   *scoring_client.ScoringClient
	Guestbook *guestbook_client.GuestbookClient
	Recorder  *transcript.Recorder
}

func setupServices(ctx context.Context, config *Config) (*Services, error) {
	services := &Services{}

	roomCfg := room.Config{
		LeaveGrace:   time.Duration(config.Room.LeaveGraceSec) * time.Second,
		EmptyRoomTTL: time.Duration(config.Room.EmptyRoomTTLSec) * time.Second,
	}

	gatewayCfg := gateway.DefaultConfig()
	gatewayCfg.UseJetStream = config.NATS.Enabled

	if config.NATS.Enabled {
		jsCfg := bus.DefaultJetStreamConfig()
		if config.NATS.URL != "" {
			jsCfg.URL = config.NATS.URL
		}
		if config.NATS.Stream != "" {
			jsCfg.StreamName = config.NATS.Stream
		}
		publisher, err := bus.NewJetStreamPublisher(ctx, jsCfg)
		if err != nil {
			return nil, fmt.Errorf("setup JetStream publisher: %w", err)
		}
		services.Publisher = publisher
		services.Engine = room.NewRegistry(ctx, publisher, roomCfg)

		gatewayCfg.JetStream.URL = jsCfg.URL
		gatewayCfg.JetStream.StreamName = jsCfg.StreamName
		if config.NATS.Consumer != "" {
			gatewayCfg.JetStream.ConsumerName = config.NATS.Consumer
		}
	} else {
		services.Loopback = bus.NewLoopback()
		services.Engine = room.NewRegistry(ctx, services.Loopback, roomCfg)
	}

	gw, err := gateway.NewService(services.Engine, gatewayCfg)
	if err != nil {
		return nil, fmt.Errorf("setup gateway: %w", err)
	}
	services.Gateway = gw

	if services.Loopback != nil {
		services.Loopback.Subscribe(gw.HandleRoomEvent)
	}

	if config.Clients.ScoringURL != "" {
		services.Scoring = scoring_client.NewScoringClient(
			config.Clients.ScoringURL,
			getEnv("SCORING_API_KEY", ""),
		)
	}

	if config.Clients.GuestbookURL != "" {
		services.Guestbook = guestbook_client.NewGuestbookClient(config.Clients.GuestbookURL)
		services.Recorder = transcript.NewRecorder(services.Guestbook)

		if services.Loopback != nil {
			services.Loopback.Subscribe(services.Recorder.HandleEvent)
		} else if consumer := gw.EventConsumer(); consumer != nil {
			consumer.SetEventSink(services.Recorder.HandleEvent)
		}
		log.Info().Str("url", config.Clients.GuestbookURL).Msg("transcript recording enabled")
	}

	return services, nil
}
