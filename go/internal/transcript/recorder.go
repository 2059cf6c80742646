package transcript

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/atelier-live/atelier/go/clients/guestbook_client"
	"github.com/atelier-live/atelier/go/internal/room/events"
)

// Appender is what the recorder needs from the guestbook client.
type Appender interface {
	AppendTranscript(ctx context.Context, roomID string, entry guestbook_client.TranscriptEntry) error
}

// Recorder subscribes to room events and appends the durable ones to the
// room's transcript through the guestbook service. Best-effort: failures are
// logged and never reach the engine.
type Recorder struct {
	appender Appender
}

func NewRecorder(appender Appender) *Recorder {
	return &Recorder{appender: appender}
}

// recorded lists the event types worth keeping in a transcript. Progress and
// membership churn are transient and skipped.
var recorded = map[events.EventType]bool{
	events.EventVotingComplete: true,
	events.EventVotingTie:      true,
	events.EventFlow:           true,
	events.EventSessionStarted: true,
}

// HandleEvent implements the bus handler signature.
func (r *Recorder) HandleEvent(ctx context.Context, event events.RoomEvent) {
	if !recorded[event.Type] {
		return
	}

	// Events arriving over the broker are not trusted to be well formed.
	if _, err := events.ParsePayload(&event); err != nil {
		log.Warn().
			Err(err).
			Str("room_id", event.RoomID).
			Str("event_type", string(event.Type)).
			Msg("skipping transcript entry with malformed payload")
		return
	}

	entry := guestbook_client.TranscriptEntry{
		Kind:       string(event.Type),
		OccurredAt: event.Timestamp,
		Data:       event.Data,
	}
	if err := r.appender.AppendTranscript(ctx, event.RoomID, entry); err != nil {
		log.Error().
			Err(err).
			Str("room_id", event.RoomID).
			Str("event_type", string(event.Type)).
			Msg("failed to append transcript entry")
	}
}
