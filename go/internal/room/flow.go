package room

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/atelier-live/atelier/go/internal/room/events"
)

// UpdateFlow overwrites the room's flow record and broadcasts it. The record
// is replaced wholesale, never merged: the latest write wins. Re-sending the
// same step is a legal payload refresh; clients dedup transitions by step.
func (g *Registry) UpdateFlow(roomID, step string, payload json.RawMessage, userID string) (FlowRecord, error) {
	if step == "" {
		return FlowRecord{}, validationf("flow step is required")
	}
	rm, err := g.get(roomID)
	if err != nil {
		return FlowRecord{}, err
	}

	rm.mu.Lock()
	record := FlowRecord{
		Step:      step,
		Payload:   payload,
		UpdatedAt: g.clock.Now(),
		UpdatedBy: userID,
	}
	rm.flow = &record
	rm.mu.Unlock()

	log.Debug().
		Str("room_id", roomID).
		Str("step", step).
		Str("updated_by", userID).
		Msg("flow updated")

	g.emit(roomID, events.EventFlow, events.FlowPayload{
		Step:      record.Step,
		Payload:   record.Payload,
		UpdatedAt: record.UpdatedAt,
		UpdatedBy: record.UpdatedBy,
	})
	return record, nil
}

// SyncFlow returns the current flow record to a single requester. Used on
// connect and reconnect: a client that missed any number of broadcasts
// converges by asking once. The second return is false when no flow update
// has happened yet.
func (g *Registry) SyncFlow(roomID string) (FlowRecord, bool, error) {
	rm, err := g.get(roomID)
	if err != nil {
		return FlowRecord{}, false, err
	}
	rm.mu.Lock()
	defer rm.mu.Unlock()
	if rm.flow == nil {
		return FlowRecord{}, false, nil
	}
	return *rm.flow, true, nil
}
