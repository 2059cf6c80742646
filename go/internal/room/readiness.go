package room

import (
	"sort"

	"github.com/rs/zerolog/log"

	"github.com/atelier-live/atelier/go/internal/room/events"
)

// Confirm marks a member ready at a checkpoint. Host confirmations are
// accepted but never counted: the quorum is over non-host members only.
func (g *Registry) Confirm(roomID, checkpoint, userID string) error {
	return g.toggleReadiness(roomID, checkpoint, userID, true)
}

// Revoke withdraws a member's confirmation.
func (g *Registry) Revoke(roomID, checkpoint, userID string) error {
	return g.toggleReadiness(roomID, checkpoint, userID, false)
}

func (g *Registry) toggleReadiness(roomID, checkpoint, userID string, confirmed bool) error {
	if checkpoint == "" {
		return validationf("checkpoint is required")
	}
	rm, err := g.get(roomID)
	if err != nil {
		return err
	}

	rm.mu.Lock()

	m, ok := rm.members[userID]
	if !ok {
		rm.mu.Unlock()
		return identityf("unknown member %q", userID)
	}

	rec := rm.readiness[checkpoint]
	if rec == nil {
		rec = &ReadinessRecord{Checkpoint: checkpoint, Confirmed: make(map[string]struct{})}
		rm.readiness[checkpoint] = rec
	}
	if !m.IsHost {
		if confirmed {
			rec.Confirmed[userID] = struct{}{}
		} else {
			delete(rec.Confirmed, userID)
		}
	}

	payload := events.ReadyProgressPayload{
		RoomID:        roomID,
		Checkpoint:    checkpoint,
		ReadyUserIDs:  rm.confirmedNonHost(rec),
		RequiredCount: rm.nonHostCount(),
	}
	rm.mu.Unlock()

	g.emit(roomID, events.EventReadyProgress, payload)
	return nil
}

// CanStart reports whether every current non-host member has confirmed the
// checkpoint. Confirmations from members who have since left do not count.
func (g *Registry) CanStart(roomID, checkpoint string) (bool, error) {
	rm, err := g.get(roomID)
	if err != nil {
		return false, err
	}
	rm.mu.Lock()
	defer rm.mu.Unlock()
	return rm.canStart(checkpoint), nil
}

// canStart checks the quorum against the live member list. Caller holds rm.mu.
func (rm *Room) canStart(checkpoint string) bool {
	required := rm.nonHostCount()
	rec := rm.readiness[checkpoint]
	if rec == nil {
		return required == 0
	}
	confirmed := 0
	for userID := range rec.Confirmed {
		if m, ok := rm.members[userID]; ok && !m.IsHost {
			confirmed++
		}
	}
	return confirmed >= required
}

// confirmedNonHost lists the checkpoint's confirmed user ids that are still
// live non-host members, sorted for stable output. Caller holds rm.mu.
func (rm *Room) confirmedNonHost(rec *ReadinessRecord) []string {
	out := make([]string, 0, len(rec.Confirmed))
	for userID := range rec.Confirmed {
		if m, ok := rm.members[userID]; ok && !m.IsHost {
			out = append(out, userID)
		}
	}
	sort.Strings(out)
	return out
}

// HostStart is the only action that moves the group out of a readiness
// checkpoint. It is accepted only from the host and only once every non-host
// member has confirmed, so a transition can never strand members mid-step.
// On success the checkpoint is cleared and the transition is broadcast.
func (g *Registry) HostStart(roomID, checkpoint, userID, path string) error {
	if checkpoint == "" {
		return validationf("checkpoint is required")
	}
	rm, err := g.get(roomID)
	if err != nil {
		return err
	}

	rm.mu.Lock()

	m, ok := rm.members[userID]
	if !ok {
		rm.mu.Unlock()
		return identityf("unknown member %q", userID)
	}
	if !m.IsHost {
		rm.mu.Unlock()
		return conflictf("only the host can start the session")
	}
	if !rm.canStart(checkpoint) {
		rm.mu.Unlock()
		return conflictf("waiting for all members to confirm %q", checkpoint)
	}

	delete(rm.readiness, checkpoint)
	startedAt := g.clock.Now()
	rm.mu.Unlock()

	log.Info().
		Str("room_id", roomID).
		Str("checkpoint", checkpoint).
		Str("path", path).
		Msg("session started by host")

	g.emit(roomID, events.EventSessionStarted, events.SessionStartedPayload{
		RoomID:     roomID,
		Checkpoint: checkpoint,
		Path:       path,
		StartedAt:  startedAt,
	})
	return nil
}
