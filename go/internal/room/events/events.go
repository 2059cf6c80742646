package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RoomEvent is the envelope every server-to-client message rides in.
type RoomEvent struct {
	ID        string          `json:"id"`        // Event UUID
	RoomID    string          `json:"room_id"`   // Room the event belongs to
	Type      EventType       `json:"type"`      // Event type
	Timestamp time.Time       `json:"timestamp"` // Event creation time
	Data      json.RawMessage `json:"data"`      // Event-specific payload
}

// EventType represents the type of room event
type EventType string

const (
	EventMembers        EventType = "room:members"
	EventContributions  EventType = "room:contributions"
	EventVotingStarted  EventType = "room:voting_started"
	EventVoteProgress   EventType = "room:vote_progress"
	EventVotingComplete EventType = "room:voting_complete"
	EventVotingTie      EventType = "room:voting_tie"
	EventTypeReset      EventType = "room:type_reset"
	EventFlow           EventType = "room:flow"
	EventReadyProgress  EventType = "room:ready_progress"
	EventSessionStarted EventType = "room:session_started"
	EventError          EventType = "room:error"
)

// New builds an event envelope around a payload struct.
func New(roomID string, eventType EventType, payload any) (RoomEvent, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return RoomEvent{}, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return RoomEvent{
		ID:        uuid.New().String(),
		RoomID:    roomID,
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}, nil
}

// ParsePayload decodes an event's data into the payload struct for its type.
func ParsePayload(event *RoomEvent) (any, error) {
	switch event.Type {
	case EventMembers:
		var payload MembersPayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case EventContributions:
		var payload ContributionsPayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case EventVotingStarted:
		var payload VotingStartedPayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case EventVoteProgress:
		var payload VoteProgressPayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case EventVotingComplete:
		var payload VotingCompletePayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case EventVotingTie:
		var payload VotingTiePayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case EventTypeReset:
		var payload TypeResetPayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case EventFlow:
		var payload FlowPayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case EventReadyProgress:
		var payload ReadyProgressPayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case EventSessionStarted:
		var payload SessionStartedPayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case EventError:
		var payload ErrorPayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	default:
		return nil, fmt.Errorf("unknown event type: %s", event.Type)
	}
}
