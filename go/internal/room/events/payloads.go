package events

import (
	"encoding/json"
	"time"
)

// Wire-shaped payload types shared between the room engine and the gateway.
// The engine converts its internal models into these before publishing so the
// gateway never imports engine internals.

// Member is the wire shape of a room member.
type Member struct {
	UserID   string `json:"user_id"`
	UserName string `json:"user_name"`
	IsHost   bool   `json:"is_host"`
}

// Contribution is the wire shape of a submitted contribution.
type Contribution struct {
	ID        string          `json:"id"`
	AuthorID  string          `json:"author_id"`
	Type      string          `json:"type"`
	Kind      string          `json:"kind"`
	Text      string          `json:"text"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
	Order     int             `json:"order,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// OptionResult is one option's tally in a voting round.
type OptionResult struct {
	OptionID     string       `json:"option_id"`
	Contribution Contribution `json:"contribution"`
	Votes        int          `json:"votes"`
}

// MembersPayload is the payload for a room:members event
type MembersPayload struct {
	Members []Member `json:"members"`
}

// ContributionsPayload is the payload for a room:contributions event
type ContributionsPayload struct {
	RoomID        string         `json:"room_id"`
	Type          string         `json:"type"`
	Contributions []Contribution `json:"contributions"`
}

// VotingStartedPayload is the payload for a room:voting_started event
type VotingStartedPayload struct {
	RoomID        string         `json:"room_id"`
	Type          string         `json:"type"`
	MaxSelections int            `json:"max_selections"`
	Contributions []Contribution `json:"contributions"`
	StartedAt     time.Time      `json:"started_at"`
}

// VoteProgressPayload is the payload for a room:vote_progress event
type VoteProgressPayload struct {
	RoomID       string `json:"room_id"`
	Type         string `json:"type"`
	TotalVotes   int    `json:"total_votes"`
	TotalMembers int    `json:"total_members"`
}

// VotingCompletePayload is the payload for a room:voting_complete event.
// Winner is set for single-select rounds, Winners for multi-select.
type VotingCompletePayload struct {
	RoomID  string         `json:"room_id"`
	Type    string         `json:"type"`
	Winner  *OptionResult  `json:"winner,omitempty"`
	Winners []OptionResult `json:"winners,omitempty"`
	Results []OptionResult `json:"results"`
}

// VotingTiePayload is the payload for a room:voting_tie event
type VotingTiePayload struct {
	RoomID        string         `json:"room_id"`
	Type          string         `json:"type"`
	Results       []OptionResult `json:"results"`
	TiedOptionIDs []string       `json:"tied_option_ids"`
}

// TypeResetPayload is the payload for a room:type_reset event
type TypeResetPayload struct {
	RoomID string `json:"room_id"`
	Type   string `json:"type"`
}

// FlowPayload is the payload for a room:flow event
type FlowPayload struct {
	Step      string          `json:"step"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	UpdatedAt time.Time       `json:"updated_at"`
	UpdatedBy string          `json:"updated_by,omitempty"`
}

// ReadyProgressPayload is the payload for a room:ready_progress event
type ReadyProgressPayload struct {
	RoomID        string   `json:"room_id"`
	Checkpoint    string   `json:"checkpoint"`
	ReadyUserIDs  []string `json:"ready_user_ids"`
	RequiredCount int      `json:"required_count"`
}

// SessionStartedPayload is the payload for a room:session_started event
type SessionStartedPayload struct {
	RoomID     string    `json:"room_id"`
	Checkpoint string    `json:"checkpoint"`
	Path       string    `json:"path"`
	StartedAt  time.Time `json:"started_at"`
}

// ErrorPayload is the payload for a room:error event, sent only to the
// connection whose message was rejected.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
