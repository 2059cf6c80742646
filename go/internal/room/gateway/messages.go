package gateway

import "encoding/json"

// ClientMessage is the envelope every client-to-server message rides in.
// Data carries the message-specific payload.
type ClientMessage struct {
	Type   string          `json:"type"`
	RoomID string          `json:"room_id,omitempty"`
	Data   json.RawMessage `json:"data,omitempty"`
}

// Client message types
const (
	MsgJoin         = "room:join"
	MsgSubmit       = "room:contribution:submit"
	MsgStartVoting  = "room:start_voting"
	MsgVote         = "room:vote"
	MsgResetType    = "room:reset_type"
	MsgForceResolve = "room:force_resolve"
	MsgFlowUpdate   = "room:flow:update"
	MsgFlowSync     = "room:flow:sync"
	MsgReadyConfirm = "room:ready:confirm"
	MsgReadyRevoke  = "room:ready:revoke"
	MsgStartSession = "room:start_session"
)

// JoinRequest is the payload of a room:join message. UserID must match the
// identity the connection was opened with.
type JoinRequest struct {
	UserID   string `json:"user_id"`
	UserName string `json:"user_name"`
}

// SubmitRequest is the payload of a room:contribution:submit message.
// Content accepts a bare string, {"question": ...}, {"statement": ...} or the
// canonical {kind, text, metadata} record; the engine normalizes it. The
// author is always derived server-side from the connection identity.
type SubmitRequest struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Content json.RawMessage `json:"content"`
}

// StartVotingRequest is the payload of a room:start_voting message.
type StartVotingRequest struct {
	Type          string `json:"type"`
	MaxSelections int    `json:"max_selections"`
}

// VoteRequest is the payload of a room:vote message.
type VoteRequest struct {
	Type      string   `json:"type"`
	OptionIDs []string `json:"option_ids"`
}

// ResetTypeRequest is the payload of room:reset_type and room:force_resolve.
type ResetTypeRequest struct {
	Type string `json:"type"`
}

// FlowUpdateRequest is the payload of a room:flow:update message.
type FlowUpdateRequest struct {
	Step    string          `json:"step"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// ReadyRequest is the payload of room:ready:confirm and room:ready:revoke.
type ReadyRequest struct {
	Checkpoint string `json:"checkpoint"`
}

// StartSessionRequest is the payload of a room:start_session message.
type StartSessionRequest struct {
	Checkpoint string `json:"checkpoint"`
	Path       string `json:"path"`
}
