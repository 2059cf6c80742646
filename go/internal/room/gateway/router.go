package gateway

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/atelier-live/atelier/go/internal/room"
	"github.com/atelier-live/atelier/go/internal/room/events"
)

// Router decodes client messages and dispatches them to the room engine. A
// rejected message produces a room:error reply to the offending connection;
// nothing else in the room is affected.
type Router struct {
	engine  *room.Registry
	manager *ConnectionManager
}

// NewRouter creates a router over the engine and connection manager.
func NewRouter(engine *room.Registry, manager *ConnectionManager) *Router {
	return &Router{engine: engine, manager: manager}
}

// HandleMessage implements MessageHandler.
func (rt *Router) HandleMessage(conn *Connection, data []byte) {
	var msg ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		rt.sendError(conn, room.CodeValidation, "malformed message")
		return
	}
	if msg.RoomID != "" && msg.RoomID != conn.RoomID {
		rt.sendError(conn, room.CodeValidation, "message addresses a different room")
		return
	}

	var err error
	switch msg.Type {
	case MsgJoin:
		err = rt.handleJoin(conn, msg.Data)
	case MsgSubmit:
		err = rt.handleSubmit(conn, msg.Data)
	case MsgStartVoting:
		err = rt.handleStartVoting(conn, msg.Data)
	case MsgVote:
		err = rt.handleVote(conn, msg.Data)
	case MsgResetType:
		err = rt.handleResetType(conn, msg.Data)
	case MsgForceResolve:
		err = rt.handleForceResolve(conn, msg.Data)
	case MsgFlowUpdate:
		err = rt.handleFlowUpdate(conn, msg.Data)
	case MsgFlowSync:
		err = rt.handleFlowSync(conn)
	case MsgReadyConfirm:
		err = rt.handleReady(conn, msg.Data, true)
	case MsgReadyRevoke:
		err = rt.handleReady(conn, msg.Data, false)
	case MsgStartSession:
		err = rt.handleStartSession(conn, msg.Data)
	default:
		rt.sendError(conn, room.CodeValidation, "unknown message type "+msg.Type)
		return
	}

	if err != nil {
		log.Debug().
			Err(err).
			Str("connection_id", conn.ID).
			Str("room_id", conn.RoomID).
			Str("message_type", msg.Type).
			Msg("message rejected")
		rt.sendError(conn, room.CodeOf(err), err.Error())
	}
}

func (rt *Router) handleJoin(conn *Connection, data []byte) error {
	var req JoinRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return badPayload(MsgJoin)
	}
	if req.UserID != "" && req.UserID != conn.UserID {
		return &room.Error{Code: room.CodeIdentity, Message: "join user id does not match connection identity"}
	}
	if _, err := rt.engine.Join(conn.RoomID, conn.UserID, req.UserName, conn.ID); err != nil {
		return err
	}
	rt.sendSnapshot(conn)
	return nil
}

func (rt *Router) handleSubmit(conn *Connection, data []byte) error {
	var req SubmitRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return badPayload(MsgSubmit)
	}
	content, order, err := room.NormalizeContent(req.Content)
	if err != nil {
		return err
	}
	author := conn.UserID
	if author == "" {
		author = conn.ID
	}
	_, err = rt.engine.Submit(conn.RoomID, room.SubmitRequest{
		Type:     room.ContributionType(req.Type),
		AuthorID: author,
		ID:       req.ID,
		Content:  content,
		Order:    order,
	})
	return err
}

func (rt *Router) handleStartVoting(conn *Connection, data []byte) error {
	var req StartVotingRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return badPayload(MsgStartVoting)
	}
	return rt.engine.StartVoting(conn.RoomID, room.ContributionType(req.Type), req.MaxSelections)
}

func (rt *Router) handleVote(conn *Connection, data []byte) error {
	var req VoteRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return badPayload(MsgVote)
	}
	return rt.engine.CastVote(conn.RoomID, room.ContributionType(req.Type), conn.UserID, req.OptionIDs)
}

func (rt *Router) handleResetType(conn *Connection, data []byte) error {
	var req ResetTypeRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return badPayload(MsgResetType)
	}
	return rt.engine.ResetType(conn.RoomID, room.ContributionType(req.Type))
}

func (rt *Router) handleForceResolve(conn *Connection, data []byte) error {
	var req ResetTypeRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return badPayload(MsgForceResolve)
	}
	return rt.engine.ForceResolve(conn.RoomID, room.ContributionType(req.Type), conn.UserID)
}

func (rt *Router) handleFlowUpdate(conn *Connection, data []byte) error {
	var req FlowUpdateRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return badPayload(MsgFlowUpdate)
	}
	_, err := rt.engine.UpdateFlow(conn.RoomID, req.Step, req.Payload, conn.UserID)
	return err
}

func (rt *Router) handleFlowSync(conn *Connection) error {
	record, ok, err := rt.engine.SyncFlow(conn.RoomID)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	rt.sendEvent(conn, events.EventFlow, events.FlowPayload{
		Step:      record.Step,
		Payload:   record.Payload,
		UpdatedAt: record.UpdatedAt,
		UpdatedBy: record.UpdatedBy,
	})
	return nil
}

func (rt *Router) handleReady(conn *Connection, data []byte, confirm bool) error {
	var req ReadyRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return badPayload(MsgReadyConfirm)
	}
	if confirm {
		return rt.engine.Confirm(conn.RoomID, req.Checkpoint, conn.UserID)
	}
	return rt.engine.Revoke(conn.RoomID, req.Checkpoint, conn.UserID)
}

func (rt *Router) handleStartSession(conn *Connection, data []byte) error {
	var req StartSessionRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return badPayload(MsgStartSession)
	}
	return rt.engine.HostStart(conn.RoomID, req.Checkpoint, conn.UserID, req.Path)
}

// sendSnapshot brings a (re)joined connection up to date: the member list,
// every non-empty contribution set, any in-flight or resolved voting round,
// readiness progress and the current flow record. Convergence for late
// joiners happens here rather than through a history log.
func (rt *Router) sendSnapshot(conn *Connection) {
	snap, err := rt.engine.GetSnapshot(conn.RoomID)
	if err != nil {
		return
	}

	members := make([]events.Member, 0, len(snap.Members))
	for _, m := range snap.Members {
		members = append(members, events.Member{UserID: m.UserID, UserName: m.UserName, IsHost: m.IsHost})
	}
	rt.sendEvent(conn, events.EventMembers, events.MembersPayload{Members: members})

	for ctype, list := range snap.Contributions {
		rt.sendEvent(conn, events.EventContributions, events.ContributionsPayload{
			RoomID:        snap.RoomID,
			Type:          string(ctype),
			Contributions: wireContributions(list),
		})
	}

	for ctype, sess := range snap.Voting {
		switch sess.Status {
		case room.VotingOpen:
			rt.sendEvent(conn, events.EventVotingStarted, events.VotingStartedPayload{
				RoomID:        snap.RoomID,
				Type:          string(ctype),
				MaxSelections: sess.MaxSelections,
				Contributions: wireContributions(sess.Options),
				StartedAt:     sess.StartedAt,
			})
			rt.sendEvent(conn, events.EventVoteProgress, events.VoteProgressPayload{
				RoomID:       snap.RoomID,
				Type:         string(ctype),
				TotalVotes:   sess.TotalVotes,
				TotalMembers: len(snap.Members),
			})
		case room.VotingTied:
			rt.sendEvent(conn, events.EventVotingTie, events.VotingTiePayload{
				RoomID:        snap.RoomID,
				Type:          string(ctype),
				Results:       wireResults(sess.Results),
				TiedOptionIDs: sess.TiedOptionIDs,
			})
		case room.VotingResults:
			payload := events.VotingCompletePayload{
				RoomID:  snap.RoomID,
				Type:    string(ctype),
				Results: wireResults(sess.Results),
			}
			if sess.MaxSelections == 1 {
				winner := wireResults(sess.Results[:1])[0]
				payload.Winner = &winner
			} else {
				payload.Winners = wireResults(sess.Results[:sess.MaxSelections])
			}
			rt.sendEvent(conn, events.EventVotingComplete, payload)
		}
	}

	for checkpoint, readyIDs := range snap.Readiness {
		rt.sendEvent(conn, events.EventReadyProgress, events.ReadyProgressPayload{
			RoomID:        snap.RoomID,
			Checkpoint:    checkpoint,
			ReadyUserIDs:  readyIDs,
			RequiredCount: snap.RequiredReady,
		})
	}

	if snap.Flow != nil {
		rt.sendEvent(conn, events.EventFlow, events.FlowPayload{
			Step:      snap.Flow.Step,
			Payload:   snap.Flow.Payload,
			UpdatedAt: snap.Flow.UpdatedAt,
			UpdatedBy: snap.Flow.UpdatedBy,
		})
	}
}

func (rt *Router) sendEvent(conn *Connection, eventType events.EventType, payload any) {
	event, err := events.New(conn.RoomID, eventType, payload)
	if err != nil {
		log.Error().Err(err).Str("event_type", string(eventType)).Msg("failed to build sync event")
		return
	}
	rt.manager.SendToConnection(conn, &event)
}

func (rt *Router) sendError(conn *Connection, code room.ErrorCode, message string) {
	rt.sendEvent(conn, events.EventError, events.ErrorPayload{
		Code:    string(code),
		Message: message,
	})
}

func badPayload(msgType string) error {
	return &room.Error{Code: room.CodeValidation, Message: "malformed " + msgType + " payload"}
}

func wireResults(results []room.Result) []events.OptionResult {
	out := make([]events.OptionResult, 0, len(results))
	for i := range results {
		out = append(out, events.OptionResult{
			OptionID:     results[i].Option.ID,
			Contribution: wireContribution(results[i].Option),
			Votes:        results[i].Votes,
		})
	}
	return out
}

func wireContribution(c room.Contribution) events.Contribution {
	return events.Contribution{
		ID:        c.ID,
		AuthorID:  c.AuthorID,
		Type:      string(c.Type),
		Kind:      c.Content.Kind,
		Text:      c.Content.Text,
		Metadata:  c.Content.Metadata,
		Order:     c.Order,
		CreatedAt: c.CreatedAt,
	}
}

func wireContributions(list []room.Contribution) []events.Contribution {
	out := make([]events.Contribution, 0, len(list))
	for _, c := range list {
		out = append(out, wireContribution(c))
	}
	return out
}
