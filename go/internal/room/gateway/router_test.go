package gateway

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atelier-live/atelier/go/internal/room"
	"github.com/atelier-live/atelier/go/internal/room/events"
)

type nopPublisher struct{}

func (nopPublisher) Publish(ctx context.Context, event events.RoomEvent) error { return nil }

func newTestRouter(t *testing.T) (*room.Registry, *Router) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	engine := room.NewRegistry(ctx, nopPublisher{}, room.Config{})
	manager := NewConnectionManager(DefaultConnectionConfig())
	return engine, NewRouter(engine, manager)
}

// newTestConn builds a connection without a live socket. Replies land in the
// Send buffer where tests read them.
func newTestConn(roomID, userID string) *Connection {
	return &Connection{
		ID:     "conn-" + userID,
		UserID: userID,
		RoomID: roomID,
		Send:   make(chan []byte, 256),
		done:   make(chan struct{}),
	}
}

func frame(t *testing.T, msgType, roomID string, payload any) []byte {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	raw, err := json.Marshal(ClientMessage{Type: msgType, RoomID: roomID, Data: data})
	require.NoError(t, err)
	return raw
}

func readReply(t *testing.T, conn *Connection) events.RoomEvent {
	t.Helper()
	select {
	case data := <-conn.Send:
		var event events.RoomEvent
		require.NoError(t, json.Unmarshal(data, &event))
		return event
	case <-time.After(time.Second):
		t.Fatal("no reply on connection")
		return events.RoomEvent{}
	}
}

func drainReplies(t *testing.T, conn *Connection) []events.RoomEvent {
	t.Helper()
	var out []events.RoomEvent
	for {
		select {
		case data := <-conn.Send:
			var event events.RoomEvent
			require.NoError(t, json.Unmarshal(data, &event))
			out = append(out, event)
		default:
			return out
		}
	}
}

func requireErrorReply(t *testing.T, conn *Connection, code room.ErrorCode) {
	t.Helper()
	event := readReply(t, conn)
	require.Equal(t, events.EventError, event.Type)
	var payload events.ErrorPayload
	require.NoError(t, json.Unmarshal(event.Data, &payload))
	require.Equal(t, string(code), payload.Code)
}

func TestRouterRejectsMalformedMessage(t *testing.T) {
	_, router := newTestRouter(t)
	conn := newTestConn("R", "u1")

	router.HandleMessage(conn, []byte("{not json"))
	requireErrorReply(t, conn, room.CodeValidation)
}

func TestRouterRejectsRoomMismatch(t *testing.T) {
	_, router := newTestRouter(t)
	conn := newTestConn("R", "u1")

	router.HandleMessage(conn, frame(t, MsgJoin, "OTHER", JoinRequest{UserID: "u1"}))
	requireErrorReply(t, conn, room.CodeValidation)
}

func TestRouterRejectsUnknownType(t *testing.T) {
	_, router := newTestRouter(t)
	conn := newTestConn("R", "u1")

	router.HandleMessage(conn, frame(t, "room:telepathy", "R", struct{}{}))
	requireErrorReply(t, conn, room.CodeValidation)
}

func TestRouterJoinIdentityMismatch(t *testing.T) {
	_, router := newTestRouter(t)
	conn := newTestConn("R", "u1")

	router.HandleMessage(conn, frame(t, MsgJoin, "R", JoinRequest{UserID: "someone-else"}))
	requireErrorReply(t, conn, room.CodeIdentity)
}

func TestRouterJoinSendsSnapshot(t *testing.T) {
	engine, router := newTestRouter(t)

	// An existing member already shaped the room.
	_, err := engine.Join("R", "u1", "alice", "conn-u1")
	require.NoError(t, err)
	_, err = engine.Submit("R", room.SubmitRequest{
		Type:     room.InterviewQuestion,
		AuthorID: "u1",
		Content:  room.Content{Kind: "question", Text: "what slows you down?"},
	})
	require.NoError(t, err)
	_, err = engine.UpdateFlow("R", "interview", json.RawMessage(`{"scenario":"s1"}`), "u1")
	require.NoError(t, err)

	conn := newTestConn("R", "u2")
	router.HandleMessage(conn, frame(t, MsgJoin, "R", JoinRequest{UserID: "u2", UserName: "bob"}))

	replies := drainReplies(t, conn)
	require.NotEmpty(t, replies)

	assert.Equal(t, events.EventMembers, replies[0].Type, "member list arrives first")
	var members events.MembersPayload
	require.NoError(t, json.Unmarshal(replies[0].Data, &members))
	require.Len(t, members.Members, 2)

	byType := make(map[events.EventType]int)
	for _, event := range replies {
		byType[event.Type]++
	}
	assert.Equal(t, 1, byType[events.EventContributions])
	assert.Equal(t, 1, byType[events.EventFlow])

	assert.Equal(t, events.EventFlow, replies[len(replies)-1].Type, "flow record arrives last")
}

func TestRouterJoinSnapshotIncludesOpenRound(t *testing.T) {
	engine, router := newTestRouter(t)

	_, err := engine.Join("R", "u1", "alice", "conn-u1")
	require.NoError(t, err)
	a, err := engine.Submit("R", room.SubmitRequest{
		Type:     room.POVStatement,
		AuthorID: "u1",
		Content:  room.Content{Kind: "statement", Text: "alpha"},
	})
	require.NoError(t, err)
	require.NoError(t, engine.StartVoting("R", room.POVStatement, 1))
	require.NoError(t, engine.CastVote("R", room.POVStatement, "u1", []string{a.ID}))

	// u1's ballot closed the 1-member round; reopen with a second member in.
	conn := newTestConn("R", "u2")
	router.HandleMessage(conn, frame(t, MsgJoin, "R", JoinRequest{UserID: "u2"}))
	drainReplies(t, conn)

	require.NoError(t, engine.StartVoting("R", room.POVStatement, 1))

	late := newTestConn("R", "u3")
	router.HandleMessage(late, frame(t, MsgJoin, "R", JoinRequest{UserID: "u3"}))

	replies := drainReplies(t, late)
	byType := make(map[events.EventType]int)
	for _, event := range replies {
		byType[event.Type]++
	}
	assert.Equal(t, 1, byType[events.EventVotingStarted], "late joiner learns about the open round")
	assert.Equal(t, 1, byType[events.EventVoteProgress])
}

func TestRouterJoinSnapshotIncludesTie(t *testing.T) {
	engine, router := newTestRouter(t)

	_, err := engine.Join("R", "u1", "alice", "conn-u1")
	require.NoError(t, err)
	_, err = engine.Join("R", "u2", "bob", "conn-u2")
	require.NoError(t, err)
	a, err := engine.Submit("R", room.SubmitRequest{
		Type:     room.POVStatement,
		AuthorID: "u1",
		Content:  room.Content{Kind: "statement", Text: "alpha"},
	})
	require.NoError(t, err)
	b, err := engine.Submit("R", room.SubmitRequest{
		Type:     room.POVStatement,
		AuthorID: "u2",
		Content:  room.Content{Kind: "statement", Text: "beta"},
	})
	require.NoError(t, err)
	require.NoError(t, engine.StartVoting("R", room.POVStatement, 1))
	require.NoError(t, engine.CastVote("R", room.POVStatement, "u1", []string{a.ID}))
	require.NoError(t, engine.CastVote("R", room.POVStatement, "u2", []string{b.ID}))

	// u2 drops and reconnects while the round sits in the tie state.
	rejoin := newTestConn("R", "u2")
	router.HandleMessage(rejoin, frame(t, MsgJoin, "R", JoinRequest{UserID: "u2"}))

	replies := drainReplies(t, rejoin)
	var tie *events.VotingTiePayload
	for _, event := range replies {
		if event.Type == events.EventVotingTie {
			var payload events.VotingTiePayload
			require.NoError(t, json.Unmarshal(event.Data, &payload))
			tie = &payload
		}
	}
	require.NotNil(t, tie, "reconnect learns about the unresolved tie")
	assert.ElementsMatch(t, []string{a.ID, b.ID}, tie.TiedOptionIDs)
	assert.Len(t, tie.Results, 2)
}

func TestRouterJoinSnapshotIncludesResults(t *testing.T) {
	engine, router := newTestRouter(t)

	_, err := engine.Join("R", "u1", "alice", "conn-u1")
	require.NoError(t, err)
	a, err := engine.Submit("R", room.SubmitRequest{
		Type:     room.POVStatement,
		AuthorID: "u1",
		Content:  room.Content{Kind: "statement", Text: "alpha"},
	})
	require.NoError(t, err)
	require.NoError(t, engine.StartVoting("R", room.POVStatement, 1))
	require.NoError(t, engine.CastVote("R", room.POVStatement, "u1", []string{a.ID}))

	late := newTestConn("R", "u2")
	router.HandleMessage(late, frame(t, MsgJoin, "R", JoinRequest{UserID: "u2"}))

	replies := drainReplies(t, late)
	var complete *events.VotingCompletePayload
	for _, event := range replies {
		if event.Type == events.EventVotingComplete {
			var payload events.VotingCompletePayload
			require.NoError(t, json.Unmarshal(event.Data, &payload))
			complete = &payload
		}
	}
	require.NotNil(t, complete, "late joiner learns about the resolved round")
	require.NotNil(t, complete.Winner)
	assert.Equal(t, a.ID, complete.Winner.OptionID)
	assert.Equal(t, 1, complete.Winner.Votes)
}

func TestRouterSubmitNormalizesContent(t *testing.T) {
	engine, router := newTestRouter(t)
	conn := newTestConn("R", "u1")
	router.HandleMessage(conn, frame(t, MsgJoin, "R", JoinRequest{UserID: "u1"}))
	drainReplies(t, conn)

	router.HandleMessage(conn, frame(t, MsgSubmit, "R", SubmitRequest{
		Type:    string(room.HMWQuestion),
		Content: json.RawMessage(`{"question": "how might we shorten the queue?", "order": 2}`),
	}))
	require.Empty(t, drainReplies(t, conn), "accepted submit produces no direct reply")

	list, err := engine.List("R", room.HMWQuestion)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "u1", list[0].AuthorID, "author comes from the connection identity")
	assert.Equal(t, "question", list[0].Content.Kind)
	assert.Equal(t, 2, list[0].Order)
}

func TestRouterVoteOutsideRoundReportsConflict(t *testing.T) {
	_, router := newTestRouter(t)
	conn := newTestConn("R", "u1")
	router.HandleMessage(conn, frame(t, MsgJoin, "R", JoinRequest{UserID: "u1"}))
	drainReplies(t, conn)

	router.HandleMessage(conn, frame(t, MsgVote, "R", VoteRequest{
		Type:      string(room.POVStatement),
		OptionIDs: []string{"x"},
	}))
	requireErrorReply(t, conn, room.CodeConflict)
}

func TestRouterFlowSyncReply(t *testing.T) {
	engine, router := newTestRouter(t)
	conn := newTestConn("R", "u1")
	router.HandleMessage(conn, frame(t, MsgJoin, "R", JoinRequest{UserID: "u1"}))
	drainReplies(t, conn)

	// Sync before any update returns nothing.
	router.HandleMessage(conn, frame(t, MsgFlowSync, "R", struct{}{}))
	require.Empty(t, drainReplies(t, conn))

	_, err := engine.UpdateFlow("R", "pov", json.RawMessage(`{"scenario":"s2"}`), "u1")
	require.NoError(t, err)

	router.HandleMessage(conn, frame(t, MsgFlowSync, "R", struct{}{}))
	event := readReply(t, conn)
	require.Equal(t, events.EventFlow, event.Type)

	var payload events.FlowPayload
	require.NoError(t, json.Unmarshal(event.Data, &payload))
	assert.Equal(t, "pov", payload.Step)
}

func TestRouterReadyAndStartSession(t *testing.T) {
	_, router := newTestRouter(t)

	host := newTestConn("R", "host")
	router.HandleMessage(host, frame(t, MsgJoin, "R", JoinRequest{UserID: "host"}))
	drainReplies(t, host)

	guest := newTestConn("R", "u1")
	router.HandleMessage(guest, frame(t, MsgJoin, "R", JoinRequest{UserID: "u1"}))
	drainReplies(t, guest)

	router.HandleMessage(host, frame(t, MsgStartSession, "R", StartSessionRequest{Checkpoint: "warmup", Path: "guided"}))
	requireErrorReply(t, host, room.CodeConflict)

	router.HandleMessage(guest, frame(t, MsgReadyConfirm, "R", ReadyRequest{Checkpoint: "warmup"}))
	require.Empty(t, drainReplies(t, guest))

	router.HandleMessage(host, frame(t, MsgStartSession, "R", StartSessionRequest{Checkpoint: "warmup", Path: "guided"}))
	require.Empty(t, drainReplies(t, host), "start succeeds once the quorum is met")
}
