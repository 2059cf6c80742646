package room

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atelier-live/atelier/go/internal/room/events"
)

func TestSubmitValidation(t *testing.T) {
	g, _, _ := newTestRegistry(t)
	join(t, g, "R", "u1", "c1")

	_, err := g.Submit("R", SubmitRequest{Type: "poetry", AuthorID: "u1", Content: Content{Text: "x"}})
	require.Equal(t, CodeValidation, CodeOf(err))

	_, err = g.Submit("R", SubmitRequest{Type: InterviewQuestion, Content: Content{Text: "x"}})
	require.Equal(t, CodeIdentity, CodeOf(err))

	_, err = g.Submit("R", SubmitRequest{Type: InterviewQuestion, AuthorID: "u1"})
	require.Equal(t, CodeValidation, CodeOf(err))

	_, err = g.Submit("missing", SubmitRequest{Type: InterviewQuestion, AuthorID: "u1", Content: Content{Text: "x"}})
	require.Equal(t, CodeIdentity, CodeOf(err))
}

func TestResubmitReplacesPerAuthor(t *testing.T) {
	g, pub, _ := newTestRegistry(t)
	join(t, g, "R", "u1", "c1")

	first := submitText(t, g, "R", InterviewQuestion, "u1", "what slows you down?")
	second := submitText(t, g, "R", InterviewQuestion, "u1", "what slows you down most?")

	assert.Equal(t, first.ID, second.ID, "edit keeps the original id")
	assert.Equal(t, "what slows you down most?", second.Content.Text)

	list, err := g.List("R", InterviewQuestion)
	require.NoError(t, err)
	require.Len(t, list, 1, "one live contribution per author per type")

	var payload events.ContributionsPayload
	pub.last(t, events.EventContributions, &payload)
	require.Len(t, payload.Contributions, 1)
	assert.Equal(t, "what slows you down most?", payload.Contributions[0].Text)
}

func TestExplicitIDWinsOverAuthorKey(t *testing.T) {
	g, _, _ := newTestRegistry(t)
	join(t, g, "R", "u1", "c1")

	c, err := g.Submit("R", SubmitRequest{
		Type:     POVStatement,
		AuthorID: "u1",
		ID:       "client-id-1",
		Content:  Content{Kind: "statement", Text: "users need fewer steps"},
	})
	require.NoError(t, err)
	assert.Equal(t, "client-id-1", c.ID)

	// A retry with the same explicit id is an edit, not a duplicate.
	replaced, err := g.Submit("R", SubmitRequest{
		Type:     POVStatement,
		AuthorID: "u1",
		ID:       "client-id-1",
		Content:  Content{Kind: "statement", Text: "users need fewer handoffs"},
	})
	require.NoError(t, err)
	assert.Equal(t, "client-id-1", replaced.ID)

	list, err := g.List("R", POVStatement)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "users need fewer handoffs", list[0].Content.Text)
}

func TestHMWOrderedSlots(t *testing.T) {
	g, _, _ := newTestRegistry(t)
	join(t, g, "R", "u1", "c1")

	for i, text := range []string{"how might we simplify onboarding?", "how might we reduce waiting?", "how might we surface progress?"} {
		_, err := g.Submit("R", SubmitRequest{
			Type:     HMWQuestion,
			AuthorID: "u1",
			Content:  Content{Kind: "question", Text: text},
			Order:    i + 1,
		})
		require.NoError(t, err)
	}

	// Editing slot 2 replaces in place.
	_, err := g.Submit("R", SubmitRequest{
		Type:     HMWQuestion,
		AuthorID: "u1",
		Content:  Content{Kind: "question", Text: "how might we eliminate waiting?"},
		Order:    2,
	})
	require.NoError(t, err)

	list, err := g.List("R", HMWQuestion)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "how might we eliminate waiting?", list[1].Content.Text)
	assert.Equal(t, 2, list[1].Order)

	// A fourth distinct question exceeds the per-author cap.
	_, err = g.Submit("R", SubmitRequest{
		Type:     HMWQuestion,
		AuthorID: "u1",
		Content:  Content{Kind: "question", Text: "how might we add a fourth?"},
		Order:    4,
	})
	require.Error(t, err)
	require.Equal(t, CodeValidation, CodeOf(err))
}

func TestHMWOrderOutOfRangeRejected(t *testing.T) {
	g, _, _ := newTestRegistry(t)
	join(t, g, "R", "u1", "c1")

	_, err := g.Submit("R", SubmitRequest{
		Type:     HMWQuestion,
		AuthorID: "u1",
		Content:  Content{Kind: "question", Text: "how might we keep focus?"},
		Order:    1,
	})
	require.NoError(t, err)

	// Order addresses one of the three slots; it is not a free-form rank,
	// so 4 is invalid even while the author has capacity left.
	_, err = g.Submit("R", SubmitRequest{
		Type:     HMWQuestion,
		AuthorID: "u1",
		Content:  Content{Kind: "question", Text: "how might we skip ahead?"},
		Order:    4,
	})
	require.Error(t, err)
	require.Equal(t, CodeValidation, CodeOf(err))

	_, err = g.Submit("R", SubmitRequest{
		Type:     POVStatement,
		AuthorID: "u1",
		Content:  Content{Kind: "statement", Text: "users lose the thread"},
		Order:    -1,
	})
	require.Error(t, err)
	require.Equal(t, CodeValidation, CodeOf(err))

	list, err := g.List("R", HMWQuestion)
	require.NoError(t, err)
	require.Len(t, list, 1)
}

func TestHMWContentHashDedup(t *testing.T) {
	g, _, _ := newTestRegistry(t)
	join(t, g, "R", "u1", "c1")

	_, err := g.Submit("R", SubmitRequest{
		Type:     HMWQuestion,
		AuthorID: "u1",
		Content:  Content{Kind: "question", Text: "How might we  shorten the queue?"},
	})
	require.NoError(t, err)

	// Same text modulo case and whitespace maps to the same entry.
	_, err = g.Submit("R", SubmitRequest{
		Type:     HMWQuestion,
		AuthorID: "u1",
		Content:  Content{Kind: "question", Text: "how might we shorten the queue?"},
	})
	require.NoError(t, err)

	list, err := g.List("R", HMWQuestion)
	require.NoError(t, err)
	require.Len(t, list, 1)
}

func TestContributionsIsolatedPerAuthor(t *testing.T) {
	g, _, _ := newTestRegistry(t)
	join(t, g, "R", "u1", "c1")
	join(t, g, "R", "u2", "c2")

	submitText(t, g, "R", InterviewQuestion, "u1", "what do you do first each day?")
	submitText(t, g, "R", InterviewQuestion, "u2", "what do you do first each day?")

	list, err := g.List("R", InterviewQuestion)
	require.NoError(t, err)
	require.Len(t, list, 2, "identical text from different authors stays separate")
}

func TestResetTypeClearsEverything(t *testing.T) {
	g, pub, _ := newTestRegistry(t)
	join(t, g, "R", "u1", "c1")
	join(t, g, "R", "u2", "c2")

	submitText(t, g, "R", POVStatement, "u1", "alpha")
	submitText(t, g, "R", POVStatement, "u2", "beta")
	require.NoError(t, g.StartVoting("R", POVStatement, 1))
	require.NoError(t, g.Confirm("R", string(POVStatement), "u2"))

	require.NoError(t, g.ResetType("R", POVStatement))

	list, err := g.List("R", POVStatement)
	require.NoError(t, err)
	assert.Empty(t, list)

	snap, err := g.GetSnapshot("R")
	require.NoError(t, err)
	_, open := snap.Voting[POVStatement]
	assert.False(t, open, "reset discards the voting round")
	_, ready := snap.Readiness[string(POVStatement)]
	assert.False(t, ready, "reset discards the readiness checkpoint")

	var payload events.TypeResetPayload
	pub.last(t, events.EventTypeReset, &payload)
	assert.Equal(t, string(POVStatement), payload.Type)

	// Other types are untouched by a reset.
	submitText(t, g, "R", InterviewQuestion, "u1", "gamma")
	require.NoError(t, g.ResetType("R", POVStatement))
	list, err = g.List("R", InterviewQuestion)
	require.NoError(t, err)
	require.Len(t, list, 1)
}
