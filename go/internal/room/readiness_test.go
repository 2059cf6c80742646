package room

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atelier-live/atelier/go/internal/room/events"
)

func TestReadinessQuorumExcludesHost(t *testing.T) {
	g, pub, _ := newTestRegistry(t)
	join(t, g, "R", "host", "c0")
	join(t, g, "R", "u1", "c1")
	join(t, g, "R", "u2", "c2")

	// Host confirmation is accepted but never counted.
	require.NoError(t, g.Confirm("R", "warmup", "host"))
	ok, err := g.CanStart("R", "warmup")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, g.Confirm("R", "warmup", "u1"))
	ok, err = g.CanStart("R", "warmup")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, g.Confirm("R", "warmup", "u2"))
	ok, err = g.CanStart("R", "warmup")
	require.NoError(t, err)
	assert.True(t, ok)

	var payload events.ReadyProgressPayload
	pub.last(t, events.EventReadyProgress, &payload)
	assert.ElementsMatch(t, []string{"u1", "u2"}, payload.ReadyUserIDs)
	assert.Equal(t, 2, payload.RequiredCount)
}

func TestRevokeReopensGate(t *testing.T) {
	g, _, _ := newTestRegistry(t)
	join(t, g, "R", "host", "c0")
	join(t, g, "R", "u1", "c1")

	require.NoError(t, g.Confirm("R", "warmup", "u1"))
	ok, err := g.CanStart("R", "warmup")
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, g.Revoke("R", "warmup", "u1"))
	ok, err = g.CanStart("R", "warmup")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLeaverDropsFromQuorum(t *testing.T) {
	g, _, clock := newTestRegistry(t)
	join(t, g, "R", "host", "c0")
	join(t, g, "R", "u1", "c1")
	join(t, g, "R", "u2", "c2")

	require.NoError(t, g.Confirm("R", "warmup", "u1"))
	require.NoError(t, g.Confirm("R", "warmup", "u2"))

	g.Leave("R", "c2")
	clock.BlockUntil(1)
	clock.Advance(time.Minute)

	require.Eventually(t, func() bool {
		members, err := g.Members("R")
		require.NoError(t, err)
		return len(members) == 2
	}, time.Second, 10*time.Millisecond)

	// The stale confirmation from u2 no longer counts, and the quorum
	// shrank with the member list, so the gate still opens.
	ok, err := g.CanStart("R", "warmup")
	require.NoError(t, err)
	assert.True(t, ok)

	snap, err := g.GetSnapshot("R")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"u1"}, snap.Readiness["warmup"])
}

func TestHostStartGate(t *testing.T) {
	g, pub, _ := newTestRegistry(t)
	join(t, g, "R", "host", "c0")
	join(t, g, "R", "u1", "c1")
	join(t, g, "R", "u2", "c2")

	err := g.HostStart("R", "warmup", "u1", "guided")
	require.Equal(t, CodeConflict, CodeOf(err), "only the host starts the session")

	err = g.HostStart("R", "warmup", "host", "guided")
	require.Equal(t, CodeConflict, CodeOf(err), "gate is closed until all confirm")

	require.NoError(t, g.Confirm("R", "warmup", "u1"))
	require.NoError(t, g.Confirm("R", "warmup", "u2"))

	// The instant the last member confirms, the host may start.
	require.NoError(t, g.HostStart("R", "warmup", "host", "guided"))

	var payload events.SessionStartedPayload
	pub.last(t, events.EventSessionStarted, &payload)
	assert.Equal(t, "warmup", payload.Checkpoint)
	assert.Equal(t, "guided", payload.Path)

	// The checkpoint is consumed by the start.
	err = g.HostStart("R", "warmup", "host", "guided")
	require.Equal(t, CodeConflict, CodeOf(err))
}

func TestHostStartValidation(t *testing.T) {
	g, _, _ := newTestRegistry(t)
	join(t, g, "R", "host", "c0")

	err := g.HostStart("R", "", "host", "guided")
	require.Equal(t, CodeValidation, CodeOf(err))

	err = g.HostStart("R", "warmup", "ghost", "guided")
	require.Equal(t, CodeIdentity, CodeOf(err))

	err = g.Confirm("R", "", "host")
	require.Equal(t, CodeValidation, CodeOf(err))
}

func TestHostAloneCanStart(t *testing.T) {
	g, _, _ := newTestRegistry(t)
	join(t, g, "R", "host", "c0")

	// No non-host members means an already satisfied quorum.
	require.NoError(t, g.HostStart("R", "warmup", "host", "solo"))
}
