package guestbook_client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpsertGuest(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, GuestsEndpoint, r.URL.Path)

		var guest Guest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&guest))
		guest.ID = "g-42"
		json.NewEncoder(w).Encode(guest)
	}))
	defer server.Close()

	client := NewGuestbookClient(server.URL)
	saved, err := client.UpsertGuest(context.Background(), Guest{Name: "alice"})
	require.NoError(t, err)
	assert.Equal(t, "g-42", saved.ID)
	assert.Equal(t, "alice", saved.Name)
}

func TestAppendTranscript(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path

		var entry TranscriptEntry
		require.NoError(t, json.NewDecoder(r.Body).Decode(&entry))
		assert.Equal(t, "room:session_started", entry.Kind)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := NewGuestbookClient(server.URL)
	err := client.AppendTranscript(context.Background(), "ROOM42", TranscriptEntry{
		Kind:       "room:session_started",
		OccurredAt: time.Now().UTC(),
	})
	require.NoError(t, err)
	assert.Equal(t, "/v1/rooms/ROOM42/transcript", gotPath)
}

func TestAppendTranscriptServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "storage unavailable", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewGuestbookClient(server.URL)
	err := client.AppendTranscript(context.Background(), "R", TranscriptEntry{Kind: "room:flow"})
	require.Error(t, err)
}
