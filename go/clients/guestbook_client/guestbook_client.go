package guestbook_client

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/atelier-live/atelier/go/clients"
)

// GuestbookClient talks to the persistence service that stores guest
// identities and session transcripts. The service is consumed over plain
// HTTP; room state itself is never persisted.
type GuestbookClient struct {
	*clients.BaseClient
}

func NewGuestbookClient(baseURL string) *GuestbookClient {
	client := &GuestbookClient{
		BaseClient: clients.NewBaseClient(baseURL),
	}

	client.SetHeader("Content-Type", "application/json")

	return client
}

// Guest is a durable guest identity.
type Guest struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// TranscriptEntry is one appended record of a room's session transcript.
type TranscriptEntry struct {
	Kind       string          `json:"kind"`
	OccurredAt time.Time       `json:"occurred_at"`
	Data       json.RawMessage `json:"data,omitempty"`
}

// UpsertGuest creates or updates a guest identity.
func (c *GuestbookClient) UpsertGuest(ctx context.Context, guest Guest) (*Guest, error) {
	var saved Guest
	if err := c.PostJSON(ctx, GuestsEndpoint, guest, &saved); err != nil {
		return nil, fmt.Errorf("failed to upsert guest: %w", err)
	}
	return &saved, nil
}

// AppendTranscript appends one entry to a room's transcript.
func (c *GuestbookClient) AppendTranscript(ctx context.Context, roomID string, entry TranscriptEntry) error {
	endpoint := fmt.Sprintf(TranscriptEndpointFmt, roomID)
	if err := c.PostJSON(ctx, endpoint, entry, nil); err != nil {
		return fmt.Errorf("failed to append transcript entry: %w", err)
	}
	return nil
}
