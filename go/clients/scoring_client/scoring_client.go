package scoring_client

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/atelier-live/atelier/go/clients"
)

// ScoringClient talks to the AI-evaluation backend. The backend is an opaque
// scoring oracle: a prompt goes in, free-text or structured feedback comes
// out over plain request/response.
type ScoringClient struct {
	*clients.BaseClient
}

func NewScoringClient(baseURL, apiKey string) *ScoringClient {
	client := &ScoringClient{
		BaseClient: clients.NewBaseClient(baseURL),
	}

	client.SetHeader("Content-Type", "application/json")
	if apiKey != "" {
		client.SetHeader("Authorization", "Bearer "+apiKey)
	}

	return client
}

// EvaluateRequest is a single evaluation prompt with optional context fields
// (scenario id, rubric name and the like).
type EvaluateRequest struct {
	Prompt  string            `json:"prompt"`
	Context map[string]string `json:"context,omitempty"`
}

// Feedback is the oracle's answer. Score is absent when the backend returned
// free-text only; Raw keeps the untouched response for the UI.
type Feedback struct {
	Score   *float64        `json:"score,omitempty"`
	Summary string          `json:"summary"`
	Raw     json.RawMessage `json:"raw,omitempty"`
}

// Evaluate submits a prompt and returns the oracle's feedback.
func (c *ScoringClient) Evaluate(ctx context.Context, req EvaluateRequest) (*Feedback, error) {
	var feedback Feedback
	if err := c.PostJSON(ctx, EvaluateEndpoint, req, &feedback); err != nil {
		return nil, fmt.Errorf("failed to evaluate prompt: %w", err)
	}
	return &feedback, nil
}
