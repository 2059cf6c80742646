package room

import (
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/atelier-live/atelier/go/internal/room/events"
)

// SubmitRequest is a normalized contribution submission. Content must already
// have passed through NormalizeContent at the ingress boundary.
type SubmitRequest struct {
	Type     ContributionType
	AuthorID string
	ID       string // optional explicit id, used as the dedup key when set
	Content  Content
	Order    int
}

// Submit upserts a contribution. Resubmission with the same derived key
// replaces the prior entry's content in place (edit-before-vote) instead of
// appending a duplicate, so retries after a dropped ack are safe.
//
// Key derivation: explicit id if supplied, else (author, order) when the
// content carries an order, else (author, content hash). Independent of it,
// the per-author invariant holds: one live contribution per author per type,
// except HMW questions which allow up to three ordered ones.
func (g *Registry) Submit(roomID string, req SubmitRequest) (Contribution, error) {
	if !req.Type.Valid() {
		return Contribution{}, validationf("unknown contribution type %q", req.Type)
	}
	if req.AuthorID == "" {
		return Contribution{}, identityf("contribution requires an author")
	}
	if req.Content.Text == "" {
		return Contribution{}, validationf("contribution content is empty")
	}
	if req.Order < 0 {
		return Contribution{}, validationf("contribution order must not be negative")
	}
	if req.Type == HMWQuestion && req.Order > hmwMaxPerAuthor {
		return Contribution{}, validationf("%s order must be between 1 and %d", HMWQuestion, hmwMaxPerAuthor)
	}

	rm, err := g.get(roomID)
	if err != nil {
		return Contribution{}, err
	}

	rm.mu.Lock()

	existing := rm.findContribution(req)
	var result Contribution
	if existing != nil {
		existing.Content = req.Content
		if req.Order > 0 {
			existing.Order = req.Order
		}
		result = *existing
	} else {
		if req.Type == HMWQuestion && rm.authorCount(req.Type, req.AuthorID) >= hmwMaxPerAuthor {
			rm.mu.Unlock()
			return Contribution{}, validationf("at most %d %s contributions per author", hmwMaxPerAuthor, HMWQuestion)
		}
		id := req.ID
		if id == "" {
			id = uuid.New().String()
		}
		c := &Contribution{
			ID:        id,
			AuthorID:  req.AuthorID,
			Type:      req.Type,
			Content:   req.Content,
			Order:     req.Order,
			CreatedAt: g.clock.Now(),
		}
		rm.contributions[req.Type] = append(rm.contributions[req.Type], c)
		result = *c
	}

	payload := events.ContributionsPayload{
		RoomID:        roomID,
		Type:          string(req.Type),
		Contributions: contributionsWire(derefContributions(rm.contributions[req.Type])),
	}
	rm.mu.Unlock()

	log.Debug().
		Str("room_id", roomID).
		Str("type", string(req.Type)).
		Str("author_id", req.AuthorID).
		Bool("replaced", existing != nil).
		Msg("contribution submitted")

	g.emit(roomID, events.EventContributions, payload)
	return result, nil
}

// findContribution locates the live entry the request's dedup key maps to.
// Caller holds rm.mu.
func (rm *Room) findContribution(req SubmitRequest) *Contribution {
	list := rm.contributions[req.Type]

	if req.ID != "" {
		for _, c := range list {
			if c.ID == req.ID {
				return c
			}
		}
	}

	if req.Type != HMWQuestion {
		// Single live contribution per author: any prior entry is the target.
		for _, c := range list {
			if c.AuthorID == req.AuthorID {
				return c
			}
		}
		return nil
	}

	if req.Order > 0 {
		for _, c := range list {
			if c.AuthorID == req.AuthorID && c.Order == req.Order {
				return c
			}
		}
		return nil
	}

	hash := contentHash(req.Content.Text)
	for _, c := range list {
		if c.AuthorID == req.AuthorID && c.Order == 0 && contentHash(c.Content.Text) == hash {
			return c
		}
	}
	return nil
}

func (rm *Room) authorCount(ctype ContributionType, authorID string) int {
	n := 0
	for _, c := range rm.contributions[ctype] {
		if c.AuthorID == authorID {
			n++
		}
	}
	return n
}

// List returns a type's contributions in insertion order.
func (g *Registry) List(roomID string, ctype ContributionType) ([]Contribution, error) {
	if !ctype.Valid() {
		return nil, validationf("unknown contribution type %q", ctype)
	}
	rm, err := g.get(roomID)
	if err != nil {
		return nil, err
	}
	rm.mu.Lock()
	defer rm.mu.Unlock()
	return derefContributions(rm.contributions[ctype]), nil
}

// ResetType clears a type's contributions, its voting round (ballots and
// snapshot included) and any readiness checkpoint keyed to the type, then
// acknowledges so clients can drop local caches before a new round.
func (g *Registry) ResetType(roomID string, ctype ContributionType) error {
	if !ctype.Valid() {
		return validationf("unknown contribution type %q", ctype)
	}
	rm, err := g.get(roomID)
	if err != nil {
		return err
	}

	rm.mu.Lock()
	delete(rm.contributions, ctype)
	delete(rm.voting, ctype)
	delete(rm.readiness, string(ctype))
	rm.mu.Unlock()

	log.Info().Str("room_id", roomID).Str("type", string(ctype)).Msg("contribution type reset")

	g.emit(roomID, events.EventTypeReset, events.TypeResetPayload{
		RoomID: roomID,
		Type:   string(ctype),
	})
	return nil
}
