package room

import (
	"sort"

	"github.com/rs/zerolog/log"

	"github.com/atelier-live/atelier/go/internal/room/events"
)

// StartVoting opens a voting round for a contribution type. The current
// contribution list is snapshotted as the fixed option set; submissions that
// arrive while the round is open do not alter it. Valid from idle, results or
// tie; a round already collecting ballots cannot be restarted.
//
// Restarting from tie is the explicit revote: the prior snapshot is kept so
// everyone votes over exactly the tied set again.
func (g *Registry) StartVoting(roomID string, ctype ContributionType, maxSelections int) error {
	if !ctype.Valid() {
		return validationf("unknown contribution type %q", ctype)
	}
	if maxSelections < 1 {
		return validationf("max selections must be at least 1")
	}

	rm, err := g.get(roomID)
	if err != nil {
		return err
	}

	rm.mu.Lock()

	prior := rm.voting[ctype]
	if prior != nil && prior.Status == VotingOpen {
		rm.mu.Unlock()
		return conflictf("a %s voting round is already in progress", ctype)
	}

	var options []Contribution
	if prior != nil && prior.Status == VotingTied {
		options = append([]Contribution(nil), prior.Options...)
	} else {
		options = derefContributions(rm.contributions[ctype])
	}
	if len(options) == 0 {
		rm.mu.Unlock()
		return validationf("no %s contributions to vote on", ctype)
	}
	if maxSelections > len(options) {
		rm.mu.Unlock()
		return validationf("max selections %d exceeds option count %d", maxSelections, len(options))
	}

	sess := &VotingSession{
		Type:          ctype,
		Status:        VotingOpen,
		MaxSelections: maxSelections,
		Options:       options,
		Ballots:       make(map[string][]string),
		StartedAt:     g.clock.Now(),
	}
	rm.voting[ctype] = sess

	payload := events.VotingStartedPayload{
		RoomID:        roomID,
		Type:          string(ctype),
		MaxSelections: maxSelections,
		Contributions: contributionsWire(options),
		StartedAt:     sess.StartedAt,
	}
	rm.mu.Unlock()

	log.Info().
		Str("room_id", roomID).
		Str("type", string(ctype)).
		Int("max_selections", maxSelections).
		Int("options", len(options)).
		Msg("voting round started")

	g.emit(roomID, events.EventVotingStarted, payload)
	return nil
}

// CastVote records a member's ballot. A second ballot from the same member
// overwrites the first (last vote wins), so clients may retry after a dropped
// ack without being double counted. The round closes automatically when the
// ballot count reaches the member count.
func (g *Registry) CastVote(roomID string, ctype ContributionType, userID string, optionIDs []string) error {
	rm, err := g.get(roomID)
	if err != nil {
		return err
	}

	rm.mu.Lock()

	if _, ok := rm.members[userID]; !ok {
		rm.mu.Unlock()
		return identityf("unknown member %q", userID)
	}
	sess := rm.voting[ctype]
	if sess == nil || sess.Status != VotingOpen {
		rm.mu.Unlock()
		return conflictf("no open %s voting round", ctype)
	}
	if len(optionIDs) != sess.MaxSelections {
		rm.mu.Unlock()
		return validationf("ballot must select exactly %d option(s), got %d", sess.MaxSelections, len(optionIDs))
	}

	known := make(map[string]bool, len(sess.Options))
	for i := range sess.Options {
		known[sess.Options[i].ID] = true
	}
	seen := make(map[string]bool, len(optionIDs))
	for _, id := range optionIDs {
		if !known[id] {
			rm.mu.Unlock()
			return validationf("option %q is not part of this round", id)
		}
		if seen[id] {
			rm.mu.Unlock()
			return validationf("ballot selects option %q more than once", id)
		}
		seen[id] = true
	}

	sess.Ballots[userID] = append([]string(nil), optionIDs...)

	progress := events.VoteProgressPayload{
		RoomID:       roomID,
		Type:         string(ctype),
		TotalVotes:   len(sess.Ballots),
		TotalMembers: len(rm.members),
	}

	var outcomeType events.EventType
	var outcome any
	if len(sess.Ballots) >= len(rm.members) {
		outcomeType, outcome = rm.closeRound(sess)
	}
	rm.mu.Unlock()

	g.emit(roomID, events.EventVoteProgress, progress)
	if outcome != nil {
		g.emit(roomID, outcomeType, outcome)
	}
	return nil
}

// ForceResolve lets the host close an in-flight round with the ballots cast
// so far. It exists so a vanished member cannot block the group forever; the
// tally and tie rules are unchanged, only the quorum is waived.
func (g *Registry) ForceResolve(roomID string, ctype ContributionType, userID string) error {
	rm, err := g.get(roomID)
	if err != nil {
		return err
	}

	rm.mu.Lock()

	m, ok := rm.members[userID]
	if !ok {
		rm.mu.Unlock()
		return identityf("unknown member %q", userID)
	}
	if !m.IsHost {
		rm.mu.Unlock()
		return conflictf("only the host can force-resolve a round")
	}
	sess := rm.voting[ctype]
	if sess == nil || sess.Status != VotingOpen {
		rm.mu.Unlock()
		return conflictf("no open %s voting round", ctype)
	}
	if len(sess.Ballots) == 0 {
		rm.mu.Unlock()
		return validationf("cannot resolve a round with no ballots")
	}

	outcomeType, outcome := rm.closeRound(sess)
	rm.mu.Unlock()

	log.Info().
		Str("room_id", roomID).
		Str("type", string(ctype)).
		Str("user_id", userID).
		Msg("voting round force-resolved by host")

	g.emit(roomID, outcomeType, outcome)
	return nil
}

// closeRound tallies ballots and either publishes results or flags a tie.
// Caller holds rm.mu.
func (rm *Room) closeRound(sess *VotingSession) (events.EventType, any) {
	results := tally(sess)
	sess.Results = results

	boundary := results[min(sess.MaxSelections, len(results))-1].Votes

	tied := len(results) > sess.MaxSelections && results[sess.MaxSelections].Votes == boundary
	if tied {
		sess.Status = VotingTied
		var tiedIDs []string
		for i := range results {
			if results[i].Votes == boundary {
				tiedIDs = append(tiedIDs, results[i].Option.ID)
			}
		}
		sess.TiedOptionIDs = tiedIDs
		log.Info().
			Str("room_id", rm.id).
			Str("type", string(sess.Type)).
			Int("tied_options", len(tiedIDs)).
			Msg("voting round tied")
		return events.EventVotingTie, events.VotingTiePayload{
			RoomID:        rm.id,
			Type:          string(sess.Type),
			Results:       resultsWire(results),
			TiedOptionIDs: tiedIDs,
		}
	}

	sess.Status = VotingResults
	sess.TiedOptionIDs = nil
	payload := events.VotingCompletePayload{
		RoomID:  rm.id,
		Type:    string(sess.Type),
		Results: resultsWire(results),
	}
	if sess.MaxSelections == 1 {
		winner := resultsWire(results[:1])[0]
		payload.Winner = &winner
	} else {
		payload.Winners = resultsWire(results[:sess.MaxSelections])
	}

	log.Info().
		Str("room_id", rm.id).
		Str("type", string(sess.Type)).
		Int("ballots", len(sess.Ballots)).
		Msg("voting round complete")
	return events.EventVotingComplete, payload
}

// tally counts one vote per chosen option per ballot. The fold is commutative
// so ballot arrival order never affects the outcome; the stable sort only
// keeps the presentation order predictable among equals, it never decides a
// winner (ties at the cut line are surfaced, not broken).
func tally(sess *VotingSession) []Result {
	counts := make(map[string]int)
	for _, ballot := range sess.Ballots {
		for _, id := range ballot {
			counts[id]++
		}
	}

	results := make([]Result, 0, len(sess.Options))
	for i := range sess.Options {
		results = append(results, Result{
			Option: sess.Options[i],
			Votes:  counts[sess.Options[i].ID],
		})
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Votes > results[j].Votes })
	return results
}
