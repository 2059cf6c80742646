package room

import (
	"encoding/json"
	"time"

	"github.com/atelier-live/atelier/go/internal/room/events"
)

// ContributionType identifies the kind of artifact members submit and vote on.
type ContributionType string

const (
	InterviewQuestion ContributionType = "interview_question"
	POVStatement      ContributionType = "pov_statement"
	HMWQuestion       ContributionType = "hmw_question"
	ScenarioSelection ContributionType = "scenario_selection"
)

// hmwMaxPerAuthor caps how many HMW questions one author may hold at once.
const hmwMaxPerAuthor = 3

// Valid reports whether t is a known contribution type.
func (t ContributionType) Valid() bool {
	switch t {
	case InterviewQuestion, POVStatement, HMWQuestion, ScenarioSelection:
		return true
	}
	return false
}

// Member is one participant of a room. UserID is the durable identity and
// survives reconnects; ConnectionID is ephemeral and replaced on reconnect.
type Member struct {
	ConnectionID string
	UserID       string
	UserName     string
	IsHost       bool
	JoinedAt     time.Time

	// joinSeq orders members by arrival; used for host promotion.
	joinSeq int
}

// Contribution is a submitted artifact attributed to one author.
type Contribution struct {
	ID        string
	AuthorID  string
	Type      ContributionType
	Content   Content
	Order     int
	CreatedAt time.Time
}

// VotingStatus is the state of a voting round.
type VotingStatus string

const (
	VotingIdle    VotingStatus = "idle"
	VotingOpen    VotingStatus = "voting"
	VotingTied    VotingStatus = "tie"
	VotingResults VotingStatus = "results"
)

// VotingSession is one bounded episode of ballot collection over a fixed
// option snapshot.
type VotingSession struct {
	Type          ContributionType
	Status        VotingStatus
	MaxSelections int
	Options       []Contribution
	Ballots       map[string][]string
	StartedAt     time.Time
	Results       []Result
	// TiedOptionIDs is set when Status is tie: the options sharing the
	// ambiguous cut-line count.
	TiedOptionIDs []string
}

// Result is one option's tally after a round closes.
type Result struct {
	Option Contribution
	Votes  int
}

// FlowRecord is the canonical "current stage" of a room. It is monotonically
// replaced, never merged.
type FlowRecord struct {
	Step      string
	Payload   json.RawMessage
	UpdatedAt time.Time
	UpdatedBy string
}

// ReadinessRecord tracks which members confirmed a checkpoint. Only non-host
// members count toward the quorum.
type ReadinessRecord struct {
	Checkpoint string
	Confirmed  map[string]struct{}
}

// VotingSnapshot is a ballot-free projection of a session, used to bring late
// joiners into an in-flight round without leaking other members' ballots.
type VotingSnapshot struct {
	Type          ContributionType
	Status        VotingStatus
	MaxSelections int
	Options       []Contribution
	TotalVotes    int
	StartedAt     time.Time
	Results       []Result
	TiedOptionIDs []string
}

// Snapshot is the full projection a (re)subscribing client needs to converge.
type Snapshot struct {
	RoomID        string
	Members       []Member
	Contributions map[ContributionType][]Contribution
	Voting        map[ContributionType]VotingSnapshot
	Flow          *FlowRecord
	Readiness     map[string][]string
	RequiredReady int
}

func (m *Member) wire() events.Member {
	return events.Member{
		UserID:   m.UserID,
		UserName: m.UserName,
		IsHost:   m.IsHost,
	}
}

func (c *Contribution) wire() events.Contribution {
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

func contributionsWire(list []Contribution) []events.Contribution {
	out := make([]events.Contribution, 0, len(list))
	for i := range list {
		out = append(out, list[i].wire())
	}
	return out
}

func resultsWire(results []Result) []events.OptionResult {
	out := make([]events.OptionResult, 0, len(results))
	for i := range results {
		out = append(out, events.OptionResult{
			OptionID:     results[i].Option.ID,
			Contribution: results[i].Option.wire(),
			Votes:        results[i].Votes,
		})
	}
	return out
}
