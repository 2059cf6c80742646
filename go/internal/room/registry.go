package room

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/atelier-live/atelier/go/internal/room/events"
)

// Publisher is the room-scoped pub/sub channel the engine publishes to. The
// send is fire-and-forget from the engine's perspective.
type Publisher interface {
	Publish(ctx context.Context, event events.RoomEvent) error
}

// Config holds tunables for the room registry.
type Config struct {
	// LeaveGrace is how long a disconnected member keeps its membership. A
	// reconnect within the window cancels removal, so a tab refresh or
	// network blip does not drop the member.
	LeaveGrace time.Duration
	// EmptyRoomTTL is how long an empty room survives before it is
	// garbage-collected.
	EmptyRoomTTL time.Duration
	// Clock defaults to the real clock; tests inject a fake one.
	Clock clockwork.Clock
}

func (c Config) withDefaults() Config {
	if c.LeaveGrace <= 0 {
		c.LeaveGrace = 10 * time.Second
	}
	if c.EmptyRoomTTL <= 0 {
		c.EmptyRoomTTL = 5 * time.Minute
	}
	if c.Clock == nil {
		c.Clock = clockwork.NewRealClock()
	}
	return c
}

// Registry owns every room in the process. All mutations to one room are
// serialized by that room's lock; rooms never touch each other's state.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]*Room

	publisher Publisher
	clock     clockwork.Clock
	cfg       Config
	ctx       context.Context
}

// Room aggregates all state for one collaborative session. Its mutex guards
// every field; only registry methods touch them.
type Room struct {
	mu sync.Mutex

	id            string
	members       map[string]*Member
	contributions map[ContributionType][]*Contribution
	voting        map[ContributionType]*VotingSession
	flow          *FlowRecord
	readiness     map[string]*ReadinessRecord

	pendingLeaves map[string]*pendingTimer
	gcTimer       *pendingTimer
	nextJoinSeq   int
}

// pendingTimer pairs a timer with a cancel channel. Stopping the timer alone
// leaves its waiter goroutine blocked on Chan() forever; closing cancel
// releases it.
type pendingTimer struct {
	timer  clockwork.Timer
	cancel chan struct{}
}

func newPendingTimer(clock clockwork.Clock, d time.Duration) *pendingTimer {
	return &pendingTimer{timer: clock.NewTimer(d), cancel: make(chan struct{})}
}

// stop stops the timer and releases its waiter. Must be called at most once
// per pendingTimer; callers serialize through rm.mu.
func (p *pendingTimer) stop() {
	stopAndDrainTimer(p.timer)
	close(p.cancel)
}

// NewRegistry creates a registry publishing through the given publisher. The
// parent context bounds the lifetime of all grace-window and GC timers.
func NewRegistry(parent context.Context, publisher Publisher, cfg Config) *Registry {
	cfg = cfg.withDefaults()
	return &Registry{
		rooms:     make(map[string]*Room),
		publisher: publisher,
		clock:     cfg.Clock,
		cfg:       cfg,
		ctx:       parent,
	}
}

// CreateRoom ensures a room exists. Rooms are also auto-created on first
// join, so this only backs the explicit create endpoint.
func (g *Registry) CreateRoom(roomID string) error {
	if roomID == "" {
		return validationf("room id is required")
	}
	g.getOrCreate(roomID)
	return nil
}

// RoomCount returns the number of live rooms.
func (g *Registry) RoomCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.rooms)
}

func (g *Registry) getOrCreate(roomID string) *Room {
	g.mu.Lock()
	defer g.mu.Unlock()

	rm, ok := g.rooms[roomID]
	if !ok {
		rm = &Room{
			id:            roomID,
			members:       make(map[string]*Member),
			contributions: make(map[ContributionType][]*Contribution),
			voting:        make(map[ContributionType]*VotingSession),
			readiness:     make(map[string]*ReadinessRecord),
			pendingLeaves: make(map[string]*pendingTimer),
		}
		g.rooms[roomID] = rm
		log.Info().Str("room_id", roomID).Msg("room created")
	}
	return rm
}

func (g *Registry) get(roomID string) (*Room, error) {
	g.mu.RLock()
	rm, ok := g.rooms[roomID]
	g.mu.RUnlock()
	if !ok {
		return nil, identityf("unknown room %q", roomID)
	}
	return rm, nil
}

// emit publishes an event to the room's channel. Failures are logged, never
// propagated: a dropped broadcast is recovered by a later sync request.
func (g *Registry) emit(roomID string, eventType events.EventType, payload any) {
	event, err := events.New(roomID, eventType, payload)
	if err != nil {
		log.Error().Err(err).Str("room_id", roomID).Str("event_type", string(eventType)).
			Msg("failed to build room event")
		return
	}
	if err := g.publisher.Publish(g.ctx, event); err != nil {
		log.Error().Err(err).Str("room_id", roomID).Str("event_type", string(eventType)).
			Msg("failed to publish room event")
	}
}

// scheduleRoomGC arms the empty-room collection timer. Caller holds rm.mu.
func (g *Registry) scheduleRoomGC(rm *Room) {
	if rm.gcTimer != nil {
		rm.gcTimer.stop()
	}
	p := newPendingTimer(g.clock, g.cfg.EmptyRoomTTL)
	rm.gcTimer = p

	go func() {
		select {
		case <-p.timer.Chan():
			g.collectRoom(rm.id)
		case <-p.cancel:
		case <-g.ctx.Done():
			stopAndDrainTimer(p.timer)
		}
	}()
}

// collectRoom removes a room that stayed empty for the full grace period.
func (g *Registry) collectRoom(roomID string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	rm, ok := g.rooms[roomID]
	if !ok {
		return
	}
	rm.mu.Lock()
	empty := len(rm.members) == 0
	rm.mu.Unlock()
	if !empty {
		return
	}
	delete(g.rooms, roomID)
	log.Info().Str("room_id", roomID).Msg("empty room collected")
}

// GetSnapshot returns the full projection a (re)subscribing client needs to
// converge, regardless of how many broadcasts it missed.
func (g *Registry) GetSnapshot(roomID string) (Snapshot, error) {
	rm, err := g.get(roomID)
	if err != nil {
		return Snapshot{}, err
	}

	rm.mu.Lock()
	defer rm.mu.Unlock()

	snap := Snapshot{
		RoomID:        roomID,
		Members:       rm.memberList(),
		Contributions: make(map[ContributionType][]Contribution),
		Voting:        make(map[ContributionType]VotingSnapshot),
		Readiness:     make(map[string][]string),
		RequiredReady: rm.nonHostCount(),
	}
	for ctype, list := range rm.contributions {
		snap.Contributions[ctype] = derefContributions(list)
	}
	for ctype, sess := range rm.voting {
		snap.Voting[ctype] = VotingSnapshot{
			Type:          sess.Type,
			Status:        sess.Status,
			MaxSelections: sess.MaxSelections,
			Options:       append([]Contribution(nil), sess.Options...),
			TotalVotes:    len(sess.Ballots),
			StartedAt:     sess.StartedAt,
			Results:       append([]Result(nil), sess.Results...),
			TiedOptionIDs: append([]string(nil), sess.TiedOptionIDs...),
		}
	}
	if rm.flow != nil {
		record := *rm.flow
		snap.Flow = &record
	}
	for key, rec := range rm.readiness {
		snap.Readiness[key] = rm.confirmedNonHost(rec)
	}
	return snap, nil
}

func derefContributions(list []*Contribution) []Contribution {
	out := make([]Contribution, 0, len(list))
	for _, c := range list {
		out = append(out, *c)
	}
	return out
}

// stopAndDrainTimer safely stops a timer and drains its channel so the
// waiting goroutine does not leak.
func stopAndDrainTimer(timer clockwork.Timer) {
	if !timer.Stop() {
		select {
		case <-timer.Chan():
		default:
		}
	}
}
