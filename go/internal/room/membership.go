package room

import (
	"sort"

	"github.com/rs/zerolog/log"

	"github.com/atelier-live/atelier/go/internal/room/events"
)

// Join adds a member to a room, creating the room if needed. The first member
// becomes the host. If the userID is already present this is a reconnect: the
// existing membership keeps its seat and only the connection id is replaced.
func (g *Registry) Join(roomID, userID, userName, connectionID string) (Member, error) {
	if roomID == "" {
		return Member{}, validationf("room id is required")
	}
	if userID == "" {
		return Member{}, identityf("join requires a user id")
	}

	rm := g.getOrCreate(roomID)
	rm.mu.Lock()

	if rm.gcTimer != nil {
		rm.gcTimer.stop()
		rm.gcTimer = nil
	}

	m, rejoined := rm.members[userID]
	if rejoined {
		m.ConnectionID = connectionID
		if userName != "" {
			m.UserName = userName
		}
		if p, ok := rm.pendingLeaves[userID]; ok {
			p.stop()
			delete(rm.pendingLeaves, userID)
		}
	} else {
		m = &Member{
			ConnectionID: connectionID,
			UserID:       userID,
			UserName:     userName,
			IsHost:       len(rm.members) == 0,
			JoinedAt:     g.clock.Now(),
			joinSeq:      rm.nextJoinSeq,
		}
		rm.nextJoinSeq++
		rm.members[userID] = m
	}

	member := *m
	payload := events.MembersPayload{Members: rm.membersWire()}
	rm.mu.Unlock()

	log.Info().
		Str("room_id", roomID).
		Str("user_id", userID).
		Bool("is_host", member.IsHost).
		Bool("rejoined", rejoined).
		Msg("member joined")

	g.emit(roomID, events.EventMembers, payload)
	return member, nil
}

// Leave marks the connection gone and schedules removal after the grace
// window. If the same user reconnects before the timer fires, Join cancels
// the removal and the membership survives.
func (g *Registry) Leave(roomID, connectionID string) {
	rm, err := g.get(roomID)
	if err != nil {
		return
	}

	rm.mu.Lock()
	defer rm.mu.Unlock()

	var userID string
	for id, m := range rm.members {
		if m.ConnectionID == connectionID {
			userID = id
			break
		}
	}
	if userID == "" {
		return
	}

	if prior, ok := rm.pendingLeaves[userID]; ok {
		prior.stop()
	}
	p := newPendingTimer(g.clock, g.cfg.LeaveGrace)
	rm.pendingLeaves[userID] = p

	go func() {
		select {
		case <-p.timer.Chan():
			g.finalizeLeave(roomID, userID, connectionID)
		case <-p.cancel:
		case <-g.ctx.Done():
			stopAndDrainTimer(p.timer)
		}
	}()

	log.Debug().
		Str("room_id", roomID).
		Str("user_id", userID).
		Dur("grace", g.cfg.LeaveGrace).
		Msg("member disconnect, removal scheduled")
}

// finalizeLeave removes the member once the grace window expires, unless a
// reconnect replaced the connection id in the meantime.
func (g *Registry) finalizeLeave(roomID, userID, connectionID string) {
	rm, err := g.get(roomID)
	if err != nil {
		return
	}

	rm.mu.Lock()
	delete(rm.pendingLeaves, userID)

	m, ok := rm.members[userID]
	if !ok || m.ConnectionID != connectionID {
		// Reconnected on a new connection; membership survives.
		rm.mu.Unlock()
		return
	}

	wasHost := m.IsHost
	delete(rm.members, userID)

	if wasHost {
		rm.promoteHost()
	}
	if len(rm.members) == 0 {
		g.scheduleRoomGC(rm)
	}

	payload := events.MembersPayload{Members: rm.membersWire()}
	rm.mu.Unlock()

	log.Info().
		Str("room_id", roomID).
		Str("user_id", userID).
		Bool("was_host", wasHost).
		Msg("member removed")

	g.emit(roomID, events.EventMembers, payload)
}

// promoteHost hands the host seat to the longest-joined remaining member.
// Caller holds rm.mu.
func (rm *Room) promoteHost() {
	var next *Member
	for _, m := range rm.members {
		if next == nil || m.joinSeq < next.joinSeq {
			next = m
		}
	}
	if next != nil {
		next.IsHost = true
		log.Info().
			Str("room_id", rm.id).
			Str("user_id", next.UserID).
			Msg("host promoted")
	}
}

// Members returns the room's member list in join order.
func (g *Registry) Members(roomID string) ([]Member, error) {
	rm, err := g.get(roomID)
	if err != nil {
		return nil, err
	}
	rm.mu.Lock()
	defer rm.mu.Unlock()
	return rm.memberList(), nil
}

// memberList copies members sorted by join order. Caller holds rm.mu.
func (rm *Room) memberList() []Member {
	out := make([]Member, 0, len(rm.members))
	for _, m := range rm.members {
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].joinSeq < out[j].joinSeq })
	return out
}

func (rm *Room) membersWire() []events.Member {
	list := rm.memberList()
	out := make([]events.Member, 0, len(list))
	for i := range list {
		out = append(out, list[i].wire())
	}
	return out
}

func (rm *Room) nonHostCount() int {
	n := 0
	for _, m := range rm.members {
		if !m.IsHost {
			n++
		}
	}
	return n
}
