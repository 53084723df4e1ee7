package app

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/taskwire/relay/internal/core"
	"github.com/taskwire/relay/internal/domain"
)

// Rooms is the membership directory. Rooms are created lazily on the
// first Add and deleted the moment their member set drains; task data
// lives in the TaskStore and survives an empty room.
type Rooms struct {
	mu    sync.RWMutex
	rooms map[domain.RoomName]map[core.SessionID]core.Conn
}

func NewRooms() *Rooms {
	return &Rooms{rooms: make(map[domain.RoomName]map[core.SessionID]core.Conn)}
}

func (rs *Rooms) Add(name domain.RoomName, sid core.SessionID, conn core.Conn) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	members, ok := rs.rooms[name]
	if !ok {
		members = make(map[core.SessionID]core.Conn)
		rs.rooms[name] = members
		log.Info().Str("module", "app.rooms").Str("room", string(name)).Msg("room created")
	}
	members[sid] = conn
}

// Remove drops a membership and reports whether the room was deleted
// because it became empty. No-op for unknown room or member.
func (rs *Rooms) Remove(name domain.RoomName, sid core.SessionID) bool {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	members, ok := rs.rooms[name]
	if !ok {
		return false
	}
	delete(members, sid)
	if len(members) > 0 {
		return false
	}
	delete(rs.rooms, name)
	log.Info().Str("module", "app.rooms").Str("room", string(name)).Msg("room removed")
	return true
}

// Broadcast fans a pre-serialized frame out to every member of a room,
// skipping exclude if given. A failed send is logged and the member is
// left for the liveness sweep to reap; it never aborts the batch.
func (rs *Rooms) Broadcast(name domain.RoomName, exclude core.SessionID, frame core.Frame) int {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	sent := 0
	for sid, conn := range rs.rooms[name] {
		if sid == exclude {
			continue
		}
		if err := conn.TrySend(frame); err != nil {
			log.Warn().Err(err).Str("module", "app.rooms").Str("room", string(name)).Str("sid", string(sid)).Msg("dropped broadcast")
			continue
		}
		sent++
	}
	log.Debug().Str("module", "app.rooms").Str("room", string(name)).Int("sent_to", sent).Msg("broadcast")
	return sent
}

func (rs *Rooms) MemberCount(name domain.RoomName) int {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	return len(rs.rooms[name])
}

func (rs *Rooms) Names() []domain.RoomName {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	out := make([]domain.RoomName, 0, len(rs.rooms))
	for name := range rs.rooms {
		out = append(out, name)
	}
	return out
}

func (rs *Rooms) Count() int {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	return len(rs.rooms)
}
