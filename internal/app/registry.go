package app

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/taskwire/relay/internal/core"
	"github.com/taskwire/relay/internal/domain"
)

type clientEntry struct {
	Client *domain.Client
	Room   domain.RoomName
	Joined bool
	Alive  bool
	Conn   core.Conn
	Cancel context.CancelFunc
}

// ClientSnap is a copy of one registry entry, safe to use outside the
// registry lock.
type ClientSnap struct {
	SID         core.SessionID
	Username    string
	Room        domain.RoomName
	Joined      bool
	ConnectedAt time.Time
	Conn        core.Conn
}

// Registry owns all live connections. Rooms hold only non-owning
// membership references; teardown always ends here.
type Registry struct {
	mu      sync.RWMutex
	clients map[core.SessionID]*clientEntry
}

func NewRegistry() *Registry {
	return &Registry{clients: make(map[core.SessionID]*clientEntry)}
}

// Register allocates an identity for a freshly accepted connection and
// marks it alive. The display name stays the sentinel until a join.
func (r *Registry) Register(conn core.Conn, cancel context.CancelFunc) core.SessionID {
	sid := core.SessionID(uuid.NewString())
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[sid] = &clientEntry{
		Client: &domain.Client{Username: domain.UnknownUser, ConnectedAt: time.Now()},
		Alive:  true,
		Conn:   conn,
		Cancel: cancel,
	}
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("registered connection")
	return sid
}

func (r *Registry) Snapshot(sid core.SessionID) (ClientSnap, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.clients[sid]
	if !ok {
		return ClientSnap{}, false
	}
	return snapOf(sid, e), true
}

// SetJoined records a completed join. An empty username keeps the
// current display name.
func (r *Registry) SetJoined(sid core.SessionID, room domain.RoomName, username string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.clients[sid]
	if !ok {
		return false
	}
	e.Room = room
	e.Joined = true
	if username != "" {
		if err := e.Client.SetUsername(username); err != nil {
			log.Warn().Err(err).Str("module", "app.registry").Str("sid", string(sid)).Msg("rejected username")
		}
	}
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Str("room", string(room)).Str("username", e.Client.Username).Msg("joined")
	return true
}

// Remove purges all state for the connection and cancels its pumps.
// Idempotent: removing an unknown session returns false.
func (r *Registry) Remove(sid core.SessionID) (ClientSnap, bool) {
	r.mu.Lock()
	e, ok := r.clients[sid]
	if ok {
		delete(r.clients, sid)
	}
	r.mu.Unlock()
	if !ok {
		return ClientSnap{}, false
	}
	if e.Cancel != nil {
		e.Cancel()
	}
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("removed connection")
	return snapOf(sid, e), true
}

// MarkAlive records a probe acknowledgment.
func (r *Registry) MarkAlive(sid core.SessionID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.clients[sid]
	if !ok {
		return false
	}
	e.Alive = true
	return true
}

// StaleAndProbe implements the clear-then-probe cycle: entries whose
// flag was not reset since the last call are returned as stale, the
// rest have their flag cleared and are returned as probe targets.
func (r *Registry) StaleAndProbe() (stale, probes []ClientSnap) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for sid, e := range r.clients {
		if !e.Alive {
			stale = append(stale, snapOf(sid, e))
			continue
		}
		e.Alive = false
		probes = append(probes, snapOf(sid, e))
	}
	return stale, probes
}

// MembersOfRoom returns the joined connections currently in a room.
func (r *Registry) MembersOfRoom(name domain.RoomName) []ClientSnap {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ClientSnap, 0, len(r.clients))
	for sid, e := range r.clients {
		if e.Joined && e.Room == name {
			out = append(out, snapOf(sid, e))
		}
	}
	return out
}

func (r *Registry) All() []ClientSnap {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ClientSnap, 0, len(r.clients))
	for sid, e := range r.clients {
		out = append(out, snapOf(sid, e))
	}
	return out
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

func snapOf(sid core.SessionID, e *clientEntry) ClientSnap {
	return ClientSnap{
		SID:         sid,
		Username:    e.Client.Username,
		Room:        e.Room,
		Joined:      e.Joined,
		ConnectedAt: e.Client.ConnectedAt,
		Conn:        e.Conn,
	}
}
