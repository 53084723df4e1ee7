package app

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/taskwire/relay/internal/core"
	"github.com/taskwire/relay/internal/domain"
	"github.com/taskwire/relay/internal/protocol"
)

// ErrNotRegistered is returned for room-scoped operations attempted
// before a join completed.
var ErrNotRegistered = errors.New("client not registered")

// ErrUnknownUpdate is returned for a TASK_UPDATE with an unrecognized
// updateType.
var ErrUnknownUpdate = errors.New("unknown update type")

// Broker owns the three shared tables and every state transition on
// them. Handlers and the liveness sweep go through it, never through
// the tables directly.
type Broker struct {
	Registry *Registry
	Rooms    *Rooms
	Tasks    *TaskStore

	started time.Time
}

func NewBroker() *Broker {
	return &Broker{
		Registry: NewRegistry(),
		Rooms:    NewRooms(),
		Tasks:    NewTaskStore(),
		started:  time.Now(),
	}
}

// Connect registers a freshly accepted transport and returns its
// identity. The connection stays UNJOINED until a join frame arrives.
func (b *Broker) Connect(conn core.Conn, cancel context.CancelFunc) core.SessionID {
	return b.Registry.Register(conn, cancel)
}

// JoinResult is the snapshot handed back to a joining connection.
type JoinResult struct {
	Room    domain.RoomName
	Tasks   []domain.Task
	Members []protocol.Member
}

// Join places the connection in a room, leaving its previous room first
// when switching. It notifies the old room with USER_LEFT and the new
// room with USER_JOINED (excluding the joiner), and returns the room's
// task snapshot plus the full member list.
func (b *Broker) Join(sid core.SessionID, room domain.RoomName, username string) (JoinResult, error) {
	if room == "" {
		room = domain.DefaultRoom
	}
	snap, ok := b.Registry.Snapshot(sid)
	if !ok {
		return JoinResult{}, ErrNotRegistered
	}

	rejoin := snap.Joined && snap.Room == room
	if snap.Joined && snap.Room != room {
		b.leaveRoom(snap)
	}

	b.Registry.SetJoined(sid, room, username)
	b.Rooms.Add(room, sid, snap.Conn)

	if !rejoin {
		self, _ := b.Registry.Snapshot(sid)
		b.broadcastJSON(room, sid, protocol.UserEvent{
			Type:      protocol.KindUserJoined,
			Username:  self.Username,
			Room:      string(room),
			Timestamp: time.Now(),
		})
	}

	return JoinResult{
		Room:    room,
		Tasks:   b.Tasks.ListByRoom(room),
		Members: b.membersOf(room),
	}, nil
}

// Joined reports whether the connection has completed a join.
func (b *Broker) Joined(sid core.SessionID) bool {
	snap, ok := b.Registry.Snapshot(sid)
	return ok && snap.Joined
}

// ApplyTaskUpdate stamps, stores and relays one mutation. Create and
// update upsert with the connection's current room stamped over
// whatever the client sent; delete is keyed by the connection's room
// and ignores the task's own room field.
func (b *Broker) ApplyTaskUpdate(sid core.SessionID, updateType string, task domain.Task) error {
	snap, ok := b.Registry.Snapshot(sid)
	if !ok || !snap.Joined {
		return ErrNotRegistered
	}

	switch updateType {
	case protocol.UpdateCreate, protocol.UpdateUpdate:
		task.Room = string(snap.Room)
		b.Tasks.Upsert(snap.Room, task)
	case protocol.UpdateDelete:
		b.Tasks.Remove(snap.Room, task.ID)
	default:
		return ErrUnknownUpdate
	}

	log.Info().Str("module", "app.broker").Str("sid", string(sid)).
		Str("room", string(snap.Room)).Str("op", updateType).
		Str("task_id", task.ID).Str("title", task.Title).Msg("task update")

	b.broadcastJSON(snap.Room, sid, protocol.TaskUpdateEvent{
		Type:       protocol.KindTaskUpdate,
		UpdateType: updateType,
		Task:       task,
		UpdatedBy:  snap.Username,
		Room:       string(snap.Room),
		Timestamp:  time.Now(),
	})
	return nil
}

// TasksFor answers a snapshot request. An empty room defaults to the
// caller's current room.
func (b *Broker) TasksFor(sid core.SessionID, room domain.RoomName) ([]domain.Task, domain.RoomName, error) {
	snap, ok := b.Registry.Snapshot(sid)
	if !ok || !snap.Joined {
		return nil, "", ErrNotRegistered
	}
	if room == "" {
		room = snap.Room
	}
	return b.Tasks.ListByRoom(room), room, nil
}

// Disconnect is the single teardown path shared by client close,
// transport error and liveness failure. Idempotent.
func (b *Broker) Disconnect(sid core.SessionID) {
	snap, ok := b.Registry.Remove(sid)
	if !ok {
		return
	}
	if snap.Joined {
		b.Rooms.Remove(snap.Room, sid)
		b.broadcastJSON(snap.Room, "", protocol.UserEvent{
			Type:      protocol.KindUserLeft,
			Username:  snap.Username,
			Room:      string(snap.Room),
			Timestamp: time.Now(),
		})
	}
	log.Info().Str("module", "app.broker").Str("sid", string(sid)).Str("username", snap.Username).Msg("disconnected")
}

// MarkAlive records a probe acknowledgment from the connection.
func (b *Broker) MarkAlive(sid core.SessionID) {
	b.Registry.MarkAlive(sid)
}

// Shutdown notifies every connection and closes it. Best effort: a
// frame that cannot be queued is dropped like any other send failure.
func (b *Broker) Shutdown(message string) {
	frame, err := json.Marshal(protocol.ShutdownNotice{
		Type:      protocol.KindServerShutdown,
		Message:   message,
		Timestamp: time.Now(),
	})
	if err != nil {
		log.Error().Err(err).Str("module", "app.broker").Msg("shutdown marshal")
		return
	}
	for _, snap := range b.Registry.All() {
		_ = snap.Conn.TrySend(frame)
	}
	for _, snap := range b.Registry.All() {
		snap.Conn.Close()
		b.Disconnect(snap.SID)
	}
	log.Info().Str("module", "app.broker").Msg("shutdown broadcast complete")
}

func (b *Broker) Uptime() time.Duration {
	return time.Since(b.started)
}

// leaveRoom removes a membership and tells the old room. Task entries
// stay in the store even when the room drains.
func (b *Broker) leaveRoom(snap ClientSnap) {
	b.Rooms.Remove(snap.Room, snap.SID)
	b.broadcastJSON(snap.Room, "", protocol.UserEvent{
		Type:      protocol.KindUserLeft,
		Username:  snap.Username,
		Room:      string(snap.Room),
		Timestamp: time.Now(),
	})
}

func (b *Broker) membersOf(room domain.RoomName) []protocol.Member {
	snaps := b.Registry.MembersOfRoom(room)
	out := make([]protocol.Member, 0, len(snaps))
	for _, s := range snaps {
		out = append(out, protocol.Member{Username: s.Username, ConnectedAt: s.ConnectedAt})
	}
	return out
}

// broadcastJSON serializes once and fans out through the directory.
func (b *Broker) broadcastJSON(room domain.RoomName, exclude core.SessionID, v any) {
	frame, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "app.broker").Str("room", string(room)).Msg("broadcast marshal")
		return
	}
	b.Rooms.Broadcast(room, exclude, frame)
}
