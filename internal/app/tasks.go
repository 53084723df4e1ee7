package app

import (
	"sync"

	"github.com/taskwire/relay/internal/domain"
)

type taskKey struct {
	room domain.RoomName
	id   string
}

// TaskStore holds the last-known state of every task per room, keyed by
// (room, id) so replacement and deletion are O(1). Entirely volatile.
type TaskStore struct {
	mu    sync.RWMutex
	tasks map[taskKey]domain.Task
}

func NewTaskStore() *TaskStore {
	return &TaskStore{tasks: make(map[taskKey]domain.Task)}
}

// Upsert inserts or replaces the entry for (room, task.ID). Create and
// update are deliberately the same operation.
func (s *TaskStore) Upsert(room domain.RoomName, task domain.Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[taskKey{room: room, id: task.ID}] = task
}

// Remove deletes the entry if present; a miss is a no-op.
func (s *TaskStore) Remove(room domain.RoomName, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tasks, taskKey{room: room, id: id})
}

// ListByRoom returns the room's tasks in no particular order.
func (s *TaskStore) ListByRoom(room domain.RoomName) []domain.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Task, 0)
	for k, t := range s.tasks {
		if k.room == room {
			out = append(out, t)
		}
	}
	return out
}

func (s *TaskStore) CountByRoom(room domain.RoomName) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for k := range s.tasks {
		if k.room == room {
			n++
		}
	}
	return n
}

func (s *TaskStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tasks)
}
