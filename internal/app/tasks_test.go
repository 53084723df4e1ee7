package app

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/taskwire/relay/internal/domain"
)

func taskIDs(tasks []domain.Task) []string {
	ids := make([]string, 0, len(tasks))
	for _, t := range tasks {
		ids = append(ids, t.ID)
	}
	sort.Strings(ids)
	return ids
}

func TestTaskStore_ApplyInOrder(t *testing.T) {
	type op struct {
		kind string // "upsert" or "remove"
		task domain.Task
	}
	tests := []struct {
		name      string
		ops       []op
		wantIDs   []string
		wantTitle map[string]string
	}{
		{
			name: "create then update replaces in place",
			ops: []op{
				{kind: "upsert", task: domain.Task{ID: "t1", Title: "first"}},
				{kind: "upsert", task: domain.Task{ID: "t1", Title: "second"}},
			},
			wantIDs:   []string{"t1"},
			wantTitle: map[string]string{"t1": "second"},
		},
		{
			name: "delete removes regardless of prior state",
			ops: []op{
				{kind: "upsert", task: domain.Task{ID: "t1", Title: "x"}},
				{kind: "remove", task: domain.Task{ID: "t1"}},
			},
			wantIDs: []string{},
		},
		{
			name: "delete of absent id is a no-op",
			ops: []op{
				{kind: "remove", task: domain.Task{ID: "ghost"}},
				{kind: "upsert", task: domain.Task{ID: "t2", Title: "y"}},
			},
			wantIDs: []string{"t2"},
		},
		{
			name: "update on absent id inserts",
			ops: []op{
				{kind: "upsert", task: domain.Task{ID: "t3", Title: "z"}},
			},
			wantIDs: []string{"t3"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewTaskStore()
			for _, o := range tt.ops {
				switch o.kind {
				case "upsert":
					s.Upsert("r1", o.task)
				case "remove":
					s.Remove("r1", o.task.ID)
				}
			}
			got := s.ListByRoom("r1")
			assert.Equal(t, tt.wantIDs, taskIDs(got))
			for _, task := range got {
				if want, ok := tt.wantTitle[task.ID]; ok {
					assert.Equal(t, want, task.Title)
				}
			}
		})
	}
}

func TestTaskStore_RoomsAreIndependent(t *testing.T) {
	s := NewTaskStore()
	s.Upsert("a", domain.Task{ID: "t1"})
	s.Upsert("b", domain.Task{ID: "t1"})
	s.Upsert("b", domain.Task{ID: "t2"})

	assert.Equal(t, []string{"t1"}, taskIDs(s.ListByRoom("a")))
	assert.Equal(t, []string{"t1", "t2"}, taskIDs(s.ListByRoom("b")))
	assert.Equal(t, 1, s.CountByRoom("a"))
	assert.Equal(t, 2, s.CountByRoom("b"))
	assert.Equal(t, 3, s.Count())

	// Same id in another room is a different entry.
	s.Remove("a", "t1")
	assert.Empty(t, s.ListByRoom("a"))
	assert.Equal(t, []string{"t1", "t2"}, taskIDs(s.ListByRoom("b")))
}

func TestTaskStore_SnapshotIdempotent(t *testing.T) {
	s := NewTaskStore()
	s.Upsert("r", domain.Task{ID: "t1"})
	s.Upsert("r", domain.Task{ID: "t2"})

	first := taskIDs(s.ListByRoom("r"))
	second := taskIDs(s.ListByRoom("r"))
	assert.Equal(t, first, second)
}
