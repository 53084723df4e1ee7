package app

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/taskwire/relay/internal/core"
)

func TestRooms_CreateAndDeleteOnEmpty(t *testing.T) {
	rs := NewRooms()
	assert.Equal(t, 0, rs.Count())

	rs.Add("r1", "a", &fakeConn{})
	rs.Add("r1", "b", &fakeConn{})
	assert.Equal(t, 1, rs.Count())
	assert.Equal(t, 2, rs.MemberCount("r1"))

	assert.False(t, rs.Remove("r1", "a"))
	assert.True(t, rs.Remove("r1", "b"), "last leave deletes the room")
	assert.Equal(t, 0, rs.Count())

	// Unknown room or member is a no-op.
	assert.False(t, rs.Remove("r1", "a"))
}

func TestRooms_Broadcast(t *testing.T) {
	tests := []struct {
		name     string
		exclude  string
		wantSent int
		recvWant map[string]int
	}{
		{
			name:     "everyone but the sender",
			exclude:  "sender",
			wantSent: 2,
			recvWant: map[string]int{"sender": 0, "a": 1, "b": 1},
		},
		{
			name:     "no exclusion",
			exclude:  "",
			wantSent: 3,
			recvWant: map[string]int{"sender": 1, "a": 1, "b": 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rs := NewRooms()
			conns := map[string]*fakeConn{
				"sender": {}, "a": {}, "b": {},
			}
			for sid, c := range conns {
				rs.Add("r1", core.SessionID(sid), c)
			}

			sent := rs.Broadcast("r1", core.SessionID(tt.exclude), []byte(`{"type":"X"}`))
			assert.Equal(t, tt.wantSent, sent)
			for sid, c := range conns {
				assert.Len(t, c.frames, tt.recvWant[sid], "conn %s", sid)
			}
		})
	}
}

func TestRooms_BroadcastPartialFailure(t *testing.T) {
	rs := NewRooms()
	ok1 := &fakeConn{}
	bad := &fakeConn{sendErr: errors.New("buffer full")}
	ok2 := &fakeConn{}
	rs.Add("r1", "ok1", ok1)
	rs.Add("r1", "bad", bad)
	rs.Add("r1", "ok2", ok2)

	sent := rs.Broadcast("r1", "", []byte(`{"type":"X"}`))

	// One member failing never aborts the batch.
	assert.Equal(t, 2, sent)
	assert.Len(t, ok1.frames, 1)
	assert.Len(t, ok2.frames, 1)
	assert.Empty(t, bad.frames)
	// The failed member is not evicted here; the liveness sweep owns that.
	assert.Equal(t, 3, rs.MemberCount("r1"))
}

func TestRooms_BroadcastToUnknownRoom(t *testing.T) {
	rs := NewRooms()
	assert.Equal(t, 0, rs.Broadcast("ghost", "", []byte("{}")))
}
