// Package protocol defines the JSON frames exchanged with clients.
// Every frame carries a "type" discriminator; payloads are decoded in
// two steps (envelope peek, then the concrete shape).
package protocol

import (
	"time"

	"github.com/taskwire/relay/internal/core"
	"github.com/taskwire/relay/internal/domain"
)

// Client → server frame kinds.
const (
	KindConnect    = "CONNECT"
	KindJoinRoom   = "JOIN_ROOM"
	KindTaskUpdate = "TASK_UPDATE"
	KindGetTasks   = "GET_TASKS"
	KindPing       = "PING"
)

// Server → client frame kinds. KindTaskUpdate is shared: the relayed
// mutation keeps the inbound discriminator.
const (
	KindConnected      = "CONNECTED"
	KindInitialTasks   = "INITIAL_TASKS"
	KindRoomTasks      = "ROOM_TASKS"
	KindTasksList      = "TASKS_LIST"
	KindUserJoined     = "USER_JOINED"
	KindUserLeft       = "USER_LEFT"
	KindPong           = "PONG"
	KindError          = "ERROR"
	KindServerShutdown = "SERVER_SHUTDOWN"
)

// Task mutation kinds carried by TASK_UPDATE.
const (
	UpdateCreate = "CREATE"
	UpdateUpdate = "UPDATE"
	UpdateDelete = "DELETE"
)

// Envelope is the minimal decode used to route an inbound frame.
type Envelope struct {
	Type string `json:"type"`
}

type ConnectRequest struct {
	Type     string `json:"type"`
	Username string `json:"username"`
	Room     string `json:"room,omitempty"`
}

type JoinRoomRequest struct {
	Type string `json:"type"`
	Room string `json:"room"`
}

type TaskUpdateRequest struct {
	Type       string      `json:"type"`
	UpdateType string      `json:"updateType"`
	Task       domain.Task `json:"task"`
}

type GetTasksRequest struct {
	Type string `json:"type"`
	Room string `json:"room,omitempty"`
}

// Member is the read-only view of a room participant sent in CONNECTED.
type Member struct {
	Username    string    `json:"username"`
	ConnectedAt time.Time `json:"connectedAt"`
}

type ConnectedReply struct {
	Type           string         `json:"type"`
	ClientID       core.SessionID `json:"clientId"`
	Room           string         `json:"room"`
	ConnectedUsers []Member       `json:"connectedUsers"`
	Timestamp      time.Time      `json:"timestamp"`
}

// TaskListReply serves INITIAL_TASKS, ROOM_TASKS and TASKS_LIST; the
// three differ only in the discriminator.
type TaskListReply struct {
	Type      string        `json:"type"`
	Tasks     []domain.Task `json:"tasks"`
	Room      string        `json:"room"`
	Timestamp time.Time     `json:"timestamp"`
}

// UserEvent serves USER_JOINED and USER_LEFT.
type UserEvent struct {
	Type      string    `json:"type"`
	Username  string    `json:"username"`
	Room      string    `json:"room"`
	Timestamp time.Time `json:"timestamp"`
}

type TaskUpdateEvent struct {
	Type       string      `json:"type"`
	UpdateType string      `json:"updateType"`
	Task       domain.Task `json:"task"`
	UpdatedBy  string      `json:"updatedBy"`
	Room       string      `json:"room"`
	Timestamp  time.Time   `json:"timestamp"`
}

type PongReply struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
}

type ErrorReply struct {
	Type      string    `json:"type"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

type ShutdownNotice struct {
	Type      string    `json:"type"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}
