package relay

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/taskwire/relay/internal/app"
	"github.com/taskwire/relay/internal/core"
	"github.com/taskwire/relay/internal/domain"
	"github.com/taskwire/relay/internal/protocol"
)

// handleFrame routes one inbound frame. Parse failures and handler
// errors degrade to an ERROR reply; the connection always stays open.
func (ctl *Controller) handleFrame(sid core.SessionID, c core.Conn, data []byte) {
	var env protocol.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		log.Warn().Err(err).Str("module", "relay").Str("sid", string(sid)).Msg("bad json")
		ctl.sendError(c, "invalid message format")
		return
	}

	switch env.Type {
	case protocol.KindConnect:
		ctl.handleConnect(sid, c, data)
	case protocol.KindJoinRoom:
		ctl.handleJoinRoom(sid, c, data)
	case protocol.KindTaskUpdate:
		ctl.handleTaskUpdate(sid, c, data)
	case protocol.KindGetTasks:
		ctl.handleGetTasks(sid, c, data)
	case protocol.KindPing:
		ctl.handlePing(sid, c)
	default:
		log.Warn().Str("module", "relay").Str("type", env.Type).Msg("unknown message type")
		ctl.sendError(c, "unknown message type: "+env.Type)
	}
}

// handleConnect performs the initial join. Reply order matters to the
// client: the task snapshot first, then the welcome frame.
func (ctl *Controller) handleConnect(sid core.SessionID, c core.Conn, data []byte) {
	var p protocol.ConnectRequest
	if err := json.Unmarshal(data, &p); err != nil {
		log.Warn().Err(err).Str("module", "relay").Msg("bad connect payload")
		ctl.sendError(c, "invalid message format")
		return
	}

	res, err := ctl.Broker.Join(sid, domain.RoomName(p.Room), p.Username)
	if err != nil {
		ctl.sendError(c, err.Error())
		return
	}
	log.Info().Str("module", "relay").Str("sid", string(sid)).Str("room", string(res.Room)).Str("username", p.Username).Msg("connect")

	ctl.sendJSON(c, protocol.TaskListReply{
		Type:      protocol.KindInitialTasks,
		Tasks:     res.Tasks,
		Room:      string(res.Room),
		Timestamp: time.Now(),
	})
	ctl.sendJSON(c, protocol.ConnectedReply{
		Type:           protocol.KindConnected,
		ClientID:       sid,
		Room:           string(res.Room),
		ConnectedUsers: res.Members,
		Timestamp:      time.Now(),
	})
}

func (ctl *Controller) handleJoinRoom(sid core.SessionID, c core.Conn, data []byte) {
	if !ctl.Broker.Joined(sid) {
		ctl.sendError(c, app.ErrNotRegistered.Error())
		return
	}
	var p protocol.JoinRoomRequest
	if err := json.Unmarshal(data, &p); err != nil {
		log.Warn().Err(err).Str("module", "relay").Msg("bad join payload")
		ctl.sendError(c, "invalid message format")
		return
	}

	res, err := ctl.Broker.Join(sid, domain.RoomName(p.Room), "")
	if err != nil {
		ctl.sendError(c, err.Error())
		return
	}
	log.Info().Str("module", "relay").Str("sid", string(sid)).Str("room", string(res.Room)).Msg("switched room")

	ctl.sendJSON(c, protocol.TaskListReply{
		Type:      protocol.KindRoomTasks,
		Tasks:     res.Tasks,
		Room:      string(res.Room),
		Timestamp: time.Now(),
	})
}

func (ctl *Controller) handleTaskUpdate(sid core.SessionID, c core.Conn, data []byte) {
	var p protocol.TaskUpdateRequest
	if err := json.Unmarshal(data, &p); err != nil {
		log.Warn().Err(err).Str("module", "relay").Msg("bad task payload")
		ctl.sendError(c, "invalid message format")
		return
	}
	if !ctl.Broker.Joined(sid) {
		ctl.sendError(c, app.ErrNotRegistered.Error())
		return
	}
	// Only well-formed mutations from joined clients consume the window.
	if !ctl.Limiter.Allow(sid) {
		log.Warn().Str("module", "relay").Str("sid", string(sid)).Msg("rate limited")
		ctl.sendError(c, "rate limit exceeded")
		return
	}

	if err := ctl.Broker.ApplyTaskUpdate(sid, p.UpdateType, p.Task); err != nil {
		if errors.Is(err, app.ErrUnknownUpdate) {
			ctl.sendError(c, "unknown update type: "+p.UpdateType)
			return
		}
		ctl.sendError(c, err.Error())
	}
}

func (ctl *Controller) handleGetTasks(sid core.SessionID, c core.Conn, data []byte) {
	var p protocol.GetTasksRequest
	if err := json.Unmarshal(data, &p); err != nil {
		log.Warn().Err(err).Str("module", "relay").Msg("bad get_tasks payload")
		ctl.sendError(c, "invalid message format")
		return
	}

	tasks, room, err := ctl.Broker.TasksFor(sid, domain.RoomName(p.Room))
	if err != nil {
		ctl.sendError(c, err.Error())
		return
	}
	ctl.sendJSON(c, protocol.TaskListReply{
		Type:      protocol.KindTasksList,
		Tasks:     tasks,
		Room:      string(room),
		Timestamp: time.Now(),
	})
}

// handlePing answers the application heartbeat. A client able to send a
// frame is observably live, so it also refreshes the liveness flag.
func (ctl *Controller) handlePing(sid core.SessionID, c core.Conn) {
	ctl.Broker.MarkAlive(sid)
	ctl.sendJSON(c, protocol.PongReply{
		Type:      protocol.KindPong,
		Timestamp: time.Now(),
	})
}
