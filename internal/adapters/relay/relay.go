// Package relay is the WebSocket transport adapter: it upgrades HTTP
// connections, runs the read/write pumps and translates frames into
// broker operations.
package relay

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/taskwire/relay/internal/app"
	"github.com/taskwire/relay/internal/config"
	"github.com/taskwire/relay/internal/core"
)

var ErrBackpressure = errors.New("backpressure")

const writeWait = 5 * time.Second

type Controller struct {
	Broker  *app.Broker
	Limiter *ClientRateLimiter

	readLimit  int64
	sendBuffer int
}

func NewController(b *app.Broker, cfg *config.Config) *Controller {
	return &Controller{
		Broker:     b,
		Limiter:    NewClientRateLimiter(cfg.RateLimit, cfg.RateWindow),
		readLimit:  cfg.ReadLimit,
		sendBuffer: cfg.SendBuffer,
	}
}

// WsConn wraps one websocket with a buffered outbound queue. TrySend
// never blocks: a full queue counts as a failed delivery.
type WsConn struct {
	conn *websocket.Conn
	send chan core.Frame
	done chan struct{} // closed when the write pump exits

	mu     sync.RWMutex
	closed bool
}

func newWsConn(ws *websocket.Conn, sendBuffer int) *WsConn {
	return &WsConn{
		conn: ws,
		send: make(chan core.Frame, sendBuffer),
		done: make(chan struct{}),
	}
}

func (c *WsConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return errors.New("connection closed")
	}
	select {
	case c.send <- f:
	default:
		return ErrBackpressure
	}
	return nil
}

// Ping sends a websocket control ping. Safe to call concurrently with
// the write pump; gorilla serializes control frames.
func (c *WsConn) Ping() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return errors.New("connection closed")
	}
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

// Close stops accepting frames, lets the write pump flush whatever is
// still queued (a shutdown notice in particular) and then closes the
// socket. The wait is bounded by the write deadline so a dead peer
// cannot stall teardown.
func (c *WsConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	c.mu.Unlock()

	select {
	case <-c.done:
	case <-time.After(writeWait):
	}
	_ = c.conn.Close()
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleRelay upgrades the request and starts the pumps. The client
// token cookie only correlates reconnects in logs; the broker identity
// is fresh per connection.
func (ctl *Controller) HandleRelay(ctx context.Context, c *gin.Context) {
	token := c.GetString("client_token")
	log.Info().Str("module", "relay").Str("client_token", token).Msg("new WS connection")

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "relay").Msg("ws upgrade")
		return
	}
	if ctl.readLimit > 0 {
		ws.SetReadLimit(ctl.readLimit)
	}

	conn := newWsConn(ws, ctl.sendBuffer)

	ctx, cancel := context.WithCancel(ctx)
	sid := ctl.Broker.Connect(conn, cancel)

	ws.SetPongHandler(func(string) error {
		ctl.Broker.MarkAlive(sid)
		return nil
	})

	go ctl.writePump(ctx, conn)
	go ctl.readPump(ctx, sid, conn)
}
