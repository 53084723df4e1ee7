package relay

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskwire/relay/internal/app"
	"github.com/taskwire/relay/internal/config"
	"github.com/taskwire/relay/internal/protocol"
)

// The shutdown notice is queued through the normal send path; closing
// the connection must not race the write pump out of flushing it.
func TestShutdownNoticeReachesClient(t *testing.T) {
	broker := app.NewBroker()
	ctl := NewController(broker, &config.Config{
		RateLimit:  100,
		RateWindow: time.Minute,
		SendBuffer: 32,
	})

	accepted := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		conn := newWsConn(ws, 32)
		ctx, cancel := context.WithCancel(context.Background())
		sid := broker.Connect(conn, cancel)
		go ctl.writePump(ctx, conn)
		go ctl.readPump(ctx, sid, conn)
		close(accepted)
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer client.Close()

	select {
	case <-accepted:
	case <-time.After(2 * time.Second):
		t.Fatal("server never registered the connection")
	}

	broker.Shutdown("server is shutting down")

	require.NoError(t, client.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := client.ReadMessage()
	require.NoError(t, err, "notice must arrive before the close")

	var notice protocol.ShutdownNotice
	require.NoError(t, json.Unmarshal(data, &notice))
	assert.Equal(t, protocol.KindServerShutdown, notice.Type)
	assert.Equal(t, "server is shutting down", notice.Message)

	// After the notice the server side is gone: the next read fails.
	require.NoError(t, client.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err = client.ReadMessage()
	assert.Error(t, err)
}
