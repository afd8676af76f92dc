package ledger

import (
	"context"
	"net/http"
	"net/http/httptest"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var testUpgrader = websocket.Upgrader{}

// newStreamServer runs a websocket endpoint driven by serve per connection.
func newStreamServer(t *testing.T, serve func(conn *websocket.Conn)) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		serve(conn)
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestStream_DeliversEvents(t *testing.T) {
	url := newStreamServer(t, func(conn *websocket.Conn) {
		_ = conn.WriteJSON(StreamEvent{Type: "TOKEN_TRANSFER", AssetID: "0.0.7001"})
		// Malformed and asset-less payloads must be skipped, not delivered.
		_ = conn.WriteMessage(websocket.TextMessage, []byte("not json"))
		_ = conn.WriteJSON(StreamEvent{Type: "TOKEN_MINT"})
		_ = conn.WriteJSON(StreamEvent{Type: "TOKEN_MINT", AssetID: "0.0.7002"})
		time.Sleep(100 * time.Millisecond)
	})

	events := make(chan StreamEvent, 4)
	stream := NewStream(zap.NewNop(), url, "test-token", func(evt StreamEvent) {
		events <- evt
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	// readLoop ends with the server dropping the connection.
	require.Error(t, stream.readLoop(ctx))

	got := []StreamEvent{<-events, <-events}
	assert.Equal(t, "0.0.7001", got[0].AssetID)
	assert.Equal(t, "0.0.7002", got[1].AssetID)
	select {
	case evt := <-events:
		t.Fatalf("unexpected extra event: %+v", evt)
	default:
	}
}

func TestStream_WatcherExitsWithConnection(t *testing.T) {
	url := newStreamServer(t, func(conn *websocket.Conn) {
		// Drop the connection immediately, as a flapping gateway would.
	})

	stream := NewStream(zap.NewNop(), url, "test-token", func(StreamEvent) {})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	before := runtime.NumGoroutine()
	for i := 0; i < 10; i++ {
		_ = stream.readLoop(ctx)
	}

	// Each cycle's ctx watcher must be released when its connection dies,
	// not pile up until ctx cancellation.
	require.Eventually(t, func() bool {
		return runtime.NumGoroutine() <= before+2
	}, 2*time.Second, 20*time.Millisecond,
		"goroutines grew from %d to %d across reconnect cycles", before, runtime.NumGoroutine())
}
