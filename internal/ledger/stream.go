package ledger

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Stream subscribes to the gateway's transaction feed over websocket and
// invokes the handler for every token transaction event. It is an optional
// fast path for reconciliation; the periodic refresher remains the fallback.
type Stream struct {
	logger  *zap.Logger
	url     string
	token   string
	handler func(StreamEvent)
}

// NewStream constructs a websocket subscriber against wsURL.
func NewStream(logger *zap.Logger, wsURL, token string, handler func(StreamEvent)) *Stream {
	return &Stream{
		logger:  logger,
		url:     wsURL,
		token:   token,
		handler: handler,
	}
}

// Run connects and reads events until ctx is canceled, reconnecting with a
// capped backoff on any failure.
func (s *Stream) Run(ctx context.Context) {
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return
		}

		if err := s.readLoop(ctx); err != nil && ctx.Err() == nil {
			s.logger.Warn("ledger.stream_disconnected",
				zap.Error(err),
				zap.Duration("reconnect_in", backoff))
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		if backoff < 30*time.Second {
			backoff *= 2
		}
	}
}

func (s *Stream) readLoop(ctx context.Context) error {
	header := map[string][]string{"Authorization": {"Bearer " + s.token}}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.url, header)
	if err != nil {
		return err
	}
	defer conn.Close() //nolint:errcheck

	s.logger.Info("ledger.stream_connected", zap.String("url", s.url))

	// Close the socket when ctx ends so ReadMessage unblocks. done releases
	// the watcher once this connection is finished, so a reconnecting stream
	// does not accumulate one parked goroutine per dial.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		var evt StreamEvent
		if err := json.Unmarshal(data, &evt); err != nil {
			s.logger.Warn("ledger.stream_decode_failed",
				zap.Error(err),
				zap.ByteString("payload", data))
			continue
		}
		if evt.AssetID == "" {
			continue
		}
		s.handler(evt)
	}
}
