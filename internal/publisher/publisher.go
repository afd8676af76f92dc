package publisher

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/agritoken/stock-adapter/internal/metrics"
	"github.com/agritoken/stock-adapter/pkg/logger"
	"github.com/agritoken/stock-adapter/pkg/model"
)

// Publisher wraps a NATS connection and provides helpers for publishing
// canonical stock events.
type Publisher struct {
	nc      *nats.Conn
	js      nats.JetStreamContext
	service string
}

// New creates a new Publisher with JetStream enabled.
func New(nc *nats.Conn, service string) (*Publisher, error) {
	js, err := nc.JetStream()
	if err != nil {
		return nil, err
	}
	return &Publisher{
		nc:      nc,
		js:      js,
		service: service,
	}, nil
}

// PublishStock emits a canonical stock event, e.g. eventType "stock.minted"
// on subject evt.stock.minted.v1. Failures are reported to the caller but are
// expected to be treated as warnings; the ledger and registry state already
// reflect the operation.
func (p *Publisher) PublishStock(ctx context.Context, eventType string, evt model.StockEvent) error {
	if p == nil {
		return nil
	}
	subject := "evt." + eventType + ".v1"

	payload, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	env := &model.Envelope{
		ID:            uuid.New(),
		CorrelationID: uuid.New(),
		Topic:         subject,
		EventType:     eventType,
		Version:       "1.0.0",
		Timestamp:     time.Now().UTC(),
		Payload:       payload,
	}

	data, err := json.Marshal(env)
	if err != nil {
		return err
	}

	msg := &nats.Msg{
		Subject: subject,
		Data:    data,
		Header: nats.Header{
			"event_type":     []string{eventType},
			"correlation_id": []string{env.CorrelationID.String()},
			"service":        []string{p.service},
			"content_type":   []string{"application/json"},
		},
	}

	if _, err := p.js.PublishMsg(msg); err != nil {
		logger.S().Warnw("publisher.publish_failed",
			"subject", subject,
			"event_type", eventType,
			"asset_id", evt.AssetID,
			"error", err,
		)
		metrics.NATSPublishErrors.WithLabelValues(subject).Inc()
		return err
	}

	logger.S().Debugw("publisher.publish_success",
		"subject", subject,
		"event_type", eventType,
		"asset_id", evt.AssetID,
	)
	return nil
}

func (p *Publisher) Close() {
	if p != nil && p.nc != nil && p.nc.IsConnected() {
		p.nc.Close()
	}
}
