package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Envelope is the canonical event wrapper published to NATS.
type Envelope struct {
	ID            uuid.UUID       `json:"id"`
	CorrelationID uuid.UUID       `json:"correlation_id"`
	Topic         string          `json:"topic"`
	EventType     string          `json:"event_type"`
	Version       string          `json:"version"`
	Timestamp     time.Time       `json:"timestamp"`
	Payload       json.RawMessage `json:"payload,omitempty"`
}

// StockEvent is the payload carried by evt.stock.* subjects.
type StockEvent struct {
	AssetID     string `json:"asset_id"`
	Product     string `json:"product,omitempty"`
	Operation   string `json:"operation"`
	QuantityKg  string `json:"quantity_kg,omitempty"`
	FromAccount string `json:"from_account,omitempty"`
	ToAccount   string `json:"to_account,omitempty"`
	Transferred bool   `json:"transferred,omitempty"`
	Note        string `json:"note,omitempty"`
}
