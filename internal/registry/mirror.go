package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/agritoken/stock-adapter/pkg/model"
)

// Mirror pushes advisory snapshots of an asset's local state to Redis so
// external readers (dashboards, other services) can see it without calling
// this service. The mirror is never read back as an authority; the in-memory
// registry and, ultimately, the ledger stay the source of truth.
type Mirror struct {
	redis  *redis.Client
	logger *zap.Logger
	ttl    time.Duration
}

type snapshot struct {
	Ownership *model.OwnershipRecord `json:"ownership,omitempty"`
	Balances  model.BalanceTable     `json:"balances,omitempty"`
	UpdatedAt time.Time              `json:"updated_at"`
}

// NewMirror connects to Redis and verifies the connection.
func NewMirror(addr string, db int, ttl time.Duration, logger *zap.Logger) (*Mirror, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	rdb := redis.NewClient(&redis.Options{Addr: addr, DB: db})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return &Mirror{redis: rdb, logger: logger, ttl: ttl}, nil
}

// Snapshot writes the asset's current ownership and balances under
// stock:{assetID}. Failures are logged, never propagated; a missed snapshot
// just means a staler mirror.
func (m *Mirror) Snapshot(ctx context.Context, assetID string, own *model.OwnershipRecord, balances model.BalanceTable) {
	if m == nil {
		return
	}
	data, err := json.Marshal(snapshot{
		Ownership: own,
		Balances:  balances,
		UpdatedAt: time.Now().UTC(),
	})
	if err != nil {
		m.logger.Warn("mirror.marshal_failed", zap.String("asset_id", assetID), zap.Error(err))
		return
	}
	if err := m.redis.Set(ctx, "stock:"+assetID, data, m.ttl).Err(); err != nil {
		m.logger.Warn("mirror.set_failed", zap.String("asset_id", assetID), zap.Error(err))
	}
}

// Read returns a previously written snapshot, or nil if absent or expired.
func (m *Mirror) Read(ctx context.Context, assetID string) (*model.OwnershipRecord, model.BalanceTable, error) {
	if m == nil {
		return nil, nil, nil
	}
	data, err := m.redis.Get(ctx, "stock:"+assetID).Bytes()
	if err == redis.Nil {
		return nil, nil, nil
	} else if err != nil {
		return nil, nil, err
	}
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, nil, err
	}
	return snap.Ownership, snap.Balances, nil
}

func (m *Mirror) Close() error {
	if m == nil || m.redis == nil {
		return nil
	}
	return m.redis.Close()
}
