package token

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/agritoken/stock-adapter/internal/ledger"
	"github.com/agritoken/stock-adapter/internal/metrics"
	"github.com/agritoken/stock-adapter/pkg/model"
)

// Refresh re-derives the asset's balance table from the ledger: every account
// currently known to hold a relationship with the asset is re-queried and its
// local entry overwritten with the ledger-derived quantity. The refresh is
// best-effort and partial: an account that cannot be queried keeps its prior
// local value, logged as a warning. Refresh never discovers new holder
// accounts; discovery happens only through association, transfers, or the
// owned-assets lookup.
func (s *Service) Refresh(ctx context.Context, assetID string) error {
	if assetID == "" {
		return validationf("asset id is required")
	}
	if _, ok := s.reg.Ownership(assetID); !ok {
		return ErrNotFound
	}

	unlock := s.reg.Lock(assetID)
	defer unlock()

	s.refreshLocked(ctx, assetID)
	s.snapshot(ctx, assetID)
	s.publish(ctx, "stock.refreshed", model.StockEvent{
		AssetID:   assetID,
		Operation: "refresh",
	})
	return nil
}

// refreshLocked is the reconciliation pass; the caller holds the asset lock.
func (s *Service) refreshLocked(ctx context.Context, assetID string) {
	accounts := s.reg.Accounts(assetID)
	if len(accounts) == 0 {
		return
	}

	info, err := s.gw.AssetInfo(ctx, assetID)
	if err != nil {
		// Without the declared precision no raw amount can be converted;
		// the whole table stays as-is until the next pass.
		s.logger.Warn("token.refresh.asset_info_failed",
			zap.String("asset_id", assetID),
			zap.Error(err))
		metrics.RefreshAccountFailures.WithLabelValues(assetID).Add(float64(len(accounts)))
		return
	}

	for _, account := range accounts {
		balances, err := s.gw.AccountBalance(ctx, account)
		if err != nil {
			s.logger.Warn("token.refresh.account_failed",
				zap.String("asset_id", assetID),
				zap.String("account", account),
				zap.Error(err))
			metrics.RefreshAccountFailures.WithLabelValues(assetID).Inc()
			continue
		}
		// A missing relationship reads as zero holdings.
		raw := balances[assetID]
		s.reg.SetBalance(assetID, account, fromRawUnits(raw, info.Decimals))
	}

	s.logger.Debug("token.refresh.complete",
		zap.String("asset_id", assetID),
		zap.Int("accounts", len(accounts)))
}

// HandleStreamEvent reacts to a ledger transaction feed event by refreshing
// the touched asset, if this service tracks it.
func (s *Service) HandleStreamEvent(ctx context.Context, evt ledger.StreamEvent) {
	if _, ok := s.reg.Ownership(evt.AssetID); !ok {
		return
	}
	s.logger.Debug("token.stream_refresh",
		zap.String("asset_id", evt.AssetID),
		zap.String("type", evt.Type))
	if err := s.Refresh(ctx, evt.AssetID); err != nil {
		s.logger.Warn("token.stream_refresh_failed",
			zap.String("asset_id", evt.AssetID),
			zap.Error(err))
	}
}

// Refresher periodically reconciles every registry-known asset against the
// ledger.
type Refresher struct {
	logger   *zap.Logger
	service  *Service
	interval time.Duration
}

func NewRefresher(logger *zap.Logger, service *Service, interval time.Duration) *Refresher {
	return &Refresher{
		logger:   logger,
		service:  service,
		interval: interval,
	}
}

// Start runs an immediate pass, then ticks until ctx is canceled.
func (r *Refresher) Start(ctx context.Context) {
	r.logger.Info("token.refresher_started",
		zap.Duration("interval", r.interval))

	r.refreshAll(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.refreshAll(ctx)
		case <-ctx.Done():
			r.logger.Info("token.refresher_stopped")
			return
		}
	}
}

func (r *Refresher) refreshAll(ctx context.Context) {
	for _, assetID := range r.service.reg.Assets() {
		if ctx.Err() != nil {
			return
		}
		if err := r.service.Refresh(ctx, assetID); err != nil {
			r.logger.Warn("token.refresher.asset_failed",
				zap.String("asset_id", assetID),
				zap.Error(err))
		}
	}
}
