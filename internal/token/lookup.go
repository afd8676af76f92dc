package token

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/agritoken/stock-adapter/internal/ledger"
	"github.com/agritoken/stock-adapter/pkg/model"
)

// Ownership returns the asset's ownership record.
func (s *Service) Ownership(assetID string) (*model.OwnershipRecord, error) {
	rec, ok := s.reg.Ownership(assetID)
	if !ok {
		return nil, ErrNotFound
	}
	return rec, nil
}

// Metadata returns the asset's metadata record.
func (s *Service) Metadata(assetID string) (*model.MetadataRecord, error) {
	rec, ok := s.reg.Metadata(assetID)
	if !ok {
		return nil, ErrNotFound
	}
	return rec, nil
}

// Balances returns a copy of the asset's local balance table. Between
// reconciliations the figures are advisory, not ledger truth.
func (s *Service) Balances(assetID string) (model.BalanceTable, error) {
	table, ok := s.reg.Balances(assetID)
	if !ok {
		if _, known := s.reg.Ownership(assetID); !known {
			return nil, ErrNotFound
		}
		return model.BalanceTable{}, nil
	}
	return table, nil
}

// AssetInfo queries the ledger's authoritative view of the asset.
func (s *Service) AssetInfo(ctx context.Context, assetID string) (*model.Asset, error) {
	info, err := s.gw.AssetInfo(ctx, assetID)
	if err != nil {
		return nil, fmt.Errorf("asset info lookup failed: %w", err)
	}
	return &model.Asset{
		ID:          info.AssetID,
		Name:        info.Name,
		Symbol:      info.Symbol,
		Precision:   info.Decimals,
		TotalSupply: fromRawUnits(info.TotalSupply, info.Decimals),
		Memo:        info.Memo,
	}, nil
}

// View assembles the combined read model for one asset. The ledger lookup is
// best-effort: local records still serve when the gateway is unreachable.
func (s *Service) View(ctx context.Context, assetID string) (*model.StockView, error) {
	own, ok := s.reg.Ownership(assetID)
	if !ok {
		return nil, ErrNotFound
	}
	md, _ := s.reg.Metadata(assetID)
	balances, _ := s.reg.Balances(assetID)

	view := &model.StockView{
		Ownership: own,
		Metadata:  md,
		Balances:  balances,
	}
	if asset, err := s.AssetInfo(ctx, assetID); err == nil {
		view.Asset = asset
	} else {
		s.logger.Warn("token.view.asset_info_failed",
			zap.String("asset_id", assetID),
			zap.Error(err))
	}
	return view, nil
}

// UpdateMetadata merges attrs into the asset's attribute map.
func (s *Service) UpdateMetadata(assetID string, attrs map[string]string) (*model.MetadataRecord, error) {
	if len(attrs) == 0 {
		return nil, validationf("no attributes to update")
	}

	unlock := s.reg.Lock(assetID)
	defer unlock()

	if !s.reg.MergeMetadata(assetID, attrs) {
		return nil, ErrNotFound
	}
	rec, _ := s.reg.Metadata(assetID)
	return rec, nil
}

// AssociateResult reports an explicit association request.
type AssociateResult struct {
	AssetID           string `json:"asset_id"`
	Account           string `json:"account"`
	AlreadyAssociated bool   `json:"already_associated"`
}

// Associate grants account the capability to hold the asset. From the
// caller's perspective the operation is idempotent: an already-associated
// pair is a success, not an error.
func (s *Service) Associate(ctx context.Context, assetID, account, signingKey string) (*AssociateResult, error) {
	if assetID == "" || account == "" {
		return nil, validationf("asset id and account are required")
	}
	if signingKey == "" {
		return nil, validationf("account signing key is required for association")
	}

	unlock := s.reg.Lock(assetID)
	defer unlock()

	res := &AssociateResult{AssetID: assetID, Account: account}
	_, err := s.gw.AssociateAccount(ctx, account, assetID, signingKey)
	switch {
	case err == nil:
	case ledger.IsAlreadyAssociated(err):
		res.AlreadyAssociated = true
	default:
		return nil, fmt.Errorf("association failed: %w", err)
	}

	s.reg.EnsureBalance(assetID, account)
	return res, nil
}

// OwnedStocks is the owned-assets lookup: it queries the account's ledger
// balances and folds every relationship with a registry-known asset back into
// that asset's balance table. This is the one path that discovers new holder
// accounts.
func (s *Service) OwnedStocks(ctx context.Context, account string) ([]model.Holding, error) {
	if account == "" {
		return nil, validationf("account id is required")
	}

	balances, err := s.gw.AccountBalance(ctx, account)
	if err != nil {
		return nil, fmt.Errorf("account balance lookup failed: %w", err)
	}

	holdings := make([]model.Holding, 0, len(balances))
	for assetID, raw := range balances {
		own, ok := s.reg.Ownership(assetID)
		if !ok {
			continue
		}

		info, err := s.gw.AssetInfo(ctx, assetID)
		if err != nil {
			s.logger.Warn("token.owned.asset_info_failed",
				zap.String("asset_id", assetID),
				zap.Error(err))
			continue
		}
		qty := fromRawUnits(raw, info.Decimals)

		unlock := s.reg.Lock(assetID)
		s.reg.SetBalance(assetID, account, qty)
		unlock()

		holdings = append(holdings, model.Holding{
			AssetID:    assetID,
			Product:    own.ProductName,
			QuantityKg: qty,
			IsOwner:    own.Owner == account,
		})
	}
	return holdings, nil
}
