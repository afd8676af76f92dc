package token

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/agritoken/stock-adapter/internal/audit"
	"github.com/agritoken/stock-adapter/internal/ledger"
	"github.com/agritoken/stock-adapter/internal/metrics"
	"github.com/agritoken/stock-adapter/internal/publisher"
	"github.com/agritoken/stock-adapter/internal/registry"
	"github.com/agritoken/stock-adapter/pkg/model"
	"github.com/agritoken/stock-adapter/pkg/secrets"
)

// Service orchestrates multi-step ledger operations for stock tokens
// (create, mint, burn, sell) as single logical business operations. It holds
// the per-asset lock across each read-modify-write sequence, absorbs the
// recoverable ledger conditions (already-associated, not-associated) into its
// state machine, and updates the local registry only after the corresponding
// ledger step is confirmed. The ledger offers no cross-transaction atomicity,
// so a later step failing never rolls back earlier committed steps; results
// state explicitly which steps succeeded.
type Service struct {
	logger   *zap.Logger
	gw       ledger.Gateway
	reg      registry.Registry
	guard    *Guard
	mirror   *registry.Mirror
	pub      *publisher.Publisher
	journal  *audit.Journal
	treasury secrets.AccountKeys

	// allowTreasuryFallback enables signing a sell with the treasury key when
	// neither counterparty key was supplied. Testing-only; must stay off in
	// production configuration.
	allowTreasuryFallback bool
}

// NewService constructs the transfer orchestrator. mirror, pub, and journal
// are optional and may be nil.
func NewService(
	logger *zap.Logger,
	gw ledger.Gateway,
	reg registry.Registry,
	mirror *registry.Mirror,
	pub *publisher.Publisher,
	journal *audit.Journal,
	treasury secrets.AccountKeys,
	allowTreasuryFallback bool,
) *Service {
	return &Service{
		logger:                logger,
		gw:                    gw,
		reg:                   reg,
		guard:                 NewGuard(reg),
		mirror:                mirror,
		pub:                   pub,
		journal:               journal,
		treasury:              treasury,
		allowTreasuryFallback: allowTreasuryFallback,
	}
}

// CreateRequest carries the parameters of a stock tokenization.
// OwnerSigningKey is required for the optional treasury→owner handover.
type CreateRequest struct {
	ProductName       string
	InitialQuantityKg decimal.Decimal
	OwnerAccount      string
	OwnerSigningKey   string
	Metadata          map[string]string
}

// CreateResult reports the outcome of a Create. Once the asset exists on the
// ledger the operation is a success even if the follow-up transfer failed;
// Transferred and Message carry the partial-failure detail.
type CreateResult struct {
	AssetID     string          `json:"asset_id"`
	Symbol      string          `json:"symbol"`
	Owner       string          `json:"owner"`
	QuantityKg  decimal.Decimal `json:"quantity_kg"`
	Transferred bool            `json:"transferred"`
	Message     string          `json:"message"`
}

// Create tokenizes a product's stock: create-asset with treasury as initial
// holder, then best-effort associate → transfer to the requested owner.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*CreateResult, error) {
	if req.ProductName == "" {
		return nil, validationf("product name is required")
	}
	rawSupply, err := toRawUnits(req.InitialQuantityKg, stockPrecision)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	symbol := deriveSymbol(req.ProductName, now)

	s.logger.Info("token.create.start",
		zap.String("product", req.ProductName),
		zap.String("symbol", symbol),
		zap.String("quantity_kg", req.InitialQuantityKg.String()),
		zap.String("owner", req.OwnerAccount))

	assetID, err := s.gw.CreateAsset(ctx, ledger.CreateAssetRequest{
		Name:          req.ProductName,
		Symbol:        symbol,
		Decimals:      stockPrecision,
		InitialSupply: rawSupply,
		Treasury:      s.treasury.AccountID,
		AdminKey:      s.treasury.AdminKey,
		SupplyKey:     s.treasury.SupplyKey,
		Memo:          buildMemo(req.ProductName),
	})
	if err != nil {
		metrics.IncOperation("create", "error")
		return nil, fmt.Errorf("asset creation failed: %w", err)
	}

	unlock := s.reg.Lock(assetID)
	defer unlock()

	// The asset is committed on the ledger; record it treasury-held first.
	s.reg.PutOwnership(assetID, model.OwnershipRecord{
		Owner:       s.treasury.AccountID,
		ProductName: req.ProductName,
		CreatedAt:   now,
	})
	s.reg.PutMetadata(assetID, model.MetadataRecord{
		Type:       "stock",
		Unit:       "kg",
		Owner:      s.treasury.AccountID,
		CreatedAt:  now,
		Attributes: req.Metadata,
	})
	s.reg.SetBalance(assetID, s.treasury.AccountID, req.InitialQuantityKg)

	res := &CreateResult{
		AssetID:    assetID,
		Symbol:     symbol,
		Owner:      s.treasury.AccountID,
		QuantityKg: req.InitialQuantityKg,
	}

	switch {
	case req.OwnerAccount == "" || req.OwnerAccount == s.treasury.AccountID:
		res.Message = "asset created treasury-held"
	case req.OwnerSigningKey == "":
		res.Message = "asset created treasury-held; owner signing key missing, " +
			"the owner account must be associated with the asset before transfer"
	default:
		s.handOverNewAsset(ctx, assetID, req, res)
	}

	metrics.IncOperation("create", "ok")
	s.snapshot(ctx, assetID)
	s.journal.Record(ctx, audit.Operation{
		Op:         "create",
		AssetID:    assetID,
		ToAccount:  res.Owner,
		QuantityKg: req.InitialQuantityKg,
		Outcome:    "ok",
		Note:       res.Message,
	})
	s.publish(ctx, "stock.created", model.StockEvent{
		AssetID:     assetID,
		Product:     req.ProductName,
		Operation:   "create",
		QuantityKg:  req.InitialQuantityKg.String(),
		ToAccount:   res.Owner,
		Transferred: res.Transferred,
		Note:        res.Message,
	})
	return res, nil
}

// handOverNewAsset runs the associate → transfer tail of Create. Failures are
// folded into res; the creation itself already succeeded and is never undone.
func (s *Service) handOverNewAsset(ctx context.Context, assetID string, req CreateRequest, res *CreateResult) {
	_, err := s.gw.AssociateAccount(ctx, req.OwnerAccount, assetID, req.OwnerSigningKey)
	if err != nil && !ledger.IsAlreadyAssociated(err) {
		s.logger.Warn("token.create.associate_failed",
			zap.String("asset_id", assetID),
			zap.String("owner", req.OwnerAccount),
			zap.Error(err))
		res.Message = fmt.Sprintf("asset created, owner association failed: %v", err)
		return
	}

	_, err = s.gw.Transfer(ctx, ledger.TransferRequest{
		AssetID:     assetID,
		From:        s.treasury.AccountID,
		To:          req.OwnerAccount,
		Amount:      mustRawUnits(req.InitialQuantityKg, stockPrecision),
		SigningKeys: []string{s.treasury.SigningKey},
	})
	if err != nil {
		s.logger.Warn("token.create.transfer_failed",
			zap.String("asset_id", assetID),
			zap.String("owner", req.OwnerAccount),
			zap.Error(err))
		res.Message = fmt.Sprintf("asset created, transfer failed: %v", err)
		return
	}

	s.reg.SetBalance(assetID, s.treasury.AccountID, decimal.Zero)
	s.reg.SetBalance(assetID, req.OwnerAccount, req.InitialQuantityKg)
	if rec, ok := s.reg.Ownership(assetID); ok {
		rec.Owner = req.OwnerAccount
		s.reg.PutOwnership(assetID, *rec)
	}
	if md, ok := s.reg.Metadata(assetID); ok {
		md.Owner = req.OwnerAccount
		s.reg.PutMetadata(assetID, *md)
	}

	res.Owner = req.OwnerAccount
	res.Transferred = true
	res.Message = "asset created and transferred to owner"

	s.logger.Info("token.create.transferred",
		zap.String("asset_id", assetID),
		zap.String("owner", req.OwnerAccount))
}

// MintResult reports a restock. A NOT_ASSOCIATED owner does not fail the
// mint; Transferred=false and Message instruct association instead.
type MintResult struct {
	AssetID     string          `json:"asset_id"`
	MintedKg    decimal.Decimal `json:"minted_kg"`
	Owner       string          `json:"owner"`
	Transferred bool            `json:"transferred"`
	Message     string          `json:"message"`
}

// Mint restocks an asset by quantityKg. The mint lands in treasury; if the
// recorded owner differs, the minted amount is forwarded in a second step.
func (s *Service) Mint(ctx context.Context, assetID string, quantityKg decimal.Decimal, requestingAccount string) (*MintResult, error) {
	if assetID == "" {
		return nil, validationf("asset id is required")
	}
	if !quantityKg.IsPositive() {
		return nil, validationf("quantity must be positive, got %s", quantityKg.String())
	}
	unlock := s.reg.Lock(assetID)
	defer unlock()

	if err := s.guard.Authorize(assetID, requestingAccount); err != nil {
		metrics.IncOperation("mint", "unauthorized")
		return nil, err
	}

	info, err := s.gw.AssetInfo(ctx, assetID)
	if err != nil {
		metrics.IncOperation("mint", "error")
		return nil, fmt.Errorf("asset info lookup failed: %w", err)
	}
	raw, err := toRawUnits(quantityKg, info.Decimals)
	if err != nil {
		return nil, err
	}

	if _, err := s.gw.Mint(ctx, assetID, raw); err != nil {
		metrics.IncOperation("mint", "error")
		return nil, fmt.Errorf("mint failed: %w", err)
	}
	s.reg.AddBalance(assetID, s.treasury.AccountID, quantityKg)

	res := &MintResult{
		AssetID:  assetID,
		MintedKg: quantityKg,
		Owner:    s.treasury.AccountID,
		Message:  "minted to treasury",
	}

	if rec, ok := s.reg.Ownership(assetID); ok && rec.Owner != s.treasury.AccountID {
		res.Owner = rec.Owner
		_, terr := s.gw.Transfer(ctx, ledger.TransferRequest{
			AssetID:     assetID,
			From:        s.treasury.AccountID,
			To:          rec.Owner,
			Amount:      raw,
			SigningKeys: []string{s.treasury.SigningKey},
		})
		switch {
		case terr == nil:
			s.reg.AddBalance(assetID, s.treasury.AccountID, quantityKg.Neg())
			s.reg.AddBalance(assetID, rec.Owner, quantityKg)
			res.Transferred = true
			res.Message = "minted and transferred to owner"
		case ledger.IsNotAssociated(terr):
			// Expected, recoverable: the mint stands in treasury until the
			// owner associates.
			s.logger.Info("token.mint.owner_not_associated",
				zap.String("asset_id", assetID),
				zap.String("owner", rec.Owner))
			res.Message = fmt.Sprintf(
				"minted to treasury; owner account %s is not associated with the asset: associate it, then transfer",
				rec.Owner)
		default:
			metrics.IncOperation("mint", "transfer_error")
			s.journal.Record(ctx, audit.Operation{
				Op:         "mint",
				AssetID:    assetID,
				ToAccount:  rec.Owner,
				QuantityKg: quantityKg,
				Outcome:    "partial",
				Note:       "mint succeeded, transfer to owner failed",
			})
			return nil, fmt.Errorf("mint succeeded, transfer to owner failed: %w", terr)
		}
	}

	metrics.IncOperation("mint", "ok")
	s.snapshot(ctx, assetID)
	s.journal.Record(ctx, audit.Operation{
		Op:         "mint",
		AssetID:    assetID,
		ToAccount:  res.Owner,
		QuantityKg: quantityKg,
		Outcome:    "ok",
		Note:       res.Message,
	})
	s.publish(ctx, "stock.minted", model.StockEvent{
		AssetID:     assetID,
		Operation:   "mint",
		QuantityKg:  quantityKg.String(),
		ToAccount:   res.Owner,
		Transferred: res.Transferred,
		Note:        res.Message,
	})
	return res, nil
}

// BurnResult reports a stock reduction.
type BurnResult struct {
	AssetID           string          `json:"asset_id"`
	BurnedKg          decimal.Decimal `json:"burned_kg"`
	RemainingSupplyKg decimal.Decimal `json:"remaining_supply_kg"`
}

// Burn reduces an asset's stock by quantityKg. The reduction is validated
// against the ledger's total supply before any mutating call; afterwards the
// asset's balances are reconciled from the ledger to correct local drift.
func (s *Service) Burn(ctx context.Context, assetID string, quantityKg decimal.Decimal, requestingAccount string) (*BurnResult, error) {
	if assetID == "" {
		return nil, validationf("asset id is required")
	}
	if !quantityKg.IsPositive() {
		return nil, validationf("quantity must be positive, got %s", quantityKg.String())
	}
	unlock := s.reg.Lock(assetID)
	defer unlock()

	if err := s.guard.Authorize(assetID, requestingAccount); err != nil {
		metrics.IncOperation("burn", "unauthorized")
		return nil, err
	}

	info, err := s.gw.AssetInfo(ctx, assetID)
	if err != nil {
		metrics.IncOperation("burn", "error")
		return nil, fmt.Errorf("asset info lookup failed: %w", err)
	}
	raw, err := toRawUnits(quantityKg, info.Decimals)
	if err != nil {
		return nil, err
	}
	if raw > info.TotalSupply {
		return nil, validationf("burn of %s kg exceeds total supply of %s kg",
			quantityKg.String(), fromRawUnits(info.TotalSupply, info.Decimals).String())
	}

	if _, err := s.gw.Burn(ctx, assetID, raw); err != nil {
		metrics.IncOperation("burn", "error")
		return nil, fmt.Errorf("burn failed: %w", err)
	}

	// Best-effort local estimate, corrected right after by reconciliation.
	owner := s.treasury.AccountID
	if rec, ok := s.reg.Ownership(assetID); ok {
		owner = rec.Owner
	}
	s.reg.AddBalance(assetID, owner, quantityKg.Neg())
	s.refreshLocked(ctx, assetID)

	res := &BurnResult{
		AssetID:           assetID,
		BurnedKg:          quantityKg,
		RemainingSupplyKg: fromRawUnits(info.TotalSupply-raw, info.Decimals),
	}

	metrics.IncOperation("burn", "ok")
	s.snapshot(ctx, assetID)
	s.journal.Record(ctx, audit.Operation{
		Op:          "burn",
		AssetID:     assetID,
		FromAccount: owner,
		QuantityKg:  quantityKg,
		Outcome:     "ok",
	})
	s.publish(ctx, "stock.burned", model.StockEvent{
		AssetID:     assetID,
		Operation:   "burn",
		QuantityKg:  quantityKg.String(),
		FromAccount: owner,
	})
	return res, nil
}

// SellRequest carries a sale transfer. At least one of the two signing keys
// must be present; the transfer must be authorizable by a counterparty.
type SellRequest struct {
	AssetID          string
	QuantityKg       decimal.Decimal
	Seller           string
	SellerSigningKey string
	Buyer            string
	BuyerSigningKey  string
}

// SellResult reports a sale. OwnershipTransferred is set only when the sale
// covered the asset's full total supply.
type SellResult struct {
	AssetID              string          `json:"asset_id"`
	Seller               string          `json:"seller"`
	Buyer                string          `json:"buyer"`
	QuantityKg           decimal.Decimal `json:"quantity_kg"`
	OwnershipTransferred bool            `json:"ownership_transferred"`
	Message              string          `json:"message"`
}

// Sell moves quantityKg from seller to buyer in a single ledger transfer.
// Ownership follows a complete sale only: if the quantity equals the asset's
// total supply (re-queried immediately before the decision), the recorded
// owner flips to the buyer; partial sales never change ownership.
func (s *Service) Sell(ctx context.Context, req SellRequest) (*SellResult, error) {
	if req.AssetID == "" {
		return nil, validationf("asset id is required")
	}
	if req.Seller == "" || req.Buyer == "" {
		return nil, validationf("seller and buyer accounts are required")
	}
	if !req.QuantityKg.IsPositive() {
		return nil, validationf("quantity must be positive, got %s", req.QuantityKg.String())
	}
	if req.Seller == req.Buyer {
		return nil, validationf("seller and buyer must differ")
	}
	if req.SellerSigningKey == "" && req.BuyerSigningKey == "" && !s.allowTreasuryFallback {
		return nil, validationf("at least one of seller or buyer signing key is required")
	}

	unlock := s.reg.Lock(req.AssetID)
	defer unlock()

	rec, ok := s.reg.Ownership(req.AssetID)
	if !ok {
		return nil, ErrNotFound
	}
	if rec.Owner != req.Seller {
		metrics.IncOperation("sell", "unauthorized")
		return nil, &AuthorizationError{AssetID: req.AssetID, Account: req.Seller}
	}

	s.reg.EnsureBalance(req.AssetID, req.Seller)
	s.reg.EnsureBalance(req.AssetID, req.Buyer)

	if req.BuyerSigningKey != "" {
		if err := s.ensureBuyerAssociated(ctx, req); err != nil {
			metrics.IncOperation("sell", "associate_error")
			return nil, err
		}
	}

	info, err := s.gw.AssetInfo(ctx, req.AssetID)
	if err != nil {
		metrics.IncOperation("sell", "error")
		return nil, fmt.Errorf("asset info lookup failed: %w", err)
	}
	raw, err := toRawUnits(req.QuantityKg, info.Decimals)
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, 2)
	if req.SellerSigningKey != "" {
		keys = append(keys, req.SellerSigningKey)
	}
	if req.BuyerSigningKey != "" {
		keys = append(keys, req.BuyerSigningKey)
	}
	if len(keys) == 0 {
		// Testing-only escape hatch: signing a customer transfer with the
		// operator key is unsafe and gated off in production config.
		s.logger.Warn("token.sell.treasury_fallback_signing",
			zap.String("asset_id", req.AssetID),
			zap.String("seller", req.Seller),
			zap.String("buyer", req.Buyer))
		keys = append(keys, s.treasury.SigningKey)
	}

	if _, err := s.gw.Transfer(ctx, ledger.TransferRequest{
		AssetID:     req.AssetID,
		From:        req.Seller,
		To:          req.Buyer,
		Amount:      raw,
		SigningKeys: keys,
	}); err != nil {
		metrics.IncOperation("sell", "error")
		return nil, fmt.Errorf("sale transfer failed: %w", err)
	}

	s.reg.AddBalance(req.AssetID, req.Seller, req.QuantityKg.Neg())
	s.reg.AddBalance(req.AssetID, req.Buyer, req.QuantityKg)

	res := &SellResult{
		AssetID:    req.AssetID,
		Seller:     req.Seller,
		Buyer:      req.Buyer,
		QuantityKg: req.QuantityKg,
		Message:    "partial sale; ownership unchanged",
	}

	// Fresh supply read for the ownership decision: a concurrent mint/burn
	// could have moved total supply since the transfer was sized.
	if fresh, err := s.gw.AssetInfo(ctx, req.AssetID); err != nil {
		s.logger.Warn("token.sell.supply_recheck_failed",
			zap.String("asset_id", req.AssetID),
			zap.Error(err))
		res.Message = "sale complete; ownership decision skipped (total supply unavailable)"
	} else if req.QuantityKg.Equal(fromRawUnits(fresh.TotalSupply, fresh.Decimals)) {
		now := time.Now().UTC()
		s.reg.SetOwner(req.AssetID, req.Buyer, now)
		res.OwnershipTransferred = true
		res.Message = "full-supply sale; ownership transferred to buyer"
		s.logger.Info("token.sell.ownership_transferred",
			zap.String("asset_id", req.AssetID),
			zap.String("from", req.Seller),
			zap.String("to", req.Buyer))
	}

	metrics.IncOperation("sell", "ok")
	s.snapshot(ctx, req.AssetID)
	s.journal.Record(ctx, audit.Operation{
		Op:          "sell",
		AssetID:     req.AssetID,
		FromAccount: req.Seller,
		ToAccount:   req.Buyer,
		QuantityKg:  req.QuantityKg,
		Outcome:     "ok",
		Note:        res.Message,
	})
	s.publish(ctx, "stock.sold", model.StockEvent{
		AssetID:     req.AssetID,
		Operation:   "sell",
		QuantityKg:  req.QuantityKg.String(),
		FromAccount: req.Seller,
		ToAccount:   req.Buyer,
		Transferred: res.OwnershipTransferred,
		Note:        res.Message,
	})
	return res, nil
}

// ensureBuyerAssociated checks the buyer's ledger relationship with the asset
// and associates it if missing. Already-associated is swallowed; any other
// associate failure aborts the sale before funds move.
func (s *Service) ensureBuyerAssociated(ctx context.Context, req SellRequest) error {
	if balances, err := s.gw.AccountBalance(ctx, req.Buyer); err == nil {
		if _, associated := balances[req.AssetID]; associated {
			return nil
		}
	} else {
		s.logger.Warn("token.sell.relationship_check_failed",
			zap.String("asset_id", req.AssetID),
			zap.String("buyer", req.Buyer),
			zap.Error(err))
	}

	_, err := s.gw.AssociateAccount(ctx, req.Buyer, req.AssetID, req.BuyerSigningKey)
	if err != nil && !ledger.IsAlreadyAssociated(err) {
		return fmt.Errorf("buyer association failed: %w", err)
	}
	return nil
}

// snapshot mirrors the asset's current local state to Redis. Nil-safe.
func (s *Service) snapshot(ctx context.Context, assetID string) {
	if s.mirror == nil {
		return
	}
	own, _ := s.reg.Ownership(assetID)
	balances, _ := s.reg.Balances(assetID)
	s.mirror.Snapshot(ctx, assetID, own, balances)
}

// publish emits a stock event. Publish failures are warnings only.
func (s *Service) publish(ctx context.Context, eventType string, evt model.StockEvent) {
	if s.pub == nil {
		return
	}
	_ = s.pub.PublishStock(ctx, eventType, evt)
}

// mustRawUnits is used where the quantity was already validated at the same
// precision earlier in the flow.
func mustRawUnits(qty decimal.Decimal, precision uint32) int64 {
	raw, err := toRawUnits(qty, precision)
	if err != nil {
		return qty.Shift(int32(precision)).IntPart()
	}
	return raw
}
