package token

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/agritoken/stock-adapter/internal/ledger"
	"github.com/agritoken/stock-adapter/internal/registry"
	"github.com/agritoken/stock-adapter/pkg/secrets"
)

const testTreasury = "0.0.98"

// fakeGateway is an in-memory ledger standing in for the real gateway. It
// models associations, balances, and supply so the orchestrator's state
// machine can be exercised end to end, and exposes error injection points for
// the failure paths.
type fakeGateway struct {
	mu           sync.Mutex
	nextID       int
	assets       map[string]*ledger.AssetInfo
	associations map[string]map[string]bool  // assetID -> account -> associated
	balances     map[string]map[string]int64 // assetID -> account -> raw units
	calls        []string

	createErr         error
	mintErr           error
	burnErr           error
	transferErr       error
	assetInfoErr      error
	associateErr      map[string]error // per-account override
	accountBalanceErr map[string]error // per-account override
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		nextID:            5000,
		assets:            make(map[string]*ledger.AssetInfo),
		associations:      make(map[string]map[string]bool),
		balances:          make(map[string]map[string]int64),
		associateErr:      make(map[string]error),
		accountBalanceErr: make(map[string]error),
	}
}

func alreadyAssociatedErr() error {
	return &ledger.GatewayError{HTTPStatus: 400, Code: "TOKEN_ALREADY_ASSOCIATED_TO_ACCOUNT"}
}

func notAssociatedErr() error {
	return &ledger.GatewayError{HTTPStatus: 400, Code: "TOKEN_NOT_ASSOCIATED_TO_ACCOUNT"}
}

func (f *fakeGateway) record(call string) {
	f.calls = append(f.calls, call)
}

func (f *fakeGateway) CreateAsset(_ context.Context, req ledger.CreateAssetRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("create")
	if f.createErr != nil {
		return "", f.createErr
	}

	f.nextID++
	id := fmt.Sprintf("0.0.%d", f.nextID)
	f.assets[id] = &ledger.AssetInfo{
		AssetID:     id,
		Name:        req.Name,
		Symbol:      req.Symbol,
		Decimals:    req.Decimals,
		TotalSupply: req.InitialSupply,
		Memo:        req.Memo,
	}
	f.associations[id] = map[string]bool{req.Treasury: true}
	f.balances[id] = map[string]int64{req.Treasury: req.InitialSupply}
	return id, nil
}

func (f *fakeGateway) Mint(_ context.Context, assetID string, amount int64) (*ledger.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("mint")
	if f.mintErr != nil {
		return nil, f.mintErr
	}
	info := f.assets[assetID]
	info.TotalSupply += amount
	f.balances[assetID][testTreasury] += amount
	return &ledger.Receipt{Status: "SUCCESS"}, nil
}

func (f *fakeGateway) Burn(_ context.Context, assetID string, amount int64) (*ledger.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("burn")
	if f.burnErr != nil {
		return nil, f.burnErr
	}
	info := f.assets[assetID]
	info.TotalSupply -= amount
	f.balances[assetID][testTreasury] -= amount
	return &ledger.Receipt{Status: "SUCCESS"}, nil
}

func (f *fakeGateway) AssociateAccount(_ context.Context, accountID, assetID, _ string) (*ledger.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("associate:" + accountID)
	if err := f.associateErr[accountID]; err != nil {
		return nil, err
	}
	if f.associations[assetID][accountID] {
		return nil, alreadyAssociatedErr()
	}
	f.associations[assetID][accountID] = true
	f.balances[assetID][accountID] = 0
	return &ledger.Receipt{Status: "SUCCESS"}, nil
}

func (f *fakeGateway) Transfer(_ context.Context, req ledger.TransferRequest) (*ledger.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("transfer")
	if f.transferErr != nil {
		return nil, f.transferErr
	}
	if !f.associations[req.AssetID][req.To] {
		return nil, notAssociatedErr()
	}
	if f.balances[req.AssetID][req.From] < req.Amount {
		return nil, &ledger.GatewayError{HTTPStatus: 400, Code: "INSUFFICIENT_TOKEN_BALANCE"}
	}
	f.balances[req.AssetID][req.From] -= req.Amount
	f.balances[req.AssetID][req.To] += req.Amount
	return &ledger.Receipt{Status: "SUCCESS"}, nil
}

func (f *fakeGateway) AssetInfo(_ context.Context, assetID string) (*ledger.AssetInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("asset_info")
	if f.assetInfoErr != nil {
		return nil, f.assetInfoErr
	}
	info, ok := f.assets[assetID]
	if !ok {
		return nil, &ledger.GatewayError{HTTPStatus: 404, Code: "INVALID_TOKEN_ID"}
	}
	cp := *info
	return &cp, nil
}

func (f *fakeGateway) AccountBalance(_ context.Context, accountID string) (map[string]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("account_balance:" + accountID)
	if err := f.accountBalanceErr[accountID]; err != nil {
		return nil, err
	}
	out := map[string]int64{}
	for assetID, table := range f.balances {
		if f.associations[assetID][accountID] {
			out[assetID] = table[accountID]
		}
	}
	return out, nil
}

// dissociate drops an account's ledger relationship, so a later transfer to
// it fails with the not-associated condition.
func (f *fakeGateway) dissociate(assetID, accountID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.associations[assetID], accountID)
	delete(f.balances[assetID], accountID)
}

func newTestService(gw ledger.Gateway, allowFallback bool) *Service {
	return NewService(
		zap.NewNop(),
		gw,
		registry.NewInMemory(),
		nil,
		nil,
		nil,
		secrets.AccountKeys{
			AccountID:  testTreasury,
			SigningKey: "treasury-signing-key",
			AdminKey:   "treasury-admin-key",
			SupplyKey:  "treasury-supply-key",
		},
		allowFallback,
	)
}
