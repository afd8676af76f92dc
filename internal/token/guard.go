package token

import "github.com/agritoken/stock-adapter/internal/registry"

// Guard is the ownership check applied before mint, burn, and sell. It is a
// purely local, advisory check: it cannot stop a caller who holds the right
// signing key from transacting against the ledger outside this service.
type Guard struct {
	reg registry.Registry
}

func NewGuard(reg registry.Registry) *Guard {
	return &Guard{reg: reg}
}

// Authorize passes when the asset has no ownership record (the caller's own
// validation must already have rejected an unknown asset) or when
// account matches the recorded owner.
func (g *Guard) Authorize(assetID, account string) error {
	if account == "" {
		return nil
	}
	rec, ok := g.reg.Ownership(assetID)
	if !ok {
		return nil
	}
	if rec.Owner != account {
		return &AuthorizationError{AssetID: assetID, Account: account}
	}
	return nil
}
