package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Asset describes a ledger-native fungible token backing a product's stock.
// ID is assigned by the ledger at creation and is opaque to this service.
// TotalSupply is derived from ledger queries and never treated as a locally
// authoritative figure.
type Asset struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Symbol      string          `json:"symbol"`
	Precision   uint32          `json:"precision"`
	TotalSupply decimal.Decimal `json:"total_supply"`
	Memo        string          `json:"memo,omitempty"`
}

// OwnershipRecord tracks the current and previous owner of a stock asset.
// PreviousOwner and TransferredAt are set only when a full-supply sale
// transfers ownership; partial sales never touch this record.
type OwnershipRecord struct {
	Owner         string     `json:"owner"`
	ProductName   string     `json:"product_name"`
	CreatedAt     time.Time  `json:"created_at"`
	PreviousOwner string     `json:"previous_owner,omitempty"`
	TransferredAt *time.Time `json:"transferred_at,omitempty"`
}

// MetadataRecord holds arbitrary product attributes plus the fixed fields
// written at asset creation. Attributes are mergeable after creation and the
// record is independent of the OwnershipRecord.
type MetadataRecord struct {
	Type       string            `json:"type"`
	Unit       string            `json:"unit"`
	Owner      string            `json:"owner"`
	CreatedAt  time.Time         `json:"created_at"`
	Attributes map[string]string `json:"attributes"`
}

// BalanceTable maps account identifiers to quantity in kilograms for one
// asset. Between reconciliation passes the entries are advisory; they are
// authoritative only immediately after a fully-reconciled operation.
type BalanceTable map[string]decimal.Decimal

// Clone returns an independent copy of the table.
func (b BalanceTable) Clone() BalanceTable {
	out := make(BalanceTable, len(b))
	for k, v := range b {
		out[k] = v
	}
	return out
}

// Total sums all entries. The result approximates total supply and can drift
// from the ledger until the next refresh.
func (b BalanceTable) Total() decimal.Decimal {
	sum := decimal.Zero
	for _, v := range b {
		sum = sum.Add(v)
	}
	return sum
}

// StockView is the combined read model returned by the lookup endpoints.
type StockView struct {
	Asset     *Asset           `json:"asset,omitempty"`
	Ownership *OwnershipRecord `json:"ownership"`
	Metadata  *MetadataRecord  `json:"metadata"`
	Balances  BalanceTable     `json:"balances"`
}

// Holding is one entry of the owned-assets lookup.
type Holding struct {
	AssetID    string          `json:"asset_id"`
	Product    string          `json:"product"`
	QuantityKg decimal.Decimal `json:"quantity_kg"`
	IsOwner    bool            `json:"is_owner"`
}
