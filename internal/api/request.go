package api

import "github.com/shopspring/decimal"

// CreateStockRequest tokenizes a product's stock.
type CreateStockRequest struct {
	ProductName     string            `json:"product_name"`
	QuantityKg      decimal.Decimal   `json:"quantity_kg"`
	OwnerAccount    string            `json:"owner_account,omitempty"`
	OwnerSigningKey string            `json:"owner_signing_key,omitempty"`
	Metadata        map[string]string `json:"metadata,omitempty"`
}

// MintRequest restocks an asset.
type MintRequest struct {
	QuantityKg        decimal.Decimal `json:"quantity_kg"`
	RequestingAccount string          `json:"requesting_account,omitempty"`
}

// BurnRequest reduces an asset's stock.
type BurnRequest struct {
	QuantityKg        decimal.Decimal `json:"quantity_kg"`
	RequestingAccount string          `json:"requesting_account,omitempty"`
}

// SellRequest transfers stock from seller to buyer.
type SellRequest struct {
	QuantityKg       decimal.Decimal `json:"quantity_kg"`
	Seller           string          `json:"seller"`
	SellerSigningKey string          `json:"seller_signing_key,omitempty"`
	Buyer            string          `json:"buyer"`
	BuyerSigningKey  string          `json:"buyer_signing_key,omitempty"`
}

// AssociateRequest grants an account the capability to hold the asset.
type AssociateRequest struct {
	Account    string `json:"account"`
	SigningKey string `json:"signing_key"`
}

// UpdateMetadataRequest merges attributes into an asset's metadata.
type UpdateMetadataRequest struct {
	Attributes map[string]string `json:"attributes"`
}
