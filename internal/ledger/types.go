package ledger

import "time"

// CreateAssetRequest carries the parameters for a create-asset call.
// Key fields are opaque references; the gateway signs on our behalf.
type CreateAssetRequest struct {
	Name          string `json:"name"`
	Symbol        string `json:"symbol"`
	Decimals      uint32 `json:"decimals"`
	InitialSupply int64  `json:"initial_supply"`
	Treasury      string `json:"treasury_account"`
	AdminKey      string `json:"admin_key,omitempty"`
	SupplyKey     string `json:"supply_key,omitempty"`
	Memo          string `json:"memo,omitempty"`
}

// TransferRequest moves amount raw units of a token between two accounts.
// SigningKeys lists every key reference authorizing the transfer.
type TransferRequest struct {
	AssetID     string   `json:"token_id"`
	From        string   `json:"from_account"`
	To          string   `json:"to_account"`
	Amount      int64    `json:"amount"`
	SigningKeys []string `json:"signing_keys"`
}

// Receipt is the gateway's acknowledgement of a submitted transaction.
type Receipt struct {
	Status        string    `json:"status"`
	TransactionID string    `json:"transaction_id"`
	ConsensusAt   time.Time `json:"consensus_at"`
}

// AssetInfo is the ledger's authoritative view of a token.
type AssetInfo struct {
	AssetID     string `json:"token_id"`
	Name        string `json:"name"`
	Symbol      string `json:"symbol"`
	Decimals    uint32 `json:"decimals"`
	TotalSupply int64  `json:"total_supply"`
	Memo        string `json:"memo,omitempty"`
}

type createAssetResponse struct {
	TokenID string  `json:"token_id"`
	Receipt Receipt `json:"receipt"`
}

type mintBurnRequest struct {
	Amount int64 `json:"amount"`
}

type associateRequest struct {
	AssetID    string `json:"token_id"`
	SigningKey string `json:"signing_key"`
}

type accountBalancesResponse struct {
	AccountID string           `json:"account_id"`
	Balances  map[string]int64 `json:"balances"`
}

type errorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// StreamEvent is one entry of the gateway's transaction feed.
type StreamEvent struct {
	Type          string `json:"type"`
	AssetID       string `json:"token_id"`
	TransactionID string `json:"transaction_id"`
}
