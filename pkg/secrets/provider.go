package secrets

import "context"

// Provider defines a generic secrets manager interface.
// Concrete implementations (AWS, GCP, etc.) can satisfy this.
type Provider interface {
	// GetSecret retrieves a secret by key/path and returns a key-value map.
	GetSecret(ctx context.Context, key string) (map[string]string, error)

	// ListSecrets returns the names of all secrets whose name matches the given prefix.
	ListSecrets(ctx context.Context, prefix string) ([]string, error)
}

// Keys to the signing-key material inside a ledger account secret.
// A secret is stored as a JSON map, e.g.
// {"account_id": "0.0.1001", "signing_key": "302e0201...", "admin_key": "..."}.
const (
	FieldAccountID  = "account_id"
	FieldSigningKey = "signing_key"
	FieldAdminKey   = "admin_key"
	FieldSupplyKey  = "supply_key"
)

// AccountKeys carries the resolved key references for a ledger account.
// Key material is opaque to the adapter; it is forwarded to the gateway,
// which performs the actual transaction signing.
type AccountKeys struct {
	AccountID  string
	SigningKey string
	AdminKey   string
	SupplyKey  string
}

// AccountKeysFromSecret extracts AccountKeys from a raw secret map.
func AccountKeysFromSecret(m map[string]string) AccountKeys {
	return AccountKeys{
		AccountID:  m[FieldAccountID],
		SigningKey: m[FieldSigningKey],
		AdminKey:   m[FieldAdminKey],
		SupplyKey:  m[FieldSupplyKey],
	}
}
