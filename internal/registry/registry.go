package registry

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/agritoken/stock-adapter/pkg/model"
)

// Registry owns the three per-asset maps (ownership, metadata, balances)
// for the lifetime of the process. It is volatile by design: everything it
// holds can be rebuilt from the ledger. The interface boundary exists so a
// persistent store can replace the in-memory implementation without touching
// orchestrator logic.
//
// Lock gives per-asset mutual exclusion. Every read-modify-write sequence
// spanning a ledger call and a registry update must hold the asset's lock;
// operations on different assets proceed in parallel.
type Registry interface {
	Lock(assetID string) (unlock func())

	PutOwnership(assetID string, rec model.OwnershipRecord)
	Ownership(assetID string) (*model.OwnershipRecord, bool)
	SetOwner(assetID, newOwner string, at time.Time) bool

	PutMetadata(assetID string, rec model.MetadataRecord)
	Metadata(assetID string) (*model.MetadataRecord, bool)
	MergeMetadata(assetID string, attrs map[string]string) bool

	Balance(assetID, account string) (decimal.Decimal, bool)
	SetBalance(assetID, account string, qty decimal.Decimal)
	AddBalance(assetID, account string, delta decimal.Decimal)
	EnsureBalance(assetID, account string)
	Balances(assetID string) (model.BalanceTable, bool)
	Accounts(assetID string) []string

	Assets() []string
}

type memRegistry struct {
	mu        sync.RWMutex
	ownership map[string]model.OwnershipRecord
	metadata  map[string]model.MetadataRecord
	balances  map[string]model.BalanceTable

	lockMu sync.Mutex
	locks  map[string]*sync.Mutex
}

// NewInMemory returns the process-local registry implementation.
func NewInMemory() Registry {
	return &memRegistry{
		ownership: make(map[string]model.OwnershipRecord),
		metadata:  make(map[string]model.MetadataRecord),
		balances:  make(map[string]model.BalanceTable),
		locks:     make(map[string]*sync.Mutex),
	}
}

// Lock acquires the asset's mutex, creating it on first use.
func (r *memRegistry) Lock(assetID string) func() {
	r.lockMu.Lock()
	m, ok := r.locks[assetID]
	if !ok {
		m = &sync.Mutex{}
		r.locks[assetID] = m
	}
	r.lockMu.Unlock()

	m.Lock()
	return m.Unlock
}

func (r *memRegistry) PutOwnership(assetID string, rec model.OwnershipRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ownership[assetID] = rec
}

func (r *memRegistry) Ownership(assetID string) (*model.OwnershipRecord, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.ownership[assetID]
	if !ok {
		return nil, false
	}
	cp := rec
	return &cp, true
}

// SetOwner applies the ownership-transfer rule: the current owner becomes the
// previous owner and the transfer timestamp is recorded. Returns false for an
// unknown asset.
func (r *memRegistry) SetOwner(assetID, newOwner string, at time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.ownership[assetID]
	if !ok {
		return false
	}
	rec.PreviousOwner = rec.Owner
	rec.Owner = newOwner
	ts := at
	rec.TransferredAt = &ts
	r.ownership[assetID] = rec
	return true
}

func (r *memRegistry) PutMetadata(assetID string, rec model.MetadataRecord) {
	if rec.Attributes == nil {
		rec.Attributes = map[string]string{}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.metadata[assetID] = rec
}

func (r *memRegistry) Metadata(assetID string) (*model.MetadataRecord, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.metadata[assetID]
	if !ok {
		return nil, false
	}
	cp := rec
	cp.Attributes = make(map[string]string, len(rec.Attributes))
	for k, v := range rec.Attributes {
		cp.Attributes[k] = v
	}
	return &cp, true
}

// MergeMetadata overlays attrs onto the asset's attribute map. The fixed
// fields written at creation are not touched. Returns false for an unknown
// asset.
func (r *memRegistry) MergeMetadata(assetID string, attrs map[string]string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.metadata[assetID]
	if !ok {
		return false
	}
	for k, v := range attrs {
		rec.Attributes[k] = v
	}
	r.metadata[assetID] = rec
	return true
}

func (r *memRegistry) Balance(assetID, account string) (decimal.Decimal, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	table, ok := r.balances[assetID]
	if !ok {
		return decimal.Zero, false
	}
	qty, ok := table[account]
	return qty, ok
}

func (r *memRegistry) SetBalance(assetID, account string, qty decimal.Decimal) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.table(assetID)[account] = qty
}

func (r *memRegistry) AddBalance(assetID, account string, delta decimal.Decimal) {
	r.mu.Lock()
	defer r.mu.Unlock()
	table := r.table(assetID)
	table[account] = table[account].Add(delta)
}

// EnsureBalance lazily creates a zero entry so the account becomes a known
// holder for reconciliation.
func (r *memRegistry) EnsureBalance(assetID, account string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	table := r.table(assetID)
	if _, ok := table[account]; !ok {
		table[account] = decimal.Zero
	}
}

func (r *memRegistry) Balances(assetID string) (model.BalanceTable, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	table, ok := r.balances[assetID]
	if !ok {
		return nil, false
	}
	return table.Clone(), true
}

func (r *memRegistry) Accounts(assetID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	table, ok := r.balances[assetID]
	if !ok {
		return nil
	}
	accounts := make([]string, 0, len(table))
	for acct := range table {
		accounts = append(accounts, acct)
	}
	return accounts
}

func (r *memRegistry) Assets() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.ownership))
	for id := range r.ownership {
		ids = append(ids, id)
	}
	return ids
}

// table returns the asset's balance table, creating it lazily.
// Callers must hold r.mu.
func (r *memRegistry) table(assetID string) model.BalanceTable {
	table, ok := r.balances[assetID]
	if !ok {
		table = make(model.BalanceTable)
		r.balances[assetID] = table
	}
	return table
}
