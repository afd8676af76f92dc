package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Operation is one orchestrated business operation as recorded in the audit
// journal, including partial outcomes ("asset created, transfer failed").
type Operation struct {
	Op          string
	AssetID     string
	FromAccount string
	ToAccount   string
	QuantityKg  decimal.Decimal
	Outcome     string
	Note        string
}

// Journal writes one row per orchestrated operation into
// audit.stock_operation. It is optional: a nil Journal is a no-op, and write
// failures never fail the request, the ledger already holds the truth.
type Journal struct {
	db     *pgxpool.Pool
	logger *zap.Logger
	source string
}

// NewJournal constructs a journal writer. source identifies the writing
// service instance.
func NewJournal(db *pgxpool.Pool, logger *zap.Logger, source string) *Journal {
	return &Journal{
		db:     db,
		logger: logger,
		source: source,
	}
}

// Record inserts the operation row. Safe on a nil receiver.
func (j *Journal) Record(ctx context.Context, op Operation) {
	if j == nil || j.db == nil {
		return
	}

	const query = `
		INSERT INTO audit.stock_operation (
			id,
			op,
			asset_id,
			from_account,
			to_account,
			quantity_kg,
			outcome,
			note,
			source,
			recorded_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10);
	`

	_, err := j.db.Exec(ctx, query,
		uuid.New(),
		op.Op,
		op.AssetID,
		op.FromAccount,
		op.ToAccount,
		op.QuantityKg,
		op.Outcome,
		op.Note,
		j.source,
		time.Now().UTC(),
	)
	if err != nil {
		j.logger.Warn("audit.insert_failed",
			zap.String("op", op.Op),
			zap.String("asset_id", op.AssetID),
			zap.Error(err))
	}
}
