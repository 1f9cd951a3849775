package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/alfanzaky/txqueue/internal/domain"
	"github.com/alfanzaky/txqueue/pkg/logger"
)

// DefaultTable is the table used when none is configured
const DefaultTable = "committed_transactions"

// CommitRepository commits transactions into a PostgreSQL table.
type CommitRepository struct {
	db    *sqlx.DB
	table string
	now   func() time.Time
}

var _ domain.CommitRepository = (*CommitRepository)(nil)

// NewCommitRepository creates a PostgreSQL backend writing to table
func NewCommitRepository(db *sqlx.DB, table string) *CommitRepository {
	if table == "" {
		table = DefaultTable
	}
	return &CommitRepository{
		db:    db,
		table: pq.QuoteIdentifier(table),
		now:   time.Now,
	}
}

// EnsureSchema creates the table when it does not exist
func (r *CommitRepository) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id UUID PRIMARY KEY,
			account VARCHAR(32) NOT NULL,
			amount BIGINT NOT NULL,
			currency CHAR(3) NOT NULL,
			kind VARCHAR(16) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			committed_at TIMESTAMPTZ NOT NULL
		)
	`, r.table)

	if _, err := r.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create table %s: %w", r.table, err)
	}
	return nil
}

// Commit inserts the transaction; a row with the same ID is left untouched.
func (r *CommitRepository) Commit(ctx context.Context, transaction domain.Transaction) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (id, account, amount, currency, kind, created_at, committed_at)
		VALUES (:id, :account, :amount, :currency, :kind, :created_at, :committed_at)
		ON CONFLICT (id) DO NOTHING
	`, r.table)

	row := domain.NewCommittedTransaction(transaction, r.now())
	result, err := r.db.NamedExecContext(ctx, query, row)
	if err != nil {
		logger.Error("Failed to commit transaction",
			logger.String("transaction_id", row.ID),
			logger.ErrorField(err),
		)
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	if rows, err := result.RowsAffected(); err == nil && rows == 0 {
		logger.Debug("Transaction already committed",
			logger.String("transaction_id", row.ID),
		)
	}
	return nil
}

// Get retrieves a committed transaction by ID, or nil when it is unknown
func (r *CommitRepository) Get(ctx context.Context, id uuid.UUID) (*domain.CommittedTransaction, error) {
	query := fmt.Sprintf(`
		SELECT id, account, amount, currency, kind, created_at, committed_at
		FROM %s WHERE id = $1
	`, r.table)

	var tx domain.CommittedTransaction
	if err := r.db.GetContext(ctx, &tx, query, id.String()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return &tx, nil
}

// Count returns the number of committed transactions
func (r *CommitRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.GetContext(ctx, &n, fmt.Sprintf(`SELECT COUNT(*) FROM %s`, r.table)); err != nil {
		return 0, fmt.Errorf("failed to count transactions: %w", err)
	}
	return n, nil
}

// Ping checks the connection
func (r *CommitRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}
