package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"github.com/alfanzaky/txqueue/internal/domain"
	"github.com/alfanzaky/txqueue/pkg/logger"
)

// Key suffixes appended to the configured prefix
const (
	LedgerKeySuffix = ":ledger"
	StreamKeySuffix = ":committed"
)

// commitScript records the transaction in the ledger hash and, only when it was
// not there yet, pushes it onto the committed list.
var commitScript = redis.NewScript(`
if redis.call("HSETNX", KEYS[1], ARGV[1], ARGV[2]) == 1 then
	redis.call("LPUSH", KEYS[2], ARGV[2])
	return 1
end
return 0
`)

// CommitRepository commits transactions into Redis.
type CommitRepository struct {
	client    redis.UniversalClient
	ledgerKey string
	streamKey string
	now       func() time.Time
}

var _ domain.CommitRepository = (*CommitRepository)(nil)

// NewCommitRepository creates a Redis backend storing keys under prefix
func NewCommitRepository(client redis.UniversalClient, prefix string) *CommitRepository {
	return &CommitRepository{
		client:    client,
		ledgerKey: prefix + LedgerKeySuffix,
		streamKey: prefix + StreamKeySuffix,
		now:       time.Now,
	}
}

// Commit writes the transaction once; a repeated commit is a no-op.
func (r *CommitRepository) Commit(ctx context.Context, transaction domain.Transaction) error {
	id := transaction.ID.String()

	data, err := json.Marshal(domain.NewCommittedTransaction(transaction, r.now()))
	if err != nil {
		return fmt.Errorf("failed to marshal transaction: %w", err)
	}

	added, err := commitScript.Run(ctx, r.client, []string{r.ledgerKey, r.streamKey}, id, data).Int()
	if err != nil {
		logger.Error("Failed to commit transaction to Redis",
			logger.String("transaction_id", id),
			logger.ErrorField(err),
		)
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	if added == 0 {
		logger.Debug("Transaction already committed",
			logger.String("transaction_id", id),
		)
	}
	return nil
}

// Get returns a committed transaction, or nil when it is unknown
func (r *CommitRepository) Get(ctx context.Context, id uuid.UUID) (*domain.CommittedTransaction, error) {
	data, err := r.client.HGet(ctx, r.ledgerKey, id.String()).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}

	var tx domain.CommittedTransaction
	if err := json.Unmarshal(data, &tx); err != nil {
		return nil, fmt.Errorf("failed to unmarshal transaction: %w", err)
	}
	return &tx, nil
}

// Count returns the number of committed transactions
func (r *CommitRepository) Count(ctx context.Context) (int64, error) {
	n, err := r.client.HLen(ctx, r.ledgerKey).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count transactions: %w", err)
	}
	return n, nil
}

// Recent returns up to limit committed transactions, newest first
func (r *CommitRepository) Recent(ctx context.Context, limit int64) ([]domain.CommittedTransaction, error) {
	if limit <= 0 {
		return nil, nil
	}
	items, err := r.client.LRange(ctx, r.streamKey, 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}

	out := make([]domain.CommittedTransaction, 0, len(items))
	for _, item := range items {
		var tx domain.CommittedTransaction
		if err := json.Unmarshal([]byte(item), &tx); err != nil {
			return nil, fmt.Errorf("failed to unmarshal transaction: %w", err)
		}
		out = append(out, tx)
	}
	return out, nil
}

// Ping checks the connection
func (r *CommitRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
