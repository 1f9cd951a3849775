package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/alfanzaky/txqueue/internal/domain"
	"github.com/alfanzaky/txqueue/pkg/logger"
)

// CommitRepository keeps committed transactions in process memory.
type CommitRepository struct {
	mu        sync.RWMutex
	committed map[uuid.UUID]domain.CommittedTransaction
	order     []uuid.UUID
	now       func() time.Time
}

var _ domain.CommitRepository = (*CommitRepository)(nil)

// NewCommitRepository creates an empty in-memory backend
func NewCommitRepository() *CommitRepository {
	return &CommitRepository{
		committed: make(map[uuid.UUID]domain.CommittedTransaction),
		now:       time.Now,
	}
}

// Commit stores the transaction once; repeated commits of the same ID are
// accepted and ignored.
func (r *CommitRepository) Commit(ctx context.Context, transaction domain.Transaction) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.committed[transaction.ID]; ok {
		logger.Debug("Transaction already committed",
			logger.String("transaction_id", transaction.ID.String()),
		)
		return nil
	}

	r.committed[transaction.ID] = domain.NewCommittedTransaction(transaction, r.now())
	r.order = append(r.order, transaction.ID)
	return nil
}

// Get returns a committed transaction by ID
func (r *CommitRepository) Get(id uuid.UUID) (domain.CommittedTransaction, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tx, ok := r.committed[id]
	return tx, ok
}

// List returns committed transactions in commit order
func (r *CommitRepository) List() []domain.CommittedTransaction {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.CommittedTransaction, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.committed[id])
	}
	return out
}

// Count returns the number of committed transactions
func (r *CommitRepository) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}
