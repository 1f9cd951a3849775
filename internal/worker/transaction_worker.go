package worker

import (
	"context"
	"time"

	"github.com/alfanzaky/txqueue/internal/domain"
	"github.com/alfanzaky/txqueue/internal/engine"
	"github.com/alfanzaky/txqueue/pkg/logger"
)

// NewCommitFunc adapts a repository to the commit function run by the engine.
func NewCommitFunc(repo domain.CommitRepository) engine.CommitFunc[domain.Transaction] {
	return func(ctx context.Context, trx domain.Transaction) error {
		start := time.Now()
		err := repo.Commit(ctx, trx)
		duration := time.Since(start)

		if err != nil {
			logger.Warn("Failed to commit queued transaction",
				logger.String("trx_id", trx.ID.String()),
				logger.Duration("duration", duration),
				logger.ErrorField(err),
			)
			return err
		}

		logger.Debug("Queued transaction committed",
			logger.String("trx_id", trx.ID.String()),
			logger.Duration("duration", duration),
		)
		return nil
	}
}

// DeadLetterLogger records transactions the engine gave up on.
func DeadLetterLogger(_ context.Context, trx domain.Transaction, attempts int, err error) {
	logger.Error("Transaction dropped after failed commits",
		logger.String("trx_id", trx.ID.String()),
		logger.String("account", trx.AccountString()),
		logger.Int64("amount", trx.Amount),
		logger.String("currency", trx.CurrencyString()),
		logger.Int("attempts", attempts),
		logger.ErrorField(err),
	)
}

// QueueStatsSource exposes the queue state watched by QueueMonitor.
type QueueStatsSource interface {
	Depth() int
	Pending() int
}

// QueueMonitor periodically logs queue depth and warns when it passes a
// threshold. Callers manage lifecycle through the context given to Start.
type QueueMonitor struct {
	source    QueueStatsSource
	interval  time.Duration
	threshold int
}

// QueueMonitorConfig defines runtime options for the monitor.
type QueueMonitorConfig struct {
	PollingInterval time.Duration
	// WarnDepth is the depth from which a warning is logged. 0 disables it.
	WarnDepth int
}

// NewQueueMonitor builds a new queue monitor instance.
func NewQueueMonitor(source QueueStatsSource, cfg QueueMonitorConfig) *QueueMonitor {
	interval := cfg.PollingInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}

	return &QueueMonitor{
		source:    source,
		interval:  interval,
		threshold: cfg.WarnDepth,
	}
}

// Start launches the monitor loop. It blocks until context cancellation.
func (m *QueueMonitor) Start(ctx context.Context) {
	logger.Info("Queue monitor started", logger.Duration("interval", m.interval))
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("Queue monitor stopping", logger.ErrorField(ctx.Err()))
			return
		case <-ticker.C:
			m.check()
		}
	}
}

// check reports whether the depth is over the warning threshold.
func (m *QueueMonitor) check() bool {
	depth := m.source.Depth()
	pending := m.source.Pending()

	if m.threshold > 0 && depth >= m.threshold {
		logger.Warn("Transaction queue is backing up",
			logger.Int("depth", depth),
			logger.Int("pending_jobs", pending),
			logger.Int("warn_depth", m.threshold),
		)
		return true
	}

	logger.Debug("Transaction queue status",
		logger.Int("depth", depth),
		logger.Int("pending_jobs", pending),
	)
	return false
}
