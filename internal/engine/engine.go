// Package engine drains a transaction queue by committing each item to a
// backend through a caller-supplied commit function.
//
// A single worker goroutine runs every commit, so at most one commit is in
// flight and items are committed in the order they reach the front of the
// queue. A failed commit (an error or a panic) puts a copy of the item at the
// back of the queue and schedules another attempt; delivery is therefore
// at-least-once. Producers never see commit failures.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/alfanzaky/txqueue/internal/queue"
	"github.com/alfanzaky/txqueue/pkg/logger"
)

var (
	// ErrEngineClosed is returned by Enqueue after Close was called.
	ErrEngineClosed = errors.New("engine: closed")
	// ErrCommitPanic wraps a panic raised by a commit function.
	ErrCommitPanic = errors.New("engine: commit panicked")
	// ErrCommitRejected is the failure reported for a commit that returned false.
	ErrCommitRejected = errors.New("engine: commit rejected")
)

// CommitFunc applies one item to the backend. Any non-nil error marks the
// commit as failed.
type CommitFunc[T any] func(ctx context.Context, item T) error

// CommitBool adapts a boolean commit function.
func CommitBool[T any](fn func(item T) bool) CommitFunc[T] {
	return func(_ context.Context, item T) error {
		if !fn(item) {
			return ErrCommitRejected
		}
		return nil
	}
}

// Engine commits queued items on a dedicated worker goroutine.
type Engine[T any] struct {
	mu     sync.RWMutex
	queue  queue.Queue[T]
	commit CommitFunc[T]
	cfg    config[T]

	// lifeMu spans an Enqueue so Close cannot finish between the push and
	// its job being scheduled.
	lifeMu sync.RWMutex

	jobMu   sync.Mutex
	pending int
	running bool
	wake    chan struct{}

	halt     chan struct{}
	haltOnce sync.Once
	done     chan struct{}

	ctx    context.Context
	cancel context.CancelFunc

	// worker-owned
	attempts    map[uint32]int
	consecutive int
}

// New starts an engine draining q. One job is scheduled for every entry
// already in q, so recovered records are committed without caller action.
func New[T any](q queue.Queue[T], commit CommitFunc[T], opts ...Option[T]) (*Engine[T], error) {
	if q == nil {
		return nil, errors.New("engine: nil queue")
	}
	if commit == nil {
		return nil, errors.New("engine: nil commit function")
	}

	var cfg config[T]
	for _, opt := range opts {
		opt(&cfg)
	}
	cfg = cfg.withDefaults()

	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine[T]{
		queue:    q,
		commit:   commit,
		cfg:      cfg,
		running:  true,
		wake:     make(chan struct{}, 1),
		halt:     make(chan struct{}),
		done:     make(chan struct{}),
		ctx:      ctx,
		cancel:   cancel,
		attempts: make(map[uint32]int),
	}

	backlog := q.Size()
	cfg.metrics.SetDepth(backlog)
	go e.run()
	e.post(backlog)

	logger.Info("Commit engine started",
		logger.String("engine", cfg.name),
		logger.Int("backlog", backlog),
	)

	return e, nil
}

// Enqueue appends item to the queue and schedules one commit job. It fails
// only when the engine is closed or the queue rejects the item.
func (e *Engine[T]) Enqueue(item T) error {
	e.lifeMu.RLock()
	defer e.lifeMu.RUnlock()

	if !e.Running() {
		return ErrEngineClosed
	}

	e.mu.Lock()
	key, err := e.queue.PushBack(item)
	depth := e.queue.Size()
	e.mu.Unlock()
	if err != nil {
		return fmt.Errorf("enqueue: %w", err)
	}

	e.cfg.metrics.SetDepth(depth)
	e.post(1)

	logger.Debug("Transaction enqueued",
		logger.String("engine", e.cfg.name),
		logger.Uint32("key", key),
	)
	return nil
}

// Depth returns the number of queued items.
func (e *Engine[T]) Depth() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.queue.Size()
}

// Pending returns the number of scheduled commit jobs.
func (e *Engine[T]) Pending() int {
	e.jobMu.Lock()
	defer e.jobMu.Unlock()
	return e.pending
}

// Running reports whether the engine accepts new items.
func (e *Engine[T]) Running() bool {
	e.jobMu.Lock()
	defer e.jobMu.Unlock()
	return e.running
}

// Close stops accepting items and waits until the jobs scheduled so far have
// run. Items requeued by failures after Close began stay in the queue without
// a job; durable variants replay them on next start.
//
// If ctx ends first, the worker stops after the in-flight commit, whose
// context is cancelled, and Close returns ctx.Err().
func (e *Engine[T]) Close(ctx context.Context) error {
	e.lifeMu.Lock()
	e.jobMu.Lock()
	e.running = false
	e.jobMu.Unlock()
	e.lifeMu.Unlock()
	e.signal()

	select {
	case <-e.done:
		e.cancel()
		logger.Info("Commit engine stopped", logger.String("engine", e.cfg.name))
		return nil
	case <-ctx.Done():
	}

	e.haltOnce.Do(func() { close(e.halt) })
	e.cancel()
	<-e.done

	logger.Warn("Commit engine halted before draining",
		logger.String("engine", e.cfg.name),
		logger.Int("abandoned_jobs", e.Pending()),
	)
	return ctx.Err()
}

// post schedules n jobs unless the engine is closed.
func (e *Engine[T]) post(n int) bool {
	if n <= 0 {
		return true
	}
	e.jobMu.Lock()
	if !e.running {
		e.jobMu.Unlock()
		return false
	}
	e.pending += n
	e.jobMu.Unlock()
	e.signal()
	return true
}

func (e *Engine[T]) signal() {
	select {
	case e.wake <- struct{}{}:
	default:
	}
}

func (e *Engine[T]) run() {
	defer close(e.done)

	for {
		e.jobMu.Lock()
		if e.pending == 0 {
			running := e.running
			e.jobMu.Unlock()
			if !running {
				return
			}
			select {
			case <-e.wake:
				continue
			case <-e.halt:
				return
			}
		}
		e.pending--
		e.jobMu.Unlock()

		select {
		case <-e.halt:
			return
		default:
		}

		if failed := e.process(); failed {
			if !e.sleep(e.cfg.retry.Delay(e.consecutive)) {
				return
			}
		}
	}
}

// process runs one job and reports whether the commit failed.
func (e *Engine[T]) process() bool {
	// Copy the front entry out so the lock is not held during the commit.
	e.mu.RLock()
	entry, err := e.queue.Front()
	e.mu.RUnlock()
	if errors.Is(err, queue.ErrEmpty) {
		logger.Debug("Commit job found empty queue", logger.String("engine", e.cfg.name))
		return false
	}
	if err != nil {
		logger.Error("Failed to persist front transaction before commit",
			logger.String("engine", e.cfg.name),
			logger.Uint32("key", entry.Key),
			logger.ErrorField(err),
		)
	}

	start := time.Now()
	commitErr := e.safeCommit(entry.Item)
	duration := time.Since(start)
	e.cfg.metrics.ObserveCommit(commitErr == nil, duration)

	if commitErr == nil {
		delete(e.attempts, entry.Key)
		e.consecutive = 0
		logger.Debug("Transaction committed",
			logger.String("engine", e.cfg.name),
			logger.Uint32("key", entry.Key),
			logger.Duration("duration", duration),
		)
		e.popFront(entry.Key)
		return false
	}

	e.consecutive++
	attempts := e.attempts[entry.Key] + 1
	delete(e.attempts, entry.Key)

	if e.cfg.retry.exhausted(attempts) {
		logger.Error("Transaction exceeded commit attempts, dead-lettering",
			logger.String("engine", e.cfg.name),
			logger.Uint32("key", entry.Key),
			logger.Int("attempts", attempts),
			logger.ErrorField(commitErr),
		)
		e.cfg.metrics.AddDeadLetter()
		if e.cfg.deadLetter != nil {
			e.cfg.deadLetter(e.ctx, entry.Item, attempts, commitErr)
		}
		e.popFront(entry.Key)
		return true
	}

	e.mu.Lock()
	newKey, pushErr := e.queue.PushBack(entry.Item)
	e.mu.Unlock()
	if pushErr != nil {
		// Leave the original at the front and try it again.
		e.attempts[entry.Key] = attempts
		logger.Error("Failed to requeue transaction, retrying in place",
			logger.String("engine", e.cfg.name),
			logger.Uint32("key", entry.Key),
			logger.ErrorField(pushErr),
		)
		e.post(1)
		return true
	}

	e.attempts[newKey] = attempts
	e.cfg.metrics.AddRetry()
	rescheduled := e.post(1)
	logger.Warn("Transaction commit failed, requeued",
		logger.String("engine", e.cfg.name),
		logger.Uint32("key", entry.Key),
		logger.Uint32("requeued_key", newKey),
		logger.Int("attempts", attempts),
		logger.Bool("rescheduled", rescheduled),
		logger.ErrorField(commitErr),
	)

	e.popFront(entry.Key)
	return true
}

func (e *Engine[T]) popFront(key uint32) {
	e.mu.Lock()
	err := e.queue.PopFront()
	depth := e.queue.Size()
	e.mu.Unlock()

	e.cfg.metrics.SetDepth(depth)
	if err != nil {
		logger.Error("Failed to purge committed transaction",
			logger.String("engine", e.cfg.name),
			logger.Uint32("key", key),
			logger.ErrorField(err),
		)
	}
}

func (e *Engine[T]) safeCommit(item T) (err error) {
	ctx := e.ctx
	if e.cfg.commitTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.commitTimeout)
		defer cancel()
	}

	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%w: %v", ErrCommitPanic, rec)
		}
	}()
	return e.commit(ctx, item)
}

// sleep pauses the worker and reports false when the engine was halted.
func (e *Engine[T]) sleep(d time.Duration) bool {
	if d <= 0 {
		return true
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-e.halt:
		return false
	case <-timer.C:
		return true
	}
}
