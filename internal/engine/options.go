package engine

import (
	"context"
	"time"
)

// DeadLetterFunc receives an item that failed RetryPolicy.MaxAttempts times.
// The item has already been removed from the queue.
type DeadLetterFunc[T any] func(ctx context.Context, item T, attempts int, err error)

// RetryPolicy decides what happens after a failed commit.
//
// The zero value retries forever without delay.
type RetryPolicy struct {
	// MaxAttempts is the number of failed commits after which an item is
	// dead-lettered instead of requeued. 0 means unlimited.
	MaxAttempts int
	// BaseDelay is the pause after the first consecutive failure. It doubles
	// with every further consecutive failure up to MaxDelay. 0 disables it.
	BaseDelay time.Duration
	// MaxDelay caps the pause. 0 means BaseDelay is never exceeded.
	MaxDelay time.Duration
}

// Delay returns the pause after the given number of consecutive failures.
func (p RetryPolicy) Delay(consecutive int) time.Duration {
	if p.BaseDelay <= 0 || consecutive <= 0 {
		return 0
	}
	maxDelay := p.MaxDelay
	if maxDelay < p.BaseDelay {
		maxDelay = p.BaseDelay
	}

	delay := p.BaseDelay
	for i := 1; i < consecutive; i++ {
		if delay >= maxDelay/2 {
			return maxDelay
		}
		delay *= 2
	}
	return delay
}

func (p RetryPolicy) exhausted(attempts int) bool {
	return p.MaxAttempts > 0 && attempts >= p.MaxAttempts
}

// Metrics captures engine telemetry.
type Metrics interface {
	// ObserveCommit records one commit attempt.
	ObserveCommit(success bool, duration time.Duration)
	// AddRetry counts an item requeued after a failed commit.
	AddRetry()
	// AddDeadLetter counts an item dropped after too many failures.
	AddDeadLetter()
	// SetDepth updates the current queue depth.
	SetDepth(depth int)
}

// NopMetrics is a no-op metrics recorder.
type NopMetrics struct{}

// ObserveCommit implements Metrics.
func (NopMetrics) ObserveCommit(bool, time.Duration) {}

// AddRetry implements Metrics.
func (NopMetrics) AddRetry() {}

// AddDeadLetter implements Metrics.
func (NopMetrics) AddDeadLetter() {}

// SetDepth implements Metrics.
func (NopMetrics) SetDepth(int) {}

type config[T any] struct {
	name          string
	retry         RetryPolicy
	deadLetter    DeadLetterFunc[T]
	metrics       Metrics
	commitTimeout time.Duration
}

func (c config[T]) withDefaults() config[T] {
	if c.name == "" {
		c.name = "default"
	}
	if c.metrics == nil {
		c.metrics = NopMetrics{}
	}
	return c
}

// Option configures an Engine.
type Option[T any] func(*config[T])

// WithName sets the name used in log entries.
func WithName[T any](name string) Option[T] {
	return func(c *config[T]) {
		c.name = name
	}
}

// WithRetryPolicy sets the retry policy.
func WithRetryPolicy[T any](policy RetryPolicy) Option[T] {
	return func(c *config[T]) {
		c.retry = policy
	}
}

// WithDeadLetter registers the handler for items that exhausted their attempts.
func WithDeadLetter[T any](fn DeadLetterFunc[T]) Option[T] {
	return func(c *config[T]) {
		c.deadLetter = fn
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics[T any](metrics Metrics) Option[T] {
	return func(c *config[T]) {
		c.metrics = metrics
	}
}

// WithCommitTimeout bounds each commit call through its context.
func WithCommitTimeout[T any](timeout time.Duration) Option[T] {
	return func(c *config[T]) {
		c.commitTimeout = timeout
	}
}
