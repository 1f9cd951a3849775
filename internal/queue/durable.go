package queue

import (
	"errors"
	"fmt"
	"sort"

	"github.com/alfanzaky/txqueue/internal/codec"
	"github.com/alfanzaky/txqueue/internal/store"
	"github.com/alfanzaky/txqueue/pkg/logger"
)

// Store is the durable record storage used by the persisted variants.
// *store.FileStore implements it.
type Store interface {
	Write(key uint32, data []byte) error
	ReadAll() ([]store.Record, error)
	Delete(key uint32) error
}

// Observer is notified about durable record writes and purges.
type Observer interface {
	RecordWritten(err error)
	RecordPurged(err error)
}

type nopObserver struct{}

func (nopObserver) RecordWritten(error) {}
func (nopObserver) RecordPurged(error)  {}

// DurableOption configures a persisted queue.
type DurableOption func(*durableConfig)

type durableConfig struct {
	observer Observer
}

// WithObserver reports record writes and purges to o.
func WithObserver(o Observer) DurableOption {
	return func(c *durableConfig) {
		if o != nil {
			c.observer = o
		}
	}
}

// persisted holds the state shared by PartiallyDurable and FullyDurable.
type persisted[T any] struct {
	entries  deque[Entry[T]]
	keys     keySeq
	store    Store
	codec    codec.Codec[T]
	observer Observer
}

func openPersisted[T any](s Store, c codec.Codec[T], opts []DurableOption) (*persisted[T], error) {
	if s == nil {
		return nil, errors.New("queue: nil store")
	}
	if c == nil {
		return nil, errors.New("queue: nil codec")
	}
	cfg := durableConfig{observer: nopObserver{}}
	for _, opt := range opts {
		opt(&cfg)
	}

	p := &persisted[T]{store: s, codec: c, observer: cfg.observer}

	records, err := s.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to scan durable records: %w", err)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].Key < records[j].Key
	})

	for _, rec := range records {
		item, err := c.Decode(rec.Data)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrCorruptRecord, rec.Path, err)
		}
		p.entries.pushBack(Entry[T]{Key: rec.Key, Item: item})
		p.keys.observe(rec.Key)
	}

	if len(records) > 0 {
		logger.Info("Recovered durable queue entries",
			logger.Int("entries", len(records)),
			logger.Uint32("next_key", p.keys.next),
		)
	}

	return p, nil
}

// NextKey returns the key the next PushBack will allocate.
func (p *persisted[T]) NextKey() uint32 { return p.keys.next }

// Size implements Queue.
func (p *persisted[T]) Size() int { return p.entries.size() }

// Empty implements Queue.
func (p *persisted[T]) Empty() bool { return p.entries.size() == 0 }

// Front implements Queue.
func (p *persisted[T]) Front() (Entry[T], error) {
	e, ok := p.entries.front()
	if !ok {
		return e, ErrEmpty
	}
	return e, nil
}

// PopFront implements Queue. The record is deleted before the entry leaves
// memory. The entry is removed even when the delete fails; the leftover
// record is replayed on next open.
func (p *persisted[T]) PopFront() error {
	e, ok := p.entries.front()
	if !ok {
		return ErrEmpty
	}
	err := p.store.Delete(e.Key)
	p.observer.RecordPurged(err)
	p.entries.popFront()
	return err
}

func (p *persisted[T]) persist(e Entry[T]) error {
	data, err := p.codec.Encode(e.Item)
	if err == nil {
		err = p.store.Write(e.Key, data)
	}
	p.observer.RecordWritten(err)
	if err != nil {
		return fmt.Errorf("failed to persist entry %d: %w", e.Key, err)
	}
	return nil
}

// PartiallyDurable writes a record for the front entry whenever Front is
// called, so the entry is on disk before each commit attempt. Repeated calls
// rewrite the same record.
type PartiallyDurable[T any] struct {
	*persisted[T]
}

// OpenPartiallyDurable restores the queue from s and returns it.
func OpenPartiallyDurable[T any](s Store, c codec.Codec[T], opts ...DurableOption) (*PartiallyDurable[T], error) {
	p, err := openPersisted(s, c, opts)
	if err != nil {
		return nil, err
	}
	return &PartiallyDurable[T]{persisted: p}, nil
}

// PushBack implements Queue. Nothing is written to disk.
func (q *PartiallyDurable[T]) PushBack(item T) (uint32, error) {
	key, err := q.keys.allocate()
	if err != nil {
		return 0, err
	}
	q.entries.pushBack(Entry[T]{Key: key, Item: item})
	return key, nil
}

// Front implements Queue. The returned entry is valid even when the write
// fails.
func (q *PartiallyDurable[T]) Front() (Entry[T], error) {
	e, err := q.persisted.Front()
	if err != nil {
		return e, err
	}
	return e, q.persist(e)
}

// FullyDurable writes a record in PushBack before returning.
type FullyDurable[T any] struct {
	*persisted[T]
}

// OpenFullyDurable restores the queue from s and returns it.
func OpenFullyDurable[T any](s Store, c codec.Codec[T], opts ...DurableOption) (*FullyDurable[T], error) {
	p, err := openPersisted(s, c, opts)
	if err != nil {
		return nil, err
	}
	return &FullyDurable[T]{persisted: p}, nil
}

// PushBack implements Queue. The item is appended only when its record was
// written.
func (q *FullyDurable[T]) PushBack(item T) (uint32, error) {
	key, err := q.keys.allocate()
	if err != nil {
		return 0, err
	}
	e := Entry[T]{Key: key, Item: item}
	if err := q.persist(e); err != nil {
		return 0, err
	}
	q.entries.pushBack(e)
	return key, nil
}

var (
	_ Queue[int] = (*NonDurable[int])(nil)
	_ Queue[int] = (*PartiallyDurable[int])(nil)
	_ Queue[int] = (*FullyDurable[int])(nil)
)
