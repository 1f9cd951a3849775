// Package queue provides the FIFO transaction queues drained by the commit
// engine.
//
// Three durability strategies share the Queue interface:
//   - NonDurable keeps entries in memory only; a restart loses them.
//   - PartiallyDurable persists the front entry each time Front is called,
//     i.e. just before a commit attempt.
//   - FullyDurable persists every entry in PushBack, before it returns.
//
// Durable variants scan their store once when opened and restore every record
// as an entry, in ascending key order. PopFront of a durable variant deletes
// the record of the front entry.
//
// Queues are not safe for concurrent use. The commit engine serialises access
// with a read/write lock.
package queue

import (
	"errors"
	"math"
)

var (
	// ErrEmpty is returned by Front and PopFront on an empty queue.
	ErrEmpty = errors.New("queue: empty")
	// ErrCorruptRecord is returned when a durable record cannot be decoded
	// while opening a queue.
	ErrCorruptRecord = errors.New("queue: corrupt durable record")
	// ErrKeySpaceExhausted is returned once every uint32 key has been used.
	ErrKeySpaceExhausted = errors.New("queue: key space exhausted")
)

// Entry is an item together with the key assigned to it at enqueue time.
type Entry[T any] struct {
	Key  uint32
	Item T
}

// Queue is an ordered sequence of entries with FIFO semantics.
type Queue[T any] interface {
	// Size returns the number of entries.
	Size() int
	// Empty reports whether the queue has no entries.
	Empty() bool
	// Front returns a copy of the oldest entry. A durable variant may return
	// a valid entry together with a persistence error.
	Front() (Entry[T], error)
	// PushBack appends item and returns the key allocated for it.
	PushBack(item T) (uint32, error)
	// PopFront removes the oldest entry.
	PopFront() error
}

// keySeq allocates monotonically increasing keys and never hands out the
// same key twice.
type keySeq struct {
	next      uint32
	exhausted bool
}

func (k *keySeq) allocate() (uint32, error) {
	if k.exhausted {
		return 0, ErrKeySpaceExhausted
	}
	key := k.next
	if key == math.MaxUint32 {
		k.exhausted = true
	} else {
		k.next++
	}
	return key, nil
}

// observe makes sure key is never allocated again.
func (k *keySeq) observe(key uint32) {
	if key == math.MaxUint32 {
		k.exhausted = true
		return
	}
	if key+1 > k.next {
		k.next = key + 1
	}
}

// NonDurable is an in-memory queue. Unprocessed entries are lost on restart.
type NonDurable[T any] struct {
	entries deque[Entry[T]]
	keys    keySeq
}

// NewNonDurable returns an empty in-memory queue.
func NewNonDurable[T any]() *NonDurable[T] {
	return &NonDurable[T]{}
}

// Size implements Queue.
func (q *NonDurable[T]) Size() int { return q.entries.size() }

// Empty implements Queue.
func (q *NonDurable[T]) Empty() bool { return q.entries.size() == 0 }

// Front implements Queue.
func (q *NonDurable[T]) Front() (Entry[T], error) {
	e, ok := q.entries.front()
	if !ok {
		return e, ErrEmpty
	}
	return e, nil
}

// PushBack implements Queue.
func (q *NonDurable[T]) PushBack(item T) (uint32, error) {
	key, err := q.keys.allocate()
	if err != nil {
		return 0, err
	}
	q.entries.pushBack(Entry[T]{Key: key, Item: item})
	return key, nil
}

// PopFront implements Queue.
func (q *NonDurable[T]) PopFront() error {
	if _, ok := q.entries.popFront(); !ok {
		return ErrEmpty
	}
	return nil
}
