package queue

type node[T any] struct {
	value T
	next  *node[T]
}

// deque is a singly linked FIFO. It is not safe for concurrent use; the
// owning queue variant documents its locking requirements.
type deque[T any] struct {
	head *node[T]
	tail *node[T]
	len  int
}

func (d *deque[T]) pushBack(value T) {
	n := &node[T]{value: value}
	if d.len == 0 {
		d.head = n
		d.tail = n
	} else {
		d.tail.next = n
		d.tail = n
	}
	d.len++
}

func (d *deque[T]) front() (zero T, _ bool) {
	if d.len == 0 {
		return zero, false
	}
	return d.head.value, true
}

func (d *deque[T]) popFront() (zero T, _ bool) {
	if d.len == 0 {
		return zero, false
	}

	current := d.head
	d.head = current.next
	if d.head == nil {
		d.tail = nil
	}
	d.len--
	current.next = nil

	return current.value, true
}

func (d *deque[T]) size() int {
	return d.len
}
