// Package ring provides a bounded FIFO that overwrites its oldest entry
// when full.
package ring

// Ring is a fixed-capacity FIFO. It is not safe for concurrent use.
type Ring[T any] struct {
	items []T
	head  int
	size  int
}

// New creates a ring holding at most capacity items. A capacity below one
// is raised to one.
func New[T any](capacity int) *Ring[T] {
	if capacity < 1 {
		capacity = 1
	}

	return &Ring[T]{items: make([]T, capacity)}
}

// Push appends item, evicting the oldest item when the ring is full.
func (r *Ring[T]) Push(item T) {
	tail := (r.head + r.size) % len(r.items)
	r.items[tail] = item

	if r.size < len(r.items) {
		r.size++
		return
	}
	r.head = (r.head + 1) % len(r.items)
}

// Peek returns the newest item.
func (r *Ring[T]) Peek() (T, bool) {
	var zero T
	if r.size == 0 {
		return zero, false
	}

	return r.items[(r.head+r.size-1)%len(r.items)], true
}

// Items returns a copy of the contents, oldest first.
func (r *Ring[T]) Items() []T {
	out := make([]T, r.size)
	for i := range r.size {
		out[i] = r.items[(r.head+i)%len(r.items)]
	}

	return out
}

// Reset empties the ring, keeping its capacity.
func (r *Ring[T]) Reset() {
	clear(r.items)
	r.head, r.size = 0, 0
}

// Len returns the number of items.
func (r *Ring[T]) Len() int { return r.size }

// Cap returns the capacity.
func (r *Ring[T]) Cap() int { return len(r.items) }

// IsEmpty reports whether the ring holds no items.
func (r *Ring[T]) IsEmpty() bool { return r.size == 0 }
