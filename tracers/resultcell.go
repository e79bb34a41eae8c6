package tracers

import "sync"

// ResultCell is a single-assignment slot a tracer publishes its result
// through. The caller keeps one handle and hands the other to the tracer
// before passing it to the VM; after the execution call returns, the result
// is ready for pickup.
type ResultCell[T any] struct {
	mu  sync.Mutex
	val T
	set bool
}

// NewResultCell returns an empty cell.
func NewResultCell[T any]() *ResultCell[T] {
	return &ResultCell[T]{}
}

// Publish stores the result. A second publish is a tracer bug.
func (c *ResultCell[T]) Publish(val T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.set {
		panic("tracers: result published twice")
	}
	c.val = val
	c.set = true
}

// Take returns the published result, if any.
func (c *ResultCell[T]) Take() (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.val, c.set
}
