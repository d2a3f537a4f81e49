// Package pool provides typed sync.Pool wrappers for per-call scratch
// state. Each Get hands out a value that no other goroutine holds until it
// is returned with Put.
package pool

import "sync"

// Pool is a typed free list of *T values.
type Pool[T any] struct {
	p     sync.Pool
	reset func(*T)
}

// New returns a Pool whose values are passed through reset on every Get.
// reset may be nil.
func New[T any](reset func(*T)) *Pool[T] {
	return &Pool[T]{
		p: sync.Pool{
			New: func() any { return new(T) },
		},
		reset: reset,
	}
}

// Get returns a value from the pool, allocating one if the pool is empty.
// The caller must call Put when done.
func (p *Pool[T]) Get() *T {
	v := p.p.Get().(*T)
	if p.reset != nil {
		p.reset(v)
	}
	return v
}

// Put returns v to the pool. v must not be used afterwards. Put(nil) is a
// no-op.
func (p *Pool[T]) Put(v *T) {
	if v == nil {
		return
	}
	p.p.Put(v)
}
