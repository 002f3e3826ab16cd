package memory

import "sync"

// Pool is a typed sync.Pool. Values handed back through Put are passed to
// the reset hook first so the next Get never observes stale contents.
type Pool[T any] struct {
	p     sync.Pool
	reset func(*T)
}

func NewPool[T any](ctor func() *T, reset func(*T)) *Pool[T] {
	pool := &Pool[T]{reset: reset}
	pool.p.New = func() any { return ctor() }
	return pool
}

func (p *Pool[T]) Get() *T {
	return p.p.Get().(*T)
}

func (p *Pool[T]) Put(v *T) {
	if v == nil {
		return
	}
	if p.reset != nil {
		p.reset(v)
	}
	p.p.Put(v)
}

// maxPooledBuffer keeps one oversized payload from pinning memory forever.
const maxPooledBuffer = 1 << 20

// NewBufferPool pools byte slices with the given starting capacity.
// Slices that grew past maxPooledBuffer are dropped on Put.
func NewBufferPool(size int) *Pool[[]byte] {
	return NewPool(
		func() *[]byte {
			b := make([]byte, 0, size)
			return &b
		},
		func(b *[]byte) {
			if cap(*b) > maxPooledBuffer {
				*b = make([]byte, 0, size)
				return
			}
			*b = (*b)[:0]
		},
	)
}
