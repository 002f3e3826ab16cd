// Package sequence hands out the journal sequence numbers that order every
// applied operation.
package sequence

import "sync/atomic"

// Sequencer issues strictly increasing sequence numbers. The zero value
// starts at 1.
type Sequencer struct {
	last atomic.Uint64
}

// New returns a sequencer whose next number is last+1.
func New(last uint64) *Sequencer {
	s := &Sequencer{}
	s.last.Store(last)
	return s
}

func (s *Sequencer) Next() uint64 {
	return s.last.Add(1)
}

// Current is the last number issued, 0 when none was.
func (s *Sequencer) Current() uint64 {
	return s.last.Load()
}

// Resume moves the sequencer forward to v after a replay. It never moves
// backwards so numbers already journaled are not reissued.
func (s *Sequencer) Resume(v uint64) {
	for {
		cur := s.last.Load()
		if v <= cur || s.last.CompareAndSwap(cur, v) {
			return
		}
	}
}
