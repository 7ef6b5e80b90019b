package mtc

import (
	"context"
	"sync"
)

// Slot hands decoded timecode from the goroutine that owns a Decoder to
// one consumer calling Take.  It holds one value: a new Publish replaces
// a value the consumer has not taken, and that replacement is counted as
// a drop.  Latest may be called by any number of other readers; it
// neither consumes nor affects the drop count.
type Slot struct {
	mu    sync.Mutex
	tc    Timecode
	seq   uint64 // number of publishes
	taken uint64 // seq at the last Take
	drops uint64
	ready chan struct{}
}

func NewSlot() *Slot {
	return &Slot{ready: make(chan struct{}, 1)}
}

// Publish stores tc and wakes a blocked Take.  It never blocks.
func (s *Slot) Publish(tc Timecode) {
	s.mu.Lock()
	if s.seq > s.taken {
		s.drops++
	}
	s.tc = tc
	s.seq++
	s.mu.Unlock()

	select {
	case s.ready <- struct{}{}:
	default:
	}
}

// Latest returns the newest value and its sequence number without
// consuming it.  ok is false until the first Publish.
func (s *Slot) Latest() (tc Timecode, seq uint64, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tc, s.seq, s.seq > 0
}

// Take blocks until a value newer than the last one taken is available,
// or the context is done.
func (s *Slot) Take(ctx context.Context) (Timecode, error) {
	for {
		s.mu.Lock()
		if s.seq > s.taken {
			s.taken = s.seq
			tc := s.tc
			s.mu.Unlock()
			return tc, nil
		}
		s.mu.Unlock()

		select {
		case <-ctx.Done():
			return Timecode{}, ctx.Err()
		case <-s.ready:
		}
	}
}

// Drops is the number of values replaced before the consumer took them.
func (s *Slot) Drops() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.drops
}
