package timewheel

import "sync"

// Slot is a lock-guarded bucket of [Timer]s.  All reads and mutations of its
// timer list are serialized by its own mutex; the [Wheel] holds no mutex of
// its own, so correctness of the whole wheel rests entirely on each slot's
// lock plus the wheel's atomic terminated flag.
type Slot struct {
	mu     sync.Mutex
	timers []*Timer
}

// insert adds t to the slot and sets its back reference.  The caller must not
// already hold mu.
func (s *Slot) insert(t *Timer) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t.slot = s

	s.timers = append(s.timers, t)
}

// remove detaches t from the slot, if present, and clears its back
// reference.  remove reports whether t was found.  Idempotent: removing an
// already-removed timer is a no-op that reports false.
func (s *Slot) remove(t *Timer) (removed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, cur := range s.timers {
		if cur == t {
			s.timers = append(s.timers[:i], s.timers[i+1:]...)
			t.slot = nil

			return true
		}
	}

	return false
}

// check fires and returns every timer in the slot whose remaining-revolution
// counter has already reached zero, and decrements the counter of every
// timer that survives this visit. A timer placed with N remaining
// revolutions is therefore visited N+1 times before it fires: the first N
// visits only decrement it, and the (N+1)th visit, finding the counter at
// zero, removes and fires it. Timers that survive the tick remain in the
// slot, back-reference intact, for the next full revolution.
func (s *Slot) check() (fired []*Timer) {
	s.mu.Lock()
	defer s.mu.Unlock()

	remaining := s.timers[:0]

	for _, t := range s.timers {
		if t.remainingTicks <= 0 {
			t.slot = nil
			fired = append(fired, t)

			continue
		}

		t.remainingTicks--
		remaining = append(remaining, t)
	}

	s.timers = remaining

	return fired
}

// len reports the number of timers currently held by the slot.  Used by
// tests and by [Wheel.Len].
func (s *Slot) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.timers)
}
