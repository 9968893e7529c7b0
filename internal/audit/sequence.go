package audit

import (
	"sync"
	"time"
)

// Sequence generates monotonically non-decreasing event ids for a
// single Controller instance (§5, "event_id values are monotonically
// non-decreasing in submission order"). Two ids requested within the
// same millisecond are nudged apart by advancing the clock reading by
// a millisecond rather than colliding.
type Sequence struct {
	mu   sync.Mutex
	last time.Time
}

// Next returns the next event id and the timestamp it was derived
// from, to be recorded as the event's utc_timestamp.
func (s *Sequence) Next(now time.Time) (string, time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now = now.UTC()
	if !now.After(s.last) {
		now = s.last.Add(time.Millisecond)
	}
	s.last = now
	return FormatEventID(now), now
}
