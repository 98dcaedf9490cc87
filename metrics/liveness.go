package metrics

import (
	"sync/atomic"
	"time"
)

// LivenessMark records when the poll loop last completed a tick. One atomic
// slot, written by the poll loop and read by the health handler; last writer
// wins, no locking.
type LivenessMark struct {
	unixNano atomic.Int64
}

func (m *LivenessMark) Stamp() {
	m.unixNano.Store(time.Now().UnixNano())
}

// Last returns the time of the most recent Stamp, or the zero time if the
// mark has never been stamped.
func (m *LivenessMark) Last() time.Time {
	n := m.unixNano.Load()
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n)
}
