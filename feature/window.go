// Package feature turns captured ICMP observations into feature records.
//
// The Window keeps the most recent observations for rolling statistics and is
// owned by the capture loop; it does no locking.
package feature

import (
	"time"

	"github.com/montanaflynn/stats"
)

// WindowSize is the maximum number of observations kept for rolling statistics.
const WindowSize = 50

// rateFloor is added to the window time span so the rate stays finite for a
// single observation or a burst with identical timestamps.
const rateFloor = 0.1

type entry struct {
	ts  time.Time
	ttl float64
}

// Window is a bounded FIFO buffer of recent observations.
type Window struct {
	entries []entry
	limit   int
}

// NewWindow creates a window holding at most WindowSize entries.
func NewWindow() *Window {
	return NewWindowSize(WindowSize)
}

// NewWindowSize creates a window with a custom bound.
func NewWindowSize(limit int) *Window {
	if limit <= 0 {
		limit = WindowSize
	}
	return &Window{
		entries: make([]entry, 0, limit+1),
		limit:   limit,
	}
}

// Push appends an observation, evicting the oldest when over the bound.
func (w *Window) Push(ts time.Time, ttl int) {
	w.entries = append(w.entries, entry{ts: ts, ttl: float64(ttl)})
	if len(w.entries) > w.limit {
		copy(w.entries, w.entries[1:])
		w.entries = w.entries[:len(w.entries)-1]
	}
}

// Len returns the number of observations held.
func (w *Window) Len() int {
	return len(w.entries)
}

// Rate returns observations per second across the window:
// count / (max(ts) - min(ts) + 0.1s). It is never negative or infinite.
func (w *Window) Rate() float64 {
	if len(w.entries) == 0 {
		return 0
	}

	lo, hi := w.entries[0].ts, w.entries[0].ts
	for _, e := range w.entries[1:] {
		if e.ts.Before(lo) {
			lo = e.ts
		}
		if e.ts.After(hi) {
			hi = e.ts
		}
	}

	span := hi.Sub(lo).Seconds()
	return float64(len(w.entries)) / (span + rateFloor)
}

// TTLVariance returns the sample variance of TTL values, or 0 with fewer
// than two observations.
func (w *Window) TTLVariance() float64 {
	if len(w.entries) < 2 {
		return 0
	}

	ttls := make(stats.Float64Data, len(w.entries))
	for i, e := range w.entries {
		ttls[i] = e.ttl
	}
	v, err := stats.SampleVariance(ttls)
	if err != nil {
		return 0
	}
	return v
}
