// Package ringbuf provides the bounded bar window kept per symbol and
// timeframe. The oldest bar is evicted when the window is full.
package ringbuf

import (
	"sync/atomic"

	"confluence-engine/internal/model"
)

// DefaultCapacity covers the longest indicator lookback with headroom.
const DefaultCapacity = 200

// Window is a fixed-capacity FIFO of bars ordered by timestamp.
// Not safe for concurrent use; the engine serialises access per symbol.
type Window struct {
	buf   []model.Bar
	head  int // index of the oldest bar
	count int

	// Rejected pushes (duplicate or out-of-order timestamps), for metrics.
	rejected atomic.Uint64
}

// New creates a window. Capacity below 2 is raised to 2.
func New(capacity int) *Window {
	if capacity < 2 {
		capacity = 2
	}
	return &Window{buf: make([]model.Bar, capacity)}
}

// Push appends a bar. Returns false (and does not write) if the bar's
// timestamp is not strictly after the newest bar in the window.
func (w *Window) Push(b model.Bar) bool {
	if w.count > 0 {
		last := w.buf[(w.head+w.count-1)%len(w.buf)]
		if !b.TS.After(last.TS) {
			w.rejected.Add(1)
			return false
		}
	}

	if w.count < len(w.buf) {
		w.buf[(w.head+w.count)%len(w.buf)] = b
		w.count++
		return true
	}

	// Full: overwrite the oldest and advance head.
	w.buf[w.head] = b
	w.head = (w.head + 1) % len(w.buf)
	return true
}

// Merge pushes every bar in order and returns how many were accepted.
// Bars already present (by timestamp) are skipped, so a collaborator that
// returns an overlapping history can be merged every cycle. While the window
// has room, bars older than its oldest bar are prepended.
func (w *Window) Merge(bars []model.Bar) int {
	n := w.backfill(bars)
	for _, b := range bars {
		if last, ok := w.Last(); ok && !b.TS.After(last.TS) {
			continue
		}
		if w.Push(b) {
			n++
		}
	}
	return n
}

// backfill prepends the leading bars of a batch that predate the window's
// oldest bar, keeping the newest of them when room is short.
func (w *Window) backfill(bars []model.Bar) int {
	if w.count == 0 || w.count >= len(w.buf) {
		return 0
	}
	oldest := w.buf[w.head]

	var older []model.Bar
	for _, b := range bars {
		if !b.TS.Before(oldest.TS) {
			break
		}
		if len(older) > 0 && !b.TS.After(older[len(older)-1].TS) {
			w.rejected.Add(1)
			continue
		}
		older = append(older, b)
	}
	if len(older) == 0 {
		return 0
	}
	if room := len(w.buf) - w.count; len(older) > room {
		older = older[len(older)-room:]
	}

	merged := append(older, w.Bars()...)
	copy(w.buf, merged)
	w.head = 0
	w.count = len(merged)
	return len(older)
}

// Bars returns a copy of the window, oldest first.
func (w *Window) Bars() []model.Bar {
	out := make([]model.Bar, w.count)
	for i := 0; i < w.count; i++ {
		out[i] = w.buf[(w.head+i)%len(w.buf)]
	}
	return out
}

// Last returns the newest bar.
func (w *Window) Last() (model.Bar, bool) {
	if w.count == 0 {
		return model.Bar{}, false
	}
	return w.buf[(w.head+w.count-1)%len(w.buf)], true
}

// Len returns the current number of bars.
func (w *Window) Len() int { return w.count }

// Cap returns the window capacity.
func (w *Window) Cap() int { return len(w.buf) }

// Rejected returns the total number of pushes refused for ordering.
func (w *Window) Rejected() uint64 { return w.rejected.Load() }
