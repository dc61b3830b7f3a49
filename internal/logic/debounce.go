package logic

import "time"

// Edge is a debounced transition of a boolean input.
type Edge int

const (
	EdgeNone Edge = iota
	EdgeRising
	EdgeFalling
)

// Debouncer turns raw boolean samples into debounced edges.
// No edges are reported until the first stable value (the baseline) is known.
type Debouncer struct {
	duration     time.Duration
	stable       bool
	pending      bool
	pendingSince time.Time
	hasPending   bool
	baselined    bool
}

// NewDebouncer creates a Debouncer requiring a value to hold for d before it counts.
func NewDebouncer(d time.Duration) *Debouncer {
	return &Debouncer{duration: d}
}

// Process takes a sample and returns the edge it completes, if any.
func (d *Debouncer) Process(v bool, now time.Time) Edge {
	if !d.baselined {
		if !d.hasPending || d.pending != v {
			// Start observing, or restart after a change during baseline
			d.pending = v
			d.pendingSince = now
			d.hasPending = true
			return EdgeNone
		}
		if now.Sub(d.pendingSince) >= d.duration {
			d.stable = v
			d.baselined = true
			d.hasPending = false
		}
		return EdgeNone
	}

	if v == d.stable {
		d.hasPending = false
		return EdgeNone
	}

	if !d.hasPending || d.pending != v {
		d.pending = v
		d.pendingSince = now
		d.hasPending = true
		return EdgeNone
	}

	if now.Sub(d.pendingSince) < d.duration {
		return EdgeNone
	}

	d.stable = v
	d.hasPending = false
	if v {
		return EdgeRising
	}
	return EdgeFalling
}
