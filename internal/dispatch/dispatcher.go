// Package dispatch hands events from producer goroutines (MQTT callbacks,
// GPIO polling) to the single goroutine that owns the machine state.
package dispatch

import (
	"log/slog"
	"sync"

	"github.com/sweeney/espresso-dash/internal/logic"
)

// DefaultCapacity is the queue size used when none is configured.
const DefaultCapacity = 64

// Result is the outcome of Submit.
type Result int

const (
	Accepted Result = iota
	Dropped
)

func (r Result) String() string {
	if r == Dropped {
		return "dropped"
	}
	return "accepted"
}

// Stats contains dispatcher counters.
type Stats struct {
	Len       int
	Capacity  int
	Accepted  int64
	Dropped   int64
	Delivered int64
}

// Dispatcher is a bounded FIFO of events. Submit never blocks: when the
// queue is full the newest event is dropped and Dropped is returned.
// Safe for concurrent Submit while another goroutine drains.
type Dispatcher struct {
	mu       sync.Mutex
	buf      []logic.Event
	capacity int
	head     int // oldest item
	count    int
	overflow bool // true while dropping, cleared by the next drain
	logger   *slog.Logger

	accepted  int64
	dropped   int64
	delivered int64
}

// New creates a Dispatcher holding at most capacity events.
func New(capacity int, logger *slog.Logger) *Dispatcher {
	if capacity < 1 {
		capacity = DefaultCapacity
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		buf:      make([]logic.Event, capacity),
		capacity: capacity,
		logger:   logger,
	}
}

// Submit enqueues ev, or drops it if the queue is full.
func (d *Dispatcher) Submit(ev logic.Event) Result {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.count == d.capacity {
		if !d.overflow {
			d.logger.Warn("dispatch: queue full, dropping newest", "capacity", d.capacity)
			d.overflow = true
		}
		d.dropped++
		return Dropped
	}

	d.buf[(d.head+d.count)%d.capacity] = ev
	d.count++
	d.accepted++
	return Accepted
}

// Drain removes and returns all queued events, oldest first.
// Returns nil when the queue is empty.
func (d *Dispatcher) Drain() []logic.Event {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.count == 0 {
		return nil
	}

	result := make([]logic.Event, d.count)
	for i := 0; i < d.count; i++ {
		idx := (d.head + i) % d.capacity
		result[i] = d.buf[idx]
		d.buf[idx] = logic.Event{}
	}

	d.delivered += int64(d.count)
	d.head = 0
	d.count = 0
	d.overflow = false
	return result
}

// Stats returns a copy of the counters.
func (d *Dispatcher) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return Stats{
		Len:       d.count,
		Capacity:  d.capacity,
		Accepted:  d.accepted,
		Dropped:   d.dropped,
		Delivered: d.delivered,
	}
}
