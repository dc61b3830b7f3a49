// Package status provides a thread-safe view of the dashboard for readers
// outside the render loop (HTTP handlers, websocket clients).
package status

import (
	"sync"
	"time"

	"github.com/sweeney/espresso-dash/internal/display"
	"github.com/sweeney/espresso-dash/internal/logic"
)

// Config contains daemon configuration for display.
type Config struct {
	Broker    string
	Namespace string
	DeviceID  string
	TickMs    int64
	QueueSize int
	HTTPAddr  string
}

// Counts tracks what happened to inbound messages since startup.
type Counts struct {
	Received  int64
	Accepted  int64
	Rejected  int64
	Malformed int64
	Dropped   int64
	Commands  int64
}

// Queue describes the event queue as seen by the last tick.
type Queue struct {
	Capacity  int
	LastBatch int // events merged by the last tick
	PeakBatch int
	Delivered int64
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	State     logic.MachineState
	Display   display.Model
	ShotLabel string
	Tick      logic.Tick
	Frames    uint64

	Counts       Counts
	LastRejected string // topic of the last rejected message
	Queue        Queue

	MQTTConnected bool
	StartTime     time.Time
	Now           time.Time
	Config        Config

	// Seq increases whenever a visible value changes.
	Seq uint64
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds the latest snapshot behind an RWMutex.
type Tracker struct {
	mu      sync.RWMutex
	snap    Snapshot
	changed chan struct{}
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
			Display:   display.Project(logic.MachineState{}),
			ShotLabel: display.InitialShotLabel,
		},
		changed: make(chan struct{}),
	}
}

// SetFrame records the frame produced by the render loop.
func (t *Tracker) SetFrame(state logic.MachineState, model display.Model, shotLabel string, tick logic.Tick) {
	t.mu.Lock()
	defer t.mu.Unlock()

	visible := t.snap.State != state || t.snap.Display != model || t.snap.ShotLabel != shotLabel
	t.snap.State = state
	t.snap.Display = model
	t.snap.ShotLabel = shotLabel
	t.snap.Tick = tick
	t.snap.Frames++
	if visible {
		t.bumpLocked()
	}
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.snap.MQTTConnected != connected {
		t.snap.MQTTConnected = connected
		t.bumpLocked()
	}
}

// SetQueue records the queue after a tick merged batch events.
func (t *Tracker) SetQueue(capacity, batch int, delivered int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.snap.Queue.Capacity = capacity
	t.snap.Queue.LastBatch = batch
	t.snap.Queue.Delivered = delivered
	if batch > t.snap.Queue.PeakBatch {
		t.snap.Queue.PeakBatch = batch
	}
}

// CountAccepted records a message that reached the dispatcher.
func (t *Tracker) CountAccepted() {
	t.mu.Lock()
	t.snap.Counts.Received++
	t.snap.Counts.Accepted++
	t.mu.Unlock()
}

// CountMalformed records an accepted message whose number did not parse.
func (t *Tracker) CountMalformed() {
	t.mu.Lock()
	t.snap.Counts.Malformed++
	t.mu.Unlock()
}

// CountRejected records a message the router refused.
func (t *Tracker) CountRejected(topic string) {
	t.mu.Lock()
	t.snap.Counts.Received++
	t.snap.Counts.Rejected++
	t.snap.LastRejected = topic
	t.mu.Unlock()
}

// CountDropped records an event the full dispatcher refused.
func (t *Tracker) CountDropped() {
	t.mu.Lock()
	t.snap.Counts.Dropped++
	t.mu.Unlock()
}

// CountCommand records an outbound heater command.
func (t *Tracker) CountCommand() {
	t.mu.Lock()
	t.snap.Counts.Commands++
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}

// Changed returns a channel closed at the next visible change.
func (t *Tracker) Changed() <-chan struct{} {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.changed
}

// bumpLocked must be called with the write lock held.
func (t *Tracker) bumpLocked() {
	t.snap.Seq++
	close(t.changed)
	t.changed = make(chan struct{})
}
