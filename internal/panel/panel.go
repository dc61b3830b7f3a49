// Package panel ties the telemetry pipeline together for one dashboard.
//
// Producers (MQTT callbacks, the GPIO button) call Ingest and Submit from
// any goroutine. The owner (the render loop) calls Tick, which alone
// touches the store and the shot timer.
package panel

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sweeney/espresso-dash/internal/capture"
	"github.com/sweeney/espresso-dash/internal/dispatch"
	"github.com/sweeney/espresso-dash/internal/display"
	"github.com/sweeney/espresso-dash/internal/logic"
	"github.com/sweeney/espresso-dash/internal/mqtt"
	"github.com/sweeney/espresso-dash/internal/status"
	"github.com/sweeney/espresso-dash/internal/topic"
)

// Frame is what the owner renders for one tick.
type Frame struct {
	State     logic.MachineState
	Display   display.Model
	ShotLabel string
	Tick      logic.Tick
}

// Config wires a Panel. Router, Queue and Clock are required.
type Config struct {
	Router *topic.Router
	Queue  *dispatch.Dispatcher
	Clock  logic.Clock

	// Commander receives heater actions. Nil makes actions local only.
	Commander mqtt.Commander
	// Tracker, if set, receives every frame and message counts.
	Tracker *status.Tracker
	// Capture, if set, records every inbound message with its outcome.
	Capture capture.Sink

	Logger *slog.Logger
	// Now stamps capture records. Defaults to time.Now.
	Now func() time.Time
}

// Panel is the state owner of one dashboard.
type Panel struct {
	cfg    Config
	logger *slog.Logger
	store  *logic.Store
	timer  *display.ShotTimer

	ticking atomic.Bool

	mu   sync.Mutex
	last Frame
}

// New creates a Panel with zero state.
func New(cfg Config) *Panel {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	zero := logic.MachineState{}
	return &Panel{
		cfg:    cfg,
		logger: cfg.Logger,
		store:  logic.NewStore(cfg.Clock),
		timer:  display.NewShotTimer(),
		last: Frame{
			Display:   display.Project(zero),
			ShotLabel: display.InitialShotLabel,
		},
	}
}

// Ingest routes one inbound message and hands the event to the owner.
// Safe to call from any goroutine; never blocks on the owner.
func (p *Panel) Ingest(topicName string, payload []byte) capture.Outcome {
	ev, err := p.cfg.Router.Parse(topicName, payload)
	if err != nil {
		p.logger.Debug("panel: message rejected", "topic", topicName, "err", err)
		if p.cfg.Tracker != nil {
			p.cfg.Tracker.CountRejected(topicName)
		}
		p.record(topicName, payload, capture.OutcomeRejected, err.Error())
		return capture.OutcomeRejected
	}

	if p.cfg.Queue.Submit(ev) == dispatch.Dropped {
		if p.cfg.Tracker != nil {
			p.cfg.Tracker.CountDropped()
		}
		p.record(topicName, payload, capture.OutcomeDropped, "queue full")
		return capture.OutcomeDropped
	}

	if p.cfg.Tracker != nil {
		p.cfg.Tracker.CountAccepted()
	}
	if ev.Malformed {
		p.logger.Debug("panel: malformed number stored as 0", "topic", topicName, "payload", string(payload))
		if p.cfg.Tracker != nil {
			p.cfg.Tracker.CountMalformed()
		}
		p.record(topicName, payload, capture.OutcomeMalformed, "not a number")
		return capture.OutcomeMalformed
	}

	p.record(topicName, payload, capture.OutcomeAccepted, "")
	return capture.OutcomeAccepted
}

// Submit enqueues a user action. Safe to call from any goroutine.
func (p *Panel) Submit(ev logic.Event) dispatch.Result {
	res := p.cfg.Queue.Submit(ev)
	if res == dispatch.Dropped && p.cfg.Tracker != nil {
		p.cfg.Tracker.CountDropped()
	}
	return res
}

// Tick drains pending events, merges them in order and returns the frame
// for now. Only the owner may call it. A re-entrant call returns the
// previous frame without draining.
func (p *Panel) Tick() Frame {
	if !p.ticking.CompareAndSwap(false, true) {
		p.logger.Debug("panel: re-entrant tick ignored")
		return p.Last()
	}
	defer p.ticking.Store(false)

	events := p.cfg.Queue.Drain()
	for _, ev := range events {
		p.apply(ev)
	}

	now := p.cfg.Clock()
	state := p.store.Snapshot()
	f := Frame{
		State:     state,
		Display:   display.Project(state),
		ShotLabel: p.timer.Label(state, now),
		Tick:      now,
	}

	p.mu.Lock()
	p.last = f
	p.mu.Unlock()

	if p.cfg.Tracker != nil {
		p.cfg.Tracker.SetFrame(f.State, f.Display, f.ShotLabel, f.Tick)
		qs := p.cfg.Queue.Stats()
		p.cfg.Tracker.SetQueue(qs.Capacity, len(events), qs.Delivered)
	}
	return f
}

// Last returns the most recent frame.
func (p *Panel) Last() Frame {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last
}

func (p *Panel) apply(ev logic.Event) {
	switch ev.Kind {
	case logic.EventTelemetry:
		p.store.Merge(ev)
	case logic.EventControl:
		on, ok := ev.HeaterRequest(p.store.Snapshot())
		if !ok {
			return
		}
		// The switch follows the user at once; the retained echo confirms it.
		p.store.Merge(logic.BoolUpdate(logic.FieldHeater, on))
		p.publishHeater(on)
	}
}

func (p *Panel) publishHeater(on bool) {
	if p.cfg.Commander == nil {
		return
	}
	if err := p.cfg.Commander.PublishHeater(on); err != nil {
		p.logger.Warn("panel: heater command failed", "on", on, "err", err)
		return
	}
	p.logger.Info("panel: heater command sent", "on", on)
	if p.cfg.Tracker != nil {
		p.cfg.Tracker.CountCommand()
	}
}

func (p *Panel) record(topicName string, payload []byte, outcome capture.Outcome, reason string) {
	if p.cfg.Capture == nil {
		return
	}
	p.cfg.Capture.Capture(capture.Record{
		Time:    p.cfg.Now(),
		Topic:   topicName,
		Payload: append([]byte(nil), payload...),
		Outcome: outcome,
		Reason:  reason,
	})
}
