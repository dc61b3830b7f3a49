package panel

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeney/espresso-dash/internal/capture"
	"github.com/sweeney/espresso-dash/internal/dispatch"
	"github.com/sweeney/espresso-dash/internal/display"
	"github.com/sweeney/espresso-dash/internal/logic"
	"github.com/sweeney/espresso-dash/internal/mqtt"
	"github.com/sweeney/espresso-dash/internal/status"
	"github.com/sweeney/espresso-dash/internal/topic"
)

type manualClock struct {
	mu  sync.Mutex
	now logic.Tick
}

func (c *manualClock) Now() logic.Tick {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Set(t logic.Tick) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

type recordingSink struct {
	mu   sync.Mutex
	recs []capture.Record
}

func (s *recordingSink) Capture(rec capture.Record) {
	s.mu.Lock()
	s.recs = append(s.recs, rec)
	s.mu.Unlock()
}

type fixture struct {
	panel   *Panel
	clock   *manualClock
	client  *mqtt.FakeClient
	tracker *status.Tracker
	sink    *recordingSink
}

func newFixture(t *testing.T, capacity int) *fixture {
	t.Helper()
	clock := &manualClock{}
	router := topic.NewRouter("ns", "dev1")
	client := mqtt.NewFakeClient(router.StateTopic(topic.HeaterKey), nil)
	tracker := status.NewTracker(time.Now(), status.Config{})
	sink := &recordingSink{}
	p := New(Config{
		Router:    router,
		Queue:     dispatch.New(capacity, nil),
		Clock:     clock.Now,
		Commander: client,
		Tracker:   tracker,
		Capture:   sink,
	})
	return &fixture{panel: p, clock: clock, client: client, tracker: tracker, sink: sink}
}

func TestHeaterOnShowsBrew(t *testing.T) {
	f := newFixture(t, dispatch.DefaultCapacity)

	out := f.panel.Ingest("ns/dev1/heater/state", []byte("ON"))
	assert.Equal(t, capture.OutcomeAccepted, out)

	frame := f.panel.Tick()
	assert.True(t, frame.State.HeaterOn)
	assert.Equal(t, display.StatusBrew, frame.Display.Status)
	assert.Equal(t, display.StatusBrew.Color(), frame.Display.Background)
}

func TestInitialFrameIsStandby(t *testing.T) {
	f := newFixture(t, dispatch.DefaultCapacity)

	frame := f.panel.Tick()
	assert.Equal(t, logic.MachineState{}, frame.State)
	assert.Equal(t, display.StatusStandby, frame.Display.Status)
	assert.Equal(t, display.InitialShotLabel, frame.ShotLabel)
}

func TestShotTimerAcrossTicks(t *testing.T) {
	f := newFixture(t, dispatch.DefaultCapacity)
	f.panel.Ingest("ns/dev1/heater/state", []byte("ON"))

	f.clock.Set(5000)
	f.panel.Ingest("ns/dev1/shot_state/state", []byte("1"))
	frame := f.panel.Tick()
	assert.Equal(t, display.StatusShot, frame.Display.Status)
	assert.Equal(t, "Shot: 0.0s", frame.ShotLabel)

	f.clock.Set(5000 + 1230)
	frame = f.panel.Tick()
	assert.Equal(t, "Shot: 1.2s", frame.ShotLabel)

	// a repeated shot=true must not restart the timer
	f.clock.Set(8000)
	f.panel.Ingest("ns/dev1/shot_state/state", []byte("1"))
	frame = f.panel.Tick()
	assert.Equal(t, "Shot: 3.0s", frame.ShotLabel)

	f.clock.Set(9000)
	f.panel.Ingest("ns/dev1/shot_state/state", []byte("0"))
	frame = f.panel.Tick()
	assert.Equal(t, "Shot: 3.0s", frame.ShotLabel, "label freezes when the shot ends")
	assert.Equal(t, display.StatusBrew, frame.Display.Status)
}

func TestEventsAppliedInSubmissionOrder(t *testing.T) {
	f := newFixture(t, dispatch.DefaultCapacity)

	f.panel.Ingest("ns/dev1/pressure/state", []byte("3"))
	f.panel.Ingest("ns/dev1/pressure/state", []byte("9"))
	f.panel.Ingest("ns/dev1/pressure/state", []byte("6.5"))

	frame := f.panel.Tick()
	assert.Equal(t, 6.5, frame.State.PressureBar)
}

func TestOverflowDropsNewest(t *testing.T) {
	f := newFixture(t, 2)

	assert.Equal(t, capture.OutcomeAccepted, f.panel.Ingest("ns/dev1/current_temp/state", []byte("90")))
	assert.Equal(t, capture.OutcomeAccepted, f.panel.Ingest("ns/dev1/set_temp/state", []byte("93")))
	assert.Equal(t, capture.OutcomeDropped, f.panel.Ingest("ns/dev1/current_temp/state", []byte("91")))

	frame := f.panel.Tick()
	assert.Equal(t, 90.0, frame.State.CurrentTempC)
	assert.Equal(t, 93.0, frame.State.SetTempC)
	assert.Equal(t, int64(1), f.tracker.Snapshot().Counts.Dropped)
}

func TestMalformedNumberStoredAsZero(t *testing.T) {
	f := newFixture(t, dispatch.DefaultCapacity)
	f.panel.Ingest("ns/dev1/pressure/state", []byte("4"))
	f.panel.Tick()

	out := f.panel.Ingest("ns/dev1/pressure/state", []byte("abc"))
	assert.Equal(t, capture.OutcomeMalformed, out)

	frame := f.panel.Tick()
	assert.Equal(t, 0.0, frame.State.PressureBar)
	assert.Equal(t, int64(1), f.tracker.Snapshot().Counts.Malformed)
}

func TestRejectedTopicsNeverReachState(t *testing.T) {
	f := newFixture(t, dispatch.DefaultCapacity)

	for _, tp := range []string{
		"ns/dev2/heater/state",
		"other/dev1/heater/state",
		"ns/dev1/heater",
		"ns/dev1/heater/set",
		"ns/dev1/unknown/state",
	} {
		assert.Equal(t, capture.OutcomeRejected, f.panel.Ingest(tp, []byte("ON")), tp)
	}

	frame := f.panel.Tick()
	assert.False(t, frame.State.HeaterOn)

	snap := f.tracker.Snapshot()
	assert.Equal(t, int64(5), snap.Counts.Rejected)
	assert.Equal(t, "ns/dev1/unknown/state", snap.LastRejected)
}

func TestCaptureRecordsOutcomes(t *testing.T) {
	f := newFixture(t, dispatch.DefaultCapacity)

	f.panel.Ingest("ns/dev1/heater/state", []byte("ON"))
	f.panel.Ingest("ns/dev9/heater/state", []byte("ON"))
	f.panel.Ingest("ns/dev1/pressure/state", []byte("x"))

	require.Len(t, f.sink.recs, 3)
	assert.Equal(t, capture.OutcomeAccepted, f.sink.recs[0].Outcome)
	assert.Equal(t, capture.OutcomeRejected, f.sink.recs[1].Outcome)
	assert.Contains(t, f.sink.recs[1].Reason, "device")
	assert.Equal(t, capture.OutcomeMalformed, f.sink.recs[2].Outcome)
	assert.Equal(t, []byte("x"), f.sink.recs[2].Payload)
}

func TestToggleHeaterPublishesCommand(t *testing.T) {
	f := newFixture(t, dispatch.DefaultCapacity)

	assert.Equal(t, dispatch.Accepted, f.panel.Submit(logic.ToggleHeater()))
	frame := f.panel.Tick()
	assert.True(t, frame.State.HeaterOn)

	f.panel.Submit(logic.ToggleHeater())
	frame = f.panel.Tick()
	assert.False(t, frame.State.HeaterOn)

	msgs := f.client.Published()
	require.Len(t, msgs, 2)
	assert.Equal(t, "ns/dev1/heater/state", msgs[0].Topic)
	assert.Equal(t, "ON", string(msgs[0].Payload))
	assert.Equal(t, "OFF", string(msgs[1].Payload))
	assert.True(t, msgs[0].Retained)
	assert.Equal(t, int64(2), f.tracker.Snapshot().Counts.Commands)
}

func TestToggleResolvesAgainstMergedTelemetry(t *testing.T) {
	f := newFixture(t, dispatch.DefaultCapacity)

	// telemetry ahead of the action in the queue is applied first
	f.panel.Ingest("ns/dev1/heater/state", []byte("ON"))
	f.panel.Submit(logic.ToggleHeater())
	frame := f.panel.Tick()

	assert.False(t, frame.State.HeaterOn)
	msgs := f.client.Published()
	require.Len(t, msgs, 1)
	assert.Equal(t, "OFF", string(msgs[0].Payload))
}

func TestCommandErrorIsNotFatal(t *testing.T) {
	f := newFixture(t, dispatch.DefaultCapacity)
	f.client.PublishError = errors.New("broker gone")

	f.panel.Submit(logic.SetHeater(true))
	frame := f.panel.Tick()

	assert.True(t, frame.State.HeaterOn)
	assert.Equal(t, int64(0), f.tracker.Snapshot().Counts.Commands)
}

func TestNilCommanderKeepsActionLocal(t *testing.T) {
	p := New(Config{
		Router: topic.NewRouter("ns", "dev1"),
		Queue:  dispatch.New(4, nil),
		Clock:  func() logic.Tick { return 0 },
	})
	p.Submit(logic.SetHeater(true))
	assert.True(t, p.Tick().State.HeaterOn)
}

// reentrantCommander calls back into the panel while a tick is running.
type reentrantCommander struct {
	panel *Panel
	got   Frame
}

func (c *reentrantCommander) PublishHeater(bool) error {
	c.got = c.panel.Tick()
	return nil
}

func TestReentrantTickReturnsPreviousFrame(t *testing.T) {
	cmd := &reentrantCommander{}
	clock := &manualClock{}
	p := New(Config{
		Router:    topic.NewRouter("ns", "dev1"),
		Queue:     dispatch.New(8, nil),
		Clock:     clock.Now,
		Commander: cmd,
	})
	cmd.panel = p

	clock.Set(100)
	p.Ingest("ns/dev1/current_temp/state", []byte("88"))
	first := p.Tick()

	clock.Set(200)
	p.Submit(logic.ToggleHeater())
	p.Ingest("ns/dev1/current_temp/state", []byte("95"))
	second := p.Tick()

	assert.Equal(t, first, cmd.got, "nested tick must not drain or render")
	assert.Equal(t, 95.0, second.State.CurrentTempC)
	assert.True(t, second.State.HeaterOn)
	assert.Equal(t, second, p.Last())
}

func TestTickPublishesFrameToTracker(t *testing.T) {
	f := newFixture(t, dispatch.DefaultCapacity)
	f.panel.Ingest("ns/dev1/steam_state/state", []byte("ON"))
	f.panel.Ingest("ns/dev1/heater/state", []byte("ON"))
	f.clock.Set(42)
	f.panel.Tick()

	snap := f.tracker.Snapshot()
	assert.Equal(t, display.StatusSteam, snap.Display.Status)
	assert.Equal(t, logic.Tick(42), snap.Tick)
	assert.Equal(t, uint64(1), snap.Frames)
}

func TestTickReportsQueueToTracker(t *testing.T) {
	f := newFixture(t, 8)
	f.panel.Ingest("ns/dev1/pressure/state", []byte("9.0"))
	f.panel.Ingest("ns/dev1/current_temp/state", []byte("93"))
	f.panel.Ingest("ns/dev1/set_temp/state", []byte("95"))
	f.panel.Tick()
	f.panel.Ingest("ns/dev1/pressure/state", []byte("8.5"))
	f.panel.Tick()

	q := f.tracker.Snapshot().Queue
	assert.Equal(t, 8, q.Capacity)
	assert.Equal(t, 1, q.LastBatch)
	assert.Equal(t, 3, q.PeakBatch)
	assert.Equal(t, int64(4), q.Delivered)
}

func TestConcurrentProducersSingleOwner(t *testing.T) {
	f := newFixture(t, 1024)
	var wg sync.WaitGroup

	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				f.panel.Ingest("ns/dev1/pressure/state", []byte("9"))
			}
		}()
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-stop:
				return
			default:
				f.panel.Tick()
			}
		}
	}()

	wg.Wait()
	close(stop)
	<-done

	frame := f.panel.Tick()
	assert.Equal(t, 9.0, frame.State.PressureBar)
	assert.Equal(t, int64(400), f.tracker.Snapshot().Counts.Accepted)
}
