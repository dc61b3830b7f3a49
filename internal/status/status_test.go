package status

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/sweeney/espresso-dash/internal/display"
	"github.com/sweeney/espresso-dash/internal/logic"
)

func TestNewTracker(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cfg := Config{Broker: "tcp://localhost:1883", DeviceID: "dev1", TickMs: 10, QueueSize: 64}
	tr := NewTracker(start, cfg)

	snap := tr.Snapshot()
	if !snap.StartTime.Equal(start) {
		t.Errorf("StartTime: got %v, want %v", snap.StartTime, start)
	}
	if snap.Config.DeviceID != "dev1" {
		t.Errorf("Config.DeviceID: got %q, want %q", snap.Config.DeviceID, "dev1")
	}
	if snap.Display.Status != display.StatusStandby {
		t.Errorf("Display.Status: got %q, want STANDBY", snap.Display.Status)
	}
	if snap.ShotLabel != display.InitialShotLabel {
		t.Errorf("ShotLabel: got %q, want %q", snap.ShotLabel, display.InitialShotLabel)
	}
	if snap.MQTTConnected {
		t.Error("expected MQTTConnected=false initially")
	}
}

func TestSetFrameAndSnapshot(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	state := logic.MachineState{HeaterOn: true, CurrentTempC: 92}

	tr.SetFrame(state, display.Project(state), "Shot: 3.1s", 1234)

	snap := tr.Snapshot()
	if snap.State != state {
		t.Errorf("State: got %+v, want %+v", snap.State, state)
	}
	if snap.Display.Status != display.StatusBrew {
		t.Errorf("Display.Status: got %q, want BREW", snap.Display.Status)
	}
	if snap.ShotLabel != "Shot: 3.1s" {
		t.Errorf("ShotLabel: got %q", snap.ShotLabel)
	}
	if snap.Tick != 1234 {
		t.Errorf("Tick: got %d, want 1234", snap.Tick)
	}
	if snap.Frames != 1 {
		t.Errorf("Frames: got %d, want 1", snap.Frames)
	}
}

func TestSeqOnlyAdvancesOnVisibleChange(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	state := logic.MachineState{HeaterOn: true}
	model := display.Project(state)

	tr.SetFrame(state, model, display.InitialShotLabel, 1)
	seq := tr.Snapshot().Seq

	// Same visible content on later ticks
	tr.SetFrame(state, model, display.InitialShotLabel, 2)
	tr.SetFrame(state, model, display.InitialShotLabel, 3)
	if got := tr.Snapshot().Seq; got != seq {
		t.Errorf("Seq: got %d, want %d (no visible change)", got, seq)
	}

	tr.SetFrame(state, model, "Shot: 0.1s", 4)
	if got := tr.Snapshot().Seq; got != seq+1 {
		t.Errorf("Seq: got %d, want %d", got, seq+1)
	}
}

func TestChangedClosesOnChange(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	ch := tr.Changed()

	select {
	case <-ch:
		t.Fatal("changed channel closed before any change")
	default:
	}

	tr.SetMQTTConnected(true)

	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("changed channel not closed after change")
	}

	// Setting the same value again is not a change
	ch = tr.Changed()
	tr.SetMQTTConnected(true)
	select {
	case <-ch:
		t.Error("changed channel closed without a change")
	default:
	}
}

func TestCounts(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})

	tr.CountAccepted()
	tr.CountAccepted()
	tr.CountMalformed()
	tr.CountRejected("ns/dev2/heater/state")
	tr.CountDropped()
	tr.CountCommand()

	c := tr.Snapshot().Counts
	want := Counts{Received: 3, Accepted: 2, Rejected: 1, Malformed: 1, Dropped: 1, Commands: 1}
	if c != want {
		t.Errorf("Counts: got %+v, want %+v", c, want)
	}
	if got := tr.Snapshot().LastRejected; got != "ns/dev2/heater/state" {
		t.Errorf("LastRejected: got %q", got)
	}
}

func TestSetQueueTracksPeak(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	seq := tr.Snapshot().Seq

	tr.SetQueue(64, 5, 5)
	tr.SetQueue(64, 2, 7)

	q := tr.Snapshot().Queue
	want := Queue{Capacity: 64, LastBatch: 2, PeakBatch: 5, Delivered: 7}
	if q != want {
		t.Errorf("Queue: got %+v, want %+v", q, want)
	}
	if got := tr.Snapshot().Seq; got != seq {
		t.Errorf("Seq: queue stats are not a visible change, got %d want %d", got, seq)
	}

	var parsed StatusJSON
	if err := json.Unmarshal(FormatJSON(tr.Snapshot()), &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if parsed.Status.Queue.PeakBatch != 5 || parsed.Status.Queue.Capacity != 64 {
		t.Errorf("queue JSON: got %+v", parsed.Status.Queue)
	}
}

func TestSnapshotUptime(t *testing.T) {
	start := time.Now().Add(-90 * time.Second)
	tr := NewTracker(start, Config{})
	if up := tr.Snapshot().Uptime(); up < 90*time.Second {
		t.Errorf("Uptime: got %v, want >= 90s", up)
	}
}

func TestFormatJSON(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tr := NewTracker(start, Config{Broker: "tcp://broker:1883", Namespace: "ns", DeviceID: "dev1", TickMs: 10})
	state := logic.MachineState{HeaterOn: true, SteamMode: true, CurrentTempC: 130, SetTempC: 140, PressureBar: 1.5}
	tr.SetFrame(state, display.Project(state), "Shot: 00.0s", 10)
	tr.SetMQTTConnected(true)

	var parsed StatusJSON
	if err := json.Unmarshal(FormatJSON(tr.Snapshot()), &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	s := parsed.Status
	if s.Mode != "STEAM" {
		t.Errorf("Mode: got %q, want STEAM", s.Mode)
	}
	if s.Color != "#E53935" {
		t.Errorf("Color: got %q, want #E53935", s.Color)
	}
	if s.Gauges.Temperature.Min != 110 || s.Gauges.Temperature.Max != 160 {
		t.Errorf("temperature scale: got [%v,%v], want [110,160]", s.Gauges.Temperature.Min, s.Gauges.Temperature.Max)
	}
	if s.Gauges.Pressure.BandStart != 9 || s.Gauges.Pressure.BandEnd != 10 {
		t.Errorf("pressure band: got [%v,%v], want [9,10]", s.Gauges.Pressure.BandStart, s.Gauges.Pressure.BandEnd)
	}
	if !s.Machine.HeaterOn || !s.Machine.SteamMode {
		t.Errorf("machine: got %+v", s.Machine)
	}
	if !s.MQTT.Connected || s.MQTT.Broker != "tcp://broker:1883" {
		t.Errorf("mqtt: got %+v", s.MQTT)
	}
	if s.StartTime != "2026-01-01T00:00:00Z" {
		t.Errorf("StartTime: got %q", s.StartTime)
	}
	if s.Config.DeviceID != "dev1" {
		t.Errorf("Config.DeviceID: got %q", s.Config.DeviceID)
	}
}

func TestFormatJSONOmitsLastRejectedWhenEmpty(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	var raw map[string]map[string]any
	if err := json.Unmarshal(FormatCompactJSON(tr.Snapshot()), &raw); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if _, ok := raw["status"]["last_rejected"]; ok {
		t.Error("last_rejected should be omitted when empty")
	}
}

func TestConcurrentAccess(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	var wg sync.WaitGroup

	for i := 0; i < 10; i++ {
		wg.Add(3)
		go func(i int) {
			defer wg.Done()
			s := logic.MachineState{CurrentTempC: float64(i)}
			tr.SetFrame(s, display.Project(s), display.InitialShotLabel, logic.Tick(i))
		}(i)
		go func() {
			defer wg.Done()
			tr.CountAccepted()
			tr.SetMQTTConnected(true)
		}()
		go func() {
			defer wg.Done()
			_ = tr.Snapshot()
			_ = tr.Changed()
		}()
	}
	wg.Wait()
}
