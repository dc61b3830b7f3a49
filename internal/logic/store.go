package logic

import "math"

// Store holds the canonical MachineState and applies events to it.
// Not safe for concurrent use: it is owned by the render loop, and other
// goroutines reach it only through the dispatcher or a Snapshot copy.
type Store struct {
	clock Clock
	state MachineState
}

// NewStore creates a Store with all fields zero. clock stamps shot starts.
func NewStore(clock Clock) *Store {
	return &Store{clock: clock}
}

// Merge applies a telemetry event. Control events and unknown fields leave
// the state unchanged.
func (s *Store) Merge(ev Event) {
	if ev.Kind != EventTelemetry || !ev.Field.Known() {
		return
	}

	switch ev.Field {
	case FieldHeater:
		s.state.HeaterOn = ev.Bool
	case FieldSteam:
		s.state.SteamMode = ev.Bool
	case FieldShot:
		// Rising edge only: a repeated true must not restart the timer.
		if !s.state.ShotActive && ev.Bool {
			s.state.ShotStart = s.clock()
			s.state.ShotStarted = true
		}
		s.state.ShotActive = ev.Bool
	case FieldSetTemp:
		s.state.SetTempC = ev.Float
	case FieldCurrentTemp:
		s.state.CurrentTempC = ev.Float
	case FieldPressure:
		s.state.PressureBar = ClampPressure(ev.Float)
	case FieldShotVolume:
		s.state.ShotVolumeML = ev.Float
	}
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() MachineState {
	return s.state
}

// ClampPressure limits p to [PressureMinBar, PressureMaxBar]. NaN maps to the minimum.
func ClampPressure(p float64) float64 {
	if math.IsNaN(p) || p < PressureMinBar {
		return PressureMinBar
	}
	if p > PressureMaxBar {
		return PressureMaxBar
	}
	return p
}
