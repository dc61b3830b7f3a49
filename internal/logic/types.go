// Package logic contains the pure machine-state model for the espresso dashboard.
// This package has NO external dependencies (no MQTT, display, GPIO or OS).
// Time is always injectable via a Clock.
package logic

import (
	"fmt"
	"time"
)

// Tick is a monotonic millisecond counter. It is unaffected by wall-clock changes.
type Tick int64

// Clock returns the current monotonic tick.
type Clock func() Tick

// MonotonicClock returns a Clock counting milliseconds since start.
// time.Since uses the monotonic reading carried by start.
func MonotonicClock(start time.Time) Clock {
	return func() Tick {
		return Tick(time.Since(start).Milliseconds())
	}
}

// Pressure bounds in bar. Stored pressure is always inside this range.
const (
	PressureMinBar = 0.0
	PressureMaxBar = 12.0
)

// MachineState is the canonical view of the machine.
// It is a value type; copies are safe to hand to other goroutines.
type MachineState struct {
	HeaterOn   bool
	SteamMode  bool
	ShotActive bool

	SetTempC     float64
	CurrentTempC float64
	PressureBar  float64
	ShotVolumeML float64

	// ShotStart is the tick of the last false->true edge of ShotActive.
	// Only meaningful when ShotStarted is true.
	ShotStart   Tick
	ShotStarted bool
}

// Field identifies the MachineState field an event writes.
type Field uint8

const (
	FieldNone Field = iota
	FieldHeater
	FieldSteam
	FieldShot
	FieldSetTemp
	FieldCurrentTemp
	FieldPressure
	FieldShotVolume
)

// IsBool reports whether the field carries a boolean value.
func (f Field) IsBool() bool {
	switch f {
	case FieldHeater, FieldSteam, FieldShot:
		return true
	}
	return false
}

// Known reports whether the field is one the store applies.
func (f Field) Known() bool {
	return f > FieldNone && f <= FieldShotVolume
}

func (f Field) String() string {
	switch f {
	case FieldHeater:
		return "heater_on"
	case FieldSteam:
		return "steam_mode"
	case FieldShot:
		return "shot_active"
	case FieldSetTemp:
		return "set_temp_c"
	case FieldCurrentTemp:
		return "current_temp_c"
	case FieldPressure:
		return "pressure_bar"
	case FieldShotVolume:
		return "shot_volume_ml"
	}
	return fmt.Sprintf("field(%d)", uint8(f))
}

// EventKind distinguishes the two event variants.
type EventKind uint8

const (
	// EventTelemetry is a single-field state update received from the network.
	EventTelemetry EventKind = iota + 1
	// EventControl is a local user action (heater switch, button).
	EventControl
)

// Action is the user-control action carried by an EventControl event.
type Action uint8

const (
	ActionNone Action = iota
	// ActionToggleHeater requests the opposite of the current heater state.
	ActionToggleHeater
	// ActionSetHeater requests the heater state in Event.Bool.
	ActionSetHeater
)

// Event is the unit handed from producers to the owner of the state.
type Event struct {
	Kind EventKind

	// Telemetry fields
	Field Field
	Bool  bool
	Float float64
	Key   string // topic key the event was parsed from, for diagnostics
	// Malformed marks a numeric payload that failed to parse. Float is 0.
	Malformed bool

	// Control fields
	Action Action
}

// BoolUpdate creates a telemetry event for a boolean field.
func BoolUpdate(f Field, v bool) Event {
	return Event{Kind: EventTelemetry, Field: f, Bool: v}
}

// FloatUpdate creates a telemetry event for a numeric field.
func FloatUpdate(f Field, v float64) Event {
	return Event{Kind: EventTelemetry, Field: f, Float: v}
}

// ToggleHeater creates a user action flipping the heater.
func ToggleHeater() Event {
	return Event{Kind: EventControl, Action: ActionToggleHeater}
}

// SetHeater creates a user action requesting an explicit heater state.
func SetHeater(on bool) Event {
	return Event{Kind: EventControl, Action: ActionSetHeater, Bool: on}
}

// HeaterRequest resolves a control event against the current state.
// ok is false when the event is not a heater action.
func (e Event) HeaterRequest(current MachineState) (on bool, ok bool) {
	if e.Kind != EventControl {
		return false, false
	}
	switch e.Action {
	case ActionToggleHeater:
		return !current.HeaterOn, true
	case ActionSetHeater:
		return e.Bool, true
	}
	return false, false
}
