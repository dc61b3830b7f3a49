// Package display maps machine state onto dashboard properties.
// Project and ShotTimer are pure; Renderer draws a Model for a terminal.
package display

import (
	"fmt"

	"github.com/sweeney/espresso-dash/internal/logic"
)

// Status is the dashboard mode shown in the header.
type Status string

const (
	StatusStandby Status = "STANDBY"
	StatusBrew    Status = "BREW"
	StatusSteam   Status = "STEAM"
	StatusShot    Status = "SHOT"
)

// Color is a 24-bit RGB value.
type Color uint32

// Background colors per status.
const (
	ColorStandby Color = 0x1E88E5 // blue
	ColorBrew    Color = 0x43A047 // green
	ColorSteam   Color = 0xE53935 // red
	ColorShot    Color = 0xFDD835 // yellow
)

// Hex returns the color as "#RRGGBB".
func (c Color) Hex() string {
	return fmt.Sprintf("#%06X", uint32(c)&0xFFFFFF)
}

// Gauge scales in degrees C and bar.
const (
	BrewScaleMin  = 60.0
	BrewScaleMax  = 110.0
	SteamScaleMin = 110.0
	SteamScaleMax = 160.0

	// SetpointTolerance is the half-width of the band drawn around the setpoint.
	SetpointTolerance = 5.0

	PressureCriticalLow  = 9.0
	PressureCriticalHigh = 10.0
)

// Band is a highlighted arc on a gauge.
type Band struct {
	Start float64
	End   float64
}

// Gauge describes one meter: scale bounds, needle and band.
type Gauge struct {
	Min    float64
	Max    float64
	Needle float64
	Band   Band
}

// Model is everything the dashboard shows for one tick.
type Model struct {
	Status       Status
	Label        string
	Background   Color
	Temperature  Gauge
	Pressure     Gauge
	HeaterSwitch bool
	ShotVolumeML float64
}

// Project maps state to display properties.
func Project(s logic.MachineState) Model {
	status := StatusOf(s)

	temp := Gauge{
		Min:    BrewScaleMin,
		Max:    BrewScaleMax,
		Needle: s.CurrentTempC,
		Band:   Band{Start: s.SetTempC - SetpointTolerance, End: s.SetTempC + SetpointTolerance},
	}
	if s.SteamMode {
		temp.Min = SteamScaleMin
		temp.Max = SteamScaleMax
	}

	return Model{
		Status:      status,
		Label:       string(status),
		Background:  status.Color(),
		Temperature: temp,
		Pressure: Gauge{
			Min:    logic.PressureMinBar,
			Max:    logic.PressureMaxBar,
			Needle: logic.ClampPressure(s.PressureBar),
			Band:   Band{Start: PressureCriticalLow, End: PressureCriticalHigh},
		},
		HeaterSwitch: s.HeaterOn,
		ShotVolumeML: s.ShotVolumeML,
	}
}

// StatusOf evaluates the status precedence. A cold machine is always
// STANDBY; otherwise SHOT beats STEAM beats BREW.
func StatusOf(s logic.MachineState) Status {
	switch {
	case !s.HeaterOn:
		return StatusStandby
	case s.ShotActive:
		return StatusShot
	case s.SteamMode:
		return StatusSteam
	default:
		return StatusBrew
	}
}

// Color returns the background color for the status.
func (s Status) Color() Color {
	switch s {
	case StatusShot:
		return ColorShot
	case StatusSteam:
		return ColorSteam
	case StatusBrew:
		return ColorBrew
	default:
		return ColorStandby
	}
}
