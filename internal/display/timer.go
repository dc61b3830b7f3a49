package display

import (
	"fmt"

	"github.com/sweeney/espresso-dash/internal/logic"
)

// InitialShotLabel is shown before the first shot.
const InitialShotLabel = "Shot: 00.0s"

// ShotTimer derives the elapsed-shot label. While no shot is running the
// last label stays on screen.
type ShotTimer struct {
	label string
}

// NewShotTimer creates a timer showing InitialShotLabel.
func NewShotTimer() *ShotTimer {
	return &ShotTimer{label: InitialShotLabel}
}

// Label returns the label for this tick.
func (t *ShotTimer) Label(s logic.MachineState, now logic.Tick) string {
	if s.ShotActive && s.ShotStarted {
		t.label = FormatElapsed(now - s.ShotStart)
	}
	return t.label
}

// FormatElapsed formats ms as "Shot: S.Ds", truncating to deciseconds.
func FormatElapsed(ms logic.Tick) string {
	if ms < 0 {
		ms = 0
	}
	return fmt.Sprintf("Shot: %d.%ds", ms/1000, (ms%1000)/100)
}
