// Package gpio reads the physical heater button with hardware abstraction.
// The real implementation uses the Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

import (
	"context"
	"log/slog"
	"time"

	"github.com/sweeney/espresso-dash/internal/logic"
)

// Reader reads the button state.
type Reader interface {
	// Read returns true while the button is pressed.
	Read() (bool, error)

	// Close releases GPIO resources.
	Close() error
}

// Defaults for the button watcher.
const (
	DefaultChip     = "gpiochip0"
	DefaultPoll     = 10 * time.Millisecond
	DefaultDebounce = 50 * time.Millisecond
)

// Watcher polls a Reader and submits a heater toggle on each debounced press.
type Watcher struct {
	reader   Reader
	poll     time.Duration
	debounce *logic.Debouncer
	submit   func(logic.Event)
	logger   *slog.Logger
	now      func() time.Time

	failing bool // true from the first failed read until one succeeds
}

// NewWatcher creates a Watcher. submit is called from the watcher's goroutine.
func NewWatcher(r Reader, poll, debounce time.Duration, submit func(logic.Event), logger *slog.Logger) *Watcher {
	if poll <= 0 {
		poll = DefaultPoll
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		reader:   r,
		poll:     poll,
		debounce: logic.NewDebouncer(debounce),
		submit:   submit,
		logger:   logger,
		now:      time.Now,
	}
}

// Run polls until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) {
	ticker := time.NewTicker(w.poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.Sample()
		}
	}
}

// Sample reads the button once and submits a toggle on a debounced press.
// Returns true if a toggle was submitted.
func (w *Watcher) Sample() bool {
	pressed, err := w.reader.Read()
	if err != nil {
		if !w.failing {
			w.logger.Warn("gpio: read failed", "err", err)
			w.failing = true
		}
		return false
	}
	if w.failing {
		w.logger.Info("gpio: read recovered")
		w.failing = false
	}
	if w.debounce.Process(pressed, w.now()) != logic.EdgeRising {
		return false
	}
	w.logger.Info("gpio: heater button pressed")
	w.submit(logic.ToggleHeater())
	return true
}
