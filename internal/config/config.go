// Package config loads the dashboard configuration from YAML.
package config

import (
	"log/slog"
	"time"
)

// Config is the full daemon configuration.
type Config struct {
	Device  DeviceConfig  `yaml:"device"`
	MQTT    MQTTConfig    `yaml:"mqtt"`
	Display DisplayConfig `yaml:"display"`
	HTTP    HTTPConfig    `yaml:"http"`
	GPIO    GPIOConfig    `yaml:"gpio"`
	Capture CaptureConfig `yaml:"capture"`
	Log     LogConfig     `yaml:"log"`
}

// DeviceConfig identifies the machine whose telemetry is accepted.
type DeviceConfig struct {
	Namespace string `yaml:"namespace"`
	ID        string `yaml:"id"`
}

// MQTTConfig holds broker connection settings.
type MQTTConfig struct {
	Broker         string        `yaml:"broker"`
	ClientID       string        `yaml:"client_id"`
	Username       string        `yaml:"username"`
	Password       string        `yaml:"password"`
	PresenceTopic  string        `yaml:"presence_topic"` // empty disables presence/LWT
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	BufferSize     int           `yaml:"buffer_size"` // heater commands held while offline
}

// DisplayConfig controls the owner loop.
type DisplayConfig struct {
	Tick      time.Duration `yaml:"tick"`
	QueueSize int           `yaml:"queue_size"`
	Headless  bool          `yaml:"headless"`
}

// HTTPConfig enables the status server when Addr is set.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// GPIOConfig configures the physical heater button. HeaterPin 0 disables it.
type GPIOConfig struct {
	Chip      string        `yaml:"chip"`
	HeaterPin int           `yaml:"heater_pin"`
	Poll      time.Duration `yaml:"poll"`
	Debounce  time.Duration `yaml:"debounce"`
}

// CaptureConfig enables the CBOR telemetry capture when Path is set.
type CaptureConfig struct {
	Path string `yaml:"path"`
}

// LogConfig sets the minimum log level (debug, info, warn, error).
// File receives log output in TUI mode, where stderr belongs to the display.
type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// SlogLevel returns the configured level. Validate guarantees it parses.
func (l LogConfig) SlogLevel() slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(l.Level)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}
