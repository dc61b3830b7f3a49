package config

import (
	"time"

	"github.com/google/uuid"
)

// Default values for optional configuration fields.
const (
	DefaultNamespace      = "gaggia_classic"
	DefaultBroker         = "tcp://localhost:1883"
	DefaultConnectTimeout = 10 * time.Second
	DefaultBufferSize     = 16
	DefaultTick           = 10 * time.Millisecond
	DefaultQueueSize      = 64
	DefaultGPIOChip       = "gpiochip0"
	DefaultGPIOPoll       = 10 * time.Millisecond
	DefaultGPIODebounce   = 50 * time.Millisecond
	DefaultLogLevel       = "info"
	clientIDPrefix        = "espresso-dash-"
)

// ApplyDefaults fills every unset field. Called after flag overrides.
func (c *Config) ApplyDefaults() {
	if c.Device.Namespace == "" {
		c.Device.Namespace = DefaultNamespace
	}

	if c.MQTT.Broker == "" {
		c.MQTT.Broker = DefaultBroker
	}
	if c.MQTT.ClientID == "" {
		c.MQTT.ClientID = clientIDPrefix + uuid.NewString()[:8]
	}
	if c.MQTT.ConnectTimeout == 0 {
		c.MQTT.ConnectTimeout = DefaultConnectTimeout
	}
	if c.MQTT.BufferSize == 0 {
		c.MQTT.BufferSize = DefaultBufferSize
	}

	if c.Display.Tick == 0 {
		c.Display.Tick = DefaultTick
	}
	if c.Display.QueueSize == 0 {
		c.Display.QueueSize = DefaultQueueSize
	}

	if c.GPIO.Chip == "" {
		c.GPIO.Chip = DefaultGPIOChip
	}
	if c.GPIO.Poll == 0 {
		c.GPIO.Poll = DefaultGPIOPoll
	}
	if c.GPIO.Debounce == 0 {
		c.GPIO.Debounce = DefaultGPIODebounce
	}

	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
}
