package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	if c.Device.ID == "" {
		return errors.New("device.id is required")
	}
	if strings.ContainsAny(c.Device.ID, "/+#") {
		return fmt.Errorf("device.id must not contain '/', '+' or '#', got %q", c.Device.ID)
	}
	if strings.ContainsAny(c.Device.Namespace, "/+#") {
		return fmt.Errorf("device.namespace must not contain '/', '+' or '#', got %q", c.Device.Namespace)
	}

	if c.MQTT.Broker == "" {
		return errors.New("mqtt.broker is required")
	}
	if c.MQTT.ConnectTimeout < 0 {
		return errors.New("mqtt.connect_timeout must be >= 0")
	}
	if c.MQTT.BufferSize < 1 {
		return errors.New("mqtt.buffer_size must be >= 1")
	}

	if c.Display.Tick <= 0 {
		return errors.New("display.tick must be > 0")
	}
	if c.Display.QueueSize < 1 {
		return errors.New("display.queue_size must be >= 1")
	}

	if c.GPIO.HeaterPin < 0 {
		return fmt.Errorf("gpio.heater_pin must be >= 0, got %d", c.GPIO.HeaterPin)
	}
	if c.GPIO.Poll <= 0 {
		return errors.New("gpio.poll must be > 0")
	}

	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}

	return nil
}
