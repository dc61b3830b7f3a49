// Package mqtt connects the dashboard to the broker with abstraction for testing.
// Inbound telemetry is handed to a MessageHandler on the client's own
// goroutine; outbound heater commands and presence are published from here.
package mqtt

import (
	"errors"
	"time"
)

// Presence payloads, published retained on the presence topic.
const (
	PresenceOnline  = "online"
	PresenceOffline = "offline"
)

// Heater command payloads.
const (
	PayloadOn  = "ON"
	PayloadOff = "OFF"
)

// QoS levels. Commands and presence are at-least-once.
const (
	QoSSubscribe byte = 1
	QoSCommand   byte = 1
)

// Defaults for Options.
const (
	DefaultConnectTimeout = 10 * time.Second
	DefaultBufferSize     = 16
	publishTimeout        = 5 * time.Second
)

// ErrConnectTimeout is returned when the first connection does not complete in time.
// The client keeps retrying in the background; callers continue offline.
var ErrConnectTimeout = errors.New("mqtt: connect timeout")

// MessageHandler receives inbound messages. It is called from the
// transport's goroutine and must not block.
type MessageHandler func(topic string, payload []byte)

// Commander publishes local control actions.
type Commander interface {
	// PublishHeater requests the heater on or off. It must not block the caller.
	PublishHeater(on bool) error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// Client is the dashboard's connection to the broker.
type Client interface {
	Commander
	ConnectionStatus

	// Connect starts the connection and waits at most Options.ConnectTimeout
	// for it. Returns ErrConnectTimeout when the broker is unreachable.
	Connect() error

	// Close publishes offline presence (if configured) and disconnects.
	Close() error
}

// Options configures a client.
type Options struct {
	Broker   string
	ClientID string
	Username string
	Password string

	// Subscriptions are subscribed on every (re)connect.
	Subscriptions []string
	// HeaterTopic receives ON/OFF commands, retained.
	HeaterTopic string
	// PresenceTopic, if set, carries online/offline (also the LWT).
	PresenceTopic string

	ConnectTimeout time.Duration
	// BufferSize bounds commands held while disconnected.
	BufferSize int

	// OnConnectionChange is called with the new link state.
	OnConnectionChange func(connected bool)
}

func (o *Options) applyDefaults() {
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = DefaultConnectTimeout
	}
	if o.BufferSize <= 0 {
		o.BufferSize = DefaultBufferSize
	}
}

// Message is a single outbound publish.
type Message struct {
	Topic    string
	Payload  []byte
	QoS      byte
	Retained bool
}

// HeaterPayload returns the command payload for the heater state.
func HeaterPayload(on bool) []byte {
	if on {
		return []byte(PayloadOn)
	}
	return []byte(PayloadOff)
}

// HeaterMessage builds the retained command for topic.
func HeaterMessage(topic string, on bool) Message {
	return Message{Topic: topic, Payload: HeaterPayload(on), QoS: QoSCommand, Retained: true}
}

// PresenceMessage builds the retained presence message for topic.
func PresenceMessage(topic, presence string) Message {
	return Message{Topic: topic, Payload: []byte(presence), QoS: QoSCommand, Retained: true}
}
