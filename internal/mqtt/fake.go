package mqtt

import "sync"

// FakeClient records publishes for test assertions and lets tests inject
// inbound messages through Deliver.
type FakeClient struct {
	mu sync.Mutex

	// Messages contains all outbound publishes, presence included.
	Messages []Message

	// HeaterTopic is used for heater commands.
	HeaterTopic string

	// PresenceTopic, if set, receives online on Connect and offline on Close.
	PresenceTopic string

	// ConnectError, if set, will be returned by Connect.
	ConnectError error

	// PublishError, if set, will be returned by PublishHeater.
	PublishError error

	// Connected controls the return value of IsConnected.
	Connected bool

	// Closed tracks if Close was called.
	Closed bool

	handler MessageHandler
}

// NewFakeClient creates a FakeClient delivering inbound messages to handler.
func NewFakeClient(heaterTopic string, handler MessageHandler) *FakeClient {
	return &FakeClient{HeaterTopic: heaterTopic, handler: handler}
}

// Connect marks the client connected unless ConnectError is set.
func (f *FakeClient) Connect() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.ConnectError != nil {
		return f.ConnectError
	}
	f.Connected = true
	if f.PresenceTopic != "" {
		f.Messages = append(f.Messages, PresenceMessage(f.PresenceTopic, PresenceOnline))
	}
	return nil
}

// PublishHeater records the heater command.
func (f *FakeClient) PublishHeater(on bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.PublishError != nil {
		return f.PublishError
	}
	f.Messages = append(f.Messages, HeaterMessage(f.HeaterTopic, on))
	return nil
}

// IsConnected reports whether the fake client is "connected".
func (f *FakeClient) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Connected
}

// Close marks the client closed.
func (f *FakeClient) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.PresenceTopic != "" && f.Connected {
		f.Messages = append(f.Messages, PresenceMessage(f.PresenceTopic, PresenceOffline))
	}
	f.Closed = true
	f.Connected = false
	return nil
}

// Deliver simulates an inbound message from the broker.
func (f *FakeClient) Deliver(topic string, payload []byte) {
	if f.handler != nil {
		f.handler(topic, payload)
	}
}

// Published returns a copy of the recorded messages.
func (f *FakeClient) Published() []Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Message(nil), f.Messages...)
}

// Reset clears recorded messages and errors.
func (f *FakeClient) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Messages = nil
	f.ConnectError = nil
	f.PublishError = nil
	f.Connected = false
	f.Closed = false
}

var (
	_ Client = (*FakeClient)(nil)
	_ Client = (*RealClient)(nil)
)
