package mqtt

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

// RealClient talks to an actual MQTT broker.
type RealClient struct {
	opts    Options
	client  paho.Client
	handler MessageHandler
	logger  *slog.Logger

	mu      sync.Mutex
	pending *ringBuffer
}

// NewRealClient creates a client for opts.Broker. Nothing is sent until Connect.
func NewRealClient(opts Options, handler MessageHandler, logger *slog.Logger) *RealClient {
	opts.applyDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	c := &RealClient{
		opts:    opts,
		handler: handler,
		logger:  logger,
		pending: newRingBuffer(opts.BufferSize),
	}

	po := paho.NewClientOptions().
		AddBroker(opts.Broker).
		SetClientID(opts.ClientID).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetConnectTimeout(opts.ConnectTimeout).
		SetOnConnectHandler(c.onConnect).
		SetConnectionLostHandler(c.onConnectionLost)
	if opts.Username != "" {
		po.SetUsername(opts.Username)
		po.SetPassword(opts.Password)
	}
	if opts.PresenceTopic != "" {
		po.SetWill(opts.PresenceTopic, PresenceOffline, QoSCommand, true)
	}

	c.client = paho.NewClient(po)
	return c
}

// Connect starts connecting and waits up to ConnectTimeout.
func (c *RealClient) Connect() error {
	token := c.client.Connect()
	if !token.WaitTimeout(c.opts.ConnectTimeout) {
		return ErrConnectTimeout
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("connect to broker: %w", err)
	}
	return nil
}

// IsConnected reports whether the connection is currently up.
func (c *RealClient) IsConnected() bool {
	return c.client.IsConnectionOpen()
}

// PublishHeater sends an ON/OFF command. While disconnected the command is
// buffered and sent on reconnect. Never waits for the broker.
func (c *RealClient) PublishHeater(on bool) error {
	msg := HeaterMessage(c.opts.HeaterTopic, on)

	// onConnect drains under c.mu after the link is marked open, so a
	// command pushed here is always flushed by it. Commands queue behind
	// anything still buffered to keep their order.
	c.mu.Lock()
	if c.client.IsConnectionOpen() && c.pending.count == 0 {
		c.publishAsync(msg)
		c.mu.Unlock()
		return nil
	}
	dropped := c.pending.push(msg)
	c.mu.Unlock()

	if dropped {
		c.logger.Warn("mqtt: command buffer full, dropping oldest", "capacity", c.opts.BufferSize)
	}
	c.logger.Info("mqtt: offline, heater command buffered", "on", on)
	return nil
}

// Close publishes offline presence and disconnects.
func (c *RealClient) Close() error {
	if c.opts.PresenceTopic != "" && c.client.IsConnectionOpen() {
		m := PresenceMessage(c.opts.PresenceTopic, PresenceOffline)
		token := c.client.Publish(m.Topic, m.QoS, m.Retained, m.Payload)
		if !token.WaitTimeout(time.Second) {
			c.logger.Warn("mqtt: offline presence publish timeout")
		}
	}
	c.client.Disconnect(250)
	return nil
}

func (c *RealClient) publishAsync(msg Message) {
	token := c.client.Publish(msg.Topic, msg.QoS, msg.Retained, msg.Payload)
	go func() {
		if !token.WaitTimeout(publishTimeout) {
			c.logger.Warn("mqtt: publish timeout", "topic", msg.Topic)
			return
		}
		if err := token.Error(); err != nil {
			c.logger.Warn("mqtt: publish failed", "topic", msg.Topic, "err", err)
		}
	}()
}

// onConnect runs on every (re)connect: subscribe, announce, flush commands.
func (c *RealClient) onConnect(client paho.Client) {
	c.logger.Info("mqtt: connected", "broker", c.opts.Broker)

	if len(c.opts.Subscriptions) > 0 {
		filters := make(map[string]byte, len(c.opts.Subscriptions))
		for _, t := range c.opts.Subscriptions {
			filters[t] = QoSSubscribe
		}
		token := client.SubscribeMultiple(filters, c.onMessage)
		go func() {
			if !token.WaitTimeout(publishTimeout) {
				c.logger.Warn("mqtt: subscribe timeout")
				return
			}
			if err := token.Error(); err != nil {
				c.logger.Warn("mqtt: subscribe failed", "err", err)
				return
			}
			c.logger.Debug("mqtt: subscribed", "topics", len(filters))
		}()
	}

	if c.opts.PresenceTopic != "" {
		c.publishAsync(PresenceMessage(c.opts.PresenceTopic, PresenceOnline))
	}

	c.mu.Lock()
	pending := c.pending.drainAll()
	for _, msg := range pending {
		c.publishAsync(msg)
	}
	c.mu.Unlock()
	if len(pending) > 0 {
		c.logger.Info("mqtt: replayed buffered commands", "count", len(pending))
	}

	if c.opts.OnConnectionChange != nil {
		c.opts.OnConnectionChange(true)
	}
}

func (c *RealClient) onConnectionLost(_ paho.Client, err error) {
	c.logger.Warn("mqtt: connection lost", "err", err)
	if c.opts.OnConnectionChange != nil {
		c.opts.OnConnectionChange(false)
	}
}

func (c *RealClient) onMessage(_ paho.Client, m paho.Message) {
	if c.handler != nil {
		c.handler(m.Topic(), m.Payload())
	}
}
