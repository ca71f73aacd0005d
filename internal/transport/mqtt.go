// Package transport connects the pipeline to the message bus: picks are
// received from one MQTT topic and published origins are sent to another.
package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/scocto/scoctoloc/internal/model"
)

// Default timeouts.
const (
	DefaultConnectTimeout = 5 * time.Second
	DefaultPublishTimeout = 2 * time.Second
)

// ErrNotConnected is returned by Send while the broker connection is down.
var ErrNotConnected = errors.New("mqtt not connected")

// Config configures the MQTT transport.
type Config struct {
	Broker      string // e.g. tcp://localhost:1883
	ClientID    string
	PickTopic   string
	OriginTopic string
	QoS         byte
	Username    string
	Password    string

	ConnectTimeout time.Duration
	PublishTimeout time.Duration
}

// PickSink receives decoded picks. *engine.Pipeline implements it.
type PickSink interface {
	Enqueue(p model.Pick) bool
}

// MQTT is the online transport. It implements engine.Transport.
//
// Thread-safety: safe for concurrent use; the paho client invokes the
// message handler from its own goroutine.
type MQTT struct {
	cfg    Config
	client mqtt.Client

	mu        sync.RWMutex
	connected bool
	sink      PickSink
	received  uint64
	sent      uint64
	errors    uint64
}

// New creates a transport with a paho client. Call Connect before use.
func New(cfg Config) *MQTT {
	m := newTransport(cfg)
	m.client = mqtt.NewClient(m.options())
	return m
}

func newTransport(cfg Config) *MQTT {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = DefaultConnectTimeout
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = DefaultPublishTimeout
	}
	return &MQTT{cfg: cfg}
}

func (m *MQTT) options() *mqtt.ClientOptions {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(m.cfg.Broker)
	opts.SetClientID(m.cfg.ClientID)
	if m.cfg.Username != "" {
		opts.SetUsername(m.cfg.Username)
		opts.SetPassword(m.cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)
	opts.OnConnect = m.onConnect
	opts.OnConnectionLost = m.onConnectionLost
	return opts
}

// onConnect marks the connection up and restores the pick subscription,
// which a clean session loses on reconnect.
func (m *MQTT) onConnect(mqtt.Client) {
	m.mu.Lock()
	m.connected = true
	sink := m.sink
	m.mu.Unlock()

	slog.Info("mqtt connection established", "broker", m.cfg.Broker, "client_id", m.cfg.ClientID)
	if sink != nil {
		if err := m.subscribe(); err != nil {
			slog.Error("failed to restore pick subscription", "topic", m.cfg.PickTopic, "error", err)
		}
	}
}

func (m *MQTT) onConnectionLost(_ mqtt.Client, err error) {
	m.mu.Lock()
	m.connected = false
	m.mu.Unlock()
	slog.Warn("mqtt connection lost, will auto-reconnect", "broker", m.cfg.Broker, "error", err)
}

// Connect establishes the broker connection.
func (m *MQTT) Connect(ctx context.Context) error {
	slog.Info("connecting to mqtt broker", "broker", m.cfg.Broker)
	if err := wait(ctx, m.client.Connect(), m.cfg.ConnectTimeout); err != nil {
		return fmt.Errorf("mqtt connection failed: %w", err)
	}
	m.mu.Lock()
	m.connected = true
	m.mu.Unlock()
	return nil
}

// Subscribe starts delivering picks from the pick topic to sink.
func (m *MQTT) Subscribe(sink PickSink) error {
	m.mu.Lock()
	m.sink = sink
	m.mu.Unlock()
	return m.subscribe()
}

func (m *MQTT) subscribe() error {
	slog.Info("subscribing to picks", "topic", m.cfg.PickTopic, "qos", m.cfg.QoS)
	token := m.client.Subscribe(m.cfg.PickTopic, m.cfg.QoS, m.handleMessage)
	if err := wait(context.Background(), token, m.cfg.ConnectTimeout); err != nil {
		return fmt.Errorf("pick subscription failed: %w", err)
	}
	return nil
}

// handleMessage decodes a pick message and hands the picks to the sink.
func (m *MQTT) handleMessage(_ mqtt.Client, msg mqtt.Message) {
	picks, err := DecodePicks(msg.Payload())
	if err != nil {
		m.mu.Lock()
		m.errors++
		m.mu.Unlock()
		slog.Error("failed to decode pick message", "topic", msg.Topic(), "error", err)
		return
	}

	m.mu.Lock()
	sink := m.sink
	m.received += uint64(len(picks))
	m.mu.Unlock()
	if sink == nil {
		return
	}

	for _, p := range picks {
		if !sink.Enqueue(p) {
			slog.Warn("pipeline stopped, dropping pick", "pick", p.ID)
		}
	}
}

// Send publishes one batch of origins. It implements engine.Transport.
func (m *MQTT) Send(ctx context.Context, origins []model.Origin) error {
	if !m.isConnected() {
		m.countError()
		return ErrNotConnected
	}

	payload, err := EncodeOrigins(origins)
	if err != nil {
		m.countError()
		return err
	}

	token := m.client.Publish(m.cfg.OriginTopic, m.cfg.QoS, false, payload)
	if err := wait(ctx, token, m.cfg.PublishTimeout); err != nil {
		m.countError()
		return fmt.Errorf("publish failed: %w", err)
	}

	m.mu.Lock()
	m.sent += uint64(len(origins))
	m.mu.Unlock()
	slog.Debug("origins published", "topic", m.cfg.OriginTopic, "origins", len(origins), "size", len(payload))
	return nil
}

// Stats returns the number of picks received, origins sent and errors.
func (m *MQTT) Stats() (received, sent, errs uint64) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.received, m.sent, m.errors
}

// Close unsubscribes and disconnects.
func (m *MQTT) Close() {
	if m.client.IsConnected() {
		m.mu.RLock()
		subscribed := m.sink != nil
		m.mu.RUnlock()
		if subscribed {
			_ = wait(context.Background(), m.client.Unsubscribe(m.cfg.PickTopic), m.cfg.PublishTimeout)
		}
		m.client.Disconnect(250)
	}
	m.mu.Lock()
	m.connected = false
	m.mu.Unlock()
	slog.Info("mqtt transport closed")
}

func (m *MQTT) isConnected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.connected
}

func (m *MQTT) countError() {
	m.mu.Lock()
	m.errors++
	m.mu.Unlock()
}

// wait blocks until the token completes, the timeout passes or ctx ends.
func wait(ctx context.Context, token mqtt.Token, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-token.Done():
		return token.Error()
	case <-timer.C:
		return fmt.Errorf("timeout after %s", timeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}
