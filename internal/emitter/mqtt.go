// Package emitter publishes QR detection events to an MQTT broker.
package emitter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/e7canasta/qrcam/internal/qr"
)

var (
	ErrNotConnected   = errors.New("emitter: mqtt not connected")
	ErrPublishTimeout = errors.New("emitter: publish timeout")
)

const (
	connectTimeout = 5 * time.Second
	publishTimeout = 2 * time.Second
)

// Config configures the MQTT emitter.
type Config struct {
	Broker     string // host:port, or a full URL with scheme
	InstanceID string
	Topic      string // base topic; events go to <Topic>/detections
	QoS        byte
}

// Stats contains emitter statistics.
type Stats struct {
	Connected bool
	Published map[string]uint64 // count per topic
	Skipped   uint64            // events without detections
	Errors    uint64
}

// MQTTEmitter publishes qr.Event values as JSON.
type MQTTEmitter struct {
	cfg    Config
	client mqtt.Client

	mu        sync.RWMutex
	published map[string]uint64
	skipped   uint64
	errors    uint64
	connected bool
}

// NewMQTTEmitter creates an emitter. Nothing is dialed until Connect.
func NewMQTTEmitter(cfg Config) *MQTTEmitter {
	return &MQTTEmitter{
		cfg:       cfg,
		published: make(map[string]uint64),
	}
}

// BrokerURL adds the tcp scheme to a bare host:port.
func BrokerURL(broker string) string {
	if strings.Contains(broker, "://") {
		return broker
	}
	return "tcp://" + broker
}

// DetectionsTopic is where detection events of base are published.
func DetectionsTopic(base string) string {
	return strings.TrimSuffix(base, "/") + "/detections"
}

// Payload encodes ev for publishing.
func Payload(ev qr.Event) ([]byte, error) {
	return json.Marshal(ev)
}

// Connect establishes the broker connection. The client reconnects on its own
// afterwards.
func (e *MQTTEmitter) Connect(ctx context.Context) error {
	clientID := fmt.Sprintf("%s-%s", e.cfg.InstanceID, uuid.NewString()[:8])

	opts := mqtt.NewClientOptions()
	opts.AddBroker(BrokerURL(e.cfg.Broker))
	opts.SetClientID(clientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)

	opts.OnConnect = func(c mqtt.Client) {
		e.setConnected(true)
		slog.Info("emitter: mqtt connection established",
			"broker", e.cfg.Broker,
			"client_id", clientID,
		)
	}
	opts.OnConnectionLost = func(c mqtt.Client, err error) {
		e.setConnected(false)
		slog.Warn("emitter: mqtt connection lost, will auto-reconnect",
			"error", err,
			"broker", e.cfg.Broker,
		)
	}

	e.mu.Lock()
	e.client = mqtt.NewClient(opts)
	client := e.client
	e.mu.Unlock()

	slog.Info("emitter: connecting to mqtt broker", "broker", e.cfg.Broker)

	token := client.Connect()
	select {
	case <-token.Done():
	case <-ctx.Done():
		return fmt.Errorf("emitter: connect: %w", ctx.Err())
	case <-time.After(connectTimeout):
		return fmt.Errorf("emitter: mqtt connection timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("emitter: mqtt connection failed: %w", err)
	}

	e.setConnected(true)
	return nil
}

// Client is the broker connection, shared with the control plane. It is nil
// before Connect.
func (e *MQTTEmitter) Client() mqtt.Client {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.client
}

// Publish sends one event to the detections topic.
func (e *MQTTEmitter) Publish(ev qr.Event) error {
	e.mu.RLock()
	client, connected := e.client, e.connected
	e.mu.RUnlock()

	if client == nil || !connected {
		e.countError()
		return ErrNotConnected
	}

	payload, err := Payload(ev)
	if err != nil {
		e.countError()
		return fmt.Errorf("emitter: failed to marshal event: %w", err)
	}

	topic := DetectionsTopic(e.cfg.Topic)
	token := client.Publish(topic, e.cfg.QoS, false, payload)
	if !token.WaitTimeout(publishTimeout) {
		e.countError()
		return ErrPublishTimeout
	}
	if err := token.Error(); err != nil {
		e.countError()
		return fmt.Errorf("emitter: publish failed: %w", err)
	}

	e.mu.Lock()
	e.published[topic]++
	e.mu.Unlock()

	slog.Debug("emitter: event published",
		"topic", topic,
		"trace_id", ev.TraceID,
		"detections", len(ev.Detections),
		"size", len(payload),
	)
	return nil
}

// Run publishes events until ctx is done or events is closed. Events without
// detections are skipped. Publish failures are logged, never fatal.
func (e *MQTTEmitter) Run(ctx context.Context, events <-chan qr.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if len(ev.Detections) == 0 {
				e.mu.Lock()
				e.skipped++
				e.mu.Unlock()
				continue
			}
			if err := e.Publish(ev); err != nil {
				slog.Warn("emitter: dropping event",
					"error", err,
					"seq", ev.Seq,
					"trace_id", ev.TraceID,
				)
			}
		}
	}
}

// Close disconnects from the broker.
func (e *MQTTEmitter) Close() error {
	e.mu.RLock()
	client := e.client
	e.mu.RUnlock()

	if client != nil && client.IsConnected() {
		client.Disconnect(250) // grace period in ms
		slog.Info("emitter: mqtt disconnected")
	}
	e.setConnected(false)
	return nil
}

// Stats returns emitter statistics.
func (e *MQTTEmitter) Stats() Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()

	published := make(map[string]uint64, len(e.published))
	for k, v := range e.published {
		published[k] = v
	}
	return Stats{
		Connected: e.connected,
		Published: published,
		Skipped:   e.skipped,
		Errors:    e.errors,
	}
}

func (e *MQTTEmitter) setConnected(v bool) {
	e.mu.Lock()
	e.connected = v
	e.mu.Unlock()
}

func (e *MQTTEmitter) countError() {
	e.mu.Lock()
	e.errors++
	e.mu.Unlock()
}
