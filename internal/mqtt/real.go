package mqtt

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/sweeney/group-controller/internal/log"
)

// Options configures a RealTransport.
type Options struct {
	Broker          string
	ClientID        string
	NodeID          string
	DeliveryTimeout time.Duration // wait for PUBACK on each send
	ConnectTimeout  time.Duration
	InboundBuffer   int
}

// RealTransport is the radio-equivalent link over an MQTT broker.
// Status updates are published with QoS 1 and the broker's PUBACK is the
// acknowledgement. Reserve commands arrive on the command topic and queue
// until the control loop drains them.
type RealTransport struct {
	client          paho.Client
	topics          Topics
	deliveryTimeout time.Duration

	mu      sync.Mutex
	inbound *ringBuffer
}

// NewRealTransport connects to the broker and subscribes to the command topic.
func NewRealTransport(o Options) (*RealTransport, error) {
	if o.ClientID == "" {
		o.ClientID = DefaultClientID()
	}
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = 10 * time.Second
	}

	t := &RealTransport{
		topics:          TopicsFor(o.NodeID),
		deliveryTimeout: o.DeliveryTimeout,
		inbound:         newRingBuffer(o.InboundBuffer),
	}

	will, err := FormatSystemPayload(SystemEvent{Timestamp: time.Now(), Event: "OFFLINE", Reason: "connection lost"})
	if err != nil {
		return nil, fmt.Errorf("format will: %w", err)
	}

	opts := paho.NewClientOptions().
		AddBroker(o.Broker).
		SetClientID(o.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetWill(t.topics.System, string(will), 1, true).
		SetOnConnectHandler(t.onConnect).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			log.Warn(context.Background(), "mqtt: connection lost", log.Err("error", err))
		})

	t.client = paho.NewClient(opts)
	token := t.client.Connect()
	if !token.WaitTimeout(o.ConnectTimeout) {
		return nil, fmt.Errorf("connection timeout")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}

	return t, nil
}

// onConnect (re)subscribes after every connect so commands survive reconnects.
func (t *RealTransport) onConnect(c paho.Client) {
	log.Info(context.Background(), "mqtt: connected", slog.String("command_topic", t.topics.Command))
	token := c.Subscribe(t.topics.Command, 1, t.onMessage)
	go func() {
		if !token.WaitTimeout(10 * time.Second) {
			log.Warn(context.Background(), "mqtt: subscribe timeout", slog.String("topic", t.topics.Command))
			return
		}
		if err := token.Error(); err != nil {
			log.Error(context.Background(), "mqtt: subscribe failed", log.Err("error", err))
		}
	}()
}

func (t *RealTransport) onMessage(_ paho.Client, msg paho.Message) {
	p := packet{
		topic:   msg.Topic(),
		payload: append([]byte(nil), msg.Payload()...),
	}
	t.mu.Lock()
	t.inbound.push(p)
	t.mu.Unlock()
}

// TrySend publishes payload on the status topic and waits for the PUBACK.
func (t *RealTransport) TrySend(payload []byte) bool {
	token := t.client.Publish(t.topics.Status, 1, false, payload)
	if !token.WaitTimeout(t.deliveryTimeout) {
		log.Debug(context.Background(), "mqtt: publish timeout", slog.Duration("timeout", t.deliveryTimeout))
		return false
	}
	if err := token.Error(); err != nil {
		log.Debug(context.Background(), "mqtt: publish failed", log.Err("error", err))
		return false
	}
	return true
}

// TryReceive pops the oldest queued command payload.
func (t *RealTransport) TryReceive() ([]byte, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.inbound.pop()
	if !ok {
		return nil, false
	}
	return p.payload, true
}

// Dropped returns how many inbound payloads were lost to buffer overflow.
func (t *RealTransport) Dropped() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.inbound.dropped
}

// PublishSystem sends a system lifecycle event to the broker.
func (t *RealTransport) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}

	// QoS 1 (at-least-once) - lifecycle events should not be lost
	token := t.client.Publish(t.topics.System, 1, event.Retained, payload)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish system timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish system: %w", err)
	}
	return nil
}

// IsConnected reports whether the broker connection is up.
func (t *RealTransport) IsConnected() bool {
	return t.client.IsConnectionOpen()
}

// Close disconnects from the broker.
func (t *RealTransport) Close() error {
	t.client.Disconnect(1000) // 1 second timeout
	return nil
}
