// Package mqtt carries the group controller's link over an MQTT broker:
// status updates out, reservation commands in, and system lifecycle events.
package mqtt

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// TopicRoot prefixes every topic of a node.
const TopicRoot = "parking"

// Topics are the per-node MQTT topics.
type Topics struct {
	Status  string // outbound 'S' messages
	Command string // inbound 'R' messages
	System  string // lifecycle events
}

// TopicsFor returns the topics of the given node.
func TopicsFor(nodeID string) Topics {
	base := fmt.Sprintf("%s/%s", TopicRoot, nodeID)
	return Topics{
		Status:  base + "/status",
		Command: base + "/command",
		System:  base + "/system",
	}
}

// DefaultClientID returns a unique client id for a node.
func DefaultClientID() string {
	return "group-controller-" + uuid.NewString()
}

// Publisher publishes system events.
type Publisher interface {
	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT", "OFFLINE"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// SystemPayload is the MQTT payload for events without a status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly.
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}
