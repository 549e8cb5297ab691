// Package mqtt provides MQTT publishing with abstraction for testing.
package mqtt

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/sweeney/charge-indicator/internal/logic"
)

// Topic is the MQTT topic for indicator events.
const Topic = "power/charger/indicator/events"

// TopicSystem is the MQTT topic for system lifecycle events.
const TopicSystem = "power/charger/indicator/system"

// Format selects the payload encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatCBOR Format = "cbor"
)

// Marshal encodes v. CBOR uses the json struct tags.
func (f Format) Marshal(v any) ([]byte, error) {
	switch f {
	case FormatJSON, "":
		return json.Marshal(v)
	case FormatCBOR:
		return cbor.Marshal(v)
	default:
		return nil, fmt.Errorf("unknown payload format %q", f)
	}
}

// Unmarshal decodes data produced by Marshal.
func (f Format) Unmarshal(data []byte, v any) error {
	switch f {
	case FormatJSON, "":
		return json.Unmarshal(data, v)
	case FormatCBOR:
		return cbor.Unmarshal(data, v)
	default:
		return fmt.Errorf("unknown payload format %q", f)
	}
}

// Publisher publishes events to MQTT.
type Publisher interface {
	// Publish sends an indicator event to the broker.
	// Returns error if publishing fails (should not crash the process).
	Publish(event logic.Event) error

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
	Timestamp time.Time
	Event     string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason    string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	Body      any    // Full status body; if set, it is encoded instead of SystemPayload
	Retained  bool   // Whether the message should be retained by the broker
}

// Payload represents the MQTT message payload structure.
type Payload struct {
	Indicator IndicatorPayload `json:"indicator"`
}

// IndicatorPayload contains the indicator event details.
type IndicatorPayload struct {
	Timestamp string `json:"timestamp"`
	Device    string `json:"device"`
	Event     string `json:"event"`
	Stat1     string `json:"stat1"`
	Stat2     string `json:"stat2"`
	LED       string `json:"led"`
}

// FormatPayload creates the payload for an indicator event.
func FormatPayload(event logic.Event, format Format) ([]byte, error) {
	payload := Payload{
		Indicator: IndicatorPayload{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Device:    event.Device,
			Event:     string(event.Type),
			Stat1:     stateOrUnknown(event.Stat1),
			Stat2:     stateOrUnknown(event.Stat2),
			LED:       stateOrUnknown(event.LED),
		},
	}
	return format.Marshal(payload)
}

func stateOrUnknown(s logic.State) string {
	if s == "" {
		return "UNKNOWN"
	}
	return string(s)
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT, RECONNECTED) that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the payload for a system event.
// If event.Body is set, it is encoded instead (used for full status snapshots).
func FormatSystemPayload(event SystemEvent, format Format) ([]byte, error) {
	if event.Body != nil {
		return format.Marshal(event.Body)
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return format.Marshal(payload)
}
