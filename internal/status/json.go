package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string       `json:"event,omitempty"`
	Reason        string       `json:"reason,omitempty"`
	Ready         bool         `json:"ready"`
	Devices       []DeviceJSON `json:"devices"`
	Failed        []FailedJSON `json:"failed,omitempty"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	StartTime     string       `json:"start_time"`
	Timestamp     string       `json:"timestamp"`
	MQTT          MQTTStatus   `json:"mqtt"`
	Counts        CountsJSON   `json:"event_counts"`
	Network       *NetworkJSON `json:"network,omitempty"`
	Config        ConfigJSON   `json:"config"`
}

// DeviceJSON is one indicator's state.
type DeviceJSON struct {
	Name   string     `json:"name"`
	Stat1  string     `json:"stat1"`
	Stat2  string     `json:"stat2"`
	LED    string     `json:"led"`
	Ready  bool       `json:"ready"`
	Counts CountsJSON `json:"event_counts"`
}

// FailedJSON names a device that failed to initialize.
type FailedJSON struct {
	Name  string `json:"name"`
	Error string `json:"error"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of event counts.
type CountsJSON struct {
	Evaluations  int `json:"evaluations"`
	LEDOn        int `json:"led_on"`
	LEDOff       int `json:"led_off"`
	ReadFailures int `json:"read_failures"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	Backend     string `json:"backend"`
	Payload     string `json:"payload"`
	HeartbeatMs int64  `json:"heartbeat_ms"`
	Broker      string `json:"broker"`
	HTTPPort    string `json:"http_port"`
}

func orUnknown(s string) string {
	if s == "" {
		return "UNKNOWN"
	}
	return s
}

func buildInner(snap Snapshot) StatusInner {
	totals := snap.Totals()
	inner := StatusInner{
		Ready:         snap.Baselined,
		Devices:       make([]DeviceJSON, 0, len(snap.Devices)),
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			Evaluations:  totals.Evaluations,
			LEDOn:        totals.LEDOn,
			LEDOff:       totals.LEDOff,
			ReadFailures: totals.ReadFailures,
		},
		Config: ConfigJSON{
			Backend:     snap.Config.Backend,
			Payload:     snap.Config.Payload,
			HeartbeatMs: snap.Config.HeartbeatMs,
			Broker:      snap.Config.Broker,
			HTTPPort:    snap.Config.HTTPPort,
		},
	}

	for _, d := range snap.Devices {
		inner.Devices = append(inner.Devices, DeviceJSON{
			Name:  d.Name,
			Stat1: orUnknown(string(d.Stat1)),
			Stat2: orUnknown(string(d.Stat2)),
			LED:   orUnknown(string(d.LED)),
			Ready: d.Baselined,
			Counts: CountsJSON{
				Evaluations:  d.Counts.Evaluations,
				LEDOn:        d.Counts.LEDOn,
				LEDOff:       d.Counts.LEDOff,
				ReadFailures: d.Counts.ReadFailures,
			},
		})
	}
	for _, name := range snap.FailedNames() {
		inner.Failed = append(inner.Failed, FailedJSON{Name: name, Error: snap.Failed[name]})
	}
	return inner
}

func buildNetwork(snap Snapshot, inner *StatusInner) {
	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	inner := buildInner(snap)
	buildNetwork(snap, &inner)

	data, _ := json.MarshalIndent(StatusJSON{Status: inner}, "", "  ")
	return data
}

// StatusEvent returns the status body for an MQTT system event. The caller
// encodes it in the configured payload format.
func StatusEvent(snap Snapshot, event, reason string) StatusJSON {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason
	buildNetwork(snap, &inner)
	return StatusJSON{Status: inner}
}

// DeviceStatus returns the named device's JSON status. A device that failed
// to initialize is reported in failed instead.
func DeviceStatus(snap Snapshot, name string) (dev *DeviceJSON, failed *FailedJSON) {
	inner := buildInner(snap)
	for i := range inner.Devices {
		if inner.Devices[i].Name == name {
			return &inner.Devices[i], nil
		}
	}
	for i := range inner.Failed {
		if inner.Failed[i].Name == name {
			return nil, &inner.Failed[i]
		}
	}
	return nil, nil
}
