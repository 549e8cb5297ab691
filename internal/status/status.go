// Package status provides a thread-safe status tracker for the charge-indicator daemon.
// It is read by the HTTP handlers and used to build MQTT lifecycle payloads.
package status

import (
	"sort"
	"sync"
	"time"

	"github.com/sweeney/charge-indicator/internal/logic"
)

// NetworkInfo contains network state. This is a local copy to avoid
// importing internal/mqtt from status.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains daemon configuration for display.
type Config struct {
	Backend     string
	Payload     string
	HeartbeatMs int64
	Broker      string
	HTTPPort    string
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type and safe to use after the lock is released.
type Snapshot struct {
	Devices       []logic.DeviceState
	Failed        map[string]string // device name -> init error
	Baselined     bool
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Network       *NetworkInfo
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Totals returns event counts summed over all devices.
func (s Snapshot) Totals() logic.EventCounts {
	var c logic.EventCounts
	for _, d := range s.Devices {
		c = c.Add(d.Counts)
	}
	return c
}

// FailedNames returns the names of devices that failed to initialize, sorted.
func (s Snapshot) FailedNames() []string {
	names := make([]string, 0, len(s.Failed))
	for n := range s.Failed {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// Update replaces the per-device states and baseline status.
// Called from runLoop after every batch of samples.
func (t *Tracker) Update(devices []logic.DeviceState, baselined bool) {
	cp := append([]logic.DeviceState(nil), devices...)
	t.mu.Lock()
	t.snap.Devices = cp
	t.snap.Baselined = baselined
	t.mu.Unlock()
}

// SetFailed records a device that could not be initialized.
func (t *Tracker) SetFailed(name string, err error) {
	t.mu.Lock()
	if t.snap.Failed == nil {
		t.snap.Failed = make(map[string]string)
	}
	t.snap.Failed[name] = err.Error()
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	s.Devices = append([]logic.DeviceState(nil), t.snap.Devices...)
	if t.snap.Failed != nil {
		s.Failed = make(map[string]string, len(t.snap.Failed))
		for k, v := range t.snap.Failed {
			s.Failed[k] = v
		}
	}
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
