// Package logic contains the pure decision logic for the charge indicator.
// This package has NO external dependencies (no GPIO, MQTT, OS, or time.Sleep).
// Time is always injectable via time.Time parameters.
package logic

import "time"

// State represents the logical state of a status line or the LED.
type State string

const (
	StateOn  State = "ON"
	StateOff State = "OFF"
)

// EventType represents a published transition.
type EventType string

const (
	EventLEDOn       EventType = "LED_ON"
	EventLEDOff      EventType = "LED_OFF"
	EventReadFailure EventType = "READ_FAILURE"
)

// Sample is the result of one driver evaluation. Drivers fill it without
// allocating; the receiver stamps the time.
type Sample struct {
	Device string
	Stat1  bool // true = asserted
	Stat2  bool
	LED    bool
	// Failed is set when a status line could not be read. Stat1, Stat2 and
	// LED are then meaningless and the LED was left unchanged.
	Failed bool
}

// Event represents a transition to be published.
type Event struct {
	Timestamp time.Time
	Device    string
	Type      EventType
	Stat1     State
	Stat2     State
	LED       State
}

// EventCounts tracks evaluations and transitions since startup.
type EventCounts struct {
	Evaluations  int
	LEDOn        int
	LEDOff       int
	ReadFailures int
}

// Add returns the field-wise sum of c and o.
func (c EventCounts) Add(o EventCounts) EventCounts {
	return EventCounts{
		Evaluations:  c.Evaluations + o.Evaluations,
		LEDOn:        c.LEDOn + o.LEDOn,
		LEDOff:       c.LEDOff + o.LEDOff,
		ReadFailures: c.ReadFailures + o.ReadFailures,
	}
}

// DeviceState is the last known state of one indicator.
type DeviceState struct {
	Name      string
	Stat1     State
	Stat2     State
	LED       State
	Baselined bool
	LastSeen  time.Time
	Counts    EventCounts
}

// HeartbeatData contains information for a heartbeat event.
type HeartbeatData struct {
	Timestamp time.Time
	Uptime    time.Duration
	Counts    EventCounts
}
