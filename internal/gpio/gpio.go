// Package gpio provides the digital pin abstraction used by the indicator driver.
// Backends: Linux GPIO character device (cdev), periph.io, TinyGo machine pins,
// and a fake for tests.
package gpio

import "errors"

// Level is the logical level of a pin, after active-low polarity is applied.
type Level bool

const (
	Deasserted Level = false
	Asserted   Level = true
)

// String returns "1" for asserted and "0" for deasserted.
func (l Level) String() string {
	if l {
		return "1"
	}
	return "0"
}

// Int returns 1 for asserted and 0 for deasserted.
func (l Level) Int() int {
	if l {
		return 1
	}
	return 0
}

// Edge selects which transitions raise an edge notification.
type Edge int

const (
	NoEdge Edge = iota
	RisingEdge
	FallingEdge
	BothEdges
)

func (e Edge) String() string {
	switch e {
	case NoEdge:
		return "none"
	case RisingEdge:
		return "rising"
	case FallingEdge:
		return "falling"
	case BothEdges:
		return "both"
	default:
		return "unknown"
	}
}

// Physical returns the edge as seen on the wire. On an active-low line a
// logical rising edge is a physical falling edge.
func (e Edge) Physical(activeLow bool) Edge {
	if !activeLow {
		return e
	}
	switch e {
	case RisingEdge:
		return FallingEdge
	case FallingEdge:
		return RisingEdge
	default:
		return e
	}
}

// Pull selects the bias applied to an input line.
type Pull int

const (
	PullNone Pull = iota
	PullUp
	PullDown
)

// Handler is called when a subscribed pin sees an edge. It receives only the
// triggering pin; callers bind any owner state into the function value.
// Handlers may run in interrupt context and must not block.
type Handler func(p Pin)

// Subscription is an active edge handler registration.
type Subscription interface {
	// Cancel detaches the handler. Safe to call more than once.
	Cancel()
}

// Pin is a single digital line.
type Pin interface {
	// Name identifies the pin in logs and errors.
	Name() string

	// IsReady reports whether the underlying hardware is available.
	IsReady() bool

	// ConfigureOutput sets the pin as an output driven to initial.
	ConfigureOutput(initial Level) error

	// ConfigureInput sets the pin as an input.
	ConfigureInput() error

	// EnableEdgeNotification arms edge detection on an input pin.
	EnableEdgeNotification(edge Edge) error

	// Read returns the current logical level.
	Read() (Level, error)

	// Set drives an output pin.
	Set(level Level) error

	// Subscribe registers h for edges on this pin.
	Subscribe(h Handler) (Subscription, error)
}

// Line identifies a physical line to a Provider.
type Line struct {
	Chip      string // gpiochip name for cdev, unused elsewhere
	Offset    int    // line offset (cdev) or pin number (machine)
	Name      string // periph pin name, e.g. "GPIO17"; optional label elsewhere
	ActiveLow bool
	Pull      Pull
}

// Provider resolves lines to pins. A line that cannot be resolved is returned
// as a Pin whose IsReady reports false.
type Provider interface {
	Pin(l Line) Pin
	Close() error
}

// ErrNotSupported is returned by backends unavailable on this platform.
var ErrNotSupported = errors.New("gpio: not supported on this platform")

// ErrNotConfigured is returned when a pin is used before it is configured.
var ErrNotConfigured = errors.New("gpio: pin not configured")
