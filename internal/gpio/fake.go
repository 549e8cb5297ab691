package gpio

import (
	"fmt"
	"sync"
)

// Mode is the direction a FakePin has been configured for.
type Mode int

const (
	ModeUnconfigured Mode = iota
	ModeInput
	ModeOutput
)

// FakePin is a test double with scripted levels and injectable errors.
// Trigger simulates a hardware edge and calls handlers synchronously, the way
// an interrupt would on a single-core MCU.
type FakePin struct {
	// Label is returned by Name.
	Label string

	// NotReady makes IsReady report false.
	NotReady bool

	// Errors returned by the corresponding operations, if set.
	ConfigureOutputError error
	ConfigureInputError  error
	EdgeError            error
	SubscribeError       error
	SetError             error

	mu        sync.Mutex
	level     Level
	readError error
	mode      Mode
	edge      Edge
	writes    []Level
	reads     int
	nextID    int
	handlers  map[int]Handler
}

// NewFakePin creates a FakePin reading initial.
func NewFakePin(label string, initial Level) *FakePin {
	return &FakePin{Label: label, level: initial}
}

func (f *FakePin) Name() string { return f.Label }

func (f *FakePin) IsReady() bool { return !f.NotReady }

// ConfigureOutput records output mode and drives initial.
func (f *FakePin) ConfigureOutput(initial Level) error {
	if f.ConfigureOutputError != nil {
		return f.ConfigureOutputError
	}
	f.mu.Lock()
	f.mode = ModeOutput
	f.level = initial
	f.mu.Unlock()
	return nil
}

func (f *FakePin) ConfigureInput() error {
	if f.ConfigureInputError != nil {
		return f.ConfigureInputError
	}
	f.mu.Lock()
	f.mode = ModeInput
	f.mu.Unlock()
	return nil
}

func (f *FakePin) EnableEdgeNotification(edge Edge) error {
	if f.EdgeError != nil {
		return f.EdgeError
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.mode != ModeInput {
		return ErrNotConfigured
	}
	f.edge = edge
	return nil
}

// Read returns the current level, or the error set by SetReadError.
func (f *FakePin) Read() (Level, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	if f.readError != nil {
		return Deasserted, f.readError
	}
	return f.level, nil
}

// Set records the write and updates the level.
func (f *FakePin) Set(level Level) error {
	if f.SetError != nil {
		return f.SetError
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.mode != ModeOutput {
		return ErrNotConfigured
	}
	f.level = level
	f.writes = append(f.writes, level)
	return nil
}

type fakeSubscription struct {
	pin *FakePin
	id  int
}

func (s *fakeSubscription) Cancel() {
	s.pin.mu.Lock()
	delete(s.pin.handlers, s.id)
	s.pin.mu.Unlock()
}

func (f *FakePin) Subscribe(h Handler) (Subscription, error) {
	if f.SubscribeError != nil {
		return nil, f.SubscribeError
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.handlers == nil {
		f.handlers = make(map[int]Handler)
	}
	id := f.nextID
	f.nextID++
	f.handlers[id] = h
	return &fakeSubscription{pin: f, id: id}, nil
}

// SetLevel changes the level without raising an edge, as if the line moved
// before edge detection was armed.
func (f *FakePin) SetLevel(level Level) {
	f.mu.Lock()
	f.level = level
	f.mu.Unlock()
}

// SetReadError makes subsequent reads fail with err. A nil err clears it.
func (f *FakePin) SetReadError(err error) {
	f.mu.Lock()
	f.readError = err
	f.mu.Unlock()
}

// Trigger moves the line to level and, if that is an edge the pin is armed
// for, calls every subscribed handler. Returns the number of handlers called.
func (f *FakePin) Trigger(level Level) int {
	f.mu.Lock()
	prev := f.level
	f.level = level
	fire := prev != level && edgeMatches(f.edge, level)
	var hs []Handler
	if fire {
		for _, h := range f.handlers {
			hs = append(hs, h)
		}
	}
	f.mu.Unlock()

	for _, h := range hs {
		h(f)
	}
	return len(hs)
}

func edgeMatches(e Edge, to Level) bool {
	switch e {
	case BothEdges:
		return true
	case RisingEdge:
		return to == Asserted
	case FallingEdge:
		return to == Deasserted
	default:
		return false
	}
}

// Level returns the current level.
func (f *FakePin) Level() Level {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.level
}

// Mode returns the configured direction.
func (f *FakePin) Mode() Mode {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.mode
}

// Edge returns the armed edge kind.
func (f *FakePin) Edge() Edge {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.edge
}

// Writes returns a copy of every level written with Set.
func (f *FakePin) Writes() []Level {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Level(nil), f.writes...)
}

// Reads returns the number of Read calls.
func (f *FakePin) Reads() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reads
}

// Subscribers returns the number of live subscriptions.
func (f *FakePin) Subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.handlers)
}

// FakeProvider hands out FakePins keyed by line. Lines not registered with
// Add resolve to a not-ready pin.
type FakeProvider struct {
	mu     sync.Mutex
	pins   map[string]*FakePin
	Closed bool
}

// NewFakeProvider creates an empty FakeProvider.
func NewFakeProvider() *FakeProvider {
	return &FakeProvider{pins: make(map[string]*FakePin)}
}

// Add registers p for line l.
func (p *FakeProvider) Add(l Line, pin *FakePin) {
	p.mu.Lock()
	p.pins[lineKey(l)] = pin
	p.mu.Unlock()
}

func (p *FakeProvider) Pin(l Line) Pin {
	p.mu.Lock()
	defer p.mu.Unlock()
	if pin, ok := p.pins[lineKey(l)]; ok {
		return pin
	}
	return &FakePin{Label: lineKey(l), NotReady: true}
}

func (p *FakeProvider) Close() error {
	p.Closed = true
	return nil
}

func lineKey(l Line) string {
	if l.Name != "" {
		return l.Name
	}
	return fmt.Sprintf("%s:%d", l.Chip, l.Offset)
}
