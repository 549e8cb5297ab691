//go:build !tinygo

package gpio

import (
	"fmt"
	"sync"
	"sync/atomic"

	pgpio "periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// PeriphProvider resolves lines by name through the periph.io registry,
// e.g. "GPIO17" on a Raspberry Pi.
type PeriphProvider struct {
	initErr error

	mu   sync.Mutex
	pins []*PeriphPin
}

// NewPeriphProvider loads the periph.io host drivers. A driver load failure
// leaves every pin not ready instead of failing outright.
func NewPeriphProvider() *PeriphProvider {
	p := &PeriphProvider{}
	if _, err := host.Init(); err != nil {
		p.initErr = fmt.Errorf("periph host init: %w", err)
	}
	return p
}

func (p *PeriphProvider) Pin(l Line) Pin {
	pin := &PeriphPin{name: l.Name, activeLow: l.ActiveLow, pull: periphPull(l.Pull)}
	if p.initErr != nil {
		pin.openErr = p.initErr
		return pin
	}
	pin.pin = gpioreg.ByName(l.Name)
	if pin.pin == nil {
		pin.openErr = fmt.Errorf("unknown pin %q", l.Name)
		return pin
	}
	p.mu.Lock()
	p.pins = append(p.pins, pin)
	p.mu.Unlock()
	return pin
}

// Close stops every edge watcher and halts the pins.
func (p *PeriphProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var errs []error
	for _, pin := range p.pins {
		pin.stopWatch()
		if err := pin.pin.Halt(); err != nil {
			errs = append(errs, fmt.Errorf("halt %s: %w", pin.name, err))
		}
	}
	p.pins = nil
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}

func periphPull(p Pull) pgpio.Pull {
	switch p {
	case PullUp:
		return pgpio.PullUp
	case PullDown:
		return pgpio.PullDown
	default:
		return pgpio.PullNoChange
	}
}

// PeriphPin adapts a periph.io pgpio.PinIO. periph has no active-low flag, so
// polarity is applied here.
type PeriphPin struct {
	name      string
	activeLow bool
	pull      pgpio.Pull
	pin       pgpio.PinIO
	openErr   error

	input    bool
	edge     pgpio.Edge
	handler  atomic.Pointer[Handler]
	watching atomic.Bool
	done     chan struct{}
}

func (p *PeriphPin) Name() string { return p.name }

func (p *PeriphPin) IsReady() bool { return p.pin != nil && p.openErr == nil }

func (p *PeriphPin) toPhysical(l Level) pgpio.Level {
	return pgpio.Level(bool(l) != p.activeLow)
}

func (p *PeriphPin) fromPhysical(l pgpio.Level) Level {
	return Level(bool(l) != p.activeLow)
}

func (p *PeriphPin) ConfigureOutput(initial Level) error {
	if !p.IsReady() {
		return p.openErr
	}
	if err := p.pin.Out(p.toPhysical(initial)); err != nil {
		return fmt.Errorf("configure %s as output: %w", p.name, err)
	}
	p.input = false
	return nil
}

func (p *PeriphPin) ConfigureInput() error {
	if !p.IsReady() {
		return p.openErr
	}
	if err := p.pin.In(p.pull, pgpio.NoEdge); err != nil {
		return fmt.Errorf("configure %s as input: %w", p.name, err)
	}
	p.input = true
	return nil
}

func (p *PeriphPin) EnableEdgeNotification(edge Edge) error {
	if !p.input {
		return ErrNotConfigured
	}
	var e pgpio.Edge
	switch edge.Physical(p.activeLow) {
	case RisingEdge:
		e = pgpio.RisingEdge
	case FallingEdge:
		e = pgpio.FallingEdge
	case BothEdges:
		e = pgpio.BothEdges
	default:
		e = pgpio.NoEdge
	}
	if err := p.pin.In(p.pull, e); err != nil {
		return fmt.Errorf("enable %s edges on %s: %w", edge, p.name, err)
	}
	p.edge = e
	return nil
}

// Read never fails on periph; the error is always nil once configured.
func (p *PeriphPin) Read() (Level, error) {
	if !p.IsReady() {
		return Deasserted, ErrNotConfigured
	}
	return p.fromPhysical(p.pin.Read()), nil
}

func (p *PeriphPin) Set(level Level) error {
	if !p.IsReady() {
		return ErrNotConfigured
	}
	return p.pin.Out(p.toPhysical(level))
}

type periphSubscription struct {
	pin *PeriphPin
	h   *Handler
}

func (s *periphSubscription) Cancel() {
	s.pin.handler.CompareAndSwap(s.h, nil)
}

// Subscribe installs h and starts the WaitForEdge goroutine on first use.
func (p *PeriphPin) Subscribe(h Handler) (Subscription, error) {
	if !p.input {
		return nil, ErrNotConfigured
	}
	hp := &h
	p.handler.Store(hp)
	if p.watching.CompareAndSwap(false, true) {
		p.done = make(chan struct{})
		go p.watch(p.done)
	}
	return &periphSubscription{pin: p, h: hp}, nil
}

func (p *PeriphPin) watch(done chan struct{}) {
	for {
		edge := p.pin.WaitForEdge(-1)
		select {
		case <-done:
			return
		default:
		}
		if !edge {
			continue
		}
		if h := p.handler.Load(); h != nil {
			(*h)(p)
		}
	}
}

func (p *PeriphPin) stopWatch() {
	p.handler.Store(nil)
	if p.watching.CompareAndSwap(true, false) {
		close(p.done)
	}
}
