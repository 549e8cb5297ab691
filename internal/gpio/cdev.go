//go:build linux && !tinygo

package gpio

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/warthog618/go-gpiocdev"
)

// CdevProvider resolves lines on Linux GPIO character devices.
// Chips are opened lazily and shared between pins.
type CdevProvider struct {
	mu    sync.Mutex
	chips map[string]*gpiocdev.Chip
	pins  []*CdevPin
}

// NewCdevProvider creates a provider for the Linux GPIO character device.
func NewCdevProvider() *CdevProvider {
	return &CdevProvider{chips: make(map[string]*gpiocdev.Chip)}
}

// Pin returns a pin for l. If the chip cannot be opened or the offset is out
// of range the pin reports not ready.
func (p *CdevProvider) Pin(l Line) Pin {
	p.mu.Lock()
	defer p.mu.Unlock()

	name := l.Name
	if name == "" {
		name = fmt.Sprintf("%s:%d", l.Chip, l.Offset)
	}
	pin := &CdevPin{name: name, offset: l.Offset, activeLow: l.ActiveLow, pull: l.Pull}

	chip, ok := p.chips[l.Chip]
	if !ok {
		c, err := gpiocdev.NewChip(l.Chip, gpiocdev.WithConsumer("charge-indicator"))
		if err != nil {
			pin.openErr = fmt.Errorf("open chip %s: %w", l.Chip, err)
			return pin
		}
		p.chips[l.Chip] = c
		chip = c
	}
	if l.Offset < 0 || l.Offset >= chip.Lines() {
		pin.openErr = fmt.Errorf("offset %d out of range for %s (%d lines)", l.Offset, l.Chip, chip.Lines())
		return pin
	}
	pin.chip = chip
	p.pins = append(p.pins, pin)
	return pin
}

// Close releases every requested line and open chip.
// Inputs are left as inputs, matching the state the kernel hands back on release.
func (p *CdevProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var errs []error
	for _, pin := range p.pins {
		if err := pin.close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", pin.name, err))
		}
	}
	for name, c := range p.chips {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip %s: %w", name, err))
		}
	}
	p.pins = nil
	p.chips = make(map[string]*gpiocdev.Chip)

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}

// CdevPin is a single line on a GPIO character device.
type CdevPin struct {
	name      string
	offset    int
	activeLow bool
	pull      Pull
	chip      *gpiocdev.Chip
	openErr   error

	line    *gpiocdev.Line
	handler atomic.Pointer[Handler]
}

func (p *CdevPin) Name() string { return p.name }

func (p *CdevPin) IsReady() bool { return p.chip != nil && p.openErr == nil }

func (p *CdevPin) baseOptions() []gpiocdev.LineReqOption {
	var opts []gpiocdev.LineReqOption
	if p.activeLow {
		opts = append(opts, gpiocdev.AsActiveLow)
	}
	switch p.pull {
	case PullUp:
		opts = append(opts, gpiocdev.WithPullUp)
	case PullDown:
		opts = append(opts, gpiocdev.WithPullDown)
	}
	return opts
}

// ConfigureOutput requests the line as an output driven to initial.
func (p *CdevPin) ConfigureOutput(initial Level) error {
	if !p.IsReady() {
		return p.notReady()
	}
	if p.line != nil {
		return p.line.Reconfigure(gpiocdev.AsOutput(initial.Int()))
	}
	opts := append(p.baseOptions(), gpiocdev.AsOutput(initial.Int()))
	l, err := p.chip.RequestLine(p.offset, opts...)
	if err != nil {
		return fmt.Errorf("request %s as output: %w", p.name, err)
	}
	p.line = l
	return nil
}

// ConfigureInput requests the line as an input. The event handler is attached
// here because gpiocdev only accepts one at request time; edges are not
// reported until EnableEdgeNotification arms detection.
func (p *CdevPin) ConfigureInput() error {
	if !p.IsReady() {
		return p.notReady()
	}
	if p.line != nil {
		return p.line.Reconfigure(gpiocdev.AsInput)
	}
	opts := append(p.baseOptions(), gpiocdev.AsInput, gpiocdev.WithEventHandler(p.dispatch))
	l, err := p.chip.RequestLine(p.offset, opts...)
	if err != nil {
		return fmt.Errorf("request %s as input: %w", p.name, err)
	}
	p.line = l
	return nil
}

func (p *CdevPin) EnableEdgeNotification(edge Edge) error {
	if p.line == nil {
		return ErrNotConfigured
	}
	var opt gpiocdev.LineConfigOption
	switch edge {
	case RisingEdge:
		opt = gpiocdev.WithRisingEdge
	case FallingEdge:
		opt = gpiocdev.WithFallingEdge
	case BothEdges:
		opt = gpiocdev.WithBothEdges
	default:
		opt = gpiocdev.WithoutEdges
	}
	if err := p.line.Reconfigure(opt); err != nil {
		return fmt.Errorf("enable %s edges on %s: %w", edge, p.name, err)
	}
	return nil
}

// Read returns the logical value; the kernel applies active-low.
func (p *CdevPin) Read() (Level, error) {
	if p.line == nil {
		return Deasserted, ErrNotConfigured
	}
	v, err := p.line.Value()
	if err != nil {
		return Deasserted, fmt.Errorf("read %s: %w", p.name, err)
	}
	return Level(v == 1), nil
}

func (p *CdevPin) Set(level Level) error {
	if p.line == nil {
		return ErrNotConfigured
	}
	return p.line.SetValue(level.Int())
}

type cdevSubscription struct {
	pin *CdevPin
	h   *Handler
}

func (s *cdevSubscription) Cancel() {
	s.pin.handler.CompareAndSwap(s.h, nil)
}

// Subscribe installs h as the pin's edge handler. A cdev line carries one
// handler; a second Subscribe replaces the first.
func (p *CdevPin) Subscribe(h Handler) (Subscription, error) {
	if p.line == nil {
		return nil, ErrNotConfigured
	}
	hp := &h
	p.handler.Store(hp)
	return &cdevSubscription{pin: p, h: hp}, nil
}

// dispatch runs on the gpiocdev watcher goroutine.
func (p *CdevPin) dispatch(gpiocdev.LineEvent) {
	if h := p.handler.Load(); h != nil {
		(*h)(p)
	}
}

func (p *CdevPin) notReady() error {
	if p.openErr != nil {
		return p.openErr
	}
	return fmt.Errorf("%s: %w", p.name, ErrNotConfigured)
}

func (p *CdevPin) close() error {
	p.handler.Store(nil)
	if p.line == nil {
		return nil
	}
	err := p.line.Close()
	p.line = nil
	return err
}
