//go:build tinygo

package gpio

import (
	"fmt"
	"machine"
)

// MachineProvider resolves lines to TinyGo machine pins by number.
type MachineProvider struct{}

// NewMachineProvider creates a provider for on-chip pins.
func NewMachineProvider() *MachineProvider {
	return &MachineProvider{}
}

func (MachineProvider) Pin(l Line) Pin {
	name := l.Name
	if name == "" {
		name = fmt.Sprintf("P%d", l.Offset)
	}
	return &MachinePin{name: name, pin: machine.Pin(l.Offset), activeLow: l.ActiveLow, pull: l.Pull}
}

func (MachineProvider) Close() error { return nil }

// MachinePin is an on-chip pin. Handlers run in interrupt context.
type MachinePin struct {
	name      string
	pin       machine.Pin
	activeLow bool
	pull      Pull
	change    machine.PinChange
}

func (p *MachinePin) Name() string { return p.name }

func (p *MachinePin) IsReady() bool { return p.pin != machine.NoPin }

func (p *MachinePin) ConfigureOutput(initial Level) error {
	p.pin.Configure(machine.PinConfig{Mode: machine.PinOutput})
	p.pin.Set(bool(initial) != p.activeLow)
	return nil
}

func (p *MachinePin) ConfigureInput() error {
	mode := machine.PinInput
	switch p.pull {
	case PullUp:
		mode = machine.PinInputPullup
	case PullDown:
		mode = machine.PinInputPulldown
	}
	p.pin.Configure(machine.PinConfig{Mode: mode})
	return nil
}

// EnableEdgeNotification records the edge kind. TinyGo arms the interrupt
// together with its callback, so the hardware is armed in Subscribe.
func (p *MachinePin) EnableEdgeNotification(edge Edge) error {
	switch edge.Physical(p.activeLow) {
	case RisingEdge:
		p.change = machine.PinRising
	case FallingEdge:
		p.change = machine.PinFalling
	case BothEdges:
		p.change = machine.PinToggle
	default:
		return fmt.Errorf("edge %s: %w", edge, ErrNotSupported)
	}
	return nil
}

func (p *MachinePin) Read() (Level, error) {
	return Level(p.pin.Get() != p.activeLow), nil
}

func (p *MachinePin) Set(level Level) error {
	p.pin.Set(bool(level) != p.activeLow)
	return nil
}

type machineSubscription struct{ pin *MachinePin }

func (s machineSubscription) Cancel() {
	s.pin.pin.SetInterrupt(s.pin.change, nil)
}

func (p *MachinePin) Subscribe(h Handler) (Subscription, error) {
	if p.change == 0 {
		return nil, ErrNotConfigured
	}
	if err := p.pin.SetInterrupt(p.change, func(machine.Pin) { h(p) }); err != nil {
		return nil, fmt.Errorf("set interrupt on %s: %w", p.name, err)
	}
	return machineSubscription{pin: p}, nil
}
