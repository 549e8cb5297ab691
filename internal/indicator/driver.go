// Package indicator drives an LED from the AND of two charge-controller
// status lines (STAT1, STAT2), re-evaluating on every edge of either line.
package indicator

import (
	"errors"
	"log"
	"runtime"
	"sync/atomic"

	"github.com/sweeney/charge-indicator/internal/gpio"
	"github.com/sweeney/charge-indicator/internal/logic"
)

// State is the lifecycle state of a Driver.
type State int32

const (
	Uninitialized State = iota
	Active
)

func (s State) String() string {
	if s == Active {
		return "active"
	}
	return "uninitialized"
}

// Bits of Driver.last.
const (
	lastStat1 = 1 << iota
	lastStat2
	lastLED
	lastValid
)

// maxPasses bounds how many times one evaluation retries after being
// overtaken by a concurrent one.
const maxPasses = 16

// Config names one device and its three already-resolved pins.
type Config struct {
	Name  string
	LED   gpio.Pin
	Stat1 gpio.Pin
	Stat2 gpio.Pin
}

// Stats are diagnostic counters, updated atomically from the edge path.
type Stats struct {
	Evaluations   uint64
	ReadFailures  uint64
	WriteFailures uint64
	Dropped       uint64 // samples not delivered because the notify channel was full
}

// Driver is one indicator device. Pin handles are fixed at Init; the
// subscriptions are written once during Init and never again.
type Driver struct {
	name  string
	led   gpio.Pin
	stat1 gpio.Pin
	stat2 gpio.Pin
	subs  [2]gpio.Subscription

	notify chan<- logic.Sample

	state    atomic.Int32
	aborted  atomic.Bool
	inflight atomic.Int32  // edge handlers currently running
	last     atomic.Uint32 // last* bits of the last successful evaluation
	gen      atomic.Uint64

	evaluations   atomic.Uint64
	readFailures  atomic.Uint64
	writeFailures atomic.Uint64
	dropped       atomic.Uint64
}

// Option configures a Driver.
type Option func(*Driver)

// WithNotify sends a sample to ch after every evaluation. Sends never block;
// when ch is full the sample is dropped and counted.
func WithNotify(ch chan<- logic.Sample) Option {
	return func(d *Driver) { d.notify = ch }
}

// Init configures the pins, installs both edge subscriptions and performs
// the initial evaluation. If a pin is not ready or rejects its configuration
// the LED is left inactive, no subscription remains and a nil Driver is
// returned. A failed initial read is not fatal: the LED stays inactive and
// the next edge evaluates again.
func Init(cfg Config, opts ...Option) (*Driver, error) {
	d := &Driver{
		name:  cfg.Name,
		led:   cfg.LED,
		stat1: cfg.Stat1,
		stat2: cfg.Stat2,
	}
	for _, o := range opts {
		o(d)
	}

	if err := d.setup(); err != nil {
		d.abort()
		return nil, err
	}

	d.state.Store(int32(Active))
	log.Printf("indicator: %s initialized (LED=%d)", d.name, d.Output().Int())
	return d, nil
}

func (d *Driver) setup() error {
	if d.led == nil || !d.led.IsReady() {
		return d.fail(RoleLED, StepReady, ErrNotReady)
	}
	if err := d.led.ConfigureOutput(gpio.Deasserted); err != nil {
		return d.fail(RoleLED, StepConfigure, err)
	}

	if err := d.configureInput(RoleStat1, d.stat1); err != nil {
		return err
	}
	if err := d.configureInput(RoleStat2, d.stat2); err != nil {
		return err
	}

	// The handler is a method value: the owning Driver travels with the
	// subscription, not with the pin.
	sub, err := d.stat1.Subscribe(d.onEdge)
	if err != nil {
		return d.fail(RoleStat1, StepSubscribe, err)
	}
	d.subs[0] = sub
	sub, err = d.stat2.Subscribe(d.onEdge)
	if err != nil {
		return d.fail(RoleStat2, StepSubscribe, err)
	}
	d.subs[1] = sub

	// Edges between arming and subscribing were not delivered; this read
	// picks them up.
	if err := d.evaluate(); err != nil {
		log.Printf("indicator: %s: initial evaluation: %v", d.name, err)
	}
	return nil
}

func (d *Driver) configureInput(role Role, p gpio.Pin) error {
	if p == nil || !p.IsReady() {
		return d.fail(role, StepReady, ErrNotReady)
	}
	if err := p.ConfigureInput(); err != nil {
		return d.fail(role, StepConfigure, err)
	}
	if err := p.EnableEdgeNotification(gpio.BothEdges); err != nil {
		return d.fail(role, StepInterrupt, err)
	}
	return nil
}

func (d *Driver) fail(role Role, step Step, err error) error {
	return &InitError{Device: d.name, Pin: role, Step: step, Err: err}
}

// abort detaches every subscription made so far, waits for edge handlers
// already running to finish, and puts the LED back in its inactive state.
func (d *Driver) abort() {
	d.aborted.Store(true)
	for i, s := range d.subs {
		if s != nil {
			s.Cancel()
			d.subs[i] = nil
		}
	}
	// A handler that raised inflight before aborted was set may still be
	// between its reads and its write.
	for d.inflight.Load() != 0 {
		runtime.Gosched()
	}
	if d.led != nil && d.led.IsReady() {
		if err := d.led.Set(gpio.Deasserted); err != nil {
			d.writeFailures.Add(1)
			log.Printf("indicator: %s: reset LED after failed init: %v", d.name, err)
		}
	}
}

// onEdge is the single re-evaluation path for both status lines.
// It runs in the backend's notification context.
func (d *Driver) onEdge(gpio.Pin) {
	d.inflight.Add(1)
	defer d.inflight.Add(-1)
	if d.aborted.Load() {
		return
	}
	d.evaluate()
}

// Evaluate reads both status lines and drives the LED. On a read failure the
// LED is left unchanged and ErrReadFailure is returned.
func (d *Driver) Evaluate() error {
	return d.evaluate()
}

// evaluate must not block or allocate. If another evaluation starts while
// this one runs, it repeats so the last write reflects the freshest read.
func (d *Driver) evaluate() error {
	var err error
	for pass := 0; pass < maxPasses; pass++ {
		g := d.gen.Add(1)
		err = d.evaluateOnce()
		if d.gen.Load() == g {
			break
		}
	}
	return err
}

func (d *Driver) evaluateOnce() error {
	d.evaluations.Add(1)

	s1, err1 := d.stat1.Read()
	s2, err2 := d.stat2.Read()
	// Init may have given up while the reads were in progress.
	if d.aborted.Load() {
		return nil
	}
	if err1 != nil || err2 != nil {
		d.readFailures.Add(1)
		d.send(logic.Sample{Device: d.name, Failed: true})
		return ErrReadFailure
	}

	led := logic.Evaluate(bool(s1), bool(s2))
	if err := d.led.Set(gpio.Level(led)); err != nil {
		d.writeFailures.Add(1)
		return ErrWriteFailure
	}
	v := uint32(lastValid)
	if s1 {
		v |= lastStat1
	}
	if s2 {
		v |= lastStat2
	}
	if led {
		v |= lastLED
	}
	d.last.Store(v)

	d.send(logic.Sample{Device: d.name, Stat1: bool(s1), Stat2: bool(s2), LED: led})
	return nil
}

func (d *Driver) send(s logic.Sample) {
	if d.notify == nil {
		return
	}
	select {
	case d.notify <- s:
	default:
		d.dropped.Add(1)
	}
}

// Name returns the device name.
func (d *Driver) Name() string { return d.name }

// State returns the lifecycle state.
func (d *Driver) State() State { return State(d.state.Load()) }

// Output returns the last LED level successfully written.
func (d *Driver) Output() gpio.Level { return gpio.Level(d.last.Load()&lastLED != 0) }

// Last returns the inputs and output of the last successful evaluation.
// ok is false if no evaluation has succeeded yet.
func (d *Driver) Last() (s logic.Sample, ok bool) {
	v := d.last.Load()
	return logic.Sample{
		Device: d.name,
		Stat1:  v&lastStat1 != 0,
		Stat2:  v&lastStat2 != 0,
		LED:    v&lastLED != 0,
	}, v&lastValid != 0
}

// Stats returns a snapshot of the diagnostic counters.
func (d *Driver) Stats() Stats {
	return Stats{
		Evaluations:   d.evaluations.Load(),
		ReadFailures:  d.readFailures.Load(),
		WriteFailures: d.writeFailures.Load(),
		Dropped:       d.dropped.Load(),
	}
}

// InitAll initializes each config independently. Devices that fail are
// skipped; their errors are joined into the returned error.
func InitAll(cfgs []Config, opts ...Option) ([]*Driver, error) {
	var drivers []*Driver
	var errs []error
	for _, cfg := range cfgs {
		d, err := Init(cfg, opts...)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		drivers = append(drivers, d)
	}
	return drivers, errors.Join(errs...)
}
