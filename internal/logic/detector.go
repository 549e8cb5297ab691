package logic

import (
	"sort"
	"time"
)

// Detector turns driver samples into LED transition events, per device.
// The first good sample for a device establishes its baseline and emits
// nothing. There is no debouncing: every LED change is an event.
type Detector struct {
	devices       map[string]*DeviceState
	startTime     time.Time
	lastHeartbeat time.Time
}

// NewDetector creates a detector expecting the named devices.
// The startTime is used for calculating uptime in heartbeat events.
func NewDetector(startTime time.Time, devices ...string) *Detector {
	d := &Detector{
		devices:       make(map[string]*DeviceState, len(devices)),
		startTime:     startTime,
		lastHeartbeat: startTime,
	}
	for _, name := range devices {
		d.device(name)
	}
	return d
}

func (d *Detector) device(name string) *DeviceState {
	ds, ok := d.devices[name]
	if !ok {
		ds = &DeviceState{Name: name}
		d.devices[name] = ds
	}
	return ds
}

// Process takes a sample received at now and returns any events to emit.
// A sample from an unknown device registers that device.
func (d *Detector) Process(s Sample, now time.Time) []Event {
	ds := d.device(s.Device)
	ds.Counts.Evaluations++
	ds.LastSeen = now

	if s.Failed {
		ds.Counts.ReadFailures++
		return []Event{{
			Timestamp: now,
			Device:    ds.Name,
			Type:      EventReadFailure,
			Stat1:     ds.Stat1,
			Stat2:     ds.Stat2,
			LED:       ds.LED,
		}}
	}

	prevLED := ds.LED
	ds.Stat1 = BoolToState(s.Stat1)
	ds.Stat2 = BoolToState(s.Stat2)
	ds.LED = BoolToState(s.LED)

	if !ds.Baselined {
		ds.Baselined = true
		return nil
	}

	if ds.LED == prevLED {
		return nil
	}

	typ := EventLEDOff
	if ds.LED == StateOn {
		typ = EventLEDOn
		ds.Counts.LEDOn++
	} else {
		ds.Counts.LEDOff++
	}

	return []Event{{
		Timestamp: now,
		Device:    ds.Name,
		Type:      typ,
		Stat1:     ds.Stat1,
		Stat2:     ds.Stat2,
		LED:       ds.LED,
	}}
}

// IsBaselined reports whether every known device has a baseline.
// A detector with no devices is not baselined.
func (d *Detector) IsBaselined() bool {
	if len(d.devices) == 0 {
		return false
	}
	for _, ds := range d.devices {
		if !ds.Baselined {
			return false
		}
	}
	return true
}

// CurrentState returns a copy of the named device's state.
func (d *Detector) CurrentState(name string) (DeviceState, bool) {
	ds, ok := d.devices[name]
	if !ok {
		return DeviceState{}, false
	}
	return *ds, true
}

// Snapshot returns copies of every device state, sorted by name.
func (d *Detector) Snapshot() []DeviceState {
	out := make([]DeviceState, 0, len(d.devices))
	for _, ds := range d.devices {
		out = append(out, *ds)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Totals returns counts summed over all devices.
func (d *Detector) Totals() EventCounts {
	var c EventCounts
	for _, ds := range d.devices {
		c = c.Add(ds.Counts)
	}
	return c
}

// CheckHeartbeat returns heartbeat data if the interval has elapsed since the
// last heartbeat (or startup). Returns nil if not yet baselined, if the
// interval has not elapsed, or if interval is <= 0 (disabled).
func (d *Detector) CheckHeartbeat(now time.Time, interval time.Duration) *HeartbeatData {
	if interval <= 0 {
		return nil
	}

	if !d.IsBaselined() {
		return nil
	}

	if now.Sub(d.lastHeartbeat) < interval {
		return nil
	}

	d.lastHeartbeat = now
	return &HeartbeatData{
		Timestamp: now,
		Uptime:    now.Sub(d.startTime),
		Counts:    d.Totals(),
	}
}
