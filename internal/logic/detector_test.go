package logic

import (
	"testing"
	"time"
)

var t0 = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

func sample(device string, stat1, stat2 bool) Sample {
	return Sample{Device: device, Stat1: stat1, Stat2: stat2, LED: Evaluate(stat1, stat2)}
}

func TestNewDetector(t *testing.T) {
	d := NewDetector(t0, "charger")
	if d.IsBaselined() {
		t.Error("new detector should not be baselined")
	}
	if !d.startTime.Equal(t0) {
		t.Errorf("expected startTime %v, got %v", t0, d.startTime)
	}
	if !d.lastHeartbeat.Equal(t0) {
		t.Errorf("expected lastHeartbeat %v, got %v", t0, d.lastHeartbeat)
	}
	if _, ok := d.CurrentState("charger"); !ok {
		t.Error("expected registered device to be known")
	}
}

func TestEmptyDetectorNotBaselined(t *testing.T) {
	d := NewDetector(t0)
	if d.IsBaselined() {
		t.Error("detector without devices should not be baselined")
	}
}

func TestFirstSampleEstablishesBaseline(t *testing.T) {
	d := NewDetector(t0, "charger")

	events := d.Process(sample("charger", true, true), t0)
	if len(events) != 0 {
		t.Errorf("expected no events at baseline, got %d", len(events))
	}
	if !d.IsBaselined() {
		t.Error("expected baselined after first sample")
	}

	ds, _ := d.CurrentState("charger")
	if ds.LED != StateOn || ds.Stat1 != StateOn || ds.Stat2 != StateOn {
		t.Errorf("unexpected state %+v", ds)
	}
	if ds.Counts.Evaluations != 1 {
		t.Errorf("expected 1 evaluation, got %d", ds.Counts.Evaluations)
	}
}

func TestLEDTransitions(t *testing.T) {
	d := NewDetector(t0, "charger")
	d.Process(sample("charger", false, false), t0)

	steps := []struct {
		stat1, stat2 bool
		want         EventType // empty = no event
	}{
		{true, false, ""},
		{true, true, EventLEDOn},
		{true, true, ""},
		{false, true, EventLEDOff},
		{false, false, ""},
		{true, true, EventLEDOn},
	}

	for i, s := range steps {
		now := t0.Add(time.Duration(i+1) * time.Second)
		events := d.Process(sample("charger", s.stat1, s.stat2), now)
		if s.want == "" {
			if len(events) != 0 {
				t.Errorf("step %d: expected no events, got %v", i, events)
			}
			continue
		}
		if len(events) != 1 {
			t.Fatalf("step %d: expected 1 event, got %d", i, len(events))
		}
		e := events[0]
		if e.Type != s.want {
			t.Errorf("step %d: expected %s, got %s", i, s.want, e.Type)
		}
		if e.Device != "charger" {
			t.Errorf("step %d: expected device charger, got %q", i, e.Device)
		}
		if !e.Timestamp.Equal(now) {
			t.Errorf("step %d: unexpected timestamp %v", i, e.Timestamp)
		}
		if e.Stat1 != BoolToState(s.stat1) || e.Stat2 != BoolToState(s.stat2) {
			t.Errorf("step %d: event carries wrong status lines: %+v", i, e)
		}
	}

	ds, _ := d.CurrentState("charger")
	if ds.Counts.LEDOn != 2 {
		t.Errorf("expected 2 LED_ON, got %d", ds.Counts.LEDOn)
	}
	if ds.Counts.LEDOff != 1 {
		t.Errorf("expected 1 LED_OFF, got %d", ds.Counts.LEDOff)
	}
	if ds.Counts.Evaluations != 7 {
		t.Errorf("expected 7 evaluations, got %d", ds.Counts.Evaluations)
	}
}

func TestReadFailureKeepsLastState(t *testing.T) {
	d := NewDetector(t0, "charger")
	d.Process(sample("charger", true, true), t0)

	events := d.Process(Sample{Device: "charger", Failed: true}, t0.Add(time.Second))
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].Type != EventReadFailure {
		t.Errorf("expected READ_FAILURE, got %s", events[0].Type)
	}
	if events[0].LED != StateOn {
		t.Errorf("failure event should carry last LED state ON, got %s", events[0].LED)
	}

	ds, _ := d.CurrentState("charger")
	if ds.LED != StateOn {
		t.Errorf("read failure must not change LED state, got %s", ds.LED)
	}
	if ds.Counts.ReadFailures != 1 {
		t.Errorf("expected 1 read failure, got %d", ds.Counts.ReadFailures)
	}

	// Recovery on next good sample: no transition since LED is unchanged.
	if events := d.Process(sample("charger", true, true), t0.Add(2*time.Second)); len(events) != 0 {
		t.Errorf("expected no events after recovery, got %v", events)
	}
}

func TestReadFailureBeforeBaseline(t *testing.T) {
	d := NewDetector(t0, "charger")
	events := d.Process(Sample{Device: "charger", Failed: true}, t0)
	if len(events) != 1 || events[0].Type != EventReadFailure {
		t.Fatalf("expected READ_FAILURE, got %v", events)
	}
	if d.IsBaselined() {
		t.Error("a failed sample must not establish a baseline")
	}
}

func TestDevicesAreIndependent(t *testing.T) {
	d := NewDetector(t0, "a", "b")
	d.Process(sample("a", true, true), t0)
	if d.IsBaselined() {
		t.Error("should not be baselined until every device reports")
	}
	d.Process(sample("b", false, false), t0)
	if !d.IsBaselined() {
		t.Error("expected baselined once both devices report")
	}

	events := d.Process(sample("b", true, true), t0.Add(time.Second))
	if len(events) != 1 || events[0].Device != "b" {
		t.Fatalf("expected one event for b, got %v", events)
	}

	a, _ := d.CurrentState("a")
	if a.Counts.LEDOn != 0 {
		t.Errorf("device a should be unaffected, got %+v", a.Counts)
	}

	snap := d.Snapshot()
	if len(snap) != 2 || snap[0].Name != "a" || snap[1].Name != "b" {
		t.Errorf("snapshot should be sorted by name, got %+v", snap)
	}

	tot := d.Totals()
	if tot.Evaluations != 3 || tot.LEDOn != 1 {
		t.Errorf("unexpected totals %+v", tot)
	}
}

func TestUnknownDeviceRegisters(t *testing.T) {
	d := NewDetector(t0)
	d.Process(sample("late", true, false), t0)
	if _, ok := d.CurrentState("late"); !ok {
		t.Error("expected unknown device to be registered")
	}
	if !d.IsBaselined() {
		t.Error("expected baselined with single reporting device")
	}
}

func TestCheckHeartbeat(t *testing.T) {
	d := NewDetector(t0, "charger")
	interval := 15 * time.Minute

	if hb := d.CheckHeartbeat(t0.Add(time.Hour), interval); hb != nil {
		t.Error("no heartbeat before baseline")
	}

	d.Process(sample("charger", true, true), t0)

	if hb := d.CheckHeartbeat(t0.Add(time.Minute), interval); hb != nil {
		t.Error("no heartbeat before interval elapses")
	}

	hb := d.CheckHeartbeat(t0.Add(interval), interval)
	if hb == nil {
		t.Fatal("expected heartbeat")
	}
	if hb.Uptime != interval {
		t.Errorf("expected uptime %v, got %v", interval, hb.Uptime)
	}
	if hb.Counts.Evaluations != 1 {
		t.Errorf("expected 1 evaluation in counts, got %d", hb.Counts.Evaluations)
	}

	if hb := d.CheckHeartbeat(t0.Add(interval+time.Minute), interval); hb != nil {
		t.Error("heartbeat interval should restart from last heartbeat")
	}
	if hb := d.CheckHeartbeat(t0.Add(2*interval), interval); hb == nil {
		t.Error("expected second heartbeat")
	}
}

func TestCheckHeartbeatDisabled(t *testing.T) {
	d := NewDetector(t0, "charger")
	d.Process(sample("charger", true, true), t0)
	if hb := d.CheckHeartbeat(t0.Add(24*time.Hour), 0); hb != nil {
		t.Error("interval 0 disables heartbeats")
	}
}
