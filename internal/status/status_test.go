package status

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sweeney/charge-indicator/internal/logic"
)

func devices() []logic.DeviceState {
	return []logic.DeviceState{
		{
			Name: "charger", Stat1: logic.StateOn, Stat2: logic.StateOn, LED: logic.StateOn, Baselined: true,
			Counts: logic.EventCounts{Evaluations: 10, LEDOn: 3, LEDOff: 2, ReadFailures: 1},
		},
		{
			Name: "spare", Stat1: logic.StateOff, Stat2: logic.StateOn, LED: logic.StateOff, Baselined: true,
			Counts: logic.EventCounts{Evaluations: 4, LEDOff: 1},
		},
	}
}

func TestNewTracker(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cfg := Config{Backend: "cdev", Payload: "json", Broker: "tcp://localhost:1883", HTTPPort: ":80"}
	tr := NewTracker(start, cfg)

	snap := tr.Snapshot()
	if !snap.StartTime.Equal(start) {
		t.Errorf("StartTime: got %v, want %v", snap.StartTime, start)
	}
	if snap.Config.HTTPPort != ":80" {
		t.Errorf("Config.HTTPPort: got %q, want %q", snap.Config.HTTPPort, ":80")
	}
	if snap.Baselined {
		t.Error("expected Baselined=false initially")
	}
	if snap.MQTTConnected {
		t.Error("expected MQTTConnected=false initially")
	}
	if len(snap.Devices) != 0 {
		t.Errorf("expected no devices initially, got %d", len(snap.Devices))
	}
}

func TestUpdateAndSnapshot(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	tr.Update(devices(), true)

	snap := tr.Snapshot()
	if len(snap.Devices) != 2 {
		t.Fatalf("expected 2 devices, got %d", len(snap.Devices))
	}
	if snap.Devices[0].LED != logic.StateOn {
		t.Errorf("LED: got %q, want ON", snap.Devices[0].LED)
	}
	if !snap.Baselined {
		t.Error("expected Baselined=true")
	}

	tot := snap.Totals()
	if tot.Evaluations != 14 || tot.LEDOn != 3 || tot.LEDOff != 3 || tot.ReadFailures != 1 {
		t.Errorf("unexpected totals %+v", tot)
	}
}

func TestSetFailed(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	tr.SetFailed("b", errors.New("STAT1 ready: gpio not ready"))
	tr.SetFailed("a", errors.New("LED configure: EBUSY"))

	snap := tr.Snapshot()
	names := snap.FailedNames()
	if len(names) != 2 || names[0] != "a" || names[1] != "b" {
		t.Errorf("unexpected failed names %v", names)
	}
	if snap.Failed["a"] != "LED configure: EBUSY" {
		t.Errorf("unexpected error text %q", snap.Failed["a"])
	}
}

func TestSnapshotIsCopy(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	in := devices()
	tr.Update(in, true)
	tr.SetFailed("x", errors.New("boom"))

	in[0].LED = logic.StateOff
	snap := tr.Snapshot()
	if snap.Devices[0].LED != logic.StateOn {
		t.Error("tracker should not alias the caller's slice")
	}

	snap.Devices[0].LED = logic.StateOff
	snap.Failed["y"] = "mutated"
	again := tr.Snapshot()
	if again.Devices[0].LED != logic.StateOn {
		t.Error("snapshot should not alias tracker state")
	}
	if _, ok := again.Failed["y"]; ok {
		t.Error("snapshot failed map should be a copy")
	}
}

func TestSetNetwork(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	tr.SetNetwork(&NetworkInfo{Type: "wifi", IP: "10.0.0.2", Status: "connected"})

	snap := tr.Snapshot()
	if snap.Network == nil || snap.Network.IP != "10.0.0.2" {
		t.Errorf("unexpected network %+v", snap.Network)
	}
}

func TestSnapshotUptime(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	snap := Snapshot{StartTime: start, Now: start.Add(90 * time.Second)}
	if snap.Uptime() != 90*time.Second {
		t.Errorf("Uptime: got %v, want 90s", snap.Uptime())
	}
}

func TestFormatJSON(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tr := NewTracker(start, Config{Backend: "cdev", Payload: "cbor", HeartbeatMs: 900000, Broker: "tcp://b:1883", HTTPPort: ":80"})
	tr.Update(devices(), true)
	tr.SetFailed("broken", errors.New("LED ready: gpio not ready"))
	tr.SetMQTTConnected(true)

	var parsed StatusJSON
	if err := json.Unmarshal(FormatJSON(tr.Snapshot()), &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	s := parsed.Status
	if !s.Ready {
		t.Error("expected ready=true")
	}
	if len(s.Devices) != 2 || s.Devices[0].Name != "charger" || s.Devices[0].LED != "ON" {
		t.Errorf("unexpected devices %+v", s.Devices)
	}
	if s.Devices[0].Counts.ReadFailures != 1 {
		t.Errorf("unexpected device counts %+v", s.Devices[0].Counts)
	}
	if s.Counts.Evaluations != 14 {
		t.Errorf("expected total evaluations 14, got %d", s.Counts.Evaluations)
	}
	if len(s.Failed) != 1 || s.Failed[0].Name != "broken" {
		t.Errorf("unexpected failed %+v", s.Failed)
	}
	if !s.MQTT.Connected || s.MQTT.Broker != "tcp://b:1883" {
		t.Errorf("unexpected mqtt %+v", s.MQTT)
	}
	if s.Config.Payload != "cbor" || s.Config.Backend != "cdev" {
		t.Errorf("unexpected config %+v", s.Config)
	}
	if s.StartTime != "2026-01-01T00:00:00Z" {
		t.Errorf("unexpected start time %s", s.StartTime)
	}
	if s.Event != "" || s.Reason != "" {
		t.Error("web JSON should not carry event or reason")
	}
}

func TestFormatJSONUnknownState(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	tr.Update([]logic.DeviceState{{Name: "charger"}}, false)

	var parsed StatusJSON
	json.Unmarshal(FormatJSON(tr.Snapshot()), &parsed)
	d := parsed.Status.Devices[0]
	if d.Stat1 != "UNKNOWN" || d.Stat2 != "UNKNOWN" || d.LED != "UNKNOWN" {
		t.Errorf("expected UNKNOWN states before baseline, got %+v", d)
	}
	if d.Ready {
		t.Error("expected ready=false")
	}
}

func TestFormatJSONNoDevicesIsEmptyList(t *testing.T) {
	data := FormatJSON(NewTracker(time.Now(), Config{}).Snapshot())
	var raw map[string]map[string]any
	json.Unmarshal(data, &raw)
	if devs, ok := raw["status"]["devices"].([]any); !ok || len(devs) != 0 {
		t.Errorf("expected devices to be an empty list, got %v", raw["status"]["devices"])
	}
}

func TestStatusEvent(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	tr.Update(devices(), true)

	ev := StatusEvent(tr.Snapshot(), "SHUTDOWN", "SIGTERM")
	if ev.Status.Event != "SHUTDOWN" || ev.Status.Reason != "SIGTERM" {
		t.Errorf("unexpected event/reason %q/%q", ev.Status.Event, ev.Status.Reason)
	}

	data, _ := json.Marshal(StatusEvent(tr.Snapshot(), "STARTUP", ""))
	var raw map[string]map[string]any
	json.Unmarshal(data, &raw)
	if _, ok := raw["status"]["reason"]; ok {
		t.Error("expected reason to be omitted when empty")
	}
	if raw["status"]["event"] != "STARTUP" {
		t.Errorf("unexpected event %v", raw["status"]["event"])
	}
}

func TestFormatJSONWithNetwork(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	tr.SetNetwork(&NetworkInfo{Type: "wifi", IP: "192.168.1.50", Status: "connected", SSID: "MyNet"})

	var parsed StatusJSON
	json.Unmarshal(FormatJSON(tr.Snapshot()), &parsed)
	if parsed.Status.Network == nil {
		t.Fatal("expected network block")
	}
	if parsed.Status.Network.SSID != "MyNet" {
		t.Errorf("Network.SSID: got %q, want MyNet", parsed.Status.Network.SSID)
	}
}

func TestConcurrentAccess(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	var wg sync.WaitGroup

	// Writer
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			tr.Update(devices(), i%2 == 0)
			tr.SetMQTTConnected(i%2 == 0)
			tr.SetNetwork(&NetworkInfo{IP: "1.2.3.4"})
			tr.SetFailed("x", errors.New("boom"))
		}
	}()

	// Reader
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			snap := tr.Snapshot()
			_ = snap.Uptime()
			_ = FormatJSON(snap)
		}
	}()

	wg.Wait()
}
