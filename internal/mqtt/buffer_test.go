package mqtt

import (
	"testing"
)

func msg(topic string, b byte) bufferedMsg {
	return bufferedMsg{topic: topic, payload: []byte{b}, qos: 1}
}

func payloads(msgs []bufferedMsg) []byte {
	out := make([]byte, len(msgs))
	for i, m := range msgs {
		out[i] = m.payload[0]
	}
	return out
}

func TestOutboxEmptyDrain(t *testing.T) {
	o := newOutbox(10)
	if got := o.drain(); got != nil {
		t.Errorf("expected nil from empty drain, got %d items", len(got))
	}
}

func TestOutboxPushAndDrain(t *testing.T) {
	o := newOutbox(10)
	for i := 0; i < 5; i++ {
		o.push(msg(Topic, byte(i)))
	}
	if o.len() != 5 {
		t.Fatalf("len: got %d, want 5", o.len())
	}

	got := o.drain()
	if string(payloads(got)) != string([]byte{0, 1, 2, 3, 4}) {
		t.Errorf("drain order: got %v", payloads(got))
	}
	if o.len() != 0 {
		t.Errorf("len after drain: got %d, want 0", o.len())
	}
	if got2 := o.drain(); got2 != nil {
		t.Errorf("expected nil from second drain, got %d items", len(got2))
	}
}

func TestOutboxOverflowDropsOldest(t *testing.T) {
	o := newOutbox(5)
	for i := 0; i < 8; i++ {
		o.push(msg(Topic, byte(i)))
	}

	if o.dropped != 3 {
		t.Errorf("dropped: got %d, want 3", o.dropped)
	}
	got := o.drain()
	if string(payloads(got)) != string([]byte{3, 4, 5, 6, 7}) {
		t.Errorf("after overflow: got %v, want [3 4 5 6 7]", payloads(got))
	}

	// Dropped count survives a drain.
	if o.dropped != 3 {
		t.Errorf("dropped after drain: got %d, want 3", o.dropped)
	}
}

func TestOutboxMultipleCycles(t *testing.T) {
	o := newOutbox(3)
	for cycle := 0; cycle < 3; cycle++ {
		for i := 0; i < 4; i++ {
			o.push(msg(Topic, byte(cycle*10+i)))
		}
		got := o.drain()
		want := []byte{byte(cycle*10 + 1), byte(cycle*10 + 2), byte(cycle*10 + 3)}
		if string(payloads(got)) != string(want) {
			t.Errorf("cycle %d: got %v, want %v", cycle, payloads(got), want)
		}
	}
	if o.dropped != 3 {
		t.Errorf("dropped: got %d, want 3", o.dropped)
	}
}

func TestOutboxRetainedReplacesSameTopic(t *testing.T) {
	o := newOutbox(10)
	startup := bufferedMsg{topic: TopicSystem, payload: []byte{1}, qos: 1, retained: true}
	shutdown := bufferedMsg{topic: TopicSystem, payload: []byte{2}, qos: 1, retained: true}

	o.push(startup)
	o.push(msg(Topic, 10))
	o.push(shutdown)

	got := o.drain()
	if len(got) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(got))
	}
	if got[0].topic != Topic || got[1].payload[0] != 2 {
		t.Errorf("unexpected order: %+v", got)
	}
	if o.dropped != 0 {
		t.Errorf("replaced retained message should not count as dropped, got %d", o.dropped)
	}
}

func TestOutboxNonRetainedKeepsAll(t *testing.T) {
	o := newOutbox(10)
	hb := bufferedMsg{topic: TopicSystem, payload: []byte{1}}
	o.push(hb)
	o.push(hb)
	if o.len() != 2 {
		t.Errorf("len: got %d, want 2", o.len())
	}
}

func TestOutboxPreservesFields(t *testing.T) {
	o := newOutbox(5)
	o.push(bufferedMsg{topic: "power/charger/test", payload: []byte("hello"), qos: 1, retained: true})

	got := o.drain()
	if len(got) != 1 {
		t.Fatalf("expected 1 item, got %d", len(got))
	}
	m := got[0]
	if m.topic != "power/charger/test" {
		t.Errorf("topic: got %q", m.topic)
	}
	if string(m.payload) != "hello" {
		t.Errorf("payload: got %q", m.payload)
	}
	if m.qos != 1 {
		t.Errorf("qos: got %d", m.qos)
	}
	if !m.retained {
		t.Error("expected retained=true")
	}
}
