package mqtt

import "log"

// bufferedMsg is an encoded message waiting for the broker.
type bufferedMsg struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

// outbox holds messages published while disconnected, oldest first.
// A retained message replaces any earlier retained message on the same
// topic, since the broker would only keep the last one. When full, the
// oldest message is dropped.
// Not safe for concurrent use; the publisher holds its mutex.
type outbox struct {
	msgs     []bufferedMsg
	capacity int
	warned   bool // full warning logged since last drain
	dropped  int  // overwritten since creation
}

func newOutbox(capacity int) *outbox {
	return &outbox{
		msgs:     make([]bufferedMsg, 0, capacity),
		capacity: capacity,
	}
}

func (o *outbox) push(msg bufferedMsg) {
	if msg.retained {
		for i, m := range o.msgs {
			if m.retained && m.topic == msg.topic {
				o.msgs = append(o.msgs[:i], o.msgs[i+1:]...)
				break
			}
		}
	}
	if len(o.msgs) == o.capacity {
		if !o.warned {
			log.Printf("mqtt: offline buffer full (%d messages), dropping oldest", o.capacity)
			o.warned = true
		}
		o.dropped++
		copy(o.msgs, o.msgs[1:])
		o.msgs = o.msgs[:len(o.msgs)-1]
	}
	o.msgs = append(o.msgs, msg)
}

// drain returns the pending messages and empties the outbox.
func (o *outbox) drain() []bufferedMsg {
	if len(o.msgs) == 0 {
		return nil
	}
	out := o.msgs
	o.msgs = make([]bufferedMsg, 0, o.capacity)
	o.warned = false
	return out
}

func (o *outbox) len() int { return len(o.msgs) }
