package mqtt

import "github.com/rs/zerolog/log"

// bufferedMsg stores a serialized MQTT message for replay after reconnection.
type bufferedMsg struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

// ringBuffer is a fixed-capacity FIFO that stores messages while disconnected.
// A retained message replaces any buffered retained message for the same
// topic, since the broker would only keep the last one anyway.
// Not safe for concurrent use; the caller must synchronize.
type ringBuffer struct {
	msgs     []bufferedMsg
	capacity int
	dropped  int // messages lost since last drain
}

func newRingBuffer(capacity int) *ringBuffer {
	return &ringBuffer{
		msgs:     make([]bufferedMsg, 0, capacity),
		capacity: capacity,
	}
}

func (r *ringBuffer) push(msg bufferedMsg) {
	if msg.retained {
		for i := range r.msgs {
			if r.msgs[i].retained && r.msgs[i].topic == msg.topic {
				// Keep position, replace content.
				r.msgs[i] = msg
				return
			}
		}
	}

	if len(r.msgs) == r.capacity {
		if r.dropped == 0 {
			log.Warn().Int("capacity", r.capacity).Msg("mqtt: buffer full, dropping oldest")
		}
		r.dropped++
		copy(r.msgs, r.msgs[1:])
		r.msgs = r.msgs[:len(r.msgs)-1]
	}
	r.msgs = append(r.msgs, msg)
}

// drainAll returns the buffered messages oldest first and empties the buffer.
func (r *ringBuffer) drainAll() []bufferedMsg {
	if len(r.msgs) == 0 {
		return nil
	}
	if r.dropped > 0 {
		log.Warn().Int("dropped", r.dropped).Msg("mqtt: messages lost while disconnected")
	}

	result := make([]bufferedMsg, len(r.msgs))
	copy(result, r.msgs)
	r.msgs = r.msgs[:0]
	r.dropped = 0
	return result
}

func (r *ringBuffer) len() int {
	return len(r.msgs)
}
