package mqtt

import (
	"context"
	"log/slog"

	"github.com/sweeney/group-controller/internal/log"
)

// packet is one inbound message waiting for the control loop.
type packet struct {
	topic   string
	payload []byte
}

// ringBuffer is a fixed-capacity FIFO of inbound packets.
// Not safe for concurrent use; caller must synchronize.
type ringBuffer struct {
	buf      []packet
	capacity int
	head     int // next write position
	count    int
	dropped  int
	overflow bool // true while full; reset once the buffer drains
}

func newRingBuffer(capacity int) *ringBuffer {
	if capacity < 1 {
		capacity = 1
	}
	return &ringBuffer{
		buf:      make([]packet, capacity),
		capacity: capacity,
	}
}

func (r *ringBuffer) push(p packet) {
	if r.count == r.capacity {
		if !r.overflow {
			log.Warn(context.Background(), "mqtt: inbound buffer full, dropping oldest",
				slog.Int("capacity", r.capacity))
			r.overflow = true
		}
		// Overwrite oldest: head is already pointing at it
		r.buf[r.head] = p
		r.head = (r.head + 1) % r.capacity
		r.dropped++
		return
	}
	r.buf[r.head] = p
	r.head = (r.head + 1) % r.capacity
	r.count++
}

// pop removes and returns the oldest packet.
func (r *ringBuffer) pop() (packet, bool) {
	if r.count == 0 {
		r.overflow = false
		return packet{}, false
	}
	start := (r.head - r.count + r.capacity) % r.capacity
	p := r.buf[start]
	r.buf[start] = packet{}
	r.count--
	return p, true
}

func (r *ringBuffer) len() int {
	return r.count
}
