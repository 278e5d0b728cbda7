package link

import "sync"

// FakeTransport is a test double with scripted acknowledgements.
type FakeTransport struct {
	mu sync.Mutex

	// Acks holds the result of successive TrySend calls.
	// Once exhausted, DefaultAck is returned.
	Acks       []bool
	DefaultAck bool

	// Sent records every payload passed to TrySend.
	Sent [][]byte

	inbound [][]byte
}

// NewFakeTransport creates a FakeTransport that acknowledges everything.
func NewFakeTransport() *FakeTransport {
	return &FakeTransport{DefaultAck: true}
}

// TrySend records payload and returns the next scripted result.
func (f *FakeTransport) TrySend(payload []byte) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Sent = append(f.Sent, append([]byte(nil), payload...))
	if len(f.Acks) > 0 {
		ack := f.Acks[0]
		f.Acks = f.Acks[1:]
		return ack
	}
	return f.DefaultAck
}

// TryReceive pops the oldest pushed payload.
func (f *FakeTransport) TryReceive() ([]byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.inbound) == 0 {
		return nil, false
	}
	p := f.inbound[0]
	f.inbound = f.inbound[1:]
	return p, true
}

// Push queues an inbound payload.
func (f *FakeTransport) Push(payload []byte) {
	f.mu.Lock()
	f.inbound = append(f.inbound, payload)
	f.mu.Unlock()
}

// SentCopy returns a snapshot of the sent payloads.
func (f *FakeTransport) SentCopy() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]byte(nil), f.Sent...)
}
