package link

// Transport moves raw payloads to and from the central unit.
type Transport interface {
	// TrySend transmits payload and reports whether the peer acknowledged it.
	// It blocks for at most the transport's own delivery timeout.
	TrySend(payload []byte) bool

	// TryReceive returns the next inbound payload without blocking.
	TryReceive() ([]byte, bool)
}

// NoTransport is the bare-sensor variant with no link to a central unit.
// Every send counts as acknowledged and nothing is ever received.
type NoTransport struct{}

// TrySend discards payload.
func (NoTransport) TrySend(payload []byte) bool {
	return true
}

// TryReceive never has anything.
func (NoTransport) TryReceive() ([]byte, bool) {
	return nil, false
}
