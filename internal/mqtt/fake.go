package mqtt

import "sync"

// Published is a system event captured by FakePublisher with the payload
// that would have gone on the wire.
type Published struct {
	Event   SystemEvent
	Payload []byte
}

// FakePublisher captures system events in memory.
type FakePublisher struct {
	mu        sync.Mutex
	published []Published
	err       error
	connected bool
	closed    bool
}

// NewFakePublisher returns a connected FakePublisher.
func NewFakePublisher() *FakePublisher {
	return &FakePublisher{connected: true}
}

// PublishSystem captures the event, or returns the error set by Fail.
func (f *FakePublisher) PublishSystem(event SystemEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return err
	}
	f.published = append(f.published, Published{Event: event, Payload: payload})
	return nil
}

// Fail makes every later PublishSystem return err. A nil err restores success.
func (f *FakePublisher) Fail(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

// SetConnected sets the value reported by IsConnected.
func (f *FakePublisher) SetConnected(connected bool) {
	f.mu.Lock()
	f.connected = connected
	f.mu.Unlock()
}

func (f *FakePublisher) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *FakePublisher) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

// Closed reports whether Close was called.
func (f *FakePublisher) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// Published returns a copy of everything captured so far.
func (f *FakePublisher) Published() []Published {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Published(nil), f.published...)
}

// Events returns the names of the captured events in order.
func (f *FakePublisher) Events() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	names := make([]string, len(f.published))
	for i, p := range f.published {
		names[i] = p.Event.Event
	}
	return names
}
