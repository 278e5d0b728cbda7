package gpio

import "fmt"

// Reading is one scripted probe result.
type Reading struct {
	CM  int
	Err error
}

// FakeProber is a test double that returns scripted distances per pin.
type FakeProber struct {
	// Readings maps a pin to its scripted readings.
	// Each Measure call consumes the next one; the last is repeated.
	Readings map[int][]Reading

	// index tracks current position per pin
	index map[int]int

	// Calls counts Measure calls per pin.
	Calls map[int]int

	// Closed tracks if Close was called
	Closed bool
}

// NewFakeProber creates a FakeProber with no readings.
func NewFakeProber() *FakeProber {
	return &FakeProber{
		Readings: map[int][]Reading{},
		index:    map[int]int{},
		Calls:    map[int]int{},
	}
}

// Set replaces the scripted readings for pin with plain distances.
func (f *FakeProber) Set(pin int, cms ...int) {
	rs := make([]Reading, len(cms))
	for i, cm := range cms {
		rs[i] = Reading{CM: cm}
	}
	f.Script(pin, rs...)
}

// Script replaces the scripted readings for pin.
func (f *FakeProber) Script(pin int, rs ...Reading) {
	f.Readings[pin] = rs
	f.index[pin] = 0
}

// Measure returns the next scripted reading for pin.
func (f *FakeProber) Measure(pin int) (int, error) {
	f.Calls[pin]++
	rs := f.Readings[pin]
	if len(rs) == 0 {
		return 0, fmt.Errorf("fake: no readings for pin %d", pin)
	}
	i := f.index[pin]
	if i < len(rs)-1 {
		f.index[pin] = i + 1
	}
	return rs[i].CM, rs[i].Err
}

// Close marks the prober as closed.
func (f *FakeProber) Close() error {
	f.Closed = true
	return nil
}

// Reset rewinds every script.
func (f *FakeProber) Reset() {
	f.index = map[int]int{}
	f.Calls = map[int]int{}
	f.Closed = false
}

// FakeIndicator records lamp writes.
type FakeIndicator struct {
	Yellow, Green bool
	Writes        int
	WriteError    error
	Closed        bool
}

// Write records the lamp levels.
func (f *FakeIndicator) Write(yellow, green bool) error {
	if f.WriteError != nil {
		return f.WriteError
	}
	f.Yellow, f.Green = yellow, green
	f.Writes++
	return nil
}

// Close marks the indicator as closed.
func (f *FakeIndicator) Close() error {
	f.Closed = true
	return nil
}
