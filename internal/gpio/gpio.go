// Package gpio provides ultrasonic distance probes and indicator lamps with
// hardware abstraction. The real implementation uses the Linux GPIO character
// device. The fake implementation allows testing without hardware.
package gpio

import (
	"errors"
	"time"
)

// ErrNoEcho is returned when the sensor never starts an echo pulse.
var ErrNoEcho = errors.New("gpio: no echo")

// ErrEchoTimeout is returned when an echo pulse does not end in time.
var ErrEchoTimeout = errors.New("gpio: echo timeout")

// Prober measures distances with ultrasonic sensors.
type Prober interface {
	// Measure triggers the sensor on pin and returns the distance in centimetres.
	Measure(pin int) (int, error)

	// Close releases GPIO resources.
	Close() error
}

// Indicator drives the two status lamps.
type Indicator interface {
	// Write sets the yellow and green outputs (true = high).
	Write(yellow, green bool) error

	// Close releases GPIO resources.
	Close() error
}

// Sensor describes the wiring of one ultrasonic sensor.
// A 3-pin ping sensor shares one line for trigger and echo (EchoPin == Pin).
// A 4-pin sensor has a separate echo line.
type Sensor struct {
	Pin     int
	EchoPin int
}

// Shared reports whether trigger and echo use the same line.
func (s Sensor) Shared() bool {
	return s.EchoPin == s.Pin
}

// Pin definitions (BCM numbering) and timing defaults.
const (
	DefaultChip        = "gpiochip0"
	DefaultYellowPin   = 12
	DefaultGreenPin    = 13
	DefaultEchoTimeout = 30 * time.Millisecond
)

// DefaultSensorPins are the trigger pins of the three default spaces.
var DefaultSensorPins = []int{3, 4, 5}

// PulseToCentimetres converts a round-trip echo pulse to a distance.
// Sound travels about 29 µs per centimetre and the pulse covers the distance twice.
func PulseToCentimetres(d time.Duration) int {
	return int(d.Microseconds() / 29 / 2)
}

// measurePulse times a high pulse on a line with pulseIn semantics: wait for
// any pulse in progress to end, wait for the next rising edge, then time it
// until the falling edge.
func measurePulse(read func() (int, error), now func() time.Time, timeout time.Duration) (time.Duration, error) {
	deadline := now().Add(timeout)

	for {
		v, err := read()
		if err != nil {
			return 0, err
		}
		if v == 0 {
			break
		}
		if now().After(deadline) {
			return 0, ErrNoEcho
		}
	}

	for {
		v, err := read()
		if err != nil {
			return 0, err
		}
		if v == 1 {
			break
		}
		if now().After(deadline) {
			return 0, ErrNoEcho
		}
	}

	start := now()
	for {
		v, err := read()
		if err != nil {
			return 0, err
		}
		if v == 0 {
			return now().Sub(start), nil
		}
		if now().Sub(start) > timeout {
			return 0, ErrEchoTimeout
		}
	}
}

// spin busy-waits for very short trigger pulses that time.Sleep cannot resolve.
func spin(d time.Duration) {
	start := time.Now()
	for time.Since(start) < d {
	}
}
