//go:build !linux

package gpio

import (
	"errors"
	"time"
)

var errUnsupported = errors.New("gpio: not supported on this platform (requires Linux)")

// RealProber is not available on non-Linux platforms.
type RealProber struct{}

// NewRealProber returns an error on non-Linux platforms.
func NewRealProber(chipName string, sensors []Sensor, timeout time.Duration) (*RealProber, error) {
	return nil, errUnsupported
}

// Measure is not implemented on non-Linux platforms.
func (p *RealProber) Measure(pin int) (int, error) {
	return 0, errUnsupported
}

// Close is not implemented on non-Linux platforms.
func (p *RealProber) Close() error {
	return nil
}

// RealIndicator is not available on non-Linux platforms.
type RealIndicator struct{}

// NewRealIndicator returns an error on non-Linux platforms.
func NewRealIndicator(chipName string, yellowPin, greenPin int) (*RealIndicator, error) {
	return nil, errUnsupported
}

// Write is not implemented on non-Linux platforms.
func (r *RealIndicator) Write(yellow, green bool) error {
	return errUnsupported
}

// Close is not implemented on non-Linux platforms.
func (r *RealIndicator) Close() error {
	return nil
}
