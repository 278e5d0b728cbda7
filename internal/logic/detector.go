package logic

import (
	"context"
	"fmt"
	"time"
)

// Detector turns raw distance readings into debounced occupancy.
//
// A reading that differs from the stored state is only committed after a
// second reading, taken minDetection later, agrees with it. The wait blocks
// the caller.
type Detector struct {
	probe         Prober
	pins          []int
	distanceLimit int
	minDetection  time.Duration
	clock         Clock
}

// NewDetector creates a detector for one sensor pin per space.
func NewDetector(probe Prober, pins []int, distanceLimit int, minDetection time.Duration, clock Clock) *Detector {
	return &Detector{
		probe:         probe,
		pins:          pins,
		distanceLimit: distanceLimit,
		minDetection:  minDetection,
		clock:         clock,
	}
}

// Spaces returns the number of spaces covered by the detector.
func (d *Detector) Spaces() int {
	return len(d.pins)
}

// Sample returns the debounced occupancy of a space given its stored value.
// On a read error the stored value is returned together with the error.
func (d *Detector) Sample(ctx context.Context, space int, stored bool) (bool, error) {
	if space < 0 || space >= len(d.pins) {
		return stored, fmt.Errorf("sample space %d: %w", space, ErrSpaceOutOfRange)
	}

	candidate, err := d.read(space)
	if err != nil {
		return stored, err
	}
	if candidate == stored {
		return stored, nil
	}

	if err := d.clock.Sleep(ctx, d.minDetection); err != nil {
		return stored, err
	}

	confirm, err := d.read(space)
	if err != nil {
		return stored, err
	}
	if confirm != candidate {
		// Transient reading, discard it.
		return stored, nil
	}
	return candidate, nil
}

func (d *Detector) read(space int) (bool, error) {
	pin := d.pins[space]
	cm, err := d.probe.Measure(pin)
	if err != nil {
		return false, fmt.Errorf("measure space %d (pin %d): %w", space, pin, err)
	}
	return cm <= d.distanceLimit, nil
}
