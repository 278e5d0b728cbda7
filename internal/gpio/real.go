//go:build linux

package gpio

import (
	"fmt"
	"time"

	"github.com/warthog618/go-gpiocdev"
)

type sensorLines struct {
	trig   *gpiocdev.Line
	echo   *gpiocdev.Line
	shared bool
}

// RealProber measures distance with ultrasonic sensors on the Linux GPIO character device.
type RealProber struct {
	chip    *gpiocdev.Chip
	sensors map[int]*sensorLines
	timeout time.Duration
}

// NewRealProber requests the trigger and echo lines of every sensor.
func NewRealProber(chipName string, sensors []Sensor, timeout time.Duration) (*RealProber, error) {
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	p := &RealProber{
		chip:    chip,
		sensors: make(map[int]*sensorLines, len(sensors)),
		timeout: timeout,
	}

	for _, s := range sensors {
		trig, err := chip.RequestLine(s.Pin, gpiocdev.AsOutput(0))
		if err != nil {
			p.Close()
			return nil, fmt.Errorf("request trigger pin %d: %w", s.Pin, err)
		}
		lines := &sensorLines{trig: trig, echo: trig, shared: s.Shared()}
		p.sensors[s.Pin] = lines

		if !s.Shared() {
			echo, err := chip.RequestLine(s.EchoPin, gpiocdev.AsInput, gpiocdev.WithPullDown)
			if err != nil {
				p.Close()
				return nil, fmt.Errorf("request echo pin %d: %w", s.EchoPin, err)
			}
			lines.echo = echo
		}
	}

	return p, nil
}

// Measure sends a trigger pulse and times the echo.
func (p *RealProber) Measure(pin int) (int, error) {
	l, ok := p.sensors[pin]
	if !ok {
		return 0, fmt.Errorf("measure: pin %d not configured", pin)
	}

	high := 10 * time.Microsecond
	if l.shared {
		high = 5 * time.Microsecond
		if err := l.trig.Reconfigure(gpiocdev.AsOutput(0)); err != nil {
			return 0, fmt.Errorf("pin %d as output: %w", pin, err)
		}
	}

	if err := l.trig.SetValue(0); err != nil {
		return 0, fmt.Errorf("trigger pin %d: %w", pin, err)
	}
	spin(2 * time.Microsecond)
	if err := l.trig.SetValue(1); err != nil {
		return 0, fmt.Errorf("trigger pin %d: %w", pin, err)
	}
	spin(high)
	if err := l.trig.SetValue(0); err != nil {
		return 0, fmt.Errorf("trigger pin %d: %w", pin, err)
	}

	if l.shared {
		if err := l.echo.Reconfigure(gpiocdev.AsInput); err != nil {
			return 0, fmt.Errorf("pin %d as input: %w", pin, err)
		}
	}

	d, err := measurePulse(l.echo.Value, time.Now, p.timeout)
	if err != nil {
		return 0, fmt.Errorf("echo pin %d: %w", pin, err)
	}
	return PulseToCentimetres(d), nil
}

// Close releases GPIO resources.
// Lines are returned to input with pull-down to match Pi boot defaults.
func (p *RealProber) Close() error {
	var errs []error

	for pin, l := range p.sensors {
		if err := l.trig.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure pin %d: %w", pin, err))
		}
		if err := l.trig.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close pin %d: %w", pin, err))
		}
		if l.echo != nil && l.echo != l.trig {
			if err := l.echo.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close echo for pin %d: %w", pin, err))
			}
		}
	}
	if p.chip != nil {
		if err := p.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}

// RealIndicator drives the yellow and green lamps.
type RealIndicator struct {
	chip   *gpiocdev.Chip
	yellow *gpiocdev.Line
	green  *gpiocdev.Line
}

// NewRealIndicator requests both lamp lines as outputs, initially low.
func NewRealIndicator(chipName string, yellowPin, greenPin int) (*RealIndicator, error) {
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	yellow, err := chip.RequestLine(yellowPin, gpiocdev.AsOutput(0))
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("request yellow pin %d: %w", yellowPin, err)
	}

	green, err := chip.RequestLine(greenPin, gpiocdev.AsOutput(0))
	if err != nil {
		yellow.Close()
		chip.Close()
		return nil, fmt.Errorf("request green pin %d: %w", greenPin, err)
	}

	return &RealIndicator{chip: chip, yellow: yellow, green: green}, nil
}

// Write sets both lamps.
func (r *RealIndicator) Write(yellow, green bool) error {
	if err := r.yellow.SetValue(level(yellow)); err != nil {
		return fmt.Errorf("set yellow: %w", err)
	}
	if err := r.green.SetValue(level(green)); err != nil {
		return fmt.Errorf("set green: %w", err)
	}
	return nil
}

// Close switches both lamps off and releases the lines.
func (r *RealIndicator) Close() error {
	var errs []error

	for name, l := range map[string]*gpiocdev.Line{"yellow": r.yellow, "green": r.green} {
		if l == nil {
			continue
		}
		if err := l.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure %s: %w", name, err))
		}
		if err := l.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", name, err))
		}
	}
	if r.chip != nil {
		if err := r.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}

func level(high bool) int {
	if high {
		return 1
	}
	return 0
}
