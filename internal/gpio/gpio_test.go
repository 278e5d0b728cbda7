package gpio

import (
	"errors"
	"testing"
	"time"
)

func TestPulseToCentimetres(t *testing.T) {
	tests := []struct {
		pulse time.Duration
		want  int
	}{
		{0, 0},
		{58 * time.Microsecond, 1},
		{580 * time.Microsecond, 10},
		{1160 * time.Microsecond, 20},
		{1217 * time.Microsecond, 20},
		{1218 * time.Microsecond, 21},
		{11600 * time.Microsecond, 200},
		{23200 * time.Microsecond, 400},
	}
	for _, tt := range tests {
		if got := PulseToCentimetres(tt.pulse); got != tt.want {
			t.Errorf("PulseToCentimetres(%v) = %d, want %d", tt.pulse, got, tt.want)
		}
	}
}

func TestSensorShared(t *testing.T) {
	if !(Sensor{Pin: 3, EchoPin: 3}).Shared() {
		t.Error("3-pin sensor should share its line")
	}
	if (Sensor{Pin: 3, EchoPin: 17}).Shared() {
		t.Error("4-pin sensor should not share its line")
	}
}

// line replays levels and then holds the last one. Every call to now advances
// the time by step.
type line struct {
	levels []int
	err    error
	at     time.Time
	step   time.Duration
}

func (l *line) read() (int, error) {
	if l.err != nil {
		return 0, l.err
	}
	v := l.levels[0]
	if len(l.levels) > 1 {
		l.levels = l.levels[1:]
	}
	return v, nil
}

func (l *line) now() time.Time {
	t := l.at
	l.at = l.at.Add(l.step)
	return t
}

func TestMeasurePulse(t *testing.T) {
	tests := []struct {
		name   string
		levels []int
		want   time.Duration
	}{
		{"clean pulse", []int{0, 0, 1, 1, 1, 0}, 300 * time.Microsecond},
		// A pulse already in progress is skipped, then the next one is timed.
		{"previous pulse still high", []int{1, 0, 0, 1, 1, 1, 0}, 300 * time.Microsecond},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := &line{levels: tt.levels, step: 100 * time.Microsecond}
			got, err := measurePulse(l.read, l.now, 10*time.Millisecond)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("pulse: got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMeasurePulseErrors(t *testing.T) {
	readErr := errors.New("line closed")
	tests := []struct {
		name string
		line *line
		want error
	}{
		{"stuck high", &line{levels: []int{1}}, ErrNoEcho},
		{"never rises", &line{levels: []int{0}}, ErrNoEcho},
		{"never falls", &line{levels: []int{0, 1}}, ErrEchoTimeout},
		{"read error", &line{levels: []int{0}, err: readErr}, readErr},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.line.step = 100 * time.Microsecond
			_, err := measurePulse(tt.line.read, tt.line.now, time.Millisecond)
			if !errors.Is(err, tt.want) {
				t.Errorf("got %v, want %v", err, tt.want)
			}
		})
	}
}
