// Package status provides a thread-safe status tracker for the group controller.
// The control loop writes to it; the HTTP server and system events read from it.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/group-controller/internal/logic"
)

// Config contains daemon configuration for display.
type Config struct {
	NodeID           string
	Transport        string
	Broker           string
	HTTPAddr         string
	Pins             []int
	DistanceLimitCM  int
	PollMs           int64
	HeartbeatMs      int64
	MinDetectionMs   int64
	MaxReservationMs int64
	MaxAttempts      int // 0 = unbounded
}

// Pending is an update still waiting for acknowledgement.
type Pending struct {
	Space     int
	Available bool
	Attempts  int
	Since     time.Time
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type and safe to use after the lock is released.
type Snapshot struct {
	Spaces        []logic.Space
	Mode          logic.DisplayMode
	Counts        logic.Counts
	Pending       *Pending
	LastCycle     time.Time
	StartTime     time.Time
	Now           time.Time
	LinkConnected bool
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Available returns the number of free spaces.
func (s Snapshot) Available() int {
	n := 0
	for _, sp := range s.Spaces {
		if sp.Available() {
			n++
		}
	}
	return n
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Mode:      logic.ModeNone,
			Config:    cfg,
		},
	}
}

// Update records the outcome of a control cycle.
func (t *Tracker) Update(spaces []logic.Space, mode logic.DisplayMode, counts logic.Counts, at time.Time) {
	cp := append([]logic.Space(nil), spaces...)
	t.mu.Lock()
	t.snap.Spaces = cp
	t.snap.Mode = mode
	t.snap.Counts = counts
	t.snap.LastCycle = at
	t.mu.Unlock()
}

// SetLinkConnected sets the transport connection status.
func (t *Tracker) SetLinkConnected(connected bool) {
	t.mu.Lock()
	t.snap.LinkConnected = connected
	t.mu.Unlock()
}

// SetPending records an in-flight update attempt.
func (t *Tracker) SetPending(u logic.Update, attempts int, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p := t.snap.Pending
	if p == nil || p.Space != u.Space || p.Available != u.Available || attempts == 1 {
		p = &Pending{Space: u.Space, Available: u.Available, Since: now}
	}
	p.Attempts = attempts
	t.snap.Pending = p
}

// ClearPending removes the in-flight update.
func (t *Tracker) ClearPending() {
	t.mu.Lock()
	t.snap.Pending = nil
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	s.Spaces = append([]logic.Space(nil), t.snap.Spaces...)
	if t.snap.Pending != nil {
		p := *t.snap.Pending
		s.Pending = &p
	}
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
