// Package logic contains the per-space state machine of a parking group controller.
// This package has NO hardware or network dependencies. Sensors, the link to the
// central unit and the indicator lamps are reached through small interfaces, and
// time is always injectable via Clock.
package logic

import (
	"context"
	"errors"
	"time"
)

// ErrSpaceOutOfRange is returned when a space index is not in [0, N).
var ErrSpaceOutOfRange = errors.New("space index out of range")

// Space is a point-in-time view of one parking space.
type Space struct {
	Index      int
	Occupied   bool
	Reserved   bool
	ReservedAt time.Time
}

// Available reports whether the space is free.
func (s Space) Available() bool {
	return !s.Occupied
}

// DisplayMode is the aggregate status shown on the indicator lamps.
type DisplayMode string

const (
	ModeReservedPresent  DisplayMode = "RESERVED_PRESENT"
	ModeAvailablePresent DisplayMode = "AVAILABLE_PRESENT"
	ModeNone             DisplayMode = "NONE"
)

// Lines returns the (yellow, green) output levels for the mode.
func (m DisplayMode) Lines() (yellow, green bool) {
	switch m {
	case ModeReservedPresent:
		return true, false
	case ModeAvailablePresent:
		return false, true
	default:
		return false, false
	}
}

// UpdateReason says why an update was emitted.
type UpdateReason string

const (
	ReasonOccupancy UpdateReason = "occupancy"
	ReasonExpiry    UpdateReason = "expiry"
)

// Update is an outbound status fact for the central unit.
type Update struct {
	Timestamp time.Time
	Space     int
	Available bool
	Reason    UpdateReason
}

// Delivery is the resolution of one Notify call.
type Delivery struct {
	Update    Update
	Attempts  int
	Delivered bool
	Err       error
}

// Command is one inbound reservation request.
type Command struct {
	Space   int
	At      time.Time
	Applied bool // false when Space was out of range
}

// Counts tracks state-machine activity since startup.
type Counts struct {
	Occupied             int
	Vacated              int
	ReservationsApplied  int
	ReservationsRejected int
	Fulfilled            int
	Stale                int
	Expired              int
	Ignored              int
	Attempts             int
	Delivered            int
	Abandoned            int
}

// HeartbeatData contains information for a heartbeat event.
type HeartbeatData struct {
	Timestamp time.Time
	Uptime    time.Duration
	Counts    Counts
}

// Report summarises one control cycle.
type Report struct {
	Timestamp  time.Time
	Commands   []Command
	Deliveries []Delivery
	Mode       DisplayMode
}

// Prober measures distance in centimetres at a sensor pin.
type Prober interface {
	Measure(pin int) (int, error)
}

// IndicatorWriter drives the yellow and green lamps.
type IndicatorWriter interface {
	Write(yellow, green bool) error
}

// Reserver accepts reservation requests.
type Reserver interface {
	Reserve(space int, at time.Time) error
}

// Channel carries updates to the central unit and reservation commands back.
type Channel interface {
	// Notify blocks until the update is acknowledged or given up.
	Notify(ctx context.Context, u Update) Delivery

	// DrainIncoming applies every pending inbound command and returns them.
	DrainIncoming(r Reserver) []Command

	// Ignored returns the number of inbound payloads dropped as unknown.
	Ignored() int
}
