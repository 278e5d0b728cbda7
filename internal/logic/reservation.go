package logic

import (
	"fmt"
	"time"
)

// Reservations holds the reservation flag and timestamp of every space.
type Reservations struct {
	reserved       []bool
	reservedAt     []time.Time
	maxReservation time.Duration
}

// NewReservations creates a store for n spaces whose reservations last maxReservation.
func NewReservations(n int, maxReservation time.Duration) *Reservations {
	return &Reservations{
		reserved:       make([]bool, n),
		reservedAt:     make([]time.Time, n),
		maxReservation: maxReservation,
	}
}

// Reserve marks a space reserved at the given time. Reserving an already
// reserved space restarts its timer.
func (r *Reservations) Reserve(space int, at time.Time) error {
	if err := r.check(space); err != nil {
		return fmt.Errorf("reserve: %w", err)
	}
	r.reserved[space] = true
	r.reservedAt[space] = at
	return nil
}

// Clear removes the reservation of a space.
func (r *Reservations) Clear(space int) error {
	if err := r.check(space); err != nil {
		return fmt.Errorf("clear: %w", err)
	}
	r.reserved[space] = false
	r.reservedAt[space] = time.Time{}
	return nil
}

// ExpireOverdue clears every reservation held for maxReservation or longer
// and returns the cleared indices in ascending order.
func (r *Reservations) ExpireOverdue(now time.Time) []int {
	var expired []int
	for i, held := range r.reserved {
		if !held {
			continue
		}
		if now.Sub(r.reservedAt[i]) >= r.maxReservation {
			r.reserved[i] = false
			r.reservedAt[i] = time.Time{}
			expired = append(expired, i)
		}
	}
	return expired
}

// Active reports whether a space is reserved and since when.
func (r *Reservations) Active(space int) (bool, time.Time) {
	if r.check(space) != nil {
		return false, time.Time{}
	}
	return r.reserved[space], r.reservedAt[space]
}

// Len returns the number of spaces.
func (r *Reservations) Len() int {
	return len(r.reserved)
}

func (r *Reservations) check(space int) error {
	if space < 0 || space >= len(r.reserved) {
		return fmt.Errorf("space %d of %d: %w", space, len(r.reserved), ErrSpaceOutOfRange)
	}
	return nil
}
