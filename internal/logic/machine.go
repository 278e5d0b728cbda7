package logic

import (
	"context"
	"errors"
)

// Machine reconciles sensed occupancy with reservations and emits updates.
type Machine struct {
	detector *Detector
	store    *Reservations
	channel  Channel
	clock    Clock
	occupied []bool
	counts   Counts
}

// NewMachine creates a state machine. Every space starts available and unreserved.
func NewMachine(detector *Detector, store *Reservations, channel Channel, clock Clock) *Machine {
	return &Machine{
		detector: detector,
		store:    store,
		channel:  channel,
		clock:    clock,
		occupied: make([]bool, detector.Spaces()),
	}
}

// Step samples every space in index order, then expires overdue reservations.
// Sensor faults leave the space unchanged and are returned alongside the deliveries.
func (m *Machine) Step(ctx context.Context) ([]Delivery, []error) {
	var deliveries []Delivery
	var faults []error

	for i := range m.occupied {
		if ctx.Err() != nil {
			return deliveries, faults
		}
		occupied, err := m.detector.Sample(ctx, i, m.occupied[i])
		if err != nil {
			if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
				faults = append(faults, err)
			}
			continue
		}
		if occupied == m.occupied[i] {
			continue
		}
		m.occupied[i] = occupied

		reserved, _ := m.store.Active(i)
		if occupied {
			m.counts.Occupied++
			if reserved {
				m.counts.Fulfilled++
			}
		} else {
			m.counts.Vacated++
			if reserved {
				// A vacated space cannot keep a reservation.
				if err := m.store.Clear(i); err != nil {
					faults = append(faults, err)
				} else {
					m.counts.Stale++
				}
			}
		}

		deliveries = append(deliveries, m.emit(ctx, Update{
			Timestamp: m.clock.Now(),
			Space:     i,
			Available: !occupied,
			Reason:    ReasonOccupancy,
		}))
	}

	for _, i := range m.store.ExpireOverdue(m.clock.Now()) {
		m.counts.Expired++
		deliveries = append(deliveries, m.emit(ctx, Update{
			Timestamp: m.clock.Now(),
			Space:     i,
			Available: true,
			Reason:    ReasonExpiry,
		}))
	}

	return deliveries, faults
}

func (m *Machine) emit(ctx context.Context, u Update) Delivery {
	d := m.channel.Notify(ctx, u)
	m.counts.Attempts += d.Attempts
	if d.Delivered {
		m.counts.Delivered++
	} else if d.Err != nil && ctx.Err() == nil {
		m.counts.Abandoned++
	}
	return d
}

// Occupied reports the stored occupancy of a space.
func (m *Machine) Occupied(space int) bool {
	if space < 0 || space >= len(m.occupied) {
		return false
	}
	return m.occupied[space]
}

// Spaces returns a snapshot of every space.
func (m *Machine) Spaces() []Space {
	spaces := make([]Space, len(m.occupied))
	for i := range m.occupied {
		reserved, at := m.store.Active(i)
		spaces[i] = Space{
			Index:      i,
			Occupied:   m.occupied[i],
			Reserved:   reserved,
			ReservedAt: at,
		}
	}
	return spaces
}

// Counts returns the activity counters.
func (m *Machine) Counts() Counts {
	return m.counts
}
