package logic

import (
	"context"
	"fmt"
	"time"
)

// NodeConfig holds the tunables of a group controller.
type NodeConfig struct {
	Pins           []int
	DistanceLimit  int
	MaxReservation time.Duration
	MinDetection   time.Duration
}

// Node owns the whole state of one group controller and runs its control cycle.
type Node struct {
	clock         Clock
	store         *Reservations
	machine       *Machine
	channel       Channel
	indicator     IndicatorWriter
	startTime     time.Time
	lastHeartbeat time.Time
	applied       int
	rejected      int
	mode          DisplayMode
}

// NewNode wires a node from its collaborators. indicator may be nil.
func NewNode(cfg NodeConfig, probe Prober, channel Channel, indicator IndicatorWriter, clock Clock) *Node {
	store := NewReservations(len(cfg.Pins), cfg.MaxReservation)
	detector := NewDetector(probe, cfg.Pins, cfg.DistanceLimit, cfg.MinDetection, clock)
	now := clock.Now()
	n := &Node{
		clock:         clock,
		store:         store,
		machine:       NewMachine(detector, store, channel, clock),
		channel:       channel,
		indicator:     indicator,
		startTime:     now,
		lastHeartbeat: now,
	}
	n.mode = Arbitrate(n.Spaces())
	return n
}

// Cycle runs one pass of the control loop: drain inbound commands, sample
// and reconcile every space, expire reservations, then drive the indicator.
// Faults are collected in the returned error; the cycle itself always completes
// unless ctx is cancelled.
func (n *Node) Cycle(ctx context.Context) (Report, error) {
	rep := Report{Timestamp: n.clock.Now()}

	rep.Commands = n.channel.DrainIncoming(n.store)
	for _, c := range rep.Commands {
		if c.Applied {
			n.applied++
		} else {
			n.rejected++
		}
	}

	deliveries, faults := n.machine.Step(ctx)
	rep.Deliveries = deliveries

	rep.Mode = Arbitrate(n.Spaces())
	n.mode = rep.Mode
	if n.indicator != nil {
		if err := n.indicator.Write(rep.Mode.Lines()); err != nil {
			faults = append(faults, fmt.Errorf("write indicator: %w", err))
		}
	}

	if len(faults) > 0 {
		return rep, &CycleError{Faults: faults}
	}
	return rep, nil
}

// Spaces returns a snapshot of every space.
func (n *Node) Spaces() []Space {
	return n.machine.Spaces()
}

// Mode returns the last arbitrated display mode.
func (n *Node) Mode() DisplayMode {
	return n.mode
}

// Reservations exposes the reservation store.
func (n *Node) Reservations() *Reservations {
	return n.store
}

// Counts returns a snapshot of the activity counters.
func (n *Node) Counts() Counts {
	c := n.machine.Counts()
	c.ReservationsApplied = n.applied
	c.ReservationsRejected = n.rejected
	c.Ignored = n.channel.Ignored()
	return c
}

// StartTime returns when the node was created.
func (n *Node) StartTime() time.Time {
	return n.startTime
}

// CheckHeartbeat returns heartbeat data if interval has elapsed since the last one.
// Returns nil if no heartbeat is due or interval is zero.
func (n *Node) CheckHeartbeat(now time.Time, interval time.Duration) *HeartbeatData {
	if interval <= 0 {
		return nil
	}
	if now.Sub(n.lastHeartbeat) < interval {
		return nil
	}
	n.lastHeartbeat = now
	return &HeartbeatData{
		Timestamp: now,
		Uptime:    now.Sub(n.startTime),
		Counts:    n.Counts(),
	}
}

// CycleError collects the non-fatal faults of one cycle.
type CycleError struct {
	Faults []error
}

func (e *CycleError) Error() string {
	if len(e.Faults) == 1 {
		return e.Faults[0].Error()
	}
	return fmt.Sprintf("%d faults, first: %v", len(e.Faults), e.Faults[0])
}

// Unwrap exposes the individual faults to errors.Is and errors.As.
func (e *CycleError) Unwrap() []error {
	return e.Faults
}
