package logic

import (
	"context"
	"errors"
	"testing"
	"time"
)

type testNode struct {
	node  *Node
	probe *scriptProbe
	ch    *recordingChannel
	lamp  *lampRecorder
	clk   *FakeClock
}

func newTestNode(t *testing.T) *testNode {
	t.Helper()
	clk := NewFakeClock(t0)
	p := newScriptProbe()
	ch := &recordingChannel{clock: clk}
	lamp := &lampRecorder{}
	n := NewNode(NodeConfig{
		Pins:           []int{3, 4, 5},
		DistanceLimit:  20,
		MaxReservation: 60 * time.Second,
		MinDetection:   4 * time.Second,
	}, p, ch, lamp, clk)
	return &testNode{node: n, probe: p, ch: ch, lamp: lamp, clk: clk}
}

func (tn *testNode) cycle(t *testing.T) Report {
	t.Helper()
	rep, err := tn.node.Cycle(context.Background())
	if err != nil {
		t.Fatalf("Cycle: %v", err)
	}
	return rep
}

func TestNewNodeStartsAvailable(t *testing.T) {
	tn := newTestNode(t)
	for _, s := range tn.node.Spaces() {
		if s.Occupied || s.Reserved {
			t.Errorf("space %d: expected available and unreserved, got %+v", s.Index, s)
		}
	}
	if tn.node.Mode() != ModeAvailablePresent {
		t.Errorf("initial mode: got %s", tn.node.Mode())
	}
}

func TestScenarioOccupyReserveExpire(t *testing.T) {
	tn := newTestNode(t)
	tn.probe.set(3, cm(150))
	tn.probe.set(4, cm(10))
	tn.probe.set(5, cm(150))

	// Space 1 confirmed occupied.
	rep := tn.cycle(t)
	if len(tn.ch.updates) != 1 {
		t.Fatalf("expected 1 update, got %d: %+v", len(tn.ch.updates), tn.ch.updates)
	}
	u := tn.ch.updates[0]
	if u.Space != 1 || u.Available || u.Reason != ReasonOccupancy {
		t.Errorf("expected (1,O) occupancy update, got %+v", u)
	}
	if rep.Mode != ModeAvailablePresent {
		t.Errorf("mode after occupy: got %s", rep.Mode)
	}

	// Central unit reserves space 0.
	tn.ch.inbound = []int{0}
	rep = tn.cycle(t)
	if len(rep.Commands) != 1 || !rep.Commands[0].Applied {
		t.Fatalf("expected applied command, got %+v", rep.Commands)
	}
	if !tn.node.Spaces()[0].Reserved {
		t.Fatal("space 0 should be reserved")
	}
	if rep.Mode != ModeReservedPresent {
		t.Errorf("mode before expiry: got %s, want RESERVED_PRESENT", rep.Mode)
	}
	if tn.lamp.last() != [2]bool{true, false} {
		t.Errorf("lamps before expiry: got %v, want yellow only", tn.lamp.last())
	}

	// 61 seconds later the reservation expires.
	tn.clk.Advance(61 * time.Second)
	rep = tn.cycle(t)
	if len(tn.ch.updates) != 2 {
		t.Fatalf("expected 2 updates total, got %d", len(tn.ch.updates))
	}
	u = tn.ch.updates[1]
	if u.Space != 0 || !u.Available || u.Reason != ReasonExpiry {
		t.Errorf("expected (0,A) expiry update, got %+v", u)
	}
	if rep.Mode != ModeAvailablePresent {
		t.Errorf("mode after expiry: got %s, want AVAILABLE_PRESENT", rep.Mode)
	}
	if tn.lamp.last() != [2]bool{false, true} {
		t.Errorf("lamps after expiry: got %v, want green only", tn.lamp.last())
	}

	spaces := tn.node.Spaces()
	if spaces[0].Reserved || spaces[0].Occupied || !spaces[1].Occupied || spaces[2].Occupied {
		t.Errorf("unexpected final spaces: %+v", spaces)
	}

	// Idempotent on the next cycle.
	tn.cycle(t)
	if len(tn.ch.updates) != 2 {
		t.Errorf("expected no further updates, got %+v", tn.ch.updates[2:])
	}

	c := tn.node.Counts()
	if c.Occupied != 1 || c.Expired != 1 || c.ReservationsApplied != 1 || c.Delivered != 2 {
		t.Errorf("unexpected counts: %+v", c)
	}
}

func TestReservationConsumedAndCleared(t *testing.T) {
	tn := newTestNode(t)
	tn.probe.set(3, cm(150), cm(10), cm(10), cm(150))

	tn.ch.inbound = []int{0}
	tn.cycle(t)
	if !tn.node.Spaces()[0].Reserved {
		t.Fatal("space 0 should be reserved")
	}

	// Car arrives: reservation stays.
	tn.cycle(t)
	s := tn.node.Spaces()[0]
	if !s.Occupied || !s.Reserved {
		t.Fatalf("expected occupied and still reserved, got %+v", s)
	}

	// Car leaves: reservation is stale and cleared.
	tn.cycle(t)
	s = tn.node.Spaces()[0]
	if s.Occupied || s.Reserved {
		t.Fatalf("expected available and unreserved, got %+v", s)
	}
	if !s.ReservedAt.IsZero() {
		t.Errorf("expected zero ReservedAt, got %v", s.ReservedAt)
	}

	if len(tn.ch.updates) != 2 {
		t.Fatalf("expected 2 updates, got %+v", tn.ch.updates)
	}
	if tn.ch.updates[0].Available || !tn.ch.updates[1].Available {
		t.Errorf("expected (0,O) then (0,A), got %+v", tn.ch.updates)
	}

	c := tn.node.Counts()
	if c.Fulfilled != 1 || c.Stale != 1 || c.Vacated != 1 {
		t.Errorf("unexpected counts: %+v", c)
	}
}

func TestRejectedCommand(t *testing.T) {
	tn := newTestNode(t)
	tn.ch.inbound = []int{7}
	rep := tn.cycle(t)

	if len(rep.Commands) != 1 || rep.Commands[0].Applied {
		t.Errorf("expected rejected command, got %+v", rep.Commands)
	}
	if got := tn.node.Counts().ReservationsRejected; got != 1 {
		t.Errorf("ReservationsRejected: got %d, want 1", got)
	}
	for _, s := range tn.node.Spaces() {
		if s.Reserved {
			t.Errorf("space %d unexpectedly reserved", s.Index)
		}
	}
}

func TestSensorFaultDoesNotStopCycle(t *testing.T) {
	tn := newTestNode(t)
	tn.probe.set(3, reading{err: errNoEcho})
	tn.probe.set(4, cm(5))

	rep, err := tn.node.Cycle(context.Background())
	if !errors.Is(err, errNoEcho) {
		t.Fatalf("expected errNoEcho fault, got %v", err)
	}
	var ce *CycleError
	if !errors.As(err, &ce) || len(ce.Faults) != 1 {
		t.Errorf("expected single fault, got %v", err)
	}
	if len(rep.Deliveries) != 1 || rep.Deliveries[0].Update.Space != 1 {
		t.Errorf("space 1 should still be reported, got %+v", rep.Deliveries)
	}
	if tn.node.Spaces()[0].Occupied {
		t.Error("faulty space must keep its stored state")
	}
}

func TestIndicatorFaultReported(t *testing.T) {
	tn := newTestNode(t)
	tn.lamp.err = errors.New("line busy")

	rep, err := tn.node.Cycle(context.Background())
	if err == nil {
		t.Fatal("expected indicator fault")
	}
	if rep.Mode != ModeAvailablePresent {
		t.Errorf("mode still computed: got %s", rep.Mode)
	}
}

func TestCycleCancelled(t *testing.T) {
	tn := newTestNode(t)
	tn.probe.set(3, cm(10))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rep, err := tn.node.Cycle(ctx)
	if err != nil {
		t.Errorf("cancellation is not a fault, got %v", err)
	}
	if len(rep.Deliveries) != 0 {
		t.Errorf("expected no deliveries, got %+v", rep.Deliveries)
	}
}

func TestCheckHeartbeat(t *testing.T) {
	tn := newTestNode(t)

	if hb := tn.node.CheckHeartbeat(t0.Add(time.Minute), 0); hb != nil {
		t.Error("zero interval disables heartbeat")
	}
	if hb := tn.node.CheckHeartbeat(t0.Add(time.Minute), 15*time.Minute); hb != nil {
		t.Error("heartbeat before interval")
	}
	hb := tn.node.CheckHeartbeat(t0.Add(15*time.Minute), 15*time.Minute)
	if hb == nil {
		t.Fatal("expected heartbeat")
	}
	if hb.Uptime != 15*time.Minute {
		t.Errorf("uptime: got %v", hb.Uptime)
	}
	if again := tn.node.CheckHeartbeat(t0.Add(16*time.Minute), 15*time.Minute); again != nil {
		t.Error("heartbeat interval not reset")
	}
}
