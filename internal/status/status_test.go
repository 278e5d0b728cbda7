package status

import (
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/sweeney/group-controller/internal/logic"
)

var start = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

func testConfig() Config {
	return Config{
		NodeID:           "gc-01",
		Transport:        "mqtt",
		Broker:           "tcp://192.168.1.200:1883",
		HTTPAddr:         ":80",
		Pins:             []int{3, 4, 5},
		DistanceLimitCM:  20,
		PollMs:           100,
		HeartbeatMs:      900000,
		MinDetectionMs:   4000,
		MaxReservationMs: 60000,
	}
}

func threeSpaces() []logic.Space {
	return []logic.Space{
		{Index: 0, Reserved: true, ReservedAt: start},
		{Index: 1, Occupied: true},
		{Index: 2},
	}
}

func TestNewTracker(t *testing.T) {
	tr := NewTracker(start, testConfig())
	snap := tr.Snapshot()

	if !snap.StartTime.Equal(start) {
		t.Errorf("StartTime: got %v, want %v", snap.StartTime, start)
	}
	if snap.Mode != logic.ModeNone {
		t.Errorf("Mode: got %q, want NONE", snap.Mode)
	}
	if len(snap.Spaces) != 0 {
		t.Errorf("expected no spaces before first update, got %d", len(snap.Spaces))
	}
	if snap.Pending != nil {
		t.Error("expected no pending update")
	}
}

func TestUpdateAndSnapshot(t *testing.T) {
	tr := NewTracker(start, testConfig())
	tr.Update(threeSpaces(), logic.ModeReservedPresent, logic.Counts{Occupied: 1}, start.Add(time.Second))
	tr.SetLinkConnected(true)

	snap := tr.Snapshot()
	if len(snap.Spaces) != 3 {
		t.Fatalf("expected 3 spaces, got %d", len(snap.Spaces))
	}
	if snap.Mode != logic.ModeReservedPresent {
		t.Errorf("Mode: got %q", snap.Mode)
	}
	if snap.Counts.Occupied != 1 {
		t.Errorf("Counts.Occupied: got %d", snap.Counts.Occupied)
	}
	if !snap.LinkConnected {
		t.Error("expected LinkConnected=true")
	}
	if snap.Available() != 2 {
		t.Errorf("Available: got %d, want 2", snap.Available())
	}
}

func TestSnapshotIsCopy(t *testing.T) {
	tr := NewTracker(start, testConfig())
	spaces := threeSpaces()
	tr.Update(spaces, logic.ModeReservedPresent, logic.Counts{}, start)

	spaces[1].Occupied = false
	snap := tr.Snapshot()
	if !snap.Spaces[1].Occupied {
		t.Error("tracker must not alias the caller's slice")
	}

	snap.Spaces[2].Occupied = true
	if tr.Snapshot().Spaces[2].Occupied {
		t.Error("snapshot must not alias tracker state")
	}
}

func TestPendingLifecycle(t *testing.T) {
	tr := NewTracker(start, testConfig())
	u := logic.Update{Space: 1, Available: false}

	tr.SetPending(u, 1, start)
	tr.SetPending(u, 2, start.Add(3*time.Second))
	snap := tr.Snapshot()
	if snap.Pending == nil {
		t.Fatal("expected pending update")
	}
	if snap.Pending.Attempts != 2 {
		t.Errorf("Attempts: got %d, want 2", snap.Pending.Attempts)
	}
	if !snap.Pending.Since.Equal(start) {
		t.Errorf("Since should be the first attempt, got %v", snap.Pending.Since)
	}

	// A different update restarts the record.
	tr.SetPending(logic.Update{Space: 2, Available: true}, 1, start.Add(10*time.Second))
	snap = tr.Snapshot()
	if snap.Pending.Space != 2 || snap.Pending.Attempts != 1 {
		t.Errorf("unexpected pending: %+v", snap.Pending)
	}

	tr.ClearPending()
	if tr.Snapshot().Pending != nil {
		t.Error("expected pending cleared")
	}
}

func TestSnapshotUptime(t *testing.T) {
	snap := Snapshot{StartTime: start, Now: start.Add(90 * time.Minute)}
	if snap.Uptime() != 90*time.Minute {
		t.Errorf("Uptime: got %v", snap.Uptime())
	}
}

func TestFormatJSON(t *testing.T) {
	snap := Snapshot{
		Spaces:        threeSpaces(),
		Mode:          logic.ModeReservedPresent,
		Counts:        logic.Counts{Occupied: 4, Expired: 1, Delivered: 5},
		StartTime:     start,
		Now:           start.Add(2 * time.Hour),
		LinkConnected: true,
		Config:        testConfig(),
	}

	var sj StatusJSON
	if err := json.Unmarshal(FormatJSON(snap), &sj); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	s := sj.Status
	if s.Node != "gc-01" || s.Mode != "RESERVED_PRESENT" {
		t.Errorf("node/mode: got %q %q", s.Node, s.Mode)
	}
	if s.Available != 2 {
		t.Errorf("Available: got %d", s.Available)
	}
	if len(s.Spaces) != 3 {
		t.Fatalf("expected 3 spaces, got %d", len(s.Spaces))
	}
	if s.Spaces[0].ReservedAt != "2026-01-01T12:00:00Z" {
		t.Errorf("ReservedAt: got %q", s.Spaces[0].ReservedAt)
	}
	if s.Spaces[2].ReservedAt != "" {
		t.Errorf("unreserved space must omit reserved_at, got %q", s.Spaces[2].ReservedAt)
	}
	if s.UptimeSeconds != 7200 {
		t.Errorf("UptimeSeconds: got %d", s.UptimeSeconds)
	}
	if !s.Link.Connected || s.Link.Transport != "mqtt" {
		t.Errorf("Link: got %+v", s.Link)
	}
	if s.Counts.Occupied != 4 || s.Counts.Expired != 1 || s.Counts.Delivered != 5 {
		t.Errorf("Counts: got %+v", s.Counts)
	}
	if s.Config.MaxReservationMs != 60000 || len(s.Config.Pins) != 3 {
		t.Errorf("Config: got %+v", s.Config)
	}
	if s.Event != "" || s.Pending != nil {
		t.Errorf("web JSON should omit event and pending: %+v", s)
	}
}

func TestFormatJSONUnknownMode(t *testing.T) {
	var sj StatusJSON
	if err := json.Unmarshal(FormatJSON(Snapshot{}), &sj); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if sj.Status.Mode != "UNKNOWN" {
		t.Errorf("Mode: got %q, want UNKNOWN", sj.Status.Mode)
	}
}

func TestFormatStatusEvent(t *testing.T) {
	snap := Snapshot{
		Spaces:    threeSpaces(),
		Mode:      logic.ModeReservedPresent,
		Pending:   &Pending{Space: 1, Available: true, Attempts: 12, Since: start},
		StartTime: start,
		Now:       start,
		Config:    testConfig(),
	}

	var sj StatusJSON
	if err := json.Unmarshal(FormatStatusEvent(snap, "SHUTDOWN", "SIGTERM"), &sj); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if sj.Status.Event != "SHUTDOWN" || sj.Status.Reason != "SIGTERM" {
		t.Errorf("event/reason: got %q %q", sj.Status.Event, sj.Status.Reason)
	}
	if sj.Status.Pending == nil || sj.Status.Pending.Attempts != 12 {
		t.Errorf("Pending: got %+v", sj.Status.Pending)
	}
}

func TestFormatStatusEventOmitsReasonWhenEmpty(t *testing.T) {
	data := FormatStatusEvent(Snapshot{StartTime: start, Now: start}, "STARTUP", "")
	var raw map[string]map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if _, ok := raw["status"]["reason"]; ok {
		t.Error("reason should be omitted")
	}
}

func TestConcurrentAccess(t *testing.T) {
	tr := NewTracker(start, testConfig())
	var wg sync.WaitGroup

	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				tr.Update(threeSpaces(), logic.ModeAvailablePresent, logic.Counts{Occupied: j}, start)
				tr.SetPending(logic.Update{Space: i % 3}, j+1, start)
				tr.SetLinkConnected(j%2 == 0)
			}
		}(i)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				snap := tr.Snapshot()
				_ = FormatJSON(snap)
			}
		}()
	}
	wg.Wait()
}
