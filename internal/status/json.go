package status

import (
	"time"

	"github.com/goccy/go-json"

	"github.com/sweeney/group-controller/internal/logic"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string       `json:"event,omitempty"`
	Reason        string       `json:"reason,omitempty"`
	Node          string       `json:"node"`
	Mode          string       `json:"mode"`
	Available     int          `json:"available"`
	Spaces        []SpaceJSON  `json:"spaces"`
	Pending       *PendingJSON `json:"pending,omitempty"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	StartTime     string       `json:"start_time"`
	Timestamp     string       `json:"timestamp"`
	Link          LinkStatus   `json:"link"`
	Counts        CountsJSON   `json:"counts"`
	Config        ConfigJSON   `json:"config"`
}

// SpaceJSON is the JSON representation of one space.
type SpaceJSON struct {
	Index      int    `json:"index"`
	Occupied   bool   `json:"occupied"`
	Reserved   bool   `json:"reserved"`
	ReservedAt string `json:"reserved_at,omitempty"`
}

// PendingJSON is the JSON representation of an in-flight update.
type PendingJSON struct {
	Space     int    `json:"space"`
	Available bool   `json:"available"`
	Attempts  int    `json:"attempts"`
	Since     string `json:"since"`
}

// LinkStatus reports the link to the central unit.
type LinkStatus struct {
	Transport string `json:"transport"`
	Connected bool   `json:"connected"`
	Broker    string `json:"broker,omitempty"`
}

// CountsJSON is the JSON representation of activity counters.
type CountsJSON struct {
	Occupied             int `json:"occupied"`
	Vacated              int `json:"vacated"`
	ReservationsApplied  int `json:"reservations_applied"`
	ReservationsRejected int `json:"reservations_rejected"`
	Fulfilled            int `json:"fulfilled"`
	Stale                int `json:"stale"`
	Expired              int `json:"expired"`
	Ignored              int `json:"ignored"`
	Attempts             int `json:"attempts"`
	Delivered            int `json:"delivered"`
	Abandoned            int `json:"abandoned"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	Pins             []int  `json:"pins"`
	DistanceLimitCM  int    `json:"distance_limit_cm"`
	PollMs           int64  `json:"poll_ms"`
	HeartbeatMs      int64  `json:"heartbeat_ms"`
	MinDetectionMs   int64  `json:"min_detection_ms"`
	MaxReservationMs int64  `json:"max_reservation_ms"`
	MaxAttempts      int    `json:"max_attempts"`
	HTTPAddr         string `json:"http_addr"`
}

// SpacesJSON converts spaces to their JSON form. ReservedAt is only set for
// reserved spaces.
func SpacesJSON(spaces []logic.Space) []SpaceJSON {
	out := make([]SpaceJSON, len(spaces))
	for i, s := range spaces {
		out[i] = SpaceJSON{Index: s.Index, Occupied: s.Occupied, Reserved: s.Reserved}
		if s.Reserved {
			out[i].ReservedAt = s.ReservedAt.UTC().Format(time.RFC3339)
		}
	}
	return out
}

func buildInner(snap Snapshot) StatusInner {
	mode := string(snap.Mode)
	if mode == "" {
		mode = "UNKNOWN"
	}

	spaces := SpacesJSON(snap.Spaces)

	c := snap.Counts
	inner := StatusInner{
		Node:          snap.Config.NodeID,
		Mode:          mode,
		Available:     snap.Available(),
		Spaces:        spaces,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		Link: LinkStatus{
			Transport: snap.Config.Transport,
			Connected: snap.LinkConnected,
			Broker:    snap.Config.Broker,
		},
		Counts: CountsJSON{
			Occupied:             c.Occupied,
			Vacated:              c.Vacated,
			ReservationsApplied:  c.ReservationsApplied,
			ReservationsRejected: c.ReservationsRejected,
			Fulfilled:            c.Fulfilled,
			Stale:                c.Stale,
			Expired:              c.Expired,
			Ignored:              c.Ignored,
			Attempts:             c.Attempts,
			Delivered:            c.Delivered,
			Abandoned:            c.Abandoned,
		},
		Config: ConfigJSON{
			Pins:             snap.Config.Pins,
			DistanceLimitCM:  snap.Config.DistanceLimitCM,
			PollMs:           snap.Config.PollMs,
			HeartbeatMs:      snap.Config.HeartbeatMs,
			MinDetectionMs:   snap.Config.MinDetectionMs,
			MaxReservationMs: snap.Config.MaxReservationMs,
			MaxAttempts:      snap.Config.MaxAttempts,
			HTTPAddr:         snap.Config.HTTPAddr,
		},
	}
	if p := snap.Pending; p != nil {
		inner.Pending = &PendingJSON{
			Space:     p.Space,
			Available: p.Available,
			Attempts:  p.Attempts,
			Since:     p.Since.UTC().Format(time.RFC3339),
		}
	}
	return inner
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
