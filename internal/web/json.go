package web

import (
	"time"

	"github.com/sweeney/group-controller/internal/logic"
	"github.com/sweeney/group-controller/internal/status"
)

// LiveMessage is pushed to websocket clients after a cycle that did something.
type LiveMessage struct {
	Type      string             `json:"type"`
	Timestamp string             `json:"timestamp"`
	Mode      string             `json:"mode"`
	Available int                `json:"available"`
	Spaces    []status.SpaceJSON `json:"spaces"`
	Updates   []UpdateJSON       `json:"updates,omitempty"`
	Commands  []CommandJSON      `json:"commands,omitempty"`
}

// UpdateJSON is one resolved outbound update.
type UpdateJSON struct {
	Space     int    `json:"space"`
	Available bool   `json:"available"`
	Reason    string `json:"reason"`
	Attempts  int    `json:"attempts"`
	Delivered bool   `json:"delivered"`
}

// CommandJSON is one inbound reservation command.
type CommandJSON struct {
	Space   int  `json:"space"`
	Applied bool `json:"applied"`
}

// newLiveMessage returns nil for a report with no commands and no deliveries.
func newLiveMessage(r logic.Report, snap status.Snapshot) *LiveMessage {
	if len(r.Deliveries) == 0 && len(r.Commands) == 0 {
		return nil
	}
	m := &LiveMessage{
		Type:      "cycle",
		Timestamp: r.Timestamp.UTC().Format(time.RFC3339),
		Mode:      string(r.Mode),
		Available: snap.Available(),
		Spaces:    status.SpacesJSON(snap.Spaces),
	}
	for _, d := range r.Deliveries {
		m.Updates = append(m.Updates, UpdateJSON{
			Space:     d.Update.Space,
			Available: d.Update.Available,
			Reason:    string(d.Update.Reason),
			Attempts:  d.Attempts,
			Delivered: d.Delivered,
		})
	}
	for _, c := range r.Commands {
		m.Commands = append(m.Commands, CommandJSON{Space: c.Space, Applied: c.Applied})
	}
	return m
}
