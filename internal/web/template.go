package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/group-controller/internal/status"
)

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"uptime": func(d time.Duration) string {
		d = d.Truncate(time.Second)
		days := int(d.Hours()) / 24
		h := int(d.Hours()) % 24
		m := int(d.Minutes()) % 60
		s := int(d.Seconds()) % 60
		if days > 0 {
			return fmt.Sprintf("%dd %dh %dm %ds", days, h, m, s)
		}
		if h > 0 {
			return fmt.Sprintf("%dh %dm %ds", h, m, s)
		}
		if m > 0 {
			return fmt.Sprintf("%dm %ds", m, s)
		}
		return fmt.Sprintf("%ds", s)
	},
	"modeOrUnknown": func(s string) string {
		if s == "" {
			return "UNKNOWN"
		}
		return s
	},
	"clock": func(t time.Time) string {
		return t.UTC().Format("15:04:05Z")
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Group Controller {{.Config.NodeID}}</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.free { color: green; font-weight: bold; }
.taken { color: #888; }
.reserved { color: #c90; font-weight: bold; }
.connected { color: green; }
.disconnected { color: red; }
.live-dot { display: inline-block; width: 8px; height: 8px; border-radius: 50%; margin-left: 6px; vertical-align: middle; background: orange; }
.live-dot.ok { background: green; }
.live-dot.err { background: red; }
</style>
</head>
<body>
<h1>Group Controller {{.Config.NodeID}}<span id="live-dot" class="live-dot" title="connecting"></span></h1>

<h2>Spaces</h2>
<table id="spaces">
<tr><th>Space</th><td>Status</td></tr>
{{range .Spaces}}<tr><th>{{.Index}}</th><td id="space-{{.Index}}" class="{{if .Occupied}}taken{{else if .Reserved}}reserved{{else}}free{{end}}">{{if .Occupied}}OCCUPIED{{else}}AVAILABLE{{end}}{{if .Reserved}} (reserved {{clock .ReservedAt}}){{end}}</td></tr>
{{end}}</table>
<table>
<tr><th>Indicator</th><td id="mode">{{modeOrUnknown (printf "%s" .Mode)}}</td></tr>
<tr><th>Available</th><td id="available">{{.Available}} / {{len .Spaces}}</td></tr>
</table>

<h2>Link</h2>
<table>
<tr><th>Transport</th><td>{{.Config.Transport}}</td></tr>
<tr><th>Connected</th><td class="{{if .LinkConnected}}connected{{else}}disconnected{{end}}">{{if .LinkConnected}}connected{{else}}disconnected{{end}}</td></tr>
{{if .Config.Broker}}<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>{{end}}
{{if .Pending}}<tr><th>Pending</th><td>space {{.Pending.Space}} {{if .Pending.Available}}AVAILABLE{{else}}OCCUPIED{{end}}, {{.Pending.Attempts}} attempts</td></tr>{{end}}
</table>

<h2>Activity</h2>
<table>
<tr><th>Occupied</th><td>{{.Counts.Occupied}}</td></tr>
<tr><th>Vacated</th><td>{{.Counts.Vacated}}</td></tr>
<tr><th>Reservations</th><td>{{.Counts.ReservationsApplied}} applied, {{.Counts.ReservationsRejected}} rejected</td></tr>
<tr><th>Fulfilled</th><td>{{.Counts.Fulfilled}}</td></tr>
<tr><th>Stale</th><td>{{.Counts.Stale}}</td></tr>
<tr><th>Expired</th><td>{{.Counts.Expired}}</td></tr>
<tr><th>Ignored</th><td>{{.Counts.Ignored}}</td></tr>
<tr><th>Delivered</th><td>{{.Counts.Delivered}} of {{.Counts.Attempts}} attempts, {{.Counts.Abandoned}} abandoned</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Poll</th><td>{{.Config.PollMs}}ms</td></tr>
<tr><th>Distance limit</th><td>{{.Config.DistanceLimitCM}}cm</td></tr>
<tr><th>Min detection</th><td>{{.Config.MinDetectionMs}}ms</td></tr>
<tr><th>Max reservation</th><td>{{.Config.MaxReservationMs}}ms</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a> | <a href="/events">Events</a></p>
<script>
(function() {
  var dot = document.getElementById("live-dot");
  var proto = location.protocol === "https:" ? "wss://" : "ws://";

  function setDot(cls, title) {
    dot.className = "live-dot " + cls;
    dot.title = title;
  }

  function render(msg) {
    document.getElementById("mode").textContent = msg.mode;
    document.getElementById("available").textContent = msg.available + " / " + msg.spaces.length;
    msg.spaces.forEach(function(s) {
      var el = document.getElementById("space-" + s.index);
      if (!el) return;
      el.className = s.occupied ? "taken" : s.reserved ? "reserved" : "free";
      el.textContent = (s.occupied ? "OCCUPIED" : "AVAILABLE") + (s.reserved ? " (reserved " + s.reserved_at.substr(11) + ")" : "");
    });
  }

  function connect() {
    var ws = new WebSocket(proto + location.host + "/ws");
    ws.onopen = function() { setDot("ok", "live"); };
    ws.onclose = function() { setDot("err", "offline"); setTimeout(connect, 5000); };
    ws.onmessage = function(e) {
      try { render(JSON.parse(e.data)); } catch (err) {}
    };
  }
  connect();
})();
</script>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) error {
	// Snapshot has Uptime and Available methods but the template reads fields.
	data := struct {
		status.Snapshot
		Uptime    time.Duration
		Available int
	}{
		Snapshot:  snap,
		Uptime:    snap.Uptime(),
		Available: snap.Available(),
	}
	return indexTmpl.Execute(w, data)
}
