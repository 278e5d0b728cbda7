package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"syscall"
	"time"

	"github.com/sweeney/group-controller/internal/link"
	"github.com/sweeney/group-controller/internal/log"
	"github.com/sweeney/group-controller/internal/logic"
	"github.com/sweeney/group-controller/internal/mqtt"
	"github.com/sweeney/group-controller/internal/status"
)

// recorder persists cycle activity. Satisfied by *journal.Journal.
type recorder interface {
	RecordReport(ctx context.Context, r logic.Report) error
	RecordSystem(ctx context.Context, at time.Time, event, reason string) error
}

// livePublisher pushes cycle reports to live viewers. Satisfied by *web.Server.
type livePublisher interface {
	Publish(r logic.Report, snap status.Snapshot)
}

// daemon runs the control loop. Every collaborator except node, clock and
// tracker is optional.
type daemon struct {
	node       *logic.Node
	clock      logic.Clock
	tracker    *status.Tracker
	publisher  mqtt.Publisher
	linkStatus mqtt.ConnectionStatus
	journal    recorder
	live       livePublisher
	heartbeat  time.Duration

	// cycleDone, if set, receives every cycle report. Used by tests.
	cycleDone chan<- logic.Report
}

// deliveryHooks mirrors in-flight updates into the status tracker.
func (d *daemon) deliveryHooks() link.Hooks {
	return link.Hooks{
		OnAttempt: func(u logic.Update, attempt int) {
			d.tracker.SetPending(u, attempt, d.clock.Now())
			if d.linkStatus != nil {
				d.tracker.SetLinkConnected(d.linkStatus.IsConnected())
			}
		},
		OnResolved: func(logic.Delivery) {
			d.tracker.ClearPending()
		},
	}
}

// runLoop cycles on every tick until a signal arrives. The signal cancels the
// context of the cycle in progress, which unblocks a pending delivery.
func (d *daemon) runLoop(tick <-chan time.Time, sig <-chan os.Signal) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stopped := make(chan os.Signal, 1)
	go func() {
		select {
		case s := <-sig:
			stopped <- s
			cancel()
		case <-ctx.Done():
		}
	}()

	for {
		select {
		case <-ctx.Done():
			d.shutdown(<-stopped)
			return nil

		case <-tick:
			d.cycle(ctx)
		}
	}
}

func (d *daemon) cycle(ctx context.Context) {
	report, err := d.node.Cycle(ctx)

	var cerr *logic.CycleError
	if errors.As(err, &cerr) {
		for _, f := range cerr.Faults {
			log.Debug(ctx, "cycle: fault", log.Err("error", f))
		}
	} else if err != nil {
		log.Warn(ctx, "cycle: failed", log.Err("error", err))
	}

	for _, c := range report.Commands {
		if c.Applied {
			log.Info(ctx, "event: reserved", log.Space(c.Space))
		} else {
			log.Warn(ctx, "event: reservation rejected", log.Space(c.Space))
		}
	}
	for _, dl := range report.Deliveries {
		attrs := []slog.Attr{
			log.Space(dl.Update.Space),
			slog.Bool("available", dl.Update.Available),
			slog.String("reason", string(dl.Update.Reason)),
			slog.Int("attempts", dl.Attempts),
		}
		switch {
		case dl.Delivered:
			log.Info(ctx, "event: update delivered", attrs...)
		case errors.Is(dl.Err, context.Canceled):
			log.Info(ctx, "event: update interrupted by shutdown", attrs...)
		default:
			log.Warn(ctx, "event: update abandoned", append(attrs, log.Err("error", dl.Err))...)
		}
	}

	if d.journal != nil {
		// Record what resolved even if the cycle was cut short.
		if err := d.journal.RecordReport(context.Background(), report); err != nil {
			log.Warn(ctx, "journal: record failed", log.Err("error", err))
		}
	}

	d.refresh(report.Timestamp)
	if d.live != nil {
		d.live.Publish(report, d.tracker.Snapshot())
	}

	if ctx.Err() == nil {
		d.checkHeartbeat(ctx)
	}

	if d.cycleDone != nil {
		d.cycleDone <- report
	}
}

func (d *daemon) refresh(at time.Time) {
	d.tracker.Update(d.node.Spaces(), d.node.Mode(), d.node.Counts(), at)
	if d.linkStatus != nil {
		d.tracker.SetLinkConnected(d.linkStatus.IsConnected())
	}
}

func (d *daemon) checkHeartbeat(ctx context.Context) {
	hb := d.node.CheckHeartbeat(d.clock.Now(), d.heartbeat)
	if hb == nil {
		return
	}
	c := hb.Counts
	log.Info(ctx, "heartbeat",
		slog.Duration("uptime", hb.Uptime),
		slog.Int("occupied", c.Occupied),
		slog.Int("vacated", c.Vacated),
		slog.Int("reserved", c.ReservationsApplied),
		slog.Int("expired", c.Expired),
		slog.Int("delivered", c.Delivered),
	)
	d.systemEvent(hb.Timestamp, "HEARTBEAT", "", false)
}

func (d *daemon) startup() {
	d.refresh(d.clock.Now())
	d.systemEvent(d.clock.Now(), "STARTUP", "", true)
}

func (d *daemon) shutdown(s os.Signal) {
	signalName := "UNKNOWN"
	switch s {
	case syscall.SIGINT:
		signalName = "SIGINT"
	case syscall.SIGTERM:
		signalName = "SIGTERM"
	}
	log.Info(context.Background(), "received signal, shutting down", slog.String("signal", signalName))

	d.refresh(d.clock.Now())
	d.systemEvent(d.clock.Now(), "SHUTDOWN", signalName, true)
}

// systemEvent publishes a lifecycle event with a status snapshot and journals it.
func (d *daemon) systemEvent(at time.Time, event, reason string, retained bool) {
	ctx := context.Background()
	if d.journal != nil {
		if err := d.journal.RecordSystem(ctx, at, event, reason); err != nil {
			log.Warn(ctx, "journal: record failed", log.Err("error", err))
		}
	}
	if d.publisher == nil {
		return
	}
	err := d.publisher.PublishSystem(mqtt.SystemEvent{
		Timestamp:  at,
		Event:      event,
		Reason:     reason,
		Retained:   retained,
		RawPayload: status.FormatStatusEvent(d.tracker.Snapshot(), event, reason),
	})
	if err != nil {
		log.Warn(ctx, "mqtt: publish system event failed", slog.String("event", event), log.Err("error", err))
		return
	}
	log.Debug(ctx, "mqtt: published system event", slog.String("event", event))
}
