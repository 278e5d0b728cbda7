// Command group-controller watches the ultrasonic sensors of a group of parking
// spaces, reports availability to the central unit and applies reservations
// it sends back.
//
//	group-controller [-c /etc/group-controller/config.yaml]   # run the daemon
//	group-controller probe [-c ...]                           # measure once and exit
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sweeney/group-controller/internal/config"
	"github.com/sweeney/group-controller/internal/gpio"
	"github.com/sweeney/group-controller/internal/journal"
	"github.com/sweeney/group-controller/internal/link"
	"github.com/sweeney/group-controller/internal/log"
	"github.com/sweeney/group-controller/internal/logic"
	"github.com/sweeney/group-controller/internal/mqtt"
	"github.com/sweeney/group-controller/internal/status"
	"github.com/sweeney/group-controller/internal/web"
)

// EnvConfigFile names the config file when -c is not given.
const EnvConfigFile = "GC_CONFIG"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var cfgPath string

	root := &cobra.Command{
		Use:   "group-controller",
		Short: "Parking group controller daemon",
		Long: `Parking group controller daemon.
It samples one ultrasonic sensor per parking space, reports availability
changes to the central unit over MQTT, applies reservation commands and
drives the yellow/green indicator lamps.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return err
			}
			return run(cfg)
		},
	}
	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file path (default $"+EnvConfigFile+")")
	root.PersistentPreRun = func(*cobra.Command, []string) {
		if cfgPath == "" {
			cfgPath = os.Getenv(EnvConfigFile)
		}
	}

	root.AddCommand(newProbeCmd(&cfgPath))
	return root
}

func sensorsFor(cfg *config.Config) []gpio.Sensor {
	sensors := make([]gpio.Sensor, len(cfg.Spaces.Sensors))
	for i, s := range cfg.Spaces.Sensors {
		sensors[i] = gpio.Sensor{Pin: s.Pin, EchoPin: s.Echo()}
	}
	return sensors
}

func statusConfig(cfg *config.Config) status.Config {
	sc := status.Config{
		NodeID:           cfg.Node.ID,
		Transport:        cfg.Transport.Kind,
		HTTPAddr:         cfg.HTTP.Addr,
		Pins:             cfg.Pins(),
		DistanceLimitCM:  cfg.Spaces.DistanceLimitCM,
		PollMs:           cfg.Loop.Poll.Milliseconds(),
		HeartbeatMs:      cfg.Loop.Heartbeat.Milliseconds(),
		MinDetectionMs:   cfg.Spaces.MinDetection.Milliseconds(),
		MaxReservationMs: cfg.Spaces.MaxReservation.Milliseconds(),
		MaxAttempts:      cfg.Transport.Retry.MaxAttempts,
	}
	if cfg.Transport.Kind == "mqtt" {
		sc.Broker = cfg.Transport.Broker
	}
	return sc
}

func retryPolicy(rc config.RetryConfig) link.RetryPolicy {
	return link.RetryPolicy{
		MaxAttempts:   rc.MaxAttempts,
		Backoff:       rc.Backoff,
		MaxBackoff:    rc.MaxBackoff,
		MinInterval:   rc.MinInterval,
		StallLogEvery: rc.StallLogEvery,
	}
}

func run(cfg *config.Config) error {
	if err := log.Setup(os.Stderr, cfg.Log.Level, cfg.Log.Format); err != nil {
		return err
	}
	ctx := context.Background()
	clock := logic.SystemClock{}

	// Initialize GPIO
	prober, err := gpio.NewRealProber(cfg.Node.Chip, sensorsFor(cfg), cfg.Spaces.EchoTimeout)
	if err != nil {
		return fmt.Errorf("init sensors: %w", err)
	}
	defer prober.Close()

	var indicator logic.IndicatorWriter
	if cfg.Indicator.Enabled {
		lamps, err := gpio.NewRealIndicator(cfg.Node.Chip, cfg.Indicator.YellowPin, cfg.Indicator.GreenPin)
		if err != nil {
			return fmt.Errorf("init indicator: %w", err)
		}
		defer lamps.Close()
		indicator = lamps
	}

	// Initialize the link to the central unit
	d := &daemon{clock: clock, heartbeat: cfg.Loop.Heartbeat}
	var transport link.Transport = link.NoTransport{}
	if cfg.Transport.Kind == "mqtt" {
		rt, err := mqtt.NewRealTransport(mqtt.Options{
			Broker:          cfg.Transport.Broker,
			ClientID:        cfg.Transport.ClientID,
			NodeID:          cfg.Node.ID,
			DeliveryTimeout: cfg.Transport.DeliveryTimeout,
			InboundBuffer:   cfg.Transport.InboundBuffer,
		})
		if err != nil {
			return fmt.Errorf("init mqtt: %w", err)
		}
		defer rt.Close()
		transport, d.publisher, d.linkStatus = rt, rt, rt
	}
	channel := link.NewChannel(transport, retryPolicy(cfg.Transport.Retry), clock)

	d.node = logic.NewNode(logic.NodeConfig{
		Pins:           cfg.Pins(),
		DistanceLimit:  cfg.Spaces.DistanceLimitCM,
		MaxReservation: cfg.Spaces.MaxReservation,
		MinDetection:   cfg.Spaces.MinDetection,
	}, prober, channel, indicator, clock)

	// Initialize status tracker (before STARTUP so snapshot is available)
	d.tracker = status.NewTracker(d.node.StartTime(), statusConfig(cfg))
	channel.SetHooks(d.deliveryHooks())

	var events web.EventSource
	if cfg.Journal.Path != "" {
		j, err := journal.Open(cfg.Journal.Path)
		if err != nil {
			return err
		}
		defer j.Close()
		d.journal, events = j, j
		log.Info(ctx, "journal: opened", slog.String("path", cfg.Journal.Path))
	}

	d.startup()

	// Start HTTP status server
	if cfg.HTTP.Addr != "" {
		srv := web.New(cfg.HTTP.Addr, d.tracker, web.Options{
			CacheTTL:  cfg.HTTP.CacheTTL,
			RateLimit: cfg.HTTP.RateLimit,
			Events:    events,
		})
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error(ctx, "http: server failed", log.Err("error", err))
			}
		}()
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			srv.Shutdown(sctx)
		}()
		d.live = srv
		log.Info(ctx, "http: status server listening", slog.String("addr", cfg.HTTP.Addr))
	}

	log.Info(ctx, "started",
		slog.String("node", cfg.Node.ID),
		slog.Int("spaces", len(cfg.Spaces.Sensors)),
		slog.Duration("poll", cfg.Loop.Poll),
		slog.Duration("min_detection", cfg.Spaces.MinDetection),
		slog.Duration("max_reservation", cfg.Spaces.MaxReservation),
		slog.String("transport", cfg.Transport.Kind),
		slog.Duration("heartbeat", cfg.Loop.Heartbeat),
	)

	ticker := time.NewTicker(cfg.Loop.Poll)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return d.runLoop(ticker.C, sigCh)
}
