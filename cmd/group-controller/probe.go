package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/sweeney/group-controller/internal/config"
	"github.com/sweeney/group-controller/internal/gpio"
)

func newProbeCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "probe",
		Short: "Measure every sensor once, print the readings and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			prober, err := gpio.NewRealProber(cfg.Node.Chip, sensorsFor(cfg), cfg.Spaces.EchoTimeout)
			if err != nil {
				return fmt.Errorf("init sensors: %w", err)
			}
			defer prober.Close()
			return printProbe(cmd.OutOrStdout(), prober, cfg)
		},
	}
}

// printProbe writes one line per space. A failed read is reported on its line
// and does not stop the others.
func printProbe(w io.Writer, p gpio.Prober, cfg *config.Config) error {
	for i, pin := range cfg.Pins() {
		cm, err := p.Measure(pin)
		if err != nil {
			fmt.Fprintf(w, "space %d (pin %d): error: %v\n", i, pin, err)
			continue
		}
		state := "AVAILABLE"
		if cm <= cfg.Spaces.DistanceLimitCM {
			state = "OCCUPIED"
		}
		fmt.Fprintf(w, "space %d (pin %d): %dcm %s\n", i, pin, cm, state)
	}
	return nil
}
