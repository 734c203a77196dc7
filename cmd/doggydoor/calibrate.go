package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/stat"
)

func newCalibrateCmd() *cobra.Command {
	var (
		distanceFeet float64
		sampleCount  int
	)

	cmd := &cobra.Command{
		Use:   "calibrate",
		Short: "Measure RSSI at a known distance and suggest calibration values",
		Long: `Place a Find My beacon at a known, fixed distance from the door and run
this command. It samples RSSI from the first beacon it sees and prints the
values to set in the configuration.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if distanceFeet <= 0 {
				return errors.New("--distance must be positive feet")
			}
			if sampleCount < 1 {
				return errors.New("--samples must be at least 1")
			}
			return runCalibrate(cmd.Context(), distanceFeet, sampleCount)
		},
	}

	cmd.Flags().Float64Var(&distanceFeet, "distance", 0, "Known distance to the beacon in feet (required)")
	cmd.Flags().IntVar(&sampleCount, "samples", 20, "Number of RSSI samples to collect")
	_ = cmd.MarkFlagRequired("distance")

	return cmd
}

func runCalibrate(parent context.Context, distanceFeet float64, sampleCount int) error {
	// Generous overall budget: beacons advertise every couple of seconds.
	ctx, cancel := context.WithTimeout(parent, time.Duration(sampleCount)*3*time.Second+30*time.Second)
	defer cancel()

	source, runSource := newSource(slog.New(slog.DiscardHandler))
	go func() { _ = runSource(ctx) }()

	fmt.Printf("Calibrating at %.1f ft, collecting %d samples...\n", distanceFeet, sampleCount)

	var (
		target string
		rssis  []float64
	)
	for len(rssis) < sampleCount {
		select {
		case <-ctx.Done():
			if len(rssis) == 0 {
				return errors.New("no Find My beacons seen; check the beacon is active and in range")
			}
			fmt.Printf("Timed out after %d samples.\n", len(rssis))
			return printCalibration(distanceFeet, rssis)
		case s := <-source.Samples():
			if target == "" {
				target = s.Addr
				fmt.Printf("Target beacon: %s\n", target)
			}
			if s.Addr != target {
				continue
			}
			rssis = append(rssis, float64(s.RSSI))
			fmt.Printf("  sample %d/%d: %d dBm\n", len(rssis), sampleCount, s.RSSI)
		}
	}

	return printCalibration(distanceFeet, rssis)
}

func printCalibration(distanceFeet float64, rssis []float64) error {
	if len(rssis) == 0 {
		return errors.New("no samples collected")
	}

	mean := stat.Mean(rssis, nil)
	stddev := 0.0
	if len(rssis) > 1 {
		stddev = stat.StdDev(rssis, nil)
	}
	min, max := rssis[0], rssis[0]
	for _, v := range rssis[1:] {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}

	fmt.Println()
	fmt.Println("Calibration results:")
	fmt.Printf("  distance:  %.1f ft\n", distanceFeet)
	fmt.Printf("  mean RSSI: %.1f dBm (stddev %.1f)\n", mean, stddev)
	fmt.Printf("  range:     %.0f to %.0f dBm over %d samples\n", min, max, len(rssis))
	fmt.Println()
	fmt.Println("Configuration values:")
	fmt.Printf("  calibration.rssi_at_calibration: %d\n", int(mean))
	fmt.Printf("  calibration.calibration_distance_feet: %.2f\n", distanceFeet)
	fmt.Println()
	fmt.Println("Or as environment variables:")
	fmt.Printf("  DOGGYDOOR_RSSI_AT_CALIBRATION=%d\n", int(mean))
	fmt.Printf("  DOGGYDOOR_CALIBRATION_DISTANCE_FEET=%.2f\n", distanceFeet)

	if stddev > 8 {
		fmt.Println()
		fmt.Println("Note: RSSI variance is high; consider re-running away from walls and people.")
	}
	return nil
}
