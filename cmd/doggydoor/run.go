package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"doggydoor/internal/beacon"
	"doggydoor/internal/config"
	"doggydoor/internal/distance"
	"doggydoor/internal/door"
	"doggydoor/internal/engine"
	"doggydoor/internal/homekit"
	"doggydoor/internal/logging"
)

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the proximity lock daemon",
		RunE:  runDaemon,
	}
}

func runDaemon(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return err
	}

	log, closeLog, err := logging.New(cfg.Logger)
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	source, runSource := newSource(log)

	actuator, serveBridge, err := newActuator(ctx, cfg, log)
	if err != nil {
		return err
	}
	actuator = door.NewBreakerActuator(actuator, door.BreakerSettings{
		MaxFailures: cfg.Actuator.Breaker.MaxFailures,
		Timeout:     cfg.Actuator.Breaker.Timeout.Std(),
		Interval:    cfg.Actuator.Breaker.Interval.Std(),
	}, log.With("component", "breaker"))

	machine := door.NewMachine(door.Policy{
		ThresholdFeet:   cfg.Proximity.ThresholdFeet,
		MarginFeet:      cfg.Proximity.HysteresisMarginFeet,
		MinDwell:        cfg.Proximity.MinDwell.Std(),
		AutoLockTimeout: cfg.Proximity.AutoUnlockTimeout.Std(),
		FailSafe:        cfg.Proximity.FailSafeMode,
	}, log.With("component", "door"))

	eng := engine.New(engine.Options{
		Source:          source,
		Tracker:         beacon.NewTracker(cfg.Scanner.SmoothingAlpha),
		Estimator:       newEstimator(cfg),
		Machine:         machine,
		Actuator:        actuator,
		CyclePeriod:     cfg.Scanner.ScanInterval.Std(),
		SilenceWindow:   cfg.Scanner.SilenceWindow.Std(),
		ActuatorTimeout: cfg.Actuator.Timeout.Std(),
		StatusInterval:  cfg.StatusInterval.Std(),
		FailSafe:        cfg.Proximity.FailSafeMode,
		Log:             log.With("component", "engine"),
	})

	log.Info("doggy door starting",
		"threshold_feet", cfg.Proximity.ThresholdFeet,
		"margin_feet", cfg.Proximity.HysteresisMarginFeet,
		"actuator_mode", cfg.Actuator.Mode,
		"demo", flagDemo,
	)

	workers := 2
	errCh := make(chan error, 3)
	go func() { errCh <- runSource(ctx) }()
	go func() { errCh <- eng.Run(ctx) }()
	if serveBridge != nil {
		workers++
		go func() { errCh <- serveBridge(ctx) }()
	}

	var firstErr error
	for i := 0; i < workers; i++ {
		if err := <-errCh; err != nil && firstErr == nil {
			firstErr = err
			stop()
		}
	}

	log.Info("doggy door stopped")
	return firstErr
}

// newSource picks the real scanner or the demo feed.
func newSource(log *slog.Logger) (beacon.Source, func(context.Context) error) {
	if flagDemo {
		mock := beacon.NewMockSource(2)
		return mock, mock.Run
	}
	scanner := beacon.NewScanner(log.With("component", "scanner"))
	return scanner, scanner.Run
}

// newActuator builds the configured actuator. The HAP bridge additionally
// needs serving; the returned function is nil for other modes.
func newActuator(ctx context.Context, cfg *config.Config, log *slog.Logger) (door.Actuator, func(context.Context) error, error) {
	switch cfg.Actuator.Mode {
	case "hap":
		bridge, err := homekit.NewBridge(cfg.Actuator.HAP, log.With("component", "hap"))
		if err != nil {
			return nil, nil, err
		}
		return bridge, bridge.Serve, nil

	case "api":
		client := homekit.NewAPIClient(cfg.Actuator.API, cfg.Actuator.Timeout.Std(), log.With("component", "hub"))
		pingCtx, cancel := context.WithTimeout(ctx, cfg.Actuator.Timeout.Std())
		defer cancel()
		if err := client.Ping(pingCtx); err != nil {
			return nil, nil, fmt.Errorf("hub probe: %w", err)
		}
		return client, nil, nil

	case "none":
		log.Warn("actuator mode none: door commands are acknowledged but go nowhere")
		return &door.NopActuator{}, nil, nil
	}
	return nil, nil, fmt.Errorf("unknown actuator mode %q", cfg.Actuator.Mode)
}

func newEstimator(cfg *config.Config) distance.Estimator {
	return distance.NewEstimator(
		cfg.Calibration.RSSIAtCalibration,
		cfg.Calibration.DistanceFeet,
		cfg.Calibration.PathLossExponent,
	)
}
