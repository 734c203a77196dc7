// Package engine wires the sense-decide-act loop: drain beacon samples into
// the tracker, and once per cycle evict stale beacons, estimate distances,
// let the state machine decide, and drive the actuator.
package engine

import (
	"context"
	"log/slog"
	"math"
	"time"

	"doggydoor/internal/beacon"
	"doggydoor/internal/distance"
	"doggydoor/internal/door"
)

// Options configures the engine.
type Options struct {
	Source          beacon.Source
	Tracker         *beacon.Tracker
	Estimator       distance.Estimator
	Machine         *door.Machine
	Actuator        door.Actuator
	CyclePeriod     time.Duration
	SilenceWindow   time.Duration
	ActuatorTimeout time.Duration
	StatusInterval  time.Duration
	FailSafe        bool
	Log             *slog.Logger
}

// Engine runs the control loop. Decision cycles are strictly sequential:
// one cycle, including its actuator call, completes before the next begins.
type Engine struct {
	source    beacon.Source
	tracker   *beacon.Tracker
	estimator distance.Estimator
	machine   *door.Machine
	actuator  door.Actuator

	cyclePeriod     time.Duration
	silenceWindow   time.Duration
	actuatorTimeout time.Duration
	statusInterval  time.Duration
	failSafe        bool

	lastDetection time.Time
	log           *slog.Logger
}

// New creates an engine from options.
func New(opts Options) *Engine {
	statusInterval := opts.StatusInterval
	if statusInterval <= 0 {
		statusInterval = 5 * time.Minute
	}
	return &Engine{
		source:          opts.Source,
		tracker:         opts.Tracker,
		estimator:       opts.Estimator,
		machine:         opts.Machine,
		actuator:        opts.Actuator,
		cyclePeriod:     opts.CyclePeriod,
		silenceWindow:   opts.SilenceWindow,
		actuatorTimeout: opts.ActuatorTimeout,
		statusInterval:  statusInterval,
		failSafe:        opts.FailSafe,
		log:             opts.Log,
	}
}

// Run loops until ctx is cancelled, then performs the shutdown lock.
func (e *Engine) Run(ctx context.Context) error {
	cycle := time.NewTicker(e.cyclePeriod)
	defer cycle.Stop()
	status := time.NewTicker(e.statusInterval)
	defer status.Stop()

	start := time.Now()
	e.log.Info("engine started",
		"cycle_period", e.cyclePeriod,
		"silence_window", e.silenceWindow,
		"fail_safe", e.failSafe,
	)

	for {
		select {
		case <-ctx.Done():
			e.shutdownLock()
			return nil
		case s := <-e.source.Samples():
			e.tracker.Observe(s)
			e.lastDetection = s.At
		case now := <-cycle.C:
			e.runCycle(ctx, now)
		case <-status.C:
			e.reportStatus(ctx, start)
		}
	}
}

// Cycle runs one decision cycle. Exported for tests; Run calls it on every
// tick.
func (e *Engine) Cycle(ctx context.Context, now time.Time) {
	e.runCycle(ctx, now)
}

func (e *Engine) runCycle(ctx context.Context, now time.Time) {
	e.tracker.Evict(e.silenceWindow)

	readings := e.tracker.Snapshot()
	estimates := make([]distance.Estimate, len(readings))
	for i, r := range readings {
		estimates[i] = e.estimator.Estimate(r)
	}
	minFeet := distance.Min(estimates)

	in := door.Input{
		Now:             now,
		MinDistanceFeet: minFeet,
		BeaconVisible:   len(estimates) > 0,
		ScannerHealthy:  e.source.Healthy(),
	}
	decision := e.machine.Decide(in)

	if decision.Cmd != door.CmdNone {
		e.log.Info("decision",
			"command", decision.Cmd,
			"reason", decision.Reason,
			"min_distance_feet", logFeet(minFeet),
			"beacons", len(estimates),
		)
		target := door.Locked
		if decision.Cmd == door.CmdUnlock {
			target = door.Unlocked
		}
		cmdCtx, cancel := context.WithTimeout(ctx, e.actuatorTimeout)
		err := e.actuator.SetLockState(cmdCtx, target)
		cancel()
		e.machine.Record(decision.Cmd, now, err)
		return
	}

	e.log.Debug("cycle",
		"state", e.machine.State(),
		"min_distance_feet", logFeet(minFeet),
		"beacons", len(estimates),
		"scanner_healthy", in.ScannerHealthy,
	)
}

// reportStatus logs a periodic overview, including the accessory's actual
// state so an intent/actual mismatch is visible in the logs.
func (e *Engine) reportStatus(ctx context.Context, start time.Time) {
	attrs := []any{
		"door", e.machine.State(),
		"synced", e.machine.Synced(),
		"beacons", e.tracker.Len(),
		"scanner_healthy", e.source.Healthy(),
		"uptime", time.Since(start).Round(time.Second),
	}
	if !e.lastDetection.IsZero() {
		attrs = append(attrs, "last_detection_ago", time.Since(e.lastDetection).Round(time.Second))
	}

	stateCtx, cancel := context.WithTimeout(ctx, e.actuatorTimeout)
	actual, err := e.actuator.LockState(stateCtx)
	cancel()
	if err != nil {
		attrs = append(attrs, "accessory_state", "unknown")
	} else {
		attrs = append(attrs, "accessory_state", actual)
		if actual != e.machine.State() {
			e.log.Warn("door state mismatch", "intended", e.machine.State(), "actual", actual)
		}
	}

	e.log.Info("status", attrs...)
}

// shutdownLock issues a final lock in fail-safe mode. The parent context is
// already cancelled, so the command gets its own bounded context.
func (e *Engine) shutdownLock() {
	if !e.failSafe {
		return
	}
	if e.machine.State() == door.Locked && e.machine.Synced() {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), e.actuatorTimeout)
	defer cancel()
	if err := e.actuator.SetLockState(ctx, door.Locked); err != nil {
		e.log.Error("shutdown lock failed", "error", err)
		return
	}
	e.machine.Record(door.CmdLock, time.Now(), nil)
	e.log.Info("door locked for shutdown")
}

func logFeet(feet float64) any {
	if math.IsInf(feet, 1) {
		return "none"
	}
	return math.Round(feet*10) / 10
}
