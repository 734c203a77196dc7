package beacon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"tinygo.org/x/bluetooth"
)

// sampleBuffer bounds the scanner-to-engine queue. The engine drains it
// every cycle; overflow drops the newest sample rather than blocking the
// radio callback.
const sampleBuffer = 64

const maxRestartInterval = 30 * time.Second

// Scanner listens for BLE advertisements on the host radio and emits
// samples for anything matching the Find My signature. It owns the radio
// exclusively while Run is active.
type Scanner struct {
	adapter *bluetooth.Adapter
	samples chan Sample
	healthy atomic.Bool
	dropped atomic.Uint64

	bo   backoff.BackOff
	scan func(ctx context.Context, delivered func()) error

	log *slog.Logger
}

// NewScanner creates a scanner for the default adapter.
func NewScanner(log *slog.Logger) *Scanner {
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 0 // retry indefinitely
	bo.MaxInterval = maxRestartInterval

	s := &Scanner{
		adapter: bluetooth.DefaultAdapter,
		samples: make(chan Sample, sampleBuffer),
		bo:      bo,
		log:     log,
	}
	s.scan = s.scanOnce
	return s
}

// Samples implements Source.
func (s *Scanner) Samples() <-chan Sample { return s.samples }

// Healthy implements Source.
func (s *Scanner) Healthy() bool { return s.healthy.Load() }

// Run scans until ctx is cancelled, holding the radio for the duration.
// Adapter faults are retried with exponential backoff; while the scanner is
// down Healthy reports false, which drives the fail-safe lock upstream.
func (s *Scanner) Run(ctx context.Context) error {
	notify := func(err error, wait time.Duration) {
		s.log.Warn("scanner restarting", "error", err, "retry_in", wait)
	}

	err := backoff.RetryNotify(func() error {
		var delivered atomic.Bool
		sessionErr := s.scan(ctx, func() { delivered.Store(true) })
		if delivered.Load() {
			// The radio was working; its next fault is a fresh incident,
			// not another consecutive failure.
			s.bo.Reset()
		}
		return sessionErr
	}, backoff.WithContext(s.bo, ctx), notify)

	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("scanner: %w", err)
	}
	return nil
}

// scanOnce enables the adapter and scans until ctx ends or the radio fails.
// The radio is released on every exit path. delivered is called when
// advertisements start arriving.
func (s *Scanner) scanOnce(ctx context.Context, delivered func()) error {
	if err := s.adapter.Enable(); err != nil {
		return fmt.Errorf("enable adapter: %w", err)
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
		case <-done:
		}
		_ = s.adapter.StopScan()
	}()

	s.healthy.Store(true)
	err := s.adapter.Scan(func(_ *bluetooth.Adapter, result bluetooth.ScanResult) {
		delivered()
		if !matchesFindMy(result) {
			return
		}
		sample := Sample{
			Addr: result.Address.String(),
			RSSI: result.RSSI,
			At:   time.Now(),
		}
		select {
		case s.samples <- sample:
		default:
			s.dropped.Add(1)
		}
	})
	s.healthy.Store(false)

	if ctx.Err() != nil {
		return backoff.Permanent(ctx.Err())
	}
	if err != nil {
		return fmt.Errorf("scan: %w", err)
	}
	return errors.New("scan ended unexpectedly")
}

// Dropped returns how many samples were discarded due to a full queue.
func (s *Scanner) Dropped() uint64 { return s.dropped.Load() }
