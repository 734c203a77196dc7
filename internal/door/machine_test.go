package door

import (
	"errors"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func testPolicy() Policy {
	return Policy{
		ThresholdFeet:   3.0,
		MarginFeet:      1.0,
		MinDwell:        4 * time.Second,
		AutoLockTimeout: 10 * time.Minute,
		FailSafe:        true,
	}
}

// syncedMachine returns a machine whose initial lock has been acknowledged.
func syncedMachine(t *testing.T, p Policy, now time.Time) *Machine {
	t.Helper()
	m := NewMachine(p, testLogger())
	d := m.Decide(Input{Now: now, MinDistanceFeet: math.Inf(1), ScannerHealthy: true})
	require.Equal(t, CmdLock, d.Cmd, "fresh machine must assert the initial lock")
	m.Record(CmdLock, now, nil)
	require.Equal(t, Locked, m.State())
	require.True(t, m.Synced())
	return m
}

func visible(now time.Time, feet float64) Input {
	return Input{Now: now, MinDistanceFeet: feet, BeaconVisible: true, ScannerHealthy: true}
}

func noBeacon(now time.Time) Input {
	return Input{Now: now, MinDistanceFeet: math.Inf(1), BeaconVisible: false, ScannerHealthy: true}
}

// unlock drives a synced machine through dwell into the Unlocked state.
func unlock(t *testing.T, m *Machine, now time.Time, feet float64) time.Time {
	t.Helper()
	d := m.Decide(visible(now, feet))
	require.Equal(t, CmdNone, d.Cmd, "first qualifying cycle starts the dwell")

	now = now.Add(m.policy.MinDwell)
	d = m.Decide(visible(now, feet))
	require.Equal(t, CmdUnlock, d.Cmd)
	m.Record(CmdUnlock, now, nil)
	require.Equal(t, Unlocked, m.State())
	return now
}

func TestInitialStateIsLocked(t *testing.T) {
	m := NewMachine(testPolicy(), testLogger())
	assert.Equal(t, Locked, m.State())
}

func TestUnlockRequiresDwell(t *testing.T) {
	now := time.Now()
	m := syncedMachine(t, testPolicy(), now)

	d := m.Decide(visible(now, 2.0))
	assert.Equal(t, CmdNone, d.Cmd)

	// Still inside the dwell period.
	d = m.Decide(visible(now.Add(2*time.Second), 2.0))
	assert.Equal(t, CmdNone, d.Cmd)

	d = m.Decide(visible(now.Add(4*time.Second), 2.0))
	assert.Equal(t, CmdUnlock, d.Cmd)
}

func TestDwellResetsWhenBeaconLeaves(t *testing.T) {
	now := time.Now()
	m := syncedMachine(t, testPolicy(), now)

	m.Decide(visible(now, 2.0))
	m.Decide(noBeacon(now.Add(2 * time.Second)))

	// Back in range: dwell starts over, no unlock yet.
	d := m.Decide(visible(now.Add(4*time.Second), 2.0))
	assert.Equal(t, CmdNone, d.Cmd)
	d = m.Decide(visible(now.Add(8*time.Second), 2.0))
	assert.Equal(t, CmdUnlock, d.Cmd)
}

func TestSingleSampleFlickerDoesNotUnlock(t *testing.T) {
	now := time.Now()
	m := syncedMachine(t, testPolicy(), now)

	d := m.Decide(visible(now, 1.0))
	assert.Equal(t, CmdNone, d.Cmd)
	d = m.Decide(noBeacon(now.Add(2 * time.Second)))
	assert.Equal(t, CmdNone, d.Cmd)
	assert.Equal(t, Locked, m.State())
}

func TestHysteresisBandDoesNotLock(t *testing.T) {
	now := time.Now()
	m := syncedMachine(t, testPolicy(), now)
	now = unlock(t, m, now, 2.0)

	// Readings strictly between threshold and threshold+margin: no lock.
	for _, feet := range []float64{3.1, 3.5, 3.9, 4.0} {
		d := m.Decide(visible(now.Add(2*time.Second), feet))
		assert.Equal(t, CmdNone, d.Cmd, "%.1f ft is inside the hysteresis band", feet)
		assert.Equal(t, Unlocked, m.State())
	}
}

func TestLockBeyondHysteresisBand(t *testing.T) {
	now := time.Now()
	m := syncedMachine(t, testPolicy(), now)
	now = unlock(t, m, now, 2.0)

	d := m.Decide(visible(now.Add(2*time.Second), 4.5))
	require.Equal(t, CmdLock, d.Cmd)
	m.Record(CmdLock, now, nil)
	assert.Equal(t, Locked, m.State())
}

// Approach, drift into the hysteresis band, then walk away.
func TestApproachDriftDepartScenario(t *testing.T) {
	p := testPolicy()
	p.MarginFeet = 2.0
	now := time.Now()
	m := syncedMachine(t, p, now)

	now = unlock(t, m, now, 2.0)

	now = now.Add(2 * time.Second)
	d := m.Decide(visible(now, 4.5))
	assert.Equal(t, CmdNone, d.Cmd, "4.5 ft is inside threshold+margin")
	assert.Equal(t, Unlocked, m.State())

	now = now.Add(2 * time.Second)
	d = m.Decide(visible(now, 6.0))
	require.Equal(t, CmdLock, d.Cmd)
	m.Record(CmdLock, now, nil)
	assert.Equal(t, Locked, m.State())
}

func TestAutoLockDeadline(t *testing.T) {
	now := time.Now()
	m := syncedMachine(t, testPolicy(), now)
	now = unlock(t, m, now, 2.0)

	// Beacon lingers in the hysteresis band, never qualifying again: the
	// deadline from the last qualifying reading eventually fires.
	d := m.Decide(visible(now.Add(5*time.Minute), 3.5))
	assert.Equal(t, CmdNone, d.Cmd)

	d = m.Decide(visible(now.Add(10*time.Minute), 3.5))
	assert.Equal(t, CmdLock, d.Cmd)
	assert.Equal(t, "auto-lock timeout", d.Reason)
}

func TestQualifyingBeaconSlidesDeadline(t *testing.T) {
	now := time.Now()
	m := syncedMachine(t, testPolicy(), now)
	now = unlock(t, m, now, 2.0)

	first := m.AutoLockDeadline()

	// Dog stays at the door past the original deadline: still unlocked.
	later := now.Add(9 * time.Minute)
	d := m.Decide(visible(later, 2.0))
	assert.Equal(t, CmdNone, d.Cmd)
	assert.True(t, m.AutoLockDeadline().After(first), "deadline should slide forward")

	d = m.Decide(visible(now.Add(15*time.Minute), 2.0))
	assert.Equal(t, CmdNone, d.Cmd)
	assert.Equal(t, Unlocked, m.State())
}

func TestBeaconGoneLocks(t *testing.T) {
	now := time.Now()
	m := syncedMachine(t, testPolicy(), now)
	now = unlock(t, m, now, 2.0)

	// Tracker evicted the beacon: no visible beacons at all. This path
	// fires regardless of any distance reading.
	d := m.Decide(noBeacon(now.Add(30 * time.Second)))
	require.Equal(t, CmdLock, d.Cmd)
	assert.Equal(t, "beacon gone", d.Reason)
}

func TestFailSafeLocksOnDegradedScanner(t *testing.T) {
	now := time.Now()
	m := syncedMachine(t, testPolicy(), now)
	now = unlock(t, m, now, 2.0)

	d := m.Decide(Input{Now: now.Add(2 * time.Second), MinDistanceFeet: 2.0, BeaconVisible: true, ScannerHealthy: false})
	require.Equal(t, CmdLock, d.Cmd)
	assert.Equal(t, "fail-safe: scanner degraded", d.Reason)
}

func TestUnhealthyScannerNeverUnlocks(t *testing.T) {
	p := testPolicy()
	p.FailSafe = false
	now := time.Now()
	m := syncedMachine(t, p, now)

	// Even without fail-safe mode, stale data from a dead radio must not
	// open the door.
	m.Decide(Input{Now: now, MinDistanceFeet: 1.0, BeaconVisible: true, ScannerHealthy: false})
	d := m.Decide(Input{Now: now.Add(10 * time.Second), MinDistanceFeet: 1.0, BeaconVisible: true, ScannerHealthy: false})
	assert.NotEqual(t, CmdUnlock, d.Cmd)
	assert.Equal(t, Locked, m.State())
}

func TestFailedUnlockReassertsLockInFailSafe(t *testing.T) {
	now := time.Now()
	m := syncedMachine(t, testPolicy(), now)

	m.Decide(visible(now, 2.0))
	now = now.Add(4 * time.Second)
	d := m.Decide(visible(now, 2.0))
	require.Equal(t, CmdUnlock, d.Cmd)
	m.Record(CmdUnlock, now, errors.New("accessory timeout"))

	// Logical state unchanged, door physically uncertain.
	assert.Equal(t, Locked, m.State())
	assert.False(t, m.Synced())

	// Next cycle re-attempts LOCKED, never silently treats the door as unlocked.
	now = now.Add(2 * time.Second)
	d = m.Decide(visible(now, 2.0))
	require.Equal(t, CmdLock, d.Cmd)
	m.Record(CmdLock, now, nil)
	assert.True(t, m.Synced())
}

func TestFailedUnlockRetriesWithoutFailSafe(t *testing.T) {
	p := testPolicy()
	p.FailSafe = false
	now := time.Now()
	m := syncedMachine(t, p, now)

	m.Decide(visible(now, 2.0))
	now = now.Add(4 * time.Second)
	d := m.Decide(visible(now, 2.0))
	require.Equal(t, CmdUnlock, d.Cmd)
	m.Record(CmdUnlock, now, errors.New("accessory timeout"))

	// Intent is retried on the next cycle.
	now = now.Add(2 * time.Second)
	d = m.Decide(visible(now, 2.0))
	assert.Equal(t, CmdUnlock, d.Cmd)
}

func TestFailedLockRetriesEveryCycle(t *testing.T) {
	now := time.Now()
	m := syncedMachine(t, testPolicy(), now)
	now = unlock(t, m, now, 2.0)

	now = now.Add(2 * time.Second)
	d := m.Decide(noBeacon(now))
	require.Equal(t, CmdLock, d.Cmd)
	m.Record(CmdLock, now, errors.New("accessory timeout"))
	assert.Equal(t, Unlocked, m.State(), "logical state unchanged so the lock is retried")

	now = now.Add(2 * time.Second)
	d = m.Decide(noBeacon(now))
	require.Equal(t, CmdLock, d.Cmd)
	m.Record(CmdLock, now, nil)
	assert.Equal(t, Locked, m.State())
}

func TestIdempotentCycles(t *testing.T) {
	now := time.Now()
	m := syncedMachine(t, testPolicy(), now)

	// Locked, nothing visible: no commands, no state changes.
	for i := 0; i < 5; i++ {
		d := m.Decide(noBeacon(now.Add(time.Duration(i) * 2 * time.Second)))
		assert.Equal(t, CmdNone, d.Cmd)
		assert.Equal(t, Locked, m.State())
	}

	now = unlock(t, m, now.Add(time.Minute), 2.0)

	// Unlocked, beacon steady at the door: no commands, no state changes.
	for i := 0; i < 5; i++ {
		d := m.Decide(visible(now.Add(time.Duration(i)*2*time.Second), 2.0))
		assert.Equal(t, CmdNone, d.Cmd)
		assert.Equal(t, Unlocked, m.State())
	}
}

func TestExactThresholdQualifies(t *testing.T) {
	now := time.Now()
	m := syncedMachine(t, testPolicy(), now)

	m.Decide(visible(now, 3.0))
	d := m.Decide(visible(now.Add(4*time.Second), 3.0))
	assert.Equal(t, CmdUnlock, d.Cmd)
}

func TestExactBoundaryDoesNotLock(t *testing.T) {
	now := time.Now()
	m := syncedMachine(t, testPolicy(), now)
	now = unlock(t, m, now, 2.0)

	// Exactly threshold+margin is not beyond it.
	d := m.Decide(visible(now.Add(2*time.Second), 4.0))
	assert.Equal(t, CmdNone, d.Cmd)
}
