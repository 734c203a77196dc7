package door

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flakyActuator fails until told otherwise and counts calls.
type flakyActuator struct {
	fail  bool
	calls int
	state LockState
}

func (a *flakyActuator) SetLockState(_ context.Context, state LockState) error {
	a.calls++
	if a.fail {
		return errors.New("accessory timeout")
	}
	a.state = state
	return nil
}

func (a *flakyActuator) LockState(_ context.Context) (LockState, error) {
	a.calls++
	if a.fail {
		return Locked, ErrStateUnknown
	}
	return a.state, nil
}

func testBreakerSettings() BreakerSettings {
	return BreakerSettings{
		MaxFailures: 3,
		Timeout:     time.Minute,
		Interval:    time.Hour,
	}
}

func TestBreakerPassesThroughSuccess(t *testing.T) {
	inner := &flakyActuator{}
	b := NewBreakerActuator(inner, testBreakerSettings(), testLogger())

	require.NoError(t, b.SetLockState(context.Background(), Unlocked))
	state, err := b.LockState(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Unlocked, state)
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	inner := &flakyActuator{fail: true}
	b := NewBreakerActuator(inner, testBreakerSettings(), testLogger())

	for i := 0; i < 3; i++ {
		assert.Error(t, b.SetLockState(context.Background(), Locked))
	}
	require.Equal(t, 3, inner.calls)

	// Circuit is open: calls fail fast without reaching the accessory,
	// and the sentinel survives the wrap for errors.Is callers.
	err := b.SetLockState(context.Background(), Locked)
	assert.ErrorContains(t, err, "circuit open")
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, 3, inner.calls)

	_, err = b.LockState(context.Background())
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, 3, inner.calls)
}

func TestBreakerRecoversAfterSuccess(t *testing.T) {
	inner := &flakyActuator{fail: true}
	b := NewBreakerActuator(inner, BreakerSettings{
		MaxFailures: 2,
		Timeout:     10 * time.Millisecond,
		Interval:    time.Hour,
	}, testLogger())

	assert.Error(t, b.SetLockState(context.Background(), Locked))
	assert.Error(t, b.SetLockState(context.Background(), Locked))

	// Half-open after the timeout; the probe succeeds and closes it.
	inner.fail = false
	time.Sleep(20 * time.Millisecond)
	assert.NoError(t, b.SetLockState(context.Background(), Locked))
	assert.NoError(t, b.SetLockState(context.Background(), Unlocked))
	assert.Equal(t, Unlocked, inner.state)
}
