// Package door owns the lock state of the doggy door. The state machine is
// the only component that mutates it; everything else observes.
package door

import (
	"context"
	"errors"
)

// LockState is the binary door state.
type LockState int

const (
	Locked LockState = iota
	Unlocked
)

func (s LockState) String() string {
	if s == Unlocked {
		return "UNLOCKED"
	}
	return "LOCKED"
}

// ErrStateUnknown is returned by Actuator.LockState when the accessory
// cannot report a current state.
var ErrStateUnknown = errors.New("door state unknown")

// Actuator is the two-method contract to the accessory-protocol server.
// Implementations must honor ctx deadlines; the engine bounds every call.
type Actuator interface {
	// SetLockState commands the door. An error means the physical door may
	// not match the requested state.
	SetLockState(ctx context.Context, state LockState) error
	// LockState reports the accessory's current state, best effort.
	LockState(ctx context.Context) (LockState, error)
}

// NopActuator acknowledges every command without touching hardware.
// Used in dry-run mode and tests.
type NopActuator struct {
	state LockState
}

// SetLockState implements Actuator.
func (a *NopActuator) SetLockState(_ context.Context, state LockState) error {
	a.state = state
	return nil
}

// LockState implements Actuator.
func (a *NopActuator) LockState(_ context.Context) (LockState, error) {
	return a.state, nil
}
