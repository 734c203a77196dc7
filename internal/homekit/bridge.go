package homekit

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/brutella/hap"
	"github.com/brutella/hap/accessory"

	"doggydoor/internal/config"
	"doggydoor/internal/door"
)

// Bridge exposes the door lock as a HomeKit switch accessory and implements
// door.Actuator against it. The switch is also controllable from the home
// hub; a remote toggle is logged but the state machine's next decision
// still governs.
type Bridge struct {
	server *hap.Server
	sw     *accessory.Switch
	log    *slog.Logger
}

// NewBridge creates the accessory and its HAP server. The door starts
// locked (switch on).
func NewBridge(cfg config.HAPConfig, log *slog.Logger) (*Bridge, error) {
	sw := accessory.NewSwitch(accessory.Info{
		Name:         cfg.Name,
		Manufacturer: "doggydoor",
		Model:        "proximity-lock",
	})
	sw.Switch.On.SetValue(true)
	sw.Switch.On.OnValueRemoteUpdate(func(on bool) {
		state := door.Unlocked
		if on {
			state = door.Locked
		}
		log.Info("switch toggled from home hub", "state", state)
	})

	if err := os.MkdirAll(cfg.StateDir, 0700); err != nil {
		return nil, fmt.Errorf("hap state dir: %w", err)
	}

	server, err := hap.NewServer(hap.NewFsStore(cfg.StateDir), sw.A)
	if err != nil {
		return nil, fmt.Errorf("hap server: %w", err)
	}
	// HAP wants the bare 8-digit setup code.
	server.Pin = strings.ReplaceAll(cfg.Pin, "-", "")
	if cfg.Port != 0 {
		server.Addr = fmt.Sprintf(":%d", cfg.Port)
	}

	return &Bridge{server: server, sw: sw, log: log}, nil
}

// Serve runs the HAP server until ctx is cancelled.
func (b *Bridge) Serve(ctx context.Context) error {
	b.log.Info("hap bridge listening", "addr", b.server.Addr)
	if err := b.server.ListenAndServe(ctx); err != nil && ctx.Err() == nil {
		return fmt.Errorf("hap serve: %w", err)
	}
	return nil
}

// SetLockState implements door.Actuator.
func (b *Bridge) SetLockState(_ context.Context, state door.LockState) error {
	b.sw.Switch.On.SetValue(state == door.Locked)
	return nil
}

// LockState implements door.Actuator.
func (b *Bridge) LockState(_ context.Context) (door.LockState, error) {
	if b.sw.Switch.On.Value() {
		return door.Locked, nil
	}
	return door.Unlocked, nil
}

var _ door.Actuator = (*Bridge)(nil)
