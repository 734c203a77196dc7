package door

import (
	"log/slog"
	"time"
)

// Policy holds the decision parameters for the proximity state machine.
type Policy struct {
	ThresholdFeet   float64
	MarginFeet      float64
	MinDwell        time.Duration
	AutoLockTimeout time.Duration
	FailSafe        bool
}

// Input is one decision cycle's view of the world.
type Input struct {
	Now time.Time
	// MinDistanceFeet is the nearest visible beacon's estimated distance,
	// +Inf when none are visible.
	MinDistanceFeet float64
	BeaconVisible   bool
	ScannerHealthy  bool
}

// Command is what the state machine wants done to the door this cycle.
type Command int

const (
	CmdNone Command = iota
	CmdLock
	CmdUnlock
)

func (c Command) String() string {
	switch c {
	case CmdLock:
		return "lock"
	case CmdUnlock:
		return "unlock"
	default:
		return "none"
	}
}

// Decision pairs a command with the rule that produced it, for logging.
type Decision struct {
	Cmd    Command
	Reason string
}

// Machine decides when the door locks and unlocks. It owns the logical
// DoorState exclusively: the engine calls Decide once per cycle, applies the
// command, and reports the outcome via Record. Not safe for concurrent use;
// the single-threaded decision loop is what keeps DoorState race-free.
type Machine struct {
	policy Policy
	state  LockState

	// dwellStart marks when the current qualifying streak began; zero when
	// no streak is running.
	dwellStart time.Time
	// autoLockAt is the sliding deadline after which an unlocked door
	// relocks. Refreshed on every qualifying reading.
	autoLockAt time.Time
	// synced is false while the actuator has not acknowledged the last
	// intended state. Starts false so the first cycle asserts a lock.
	synced bool

	log *slog.Logger
}

// NewMachine creates a machine in the Locked fail-safe default.
func NewMachine(policy Policy, log *slog.Logger) *Machine {
	return &Machine{
		policy: policy,
		state:  Locked,
		log:    log,
	}
}

// State returns the current logical door state.
func (m *Machine) State() LockState { return m.state }

// Synced reports whether the actuator has acknowledged the current state.
func (m *Machine) Synced() bool { return m.synced }

// AutoLockDeadline returns the current auto-lock deadline, zero when locked.
func (m *Machine) AutoLockDeadline() time.Time { return m.autoLockAt }

// Decide evaluates one cycle. It never issues a command and assumes success;
// the engine must call Record with the actuator outcome before the next
// Decide.
func (m *Machine) Decide(in Input) Decision {
	// Unlocks are only ever granted on live data from a healthy radio.
	qualifying := in.BeaconVisible && in.ScannerHealthy &&
		in.MinDistanceFeet <= m.policy.ThresholdFeet
	degraded := m.policy.FailSafe && !in.ScannerHealthy

	if m.state == Unlocked {
		return m.decideUnlocked(in, qualifying, degraded)
	}
	return m.decideLocked(in, qualifying)
}

func (m *Machine) decideLocked(in Input, qualifying bool) Decision {
	// A failed unlock attempt leaves the physical door in doubt. In
	// fail-safe mode re-assert the lock before considering another unlock.
	if !m.synced && m.policy.FailSafe {
		return Decision{Cmd: CmdLock, Reason: "fail-safe: reassert lock"}
	}

	if qualifying {
		if m.dwellStart.IsZero() {
			m.dwellStart = in.Now
		}
		if in.Now.Sub(m.dwellStart) >= m.policy.MinDwell {
			return Decision{Cmd: CmdUnlock, Reason: "beacon within threshold"}
		}
		return Decision{Cmd: CmdNone, Reason: "dwell pending"}
	}
	m.dwellStart = time.Time{}

	if !m.synced {
		return Decision{Cmd: CmdLock, Reason: "reassert lock"}
	}
	return Decision{Cmd: CmdNone}
}

func (m *Machine) decideUnlocked(in Input, qualifying, degraded bool) Decision {
	switch {
	case degraded:
		return Decision{Cmd: CmdLock, Reason: "fail-safe: scanner degraded"}
	case !in.BeaconVisible:
		// Advertisements stopped and the silence window evicted the
		// beacon. Stronger signal than any distance reading.
		return Decision{Cmd: CmdLock, Reason: "beacon gone"}
	case !in.Now.Before(m.autoLockAt):
		return Decision{Cmd: CmdLock, Reason: "auto-lock timeout"}
	case in.MinDistanceFeet > m.policy.ThresholdFeet+m.policy.MarginFeet:
		return Decision{Cmd: CmdLock, Reason: "beacon out of range"}
	}

	if qualifying {
		// Sliding timeout: a qualifying beacon keeps the door open.
		m.autoLockAt = in.Now.Add(m.policy.AutoLockTimeout)
	}

	if !m.synced && m.policy.FailSafe {
		return Decision{Cmd: CmdLock, Reason: "fail-safe: actuator out of sync"}
	}
	return Decision{Cmd: CmdNone}
}

// Record applies the actuator outcome of a command. On failure the logical
// state is unchanged so the intent is retried, and the machine is marked out
// of sync with the physical door.
func (m *Machine) Record(cmd Command, now time.Time, err error) {
	switch cmd {
	case CmdUnlock:
		if err != nil {
			m.synced = false
			m.log.Error("unlock command failed, door state uncertain", "error", err)
			return
		}
		m.state = Unlocked
		m.synced = true
		m.dwellStart = time.Time{}
		m.autoLockAt = now.Add(m.policy.AutoLockTimeout)
		m.log.Info("door unlocked", "auto_lock_at", m.autoLockAt)

	case CmdLock:
		if err != nil {
			m.synced = false
			m.log.Error("lock command failed, door state uncertain", "error", err)
			return
		}
		m.state = Locked
		m.synced = true
		m.dwellStart = time.Time{}
		m.autoLockAt = time.Time{}
		m.log.Info("door locked")
	}
}
