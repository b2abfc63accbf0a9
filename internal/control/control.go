// Package control drives the gimbal toward a commanded angle pair. The
// per-cycle law lives in Step, a pure function over an explicit state
// machine, so it is testable without any actuator I/O; Controller wraps it
// with the feedback/actuator plumbing and the periodic loop.
package control

import (
	"errors"
	"math"

	"github.com/skyward-uas/gimbal-director/internal/geo"
	"github.com/skyward-uas/gimbal-director/pkg/core"
)

// ErrActuatorStuck is surfaced when recovery gives up after its bounded
// attempt count. The operator layer decides what happens next.
var ErrActuatorStuck = errors.New("actuator stuck at mechanical limit")

// State enumerates the control state machine.
type State int

const (
	// StateIdle means no outstanding command.
	StateIdle State = iota
	// StateTracking means moving toward the target.
	StateTracking
	// StateDecelerating means inside the near-target band.
	StateDecelerating
	// StateLimitGuard means motion is being clamped near a mechanical bound.
	StateLimitGuard
	// StateRecovering means a stuck condition was detected and a forceful
	// escape command is active.
	StateRecovering
	// StateConverged means both errors are inside tolerance, holding.
	StateConverged
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateTracking:
		return "tracking"
	case StateDecelerating:
		return "decelerating"
	case StateLimitGuard:
		return "limit_guard"
	case StateRecovering:
		return "recovering"
	case StateConverged:
		return "converged"
	default:
		return "unknown"
	}
}

// Config tunes the control law. All angles in degrees, speeds in actuator
// velocity units.
type Config struct {
	// MaxSpeed is the actuator velocity clamp for proportional commands.
	MaxSpeed float64
	// FullScaleDeg is the error magnitude that maps to MaxSpeed.
	FullScaleDeg float64
	// DecelBandDeg is the near-target band where speed is scaled down.
	DecelBandDeg float64
	// DecelFloorFrac is the scale applied at zero remaining error; the scale
	// rises linearly to 1 at the band edge.
	DecelFloorFrac float64
	// GuardBandDeg is the distance from a pitch bound where motion further
	// into the bound is clamped.
	GuardBandDeg float64
	// GuardCeilFrac caps speed inside the guard band, as a fraction of
	// MaxSpeed.
	GuardCeilFrac float64
	// MinSpeed is forced when the quantized speed rounds to zero but the
	// error still exceeds MinErrDeg.
	MinSpeed float64
	// MinErrDeg is the smallest error still worth moving for.
	MinErrDeg float64
	// ConvergedDeg is the tolerance below which both axes count as arrived.
	ConvergedDeg float64
	// PitchMin and PitchMax are the mechanical pitch bounds.
	PitchMin float64
	PitchMax float64
	// StuckErrDeg and StuckCycles define stuck detection: error above
	// StuckErrDeg while pitch sits at a bound, for StuckCycles consecutive
	// cycles.
	StuckErrDeg float64
	StuckCycles int
	// RecoverySpeed is the forceful escape speed magnitude.
	RecoverySpeed float64
	// RecoveryMoveDeg is the pitch movement that counts as escaped.
	RecoveryMoveDeg float64
	// MaxRecoveryAttempts bounds recovery before ErrActuatorStuck.
	MaxRecoveryAttempts int
	// InvertPitch flips the pitch speed sign for actuators where a negative
	// speed moves the camera up. Verify against the physical hardware:
	// the wrong sign turns the loop into positive feedback.
	InvertPitch bool
}

// DefaultConfig returns the tuning validated against the SIYI actuator.
func DefaultConfig() Config {
	return Config{
		MaxSpeed:            80,
		FullScaleDeg:        90,
		DecelBandDeg:        10,
		DecelFloorFrac:      0.4,
		GuardBandDeg:        5,
		GuardCeilFrac:       0.2,
		MinSpeed:            5,
		MinErrDeg:           1,
		ConvergedDeg:        2,
		PitchMin:            -90,
		PitchMax:            90,
		StuckErrDeg:         10,
		StuckCycles:         3,
		RecoverySpeed:       100,
		RecoveryMoveDeg:     2,
		MaxRecoveryAttempts: 5,
		InvertPitch:         true,
	}
}

// Status is the state carried between cycles: the machine state, the stuck
// counter and any active recovery. Everything else is recomputed per cycle.
type Status struct {
	State       State
	Recovery    core.RecoveryState
	StuckCycles int
	// RecoveryFromPitch is the reported pitch when recovery began, used to
	// detect measurable escape.
	RecoveryFromPitch float64
	// YawErrDeg and PitchErrDeg are the tracking errors measured on the most
	// recent cycle, commanded minus reported, for telemetry export.
	YawErrDeg   float64
	PitchErrDeg float64
}

// Step runs one control cycle. It compares the commanded angles against the
// actuator's reported current angles, never against a previous command;
// comparing commanded to commanded hides a stalled actuator behind a false
// converged reading. Returns the new status and the velocity command; the
// error is non-nil only when recovery has exhausted its attempts.
func Step(st Status, commanded, current core.GimbalAngles, cfg Config) (Status, core.ControlCommand, error) {
	yawErr := geo.YawDelta(commanded.Yaw, current.Yaw)
	pitchErr := commanded.Pitch - current.Pitch
	st.YawErrDeg = yawErr
	st.PitchErrDeg = pitchErr

	if st.State == StateRecovering {
		return stepRecovery(st, current, cfg)
	}

	// Stuck detection: pitch pinned at a bound with a large outstanding
	// error, persisting across cycles.
	if math.Abs(current.Pitch) >= math.Min(-cfg.PitchMin, cfg.PitchMax) &&
		math.Abs(pitchErr) > cfg.StuckErrDeg {
		st.StuckCycles++
		if st.StuckCycles >= cfg.StuckCycles {
			st.State = StateRecovering
			st.Recovery = core.RecoveryState{
				Active:    true,
				Reason:    "pitch pinned at mechanical limit",
				StartedAt: current.Time,
				Attempts:  0,
			}
			st.RecoveryFromPitch = current.Pitch
			return stepRecovery(st, current, cfg)
		}
	} else {
		st.StuckCycles = 0
	}

	if math.Abs(yawErr) < cfg.ConvergedDeg && math.Abs(pitchErr) < cfg.ConvergedDeg {
		st.State = StateConverged
		return st, core.ControlCommand{}, nil
	}

	yawSpeed := axisSpeed(yawErr, cfg)
	pitchSpeed := axisSpeed(pitchErr, cfg)

	// Limit guard: clamp motion that pushes further into a pitch bound.
	guarded := false
	if (current.Pitch >= cfg.PitchMax-cfg.GuardBandDeg && pitchErr > 0) ||
		(current.Pitch <= cfg.PitchMin+cfg.GuardBandDeg && pitchErr < 0) {
		ceil := cfg.MaxSpeed * cfg.GuardCeilFrac
		pitchSpeed = geo.Clamp(pitchSpeed, -ceil, ceil)
		guarded = true
	}

	cmd := core.ControlCommand{
		YawSpeed:   quantize(yawSpeed, yawErr, cfg),
		PitchSpeed: quantize(pitchSpeed, pitchErr, cfg),
	}
	if cfg.InvertPitch {
		cmd.PitchSpeed = -cmd.PitchSpeed
	}

	switch {
	case guarded:
		st.State = StateLimitGuard
	case math.Abs(yawErr) < cfg.DecelBandDeg && math.Abs(pitchErr) < cfg.DecelBandDeg:
		st.State = StateDecelerating
	default:
		st.State = StateTracking
	}
	return st, cmd, nil
}

// stepRecovery issues the forceful escape command or gives up.
func stepRecovery(st Status, current core.GimbalAngles, cfg Config) (Status, core.ControlCommand, error) {
	if math.Abs(current.Pitch-st.RecoveryFromPitch) >= cfg.RecoveryMoveDeg {
		// Escaped the limit; normal law resumes next cycle.
		st.State = StateTracking
		st.Recovery = core.RecoveryState{}
		st.StuckCycles = 0
		return st, core.ControlCommand{}, nil
	}
	if st.Recovery.Attempts >= cfg.MaxRecoveryAttempts {
		st.State = StateIdle
		st.Recovery.Active = false
		st.StuckCycles = 0
		return st, core.ControlCommand{}, ErrActuatorStuck
	}
	st.Recovery.Attempts++

	// Drive strictly away from the limit, ignoring the proportional law.
	speed := cfg.RecoverySpeed
	if current.Pitch > 0 {
		speed = -speed
	}
	cmd := core.ControlCommand{PitchSpeed: int(math.Round(speed))}
	if cfg.InvertPitch {
		cmd.PitchSpeed = -cmd.PitchSpeed
	}
	return st, cmd, nil
}

// axisSpeed is the proportional law with the deceleration band applied.
// Positive error yields positive speed; polarity inversion happens at the
// command boundary.
func axisSpeed(err float64, cfg Config) float64 {
	mag := math.Abs(err) / cfg.FullScaleDeg * cfg.MaxSpeed
	if mag > cfg.MaxSpeed {
		mag = cfg.MaxSpeed
	}
	if math.Abs(err) < cfg.DecelBandDeg {
		scale := cfg.DecelFloorFrac + (1-cfg.DecelFloorFrac)*math.Abs(err)/cfg.DecelBandDeg
		mag *= scale
	}
	return math.Copysign(mag, err)
}

// quantize rounds a speed to the actuator's integer steps, forcing the
// minimum floor when rounding would stall a still-outstanding move.
func quantize(speed, err float64, cfg Config) int {
	q := int(math.Round(speed))
	if q == 0 && math.Abs(err) > cfg.MinErrDeg {
		q = int(math.Round(math.Copysign(cfg.MinSpeed, err)))
	}
	return q
}
