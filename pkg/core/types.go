// Package core holds the shared value types exchanged between the targeting
// engine, the control loop and their collaborators. Everything here is a plain
// immutable value; components pass copies, never shared pointers.
package core

import (
	"errors"
	"fmt"
	"time"
)

// AltitudeReference says what a GeoPosition's altitude is measured against.
type AltitudeReference string

const (
	// AGL is altitude above ground level.
	AGL AltitudeReference = "AGL"
	// AMSL is altitude above mean sea level.
	AMSL AltitudeReference = "AMSL"
)

// ErrInvalidPosition is returned when latitude/longitude are outside their
// legal ranges.
var ErrInvalidPosition = errors.New("invalid geographic position")

// ErrInvalidAngles is returned when caller-supplied gimbal angles are outside
// their legal ranges.
var ErrInvalidAngles = errors.New("invalid gimbal angles")

// GeoPosition is a WGS84 geographic position.
// Invariant: -90 <= Latitude <= 90, -180 < Longitude <= 180.
type GeoPosition struct {
	Latitude  float64           `json:"lat"`
	Longitude float64           `json:"lon"`
	Altitude  float64           `json:"alt"`
	AltRef    AltitudeReference `json:"altRef"`
}

// Validate checks the position invariants.
func (p GeoPosition) Validate() error {
	if p.Latitude < -90 || p.Latitude > 90 {
		return fmt.Errorf("%w: latitude %.6f out of [-90,90]", ErrInvalidPosition, p.Latitude)
	}
	if p.Longitude <= -180 || p.Longitude > 180 {
		return fmt.Errorf("%w: longitude %.6f out of (-180,180]", ErrInvalidPosition, p.Longitude)
	}
	return nil
}

// AircraftState is one telemetry snapshot of the carrier aircraft. The core
// only ever reads the most recent snapshot, it never mutates one.
type AircraftState struct {
	Position GeoPosition `json:"position"`
	Heading  float64     `json:"heading"` // [0,360)
	Roll     float64     `json:"roll"`
	Pitch    float64     `json:"pitch"`
	Yaw      float64     `json:"yaw"`
	Time     time.Time   `json:"time"`
}

// GimbalAngles is a commanded or reported gimbal orientation.
// Pitch in [-90,90], Yaw in [0,360).
type GimbalAngles struct {
	Pitch float64   `json:"pitch"`
	Yaw   float64   `json:"yaw"`
	Time  time.Time `json:"time"`
}

// Validate checks the angle invariants for caller-supplied commands.
func (a GimbalAngles) Validate() error {
	if a.Pitch < -90 || a.Pitch > 90 {
		return fmt.Errorf("%w: pitch %.2f out of [-90,90]", ErrInvalidAngles, a.Pitch)
	}
	if a.Yaw < 0 || a.Yaw >= 360 {
		return fmt.Errorf("%w: yaw %.2f out of [0,360)", ErrInvalidAngles, a.Yaw)
	}
	return nil
}

// PointingVector is a unit 3-vector in the Earth NED frame.
type PointingVector struct {
	North float64 `json:"n"`
	East  float64 `json:"e"`
	Down  float64 `json:"d"`
}

// TargetClass classifies where a solved ray ends up.
type TargetClass string

const (
	ClassGround  TargetClass = "ground"
	ClassSky     TargetClass = "sky"
	ClassHorizon TargetClass = "horizon"
)

// TargetResult is the output of one ray-terrain solve.
type TargetResult struct {
	Position   GeoPosition `json:"position"`
	Distance2D float64     `json:"distance2d"` // meters over ground
	Distance3D float64     `json:"distance3d"` // slant range, meters
	ErrorM     float64     `json:"errorM"`     // residual vertical discrepancy
	Iterations int         `json:"iterations"`
	Class      TargetClass `json:"class"`
	Converged  bool        `json:"converged"` // false = best-effort estimate
	Degraded   bool        `json:"degraded"`  // elevation provider unavailable
	Note       string      `json:"note,omitempty"`
	Time       time.Time   `json:"time"`
}

// Valid reports whether the result is usable as a target coordinate at all.
// Estimate-only ground results are still valid; only an empty result is not.
func (r TargetResult) Valid() bool {
	return r.Class != ""
}

// ControlCommand is one velocity command for the actuator, each axis in the
// actuator's signed speed range (typically [-100,100]).
type ControlCommand struct {
	YawSpeed   int `json:"yawSpeed"`
	PitchSpeed int `json:"pitchSpeed"`
}

// IsHold reports whether the command stops all motion.
func (c ControlCommand) IsHold() bool {
	return c.YawSpeed == 0 && c.PitchSpeed == 0
}

// RecoveryState tracks an in-progress stuck-actuator recovery. Owned
// exclusively by the control loop.
type RecoveryState struct {
	Active    bool      `json:"active"`
	Reason    string    `json:"reason,omitempty"`
	StartedAt time.Time `json:"startedAt,omitempty"`
	Attempts  int       `json:"attempts"`
}
