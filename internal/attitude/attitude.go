// Package attitude composes gimbal-frame and aircraft-body-frame rotations
// into an Earth-NED pointing vector. Rotation order follows the aerospace ZYX
// Euler convention (yaw outermost), with the gimbal boresight defined as the
// forward axis (1,0,0) of the gimbal frame.
package attitude

import (
	"math"

	"github.com/skyward-uas/gimbal-director/pkg/core"
)

// Matrix is a 3x3 rotation matrix in row-major order.
type Matrix [3][3]float64

// Mul returns m*n.
func (m Matrix) Mul(n Matrix) Matrix {
	var out Matrix
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			for k := 0; k < 3; k++ {
				out[i][j] += m[i][k] * n[k][j]
			}
		}
	}
	return out
}

// Apply rotates the vector (x,y,z) by m.
func (m Matrix) Apply(x, y, z float64) (float64, float64, float64) {
	return m[0][0]*x + m[0][1]*y + m[0][2]*z,
		m[1][0]*x + m[1][1]*y + m[1][2]*z,
		m[2][0]*x + m[2][1]*y + m[2][2]*z
}

// RotX is the elementary rotation about the body X (roll) axis. Input in
// radians.
func RotX(a float64) Matrix {
	s, c := math.Sincos(a)
	return Matrix{
		{1, 0, 0},
		{0, c, -s},
		{0, s, c},
	}
}

// RotY is the elementary rotation about the body Y (pitch) axis. Input in
// radians.
func RotY(a float64) Matrix {
	s, c := math.Sincos(a)
	return Matrix{
		{c, 0, s},
		{0, 1, 0},
		{-s, 0, c},
	}
}

// RotZ is the elementary rotation about the body Z (yaw) axis. Input in
// radians.
func RotZ(a float64) Matrix {
	s, c := math.Sincos(a)
	return Matrix{
		{c, -s, 0},
		{s, c, 0},
		{0, 0, 1},
	}
}

// FromEulerZYX builds the body-to-Earth rotation for roll/pitch/yaw in
// degrees, composed yaw-outermost: R = Rz(yaw) * Ry(pitch) * Rx(roll).
func FromEulerZYX(rollDeg, pitchDeg, yawDeg float64) Matrix {
	return RotZ(radians(yawDeg)).Mul(RotY(radians(pitchDeg)).Mul(RotX(radians(rollDeg))))
}

// PointingVector maps gimbal angles and aircraft attitude to a unit pointing
// vector in the Earth NED frame. Gimbal pitch is positive-down per the sensor
// convention, so the boresight is first depressed by -pitch about Y and slewed
// by yaw about Z, then rotated through the aircraft attitude. The result has
// unit norm to within 1e-9 by construction; NormError exists for tests.
func PointingVector(gimbal core.GimbalAngles, aircraft core.AircraftState) core.PointingVector {
	// Boresight in the gimbal frame.
	x, y, z := 1.0, 0.0, 0.0

	// Gimbal pitch is positive-down while RotY depresses for negative angles,
	// so the gimbal elevation rotation is RotY(-pitch).
	gimbalRot := RotZ(radians(gimbal.Yaw)).Mul(RotY(radians(-gimbal.Pitch)))
	x, y, z = gimbalRot.Apply(x, y, z)

	// Body to Earth.
	bodyRot := FromEulerZYX(aircraft.Roll, aircraft.Pitch, aircraft.Yaw)
	n, e, d := bodyRot.Apply(x, y, z)

	return core.PointingVector{North: n, East: e, Down: d}
}

// NormError returns |1 - ||v|||, the deviation of v from unit length.
func NormError(v core.PointingVector) float64 {
	return math.Abs(1 - math.Sqrt(v.North*v.North+v.East*v.East+v.Down*v.Down))
}

func radians(deg float64) float64 { return deg * math.Pi / 180 }
