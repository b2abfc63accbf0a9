package gimbal

import (
	"context"
	"sync"
	"time"

	"github.com/skyward-uas/gimbal-director/internal/geo"
	"github.com/skyward-uas/gimbal-director/pkg/core"
)

// Sim is a deterministic gimbal for tests and bench runs. It integrates the
// last velocity command over explicit Advance calls using the hardware sign
// convention: positive pitch speed moves the camera down (toward the lower
// pitch bound), positive yaw speed moves clockwise.
type Sim struct {
	mu    sync.Mutex
	pitch float64
	yaw   float64
	cmd   core.ControlCommand

	// DegPerSecPerUnit converts a velocity unit to angular rate.
	DegPerSecPerUnit float64
	// PitchMin and PitchMax are the mechanical stops.
	PitchMin, PitchMax float64
	// Stuck freezes all motion, for stuck-actuator scenarios.
	Stuck bool
}

// NewSim starts level at yaw 0.
func NewSim() *Sim {
	return &Sim{
		DegPerSecPerUnit: 0.5,
		PitchMin:         -90,
		PitchMax:         90,
	}
}

// SetVelocity records the command applied by subsequent Advance calls.
func (s *Sim) SetVelocity(ctx context.Context, cmd core.ControlCommand) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cmd = cmd
	return nil
}

// CurrentAngles reports the simulated orientation.
func (s *Sim) CurrentAngles(ctx context.Context) (core.GimbalAngles, error) {
	if err := ctx.Err(); err != nil {
		return core.GimbalAngles{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return core.GimbalAngles{Pitch: s.pitch, Yaw: s.yaw, Time: time.Now()}, nil
}

// Advance integrates the active command over dt.
func (s *Sim) Advance(dt time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Stuck {
		return
	}
	sec := dt.Seconds()
	s.yaw = geo.Wrap360(s.yaw + float64(s.cmd.YawSpeed)*s.DegPerSecPerUnit*sec)
	// Positive pitch speed drives toward the lower stop.
	s.pitch = geo.Clamp(s.pitch-float64(s.cmd.PitchSpeed)*s.DegPerSecPerUnit*sec,
		s.PitchMin, s.PitchMax)
}

// SetAngles forces the simulated orientation, for test setup.
func (s *Sim) SetAngles(pitch, yaw float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pitch = geo.Clamp(pitch, s.PitchMin, s.PitchMax)
	s.yaw = geo.Wrap360(yaw)
}
