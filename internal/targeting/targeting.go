// Package targeting orchestrates the geodesy, attitude and solver components
// into the two inverse operations of the system: gimbal angles to a ground
// coordinate (forward) and a coordinate to commanded gimbal angles (reverse).
package targeting

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/skyward-uas/gimbal-director/internal/attitude"
	"github.com/skyward-uas/gimbal-director/internal/geo"
	"github.com/skyward-uas/gimbal-director/internal/solver"
	"github.com/skyward-uas/gimbal-director/pkg/core"
)

// Config tunes the recompute throttle.
type Config struct {
	// MinInterval is the shortest spacing between solves.
	MinInterval time.Duration
	// MaxStaleness forces a solve regardless of angle movement.
	MaxStaleness time.Duration
	// MinChangeDeg skips a solve when neither angle moved this much.
	MinChangeDeg float64
}

// DefaultConfig returns the flight throttle tuning.
func DefaultConfig() Config {
	return Config{
		MinInterval:  100 * time.Millisecond,
		MaxStaleness: 2 * time.Second,
		MinChangeDeg: 0.1,
	}
}

// Engine computes forward and reverse targeting solutions and throttles the
// periodic forward recompute. Safe for concurrent use.
type Engine struct {
	solver *solver.Solver
	cfg    Config
	log    *slog.Logger

	limiter *rate.Limiter

	mu         sync.RWMutex
	lastResult core.TargetResult
	hasResult  bool
	lastAngles core.GimbalAngles
	lastSolve  time.Time
}

// NewEngine creates an Engine over the given solver.
func NewEngine(s *solver.Solver, cfg Config, log *slog.Logger) *Engine {
	if cfg.MinInterval <= 0 {
		cfg = DefaultConfig()
	}
	if log == nil {
		log = slog.Default()
	}
	return &Engine{
		solver:  s,
		cfg:     cfg,
		log:     log,
		limiter: rate.NewLimiter(rate.Every(cfg.MinInterval), 1),
	}
}

// ComputeForward resolves the current gimbal pointing into a TargetResult.
// The aircraft heading acts as the body yaw, so the raw gimbal yaw is
// effectively corrected by the heading before the ray is cast. Gimbal pitch
// below -90 means the sensor is looking backward over the top; the angles are
// reflected through the vertical before rotation.
func (e *Engine) ComputeForward(ctx context.Context, state core.AircraftState, gimbal core.GimbalAngles) core.TargetResult {
	gimbal = reflectOverVertical(gimbal)

	body := state
	body.Yaw = state.Heading

	v := attitude.PointingVector(gimbal, body)
	return e.solver.Solve(ctx, state.Position, v)
}

// ComputeReverse returns the gimbal angles that point at target from the
// given aircraft state. Yaw is gimbal-relative (heading subtracted) and pitch
// is positive-down. AGL altitudes on either side are lifted onto the terrain
// before differencing so both ends sit in the same vertical reference.
func (e *Engine) ComputeReverse(ctx context.Context, state core.AircraftState, target core.GeoPosition) (core.GimbalAngles, error) {
	if err := state.Position.Validate(); err != nil {
		return core.GimbalAngles{}, err
	}
	if err := target.Validate(); err != nil {
		return core.GimbalAngles{}, err
	}

	bearing := geo.Bearing(state.Position.Latitude, state.Position.Longitude,
		target.Latitude, target.Longitude)
	dist2D := geo.Distance(state.Position.Latitude, state.Position.Longitude,
		target.Latitude, target.Longitude)
	altDiff := e.altitudeAMSL(ctx, state.Position) - e.altitudeAMSL(ctx, target)

	pitch := math.Atan2(altDiff, dist2D) * 180 / math.Pi
	yaw := geo.Wrap360(bearing - state.Heading)

	return core.GimbalAngles{Pitch: pitch, Yaw: yaw, Time: time.Now()}, nil
}

// altitudeAMSL lifts an AGL altitude by the terrain height beneath it. AMSL
// positions pass through; a failed elevation lookup falls back to sea level,
// the same degradation the forward solver applies.
func (e *Engine) altitudeAMSL(ctx context.Context, p core.GeoPosition) float64 {
	if p.AltRef != core.AGL {
		return p.Altitude
	}
	ground, err := e.solver.GroundElevation(ctx, p.Latitude, p.Longitude)
	if err != nil {
		e.log.Warn("elevation lookup failed in reverse solve, assuming sea level",
			"lat", p.Latitude, "lon", p.Longitude, "error", err)
		ground = 0
	}
	return ground + p.Altitude
}

// Update runs the throttled periodic forward recompute. It returns the most
// recent result and whether a fresh solve actually ran this call.
func (e *Engine) Update(ctx context.Context, state core.AircraftState, gimbal core.GimbalAngles) (core.TargetResult, bool) {
	if !e.shouldRecompute(gimbal) {
		e.mu.RLock()
		defer e.mu.RUnlock()
		return e.lastResult, false
	}

	res := e.ComputeForward(ctx, state, gimbal)
	if res.Degraded {
		e.log.Warn("target solve degraded to flat-ground fallback",
			"lat", res.Position.Latitude, "lon", res.Position.Longitude)
	}

	e.mu.Lock()
	e.lastResult = res
	e.hasResult = true
	e.lastAngles = gimbal
	e.lastSolve = time.Now()
	e.mu.Unlock()
	return res, true
}

// LastResult returns the most recent solve, if any.
func (e *Engine) LastResult() (core.TargetResult, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.lastResult, e.hasResult
}

func (e *Engine) shouldRecompute(gimbal core.GimbalAngles) bool {
	e.mu.RLock()
	hasResult := e.hasResult
	lastAngles := e.lastAngles
	lastSolve := e.lastSolve
	e.mu.RUnlock()

	if !hasResult {
		return e.limiter.Allow()
	}
	if time.Since(lastSolve) >= e.cfg.MaxStaleness {
		return true
	}

	dYaw := math.Abs(geo.YawDelta(gimbal.Yaw, lastAngles.Yaw))
	dPitch := math.Abs(gimbal.Pitch - lastAngles.Pitch)
	if dYaw < e.cfg.MinChangeDeg && dPitch < e.cfg.MinChangeDeg {
		return false
	}
	return e.limiter.Allow()
}

// reflectOverVertical folds a pitch beyond straight-up into the nominal range
// by flipping yaw 180. A reported pitch of -95 is the same ray as pitch -85
// looking the other way.
func reflectOverVertical(g core.GimbalAngles) core.GimbalAngles {
	if g.Pitch >= -90 {
		return g
	}
	g.Pitch = -180 - g.Pitch
	g.Yaw = geo.Wrap360(g.Yaw + 180)
	return g
}
