// Package solver intersects a pointing ray from the aircraft with the ground.
// The intersection is iterative: flat-ground first guess, then bounded
// proportional refinement against the elevation provider. Rays that do not
// descend are projected to a fixed horizon distance instead.
package solver

import (
	"context"
	"math"
	"time"

	"github.com/skyward-uas/gimbal-director/internal/geo"
	"github.com/skyward-uas/gimbal-director/internal/terrain"
	"github.com/skyward-uas/gimbal-director/pkg/core"
)

// descentEpsilon separates descending rays from level/ascending ones. A down
// component at or below this is treated as never reaching the ground.
const descentEpsilon = 1e-6

// Config bounds the solver iteration and its degraded fallbacks.
type Config struct {
	// MaxIterations bounds the terrain refinement loop.
	MaxIterations int
	// ToleranceM is the vertical discrepancy below which the solve is
	// considered converged, in meters.
	ToleranceM float64
	// MaxDistanceM caps the horizontal projection distance for both the
	// sky/horizon case and runaway shallow-ray ground solves, in meters.
	MaxDistanceM float64
	// MinAGLM substitutes for non-positive origin altitudes in the ray-cast
	// math, in meters. Reported distances still use the true altitude.
	MinAGLM float64
	// ElevationTimeout bounds each elevation provider call.
	ElevationTimeout time.Duration
}

// DefaultConfig returns the tuning used in flight.
func DefaultConfig() Config {
	return Config{
		MaxIterations:    10,
		ToleranceM:       0.5,
		MaxDistanceM:     5000,
		MinAGLM:          10,
		ElevationTimeout: 100 * time.Millisecond,
	}
}

// Solver finds the geographic point a pointing vector meets the terrain.
type Solver struct {
	terrain terrain.Provider
	cfg     Config
}

// New creates a Solver over the given elevation provider.
func New(p terrain.Provider, cfg Config) *Solver {
	if cfg.MaxIterations <= 0 {
		cfg = DefaultConfig()
	}
	return &Solver{terrain: p, cfg: cfg}
}

// Solve returns the TargetResult for a ray cast from origin along v. The
// origin altitude is interpreted as AGL over the terrain at the origin. Solve
// never returns an error: provider failures degrade to a flat-ground
// assumption and are flagged on the result.
func (s *Solver) Solve(ctx context.Context, origin core.GeoPosition, v core.PointingVector) core.TargetResult {
	now := time.Now()

	if v.Down <= descentEpsilon {
		return s.solveSky(ctx, origin, v, now)
	}
	return s.solveGround(ctx, origin, v, now)
}

// solveGround runs the bounded iterative refinement against the terrain.
func (s *Solver) solveGround(ctx context.Context, origin core.GeoPosition, v core.PointingVector, now time.Time) core.TargetResult {
	res := core.TargetResult{Class: core.ClassGround, Time: now}

	altAGL := origin.Altitude
	if altAGL <= 0 {
		altAGL = s.cfg.MinAGLM
		res.Note = "origin altitude at or below ground, ray cast from minimum height"
	}

	groundAtOrigin, err := s.elevation(ctx, origin.Latitude, origin.Longitude)
	if err != nil {
		groundAtOrigin = 0
		res.Degraded = true
	}
	originAMSL := groundAtOrigin + altAGL

	t := altAGL / v.Down
	var lat, lon, terrainH, discrepancy float64
	for i := 0; i < s.cfg.MaxIterations; i++ {
		res.Iterations = i + 1

		lat, lon = geo.NEDToGeodetic(origin.Latitude, origin.Longitude, v.North*t, v.East*t)
		rayAMSL := originAMSL - v.Down*t

		terrainH, err = s.elevation(ctx, lat, lon)
		if err != nil {
			terrainH = groundAtOrigin
			res.Degraded = true
		}

		discrepancy = rayAMSL - terrainH
		if math.Abs(discrepancy) < s.cfg.ToleranceM {
			res.Converged = true
			break
		}
		t += discrepancy / v.Down
		if t < 0 {
			t = 0
		}
	}

	res.ErrorM = math.Abs(discrepancy)
	res.Distance2D = math.Hypot(v.North*t, v.East*t)

	// Very shallow rays can land implausibly far out; cap and report an
	// estimate rather than a convergence.
	if res.Distance2D > s.cfg.MaxDistanceM {
		scale := s.cfg.MaxDistanceM / res.Distance2D
		t *= scale
		lat, lon = geo.NEDToGeodetic(origin.Latitude, origin.Longitude, v.North*t, v.East*t)
		if terrainH, err = s.elevation(ctx, lat, lon); err != nil {
			terrainH = groundAtOrigin
			res.Degraded = true
		}
		res.Distance2D = s.cfg.MaxDistanceM
		res.Converged = false
		res.Note = "shallow ray capped at maximum distance"
	}

	res.Position = core.GeoPosition{
		Latitude:  lat,
		Longitude: lon,
		Altitude:  terrainH,
		AltRef:    core.AMSL,
	}

	trueAMSL := groundAtOrigin + origin.Altitude
	res.Distance3D = math.Hypot(res.Distance2D, trueAMSL-terrainH)
	return res
}

// solveSky projects level and ascending rays to the maximum horizontal
// distance. The reported altitude follows the ray's slope out to that range.
func (s *Solver) solveSky(ctx context.Context, origin core.GeoPosition, v core.PointingVector, now time.Time) core.TargetResult {
	res := core.TargetResult{Class: core.ClassHorizon, Time: now}
	if v.Down < -descentEpsilon {
		res.Class = core.ClassSky
	}

	groundAtOrigin, err := s.elevation(ctx, origin.Latitude, origin.Longitude)
	if err != nil {
		groundAtOrigin = 0
		res.Degraded = true
	}
	originAMSL := groundAtOrigin + origin.Altitude

	h := math.Hypot(v.North, v.East)
	t := s.cfg.MaxDistanceM
	if h > descentEpsilon {
		t = s.cfg.MaxDistanceM / h
	}

	lat, lon := geo.NEDToGeodetic(origin.Latitude, origin.Longitude, v.North*t, v.East*t)
	alt := originAMSL - v.Down*t
	res.Distance2D = h * t

	res.Position = core.GeoPosition{
		Latitude:  lat,
		Longitude: lon,
		Altitude:  alt,
		AltRef:    core.AMSL,
	}
	res.Distance3D = math.Hypot(res.Distance2D, alt-originAMSL)
	return res
}

// GroundElevation reports the terrain height under a coordinate with the
// solver's per-query timeout applied. The reverse solve uses it so both
// directions difference altitudes against the same reference surface.
func (s *Solver) GroundElevation(ctx context.Context, lat, lon float64) (float64, error) {
	return s.elevation(ctx, lat, lon)
}

func (s *Solver) elevation(ctx context.Context, lat, lon float64) (float64, error) {
	qctx, cancel := context.WithTimeout(ctx, s.cfg.ElevationTimeout)
	defer cancel()
	return s.terrain.Elevation(qctx, lat, lon)
}
