// Package director wires telemetry, targeting, control and session
// recording into the running service. It owns the frame conversion
// between the solver's depression frame (positive pitch is down) and
// the gimbal hardware frame (negative pitch is down).
package director

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/skyward-uas/gimbal-director/internal/control"
	"github.com/skyward-uas/gimbal-director/internal/geo"
	"github.com/skyward-uas/gimbal-director/internal/influx"
	"github.com/skyward-uas/gimbal-director/internal/session"
	"github.com/skyward-uas/gimbal-director/internal/status"
	"github.com/skyward-uas/gimbal-director/internal/targeting"
	"github.com/skyward-uas/gimbal-director/internal/telemetry"
	"github.com/skyward-uas/gimbal-director/pkg/core"
)

// hardware pitch commands are clamped just short of the mechanical
// limit so the limit guard engages before the axis pins.
const hardwarePitchMargin = 89.0

// Gimbal is the full hardware surface the director drives.
type Gimbal interface {
	control.Actuator
	control.Feedback
}

// Centerer is implemented by gimbals that support a recenter command.
type Centerer interface {
	Center(ctx context.Context) error
}

// Config tunes the director. The control cycle period is owned by the
// controller itself.
type Config struct {
	UpdateInterval time.Duration // targeting recompute cadence
	Session        session.Info
}

// DefaultConfig returns the production cadence.
func DefaultConfig() Config {
	return Config{
		UpdateInterval: 500 * time.Millisecond,
	}
}

// Director runs the targeting and control loops.
type Director struct {
	cfg        Config
	log        *slog.Logger
	tele       *telemetry.Manager
	engine     *targeting.Engine
	store      *targeting.Store
	controller *control.Controller
	gimbal     Gimbal
	backend    session.Backend
	influx     *influx.Manager // optional

	mu            sync.Mutex
	teleWasStale  bool
	lastCmd       core.ControlCommand
	lastCmdValid  bool
	queueLengther interface{ QueueLengths() map[string]int }
}

// New assembles a Director. influxMgr may be nil.
func New(cfg Config, tele *telemetry.Manager, engine *targeting.Engine, store *targeting.Store,
	controller *control.Controller, gim Gimbal, backend session.Backend,
	influxMgr *influx.Manager, log *slog.Logger) *Director {
	if log == nil {
		log = slog.Default()
	}
	if cfg.UpdateInterval == 0 {
		cfg.UpdateInterval = 500 * time.Millisecond
	}
	d := &Director{
		cfg:        cfg,
		log:        log,
		tele:       tele,
		engine:     engine,
		store:      store,
		controller: controller,
		gimbal:     gim,
		backend:    backend,
		influx:     influxMgr,
	}
	if ql, ok := backend.(interface{ QueueLengths() map[string]int }); ok {
		d.queueLengther = ql
	}
	return d
}

// Run starts both loops and blocks until ctx is cancelled. The control
// loop is the controller's own; the director hooks onto it to record
// each cycle.
func (d *Director) Run(ctx context.Context) error {
	d.controller.OnCycle(d.recordCycle)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		d.controller.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		d.targetingLoop(ctx)
	}()
	wg.Wait()
	return ctx.Err()
}

// targetingLoop recomputes the target and steers the controller in
// fixed-target mode.
func (d *Director) targetingLoop(ctx context.Context) {
	ticker := time.NewTicker(d.cfg.UpdateInterval)
	defer ticker.Stop()

	d.log.Info("targeting loop started", "interval", d.cfg.UpdateInterval)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.updateTargeting(ctx)
		}
	}
}

func (d *Director) updateTargeting(ctx context.Context) {
	state, err := d.tele.CurrentState()
	if err != nil {
		d.mu.Lock()
		wasStale := d.teleWasStale
		d.teleWasStale = true
		d.mu.Unlock()
		if !wasStale {
			// Stale telemetry: suspend target recomputation and hold
			// whatever the gimbal is doing.
			d.log.Warn("telemetry stale, suspending target updates", "error", err)
			d.controller.ClearCommand()
		}
		return
	}
	d.mu.Lock()
	if d.teleWasStale {
		d.teleWasStale = false
		d.log.Info("telemetry recovered")
	}
	d.mu.Unlock()

	if err := d.backend.RecordAircraftState(state); err != nil {
		d.log.Debug("recording aircraft state failed", "error", err)
	}

	hw, err := d.gimbal.CurrentAngles(ctx)
	if err == nil {
		if err := d.backend.RecordGimbalAngles(hw); err != nil {
			d.log.Debug("recording gimbal angles failed", "error", err)
		}
		if res, updated := d.engine.Update(ctx, state, toDepression(hw)); updated {
			if err := d.backend.RecordTarget(res); err != nil {
				d.log.Debug("recording target failed", "error", err)
			}
			if d.influx != nil {
				d.influx.WritePoint(ctx, influx.BucketTargeting,
					influx.SolvePoint(d.cfg.Session.ID, res))
				d.influx.WritePoint(ctx, influx.BucketAttitude,
					influx.AttitudePoint(d.cfg.Session.ID, hw))
			}
		}
	} else {
		d.log.Debug("gimbal feedback unavailable, skipping solve", "error", err)
	}

	if target, ok := d.store.Fixed(); ok {
		angles, err := d.engine.ComputeReverse(ctx, state, target)
		if err != nil {
			d.log.Warn("reverse solve failed", "error", err)
			return
		}
		if err := d.controller.Command(toHardware(angles)); err != nil {
			d.log.Warn("rejecting computed gimbal command", "error", err)
		}
	}
}

// recordCycle is the controller's per-cycle hook: it persists command
// changes and faults.
func (d *Director) recordCycle(cmd core.ControlCommand, st control.Status, stepErr error) {
	d.mu.Lock()
	changed := !d.lastCmdValid || cmd != d.lastCmd
	d.lastCmd = cmd
	d.lastCmdValid = true
	d.mu.Unlock()

	if changed {
		if err := d.backend.RecordCommand(cmd, st.State.String(), time.Now()); err != nil {
			d.log.Debug("recording command failed", "error", err)
		}
		if d.influx != nil {
			d.influx.WritePoint(context.Background(), influx.BucketControl,
				influx.ControlPoint(d.cfg.Session.ID, st, cmd))
		}
	}
	if stepErr != nil {
		if err := d.backend.RecordFault(stepErr.Error(), time.Now()); err != nil {
			d.log.Debug("recording fault failed", "error", err)
		}
	}
}

// Snapshot assembles the current status report.
func (d *Director) Snapshot() status.Snapshot {
	ctl := d.controller.Status()
	snap := status.Snapshot{
		Time:            time.Now(),
		SessionID:       d.cfg.Session.ID,
		ControllerState: ctl.State.String(),
		Recovery:        ctl.Recovery,
	}
	if last := d.tele.LastUpdated(); !last.IsZero() {
		snap.TelemetryAgeMs = time.Since(last).Milliseconds()
	} else {
		snap.TelemetryAgeMs = -1
	}
	if cmd, ok := d.controller.LastCommand(); ok {
		snap.LastCommand = cmd
	}
	if res, ok := d.engine.LastResult(); ok {
		snap.LastTarget = &res
	}
	if d.queueLengther != nil {
		snap.QueueLengths = d.queueLengther.QueueLengths()
	}
	return snap
}

// toDepression converts hardware-frame angles to the solver frame.
func toDepression(hw core.GimbalAngles) core.GimbalAngles {
	return core.GimbalAngles{Pitch: -hw.Pitch, Yaw: hw.Yaw, Time: hw.Time}
}

// toHardware converts solver-frame angles to the hardware frame,
// keeping clear of the mechanical pitch limit.
func toHardware(t core.GimbalAngles) core.GimbalAngles {
	return core.GimbalAngles{
		Pitch: geo.Clamp(-t.Pitch, -hardwarePitchMargin, hardwarePitchMargin),
		Yaw:   t.Yaw,
		Time:  t.Time,
	}
}
