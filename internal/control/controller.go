package control

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/skyward-uas/gimbal-director/pkg/core"
)

// Actuator receives velocity commands. Fire-and-forget: the control law does
// not wait for an acknowledgment.
type Actuator interface {
	SetVelocity(ctx context.Context, cmd core.ControlCommand) error
}

// Feedback reports the actuator's current angles. An error means the reading
// is unavailable; the controller holds rather than command blindly.
type Feedback interface {
	CurrentAngles(ctx context.Context) (core.GimbalAngles, error)
}

// Controller wraps the pure control law with actuator I/O and the periodic
// loop. One Controller drives one gimbal.
type Controller struct {
	actuator Actuator
	feedback Feedback
	cfg      Config
	log      *slog.Logger

	interval  time.Duration
	ioTimeout time.Duration

	cycles     metric.Int64Counter
	recoveries metric.Int64Counter

	mu         sync.Mutex
	status     Status
	commanded  core.GimbalAngles
	hasCommand bool
	lastCmd    core.ControlCommand
	lastSent   bool
	onCycle    func(cmd core.ControlCommand, st Status, err error)
}

// Option configures a Controller.
type Option func(*Controller)

// WithInterval sets the control cycle period. Default 200ms;
// non-positive values keep the default.
func WithInterval(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.interval = d
		}
	}
}

// WithIOTimeout bounds each feedback read and actuator write. Default 100ms.
func WithIOTimeout(d time.Duration) Option {
	return func(c *Controller) { c.ioTimeout = d }
}

// NewController creates a Controller. Metrics use the global OTel meter
// (no-op when not configured).
func NewController(actuator Actuator, feedback Feedback, cfg Config, log *slog.Logger, opts ...Option) (*Controller, error) {
	if log == nil {
		log = slog.Default()
	}
	c := &Controller{
		actuator:  actuator,
		feedback:  feedback,
		cfg:       cfg,
		log:       log,
		interval:  200 * time.Millisecond,
		ioTimeout: 100 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(c)
	}

	m := meter()
	var err error
	c.cycles, err = m.Int64Counter(
		"control.cycles",
		metric.WithDescription("Control cycles executed, by resulting state"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating cycle counter: %w", err)
	}
	c.recoveries, err = m.Int64Counter(
		"control.recoveries",
		metric.WithDescription("Stuck-actuator recovery attempts"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating recovery counter: %w", err)
	}
	return c, nil
}

// Command sets a new target angle pair and (re)enters tracking.
func (c *Controller) Command(a core.GimbalAngles) error {
	if err := a.Validate(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.commanded = a
	c.hasCommand = true
	if c.status.State == StateIdle || c.status.State == StateConverged {
		c.status.State = StateTracking
	}
	return nil
}

// ClearCommand drops the outstanding target. The next cycle holds.
func (c *Controller) ClearCommand() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hasCommand = false
	c.status = Status{}
}

// Status returns the current machine state and recovery bookkeeping.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// LastCommand returns the most recently sent velocity command.
func (c *Controller) LastCommand() (core.ControlCommand, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastCmd, c.lastSent
}

// OnCycle registers a callback Run invokes after every cycle with the
// command sent, the resulting status and any fault. Set it before Run.
func (c *Controller) OnCycle(fn func(cmd core.ControlCommand, st Status, err error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onCycle = fn
}

// Tick runs one control cycle: read feedback, step the law, send the
// command. Returns the command sent and the resulting status.
func (c *Controller) Tick(ctx context.Context) (core.ControlCommand, Status, error) {
	c.mu.Lock()
	hasCommand := c.hasCommand
	commanded := c.commanded
	st := c.status
	wasMoving := c.lastSent && !c.lastCmd.IsHold()
	c.mu.Unlock()

	if !hasCommand {
		// No target, but the last command on the wire was motion: a jog
		// actuator keeps slewing until told otherwise, so send one hold.
		hold := core.ControlCommand{}
		if wasMoving {
			c.send(ctx, hold)
		}
		return hold, st, nil
	}

	fctx, cancel := context.WithTimeout(ctx, c.ioTimeout)
	current, err := c.feedback.CurrentAngles(fctx)
	cancel()
	if err != nil {
		c.log.Warn("gimbal feedback unavailable, holding", "error", err)
		hold := core.ControlCommand{}
		c.send(ctx, hold)
		return hold, st, nil
	}

	st, cmd, stepErr := Step(st, commanded, current, c.cfg)
	if st.State == StateRecovering {
		c.recoveries.Add(ctx, 1)
	}
	c.cycles.Add(ctx, 1, metric.WithAttributes(attribute.String("state", st.State.String())))

	c.mu.Lock()
	c.status = st
	if stepErr != nil {
		// Stuck fault: drop the command so the loop does not retry forever.
		c.hasCommand = false
	}
	lastCmd, lastSent := c.lastCmd, c.lastSent
	c.mu.Unlock()

	// Skip redundant holds, but always send motion commands.
	if !cmd.IsHold() || !lastSent || !lastCmd.IsHold() {
		c.send(ctx, cmd)
	}

	if stepErr != nil {
		c.log.Error("recovery exhausted, surfacing fault",
			"attempts", c.cfg.MaxRecoveryAttempts, "error", stepErr)
	}
	return cmd, st, stepErr
}

// Run executes the periodic loop until ctx is cancelled, then issues one
// final hold so the actuator is never left mid-command.
func (c *Controller) Run(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.log.Info("control loop started", "interval", c.interval)
	for {
		select {
		case <-ctx.Done():
			stopCtx, cancel := context.WithTimeout(context.Background(), c.ioTimeout)
			c.send(stopCtx, core.ControlCommand{})
			cancel()
			c.log.Info("control loop stopped")
			return
		case <-ticker.C:
			cmd, st, err := c.Tick(ctx)
			if err != nil {
				c.log.Error("control cycle fault", "error", err)
			}
			c.mu.Lock()
			hook := c.onCycle
			c.mu.Unlock()
			if hook != nil {
				hook(cmd, st, err)
			}
		}
	}
}

func (c *Controller) send(ctx context.Context, cmd core.ControlCommand) {
	sctx, cancel := context.WithTimeout(ctx, c.ioTimeout)
	defer cancel()
	if err := c.actuator.SetVelocity(sctx, cmd); err != nil {
		c.log.Warn("actuator command failed", "yaw", cmd.YawSpeed, "pitch", cmd.PitchSpeed, "error", err)
		return
	}
	c.mu.Lock()
	c.lastCmd = cmd
	c.lastSent = true
	c.mu.Unlock()
}
