package telemetry

import (
	"context"
	"log/slog"
	"time"
)

// PollerConfig holds configuration for the Poller.
type PollerConfig struct {
	PollInterval time.Duration
}

// DefaultPollerConfig returns the default polling cadence.
func DefaultPollerConfig() PollerConfig {
	return PollerConfig{PollInterval: 500 * time.Millisecond}
}

// Poller periodically pulls snapshots from a Source into the Manager.
type Poller struct {
	source Source
	mgr    *Manager
	cfg    PollerConfig
	log    *slog.Logger
}

// NewPoller creates a Poller feeding mgr from source.
func NewPoller(source Source, mgr *Manager, cfg PollerConfig, log *slog.Logger) *Poller {
	if log == nil {
		log = slog.Default()
	}
	return &Poller{source: source, mgr: mgr, cfg: cfg, log: log}
}

// Start blocks, polling until ctx is cancelled.
func (p *Poller) Start(ctx context.Context) {
	interval := p.cfg.PollInterval
	if interval == 0 {
		interval = 500 * time.Millisecond
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			state, err := p.source.CurrentState()
			if err != nil {
				p.log.Debug("telemetry source read failed", "error", err)
				continue
			}
			p.mgr.Update(state)
		}
	}
}
