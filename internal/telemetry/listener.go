package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/skyward-uas/gimbal-director/pkg/core"
)

// Listener receives aircraft state snapshots as JSON datagrams from the
// flight-controller bridge and pushes them into the Manager. The wire
// protocol of the flight controller itself lives in the bridge; this side
// only consumes the logical feed.
type Listener struct {
	addr string
	mgr  *Manager
	log  *slog.Logger
}

// NewListener creates a Listener bound to addr (e.g. ":14560").
func NewListener(addr string, mgr *Manager, log *slog.Logger) *Listener {
	if log == nil {
		log = slog.Default()
	}
	return &Listener{addr: addr, mgr: mgr, log: log}
}

// Start blocks, receiving datagrams until ctx is cancelled.
func (l *Listener) Start(ctx context.Context) error {
	laddr, err := net.ResolveUDPAddr("udp", l.addr)
	if err != nil {
		return fmt.Errorf("resolving telemetry listen address: %w", err)
	}
	conn, err := net.ListenUDP("udp", laddr)
	if err != nil {
		return fmt.Errorf("listening for telemetry: %w", err)
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	l.log.Info("telemetry listener started", "addr", l.addr)
	buf := make([]byte, 4096)
	for {
		conn.SetReadDeadline(time.Now().Add(time.Second))
		n, _, err := conn.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return ctx.Err()
			}
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			l.log.Warn("telemetry receive error", "error", err)
			continue
		}

		var state core.AircraftState
		if err := json.Unmarshal(buf[:n], &state); err != nil {
			l.log.Debug("dropping malformed telemetry datagram", "error", err)
			continue
		}
		if err := state.Position.Validate(); err != nil {
			l.log.Debug("dropping telemetry with invalid position", "error", err)
			continue
		}
		if state.Time.IsZero() {
			state.Time = time.Now()
		}
		l.mgr.Update(state)
	}
}
