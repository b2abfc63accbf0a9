package dispatcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"time"
)

// wireEvent is the datagram format of the operator command socket.
type wireEvent struct {
	Command string   `json:"command"`
	Args    []string `json:"args"`
}

// Listener receives operator commands as JSON datagrams and dispatches
// them.
type Listener struct {
	addr string
	d    *Dispatcher
}

// NewListener creates a Listener bound to addr.
func NewListener(addr string, d *Dispatcher) *Listener {
	return &Listener{addr: addr, d: d}
}

// Start blocks, receiving command datagrams until ctx is cancelled.
func (l *Listener) Start(ctx context.Context) error {
	laddr, err := net.ResolveUDPAddr("udp", l.addr)
	if err != nil {
		return fmt.Errorf("resolving command listen address: %w", err)
	}
	conn, err := net.ListenUDP("udp", laddr)
	if err != nil {
		return fmt.Errorf("listening for commands: %w", err)
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	l.d.logger.Info("command listener started", "addr", l.addr)
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
			l.d.logger.Error("command receive error", "error", err)
			continue
		}

		var we wireEvent
		if err := json.Unmarshal(buf[:n], &we); err != nil {
			l.d.logger.Debug("dropping malformed command datagram", "error", err)
			continue
		}
		if _, err := l.d.Dispatch(Event{Command: we.Command, Args: we.Args, Timestamp: time.Now()}); err != nil {
			l.d.logger.Error("command rejected", "command", we.Command, "error", err)
		}
	}
}
