package logging

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/Graylog2/go-gelf/gelf"
)

// GELFHandler ships records to a Graylog endpoint as GELF UDP messages.
type GELFHandler struct {
	w     *gelf.Writer
	level slog.Level
	host  string
	attrs []slog.Attr
	group string
}

// NewGELFHandler connects a handler to the Graylog endpoint at addr.
func NewGELFHandler(addr string, level slog.Level) (*GELFHandler, error) {
	w, err := gelf.NewWriter(addr)
	if err != nil {
		return nil, fmt.Errorf("connecting to graylog: %w", err)
	}
	host, err := os.Hostname()
	if err != nil {
		host = "gimbal-director"
	}
	return &GELFHandler{w: w, level: level, host: host}, nil
}

// Enabled reports whether level passes the handler threshold.
func (h *GELFHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

// Handle converts the record to a GELF message and sends it.
func (h *GELFHandler) Handle(_ context.Context, r slog.Record) error {
	extra := make(map[string]any, r.NumAttrs()+len(h.attrs))
	for _, a := range h.attrs {
		extra["_"+h.key(a.Key)] = a.Value.Resolve().Any()
	}
	r.Attrs(func(a slog.Attr) bool {
		extra["_"+h.key(a.Key)] = a.Value.Resolve().Any()
		return true
	})
	return h.w.WriteMessage(&gelf.Message{
		Version:  "1.1",
		Host:     h.host,
		Short:    r.Message,
		TimeUnix: float64(r.Time.UnixNano()) / 1e9,
		Level:    syslogLevel(r.Level),
		Extra:    extra,
	})
}

// WithAttrs returns a handler that attaches attrs to every message.
func (h *GELFHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = append(append([]slog.Attr{}, h.attrs...), attrs...)
	return &clone
}

// WithGroup returns a handler that prefixes attribute keys with name.
func (h *GELFHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.group = h.key(name)
	return &clone
}

// Close releases the underlying UDP connection.
func (h *GELFHandler) Close() error {
	return h.w.Close()
}

func (h *GELFHandler) key(k string) string {
	if h.group == "" {
		return k
	}
	return h.group + "." + k
}

// syslogLevel maps slog levels onto the syslog severities GELF expects.
func syslogLevel(l slog.Level) int32 {
	switch {
	case l >= slog.LevelError:
		return 3 // LOG_ERR
	case l >= slog.LevelWarn:
		return 4 // LOG_WARNING
	case l >= slog.LevelInfo:
		return 6 // LOG_INFO
	default:
		return 7 // LOG_DEBUG
	}
}
