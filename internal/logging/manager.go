// Package logging wires the process slog logger to its sinks: console,
// a timestamped log file, Graylog via GELF, and the OTLP log bridge.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

const instrumentationName = "github.com/skyward-uas/gimbal-director/internal/logging"

// Options configures Setup. Zero-valued sinks are disabled.
type Options struct {
	Level          string
	Dir            string    // log file directory, empty disables file output
	Console        io.Writer // defaults to os.Stdout
	GELFAddr       string    // Graylog UDP address, empty disables
	LoggerProvider *sdklog.LoggerProvider
	Context        ContextProvider
}

// Manager owns the process logger and the sinks that need closing.
type Manager struct {
	logger *slog.Logger
	file   *os.File
	gelf   *GELFHandler
}

// Setup builds the logger from Options, installs it as the slog default
// and returns a Manager for shutdown.
func Setup(opts Options) (*Manager, error) {
	level := parseLevel(opts.Level)
	handlerOpts := &slog.HandlerOptions{Level: level}

	console := opts.Console
	if console == nil {
		console = os.Stdout
	}
	handlers := []slog.Handler{slog.NewTextHandler(console, handlerOpts)}

	m := &Manager{}
	if opts.Dir != "" {
		if err := os.MkdirAll(opts.Dir, 0755); err != nil {
			return nil, fmt.Errorf("creating log directory: %w", err)
		}
		f, err := os.OpenFile(LogFilePath(opts.Dir), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("opening log file: %w", err)
		}
		m.file = f
		handlers = append(handlers, slog.NewJSONHandler(f, handlerOpts))
	}
	if opts.GELFAddr != "" {
		gh, err := NewGELFHandler(opts.GELFAddr, level)
		if err != nil {
			m.Close()
			return nil, err
		}
		m.gelf = gh
		handlers = append(handlers, gh)
	}
	if opts.LoggerProvider != nil {
		handlers = append(handlers, otelslog.NewHandler(instrumentationName,
			otelslog.WithLoggerProvider(opts.LoggerProvider)))
	}

	var handler slog.Handler = NewMultiHandler(handlers...)
	if opts.Context != nil {
		handler = NewContextHandler(handler, opts.Context)
	}
	m.logger = slog.New(handler)
	slog.SetDefault(m.logger)
	return m, nil
}

// Logger returns the configured logger.
func (m *Manager) Logger() *slog.Logger {
	return m.logger
}

// Close releases the file and network sinks.
func (m *Manager) Close() error {
	var first error
	if m.file != nil {
		if err := m.file.Close(); err != nil {
			first = err
		}
		m.file = nil
	}
	if m.gelf != nil {
		if err := m.gelf.Close(); err != nil && first == nil {
			first = err
		}
		m.gelf = nil
	}
	return first
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// LogFilePath returns the timestamped log file path under dir.
func LogFilePath(dir string) string {
	return filepath.Join(dir, fmt.Sprintf("gimbal_director_%s.log", time.Now().Format("20060102_150405")))
}
