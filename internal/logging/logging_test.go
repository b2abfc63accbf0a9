package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Graylog2/go-gelf/gelf"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, parseLevel("warn"))
	assert.Equal(t, slog.LevelWarn, parseLevel("warning"))
	assert.Equal(t, slog.LevelError, parseLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLevel("info"))
	assert.Equal(t, slog.LevelInfo, parseLevel("bogus"))
}

func TestSetup_ConsoleAndFile(t *testing.T) {
	dir := t.TempDir()
	var console bytes.Buffer
	m, err := Setup(Options{Level: "debug", Dir: dir, Console: &console})
	require.NoError(t, err)

	m.Logger().Info("gimbal ready", "driver", "siyi")
	require.NoError(t, m.Close())

	assert.Contains(t, console.String(), "gimbal ready")
	assert.Contains(t, console.String(), "driver=siyi")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	data, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	require.NoError(t, err)

	var record map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(data), &record))
	assert.Equal(t, "gimbal ready", record["msg"])
	assert.Equal(t, "siyi", record["driver"])
}

func TestSetup_LevelFiltersFile(t *testing.T) {
	dir := t.TempDir()
	var console bytes.Buffer
	m, err := Setup(Options{Level: "warn", Dir: dir, Console: &console})
	require.NoError(t, err)

	m.Logger().Debug("noise")
	m.Logger().Warn("limit guard engaged")
	require.NoError(t, m.Close())

	assert.NotContains(t, console.String(), "noise")
	assert.Contains(t, console.String(), "limit guard engaged")
}

func TestMultiHandler_FansOut(t *testing.T) {
	var a, b bytes.Buffer
	h := NewMultiHandler(
		slog.NewTextHandler(&a, nil),
		slog.NewTextHandler(&b, nil),
		nil,
	)
	slog.New(h).Info("fan out")
	assert.Contains(t, a.String(), "fan out")
	assert.Contains(t, b.String(), "fan out")
}

type brokenSink struct{}

func (brokenSink) Enabled(context.Context, slog.Level) bool  { return true }
func (brokenSink) Handle(context.Context, slog.Record) error { return errors.New("sink down") }
func (s brokenSink) WithAttrs([]slog.Attr) slog.Handler      { return s }
func (s brokenSink) WithGroup(string) slog.Handler           { return s }

func TestMultiHandler_DeliversPastFailingSink(t *testing.T) {
	var buf bytes.Buffer
	h := NewMultiHandler(brokenSink{}, slog.NewTextHandler(&buf, nil))

	err := h.Handle(context.Background(), slog.NewRecord(time.Now(), slog.LevelInfo, "still delivered", 0))
	assert.Error(t, err, "sink failure must surface")
	assert.Contains(t, buf.String(), "still delivered", "healthy sinks must still receive the record")
}

func TestDispatcherLogger_Fields(t *testing.T) {
	var buf bytes.Buffer
	l := NewDispatcherLogger(zerolog.New(&buf))
	l.Info("command received", "name", "lookAt", 42, "dropped", "dangling")

	out := buf.String()
	assert.Contains(t, out, "command received")
	assert.Contains(t, out, `"name":"lookAt"`)
	assert.NotContains(t, out, "dangling", "non-string keys and dangling values are dropped")
}

func TestContextHandler_InjectsAttrs(t *testing.T) {
	var buf bytes.Buffer
	h := NewContextHandler(slog.NewTextHandler(&buf, nil), func() []slog.Attr {
		return []slog.Attr{slog.String("session", "s-42")}
	})
	slog.New(h).Info("solve complete")
	assert.Contains(t, buf.String(), "session=s-42")
}

func TestGELFHandler_SendsMessage(t *testing.T) {
	laddr, err := net.ResolveUDPAddr("udp", "127.0.0.1:0")
	require.NoError(t, err)
	conn, err := net.ListenUDP("udp", laddr)
	require.NoError(t, err)
	defer conn.Close()

	h, err := NewGELFHandler(conn.LocalAddr().String(), slog.LevelInfo)
	require.NoError(t, err)
	defer h.Close()
	h.w.CompressionType = gelf.CompressNone

	rec := slog.NewRecord(time.Now(), slog.LevelWarn, "actuator stuck", 0)
	rec.AddAttrs(slog.Int("attempts", 3))
	logger := h.WithAttrs([]slog.Attr{slog.String("axis", "pitch")})
	require.NoError(t, logger.Handle(context.Background(), rec))

	buf := make([]byte, 8192)
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	n, _, err := conn.ReadFromUDP(buf)
	require.NoError(t, err)

	var msg map[string]any
	require.NoError(t, json.Unmarshal(buf[:n], &msg))
	assert.Equal(t, "actuator stuck", msg["short_message"])
	assert.Equal(t, float64(4), msg["level"])
	assert.Equal(t, float64(3), msg["_attempts"])
	assert.Equal(t, "pitch", msg["_axis"])
}

func TestGELFHandler_LevelThreshold(t *testing.T) {
	h := &GELFHandler{level: slog.LevelWarn}
	assert.False(t, h.Enabled(context.Background(), slog.LevelInfo))
	assert.True(t, h.Enabled(context.Background(), slog.LevelError))
}

func TestSyslogLevel(t *testing.T) {
	assert.Equal(t, int32(7), syslogLevel(slog.LevelDebug))
	assert.Equal(t, int32(6), syslogLevel(slog.LevelInfo))
	assert.Equal(t, int32(4), syslogLevel(slog.LevelWarn))
	assert.Equal(t, int32(3), syslogLevel(slog.LevelError))
}

func TestLogFilePath(t *testing.T) {
	p := LogFilePath("/var/log/gd")
	assert.True(t, strings.HasPrefix(p, "/var/log/gd/gimbal_director_"))
	assert.True(t, strings.HasSuffix(p, ".log"))
}
