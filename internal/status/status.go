// Package status periodically writes a machine-readable status file
// and ships performance points to InfluxDB.
package status

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/skyward-uas/gimbal-director/internal/influx"
	"github.com/skyward-uas/gimbal-director/pkg/core"
)

// Snapshot is one status report.
type Snapshot struct {
	Time            time.Time           `json:"time"`
	SessionID       string              `json:"sessionId"`
	TelemetryAgeMs  int64               `json:"telemetryAgeMs"`
	ControllerState string              `json:"controllerState"`
	Recovery        core.RecoveryState  `json:"recovery"`
	LastCommand     core.ControlCommand `json:"lastCommand"`
	LastTarget      *core.TargetResult  `json:"lastTarget,omitempty"`
	QueueLengths    map[string]int      `json:"queueLengths,omitempty"`
}

// Dependencies holds everything the status service needs.
type Dependencies struct {
	Log      *slog.Logger
	Dir      string        // directory for status.json
	Interval time.Duration // defaults to 1s
	Collect  func() Snapshot
	Influx   *influx.Manager // optional
}

// Service writes periodic status reports until stopped.
type Service struct {
	deps      Dependencies
	isRunning bool
	mu        sync.RWMutex
	stopChan  chan struct{}
}

// NewService creates a status service.
func NewService(deps Dependencies) *Service {
	if deps.Log == nil {
		deps.Log = slog.Default()
	}
	if deps.Interval == 0 {
		deps.Interval = time.Second
	}
	return &Service{
		deps:     deps,
		stopChan: make(chan struct{}),
	}
}

// IsRunning returns whether the service loop is active.
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Start launches the status goroutine. Idempotent.
func (s *Service) Start() error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.stopChan = make(chan struct{})
	s.mu.Unlock()

	go func() {
		defer func() {
			s.mu.Lock()
			s.isRunning = false
			s.mu.Unlock()
		}()

		path := filepath.Join(s.deps.Dir, "status.json")
		statusFile, err := os.Create(path)
		if err != nil {
			s.deps.Log.Error("error creating status file", "path", path, "error", err)
		}
		defer func() {
			if statusFile != nil {
				statusFile.Close()
			}
		}()

		ticker := time.NewTicker(s.deps.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-s.stopChan:
				return
			case <-ticker.C:
				s.report(statusFile)
			}
		}
	}()

	return nil
}

// Stop stops the status goroutine.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning {
		close(s.stopChan)
	}
}

func (s *Service) report(statusFile *os.File) {
	snap := s.deps.Collect()
	if snap.Time.IsZero() {
		snap.Time = time.Now()
	}

	if statusFile != nil {
		data, err := json.MarshalIndent(snap, "", "  ")
		if err != nil {
			data = []byte(`{"error": "marshal failed"}`)
		}
		statusFile.Truncate(0)
		statusFile.Seek(0, 0)
		statusFile.Write(append(data, '\n'))
	}

	if s.deps.Influx != nil {
		if err := s.deps.Influx.WritePoint(context.Background(),
			influx.BucketPerformance, performancePoint(snap)); err != nil {
			s.deps.Log.Debug("status influx write failed", "error", err)
		}
	}
}

func performancePoint(snap Snapshot) *influxdb2_write.Point {
	p := influxdb2_write.NewPointWithMeasurement("director_status").
		AddTag("session", snap.SessionID).
		AddTag("state", snap.ControllerState).
		AddField("telemetry_age_ms", snap.TelemetryAgeMs).
		AddField("yaw_speed", snap.LastCommand.YawSpeed).
		AddField("pitch_speed", snap.LastCommand.PitchSpeed).
		SetTime(snap.Time)
	for name, length := range snap.QueueLengths {
		p.AddField("queue_"+name, length)
	}
	return p
}
