package status

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/skyward-uas/gimbal-director/pkg/core"
)

func TestService_WritesStatusFile(t *testing.T) {
	dir := t.TempDir()
	var calls atomic.Int64
	s := NewService(Dependencies{
		Dir:      dir,
		Interval: 5 * time.Millisecond,
		Collect: func() Snapshot {
			calls.Add(1)
			return Snapshot{
				SessionID:       "flight-042",
				TelemetryAgeMs:  120,
				ControllerState: "recovering",
				Recovery:        core.RecoveryState{Active: true, Reason: "pitch pinned at mechanical limit", Attempts: 2},
				LastCommand:     core.ControlCommand{YawSpeed: 10, PitchSpeed: -3},
				QueueLengths:    map[string]int{"fixes": 4},
			}
		},
	})

	if err := s.Start(); err != nil {
		t.Fatal(err)
	}
	if !s.IsRunning() {
		t.Fatal("expected running service")
	}

	path := filepath.Join(dir, "status.json")
	deadline := time.After(2 * time.Second)
	for calls.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("collect was never called")
		case <-time.After(time.Millisecond):
		}
	}
	time.Sleep(20 * time.Millisecond)
	s.Stop()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		t.Fatalf("status file not parseable: %v\n%s", err, data)
	}
	if snap.SessionID != "flight-042" || snap.ControllerState != "recovering" {
		t.Errorf("unexpected snapshot: %+v", snap)
	}
	if !snap.Recovery.Active || snap.Recovery.Attempts != 2 {
		t.Errorf("expected recovery state in snapshot, got %+v", snap.Recovery)
	}
	if snap.QueueLengths["fixes"] != 4 {
		t.Errorf("expected queue length in snapshot, got %+v", snap.QueueLengths)
	}
}

func TestService_StartIsIdempotent(t *testing.T) {
	s := NewService(Dependencies{
		Dir:      t.TempDir(),
		Interval: time.Hour,
		Collect:  func() Snapshot { return Snapshot{} },
	})
	if err := s.Start(); err != nil {
		t.Fatal(err)
	}
	if err := s.Start(); err != nil {
		t.Fatal(err)
	}
	s.Stop()
}

func TestPerformancePoint(t *testing.T) {
	snap := Snapshot{
		Time:            time.Unix(1700000000, 0),
		SessionID:       "s-1",
		TelemetryAgeMs:  250,
		ControllerState: "Converged",
		QueueLengths:    map[string]int{"targets": 2},
	}
	line := influxdb2_write.PointToLineProtocol(performancePoint(snap), time.Second)
	for _, want := range []string{"director_status,", "session=s-1", "state=Converged", "telemetry_age_ms=250i", "queue_targets=2i"} {
		if !strings.Contains(line, want) {
			t.Errorf("line protocol missing %q: %s", want, line)
		}
	}
}
