package session

import (
	"compress/gzip"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/skyward-uas/gimbal-director/pkg/core"
)

func testInfo() *Info {
	return &Info{
		ID:        "flight-042",
		Aircraft:  "N123UA",
		Operator:  "ops",
		StartTime: time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC),
	}
}

func testState() core.AircraftState {
	return core.AircraftState{
		Position: core.GeoPosition{Latitude: 47.4, Longitude: 8.55, Altitude: 1200, AltRef: core.AGL},
		Heading:  231,
		Time:     time.Now(),
	}
}

func testResult() core.TargetResult {
	return core.TargetResult{
		Position:   core.GeoPosition{Latitude: 47.41, Longitude: 8.56, Altitude: 430, AltRef: core.AMSL},
		Distance2D: 900,
		Distance3D: 1100,
		Iterations: 2,
		Class:      core.ClassGround,
		Converged:  true,
		Time:       time.Now(),
	}
}

func TestMemoryBackend_ExportJSON(t *testing.T) {
	dir := t.TempDir()
	b := NewMemory(Config{OutputDir: dir})
	if err := b.Init(); err != nil {
		t.Fatal(err)
	}
	if err := b.StartSession(testInfo()); err != nil {
		t.Fatal(err)
	}

	if err := b.RecordAircraftState(testState()); err != nil {
		t.Fatal(err)
	}
	if err := b.RecordGimbalAngles(core.GimbalAngles{Pitch: -45, Yaw: 90, Time: time.Now()}); err != nil {
		t.Fatal(err)
	}
	if err := b.RecordTarget(testResult()); err != nil {
		t.Fatal(err)
	}
	if err := b.RecordCommand(core.ControlCommand{YawSpeed: 10, PitchSpeed: -5}, "Tracking", time.Now()); err != nil {
		t.Fatal(err)
	}
	if err := b.RecordFault("actuator stuck at lower limit", time.Now()); err != nil {
		t.Fatal(err)
	}

	if err := b.EndSession(); err != nil {
		t.Fatal(err)
	}

	path := b.ExportedFilePath()
	if path == "" {
		t.Fatal("expected export path after EndSession")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	var export Export
	if err := json.Unmarshal(data, &export); err != nil {
		t.Fatal(err)
	}
	if export.Session.ID != "flight-042" {
		t.Errorf("expected session ID flight-042, got %s", export.Session.ID)
	}
	if len(export.Fixes) != 1 || len(export.Gimbal) != 1 || len(export.Targets) != 1 {
		t.Errorf("unexpected record counts: %d fixes, %d gimbal, %d targets",
			len(export.Fixes), len(export.Gimbal), len(export.Targets))
	}
	if len(export.Commands) != 1 || export.Commands[0].State != "Tracking" {
		t.Errorf("unexpected commands: %+v", export.Commands)
	}
	if len(export.Faults) != 1 {
		t.Errorf("expected 1 fault, got %d", len(export.Faults))
	}
}

func TestMemoryBackend_CompressedExport(t *testing.T) {
	dir := t.TempDir()
	b := NewMemory(Config{OutputDir: dir, CompressOutput: true})
	if err := b.StartSession(testInfo()); err != nil {
		t.Fatal(err)
	}
	if err := b.RecordTarget(testResult()); err != nil {
		t.Fatal(err)
	}
	if err := b.EndSession(); err != nil {
		t.Fatal(err)
	}

	f, err := os.Open(b.ExportedFilePath())
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	zr, err := gzip.NewReader(f)
	if err != nil {
		t.Fatal(err)
	}
	var export Export
	if err := json.NewDecoder(zr).Decode(&export); err != nil {
		t.Fatal(err)
	}
	if len(export.Targets) != 1 {
		t.Errorf("expected 1 target in compressed export, got %d", len(export.Targets))
	}
}

func TestMemoryBackend_StartResetsState(t *testing.T) {
	b := NewMemory(Config{OutputDir: t.TempDir()})
	if err := b.StartSession(testInfo()); err != nil {
		t.Fatal(err)
	}
	b.RecordTarget(testResult())

	if err := b.StartSession(testInfo()); err != nil {
		t.Fatal(err)
	}
	b.mu.RLock()
	n := len(b.targets)
	b.mu.RUnlock()
	if n != 0 {
		t.Errorf("expected targets cleared on new session, got %d", n)
	}
}

func TestMemoryBackend_EndWithoutStart(t *testing.T) {
	b := NewMemory(Config{OutputDir: t.TempDir()})
	if err := b.EndSession(); err == nil {
		t.Fatal("expected error ending a session that never started")
	}
}

func TestDBBackend_RoundTrip(t *testing.T) {
	db, err := openSQLite("")
	if err != nil {
		t.Fatal(err)
	}
	b := NewDBBackend(db, nil)
	if err := b.Init(); err != nil {
		t.Fatal(err)
	}
	defer b.Close()

	if err := b.StartSession(testInfo()); err != nil {
		t.Fatal(err)
	}
	if b.sessionID.Load() == 0 {
		t.Fatal("expected DB-assigned session ID")
	}

	b.RecordAircraftState(testState())
	b.RecordAircraftState(testState())
	b.RecordGimbalAngles(core.GimbalAngles{Pitch: -30, Yaw: 180, Time: time.Now()})
	b.RecordTarget(testResult())
	b.RecordCommand(core.ControlCommand{YawSpeed: -8}, "Decelerating", time.Now())
	b.RecordFault("feedback stale", time.Now())

	lengths := b.QueueLengths()
	if lengths["fixes"] != 2 {
		t.Errorf("expected 2 queued fixes, got %d", lengths["fixes"])
	}

	b.flush()

	var fixCount, solveCount, cmdCount, faultCount int64
	db.Model(&AircraftFix{}).Count(&fixCount)
	db.Model(&TargetSolve{}).Count(&solveCount)
	db.Model(&CommandRecord{}).Count(&cmdCount)
	db.Model(&FaultRecord{}).Count(&faultCount)
	if fixCount != 2 || solveCount != 1 || cmdCount != 1 || faultCount != 1 {
		t.Errorf("unexpected row counts: fixes=%d solves=%d cmds=%d faults=%d",
			fixCount, solveCount, cmdCount, faultCount)
	}

	var solve TargetSolve
	if err := db.First(&solve).Error; err != nil {
		t.Fatal(err)
	}
	if solve.SessionID != uint(b.sessionID.Load()) {
		t.Errorf("solve not stamped with session ID: %d", solve.SessionID)
	}
	if solve.Class != "ground" || !solve.Converged {
		t.Errorf("unexpected solve row: %+v", solve)
	}

	if err := b.EndSession(); err != nil {
		t.Fatal(err)
	}
	var rec Record
	if err := db.First(&rec).Error; err != nil {
		t.Fatal(err)
	}
	if !rec.EndTime.Valid {
		t.Error("expected end time set after EndSession")
	}
	if rec.Track.Coordinates().Length() == 0 {
		t.Error("expected flight track stamped on the session row")
	}
}

func TestNewBackend_Factory(t *testing.T) {
	if _, err := NewBackend(Config{Backend: "memory"}, nil); err != nil {
		t.Errorf("memory backend: %v", err)
	}
	if _, err := NewBackend(Config{}, nil); err != nil {
		t.Errorf("default backend: %v", err)
	}
	if _, err := NewBackend(Config{Backend: "postgres"}, nil); err == nil {
		t.Error("expected error for postgres without DSN")
	}
	if _, err := NewBackend(Config{Backend: "etcd"}, nil); err == nil {
		t.Error("expected error for unknown backend")
	}
}
