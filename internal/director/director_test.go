package director

import (
	"context"
	"encoding/json"
	"math"
	"os"
	"testing"
	"time"

	"github.com/skyward-uas/gimbal-director/internal/control"
	"github.com/skyward-uas/gimbal-director/internal/dispatcher"
	"github.com/skyward-uas/gimbal-director/internal/gimbal"
	"github.com/skyward-uas/gimbal-director/internal/session"
	"github.com/skyward-uas/gimbal-director/internal/solver"
	"github.com/skyward-uas/gimbal-director/internal/targeting"
	"github.com/skyward-uas/gimbal-director/internal/telemetry"
	"github.com/skyward-uas/gimbal-director/internal/terrain"
	"github.com/skyward-uas/gimbal-director/pkg/core"
)

type fixture struct {
	d          *Director
	tele       *telemetry.Manager
	store      *targeting.Store
	controller *control.Controller
	sim        *gimbal.Sim
	backend    *session.MemoryBackend
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	sim := gimbal.NewSim()
	tele := telemetry.NewManager(time.Minute)
	store := targeting.NewStore()
	slv := solver.New(terrain.Constant{Height: 0}, solver.DefaultConfig())
	engine := targeting.NewEngine(slv, targeting.DefaultConfig(), nil)
	controller, err := control.NewController(sim, sim, control.DefaultConfig(), nil,
		control.WithInterval(10*time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}
	backend := session.NewMemory(session.Config{OutputDir: t.TempDir()})
	if err := backend.StartSession(&session.Info{ID: "test", StartTime: time.Now()}); err != nil {
		t.Fatal(err)
	}

	cfg := DefaultConfig()
	cfg.Session = session.Info{ID: "test"}
	d := New(cfg, tele, engine, store, controller, sim, backend, nil, nil)
	return &fixture{d: d, tele: tele, store: store, controller: controller, sim: sim, backend: backend}
}

func aircraftAt(lat, lon, alt, heading float64) core.AircraftState {
	return core.AircraftState{
		Position: core.GeoPosition{Latitude: lat, Longitude: lon, Altitude: alt, AltRef: core.AGL},
		Heading:  heading,
		Time:     time.Now(),
	}
}

func TestFrameConversion(t *testing.T) {
	dep := core.GimbalAngles{Pitch: 45, Yaw: 120}
	hw := toHardware(dep)
	if hw.Pitch != -45 || hw.Yaw != 120 {
		t.Errorf("expected hardware (-45, 120), got (%f, %f)", hw.Pitch, hw.Yaw)
	}
	back := toDepression(hw)
	if back.Pitch != 45 {
		t.Errorf("expected depression 45 after round trip, got %f", back.Pitch)
	}

	// Straight down stays clear of the mechanical limit.
	hw = toHardware(core.GimbalAngles{Pitch: 90})
	if hw.Pitch != -hardwarePitchMargin {
		t.Errorf("expected clamp to %f, got %f", -hardwarePitchMargin, hw.Pitch)
	}
}

func TestUpdateTargeting_FixedModeDrivesController(t *testing.T) {
	f := newFixture(t)
	f.tele.Update(aircraftAt(47.40, 8.55, 100, 0))

	// 1km north at ground level: shallow depression, due north.
	if err := f.store.SetFixed(core.GeoPosition{Latitude: 47.409, Longitude: 8.55, Altitude: 0, AltRef: core.AMSL}); err != nil {
		t.Fatal(err)
	}

	f.d.updateTargeting(context.Background())

	if st := f.controller.Status().State; st != control.StateTracking {
		t.Fatalf("expected tracking after fixed-mode update, got %v", st)
	}

	cmd, _, err := f.controller.Tick(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	// Target is below and ahead: the hardware command pitches down
	// (positive speed) and barely moves yaw.
	if cmd.PitchSpeed <= 0 {
		t.Errorf("expected downward pitch speed, got %d", cmd.PitchSpeed)
	}
	if abs(cmd.YawSpeed) > 5 {
		t.Errorf("expected near-zero yaw speed for a due-north target, got %d", cmd.YawSpeed)
	}
}

func TestUpdateTargeting_RecordsForwardSolve(t *testing.T) {
	f := newFixture(t)
	f.tele.Update(aircraftAt(47.40, 8.55, 100, 0))
	f.sim.SetAngles(-45, 0) // hardware frame: 45 degrees down

	f.d.updateTargeting(context.Background())

	res, ok := f.d.engine.LastResult()
	if !ok {
		t.Fatal("expected a forward solve result")
	}
	if res.Class != core.ClassGround {
		t.Errorf("expected ground class, got %s", res.Class)
	}
	// 45 degrees down from 100m AGL over flat terrain lands ~100m out.
	if math.Abs(res.Distance2D-100) > 5 {
		t.Errorf("expected ~100m ground distance, got %f", res.Distance2D)
	}
}

func TestUpdateTargeting_StaleTelemetryHolds(t *testing.T) {
	f := newFixture(t)
	tele := telemetry.NewManager(time.Millisecond)
	f.d.tele = tele
	tele.Update(aircraftAt(47.40, 8.55, 100, 0))

	if err := f.store.SetFixed(core.GeoPosition{Latitude: 47.41, Longitude: 8.55, Altitude: 0, AltRef: core.AMSL}); err != nil {
		t.Fatal(err)
	}
	if err := f.controller.Command(core.GimbalAngles{Pitch: -30, Yaw: 10}); err != nil {
		t.Fatal(err)
	}

	time.Sleep(5 * time.Millisecond)
	f.d.updateTargeting(context.Background())

	if st := f.controller.Status().State; st != control.StateIdle {
		t.Errorf("expected idle controller on stale telemetry, got %v", st)
	}
}

func TestHandleLookAt(t *testing.T) {
	f := newFixture(t)

	_, err := f.d.handleLookAt(dispatcher.Event{Args: []string{"47.41", "8.56", "430"}})
	if err != nil {
		t.Fatal(err)
	}
	target, ok := f.store.Fixed()
	if !ok {
		t.Fatal("expected fixed target after lookAt")
	}
	if target.Latitude != 47.41 || target.AltRef != core.AMSL {
		t.Errorf("unexpected target: %+v", target)
	}

	if _, err := f.d.handleLookAt(dispatcher.Event{Args: []string{"47.41"}}); err == nil {
		t.Error("expected error for missing args")
	}
	if _, err := f.d.handleLookAt(dispatcher.Event{Args: []string{"91", "8.56", "430"}}); err == nil {
		t.Error("expected error for out-of-range latitude")
	}
	if _, err := f.d.handleLookAt(dispatcher.Event{Args: []string{"47.41", "8.56", "430", "WGS84"}}); err == nil {
		t.Error("expected error for unknown altitude reference")
	}
}

func TestHandleMode(t *testing.T) {
	f := newFixture(t)

	got, err := f.d.handleMode(dispatcher.Event{})
	if err != nil || got != "gimbal" {
		t.Fatalf("expected gimbal mode, got %v (%v)", got, err)
	}

	if _, err := f.d.handleMode(dispatcher.Event{Args: []string{"fixed"}}); err == nil {
		t.Error("expected error switching to fixed without a target")
	}

	f.store.SetFixed(core.GeoPosition{Latitude: 47.41, Longitude: 8.56, Altitude: 430, AltRef: core.AMSL})
	got, err = f.d.handleMode(dispatcher.Event{Args: []string{"gimbal"}})
	if err != nil || got != "gimbal" {
		t.Fatalf("expected gimbal after clearing, got %v (%v)", got, err)
	}
	if _, ok := f.store.Fixed(); ok {
		t.Error("expected target cleared when switching to gimbal mode")
	}
}

func TestHandleClearTarget(t *testing.T) {
	f := newFixture(t)
	f.store.SetFixed(core.GeoPosition{Latitude: 47.41, Longitude: 8.56, Altitude: 430, AltRef: core.AMSL})
	f.controller.Command(core.GimbalAngles{Pitch: -30, Yaw: 10})

	if _, err := f.d.handleClearTarget(dispatcher.Event{}); err != nil {
		t.Fatal(err)
	}
	if _, ok := f.store.Fixed(); ok {
		t.Error("expected no fixed target after clear")
	}
	if st := f.controller.Status().State; st != control.StateIdle {
		t.Errorf("expected idle controller after clear, got %v", st)
	}
}

func TestRun_RecordsControlCycles(t *testing.T) {
	f := newFixture(t)
	f.sim.SetAngles(0, 0)
	if err := f.controller.Command(core.GimbalAngles{Pitch: -40, Yaw: 90}); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	f.d.Run(ctx)

	if err := f.backend.EndSession(); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(f.backend.ExportedFilePath())
	if err != nil {
		t.Fatal(err)
	}
	var export session.Export
	if err := json.Unmarshal(data, &export); err != nil {
		t.Fatal(err)
	}
	if len(export.Commands) == 0 {
		t.Error("expected control cycles recorded while running")
	}
}

func TestSnapshot(t *testing.T) {
	f := newFixture(t)
	f.tele.Update(aircraftAt(47.40, 8.55, 100, 0))
	f.sim.SetAngles(-45, 0)
	f.d.updateTargeting(context.Background())

	snap := f.d.Snapshot()
	if snap.SessionID != "test" {
		t.Errorf("expected session ID in snapshot, got %q", snap.SessionID)
	}
	if snap.TelemetryAgeMs < 0 {
		t.Errorf("expected telemetry age, got %d", snap.TelemetryAgeMs)
	}
	if snap.LastTarget == nil {
		t.Error("expected last target in snapshot")
	}
	if snap.Recovery != f.controller.Status().Recovery {
		t.Errorf("expected snapshot to carry the controller recovery state, got %+v", snap.Recovery)
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
