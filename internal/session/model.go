package session

import (
	"database/sql"
	"encoding/json"
	"time"

	geom "github.com/peterstace/simplefeatures/geom"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/skyward-uas/gimbal-director/pkg/core"
)

// DatabaseModels lists every table in the session schema.
var DatabaseModels = []interface{}{
	&Record{},
	&AircraftFix{},
	&GimbalSample{},
	&TargetSolve{},
	&CommandRecord{},
	&FaultRecord{},
}

// Record is the session row all other tables hang off. Track is the
// flight path as an EPSG:3857 linestring, written on EndSession.
type Record struct {
	gorm.Model
	SessionID string `json:"sessionId" gorm:"size:64;uniqueIndex"`
	Aircraft  string `json:"aircraft" gorm:"size:127"`
	Operator  string `json:"operator" gorm:"size:127"`
	Notes     string `json:"notes" gorm:"size:2000"`
	StartTime time.Time
	EndTime   sql.NullTime
	Track     geom.LineString
}

func (*Record) TableName() string {
	return "sessions"
}

// AircraftFix is one telemetry snapshot. Location is lon/lat WGS84.
type AircraftFix struct {
	ID        uint      `gorm:"primarykey"`
	SessionID uint      `gorm:"index:idx_fix_session"`
	Time      time.Time `gorm:"index:idx_fix_time"`
	Location  geom.Point
	AltitudeM float64
	AltRef    string `gorm:"size:8"`
	Heading   float64
	Roll      float64
	Pitch     float64
	Yaw       float64
}

func (*AircraftFix) TableName() string {
	return "aircraft_fixes"
}

// GimbalSample is one reported gimbal attitude.
type GimbalSample struct {
	ID        uint      `gorm:"primarykey"`
	SessionID uint      `gorm:"index:idx_gimbal_session"`
	Time      time.Time `gorm:"index:idx_gimbal_time"`
	Pitch     float64
	Yaw       float64
}

func (*GimbalSample) TableName() string {
	return "gimbal_samples"
}

// TargetSolve is one solved target. Detail carries the full result as
// JSON so the solver output survives schema changes.
type TargetSolve struct {
	ID         uint      `gorm:"primarykey"`
	SessionID  uint      `gorm:"index:idx_solve_session"`
	Time       time.Time `gorm:"index:idx_solve_time"`
	Location   geom.Point
	AltitudeM  float64
	Class      string `gorm:"size:16"`
	Distance2D float64
	Distance3D float64
	ErrorM     float64
	Iterations int
	Converged  bool
	Degraded   bool
	Detail     datatypes.JSON
}

func (*TargetSolve) TableName() string {
	return "target_solves"
}

// CommandRecord is one velocity command sent to the gimbal.
type CommandRecord struct {
	ID         uint      `gorm:"primarykey"`
	SessionID  uint      `gorm:"index:idx_cmd_session"`
	Time       time.Time `gorm:"index:idx_cmd_time"`
	YawSpeed   int
	PitchSpeed int
	State      string `gorm:"size:32"`
}

func (*CommandRecord) TableName() string {
	return "command_records"
}

// FaultRecord is one control-loop fault.
type FaultRecord struct {
	ID        uint      `gorm:"primarykey"`
	SessionID uint      `gorm:"index:idx_fault_session"`
	Time      time.Time
	Reason    string `gorm:"size:255"`
}

func (*FaultRecord) TableName() string {
	return "fault_records"
}

// geoPoint builds a lon/lat point for storage.
func geoPoint(p core.GeoPosition) geom.Point {
	return geom.NewPoint(geom.Coordinates{XY: geom.XY{X: p.Longitude, Y: p.Latitude}})
}

func fixFromState(s core.AircraftState) AircraftFix {
	return AircraftFix{
		Time:      s.Time,
		Location:  geoPoint(s.Position),
		AltitudeM: s.Position.Altitude,
		AltRef:    string(s.Position.AltRef),
		Heading:   s.Heading,
		Roll:      s.Roll,
		Pitch:     s.Pitch,
		Yaw:       s.Yaw,
	}
}

func sampleFromAngles(a core.GimbalAngles) GimbalSample {
	return GimbalSample{Time: a.Time, Pitch: a.Pitch, Yaw: a.Yaw}
}

func solveFromResult(r core.TargetResult) TargetSolve {
	detail, err := json.Marshal(r)
	if err != nil {
		detail = nil
	}
	return TargetSolve{
		Time:       r.Time,
		Location:   geoPoint(r.Position),
		AltitudeM:  r.Position.Altitude,
		Class:      string(r.Class),
		Distance2D: r.Distance2D,
		Distance3D: r.Distance3D,
		ErrorM:     r.ErrorM,
		Iterations: r.Iterations,
		Converged:  r.Converged,
		Degraded:   r.Degraded,
		Detail:     detail,
	}
}

func commandRecord(cmd core.ControlCommand, state string, at time.Time) CommandRecord {
	return CommandRecord{
		Time:       at,
		YawSpeed:   cmd.YawSpeed,
		PitchSpeed: cmd.PitchSpeed,
		State:      state,
	}
}
