// Package session records targeting sessions: aircraft fixes, gimbal
// attitude samples, target solves, commands sent, and faults. Backends
// persist to Postgres, SQLite, or memory with JSON export.
package session

import (
	"time"

	"github.com/skyward-uas/gimbal-director/pkg/core"
)

// Info identifies a recording session.
type Info struct {
	ID        string    `json:"id"`
	Aircraft  string    `json:"aircraft"`
	Operator  string    `json:"operator"`
	Notes     string    `json:"notes,omitempty"`
	StartTime time.Time `json:"startTime"`
}

// Backend is the interface all session storage implementations satisfy.
type Backend interface {
	Init() error
	Close() error

	StartSession(info *Info) error
	EndSession() error

	RecordAircraftState(s core.AircraftState) error
	RecordGimbalAngles(a core.GimbalAngles) error
	RecordTarget(r core.TargetResult) error
	RecordCommand(cmd core.ControlCommand, state string, at time.Time) error
	RecordFault(reason string, at time.Time) error
}

// Exportable is an optional interface for backends that produce a
// session file on EndSession.
type Exportable interface {
	ExportedFilePath() string
}
