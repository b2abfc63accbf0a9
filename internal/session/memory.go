package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/skyward-uas/gimbal-director/pkg/core"
)

type commandEntry struct {
	Time    time.Time           `json:"time"`
	Command core.ControlCommand `json:"command"`
	State   string              `json:"state"`
}

type faultEntry struct {
	Time   time.Time `json:"time"`
	Reason string    `json:"reason"`
}

// MemoryBackend keeps the session in memory and exports it as a JSON
// file on EndSession.
type MemoryBackend struct {
	cfg Config

	mu       sync.RWMutex
	info     *Info
	fixes    []core.AircraftState
	gimbal   []core.GimbalAngles
	targets  []core.TargetResult
	commands []commandEntry
	faults   []faultEntry

	lastExportPath string
}

// NewMemory creates a memory backend writing exports under
// cfg.OutputDir.
func NewMemory(cfg Config) *MemoryBackend {
	return &MemoryBackend{cfg: cfg}
}

func (b *MemoryBackend) Init() error {
	return nil
}

func (b *MemoryBackend) Close() error {
	return nil
}

// StartSession resets all collections for a new recording.
func (b *MemoryBackend) StartSession(info *Info) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.info = info
	b.fixes = nil
	b.gimbal = nil
	b.targets = nil
	b.commands = nil
	b.faults = nil
	b.lastExportPath = ""
	return nil
}

// EndSession exports the collected session to a JSON file.
func (b *MemoryBackend) EndSession() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.info == nil {
		return fmt.Errorf("no session in progress")
	}
	return b.exportJSON()
}

func (b *MemoryBackend) RecordAircraftState(s core.AircraftState) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.fixes = append(b.fixes, s)
	return nil
}

func (b *MemoryBackend) RecordGimbalAngles(a core.GimbalAngles) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.gimbal = append(b.gimbal, a)
	return nil
}

func (b *MemoryBackend) RecordTarget(r core.TargetResult) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.targets = append(b.targets, r)
	return nil
}

func (b *MemoryBackend) RecordCommand(cmd core.ControlCommand, state string, at time.Time) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.commands = append(b.commands, commandEntry{Time: at, Command: cmd, State: state})
	return nil
}

func (b *MemoryBackend) RecordFault(reason string, at time.Time) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.faults = append(b.faults, faultEntry{Time: at, Reason: reason})
	return nil
}

// ExportedFilePath returns the path written by the last EndSession.
func (b *MemoryBackend) ExportedFilePath() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastExportPath
}
