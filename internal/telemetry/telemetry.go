// Package telemetry caches the latest aircraft state snapshot for the
// targeting and control loops. Writers push snapshots without blocking
// readers; readers get the most recent value or ErrStale, never a wait.
package telemetry

import (
	"errors"
	"sync"
	"time"

	"github.com/skyward-uas/gimbal-director/pkg/core"
)

// ErrStale is returned when no snapshot arrived within the stale threshold.
var ErrStale = errors.New("telemetry: aircraft state is stale")

// Source produces aircraft state snapshots. Implemented by the flight
// controller adapter; defined here on the consuming side.
type Source interface {
	CurrentState() (core.AircraftState, error)
}

// Manager holds the most recent aircraft state snapshot.
type Manager struct {
	mu             sync.RWMutex
	state          core.AircraftState
	lastUpdated    time.Time
	staleThreshold time.Duration
}

// NewManager creates a Manager with the given stale threshold. A zero
// threshold disables staleness checking.
func NewManager(staleThreshold time.Duration) *Manager {
	return &Manager{staleThreshold: staleThreshold}
}

// Update stores a new snapshot and records the current time.
func (m *Manager) Update(state core.AircraftState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = state
	m.lastUpdated = time.Now()
}

// CurrentState returns the cached snapshot, or ErrStale if nothing has been
// received yet or the data age exceeds the threshold.
func (m *Manager) CurrentState() (core.AircraftState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.lastUpdated.IsZero() {
		return core.AircraftState{}, ErrStale
	}
	if m.staleThreshold > 0 && time.Since(m.lastUpdated) > m.staleThreshold {
		return core.AircraftState{}, ErrStale
	}
	return m.state, nil
}

// LastUpdated returns the time of the most recent Update, or zero if never
// updated.
func (m *Manager) LastUpdated() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastUpdated
}
