package targeting

import (
	"sync"
	"time"

	"github.com/skyward-uas/gimbal-director/pkg/core"
)

// Mode selects how the target coordinate is produced.
type Mode int

const (
	// ModeGimbal derives the target from wherever the gimbal currently
	// points (forward solve).
	ModeGimbal Mode = iota
	// ModeFixed holds a fixed coordinate and drives the gimbal at it
	// (reverse solve).
	ModeFixed
)

func (m Mode) String() string {
	switch m {
	case ModeGimbal:
		return "gimbal"
	case ModeFixed:
		return "fixed"
	default:
		return "unknown"
	}
}

// Store holds the active targeting mode and, in fixed mode, the coordinate
// being tracked. Safe for concurrent use.
type Store struct {
	mu     sync.RWMutex
	mode   Mode
	target core.GeoPosition
	setAt  time.Time
}

// NewStore starts in gimbal-follow mode.
func NewStore() *Store {
	return &Store{}
}

// SetFixed switches to fixed-target mode at the given coordinate.
func (s *Store) SetFixed(target core.GeoPosition) error {
	if err := target.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mode = ModeFixed
	s.target = target
	s.setAt = time.Now()
	return nil
}

// Clear returns to gimbal-follow mode.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mode = ModeGimbal
	s.target = core.GeoPosition{}
	s.setAt = time.Time{}
}

// Mode reports the active mode.
func (s *Store) Mode() Mode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mode
}

// Fixed returns the fixed target when one is set.
func (s *Store) Fixed() (core.GeoPosition, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.target, s.mode == ModeFixed
}
