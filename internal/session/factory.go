package session

import (
	"fmt"
	"log/slog"
)

// Config selects and configures a session backend.
type Config struct {
	Backend        string // "memory", "sqlite" or "postgres"
	OutputDir      string // memory backend export directory
	CompressOutput bool
	SQLitePath     string
	PostgresDSN    string
}

// NewBackend creates a session backend from cfg.
func NewBackend(cfg Config, log *slog.Logger) (Backend, error) {
	switch cfg.Backend {
	case "memory", "":
		return NewMemory(cfg), nil
	case "sqlite":
		db, err := openSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return NewDBBackend(db, log), nil
	case "postgres":
		if cfg.PostgresDSN == "" {
			return nil, fmt.Errorf("postgres backend requires a DSN")
		}
		db, err := openPostgres(cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		return NewDBBackend(db, log), nil
	default:
		return nil, fmt.Errorf("unknown session backend: %s", cfg.Backend)
	}
}
