package session

import (
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"gorm.io/gorm"

	"github.com/skyward-uas/gimbal-director/internal/geo"
	"github.com/skyward-uas/gimbal-director/internal/queue"
	"github.com/skyward-uas/gimbal-director/pkg/core"
)

const defaultFlushInterval = 2 * time.Second

// writeQueues holds the buffers drained by the background writer.
type writeQueues struct {
	Fixes    *queue.Queue[AircraftFix]
	Gimbal   *queue.Queue[GimbalSample]
	Targets  *queue.Queue[TargetSolve]
	Commands *queue.Queue[CommandRecord]
	Faults   *queue.Queue[FaultRecord]
}

func newWriteQueues() *writeQueues {
	return &writeQueues{
		Fixes:    queue.New[AircraftFix](),
		Gimbal:   queue.New[GimbalSample](),
		Targets:  queue.New[TargetSolve](),
		Commands: queue.New[CommandRecord](),
		Faults:   queue.New[FaultRecord](),
	}
}

// DBBackend implements Backend on a GORM database with queue-based
// batch writes.
type DBBackend struct {
	db            *gorm.DB
	log           *slog.Logger
	queues        *writeQueues
	sessionID     atomic.Uint64
	flushInterval time.Duration
	stopChan      chan struct{}
	doneChan      chan struct{}

	mu    sync.Mutex
	track []core.GeoPosition
}

// NewDBBackend wraps an open GORM connection.
func NewDBBackend(db *gorm.DB, log *slog.Logger) *DBBackend {
	if log == nil {
		log = slog.Default()
	}
	return &DBBackend{
		db:            db,
		log:           log,
		flushInterval: defaultFlushInterval,
	}
}

// Init migrates the schema and starts the background writer.
func (b *DBBackend) Init() error {
	b.queues = newWriteQueues()
	b.stopChan = make(chan struct{})
	b.doneChan = make(chan struct{})

	if err := b.db.AutoMigrate(DatabaseModels...); err != nil {
		return fmt.Errorf("migrating session schema: %w", err)
	}

	go b.writerLoop()
	return nil
}

// Close stops the writer and drains what is left.
func (b *DBBackend) Close() error {
	if b.stopChan != nil {
		close(b.stopChan)
		<-b.doneChan
	}
	b.flush()
	return nil
}

// StartSession inserts the session row and remembers its ID for the
// writer goroutine.
func (b *DBBackend) StartSession(info *Info) error {
	rec := Record{
		SessionID: info.ID,
		Aircraft:  info.Aircraft,
		Operator:  info.Operator,
		Notes:     info.Notes,
		StartTime: info.StartTime,
	}
	if err := b.db.Create(&rec).Error; err != nil {
		return fmt.Errorf("inserting session row: %w", err)
	}
	b.sessionID.Store(uint64(rec.ID))
	return nil
}

// EndSession flushes pending records and stamps the end time and the
// projected flight track on the session row.
func (b *DBBackend) EndSession() error {
	b.flush()
	id := uint(b.sessionID.Load())
	if id == 0 {
		return nil
	}
	b.mu.Lock()
	track := geo.Track3857(b.track)
	b.mu.Unlock()
	return b.db.Model(&Record{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"end_time": sql.NullTime{Time: time.Now(), Valid: true},
			"track":    track,
		}).Error
}

func (b *DBBackend) RecordAircraftState(s core.AircraftState) error {
	b.queues.Fixes.Push(fixFromState(s))
	b.mu.Lock()
	b.track = append(b.track, s.Position)
	b.mu.Unlock()
	return nil
}

func (b *DBBackend) RecordGimbalAngles(a core.GimbalAngles) error {
	b.queues.Gimbal.Push(sampleFromAngles(a))
	return nil
}

func (b *DBBackend) RecordTarget(r core.TargetResult) error {
	b.queues.Targets.Push(solveFromResult(r))
	return nil
}

func (b *DBBackend) RecordCommand(cmd core.ControlCommand, state string, at time.Time) error {
	b.queues.Commands.Push(commandRecord(cmd, state, at))
	return nil
}

func (b *DBBackend) RecordFault(reason string, at time.Time) error {
	b.queues.Faults.Push(FaultRecord{Time: at, Reason: reason})
	return nil
}

// QueueLengths reports pending record counts per queue for the status
// service.
func (b *DBBackend) QueueLengths() map[string]int {
	if b.queues == nil {
		return nil
	}
	return map[string]int{
		"fixes":    b.queues.Fixes.Len(),
		"gimbal":   b.queues.Gimbal.Len(),
		"targets":  b.queues.Targets.Len(),
		"commands": b.queues.Commands.Len(),
		"faults":   b.queues.Faults.Len(),
	}
}

// writeQueue drains one queue into the database in a transaction,
// requeueing the batch on failure.
func writeQueue[T any](db *gorm.DB, q *queue.Queue[T], name string, log *slog.Logger, stamp func([]T)) {
	if q.Empty() {
		return
	}

	tx := db.Begin()
	items := q.GetAndEmpty()
	if stamp != nil {
		stamp(items)
	}
	if err := tx.Create(&items).Error; err != nil {
		log.Error("session batch write failed", "table", name, "count", len(items), "error", err)
		tx.Rollback()
		q.Push(items...)
		return
	}
	tx.Commit()
}

func (b *DBBackend) flush() {
	sessionID := uint(b.sessionID.Load())

	writeQueue(b.db, b.queues.Fixes, "aircraft_fixes", b.log, func(items []AircraftFix) {
		for i := range items {
			items[i].SessionID = sessionID
		}
	})
	writeQueue(b.db, b.queues.Gimbal, "gimbal_samples", b.log, func(items []GimbalSample) {
		for i := range items {
			items[i].SessionID = sessionID
		}
	})
	writeQueue(b.db, b.queues.Targets, "target_solves", b.log, func(items []TargetSolve) {
		for i := range items {
			items[i].SessionID = sessionID
		}
	})
	writeQueue(b.db, b.queues.Commands, "command_records", b.log, func(items []CommandRecord) {
		for i := range items {
			items[i].SessionID = sessionID
		}
	})
	writeQueue(b.db, b.queues.Faults, "fault_records", b.log, func(items []FaultRecord) {
		for i := range items {
			items[i].SessionID = sessionID
		}
	})
}

// writerLoop periodically drains the queues into the database.
func (b *DBBackend) writerLoop() {
	defer close(b.doneChan)
	ticker := time.NewTicker(b.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopChan:
			return
		case <-ticker.C:
			b.flush()
		}
	}
}
