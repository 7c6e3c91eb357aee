// Package gormstorage implements the storage.Backend interface on GORM, for
// either PostgreSQL or SQLite, with internal queues drained by a background
// writer goroutine.
package gormstorage

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/warfare-dev/extension/internal/database"
	"github.com/warfare-dev/extension/internal/logging"
	"github.com/warfare-dev/extension/internal/model"
	"github.com/warfare-dev/extension/internal/model/convert"
	"github.com/warfare-dev/extension/internal/queue"
	"github.com/warfare-dev/extension/pkg/core"
	"gorm.io/gorm"
)

// ErrNoDatabase is returned by Init when no connection was injected.
var ErrNoDatabase = errors.New("gorm backend needs a database connection")

const defaultFlushInterval = 5 * time.Second

// pending contest snapshots past this count are dropped oldest first
const maxQueuedSnapshots = 100_000

// Dependencies holds all dependencies for the GORM storage backend.
type Dependencies struct {
	DB            *gorm.DB
	LogManager    *logging.SlogManager
	FlushInterval time.Duration

	// DumpPath and DumpInterval enable periodic VACUUM INTO snapshots of an
	// in-memory SQLite database.
	DumpPath     string
	DumpInterval time.Duration
}

// queues holds the write queues for batch DB insertion.
type queues struct {
	Captures         *queue.Queue[model.Capture]
	ContestSnapshots *queue.Queue[model.ContestSnapshot]
}

func newQueues() *queues {
	return &queues{
		Captures:         queue.New[model.Capture](),
		ContestSnapshots: queue.NewBounded[model.ContestSnapshot](maxQueuedSnapshots),
	}
}

// Backend implements storage.Backend using GORM with queue-based batch writes.
type Backend struct {
	deps       Dependencies
	queues     *queues
	rotationID atomic.Uint64
	stopChan   chan struct{}
	wg         sync.WaitGroup
	flushMu    sync.Mutex
	closeOnce  sync.Once
}

// New creates a new GORM storage backend.
func New(deps Dependencies) *Backend {
	if deps.FlushInterval <= 0 {
		deps.FlushInterval = defaultFlushInterval
	}
	if deps.LogManager == nil {
		deps.LogManager = logging.NewSlogManager()
	}
	return &Backend{deps: deps}
}

// Init migrates the schema and starts the DB writer goroutine.
func (b *Backend) Init() error {
	if b.deps.DB == nil {
		return ErrNoDatabase
	}
	b.queues = newQueues()
	b.stopChan = make(chan struct{})

	b.deps.LogManager.WriteLog("gorm:Init", "Migrating schema", "INFO")
	if err := database.Migrate(b.deps.DB); err != nil {
		return fmt.Errorf("failed to setup DB: %w", err)
	}

	b.wg.Add(1)
	go b.writerLoop()

	if b.deps.DumpPath != "" && b.deps.DumpInterval > 0 {
		b.wg.Add(1)
		go b.dumpLoop()
	}
	return nil
}

// Close stops the background goroutines and writes whatever is still queued.
func (b *Backend) Close() error {
	if b.stopChan == nil {
		return nil
	}
	b.closeOnce.Do(func() {
		close(b.stopChan)
		b.wg.Wait()
		b.flush()
	})
	return nil
}

// StartRotation inserts the rotation and its path synchronously so that
// queued rows can reference its ID.
func (b *Backend) StartRotation(r *core.Rotation) error {
	if r.UUID == "" {
		r.UUID = uuid.NewString()
	}
	row := convert.CoreToRotation(*r)
	row.ID = 0
	if err := b.deps.DB.Create(&row).Error; err != nil {
		return fmt.Errorf("failed to insert rotation: %w", err)
	}

	r.ID = row.ID
	b.rotationID.Store(uint64(row.ID))
	return nil
}

// EndRotation drains the queues, then stores the result and final flag owners.
func (b *Backend) EndRotation(r *core.Rotation) error {
	id := uint(b.rotationID.Load())
	if id == 0 {
		return fmt.Errorf("no rotation in progress")
	}
	b.flush()

	end := r.EndTime
	if end.IsZero() {
		end = time.Now()
	}

	return b.deps.DB.Transaction(func(tx *gorm.DB) error {
		err := tx.Model(&model.Rotation{}).Where("id = ?", id).Updates(map[string]any{
			"end_time": end,
			"winner":   r.Winner,
		}).Error
		if err != nil {
			return fmt.Errorf("failed to update rotation: %w", err)
		}

		for _, f := range r.Flags {
			err := tx.Model(&model.RotationFlag{}).
				Where("rotation_id = ? AND flag_index = ?", id, f.Index).
				Updates(map[string]any{"owner": f.Owner, "attacker": f.Attacker}).Error
			if err != nil {
				return fmt.Errorf("failed to update flag %s: %w", f.Name, err)
			}
		}
		return nil
	})
}

// RecordCapture converts and queues a capture.
func (b *Backend) RecordCapture(c *core.CaptureRecord) error {
	b.queues.Captures.Push(convert.CoreToCapture(0, *c))
	return nil
}

// RecordContestSnapshot converts and queues a contest snapshot.
func (b *Backend) RecordContestSnapshot(s *core.ContestSnapshot) error {
	b.queues.ContestSnapshots.Push(convert.CoreToContestSnapshot(0, *s))
	return nil
}

// RecordPoints is a no-op; per-tick points go to the time series store.
func (b *Backend) RecordPoints(p *core.PointsRecord) error {
	return nil
}

// RotationID returns the ID of the rotation being recorded.
func (b *Backend) RotationID() uint {
	return uint(b.rotationID.Load())
}

// writeQueue writes all items from a queue to the database in a transaction.
// On failure the items go back to the front of the queue for the next cycle.
func writeQueue[T any](db *gorm.DB, q *queue.Queue[T], name string, log func(string, string, string), prepare func([]T)) {
	if q.Empty() {
		return
	}

	items := q.Drain()
	if prepare != nil {
		prepare(items)
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		return tx.Create(&items).Error
	})
	if err != nil {
		log(":DB:WRITER:", fmt.Sprintf("Error creating %s: %v", name, err), "ERROR")
		q.Requeue(items)
	}
}

func (b *Backend) flush() {
	b.flushMu.Lock()
	defer b.flushMu.Unlock()

	log := b.deps.LogManager.WriteLog
	rotationID := uint(b.rotationID.Load())

	writeQueue(b.deps.DB, b.queues.Captures, "captures", log, func(items []model.Capture) {
		for i := range items {
			items[i].RotationID = rotationID
		}
	})
	writeQueue(b.deps.DB, b.queues.ContestSnapshots, "contest snapshots", log, func(items []model.ContestSnapshot) {
		for i := range items {
			items[i].RotationID = rotationID
		}
	})
}

// writerLoop periodically drains the queues into the DB.
func (b *Backend) writerLoop() {
	defer b.wg.Done()
	ticker := time.NewTicker(b.deps.FlushInterval)
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

// dumpLoop periodically snapshots an in-memory SQLite database to disk.
func (b *Backend) dumpLoop() {
	defer b.wg.Done()
	ticker := time.NewTicker(b.deps.DumpInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopChan:
			return
		case <-ticker.C:
			start := time.Now()
			if err := database.DumpMemoryDBToDisk(b.deps.DB, b.deps.DumpPath); err != nil {
				b.deps.LogManager.WriteLog("gorm:dumpLoop", fmt.Sprintf("Error dumping to disk: %v", err), "ERROR")
			} else {
				b.deps.LogManager.WriteLog("gorm:dumpLoop", fmt.Sprintf("Dumped to disk in %s", time.Since(start)), "DEBUG")
			}
		}
	}
}
