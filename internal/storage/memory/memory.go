// internal/storage/memory/memory.go
package memory

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/warfare-dev/extension/internal/config"
	"github.com/warfare-dev/extension/pkg/core"
)

// Backend keeps the current rotation in memory and exports it to JSON when
// the rotation ends
type Backend struct {
	cfg      config.MemoryConfig
	rotation *core.Rotation

	captures  []core.CaptureRecord
	snapshots []core.ContestSnapshot
	points    []core.PointsRecord

	idCounter      uint
	lastExportPath string
	lastExport     *Export
	mu             sync.RWMutex
}

// New creates a new memory backend
func New(cfg config.MemoryConfig) *Backend {
	return &Backend{cfg: cfg}
}

// Init initializes the backend
func (b *Backend) Init() error {
	return nil
}

// Close cleans up resources
func (b *Backend) Close() error {
	return nil
}

// StartRotation begins recording a new rotation and drops anything held from
// the previous one
func (b *Backend) StartRotation(r *core.Rotation) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.idCounter++
	r.ID = b.idCounter
	if r.UUID == "" {
		r.UUID = uuid.NewString()
	}
	if r.StartTime.IsZero() {
		r.StartTime = time.Now()
	}

	rot := *r
	rot.Flags = append([]core.RotationFlag(nil), r.Flags...)
	b.rotation = &rot
	b.captures = nil
	b.snapshots = nil
	b.points = nil
	return nil
}

// EndRotation finalizes the rotation and exports it
func (b *Backend) EndRotation(r *core.Rotation) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.rotation == nil {
		return ErrNoRotation
	}
	b.rotation.EndTime = r.EndTime
	if b.rotation.EndTime.IsZero() {
		b.rotation.EndTime = time.Now()
	}
	b.rotation.Winner = r.Winner
	if len(r.Flags) > 0 {
		b.rotation.Flags = append([]core.RotationFlag(nil), r.Flags...)
	}

	return b.exportJSON()
}

// RecordCapture records a flag capture or neutralization
func (b *Backend) RecordCapture(c *core.CaptureRecord) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.rotation == nil {
		return nil
	}
	b.idCounter++
	c.ID = b.idCounter
	b.captures = append(b.captures, *c)
	return nil
}

// RecordContestSnapshot records a contest state change
func (b *Backend) RecordContestSnapshot(s *core.ContestSnapshot) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.rotation == nil {
		return nil
	}
	b.idCounter++
	s.ID = b.idCounter
	b.snapshots = append(b.snapshots, *s)
	return nil
}

// RecordPoints records a points change
func (b *Backend) RecordPoints(p *core.PointsRecord) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.rotation == nil {
		return nil
	}
	b.points = append(b.points, *p)
	return nil
}

// Rotation returns a copy of the rotation being recorded.
func (b *Backend) Rotation() (core.Rotation, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.rotation == nil {
		return core.Rotation{}, false
	}
	return *b.rotation, true
}

// Captures returns the captures recorded so far.
func (b *Backend) Captures() []core.CaptureRecord {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]core.CaptureRecord(nil), b.captures...)
}

// GetExportedFilePath returns the path of the last exported file
func (b *Backend) GetExportedFilePath() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastExportPath
}

// GetExportMetadata describes the last exported rotation for upload
func (b *Backend) GetExportMetadata() core.UploadMetadata {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.rotation == nil {
		return core.UploadMetadata{}
	}
	return core.UploadMetadata{
		MapName:          b.rotation.MapName,
		Mode:             b.rotation.Mode,
		RotationDuration: b.rotation.EndTime.Sub(b.rotation.StartTime).Seconds(),
		Winner:           b.rotation.Winner,
		Tag:              b.cfg.Tag,
	}
}
