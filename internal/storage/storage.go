// Package storage defines the rotation history sinks. Implementations live in
// the memory, gorm and websocket subpackages.
package storage

import "github.com/warfare-dev/extension/pkg/core"

// Backend receives the history of flag rotations. Calls arrive from a single
// goroutine, in event order.
type Backend interface {
	Init() error
	Close() error

	// StartRotation begins a rotation and assigns r.ID.
	StartRotation(r *core.Rotation) error
	// EndRotation finalizes the current rotation. r carries the end time,
	// the winner and the final flag owners.
	EndRotation(r *core.Rotation) error

	RecordCapture(c *core.CaptureRecord) error
	RecordContestSnapshot(s *core.ContestSnapshot) error
	RecordPoints(p *core.PointsRecord) error
}

// Uploadable is an optional interface for backends that produce a file
// suitable for upload to the stats server.
type Uploadable interface {
	GetExportedFilePath() string
	GetExportMetadata() core.UploadMetadata
}
