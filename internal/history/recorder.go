// Package history turns flag events into rotation records and hands them to
// the storage backend, off the game loop.
package history

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/warfare-dev/extension/internal/cache"
	"github.com/warfare-dev/extension/internal/config"
	"github.com/warfare-dev/extension/internal/eventbus"
	"github.com/warfare-dev/extension/internal/flags"
	"github.com/warfare-dev/extension/internal/influx"
	"github.com/warfare-dev/extension/internal/mission"
	"github.com/warfare-dev/extension/internal/storage"
	"github.com/warfare-dev/extension/pkg/core"
)

const defaultQueueSize = 1024

// ErrQueueFull is logged when events arrive faster than the backend drains.
var ErrQueueFull = errors.New("history queue full")

// Uploader sends a finished rotation export to the stats server.
type Uploader interface {
	Upload(filePath string, meta core.UploadMetadata) error
}

// PointWriter receives time series points. *influx.Manager implements it.
type PointWriter interface {
	WritePoint(ctx context.Context, bucket string, point *influxdb2_write.Point) error
	FlagBucket() string
}

// Deps holds the recorder's collaborators. Bus, Backend and Mission are
// required.
type Deps struct {
	Bus       *eventbus.Bus
	Backend   storage.Backend
	Mission   *mission.Context
	Aliases   *cache.FlagAliases
	Points    PointWriter
	Uploader  Uploader
	Flags     config.FlagsConfig
	Logger    *slog.Logger
	Now       func() time.Time
	QueueSize int
}

// Recorder keeps the history of the running rotation. Event handlers run on
// the publisher's goroutine and only enqueue; one worker applies them in
// publication order.
type Recorder struct {
	deps   Deps
	events chan any
	unsubs []func()
	wg     sync.WaitGroup

	mu       sync.RWMutex
	stopped  bool
	stopOnce sync.Once

	// worker-owned
	rotation *core.Rotation
	owners   map[int]uint8
	leaders  map[int]core.Team
	points   map[int]int
}

// New creates a recorder. Call Start to subscribe it to the bus.
func New(deps Deps) *Recorder {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.QueueSize <= 0 {
		deps.QueueSize = defaultQueueSize
	}
	return &Recorder{
		deps:   deps,
		events: make(chan any, deps.QueueSize),
	}
}

// Start subscribes to flag events and starts the worker.
func (r *Recorder) Start() {
	r.unsubs = []func(){
		subscribe[flags.FlagsSetUp](r),
		subscribe[flags.FlagCaptured](r),
		subscribe[flags.FlagNeutralized](r),
		subscribe[flags.FlagContestPointsChanged](r),
		subscribe[flags.FlagContestStateChanged](r),
		subscribe[flags.FlagRotationWon](r),
		subscribe[flags.FlagsTornDown](r),
	}
	r.wg.Add(1)
	go r.run()
}

// Stop unsubscribes and waits until every queued event has been applied.
func (r *Recorder) Stop() {
	r.stopOnce.Do(func() {
		for _, unsub := range r.unsubs {
			unsub()
		}
		r.mu.Lock()
		r.stopped = true
		close(r.events)
		r.mu.Unlock()
		r.wg.Wait()
	})
}

func subscribe[T any](r *Recorder) func() {
	return eventbus.Subscribe(r.deps.Bus, func(_ context.Context, ev T) error {
		r.mu.RLock()
		defer r.mu.RUnlock()
		if r.stopped {
			return nil
		}
		select {
		case r.events <- ev:
			return nil
		default:
			return ErrQueueFull
		}
	}, eventbus.Named("history"))
}

func (r *Recorder) run() {
	defer r.wg.Done()
	for ev := range r.events {
		r.apply(ev)
	}
}

func (r *Recorder) apply(ev any) {
	switch e := ev.(type) {
	case flags.FlagsSetUp:
		r.onSetUp(e)
	case flags.FlagCaptured:
		r.onCaptured(e)
	case flags.FlagNeutralized:
		r.onNeutralized(e)
	case flags.FlagContestPointsChanged:
		r.onPointsChanged(e)
	case flags.FlagContestStateChanged:
		r.onStateChanged(e)
	case flags.FlagRotationWon:
		r.deps.Logger.Info("Rotation won", "rotation", e.RotationID, "winner", e.Winner.String())
	case flags.FlagsTornDown:
		r.onTornDown(e)
	}
}

func (r *Recorder) onSetUp(e flags.FlagsSetUp) {
	rot := &core.Rotation{
		UUID:         e.RotationID,
		Mode:         e.Mode,
		Pathing:      e.Pathing,
		StartTime:    r.deps.Now(),
		ServerName:   r.deps.Mission.ServerName(),
		MapName:      r.deps.Mission.MapName(),
		TickInterval: r.deps.Flags.TickInterval,
		MaxPoints:    r.deps.Flags.MaxPoints,
	}
	for _, f := range e.Flags {
		rot.Flags = append(rot.Flags, core.RotationFlag{
			Index:  f.Index,
			Name:   f.Name,
			Center: f.Center,
		})
		if r.deps.Aliases != nil {
			r.deps.Aliases.Add(f.Name, f.ShortName)
		}
	}

	r.owners = make(map[int]uint8)
	r.leaders = make(map[int]core.Team)
	r.points = make(map[int]int)

	if err := r.deps.Backend.StartRotation(rot); err != nil {
		r.deps.Logger.Error("Failed to start rotation history", "rotation", rot.UUID, "error", err)
	}
	r.rotation = rot
	r.deps.Mission.SetRotation(*rot)
	r.deps.Logger.Info("Rotation started",
		"rotation", rot.UUID,
		"mode", rot.Mode,
		"flags", len(rot.Flags),
		"team1", e.Team1.String(),
		"team2", e.Team2.String())
}

func (r *Recorder) onCaptured(e flags.FlagCaptured) {
	if r.rotation == nil {
		return
	}
	rec := core.CaptureRecord{
		Time:     r.deps.Now(),
		Flag:     e.Flag.Name,
		Index:    e.Flag.Index,
		Team:     e.Capturer.ID,
		Previous: r.owners[e.Flag.Index],
		Players:  e.Players,
	}
	r.owners[e.Flag.Index] = e.Capturer.ID
	r.recordCapture(rec)
}

func (r *Recorder) onNeutralized(e flags.FlagNeutralized) {
	if r.rotation == nil || !e.WasOwned {
		return
	}
	rec := core.CaptureRecord{
		Time:        r.deps.Now(),
		Flag:        e.Flag.Name,
		Index:       e.Flag.Index,
		Team:        e.Neutralizer.ID,
		Previous:    e.PreviousLeader.ID,
		Neutralized: true,
	}
	r.owners[e.Flag.Index] = 0
	r.recordCapture(rec)
}

func (r *Recorder) recordCapture(rec core.CaptureRecord) {
	if err := r.deps.Backend.RecordCapture(&rec); err != nil {
		r.deps.Logger.Error("Failed to record capture", "flag", rec.Flag, "error", err)
	}
	r.writePoint(influx.CapturePoint(r.rotation.UUID, r.rotation.MapName, rec))
}

func (r *Recorder) onPointsChanged(e flags.FlagContestPointsChanged) {
	if r.rotation == nil {
		return
	}
	r.leaders[e.Flag.Index] = e.Leader
	r.points[e.Flag.Index] = e.Points

	rec := core.PointsRecord{
		Time:   r.deps.Now(),
		Flag:   e.Flag.Name,
		Leader: e.Leader.ID,
		Change: e.Change,
		Points: e.Points,
	}
	if err := r.deps.Backend.RecordPoints(&rec); err != nil {
		r.deps.Logger.Error("Failed to record points", "flag", rec.Flag, "error", err)
	}
	r.writePoint(influx.PointsPoint(r.rotation.UUID, r.rotation.MapName, rec))
}

func (r *Recorder) onStateChanged(e flags.FlagContestStateChanged) {
	if r.rotation == nil {
		return
	}
	presence := make(map[uint8]int, len(e.Presence))
	for team, n := range e.Presence {
		presence[team] = n
	}
	snap := &core.ContestSnapshot{
		Time:     r.deps.Now(),
		Flag:     e.Flag.Name,
		State:    e.New.Kind.String(),
		Team:     e.New.Team.ID,
		Leader:   r.leaders[e.Flag.Index].ID,
		Points:   r.points[e.Flag.Index],
		Contest:  e.New.Kind == flags.KindContested,
		Presence: presence,
	}
	if err := r.deps.Backend.RecordContestSnapshot(snap); err != nil {
		r.deps.Logger.Error("Failed to record contest snapshot", "flag", snap.Flag, "error", err)
	}
}

func (r *Recorder) onTornDown(e flags.FlagsTornDown) {
	if r.rotation == nil {
		return
	}
	rot := r.rotation
	rot.EndTime = r.deps.Now()
	rot.Winner = e.Winner.ID
	for i := range rot.Flags {
		f := &rot.Flags[i]
		f.Owner = r.owners[f.Index]
		if leader := r.leaders[f.Index]; leader.ID != f.Owner && r.points[f.Index] > 0 {
			f.Attacker = leader.ID
		}
	}

	if err := r.deps.Backend.EndRotation(rot); err != nil {
		r.deps.Logger.Error("Failed to end rotation history", "rotation", rot.UUID, "error", err)
	} else {
		r.upload()
	}

	r.deps.Mission.ClearRotation()
	if r.deps.Aliases != nil {
		r.deps.Aliases.Reset()
	}
	r.rotation = nil
	r.deps.Logger.Info("Rotation ended",
		"rotation", rot.UUID,
		"winner", e.Winner.String(),
		"duration", rot.EndTime.Sub(rot.StartTime))
}

func (r *Recorder) upload() {
	if r.deps.Uploader == nil {
		return
	}
	up, ok := r.deps.Backend.(storage.Uploadable)
	if !ok {
		return
	}
	path := up.GetExportedFilePath()
	if path == "" {
		return
	}
	if err := r.deps.Uploader.Upload(path, up.GetExportMetadata()); err != nil {
		r.deps.Logger.Warn("Rotation upload failed, export kept on disk", "path", path, "error", err)
		return
	}
	r.deps.Logger.Info("Rotation uploaded", "path", path)
}

func (r *Recorder) writePoint(p *influxdb2_write.Point) {
	if r.deps.Points == nil {
		return
	}
	if err := r.deps.Points.WritePoint(context.Background(), r.deps.Points.FlagBucket(), p); err != nil {
		r.deps.Logger.Debug("Influx write failed", "error", err)
	}
}
