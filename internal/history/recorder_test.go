package history

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warfare-dev/extension/internal/cache"
	"github.com/warfare-dev/extension/internal/config"
	"github.com/warfare-dev/extension/internal/eventbus"
	"github.com/warfare-dev/extension/internal/flags"
	"github.com/warfare-dev/extension/internal/mission"
	"github.com/warfare-dev/extension/internal/storage"
	"github.com/warfare-dev/extension/internal/storage/memory"
	"github.com/warfare-dev/extension/pkg/core"
)

var (
	blufor = core.Team{ID: 1, Faction: core.Faction{ShortName: "BLU"}}
	opfor  = core.Team{ID: 2, Faction: core.Faction{ShortName: "OPF"}}

	kavala = flags.FlagRef{Name: "Kavala", ShortName: "KAV", Index: 0, Center: core.Position2D{X: 100, Y: 100}}
	pyrgos = flags.FlagRef{Name: "Pyrgos", Index: 1, Center: core.Position2D{X: 200, Y: 200}}
)

type fakeBackend struct {
	mu        sync.Mutex
	started   []core.Rotation
	ended     []core.Rotation
	captures  []core.CaptureRecord
	snapshots []core.ContestSnapshot
	points    []core.PointsRecord
	startErr  error
}

func (b *fakeBackend) Init() error  { return nil }
func (b *fakeBackend) Close() error { return nil }

func (b *fakeBackend) StartRotation(r *core.Rotation) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	r.ID = uint(len(b.started) + 1)
	b.started = append(b.started, *r)
	return b.startErr
}

func (b *fakeBackend) EndRotation(r *core.Rotation) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ended = append(b.ended, *r)
	return nil
}

func (b *fakeBackend) RecordCapture(c *core.CaptureRecord) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.captures = append(b.captures, *c)
	return nil
}

func (b *fakeBackend) RecordContestSnapshot(s *core.ContestSnapshot) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.snapshots = append(b.snapshots, *s)
	return nil
}

func (b *fakeBackend) RecordPoints(p *core.PointsRecord) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.points = append(b.points, *p)
	return nil
}

type fakePoints struct {
	mu     sync.Mutex
	points []*influxdb2_write.Point
}

func (f *fakePoints) WritePoint(_ context.Context, bucket string, p *influxdb2_write.Point) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if bucket != "flags" {
		return errors.New("wrong bucket")
	}
	f.points = append(f.points, p)
	return nil
}

func (f *fakePoints) FlagBucket() string { return "flags" }

type fakeUploader struct {
	path string
	meta core.UploadMetadata
	err  error
}

func (u *fakeUploader) Upload(path string, meta core.UploadMetadata) error {
	u.path = path
	u.meta = meta
	return u.err
}

type harness struct {
	bus     *eventbus.Bus
	rec     *Recorder
	mission *mission.Context
	aliases *cache.FlagAliases
}

func newHarness(t *testing.T, backend storage.Backend, mutate func(*Deps)) *harness {
	t.Helper()
	bus, err := eventbus.New(slog.Default())
	require.NoError(t, err)
	t.Cleanup(bus.Close)

	tick := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	h := &harness{
		bus:     bus,
		mission: mission.NewContext("EU1", "Altis"),
		aliases: cache.NewFlagAliases(),
	}
	deps := Deps{
		Bus:     bus,
		Backend: backend,
		Mission: h.mission,
		Aliases: h.aliases,
		Flags:   config.FlagsConfig{TickInterval: 4 * time.Second, MaxPoints: 64},
		Now: func() time.Time {
			tick = tick.Add(time.Second)
			return tick
		},
	}
	if mutate != nil {
		mutate(&deps)
	}
	h.rec = New(deps)
	h.rec.Start()
	t.Cleanup(h.rec.Stop)
	return h
}

func (h *harness) publish(evs ...any) {
	for _, ev := range evs {
		h.bus.Publish(context.Background(), ev)
	}
}

func setUp() flags.FlagsSetUp {
	return flags.FlagsSetUp{
		RotationID: "rot-1",
		Mode:       "dualSided",
		Pathing:    "ObjectivePathing",
		Flags:      []flags.FlagRef{kavala, pyrgos},
		Team1:      blufor,
		Team2:      opfor,
	}
}

func TestRecorder_SetUp(t *testing.T) {
	backend := &fakeBackend{}
	h := newHarness(t, backend, nil)

	h.publish(setUp())
	h.rec.Stop()

	require.Len(t, backend.started, 1)
	rot := backend.started[0]
	assert.Equal(t, "rot-1", rot.UUID)
	assert.Equal(t, "dualSided", rot.Mode)
	assert.Equal(t, "EU1", rot.ServerName)
	assert.Equal(t, "Altis", rot.MapName)
	assert.Equal(t, 4*time.Second, rot.TickInterval)
	assert.Equal(t, 64, rot.MaxPoints)
	require.Len(t, rot.Flags, 2)
	assert.Equal(t, "Pyrgos", rot.Flags[1].Name)
	assert.Equal(t, core.Position2D{X: 100, Y: 100}, rot.Flags[0].Center)

	current, ok := h.mission.GetRotation()
	require.True(t, ok)
	assert.Equal(t, uint(1), current.ID)

	name, ok := h.aliases.Resolve("kav")
	assert.True(t, ok)
	assert.Equal(t, "Kavala", name)
}

func TestRecorder_EventsBeforeSetUpIgnored(t *testing.T) {
	backend := &fakeBackend{}
	h := newHarness(t, backend, nil)

	h.publish(
		flags.FlagCaptured{Flag: kavala, Capturer: blufor},
		flags.FlagContestPointsChanged{Flag: kavala, Change: 12, Points: 12, Leader: blufor},
		flags.FlagsTornDown{RotationID: "rot-1"},
	)
	h.rec.Stop()

	assert.Empty(t, backend.captures)
	assert.Empty(t, backend.points)
	assert.Empty(t, backend.ended)
}

func TestRecorder_FullRotation(t *testing.T) {
	backend := &fakeBackend{}
	points := &fakePoints{}
	h := newHarness(t, backend, func(d *Deps) { d.Points = points })

	h.publish(
		setUp(),
		flags.FlagContestStateChanged{Flag: kavala, Old: flags.NoPlayers(), New: flags.Leading(blufor), Presence: map[uint8]int{1: 3}},
		flags.FlagContestPointsChanged{Flag: kavala, Change: 12, Points: 12, Leader: blufor},
		flags.FlagContestPointsChanged{Flag: kavala, Change: 52, Points: 64, Leader: blufor},
		flags.FlagCaptured{Flag: kavala, Capturer: blufor, Players: []core.PlayerID{7, 8}},
		flags.FlagContestPointsChanged{Flag: pyrgos, Change: 12, Points: 12, Leader: opfor},
		flags.FlagNeutralized{Flag: pyrgos, Neutralizer: blufor, PreviousLeader: opfor, WasOwned: false},
		flags.FlagRotationWon{RotationID: "rot-1", Winner: blufor},
		flags.FlagsTornDown{RotationID: "rot-1", Winner: blufor},
	)
	h.rec.Stop()

	require.Len(t, backend.captures, 1, "neutralizing a never-owned flag is not a capture")
	c := backend.captures[0]
	assert.Equal(t, "Kavala", c.Flag)
	assert.Equal(t, uint8(1), c.Team)
	assert.Equal(t, uint8(0), c.Previous)
	assert.Equal(t, []core.PlayerID{7, 8}, c.Players)

	require.Len(t, backend.snapshots, 1)
	snap := backend.snapshots[0]
	assert.Equal(t, "OneTeamIsLeading", snap.State)
	assert.Equal(t, uint8(1), snap.Team)
	assert.False(t, snap.Contest)
	assert.Equal(t, map[uint8]int{1: 3}, snap.Presence)

	assert.Len(t, backend.points, 3)
	assert.Len(t, points.points, 4, "three points changes and one capture")

	require.Len(t, backend.ended, 1)
	end := backend.ended[0]
	assert.Equal(t, uint8(1), end.Winner)
	assert.True(t, end.EndTime.After(end.StartTime))
	assert.Equal(t, uint8(1), end.Flags[0].Owner)
	assert.Equal(t, uint8(0), end.Flags[0].Attacker)
	assert.Equal(t, uint8(0), end.Flags[1].Owner)
	assert.Equal(t, uint8(2), end.Flags[1].Attacker)

	_, ok := h.mission.GetRotation()
	assert.False(t, ok)
	_, ok = h.aliases.Resolve("Kavala")
	assert.False(t, ok)
}

func TestRecorder_NeutralizeOwned(t *testing.T) {
	backend := &fakeBackend{}
	h := newHarness(t, backend, nil)

	h.publish(
		setUp(),
		flags.FlagCaptured{Flag: kavala, Capturer: opfor},
		flags.FlagNeutralized{Flag: kavala, Neutralizer: blufor, PreviousLeader: opfor, WasOwned: true},
		flags.FlagsTornDown{RotationID: "rot-1"},
	)
	h.rec.Stop()

	require.Len(t, backend.captures, 2)
	n := backend.captures[1]
	assert.True(t, n.Neutralized)
	assert.Equal(t, uint8(1), n.Team)
	assert.Equal(t, uint8(2), n.Previous)
	assert.Equal(t, uint8(0), backend.ended[0].Flags[0].Owner)
}

func TestRecorder_StartErrorStillTracks(t *testing.T) {
	backend := &fakeBackend{startErr: errors.New("db down")}
	h := newHarness(t, backend, nil)

	h.publish(setUp(), flags.FlagCaptured{Flag: kavala, Capturer: blufor})
	h.rec.Stop()

	assert.Len(t, backend.captures, 1)
}

func TestRecorder_StopIsIdempotent(t *testing.T) {
	h := newHarness(t, &fakeBackend{}, nil)
	h.rec.Stop()
	h.rec.Stop()
	h.publish(setUp())
}

func TestRecorder_UploadsMemoryExport(t *testing.T) {
	backend := memory.New(config.MemoryConfig{OutputDir: t.TempDir(), Tag: "Warfare"})
	require.NoError(t, backend.Init())
	uploader := &fakeUploader{}
	h := newHarness(t, backend, func(d *Deps) { d.Uploader = uploader })

	h.publish(
		setUp(),
		flags.FlagCaptured{Flag: kavala, Capturer: blufor},
		flags.FlagsTornDown{RotationID: "rot-1", Winner: blufor},
	)
	h.rec.Stop()

	require.NotEmpty(t, uploader.path)
	assert.Equal(t, backend.GetExportedFilePath(), uploader.path)
	assert.Equal(t, "Altis", uploader.meta.MapName)
	assert.Equal(t, "Warfare", uploader.meta.Tag)
	assert.Equal(t, uint8(1), uploader.meta.Winner)

	export, err := memory.ReadExport(filepath.Clean(uploader.path))
	require.NoError(t, err)
	assert.Equal(t, "rot-1", export.UUID)
	assert.Len(t, export.Captures, 1)
}
