package flags

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/warfare-dev/extension/internal/config"
	"github.com/warfare-dev/extension/internal/eventbus"
	"github.com/warfare-dev/extension/internal/pathing"
	"github.com/warfare-dev/extension/internal/zones"
	"github.com/warfare-dev/extension/pkg/core"
)

var (
	team1 = core.Team{ID: 1, Faction: core.Faction{ID: "usa", ShortName: "USA", Color: "3b5998"}}
	team2 = core.Team{ID: 2, Faction: core.Faction{ID: "rus", ShortName: "RU", Color: "b22222"}}
	quiet = slog.New(slog.NewTextHandler(io.Discard, nil))
)

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

// manualLoop runs everything on the calling goroutine; tests fire ticks by hand.
type manualLoop struct {
	fn       func()
	interval time.Duration
	stopped  bool
}

func (m *manualLoop) Invoke(ctx context.Context, fn func()) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	fn()
	return nil
}

func (m *manualLoop) Every(interval time.Duration, fn func()) func() {
	m.fn, m.interval, m.stopped = fn, interval, false
	return func() { m.stopped = true }
}

func (m *manualLoop) tick(n int) {
	for range n {
		if m.stopped || m.fn == nil {
			return
		}
		m.fn()
	}
}

type fakeAdvancer struct {
	winners []core.Team
}

func (a *fakeAdvancer) AdvanceToNextPhase(_ context.Context, winner core.Team) error {
	a.winners = append(a.winners, winner)
	return nil
}

// recorder keeps every flag event in publish order.
type recorder struct {
	events []any
}

func record[T any](b *eventbus.Bus, r *recorder) {
	eventbus.Subscribe(b, func(_ context.Context, e T) error {
		r.events = append(r.events, e)
		return nil
	})
}

func newRecorder(b *eventbus.Bus) *recorder {
	r := &recorder{}
	record[FlagsSetUp](b, r)
	record[FlagsTornDown](b, r)
	record[FlagDiscovered](b, r)
	record[FlagCaptured](b, r)
	record[FlagNeutralized](b, r)
	record[FlagContestPointsChanged](b, r)
	record[FlagContestStateChanged](b, r)
	record[PlayerEnteredFlagRegion](b, r)
	record[PlayerExitedFlagRegion](b, r)
	record[FlagRotationWon](b, r)
	return r
}

func (r *recorder) reset() { r.events = nil }

func eventsOf[T any](r *recorder) []T {
	var out []T
	for _, e := range r.events {
		if v, ok := e.(T); ok {
			out = append(out, v)
		}
	}
	return out
}

type harness struct {
	svc      *Service
	bus      *eventbus.Bus
	loop     *manualLoop
	rec      *recorder
	advancer *fakeAdvancer
	cfg      config.FlagsConfig
}

func testZones() []zones.Zone {
	circle := func(name string, kind zones.Kind, team uint8, x, r float64) zones.Zone {
		return zones.Zone{Name: name, Kind: kind, Team: team, Shape: zones.ShapeCircle, Center: core.Position2D{X: x}, Radius: r}
	}
	return []zones.Zone{
		circle("Main 1", zones.KindMain, 1, 0, 100),
		circle("A", zones.KindFlag, 0, 1000, 50),
		circle("B", zones.KindFlag, 0, 2000, 50),
		circle("Main 2", zones.KindMain, 2, 3000, 100),
	}
}

func defaultConfig() config.FlagsConfig {
	return config.FlagsConfig{
		Mode:                     ModeDualSided,
		PathingProvider:          pathing.FixedOrderName,
		FlagPoolProviders:        []string{pathing.AllFlagsPool},
		FixedOrder:               []string{"A", "B"},
		TickInterval:             4 * time.Second,
		MaxPoints:                64,
		PointsPerTick:            12,
		RequiredPlayerDifference: 2,
		Invasion:                 config.InvasionConfig{AttackingTeam: 1, DefendingTeam: 2},
	}
}

func newHarness(t *testing.T, cfg config.FlagsConfig, zs ...zones.Zone) *harness {
	t.Helper()
	if len(zs) == 0 {
		zs = testZones()
	}
	store, err := zones.NewStaticStore(zs...)
	require.NoError(t, err)

	bus, err := eventbus.New(nopLogger{})
	require.NoError(t, err)
	t.Cleanup(bus.Close)

	h := &harness{
		bus:      bus,
		loop:     &manualLoop{},
		rec:      newRecorder(bus),
		advancer: &fakeAdvancer{},
		cfg:      cfg,
	}
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	h.svc, err = NewService(Deps{
		Bus:      bus,
		Loop:     h.loop,
		Zones:    store,
		Pathing:  pathing.DefaultRegistry(pathing.NewGraphWalk(config.DefaultGraphWalkConfig(), nil, quiet)),
		Teams:    core.StaticTeams{team1, team2},
		Advancer: h.advancer,
		Logger:   quiet,
		Config:   func() config.FlagsConfig { return h.cfg },
		Now:      func() time.Time { return now },
	})
	require.NoError(t, err)
	return h
}

func startedHarness(t *testing.T, cfg config.FlagsConfig) *harness {
	t.Helper()
	h := newHarness(t, cfg)
	require.NoError(t, h.svc.Start(context.Background()))
	h.rec.reset()
	return h
}

func soldier(id core.PlayerID, team core.Team, x float64) core.Player {
	return core.Player{ID: id, Team: team, Position: core.Position3D{X: x}, Alive: true}
}

// occupy puts n players of team on the flag at x, using ids from base up.
func (h *harness) occupy(base core.PlayerID, team core.Team, x float64, n int) {
	for i := range n {
		h.svc.UpdatePlayer(soldier(base+core.PlayerID(i), team, x))
	}
}
