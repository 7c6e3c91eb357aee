package pathing

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warfare-dev/extension/internal/config"
	"github.com/warfare-dev/extension/internal/zones"
	"github.com/warfare-dev/extension/pkg/core"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func flagAt(name string, x, y float64) zones.Zone {
	return zones.Zone{Name: name, Kind: zones.KindFlag, Shape: zones.ShapeCircle, Center: core.Position2D{X: x, Y: y}, Radius: 50}
}

func mainAt(team uint8, x, y float64) zones.Zone {
	return zones.Zone{Name: fmt.Sprintf("Main %d", team), Kind: zones.KindMain, Team: team, Shape: zones.ShapeCircle, Center: core.Position2D{X: x, Y: y}, Radius: 100}
}

// lineMap has two mains 4000m apart with flags every 500m between them.
func lineMap(t *testing.T) (*zones.Store, Request) {
	t.Helper()
	all := []zones.Zone{mainAt(1, 0, 0), mainAt(2, 4000, 0)}
	for i := 1; i <= 7; i++ {
		all = append(all, flagAt(fmt.Sprintf("F%d", i), float64(i*500), 0))
	}
	store, err := zones.NewStaticStore(all...)
	require.NoError(t, err)

	m1, _ := store.Main(1)
	m2, _ := store.Main(2)
	return store, Request{
		Store:     store,
		Pool:      store.ByKind(zones.KindFlag),
		Team1Main: m1,
		Team2Main: m2,
	}
}

func seeded(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed))
}

func TestRegistry_UnknownProvider(t *testing.T) {
	r := DefaultRegistry(NewGraphWalk(config.DefaultGraphWalkConfig(), seeded(1), quiet))

	_, err := r.Provider("Nope")
	require.ErrorIs(t, err, ErrUnknownProvider)
	assert.Contains(t, err.Error(), ObjectivePathing)

	p, err := r.Provider(FixedOrderName)
	require.NoError(t, err)
	assert.IsType(t, FixedOrder{}, p)
}

func TestRegistry_PoolUnionDeduplicates(t *testing.T) {
	store, _ := lineMap(t)
	r := DefaultRegistry(NewGraphWalk(config.DefaultGraphWalkConfig(), seeded(1), quiet))

	settings := config.FlagsConfig{NamedFlags: []string{"F3", "F1"}}
	pool, err := r.Pool(context.Background(), []string{NamedFlagsPool, AllFlagsPool}, store, settings)
	require.NoError(t, err)

	var names []string
	for _, z := range pool {
		names = append(names, z.Name)
	}
	assert.Equal(t, []string{"F3", "F1", "F2", "F4", "F5", "F6", "F7"}, names)

	_, err = r.Pool(context.Background(), []string{"Missing"}, store, settings)
	assert.ErrorIs(t, err, ErrUnknownProvider)
}

func TestNamedFlags_RejectsUnknownAndNonFlags(t *testing.T) {
	store, _ := lineMap(t)

	_, err := NamedFlags{}.Flags(context.Background(), store, config.FlagsConfig{NamedFlags: []string{"F9"}})
	assert.ErrorIs(t, err, ErrUnknownFlag)

	_, err = NamedFlags{}.Flags(context.Background(), store, config.FlagsConfig{NamedFlags: []string{"Main 1"}})
	assert.ErrorIs(t, err, ErrUnknownFlag)
}

func TestFixedOrder(t *testing.T) {
	_, req := lineMap(t)
	req.Settings = config.FlagsConfig{FixedOrder: []string{"F2", "F5", "F6"}}

	path, err := FixedOrder{}.BuildPath(context.Background(), req)
	require.NoError(t, err)

	var names []string
	for _, z := range path {
		names = append(names, z.Name)
	}
	assert.Equal(t, []string{"Main 1", "F2", "F5", "F6", "Main 2"}, names)
}

func TestFixedOrder_Empty(t *testing.T) {
	_, req := lineMap(t)

	path, err := FixedOrder{}.BuildPath(context.Background(), req)
	require.NoError(t, err)
	assert.Len(t, path, 2)
}

func TestGraphWalk_PathShape(t *testing.T) {
	_, req := lineMap(t)
	cfg := config.DefaultGraphWalkConfig()

	for seed := uint64(1); seed <= 20; seed++ {
		path, err := NewGraphWalk(cfg, seeded(seed), quiet).BuildPath(context.Background(), req)
		require.NoError(t, err)

		require.GreaterOrEqual(t, len(path), 3, "seed %d", seed)
		assert.LessOrEqual(t, len(path), cfg.MaxFlags+2, "seed %d", seed)
		assert.Equal(t, "Main 1", path[0].Name)
		assert.Equal(t, "Main 2", path[len(path)-1].Name)

		seen := map[string]bool{}
		for _, z := range path[1 : len(path)-1] {
			assert.Equal(t, zones.KindFlag, z.Kind)
			assert.False(t, seen[z.Name], "seed %d visits %s twice", seed, z.Name)
			seen[z.Name] = true
		}
	}
}

func TestGraphWalk_StopsOnlyAfterEnoughFlags(t *testing.T) {
	_, req := lineMap(t)

	tests := []struct {
		name       string
		stopRadius float64
		want       int
	}{
		{"every pick near team 2 main", 10000, 2},
		{"never near team 2 main", 0, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.DefaultGraphWalkConfig()
			cfg.MaxFlags = 3
			cfg.MainStopRadius = tt.stopRadius

			for seed := uint64(1); seed <= 10; seed++ {
				g := NewGraphWalk(cfg, seeded(seed), quiet)
				assert.Len(t, g.walk(req), tt.want, "seed %d", seed)
			}
		})
	}
}

func TestGraphWalk_Deterministic(t *testing.T) {
	_, req := lineMap(t)
	cfg := config.DefaultGraphWalkConfig()

	a, err := NewGraphWalk(cfg, seeded(42), quiet).BuildPath(context.Background(), req)
	require.NoError(t, err)
	b, err := NewGraphWalk(cfg, seeded(42), quiet).BuildPath(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestGraphWalk_NoCandidatesIsSoftFailure(t *testing.T) {
	all := []zones.Zone{mainAt(1, 0, 0), mainAt(2, 4000, 0), flagAt("Far", 0, 20000)}
	store, err := zones.NewStaticStore(all...)
	require.NoError(t, err)
	m1, _ := store.Main(1)
	m2, _ := store.Main(2)

	path, err := NewGraphWalk(config.DefaultGraphWalkConfig(), seeded(1), quiet).BuildPath(context.Background(), Request{
		Store:     store,
		Pool:      store.ByKind(zones.KindFlag),
		Team1Main: m1,
		Team2Main: m2,
	})
	require.NoError(t, err)
	assert.Len(t, path, 2, "only the mains remain")
}

func TestGraphWalk_Cancelled(t *testing.T) {
	_, req := lineMap(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewGraphWalk(config.DefaultGraphWalkConfig(), seeded(1), quiet).BuildPath(ctx, req)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGraphWalk_SectorWeight(t *testing.T) {
	g := NewGraphWalk(config.DefaultGraphWalkConfig(), seeded(1), quiet)

	tests := []struct {
		angle float64
		want  int
	}{
		{0, 12},
		{44.9, 12},
		{45, 4},
		{109, 4},
		{110, 1},
		{180, 1},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.angle), func(t *testing.T) {
			assert.Equal(t, tt.want, g.sectorWeight(tt.angle))
		})
	}
}

func TestGraphWalk_BiasPrefersForwardAndClose(t *testing.T) {
	g := NewGraphWalk(config.DefaultGraphWalkConfig(), seeded(1), quiet)
	from := core.Position2D{X: 1000, Y: 0}
	goal := core.Position2D{X: 4000, Y: 0}

	forward := g.bias(from, goal, 1000, core.Position2D{X: 1500, Y: 0})
	backward := g.bias(from, goal, 1000, core.Position2D{X: 500, Y: 0})
	far := g.bias(from, goal, 1000, core.Position2D{X: 1950, Y: 0})

	assert.Greater(t, forward, backward)
	assert.Greater(t, forward, far)
	assert.GreaterOrEqual(t, backward, 1)
}

func TestGraphWalk_Check(t *testing.T) {
	_, req := lineMap(t)
	cfg := config.DefaultGraphWalkConfig()
	cfg.MinFlags = 2
	g := NewGraphWalk(cfg, seeded(1), quiet)

	flags := func(xs ...float64) []zones.Zone {
		var out []zones.Zone
		for i, x := range xs {
			out = append(out, flagAt(fmt.Sprintf("C%d", i), x, 0))
		}
		return out
	}

	assert.Empty(t, g.check(flags(1000, 2000, 3000), req))
	assert.Contains(t, g.check(flags(2000), req), "too few flags")
	assert.Contains(t, g.check(flags(500, 1000), req), "ends too far from team 2 main")
	assert.Contains(t, g.check(flags(500, 1000, 1500, 2500), req), "path favours one main")
	assert.Equal(t, []string{"too few flags"}, g.check(nil, req))
}

func TestWeightedIndex(t *testing.T) {
	rng := seeded(7)
	counts := make([]int, 3)
	for range 3000 {
		counts[weightedIndex(rng, []int{1, 0, 9}, 10)]++
	}
	assert.Zero(t, counts[1])
	assert.Greater(t, counts[2], counts[0]*4)
}
