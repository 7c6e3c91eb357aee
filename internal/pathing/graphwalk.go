package pathing

import (
	"context"
	"log/slog"
	"math"
	"math/rand/v2"
	"sync"

	"github.com/warfare-dev/extension/internal/config"
	"github.com/warfare-dev/extension/internal/geo"
	"github.com/warfare-dev/extension/internal/zones"
	"github.com/warfare-dev/extension/pkg/core"
)

// Sector boundaries in degrees between the heading to team two's main and
// the heading to a candidate.
const (
	forwardSector = 45
	sideSector    = 110
)

// GraphWalk is the randomized path builder. From team one's main it keeps
// picking a nearby unvisited flag, biased towards flags that are ahead and
// close, until it gets near team two's main. Whole paths that come out too
// short or lopsided are thrown away and rebuilt.
type GraphWalk struct {
	cfg    config.GraphWalkConfig
	logger *slog.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

// NewGraphWalk creates the builder. A nil rng seeds one from cfg.Seed, or
// randomly when the seed is zero.
func NewGraphWalk(cfg config.GraphWalkConfig, rng *rand.Rand, logger *slog.Logger) *GraphWalk {
	if rng == nil {
		seed := cfg.Seed
		if seed == 0 {
			seed = rand.Uint64()
		}
		rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxRedos < 1 {
		cfg.MaxRedos = 1
	}
	return &GraphWalk{cfg: cfg, rng: rng, logger: logger}
}

// BuildPath implements Provider. When no attempt satisfies every constraint
// the best attempt is returned and the failure is logged.
func (g *GraphWalk) BuildPath(ctx context.Context, req Request) ([]zones.Zone, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	var best []zones.Zone
	bestProblems := math.MaxInt
	var lastProblems []string

	for attempt := 1; attempt <= g.cfg.MaxRedos; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		flags := g.walk(req)
		problems := g.check(flags, req)
		if len(problems) == 0 {
			g.logger.Debug("flag path built", "flags", len(flags), "attempt", attempt)
			return withMains(req, flags), nil
		}
		g.logger.Debug("redoing flag path", "attempt", attempt, "problems", problems)

		if len(problems) < bestProblems || (len(problems) == bestProblems && len(flags) > len(best)) {
			best, bestProblems = flags, len(problems)
		}
		lastProblems = problems
	}

	g.logger.Error("flag path redo limit reached, using best attempt",
		"redos", g.cfg.MaxRedos, "flags", len(best), "problems", lastProblems)
	return withMains(req, best), nil
}

func withMains(req Request, flags []zones.Zone) []zones.Zone {
	path := make([]zones.Zone, 0, len(flags)+2)
	path = append(path, req.Team1Main)
	path = append(path, flags...)
	return append(path, req.Team2Main)
}

func (g *GraphWalk) walk(req Request) []zones.Zone {
	goal := req.Team2Main.Center
	cur := req.Team1Main.Center
	radius := g.cfg.MainRadiusSearch
	visited := make(map[string]bool)

	var path []zones.Zone
	for len(path) < g.cfg.MaxFlags {
		cands, r := g.candidates(req.Pool, cur, radius, visited)
		if len(cands) == 0 {
			g.logger.Error("no flags in range, path truncated", "x", cur.X, "y", cur.Y, "flags", len(path))
			break
		}

		next := g.pick(cur, goal, r, cands)
		visited[next.Name] = true
		path = append(path, next)

		if len(path) >= g.cfg.MaxFlags-1 && next.Center.DistanceTo(goal) <= g.cfg.MainStopRadius {
			break
		}
		cur = next.Center
		radius = g.cfg.FlagRadiusSearch
	}
	return path
}

// candidates returns the unvisited flags within radius of from, widening the
// radius step by step when none are found. The radius used is returned too.
func (g *GraphWalk) candidates(pool []zones.Zone, from core.Position2D, radius float64, visited map[string]bool) ([]zones.Zone, float64) {
	for i := 0; i <= g.cfg.MaxRadiusIncrements; i++ {
		r := radius + float64(i)*g.cfg.RadiusIncrement
		var out []zones.Zone
		for _, z := range pool {
			if visited[z.Name] {
				continue
			}
			if z.Center.DistanceTo(from) <= r {
				out = append(out, z)
			}
		}
		if len(out) > 0 {
			return out, r
		}
	}
	return nil, radius
}

func (g *GraphWalk) pick(from, goal core.Position2D, radius float64, cands []zones.Zone) zones.Zone {
	biases := make([]int, len(cands))
	total := 0
	for i, c := range cands {
		biases[i] = g.bias(from, goal, radius, c.Center)
		total += biases[i]
	}
	return cands[weightedIndex(g.rng, biases, total)]
}

// bias scores a candidate: sector weight x closeness x progress, each of the
// last two on a 1..100 scale.
func (g *GraphWalk) bias(from, goal core.Position2D, radius float64, cand core.Position2D) int {
	weight := g.sectorWeight(geo.AngleBetween(from, goal, cand))

	closeness := 100
	if radius > 0 {
		closeness = scale(1 - from.DistanceTo(cand)/radius)
	}

	progress := 100
	if g.cfg.MapSize > 0 {
		progress = scale(1 - cand.DistanceTo(goal)/g.cfg.MapSize)
	}

	return max(1, weight*closeness*progress)
}

func (g *GraphWalk) sectorWeight(angle float64) int {
	switch {
	case angle < forwardSector:
		return g.cfg.ForwardWeight
	case angle < sideSector:
		return g.cfg.SideWeight
	}
	return g.cfg.BackWeight
}

// check lists the reasons a path must be rebuilt.
func (g *GraphWalk) check(flags []zones.Zone, req Request) []string {
	var problems []string
	if len(flags) < g.cfg.MinFlags || len(flags) == 0 {
		problems = append(problems, "too few flags")
	}
	if len(flags) == 0 {
		return problems
	}
	if flags[len(flags)-1].Center.DistanceTo(req.Team2Main.Center) > g.cfg.MainStopRadius {
		problems = append(problems, "ends too far from team 2 main")
	}
	d1 := averageDistance(flags, req.Team1Main.Center)
	d2 := averageDistance(flags, req.Team2Main.Center)
	if math.Abs(d1-d2) > g.cfg.SymmetryBuffer {
		problems = append(problems, "path favours one main")
	}
	return problems
}

func averageDistance(flags []zones.Zone, to core.Position2D) float64 {
	if len(flags) == 0 {
		return 0
	}
	var sum float64
	for _, f := range flags {
		sum += f.Center.DistanceTo(to)
	}
	return sum / float64(len(flags))
}

// weightedIndex draws a uniform integer in [0, total) and walks the
// cumulative sum of weights.
func weightedIndex(rng *rand.Rand, weights []int, total int) int {
	if total <= 0 {
		return rng.IntN(len(weights))
	}
	roll := rng.IntN(total)
	for i, w := range weights {
		if roll < w {
			return i
		}
		roll -= w
	}
	return len(weights) - 1
}

func scale(f float64) int {
	return max(1, min(100, int(f*100)))
}
