package zones

import (
	"github.com/warfare-dev/extension/pkg/core"
)

// Region unions every shape sharing a name into one presence tracker.
// Callers feed it player snapshots through Revalidate; it keeps the set of
// players inside and fires enter/exit callbacks once per transition.
// Region is not safe for concurrent use.
type Region struct {
	name   string
	shapes []Zone

	players  []core.Player
	onEnter  func(core.Player)
	onExit   func(core.Player)
	disposed bool
}

// NewRegion creates a region from shapes that share name.
func NewRegion(name string, shapes []Zone) *Region {
	return &Region{
		name:   name,
		shapes: shapes,
	}
}

// Name returns the shared zone name.
func (r *Region) Name() string { return r.name }

// Shapes returns the underlying zones.
func (r *Region) Shapes() []Zone { return r.shapes }

// OnEnter sets the callback fired when a player enters.
func (r *Region) OnEnter(fn func(core.Player)) { r.onEnter = fn }

// OnExit sets the callback fired when a player leaves.
func (r *Region) OnExit(fn func(core.Player)) { r.onExit = fn }

// Center is the mean of the shape centers.
func (r *Region) Center() core.Position2D {
	if len(r.shapes) == 0 {
		return core.Position2D{}
	}
	var c core.Position2D
	for _, s := range r.shapes {
		c.X += s.Center.X
		c.Y += s.Center.Y
	}
	n := float64(len(r.shapes))
	return core.Position2D{X: c.X / n, Y: c.Y / n}
}

// Contains reports whether pos is inside any shape.
func (r *Region) Contains(pos core.Position3D) bool {
	flat := pos.Flat()
	for _, s := range r.shapes {
		if s.IsInside(flat) {
			return true
		}
	}
	return false
}

// Revalidate updates the player's presence from its current position.
// A tracked player's stored snapshot is always refreshed.
func (r *Region) Revalidate(p core.Player) (entered, exited bool) {
	if r.disposed {
		return false, false
	}

	idx := r.indexOf(p.ID)
	inside := r.Contains(p.Position)

	switch {
	case inside && idx < 0:
		r.players = append(r.players, p)
		if r.onEnter != nil {
			r.onEnter(p)
		}
		return true, false
	case inside:
		r.players[idx] = p
		return false, false
	case idx >= 0:
		r.players = append(r.players[:idx], r.players[idx+1:]...)
		if r.onExit != nil {
			r.onExit(p)
		}
		return false, true
	}
	return false, false
}

// Remove forcibly drops a player, e.g. on disconnect. Fires exit if tracked.
func (r *Region) Remove(id core.PlayerID) bool {
	if r.disposed {
		return false
	}
	idx := r.indexOf(id)
	if idx < 0 {
		return false
	}
	p := r.players[idx]
	r.players = append(r.players[:idx], r.players[idx+1:]...)
	if r.onExit != nil {
		r.onExit(p)
	}
	return true
}

// Players returns the tracked players in entry order.
func (r *Region) Players() []core.Player {
	out := make([]core.Player, len(r.players))
	copy(out, r.players)
	return out
}

// IsTracking reports whether the player is currently inside.
func (r *Region) IsTracking(id core.PlayerID) bool {
	return r.indexOf(id) >= 0
}

// CountCapturing counts living players per team id.
func (r *Region) CountCapturing() map[uint8]int {
	counts := make(map[uint8]int)
	for _, p := range r.players {
		if p.IsCapturing() {
			counts[p.Team.ID]++
		}
	}
	return counts
}

// Dispose stops tracking and detaches callbacks. Safe to call twice.
func (r *Region) Dispose() {
	if r.disposed {
		return
	}
	r.disposed = true
	r.players = nil
	r.onEnter = nil
	r.onExit = nil
}

// IsDisposed reports whether Dispose has been called.
func (r *Region) IsDisposed() bool { return r.disposed }

func (r *Region) indexOf(id core.PlayerID) int {
	for i, p := range r.players {
		if p.ID == id {
			return i
		}
	}
	return -1
}
