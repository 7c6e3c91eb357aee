package cache

import (
	"sync"

	"github.com/warfare-dev/extension/pkg/core"
)

// PlayerCache keeps the latest snapshot the host reported for every
// connected player, so handlers can answer queries without asking the host.
type PlayerCache struct {
	m       sync.RWMutex
	players map[core.PlayerID]core.Player
}

func NewPlayerCache() *PlayerCache {
	return &PlayerCache{
		players: make(map[core.PlayerID]core.Player),
	}
}

func (c *PlayerCache) Reset() {
	c.m.Lock()
	defer c.m.Unlock()
	c.players = make(map[core.PlayerID]core.Player)
}

func (c *PlayerCache) Get(id core.PlayerID) (core.Player, bool) {
	c.m.RLock()
	defer c.m.RUnlock()
	p, ok := c.players[id]
	return p, ok
}

// Set stores p and reports whether the player was already known.
func (c *PlayerCache) Set(p core.Player) bool {
	c.m.Lock()
	defer c.m.Unlock()
	_, known := c.players[p.ID]
	c.players[p.ID] = p
	return known
}

// Remove drops a player and reports whether it was present.
func (c *PlayerCache) Remove(id core.PlayerID) bool {
	c.m.Lock()
	defer c.m.Unlock()
	_, ok := c.players[id]
	delete(c.players, id)
	return ok
}

func (c *PlayerCache) Len() int {
	c.m.RLock()
	defer c.m.RUnlock()
	return len(c.players)
}

// All returns every cached player in no particular order.
func (c *PlayerCache) All() []core.Player {
	c.m.RLock()
	defer c.m.RUnlock()
	out := make([]core.Player, 0, len(c.players))
	for _, p := range c.players {
		out = append(out, p)
	}
	return out
}

// CountByTeam counts cached players per team id, skipping players without
// a team.
func (c *PlayerCache) CountByTeam() map[uint8]int {
	c.m.RLock()
	defer c.m.RUnlock()
	out := make(map[uint8]int)
	for _, p := range c.players {
		if p.Team.IsValid() {
			out[p.Team.ID]++
		}
	}
	return out
}
