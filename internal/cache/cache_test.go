package cache

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warfare-dev/extension/pkg/core"
)

var (
	usa = core.Team{ID: 1, Faction: core.Faction{ShortName: "USA"}}
	ru  = core.Team{ID: 2, Faction: core.Faction{ShortName: "RU"}}
)

func TestPlayerCache_New(t *testing.T) {
	c := NewPlayerCache()

	require.NotNil(t, c)
	assert.Equal(t, 0, c.Len())
	assert.Empty(t, c.All())
}

func TestPlayerCache_SetAndGet(t *testing.T) {
	c := NewPlayerCache()

	known := c.Set(core.Player{ID: 42, Name: "Miller", Team: usa, Alive: true})
	assert.False(t, known)

	got, ok := c.Get(42)
	require.True(t, ok)
	assert.Equal(t, "Miller", got.Name)
	assert.Equal(t, usa, got.Team)

	known = c.Set(core.Player{ID: 42, Name: "Miller", Team: usa, Alive: false})
	assert.True(t, known)
	got, _ = c.Get(42)
	assert.False(t, got.Alive)
	assert.Equal(t, 1, c.Len())
}

func TestPlayerCache_GetNotFound(t *testing.T) {
	c := NewPlayerCache()

	got, ok := c.Get(999)
	assert.False(t, ok)
	assert.Equal(t, core.Player{}, got)
}

func TestPlayerCache_Remove(t *testing.T) {
	c := NewPlayerCache()
	c.Set(core.Player{ID: 1})

	assert.True(t, c.Remove(1))
	assert.False(t, c.Remove(1))
	assert.Equal(t, 0, c.Len())
}

func TestPlayerCache_Reset(t *testing.T) {
	c := NewPlayerCache()
	c.Set(core.Player{ID: 1})
	c.Set(core.Player{ID: 2})

	c.Reset()

	assert.Equal(t, 0, c.Len())
	_, ok := c.Get(1)
	assert.False(t, ok)
}

func TestPlayerCache_CountByTeam(t *testing.T) {
	c := NewPlayerCache()
	c.Set(core.Player{ID: 1, Team: usa})
	c.Set(core.Player{ID: 2, Team: usa})
	c.Set(core.Player{ID: 3, Team: ru})
	c.Set(core.Player{ID: 4})

	assert.Equal(t, map[uint8]int{1: 2, 2: 1}, c.CountByTeam())
}

func TestPlayerCache_ConcurrentAccess(t *testing.T) {
	c := NewPlayerCache()
	var wg sync.WaitGroup

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(id core.PlayerID) {
			defer wg.Done()
			c.Set(core.Player{ID: id, Team: usa})
			c.Get(id)
			c.All()
		}(core.PlayerID(i))
	}
	wg.Wait()

	assert.Equal(t, 100, c.Len())
}
