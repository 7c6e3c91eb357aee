package flags

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warfare-dev/extension/internal/contest"
	"github.com/warfare-dev/extension/internal/eventbus"
	"github.com/warfare-dev/extension/internal/zones"
	"github.com/warfare-dev/extension/pkg/core"
)

func newTestObjective(t *testing.T, c *contest.SingleLeader) (*Objective, *recorder) {
	t.Helper()
	bus, err := eventbus.New(nopLogger{})
	require.NoError(t, err)
	t.Cleanup(bus.Close)

	z := zones.Zone{Name: "A", ShortName: "Alpha", Kind: zones.KindFlag, Shape: zones.ShapeCircle, Center: core.Position2D{X: 10}, Radius: 5}
	require.NoError(t, z.Build())
	rec := newRecorder(bus)
	return NewObjective(context.Background(), bus, 3, z, zones.NewRegion("A", []zones.Zone{z}), c), rec
}

func TestObjective_Ref(t *testing.T) {
	o, _ := newTestObjective(t, contest.New(64))
	assert.Equal(t, FlagRef{Name: "A", ShortName: "Alpha", Index: 3, Center: core.Position2D{X: 10}}, o.Ref())
	assert.Equal(t, NoPlayers(), o.CurrentContestState())
	assert.True(t, o.IsActive())
}

func TestObjective_DiscoverOnce(t *testing.T) {
	o, rec := newTestObjective(t, contest.New(64))

	o.Discover(team1)
	o.Discover(team1)
	o.Discover(core.NoTeam)

	assert.True(t, o.IsDiscovered(team1))
	assert.False(t, o.IsDiscovered(team2))
	assert.False(t, o.IsDiscovered(core.NoTeam))
	require.Len(t, eventsOf[FlagDiscovered](rec), 1)

	o.Discover(team2)
	assert.Len(t, eventsOf[FlagDiscovered](rec), 2)
}

func TestObjective_SetCurrentContestState(t *testing.T) {
	o, rec := newTestObjective(t, contest.New(64))

	o.SetCurrentContestState(Contested(), false)
	assert.Empty(t, rec.events)
	assert.Equal(t, Contested(), o.CurrentContestState())

	o.SetCurrentContestState(Contested(), true)
	assert.Empty(t, rec.events, "unchanged state publishes nothing")

	o.SetCurrentContestState(Leading(team1), true)
	changed := eventsOf[FlagContestStateChanged](rec)
	require.Len(t, changed, 1)
	assert.Equal(t, Contested(), changed[0].Old)
	assert.Equal(t, Leading(team1), changed[0].New)
}

func TestObjective_RegionEvents(t *testing.T) {
	o, rec := newTestObjective(t, contest.New(64))

	o.Region().Revalidate(soldier(1, team1, 10))
	o.Region().Revalidate(soldier(2, team2, 10))
	o.Region().Revalidate(soldier(1, team1, 100))

	entered := eventsOf[PlayerEnteredFlagRegion](rec)
	require.Len(t, entered, 2)
	assert.Equal(t, "A", entered[0].Flag.Name)
	assert.Equal(t, core.PlayerID(1), entered[0].Player.ID)
	require.Len(t, eventsOf[PlayerExitedFlagRegion](rec), 1)

	assert.Equal(t, []core.PlayerID{2}, o.PlayersOf(team2))
	assert.Empty(t, o.PlayersOf(team1))
}

func TestObjective_PastOwners(t *testing.T) {
	o, _ := newTestObjective(t, contest.NewOwned(64, team2))
	assert.True(t, o.IsPastOwner(team2))
	assert.False(t, o.IsPastOwner(team1))

	o.Contest().AwardPoints(team1, 64)
	o.Contest().AwardPoints(team1, 64)
	assert.Equal(t, team1, o.Owner())
	assert.True(t, o.IsPastOwner(team1))
	assert.True(t, o.IsPastOwner(team2))
}

func TestObjective_Dispose(t *testing.T) {
	o, rec := newTestObjective(t, contest.New(64))
	o.Region().Revalidate(soldier(1, team1, 10))
	rec.reset()

	o.Dispose()
	o.Dispose()

	assert.False(t, o.IsActive())
	assert.True(t, o.Region().IsDisposed())

	o.Discover(team1)
	o.InvokeContestStateChanged(NoPlayers())
	o.Region().Revalidate(soldier(2, team1, 10))
	assert.Empty(t, rec.events)

	o.Contest().AwardPoints(team2, 64)
	assert.False(t, o.IsPastOwner(team2), "disposed objectives stop tracking owners")
}
