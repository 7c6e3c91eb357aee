package flags

import (
	"context"

	"github.com/warfare-dev/extension/internal/contest"
	"github.com/warfare-dev/extension/internal/eventbus"
	"github.com/warfare-dev/extension/internal/zones"
	"github.com/warfare-dev/extension/pkg/core"
)

// Objective is one capturable flag of a rotation: a presence region plus the
// contest deciding its owner. Objectives belong to the Service that created
// them and must only be touched from the simulation goroutine.
type Objective struct {
	ref     FlagRef
	region  *zones.Region
	contest *contest.SingleLeader
	bus     *eventbus.Bus
	ctx     context.Context

	state      ContestState
	contested  bool
	discovered map[uint8]struct{}
	pastOwners map[uint8]struct{}
	disposed   bool
}

// NewObjective wires a region and a contest into an objective. Region
// transitions are published on bus with ctx.
func NewObjective(ctx context.Context, bus *eventbus.Bus, index int, zone zones.Zone, region *zones.Region, c *contest.SingleLeader) *Objective {
	o := &Objective{
		ref: FlagRef{
			Name:      zone.Name,
			ShortName: zone.ShortName,
			Index:     index,
			Center:    region.Center(),
		},
		region:     region,
		contest:    c,
		bus:        bus,
		ctx:        ctx,
		state:      NoPlayers(),
		discovered: make(map[uint8]struct{}),
		pastOwners: make(map[uint8]struct{}),
	}
	if owner := c.Owner(); owner.IsValid() {
		o.pastOwners[owner.ID] = struct{}{}
	}

	c.SetListener(ownerHistory{o})
	region.OnEnter(func(p core.Player) {
		o.publish(PlayerEnteredFlagRegion{Flag: o.ref, Player: p})
	})
	region.OnExit(func(p core.Player) {
		o.publish(PlayerExitedFlagRegion{Flag: o.ref, Player: p})
	})
	return o
}

// Name is the flag's zone name.
func (o *Objective) Name() string { return o.ref.Name }

// Index is the flag's position among the rotation's active flags.
func (o *Objective) Index() int { return o.ref.Index }

// Ref returns the flag's identity as carried by events.
func (o *Objective) Ref() FlagRef { return o.ref }

// Region returns the presence tracker.
func (o *Objective) Region() *zones.Region { return o.region }

// Contest returns the point race. Awarding points directly bypasses event
// dispatch; use Service.QuickCapture for administrative captures.
func (o *Objective) Contest() *contest.SingleLeader { return o.contest }

// Owner is the contest leader once won, otherwise NoTeam.
func (o *Objective) Owner() core.Team { return o.contest.Owner() }

// IsContested reports whether the last tick found the flag contested.
func (o *Objective) IsContested() bool { return o.contested }

// CurrentContestState is the last evaluated state.
func (o *Objective) CurrentContestState() ContestState { return o.state }

// IsActive is false once the objective has been disposed.
func (o *Objective) IsActive() bool { return !o.disposed }

// Discover marks the flag as known to team. Only the first discovery by a
// team publishes FlagDiscovered.
func (o *Objective) Discover(team core.Team) {
	if o.disposed || !team.IsValid() {
		return
	}
	if _, ok := o.discovered[team.ID]; ok {
		return
	}
	o.discovered[team.ID] = struct{}{}
	o.publish(FlagDiscovered{Flag: o.ref, Team: team})
}

// IsDiscovered reports whether team has discovered the flag.
func (o *Objective) IsDiscovered(team core.Team) bool {
	_, ok := o.discovered[team.ID]
	return ok && team.IsValid()
}

// IsPastOwner reports whether team has ever owned the flag.
func (o *Objective) IsPastOwner(team core.Team) bool {
	_, ok := o.pastOwners[team.ID]
	return ok && team.IsValid()
}

// SetCurrentContestState stores state. When invokeEvent is true and the value
// changed, FlagContestStateChanged is published immediately. Callers passing
// false publish later with InvokeContestStateChanged so that other events can
// be dispatched first.
func (o *Objective) SetCurrentContestState(state ContestState, invokeEvent bool) {
	old := o.state
	o.state = state
	if invokeEvent && old != state {
		o.InvokeContestStateChanged(old)
	}
}

// InvokeContestStateChanged publishes FlagContestStateChanged from old to the
// current state.
func (o *Objective) InvokeContestStateChanged(old ContestState) {
	if o.disposed {
		return
	}
	o.publish(FlagContestStateChanged{
		Flag:     o.ref,
		Old:      old,
		New:      o.state,
		Presence: o.region.CountCapturing(),
	})
}

// Dispose stops tracking players and releases the region. Safe to call twice.
func (o *Objective) Dispose() {
	if o.disposed {
		return
	}
	o.disposed = true
	o.contest.SetListener(nil)
	o.region.Dispose()
}

// PlayersOf returns the capturing players of team currently on the flag.
func (o *Objective) PlayersOf(team core.Team) []core.PlayerID {
	var ids []core.PlayerID
	for _, p := range o.region.Players() {
		if p.IsCapturing() && p.Team.Is(team) {
			ids = append(ids, p.ID)
		}
	}
	return ids
}

func (o *Objective) setContested(v bool) { o.contested = v }

func (o *Objective) publish(ev any) {
	if o.bus == nil {
		return
	}
	o.bus.Publish(o.ctx, ev)
}

// ownerHistory records every team that wins the contest, however the points
// were awarded.
type ownerHistory struct{ o *Objective }

func (h ownerHistory) OnPointsChanged(int) {}

func (h ownerHistory) OnWon(leader core.Team) {
	h.o.pastOwners[leader.ID] = struct{}{}
}

func (h ownerHistory) OnRestarted(core.Team, core.Team) {}
