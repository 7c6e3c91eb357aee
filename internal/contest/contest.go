// Package contest implements the single-leader point race that decides who
// owns a flag.
//
// There is one pool of points. Pressure from the leading team (or from anyone
// while the flag is neutral) fills the pool; pressure from any other team
// drains it. When the pool is full the leader has won the flag, and when it
// drains to zero the flag becomes neutral again.
package contest

import "github.com/warfare-dev/extension/pkg/core"

// Event is a transition produced by AwardPoints.
type Event interface {
	contestEvent()
}

// PointsChanged is produced whenever the leader's points move.
type PointsChanged struct {
	Change int
}

// Won is produced the first time the pool fills up.
type Won struct {
	Leader core.Team
}

// Restarted is produced when the pool drains to zero and the flag resets to
// neutral. Neutralizer is the team whose pressure emptied it.
type Restarted struct {
	Neutralizer    core.Team
	PreviousLeader core.Team
}

func (PointsChanged) contestEvent() {}
func (Won) contestEvent()           {}
func (Restarted) contestEvent()     {}

// Listener receives transitions as they happen, in the same order they are
// returned from AwardPoints.
type Listener interface {
	OnPointsChanged(change int)
	OnWon(leader core.Team)
	OnRestarted(neutralizer, previousLeader core.Team)
}

// SingleLeader is the per-flag point race. It is not safe for concurrent use.
type SingleLeader struct {
	maxPoints int
	leader    core.Team
	points    int
	won       bool
	listener  Listener
}

// New creates a neutral contest.
func New(maxPoints int) *SingleLeader {
	return &SingleLeader{
		maxPoints: maxPoints,
		leader:    core.NoTeam,
	}
}

// NewOwned creates a contest that is already won by owner. Used by modes
// where one side starts out holding every flag.
func NewOwned(maxPoints int, owner core.Team) *SingleLeader {
	c := New(maxPoints)
	if owner.IsValid() {
		c.leader = owner
		c.points = maxPoints
		c.won = true
	}
	return c
}

// SetListener registers l to receive transitions. Pass nil to detach.
func (c *SingleLeader) SetListener(l Listener) {
	c.listener = l
}

// Leader is the team currently ahead, or NoTeam when neutral.
func (c *SingleLeader) Leader() core.Team { return c.leader }

// LeaderPoints is always within [0, MaxPossiblePoints].
func (c *SingleLeader) LeaderPoints() int { return c.points }

// MaxPossiblePoints is the pool size.
func (c *SingleLeader) MaxPossiblePoints() int { return c.maxPoints }

// IsWon is true from the moment the pool fills until it drains to zero.
func (c *SingleLeader) IsWon() bool { return c.won }

// Owner is the leader once the contest is won, otherwise NoTeam.
func (c *SingleLeader) Owner() core.Team {
	if c.won {
		return c.leader
	}
	return core.NoTeam
}

// AwardPoints applies capture pressure from team and returns the resulting
// transitions in the order they occurred. Non-positive points, invalid teams
// and pressure from a leader that already holds a full pool are no-ops.
func (c *SingleLeader) AwardPoints(team core.Team, points int) []Event {
	if points <= 0 || !team.IsValid() {
		return nil
	}
	if team.Is(c.leader) && c.points == c.maxPoints {
		return nil
	}

	old := c.points
	if !c.leader.IsValid() || team.Is(c.leader) {
		c.points = c.clamp(old + points)
	} else {
		c.points = c.clamp(old - points)
	}

	change := c.points - old
	var events []Event

	switch {
	case change > 0:
		if old == 0 {
			c.leader = team
		}
		events = append(events, PointsChanged{Change: change})
		if c.points == c.maxPoints && !c.won {
			c.won = true
			events = append(events, Won{Leader: c.leader})
		}

	case change < 0:
		if c.points == 0 {
			previous := c.leader
			c.leader = core.NoTeam
			c.won = false
			events = append(events, Restarted{Neutralizer: team, PreviousLeader: previous})
		} else if !c.leader.IsValid() {
			c.leader = team
		}
		events = append(events, PointsChanged{Change: change})
	}

	c.notify(events)
	return events
}

func (c *SingleLeader) clamp(v int) int {
	if v < 0 {
		return 0
	}
	if v > c.maxPoints {
		return c.maxPoints
	}
	return v
}

func (c *SingleLeader) notify(events []Event) {
	if c.listener == nil {
		return
	}
	for _, e := range events {
		switch ev := e.(type) {
		case PointsChanged:
			c.listener.OnPointsChanged(ev.Change)
		case Won:
			c.listener.OnWon(ev.Leader)
		case Restarted:
			c.listener.OnRestarted(ev.Neutralizer, ev.PreviousLeader)
		}
	}
}
