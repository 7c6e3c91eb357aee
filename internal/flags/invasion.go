package flags

import (
	"github.com/warfare-dev/extension/internal/contest"
	"github.com/warfare-dev/extension/pkg/core"
)

// InvasionPolicy is the asymmetric mode: the defender starts out owning every
// flag and the attacker must take them in path order. The attacker's next
// flag is the only one in play; the defender's objective is the same flag.
type InvasionPolicy struct {
	Attacker                 core.Team
	Defender                 core.Team
	RequiredPlayerDifference int

	objective *Objective
}

func (p *InvasionPolicy) Sides() (core.Team, core.Team) {
	return p.Attacker, p.Defender
}

func (p *InvasionPolicy) NewContest(maxPoints int) *contest.SingleLeader {
	return contest.NewOwned(maxPoints, p.Defender)
}

func (p *InvasionPolicy) RecalculateObjectives(flags []*Objective) {
	p.objective = nil
	for _, f := range flags {
		if !f.Owner().Is(p.Attacker) {
			p.objective = f
			return
		}
	}
}

func (p *InvasionPolicy) ContestResult(flag *Objective, teams []core.Team) ContestState {
	if flag != p.objective {
		return NotObjective(flag.Owner())
	}
	return ResolvePresence(flag.Region().CountCapturing(), teams, p.RequiredPlayerDifference)
}

func (p *InvasionPolicy) Objective(team core.Team) *Objective {
	if team.IsFriendly(p.Attacker) || team.IsFriendly(p.Defender) {
		return p.objective
	}
	return nil
}
