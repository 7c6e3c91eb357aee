package flags

import (
	"github.com/warfare-dev/extension/internal/contest"
	"github.com/warfare-dev/extension/pkg/core"
)

// DualSidedPolicy is the symmetric tug-of-war. Team1 pushes from the start of
// the path and Team2 from the end; each team's objective is the first flag
// from its own side it does not own. Only objectives are in play.
type DualSidedPolicy struct {
	Team1                    core.Team
	Team2                    core.Team
	RequiredPlayerDifference int

	team1Objective *Objective
	team2Objective *Objective
}

func (p *DualSidedPolicy) Sides() (core.Team, core.Team) {
	return p.Team1, p.Team2
}

func (p *DualSidedPolicy) NewContest(maxPoints int) *contest.SingleLeader {
	return contest.New(maxPoints)
}

func (p *DualSidedPolicy) RecalculateObjectives(flags []*Objective) {
	p.team1Objective, p.team2Objective = nil, nil
	for _, f := range flags {
		if !f.Owner().Is(p.Team1) {
			p.team1Objective = f
			break
		}
	}
	for i := len(flags) - 1; i >= 0; i-- {
		if !flags[i].Owner().Is(p.Team2) {
			p.team2Objective = flags[i]
			break
		}
	}
}

func (p *DualSidedPolicy) ContestResult(flag *Objective, teams []core.Team) ContestState {
	if flag != p.team1Objective && flag != p.team2Objective {
		return NotObjective(flag.Owner())
	}
	return ResolvePresence(flag.Region().CountCapturing(), teams, p.RequiredPlayerDifference)
}

func (p *DualSidedPolicy) Objective(team core.Team) *Objective {
	switch {
	case team.IsFriendly(p.Team1):
		return p.team1Objective
	case team.IsFriendly(p.Team2):
		return p.team2Objective
	}
	return nil
}
