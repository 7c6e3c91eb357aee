package flags

import (
	"fmt"

	"github.com/warfare-dev/extension/internal/config"
	"github.com/warfare-dev/extension/internal/contest"
	"github.com/warfare-dev/extension/pkg/core"
)

// Mode names accepted by flags.mode.
const (
	ModeDualSided = "dualSided"
	ModeInvasion  = "invasion"
)

// Policy is the game-mode strategy plugged into the Service. Implementations
// are called only from the simulation goroutine.
type Policy interface {
	// Sides returns the teams whose mains start and end the path.
	Sides() (first, last core.Team)
	// NewContest creates the point race of a newly set up flag.
	NewContest(maxPoints int) *contest.SingleLeader
	// RecalculateObjectives refreshes which flag each team plays for.
	RecalculateObjectives(flags []*Objective)
	// ContestResult evaluates one flag.
	ContestResult(flag *Objective, teams []core.Team) ContestState
	// Objective returns the flag team currently plays for, or nil.
	Objective(team core.Team) *Objective
}

// NewPolicy builds the policy selected by cfg.Mode.
func NewPolicy(cfg config.FlagsConfig, teams core.TeamProvider) (Policy, error) {
	var valid []core.Team
	for _, t := range teams.Teams() {
		if t.IsValid() {
			valid = append(valid, t)
		}
	}
	if len(valid) < 2 {
		return nil, configErr("teams", ErrNotEnoughTeams)
	}

	switch cfg.Mode {
	case ModeDualSided, "":
		return &DualSidedPolicy{
			Team1:                    valid[0],
			Team2:                    valid[1],
			RequiredPlayerDifference: cfg.RequiredPlayerDifference,
		}, nil

	case ModeInvasion:
		attacker := core.TeamByID(teams, cfg.Invasion.AttackingTeam)
		defender := core.TeamByID(teams, cfg.Invasion.DefendingTeam)
		if !attacker.IsValid() {
			return nil, configErr("flags.invasion.attackingTeam",
				fmt.Errorf("%w: team %d", ErrInvalidSetting, cfg.Invasion.AttackingTeam))
		}
		if !defender.IsValid() || defender.Is(attacker) {
			return nil, configErr("flags.invasion.defendingTeam",
				fmt.Errorf("%w: team %d", ErrInvalidSetting, cfg.Invasion.DefendingTeam))
		}
		return &InvasionPolicy{
			Attacker:                 attacker,
			Defender:                 defender,
			RequiredPlayerDifference: cfg.RequiredPlayerDifference,
		}, nil
	}

	return nil, configErr("flags.mode", fmt.Errorf("%w: %q", ErrUnknownMode, cfg.Mode))
}
