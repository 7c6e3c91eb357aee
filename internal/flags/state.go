package flags

import (
	"fmt"

	"github.com/warfare-dev/extension/pkg/core"
)

// ContestKind is the outcome class of one contest evaluation.
type ContestKind uint8

const (
	KindNoPlayers ContestKind = iota
	KindNotObjective
	KindContested
	KindLeading
)

func (k ContestKind) String() string {
	switch k {
	case KindNoPlayers:
		return "NoPlayers"
	case KindNotObjective:
		return "NotObjective"
	case KindContested:
		return "Contested"
	case KindLeading:
		return "OneTeamIsLeading"
	}
	return fmt.Sprintf("ContestKind(%d)", uint8(k))
}

// ContestState is the result of evaluating a flag. It is an immutable value;
// compare with ==. Team is only meaningful for NotObjective (the owner) and
// Leading (the leader).
type ContestState struct {
	Kind ContestKind
	Team core.Team
}

// NoPlayers is the state of a flag nobody stands on.
func NoPlayers() ContestState { return ContestState{Kind: KindNoPlayers} }

// NotObjective is the state of a flag outside play, carrying its owner.
func NotObjective(owner core.Team) ContestState {
	return ContestState{Kind: KindNotObjective, Team: owner}
}

// Contested is the state of a flag no team clearly leads.
func Contested() ContestState { return ContestState{Kind: KindContested} }

// Leading is the state of a flag one team is winning.
func Leading(team core.Team) ContestState {
	return ContestState{Kind: KindLeading, Team: team}
}

func (s ContestState) String() string {
	switch s.Kind {
	case KindNotObjective, KindLeading:
		return fmt.Sprintf("%s(%s)", s.Kind, s.Team)
	}
	return s.Kind.String()
}

// ResolvePresence decides the contest state from per-team player counts. A
// team leads when it is the only one present, or when it outnumbers every
// other team by at least required players. Counts for teams not in teams are
// ignored.
func ResolvePresence(counts map[uint8]int, teams []core.Team, required int) ContestState {
	if required < 1 {
		required = 1
	}

	var lead core.Team
	best, second := 0, 0
	for _, t := range teams {
		if !t.IsValid() {
			continue
		}
		n := counts[t.ID]
		switch {
		case n > best:
			second = best
			best = n
			lead = t
		case n > second:
			second = n
		}
	}

	switch {
	case best == 0:
		return NoPlayers()
	case second == 0, best-second >= required:
		return Leading(lead)
	}
	return Contested()
}
