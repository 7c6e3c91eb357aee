package flags

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/warfare-dev/extension/pkg/core"
)

func TestResolvePresence(t *testing.T) {
	teams := []core.Team{team1, team2}

	tests := []struct {
		name     string
		counts   map[uint8]int
		required int
		want     ContestState
	}{
		{"empty", map[uint8]int{}, 2, NoPlayers()},
		{"zero counts", map[uint8]int{1: 0, 2: 0}, 2, NoPlayers()},
		{"alone", map[uint8]int{1: 1}, 2, Leading(team1)},
		{"alone team 2", map[uint8]int{2: 5}, 2, Leading(team2)},
		{"even", map[uint8]int{1: 2, 2: 2}, 2, Contested()},
		{"short by one", map[uint8]int{1: 3, 2: 2}, 2, Contested()},
		{"exact difference", map[uint8]int{1: 4, 2: 2}, 2, Leading(team1)},
		{"team 2 outnumbers", map[uint8]int{1: 1, 2: 4}, 2, Leading(team2)},
		{"required clamped to one", map[uint8]int{1: 2, 2: 1}, 0, Leading(team1)},
		{"unknown team ignored", map[uint8]int{7: 9, 1: 1}, 2, Leading(team1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolvePresence(tt.counts, teams, tt.required))
		})
	}
}

func TestContestState_String(t *testing.T) {
	assert.Equal(t, "NoPlayers", NoPlayers().String())
	assert.Equal(t, "Contested", Contested().String())
	assert.Equal(t, "OneTeamIsLeading(1 (USA))", Leading(team1).String())
	assert.Equal(t, "NotObjective(2 (RU))", NotObjective(team2).String())
	assert.Equal(t, "ContestKind(9)", ContestKind(9).String())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "Stopped", StateStopped.String())
	assert.Equal(t, "Starting", StateStarting.String())
	assert.Equal(t, "Active", StateActive.String())
}
