// pkg/core/team.go
package core

import "fmt"

// Faction is the display identity a team plays as.
type Faction struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	ShortName string `json:"shortName"`
	Color     string `json:"color"` // hex, no leading #
}

// Team identifies a side. The zero value is NoTeam, which is always a valid
// value to hold but never a valid participant.
type Team struct {
	ID      uint8   `json:"id"`
	Faction Faction `json:"faction"`
}

// NoTeam is the explicit "nobody" team.
var NoTeam = Team{}

// IsValid reports whether the team is an actual participant.
func (t Team) IsValid() bool {
	return t.ID != 0
}

// Is compares team identity, ignoring faction details.
func (t Team) Is(o Team) bool {
	return t.ID == o.ID
}

// IsFriendly reports whether both teams are valid and the same side.
func (t Team) IsFriendly(o Team) bool {
	return t.IsValid() && t.ID == o.ID
}

// IsOpponent reports whether both teams are valid and on different sides.
func (t Team) IsOpponent(o Team) bool {
	return t.IsValid() && o.IsValid() && t.ID != o.ID
}

func (t Team) String() string {
	if !t.IsValid() {
		return "NoTeam"
	}
	if t.Faction.ShortName != "" {
		return fmt.Sprintf("%d (%s)", t.ID, t.Faction.ShortName)
	}
	return fmt.Sprintf("%d", t.ID)
}

// TeamProvider is implemented by whatever owns the match's teams.
type TeamProvider interface {
	Teams() []Team
}

// StaticTeams is a fixed TeamProvider.
type StaticTeams []Team

// Teams returns the configured teams.
func (s StaticTeams) Teams() []Team {
	return s
}

// TeamByID finds a team by id, returning NoTeam when missing.
func TeamByID(p TeamProvider, id uint8) Team {
	for _, t := range p.Teams() {
		if t.ID == id {
			return t
		}
	}
	return NoTeam
}
