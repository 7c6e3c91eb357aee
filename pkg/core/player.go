// pkg/core/player.go
package core

// PlayerID is the player's Steam64 id.
type PlayerID uint64

// Player is a snapshot of a connected player as reported by the host.
type Player struct {
	ID       PlayerID   `json:"id"`
	Name     string     `json:"name"`
	Team     Team       `json:"team"`
	Position Position3D `json:"position"`
	Alive    bool       `json:"alive"`
}

// IsCapturing reports whether the player counts towards a flag contest.
func (p Player) IsCapturing() bool {
	return p.Alive && p.Team.IsValid()
}
