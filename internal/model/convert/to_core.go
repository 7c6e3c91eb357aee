package convert

import (
	"encoding/json"
	"time"

	"github.com/warfare-dev/extension/internal/model"
	"github.com/warfare-dev/extension/pkg/core"
)

// RotationToCore converts a GORM model.Rotation (with preloaded flags) to a core.Rotation.
func RotationToCore(r model.Rotation) core.Rotation {
	out := core.Rotation{
		ID:           r.ID,
		UUID:         r.UUID,
		Mode:         r.Mode,
		Pathing:      r.Pathing,
		MapName:      r.MapName,
		ServerName:   r.ServerName,
		StartTime:    r.StartTime,
		EndTime:      r.EndTime,
		Winner:       r.Winner,
		TickInterval: time.Duration(r.TickIntervalMs) * time.Millisecond,
		MaxPoints:    r.MaxPoints,
	}
	for _, f := range r.Flags {
		out.Flags = append(out.Flags, core.RotationFlag{
			Index:    f.FlagIndex,
			Name:     f.Name,
			Center:   core.Position2D{X: f.CenterX, Y: f.CenterY},
			Owner:    f.Owner,
			Attacker: f.Attacker,
		})
	}
	return out
}

// CaptureToCore converts a GORM model.Capture to a core.CaptureRecord.
// A malformed players column yields an empty player list.
func CaptureToCore(c model.Capture) core.CaptureRecord {
	var players []core.PlayerID
	if len(c.Players) > 0 {
		_ = json.Unmarshal(c.Players, &players)
	}
	return core.CaptureRecord{
		ID:          c.ID,
		Time:        c.Time,
		Flag:        c.Flag,
		Index:       c.FlagIndex,
		Team:        c.Team,
		Previous:    c.Previous,
		Neutralized: c.Neutralized,
		Players:     players,
	}
}

// ContestSnapshotToCore converts a GORM model.ContestSnapshot to a core.ContestSnapshot.
func ContestSnapshotToCore(s model.ContestSnapshot) core.ContestSnapshot {
	var presence map[uint8]int
	if len(s.Presence) > 0 {
		_ = json.Unmarshal(s.Presence, &presence)
	}
	return core.ContestSnapshot{
		ID:       s.ID,
		Time:     s.Time,
		Flag:     s.Flag,
		State:    s.State,
		Team:     s.Team,
		Leader:   s.Leader,
		Points:   s.Points,
		Contest:  s.Contested,
		Presence: presence,
	}
}
