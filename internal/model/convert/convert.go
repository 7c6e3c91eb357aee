// Package convert provides functions to convert between GORM models and core models
package convert

import (
	"encoding/json"

	"github.com/warfare-dev/extension/internal/model"
	"github.com/warfare-dev/extension/pkg/core"
	"gorm.io/datatypes"
)

// toJSON marshals v for a JSON column, falling back to an empty value.
func toJSON(v any, empty string) datatypes.JSON {
	data, err := json.Marshal(v)
	if err != nil || string(data) == "null" {
		return datatypes.JSON(empty)
	}
	return datatypes.JSON(data)
}

// CoreToRotation converts a core.Rotation to a GORM model.Rotation including its flags.
func CoreToRotation(r core.Rotation) model.Rotation {
	out := model.Rotation{
		UUID:           r.UUID,
		Mode:           r.Mode,
		Pathing:        r.Pathing,
		MapName:        r.MapName,
		ServerName:     r.ServerName,
		StartTime:      r.StartTime,
		EndTime:        r.EndTime,
		Winner:         r.Winner,
		TickIntervalMs: r.TickInterval.Milliseconds(),
		MaxPoints:      r.MaxPoints,
	}
	out.ID = r.ID
	for _, f := range r.Flags {
		out.Flags = append(out.Flags, CoreToRotationFlag(f))
	}
	return out
}

// CoreToRotationFlag converts a core.RotationFlag to a GORM model.RotationFlag.
func CoreToRotationFlag(f core.RotationFlag) model.RotationFlag {
	return model.RotationFlag{
		FlagIndex: f.Index,
		Name:      f.Name,
		CenterX:   f.Center.X,
		CenterY:   f.Center.Y,
		Owner:     f.Owner,
		Attacker:  f.Attacker,
	}
}

// CoreToCapture converts a core.CaptureRecord to a GORM model.Capture.
func CoreToCapture(rotationID uint, c core.CaptureRecord) model.Capture {
	return model.Capture{
		ID:          c.ID,
		RotationID:  rotationID,
		Time:        c.Time,
		Flag:        c.Flag,
		FlagIndex:   c.Index,
		Team:        c.Team,
		Previous:    c.Previous,
		Neutralized: c.Neutralized,
		Players:     toJSON(c.Players, "[]"),
	}
}

// CoreToContestSnapshot converts a core.ContestSnapshot to a GORM model.ContestSnapshot.
func CoreToContestSnapshot(rotationID uint, s core.ContestSnapshot) model.ContestSnapshot {
	return model.ContestSnapshot{
		ID:         s.ID,
		RotationID: rotationID,
		Time:       s.Time,
		Flag:       s.Flag,
		State:      s.State,
		Team:       s.Team,
		Leader:     s.Leader,
		Points:     s.Points,
		Contested:  s.Contest,
		Presence:   toJSON(s.Presence, "{}"),
	}
}
