package flags

import (
	"github.com/warfare-dev/extension/internal/zones"
	"github.com/warfare-dev/extension/pkg/core"
)

// ActiveFlags returns the capturable flags in path order, mains excluded.
func (s *Service) ActiveFlags() []*Objective {
	return append([]*Objective(nil), s.flags...)
}

// Path returns the full zone path including both mains.
func (s *Service) Path() []zones.Zone {
	return append([]zones.Zone(nil), s.path...)
}

// Objective looks a flag up by zone name.
func (s *Service) Objective(name string) *Objective {
	return s.byName[name]
}

// GetObjective returns the flag team currently plays for, or nil.
func (s *Service) GetObjective(team core.Team) *Objective {
	if s.policy == nil || s.State() != StateActive {
		return nil
	}
	return s.policy.Objective(team)
}

// EnumerateObjectives returns every team's objective once, in path order.
func (s *Service) EnumerateObjectives() []*Objective {
	if s.policy == nil || s.State() != StateActive {
		return nil
	}
	want := make(map[*Objective]bool)
	for _, t := range s.teams {
		if obj := s.policy.Objective(t); obj != nil {
			want[obj] = true
		}
	}
	var out []*Objective
	for _, f := range s.flags {
		if want[f] {
			out = append(out, f)
		}
	}
	return out
}

// FlagListEntry is one row of the flag list shown to a team.
type FlagListEntry struct {
	Index      int    `json:"index"`
	Name       string `json:"name,omitempty"` // empty until discovered
	Discovered bool   `json:"discovered"`
	Owner      uint8  `json:"owner"`
	OwnerColor string `json:"ownerColor,omitempty"`
	Leader     uint8  `json:"leader"`
	Points     int    `json:"points"`
	Contested  bool   `json:"contested"`
	Objective  bool   `json:"objective"`
	State      string `json:"state"`
}

// EnumerateFlagListEntries projects the rotation for viewer's flag list.
// Flags the viewer has not discovered keep their slot but hide their name.
func (s *Service) EnumerateFlagListEntries(viewer core.Team) []FlagListEntry {
	obj := s.GetObjective(viewer)
	out := make([]FlagListEntry, 0, len(s.flags))
	for _, f := range s.flags {
		owner := f.Owner()
		e := FlagListEntry{
			Index:      f.Index(),
			Discovered: f.IsDiscovered(viewer),
			Owner:      owner.ID,
			OwnerColor: owner.Faction.Color,
			Leader:     f.Contest().Leader().ID,
			Points:     f.Contest().LeaderPoints(),
			Contested:  f.IsContested(),
			Objective:  f == obj,
			State:      f.CurrentContestState().String(),
		}
		if e.Discovered {
			e.Name = displayName(f)
		}
		out = append(out, e)
	}
	return out
}

func displayName(f *Objective) string {
	if f.ref.ShortName != "" {
		return f.ref.ShortName
	}
	return f.ref.Name
}

// Status is a point-in-time summary of the rotation.
type Status struct {
	RotationID string       `json:"rotationId"`
	State      string       `json:"state"`
	Mode       string       `json:"mode"`
	Finished   bool         `json:"finished"`
	Winner     uint8        `json:"winner"`
	Flags      []FlagStatus `json:"flags"`
}

// FlagStatus summarizes one flag.
type FlagStatus struct {
	Name      string        `json:"name"`
	Owner     uint8         `json:"owner"`
	Leader    uint8         `json:"leader"`
	Points    int           `json:"points"`
	Contested bool          `json:"contested"`
	State     string        `json:"state"`
	Presence  map[uint8]int `json:"presence"`
}

// Status summarizes the rotation.
func (s *Service) Status() Status {
	st := Status{
		RotationID: s.rotationID,
		State:      s.State().String(),
		Mode:       s.cfg.Mode,
		Finished:   s.finished,
		Winner:     s.winner.ID,
	}
	for _, f := range s.flags {
		st.Flags = append(st.Flags, FlagStatus{
			Name:      f.Name(),
			Owner:     f.Owner().ID,
			Leader:    f.Contest().Leader().ID,
			Points:    f.Contest().LeaderPoints(),
			Contested: f.IsContested(),
			State:     f.CurrentContestState().String(),
			Presence:  f.Region().CountCapturing(),
		})
	}
	return st
}
