package flags

import "github.com/warfare-dev/extension/pkg/core"

// Every event carries values only, so buffered listeners may read them from
// any goroutine. Look objectives up through the Service when more is needed.

// FlagRef identifies a flag inside a rotation.
type FlagRef struct {
	Name      string          `json:"name"`
	ShortName string          `json:"shortName,omitempty"`
	Index     int             `json:"index"`
	Center    core.Position2D `json:"center"`
}

// FlagsSetUp is published once the rotation's objectives exist.
type FlagsSetUp struct {
	RotationID string
	Mode       string
	Pathing    string
	Flags      []FlagRef
	Team1      core.Team
	Team2      core.Team
}

// FlagsTornDown is published when the rotation stops.
type FlagsTornDown struct {
	RotationID string
	Winner     core.Team
}

// FlagDiscovered is published the first time a team discovers a flag.
type FlagDiscovered struct {
	Flag FlagRef
	Team core.Team
}

// FlagCaptured is published when a flag's contest is won.
type FlagCaptured struct {
	Flag     FlagRef
	Capturer core.Team
	Players  []core.PlayerID // capturer's players on the flag
}

// FlagNeutralized is published when a flag's contest drains to zero.
// WasOwned is false when the previous leader never completed the capture.
type FlagNeutralized struct {
	Flag           FlagRef
	Neutralizer    core.Team
	PreviousLeader core.Team
	WasOwned       bool
}

// FlagContestPointsChanged is published whenever a flag's points move.
type FlagContestPointsChanged struct {
	Flag   FlagRef
	Change int
	Points int
	Leader core.Team
}

// FlagContestStateChanged is published when a flag's evaluated state changes.
type FlagContestStateChanged struct {
	Flag     FlagRef
	Old      ContestState
	New      ContestState
	Presence map[uint8]int
}

// PlayerEnteredFlagRegion is published when a player enters a flag.
type PlayerEnteredFlagRegion struct {
	Flag   FlagRef
	Player core.Player
}

// PlayerExitedFlagRegion is published when a player leaves a flag.
type PlayerExitedFlagRegion struct {
	Flag   FlagRef
	Player core.Player
}

// FlagRotationWon is published when one team owns every active flag.
type FlagRotationWon struct {
	RotationID string
	Winner     core.Team
}
