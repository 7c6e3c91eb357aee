// pkg/core/rotation.go
package core

import "time"

// Rotation describes one run of a flag rotation, from setup to teardown.
type Rotation struct {
	ID           uint
	UUID         string
	Mode         string
	Pathing      string
	StartTime    time.Time
	EndTime      time.Time
	Winner       uint8
	Flags        []RotationFlag
	ServerName   string
	MapName      string
	TickInterval time.Duration
	MaxPoints    int
}

// RotationFlag is one flag in a rotation's path.
type RotationFlag struct {
	Index    int
	Name     string
	Center   Position2D
	Owner    uint8
	Attacker uint8
}

// CaptureRecord is written whenever a flag changes hands.
type CaptureRecord struct {
	ID       uint
	Time     time.Time
	Flag     string
	Index    int
	Team     uint8
	Previous uint8
	// Neutralized is true when the flag lost its owner rather than gaining one.
	Neutralized bool
	Players     []PlayerID
}

// ContestSnapshot records a flag's contest state after a change.
type ContestSnapshot struct {
	ID       uint
	Time     time.Time
	Flag     string
	State    string
	Team     uint8
	Leader   uint8
	Points   int
	Contest  bool
	Presence map[uint8]int
}

// PointsRecord is a single points change on a flag.
type PointsRecord struct {
	Time   time.Time
	Flag   string
	Leader uint8
	Change int
	Points int
}

// UploadMetadata is sent alongside an exported rotation file.
type UploadMetadata struct {
	MapName          string
	Mode             string
	RotationDuration float64
	Winner           uint8
	Tag              string
}
