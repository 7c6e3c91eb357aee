package model

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

////////////////////////
// DATABASE STRUCTURES //
////////////////////////

// DatabaseModels is a list of all the structs exported here which represent tables in the database schema
var DatabaseModels = []interface{}{
	&ServerInfo{},
	&Zone{},
	&Rotation{},
	&RotationFlag{},
	&Capture{},
	&ContestSnapshot{},
}

////////////////////////
// SYSTEM MODELS
////////////////////////

// ServerInfo describes the server instance writing to this database
type ServerInfo struct {
	gorm.Model
	ServerName  string `json:"serverName" gorm:"size:127"`
	Description string `json:"description" gorm:"size:255"`
	Website     string `json:"website" gorm:"size:255"`
}

func (*ServerInfo) TableName() string {
	return "server_infos"
}

////////////////////////
// ZONE MODELS
////////////////////////

// Zone is a stored zone shape. Several rows may share a name.
// Definition holds the shape parameters (center, radius, size, points) as JSON.
type Zone struct {
	ID         uint           `json:"id" gorm:"primarykey;autoIncrement;"`
	MapName    string         `json:"mapName" gorm:"size:127;index:idx_zone_map"`
	Name       string         `json:"name" gorm:"size:127;index:idx_zone_name"`
	ShortName  string         `json:"shortName" gorm:"size:64"`
	Kind       string         `json:"kind" gorm:"size:16"`
	Team       uint8          `json:"team"`
	Shape      string         `json:"shape" gorm:"size:16"`
	Definition datatypes.JSON `json:"definition"`
}

func (*Zone) TableName() string {
	return "zones"
}

////////////////////////
// ROTATION MODELS
////////////////////////

// Rotation is one flag rotation from setup to teardown
type Rotation struct {
	gorm.Model
	UUID           string    `json:"uuid" gorm:"size:36;uniqueIndex"`
	Mode           string    `json:"mode" gorm:"size:32"`
	Pathing        string    `json:"pathing" gorm:"size:64"`
	MapName        string    `json:"mapName" gorm:"size:127"`
	ServerName     string    `json:"serverName" gorm:"size:127"`
	StartTime      time.Time `json:"startTime" gorm:"index:idx_rotation_start"`
	EndTime        time.Time `json:"endTime"`
	Winner         uint8     `json:"winner"`
	TickIntervalMs int64     `json:"tickIntervalMs"`
	MaxPoints      int       `json:"maxPoints"`

	Flags            []RotationFlag    `json:"flags"`
	Captures         []Capture         `json:"-"`
	ContestSnapshots []ContestSnapshot `json:"-"`
}

func (*Rotation) TableName() string {
	return "rotations"
}

// RotationFlag is a flag's place in a rotation's path
type RotationFlag struct {
	ID         uint    `json:"id" gorm:"primarykey;autoIncrement;"`
	RotationID uint    `json:"rotationId" gorm:"index:idx_rotationflag_rotation_id"`
	FlagIndex  int     `json:"index"`
	Name       string  `json:"name" gorm:"size:127"`
	CenterX    float64 `json:"centerX"`
	CenterY    float64 `json:"centerY"`
	Owner      uint8   `json:"owner"`
	Attacker   uint8   `json:"attacker"`
}

func (*RotationFlag) TableName() string {
	return "rotation_flags"
}

// Capture records a flag being captured or neutralized
type Capture struct {
	ID          uint           `json:"id" gorm:"primarykey;autoIncrement;"`
	RotationID  uint           `json:"rotationId" gorm:"index:idx_capture_rotation_id"`
	Time        time.Time      `json:"time" gorm:"index:idx_capture_time"`
	Flag        string         `json:"flag" gorm:"size:127"`
	FlagIndex   int            `json:"index"`
	Team        uint8          `json:"team"`
	Previous    uint8          `json:"previous"`
	Neutralized bool           `json:"neutralized"`
	Players     datatypes.JSON `json:"players"`
}

func (*Capture) TableName() string {
	return "captures"
}

// ContestSnapshot records a flag's contest state after it changed
type ContestSnapshot struct {
	ID         uint           `json:"id" gorm:"primarykey;autoIncrement;"`
	RotationID uint           `json:"rotationId" gorm:"index:idx_contestsnapshot_rotation_id"`
	Time       time.Time      `json:"time"`
	Flag       string         `json:"flag" gorm:"size:127"`
	State      string         `json:"state" gorm:"size:32"`
	Team       uint8          `json:"team"`
	Leader     uint8          `json:"leader"`
	Points     int            `json:"points"`
	Contested  bool           `json:"contested"`
	Presence   datatypes.JSON `json:"presence"`
}

func (*ContestSnapshot) TableName() string {
	return "contest_snapshots"
}
