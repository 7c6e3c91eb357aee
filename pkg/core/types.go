// pkg/core/types.go
package core

import "math"

// Position3D represents a world position in map metres.
type Position3D struct {
	X float64 `json:"x"` // easting
	Y float64 `json:"y"` // northing
	Z float64 `json:"z"` // elevation ASL
}

// Position2D is a point on the map plane.
type Position2D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Flat drops the elevation.
func (p Position3D) Flat() Position2D {
	return Position2D{X: p.X, Y: p.Y}
}

// DistanceTo returns the planar distance between two points.
func (p Position2D) DistanceTo(o Position2D) float64 {
	return math.Hypot(o.X-p.X, o.Y-p.Y)
}
