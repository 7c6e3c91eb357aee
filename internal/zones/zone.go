// Package zones holds named map regions: their shapes, the store they are
// loaded from, and the presence tracker used by flag objectives.
package zones

import (
	"errors"
	"fmt"

	geom "github.com/peterstace/simplefeatures/geom"
	"github.com/warfare-dev/extension/internal/geo"
	"github.com/warfare-dev/extension/pkg/core"
)

// Kind classifies what a zone is used for.
type Kind string

const (
	KindFlag  Kind = "flag"
	KindMain  Kind = "main"
	KindLobby Kind = "lobby"
)

// Shape is the geometric form of a zone.
type Shape string

const (
	ShapePolygon Shape = "polygon"
	ShapeCircle  Shape = "circle"
	ShapeRect    Shape = "rect"
)

// ErrUnknownShape is returned when a zone definition names an unsupported shape.
var ErrUnknownShape = errors.New("unknown zone shape")

// Zone is a single named shape. Several zones may share a name, in which case
// they describe one logical region. A Zone must be built before use and is
// immutable afterwards.
type Zone struct {
	Name      string            `json:"name"`
	ShortName string            `json:"shortName,omitempty"`
	Kind      Kind              `json:"kind"`
	Team      uint8             `json:"team,omitempty"` // owning team of a main
	Shape     Shape             `json:"shape"`
	Center    core.Position2D   `json:"center"`
	Radius    float64           `json:"radius,omitempty"`
	SizeX     float64           `json:"sizeX,omitempty"`
	SizeY     float64           `json:"sizeY,omitempty"`
	Points    []core.Position2D `json:"points,omitempty"`

	poly  geom.Polygon
	built bool
}

// Build validates the definition and prepares its geometry.
func (z *Zone) Build() error {
	if z.Name == "" {
		return fmt.Errorf("zone has no name")
	}
	switch z.Shape {
	case ShapeCircle:
		if z.Radius <= 0 {
			return fmt.Errorf("zone %q: circle radius must be positive", z.Name)
		}
	case ShapeRect:
		poly, err := geo.Rect(z.Center, z.SizeX, z.SizeY)
		if err != nil {
			return fmt.Errorf("zone %q: %w", z.Name, err)
		}
		z.poly = poly
	case ShapePolygon:
		poly, err := geo.Polygon(z.Points)
		if err != nil {
			return fmt.Errorf("zone %q: %w", z.Name, err)
		}
		z.poly = poly
		if z.Center == (core.Position2D{}) {
			z.Center = geo.Centroid(poly)
		}
	default:
		return fmt.Errorf("zone %q: %w: %q", z.Name, ErrUnknownShape, z.Shape)
	}
	z.built = true
	return nil
}

// IsInside reports whether pos is inside the zone. Unbuilt zones contain nothing.
func (z Zone) IsInside(pos core.Position2D) bool {
	if !z.built {
		return false
	}
	if z.Shape == ShapeCircle {
		return geo.CircleContains(z.Center, z.Radius, pos)
	}
	return geo.PolygonContains(z.poly, pos)
}

// DisplayName prefers the short name.
func (z Zone) DisplayName() string {
	if z.ShortName != "" {
		return z.ShortName
	}
	return z.Name
}
