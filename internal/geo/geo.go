package geo

import (
	"errors"
	"math"
	"strconv"
	"strings"

	geom "github.com/peterstace/simplefeatures/geom"
	"github.com/warfare-dev/extension/pkg/core"
)

// Map positions are planar metres straight from the host. No projection is
// applied; X is easting and Y is northing.

// ErrInvalidCoordinates is returned when the coordinates are invalid
var ErrInvalidCoordinates = errors.New("invalid coordinates provided")

// ErrDegeneratePolygon is returned for rings with fewer than three distinct points.
var ErrDegeneratePolygon = errors.New("polygon needs at least 3 distinct points")

// Position3DFromString parses a "x,y" or "x,y,z" string into a core.Position3D.
func Position3DFromString(coords string) (core.Position3D, error) {
	coordsSplit := strings.Split(coords, ",")
	if len(coordsSplit) < 2 {
		return core.Position3D{}, ErrInvalidCoordinates
	}
	x, err := strconv.ParseFloat(strings.TrimSpace(coordsSplit[0]), 64)
	if err != nil {
		return core.Position3D{}, ErrInvalidCoordinates
	}
	y, err := strconv.ParseFloat(strings.TrimSpace(coordsSplit[1]), 64)
	if err != nil {
		return core.Position3D{}, ErrInvalidCoordinates
	}
	var z float64
	if len(coordsSplit) > 2 {
		z, err = strconv.ParseFloat(strings.TrimSpace(coordsSplit[2]), 64)
		if err != nil {
			return core.Position3D{}, ErrInvalidCoordinates
		}
	}
	return core.Position3D{X: x, Y: y, Z: z}, nil
}

// Point converts a map position into a geometry point.
func Point(p core.Position2D) geom.Point {
	return geom.NewPoint(geom.Coordinates{
		XY:   geom.XY{X: p.X, Y: p.Y},
		Type: geom.DimXY,
	})
}

// Polygon builds a closed polygon from an outer ring. The ring is closed
// automatically if the last point differs from the first.
func Polygon(points []core.Position2D) (geom.Polygon, error) {
	distinct := make(map[core.Position2D]struct{}, len(points))
	for _, p := range points {
		distinct[p] = struct{}{}
	}
	if len(distinct) < 3 {
		return geom.Polygon{}, ErrDegeneratePolygon
	}

	flat := make([]float64, 0, (len(points)+1)*2)
	for _, p := range points {
		flat = append(flat, p.X, p.Y)
	}
	if points[0] != points[len(points)-1] {
		flat = append(flat, points[0].X, points[0].Y)
	}

	ring := geom.NewLineString(geom.NewSequence(flat, geom.DimXY))
	return geom.NewPolygon([]geom.LineString{ring}), nil
}

// Rect builds an axis aligned rectangle polygon around a center.
func Rect(center core.Position2D, sizeX, sizeY float64) (geom.Polygon, error) {
	if sizeX <= 0 || sizeY <= 0 {
		return geom.Polygon{}, ErrDegeneratePolygon
	}
	hx, hy := sizeX/2, sizeY/2
	return Polygon([]core.Position2D{
		{X: center.X - hx, Y: center.Y - hy},
		{X: center.X + hx, Y: center.Y - hy},
		{X: center.X + hx, Y: center.Y + hy},
		{X: center.X - hx, Y: center.Y + hy},
	})
}

// PolygonContains reports whether p lies inside or on the boundary of poly.
func PolygonContains(poly geom.Polygon, p core.Position2D) bool {
	return geom.Intersects(poly.AsGeometry(), Point(p).AsGeometry())
}

// CircleContains reports whether p lies within radius of center.
func CircleContains(center core.Position2D, radius float64, p core.Position2D) bool {
	dx, dy := p.X-center.X, p.Y-center.Y
	return dx*dx+dy*dy <= radius*radius
}

// Centroid returns the polygon's centroid, falling back to the origin for an
// empty polygon.
func Centroid(poly geom.Polygon) core.Position2D {
	xy, ok := poly.Centroid().XY()
	if !ok {
		return core.Position2D{}
	}
	return core.Position2D{X: xy.X, Y: xy.Y}
}

// AngleBetween returns the unsigned angle in degrees between the directions
// from -> a and from -> b. Zero-length directions give 0.
func AngleBetween(from, a, b core.Position2D) float64 {
	ax, ay := a.X-from.X, a.Y-from.Y
	bx, by := b.X-from.X, b.Y-from.Y
	la, lb := math.Hypot(ax, ay), math.Hypot(bx, by)
	if la == 0 || lb == 0 {
		return 0
	}
	cos := (ax*bx + ay*by) / (la * lb)
	cos = math.Max(-1, math.Min(1, cos))
	return math.Acos(cos) * 180 / math.Pi
}
