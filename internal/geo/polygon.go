package geo

import (
	"encoding/json"
	"fmt"

	"github.com/warfare-dev/extension/pkg/core"
)

// ParsePoints parses a JSON array of coordinates into map points.
// Input format: "[[x1,y1],[x2,y2],...]"
func ParsePoints(input string) ([]core.Position2D, error) {
	var coords [][]float64
	if err := json.Unmarshal([]byte(input), &coords); err != nil {
		return nil, fmt.Errorf("failed to parse points JSON: %w", err)
	}

	if len(coords) < 3 {
		return nil, fmt.Errorf("polygon must have at least 3 points, got %d", len(coords))
	}

	points := make([]core.Position2D, len(coords))
	for i, coord := range coords {
		if len(coord) < 2 {
			return nil, fmt.Errorf("coordinate %d has insufficient values", i)
		}
		points[i] = core.Position2D{X: coord[0], Y: coord[1]}
	}

	return points, nil
}
