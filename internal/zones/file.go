package zones

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
)

// FileProvider reads zones from a JSON document of the form {"zones": [...]}.
type FileProvider struct {
	Path string
}

type zoneFile struct {
	Zones []Zone `json:"zones"`
}

// Zones reads and decodes the file.
func (p FileProvider) Zones(ctx context.Context) ([]Zone, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p.Path)
	if err != nil {
		return nil, fmt.Errorf("reading zone file: %w", err)
	}
	var f zoneFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decoding zone file %s: %w", p.Path, err)
	}
	return f.Zones, nil
}
