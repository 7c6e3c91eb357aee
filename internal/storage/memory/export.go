// internal/storage/memory/export.go
package memory

import (
	"compress/gzip"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/warfare-dev/extension/pkg/core"
)

// ErrNoRotation is returned when a rotation is ended before it was started.
var ErrNoRotation = errors.New("no rotation in progress")

// Export is the root JSON structure of an exported rotation
type Export struct {
	UUID           string               `json:"uuid"`
	ServerName     string               `json:"serverName"`
	MapName        string               `json:"mapName"`
	Mode           string               `json:"mode"`
	Pathing        string               `json:"pathing"`
	StartTime      int64                `json:"startTime"` // unix millis
	EndTime        int64                `json:"endTime"`
	Winner         uint8                `json:"winner"`
	TickIntervalMs int64                `json:"tickIntervalMs"`
	MaxPoints      int                  `json:"maxPoints"`
	Flags          []FlagJSON           `json:"flags"`
	Captures       []CaptureJSON        `json:"captures"`
	Timeline       [][]any              `json:"timeline"`
	Points         map[string][][]int64 `json:"points"`
}

// FlagJSON is one flag of the rotation path
type FlagJSON struct {
	Index    int        `json:"index"`
	Name     string     `json:"name"`
	Position [2]float64 `json:"position"`
	Owner    uint8      `json:"owner"`
	Attacker uint8      `json:"attacker"`
}

// CaptureJSON is a flag changing hands
type CaptureJSON struct {
	Time        int64           `json:"time"`
	Flag        string          `json:"flag"`
	Index       int             `json:"index"`
	Team        uint8           `json:"team"`
	Previous    uint8           `json:"previous"`
	Neutralized bool            `json:"neutralized"`
	Players     []core.PlayerID `json:"players"`
}

// exportJSON writes the rotation to the output dir, gzipped when configured
func (b *Backend) exportJSON() error {
	export := b.buildExport()

	mapName := sanitize(b.rotation.MapName)
	timestamp := b.rotation.StartTime.Format("20060102_150405")
	filename := fmt.Sprintf("%s_%s_%s.json", mapName, sanitize(b.rotation.Mode), timestamp)
	if b.cfg.CompressOutput {
		filename += ".gz"
	}
	outputPath := filepath.Join(b.cfg.OutputDir, filename)

	if err := os.MkdirAll(b.cfg.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := WriteExport(outputPath, export, b.cfg.CompressOutput); err != nil {
		return err
	}

	b.lastExportPath = outputPath
	b.lastExport = &export
	return nil
}

func (b *Backend) buildExport() Export {
	r := b.rotation
	export := Export{
		UUID:           r.UUID,
		ServerName:     r.ServerName,
		MapName:        r.MapName,
		Mode:           r.Mode,
		Pathing:        r.Pathing,
		StartTime:      r.StartTime.UnixMilli(),
		EndTime:        r.EndTime.UnixMilli(),
		Winner:         r.Winner,
		TickIntervalMs: r.TickInterval.Milliseconds(),
		MaxPoints:      r.MaxPoints,
		Flags:          make([]FlagJSON, 0, len(r.Flags)),
		Captures:       make([]CaptureJSON, 0, len(b.captures)),
		Timeline:       make([][]any, 0, len(b.snapshots)),
		Points:         make(map[string][][]int64),
	}

	for _, f := range r.Flags {
		export.Flags = append(export.Flags, FlagJSON{
			Index:    f.Index,
			Name:     f.Name,
			Position: [2]float64{f.Center.X, f.Center.Y},
			Owner:    f.Owner,
			Attacker: f.Attacker,
		})
	}

	for _, c := range b.captures {
		players := c.Players
		if players == nil {
			players = []core.PlayerID{}
		}
		export.Captures = append(export.Captures, CaptureJSON{
			Time:        c.Time.UnixMilli(),
			Flag:        c.Flag,
			Index:       c.Index,
			Team:        c.Team,
			Previous:    c.Previous,
			Neutralized: c.Neutralized,
			Players:     players,
		})
	}

	// Format: [time, flag, state, team, leader, points, contested]
	for _, s := range b.snapshots {
		export.Timeline = append(export.Timeline, []any{
			s.Time.UnixMilli(),
			s.Flag,
			s.State,
			s.Team,
			s.Leader,
			s.Points,
			s.Contest,
		})
	}

	// Format per flag: [time, leader, points]
	for _, p := range b.points {
		export.Points[p.Flag] = append(export.Points[p.Flag], []int64{
			p.Time.UnixMilli(), int64(p.Leader), int64(p.Points),
		})
	}

	return export
}

// LastExport returns the last export written, if any.
func (b *Backend) LastExport() (Export, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.lastExport == nil {
		return Export{}, false
	}
	return *b.lastExport, true
}

// WriteExport encodes export to path, optionally gzipped.
func WriteExport(path string, export Export, compress bool) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	var w io.Writer = f
	if compress {
		gz := gzip.NewWriter(f)
		defer gz.Close()
		w = gz
	}
	return json.NewEncoder(w).Encode(export)
}

// ReadExport decodes an export file, transparently handling gzip.
func ReadExport(path string) (Export, error) {
	var export Export

	f, err := os.Open(path)
	if err != nil {
		return export, err
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return export, fmt.Errorf("failed to open gzip stream: %w", err)
		}
		defer gz.Close()
		r = gz
	}

	if err := json.NewDecoder(r).Decode(&export); err != nil {
		return export, fmt.Errorf("failed to decode export: %w", err)
	}
	return export, nil
}

func sanitize(s string) string {
	if s == "" {
		return "unknown"
	}
	s = strings.ReplaceAll(s, " ", "_")
	return strings.ReplaceAll(s, ":", "_")
}
