package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog"
	"github.com/warfare-dev/extension/internal/config"
	"github.com/warfare-dev/extension/internal/database"
	"github.com/warfare-dev/extension/internal/storage/memory"
	"github.com/warfare-dev/extension/internal/zones"
	"gorm.io/gorm"
)

// runExport prints a rotation export file: a summary by default, the
// normalized JSON with -json.
func runExport(w io.Writer, args []string) error {
	asJSON := false
	var paths []string
	for _, a := range args {
		if a == "-json" || a == "--json" {
			asJSON = true
			continue
		}
		paths = append(paths, a)
	}
	if len(paths) == 0 {
		return errors.New("usage: warfare export [-json] <file>...")
	}

	for _, path := range paths {
		export, err := memory.ReadExport(path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}
		if asJSON {
			enc := json.NewEncoder(w)
			enc.SetIndent("", "  ")
			if err := enc.Encode(export); err != nil {
				return err
			}
			continue
		}
		if err := writeSummary(w, path, export); err != nil {
			return err
		}
	}
	return nil
}

func writeSummary(w io.Writer, path string, e memory.Export) error {
	start := time.UnixMilli(e.StartTime).UTC()
	duration := time.Duration(e.EndTime-e.StartTime) * time.Millisecond

	fmt.Fprintf(w, "%s\n", path)
	fmt.Fprintf(w, "  rotation %s on %s (%s, %s)\n", e.UUID, e.MapName, e.Mode, e.Pathing)
	fmt.Fprintf(w, "  started %s, lasted %s\n", start.Format(time.RFC3339), duration)
	if e.Winner != 0 {
		fmt.Fprintf(w, "  winner team %d\n", e.Winner)
	} else {
		fmt.Fprintf(w, "  no winner\n")
	}
	fmt.Fprintf(w, "  %d captures\n", len(e.Captures))

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "  #\tflag\towner\tattacker")
	for _, f := range e.Flags {
		fmt.Fprintf(tw, "  %d\t%s\t%d\t%d\n", f.Index, f.Name, f.Owner, f.Attacker)
	}
	return tw.Flush()
}

// runImportZones copies a zone file into the zones table for one map.
func runImportZones(w io.Writer, args []string) error {
	if len(args) < 2 {
		return errors.New("usage: warfare importzones <file> <mapName>")
	}
	if err := config.Load(configDir()); err != nil {
		fmt.Fprintf(w, "Failed to load config, using defaults: %v\n", err)
	}

	m := database.NewManager(zerolog.New(zerolog.ConsoleWriter{Out: w}).With().Timestamp().Logger())
	if err := m.Connect(config.GetDBConfig()); err != nil {
		return err
	}
	defer m.Close()
	if m.ShouldSaveLocal {
		return errors.New("postgres is unreachable, refusing to import into a throwaway database")
	}
	if err := database.Migrate(m.DB); err != nil {
		return err
	}

	n, err := importZones(context.Background(), m.DB, args[0], args[1])
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Imported %d zones for %s\n", n, args[1])
	return nil
}

func importZones(ctx context.Context, db *gorm.DB, path, mapName string) (int, error) {
	zs, err := zones.FileProvider{Path: path}.Zones(ctx)
	if err != nil {
		return 0, err
	}
	if _, err := zones.NewStaticStore(zs...); err != nil {
		return 0, fmt.Errorf("invalid zone file: %w", err)
	}
	if err := (zones.DBProvider{DB: db, MapName: mapName}).Save(ctx, zs); err != nil {
		return 0, err
	}
	return len(zs), nil
}
