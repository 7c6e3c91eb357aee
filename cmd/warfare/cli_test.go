package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warfare-dev/extension/internal/database"
	"github.com/warfare-dev/extension/internal/storage/memory"
	"github.com/warfare-dev/extension/internal/zones"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.OpenSqlite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

func writeTestExport(t *testing.T, compress bool) string {
	t.Helper()
	name := "rotation.json"
	if compress {
		name += ".gz"
	}
	path := filepath.Join(t.TempDir(), name)
	export := memory.Export{
		UUID:      "rot-1",
		MapName:   "Altis",
		Mode:      "dualSided",
		Pathing:   "ObjectivePathing",
		StartTime: 1705314600000,
		EndTime:   1705316400000,
		Winner:    2,
		Flags: []memory.FlagJSON{
			{Index: 0, Name: "Kavala", Owner: 2},
			{Index: 1, Name: "Pyrgos", Owner: 2, Attacker: 1},
		},
		Captures: []memory.CaptureJSON{{Flag: "Kavala", Team: 2}},
	}
	require.NoError(t, memory.WriteExport(path, export, compress))
	return path
}

func TestRunExport_Summary(t *testing.T) {
	path := writeTestExport(t, true)

	var out bytes.Buffer
	require.NoError(t, runExport(&out, []string{path}))

	s := out.String()
	assert.Contains(t, s, "rotation rot-1 on Altis (dualSided, ObjectivePathing)")
	assert.Contains(t, s, "lasted 30m0s")
	assert.Contains(t, s, "winner team 2")
	assert.Contains(t, s, "1 captures")
	assert.Contains(t, s, "Pyrgos")
}

func TestRunExport_JSON(t *testing.T) {
	path := writeTestExport(t, false)

	var out bytes.Buffer
	require.NoError(t, runExport(&out, []string{"-json", path}))

	var got memory.Export
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	assert.Equal(t, "rot-1", got.UUID)
	assert.Len(t, got.Flags, 2)
}

func TestRunExport_Errors(t *testing.T) {
	var out bytes.Buffer
	assert.Error(t, runExport(&out, nil))
	assert.Error(t, runExport(&out, []string{filepath.Join(t.TempDir(), "missing.json")}))
}

func TestImportZones(t *testing.T) {
	db := openTestDB(t)
	path := filepath.Join(t.TempDir(), "zones.json")
	doc := `{"zones":[
		{"name":"Main 1","kind":"main","team":1,"shape":"circle","center":{"x":0,"y":0},"radius":50},
		{"name":"Alpha","kind":"flag","shape":"rect","center":{"x":500,"y":500},"sizeX":40,"sizeY":20}
	]}`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0644))

	n, err := importZones(context.Background(), db, path, "Altis")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	got, err := zones.DBProvider{DB: db, MapName: "Altis"}.Zones(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Main 1", got[0].Name)
	assert.Equal(t, zones.ShapeRect, got[1].Shape)
}

func TestImportZones_InvalidShape(t *testing.T) {
	db := openTestDB(t)
	path := filepath.Join(t.TempDir(), "zones.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"zones":[{"name":"X","kind":"flag","shape":"hexagon"}]}`), 0644))

	_, err := importZones(context.Background(), db, path, "Altis")
	assert.Error(t, err)
}

func TestRunImportZones_Usage(t *testing.T) {
	var out bytes.Buffer
	assert.Error(t, runImportZones(&out, []string{"zones.json"}))
}
