package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(body), 0644))
	return dir
}

func TestLoad_WithValidConfigFile(t *testing.T) {
	t.Cleanup(viper.Reset)

	dir := writeConfig(t, `{
		"logLevel": "debug",
		"db": { "host": "10.0.0.1", "port": "5433" }
	}`)

	err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "debug", viper.GetString("logLevel"))
	assert.Equal(t, "10.0.0.1", viper.GetString("db.host"))
	assert.Equal(t, "5433", viper.GetString("db.port"))
}

func TestLoad_DefaultValues(t *testing.T) {
	t.Cleanup(viper.Reset)

	require.NoError(t, Load(writeConfig(t, `{}`)))

	assert.Equal(t, "info", viper.GetString("logLevel"))
	assert.Equal(t, "./warfarelogs", viper.GetString("logsDir"))
	assert.Equal(t, "http://localhost:5000", viper.GetString("api.serverUrl"))
	assert.Equal(t, "", viper.GetString("api.apiKey"))
	assert.Equal(t, "localhost", viper.GetString("db.host"))
	assert.Equal(t, "warfare", viper.GetString("db.database"))
	assert.Equal(t, false, viper.GetBool("graylog.enabled"))
	assert.Equal(t, "localhost:12201", viper.GetString("graylog.address"))
	assert.Equal(t, "file", viper.GetString("zones.source"))
}

func TestLoad_MissingFile(t *testing.T) {
	t.Cleanup(viper.Reset)

	err := Load("/nonexistent/path")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error reading config file")
}

func TestGetters(t *testing.T) {
	t.Cleanup(viper.Reset)
	viper.Set("testKey", "testValue")
	viper.Set("testInt", 42)
	viper.Set("testBool", true)

	assert.Equal(t, "testValue", GetString("testKey"))
	assert.Equal(t, 42, GetInt("testInt"))
	assert.Equal(t, true, GetBool("testBool"))
}

func TestGetFlagsConfig_Defaults(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{}`)))

	cfg := GetFlagsConfig()
	assert.Equal(t, "dualSided", cfg.Mode)
	assert.Equal(t, "ObjectivePathing", cfg.PathingProvider)
	assert.Equal(t, []string{"AllFlags"}, cfg.FlagPoolProviders)
	assert.Empty(t, cfg.NamedFlags)
	assert.Equal(t, 4*time.Second, cfg.TickInterval)
	assert.Equal(t, 64, cfg.MaxPoints)
	assert.Equal(t, 12, cfg.PointsPerTick)
	assert.Equal(t, 2, cfg.RequiredPlayerDifference)
	assert.Equal(t, uint8(1), cfg.Invasion.AttackingTeam)
	assert.Equal(t, uint8(2), cfg.Invasion.DefendingTeam)
}

func TestGetFlagsConfig_Override(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{
		"flags": {
			"mode": "invasion",
			"pathingProvider": "FixedOrder",
			"fixedOrder": ["Alpha", "Bravo"],
			"tickInterval": "2s",
			"invasion": { "attackingTeam": 2, "defendingTeam": 1 }
		}
	}`)))

	cfg := GetFlagsConfig()
	assert.Equal(t, "invasion", cfg.Mode)
	assert.Equal(t, "FixedOrder", cfg.PathingProvider)
	assert.Equal(t, []string{"Alpha", "Bravo"}, cfg.FixedOrder)
	assert.Equal(t, 2*time.Second, cfg.TickInterval)
	assert.Equal(t, 64, cfg.MaxPoints, "untouched keys keep their default")
	assert.Equal(t, uint8(2), cfg.Invasion.AttackingTeam)
	assert.Equal(t, uint8(1), cfg.Invasion.DefendingTeam)
}

func TestGetGraphWalkConfig(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{"pathing": {"maxFlags": 6, "seed": 99}}`)))

	cfg := GetGraphWalkConfig()
	want := DefaultGraphWalkConfig()
	want.MaxFlags = 6
	want.Seed = 99
	assert.Equal(t, want, cfg)
}

func TestGetStorageConfig_Defaults(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{}`)))

	cfg := GetStorageConfig()
	assert.Equal(t, "memory", cfg.Type)
	assert.Equal(t, "./rotations", cfg.Memory.OutputDir)
	assert.Equal(t, true, cfg.Memory.CompressOutput)
	assert.Equal(t, "", cfg.SQLite.Path)
	assert.Equal(t, time.Minute, cfg.SQLite.DumpInterval)
	assert.Equal(t, 5*time.Second, cfg.FlushInterval)
}

func TestGetStorageConfig_Override(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{
		"storage": {
			"type": "sqlite",
			"flushInterval": "1s",
			"memory": { "outputDir": "/tmp/out", "compressOutput": false },
			"sqlite": { "path": "/tmp/history.db" }
		}
	}`)))

	sc := GetStorageConfig()
	assert.Equal(t, "sqlite", sc.Type)
	assert.Equal(t, time.Second, sc.FlushInterval)
	assert.Equal(t, "/tmp/out", sc.Memory.OutputDir)
	assert.Equal(t, false, sc.Memory.CompressOutput)
	assert.Equal(t, "/tmp/history.db", sc.SQLite.Path)
}

func TestGetOTelConfig_Defaults(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{}`)))

	cfg := GetOTelConfig()
	assert.Equal(t, false, cfg.Enabled)
	assert.Equal(t, "warfare", cfg.ServiceName)
	assert.Equal(t, 5*time.Second, cfg.BatchTimeout)
	assert.Equal(t, "", cfg.Endpoint)
	assert.Equal(t, true, cfg.Insecure)
	assert.Equal(t, time.Duration(0), cfg.MetricInterval)
}

func TestGetOTelConfig_Override(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{
		"otel": {
			"enabled": true,
			"serviceName": "my-service",
			"batchTimeout": "30s",
			"endpoint": "localhost:4317",
			"insecure": false
		}
	}`)))

	oc := GetOTelConfig()
	assert.Equal(t, true, oc.Enabled)
	assert.Equal(t, "my-service", oc.ServiceName)
	assert.Equal(t, 30*time.Second, oc.BatchTimeout)
	assert.Equal(t, "localhost:4317", oc.Endpoint)
	assert.Equal(t, false, oc.Insecure)
}

func TestSmallGetters(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{
		"streaming": { "url": "ws://relay:8080/ws", "secret": "s3" },
		"influx": { "enabled": true, "bucket": "caps" },
		"zones": { "source": "database", "mapName": "Yellowknife" }
	}`)))

	assert.Equal(t, StreamingConfig{URL: "ws://relay:8080/ws", Secret: "s3"}, GetStreamingConfig())

	ic := GetInfluxConfig()
	assert.True(t, ic.Enabled)
	assert.Equal(t, "caps", ic.Bucket)
	assert.Equal(t, "warfare-metrics", ic.Org)

	zc := GetZonesConfig()
	assert.Equal(t, "database", zc.Source)
	assert.Equal(t, "Yellowknife", zc.MapName)
	assert.Equal(t, "./zones.json", zc.File)

	assert.Equal(t, "postgres", GetDBConfig().Username)
	assert.Equal(t, "http://localhost:5000", GetAPIConfig().ServerURL)
}

func TestGetMonitorConfig(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{"monitor": {"interval": "30s"}}`)))

	mc := GetMonitorConfig()
	assert.Equal(t, 30*time.Second, mc.Interval)
	assert.Equal(t, "status.json", mc.StatusFile)
}

func TestGetTeams(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		t.Cleanup(viper.Reset)
		SetDefaults()

		teams, err := GetTeams()
		require.NoError(t, err)
		require.Len(t, teams, 2)
		assert.Equal(t, uint8(1), teams[0].ID)
		assert.Equal(t, "BLUFOR", teams[0].Faction.Name)
		assert.Equal(t, "OPF", teams[1].Faction.ShortName)
	})

	t.Run("from file", func(t *testing.T) {
		t.Cleanup(viper.Reset)
		dir := writeConfig(t, `{
			"teams": [
				{ "id": 0, "faction": { "name": "ignored" } },
				{ "id": 3, "faction": { "id": "IND", "name": "Independent", "shortName": "IND", "color": "008000" } },
				{ "id": 4, "faction": { "name": "Civilians" } }
			]
		}`)
		require.NoError(t, Load(dir))

		teams, err := GetTeams()
		require.NoError(t, err)
		require.Len(t, teams, 2)
		assert.Equal(t, uint8(3), teams[0].ID)
		assert.Equal(t, "008000", teams[0].Faction.Color)
		assert.Equal(t, "Civilians", teams[1].Faction.Name)
	})

	t.Run("too few", func(t *testing.T) {
		t.Cleanup(viper.Reset)
		dir := writeConfig(t, `{ "teams": [ { "id": 1 } ] }`)
		require.NoError(t, Load(dir))

		_, err := GetTeams()
		assert.Error(t, err)
	})
}
