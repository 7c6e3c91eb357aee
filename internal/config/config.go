package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
	"github.com/warfare-dev/extension/pkg/core"
)

// FileName is the config file looked up in the config dir.
const FileName = "warfare.cfg.json"

// FlagsConfig holds the flag rotation settings
type FlagsConfig struct {
	Mode                     string         `json:"mode" mapstructure:"mode"`
	PathingProvider          string         `json:"pathingProvider" mapstructure:"pathingProvider"`
	FlagPoolProviders        []string       `json:"flagPoolProviders" mapstructure:"flagPoolProviders"`
	NamedFlags               []string       `json:"namedFlags" mapstructure:"namedFlags"`
	FixedOrder               []string       `json:"fixedOrder" mapstructure:"fixedOrder"`
	TickInterval             time.Duration  `json:"tickInterval" mapstructure:"tickInterval"`
	MaxPoints                int            `json:"maxPoints" mapstructure:"maxPoints"`
	PointsPerTick            int            `json:"pointsPerTick" mapstructure:"pointsPerTick"`
	RequiredPlayerDifference int            `json:"requiredPlayerDifference" mapstructure:"requiredPlayerDifference"`
	Invasion                 InvasionConfig `json:"invasion" mapstructure:"invasion"`
}

// InvasionConfig names the sides of an invasion rotation
type InvasionConfig struct {
	AttackingTeam uint8 `json:"attackingTeam" mapstructure:"attackingTeam"`
	DefendingTeam uint8 `json:"defendingTeam" mapstructure:"defendingTeam"`
}

// GraphWalkConfig holds the tuning constants of the graph walk path builder
type GraphWalkConfig struct {
	MaxFlags            int     `json:"maxFlags" mapstructure:"maxFlags"`
	MinFlags            int     `json:"minFlags" mapstructure:"minFlags"`
	MaxRedos            int     `json:"maxRedos" mapstructure:"maxRedos"`
	MainRadiusSearch    float64 `json:"mainRadiusSearch" mapstructure:"mainRadiusSearch"`
	MainStopRadius      float64 `json:"mainStopRadius" mapstructure:"mainStopRadius"`
	FlagRadiusSearch    float64 `json:"flagRadiusSearch" mapstructure:"flagRadiusSearch"`
	RadiusIncrement     float64 `json:"radiusIncrement" mapstructure:"radiusIncrement"`
	MaxRadiusIncrements int     `json:"maxRadiusIncrements" mapstructure:"maxRadiusIncrements"`
	SymmetryBuffer      float64 `json:"symmetryBuffer" mapstructure:"symmetryBuffer"`
	BackWeight          int     `json:"backWeight" mapstructure:"backWeight"`
	SideWeight          int     `json:"sideWeight" mapstructure:"sideWeight"`
	ForwardWeight       int     `json:"forwardWeight" mapstructure:"forwardWeight"`
	MapSize             float64 `json:"mapSize" mapstructure:"mapSize"`
	Seed                uint64  `json:"seed" mapstructure:"seed"` // 0 = random
}

// ZonesConfig selects where zone definitions come from
type ZonesConfig struct {
	Source  string `json:"source" mapstructure:"source"` // file | database
	File    string `json:"file" mapstructure:"file"`
	MapName string `json:"mapName" mapstructure:"mapName"`
}

// MemoryConfig holds in-memory/JSON storage backend settings
type MemoryConfig struct {
	OutputDir      string `json:"outputDir" mapstructure:"outputDir"`
	CompressOutput bool   `json:"compressOutput" mapstructure:"compressOutput"`
	Tag            string `json:"-" mapstructure:"-"`
}

// SQLiteConfig holds sqlite storage backend settings
type SQLiteConfig struct {
	Path         string        `json:"path" mapstructure:"path"` // empty = in-memory
	DumpInterval time.Duration `json:"dumpInterval" mapstructure:"dumpInterval"`
}

// StorageConfig selects and configures the rotation history backend
type StorageConfig struct {
	Type          string        `json:"type" mapstructure:"type"` // memory | sqlite | postgres | websocket
	FlushInterval time.Duration `json:"flushInterval" mapstructure:"flushInterval"`
	Memory        MemoryConfig  `json:"memory" mapstructure:"memory"`
	SQLite        SQLiteConfig  `json:"sqlite" mapstructure:"sqlite"`
}

// StreamingConfig holds the websocket relay settings
type StreamingConfig struct {
	URL    string `json:"url" mapstructure:"url"`
	Secret string `json:"secret" mapstructure:"secret"`
}

// DBConfig holds postgres connection settings
type DBConfig struct {
	Host     string `json:"host" mapstructure:"host"`
	Port     string `json:"port" mapstructure:"port"`
	Username string `json:"username" mapstructure:"username"`
	Password string `json:"password" mapstructure:"password"`
	Database string `json:"database" mapstructure:"database"`
}

// InfluxConfig holds InfluxDB settings
type InfluxConfig struct {
	Enabled  bool   `json:"enabled" mapstructure:"enabled"`
	Host     string `json:"host" mapstructure:"host"`
	Port     string `json:"port" mapstructure:"port"`
	Protocol string `json:"protocol" mapstructure:"protocol"`
	Token    string `json:"token" mapstructure:"token"`
	Org      string `json:"org" mapstructure:"org"`
	Bucket   string `json:"bucket" mapstructure:"bucket"`
}

// OTelConfig holds OpenTelemetry settings
type OTelConfig struct {
	Enabled      bool          `json:"enabled" mapstructure:"enabled"`
	ServiceName  string        `json:"serviceName" mapstructure:"serviceName"`
	BatchTimeout time.Duration `json:"batchTimeout" mapstructure:"batchTimeout"`
	Endpoint     string        `json:"endpoint" mapstructure:"endpoint"`
	Insecure     bool          `json:"insecure" mapstructure:"insecure"`

	// MetricInterval > 0 exports metrics to metrics.log at that period
	MetricInterval time.Duration `json:"metricInterval" mapstructure:"metricInterval"`
}

// MonitorConfig holds the status monitor settings
type MonitorConfig struct {
	Interval   time.Duration `json:"interval" mapstructure:"interval"`
	StatusFile string        `json:"statusFile" mapstructure:"statusFile"` // empty = no file
}

// APIConfig holds the stats web server settings
type APIConfig struct {
	ServerURL string `json:"serverUrl" mapstructure:"serverUrl"`
	APIKey    string `json:"apiKey" mapstructure:"apiKey"`
}

// SetDefaults registers every default value. Load calls it; tests may call it
// directly to work without a file.
func SetDefaults() {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./warfarelogs")
	viper.SetDefault("serverName", "warfare")
	viper.SetDefault("defaultTag", "Warfare")

	viper.SetDefault("teams", []map[string]any{
		{"id": 1, "faction": map[string]any{"id": "BLU", "name": "BLUFOR", "shortName": "BLU", "color": "004C99"}},
		{"id": 2, "faction": map[string]any{"id": "OPF", "name": "OPFOR", "shortName": "OPF", "color": "800000"}},
	})

	viper.SetDefault("flags.mode", "dualSided")
	viper.SetDefault("flags.pathingProvider", "ObjectivePathing")
	viper.SetDefault("flags.flagPoolProviders", []string{"AllFlags"})
	viper.SetDefault("flags.namedFlags", []string{})
	viper.SetDefault("flags.fixedOrder", []string{})
	viper.SetDefault("flags.tickInterval", "4s")
	viper.SetDefault("flags.maxPoints", 64)
	viper.SetDefault("flags.pointsPerTick", 12)
	viper.SetDefault("flags.requiredPlayerDifference", 2)
	viper.SetDefault("flags.invasion.attackingTeam", 1)
	viper.SetDefault("flags.invasion.defendingTeam", 2)

	viper.SetDefault("pathing.maxFlags", 8)
	viper.SetDefault("pathing.minFlags", 4)
	viper.SetDefault("pathing.maxRedos", 20)
	viper.SetDefault("pathing.mainRadiusSearch", 1200.0)
	viper.SetDefault("pathing.mainStopRadius", 1600.0)
	viper.SetDefault("pathing.flagRadiusSearch", 1000.0)
	viper.SetDefault("pathing.radiusIncrement", 100.0)
	viper.SetDefault("pathing.maxRadiusIncrements", 10)
	viper.SetDefault("pathing.symmetryBuffer", 600.0)
	viper.SetDefault("pathing.backWeight", 1)
	viper.SetDefault("pathing.sideWeight", 4)
	viper.SetDefault("pathing.forwardWeight", 12)
	viper.SetDefault("pathing.mapSize", 4096.0)
	viper.SetDefault("pathing.seed", 0)

	viper.SetDefault("zones.source", "file")
	viper.SetDefault("zones.file", "./zones.json")
	viper.SetDefault("zones.mapName", "")

	viper.SetDefault("storage.type", "memory")
	viper.SetDefault("storage.flushInterval", "5s")
	viper.SetDefault("storage.memory.outputDir", "./rotations")
	viper.SetDefault("storage.memory.compressOutput", true)
	viper.SetDefault("storage.sqlite.path", "")
	viper.SetDefault("storage.sqlite.dumpInterval", "1m")

	viper.SetDefault("streaming.url", "")
	viper.SetDefault("streaming.secret", "")

	viper.SetDefault("api.serverUrl", "http://localhost:5000")
	viper.SetDefault("api.apiKey", "")

	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", "5432")
	viper.SetDefault("db.username", "postgres")
	viper.SetDefault("db.password", "postgres")
	viper.SetDefault("db.database", "warfare")

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.token", "supersecrettoken")
	viper.SetDefault("influx.org", "warfare-metrics")
	viper.SetDefault("influx.bucket", "flags")

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "warfare")
	viper.SetDefault("otel.batchTimeout", "5s")
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", true)
	viper.SetDefault("otel.metricInterval", "0s")

	viper.SetDefault("monitor.interval", "10s")
	viper.SetDefault("monitor.statusFile", "status.json")
}

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file.
func Load(configDir string) error {
	SetDefaults()

	viper.SetConfigName(FileName)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	if err := viper.ReadInConfig(); err != nil {
		return fmt.Errorf("error reading config file: %w", err)
	}

	return nil
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// GetTeams returns the configured sides. Entries with id 0 are dropped since
// that id is reserved for NoTeam.
func GetTeams() (core.StaticTeams, error) {
	var teams []core.Team
	if err := viper.UnmarshalKey("teams", &teams); err != nil {
		return nil, fmt.Errorf("error reading teams: %w", err)
	}
	out := make(core.StaticTeams, 0, len(teams))
	for _, t := range teams {
		if t.IsValid() {
			out = append(out, t)
		}
	}
	if len(out) < 2 {
		return nil, fmt.Errorf("need at least two teams, got %d", len(out))
	}
	return out, nil
}

// GetFlagsConfig returns the flag rotation settings.
func GetFlagsConfig() FlagsConfig {
	return FlagsConfig{
		Mode:                     viper.GetString("flags.mode"),
		PathingProvider:          viper.GetString("flags.pathingProvider"),
		FlagPoolProviders:        viper.GetStringSlice("flags.flagPoolProviders"),
		NamedFlags:               viper.GetStringSlice("flags.namedFlags"),
		FixedOrder:               viper.GetStringSlice("flags.fixedOrder"),
		TickInterval:             viper.GetDuration("flags.tickInterval"),
		MaxPoints:                viper.GetInt("flags.maxPoints"),
		PointsPerTick:            viper.GetInt("flags.pointsPerTick"),
		RequiredPlayerDifference: viper.GetInt("flags.requiredPlayerDifference"),
		Invasion: InvasionConfig{
			AttackingTeam: uint8(viper.GetUint("flags.invasion.attackingTeam")),
			DefendingTeam: uint8(viper.GetUint("flags.invasion.defendingTeam")),
		},
	}
}

// GetGraphWalkConfig returns the path builder constants.
func GetGraphWalkConfig() GraphWalkConfig {
	return GraphWalkConfig{
		MaxFlags:            viper.GetInt("pathing.maxFlags"),
		MinFlags:            viper.GetInt("pathing.minFlags"),
		MaxRedos:            viper.GetInt("pathing.maxRedos"),
		MainRadiusSearch:    viper.GetFloat64("pathing.mainRadiusSearch"),
		MainStopRadius:      viper.GetFloat64("pathing.mainStopRadius"),
		FlagRadiusSearch:    viper.GetFloat64("pathing.flagRadiusSearch"),
		RadiusIncrement:     viper.GetFloat64("pathing.radiusIncrement"),
		MaxRadiusIncrements: viper.GetInt("pathing.maxRadiusIncrements"),
		SymmetryBuffer:      viper.GetFloat64("pathing.symmetryBuffer"),
		BackWeight:          viper.GetInt("pathing.backWeight"),
		SideWeight:          viper.GetInt("pathing.sideWeight"),
		ForwardWeight:       viper.GetInt("pathing.forwardWeight"),
		MapSize:             viper.GetFloat64("pathing.mapSize"),
		Seed:                viper.GetUint64("pathing.seed"),
	}
}

// DefaultGraphWalkConfig returns the built-in path builder constants.
func DefaultGraphWalkConfig() GraphWalkConfig {
	return GraphWalkConfig{
		MaxFlags:            8,
		MinFlags:            4,
		MaxRedos:            20,
		MainRadiusSearch:    1200,
		MainStopRadius:      1600,
		FlagRadiusSearch:    1000,
		RadiusIncrement:     100,
		MaxRadiusIncrements: 10,
		SymmetryBuffer:      600,
		BackWeight:          1,
		SideWeight:          4,
		ForwardWeight:       12,
		MapSize:             4096,
	}
}

// GetZonesConfig returns the zone source settings.
func GetZonesConfig() ZonesConfig {
	return ZonesConfig{
		Source:  viper.GetString("zones.source"),
		File:    viper.GetString("zones.file"),
		MapName: viper.GetString("zones.mapName"),
	}
}

// GetStorageConfig returns the storage backend settings.
func GetStorageConfig() StorageConfig {
	return StorageConfig{
		Type:          viper.GetString("storage.type"),
		FlushInterval: viper.GetDuration("storage.flushInterval"),
		Memory: MemoryConfig{
			OutputDir:      viper.GetString("storage.memory.outputDir"),
			CompressOutput: viper.GetBool("storage.memory.compressOutput"),
			Tag:            viper.GetString("defaultTag"),
		},
		SQLite: SQLiteConfig{
			Path:         viper.GetString("storage.sqlite.path"),
			DumpInterval: viper.GetDuration("storage.sqlite.dumpInterval"),
		},
	}
}

// GetStreamingConfig returns the websocket relay settings.
func GetStreamingConfig() StreamingConfig {
	return StreamingConfig{
		URL:    viper.GetString("streaming.url"),
		Secret: viper.GetString("streaming.secret"),
	}
}

// GetDBConfig returns the postgres connection settings.
func GetDBConfig() DBConfig {
	return DBConfig{
		Host:     viper.GetString("db.host"),
		Port:     viper.GetString("db.port"),
		Username: viper.GetString("db.username"),
		Password: viper.GetString("db.password"),
		Database: viper.GetString("db.database"),
	}
}

// GetInfluxConfig returns the InfluxDB settings.
func GetInfluxConfig() InfluxConfig {
	return InfluxConfig{
		Enabled:  viper.GetBool("influx.enabled"),
		Host:     viper.GetString("influx.host"),
		Port:     viper.GetString("influx.port"),
		Protocol: viper.GetString("influx.protocol"),
		Token:    viper.GetString("influx.token"),
		Org:      viper.GetString("influx.org"),
		Bucket:   viper.GetString("influx.bucket"),
	}
}

// GetOTelConfig returns the OpenTelemetry settings.
func GetOTelConfig() OTelConfig {
	return OTelConfig{
		Enabled:      viper.GetBool("otel.enabled"),
		ServiceName:  viper.GetString("otel.serviceName"),
		BatchTimeout: viper.GetDuration("otel.batchTimeout"),
		Endpoint:     viper.GetString("otel.endpoint"),
		Insecure:     viper.GetBool("otel.insecure"),

		MetricInterval: viper.GetDuration("otel.metricInterval"),
	}
}

// GetMonitorConfig returns the status monitor settings.
func GetMonitorConfig() MonitorConfig {
	return MonitorConfig{
		Interval:   viper.GetDuration("monitor.interval"),
		StatusFile: viper.GetString("monitor.statusFile"),
	}
}

// GetAPIConfig returns the stats server settings.
func GetAPIConfig() APIConfig {
	return APIConfig{
		ServerURL: viper.GetString("api.serverUrl"),
		APIKey:    viper.GetString("api.apiKey"),
	}
}
