package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/warfare-dev/extension/internal/config"
	"github.com/warfare-dev/extension/internal/database"
	"github.com/warfare-dev/extension/internal/handlers"
	"github.com/warfare-dev/extension/internal/logging"
	"github.com/warfare-dev/extension/internal/mission"
	"github.com/warfare-dev/extension/internal/storage"
	gormstorage "github.com/warfare-dev/extension/internal/storage/gorm"
	"github.com/warfare-dev/extension/internal/storage/memory"
	wsstorage "github.com/warfare-dev/extension/internal/storage/websocket"
	"github.com/warfare-dev/extension/internal/zones"
	"gorm.io/gorm"
)

// storageEnv is what the backend factory needs from the running process.
type storageEnv struct {
	LogManager   *logging.SlogManager
	Zerolog      zerolog.Logger
	DataDir      string
	SessionStart time.Time
	ServerName   string
	Streaming    config.StreamingConfig
	DB           config.DBConfig
	APIServerURL string

	dbManager *database.Manager
}

// dumpPath names the snapshot file of an in-memory database for this session.
func dumpPath(dir string, sessionStart time.Time) string {
	return filepath.Join(dir, fmt.Sprintf("%s_%s.db", ExtensionName, sessionStart.Format("20060102_150405")))
}

// database connects to Postgres once, falling back to in-memory SQLite that is
// dumped next to the logs on close.
func (env *storageEnv) database() (*gorm.DB, error) {
	if env.dbManager != nil {
		return env.dbManager.DB, nil
	}
	m := database.NewManager(env.Zerolog)
	m.SqliteFilePath = dumpPath(env.DataDir, env.SessionStart)
	if err := m.Connect(env.DB); err != nil {
		return nil, err
	}
	if err := m.Setup(env.ServerName); err != nil {
		_ = m.Close()
		return nil, err
	}
	env.dbManager = m
	return m.DB, nil
}

// Close releases the shared database connection, if one was opened.
func (env *storageEnv) Close() error {
	if env.dbManager == nil {
		return nil
	}
	return env.dbManager.Close()
}

func createStorageBackend(cfg config.StorageConfig, env *storageEnv) (storage.Backend, error) {
	logger := env.LogManager.Logger()

	switch cfg.Type {
	case "postgres":
		db, err := env.database()
		if err != nil {
			return nil, fmt.Errorf("failed to open history database: %w", err)
		}
		logger.Info("Postgres storage backend initialized")
		return gormstorage.New(gormstorage.Dependencies{
			DB:            db,
			LogManager:    env.LogManager,
			FlushInterval: cfg.FlushInterval,
		}), nil

	case "sqlite":
		db, err := database.OpenSqlite(cfg.SQLite.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to open SQLite database: %w", err)
		}
		deps := gormstorage.Dependencies{
			DB:            db,
			LogManager:    env.LogManager,
			FlushInterval: cfg.FlushInterval,
		}
		if cfg.SQLite.Path == "" {
			deps.DumpPath = dumpPath(env.DataDir, env.SessionStart)
			deps.DumpInterval = cfg.SQLite.DumpInterval
		}
		logger.Info("SQLite storage backend initialized", "path", cfg.SQLite.Path, "dump", deps.DumpPath)
		return gormstorage.New(deps), nil

	case "websocket":
		url := env.Streaming.URL
		if url == "" {
			url = httpToWS(env.APIServerURL) + "/api"
		}
		logger.Info("WebSocket storage backend initialized", "url", url)
		return wsstorage.New(wsstorage.Config{
			URL:    url,
			Secret: env.Streaming.Secret,
			Logger: logger,
		}), nil

	case "memory", "":
		logger.Info("Memory storage backend initialized", "dir", cfg.Memory.OutputDir)
		return memory.New(cfg.Memory), nil

	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Type)
	}
}

// zoneSource picks the provider for the configured zone source. The saver is
// nil unless zones live in the database.
func zoneSource(cfg config.ZonesConfig, mc *mission.Context, env *storageEnv) (zones.Provider, handlers.ZoneSaver, error) {
	switch cfg.Source {
	case "database":
		db, err := env.database()
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open zone database: %w", err)
		}
		return zones.DBProvider{DB: db, MapName: mc.MapName()}, mapZoneSaver{db: db, mission: mc}, nil
	case "file", "":
		return zones.FileProvider{Path: cfg.File}, nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown zone source %q", cfg.Source)
	}
}

// mapZoneSaver stores zones under whatever map is loaded at save time.
type mapZoneSaver struct {
	db      *gorm.DB
	mission *mission.Context
}

func (s mapZoneSaver) Save(ctx context.Context, zs []zones.Zone) error {
	return zones.DBProvider{DB: s.db, MapName: s.mission.MapName()}.Save(ctx, zs)
}

// httpToWS converts an HTTP(S) URL to a WebSocket URL.
func httpToWS(httpURL string) string {
	s := strings.TrimRight(httpURL, "/")
	s = strings.Replace(s, "https://", "wss://", 1)
	s = strings.Replace(s, "http://", "ws://", 1)
	return s
}
