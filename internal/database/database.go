package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/rs/zerolog"
	"github.com/warfare-dev/extension/internal/config"
	"github.com/warfare-dev/extension/internal/model"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const memoryDSN = "file::memory:?cache=shared"

var sqlitePragmas = []string{
	"PRAGMA user_version = 1;",
	"PRAGMA journal_mode = MEMORY;",
	"PRAGMA synchronous = OFF;",
	"PRAGMA cache_size = -32000;",
	"PRAGMA temp_store = MEMORY;",
}

// Manager handles database connections and operations.
type Manager struct {
	DB              *gorm.DB
	SqlDB           *sql.DB
	IsValid         bool
	ShouldSaveLocal bool
	SqliteFilePath  string
	Logger          zerolog.Logger
}

// NewManager creates a new database manager.
func NewManager(log zerolog.Logger) *Manager {
	return &Manager{Logger: log}
}

// Connect establishes a database connection, falling back to an in-memory
// SQLite database if Postgres is unreachable.
func (m *Manager) Connect(cfg config.DBConfig) error {
	db, err := OpenPostgres(cfg)
	if err == nil {
		m.SqlDB, err = db.DB()
		if err == nil {
			err = m.SqlDB.Ping()
		}
	}

	if err != nil {
		m.Logger.Error().Err(err).Msg("Failed to connect to Postgres DB, trying SQLite")
		m.ShouldSaveLocal = true
		db, err = OpenSqlite("")
		if err != nil {
			m.IsValid = false
			return fmt.Errorf("failed to get local SQLite DB: %w", err)
		}
		if m.SqlDB, err = db.DB(); err != nil {
			m.IsValid = false
			return fmt.Errorf("failed to access sql interface: %w", err)
		}
		m.Logger.Info().Msg("Using local SQLite DB in memory with dump on close")
	} else {
		m.Logger.Info().Str("host", cfg.Host).Str("database", cfg.Database).Msg("Connected to database")
		m.SqlDB.SetMaxOpenConns(10)
	}

	m.DB = db
	m.IsValid = true
	return nil
}

// Setup migrates tables and records this server if it is not yet known.
func (m *Manager) Setup(serverName string) error {
	if err := Migrate(m.DB); err != nil {
		m.IsValid = false
		return err
	}

	var count int64
	if err := m.DB.Model(&model.ServerInfo{}).Where("server_name = ?", serverName).Count(&count).Error; err != nil {
		m.IsValid = false
		return fmt.Errorf("failed to query server_infos: %w", err)
	}
	if count == 0 {
		if err := m.DB.Create(&model.ServerInfo{ServerName: serverName, Description: "Warfare"}).Error; err != nil {
			m.IsValid = false
			return fmt.Errorf("failed to create server_infos entry: %w", err)
		}
	}

	m.Logger.Info().Msg("Database setup complete")
	return nil
}

// DumpMemoryToDisk vacuums the in-memory database to SqliteFilePath.
func (m *Manager) DumpMemoryToDisk() error {
	start := time.Now()
	if err := DumpMemoryDBToDisk(m.DB, m.SqliteFilePath); err != nil {
		return err
	}
	m.Logger.Debug().Dur("duration", time.Since(start)).Msg("Dumped memory DB to disk")
	return nil
}

// Close dumps a local database if needed and closes the connection.
func (m *Manager) Close() error {
	if m.SqlDB == nil {
		return nil
	}
	if m.ShouldSaveLocal && m.SqliteFilePath != "" {
		if err := m.DumpMemoryToDisk(); err != nil {
			m.Logger.Error().Err(err).Msg("Failed to dump memory DB")
		}
	}
	return m.SqlDB.Close()
}

// OpenPostgres returns a connection to the Postgres database.
func OpenPostgres(cfg config.DBConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf(`host=%s port=%s user=%s password=%s dbname=%s sslmode=disable`,
		cfg.Host, cfg.Port, cfg.Username, cfg.Password, cfg.Database,
	)

	return gorm.Open(postgres.New(postgres.Config{
		DSN:                  dsn,
		PreferSimpleProtocol: true,
	}), &gorm.Config{
		SkipDefaultTransaction: true,
		CreateBatchSize:        1000,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
}

// OpenSqlite returns a connection to a SQLite database.
// If path is empty, uses a shared in-memory database.
func OpenSqlite(path string) (*gorm.DB, error) {
	dsn := path
	if dsn == "" {
		dsn = memoryDSN
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		PrepareStmt:            true,
		SkipDefaultTransaction: true,
		CreateBatchSize:        500,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	for _, pragma := range sqlitePragmas {
		if err := db.Exec(pragma).Error; err != nil {
			return nil, fmt.Errorf("error setting PRAGMA: %w", err)
		}
	}
	return db, nil
}

// Migrate creates or updates every table.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(model.DatabaseModels...); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

// DumpMemoryDBToDisk vacuums the database to a disk file, replacing any
// existing file.
func DumpMemoryDBToDisk(db *gorm.DB, sqliteFilePath string) error {
	if sqliteFilePath == "" {
		return fmt.Errorf("sqlite file path not set")
	}

	if _, err := os.Stat(sqliteFilePath); err == nil {
		if err := os.Remove(sqliteFilePath); err != nil {
			return fmt.Errorf("error removing existing DB file: %w", err)
		}
	}

	if err := db.Exec("VACUUM INTO 'file:" + sqliteFilePath + "';").Error; err != nil {
		return fmt.Errorf("error dumping memory DB to disk: %w", err)
	}
	return nil
}

// GetBackupDBPaths returns paths to all .db files in dir.
func GetBackupDBPaths(dir string) ([]string, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var dbPaths []string
	for _, file := range files {
		if !file.IsDir() && strings.HasSuffix(file.Name(), ".db") {
			dbPaths = append(dbPaths, filepath.Join(dir, file.Name()))
		}
	}
	return dbPaths, nil
}
