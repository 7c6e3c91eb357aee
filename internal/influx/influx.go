package influx

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	influxdb2_api "github.com/influxdata/influxdb-client-go/v2/api"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/influxdata/influxdb-client-go/v2/domain"
	"github.com/rs/zerolog"
	"github.com/warfare-dev/extension/internal/config"
	"github.com/warfare-dev/extension/internal/util"
	"github.com/warfare-dev/extension/pkg/core"
)

// ServerBucket receives host-submitted metrics that name no other bucket.
const ServerBucket = "server_performance"

// ErrDisabled is returned by Connect when influx output is switched off.
var ErrDisabled = errors.New("influx.enabled is false")

// Manager handles InfluxDB connections and writes.
type Manager struct {
	Client       influxdb2.Client
	Writers      map[string]influxdb2_api.WriteAPI
	BackupWriter *gzip.Writer
	IsValid      bool
	BucketNames  []string
	Logger       zerolog.Logger
	BackupPath   string

	cfg        config.InfluxConfig
	backupFile *os.File
	mu         sync.Mutex
}

// NewManager creates a new InfluxDB manager. Flag series go to cfg.Bucket.
func NewManager(log zerolog.Logger, cfg config.InfluxConfig, backupPath string) *Manager {
	return &Manager{
		Writers:     make(map[string]influxdb2_api.WriteAPI),
		BucketNames: []string{cfg.Bucket, ServerBucket},
		Logger:      log,
		BackupPath:  backupPath,
		cfg:         cfg,
	}
}

// Connect establishes a connection to InfluxDB, falling back to a gzipped
// line protocol backup file when the server is unreachable.
func (m *Manager) Connect(ctx context.Context) error {
	if !m.cfg.Enabled {
		return ErrDisabled
	}

	m.Client = influxdb2.NewClientWithOptions(
		fmt.Sprintf("%s://%s:%s", m.cfg.Protocol, m.cfg.Host, m.cfg.Port),
		m.cfg.Token,
		influxdb2.DefaultOptions().
			SetBatchSize(500).
			SetFlushInterval(1000),
	)

	running, err := m.Client.Ping(ctx)
	if err != nil || !running {
		m.IsValid = false
		m.Logger.Warn().Err(err).Str("backupPath", m.BackupPath).
			Msg("InfluxDB unreachable, writing to backup file")
		return m.openBackup()
	}

	if err := m.setupOrganizationAndBuckets(ctx); err != nil {
		return err
	}
	m.CreateWriters()
	m.IsValid = true
	m.Logger.Info().Msg("InfluxDB client initialized")
	return nil
}

func (m *Manager) openBackup() error {
	if m.BackupWriter != nil {
		return nil
	}
	file, err := os.OpenFile(m.BackupPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("error creating backup file: %w", err)
	}
	m.backupFile = file
	m.BackupWriter = gzip.NewWriter(file)
	return nil
}

func (m *Manager) setupOrganizationAndBuckets(ctx context.Context) error {
	orgName := m.cfg.Org

	if _, err := m.Client.OrganizationsAPI().FindOrganizationByName(ctx, orgName); err != nil {
		m.Logger.Info().Str("org", orgName).Msg("Organization not found, creating")
		if _, err = m.Client.OrganizationsAPI().CreateOrganizationWithName(ctx, orgName); err != nil {
			m.Logger.Error().Err(err).Str("org", orgName).Msg("Error creating organization")
			return err
		}
	}

	influxOrg, err := m.Client.OrganizationsAPI().FindOrganizationByName(ctx, orgName)
	if err != nil {
		m.Logger.Error().Err(err).Str("org", orgName).Msg("Error getting organization")
		return err
	}

	// ensure buckets exist with 90 day retention
	for _, bucket := range m.BucketNames {
		if _, err = m.Client.BucketsAPI().FindBucketByName(ctx, bucket); err == nil {
			continue
		}
		m.Logger.Info().Str("bucket", bucket).Msg("Bucket not found, creating")

		rule := domain.RetentionRuleTypeExpire
		_, err = m.Client.BucketsAPI().CreateBucketWithName(ctx, influxOrg, bucket, domain.RetentionRule{
			Type:         &rule,
			EverySeconds: 60 * 60 * 24 * 90,
		})
		if err != nil {
			m.Logger.Error().Err(err).Str("bucket", bucket).Msg("Error creating bucket")
			return err
		}
	}
	return nil
}

// CreateWriters creates write APIs for all configured buckets.
func (m *Manager) CreateWriters() {
	for _, bucket := range m.BucketNames {
		w := m.Client.WriteAPI(m.cfg.Org, bucket)
		m.Writers[bucket] = w

		go func(bucketName string, errorsCh <-chan error) {
			for writeErr := range errorsCh {
				m.Logger.Error().Err(writeErr).Str("bucket", bucketName).
					Msg("Error sending data to InfluxDB")
			}
		}(bucket, w.Errors())
	}
	m.Logger.Debug().Strs("buckets", m.BucketNames).Msg("InfluxDB writers initialized")
}

// FlagBucket is where capture and points series are written.
func (m *Manager) FlagBucket() string {
	return m.cfg.Bucket
}

// WritePoint writes a point to InfluxDB or the backup file.
func (m *Manager) WritePoint(ctx context.Context, bucket string, point *influxdb2_write.Point) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.IsValid {
		w, ok := m.Writers[bucket]
		if !ok {
			return fmt.Errorf("influxDB bucket '%s' not registered", bucket)
		}
		w.WritePoint(point)
		return nil
	}

	if m.BackupWriter == nil {
		return fmt.Errorf("influxDB client not initialized and backup writer not available")
	}
	lineProtocol := influxdb2_write.PointToLineProtocol(point, time.Nanosecond)
	if _, err := m.BackupWriter.Write([]byte(lineProtocol)); err != nil {
		return fmt.Errorf("error writing to InfluxDB backup file: %w", err)
	}
	return nil
}

// Close flushes pending writes and releases the client and backup file.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, w := range m.Writers {
		w.Flush()
	}
	if m.Client != nil {
		m.Client.Close()
	}

	var errs []error
	if m.BackupWriter != nil {
		errs = append(errs, m.BackupWriter.Close())
		m.BackupWriter = nil
	}
	if m.backupFile != nil {
		errs = append(errs, m.backupFile.Close())
		m.backupFile = nil
	}
	return errors.Join(errs...)
}

// CapturePoint describes a flag changing hands.
func CapturePoint(rotationID, mapName string, c core.CaptureRecord) *influxdb2_write.Point {
	kind := "captured"
	team := c.Team
	if c.Neutralized {
		kind = "neutralized"
		team = c.Previous
	}
	return influxdb2_write.NewPoint(
		"flag_capture",
		map[string]string{
			"rotation": rotationID,
			"map":      mapName,
			"flag":     c.Flag,
			"kind":     kind,
		},
		map[string]any{
			"team":     int(team),
			"previous": int(c.Previous),
			"players":  len(c.Players),
			"index":    c.Index,
		},
		c.Time,
	)
}

// PointsPoint describes one points change on a flag.
func PointsPoint(rotationID, mapName string, p core.PointsRecord) *influxdb2_write.Point {
	return influxdb2_write.NewPoint(
		"flag_points",
		map[string]string{
			"rotation": rotationID,
			"map":      mapName,
			"flag":     p.Flag,
		},
		map[string]any{
			"leader": int(p.Leader),
			"change": p.Change,
			"points": p.Points,
		},
		p.Time,
	)
}

// ProcessMetricData parses a metric sent by the host and returns its bucket
// and point.
//
// Layout: 0 = bucket name, 1 = measurement name, then any number of
// "tag::name::value" and "field::type::name::value" arguments.
func ProcessMetricData(data []string) (bucket string, point *influxdb2_write.Point, err error) {
	if len(data) < 2 {
		return "", nil, fmt.Errorf("metric needs a bucket and a measurement, got %d args", len(data))
	}
	data = util.CleanArgs(data)

	bucket = data[0]
	if bucket == "" {
		bucket = ServerBucket
	}
	point = influxdb2_write.NewPointWithMeasurement(data[1])

	for _, arg := range data[2:] {
		parts := strings.Split(arg, "::")
		switch {
		case parts[0] == "tag" && len(parts) >= 3:
			point.AddTag(parts[1], parts[2])
		case parts[0] == "field" && len(parts) >= 4:
			fieldType, fieldName, fieldValue := parts[1], parts[2], parts[3]
			switch fieldType {
			case "string":
				point.AddField(fieldName, fieldValue)
			case "int":
				intVal, err := strconv.Atoi(fieldValue)
				if err != nil {
					return "", nil, fmt.Errorf("error converting field value '%s' to int: %w", fieldValue, err)
				}
				point.AddField(fieldName, intVal)
			case "float":
				floatVal, err := strconv.ParseFloat(fieldValue, 64)
				if err != nil {
					return "", nil, fmt.Errorf("error converting field value '%s' to float: %w", fieldValue, err)
				}
				point.AddField(fieldName, floatVal)
			}
		}
	}
	return bucket, point, nil
}
