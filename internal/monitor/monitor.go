package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/warfare-dev/extension/internal/flags"
	"github.com/warfare-dev/extension/internal/gameloop"
	"github.com/warfare-dev/extension/internal/influx"
	"github.com/warfare-dev/extension/internal/logging"
	"github.com/warfare-dev/extension/internal/mission"
)

const defaultInterval = 10 * time.Second

// StatusSource is read on the game loop.
type StatusSource interface {
	Status() flags.Status
}

// PlayerCounter reports connected players per team.
type PlayerCounter interface {
	Len() int
	CountByTeam() map[uint8]int
}

// Dependencies holds all dependencies for the monitor service
type Dependencies struct {
	LogManager     *logging.SlogManager
	Loop           *gameloop.Loop
	Flags          StatusSource
	Players        PlayerCounter
	MissionContext *mission.Context
	Influx         *influx.Manager // optional
	StatusFile     string          // optional
	Interval       time.Duration
}

// Snapshot is what the monitor reports each interval.
type Snapshot struct {
	Time          time.Time     `json:"time"`
	ServerName    string        `json:"serverName"`
	MapName       string        `json:"mapName"`
	Players       int           `json:"players"`
	PlayersByTeam map[uint8]int `json:"playersByTeam"`
	Rotation      flags.Status  `json:"rotation"`
}

// Service manages status monitoring
type Service struct {
	deps      Dependencies
	isRunning bool
	mu        sync.RWMutex
	stopChan  chan struct{}
	done      chan struct{}
}

// NewService creates a new monitor service
func NewService(deps Dependencies) *Service {
	if deps.Interval <= 0 {
		deps.Interval = defaultInterval
	}
	return &Service{
		deps:     deps,
		stopChan: make(chan struct{}),
	}
}

// IsRunning returns whether the status monitor is running
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Snapshot reads the rotation status on the game loop.
func (s *Service) Snapshot(ctx context.Context) (Snapshot, error) {
	var status flags.Status
	if err := s.deps.Loop.Invoke(ctx, func() { status = s.deps.Flags.Status() }); err != nil {
		return Snapshot{}, err
	}

	snap := Snapshot{
		Time:     time.Now(),
		Rotation: status,
	}
	if s.deps.MissionContext != nil {
		snap.ServerName = s.deps.MissionContext.ServerName()
		snap.MapName = s.deps.MissionContext.MapName()
	}
	if s.deps.Players != nil {
		snap.Players = s.deps.Players.Len()
		snap.PlayersByTeam = s.deps.Players.CountByTeam()
	}
	return snap, nil
}

// Point converts a snapshot into an influx point for the server bucket.
func (snap Snapshot) Point() *influxdb2_write.Point {
	owned := 0
	contested := 0
	for _, f := range snap.Rotation.Flags {
		if f.Owner != 0 {
			owned++
		}
		if f.Contested {
			contested++
		}
	}
	p := influxdb2_write.NewPoint(
		"rotation_status",
		map[string]string{
			"server": snap.ServerName,
			"map":    snap.MapName,
			"state":  snap.Rotation.State,
		},
		map[string]any{
			"players":   snap.Players,
			"flags":     len(snap.Rotation.Flags),
			"owned":     owned,
			"contested": contested,
		},
		snap.Time,
	)
	for team, n := range snap.PlayersByTeam {
		p.AddField(fmt.Sprintf("players_team_%d", team), n)
	}
	return p
}

func (s *Service) report(ctx context.Context, statusFile *os.File) {
	logger := s.deps.LogManager.Logger()

	ctx, cancel := context.WithTimeout(ctx, s.deps.Interval)
	defer cancel()

	snap, err := s.Snapshot(ctx)
	if err != nil {
		logger.Warn("Status snapshot failed", "error", err)
		return
	}
	logger.Debug("Rotation status",
		"state", snap.Rotation.State,
		"flags", len(snap.Rotation.Flags),
		"players", snap.Players)

	if statusFile != nil {
		data, err := json.MarshalIndent(snap, "", "  ")
		if err != nil {
			data = []byte(fmt.Sprintf(`{"error": "%s"}`, err))
		}
		_ = statusFile.Truncate(0)
		_, _ = statusFile.Seek(0, 0)
		_, _ = statusFile.Write(append(data, '\n'))
	}

	if s.deps.Influx != nil && snap.Rotation.RotationID != "" {
		if err := s.deps.Influx.WritePoint(ctx, influx.ServerBucket, snap.Point()); err != nil {
			logger.Warn("Error writing status point", "error", err)
		}
	}
}

// Start starts the status monitor goroutine
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}

	var statusFile *os.File
	if s.deps.StatusFile != "" {
		f, err := os.Create(s.deps.StatusFile)
		if err != nil {
			s.mu.Unlock()
			return fmt.Errorf("error creating status file: %w", err)
		}
		statusFile = f
	}

	s.isRunning = true
	s.stopChan = make(chan struct{})
	s.done = make(chan struct{})
	stop, done := s.stopChan, s.done
	s.mu.Unlock()

	go func() {
		defer close(done)
		defer func() {
			s.mu.Lock()
			s.isRunning = false
			s.mu.Unlock()
		}()
		if statusFile != nil {
			defer statusFile.Close()
		}

		s.deps.LogManager.Logger().Debug("Starting status monitor", "interval", s.deps.Interval)

		ticker := time.NewTicker(s.deps.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ctx.Done():
				return
			case <-s.deps.Loop.Done():
				return
			case <-ticker.C:
				s.report(ctx, statusFile)
			}
		}
	}()

	return nil
}

// Stop stops the status monitor and waits for it to exit.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	close(s.stopChan)
	done := s.done
	s.isRunning = false
	s.mu.Unlock()
	<-done
}
