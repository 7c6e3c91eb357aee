package handlers

import (
	"context"
	"errors"
	"fmt"
	"time"

	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/warfare-dev/extension/internal/cache"
	"github.com/warfare-dev/extension/internal/dispatcher"
	"github.com/warfare-dev/extension/internal/flags"
	"github.com/warfare-dev/extension/internal/influx"
	"github.com/warfare-dev/extension/internal/logging"
	"github.com/warfare-dev/extension/internal/mission"
	"github.com/warfare-dev/extension/internal/parser"
	"github.com/warfare-dev/extension/internal/util"
	"github.com/warfare-dev/extension/internal/zones"
	"github.com/warfare-dev/extension/pkg/core"
)

const defaultTimeout = 5 * time.Second

// ErrRotationActive is returned when zones are replaced during a rotation.
var ErrRotationActive = errors.New("zones cannot be replaced while a rotation is running")

// Loop runs work on the simulation goroutine. gameloop.Loop implements it.
type Loop interface {
	Invoke(ctx context.Context, fn func()) error
}

// FlagService is the part of flags.Service the host commands drive.
type FlagService interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	State() flags.State
	UpdatePlayer(p core.Player)
	RemovePlayer(id core.PlayerID)
	QuickCapture(name string, team core.Team) error
	EnumerateFlagListEntries(viewer core.Team) []flags.FlagListEntry
	Status() flags.Status
}

// ZoneSaver persists zones pushed by the host. zones.DBProvider implements it.
type ZoneSaver interface {
	Save(ctx context.Context, zs []zones.Zone) error
}

// PointWriter receives host metrics. *influx.Manager implements it.
type PointWriter interface {
	WritePoint(ctx context.Context, bucket string, point *influxdb2_write.Point) error
}

// Dependencies holds all dependencies needed by handlers. ZoneSaver and
// Metrics are optional.
type Dependencies struct {
	Loop       Loop
	Flags      FlagService
	Parser     *parser.Parser
	Players    *cache.PlayerCache
	Aliases    *cache.FlagAliases
	Zones      *zones.Store
	ZoneSaver  ZoneSaver
	Metrics    PointWriter
	Mission    *mission.Context
	LogManager *logging.SlogManager
	Timeout    time.Duration
}

// Service turns host commands into flag service calls
type Service struct {
	deps Dependencies
}

// NewService creates a new handler service
func NewService(deps Dependencies) *Service {
	if deps.Timeout <= 0 {
		deps.Timeout = defaultTimeout
	}
	return &Service{deps: deps}
}

// Register wires every host command into d. Player updates stay synchronous
// so a leave is never overtaken by an older move.
func (s *Service) Register(d *dispatcher.Dispatcher) {
	d.Register(":PLAYER:MOVED:", s.HandlePlayerMoved)
	d.Register(":PLAYER:LEFT:", s.HandlePlayerLeft)
	d.Register(":FLAGS:START:", s.HandleFlagsStart, dispatcher.Logged())
	d.Register(":FLAGS:STOP:", s.HandleFlagsStop, dispatcher.Logged())
	d.Register(":FLAGS:LIST:", s.HandleFlagsList)
	d.Register(":FLAGS:STATUS:", s.HandleFlagsStatus)
	d.Register(":FLAG:CAPTURE:", s.HandleFlagCapture, dispatcher.Logged())
	d.Register(":ZONES:LOAD:", s.HandleZonesLoad, dispatcher.Logged())
	d.Register(":MAP:", s.HandleMap)
	d.Register(":LOG:", s.HandleLog)
	d.Register(":METRIC:", s.HandleMetric, dispatcher.Buffered(1024))
}

func (s *Service) invoke(fn func()) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.deps.Timeout)
	defer cancel()
	return s.deps.Loop.Invoke(ctx, fn)
}

// HandlePlayerMoved caches the player's snapshot and feeds it to the flags.
func (s *Service) HandlePlayerMoved(e dispatcher.Event) (any, error) {
	p, err := s.deps.Parser.ParsePlayer(e.Args)
	if err != nil {
		return nil, err
	}
	s.deps.Players.Set(p)
	if s.deps.Flags.State() != flags.StateActive {
		return "ok", nil
	}
	if err := s.invoke(func() { s.deps.Flags.UpdatePlayer(p) }); err != nil {
		return nil, fmt.Errorf("update player %d: %w", p.ID, err)
	}
	return "ok", nil
}

// HandlePlayerLeft forgets a disconnected player.
func (s *Service) HandlePlayerLeft(e dispatcher.Event) (any, error) {
	if len(e.Args) < 1 {
		return nil, fmt.Errorf("player left: %w", parser.ErrArgCount)
	}
	id, err := s.deps.Parser.ParsePlayerID(util.CleanArgs(e.Args)[0])
	if err != nil {
		return nil, err
	}
	s.deps.Players.Remove(id)
	if s.deps.Flags.State() != flags.StateActive {
		return "ok", nil
	}
	if err := s.invoke(func() { s.deps.Flags.RemovePlayer(id) }); err != nil {
		return nil, fmt.Errorf("remove player %d: %w", id, err)
	}
	return "ok", nil
}

// HandleFlagsStart starts a rotation and seeds it with every known player.
func (s *Service) HandleFlagsStart(e dispatcher.Event) (any, error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.deps.Timeout)
	defer cancel()

	if err := s.deps.Flags.Start(ctx); err != nil {
		return nil, err
	}

	players := s.deps.Players.All()
	err := s.deps.Loop.Invoke(ctx, func() {
		for _, p := range players {
			s.deps.Flags.UpdatePlayer(p)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("seeding players: %w", err)
	}
	return s.deps.Flags.State().String(), nil
}

// HandleFlagsStop tears the rotation down.
func (s *Service) HandleFlagsStop(e dispatcher.Event) (any, error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.deps.Timeout)
	defer cancel()

	if err := s.deps.Flags.Stop(ctx); err != nil {
		return nil, err
	}
	return s.deps.Flags.State().String(), nil
}

// HandleFlagsList returns the flag list as seen by the optional viewer team.
func (s *Service) HandleFlagsList(e dispatcher.Event) (any, error) {
	viewer, err := s.deps.Parser.ParseViewer(e.Args)
	if err != nil {
		return nil, err
	}
	var entries []flags.FlagListEntry
	if err := s.invoke(func() { entries = s.deps.Flags.EnumerateFlagListEntries(viewer) }); err != nil {
		return nil, err
	}
	return entries, nil
}

// HandleFlagsStatus returns the rotation summary.
func (s *Service) HandleFlagsStatus(e dispatcher.Event) (any, error) {
	var st flags.Status
	if err := s.invoke(func() { st = s.deps.Flags.Status() }); err != nil {
		return nil, err
	}
	return st, nil
}

// HandleFlagCapture awards a flag to a team. The flag may be named by its
// full or short name.
func (s *Service) HandleFlagCapture(e dispatcher.Event) (any, error) {
	name, team, err := s.deps.Parser.ParseQuickCapture(e.Args)
	if err != nil {
		return nil, err
	}
	if full, ok := s.deps.Aliases.Resolve(name); ok {
		name = full
	}

	var captureErr error
	if err := s.invoke(func() { captureErr = s.deps.Flags.QuickCapture(name, team) }); err != nil {
		return nil, err
	}
	if captureErr != nil {
		return nil, captureErr
	}
	return "ok", nil
}

// HandleZonesLoad replaces the zone set with definitions sent by the host.
func (s *Service) HandleZonesLoad(e dispatcher.Event) (any, error) {
	if s.deps.Flags.State() != flags.StateStopped {
		return nil, ErrRotationActive
	}
	zs, err := s.deps.Parser.ParseZones(e.Args)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.deps.Timeout)
	defer cancel()

	if err := s.deps.Zones.Replace(ctx, zones.Static(zs)); err != nil {
		return nil, err
	}
	if s.deps.ZoneSaver != nil {
		if err := s.deps.ZoneSaver.Save(ctx, zs); err != nil {
			s.deps.LogManager.Logger().Warn("Zones loaded but not saved", "error", err)
		}
	}
	return len(zs), nil
}

// HandleMap records the map the server is running.
func (s *Service) HandleMap(e dispatcher.Event) (any, error) {
	if len(e.Args) < 1 {
		return nil, fmt.Errorf("map: %w", parser.ErrArgCount)
	}
	s.deps.Mission.SetMapName(util.CleanArgs(e.Args)[0])
	return "ok", nil
}

// HandleLog writes a host log line.
func (s *Service) HandleLog(e dispatcher.Event) (any, error) {
	source, level, msg, err := s.deps.Parser.ParseLog(e.Args)
	if err != nil {
		return nil, err
	}
	s.deps.LogManager.WriteLog(source, msg, level)
	return "ok", nil
}

// HandleMetric forwards a host metric to influx.
func (s *Service) HandleMetric(e dispatcher.Event) (any, error) {
	if s.deps.Metrics == nil {
		return nil, nil
	}
	bucket, point, err := influx.ProcessMetricData(e.Args)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.deps.Timeout)
	defer cancel()
	return nil, s.deps.Metrics.WritePoint(ctx, bucket, point)
}
