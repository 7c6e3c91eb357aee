package flags

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/warfare-dev/extension/internal/config"
	"github.com/warfare-dev/extension/internal/contest"
	"github.com/warfare-dev/extension/internal/eventbus"
	"github.com/warfare-dev/extension/internal/pathing"
	"github.com/warfare-dev/extension/internal/zones"
	"github.com/warfare-dev/extension/pkg/core"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MinPathLength counts both mains, so a path needs at least one flag.
const MinPathLength = 3

// State is the lifecycle of a Service.
type State int32

const (
	StateStopped State = iota
	StateStarting
	StateActive
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "Stopped"
	case StateStarting:
		return "Starting"
	case StateActive:
		return "Active"
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

// Scheduler is the simulation goroutine. gameloop.Loop implements it.
type Scheduler interface {
	Invoke(ctx context.Context, fn func()) error
	Every(interval time.Duration, fn func()) (stop func())
}

// PhaseAdvancer ends the current phase of the match once a team has won the
// rotation.
type PhaseAdvancer interface {
	AdvanceToNextPhase(ctx context.Context, winner core.Team) error
}

// Deps are the collaborators of a Service. Config and Now default to the
// viper settings and time.Now.
type Deps struct {
	Bus      *eventbus.Bus
	Loop     Scheduler
	Zones    *zones.Store
	Pathing  *pathing.Registry
	Teams    core.TeamProvider
	Advancer PhaseAdvancer
	Logger   *slog.Logger
	Config   func() config.FlagsConfig
	Now      func() time.Time
}

// Service runs a flag rotation: it builds the path, owns the objectives, ticks
// their contests and decides the winner. Everything except Start, Stop and
// State must be called on the simulation goroutine.
type Service struct {
	deps Deps

	mu    sync.RWMutex
	state State

	// owned by the simulation goroutine
	rotationID string
	cfg        config.FlagsConfig
	policy     Policy
	teams      []core.Team
	path       []zones.Zone
	flags      []*Objective
	byName     map[string]*Objective
	startedAt  time.Time
	stopTick   func()
	unsubs     []func()
	finished   bool
	winner     core.Team
	runCtx     context.Context
	cancelRun  context.CancelFunc

	ticks        metric.Int64Counter
	tickDuration metric.Float64Histogram
	captures     metric.Int64Counter
}

// NewService creates a stopped service.
func NewService(deps Deps) (*Service, error) {
	if deps.Bus == nil || deps.Loop == nil || deps.Zones == nil || deps.Pathing == nil || deps.Teams == nil {
		return nil, errors.New("flag service: bus, loop, zones, pathing and teams are required")
	}
	if deps.Config == nil {
		deps.Config = config.GetFlagsConfig
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	s := &Service{deps: deps, winner: core.NoTeam}

	m := meter()
	var err error
	s.ticks, err = m.Int64Counter("flags.ticks",
		metric.WithDescription("Total rotation ticks evaluated"))
	if err != nil {
		return nil, fmt.Errorf("creating tick counter: %w", err)
	}
	s.tickDuration, err = m.Float64Histogram("flags.tick.duration",
		metric.WithDescription("Time spent evaluating one tick"),
		metric.WithUnit("ms"))
	if err != nil {
		return nil, fmt.Errorf("creating tick histogram: %w", err)
	}
	s.captures, err = m.Int64Counter("flags.captures",
		metric.WithDescription("Total flags captured"))
	if err != nil {
		return nil, fmt.Errorf("creating capture counter: %w", err)
	}
	return s, nil
}

// State is safe to call from any goroutine.
func (s *Service) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Service) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

type plan struct {
	cfg    config.FlagsConfig
	policy Policy
	teams  []core.Team
	path   []zones.Zone
}

// Start binds the settings, builds the path off the simulation goroutine and
// then sets up the objectives on it. Configuration problems are returned as
// *ConfigurationError. A cancelled ctx before activation leaves the service
// stopped with no flags.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateStopped {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.state = StateStarting
	s.mu.Unlock()

	p, err := s.prepare(ctx)
	if err != nil {
		s.setState(StateStopped)
		return err
	}

	activated := false
	err = s.deps.Loop.Invoke(ctx, func() {
		if ctx.Err() != nil {
			return
		}
		s.activate(p)
		activated = true
	})
	if err == nil && !activated {
		err = ctx.Err()
	}
	if err != nil {
		s.setState(StateStopped)
		return fmt.Errorf("starting flag service: %w", err)
	}
	return nil
}

func (s *Service) prepare(ctx context.Context) (plan, error) {
	cfg := s.deps.Config()
	switch {
	case cfg.TickInterval <= 0:
		return plan{}, configErr("flags.tickInterval", fmt.Errorf("%w: %s", ErrInvalidSetting, cfg.TickInterval))
	case cfg.MaxPoints <= 0:
		return plan{}, configErr("flags.maxPoints", fmt.Errorf("%w: %d", ErrInvalidSetting, cfg.MaxPoints))
	case cfg.PointsPerTick <= 0:
		return plan{}, configErr("flags.pointsPerTick", fmt.Errorf("%w: %d", ErrInvalidSetting, cfg.PointsPerTick))
	}

	policy, err := NewPolicy(cfg, s.deps.Teams)
	if err != nil {
		return plan{}, err
	}

	provider, err := s.deps.Pathing.Provider(cfg.PathingProvider)
	if err != nil {
		return plan{}, configErr("flags.pathingProvider", err)
	}

	if !s.deps.Zones.IsLoaded() {
		if err := s.deps.Zones.Initialize(ctx); err != nil {
			return plan{}, fmt.Errorf("loading zones: %w", err)
		}
	}

	pool, err := s.deps.Pathing.Pool(ctx, cfg.FlagPoolProviders, s.deps.Zones, cfg)
	if err != nil {
		return plan{}, configErr("flags.flagPoolProviders", err)
	}

	first, last := policy.Sides()
	main1, ok := s.deps.Zones.Main(first.ID)
	if !ok {
		return plan{}, configErr("zones", fmt.Errorf("%w: team %s", ErrMissingMain, first))
	}
	main2, ok := s.deps.Zones.Main(last.ID)
	if !ok {
		return plan{}, configErr("zones", fmt.Errorf("%w: team %s", ErrMissingMain, last))
	}

	path, err := provider.BuildPath(ctx, pathing.Request{
		Store:     s.deps.Zones,
		Pool:      pool,
		Team1Main: main1,
		Team2Main: main2,
		Settings:  cfg,
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return plan{}, ctxErr
		}
		if errors.Is(err, pathing.ErrUnknownFlag) {
			return plan{}, configErr("flags.fixedOrder", err)
		}
		return plan{}, fmt.Errorf("building flag path: %w", err)
	}
	if len(path) < MinPathLength {
		return plan{}, configErr("flags.pathingProvider",
			fmt.Errorf("%w: %s returned %d zones, need %d", ErrPathTooShort, cfg.PathingProvider, len(path), MinPathLength))
	}

	var teams []core.Team
	for _, t := range s.deps.Teams.Teams() {
		if t.IsValid() {
			teams = append(teams, t)
		}
	}

	return plan{cfg: cfg, policy: policy, teams: teams, path: path}, nil
}

func (s *Service) activate(p plan) {
	s.runCtx, s.cancelRun = context.WithCancel(context.Background())
	s.rotationID = uuid.NewString()
	s.cfg = p.cfg
	s.policy = p.policy
	s.teams = p.teams
	s.path = p.path
	s.finished = false
	s.winner = core.NoTeam

	interior := p.path[1 : len(p.path)-1]
	s.flags = make([]*Objective, 0, len(interior))
	s.byName = make(map[string]*Objective, len(interior))
	refs := make([]FlagRef, 0, len(interior))
	for i, z := range interior {
		region := zones.NewRegion(z.Name, s.deps.Zones.ByName(z.Name))
		f := NewObjective(s.runCtx, s.deps.Bus, i, z, region, p.policy.NewContest(p.cfg.MaxPoints))
		s.flags = append(s.flags, f)
		s.byName[z.Name] = f
		refs = append(refs, f.Ref())
	}

	s.unsubs = append(s.unsubs,
		eventbus.Subscribe(s.deps.Bus, s.onPlayerEntered, eventbus.Priority(eventbus.High), eventbus.Named("flags.enter")),
		eventbus.Subscribe(s.deps.Bus, s.onPlayerExited, eventbus.Priority(eventbus.High), eventbus.Named("flags.exit")),
	)

	s.startedAt = s.deps.Now()
	s.setState(StateActive)

	s.policy.RecalculateObjectives(s.flags)

	first, last := p.policy.Sides()
	s.deps.Bus.Publish(s.runCtx, FlagsSetUp{
		RotationID: s.rotationID,
		Mode:       p.cfg.Mode,
		Pathing:    p.cfg.PathingProvider,
		Flags:      refs,
		Team1:      first,
		Team2:      last,
	})

	s.discover()

	s.stopTick = s.deps.Loop.Every(p.cfg.TickInterval, s.Tick)

	s.deps.Logger.Info("flag rotation started",
		"rotation", s.rotationID,
		"mode", p.cfg.Mode,
		"pathing", p.cfg.PathingProvider,
		"flags", len(s.flags))
}

// Stop tears the rotation down on the simulation goroutine. Stopping a
// stopped service is a no-op.
func (s *Service) Stop(ctx context.Context) error {
	switch s.State() {
	case StateStopped:
		return nil
	case StateStarting:
		return ErrNotActive
	}
	if err := s.deps.Loop.Invoke(ctx, s.teardown); err != nil {
		return fmt.Errorf("stopping flag service: %w", err)
	}
	return nil
}

func (s *Service) teardown() {
	if s.State() != StateActive {
		return
	}
	if s.stopTick != nil {
		s.stopTick()
		s.stopTick = nil
	}
	for _, unsub := range s.unsubs {
		unsub()
	}
	s.unsubs = nil
	for _, f := range s.flags {
		f.Dispose()
	}

	s.deps.Bus.Publish(s.runCtx, FlagsTornDown{RotationID: s.rotationID, Winner: s.winner})
	s.deps.Logger.Info("flag rotation stopped", "rotation", s.rotationID, "winner", s.winner.String())

	s.flags = nil
	s.byName = nil
	s.path = nil
	s.cancelRun()
	s.setState(StateStopped)
}

// tickRecord is the outcome of evaluating one flag, captured before any of
// its events are dispatched.
type tickRecord struct {
	flag     *Objective
	old      ContestState
	new      ContestState
	leader   core.Team
	points   int
	wasOwned bool
	events   []contest.Event
}

// Tick evaluates every active flag in path order. Each flag's events are
// fully dispatched before the next flag is evaluated.
func (s *Service) Tick() {
	if s.State() != StateActive || s.finished {
		return
	}
	start := time.Now()
	elapsed := s.deps.Now().Sub(s.startedAt)

	for _, f := range s.flags {
		rec := s.evaluate(f)
		s.dispatch(rec)
		if s.finished {
			break
		}
	}

	if !s.finished && isSlowTick(elapsed, s.cfg.TickInterval) {
		s.discover()
	}

	modeAttr := metric.WithAttributes(attribute.String("mode", s.cfg.Mode))
	s.ticks.Add(s.runCtx, 1, modeAttr)
	s.tickDuration.Record(s.runCtx, float64(time.Since(start).Microseconds())/1000, modeAttr)
}

// isSlowTick keeps the historical cadence: it looks at the seconds component
// of the elapsed time, not the total, so it fires at most a few times per
// minute and may skip under drift.
func isSlowTick(elapsed, interval time.Duration) bool {
	period := int(interval.Seconds()) * 4
	if period <= 0 {
		period = 1
	}
	secs := int(elapsed.Seconds()) % 60
	return secs%period == 0
}

func (s *Service) evaluate(f *Objective) tickRecord {
	rec := tickRecord{
		flag:     f,
		old:      f.CurrentContestState(),
		wasOwned: f.Owner().IsValid(),
	}
	rec.new = s.policy.ContestResult(f, s.teams)

	switch rec.new.Kind {
	case KindLeading:
		f.setContested(false)
		rec.events = f.Contest().AwardPoints(rec.new.Team, s.cfg.PointsPerTick)
	case KindContested:
		f.setContested(true)
	default:
		f.setContested(false)
	}

	rec.leader = f.Contest().Leader()
	rec.points = f.Contest().LeaderPoints()
	f.SetCurrentContestState(rec.new, false)
	return rec
}

// dispatch publishes a record's events: points first, then captures and
// neutralizations, then the state change.
func (s *Service) dispatch(rec tickRecord) {
	ctx := s.runCtx
	ref := rec.flag.Ref()

	for _, e := range rec.events {
		if pc, ok := e.(contest.PointsChanged); ok {
			s.deps.Bus.Publish(ctx, FlagContestPointsChanged{
				Flag:   ref,
				Change: pc.Change,
				Points: rec.points,
				Leader: rec.leader,
			})
		}
	}

	captured, neutralized := false, false
	for _, e := range rec.events {
		switch ev := e.(type) {
		case contest.Won:
			captured = true
			s.captures.Add(ctx, 1)
			s.deps.Logger.Info("flag captured", "flag", ref.Name, "team", ev.Leader.String())
			s.deps.Bus.Publish(ctx, FlagCaptured{
				Flag:     ref,
				Capturer: ev.Leader,
				Players:  rec.flag.PlayersOf(ev.Leader),
			})
		case contest.Restarted:
			neutralized = true
			s.deps.Logger.Info("flag neutralized", "flag", ref.Name,
				"by", ev.Neutralizer.String(), "previous", ev.PreviousLeader.String())
			s.deps.Bus.Publish(ctx, FlagNeutralized{
				Flag:           ref,
				Neutralizer:    ev.Neutralizer,
				PreviousLeader: ev.PreviousLeader,
				WasOwned:       rec.wasOwned,
			})
		}
	}

	if rec.old != rec.new {
		rec.flag.InvokeContestStateChanged(rec.old)
	}

	if captured || neutralized {
		s.policy.RecalculateObjectives(s.flags)
	}
	if captured {
		s.checkWin()
	}
}

func (s *Service) checkWin() {
	owner := core.NoTeam
	for _, f := range s.flags {
		o := f.Owner()
		if !o.IsValid() {
			return
		}
		if !owner.IsValid() {
			owner = o
		} else if !owner.Is(o) {
			return
		}
	}
	if !owner.IsValid() {
		return
	}

	s.finished = true
	s.winner = owner
	if s.stopTick != nil {
		s.stopTick()
		s.stopTick = nil
	}

	s.deps.Logger.Info("flag rotation won", "rotation", s.rotationID, "winner", owner.String())
	s.deps.Bus.Publish(s.runCtx, FlagRotationWon{RotationID: s.rotationID, Winner: owner})

	if s.deps.Advancer != nil {
		if err := s.deps.Advancer.AdvanceToNextPhase(s.runCtx, owner); err != nil {
			s.deps.Logger.Error("advancing phase failed", "winner", owner.String(), "error", err)
		}
	}
}

// discover reveals to each team its objective and the flags it owns.
func (s *Service) discover() {
	for _, t := range s.teams {
		if obj := s.policy.Objective(t); obj != nil {
			obj.Discover(t)
		}
		for _, f := range s.flags {
			if f.Owner().Is(t) {
				f.Discover(t)
			}
		}
	}
}

func (s *Service) onPlayerEntered(_ context.Context, e PlayerEnteredFlagRegion) error {
	f := s.byName[e.Flag.Name]
	if f == nil || !f.IsActive() {
		return nil
	}
	f.Discover(e.Player.Team)
	f.SetCurrentContestState(s.policy.ContestResult(f, s.teams), true)
	return nil
}

func (s *Service) onPlayerExited(_ context.Context, e PlayerExitedFlagRegion) error {
	f := s.byName[e.Flag.Name]
	if f == nil || !f.IsActive() {
		return nil
	}
	f.SetCurrentContestState(s.policy.ContestResult(f, s.teams), true)
	return nil
}

// UpdatePlayer feeds a player's latest snapshot to every flag region.
func (s *Service) UpdatePlayer(p core.Player) {
	for _, f := range s.flags {
		f.Region().Revalidate(p)
	}
}

// RemovePlayer drops a disconnected player from every flag region.
func (s *Service) RemovePlayer(id core.PlayerID) {
	for _, f := range s.flags {
		f.Region().Remove(id)
	}
}

// QuickCapture awards a flag's full pool to team, as the debug capture
// command does. Events are dispatched like a tick's.
func (s *Service) QuickCapture(name string, team core.Team) error {
	if s.State() != StateActive {
		return ErrNotActive
	}
	f := s.byName[name]
	if f == nil {
		return fmt.Errorf("%w: %q", ErrUnknownFlag, name)
	}
	if !team.IsValid() {
		return fmt.Errorf("quick capture of %q: invalid team", name)
	}

	rec := tickRecord{
		flag:     f,
		old:      f.CurrentContestState(),
		new:      f.CurrentContestState(),
		wasOwned: f.Owner().IsValid(),
	}
	rec.events = f.Contest().AwardPoints(team, f.Contest().MaxPossiblePoints())
	rec.leader = f.Contest().Leader()
	rec.points = f.Contest().LeaderPoints()
	s.dispatch(rec)
	return nil
}
