package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"github.com/warfare-dev/extension/internal/api"
	"github.com/warfare-dev/extension/internal/cache"
	"github.com/warfare-dev/extension/internal/config"
	"github.com/warfare-dev/extension/internal/dispatcher"
	"github.com/warfare-dev/extension/internal/eventbus"
	"github.com/warfare-dev/extension/internal/flags"
	"github.com/warfare-dev/extension/internal/gameloop"
	"github.com/warfare-dev/extension/internal/handlers"
	"github.com/warfare-dev/extension/internal/history"
	"github.com/warfare-dev/extension/internal/influx"
	"github.com/warfare-dev/extension/internal/logging"
	"github.com/warfare-dev/extension/internal/mission"
	"github.com/warfare-dev/extension/internal/monitor"
	intOtel "github.com/warfare-dev/extension/internal/otel"
	"github.com/warfare-dev/extension/internal/parser"
	"github.com/warfare-dev/extension/internal/pathing"
	"github.com/warfare-dev/extension/internal/storage"
	"github.com/warfare-dev/extension/internal/zones"
	"github.com/warfare-dev/extension/pkg/hostbridge"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"golang.org/x/sync/errgroup"
)

// module defs - BuildDate can be set at build time via ldflags
var (
	CurrentExtensionVersion = "0.0.1"
	BuildDate               = "unknown"

	ExtensionName = "warfare"
)

const (
	loopQueueSize   = 4096
	shutdownTimeout = 10 * time.Second
)

// logging
var (
	SessionStartTime = time.Now()

	LogFilePath    string
	LogFile        *os.File
	MetricFile     *os.File
	SlogManager    *logging.SlogManager
	Logger         *slog.Logger
	ZLogger        zerolog.Logger
	OTelProvider   *intOtel.Provider
	graylogCloser  io.Closer
	missionContext *mission.Context
)

// services
var (
	eventBus        *eventbus.Bus
	simLoop         *gameloop.Loop
	eventDispatcher *dispatcher.Dispatcher
	bridge          *hostbridge.Bridge
	zoneStore       *zones.Store
	flagService     *flags.Service
	playerCache     *cache.PlayerCache
	flagAliases     *cache.FlagAliases
	influxManager   *influx.Manager
	storeEnv        *storageEnv
	storageBackend  storage.Backend
	recorder        *history.Recorder
	monitorService  *monitor.Service
	unsubNotifier   func()
)

// configDir is where warfare.cfg.json is looked up.
func configDir() string {
	if dir := os.Getenv("WARFARE_CONFIG_DIR"); dir != "" {
		return dir
	}
	return "."
}

func main() {
	args := os.Args[1:]
	if len(args) > 0 {
		var err error
		switch strings.ToLower(args[0]) {
		case "export":
			err = runExport(os.Stdout, args[1:])
		case "importzones":
			err = runImportZones(os.Stdout, args[1:])
		case "version":
			fmt.Println(CurrentExtensionVersion, BuildDate)
		default:
			err = fmt.Errorf("unknown command %q", args[0])
		}
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	configErr := config.Load(configDir())
	setupLogging()
	defer closeLogging()

	if configErr != nil {
		Logger.Warn("Failed to load config, using defaults!", "error", configErr)
	} else {
		Logger.Info("Loaded config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := startServices(ctx); err != nil {
		shutdownServices()
		return err
	}
	defer shutdownServices()

	g, gctx := errgroup.WithContext(context.Background())
	loopCtx, cancelLoop := context.WithCancel(gctx)
	defer cancelLoop()

	g.Go(func() error {
		return simLoop.Run(loopCtx)
	})
	g.Go(func() error {
		defer cancelLoop()
		err := bridge.Serve(ctx, os.Stdin)
		stopRotation()
		return err
	})

	if err := monitorService.Start(loopCtx); err != nil {
		Logger.Warn("Status monitor not started", "error", err)
	}

	Logger.Info("Warfare extension running", "version", CurrentExtensionVersion, "build", BuildDate)
	return g.Wait()
}

// setupLogging opens the session log file and builds the slog, zerolog and
// OTel outputs. Host responses own stdout, so nothing here may log to it.
func setupLogging() {
	missionContext = mission.NewContext(viper.GetString("serverName"), config.GetZonesConfig().MapName)
	SlogManager = logging.NewSlogManager().WithContext(missionContext.LogAttrs)

	logsDir := viper.GetString("logsDir")
	var logOut io.Writer = os.Stderr
	if err := os.MkdirAll(logsDir, 0755); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logs dir %s: %v\n", logsDir, err)
	} else {
		LogFilePath = logging.LogFilePath(logsDir, ExtensionName, SessionStartTime)
		if _, err := os.Stat(LogFilePath); err == nil {
			_ = os.Rename(LogFilePath, LogFilePath+".old")
		}
		f, err := os.OpenFile(LogFilePath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to create log file %s: %v\n", LogFilePath, err)
		} else {
			LogFile = f
			logOut = f
		}
	}

	level := viper.GetString("logLevel")
	zlevel, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		zlevel = zerolog.InfoLevel
	}
	ZLogger = zerolog.New(zerolog.ConsoleWriter{
		Out:        logOut,
		TimeFormat: time.RFC3339,
		NoColor:    true,
	}).Level(zlevel).With().Timestamp().Logger()

	otelCfg := config.GetOTelConfig()
	if otelCfg.Enabled {
		cfg := intOtel.Config{
			Enabled:      otelCfg.Enabled,
			ServiceName:  otelCfg.ServiceName,
			BatchTimeout: otelCfg.BatchTimeout,
			LogWriter:    logOut,
			Endpoint:     otelCfg.Endpoint,
			Insecure:     otelCfg.Insecure,
		}
		if otelCfg.MetricInterval > 0 && LogFile != nil {
			path := logging.LogFilePath(logsDir, ExtensionName+".metrics", SessionStartTime)
			if f, err := os.Create(path); err == nil {
				MetricFile = f
				cfg.MetricWriter = f
				cfg.MetricInterval = otelCfg.MetricInterval
			}
		}
		OTelProvider, err = intOtel.New(cfg)
		if err != nil {
			ZLogger.Error().Err(err).Msg("Failed to initialize OTel provider")
		}
	}

	var extra []slog.Handler
	if viper.GetBool("graylog.enabled") {
		h, closer, err := logging.NewGELFHandler(viper.GetString("graylog.address"), ExtensionName, level)
		if err != nil {
			ZLogger.Error().Err(err).Msg("Failed to connect to Graylog")
		} else {
			extra = append(extra, h)
			graylogCloser = closer
		}
	}

	var otelLogProvider *sdklog.LoggerProvider
	if OTelProvider != nil {
		otelLogProvider = OTelProvider.LoggerProvider()
	}
	SlogManager.Setup(logOut, level, otelLogProvider, extra...)
	Logger = SlogManager.Logger()
	Logger.Info("Logging to file", "path", LogFilePath)
}

func closeLogging() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if OTelProvider != nil {
		if err := OTelProvider.Shutdown(ctx); err != nil {
			ZLogger.Warn().Err(err).Msg("Failed to shut down OTel provider")
		}
	}
	if graylogCloser != nil {
		_ = graylogCloser.Close()
	}
	if MetricFile != nil {
		_ = MetricFile.Close()
	}
	if LogFile != nil {
		_ = LogFile.Close()
	}
}

func startServices(ctx context.Context) error {
	teams, err := config.GetTeams()
	if err != nil {
		return err
	}

	eventDispatcher, err = dispatcher.New(logging.NewDispatcherLogger(ZLogger))
	if err != nil {
		return fmt.Errorf("failed to create dispatcher: %w", err)
	}
	bridge = hostbridge.New(eventDispatcher, os.Stdout, CurrentExtensionVersion)

	eventBus, err = eventbus.New(Logger)
	if err != nil {
		return fmt.Errorf("failed to create event bus: %w", err)
	}
	simLoop = gameloop.New(loopQueueSize, Logger)
	playerCache = cache.NewPlayerCache()
	flagAliases = cache.NewFlagAliases()

	storeEnv = &storageEnv{
		LogManager:   SlogManager,
		Zerolog:      ZLogger,
		DataDir:      viper.GetString("logsDir"),
		SessionStart: SessionStartTime,
		ServerName:   viper.GetString("serverName"),
		Streaming:    config.GetStreamingConfig(),
		DB:           config.GetDBConfig(),
		APIServerURL: config.GetAPIConfig().ServerURL,
	}

	provider, saver, err := zoneSource(config.GetZonesConfig(), missionContext, storeEnv)
	if err != nil {
		return err
	}
	zoneStore = zones.NewStore(provider)
	if err := zoneStore.Initialize(ctx); err != nil {
		// zones may still arrive from the host through :ZONES:LOAD:
		Logger.Warn("Failed to load zones", "error", err)
	}

	walk := pathing.NewGraphWalk(config.GetGraphWalkConfig(), nil, Logger)

	flagService, err = flags.NewService(flags.Deps{
		Bus:      eventBus,
		Loop:     simLoop,
		Zones:    zoneStore,
		Pathing:  pathing.DefaultRegistry(walk),
		Teams:    teams,
		Advancer: phaseAdvancer{host: bridge},
		Logger:   Logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create flag service: %w", err)
	}

	influxCfg := config.GetInfluxConfig()
	if influxCfg.Enabled {
		influxManager = influx.NewManager(ZLogger, influxCfg,
			filepath.Join(viper.GetString("logsDir"), fmt.Sprintf("%s_%s.influx.gz", ExtensionName, SessionStartTime.Format("20060102_150405"))))
		if err := influxManager.Connect(ctx); err != nil {
			Logger.Warn("InfluxDB unavailable", "error", err)
		}
	}

	storageBackend, err = createStorageBackend(config.GetStorageConfig(), storeEnv)
	if err != nil {
		return err
	}
	if err := storageBackend.Init(); err != nil {
		return fmt.Errorf("failed to initialize storage backend: %w", err)
	}

	historyDeps := history.Deps{
		Bus:     eventBus,
		Backend: storageBackend,
		Mission: missionContext,
		Aliases: flagAliases,
		Flags:   config.GetFlagsConfig(),
		Logger:  Logger,
	}
	if influxManager != nil {
		historyDeps.Points = influxManager
	}
	if apiCfg := config.GetAPIConfig(); apiCfg.APIKey != "" {
		historyDeps.Uploader = api.New(apiCfg.ServerURL, apiCfg.APIKey)
	}
	recorder = history.New(historyDeps)
	recorder.Start()

	unsubNotifier = subscribeNotifier(eventBus, bridge)

	handlerDeps := handlers.Dependencies{
		Loop:       simLoop,
		Flags:      flagService,
		Parser:     parser.NewParser(Logger, teams),
		Players:    playerCache,
		Aliases:    flagAliases,
		Zones:      zoneStore,
		ZoneSaver:  saver,
		Mission:    missionContext,
		LogManager: SlogManager,
	}
	if influxManager != nil {
		handlerDeps.Metrics = influxManager
	}
	handlers.NewService(handlerDeps).Register(eventDispatcher)
	registerLifecycleHandlers(eventDispatcher)

	monCfg := config.GetMonitorConfig()
	monDeps := monitor.Dependencies{
		LogManager:     SlogManager,
		Loop:           simLoop,
		Flags:          flagService,
		Players:        playerCache,
		MissionContext: missionContext,
		Influx:         influxManager,
		Interval:       monCfg.Interval,
	}
	if monCfg.StatusFile != "" {
		monDeps.StatusFile = filepath.Join(viper.GetString("logsDir"), monCfg.StatusFile)
	}
	monitorService = monitor.NewService(monDeps)

	go checkServerStatus()
	return nil
}

// stopRotation tears down a running rotation while the loop is still alive.
func stopRotation() {
	if flagService == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := flagService.Stop(ctx); err != nil && !errors.Is(err, gameloop.ErrStopped) {
		Logger.Error("Failed to stop flag rotation", "error", err)
	}
}

// shutdownServices stops everything startServices created, in reverse order.
func shutdownServices() {
	if monitorService != nil {
		monitorService.Stop()
	}
	if unsubNotifier != nil {
		unsubNotifier()
	}
	if recorder != nil {
		recorder.Stop()
	}
	if eventDispatcher != nil {
		eventDispatcher.Close()
	}
	if storageBackend != nil {
		if err := storageBackend.Close(); err != nil {
			Logger.Error("Failed to close storage backend", "error", err)
		}
	}
	if storeEnv != nil {
		if err := storeEnv.Close(); err != nil {
			Logger.Error("Failed to close database", "error", err)
		}
	}
	if influxManager != nil {
		if err := influxManager.Close(); err != nil {
			Logger.Error("Failed to close InfluxDB", "error", err)
		}
	}
	if eventBus != nil {
		eventBus.Close()
	}
	Logger.Info("Shutdown complete")
}

// checkServerStatus logs whether the stats server is reachable.
func checkServerStatus() {
	apiCfg := config.GetAPIConfig()
	if apiCfg.ServerURL == "" {
		return
	}
	if err := api.New(apiCfg.ServerURL, apiCfg.APIKey).Healthcheck(); err != nil {
		Logger.Warn("Stats server is not reachable", "url", apiCfg.ServerURL, "error", err)
		return
	}
	Logger.Info("Stats server is reachable", "url", apiCfg.ServerURL)
}
