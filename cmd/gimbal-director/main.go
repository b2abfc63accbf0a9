// Command gimbal-director runs the camera-gimbal targeting service:
// it listens for aircraft telemetry and operator commands, solves the
// gimbal line of sight against terrain, steers the gimbal onto fixed
// targets and records the session.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"github.com/skyward-uas/gimbal-director/internal/config"
	"github.com/skyward-uas/gimbal-director/internal/control"
	"github.com/skyward-uas/gimbal-director/internal/director"
	"github.com/skyward-uas/gimbal-director/internal/dispatcher"
	"github.com/skyward-uas/gimbal-director/internal/gimbal"
	"github.com/skyward-uas/gimbal-director/internal/influx"
	"github.com/skyward-uas/gimbal-director/internal/logging"
	intotel "github.com/skyward-uas/gimbal-director/internal/otel"
	"github.com/skyward-uas/gimbal-director/internal/session"
	"github.com/skyward-uas/gimbal-director/internal/solver"
	"github.com/skyward-uas/gimbal-director/internal/status"
	"github.com/skyward-uas/gimbal-director/internal/targeting"
	"github.com/skyward-uas/gimbal-director/internal/telemetry"
	"github.com/skyward-uas/gimbal-director/internal/terrain"
)

// Version and BuildDate can be set at build time via ldflags.
var (
	Version   = "0.0.1"
	BuildDate = "unknown"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "gimbal-director: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configDir := flag.String("config", ".", "directory containing gimbal_director.cfg.json")
	flag.Parse()

	startTime := time.Now()

	configErr := config.Load(*configDir)

	// OTel comes up before logging so the log bridge can attach.
	otelCfg := config.OTel()
	var otelFile *os.File
	if otelCfg.Enabled && otelCfg.Endpoint == "" {
		if err := os.MkdirAll(config.GetString("logsDir"), 0755); err != nil {
			return fmt.Errorf("creating logs directory: %w", err)
		}
		f, err := os.OpenFile(
			filepath.Join(config.GetString("logsDir"), "otel_logs.json"),
			os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("opening otel log sink: %w", err)
		}
		otelFile = f
		otelCfg.LogWriter = f
	}
	otelProvider, err := intotel.New(otelCfg)
	if err != nil {
		return fmt.Errorf("initializing otel: %w", err)
	}

	var gelfAddr string
	if config.GetBool("graylog.enabled") {
		gelfAddr = config.GetString("graylog.address")
	}
	var loggerProvider *sdklog.LoggerProvider
	if otelProvider.Enabled() {
		loggerProvider = otelProvider.LoggerProvider()
	}
	// sessionID is injected into every log record once the session starts.
	var sessionID string
	logMgr, err := logging.Setup(logging.Options{
		Level:          config.GetString("logLevel"),
		Dir:            config.GetString("logsDir"),
		GELFAddr:       gelfAddr,
		LoggerProvider: loggerProvider,
		Context: func() []slog.Attr {
			if sessionID == "" {
				return nil
			}
			return []slog.Attr{slog.String("session", sessionID)}
		},
	})
	if err != nil {
		return fmt.Errorf("initializing logging: %w", err)
	}
	defer logMgr.Close()
	log := logMgr.Logger()

	log.Info("starting gimbal director", "version", Version, "buildDate", BuildDate)
	if configErr != nil {
		log.Warn("failed to load config, using defaults", "error", configErr)
	} else {
		log.Info("loaded config", "dir", *configDir)
	}

	// zerolog feeds the components that predate the slog migration.
	zl := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()

	var influxMgr *influx.Manager
	if config.GetBool("influx.enabled") {
		influxMgr = influx.NewManager(zl, config.GetString("influx.backupPath"))
		if err := influxMgr.Connect(); err != nil {
			log.Warn("influx unavailable, metrics disabled", "error", err)
			influxMgr = nil
		} else {
			defer influxMgr.Close()
		}
	}

	elevation, err := terrain.NewProvider(config.Terrain())
	if err != nil {
		return fmt.Errorf("initializing terrain provider: %w", err)
	}
	slv := solver.New(elevation, config.Solver())
	store := targeting.NewStore()
	engine := targeting.NewEngine(slv, config.Targeting(), log)

	gim, cleanup, err := openGimbal(log)
	if err != nil {
		return err
	}
	defer cleanup()

	controller, err := control.NewController(gim, gim, config.Control(), log,
		control.WithInterval(time.Duration(config.GetInt("control.cycleIntervalMs"))*time.Millisecond))
	if err != nil {
		return fmt.Errorf("initializing controller: %w", err)
	}

	backend, err := session.NewBackend(config.Session(), log)
	if err != nil {
		return fmt.Errorf("initializing session backend: %w", err)
	}
	if err := backend.Init(); err != nil {
		return fmt.Errorf("initializing session storage: %w", err)
	}
	defer backend.Close()

	info := session.Info{
		ID:        startTime.Format("20060102_150405"),
		Aircraft:  config.GetString("session.aircraft"),
		Operator:  config.GetString("session.operator"),
		StartTime: startTime,
	}
	if err := backend.StartSession(&info); err != nil {
		return fmt.Errorf("starting session: %w", err)
	}
	sessionID = info.ID
	log.Info("session started", "id", info.ID, "backend", config.GetString("session.backend"))

	tele := telemetry.NewManager(
		time.Duration(config.GetInt("telemetry.staleAfterMs")) * time.Millisecond)
	teleListener := telemetry.NewListener(config.GetString("telemetry.listenAddress"), tele, log)

	dirCfg := director.DefaultConfig()
	dirCfg.UpdateInterval = time.Duration(config.GetInt("targeting.updateIntervalMs")) * time.Millisecond
	dirCfg.Session = info
	d := director.New(dirCfg, tele, engine, store, controller, gim, backend, influxMgr, log)

	disp, err := dispatcher.New(logging.NewDispatcherLogger(zl))
	if err != nil {
		return fmt.Errorf("initializing dispatcher: %w", err)
	}
	d.RegisterHandlers(disp)
	cmdListener := dispatcher.NewListener(config.GetString("commands.listenAddress"), disp)

	statusSvc := status.NewService(status.Dependencies{
		Log:      log,
		Dir:      config.GetString("status.dir"),
		Interval: time.Duration(config.GetInt("status.intervalMs")) * time.Millisecond,
		Collect:  d.Snapshot,
		Influx:   influxMgr,
	})
	if err := statusSvc.Start(); err != nil {
		log.Warn("status service failed to start", "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := teleListener.Start(ctx); err != nil && ctx.Err() == nil {
			log.Error("telemetry listener stopped", "error", err)
		}
	}()
	go func() {
		if err := cmdListener.Start(ctx); err != nil && ctx.Err() == nil {
			log.Error("command listener stopped", "error", err)
		}
	}()

	log.Info("gimbal director running",
		"telemetry", config.GetString("telemetry.listenAddress"),
		"commands", config.GetString("commands.listenAddress"),
		"gimbal", config.GetString("gimbal.driver"))

	d.Run(ctx)

	log.Info("shutting down")
	statusSvc.Stop()
	if err := backend.EndSession(); err != nil {
		log.Error("ending session failed", "error", err)
	} else if exp, ok := backend.(session.Exportable); ok {
		log.Info("session exported", "path", exp.ExportedFilePath())
	}
	if err := otelProvider.Shutdown(context.Background()); err != nil {
		log.Error("otel shutdown failed", "error", err)
	}
	if otelFile != nil {
		otelFile.Close()
	}
	return nil
}

// openGimbal builds the configured gimbal driver and returns its
// shutdown func.
func openGimbal(log *slog.Logger) (director.Gimbal, func(), error) {
	switch driver := config.GetString("gimbal.driver"); driver {
	case "siyi":
		s := gimbal.NewSIYI(config.SIYI(), log)
		if err := s.Start(); err != nil {
			return nil, nil, fmt.Errorf("starting gimbal client: %w", err)
		}
		return s, s.Stop, nil
	case "sim":
		return gimbal.NewSim(), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown gimbal driver: %s", driver)
	}
}
