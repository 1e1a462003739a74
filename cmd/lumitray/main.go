package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/saaga0h/lumitray/internal/ambient"
	"github.com/saaga0h/lumitray/internal/bridge"
	"github.com/saaga0h/lumitray/internal/controller"
	"github.com/saaga0h/lumitray/internal/history"
	"github.com/saaga0h/lumitray/internal/location"
	"github.com/saaga0h/lumitray/internal/monitor"
	"github.com/saaga0h/lumitray/internal/schedule"
	"github.com/saaga0h/lumitray/internal/store"
	"github.com/saaga0h/lumitray/internal/tray"
	"github.com/saaga0h/lumitray/pkg/config"
	"github.com/saaga0h/lumitray/pkg/health"
	"github.com/saaga0h/lumitray/pkg/mqtt"
)

func main() {
	// Load configuration with hierarchy: defaults → file → env → flags
	cfg := config.NewConfig()
	if err := cfg.LoadFromFile(defaultConfigFile()); err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}
	cfg.LoadFromEnv()
	cfg.LoadFromFlags()

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}

	// Set up structured logging
	logLevel := parseLogLevel(cfg.LogLevel)
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Starting Lumitray",
		"service_name", cfg.ServiceName,
		"no_tray", cfg.NoTray,
		"bridge", cfg.BridgeEnabled(),
		"log_level", cfg.LogLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Persisted state
	statePath := cfg.StatePath
	if statePath == "" {
		statePath = store.DefaultPath()
	}
	stateStore := store.NewStore(statePath, logger)
	appConfig := stateStore.Load()
	saver := store.NewDebouncer(stateStore, logger)

	// Brightness history (optional: continues without it on error)
	dataDir := cfg.DataDir
	if dataDir == "" {
		dataDir = filepath.Dir(statePath)
	}
	var recorder controller.Recorder
	historyRecorder, err := history.NewRecorder(dataDir, logger)
	if err != nil {
		logger.Warn("History recording disabled", "error", err)
	} else {
		recorder = historyRecorder
		defer historyRecorder.Close()
	}

	// Ambient light engine, only when a probe command is configured
	var ambientEngine controller.AmbientEngine
	if command := cfg.SensorCommandLine(); len(command) > 0 {
		sensor := ambient.NewExecSensor(command)
		pollInterval := time.Duration(cfg.SensorPollSec * float64(time.Second))
		ambientEngine = ambient.NewEngine(sensor, pollInterval, logger)
	}

	ctrl := controller.NewController(controller.Options{
		Config:      appConfig,
		Monitors:    monitor.NewService(cfg.DDCUtilPath, logger),
		Schedule:    schedule.NewEngine(logger),
		Ambient:     ambientEngine,
		Resolver:    location.NewResolver(logger),
		Saver:       saver,
		Recorder:    recorder,
		TickEnabled: time.Duration(cfg.ScheduleTickSec) * time.Second,
		TickIdle:    time.Duration(cfg.ScheduleIdleSec) * time.Second,
		AmbientTick: time.Duration(cfg.AmbientTickMs) * time.Millisecond,
		Retention:   time.Duration(cfg.HistoryRetainDays) * 24 * time.Hour,
		Logger:      logger,
	})

	// React to external edits of the state file
	watcher, err := store.NewWatcher(stateStore, logger)
	if err != nil {
		logger.Warn("State file watching disabled", "error", err)
	} else {
		if err := watcher.Start(); err != nil {
			logger.Warn("State file watching disabled", "error", err)
		} else {
			defer watcher.Close()
			go func() {
				for range watcher.Events() {
					ctrl.ReplaceConfig(stateStore.Load())
				}
			}()
		}
	}

	// Optional MQTT bridge
	var mqttClient mqtt.Client
	var statusBridge *bridge.Bridge
	if cfg.BridgeEnabled() {
		mqttClient = mqtt.NewClient(cfg, logger)
		statusBridge = bridge.NewBridge(mqttClient, cfg.MQTTTopicPrefix, ctrl, logger)
		ctrl.AddListener(statusBridge.PublishStatus)
	}

	// Health endpoint, off unless a port is configured
	var httpServer *http.Server
	if cfg.HealthPort > 0 {
		checker := health.NewChecker(mqttClient, func() health.Snapshot {
			status := ctrl.Snapshot()
			snap := health.Snapshot{
				MonitorCount:   len(status.Monitors),
				ScheduleStatus: status.ScheduleStatus,
				AmbientState:   string(status.AmbientState),
			}
			if historyRecorder != nil {
				if samples, err := historyRecorder.RecentSamples(30 * time.Minute); err == nil {
					stats := history.AnalyzeWindow(samples, 30*time.Minute, time.Now().UTC())
					snap.LuxTrend = stats.Trend
					snap.LuxStability = stats.Stability
				}
			}
			return snap
		}, logger)
		httpServer = startHealthServer(cfg.HealthPort, checker, logger)
	}

	startServices := func() {
		ctrl.Start(ctx)
		if statusBridge != nil {
			connectCtx, connectCancel := context.WithTimeout(ctx, 30*time.Second)
			defer connectCancel()
			if err := statusBridge.Start(connectCtx); err != nil {
				logger.Warn("MQTT bridge unavailable", "error", err)
			}
		}
	}

	stopServices := func() {
		logger.Info("Initiating graceful shutdown")
		cancel()
		if statusBridge != nil {
			statusBridge.Stop()
		}
		ctrl.Stop()
		if httpServer != nil {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				logger.Error("Error shutting down health server", "error", err)
			}
		}
		logger.Info("Lumitray shutdown complete")
	}

	if cfg.NoTray {
		startServices()
		<-sigChan
		logger.Info("Shutdown signal received (SIGTERM/SIGINT)")
		stopServices()
		return
	}

	// systray.Run must own the main goroutine; services start from onReady
	// and a signal maps to a tray quit
	trayApp := tray.NewApp(ctrl, logger, startServices, stopServices)
	ctrl.AddListener(trayApp.Update)

	go func() {
		<-sigChan
		logger.Info("Shutdown signal received (SIGTERM/SIGINT)")
		trayApp.Quit()
	}()

	trayApp.Run()
}

func defaultConfigFile() string {
	if v := os.Getenv("LUMITRAY_CONFIG_FILE"); v != "" {
		return v
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "lumitray", "lumitray.yaml")
}

func startHealthServer(port int, checker *health.Checker, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", checker.HandlerFunc())
	mux.HandleFunc("/status", checker.DetailedHandlerFunc())

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}

	go func() {
		logger.Info("Starting health check server", "port", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Health server error", "error", err)
		}
	}()

	return server
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
