package controller

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/saaga0h/lumitray/internal/ambient"
	"github.com/saaga0h/lumitray/internal/location"
	"github.com/saaga0h/lumitray/internal/model"
	"github.com/saaga0h/lumitray/internal/monitor"
	"github.com/saaga0h/lumitray/internal/schedule"
	"github.com/saaga0h/lumitray/internal/startup"
)

// AmbientEngine is the ambient-light capability the controller drives
type AmbientEngine interface {
	State() ambient.State
	Enable(ctx context.Context) (float64, bool)
	Disable()
	Tick() (level int, apply bool)
	LatestLux() (float64, bool)
}

// Resolver looks up an approximate geographic location
type Resolver interface {
	Resolve(ctx context.Context) *location.Context
}

// Persister writes the application state to disk
type Persister interface {
	SaveNow(cfg *model.AppConfig)
	SaveSoon(cfg *model.AppConfig)
	Flush()
}

// Recorder captures samples and applied levels for later analysis
type Recorder interface {
	RecordSample(lux float64)
	RecordLevel(monitorKey string, level int, source string)
	Prune(retention time.Duration)
}

// Status is a read-only snapshot handed to the tray, bridge and health
// endpoints
type Status struct {
	ScheduleStatus   string
	AmbientState     ambient.State
	GlobalBrightness int
	LinkMode         bool
	ScheduleEnabled  bool
	AmbientEnabled   bool
	Monitors         []MonitorStatus
}

// MonitorStatus is one display's position in the snapshot
type MonitorStatus struct {
	Key   string
	Name  string
	Level int
}

// Options configures a Controller
type Options struct {
	Config   *model.AppConfig
	Monitors monitor.Service
	Schedule *schedule.Engine
	Ambient  AmbientEngine
	Resolver Resolver
	Saver    Persister
	Recorder Recorder

	TickEnabled time.Duration
	TickIdle    time.Duration
	AmbientTick time.Duration
	Retention   time.Duration

	Logger *slog.Logger
}

// Controller owns the application state. Every mutation goes through its
// methods; the schedule and ambient loops run on its goroutine and hand
// levels to the monitor service. Detection keys returned by the monitor
// service index the persisted level map.
type Controller struct {
	mu  sync.Mutex
	cfg *model.AppConfig

	handles []monitor.Handle
	levels  map[string]int

	expected       map[string]int
	scheduleStatus string

	monitors monitor.Service
	engine   *schedule.Engine
	amb      AmbientEngine
	resolver Resolver
	saver    Persister
	recorder Recorder
	logger   *slog.Logger

	listeners []func(Status)

	tickEnabled time.Duration
	tickIdle    time.Duration
	ambientTick time.Duration
	retention   time.Duration

	cron            *cron.Cron
	running         bool
	stopChan        chan struct{}
	doneChan        chan struct{}
	lastLocationTry time.Time

	now func() time.Time
}

// NewController creates a controller around an already-loaded configuration
func NewController(opts Options) *Controller {
	cfg := opts.Config
	if cfg == nil {
		cfg = model.DefaultAppConfig()
	}
	if cfg.MonitorLevels == nil {
		cfg.MonitorLevels = make(map[string]int)
	}

	tickEnabled := opts.TickEnabled
	if tickEnabled <= 0 {
		tickEnabled = time.Second
	}
	tickIdle := opts.TickIdle
	if tickIdle <= 0 {
		tickIdle = time.Minute
	}
	ambientTick := opts.AmbientTick
	if ambientTick <= 0 {
		ambientTick = 1100 * time.Millisecond
	}
	retention := opts.Retention
	if retention <= 0 {
		retention = 14 * 24 * time.Hour
	}

	return &Controller{
		cfg:            cfg,
		levels:         make(map[string]int),
		expected:       make(map[string]int),
		scheduleStatus: "Schedule: off",
		monitors:       opts.Monitors,
		engine:         opts.Schedule,
		amb:            opts.Ambient,
		resolver:       opts.Resolver,
		saver:          opts.Saver,
		recorder:       opts.Recorder,
		logger:         opts.Logger,
		tickEnabled:    tickEnabled,
		tickIdle:       tickIdle,
		ambientTick:    ambientTick,
		retention:      retention,
		now:            time.Now,
	}
}

// AddListener registers a callback invoked after every state change. Must
// be called before Start.
func (c *Controller) AddListener(fn func(Status)) {
	c.listeners = append(c.listeners, fn)
}

// Start enumerates monitors, restores the saved profile and launches the
// schedule and ambient loops
func (c *Controller) Start(ctx context.Context) {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return
	}
	c.running = true
	c.stopChan = make(chan struct{})
	c.doneChan = make(chan struct{})
	c.mu.Unlock()

	c.logger.Info("Starting controller",
		"schedule_enabled", c.cfg.Schedule.Enabled,
		"ambient_enabled", c.cfg.AmbientAutoEnabled,
		"link_mode", c.cfg.LinkMode)

	c.applyStartupSetting()
	c.RefreshMonitors(true)

	if c.cfg.AmbientAutoEnabled && c.amb != nil {
		if _, ok := c.amb.Enable(ctx); !ok {
			c.mu.Lock()
			c.cfg.AmbientAutoEnabled = false
			c.saver.SaveNow(c.cfg)
			c.mu.Unlock()
		}
	}

	c.resolveLocationIfNeeded(ctx)
	c.scheduleTick(true)

	c.startCron()

	go c.run(c.stopChan, c.doneChan)
}

// Stop halts the loops and flushes pending persistence
func (c *Controller) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	stop := c.stopChan
	done := c.doneChan
	c.mu.Unlock()

	close(stop)
	<-done

	if c.cron != nil {
		c.cron.Stop()
	}
	if c.amb != nil {
		c.amb.Disable()
	}
	c.saver.Flush()
	c.logger.Info("Controller stopped")
}

func (c *Controller) run(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	scheduleTimer := time.NewTimer(c.scheduleInterval())
	defer scheduleTimer.Stop()

	ambientTicker := time.NewTicker(c.ambientTick)
	defer ambientTicker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-scheduleTimer.C:
			c.scheduleTick(false)
			scheduleTimer.Reset(c.scheduleInterval())
		case <-ambientTicker.C:
			c.ambientTickStep()
		}
	}
}

// scheduleInterval is short while the schedule is enabled so rule edges
// land on time, and relaxed otherwise
func (c *Controller) scheduleInterval() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cfg.Schedule.Enabled {
		return c.tickEnabled
	}
	return c.tickIdle
}

func (c *Controller) startCron() {
	c.cron = cron.New()

	// Location can drift (travel, VPN changes); refresh once a day
	c.cron.AddFunc("0 4 * * *", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		c.resolveLocationIfNeeded(ctx)
	})

	if c.recorder != nil {
		c.cron.AddFunc("30 4 * * *", func() {
			c.recorder.Prune(c.retention)
		})
	}

	c.cron.Start()
}

func (c *Controller) applyStartupSetting() {
	if !startup.SetEnabled(c.cfg.StartupEnabled) {
		c.logger.Warn("Could not update startup registration",
			"enabled", c.cfg.StartupEnabled)
	}
}

// Snapshot returns the current state for the tray, bridge and health
// endpoints
func (c *Controller) Snapshot() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() Status {
	status := Status{
		ScheduleStatus:   c.scheduleStatus,
		GlobalBrightness: c.cfg.LastGlobalBrightness,
		LinkMode:         c.cfg.LinkMode,
		ScheduleEnabled:  c.cfg.Schedule.Enabled,
		AmbientEnabled:   c.cfg.AmbientAutoEnabled,
	}
	if c.amb != nil {
		status.AmbientState = c.amb.State()
	} else {
		status.AmbientState = ambient.StateStopped
	}
	for _, handle := range c.handles {
		status.Monitors = append(status.Monitors, MonitorStatus{
			Key:   handle.Key,
			Name:  handle.Name,
			Level: c.levels[handle.Key],
		})
	}
	return status
}

func (c *Controller) notify() {
	status := c.Snapshot()
	for _, fn := range c.listeners {
		fn(status)
	}
}

// SetTheme normalizes and persists the UI theme
func (c *Controller) SetTheme(name string) {
	c.mu.Lock()
	c.cfg.Theme = model.NormalizeTheme(name)
	c.saver.SaveNow(c.cfg)
	c.mu.Unlock()
	c.notify()
}

// Theme returns the active theme name
func (c *Controller) Theme() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cfg.Theme
}

// SetStartupEnabled toggles launch-at-login registration
func (c *Controller) SetStartupEnabled(enabled bool) {
	c.mu.Lock()
	c.cfg.StartupEnabled = enabled
	c.saver.SaveNow(c.cfg)
	c.mu.Unlock()
	c.applyStartupSetting()
	c.notify()
}

// ReplaceConfig swaps in externally-reloaded state (config file watcher).
// Expected schedule targets are discarded so the next tick re-applies.
func (c *Controller) ReplaceConfig(cfg *model.AppConfig) {
	if cfg == nil {
		return
	}
	c.mu.Lock()
	if cfg.MonitorLevels == nil {
		cfg.MonitorLevels = make(map[string]int)
	}
	c.cfg = cfg
	c.expected = make(map[string]int)
	c.mu.Unlock()

	c.logger.Info("Configuration reloaded from disk")
	c.applyStartupSetting()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	c.syncAmbientWithConfig(ctx)
	c.resolveLocationIfNeeded(ctx)
	c.scheduleTick(true)
}

// syncAmbientWithConfig aligns the sensing engine with the persisted flag
// after an external reload
func (c *Controller) syncAmbientWithConfig(ctx context.Context) {
	if c.amb == nil {
		return
	}
	c.mu.Lock()
	want := c.cfg.AmbientAutoEnabled
	c.mu.Unlock()

	running := c.amb.State() == ambient.StateRunning
	switch {
	case want && !running:
		if _, ok := c.amb.Enable(ctx); !ok {
			c.mu.Lock()
			c.cfg.AmbientAutoEnabled = false
			c.saver.SaveNow(c.cfg)
			c.mu.Unlock()
		}
	case !want && running:
		c.amb.Disable()
	}
}
