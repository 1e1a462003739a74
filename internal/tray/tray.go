package tray

import (
	"context"
	"log/slog"
	"time"

	"github.com/getlantern/systray"

	"github.com/saaga0h/lumitray/internal/controller"
)

// Daemon is the slice of the controller the tray menu drives
type Daemon interface {
	Snapshot() controller.Status
	SetAmbientEnabled(ctx context.Context, enabled bool) bool
	SetScheduleEnabled(enabled bool)
	ApplyScheduleNow()
	RefreshMonitors(applySaved bool)
}

// App owns the tray icon and menu. Run blocks the calling goroutine, which
// must be main on macOS and Windows.
type App struct {
	daemon Daemon
	logger *slog.Logger

	onStart func()
	onExit  func()

	statusItem   *systray.MenuItem
	ambientItem  *systray.MenuItem
	scheduleItem *systray.MenuItem
}

// NewApp creates the tray application. onStart runs once the tray is ready;
// onExit runs when the user quits.
func NewApp(daemon Daemon, logger *slog.Logger, onStart, onExit func()) *App {
	return &App{
		daemon:  daemon,
		logger:  logger,
		onStart: onStart,
		onExit:  onExit,
	}
}

// Run starts the tray loop. Blocks until Quit.
func (a *App) Run() {
	systray.Run(a.onReady, a.onQuit)
}

// Quit signals the tray to exit
func (a *App) Quit() {
	systray.Quit()
}

func (a *App) onReady() {
	systray.SetIcon(iconBytes())
	systray.SetTitle("Lumitray")
	systray.SetTooltip("Lumitray brightness control")

	header := systray.AddMenuItem("Lumitray", "")
	header.Disable()

	a.statusItem = systray.AddMenuItem("Schedule: off", "")
	a.statusItem.Disable()

	systray.AddSeparator()

	a.ambientItem = systray.AddMenuItemCheckbox("Auto Light", "Drive brightness from the ambient light sensor", false)
	a.scheduleItem = systray.AddMenuItemCheckbox("Enable Schedule", "Follow the sunrise/sunset schedule", false)

	applyItem := systray.AddMenuItem("Apply Schedule Now", "Re-apply the schedule immediately")
	refreshItem := systray.AddMenuItem("Refresh Monitors", "Re-detect connected displays")

	systray.AddSeparator()

	quitItem := systray.AddMenuItem("Quit", "Exit Lumitray")

	if a.onStart != nil {
		a.onStart()
	}
	a.Update(a.daemon.Snapshot())

	go func() {
		for {
			select {
			case <-a.ambientItem.ClickedCh:
				a.toggleAmbient()
			case <-a.scheduleItem.ClickedCh:
				a.toggleSchedule()
			case <-applyItem.ClickedCh:
				a.daemon.ApplyScheduleNow()
			case <-refreshItem.ClickedCh:
				a.daemon.RefreshMonitors(false)
			case <-quitItem.ClickedCh:
				systray.Quit()
				return
			}
		}
	}()
}

func (a *App) onQuit() {
	if a.onExit != nil {
		a.onExit()
	}
	a.logger.Info("Tray exited")
}

func (a *App) toggleAmbient() {
	enable := !a.ambientItem.Checked()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if !a.daemon.SetAmbientEnabled(ctx, enable) && enable {
		a.logger.Warn("Auto Light not enabled, sensor unavailable")
	}
	a.Update(a.daemon.Snapshot())
}

func (a *App) toggleSchedule() {
	a.daemon.SetScheduleEnabled(!a.scheduleItem.Checked())
	a.Update(a.daemon.Snapshot())
}

// Update mirrors a controller snapshot into the menu. Registered as a
// controller listener, so it also runs off the tray goroutine; systray
// item updates are safe from any goroutine.
func (a *App) Update(status controller.Status) {
	if a.statusItem == nil {
		return
	}
	a.statusItem.SetTitle(status.ScheduleStatus)

	if status.AmbientEnabled {
		a.ambientItem.Check()
	} else {
		a.ambientItem.Uncheck()
	}
	if status.ScheduleEnabled {
		a.scheduleItem.Check()
	} else {
		a.scheduleItem.Uncheck()
	}
}
