package controller

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/saaga0h/lumitray/internal/ambient"
	"github.com/saaga0h/lumitray/internal/location"
	"github.com/saaga0h/lumitray/internal/model"
	"github.com/saaga0h/lumitray/internal/monitor"
	"github.com/saaga0h/lumitray/internal/schedule"
)

// journal records saver and monitor activity in call order so tests can
// assert ordering across components
type journal struct {
	entries []string
}

func (j *journal) add(entry string) {
	j.entries = append(j.entries, entry)
}

type fakeMonitors struct {
	journal *journal
	handles []monitor.Handle
	levels  map[string]int
	sets    int
}

func (f *fakeMonitors) Refresh() []monitor.Handle {
	return f.handles
}

func (f *fakeMonitors) Get(handle monitor.Handle) (int, bool) {
	level, ok := f.levels[handle.Key]
	return level, ok
}

func (f *fakeMonitors) Set(handle monitor.Handle, level int) bool {
	f.sets++
	f.levels[handle.Key] = level
	if f.journal != nil {
		f.journal.add(fmt.Sprintf("set:%s=%d", handle.Key, level))
	}
	return true
}

type fakeSaver struct {
	journal *journal
	saves   int
}

func (f *fakeSaver) SaveNow(cfg *model.AppConfig) {
	f.saves++
	if f.journal != nil {
		f.journal.add(fmt.Sprintf("save:linked=%v", cfg.LinkMode))
	}
}

func (f *fakeSaver) SaveSoon(cfg *model.AppConfig) {
	f.SaveNow(cfg)
}

func (f *fakeSaver) Flush() {}

type fakeAmbient struct {
	state     ambient.State
	enableOK  bool
	tickLevel int
	tickApply bool
	lux       float64
	hasLux    bool
}

func (f *fakeAmbient) State() ambient.State { return f.state }

func (f *fakeAmbient) Enable(ctx context.Context) (float64, bool) {
	if f.enableOK {
		f.state = ambient.StateRunning
	}
	return f.lux, f.enableOK
}

func (f *fakeAmbient) Disable() { f.state = ambient.StateStopped }

func (f *fakeAmbient) Tick() (int, bool) { return f.tickLevel, f.tickApply }

func (f *fakeAmbient) LatestLux() (float64, bool) { return f.lux, f.hasLux }

type fakeResolver struct {
	result *location.Context
	calls  int
}

func (f *fakeResolver) Resolve(ctx context.Context) *location.Context {
	f.calls++
	return f.result
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(discardWriter{}, nil))
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

func fixedRule(clock string, brightness int, target model.RuleTarget) model.ScheduleRule {
	return model.ScheduleRule{
		Anchor:       model.AnchorTime,
		SpecificTime: clock,
		Brightness:   brightness,
		Target:       target,
	}
}

func twoDisplays() []monitor.Handle {
	return []monitor.Handle{
		{Key: "ddc|Dell U2720Q|ABC123", Name: "Dell U2720Q", Method: model.MethodDDC},
		{Key: "internal|Built-in Display|", Name: "Built-in Display", Method: model.MethodInternal},
	}
}

func newTestController(cfg *model.AppConfig, handles []monitor.Handle) (*Controller, *fakeMonitors, *fakeSaver, *journal) {
	j := &journal{}
	monitors := &fakeMonitors{journal: j, handles: handles, levels: map[string]int{}}
	saver := &fakeSaver{journal: j}
	c := NewController(Options{
		Config:   cfg,
		Monitors: monitors,
		Schedule: schedule.NewEngine(discardLogger()),
		Saver:    saver,
		Logger:   discardLogger(),
	})
	c.now = func() time.Time {
		return time.Date(2026, time.March, 10, 12, 0, 0, 0, time.Local)
	}
	c.RefreshMonitors(false)
	j.entries = nil
	monitors.sets = 0
	saver.saves = 0
	return c, monitors, saver, j
}

func TestScheduleDisablesLinkModeOnDivergentTargets(t *testing.T) {
	cfg := model.DefaultAppConfig()
	cfg.LinkMode = true
	cfg.Schedule.Enabled = true
	cfg.Schedule.Gradual = false
	cfg.Schedule.Rules = []model.ScheduleRule{
		fixedRule("00:00", 40, model.TargetDisplay1),
		fixedRule("00:00", 60, model.TargetDisplay2),
	}

	c, monitors, _, j := newTestController(cfg, twoDisplays())
	c.scheduleTick(false)

	if cfg.LinkMode {
		t.Fatal("expected link mode to be disabled by divergent targets")
	}

	// The unlinked state must hit disk before any divergent value lands
	firstSave, firstSet := -1, -1
	for i, entry := range j.entries {
		if firstSave < 0 && strings.HasPrefix(entry, "save:") {
			firstSave = i
			if entry != "save:linked=false" {
				t.Errorf("first save recorded %q, want linked=false", entry)
			}
		}
		if firstSet < 0 && strings.HasPrefix(entry, "set:") {
			firstSet = i
		}
	}
	if firstSave < 0 || firstSet < 0 || firstSave > firstSet {
		t.Errorf("expected persist before apply, got journal %v", j.entries)
	}

	if got := monitors.levels["ddc|Dell U2720Q|ABC123"]; got != 40 {
		t.Errorf("display 1 level = %d, want 40", got)
	}
	if got := monitors.levels["internal|Built-in Display|"]; got != 60 {
		t.Errorf("display 2 level = %d, want 60", got)
	}
	if cfg.LastGlobalBrightness != 50 {
		t.Errorf("global brightness = %d, want rounded average 50", cfg.LastGlobalBrightness)
	}

	// Re-running the tick with unchanged targets must not flip link mode
	// again or re-apply
	sets := monitors.sets
	c.scheduleTick(false)
	if monitors.sets != sets {
		t.Errorf("unchanged targets re-applied: %d extra sets", monitors.sets-sets)
	}
}

func TestScheduleSkipsReapplyUntilTargetChanges(t *testing.T) {
	cfg := model.DefaultAppConfig()
	cfg.LinkMode = false
	cfg.Schedule.Enabled = true
	cfg.Schedule.Gradual = false
	cfg.Schedule.Rules = []model.ScheduleRule{fixedRule("08:00", 70, model.TargetBoth)}

	c, monitors, _, _ := newTestController(cfg, twoDisplays())
	c.scheduleTick(false)
	if monitors.sets != 2 {
		t.Fatalf("initial tick applied %d sets, want 2", monitors.sets)
	}

	c.scheduleTick(false)
	if monitors.sets != 2 {
		t.Errorf("second tick re-applied unchanged targets")
	}

	c.scheduleTick(true)
	if monitors.sets != 4 {
		t.Errorf("forced tick skipped re-apply, sets = %d, want 4", monitors.sets)
	}
}

func TestSchedulePausedWhileAmbientActive(t *testing.T) {
	cfg := model.DefaultAppConfig()
	cfg.Schedule.Enabled = true
	cfg.Schedule.Gradual = false
	cfg.Schedule.Rules = []model.ScheduleRule{fixedRule("08:00", 70, model.TargetBoth)}
	cfg.AmbientAutoEnabled = true

	c, monitors, _, _ := newTestController(cfg, twoDisplays())
	c.scheduleTick(false)

	if got := c.ScheduleStatus(); got != "Schedule: paused (Auto Light is active)." {
		t.Errorf("status = %q", got)
	}
	if monitors.sets != 0 {
		t.Errorf("schedule applied %d sets while ambient active", monitors.sets)
	}
}

func TestScheduleStatusOffWhenDisabled(t *testing.T) {
	cfg := model.DefaultAppConfig()
	c, _, _, _ := newTestController(cfg, twoDisplays())
	c.scheduleTick(false)

	if got := c.ScheduleStatus(); got != "Schedule: off" {
		t.Errorf("status = %q, want \"Schedule: off\"", got)
	}
}

func TestScheduleWaitsForLocationFix(t *testing.T) {
	cfg := model.DefaultAppConfig()
	cfg.Schedule.Enabled = true
	cfg.Schedule.Latitude = nil
	cfg.Schedule.Longitude = nil

	c, monitors, _, _ := newTestController(cfg, twoDisplays())
	c.scheduleTick(false)

	if got := c.ScheduleStatus(); got != "Schedule: waiting for location fix." {
		t.Errorf("status = %q", got)
	}
	if monitors.sets != 0 {
		t.Errorf("schedule applied %d sets without a location", monitors.sets)
	}
}

func TestManualLinkedChangeFansOut(t *testing.T) {
	cfg := model.DefaultAppConfig()
	cfg.LinkMode = true

	c, monitors, _, _ := newTestController(cfg, twoDisplays())
	c.SetMonitorBrightness("internal|Built-in Display|", 35)

	for key, level := range monitors.levels {
		if level != 35 {
			t.Errorf("display %s = %d, want 35", key, level)
		}
	}
	if cfg.LastGlobalBrightness != 35 {
		t.Errorf("global = %d, want 35", cfg.LastGlobalBrightness)
	}
}

func TestManualUnlinkedChangeStaysLocal(t *testing.T) {
	cfg := model.DefaultAppConfig()
	cfg.LinkMode = false

	c, monitors, _, _ := newTestController(cfg, twoDisplays())
	c.SetGlobalBrightness(80)
	c.SetMonitorBrightness("internal|Built-in Display|", 20)

	if got := monitors.levels["internal|Built-in Display|"]; got != 20 {
		t.Errorf("target display = %d, want 20", got)
	}
	if got := monitors.levels["ddc|Dell U2720Q|ABC123"]; got != 80 {
		t.Errorf("other display = %d, want untouched 80", got)
	}
	if cfg.LastGlobalBrightness != 50 {
		t.Errorf("global = %d, want average 50", cfg.LastGlobalBrightness)
	}
}

func TestAmbientTargetsPreferBuiltInPanel(t *testing.T) {
	cfg := model.DefaultAppConfig()
	cfg.LinkMode = false
	cfg.AmbientAutoEnabled = true

	c, monitors, _, _ := newTestController(cfg, twoDisplays())
	c.amb = &fakeAmbient{state: ambient.StateRunning, tickLevel: 45, tickApply: true}

	c.ambientTickStep()

	if got := monitors.levels["internal|Built-in Display|"]; got != 45 {
		t.Errorf("built-in panel = %d, want 45", got)
	}
	if got, ok := monitors.levels["ddc|Dell U2720Q|ABC123"]; ok && got == 45 {
		t.Error("external display driven while unlinked")
	}
}

func TestAmbientDrivesAllDisplaysWhileLinked(t *testing.T) {
	cfg := model.DefaultAppConfig()
	cfg.LinkMode = true
	cfg.AmbientAutoEnabled = true

	c, monitors, _, _ := newTestController(cfg, twoDisplays())
	c.amb = &fakeAmbient{state: ambient.StateRunning, tickLevel: 62, tickApply: true}

	c.ambientTickStep()

	for key, level := range monitors.levels {
		if level != 62 {
			t.Errorf("display %s = %d, want 62", key, level)
		}
	}
	if cfg.LastGlobalBrightness != 62 {
		t.Errorf("global = %d, want 62", cfg.LastGlobalBrightness)
	}
}

func TestSetAmbientEnabledFailsClosed(t *testing.T) {
	cfg := model.DefaultAppConfig()
	c, _, _, _ := newTestController(cfg, twoDisplays())
	c.amb = &fakeAmbient{enableOK: false}

	if c.SetAmbientEnabled(context.Background(), true) {
		t.Fatal("expected enable to fail when the probe fails")
	}
	if cfg.AmbientAutoEnabled {
		t.Error("ambient flag left on after failed probe")
	}
}

func TestResolveLocationSkipsNearbyFix(t *testing.T) {
	latitude := 60.1695
	longitude := 24.9354

	cfg := model.DefaultAppConfig()
	cfg.Schedule.Enabled = true
	cfg.Schedule.Latitude = &latitude
	cfg.Schedule.Longitude = &longitude

	c, _, saver, _ := newTestController(cfg, twoDisplays())
	resolver := &fakeResolver{result: &location.Context{
		Latitude:  latitude + 0.00005,
		Longitude: longitude - 0.00005,
	}}
	c.resolver = resolver

	c.resolveLocationIfNeeded(context.Background())

	if resolver.calls != 1 {
		t.Fatalf("resolver called %d times, want 1", resolver.calls)
	}
	if saver.saves != 0 {
		t.Errorf("near-identical fix persisted %d times", saver.saves)
	}
	if *cfg.Schedule.Latitude != latitude {
		t.Errorf("latitude rewritten to %v", *cfg.Schedule.Latitude)
	}
}

func TestResolveLocationStoresNewFix(t *testing.T) {
	cfg := model.DefaultAppConfig()
	cfg.Schedule.Enabled = true

	c, _, saver, _ := newTestController(cfg, twoDisplays())
	c.resolver = &fakeResolver{result: &location.Context{Latitude: 51.5072, Longitude: -0.1276}}

	c.resolveLocationIfNeeded(context.Background())

	if cfg.Schedule.Latitude == nil || *cfg.Schedule.Latitude != 51.5072 {
		t.Errorf("latitude not stored: %v", cfg.Schedule.Latitude)
	}
	if saver.saves == 0 {
		t.Error("new fix not persisted")
	}
}
