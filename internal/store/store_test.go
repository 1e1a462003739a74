package store

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saaga0h/lumitray/internal/model"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	path := filepath.Join(t.TempDir(), "config.json")
	return NewStore(path, logger)
}

func TestLoad_MissingFileWritesDefaults(t *testing.T) {
	store := testStore(t)

	cfg := store.Load()
	require.NotNil(t, cfg)
	assert.True(t, cfg.LinkMode)
	assert.Equal(t, 100, cfg.LastGlobalBrightness)
	assert.Len(t, cfg.Schedule.Rules, 6)

	// The defaults must now exist on disk.
	_, err := os.Stat(store.Path())
	require.NoError(t, err)
}

func TestLoad_CorruptFileRestoresDefaults(t *testing.T) {
	store := testStore(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(store.Path()), 0o755))
	require.NoError(t, os.WriteFile(store.Path(), []byte("{not json"), 0o644))

	cfg := store.Load()
	require.NotNil(t, cfg)
	assert.Equal(t, model.ThemeDark, cfg.Theme)

	// Rewritten file parses cleanly on the next load.
	again := store.Load()
	assert.Equal(t, cfg.Theme, again.Theme)
	assert.Equal(t, cfg.LastGlobalBrightness, again.LastGlobalBrightness)
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	store := testStore(t)

	lat := 60.1695
	lon := 24.9354
	cfg := model.DefaultAppConfig()
	cfg.Theme = model.ThemeSand
	cfg.LinkMode = false
	cfg.AmbientAutoEnabled = true
	cfg.LastGlobalBrightness = 73
	cfg.MonitorLevels = map[string]int{
		"internal|Built-in Display|intel_backlight": 40,
		"ddc|DELL U2720Q|ABC123":                    80,
	}
	cfg.StartupEnabled = false
	cfg.Schedule.Enabled = true
	cfg.Schedule.Gradual = false
	cfg.Schedule.AutoLocation = false
	cfg.Schedule.Latitude = &lat
	cfg.Schedule.Longitude = &lon
	cfg.Schedule.Rules = []model.ScheduleRule{
		{Anchor: model.AnchorSunrise, OffsetMinutes: -45, Brightness: 60, Target: model.TargetDisplay1},
		{Anchor: model.AnchorTime, Brightness: 30, Target: model.TargetBoth, SpecificTime: "21:30"},
	}

	require.NoError(t, store.Save(cfg))
	loaded := store.Load()

	assert.Equal(t, cfg.Theme, loaded.Theme)
	assert.Equal(t, cfg.LinkMode, loaded.LinkMode)
	assert.Equal(t, cfg.AmbientAutoEnabled, loaded.AmbientAutoEnabled)
	assert.Equal(t, cfg.LastGlobalBrightness, loaded.LastGlobalBrightness)
	assert.Equal(t, cfg.MonitorLevels, loaded.MonitorLevels)
	assert.Equal(t, cfg.StartupEnabled, loaded.StartupEnabled)
	assert.Equal(t, cfg.Schedule.Enabled, loaded.Schedule.Enabled)
	assert.Equal(t, cfg.Schedule.Gradual, loaded.Schedule.Gradual)
	require.NotNil(t, loaded.Schedule.Latitude)
	assert.InDelta(t, lat, *loaded.Schedule.Latitude, 1e-9)
	require.NotNil(t, loaded.Schedule.Longitude)
	assert.InDelta(t, lon, *loaded.Schedule.Longitude, 1e-9)
	assert.Equal(t, cfg.Schedule.Rules, loaded.Schedule.Rules)

	// save(load(save(cfg))) is byte-stable.
	first, err := os.ReadFile(store.Path())
	require.NoError(t, err)
	require.NoError(t, store.Save(loaded))
	second, err := os.ReadFile(store.Path())
	require.NoError(t, err)
	assert.Equal(t, string(first), string(second))
}

func TestSaveSoon_SnapshotDetachedFromLiveConfig(t *testing.T) {
	store := testStore(t)
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	debouncer := NewDebouncer(store, logger)

	cfg := model.DefaultAppConfig()
	cfg.MonitorLevels["ddc|DELL U2720Q|ABC123"] = 10
	// Opens the throttle window so the next SaveSoon goes pending.
	debouncer.SaveNow(cfg)

	cfg.MonitorLevels["ddc|DELL U2720Q|ABC123"] = 42
	debouncer.SaveSoon(cfg)

	// Mutations after SaveSoon must not reach the pending snapshot: the
	// flush goroutine reads it while the controller keeps writing cfg.
	cfg.MonitorLevels["ddc|DELL U2720Q|ABC123"] = 99
	cfg.MonitorLevels["internal|Built-in Display|"] = 5
	cfg.Schedule.Rules[0].Brightness = 1
	debouncer.Flush()

	loaded := store.Load()
	assert.Equal(t, 42, loaded.MonitorLevels["ddc|DELL U2720Q|ABC123"])
	assert.NotContains(t, loaded.MonitorLevels, "internal|Built-in Display|")
	assert.Equal(t, 50, loaded.Schedule.Rules[0].Brightness)
}

func TestLoad_InvalidRulesFallBackToPresets(t *testing.T) {
	store := testStore(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(store.Path()), 0o755))
	payload := `{
		"version": 1,
		"schedule": {
			"enabled": true,
			"rules": [
				{"anchor": "noon", "brightness": 50, "target": "both"},
				{"anchor": "time", "brightness": 50, "target": "both", "specific_time": "25:00"}
			]
		}
	}`
	require.NoError(t, os.WriteFile(store.Path(), []byte(payload), 0o644))

	cfg := store.Load()
	assert.True(t, cfg.Schedule.Enabled)
	assert.Equal(t, model.DefaultScheduleRules(), cfg.Schedule.Rules)
}

func TestLoad_RuleSanitation(t *testing.T) {
	store := testStore(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(store.Path()), 0o755))
	payload := `{
		"schedule": {
			"rules": [
				{"anchor": "sunrise", "offset_minutes": 99999, "brightness": 500, "target": "everything"},
				{"anchor": "time", "offset_minutes": 15, "brightness": 20, "target": "display2", "specific_time": "7:05"}
			]
		}
	}`
	require.NoError(t, os.WriteFile(store.Path(), []byte(payload), 0o644))

	cfg := store.Load()
	require.Len(t, cfg.Schedule.Rules, 2)

	sunrise := cfg.Schedule.Rules[0]
	assert.Equal(t, 1440, sunrise.OffsetMinutes)
	assert.Equal(t, 100, sunrise.Brightness)
	assert.Equal(t, model.TargetBoth, sunrise.Target)

	fixed := cfg.Schedule.Rules[1]
	assert.Equal(t, "07:05", fixed.SpecificTime)
	assert.Equal(t, 0, fixed.OffsetMinutes, "fixed-time rules carry no offset")
	assert.Equal(t, model.TargetDisplay2, fixed.Target)
}
