package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/saaga0h/lumitray/internal/model"
	"github.com/saaga0h/lumitray/internal/schedule"
)

const (
	appFolderName  = "lumitray"
	configFileName = "config.json"
)

// DefaultPath returns the per-user config file location
func DefaultPath() string {
	base, err := os.UserConfigDir()
	if err != nil {
		home, _ := os.UserHomeDir()
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, appFolderName, configFileName)
}

// Store persists the AppConfig as a JSON file. A missing or unreadable file
// is replaced with defaults; partially corrupt content is recovered
// field by field.
type Store struct {
	path   string
	logger *slog.Logger

	mu          sync.Mutex
	lastWritten []byte
}

// NewStore creates a store for the given path; empty path uses the default
func NewStore(path string, logger *slog.Logger) *Store {
	if path == "" {
		path = DefaultPath()
	}
	return &Store{path: path, logger: logger}
}

// Path returns the config file location
func (s *Store) Path() string {
	return s.path
}

// Load reads the persisted configuration. Absent or corrupt stores yield
// defaults and are immediately rewritten so the on-disk file is always valid.
func (s *Store) Load() *model.AppConfig {
	data, err := os.ReadFile(s.path)
	if err != nil {
		cfg := model.DefaultAppConfig()
		if saveErr := s.Save(cfg); saveErr != nil {
			s.logger.Warn("Could not write default config", "path", s.path, "error", saveErr)
		}
		return cfg
	}

	var raw rawConfig
	if err := json.Unmarshal(data, &raw); err != nil {
		s.logger.Warn("Config file unreadable, restoring defaults", "path", s.path, "error", err)
		cfg := model.DefaultAppConfig()
		if saveErr := s.Save(cfg); saveErr != nil {
			s.logger.Warn("Could not rewrite config", "path", s.path, "error", saveErr)
		}
		return cfg
	}

	return sanitize(&raw)
}

// Save writes the configuration atomically (temp file + rename)
func (s *Store) Save(cfg *model.AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	normalized := *cfg
	normalized.Theme = model.NormalizeTheme(cfg.Theme)
	normalized.LastGlobalBrightness = model.ClampBrightness(cfg.LastGlobalBrightness)
	normalized.MonitorLevels = make(map[string]int, len(cfg.MonitorLevels))
	for key, level := range cfg.MonitorLevels {
		normalized.MonitorLevels[key] = model.ClampBrightness(level)
	}

	data, err := json.MarshalIndent(&normalized, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("failed to replace config: %w", err)
	}

	s.mu.Lock()
	s.lastWritten = data
	s.mu.Unlock()
	return nil
}

// matchesLastWrite reports whether the given file content is exactly what
// this process last wrote. The watcher uses it to tell our own atomic
// renames apart from external edits.
func (s *Store) matchesLastWrite(data []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastWritten != nil && bytes.Equal(s.lastWritten, data)
}

// rawConfig mirrors the persisted layout with soft types so partial
// corruption never aborts the whole parse
type rawConfig struct {
	Version              *int             `json:"version"`
	Theme                *string          `json:"theme"`
	LinkMode             *bool            `json:"link_mode"`
	AmbientAutoEnabled   *bool            `json:"ambient_auto_enabled"`
	LastGlobalBrightness *int             `json:"last_global_brightness"`
	MonitorLevels        map[string]int   `json:"monitor_levels"`
	StartupEnabled       *bool            `json:"startup_enabled"`
	Schedule             *rawSchedule     `json:"schedule"`
}

type rawSchedule struct {
	Enabled      *bool           `json:"enabled"`
	Gradual      *bool           `json:"gradual"`
	AutoLocation *bool           `json:"auto_location"`
	Latitude     *float64        `json:"latitude"`
	Longitude    *float64        `json:"longitude"`
	Rules        json.RawMessage `json:"rules"`
}

type rawRule struct {
	Anchor        string  `json:"anchor"`
	OffsetMinutes *int    `json:"offset_minutes"`
	Brightness    *int    `json:"brightness"`
	Target        string  `json:"target"`
	SpecificTime  *string `json:"specific_time"`
}

func sanitize(raw *rawConfig) *model.AppConfig {
	cfg := model.DefaultAppConfig()

	if raw.Version != nil {
		cfg.Version = *raw.Version
	}
	if raw.Theme != nil {
		cfg.Theme = model.NormalizeTheme(*raw.Theme)
	}
	if raw.LinkMode != nil {
		cfg.LinkMode = *raw.LinkMode
	}
	if raw.AmbientAutoEnabled != nil {
		cfg.AmbientAutoEnabled = *raw.AmbientAutoEnabled
	}
	if raw.LastGlobalBrightness != nil {
		cfg.LastGlobalBrightness = model.ClampBrightness(*raw.LastGlobalBrightness)
	}
	if raw.MonitorLevels != nil {
		cfg.MonitorLevels = make(map[string]int, len(raw.MonitorLevels))
		for key, level := range raw.MonitorLevels {
			cfg.MonitorLevels[key] = model.ClampBrightness(level)
		}
	}
	if raw.StartupEnabled != nil {
		cfg.StartupEnabled = *raw.StartupEnabled
	}

	if raw.Schedule != nil {
		sched := model.DefaultScheduleSettings()
		if raw.Schedule.Enabled != nil {
			sched.Enabled = *raw.Schedule.Enabled
		}
		if raw.Schedule.Gradual != nil {
			sched.Gradual = *raw.Schedule.Gradual
		}
		if raw.Schedule.AutoLocation != nil {
			sched.AutoLocation = *raw.Schedule.AutoLocation
		}
		sched.Latitude = raw.Schedule.Latitude
		sched.Longitude = raw.Schedule.Longitude
		sched.Rules = sanitizeRules(raw.Schedule.Rules)
		cfg.Schedule = sched
	}

	return cfg
}

// sanitizeRules parses the persisted rule list, dropping entries with
// unknown anchors or unparsable fixed times. An empty or malformed list
// falls back to the default presets.
func sanitizeRules(raw json.RawMessage) []model.ScheduleRule {
	if len(raw) == 0 {
		return model.DefaultScheduleRules()
	}

	var rawRules []rawRule
	if err := json.Unmarshal(raw, &rawRules); err != nil {
		return model.DefaultScheduleRules()
	}

	parsed := make([]model.ScheduleRule, 0, len(rawRules))
	for _, entry := range rawRules {
		anchor := model.Anchor(entry.Anchor)
		if anchor != model.AnchorSunrise && anchor != model.AnchorSunset && anchor != model.AnchorTime {
			continue
		}

		rule := model.ScheduleRule{
			Anchor:     anchor,
			Brightness: 100,
			Target:     model.TargetBoth,
		}
		if entry.OffsetMinutes != nil {
			rule.OffsetMinutes = model.ClampOffsetMinutes(*entry.OffsetMinutes)
		}
		if entry.Brightness != nil {
			rule.Brightness = model.ClampBrightness(*entry.Brightness)
		}
		switch model.RuleTarget(entry.Target) {
		case model.TargetDisplay1, model.TargetDisplay2, model.TargetBoth:
			rule.Target = model.RuleTarget(entry.Target)
		}

		if anchor == model.AnchorTime {
			if entry.SpecificTime == nil {
				continue
			}
			hour, minute, ok := schedule.ParseClock(*entry.SpecificTime)
			if !ok {
				continue
			}
			rule.SpecificTime = fmt.Sprintf("%02d:%02d", hour, minute)
			rule.OffsetMinutes = 0
		}

		parsed = append(parsed, rule)
	}

	if len(parsed) == 0 {
		return model.DefaultScheduleRules()
	}
	return parsed
}
