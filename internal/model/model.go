package model

// Anchor identifies the time basis of a schedule rule
type Anchor string

const (
	AnchorSunrise Anchor = "sunrise"
	AnchorSunset  Anchor = "sunset"
	AnchorTime    Anchor = "time"
)

// RuleTarget selects which display(s) a schedule rule applies to
type RuleTarget string

const (
	TargetDisplay1 RuleTarget = "display1"
	TargetDisplay2 RuleTarget = "display2"
	TargetBoth     RuleTarget = "both"
)

// ControlMethod identifies how a monitor's brightness is driven
type ControlMethod string

const (
	// MethodInternal covers OS-managed panels (laptop backlights)
	MethodInternal ControlMethod = "internal"
	// MethodDDC covers external displays driven over DDC/CI (VCP 0x10)
	MethodDDC ControlMethod = "ddc"
)

// ClampBrightness bounds a brightness value to the 0-100 range
func ClampBrightness(value int) int {
	if value < 0 {
		return 0
	}
	if value > 100 {
		return 100
	}
	return value
}

// ClampOffsetMinutes bounds a rule offset to one day in either direction
func ClampOffsetMinutes(minutes int) int {
	if minutes < -1440 {
		return -1440
	}
	if minutes > 1440 {
		return 1440
	}
	return minutes
}

// ScheduleRule is one user-defined brightness point anchored to a sun event
// or a fixed daily time. SpecificTime is set exactly when Anchor is "time",
// in which case OffsetMinutes is zero.
type ScheduleRule struct {
	Anchor        Anchor     `json:"anchor"`
	OffsetMinutes int        `json:"offset_minutes"`
	Brightness    int        `json:"brightness"`
	Target        RuleTarget `json:"target"`
	SpecificTime  string     `json:"specific_time,omitempty"`
}

// UsesSunEvent reports whether the rule needs sunrise/sunset resolution
func (r ScheduleRule) UsesSunEvent() bool {
	return r.Anchor == AnchorSunrise || r.Anchor == AnchorSunset
}

// ScheduleSettings holds the persisted scheduling configuration
type ScheduleSettings struct {
	Enabled      bool           `json:"enabled"`
	Gradual      bool           `json:"gradual"`
	AutoLocation bool           `json:"auto_location"`
	Latitude     *float64       `json:"latitude"`
	Longitude    *float64       `json:"longitude"`
	Rules        []ScheduleRule `json:"rules"`
}

// HasSunRules reports whether any rule is anchored to a sun event
func (s ScheduleSettings) HasSunRules() bool {
	for _, rule := range s.Rules {
		if rule.UsesSunEvent() {
			return true
		}
	}
	return false
}

// HasLocation reports whether both coordinates are present
func (s ScheduleSettings) HasLocation() bool {
	return s.Latitude != nil && s.Longitude != nil
}

// AppConfig is the persisted application state. A single controller owns the
// live instance; background workers hand values back instead of mutating it.
type AppConfig struct {
	Version              int              `json:"version"`
	Theme                string           `json:"theme"`
	LinkMode             bool             `json:"link_mode"`
	AmbientAutoEnabled   bool             `json:"ambient_auto_enabled"`
	LastGlobalBrightness int              `json:"last_global_brightness"`
	MonitorLevels        map[string]int   `json:"monitor_levels"`
	StartupEnabled       bool             `json:"startup_enabled"`
	Schedule             ScheduleSettings `json:"schedule"`
}

// Clone returns a deep copy that shares no mutable state with the
// receiver, safe to hand to another goroutine
func (c *AppConfig) Clone() *AppConfig {
	clone := *c
	clone.MonitorLevels = make(map[string]int, len(c.MonitorLevels))
	for key, level := range c.MonitorLevels {
		clone.MonitorLevels[key] = level
	}
	clone.Schedule.Rules = append([]ScheduleRule(nil), c.Schedule.Rules...)
	if c.Schedule.Latitude != nil {
		lat := *c.Schedule.Latitude
		clone.Schedule.Latitude = &lat
	}
	if c.Schedule.Longitude != nil {
		lon := *c.Schedule.Longitude
		clone.Schedule.Longitude = &lon
	}
	return &clone
}

// DefaultScheduleRules returns the preset ramp around sunrise and sunset
func DefaultScheduleRules() []ScheduleRule {
	return []ScheduleRule{
		{Anchor: AnchorSunrise, OffsetMinutes: -60, Brightness: 50, Target: TargetBoth},
		{Anchor: AnchorSunrise, OffsetMinutes: -30, Brightness: 75, Target: TargetBoth},
		{Anchor: AnchorSunrise, OffsetMinutes: 0, Brightness: 100, Target: TargetBoth},
		{Anchor: AnchorSunset, OffsetMinutes: 0, Brightness: 100, Target: TargetBoth},
		{Anchor: AnchorSunset, OffsetMinutes: 30, Brightness: 75, Target: TargetBoth},
		{Anchor: AnchorSunset, OffsetMinutes: 60, Brightness: 50, Target: TargetBoth},
	}
}

// DefaultScheduleSettings returns schedule defaults: disabled, gradual
// transitions, automatic location, preset rules
func DefaultScheduleSettings() ScheduleSettings {
	return ScheduleSettings{
		Enabled:      false,
		Gradual:      true,
		AutoLocation: true,
		Rules:        DefaultScheduleRules(),
	}
}

// DefaultAppConfig returns the configuration written on first run or after
// an unreadable store
func DefaultAppConfig() *AppConfig {
	return &AppConfig{
		Version:              1,
		Theme:                ThemeDark,
		LinkMode:             true,
		AmbientAutoEnabled:   false,
		LastGlobalBrightness: 100,
		MonitorLevels:        make(map[string]int),
		StartupEnabled:       true,
		Schedule:             DefaultScheduleSettings(),
	}
}
