package schedule

import (
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/saaga0h/lumitray/internal/model"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func floatPtr(v float64) *float64 {
	return &v
}

// fixedRules builds a schedule around fixed clock times so tests do not
// depend on sun math
func fixedRules(entries ...model.ScheduleRule) model.ScheduleSettings {
	return model.ScheduleSettings{
		Enabled: true,
		Gradual: true,
		Rules:   entries,
	}
}

func timeRule(clock string, brightness int) model.ScheduleRule {
	return model.ScheduleRule{
		Anchor:       model.AnchorTime,
		Brightness:   brightness,
		Target:       model.TargetBoth,
		SpecificTime: clock,
	}
}

func TestTargetBrightness_DisabledReturnsNone(t *testing.T) {
	engine := NewEngine(testLogger())
	settings := fixedRules(timeRule("08:00", 80))
	settings.Enabled = false

	if _, ok := engine.TargetBrightness(settings, nil, time.Now()); ok {
		t.Error("Expected no target when schedule is disabled")
	}
}

func TestTargetBrightness_EmptyRulesReturnsNone(t *testing.T) {
	engine := NewEngine(testLogger())
	settings := model.ScheduleSettings{Enabled: true, Gradual: true}

	if _, ok := engine.TargetBrightness(settings, nil, time.Now()); ok {
		t.Error("Expected no target with an empty rule set")
	}
}

func TestTargetBrightness_SunRulesWithoutLocationReturnsNone(t *testing.T) {
	engine := NewEngine(testLogger())
	settings := model.ScheduleSettings{
		Enabled: true,
		Gradual: true,
		Rules: []model.ScheduleRule{
			{Anchor: model.AnchorSunrise, Brightness: 100, Target: model.TargetBoth},
		},
	}

	if _, ok := engine.TargetBrightness(settings, nil, time.Now()); ok {
		t.Error("Expected no target for sun-anchored rules without a location")
	}
}

func TestTargetBrightness_StepModeUsesMostRecentPoint(t *testing.T) {
	engine := NewEngine(testLogger())
	settings := fixedRules(timeRule("06:00", 10), timeRule("18:00", 90))
	settings.Gradual = false

	now := time.Date(2025, 3, 10, 12, 0, 0, 0, engine.Location())
	value, ok := engine.TargetBrightness(settings, nil, now)
	if !ok {
		t.Fatal("Expected a target")
	}
	if value != 10 {
		t.Errorf("Expected step value 10 from the 06:00 rule, got %d", value)
	}

	now = time.Date(2025, 3, 10, 19, 0, 0, 0, engine.Location())
	value, ok = engine.TargetBrightness(settings, nil, now)
	if !ok {
		t.Fatal("Expected a target")
	}
	if value != 90 {
		t.Errorf("Expected step value 90 from the 18:00 rule, got %d", value)
	}
}

func TestTargetBrightness_GradualMidpoint(t *testing.T) {
	engine := NewEngine(testLogger())
	settings := fixedRules(timeRule("08:00", 10), timeRule("10:00", 90))

	now := time.Date(2025, 3, 10, 9, 0, 0, 0, engine.Location())
	value, ok := engine.TargetBrightness(settings, nil, now)
	if !ok {
		t.Fatal("Expected a target")
	}
	if value < 49 || value > 51 {
		t.Errorf("Expected midpoint interpolation near 50, got %d", value)
	}
}

func TestTargetBrightness_GradualQuarterPoint(t *testing.T) {
	engine := NewEngine(testLogger())
	settings := fixedRules(timeRule("08:00", 0), timeRule("12:00", 100))

	now := time.Date(2025, 3, 10, 9, 0, 0, 0, engine.Location())
	value, ok := engine.TargetBrightness(settings, nil, now)
	if !ok {
		t.Fatal("Expected a target")
	}
	if value != 25 {
		t.Errorf("Expected 25 at the quarter point, got %d", value)
	}
}

func TestTargetBrightness_WrapsAcrossMidnight(t *testing.T) {
	engine := NewEngine(testLogger())
	// Single daily point: before it fires today, the previous day's instance
	// is the most recent past point.
	settings := fixedRules(timeRule("22:00", 30))
	settings.Gradual = false

	now := time.Date(2025, 3, 10, 3, 0, 0, 0, engine.Location())
	value, ok := engine.TargetBrightness(settings, nil, now)
	if !ok {
		t.Fatal("Expected a target")
	}
	if value != 30 {
		t.Errorf("Expected yesterday's 22:00 point to hold, got %d", value)
	}
}

func TestTargetBrightness_GradualAcrossMidnight(t *testing.T) {
	engine := NewEngine(testLogger())
	settings := fixedRules(timeRule("22:00", 20), timeRule("06:00", 80))

	// 02:00 is halfway through the 22:00 -> 06:00 window.
	now := time.Date(2025, 3, 10, 2, 0, 0, 0, engine.Location())
	value, ok := engine.TargetBrightness(settings, nil, now)
	if !ok {
		t.Fatal("Expected a target")
	}
	if value < 49 || value > 51 {
		t.Errorf("Expected midpoint near 50 across midnight, got %d", value)
	}
}

func TestTargetBrightness_BrightnessClamped(t *testing.T) {
	engine := NewEngine(testLogger())
	settings := fixedRules(timeRule("00:00", 400))
	settings.Gradual = false

	now := time.Date(2025, 3, 10, 6, 0, 0, 0, engine.Location())
	value, ok := engine.TargetBrightness(settings, nil, now)
	if !ok {
		t.Fatal("Expected a target")
	}
	if value != 100 {
		t.Errorf("Expected rule brightness clamped to 100, got %d", value)
	}
}

func TestTargetBrightness_InvalidSpecificTimeSkipped(t *testing.T) {
	engine := NewEngine(testLogger())
	settings := fixedRules(timeRule("25:99", 70))

	if _, ok := engine.TargetBrightness(settings, nil, time.Now()); ok {
		t.Error("Expected no target when every rule has an unparsable time")
	}
}

func TestTargetBrightness_SunAnchoredWithLocation(t *testing.T) {
	engine := NewEngine(testLogger())
	settings := model.ScheduleSettings{
		Enabled:   true,
		Gradual:   false,
		Latitude:  floatPtr(60.1695),
		Longitude: floatPtr(24.9354),
		Rules: []model.ScheduleRule{
			{Anchor: model.AnchorSunrise, Brightness: 100, Target: model.TargetBoth},
			{Anchor: model.AnchorSunset, OffsetMinutes: 30, Brightness: 40, Target: model.TargetBoth},
		},
	}

	// An equinox date keeps sunrise/sunset well-defined even at 60°N.
	now := time.Date(2025, 3, 20, 12, 0, 0, 0, engine.Location())
	value, ok := engine.TargetBrightness(settings, nil, now)
	if !ok {
		t.Fatal("Expected a target for sun rules with a valid location")
	}
	if value != 100 && value != 40 {
		t.Errorf("Expected one of the rule brightness values, got %d", value)
	}
}

func TestClampBrightness_Idempotent(t *testing.T) {
	for _, input := range []int{-50, -1, 0, 1, 50, 99, 100, 101, 1000} {
		once := model.ClampBrightness(input)
		if once < 0 || once > 100 {
			t.Errorf("Clamp(%d) = %d out of range", input, once)
		}
		if twice := model.ClampBrightness(once); twice != once {
			t.Errorf("Clamp not idempotent for %d: %d != %d", input, twice, once)
		}
	}
}

func TestParseClock(t *testing.T) {
	cases := []struct {
		input  string
		hour   int
		minute int
		ok     bool
	}{
		{"00:00", 0, 0, true},
		{"7:05", 7, 5, true},
		{"23:59", 23, 59, true},
		{"24:00", 0, 0, false},
		{"12:60", 0, 0, false},
		{"12", 0, 0, false},
		{"12:3", 0, 0, false},
		{"", 0, 0, false},
		{"ab:cd", 0, 0, false},
	}

	for _, tc := range cases {
		hour, minute, ok := ParseClock(tc.input)
		if ok != tc.ok {
			t.Errorf("ParseClock(%q) ok = %v, expected %v", tc.input, ok, tc.ok)
			continue
		}
		if ok && (hour != tc.hour || minute != tc.minute) {
			t.Errorf("ParseClock(%q) = %d:%d, expected %d:%d", tc.input, hour, minute, tc.hour, tc.minute)
		}
	}
}

func TestRulesForDisplay(t *testing.T) {
	rules := []model.ScheduleRule{
		{Anchor: model.AnchorTime, SpecificTime: "08:00", Brightness: 10, Target: model.TargetDisplay1},
		{Anchor: model.AnchorTime, SpecificTime: "09:00", Brightness: 20, Target: model.TargetDisplay2},
		{Anchor: model.AnchorTime, SpecificTime: "10:00", Brightness: 30, Target: model.TargetBoth},
	}

	first := RulesForDisplay(rules, 0)
	if len(first) != 2 {
		t.Fatalf("Expected 2 rules for display 0, got %d", len(first))
	}
	second := RulesForDisplay(rules, 1)
	if len(second) != 2 {
		t.Fatalf("Expected 2 rules for display 1, got %d", len(second))
	}
	third := RulesForDisplay(rules, 2)
	if len(third) != 1 || third[0].Target != model.TargetBoth {
		t.Fatalf("Expected only shared rules for display 2, got %d", len(third))
	}
}
