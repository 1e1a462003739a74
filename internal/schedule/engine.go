package schedule

import (
	"log/slog"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/sixdouglas/suncalc"

	"github.com/saaga0h/lumitray/internal/model"
)

// point is one resolved anchor: an instant and the brightness to hold there
type point struct {
	at         time.Time
	brightness int
}

// Engine evaluates schedule rules into a target brightness for "now".
// It performs no monitor I/O; callers apply and persist the result.
type Engine struct {
	loc    *time.Location
	logger *slog.Logger
}

// NewEngine creates a schedule engine. The schedule timezone is resolved
// once here, not per evaluation.
func NewEngine(logger *slog.Logger) *Engine {
	return &Engine{
		loc:    time.Local,
		logger: logger,
	}
}

// Location returns the fixed schedule timezone
func (e *Engine) Location() *time.Location {
	return e.loc
}

// TargetBrightness computes the interpolated target for now from the given
// rule subset. The caller filters rules by display target beforehand; this
// function is target-agnostic. ok is false when the schedule is disabled,
// no rules are given, sun-anchored rules lack a location, or no anchor
// resolves for any of the surrounding days.
func (e *Engine) TargetBrightness(settings model.ScheduleSettings, rules []model.ScheduleRule, now time.Time) (int, bool) {
	if !settings.Enabled {
		return 0, false
	}
	if rules == nil {
		rules = settings.Rules
	}
	if len(rules) == 0 {
		return 0, false
	}

	usesSun := false
	for _, rule := range rules {
		if rule.UsesSunEvent() {
			usesSun = true
			break
		}
	}
	if usesSun && !settings.HasLocation() {
		return 0, false
	}

	current := now.In(e.loc)

	var points []point
	for dayOffset := -1; dayOffset <= 1; dayOffset++ {
		day := current.AddDate(0, 0, dayOffset)

		var sunrise, sunset time.Time
		haveSun := false
		if usesSun {
			sunrise, sunset, haveSun = e.sunEvents(day, *settings.Latitude, *settings.Longitude)
		}

		for _, rule := range rules {
			switch rule.Anchor {
			case model.AnchorTime:
				hour, minute, ok := ParseClock(rule.SpecificTime)
				if !ok {
					continue
				}
				at := time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, e.loc)
				points = append(points, point{at: at, brightness: model.ClampBrightness(rule.Brightness)})
			case model.AnchorSunrise, model.AnchorSunset:
				if !haveSun {
					continue
				}
				at := sunrise
				if rule.Anchor == model.AnchorSunset {
					at = sunset
				}
				at = at.Add(time.Duration(rule.OffsetMinutes) * time.Minute)
				points = append(points, point{at: at, brightness: model.ClampBrightness(rule.Brightness)})
			}
		}
	}

	if len(points) == 0 {
		return 0, false
	}

	sort.Slice(points, func(i, j int) bool {
		return points[i].at.Before(points[j].at)
	})

	// Previous defaults to the earliest point, following to the latest, so
	// day-boundary wraparound falls out of the adjacent-day points instead
	// of modular arithmetic.
	previous := points[0]
	following := points[len(points)-1]
	for _, p := range points {
		if !p.at.After(current) {
			previous = p
			continue
		}
		following = p
		break
	}

	if !settings.Gradual {
		return previous.brightness, true
	}
	return interpolate(current, previous, following), true
}

// sunEvents resolves sunrise and sunset instants for the given day. ok is
// false for polar day/night conditions where the library yields no usable
// instants; the evaluator skips that day's sun rules.
func (e *Engine) sunEvents(day time.Time, latitude, longitude float64) (sunrise, sunset time.Time, ok bool) {
	noon := time.Date(day.Year(), day.Month(), day.Day(), 12, 0, 0, 0, e.loc)
	times := suncalc.GetTimes(noon, latitude, longitude)

	sunrise = times[suncalc.Sunrise].Value
	sunset = times[suncalc.Sunset].Value
	if !usableInstant(sunrise) || !usableInstant(sunset) {
		e.logger.Debug("Sun events unavailable for day",
			"date", noon.Format("2006-01-02"),
			"latitude", latitude,
			"longitude", longitude)
		return time.Time{}, time.Time{}, false
	}
	return sunrise.In(e.loc), sunset.In(e.loc), true
}

// usableInstant filters the zero/NaN-derived values the sun calculation
// produces when an event does not occur on a given day
func usableInstant(t time.Time) bool {
	if t.IsZero() {
		return false
	}
	year := t.Year()
	return year > 1900 && year < 3000
}

// interpolate blends linearly between the bounding points by elapsed-time
// ratio. A degenerate window (following at or before previous) returns the
// following value directly.
func interpolate(current time.Time, previous, following point) int {
	if !following.at.After(previous.at) {
		return model.ClampBrightness(following.brightness)
	}

	elapsed := current.Sub(previous.at).Seconds()
	duration := following.at.Sub(previous.at).Seconds()
	ratio := elapsed / duration
	if ratio < 0 {
		ratio = 0
	}
	if ratio > 1 {
		ratio = 1
	}
	blended := float64(previous.brightness) + float64(following.brightness-previous.brightness)*ratio
	return model.ClampBrightness(int(math.Round(blended)))
}

// ParseClock parses a strict H:MM / HH:MM string into hour and minute
func ParseClock(value string) (hour, minute int, ok bool) {
	text := strings.TrimSpace(value)
	if text == "" {
		return 0, 0, false
	}
	parts := strings.SplitN(text, ":", 2)
	if len(parts) != 2 || len(parts[0]) == 0 || len(parts[0]) > 2 || len(parts[1]) != 2 {
		return 0, 0, false
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, false
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, false
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, 0, false
	}
	return hour, minute, true
}

// RulesForDisplay returns the subset of rules that apply to the display at
// the given enumeration index. Displays beyond the second only follow rules
// targeting both.
func RulesForDisplay(rules []model.ScheduleRule, displayIndex int) []model.ScheduleRule {
	var allowed model.RuleTarget
	switch displayIndex {
	case 0:
		allowed = model.TargetDisplay1
	case 1:
		allowed = model.TargetDisplay2
	default:
		allowed = ""
	}

	scoped := make([]model.ScheduleRule, 0, len(rules))
	for _, rule := range rules {
		if rule.Target == model.TargetBoth || (allowed != "" && rule.Target == allowed) {
			scoped = append(scoped, rule)
		}
	}
	return scoped
}
