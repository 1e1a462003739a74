package controller

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/saaga0h/lumitray/internal/model"
	"github.com/saaga0h/lumitray/internal/schedule"
)

const locationEpsilon = 1e-4

// SetScheduleEnabled toggles the automatic schedule and re-evaluates it
// immediately
func (c *Controller) SetScheduleEnabled(enabled bool) {
	c.mu.Lock()
	c.cfg.Schedule.Enabled = enabled
	c.saver.SaveNow(c.cfg)
	c.mu.Unlock()

	if enabled {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		c.resolveLocationIfNeeded(ctx)
	}
	c.scheduleTick(true)
	c.notify()
}

// ScheduleEnabled reports whether the automatic schedule is on
func (c *Controller) ScheduleEnabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cfg.Schedule.Enabled
}

// UpdateScheduleSettings replaces the schedule configuration wholesale
// (settings dialog, remote command). Rules come pre-sanitized from the
// store layer.
func (c *Controller) UpdateScheduleSettings(settings model.ScheduleSettings) {
	c.mu.Lock()
	c.cfg.Schedule = settings
	c.expected = make(map[string]int)
	c.saver.SaveNow(c.cfg)
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	c.resolveLocationIfNeeded(ctx)
	c.scheduleTick(true)
	c.notify()
}

// ScheduleStatus returns the line shown in the tray
func (c *Controller) ScheduleStatus() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.scheduleStatus
}

// ApplyScheduleNow forces a re-apply even when targets are unchanged
func (c *Controller) ApplyScheduleNow() {
	c.scheduleTick(true)
	c.notify()
}

// scheduleTick evaluates the schedule against the current time and applies
// any changed targets. Ambient control takes precedence while it is active.
func (c *Controller) scheduleTick(force bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cfg.AmbientAutoEnabled {
		if c.cfg.Schedule.Enabled {
			c.scheduleStatus = "Schedule: paused (Auto Light is active)."
		}
		c.expected = make(map[string]int)
		return
	}

	if !c.cfg.Schedule.Enabled {
		c.scheduleStatus = "Schedule: off"
		c.expected = make(map[string]int)
		return
	}

	targets := c.computeTargetsLocked(c.now())
	if len(targets) == 0 {
		if c.cfg.Schedule.HasSunRules() && !c.cfg.Schedule.HasLocation() {
			c.scheduleStatus = "Schedule: waiting for location fix."
			c.retryLocationLocked()
		} else {
			c.scheduleStatus = "Schedule: enabled, but no valid rule target for connected displays."
		}
		return
	}

	summary := c.formatTargetSummaryLocked(targets)

	// Divergent targets cannot coexist with linked sliders; drop the link
	// once, persisted, before the values land
	if c.cfg.LinkMode && hasDivergentTargets(targets) {
		c.cfg.LinkMode = false
		c.saver.SaveNow(c.cfg)
		c.logger.Info("Link mode disabled by divergent schedule targets")
	}

	if !force && targetsEqual(targets, c.expected) {
		c.scheduleStatus = fmt.Sprintf("Schedule: active (%s)", summary)
		return
	}

	applied := make([]int, 0, len(targets))
	for _, handle := range c.handles {
		level, ok := targets[handle.Key]
		if !ok {
			continue
		}
		if c.setLevelLocked(handle, level, sourceSchedule) {
			applied = append(applied, c.levels[handle.Key])
		}
	}
	if len(applied) > 0 {
		sum := 0
		for _, level := range applied {
			sum += level
		}
		average := int(math.Round(float64(sum) / float64(len(applied))))
		c.cfg.LastGlobalBrightness = model.ClampBrightness(average)
		c.saver.SaveNow(c.cfg)
	}

	c.expected = targets
	c.scheduleStatus = fmt.Sprintf("Schedule: active (%s)", summary)
}

// computeTargetsLocked resolves each connected display's target brightness
// under its scoped rules
func (c *Controller) computeTargetsLocked(now time.Time) map[string]int {
	targets := make(map[string]int)
	for i, handle := range c.handles {
		scoped := schedule.RulesForDisplay(c.cfg.Schedule.Rules, i)
		if len(scoped) == 0 {
			continue
		}
		value, ok := c.engine.TargetBrightness(c.cfg.Schedule, scoped, now)
		if !ok {
			continue
		}
		targets[handle.Key] = value
	}
	return targets
}

// formatTargetSummaryLocked renders "D1 62%, D2 58%" in enumeration order
func (c *Controller) formatTargetSummaryLocked(targets map[string]int) string {
	parts := make([]string, 0, len(targets))
	for i, handle := range c.handles {
		value, ok := targets[handle.Key]
		if !ok {
			continue
		}
		parts = append(parts, fmt.Sprintf("D%d %d%%", i+1, value))
	}
	return strings.Join(parts, ", ")
}

func hasDivergentTargets(targets map[string]int) bool {
	if len(targets) < 2 {
		return false
	}
	values := make([]int, 0, len(targets))
	for _, value := range targets {
		values = append(values, value)
	}
	sort.Ints(values)
	return values[0] != values[len(values)-1]
}

func targetsEqual(a, b map[string]int) bool {
	if len(a) != len(b) {
		return false
	}
	for key, value := range a {
		if other, ok := b[key]; !ok || other != value {
			return false
		}
	}
	return true
}

// locationRetryInterval spaces out lookups while the schedule sits waiting
// for a fix, so a flaky network is not hammered from the 1 s tick
const locationRetryInterval = 5 * time.Minute

// retryLocationLocked kicks off an asynchronous location lookup, at most
// once per retry interval. Caller holds the mutex; the lookup itself runs
// off-thread and re-enters through resolveLocationIfNeeded.
func (c *Controller) retryLocationLocked() {
	if c.resolver == nil || !c.cfg.Schedule.AutoLocation {
		return
	}
	if !c.lastLocationTry.IsZero() && c.now().Sub(c.lastLocationTry) < locationRetryInterval {
		return
	}
	c.lastLocationTry = c.now()

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		c.resolveLocationIfNeeded(ctx)
	}()
}

// resolveLocationIfNeeded fetches coordinates when sun-anchored rules are
// active without a stored fix. A result within ~10 m of the stored one is
// ignored to avoid churning the config file.
func (c *Controller) resolveLocationIfNeeded(ctx context.Context) {
	if c.resolver == nil {
		return
	}

	c.mu.Lock()
	needed := c.cfg.Schedule.Enabled &&
		c.cfg.Schedule.AutoLocation &&
		c.cfg.Schedule.HasSunRules()
	c.mu.Unlock()
	if !needed {
		return
	}

	loc := c.resolver.Resolve(ctx)
	if loc == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cfg.Schedule.Latitude != nil && c.cfg.Schedule.Longitude != nil &&
		math.Abs(*c.cfg.Schedule.Latitude-loc.Latitude) < locationEpsilon &&
		math.Abs(*c.cfg.Schedule.Longitude-loc.Longitude) < locationEpsilon {
		return
	}

	latitude := loc.Latitude
	longitude := loc.Longitude
	c.cfg.Schedule.Latitude = &latitude
	c.cfg.Schedule.Longitude = &longitude
	c.saver.SaveNow(c.cfg)
	c.logger.Info("Location updated", "location", loc.String())
}
