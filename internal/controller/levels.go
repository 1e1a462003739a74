package controller

import (
	"context"
	"math"

	"github.com/saaga0h/lumitray/internal/model"
	"github.com/saaga0h/lumitray/internal/monitor"
)

const (
	sourceManual   = "manual"
	sourceSchedule = "schedule"
	sourceAmbient  = "ambient"
)

// RefreshMonitors re-enumerates displays. With applySaved the persisted
// profile wins over the hardware's current level; otherwise the hardware
// reading seeds the state.
func (c *Controller) RefreshMonitors(applySaved bool) {
	handles := c.monitors.Refresh()

	c.mu.Lock()
	c.handles = handles
	c.levels = make(map[string]int)

	if len(handles) == 0 {
		c.logger.Warn("No compatible displays detected")
		c.mu.Unlock()
		c.notify()
		return
	}

	for _, handle := range handles {
		saved, hasSaved := c.cfg.MonitorLevels[handle.Key]
		current, hasCurrent := c.monitors.Get(handle)

		var level int
		switch {
		case applySaved && hasSaved:
			level = saved
		case hasCurrent:
			level = current
		case hasSaved:
			level = saved
		default:
			level = c.cfg.LastGlobalBrightness
		}
		c.levels[handle.Key] = model.ClampBrightness(level)
	}
	c.logger.Info("Detected displays", "count", len(handles))

	if applySaved {
		c.applySavedProfileLocked()
	} else {
		c.syncGlobalToAverageLocked()
	}
	c.mu.Unlock()
	c.notify()
}

// applySavedProfileLocked pushes the persisted levels out to the hardware
func (c *Controller) applySavedProfileLocked() {
	if len(c.handles) == 0 {
		return
	}
	if c.cfg.LinkMode {
		c.applyToAllLocked(c.cfg.LastGlobalBrightness, false)
		return
	}
	for _, handle := range c.handles {
		level, ok := c.cfg.MonitorLevels[handle.Key]
		if !ok {
			continue
		}
		c.setLevelLocked(handle, level, sourceManual)
	}
	c.syncGlobalToAverageLocked()
}

// setLevelLocked drives one display and records the outcome. A hardware
// failure keeps the previous level in state.
func (c *Controller) setLevelLocked(handle monitor.Handle, level int, source string) bool {
	bounded := model.ClampBrightness(level)
	if !c.monitors.Set(handle, bounded) {
		c.logger.Warn("Failed to set brightness",
			"monitor", handle.Key, "level", bounded)
		return false
	}
	c.levels[handle.Key] = bounded
	c.cfg.MonitorLevels[handle.Key] = bounded
	if c.recorder != nil {
		c.recorder.RecordLevel(handle.Key, bounded, source)
	}
	return true
}

// applyToAllLocked sets every display to the same level and moves the
// global value with it
func (c *Controller) applyToAllLocked(level int, persist bool) {
	bounded := model.ClampBrightness(level)
	for _, handle := range c.handles {
		c.setLevelLocked(handle, bounded, sourceManual)
	}
	c.cfg.LastGlobalBrightness = bounded
	if persist {
		c.saver.SaveNow(c.cfg)
	}
}

// syncGlobalToAverageLocked resets the global value to the rounded mean of
// the per-display levels
func (c *Controller) syncGlobalToAverageLocked() {
	if len(c.handles) == 0 {
		return
	}
	sum := 0
	for _, handle := range c.handles {
		sum += c.levels[handle.Key]
	}
	average := int(math.Round(float64(sum) / float64(len(c.handles))))
	c.cfg.LastGlobalBrightness = model.ClampBrightness(average)
}

// SetGlobalBrightness handles the combined slider: all displays follow it
func (c *Controller) SetGlobalBrightness(level int) {
	c.mu.Lock()
	c.applyToAllLocked(level, true)
	c.mu.Unlock()
	c.notify()
}

// SetMonitorBrightness handles a single display's slider. While linked the
// change fans out to every display.
func (c *Controller) SetMonitorBrightness(key string, level int) {
	c.mu.Lock()
	if c.cfg.LinkMode {
		c.applyToAllLocked(level, true)
		c.mu.Unlock()
		c.notify()
		return
	}

	var target *monitor.Handle
	for i := range c.handles {
		if c.handles[i].Key == key {
			target = &c.handles[i]
			break
		}
	}
	if target == nil {
		c.mu.Unlock()
		return
	}

	c.setLevelLocked(*target, level, sourceManual)
	c.syncGlobalToAverageLocked()
	c.saver.SaveNow(c.cfg)
	c.mu.Unlock()
	c.notify()
}

// SetLinkMode toggles linked control. Turning it on snaps every display to
// the current global value.
func (c *Controller) SetLinkMode(linked bool) {
	c.mu.Lock()
	c.cfg.LinkMode = linked
	if linked {
		c.applyToAllLocked(c.cfg.LastGlobalBrightness, true)
	} else {
		c.saver.SaveNow(c.cfg)
	}
	c.mu.Unlock()
	c.notify()
}

// LinkMode reports whether linked control is active
func (c *Controller) LinkMode() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cfg.LinkMode
}

// SetAmbientEnabled toggles sensor-driven control. Enabling probes the
// sensor first and fails closed, leaving the flag off.
func (c *Controller) SetAmbientEnabled(ctx context.Context, enabled bool) bool {
	if c.amb == nil {
		return false
	}
	if enabled {
		if _, ok := c.amb.Enable(ctx); !ok {
			c.mu.Lock()
			c.cfg.AmbientAutoEnabled = false
			c.saver.SaveNow(c.cfg)
			c.mu.Unlock()
			c.notify()
			return false
		}
		c.mu.Lock()
		c.cfg.AmbientAutoEnabled = true
		c.saver.SaveNow(c.cfg)
		c.mu.Unlock()
	} else {
		c.amb.Disable()
		c.mu.Lock()
		c.cfg.AmbientAutoEnabled = false
		c.saver.SaveNow(c.cfg)
		c.mu.Unlock()
	}
	c.scheduleTick(true)
	c.notify()
	return true
}

// AmbientEnabled reports whether sensor-driven control is on
func (c *Controller) AmbientEnabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cfg.AmbientAutoEnabled
}

// ambientTickStep advances the ambient pipeline one step and dispatches
// the conditioned level
func (c *Controller) ambientTickStep() {
	if c.amb == nil {
		return
	}

	c.mu.Lock()
	enabled := c.cfg.AmbientAutoEnabled
	hasDisplays := len(c.handles) > 0
	c.mu.Unlock()
	if !enabled || !hasDisplays {
		return
	}

	if c.recorder != nil {
		if lux, ok := c.amb.LatestLux(); ok {
			c.recorder.RecordSample(lux)
		}
	}

	level, apply := c.amb.Tick()
	if !apply {
		return
	}

	c.mu.Lock()
	targets := c.ambientTargetsLocked()
	if len(targets) == 0 {
		c.mu.Unlock()
		return
	}

	for _, handle := range targets {
		if c.levels[handle.Key] == level {
			continue
		}
		c.setLevelLocked(handle, level, sourceAmbient)
	}

	if c.cfg.LinkMode {
		c.cfg.LastGlobalBrightness = level
	} else {
		c.syncGlobalToAverageLocked()
	}
	c.saver.SaveSoon(c.cfg)
	c.mu.Unlock()
	c.notify()
}

// ambientTargetsLocked picks the displays ambient control drives: all of
// them while linked, otherwise the built-in panel, falling back to the
// first display
func (c *Controller) ambientTargetsLocked() []monitor.Handle {
	if len(c.handles) == 0 {
		return nil
	}
	if c.cfg.LinkMode {
		return c.handles
	}
	for _, handle := range c.handles {
		if handle.Method == model.MethodInternal {
			return []monitor.Handle{handle}
		}
	}
	return c.handles[:1]
}
