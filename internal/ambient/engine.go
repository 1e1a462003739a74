package ambient

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// State is the ambient engine lifecycle state
type State string

const (
	StateStopped State = "stopped"
	StateProbing State = "probing"
	StateRunning State = "running"
)

// Engine ties the sensor poller and the conditioner into the
// Stopped -> Probing -> Running lifecycle. The engine only produces
// brightness values; applying them to displays and persisting levels stays
// with the controller.
type Engine struct {
	poller *Poller
	logger *slog.Logger

	mu          sync.Mutex
	state       State
	conditioner *Conditioner
}

// NewEngine creates a stopped ambient engine
func NewEngine(sensor Sensor, pollInterval time.Duration, logger *slog.Logger) *Engine {
	return &Engine{
		poller:      NewPoller(sensor, pollInterval, logger),
		logger:      logger,
		state:       StateStopped,
		conditioner: NewConditioner(),
	}
}

// State returns the current lifecycle state
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Enable probes the sensor once, synchronously. On success the background
// poller starts and the engine is Running. On failure the engine stays
// Stopped and ok is false so the caller can force the enablement flag off
// and surface "sensor unavailable".
func (e *Engine) Enable(ctx context.Context) (lux float64, ok bool) {
	e.mu.Lock()
	if e.state == StateRunning {
		e.mu.Unlock()
		if value, have := e.poller.LatestLux(); have {
			return value, true
		}
		return 0, true
	}
	e.state = StateProbing
	e.mu.Unlock()

	lux, ok = e.poller.Probe(ctx)
	e.mu.Lock()
	defer e.mu.Unlock()
	if !ok {
		e.state = StateStopped
		e.logger.Warn("Ambient light sensor unavailable, auto mode not enabled",
			"error", e.poller.LastError())
		return 0, false
	}

	e.conditioner.Reset()
	e.poller.Start()
	e.state = StateRunning
	e.logger.Info("Ambient light engine running", "initial_lux", lux)
	return lux, true
}

// Disable stops sampling and clears conditioning state so a future enable
// starts clean. Safe to call in any state.
func (e *Engine) Disable() {
	e.mu.Lock()
	wasRunning := e.state == StateRunning
	e.state = StateStopped
	e.conditioner.Reset()
	e.mu.Unlock()

	if wasRunning {
		e.poller.Stop()
		e.logger.Info("Ambient light engine stopped")
	}
}

// Tick consumes the latest sensor snapshot and returns the next level to
// apply. apply is false when the engine is not running, no reading exists
// yet, or the conditioned change falls inside the deadband.
func (e *Engine) Tick() (level int, apply bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StateRunning {
		return 0, false
	}

	lux, have := e.poller.LatestLux()
	if !have {
		return 0, false
	}
	return e.conditioner.Next(MapLuxToBrightness(lux))
}

// LatestLux exposes the current snapshot for status reporting
func (e *Engine) LatestLux() (float64, bool) {
	return e.poller.LatestLux()
}
