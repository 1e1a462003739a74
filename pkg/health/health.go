package health

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/saaga0h/lumitray/pkg/mqtt"
)

// Snapshot is the application state reported by the detailed endpoint.
// The supplier runs on every request, so it must be cheap.
type Snapshot struct {
	MonitorCount   int    `json:"monitor_count"`
	ScheduleStatus string `json:"schedule_status"`
	AmbientState   string `json:"ambient_state"`
	LuxTrend       string `json:"lux_trend,omitempty"`
	LuxStability   string `json:"lux_stability,omitempty"`
}

// SnapshotFunc supplies the current application snapshot
type SnapshotFunc func() Snapshot

// Checker provides health check functionality for the daemon
type Checker struct {
	mqtt     mqtt.Client
	snapshot SnapshotFunc
	logger   *slog.Logger
}

// NewChecker creates a new health checker. The MQTT client may be nil when
// the bridge is disabled.
func NewChecker(mqttClient mqtt.Client, snapshot SnapshotFunc, logger *slog.Logger) *Checker {
	return &Checker{
		mqtt:     mqttClient,
		snapshot: snapshot,
		logger:   logger,
	}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp string    `json:"timestamp"`
	Bridge    string    `json:"bridge,omitempty"`
	App       *Snapshot `json:"app,omitempty"`
}

// HandlerFunc returns an HTTP handler function for health checks.
// Returns 200 if the process is alive without checking dependencies.
func (h *Checker) HandlerFunc() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		response := HealthResponse{
			Status:    "ok",
			Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)

		if err := json.NewEncoder(w).Encode(response); err != nil {
			h.logger.Error("Failed to encode health response", "error", err)
		}
	}
}

// DetailedHandlerFunc returns a handler that includes the application
// snapshot and bridge connectivity
func (h *Checker) DetailedHandlerFunc() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		bridge := "disabled"
		if h.mqtt != nil {
			if h.mqtt.IsConnected() {
				bridge = "connected"
			} else {
				bridge = "disconnected"
			}
		}

		status := "healthy"
		statusCode := http.StatusOK
		if bridge == "disconnected" {
			status = "degraded"
			statusCode = http.StatusServiceUnavailable
		}

		response := HealthResponse{
			Status:    status,
			Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
			Bridge:    bridge,
		}
		if h.snapshot != nil {
			snap := h.snapshot()
			response.App = &snap
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(statusCode)

		if err := json.NewEncoder(w).Encode(response); err != nil {
			h.logger.Error("Failed to encode health response", "error", err)
		}
	}
}
