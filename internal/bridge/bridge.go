package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/saaga0h/lumitray/internal/controller"
	"github.com/saaga0h/lumitray/pkg/mqtt"
)

// Commander is the slice of the controller the bridge drives. Commands
// carry plain values; the controller stays the single owner of state.
type Commander interface {
	SetGlobalBrightness(level int)
	SetMonitorBrightness(key string, level int)
	SetAmbientEnabled(ctx context.Context, enabled bool) bool
	SetScheduleEnabled(enabled bool)
	ApplyScheduleNow()
	Snapshot() controller.Status
}

// Bridge mirrors daemon state onto MQTT and accepts remote commands. It is
// optional; the daemon runs identically without a broker.
type Bridge struct {
	client mqtt.Client
	prefix string
	ctrl   Commander
	logger *slog.Logger
}

// NewBridge creates a bridge over an unconnected MQTT client
func NewBridge(client mqtt.Client, prefix string, ctrl Commander, logger *slog.Logger) *Bridge {
	return &Bridge{
		client: client,
		prefix: prefix,
		ctrl:   ctrl,
		logger: logger,
	}
}

// statePayload is the retained daemon state document
type statePayload struct {
	ScheduleStatus   string `json:"schedule_status"`
	AmbientState     string `json:"ambient_state"`
	GlobalBrightness int    `json:"global_brightness"`
	LinkMode         bool   `json:"link_mode"`
	ScheduleEnabled  bool   `json:"schedule_enabled"`
	AmbientEnabled   bool   `json:"ambient_enabled"`
	MonitorCount     int    `json:"monitor_count"`
}

// ambientPayload is the retained ambient-light state document
type ambientPayload struct {
	State   string `json:"state"`
	Enabled bool   `json:"enabled"`
}

// monitorPayload is one display's retained state document
type monitorPayload struct {
	Key   string `json:"key"`
	Name  string `json:"name"`
	Level int    `json:"level"`
}

type brightnessCommand struct {
	Level   *int   `json:"level"`
	Monitor string `json:"monitor,omitempty"`
}

type toggleCommand struct {
	Enabled  *bool `json:"enabled"`
	ApplyNow bool  `json:"apply_now,omitempty"`
}

// Start connects, announces availability and wires command subscriptions
func (b *Bridge) Start(ctx context.Context) error {
	if err := b.client.Connect(ctx); err != nil {
		return fmt.Errorf("bridge connect failed: %w", err)
	}

	if err := b.client.Publish(mqtt.Topic(b.prefix, mqtt.SuffixAvailability), 1, true, []byte("online")); err != nil {
		b.logger.Warn("Failed to publish availability", "error", err)
	}

	subscriptions := map[string]mqtt.MessageHandler{
		mqtt.Topic(b.prefix, mqtt.SuffixCmdBrightness): b.handleBrightness,
		mqtt.Topic(b.prefix, mqtt.SuffixCmdAmbient):    b.handleAmbient,
		mqtt.Topic(b.prefix, mqtt.SuffixCmdSchedule):   b.handleSchedule,
	}
	for topic, handler := range subscriptions {
		if err := b.client.Subscribe(topic, 1, handler); err != nil {
			return fmt.Errorf("bridge subscribe failed: %w", err)
		}
	}

	b.PublishStatus(b.ctrl.Snapshot())
	return nil
}

// Stop announces a clean shutdown and disconnects
func (b *Bridge) Stop() {
	if err := b.client.Publish(mqtt.Topic(b.prefix, mqtt.SuffixAvailability), 1, true, []byte("offline")); err != nil {
		b.logger.Warn("Failed to publish offline availability", "error", err)
	}
	b.client.Disconnect()
}

// PublishStatus mirrors a controller snapshot onto the retained state
// topics. Registered as a controller listener.
func (b *Bridge) PublishStatus(status controller.Status) {
	if !b.client.IsConnected() {
		return
	}

	state := statePayload{
		ScheduleStatus:   status.ScheduleStatus,
		AmbientState:     string(status.AmbientState),
		GlobalBrightness: status.GlobalBrightness,
		LinkMode:         status.LinkMode,
		ScheduleEnabled:  status.ScheduleEnabled,
		AmbientEnabled:   status.AmbientEnabled,
		MonitorCount:     len(status.Monitors),
	}
	b.publishJSON(mqtt.Topic(b.prefix, mqtt.SuffixState), state)

	ambientState := ambientPayload{
		State:   string(status.AmbientState),
		Enabled: status.AmbientEnabled,
	}
	b.publishJSON(mqtt.Topic(b.prefix, mqtt.SuffixAmbient), ambientState)

	for _, mon := range status.Monitors {
		payload := monitorPayload{Key: mon.Key, Name: mon.Name, Level: mon.Level}
		b.publishJSON(mqtt.MonitorTopic(b.prefix, mon.Key), payload)
	}
}

func (b *Bridge) publishJSON(topic string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		b.logger.Error("Failed to marshal bridge payload", "topic", topic, "error", err)
		return
	}
	if err := b.client.Publish(topic, 1, true, data); err != nil {
		b.logger.Warn("Failed to publish bridge payload", "topic", topic, "error", err)
	}
}

func (b *Bridge) handleBrightness(msg mqtt.Message) {
	var cmd brightnessCommand
	if err := json.Unmarshal(msg.Payload(), &cmd); err != nil || cmd.Level == nil {
		b.logger.Warn("Ignoring malformed brightness command", "payload", string(msg.Payload()))
		return
	}

	if cmd.Monitor != "" {
		b.ctrl.SetMonitorBrightness(cmd.Monitor, *cmd.Level)
	} else {
		b.ctrl.SetGlobalBrightness(*cmd.Level)
	}
	b.logger.Info("Applied remote brightness command",
		"level", *cmd.Level, "monitor", cmd.Monitor)
}

func (b *Bridge) handleAmbient(msg mqtt.Message) {
	var cmd toggleCommand
	if err := json.Unmarshal(msg.Payload(), &cmd); err != nil || cmd.Enabled == nil {
		b.logger.Warn("Ignoring malformed ambient command", "payload", string(msg.Payload()))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if !b.ctrl.SetAmbientEnabled(ctx, *cmd.Enabled) && *cmd.Enabled {
		b.logger.Warn("Remote ambient enable rejected, sensor unavailable")
	}
}

func (b *Bridge) handleSchedule(msg mqtt.Message) {
	var cmd toggleCommand
	if err := json.Unmarshal(msg.Payload(), &cmd); err != nil {
		b.logger.Warn("Ignoring malformed schedule command", "payload", string(msg.Payload()))
		return
	}

	if cmd.Enabled != nil {
		b.ctrl.SetScheduleEnabled(*cmd.Enabled)
	}
	if cmd.ApplyNow {
		b.ctrl.ApplyScheduleNow()
	}
}
