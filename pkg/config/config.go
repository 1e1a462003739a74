package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// Config holds the runtime options for the lumitray daemon. The persisted
// user state (schedule rules, per-monitor levels) lives in the JSON state
// store, not here.
type Config struct {
	// Service configuration
	ServiceName string `yaml:"service_name"`
	LogLevel    string `yaml:"log_level"`
	HealthPort  int    `yaml:"health_port"`
	NoTray      bool   `yaml:"no_tray"`

	// Paths
	StatePath string `yaml:"state_path"`
	DataDir   string `yaml:"data_dir"`

	// Monitor I/O
	DDCUtilPath string `yaml:"ddcutil_path"`

	// Ambient light sensing
	SensorCommand string  `yaml:"sensor_command"`
	SensorPollSec float64 `yaml:"sensor_poll_sec"`
	AmbientTickMs int     `yaml:"ambient_tick_ms"`

	// Scheduling
	ScheduleTickSec   int `yaml:"schedule_tick_sec"`
	ScheduleIdleSec   int `yaml:"schedule_idle_sec"`
	HistoryRetainDays int `yaml:"history_retain_days"`

	// MQTT bridge (disabled while the broker is empty)
	MQTTBroker      string `yaml:"mqtt_broker"`
	MQTTPort        int    `yaml:"mqtt_port"`
	MQTTUser        string `yaml:"mqtt_user"`
	MQTTPassword    string `yaml:"mqtt_password"`
	MQTTClientID    string `yaml:"mqtt_client_id"`
	MQTTTopicPrefix string `yaml:"mqtt_topic_prefix"`
}

// NewConfig creates a new Config with default values
func NewConfig() *Config {
	return &Config{
		ServiceName:       "lumitray",
		LogLevel:          "info",
		HealthPort:        0,
		NoTray:            false,
		StatePath:         "",
		DataDir:           "",
		DDCUtilPath:       "ddcutil",
		SensorCommand:     "",
		SensorPollSec:     2.2,
		AmbientTickMs:     1100,
		ScheduleTickSec:   1,
		ScheduleIdleSec:   60,
		HistoryRetainDays: 14,
		MQTTBroker:        "",
		MQTTPort:          1883,
		MQTTUser:          "",
		MQTTPassword:      "",
		MQTTClientID:      "",
		MQTTTopicPrefix:   "lumitray",
	}
}

// LoadFromFile overlays values from a YAML file. A missing file is not an
// error; unreadable or malformed content is.
func (c *Config) LoadFromFile(path string) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// LoadFromEnv loads configuration from environment variables with LUMITRAY_ prefix
func (c *Config) LoadFromEnv() {
	// Service configuration
	if v := os.Getenv("LUMITRAY_SERVICE_NAME"); v != "" {
		c.ServiceName = v
	}
	if v := os.Getenv("LUMITRAY_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("LUMITRAY_HEALTH_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.HealthPort = port
		}
	}
	if v := os.Getenv("LUMITRAY_NO_TRAY"); v != "" {
		if noTray, err := strconv.ParseBool(v); err == nil {
			c.NoTray = noTray
		}
	}

	// Paths
	if v := os.Getenv("LUMITRAY_STATE_PATH"); v != "" {
		c.StatePath = v
	}
	if v := os.Getenv("LUMITRAY_DATA_DIR"); v != "" {
		c.DataDir = v
	}

	// Monitor I/O
	if v := os.Getenv("LUMITRAY_DDCUTIL_PATH"); v != "" {
		c.DDCUtilPath = v
	}

	// Ambient light sensing
	if v := os.Getenv("LUMITRAY_SENSOR_COMMAND"); v != "" {
		c.SensorCommand = v
	}
	if v := os.Getenv("LUMITRAY_SENSOR_POLL_SEC"); v != "" {
		if sec, err := strconv.ParseFloat(v, 64); err == nil {
			c.SensorPollSec = sec
		}
	}
	if v := os.Getenv("LUMITRAY_AMBIENT_TICK_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil {
			c.AmbientTickMs = ms
		}
	}

	// Scheduling
	if v := os.Getenv("LUMITRAY_SCHEDULE_TICK_SEC"); v != "" {
		if sec, err := strconv.Atoi(v); err == nil {
			c.ScheduleTickSec = sec
		}
	}
	if v := os.Getenv("LUMITRAY_SCHEDULE_IDLE_SEC"); v != "" {
		if sec, err := strconv.Atoi(v); err == nil {
			c.ScheduleIdleSec = sec
		}
	}
	if v := os.Getenv("LUMITRAY_HISTORY_RETAIN_DAYS"); v != "" {
		if days, err := strconv.Atoi(v); err == nil {
			c.HistoryRetainDays = days
		}
	}

	// MQTT configuration
	if v := os.Getenv("LUMITRAY_MQTT_BROKER"); v != "" {
		c.MQTTBroker = v
	}
	if v := os.Getenv("LUMITRAY_MQTT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.MQTTPort = port
		}
	}
	if v := os.Getenv("LUMITRAY_MQTT_USER"); v != "" {
		c.MQTTUser = v
	}
	if v := os.Getenv("LUMITRAY_MQTT_PASSWORD"); v != "" {
		c.MQTTPassword = v
	}
	if v := os.Getenv("LUMITRAY_MQTT_CLIENT_ID"); v != "" {
		c.MQTTClientID = v
	}
	if v := os.Getenv("LUMITRAY_MQTT_TOPIC_PREFIX"); v != "" {
		c.MQTTTopicPrefix = v
	}
}

// LoadFromFlags parses command-line flags and overrides config values
func (c *Config) LoadFromFlags() {
	// Service flags
	pflag.StringVar(&c.ServiceName, "service-name", c.ServiceName, "Service name")
	pflag.StringVar(&c.LogLevel, "log-level", c.LogLevel, "Log level (debug, info, warn, error)")
	pflag.IntVar(&c.HealthPort, "health-port", c.HealthPort, "Health check HTTP port (0 disables)")
	pflag.BoolVar(&c.NoTray, "no-tray", c.NoTray, "Run headless without the tray icon")

	// Path flags
	pflag.StringVar(&c.StatePath, "state-path", c.StatePath, "Persisted state file (default: per-user config dir)")
	pflag.StringVar(&c.DataDir, "data-dir", c.DataDir, "History database directory (default: per-user config dir)")

	// Monitor flags
	pflag.StringVar(&c.DDCUtilPath, "ddcutil-path", c.DDCUtilPath, "ddcutil binary used for external displays")

	// Ambient light flags
	pflag.StringVar(&c.SensorCommand, "sensor-command", c.SensorCommand, "Ambient light probe command line")
	pflag.Float64Var(&c.SensorPollSec, "sensor-poll-sec", c.SensorPollSec, "Sensor polling interval in seconds")
	pflag.IntVar(&c.AmbientTickMs, "ambient-tick-ms", c.AmbientTickMs, "Ambient dispatch tick in milliseconds")

	// Schedule flags
	pflag.IntVar(&c.ScheduleTickSec, "schedule-tick-sec", c.ScheduleTickSec, "Schedule tick while enabled, in seconds")
	pflag.IntVar(&c.ScheduleIdleSec, "schedule-idle-sec", c.ScheduleIdleSec, "Schedule tick while disabled, in seconds")
	pflag.IntVar(&c.HistoryRetainDays, "history-retain-days", c.HistoryRetainDays, "History retention in days")

	// MQTT flags
	pflag.StringVar(&c.MQTTBroker, "mqtt-broker", c.MQTTBroker, "MQTT broker hostname (empty disables the bridge)")
	pflag.IntVar(&c.MQTTPort, "mqtt-port", c.MQTTPort, "MQTT broker port")
	pflag.StringVar(&c.MQTTUser, "mqtt-user", c.MQTTUser, "MQTT username")
	pflag.StringVar(&c.MQTTPassword, "mqtt-password", c.MQTTPassword, "MQTT password")
	pflag.StringVar(&c.MQTTClientID, "mqtt-client-id", c.MQTTClientID, "MQTT client ID")
	pflag.StringVar(&c.MQTTTopicPrefix, "mqtt-topic-prefix", c.MQTTTopicPrefix, "MQTT topic prefix")

	pflag.Parse()
}

// Validate checks that required configuration values are set
func (c *Config) Validate() error {
	if c.ServiceName == "" {
		return fmt.Errorf("service name is required")
	}
	if c.HealthPort < 0 || c.HealthPort > 65535 {
		return fmt.Errorf("health port must be between 0 and 65535")
	}
	if c.SensorPollSec <= 0 {
		return fmt.Errorf("sensor poll interval must be positive")
	}
	if c.AmbientTickMs <= 0 {
		return fmt.Errorf("ambient tick must be positive")
	}
	if c.ScheduleTickSec <= 0 || c.ScheduleIdleSec <= 0 {
		return fmt.Errorf("schedule tick intervals must be positive")
	}
	if c.MQTTBroker != "" && (c.MQTTPort <= 0 || c.MQTTPort > 65535) {
		return fmt.Errorf("MQTT port must be between 1 and 65535")
	}

	// Validate log level
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.LogLevel)
	}

	return nil
}

// BridgeEnabled reports whether the MQTT bridge should run
func (c *Config) BridgeEnabled() bool {
	return c.MQTTBroker != ""
}

// MQTTAddress returns the full MQTT broker address
func (c *Config) MQTTAddress() string {
	return fmt.Sprintf("tcp://%s:%d", c.MQTTBroker, c.MQTTPort)
}

// SensorCommandLine splits the configured probe command into argv form
func (c *Config) SensorCommandLine() []string {
	fields := strings.Fields(c.SensorCommand)
	if len(fields) == 0 {
		return nil
	}
	return fields
}
