package mqtt

import "fmt"

// Topic suffixes under the configurable prefix (default "lumitray").
const (
	// Published state (output)
	SuffixAvailability = "availability"
	SuffixState        = "status/state"
	SuffixAmbient      = "status/ambient"
	SuffixMonitorBase  = "status/monitor"

	// Remote commands (input)
	SuffixCmdBrightness = "command/brightness"
	SuffixCmdAmbient    = "command/ambient"
	SuffixCmdSchedule   = "command/schedule"
)

// Topic joins the configured prefix with a suffix
func Topic(prefix, suffix string) string {
	return fmt.Sprintf("%s/%s", prefix, suffix)
}

// MonitorTopic constructs the per-monitor state topic.
// Pattern: {prefix}/status/monitor/{key}
func MonitorTopic(prefix, monitorKey string) string {
	return fmt.Sprintf("%s/%s/%s", prefix, SuffixMonitorBase, monitorKey)
}
