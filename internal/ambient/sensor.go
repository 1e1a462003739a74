package ambient

import (
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Sensor produces an illuminance reading in lux. Implementations fail closed:
// any platform or driver problem is an error, never a fabricated reading.
type Sensor interface {
	Read(ctx context.Context) (float64, error)
}

var floatPattern = regexp.MustCompile(`[-+]?\d+(?:\.\d+)?`)

// queryTimeout bounds one sensor probe. The probe is an external process
// call, so the timeout is independent of the caller's tick rate.
const queryTimeout = 2600 * time.Millisecond

// ExecSensor reads illuminance by running an external probe command and
// parsing the first decimal number it prints. The command is configurable
// so the same daemon works with WinRT sensor scripts, iio-sensor tooling,
// or a sysfs cat.
type ExecSensor struct {
	command []string
}

// NewExecSensor creates a sensor around the given probe command line
func NewExecSensor(command []string) *ExecSensor {
	return &ExecSensor{command: command}
}

// Read runs the probe once with a hard timeout. It never retries; callers
// simply use the previous snapshot until the next poll.
func (s *ExecSensor) Read(ctx context.Context) (float64, error) {
	if len(s.command) == 0 {
		return 0, fmt.Errorf("no sensor command configured")
	}

	runCtx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, s.command[0], s.command[1:]...)
	output, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("sensor probe failed: %w", err)
	}

	text := strings.TrimSpace(string(output))
	if text == "" {
		return 0, fmt.Errorf("sensor probe produced no output")
	}

	match := floatPattern.FindString(text)
	if match == "" {
		return 0, fmt.Errorf("sensor probe output %q contains no reading", text)
	}

	lux, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse sensor reading %q: %w", match, err)
	}
	if lux < 0 {
		lux = 0
	}
	return lux, nil
}
