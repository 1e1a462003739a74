package monitor

import (
	"log/slog"
	"os/exec"
	"regexp"
	"strconv"
	"strings"

	"github.com/saaga0h/lumitray/internal/model"
)

// vcpBrightness is the DDC/CI luminance feature code
const vcpBrightness = "10"

// ddcBackend drives external displays through the ddcutil command line
// tool. Displays and their serials are captured once per refresh; get/set
// address displays by ddcutil display number.
type ddcBackend struct {
	binary  string
	logger  *slog.Logger
	numbers []int
}

func newDDCBackend(binary string, logger *slog.Logger) *ddcBackend {
	if binary == "" {
		binary = "ddcutil"
	}
	return &ddcBackend{binary: binary, logger: logger}
}

func (b *ddcBackend) method() model.ControlMethod {
	return model.MethodDDC
}

var (
	ddcDisplayPattern = regexp.MustCompile(`(?m)^Display\s+(\d+)`)
	ddcModelPattern   = regexp.MustCompile(`Monitor:\s*[^:]*:([^:]*):(\S*)`)
	ddcValuePattern   = regexp.MustCompile(`current value\s*=\s*(\d+)\s*,\s*max value\s*=\s*(\d+)`)
)

// enumerate runs `ddcutil detect --brief` and parses display numbers plus
// model/serial from the Monitor: lines
func (b *ddcBackend) enumerate() []rawDisplay {
	output, err := exec.Command(b.binary, "detect", "--brief").Output()
	if err != nil {
		// ddcutil missing or no DDC-capable displays; the internal backend
		// still covers the panel.
		b.numbers = nil
		return nil
	}

	text := string(output)
	blocks := ddcDisplayPattern.FindAllStringSubmatchIndex(text, -1)
	b.numbers = b.numbers[:0]
	displays := make([]rawDisplay, 0, len(blocks))
	for i, match := range blocks {
		number, convErr := strconv.Atoi(text[match[2]:match[3]])
		if convErr != nil {
			continue
		}

		end := len(text)
		if i+1 < len(blocks) {
			end = blocks[i+1][0]
		}
		block := text[match[0]:end]

		name := ""
		serial := ""
		if m := ddcModelPattern.FindStringSubmatch(block); m != nil {
			name = strings.TrimSpace(m[1])
			serial = strings.TrimSpace(m[2])
		}

		index := len(b.numbers)
		b.numbers = append(b.numbers, number)
		displays = append(displays, rawDisplay{name: name, serial: serial, index: index})
	}
	return displays
}

func (b *ddcBackend) get(index int) (int, bool) {
	if index < 0 || index >= len(b.numbers) {
		return 0, false
	}
	display := strconv.Itoa(b.numbers[index])
	output, err := exec.Command(b.binary, "getvcp", vcpBrightness, "--display", display).Output()
	if err != nil {
		return 0, false
	}

	match := ddcValuePattern.FindStringSubmatch(string(output))
	if match == nil {
		return 0, false
	}
	current, err1 := strconv.Atoi(match[1])
	max, err2 := strconv.Atoi(match[2])
	if err1 != nil || err2 != nil || max <= 0 {
		return 0, false
	}
	return current * 100 / max, true
}

func (b *ddcBackend) set(index, level int) bool {
	if index < 0 || index >= len(b.numbers) {
		return false
	}
	display := strconv.Itoa(b.numbers[index])
	err := exec.Command(b.binary, "setvcp", vcpBrightness, strconv.Itoa(level), "--display", display).Run()
	if err != nil {
		b.logger.Debug("ddcutil setvcp failed", "display", display, "error", err)
		return false
	}
	return true
}
