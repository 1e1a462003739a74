package monitor

import (
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/saaga0h/lumitray/internal/model"
)

const backlightRoot = "/sys/class/backlight"

// sysfsBacklight drives OS-managed panels through the kernel backlight
// class. Raw device units are rescaled to the 0-100 range using the
// advertised max_brightness.
type sysfsBacklight struct {
	root    string
	logger  *slog.Logger
	devices []sysfsDevice
}

type sysfsDevice struct {
	name string
	path string
	max  int
}

func newSysfsBacklight(logger *slog.Logger) *sysfsBacklight {
	return &sysfsBacklight{root: backlightRoot, logger: logger}
}

func (b *sysfsBacklight) method() model.ControlMethod {
	return model.MethodInternal
}

func (b *sysfsBacklight) enumerate() []rawDisplay {
	entries, err := os.ReadDir(b.root)
	if err != nil {
		b.devices = nil
		return nil
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	b.devices = b.devices[:0]
	displays := make([]rawDisplay, 0, len(names))
	for _, name := range names {
		devicePath := filepath.Join(b.root, name)
		max, ok := readSysfsInt(filepath.Join(devicePath, "max_brightness"))
		if !ok || max <= 0 {
			continue
		}
		index := len(b.devices)
		b.devices = append(b.devices, sysfsDevice{name: name, path: devicePath, max: max})
		displays = append(displays, rawDisplay{
			name:   displayName(name),
			serial: name,
			index:  index,
		})
	}
	return displays
}

func (b *sysfsBacklight) get(index int) (int, bool) {
	if index < 0 || index >= len(b.devices) {
		return 0, false
	}
	device := b.devices[index]
	raw, ok := readSysfsInt(filepath.Join(device.path, "brightness"))
	if !ok {
		return 0, false
	}
	return int(math.Round(float64(raw) / float64(device.max) * 100.0)), true
}

func (b *sysfsBacklight) set(index, level int) bool {
	if index < 0 || index >= len(b.devices) {
		return false
	}
	device := b.devices[index]
	raw := int(math.Round(float64(level) / 100.0 * float64(device.max)))
	data := []byte(strconv.Itoa(raw))
	if err := os.WriteFile(filepath.Join(device.path, "brightness"), data, 0o644); err != nil {
		b.logger.Debug("Backlight write failed", "device", device.name, "error", err)
		return false
	}
	return true
}

func readSysfsInt(path string) (int, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, false
	}
	value, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, false
	}
	return value, true
}

// displayName maps a kernel device name to something presentable
func displayName(device string) string {
	lower := strings.ToLower(device)
	if strings.Contains(lower, "intel") || strings.Contains(lower, "amdgpu") || strings.Contains(lower, "acpi") {
		return "Built-in Display"
	}
	return device
}
