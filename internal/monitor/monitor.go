package monitor

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/saaga0h/lumitray/internal/model"
)

// Handle identifies one controllable display. Key is stable across refreshes
// as long as the backend reports consistent serials.
type Handle struct {
	Key          string
	Name         string
	DisplayIndex int
	Method       model.ControlMethod
}

// Service is the brightness I/O capability consumed by the controller.
// Implementations degrade per display: a failed get/set skips that display
// and never aborts the caller. Implementations must be safe for concurrent
// callers; Refresh runs outside the controller's state lock.
type Service interface {
	// Refresh re-enumerates displays, resolving each one's control method
	// once (no per-call capability probing)
	Refresh() []Handle
	// Get reads the current brightness, ok=false on failure
	Get(handle Handle) (int, bool)
	// Set applies a brightness level, reporting success
	Set(handle Handle, level int) bool
}

// backend enumerates and drives displays for one control method
type backend interface {
	method() model.ControlMethod
	enumerate() []rawDisplay
	get(index int) (int, bool)
	set(index int, level int) bool
}

// rawDisplay is a backend enumeration entry before keying
type rawDisplay struct {
	name   string
	serial string
	index  int
}

// MultiService fans out across the internal-panel and DDC backends and
// assigns stable de-duplicated keys. Safe for concurrent use: Refresh
// swaps the display table while Get and Set read it.
type MultiService struct {
	backends []backend
	logger   *slog.Logger

	mu    sync.RWMutex
	byKey map[string]backendRef
}

type backendRef struct {
	backend backend
	index   int
}

// NewService builds the default service: sysfs backlight for the internal
// panel plus ddcutil for external displays
func NewService(ddcutilPath string, logger *slog.Logger) *MultiService {
	return &MultiService{
		backends: []backend{
			newSysfsBacklight(logger),
			newDDCBackend(ddcutilPath, logger),
		},
		logger: logger,
		byKey:  make(map[string]backendRef),
	}
}

// Refresh re-enumerates all backends. The control method per display is
// decided here, once, and cached in the handle.
func (s *MultiService) Refresh() []Handle {
	handles := make([]Handle, 0, 4)
	byKey := make(map[string]backendRef)
	seen := make(map[string]int)
	displayIndex := 0

	for _, b := range s.backends {
		for _, raw := range b.enumerate() {
			key := buildKey(b.method(), raw, seen)
			handle := Handle{
				Key:          key,
				Name:         raw.name,
				DisplayIndex: displayIndex,
				Method:       b.method(),
			}
			handles = append(handles, handle)
			byKey[key] = backendRef{backend: b, index: raw.index}
			displayIndex++
		}
	}

	s.mu.Lock()
	s.byKey = byKey
	s.mu.Unlock()
	s.logger.Debug("Refreshed displays", "count", len(handles))
	return handles
}

// Get reads the current brightness of a display
func (s *MultiService) Get(handle Handle) (int, bool) {
	s.mu.RLock()
	ref, exists := s.byKey[handle.Key]
	s.mu.RUnlock()
	if !exists {
		return 0, false
	}
	value, ok := ref.backend.get(ref.index)
	if !ok {
		return 0, false
	}
	return model.ClampBrightness(value), true
}

// Set applies a brightness level to a display
func (s *MultiService) Set(handle Handle, level int) bool {
	s.mu.RLock()
	ref, exists := s.byKey[handle.Key]
	s.mu.RUnlock()
	if !exists {
		return false
	}
	if !ref.backend.set(ref.index, model.ClampBrightness(level)) {
		s.logger.Warn("Failed to set brightness",
			"display", handle.Name,
			"method", handle.Method,
			"level", level)
		return false
	}
	return true
}

// buildKey derives the stable identity string method|name|serial, suffixing
// a counter on collision
func buildKey(method model.ControlMethod, raw rawDisplay, seen map[string]int) string {
	name := strings.TrimSpace(raw.name)
	if name == "" {
		name = fmt.Sprintf("Display %d", raw.index+1)
	}
	serial := strings.TrimSpace(raw.serial)
	if serial == "" {
		serial = fmt.Sprintf("%d", raw.index)
	}

	base := fmt.Sprintf("%s|%s|%s", method, name, serial)
	count := seen[base]
	seen[base] = count + 1
	if count == 0 {
		return base
	}
	return fmt.Sprintf("%s|%d", base, count)
}
