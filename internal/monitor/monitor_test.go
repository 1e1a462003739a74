package monitor

import (
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/saaga0h/lumitray/internal/model"
)

type stubBackend struct {
	displays []rawDisplay
}

func (b *stubBackend) method() model.ControlMethod { return model.MethodDDC }
func (b *stubBackend) enumerate() []rawDisplay     { return b.displays }
func (b *stubBackend) get(index int) (int, bool)   { return 50, true }
func (b *stubBackend) set(index int, level int) bool {
	return true
}

func stubService() *MultiService {
	return &MultiService{
		backends: []backend{&stubBackend{displays: []rawDisplay{
			{name: "DELL U2720Q", serial: "ABC123", index: 0},
		}}},
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		byKey:  make(map[string]backendRef),
	}
}

func TestBuildKey_StableAndDeduplicated(t *testing.T) {
	seen := make(map[string]int)

	first := buildKey(model.MethodDDC, rawDisplay{name: "DELL U2720Q", serial: "ABC123", index: 0}, seen)
	if first != "ddc|DELL U2720Q|ABC123" {
		t.Errorf("Unexpected key %q", first)
	}

	// Identical method+name+serial collides and gets a counter suffix.
	second := buildKey(model.MethodDDC, rawDisplay{name: "DELL U2720Q", serial: "ABC123", index: 1}, seen)
	if second != "ddc|DELL U2720Q|ABC123|1" {
		t.Errorf("Expected suffixed key on collision, got %q", second)
	}

	// A fresh refresh reproduces the same keys in the same order.
	again := make(map[string]int)
	if key := buildKey(model.MethodDDC, rawDisplay{name: "DELL U2720Q", serial: "ABC123", index: 0}, again); key != first {
		t.Errorf("Key not stable across refreshes: %q != %q", key, first)
	}
}

// Exercises the tray's "Refresh Monitors" action racing the schedule and
// ambient loops; fails under the race detector if the display table is
// swapped without synchronization.
func TestRefresh_ConcurrentWithGetAndSet(t *testing.T) {
	svc := stubService()
	handles := svc.Refresh()
	if len(handles) != 1 {
		t.Fatalf("Expected one display, got %d", len(handles))
	}
	handle := handles[0]

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			svc.Refresh()
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			if _, ok := svc.Get(handle); !ok {
				t.Errorf("Get failed for %q", handle.Key)
				return
			}
			if !svc.Set(handle, 40) {
				t.Errorf("Set failed for %q", handle.Key)
				return
			}
		}
	}()
	wg.Wait()
}

func TestBuildKey_Fallbacks(t *testing.T) {
	seen := make(map[string]int)
	key := buildKey(model.MethodInternal, rawDisplay{name: "  ", serial: "", index: 2}, seen)
	if key != "internal|Display 3|2" {
		t.Errorf("Unexpected fallback key %q", key)
	}
}
