package store

import (
	"log/slog"
	"sync"
	"time"

	"github.com/saaga0h/lumitray/internal/model"
)

// persistInterval bounds write amplification from high-frequency ambient
// updates: at most one write per interval regardless of tick rate
const persistInterval = 5 * time.Second

// Debouncer throttles config writes. SaveSoon writes immediately when the
// interval has elapsed, otherwise remembers the snapshot and flushes it when
// the interval is next satisfied (or on Flush at shutdown).
type Debouncer struct {
	store  *Store
	logger *slog.Logger

	mu        sync.Mutex
	lastWrite time.Time
	pending   *model.AppConfig
	timer     *time.Timer
}

// NewDebouncer creates a debouncer around a store
func NewDebouncer(store *Store, logger *slog.Logger) *Debouncer {
	return &Debouncer{store: store, logger: logger}
}

// SaveNow writes immediately and resets the throttle window
func (d *Debouncer) SaveNow(cfg *model.AppConfig) {
	d.mu.Lock()
	d.pending = nil
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.lastWrite = time.Now()
	// Deep copy: the caller keeps mutating cfg under its own lock while
	// the write proceeds
	snapshot := cfg.Clone()
	d.mu.Unlock()

	if err := d.store.Save(snapshot); err != nil {
		d.logger.Warn("Config save failed", "error", err)
	}
}

// SaveSoon schedules a throttled write of the given snapshot
func (d *Debouncer) SaveSoon(cfg *model.AppConfig) {
	d.mu.Lock()
	elapsed := time.Since(d.lastWrite)
	if elapsed >= persistInterval {
		d.mu.Unlock()
		d.SaveNow(cfg)
		return
	}

	// Deep copy: the timer goroutine reads the snapshot long after the
	// caller has moved on
	d.pending = cfg.Clone()
	if d.timer == nil {
		d.timer = time.AfterFunc(persistInterval-elapsed, d.flushPending)
	}
	d.mu.Unlock()
}

// Flush writes any pending snapshot immediately; called at shutdown
func (d *Debouncer) Flush() {
	d.flushPending()
}

func (d *Debouncer) flushPending() {
	d.mu.Lock()
	pending := d.pending
	d.pending = nil
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	if pending != nil {
		d.lastWrite = time.Now()
	}
	d.mu.Unlock()

	if pending == nil {
		return
	}
	if err := d.store.Save(pending); err != nil {
		d.logger.Warn("Config save failed", "error", err)
	}
}
