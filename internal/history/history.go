package history

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Sample is one recorded ambient reading
type Sample struct {
	Timestamp time.Time
	Lux       float64
}

// AppliedLevel is one brightness change sent to a display
type AppliedLevel struct {
	Timestamp  time.Time
	MonitorKey string
	Level      int
	Source     string
}

// Recorder keeps a local log of sensor samples and applied brightness
// levels. Rows are stamped with a per-run session id so overlapping runs
// can be told apart when reading the log back.
type Recorder struct {
	db        *sql.DB
	sessionID string
	logger    *slog.Logger
}

// NewRecorder opens (and if needed initializes) the history database
func NewRecorder(dataDir string, logger *slog.Logger) (*Recorder, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}

	dbPath := filepath.Join(dataDir, "history.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}

	r := &Recorder{
		db:        db,
		sessionID: uuid.NewString(),
		logger:    logger,
	}
	if err := r.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to init history schema: %w", err)
	}
	return r, nil
}

// SessionID returns this run's identifier
func (r *Recorder) SessionID() string {
	return r.sessionID
}

// Close closes the underlying database
func (r *Recorder) Close() error {
	return r.db.Close()
}

func (r *Recorder) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS lux_samples (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		timestamp DATETIME NOT NULL,
		lux REAL NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_lux_samples_timestamp ON lux_samples(timestamp);

	CREATE TABLE IF NOT EXISTS applied_levels (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		timestamp DATETIME NOT NULL,
		monitor_key TEXT NOT NULL,
		level INTEGER NOT NULL,
		source TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_applied_levels_timestamp ON applied_levels(timestamp);
	`
	_, err := r.db.Exec(schema)
	return err
}

// RecordSample stores one ambient reading
func (r *Recorder) RecordSample(lux float64) {
	_, err := r.db.Exec(
		"INSERT INTO lux_samples (session_id, timestamp, lux) VALUES (?, ?, ?)",
		r.sessionID, time.Now().UTC(), lux,
	)
	if err != nil {
		r.logger.Debug("Failed to record lux sample", "error", err)
	}
}

// RecordLevel stores one applied brightness change. source is "schedule",
// "ambient", or "manual".
func (r *Recorder) RecordLevel(monitorKey string, level int, source string) {
	_, err := r.db.Exec(
		"INSERT INTO applied_levels (session_id, timestamp, monitor_key, level, source) VALUES (?, ?, ?, ?, ?)",
		r.sessionID, time.Now().UTC(), monitorKey, level, source,
	)
	if err != nil {
		r.logger.Debug("Failed to record applied level", "error", err)
	}
}

// RecentSamples returns samples newer than the given window, oldest first
func (r *Recorder) RecentSamples(window time.Duration) ([]Sample, error) {
	cutoff := time.Now().UTC().Add(-window)
	rows, err := r.db.Query(
		"SELECT timestamp, lux FROM lux_samples WHERE timestamp > ? ORDER BY timestamp ASC",
		cutoff,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query samples: %w", err)
	}
	defer rows.Close()

	var samples []Sample
	for rows.Next() {
		var s Sample
		if err := rows.Scan(&s.Timestamp, &s.Lux); err != nil {
			return nil, fmt.Errorf("failed to scan sample: %w", err)
		}
		samples = append(samples, s)
	}
	return samples, rows.Err()
}

// Prune deletes rows older than the retention window
func (r *Recorder) Prune(retention time.Duration) {
	cutoff := time.Now().UTC().Add(-retention)
	for _, table := range []string{"lux_samples", "applied_levels"} {
		if _, err := r.db.Exec("DELETE FROM "+table+" WHERE timestamp < ?", cutoff); err != nil {
			r.logger.Debug("History prune failed", "table", table, "error", err)
		}
	}
}
