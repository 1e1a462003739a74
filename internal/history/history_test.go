package history

import (
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRecorder(t *testing.T) *Recorder {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	recorder, err := NewRecorder(t.TempDir(), logger)
	require.NoError(t, err)
	t.Cleanup(func() { recorder.Close() })
	return recorder
}

func TestRecorder_SamplesRoundTrip(t *testing.T) {
	recorder := testRecorder(t)

	recorder.RecordSample(120.5)
	recorder.RecordSample(340)

	samples, err := recorder.RecentSamples(time.Minute)
	require.NoError(t, err)
	require.Len(t, samples, 2)
	assert.InDelta(t, 120.5, samples[0].Lux, 1e-9)
	assert.InDelta(t, 340, samples[1].Lux, 1e-9)
}

func TestRecorder_PruneRemovesOldRows(t *testing.T) {
	recorder := testRecorder(t)

	recorder.RecordSample(75)
	recorder.RecordLevel("internal|Built-in Display|0", 60, "ambient")

	// Retention of zero prunes everything written so far.
	recorder.Prune(0)

	samples, err := recorder.RecentSamples(time.Hour)
	require.NoError(t, err)
	assert.Empty(t, samples)
}

func TestRecorder_SessionID(t *testing.T) {
	recorder := testRecorder(t)
	assert.NotEmpty(t, recorder.SessionID())
}
