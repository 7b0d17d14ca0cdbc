package monitor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shini4i/netspeed/internal/speed"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTracker(t *testing.T, capacity int) (*Tracker, *counterSource, *fakeClock) {
	t.Helper()
	m, src, clock := newTestMonitor(t, DefaultConfig())
	tr, err := NewTracker(m, capacity)
	require.NoError(t, err)
	return tr, src, clock
}

func downloads(history []speed.Speed) []uint64 {
	out := make([]uint64, 0, len(history))
	for _, s := range history {
		out = append(out, s.Download)
	}
	return out
}

func TestNewTracker_RejectsZeroCapacity(t *testing.T) {
	m, _, _ := newTestMonitor(t, DefaultConfig())
	_, err := NewTracker(m, 0)
	var cfgErr *InvalidConfigurationError
	assert.ErrorAs(t, err, &cfgErr)
}

// One baseline plus four one-second readings of 10, 20, 30 and 40 B/s.
func TestTracker_EndToEnd(t *testing.T) {
	tr, src, clock := newTestTracker(t, 3)
	ctx := context.Background()

	_, err := tr.Track(ctx)
	require.NoError(t, err)

	for i := uint64(1); i <= 4; i++ {
		clock.Advance(time.Second)
		src.add(10*i, 0)
		s, err := tr.Track(ctx)
		require.NoError(t, err)
		assert.Equal(t, 10*i, s.Download)
	}

	assert.Equal(t, []uint64{20, 30, 40}, downloads(tr.History()))
	assert.Equal(t, 3, tr.Len())
	assert.Equal(t, 3, tr.Capacity())

	peak, ok := tr.Peak(3 * time.Second)
	require.True(t, ok)
	assert.Equal(t, uint64(40), peak.Download)
	assert.Equal(t, uint64(0), peak.Upload)
	assert.Equal(t, clock.Now(), peak.MeasuredAt)

	avg, ok := tr.Average(3 * time.Second)
	require.True(t, ok)
	assert.Equal(t, uint64(30), avg.Download)

	latest, ok := tr.Latest()
	require.True(t, ok)
	assert.Equal(t, uint64(40), latest.Download)
}

func TestTracker_BaselineIsRecorded(t *testing.T) {
	tr, _, _ := newTestTracker(t, 5)

	_, err := tr.Track(context.Background())
	require.NoError(t, err)

	history := tr.History()
	require.Len(t, history, 1)
	assert.True(t, history[0].IsZero())
}

func TestTracker_WindowBounds(t *testing.T) {
	tr, src, clock := newTestTracker(t, 10)
	ctx := context.Background()

	_, err := tr.Track(ctx)
	require.NoError(t, err)
	for _, delta := range []uint64{20, 30, 40} {
		clock.Advance(time.Second)
		src.add(delta, delta/2)
		_, err := tr.Track(ctx)
		require.NoError(t, err)
	}

	tests := []struct {
		name         string
		window       time.Duration
		expectedAvg  uint64
		expectedPeak uint64
	}{
		{"zero window keeps only the newest", 0, 40, 40},
		{"one second", time.Second, 35, 40},
		{"two seconds includes boundary", 2 * time.Second, 30, 40},
		{"everything including baseline", time.Hour, 22, 40},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			avg, ok := tr.Average(tt.window)
			require.True(t, ok)
			assert.Equal(t, tt.expectedAvg, avg.Download)

			peak, ok := tr.Peak(tt.window)
			require.True(t, ok)
			assert.Equal(t, tt.expectedPeak, peak.Download)
			assert.Equal(t, tt.expectedPeak/2, peak.Upload)
		})
	}
}

func TestTracker_EmptyWindow(t *testing.T) {
	tr, _, clock := newTestTracker(t, 4)

	_, ok := tr.Average(time.Minute)
	assert.False(t, ok)
	_, ok = tr.Peak(time.Minute)
	assert.False(t, ok)
	_, ok = tr.Latest()
	assert.False(t, ok)

	_, err := tr.Track(context.Background())
	require.NoError(t, err)

	clock.Advance(10 * time.Second)
	_, ok = tr.Average(time.Second)
	assert.False(t, ok, "readings older than the window do not count")
	_, ok = tr.Peak(time.Second)
	assert.False(t, ok)
}

func TestTracker_FIFOEviction(t *testing.T) {
	tr, src, clock := newTestTracker(t, 2)
	ctx := context.Background()

	_, err := tr.Track(ctx)
	require.NoError(t, err)
	for _, delta := range []uint64{1, 2, 3, 4, 5} {
		clock.Advance(time.Second)
		src.add(delta, 0)
		_, err := tr.Track(ctx)
		require.NoError(t, err)
		assert.LessOrEqual(t, tr.Len(), 2)
	}

	assert.Equal(t, []uint64{4, 5}, downloads(tr.History()))
}

func TestTracker_FailedTrackLeavesHistory(t *testing.T) {
	tr, src, clock := newTestTracker(t, 4)
	ctx := context.Background()

	_, err := tr.Track(ctx)
	require.NoError(t, err)

	clock.Advance(10 * time.Millisecond)
	_, err = tr.Track(ctx)
	assert.True(t, IsRetryable(err))

	src.fail(errors.New("gone"))
	clock.Advance(time.Second)
	_, err = tr.Track(ctx)
	assert.Error(t, err)

	assert.Len(t, tr.History(), 1)
}

func TestTracker_HistoryIsACopy(t *testing.T) {
	tr, _, _ := newTestTracker(t, 2)
	_, err := tr.Track(context.Background())
	require.NoError(t, err)

	h := tr.History()
	h[0].Download = 12345
	assert.Equal(t, uint64(0), tr.History()[0].Download)
}

func TestTracker_ClearHistoryKeepsBaseline(t *testing.T) {
	tr, src, clock := newTestTracker(t, 4)
	ctx := context.Background()

	_, err := tr.Track(ctx)
	require.NoError(t, err)
	tr.ClearHistory()
	assert.Empty(t, tr.History())

	clock.Advance(time.Second)
	src.add(700, 0)
	s, err := tr.Track(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(700), s.Download)
}

func TestTracker_ResetClearsBaseline(t *testing.T) {
	tr, src, clock := newTestTracker(t, 4)
	ctx := context.Background()

	_, err := tr.Track(ctx)
	require.NoError(t, err)
	tr.Reset()
	assert.Empty(t, tr.History())

	clock.Advance(time.Second)
	src.add(700, 0)
	s, err := tr.Track(ctx)
	require.NoError(t, err)
	assert.True(t, s.IsZero())
}

func TestHistory_Ring(t *testing.T) {
	h := newHistory(3)
	for i := uint64(1); i <= 7; i++ {
		h.push(speed.New(0, i, time.Time{}))
	}
	assert.Equal(t, []uint64{5, 6, 7}, downloads(h.items()))

	last, ok := h.latest()
	require.True(t, ok)
	assert.Equal(t, uint64(7), last.Download)

	h.clear()
	assert.Equal(t, 0, h.len())
	assert.Equal(t, 3, h.capacity())
	h.push(speed.New(0, 9, time.Time{}))
	assert.Equal(t, []uint64{9}, downloads(h.items()))
}
