package tray

import (
	"bytes"
	"image/color"
	"image/png"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shini4i/netspeed/internal/speed"
)

func TestNew_InitializesOffline(t *testing.T) {
	tr := New()

	assert.Equal(t, StateOffline, tr.state)
	assert.NotNil(t, tr.done)
	assert.False(t, tr.running)
}

func TestTray_CallbackRegistration(t *testing.T) {
	tr := New()

	resetCalled, quitCalled := false, false
	require.NoError(t, tr.OnReset(func() { resetCalled = true }))
	require.NoError(t, tr.OnQuit(func() { quitCalled = true }))

	tr.onReset()
	tr.onQuit()
	assert.True(t, resetCalled)
	assert.True(t, quitCalled)
}

func TestTray_CallbackErrorsAfterRunning(t *testing.T) {
	tr := New()

	// Simulate running state; Run() itself needs a display.
	tr.mu.Lock()
	tr.running = true
	tr.mu.Unlock()

	assert.ErrorIs(t, tr.OnReset(func() {}), ErrTrayAlreadyRunning)
	assert.ErrorIs(t, tr.OnQuit(func() {}), ErrTrayAlreadyRunning)
	assert.ErrorIs(t, tr.Run(), ErrTrayRunTwice)
}

func TestTray_RunRequiresCallbacks(t *testing.T) {
	tr := New()
	require.NoError(t, tr.OnQuit(func() {}))

	assert.ErrorIs(t, tr.Run(), ErrTrayMissingCallbacks)
	assert.False(t, tr.running)
}

func TestTray_StateTransitionsBeforeReady(t *testing.T) {
	tr := New()
	now := time.Now()

	tr.SetSpeed(speed.New(10, 20, now))
	assert.Equal(t, StateIdle, tr.state)
	assert.Empty(t, tr.message)

	tr.SetSpeed(speed.New(0, 5*1024, now))
	assert.Equal(t, StateActive, tr.state)

	tr.SetError("no interfaces")
	assert.Equal(t, StateActive, tr.state)
	assert.Equal(t, uint64(5*1024), tr.current.Download)
	assert.Equal(t, "no interfaces", tr.message)

	tr.SetOffline("daemon stopped")
	assert.Equal(t, StateOffline, tr.state)
	assert.True(t, tr.current.IsZero())
}

func TestStateFor(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name string
		s    speed.Speed
		want State
	}{
		{"silent", speed.Zero(now), StateIdle},
		{"at threshold", speed.New(ActivityThreshold, ActivityThreshold, now), StateIdle},
		{"upload above", speed.New(ActivityThreshold+1, 0, now), StateActive},
		{"download above", speed.New(0, ActivityThreshold+1, now), StateActive},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, stateFor(tt.s))
		})
	}
}

func TestLabels(t *testing.T) {
	s := speed.New(512, 1536, time.Now())

	assert.Equal(t, "↓ 1.50 KB/s  ↑ 512 B/s", rateLabel(s))
	assert.Equal(t, "↓1.50 KB/s ↑512 B/s", titleFor(StateActive, s))
	assert.Empty(t, titleFor(StateOffline, s))

	assert.Equal(t, "netspeed - ↓ 1.50 KB/s  ↑ 512 B/s", tooltipFor(StateIdle, s, ""))
	assert.Equal(t, "netspeed - offline (connection refused)", tooltipFor(StateOffline, s, "connection refused"))
}

func TestIconFor(t *testing.T) {
	assert.Equal(t, iconActivePNG, iconFor(StateActive))
	assert.Equal(t, iconIdlePNG, iconFor(StateIdle))
	assert.Equal(t, iconOfflinePNG, iconFor(StateOffline))
}

func TestGenerateArrowsIcon_ReturnsValidPNG(t *testing.T) {
	data := generateArrowsIcon(color.RGBA{76, 175, 80, 255})
	require.NotEmpty(t, data)

	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, iconSize, img.Bounds().Dx())
	assert.Equal(t, iconSize, img.Bounds().Dy())

	// Arrow tips are painted, the center gap is not.
	_, _, _, a := img.At(6, 3).RGBA()
	assert.NotZero(t, a)
	_, _, _, a = img.At(15, 18).RGBA()
	assert.NotZero(t, a)
	_, _, _, a = img.At(10, 10).RGBA()
	assert.Zero(t, a)
}

func TestPreGeneratedIcons_AreValid(t *testing.T) {
	for name, data := range map[string][]byte{
		"idle":    iconIdlePNG,
		"active":  iconActivePNG,
		"offline": iconOfflinePNG,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := png.Decode(bytes.NewReader(data))
			require.NoError(t, err)
		})
	}
}
