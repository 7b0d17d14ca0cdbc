package daemon

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shini4i/netspeed/internal/metrics"
	"github.com/shini4i/netspeed/internal/monitor"
	"github.com/shini4i/netspeed/internal/netif"
	"github.com/shini4i/netspeed/internal/poller"
	"github.com/shini4i/netspeed/internal/protocol"
)

type manualClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// stepSource adds step bytes in each direction on every call.
type stepSource struct {
	step    uint64
	counter atomic.Uint64
	err     atomic.Pointer[error]
}

func (s *stepSource) Interfaces(context.Context) ([]netif.Record, error) {
	if errp := s.err.Load(); errp != nil {
		return nil, *errp
	}
	n := s.counter.Add(s.step)
	return []netif.Record{
		{Index: 1, Name: "lo", Type: netif.TypeLoopback, Operational: true, BytesIn: 7, BytesOut: 7},
		{Index: 2, Name: "eth0", Type: netif.TypeEthernet, Operational: true, BytesIn: n, BytesOut: n / 2},
	}, nil
}

func (s *stepSource) fail(err error) {
	s.err.Store(&err)
}

func newTestService(t *testing.T) (*Service, *stepSource, *manualClock) {
	t.Helper()
	src := &stepSource{step: 1000}
	clock := &manualClock{t: time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)}
	m, err := monitor.NewWithConfig(src, monitor.DefaultConfig(), monitor.WithClock(clock.Now))
	require.NoError(t, err)
	tracker, err := monitor.NewTracker(m, 10)
	require.NoError(t, err)
	return NewService(tracker, src, metrics.New("test")), src, clock
}

func request(t *testing.T, cmd protocol.Command, params any) *protocol.Request {
	t.Helper()
	req, err := protocol.NewRequest("req-1", cmd, params)
	require.NoError(t, err)
	return req
}

func decode[T any](t *testing.T, resp *protocol.Response) T {
	t.Helper()
	require.True(t, resp.Success, "unexpected error: %+v", resp.Error)
	var v T
	require.NoError(t, json.Unmarshal(resp.Result, &v))
	return v
}

func TestHandle_SpeedBeforeAndAfterReadings(t *testing.T) {
	svc, _, clock := newTestService(t)
	ctx := context.Background()

	got := decode[protocol.SpeedResult](t, svc.Handle(ctx, request(t, protocol.CommandSpeed, nil)))
	assert.False(t, got.Available)
	assert.Nil(t, got.Speed)

	_, err := svc.tracker.Track(ctx)
	require.NoError(t, err)
	clock.Advance(time.Second)
	_, err = svc.tracker.Track(ctx)
	require.NoError(t, err)

	got = decode[protocol.SpeedResult](t, svc.Handle(ctx, request(t, protocol.CommandSpeed, nil)))
	require.True(t, got.Available)
	assert.Equal(t, uint64(1000), got.Speed.Download)
	assert.Equal(t, uint64(500), got.Speed.Upload)
	assert.Equal(t, "1000 B/s", got.Speed.DownloadHuman)
}

func TestHandle_History(t *testing.T) {
	svc, _, clock := newTestService(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := svc.tracker.Track(ctx)
		require.NoError(t, err)
		clock.Advance(time.Second)
	}

	got := decode[protocol.HistoryResult](t, svc.Handle(ctx, request(t, protocol.CommandHistory, nil)))
	assert.Equal(t, 10, got.Capacity)
	require.Len(t, got.Samples, 3)
	assert.Zero(t, got.Samples[0].Download)
	assert.Equal(t, uint64(1000), got.Samples[2].Download)
}

func TestHandle_Aggregates(t *testing.T) {
	svc, _, clock := newTestService(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := svc.tracker.Track(ctx)
		require.NoError(t, err)
		clock.Advance(time.Second)
	}

	t.Run("average default window", func(t *testing.T) {
		got := decode[protocol.AggregateResult](t, svc.Handle(ctx, request(t, protocol.CommandAverage, nil)))
		assert.Equal(t, DefaultWindow.Milliseconds(), got.WindowMs)
		require.True(t, got.Available)
		// baseline zero plus two readings of 1000
		assert.Equal(t, uint64(666), got.Speed.Download)
	})

	t.Run("peak explicit window", func(t *testing.T) {
		got := decode[protocol.AggregateResult](t, svc.Handle(ctx, request(t, protocol.CommandPeak, protocol.WindowParams{WindowMs: 30000})))
		assert.Equal(t, int64(30000), got.WindowMs)
		require.True(t, got.Available)
		assert.Equal(t, uint64(1000), got.Speed.Download)
	})

	t.Run("empty window", func(t *testing.T) {
		clock.Advance(time.Hour)
		got := decode[protocol.AggregateResult](t, svc.Handle(ctx, request(t, protocol.CommandAverage, protocol.WindowParams{WindowMs: 1000})))
		assert.False(t, got.Available)
		assert.Nil(t, got.Speed)
	})
}

func TestHandle_Errors(t *testing.T) {
	svc, src, _ := newTestService(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		req      *protocol.Request
		wantCode string
	}{
		{
			name:     "negative window",
			req:      request(t, protocol.CommandPeak, protocol.WindowParams{WindowMs: -1}),
			wantCode: protocol.ErrCodeInvalidParams,
		},
		{
			name:     "malformed params",
			req:      &protocol.Request{ID: "req-1", Type: protocol.MessageTypeRequest, Command: protocol.CommandAverage, Params: json.RawMessage(`"soon"`)},
			wantCode: protocol.ErrCodeInvalidParams,
		},
		{
			name:     "unknown command",
			req:      request(t, protocol.Command("launch"), nil),
			wantCode: protocol.ErrCodeInvalidCommand,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := svc.Handle(ctx, tt.req)
			assert.False(t, resp.Success)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.wantCode, resp.Error.Code)
			assert.Equal(t, "req-1", resp.ID)
		})
	}

	t.Run("interfaces source failure", func(t *testing.T) {
		src.fail(errors.New("sysfs gone"))
		resp := svc.Handle(ctx, request(t, protocol.CommandInterfaces, nil))
		require.NotNil(t, resp.Error)
		assert.Equal(t, protocol.ErrCodeSourceUnavailable, resp.Error.Code)
	})
}

func TestHandle_Interfaces(t *testing.T) {
	svc, _, _ := newTestService(t)

	got := decode[protocol.InterfacesResult](t, svc.Handle(context.Background(), request(t, protocol.CommandInterfaces, nil)))
	require.Len(t, got.Interfaces, 2)
	assert.Equal(t, "lo", got.Interfaces[0].Name)
	assert.False(t, got.Interfaces[0].Counted)
	assert.Equal(t, "Loopback", got.Interfaces[0].TypeName)
	assert.Equal(t, "eth0", got.Interfaces[1].Name)
	assert.True(t, got.Interfaces[1].Counted)
}

func TestHandle_Reset(t *testing.T) {
	svc, _, clock := newTestService(t)
	ctx := context.Background()

	_, err := svc.tracker.Track(ctx)
	require.NoError(t, err)
	clock.Advance(time.Second)
	_, err = svc.tracker.Track(ctx)
	require.NoError(t, err)

	resp := svc.Handle(ctx, request(t, protocol.CommandReset, nil))
	assert.True(t, resp.Success)
	assert.Zero(t, svc.tracker.Len())

	// The next reading is a fresh baseline.
	clock.Advance(time.Second)
	s, err := svc.tracker.Track(ctx)
	require.NoError(t, err)
	assert.True(t, s.IsZero())
}

func TestErrorCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"no interfaces", monitor.ErrNoInterfacesFound, protocol.ErrCodeNoInterfaces},
		{"wrapped no interfaces", fmt.Errorf("poll: %w", monitor.ErrNoInterfacesFound), protocol.ErrCodeNoInterfaces},
		{"too soon", &monitor.InsufficientTimeElapsedError{Min: 100 * time.Millisecond, Actual: time.Millisecond}, protocol.ErrCodeTooSoon},
		{"source", &monitor.SourceUnavailableError{Err: errors.New("boom")}, protocol.ErrCodeSourceUnavailable},
		{"other", errors.New("boom"), protocol.ErrCodeInternalError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ErrorCode(tt.err))
		})
	}
}

func newTestDaemon(t *testing.T, src netif.Source, opts Options) *Daemon {
	t.Helper()
	tracker, err := monitor.NewTracker(monitor.New(src), 10)
	require.NoError(t, err)
	return New(tracker, src, opts)
}

func TestRun_BroadcastsSpeedEvents(t *testing.T) {
	socketPath := filepath.Join(t.TempDir(), "netspeed.sock")
	ready := make(chan struct{})
	d := newTestDaemon(t, &stepSource{step: 4096}, Options{
		SocketPath:   socketPath,
		PollInterval: 150 * time.Millisecond,
		ChannelSize:  4,
		Backpressure: poller.DropOldest,
		Version:      "test",
		Ready:        func() { close(ready) },
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	select {
	case <-ready:
	case <-time.After(2 * time.Second):
		t.Fatal("daemon never became ready")
	}

	var conn net.Conn
	require.Eventually(t, func() bool {
		c, err := net.Dial("unix", socketPath)
		if err != nil {
			return false
		}
		conn = c
		return true
	}, 2*time.Second, 20*time.Millisecond)
	defer func() { _ = conn.Close() }()

	reader := bufio.NewReader(conn)
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		line, err := reader.ReadBytes('\n')
		require.NoError(t, err)

		var event protocol.Event
		require.NoError(t, json.Unmarshal(line, &event))
		if event.Type != protocol.MessageTypeEvent || event.Name != protocol.EventSpeed {
			continue
		}
		var data protocol.SpeedData
		require.NoError(t, json.Unmarshal(event.Data, &data))
		if data.Download > 0 {
			assert.NotEmpty(t, data.DownloadHuman)
			break
		}
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRun_BroadcastsErrorEvents(t *testing.T) {
	socketPath := filepath.Join(t.TempDir(), "netspeed.sock")
	src := netif.SourceFunc(func(context.Context) ([]netif.Record, error) {
		return []netif.Record{{Index: 1, Name: "lo", Type: netif.TypeLoopback, Operational: true}}, nil
	})
	d := newTestDaemon(t, src, Options{
		SocketPath:   socketPath,
		PollInterval: 100 * time.Millisecond,
		ChannelSize:  4,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = d.Run(ctx) }()

	var conn net.Conn
	require.Eventually(t, func() bool {
		c, err := net.Dial("unix", socketPath)
		if err != nil {
			return false
		}
		conn = c
		return true
	}, 2*time.Second, 20*time.Millisecond)
	defer func() { _ = conn.Close() }()

	reader := bufio.NewReader(conn)
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	line, err := reader.ReadBytes('\n')
	require.NoError(t, err)

	var event protocol.Event
	require.NoError(t, json.Unmarshal(line, &event))
	assert.Equal(t, protocol.EventError, event.Name)

	var data protocol.ErrorData
	require.NoError(t, json.Unmarshal(event.Data, &data))
	assert.Equal(t, protocol.ErrCodeNoInterfaces, data.Code)
	assert.False(t, data.Retryable)
}

func TestRun_InvalidHTTPAddress(t *testing.T) {
	d := newTestDaemon(t, &stepSource{step: 1}, Options{
		SocketPath:   filepath.Join(t.TempDir(), "netspeed.sock"),
		HTTPListen:   "256.0.0.1:bad",
		PollInterval: time.Second,
	})

	err := d.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to listen")
}
