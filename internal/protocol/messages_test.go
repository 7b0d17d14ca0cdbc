package protocol

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shini4i/netspeed/internal/netif"
	"github.com/shini4i/netspeed/internal/speed"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRequest(t *testing.T) {
	tests := []struct {
		name       string
		id         string
		cmd        Command
		params     any
		wantParams string
	}{
		{"speed without params", "req-001", CommandSpeed, nil, ""},
		{"average with window", "req-002", CommandAverage, WindowParams{WindowMs: 5000}, `{"window_ms":5000}`},
		{"peak with window", "req-003", CommandPeak, WindowParams{WindowMs: 1}, `{"window_ms":1}`},
		{"reset", "req-004", CommandReset, nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := NewRequest(tt.id, tt.cmd, tt.params)
			require.NoError(t, err)

			assert.Equal(t, tt.id, req.ID)
			assert.Equal(t, MessageTypeRequest, req.Type)
			assert.Equal(t, tt.cmd, req.Command)
			assert.Equal(t, tt.wantParams, string(req.Params))
		})
	}
}

func TestNewRequest_UnmarshalableParams(t *testing.T) {
	_, err := NewRequest("x", CommandSpeed, make(chan int))
	assert.Error(t, err)
}

func TestRequest_DecodeParams(t *testing.T) {
	t.Run("absent params keep defaults", func(t *testing.T) {
		req := &Request{Command: CommandAverage}
		p := WindowParams{WindowMs: 60000}
		require.NoError(t, req.DecodeParams(&p))
		assert.Equal(t, int64(60000), p.WindowMs)
	})

	t.Run("null params keep defaults", func(t *testing.T) {
		req := &Request{Command: CommandAverage, Params: json.RawMessage("null")}
		p := WindowParams{WindowMs: 10}
		require.NoError(t, req.DecodeParams(&p))
		assert.Equal(t, int64(10), p.WindowMs)
	})

	t.Run("window decoded", func(t *testing.T) {
		var req Request
		require.NoError(t, json.Unmarshal([]byte(`{"id":"1","type":"request","command":"peak","params":{"window_ms":2500}}`), &req))
		var p WindowParams
		require.NoError(t, req.DecodeParams(&p))
		assert.Equal(t, 2500*time.Millisecond, p.Window())
	})

	t.Run("malformed params", func(t *testing.T) {
		req := &Request{Params: json.RawMessage(`{"window_ms":"soon"}`)}
		var p WindowParams
		assert.Error(t, req.DecodeParams(&p))
	})
}

func TestNewSuccessResponse(t *testing.T) {
	resp, err := NewSuccessResponse("req-1", SpeedResult{Available: false})
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, MessageTypeResponse, resp.Type)
	assert.JSONEq(t, `{"available":false}`, string(resp.Result))
	assert.Nil(t, resp.Error)

	empty, err := NewSuccessResponse("req-2", nil)
	require.NoError(t, err)
	assert.Nil(t, empty.Result)
}

func TestNewErrorResponse(t *testing.T) {
	resp := NewErrorResponse("req-1", ErrCodeInvalidCommand, "unknown command: flush")
	assert.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeInvalidCommand, resp.Error.Code)
	assert.Equal(t, "unknown command: flush", resp.Error.Message)

	data, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.NotContains(t, string(data), `"result"`)
}

func TestNewSpeedEvent(t *testing.T) {
	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	event, err := NewSpeedEvent(speed.New(1536, 512, at))
	require.NoError(t, err)

	assert.Equal(t, MessageTypeEvent, event.Type)
	assert.Equal(t, EventSpeed, event.Name)
	assert.JSONEq(t, `{
		"upload_bytes_per_sec": 1536,
		"download_bytes_per_sec": 512,
		"measured_at": "2024-05-01T10:00:00Z",
		"upload": "1.50 KB/s",
		"download": "512 B/s"
	}`, string(event.Data))

	var decoded SpeedData
	require.NoError(t, json.Unmarshal(event.Data, &decoded))
	assert.Equal(t, uint64(1536), decoded.Upload)
	assert.True(t, at.Equal(decoded.MeasuredAt))
}

func TestNewInterfaceInfo(t *testing.T) {
	info := NewInterfaceInfo(netif.Record{
		Index: 3, Name: "wlan0", Description: "wlan0 (iwlwifi)", Type: netif.TypeWiFi,
		Operational: true, BytesIn: 10, BytesOut: 20,
	}, true)

	assert.Equal(t, InterfaceInfo{
		Index: 3, Name: "wlan0", Description: "wlan0 (iwlwifi)", Type: netif.TypeWiFi,
		TypeName: "Wi-Fi", Operational: true, Counted: true, BytesIn: 10, BytesOut: 20,
	}, info)
}

func TestNewEvent_Error(t *testing.T) {
	event, err := NewEvent(EventError, ErrorData{Code: ErrCodeTooSoon, Message: "wait", Retryable: true})
	require.NoError(t, err)
	assert.JSONEq(t, `{"code":"INSUFFICIENT_TIME_ELAPSED","message":"wait","retryable":true}`, string(event.Data))
}
