// Package protocol defines the messages exchanged between the netspeed
// daemon and its clients.
//
// The protocol uses newline-delimited JSON (NDJSON) over a UNIX socket.
// Each message is a single JSON object terminated by a newline character.
package protocol

import (
	"encoding/json"
	"time"

	"github.com/shini4i/netspeed/internal/netif"
	"github.com/shini4i/netspeed/internal/speed"
)

// MessageType identifies the type of message.
type MessageType string

const (
	// MessageTypeRequest is sent from client to server.
	MessageTypeRequest MessageType = "request"
	// MessageTypeResponse is sent from server to client in reply to a request.
	MessageTypeResponse MessageType = "response"
	// MessageTypeEvent is broadcast from server to all connected clients.
	MessageTypeEvent MessageType = "event"
)

// Command identifies the operation to perform.
type Command string

const (
	// CommandSpeed returns the most recent reading.
	CommandSpeed Command = "speed"
	// CommandHistory returns every stored reading, oldest first.
	CommandHistory Command = "history"
	// CommandAverage returns the mean over a trailing window.
	CommandAverage Command = "average"
	// CommandPeak returns the per-direction maximum over a trailing window.
	CommandPeak Command = "peak"
	// CommandInterfaces lists interfaces and whether each one is counted.
	CommandInterfaces Command = "interfaces"
	// CommandReset clears history and the measurement baseline.
	CommandReset Command = "reset"
)

// EventName identifies the type of event.
type EventName string

const (
	// EventSpeed carries a fresh reading.
	EventSpeed EventName = "speed"
	// EventError reports a failed measurement.
	EventError EventName = "error"
)

// Request represents a command sent from client to server.
type Request struct {
	ID      string          `json:"id"`
	Type    MessageType     `json:"type"`
	Command Command         `json:"command"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Response represents a reply from server to client.
type Response struct {
	// ID matches the request ID.
	ID      string          `json:"id"`
	Type    MessageType     `json:"type"`
	Success bool            `json:"success"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *ErrorInfo      `json:"error,omitempty"`
}

// Event represents an asynchronous notification from server to clients.
type Event struct {
	Type MessageType     `json:"type"`
	Name EventName       `json:"name"`
	Data json.RawMessage `json:"data"`
}

// ErrorInfo contains details about an error.
type ErrorInfo struct {
	// Code is a machine-readable error code.
	Code string `json:"code"`
	// Message is a human-readable error description.
	Message string `json:"message"`
}

// WindowParams selects the trailing window for average and peak.
type WindowParams struct {
	WindowMs int64 `json:"window_ms"`
}

// Window returns the window as a duration.
func (p WindowParams) Window() time.Duration {
	return time.Duration(p.WindowMs) * time.Millisecond
}

// SpeedData is a reading with human-readable rates alongside the raw values.
type SpeedData struct {
	speed.Speed
	UploadHuman   string `json:"upload"`
	DownloadHuman string `json:"download"`
}

// NewSpeedData wraps s.
func NewSpeedData(s speed.Speed) SpeedData {
	return SpeedData{
		Speed:         s,
		UploadHuman:   s.UploadFormatted(),
		DownloadHuman: s.DownloadFormatted(),
	}
}

// SpeedResult answers the speed command. Available is false before the
// first reading.
type SpeedResult struct {
	Available bool       `json:"available"`
	Speed     *SpeedData `json:"speed,omitempty"`
}

// HistoryResult answers the history command.
type HistoryResult struct {
	Capacity int         `json:"capacity"`
	Samples  []SpeedData `json:"samples"`
}

// AggregateResult answers the average and peak commands. Available is
// false when no reading falls inside the window.
type AggregateResult struct {
	WindowMs  int64      `json:"window_ms"`
	Available bool       `json:"available"`
	Speed     *SpeedData `json:"speed,omitempty"`
}

// InterfaceInfo describes one interface as seen by the daemon.
type InterfaceInfo struct {
	Index       uint32 `json:"index"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Type        uint32 `json:"type"`
	TypeName    string `json:"type_name"`
	Operational bool   `json:"operational"`
	Counted     bool   `json:"counted"`
	BytesIn     uint64 `json:"bytes_in"`
	BytesOut    uint64 `json:"bytes_out"`
}

// NewInterfaceInfo describes r; counted reports whether the filter admits it.
func NewInterfaceInfo(r netif.Record, counted bool) InterfaceInfo {
	return InterfaceInfo{
		Index:       r.Index,
		Name:        r.Name,
		Description: r.Description,
		Type:        r.Type,
		TypeName:    r.TypeName(),
		Operational: r.Operational,
		Counted:     counted,
		BytesIn:     r.BytesIn,
		BytesOut:    r.BytesOut,
	}
}

// InterfacesResult answers the interfaces command.
type InterfacesResult struct {
	Interfaces []InterfaceInfo `json:"interfaces"`
}

// ErrorData contains data for error events.
type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	// Retryable is true when the condition clears on its own.
	Retryable bool `json:"retryable"`
}

// NewRequest creates a new request with the given command and parameters.
func NewRequest(id string, cmd Command, params any) (*Request, error) {
	var paramsJSON json.RawMessage
	if params != nil {
		var err error
		paramsJSON, err = json.Marshal(params)
		if err != nil {
			return nil, err
		}
	}
	return &Request{
		ID:      id,
		Type:    MessageTypeRequest,
		Command: cmd,
		Params:  paramsJSON,
	}, nil
}

// DecodeParams unmarshals the request parameters into v. Absent params
// leave v untouched.
func (r *Request) DecodeParams(v any) error {
	if len(r.Params) == 0 || string(r.Params) == "null" {
		return nil
	}
	return json.Unmarshal(r.Params, v)
}

// NewSuccessResponse creates a successful response.
func NewSuccessResponse(id string, result any) (*Response, error) {
	var resultJSON json.RawMessage
	if result != nil {
		var err error
		resultJSON, err = json.Marshal(result)
		if err != nil {
			return nil, err
		}
	}
	return &Response{
		ID:      id,
		Type:    MessageTypeResponse,
		Success: true,
		Result:  resultJSON,
	}, nil
}

// NewErrorResponse creates an error response.
func NewErrorResponse(id string, code string, message string) *Response {
	return &Response{
		ID:      id,
		Type:    MessageTypeResponse,
		Success: false,
		Error: &ErrorInfo{
			Code:    code,
			Message: message,
		},
	}
}

// NewEvent creates a new event with the given name and data.
func NewEvent(name EventName, data any) (*Event, error) {
	dataJSON, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return &Event{
		Type: MessageTypeEvent,
		Name: name,
		Data: dataJSON,
	}, nil
}

// NewSpeedEvent creates a speed event for s.
func NewSpeedEvent(s speed.Speed) (*Event, error) {
	return NewEvent(EventSpeed, NewSpeedData(s))
}
