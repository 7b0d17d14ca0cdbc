// Package client talks to the netspeed daemon over its UNIX socket.
package client

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shini4i/netspeed/internal/protocol"
)

const (
	// DefaultTimeout for RPC calls.
	DefaultTimeout = 10 * time.Second
)

var (
	// ErrDaemonNotAvailable is returned when the daemon socket cannot be reached.
	ErrDaemonNotAvailable = errors.New("netspeed daemon not available")
	// ErrClosed is returned for calls pending when the client closes.
	ErrClosed = errors.New("client closed")
)

// RemoteError is a failure reported by the daemon.
type RemoteError struct {
	Code    string
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Client is a connection to the daemon. Events arrive on the callbacks
// registered with OnSpeed and OnError.
type Client struct {
	conn   net.Conn
	reader *bufio.Reader

	mu      sync.RWMutex
	onSpeed func(protocol.SpeedData)
	onError func(protocol.ErrorData)

	// writeMu serializes NDJSON writes
	writeMu sync.Mutex

	pendingMu sync.Mutex
	pending   map[string]chan *protocol.Response

	closeChan chan struct{}
	closeOnce sync.Once
	done      chan struct{}
}

// Dial connects to the daemon at socketPath.
func Dial(socketPath string) (*Client, error) {
	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDaemonNotAvailable, err)
	}
	return newClient(conn), nil
}

func newClient(conn net.Conn) *Client {
	c := &Client{
		conn:      conn,
		reader:    bufio.NewReader(conn),
		pending:   make(map[string]chan *protocol.Response),
		closeChan: make(chan struct{}),
		done:      make(chan struct{}),
	}
	go c.readLoop()
	return c
}

// IsAvailable reports whether a daemon is listening at socketPath.
func IsAvailable(socketPath string) bool {
	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

// Close closes the connection.
func (c *Client) Close() error {
	var closeErr error
	c.closeOnce.Do(func() {
		close(c.closeChan)
		closeErr = c.conn.Close()
	})
	return closeErr
}

// Done is closed when the connection ends, either by Close or because
// the daemon went away.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// OnSpeed registers a callback for speed events.
func (c *Client) OnSpeed(callback func(protocol.SpeedData)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onSpeed = callback
}

// OnError registers a callback for measurement error events.
func (c *Client) OnError(callback func(protocol.ErrorData)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onError = callback
}

// Speed returns the daemon's most recent reading.
func (c *Client) Speed(ctx context.Context) (protocol.SpeedResult, error) {
	var result protocol.SpeedResult
	err := c.call(ctx, protocol.CommandSpeed, nil, &result)
	return result, err
}

// History returns the daemon's stored readings, oldest first.
func (c *Client) History(ctx context.Context) (protocol.HistoryResult, error) {
	var result protocol.HistoryResult
	err := c.call(ctx, protocol.CommandHistory, nil, &result)
	return result, err
}

// Average returns the mean rate over the trailing window.
func (c *Client) Average(ctx context.Context, window time.Duration) (protocol.AggregateResult, error) {
	var result protocol.AggregateResult
	err := c.call(ctx, protocol.CommandAverage, protocol.WindowParams{WindowMs: window.Milliseconds()}, &result)
	return result, err
}

// Peak returns the per-direction maximum over the trailing window.
func (c *Client) Peak(ctx context.Context, window time.Duration) (protocol.AggregateResult, error) {
	var result protocol.AggregateResult
	err := c.call(ctx, protocol.CommandPeak, protocol.WindowParams{WindowMs: window.Milliseconds()}, &result)
	return result, err
}

// Interfaces lists the daemon's view of the interface table.
func (c *Client) Interfaces(ctx context.Context) (protocol.InterfacesResult, error) {
	var result protocol.InterfacesResult
	err := c.call(ctx, protocol.CommandInterfaces, nil, &result)
	return result, err
}

// Reset clears the daemon's history and baseline.
func (c *Client) Reset(ctx context.Context) error {
	return c.call(ctx, protocol.CommandReset, nil, nil)
}

func (c *Client) call(ctx context.Context, cmd protocol.Command, params, result any) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultTimeout)
		defer cancel()
	}

	resp, err := c.sendRequest(ctx, cmd, params)
	if err != nil {
		return err
	}
	if result == nil || len(resp.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Result, result); err != nil {
		return fmt.Errorf("failed to parse %s result: %w", cmd, err)
	}
	return nil
}

func (c *Client) sendRequest(ctx context.Context, cmd protocol.Command, params any) (*protocol.Response, error) {
	id := uuid.New().String()

	req, err := protocol.NewRequest(id, cmd, params)
	if err != nil {
		return nil, err
	}

	respChan := make(chan *protocol.Response, 1)
	c.pendingMu.Lock()
	c.pending[id] = respChan
	c.pendingMu.Unlock()

	defer func() {
		c.pendingMu.Lock()
		delete(c.pending, id)
		c.pendingMu.Unlock()
	}()

	data, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	data = append(data, '\n')

	c.writeMu.Lock()
	_, writeErr := c.conn.Write(data)
	c.writeMu.Unlock()

	if writeErr != nil {
		return nil, fmt.Errorf("failed to send request: %w", writeErr)
	}

	select {
	case resp := <-respChan:
		if !resp.Success {
			if resp.Error != nil {
				return nil, &RemoteError{Code: resp.Error.Code, Message: resp.Error.Message}
			}
			return nil, errors.New("request failed with unknown error")
		}
		return resp, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.closeChan:
		return nil, ErrClosed
	case <-c.done:
		return nil, ErrClosed
	}
}

func (c *Client) readLoop() {
	defer close(c.done)
	for {
		line, err := c.reader.ReadBytes('\n')
		if err != nil {
			select {
			case <-c.closeChan:
			default:
				if err != io.EOF && !errors.Is(err, net.ErrClosed) {
					slog.Error("Read error from daemon", "error", err)
				}
			}
			return
		}
		c.handleMessage(line)
	}
}

func (c *Client) handleMessage(data []byte) {
	var msg struct {
		Type protocol.MessageType `json:"type"`
	}
	if err := json.Unmarshal(data, &msg); err != nil {
		slog.Warn("Invalid message from daemon", "error", err)
		return
	}

	switch msg.Type {
	case protocol.MessageTypeResponse:
		var resp protocol.Response
		if err := json.Unmarshal(data, &resp); err != nil {
			slog.Warn("Invalid response from daemon", "error", err)
			return
		}
		c.handleResponse(&resp)

	case protocol.MessageTypeEvent:
		var event protocol.Event
		if err := json.Unmarshal(data, &event); err != nil {
			slog.Warn("Invalid event from daemon", "error", err)
			return
		}
		c.handleEvent(&event)

	default:
		slog.Warn("Unknown message type from daemon", "type", msg.Type)
	}
}

func (c *Client) handleResponse(resp *protocol.Response) {
	c.pendingMu.Lock()
	ch, ok := c.pending[resp.ID]
	c.pendingMu.Unlock()

	if ok {
		select {
		case ch <- resp:
		default:
		}
	}
}

func (c *Client) handleEvent(event *protocol.Event) {
	switch event.Name {
	case protocol.EventSpeed:
		var data protocol.SpeedData
		if err := json.Unmarshal(event.Data, &data); err != nil {
			slog.Warn("Invalid speed event", "error", err)
			return
		}
		c.mu.RLock()
		callback := c.onSpeed
		c.mu.RUnlock()
		if callback != nil {
			callback(data)
		}

	case protocol.EventError:
		var data protocol.ErrorData
		if err := json.Unmarshal(event.Data, &data); err != nil {
			slog.Warn("Invalid error event", "error", err)
			return
		}
		c.mu.RLock()
		callback := c.onError
		c.mu.RUnlock()
		if callback != nil {
			callback(data)
		}

	default:
		slog.Debug("Ignoring unknown event", "name", event.Name)
	}
}
