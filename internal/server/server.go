// Package server provides the UNIX socket server for the netspeed daemon.
package server

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/user"
	"strconv"
	"sync"

	"github.com/shini4i/netspeed/internal/protocol"
)

const (
	// maxMessageSize bounds a single request line.
	maxMessageSize = 64 * 1024
	// maxConcurrentClients bounds simultaneous connections.
	maxConcurrentClients = 32

	// DefaultSocketMode restricts the socket to its owner.
	DefaultSocketMode os.FileMode = 0600
)

// RequestHandler is called for each incoming request.
// It should return a response to send back to the client.
type RequestHandler func(ctx context.Context, req *protocol.Request) *protocol.Response

// Options tune socket ownership.
type Options struct {
	// Group, when set, is given group ownership and the socket becomes 0660.
	Group string
}

// Server manages client connections over a UNIX socket.
type Server struct {
	socketPath  string
	socketGroup string
	handler     RequestHandler

	mu       sync.RWMutex
	listener net.Listener
	clients  map[*Client]struct{}
	running  bool
	starting bool
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// New creates a server that restricts the socket to the current user.
func New(socketPath string, handler RequestHandler) *Server {
	return NewWithOptions(socketPath, Options{}, handler)
}

// NewWithOptions creates a server with custom socket ownership.
// Panics if handler is nil.
func NewWithOptions(socketPath string, opts Options, handler RequestHandler) *Server {
	if handler == nil {
		panic("server: NewWithOptions called with nil handler")
	}
	return &Server{
		socketPath:  socketPath,
		socketGroup: opts.Group,
		handler:     handler,
		clients:     make(map[*Client]struct{}),
	}
}

// SocketPath returns the path the server listens on.
func (s *Server) SocketPath() string {
	return s.socketPath
}

// Start begins listening for connections.
// Returns an error if the server is already running or starting.
func (s *Server) Start() error {
	s.mu.Lock()
	if s.running || s.starting {
		s.mu.Unlock()
		return fmt.Errorf("server already running")
	}
	s.starting = true
	s.mu.Unlock()

	clearStarting := func() {
		s.mu.Lock()
		s.starting = false
		s.mu.Unlock()
	}

	if err := os.Remove(s.socketPath); err != nil && !os.IsNotExist(err) {
		clearStarting()
		return fmt.Errorf("failed to remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		clearStarting()
		return fmt.Errorf("failed to listen on socket: %w", err)
	}

	if err := s.applyPermissions(); err != nil {
		if closeErr := listener.Close(); closeErr != nil {
			slog.Error("Failed to close listener after permission error", "error", closeErr)
		}
		clearStarting()
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())

	s.mu.Lock()
	s.listener = listener
	s.ctx = ctx
	s.cancel = cancel
	s.running = true
	s.starting = false
	s.mu.Unlock()

	slog.Info("Server started", "socket", s.socketPath, "group", s.socketGroup)

	s.wg.Add(1)
	go s.acceptLoop(listener)

	return nil
}

func (s *Server) applyPermissions() error {
	mode := DefaultSocketMode
	if s.socketGroup != "" {
		grp, err := user.LookupGroup(s.socketGroup)
		if err != nil {
			return fmt.Errorf("group %q not found: %w", s.socketGroup, err)
		}
		gid, err := strconv.Atoi(grp.Gid)
		if err != nil {
			return fmt.Errorf("invalid gid %q: %w", grp.Gid, err)
		}
		if err := os.Chown(s.socketPath, -1, gid); err != nil {
			return fmt.Errorf("failed to chown socket: %w", err)
		}
		slog.Debug("Socket group ownership set", "group", s.socketGroup, "gid", gid)
		mode = 0660
	}

	if err := os.Chmod(s.socketPath, mode); err != nil {
		return fmt.Errorf("failed to set socket permissions: %w", err)
	}
	return nil
}

// Stop closes the listener and every client, then waits for handlers to return.
func (s *Server) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	listener := s.listener
	cancel := s.cancel

	clients := make([]*Client, 0, len(s.clients))
	for client := range s.clients {
		clients = append(clients, client)
	}
	s.mu.Unlock()

	cancel()

	if listener != nil {
		if err := listener.Close(); err != nil {
			slog.Error("Failed to close listener", "error", err)
		}
	}

	for _, client := range clients {
		if err := client.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			slog.Warn("Failed to close client connection", "error", err)
		}
	}

	s.wg.Wait()

	if err := os.Remove(s.socketPath); err != nil && !os.IsNotExist(err) {
		slog.Warn("Failed to remove socket file", "path", s.socketPath, "error", err)
	}

	slog.Info("Server stopped")
	return nil
}

// Broadcast sends an event to all connected clients.
func (s *Server) Broadcast(event *protocol.Event) {
	s.mu.RLock()
	clients := make([]*Client, 0, len(s.clients))
	for client := range s.clients {
		clients = append(clients, client)
	}
	s.mu.RUnlock()

	for _, client := range clients {
		if err := client.SendEvent(event); err != nil {
			slog.Debug("Failed to send event to client", "error", err)
		}
	}
}

// ClientCount returns the number of connected clients.
func (s *Server) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

func (s *Server) acceptLoop(listener net.Listener) {
	defer s.wg.Done()

	for {
		conn, err := listener.Accept()
		if err != nil {
			s.mu.RLock()
			running := s.running
			s.mu.RUnlock()
			if !running {
				return
			}
			slog.Error("Accept error", "error", err)
			continue
		}

		client := newClient(conn)
		accepted, running := s.addClient(client)
		if !accepted {
			_ = client.Close()
			if !running {
				return
			}
			continue
		}
		s.wg.Add(1)
		go s.handleClient(client)
	}
}

func (s *Server) addClient(client *Client) (accepted, running bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return false, false
	}
	if len(s.clients) >= maxConcurrentClients {
		slog.Warn("Rejecting client, connection limit reached", "limit", maxConcurrentClients)
		return false, true
	}
	s.clients[client] = struct{}{}
	slog.Info("Client connected", "clients", len(s.clients))
	return true, true
}

func (s *Server) removeClient(client *Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.clients, client)
	slog.Info("Client disconnected", "clients", len(s.clients))
}

func (s *Server) handleClient(client *Client) {
	defer s.wg.Done()
	defer func() {
		if err := client.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			slog.Debug("Failed to close client connection", "error", err)
		}
		s.removeClient(client)
	}()

	s.mu.RLock()
	ctx := s.ctx
	s.mu.RUnlock()

	scanner := bufio.NewScanner(client.conn)
	scanner.Buffer(make([]byte, 4096), maxMessageSize)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req protocol.Request
		if err := json.Unmarshal(line, &req); err != nil {
			slog.Warn("Invalid request", "error", err)
			resp := protocol.NewErrorResponse("", protocol.ErrCodeInvalidRequest, "invalid JSON")
			if err := client.SendResponse(resp); err != nil {
				slog.Warn("Failed to send error response", "error", err)
				return
			}
			continue
		}

		resp := s.handler(ctx, &req)
		if err := client.SendResponse(resp); err != nil {
			slog.Error("Failed to send response", "error", err)
			return
		}
	}

	if err := scanner.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			slog.Warn("Request exceeds size limit", "limit", maxMessageSize)
			resp := protocol.NewErrorResponse("", protocol.ErrCodeMessageTooLarge, "message too large")
			_ = client.SendResponse(resp)
			return
		}
		if !errors.Is(err, net.ErrClosed) {
			slog.Error("Read error", "error", err)
		}
	}
}

// Client represents a connected client.
type Client struct {
	conn net.Conn
	mu   sync.Mutex
}

func newClient(conn net.Conn) *Client {
	return &Client{conn: conn}
}

// SendResponse sends a response to the client.
func (c *Client) SendResponse(resp *protocol.Response) error {
	return c.sendJSON(resp)
}

// SendEvent sends an event to the client.
func (c *Client) SendEvent(event *protocol.Event) error {
	return c.sendJSON(event)
}

// Close closes the client connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) sendJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	data = append(data, '\n')

	_, err = c.conn.Write(data)
	return err
}
