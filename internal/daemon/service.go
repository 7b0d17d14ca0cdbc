package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shini4i/netspeed/internal/metrics"
	"github.com/shini4i/netspeed/internal/monitor"
	"github.com/shini4i/netspeed/internal/netif"
	"github.com/shini4i/netspeed/internal/protocol"
	"github.com/shini4i/netspeed/internal/speed"
)

// DefaultWindow is used by average and peak when the request names none.
const DefaultWindow = time.Minute

// Service answers queries against a tracker. It backs both the socket
// protocol and the HTTP API.
type Service struct {
	tracker *monitor.Tracker
	source  netif.Source
	metrics *metrics.Metrics
}

// NewService creates a service. m may be nil.
func NewService(tracker *monitor.Tracker, source netif.Source, m *metrics.Metrics) *Service {
	return &Service{tracker: tracker, source: source, metrics: m}
}

// Speed returns the most recent reading.
func (s *Service) Speed() protocol.SpeedResult {
	latest, ok := s.tracker.Latest()
	if !ok {
		return protocol.SpeedResult{}
	}
	data := protocol.NewSpeedData(latest)
	return protocol.SpeedResult{Available: true, Speed: &data}
}

// History returns every stored reading, oldest first.
func (s *Service) History() protocol.HistoryResult {
	history := s.tracker.History()
	samples := make([]protocol.SpeedData, 0, len(history))
	for _, h := range history {
		samples = append(samples, protocol.NewSpeedData(h))
	}
	return protocol.HistoryResult{Capacity: s.tracker.Capacity(), Samples: samples}
}

// Average returns the mean over the trailing window.
func (s *Service) Average(window time.Duration) protocol.AggregateResult {
	avg, ok := s.tracker.Average(window)
	return aggregate(window, avg, ok)
}

// Peak returns the per-direction maximum over the trailing window.
func (s *Service) Peak(window time.Duration) protocol.AggregateResult {
	peak, ok := s.tracker.Peak(window)
	return aggregate(window, peak, ok)
}

// Interfaces lists every interface with a flag telling whether it is counted.
func (s *Service) Interfaces(ctx context.Context) (protocol.InterfacesResult, error) {
	records, err := netif.List(ctx, s.source)
	if err != nil {
		return protocol.InterfacesResult{}, err
	}

	filter := s.tracker.Monitor().Config().Filter
	result := protocol.InterfacesResult{Interfaces: make([]protocol.InterfaceInfo, 0, len(records))}
	counted := 0
	for _, r := range records {
		ok := filter.Allows(r)
		if ok {
			counted++
		}
		result.Interfaces = append(result.Interfaces, protocol.NewInterfaceInfo(r, ok))
	}
	if s.metrics != nil {
		s.metrics.SetInterfaces(counted)
	}
	return result, nil
}

// Reset clears history and the baseline.
func (s *Service) Reset() {
	s.tracker.Reset()
	if s.metrics != nil {
		s.metrics.Reset()
	}
	slog.Info("Measurement state reset")
}

// Handle dispatches a socket request.
func (s *Service) Handle(ctx context.Context, req *protocol.Request) *protocol.Response {
	switch req.Command {
	case protocol.CommandSpeed:
		return s.respond(req.ID, s.Speed())

	case protocol.CommandHistory:
		return s.respond(req.ID, s.History())

	case protocol.CommandAverage, protocol.CommandPeak:
		params := protocol.WindowParams{WindowMs: DefaultWindow.Milliseconds()}
		if err := req.DecodeParams(&params); err != nil {
			return protocol.NewErrorResponse(req.ID, protocol.ErrCodeInvalidParams, fmt.Sprintf("invalid params: %v", err))
		}
		if params.WindowMs < 0 {
			return protocol.NewErrorResponse(req.ID, protocol.ErrCodeInvalidParams, "window_ms must not be negative")
		}
		if req.Command == protocol.CommandAverage {
			return s.respond(req.ID, s.Average(params.Window()))
		}
		return s.respond(req.ID, s.Peak(params.Window()))

	case protocol.CommandInterfaces:
		result, err := s.Interfaces(ctx)
		if err != nil {
			return protocol.NewErrorResponse(req.ID, protocol.ErrCodeSourceUnavailable, err.Error())
		}
		return s.respond(req.ID, result)

	case protocol.CommandReset:
		s.Reset()
		return s.respond(req.ID, nil)

	default:
		return protocol.NewErrorResponse(req.ID, protocol.ErrCodeInvalidCommand, fmt.Sprintf("unknown command: %s", req.Command))
	}
}

func (s *Service) respond(id string, result any) *protocol.Response {
	resp, err := protocol.NewSuccessResponse(id, result)
	if err != nil {
		slog.Error("Failed to encode response", "error", err)
		return protocol.NewErrorResponse(id, protocol.ErrCodeInternalError, "failed to encode response")
	}
	return resp
}

func aggregate(window time.Duration, s speed.Speed, ok bool) protocol.AggregateResult {
	result := protocol.AggregateResult{WindowMs: window.Milliseconds(), Available: ok}
	if ok {
		data := protocol.NewSpeedData(s)
		result.Speed = &data
	}
	return result
}

// ErrorCode maps a measurement error to its protocol code.
func ErrorCode(err error) string {
	var (
		tooSoon *monitor.InsufficientTimeElapsedError
		src     *monitor.SourceUnavailableError
	)
	switch {
	case errors.Is(err, monitor.ErrNoInterfacesFound):
		return protocol.ErrCodeNoInterfaces
	case errors.As(err, &tooSoon):
		return protocol.ErrCodeTooSoon
	case errors.As(err, &src):
		return protocol.ErrCodeSourceUnavailable
	default:
		return protocol.ErrCodeInternalError
	}
}
