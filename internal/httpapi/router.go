// Package httpapi serves daemon readings over HTTP.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/shini4i/netspeed/internal/protocol"
)

// DefaultWindow applies to /average and /peak without a window parameter.
const DefaultWindow = time.Minute

// Service is the query surface the router exposes.
type Service interface {
	Speed() protocol.SpeedResult
	History() protocol.HistoryResult
	Average(window time.Duration) protocol.AggregateResult
	Peak(window time.Duration) protocol.AggregateResult
	Interfaces(ctx context.Context) (protocol.InterfacesResult, error)
	Reset()
}

type errorBody struct {
	Error string `json:"error"`
}

// NewRouter builds the gin engine. metricsHandler may be nil.
func NewRouter(svc Service, metricsHandler http.Handler) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/speed", func(c *gin.Context) {
		c.JSON(http.StatusOK, svc.Speed())
	})

	r.GET("/history", func(c *gin.Context) {
		c.JSON(http.StatusOK, svc.History())
	})

	r.GET("/average", func(c *gin.Context) {
		window, ok := parseWindow(c)
		if !ok {
			return
		}
		c.JSON(http.StatusOK, svc.Average(window))
	})

	r.GET("/peak", func(c *gin.Context) {
		window, ok := parseWindow(c)
		if !ok {
			return
		}
		c.JSON(http.StatusOK, svc.Peak(window))
	})

	r.GET("/interfaces", func(c *gin.Context) {
		result, err := svc.Interfaces(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, errorBody{Error: err.Error()})
			return
		}
		c.JSON(http.StatusOK, result)
	})

	r.POST("/reset", func(c *gin.Context) {
		svc.Reset()
		c.Status(http.StatusNoContent)
	})

	if metricsHandler != nil {
		r.GET("/metrics", gin.WrapH(metricsHandler))
	}

	return r
}

// NewServer wraps handler in an http.Server listening on addr.
func NewServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// parseWindow reads ?window= as a Go duration. It writes a 400 and
// reports false when the value is malformed or negative.
func parseWindow(c *gin.Context) (time.Duration, bool) {
	raw := c.Query("window")
	if raw == "" {
		return DefaultWindow, true
	}
	window, err := time.ParseDuration(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorBody{Error: "invalid window: " + err.Error()})
		return 0, false
	}
	if window < 0 {
		c.JSON(http.StatusBadRequest, errorBody{Error: "window must not be negative"})
		return 0, false
	}
	return window, true
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		slog.Debug("HTTP request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}
