// Package stream implements Server-Sent Events (SSE) streaming of live body
// positions. Clients connect via GET /api/v1/stream/positions and receive the
// current altitude and azimuth of the requested bodies at a fixed interval.
//
// SSE message format:
//
//	data: {"type":"positions","t":"2026-02-06T04:00:00Z","positions":{"Moon":{...}}}\n\n
//
// First message is always metadata:
//
//	data: {"type":"metadata","observer":{...},"bodies":["Moon"],"interval_seconds":5}\n\n
//
// Keep-alive comments (:\n\n) are sent every KeepaliveInterval to prevent timeout.
package stream

import (
	"context"
	"encoding/json"
	"log/slog"
	"math/rand"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/star/skywatch/internal/body"
	"github.com/star/skywatch/internal/dailypath"
	"github.com/star/skywatch/internal/httputil"
	"github.com/star/skywatch/internal/metrics"
	"github.com/star/skywatch/internal/observer"
	"github.com/star/skywatch/internal/visibility"
)

// Config holds streaming configuration loaded from environment variables.
type Config struct {
	MaxConcurrentPerIP int           // Max concurrent streams per IP (default: 10).
	MaxTotal           int           // Max concurrent streams overall (default: 1000).
	Interval           time.Duration // Default time between position messages (default: 5s).
	KeepaliveInterval  time.Duration // Keep-alive ping interval (default: 30s).
	TrustProxy         bool          // Honour X-Forwarded-For when limiting.
}

// Source computes live positions.
type Source interface {
	Realtime(ctx context.Context, obs observer.Observer, bodies []body.Body, at time.Time) (map[string]dailypath.Position, error)
}

// Handler manages SSE streaming connections.
type Handler struct {
	source   Source
	registry *body.Registry
	obs      observer.Observer
	config   Config
	limiter  *streamLimiter
	logger   *slog.Logger
}

// NewHandler creates a new streaming handler for the given observer.
func NewHandler(source Source, registry *body.Registry, obs observer.Observer, config Config, logger *slog.Logger) *Handler {
	if config.Interval <= 0 {
		config.Interval = 5 * time.Second
	}
	if config.KeepaliveInterval <= 0 {
		config.KeepaliveInterval = 30 * time.Second
	}
	return &Handler{
		source:   source,
		registry: registry,
		obs:      obs,
		config:   config,
		limiter:  newStreamLimiter(config.MaxConcurrentPerIP, config.MaxTotal),
		logger:   logger,
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// HandlePositions serves the SSE position stream.
// GET /api/v1/stream/positions?bodies=Moon,Mars&interval=5
func (h *Handler) HandlePositions(w http.ResponseWriter, r *http.Request) {
	interval := h.config.Interval
	if v := r.URL.Query().Get("interval"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 60 {
			writeError(w, http.StatusBadRequest, "invalid interval parameter, must be 1-60")
			return
		}
		interval = time.Duration(n) * time.Second
	}

	bodies := body.SolarSystem()
	if v := r.URL.Query().Get("bodies"); v != "" {
		resolved, err := h.registry.Resolve(strings.Split(v, ","))
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		bodies = resolved
	}

	// Enforce the per-IP and global concurrent stream limits.
	ip := httputil.ClientIP(r, h.config.TrustProxy)
	release, denied := h.limiter.admit(ip)
	switch denied {
	case perIPLimit:
		metrics.IncStreamErrors("rate_limit")
		h.logger.Warn("stream rate limit exceeded",
			"remote_ip", ip,
			"current_count", h.limiter.count(ip),
		)
		w.Header().Set("Retry-After", "30")
		writeError(w, http.StatusTooManyRequests, "too many concurrent streams")
		return
	case globalLimit:
		metrics.IncStreamErrors("capacity")
		h.logger.Warn("stream capacity reached", "remote_ip", ip, "active", h.limiter.active())
		w.Header().Set("Retry-After", "30")
		writeError(w, http.StatusServiceUnavailable, "stream capacity reached")
		return
	}

	metrics.IncStreamConnections("connect")
	metrics.IncStreamsActive()

	startTime := time.Now()
	h.logger.Info("stream connected",
		"remote_ip", ip,
		"user_agent", r.Header.Get("User-Agent"),
		"bodies", len(bodies),
		"interval_seconds", interval.Seconds(),
	)

	var c *conn
	defer func() {
		release()
		metrics.IncStreamConnections("disconnect")
		metrics.DecStreamsActive()
		attrs := []any{
			"remote_ip", ip,
			"duration_seconds", int(time.Since(startTime).Seconds()),
		}
		if c != nil {
			attrs = append(attrs, "messages_sent", c.messages, "bytes_sent", c.bytes)
		}
		h.logger.Info("stream disconnected", attrs...)
	}()

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering.
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	// Clear the server's default WriteTimeout for this long-lived connection.
	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		h.logger.Debug("could not clear write deadline", "error", err)
	}

	c = &conn{
		w:       w,
		flusher: flusher,
		rc:      rc,
		logger:  h.logger,
	}

	// Jittered retry interval (3-7s) spreads reconnects after a restart.
	if err := c.sendRetry(time.Duration(3000+rand.Intn(4000)) * time.Millisecond); err != nil {
		metrics.IncStreamErrors("send_error")
		return
	}

	names := make([]string, len(bodies))
	for i, b := range bodies {
		names[i] = b.Name()
	}
	meta := metadataMessage{
		Type:            "metadata",
		Observer:        newObserverPayload(h.obs),
		Bodies:          names,
		IntervalSeconds: int(interval.Seconds()),
	}
	if err := c.sendJSON(meta); err != nil {
		metrics.IncStreamErrors("send_error")
		h.logger.Warn("stream send error (metadata)", "remote_ip", ip, "error", err)
		return
	}

	ctx := r.Context()
	send := func(t time.Time) bool {
		live, err := h.source.Realtime(ctx, h.obs, bodies, t)
		if err != nil {
			if ctx.Err() != nil {
				return false
			}
			metrics.IncStreamErrors("compute_error")
			h.logger.Warn("stream position error", "remote_ip", ip, "error", err)
			return true
		}
		if err := c.sendJSON(buildPositionsMessage(t, live)); err != nil {
			metrics.IncStreamErrors("send_error")
			h.logger.Warn("stream send error", "remote_ip", ip, "error", err)
			return false
		}
		return true
	}

	if !send(time.Now()) {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	keepaliveTicker := time.NewTicker(h.config.KeepaliveInterval)
	defer keepaliveTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case t := <-ticker.C:
			if !send(t) {
				return
			}
			keepaliveTicker.Reset(h.config.KeepaliveInterval)

		case <-keepaliveTicker.C:
			if err := c.sendKeepalive(); err != nil {
				metrics.IncStreamErrors("send_error")
				h.logger.Warn("stream keepalive error", "remote_ip", ip, "error", err)
				return
			}
		}
	}
}

// buildPositionsMessage formats live positions into the SSE payload.
func buildPositionsMessage(t time.Time, live map[string]dailypath.Position) positionsMessage {
	out := make(map[string]positionPayload, len(live))
	for name, p := range live {
		out[name] = positionPayload{
			Altitude:   p.Altitude,
			Azimuth:    p.Azimuth,
			Visibility: visibility.Classify(p.Altitude),
		}
	}
	return positionsMessage{
		Type:      "positions",
		T:         t.UTC().Format(time.RFC3339),
		Positions: out,
	}
}

// SSE message payload types.

type observerPayload struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Elevation float64 `json:"elevation"`
	Timezone  string  `json:"timezone"`
}

func newObserverPayload(o observer.Observer) observerPayload {
	return observerPayload{
		Latitude:  o.Latitude(),
		Longitude: o.Longitude(),
		Elevation: o.Elevation(),
		Timezone:  o.Location().String(),
	}
}

type metadataMessage struct {
	Type            string          `json:"type"`
	Observer        observerPayload `json:"observer"`
	Bodies          []string        `json:"bodies"`
	IntervalSeconds int             `json:"interval_seconds"`
}

type positionsMessage struct {
	Type      string                     `json:"type"`
	T         string                     `json:"t"`
	Positions map[string]positionPayload `json:"positions"`
}

type positionPayload struct {
	Altitude   float64               `json:"altitude"`
	Azimuth    float64               `json:"azimuth"`
	Visibility visibility.Visibility `json:"visibility"`
}
