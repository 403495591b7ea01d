package stream

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/star/skywatch/internal/body"
	"github.com/star/skywatch/internal/dailypath"
	"github.com/star/skywatch/internal/observer"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))
}

// fixedSource reports every requested body at the same altitude.
type fixedSource struct {
	altitude float64

	mu    sync.Mutex
	calls int
}

func (f *fixedSource) Realtime(_ context.Context, _ observer.Observer, bodies []body.Body, at time.Time) (map[string]dailypath.Position, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	out := make(map[string]dailypath.Position, len(bodies))
	for _, b := range bodies {
		out[b.Name()] = dailypath.Position{Time: at, Altitude: f.altitude, Azimuth: 180}
	}
	return out, nil
}

func testHandler(cfg Config) *Handler {
	return NewHandler(&fixedSource{altitude: 12.5}, body.NewRegistry(body.SolarSystem()...), observer.Default(), cfg, testLogger())
}

func testConfig() Config {
	return Config{
		MaxConcurrentPerIP: 10,
		Interval:           time.Second,
		KeepaliveInterval:  30 * time.Second,
	}
}

// dataLines returns the decoded JSON payloads of every "data:" line.
func dataLines(t *testing.T, raw string) []map[string]any {
	t.Helper()
	var out []map[string]any
	scanner := bufio.NewScanner(strings.NewReader(raw))
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var msg map[string]any
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &msg); err != nil {
			t.Errorf("invalid JSON in SSE data line: %v", err)
			continue
		}
		out = append(out, msg)
	}
	return out
}

func TestBuildPositionsMessage(t *testing.T) {
	at := time.Date(2026, 2, 6, 4, 0, 0, 0, time.UTC)
	msg := buildPositionsMessage(at, map[string]dailypath.Position{
		"Moon": {Time: at, Altitude: 20, Azimuth: 90},
		"Mars": {Time: at, Altitude: -5, Azimuth: 270},
	})

	if msg.Type != "positions" {
		t.Errorf("type = %q, want positions", msg.Type)
	}
	if msg.T != "2026-02-06T04:00:00Z" {
		t.Errorf("t = %q, want 2026-02-06T04:00:00Z", msg.T)
	}
	if len(msg.Positions) != 2 {
		t.Fatalf("positions = %d, want 2", len(msg.Positions))
	}
	if !msg.Positions["Moon"].Visibility.IsVisible {
		t.Error("Moon at 20° should be visible")
	}
	if msg.Positions["Mars"].Visibility.IsVisible {
		t.Error("Mars at -5° should not be visible")
	}
}

func TestPositionsMessageJSON(t *testing.T) {
	msg := buildPositionsMessage(time.Date(2026, 2, 6, 4, 0, 0, 0, time.UTC), map[string]dailypath.Position{
		"Moon": {Altitude: 20, Azimuth: 90},
	})

	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatal(err)
	}

	var parsed map[string]any
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatal(err)
	}
	positions, ok := parsed["positions"].(map[string]any)
	if !ok {
		t.Fatalf("positions = %v, want object", parsed["positions"])
	}
	moon := positions["Moon"].(map[string]any)
	if moon["altitude"].(float64) != 20 {
		t.Errorf("altitude = %v, want 20", moon["altitude"])
	}
	vis := moon["visibility"].(map[string]any)
	if vis["isVisible"] != true {
		t.Errorf("isVisible = %v, want true", vis["isVisible"])
	}
}

// TestSSEMessageFormat verifies the SSE wire format: "data: {json}\n\n".
func TestSSEMessageFormat(t *testing.T) {
	handler := testHandler(testConfig())

	req := httptest.NewRequest("GET", "/api/v1/stream/positions?bodies=Moon,Mars", nil)
	req.RemoteAddr = "127.0.0.1:12345"

	ctx, cancel := context.WithTimeout(req.Context(), 300*time.Millisecond)
	defer cancel()
	req = req.WithContext(ctx)

	w := httptest.NewRecorder()
	handler.HandlePositions(w, req)

	resp := w.Result()
	if resp.Header.Get("Content-Type") != "text/event-stream" {
		t.Errorf("Content-Type = %q, want text/event-stream", resp.Header.Get("Content-Type"))
	}
	if resp.Header.Get("Cache-Control") != "no-cache" {
		t.Errorf("Cache-Control = %q, want no-cache", resp.Header.Get("Cache-Control"))
	}

	raw := w.Body.String()
	msgs := dataLines(t, raw)
	if len(msgs) < 2 {
		t.Fatalf("got %d messages, want metadata and positions", len(msgs))
	}

	meta := msgs[0]
	if meta["type"] != "metadata" {
		t.Fatalf("first message type = %v, want metadata", meta["type"])
	}
	bodies, _ := meta["bodies"].([]any)
	if len(bodies) != 2 || bodies[0] != "Moon" || bodies[1] != "Mars" {
		t.Errorf("bodies = %v, want [Moon Mars]", meta["bodies"])
	}
	obs, _ := meta["observer"].(map[string]any)
	if obs["timezone"] != observer.DefaultTimezone {
		t.Errorf("observer timezone = %v, want %s", obs["timezone"], observer.DefaultTimezone)
	}
	if meta["interval_seconds"].(float64) != 1 {
		t.Errorf("interval_seconds = %v, want 1", meta["interval_seconds"])
	}

	pos := msgs[1]
	if pos["type"] != "positions" {
		t.Fatalf("second message type = %v, want positions", pos["type"])
	}
	if p, _ := pos["positions"].(map[string]any); len(p) != 2 {
		t.Errorf("positions = %v, want 2 bodies", pos["positions"])
	}

	for _, line := range strings.Split(raw, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		if !strings.HasPrefix(line, "data: ") && !strings.HasPrefix(line, "retry: ") && line != ":" {
			t.Errorf("unexpected SSE line: %q", line)
		}
	}
}

func TestDefaultBodiesAreSolarSystem(t *testing.T) {
	handler := testHandler(testConfig())

	req := httptest.NewRequest("GET", "/api/v1/stream/positions", nil)
	req.RemoteAddr = "127.0.0.1:12345"
	ctx, cancel := context.WithTimeout(req.Context(), 100*time.Millisecond)
	defer cancel()
	w := httptest.NewRecorder()
	handler.HandlePositions(w, req.WithContext(ctx))

	msgs := dataLines(t, w.Body.String())
	if len(msgs) == 0 {
		t.Fatal("no messages received")
	}
	bodies, _ := msgs[0]["bodies"].([]any)
	if len(bodies) != len(body.SolarSystem()) {
		t.Errorf("bodies = %d, want %d", len(bodies), len(body.SolarSystem()))
	}
}

// TestRateLimiting verifies per-IP concurrent stream limits.
func TestRateLimiting(t *testing.T) {
	limiter := newStreamLimiter(3, 0)

	var releases []func()
	for i := 0; i < 3; i++ {
		release, d := limiter.admit("10.0.0.1")
		if d != admitted {
			t.Fatalf("admit %d should succeed", i+1)
		}
		releases = append(releases, release)
	}

	if release, d := limiter.admit("10.0.0.1"); d != perIPLimit || release != nil {
		t.Errorf("admit beyond limit = %v, want perIPLimit", d)
	}

	if _, d := limiter.admit("10.0.0.2"); d != admitted {
		t.Error("different IP should not be rate limited")
	}

	releases[0]()
	releases[0]() // second call is a no-op
	if _, d := limiter.admit("10.0.0.1"); d != admitted {
		t.Error("admit after release should succeed")
	}

	if c := limiter.count("10.0.0.1"); c != 3 {
		t.Errorf("count = %d, want 3", c)
	}
	if c := limiter.count("10.0.0.2"); c != 1 {
		t.Errorf("count = %d, want 1", c)
	}
	if a := limiter.active(); a != 4 {
		t.Errorf("active = %d, want 4", a)
	}
}

func TestGlobalLimit(t *testing.T) {
	limiter := newStreamLimiter(10, 2)
	limiter.admit("10.0.0.1")
	limiter.admit("10.0.0.2")
	if _, d := limiter.admit("10.0.0.3"); d != globalLimit {
		t.Errorf("denial = %v, want globalLimit", d)
	}
}

// TestRateLimitingConcurrent verifies rate limiter thread safety.
func TestRateLimitingConcurrent(t *testing.T) {
	limiter := newStreamLimiter(100, 0)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if release, d := limiter.admit("10.0.0.1"); d == admitted {
				defer release()
				time.Sleep(10 * time.Millisecond)
			}
		}()
	}
	wg.Wait()

	if c := limiter.count("10.0.0.1"); c != 0 {
		t.Errorf("count after all released = %d, want 0", c)
	}
	if a := limiter.active(); a != 0 {
		t.Errorf("active after all released = %d, want 0", a)
	}
}

// TestRateLimitHTTPResponse verifies 429 response when limit exceeded.
func TestRateLimitHTTPResponse(t *testing.T) {
	cfg := testConfig()
	cfg.MaxConcurrentPerIP = 1
	handler := testHandler(cfg)

	ready := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		req := httptest.NewRequest("GET", "/api/v1/stream/positions", nil)
		req.RemoteAddr = "10.0.0.1:12345"
		ctx, cancel := context.WithCancel(req.Context())
		req = req.WithContext(ctx)
		w := httptest.NewRecorder()

		go func() {
			time.Sleep(50 * time.Millisecond)
			close(ready)
			time.Sleep(200 * time.Millisecond)
			cancel()
		}()

		handler.HandlePositions(w, req)
	}()

	<-ready

	req := httptest.NewRequest("GET", "/api/v1/stream/positions", nil)
	req.RemoteAddr = "10.0.0.1:54321"
	w := httptest.NewRecorder()
	handler.HandlePositions(w, req)

	if w.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want %d", w.Code, http.StatusTooManyRequests)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After header")
	}

	<-done
}

// TestInvalidQueryParams verifies error responses for bad interval and body values.
func TestInvalidQueryParams(t *testing.T) {
	handler := testHandler(testConfig())

	tests := []struct {
		name  string
		query string
	}{
		{"zero interval", "?interval=0"},
		{"interval too large", "?interval=100"},
		{"interval non-numeric", "?interval=abc"},
		{"unknown body", "?bodies=Moon,Vulcan"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/api/v1/stream/positions"+tt.query, nil)
			req.RemoteAddr = "127.0.0.1:12345"
			w := httptest.NewRecorder()
			handler.HandlePositions(w, req)

			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
			}
		})
	}
}
