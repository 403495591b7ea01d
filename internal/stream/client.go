package stream

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/star/skywatch/internal/metrics"
)

// writeDeadline bounds each frame write on a long-lived connection.
const writeDeadline = 30 * time.Second

// conn writes SSE frames to one client. It is used by a single goroutine.
type conn struct {
	w       http.ResponseWriter
	flusher http.Flusher
	rc      *http.ResponseController
	logger  *slog.Logger

	messages int64
	bytes    int64
}

// frame writes one complete SSE frame and flushes it.
func (c *conn) frame(b []byte) error {
	if err := c.rc.SetWriteDeadline(time.Now().Add(writeDeadline)); err != nil {
		c.logger.Debug("could not set write deadline", "error", err)
	}
	n, err := c.w.Write(b)
	c.bytes += int64(n)
	metrics.AddStreamBytes(int64(n))
	if err != nil {
		return fmt.Errorf("write: %w", err)
	}
	c.flusher.Flush()
	return nil
}

// sendJSON sends v as a "data:" event.
func (c *conn) sendJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("json marshal: %w", err)
	}
	buf := make([]byte, 0, len(data)+8)
	buf = append(buf, "data: "...)
	buf = append(buf, data...)
	buf = append(buf, "\n\n"...)
	if err := c.frame(buf); err != nil {
		return err
	}
	c.messages++
	metrics.IncStreamMessages()
	return nil
}

// sendRetry tells the client how long to wait before reconnecting.
func (c *conn) sendRetry(d time.Duration) error {
	return c.frame(fmt.Appendf(nil, "retry: %d\n\n", d.Milliseconds()))
}

// sendKeepalive sends an SSE comment line.
func (c *conn) sendKeepalive() error {
	if err := c.frame([]byte(":\n\n")); err != nil {
		return fmt.Errorf("keepalive %w", err)
	}
	return nil
}
