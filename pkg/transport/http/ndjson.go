package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/llmarena/arena/pkg/api"
	"github.com/llmarena/arena/pkg/transport"
)

// ndjsonContentType is what browsers render progressively without sniffing.
const ndjsonContentType = "text/plain; charset=utf-8"

// writerState tracks the state of an ndjsonWriter.
type writerState int

const (
	writerIdle      writerState = iota // Initial state, no writes yet
	writerStreaming                    // Headers committed, lines may follow
	writerClosed                       // Headers sent without a body (no-op run)
)

// ndjsonWriter implements transport.EventWriter as one JSON object per
// line. Both sides of a run write through it concurrently, so every line is
// written and flushed under the mutex.
type ndjsonWriter struct {
	w  http.ResponseWriter
	rc *http.ResponseController

	mu    sync.Mutex
	state writerState
	lines int
}

var _ transport.EventWriter = (*ndjsonWriter)(nil)

func newNDJSONWriter(w http.ResponseWriter) *ndjsonWriter {
	return &ndjsonWriter{
		w:  w,
		rc: http.NewResponseController(w),
	}
}

// WriteEvent writes event as a single line and flushes it. A history event
// is only accepted as the very first line.
func (n *ndjsonWriter) WriteEvent(ctx context.Context, event api.OutboundEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.state == writerClosed {
		return errors.New("cannot write event: writer is closed")
	}
	if event.Type == api.EventHistory && n.lines > 0 {
		return errors.New("cannot write history event: content already sent")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if n.state == writerIdle {
		n.setHeaders()
		n.state = writerStreaming
	}

	data = append(data, '\n')
	if _, err := n.w.Write(data); err != nil {
		return fmt.Errorf("failed to write event: %w", err)
	}
	n.lines++

	if err := n.rc.Flush(); err != nil {
		return fmt.Errorf("failed to flush: %w", err)
	}
	return nil
}

// Flush sends buffered data to the client. On a writer that has not
// written yet it commits the 200 and the stream headers, after which
// errors can no longer change the status.
func (n *ndjsonWriter) Flush() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.state == writerIdle {
		n.setHeaders()
		n.w.WriteHeader(http.StatusOK)
		n.state = writerStreaming
	}
	return n.rc.Flush()
}

// close completes a response that never wrote a line with an empty 200.
func (n *ndjsonWriter) close() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.state != writerIdle {
		return
	}
	n.setHeaders()
	n.w.WriteHeader(http.StatusOK)
	n.state = writerClosed
}

// hasStarted reports whether any part of the response has been sent.
func (n *ndjsonWriter) hasStarted() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state != writerIdle
}

func (n *ndjsonWriter) setHeaders() {
	h := n.w.Header()
	h.Set("Content-Type", ndjsonContentType)
	h.Set("Cache-Control", "no-store")
	h.Set("X-Content-Type-Options", "nosniff")
}
