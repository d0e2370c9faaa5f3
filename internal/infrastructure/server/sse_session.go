// Package server holds the event-stream plumbing behind GET /sse.
package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/FreePeak/data-query-server/internal/domain"
)

// ErrResponseWriterNotFlusher is returned when the ResponseWriter cannot stream.
var ErrResponseWriterNotFlusher = errors.New("response writer does not implement http.Flusher")

// ReadyMessage is the data line of the connected event.
const ReadyMessage = "MCP server ready"

// sseSession is a liveness-only event stream: it emits one connected
// event, optional keep-alive comments, and nothing else.
type sseSession struct {
	writer    http.ResponseWriter
	flusher   http.Flusher
	id        string
	keepAlive time.Duration

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

// NewSSESession creates a session bound to parent, normally the request
// context, so a client disconnect ends the stream. A zero keepAlive
// disables keep-alive comments.
func NewSSESession(parent context.Context, w http.ResponseWriter, keepAlive time.Duration) (domain.SSESession, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, ErrResponseWriterNotFlusher
	}

	ctx, cancel := context.WithCancel(parent)
	return &sseSession{
		writer:    w,
		flusher:   flusher,
		id:        uuid.New().String(),
		keepAlive: keepAlive,
		ctx:       ctx,
		cancel:    cancel,
	}, nil
}

// ID returns the session ID.
func (s *sseSession) ID() string {
	return s.id
}

// Context returns the session's context.
func (s *sseSession) Context() context.Context {
	return s.ctx
}

// Close ends the session. It is safe to call more than once.
func (s *sseSession) Close() {
	s.closeOnce.Do(s.cancel)
}

// Start writes the headers and the connected event, then blocks until
// the session is closed or its parent context ends.
func (s *sseSession) Start() {
	h := s.writer.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("Access-Control-Allow-Origin", "*")
	s.writer.WriteHeader(http.StatusOK)

	_, _ = fmt.Fprintf(s.writer, "id: %s\nevent: connected\ndata: %s\n\n", s.id, ReadyMessage)
	s.flusher.Flush()

	var tick <-chan time.Time
	if s.keepAlive > 0 {
		ticker := time.NewTicker(s.keepAlive)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-tick:
			if _, err := fmt.Fprint(s.writer, ": keep-alive\n\n"); err != nil {
				s.Close()
				return
			}
			s.flusher.Flush()
		}
	}
}
