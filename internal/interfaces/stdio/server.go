// Package stdio provides the line-delimited stream transport.
package stdio

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"sync"

	"github.com/pkg/errors"

	"github.com/FreePeak/data-query-server/internal/domain"
	"github.com/FreePeak/data-query-server/internal/domain/shared"
	"github.com/FreePeak/data-query-server/internal/infrastructure/logging"
	"github.com/FreePeak/data-query-server/internal/interfaces/rpc"
)

// Transport is the label used for logs and metrics.
const Transport = "stdio"

// ErrAlreadyStarted is returned when Listen is called on a server that
// has already run a session.
var ErrAlreadyStarted = errors.New("stdio session already started")

// State is the lifecycle position of a StdioServer.
type State int

const (
	// Idle is the state before Listen.
	Idle State = iota
	// SessionActive is the state while requests are being served.
	SessionActive
	// Closed is the terminal state after EOF, a fatal error or cancellation.
	Closed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case SessionActive:
		return "session_active"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

// StdioContextFunc derives the session context from the Listen context.
type StdioContextFunc func(ctx context.Context) context.Context

// StdioServer serves one sequential session over a byte stream: a request
// is read, handled and answered before the next one is read.
type StdioServer struct {
	router      *rpc.Router
	logger      *logging.Logger
	contextFunc StdioContextFunc
	shutdown    func() error

	mu      sync.Mutex
	state   State
	session *domain.ClientSession
}

// NewStdioServer creates a stream transport over router.
func NewStdioServer(router *rpc.Router, opts ...StdioOption) *StdioServer {
	s := &StdioServer{
		router: router,
		logger: logging.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.Named(Transport)
	return s
}

// State returns the current lifecycle state.
func (s *StdioServer) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Session returns the active client session, or nil before Listen.
func (s *StdioServer) Session() *domain.ClientSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session
}

func (s *StdioServer) begin() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Idle {
		return ErrAlreadyStarted
	}
	s.state = SessionActive
	s.session = domain.NewClientSession(Transport, "stdio-client")
	return nil
}

func (s *StdioServer) end() {
	s.mu.Lock()
	s.state = Closed
	if s.session != nil {
		s.session.Connected = false
	}
	s.mu.Unlock()

	if s.shutdown != nil {
		if err := s.shutdown(); err != nil {
			s.logger.WithError(err).Error("shutdown hook failed")
		}
	}
}

type readResult struct {
	line []byte
	err  error
}

// Listen serves requests from in and writes responses to out until in is
// exhausted, a read or write fails, or ctx is cancelled. EOF is a clean
// shutdown and returns nil. The shutdown hook runs once on exit.
func (s *StdioServer) Listen(ctx context.Context, in io.Reader, out io.Writer) error {
	if err := s.begin(); err != nil {
		return err
	}
	defer s.end()

	if s.contextFunc != nil {
		ctx = s.contextFunc(ctx)
	}

	log := s.logger.With(logging.Fields{"session_id": s.Session().ID})
	log.Info("stdio session started")

	// The reader goroutine reads exactly one line per request on next, so
	// no input is consumed while a response is still being produced.
	next := make(chan struct{})
	lines := make(chan readResult)
	done := make(chan struct{})
	defer close(done)

	go func() {
		reader := bufio.NewReader(in)
		for {
			select {
			case <-next:
			case <-done:
				return
			}
			line, err := reader.ReadBytes('\n')
			select {
			case lines <- readResult{line: line, err: err}:
			case <-done:
				return
			}
			if err != nil {
				return
			}
		}
	}()

	enc := json.NewEncoder(out)
	for {
		select {
		case next <- struct{}{}:
		case <-ctx.Done():
			log.Info("stdio session cancelled")
			return ctx.Err()
		}

		var res readResult
		select {
		case res = <-lines:
		case <-ctx.Done():
			log.Info("stdio session cancelled")
			return ctx.Err()
		}

		if line := bytes.TrimSpace(res.line); len(line) > 0 {
			if err := s.serveLine(ctx, enc, line); err != nil {
				log.WithError(err).Error("write failed, closing session")
				return err
			}
		}

		if res.err != nil {
			if errors.Is(res.err, io.EOF) {
				log.Info("input stream closed")
				return nil
			}
			log.WithError(res.err).Error("read failed, closing session")
			return errors.Wrap(res.err, "read request")
		}
	}
}

func (s *StdioServer) serveLine(ctx context.Context, enc *json.Encoder, line []byte) error {
	resp, _ := s.router.HandleRaw(ctx, Transport, line)
	if resp == nil {
		return nil
	}
	return errors.Wrap(writeResponse(enc, resp), "write response")
}

func writeResponse(enc *json.Encoder, resp *shared.Response) error {
	return enc.Encode(resp)
}
