// Package rest provides the HTTP interface for the MCP server.
package rest

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/pkg/errors"

	"github.com/FreePeak/data-query-server/internal/domain"
	"github.com/FreePeak/data-query-server/internal/domain/shared"
	"github.com/FreePeak/data-query-server/internal/infrastructure/logging"
	"github.com/FreePeak/data-query-server/internal/infrastructure/metrics"
	"github.com/FreePeak/data-query-server/internal/infrastructure/server"
	"github.com/FreePeak/data-query-server/internal/interfaces/rpc"
)

const (
	// Transport is the label used for logs and metrics.
	Transport = "http"

	// MaxBodyBytes caps the size of one POST /messages envelope.
	MaxBodyBytes = 4 << 20

	shutdownTimeout = 10 * time.Second
)

// Config holds the listener settings.
type Config struct {
	Addr         string
	KeepAlive    time.Duration
	ReadTimeout  time.Duration
	IdleTimeout  time.Duration
	DatasetCount int
}

// Status is the body of GET /status.
type Status struct {
	Name       string `json:"name"`
	Version    string `json:"version"`
	Protocol   string `json:"protocol"`
	Datasets   int    `json:"datasets"`
	SSEStreams int    `json:"sse_streams"`
}

// MCPServer serves the message and event-stream endpoints. Calls are
// stateless: each POST is dispatched independently.
type MCPServer struct {
	cfg         Config
	router      *rpc.Router
	name        string
	version     string
	logger      *logging.Logger
	metrics     *metrics.Collector
	connections domain.ConnectionManager
	handler     http.Handler
}

// Option configures an MCPServer.
type Option func(*MCPServer)

// WithLogger sets the server logger.
func WithLogger(logger *logging.Logger) Option {
	return func(s *MCPServer) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics exposes c at GET /metrics and reports stream counts to it.
func WithMetrics(c *metrics.Collector) Option {
	return func(s *MCPServer) {
		s.metrics = c
	}
}

// NewMCPServer creates the HTTP adapter over router. name and version are
// reported by GET /status.
func NewMCPServer(router *rpc.Router, name, version string, cfg Config, opts ...Option) *MCPServer {
	s := &MCPServer{
		cfg:         cfg,
		router:      router,
		name:        name,
		version:     version,
		logger:      logging.Default(),
		connections: server.NewSSEConnectionManager(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.Named(Transport)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logging.Middleware(s.logger))
	r.Use(middleware.Recoverer)

	r.Get("/sse", s.handleSSE)
	r.Post("/messages", s.handleMessages)
	r.Get("/status", s.handleStatus)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	s.handler = r
	return s
}

// Handler exposes the HTTP handler for embedding and tests.
func (s *MCPServer) Handler() http.Handler {
	return s.handler
}

// Connections returns the open event-stream sessions.
func (s *MCPServer) Connections() domain.ConnectionManager {
	return s.connections
}

// Run listens on cfg.Addr until ctx is cancelled, then closes open event
// streams and shuts the listener down.
func (s *MCPServer) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:        s.cfg.Addr,
		Handler:     s.handler,
		ReadTimeout: s.cfg.ReadTimeout,
		IdleTimeout: s.cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	s.logger.Info("http listener started", logging.Fields{"addr": s.cfg.Addr})

	select {
	case <-ctx.Done():
		// Streams never finish on their own, so they must end before Shutdown
		// can drain the listener.
		s.connections.CloseAll()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.WithError(err).Warn("http shutdown incomplete")
		}
		err := <-errCh
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrap(err, "http listener")
	}
}

func (s *MCPServer) handleSSE(w http.ResponseWriter, r *http.Request) {
	session, err := server.NewSSESession(r.Context(), w, s.cfg.KeepAlive)
	if err != nil {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	s.connections.AddSession(session)
	if s.metrics != nil {
		s.metrics.StreamOpened()
	}
	log := logging.FromContext(r.Context()).With(logging.Fields{"session_id": session.ID()})
	log.Info("event stream opened")

	defer func() {
		s.connections.RemoveSession(session.ID())
		if s.metrics != nil {
			s.metrics.StreamClosed()
		}
		log.Info("event stream closed")
	}()

	session.Start()
}

func (s *MCPServer) handleMessages(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, rpc.ParseErrorResponse(err))
		return
	}

	resp, parsed := s.router.HandleRaw(r.Context(), Transport, body)
	switch {
	case !parsed:
		writeJSON(w, http.StatusBadRequest, resp)
	case resp == nil:
		w.WriteHeader(http.StatusAccepted)
	default:
		writeJSON(w, http.StatusOK, resp)
	}
}

func (s *MCPServer) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, Status{
		Name:       s.name,
		Version:    s.version,
		Protocol:   shared.ProtocolVersion,
		Datasets:   s.cfg.DatasetCount,
		SSEStreams: s.connections.Count(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Default().WithError(err).Warn("response write failed")
	}
}
