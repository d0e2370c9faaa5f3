// Package builder wires the store, dispatcher and transports into a
// runnable server.
package builder

import (
	"context"
	"io"
	"os"
	"sync"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/FreePeak/data-query-server/internal/config"
	"github.com/FreePeak/data-query-server/internal/domain"
	"github.com/FreePeak/data-query-server/internal/infrastructure/logging"
	"github.com/FreePeak/data-query-server/internal/infrastructure/metrics"
	"github.com/FreePeak/data-query-server/internal/infrastructure/store"
	"github.com/FreePeak/data-query-server/internal/interfaces/rest"
	"github.com/FreePeak/data-query-server/internal/interfaces/rpc"
	"github.com/FreePeak/data-query-server/internal/interfaces/stdio"
	"github.com/FreePeak/data-query-server/internal/usecases"
	"github.com/FreePeak/data-query-server/internal/usecases/dataquery"
	"github.com/FreePeak/data-query-server/internal/usecases/registry"
)

// ErrNoStore is returned by Build when no dataset store was supplied.
var ErrNoStore = errors.New("no dataset store configured")

// ServerBuilder implements the Builder pattern for the data query server.
type ServerBuilder struct {
	name         string
	version      string
	address      string
	keepAlive    time.Duration
	readTimeout  time.Duration
	idleTimeout  time.Duration
	storeTimeout time.Duration
	store        domain.DatasetStore
	datasets     []domain.DatasetMetadata
	logger       *logging.Logger
	metrics      *metrics.Collector
}

// NewServerBuilder creates a new server builder with default values
func NewServerBuilder() *ServerBuilder {
	return &ServerBuilder{
		name:         "data-query-server",
		version:      "0.1.0",
		address:      "0.0.0.0:8000",
		storeTimeout: store.DefaultTimeout,
	}
}

// FromConfig applies the server and store settings of cfg.
func (b *ServerBuilder) FromConfig(cfg *config.Config) *ServerBuilder {
	b.name = cfg.Server.Name
	b.version = cfg.Server.Version
	b.address = cfg.Server.Addr()
	b.keepAlive = cfg.Server.KeepAlive
	b.readTimeout = cfg.Server.ReadTimeout
	b.idleTimeout = cfg.Server.IdleTimeout
	b.storeTimeout = cfg.Database.StoreTimeout
	return b
}

// WithName sets the server name
func (b *ServerBuilder) WithName(name string) *ServerBuilder {
	b.name = name
	return b
}

// WithVersion sets the server version
func (b *ServerBuilder) WithVersion(version string) *ServerBuilder {
	b.version = version
	return b
}

// WithAddress sets the HTTP listen address
func (b *ServerBuilder) WithAddress(address string) *ServerBuilder {
	b.address = address
	return b
}

// WithKeepAlive sets the event-stream keep-alive interval. Zero disables it.
func (b *ServerBuilder) WithKeepAlive(d time.Duration) *ServerBuilder {
	b.keepAlive = d
	return b
}

// WithStoreTimeout bounds how long a call waits for and runs on the store.
func (b *ServerBuilder) WithStoreTimeout(d time.Duration) *ServerBuilder {
	b.storeTimeout = d
	return b
}

// WithStore sets the raw dataset store and the metadata of the datasets
// it holds. The built server takes ownership and closes it.
func (b *ServerBuilder) WithStore(s domain.DatasetStore, datasets []domain.DatasetMetadata) *ServerBuilder {
	b.store = s
	b.datasets = datasets
	return b
}

// WithLogger sets the logger shared by every component
func (b *ServerBuilder) WithLogger(logger *logging.Logger) *ServerBuilder {
	b.logger = logger
	return b
}

// WithMetrics sets the metrics collector. A fresh one is created otherwise.
func (b *ServerBuilder) WithMetrics(c *metrics.Collector) *ServerBuilder {
	b.metrics = c
	return b
}

// Build assembles the server. The registry and metadata are fixed from
// this point on.
func (b *ServerBuilder) Build() (*Server, error) {
	if b.store == nil {
		return nil, ErrNoStore
	}
	logger := b.logger
	if logger == nil {
		logger = logging.Default()
	}
	collector := b.metrics
	if collector == nil {
		collector = metrics.New()
	}

	guarded := store.NewGuardedStore(b.store,
		store.WithTimeout(b.storeTimeout),
		store.WithObserver(collector),
	)
	meta := store.NewStaticMetadata(b.datasets)
	service := dataquery.NewService(guarded, meta, logger)
	dispatcher := usecases.NewDispatcher(usecases.DispatcherConfig{
		Name:      b.name,
		Version:   b.version,
		Registry:  registry.New(meta),
		Tools:     service,
		Resources: service,
		Logger:    logger,
	})
	router := rpc.NewRouter(dispatcher, rpc.WithLogger(logger), rpc.WithObserver(collector))
	httpServer := rest.NewMCPServer(router, b.name, b.version, rest.Config{
		Addr:         b.address,
		KeepAlive:    b.keepAlive,
		ReadTimeout:  b.readTimeout,
		IdleTimeout:  b.idleTimeout,
		DatasetCount: len(meta.Datasets()),
	}, rest.WithLogger(logger), rest.WithMetrics(collector))

	return &Server{
		store:      guarded,
		dispatcher: dispatcher,
		router:     router,
		http:       httpServer,
		metrics:    collector,
		logger:     logger,
	}, nil
}

// Server is an assembled data query server. One Server owns one store
// and may serve both transports over it at once.
type Server struct {
	store      *store.GuardedStore
	dispatcher *usecases.Dispatcher
	router     *rpc.Router
	http       *rest.MCPServer
	metrics    *metrics.Collector
	logger     *logging.Logger

	closeOnce sync.Once
	closeErr  error
}

// Dispatcher returns the transport-agnostic core.
func (s *Server) Dispatcher() *usecases.Dispatcher {
	return s.dispatcher
}

// Router returns the shared JSON-RPC router.
func (s *Server) Router() *rpc.Router {
	return s.router
}

// HTTP returns the HTTP adapter.
func (s *Server) HTTP() *rest.MCPServer {
	return s.http
}

// Metrics returns the metrics collector.
func (s *Server) Metrics() *metrics.Collector {
	return s.metrics
}

// StdioServer creates a stream adapter over the shared router.
func (s *Server) StdioServer(opts ...stdio.StdioOption) *stdio.StdioServer {
	return stdio.NewStdioServer(s.router, append([]stdio.StdioOption{stdio.WithLogger(s.logger)}, opts...)...)
}

// Run serves the selected transport until ctx is cancelled. With
// config.TransportBoth, the end of the stream session stops the HTTP
// listener and a listener failure ends the stream session.
func (s *Server) Run(ctx context.Context, transport string) error {
	return s.run(ctx, transport, os.Stdin, os.Stdout)
}

func (s *Server) run(ctx context.Context, transport string, in io.Reader, out io.Writer) error {
	switch transport {
	case config.TransportStdio:
		return s.serveStdio(ctx, in, out)
	case config.TransportSSE:
		return s.http.Run(ctx)
	case config.TransportBoth:
		g, gctx := errgroup.WithContext(ctx)
		ctx, cancel := context.WithCancel(gctx)
		defer cancel()

		g.Go(func() error {
			return s.http.Run(ctx)
		})
		g.Go(func() error {
			defer cancel()
			return s.serveStdio(ctx, in, out)
		})
		return g.Wait()
	default:
		return errors.Errorf("unknown transport %q", transport)
	}
}

func (s *Server) serveStdio(ctx context.Context, in io.Reader, out io.Writer) error {
	err := s.StdioServer().Listen(ctx, in, out)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Close releases the store exactly once, after any in-flight call.
func (s *Server) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.store.Close()
		s.logger.Info("dataset store closed")
	})
	return s.closeErr
}
