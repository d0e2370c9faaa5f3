package store

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/semaphore"

	"github.com/FreePeak/data-query-server/internal/domain"
)

// Store operation labels reported to the Observer.
const (
	OpRunQuery      = "run_query"
	OpDescribeTable = "describe_table"
	OpListTables    = "list_tables"
)

// DefaultTimeout bounds how long a caller may wait for and use the store.
const DefaultTimeout = 30 * time.Second

var errStoreClosed = errors.New("store is closed")

// Observer receives the outcome of every store call.
type Observer interface {
	ObserveStoreCall(op string, elapsed time.Duration, err error)
}

// GuardedStore serializes all access to an inner store. At most one call
// holds the store at a time; a caller that cannot acquire it and finish
// within the timeout gets a StoreUnavailable error.
type GuardedStore struct {
	inner    domain.DatasetStore
	sem      *semaphore.Weighted
	timeout  time.Duration
	observer Observer

	mu        sync.Mutex
	closed    bool
	closeOnce sync.Once
	closeErr  error
}

// GuardOption configures a GuardedStore.
type GuardOption func(*GuardedStore)

// WithTimeout sets the per-call bound. Zero or negative disables it.
func WithTimeout(d time.Duration) GuardOption {
	return func(g *GuardedStore) {
		g.timeout = d
	}
}

// WithObserver reports each call to o.
func WithObserver(o Observer) GuardOption {
	return func(g *GuardedStore) {
		g.observer = o
	}
}

// NewGuardedStore wraps inner in an exclusive critical section.
func NewGuardedStore(inner domain.DatasetStore, opts ...GuardOption) *GuardedStore {
	g := &GuardedStore{
		inner:   inner,
		sem:     semaphore.NewWeighted(1),
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *GuardedStore) isClosed() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.closed
}

// do runs fn while holding the store. Errors returned by fn pass through
// unchanged unless the deadline expired, in which case the store is
// reported unavailable.
func (g *GuardedStore) do(ctx context.Context, op string, fn func(context.Context) error) error {
	start := time.Now()
	err := g.run(ctx, fn)
	if g.observer != nil {
		g.observer.ObserveStoreCall(op, time.Since(start), err)
	}
	return err
}

func (g *GuardedStore) run(ctx context.Context, fn func(context.Context) error) error {
	if g.isClosed() {
		return domain.NewStoreUnavailableError(errStoreClosed)
	}

	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	if err := g.sem.Acquire(ctx, 1); err != nil {
		return domain.NewStoreUnavailableError(errors.Wrap(err, "acquire store"))
	}
	defer g.sem.Release(1)

	if g.isClosed() {
		return domain.NewStoreUnavailableError(errStoreClosed)
	}

	err := fn(ctx)
	if err != nil && ctx.Err() != nil {
		return domain.NewStoreUnavailableError(errors.Wrap(ctx.Err(), err.Error()))
	}
	return err
}

// RunQuery implements domain.DatasetStore.
func (g *GuardedStore) RunQuery(ctx context.Context, sqlText string) (*domain.Rows, error) {
	var rows *domain.Rows
	err := g.do(ctx, OpRunQuery, func(ctx context.Context) error {
		var err error
		rows, err = g.inner.RunQuery(ctx, sqlText)
		return err
	})
	return rows, err
}

// DescribeTable implements domain.DatasetStore.
func (g *GuardedStore) DescribeTable(ctx context.Context, name string) ([]domain.ColumnInfo, error) {
	var cols []domain.ColumnInfo
	err := g.do(ctx, OpDescribeTable, func(ctx context.Context) error {
		var err error
		cols, err = g.inner.DescribeTable(ctx, name)
		return err
	})
	return cols, err
}

// ListTables implements domain.DatasetStore.
func (g *GuardedStore) ListTables(ctx context.Context) ([]string, error) {
	var tables []string
	err := g.do(ctx, OpListTables, func(ctx context.Context) error {
		var err error
		tables, err = g.inner.ListTables(ctx)
		return err
	})
	return tables, err
}

// Close waits for the in-flight call to finish, then closes the inner
// store. Later calls fail with StoreUnavailable. Close is idempotent.
func (g *GuardedStore) Close() error {
	g.closeOnce.Do(func() {
		_ = g.sem.Acquire(context.Background(), 1)
		defer g.sem.Release(1)

		g.mu.Lock()
		g.closed = true
		g.mu.Unlock()

		g.closeErr = g.inner.Close()
	})
	return g.closeErr
}
