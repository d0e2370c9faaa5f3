// Package store implements the embedded dataset store on top of SQLite.
package store

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/FreePeak/data-query-server/internal/domain"
	"github.com/FreePeak/data-query-server/internal/infrastructure/logging"
)

const (
	driverName = "sqlite"
	memoryDSN  = ":memory:"
)

// SQLiteStore is a domain.DatasetStore backed by a single SQLite
// connection. It is not safe for concurrent use; wrap it in a GuardedStore.
type SQLiteStore struct {
	db   *sql.DB
	path string

	closeOnce sync.Once
	closeErr  error
}

// Open opens the database file at path, creating its parent directory.
// If the file cannot be used the store falls back to an in-memory
// database and logs a warning. An empty path or ":memory:" opens memory
// directly.
func Open(ctx context.Context, path string, logger *logging.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = logging.Default()
	}
	if path == "" || path == memoryDSN {
		return OpenMemory(ctx)
	}

	s, err := openFile(ctx, path)
	if err == nil {
		return s, nil
	}

	logger.WithError(err).Warn("could not open file database, using in-memory database", logging.Fields{
		"path": path,
	})
	return OpenMemory(ctx)
}

// OpenMemory opens a private in-memory database.
func OpenMemory(ctx context.Context) (*SQLiteStore, error) {
	return openDSN(ctx, memoryDSN)
}

func openFile(ctx context.Context, path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Wrapf(err, "create data directory %s", dir)
		}
	}
	return openDSN(ctx, path)
}

func openDSN(ctx context.Context, dsn string) (*SQLiteStore, error) {
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, errors.Wrap(err, "open database")
	}
	// One connection: an in-memory database is private to its connection,
	// and the store models a single shared handle.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errors.Wrapf(err, "ping database %s", dsn)
	}
	return &SQLiteStore{db: db, path: dsn}, nil
}

// Path returns the DSN the store was opened with.
func (s *SQLiteStore) Path() string {
	return s.path
}

// InMemory reports whether the store is backed by memory only.
func (s *SQLiteStore) InMemory() bool {
	return s.path == memoryDSN
}

// RunQuery executes sqlText verbatim. Text columns come back as strings.
func (s *SQLiteStore) RunQuery(ctx context.Context, sqlText string) (*domain.Rows, error) {
	rows, err := s.db.QueryContext(ctx, sqlText)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	result := &domain.Rows{
		Columns: columns,
		Data:    []map[string]interface{}{},
	}
	for rows.Next() {
		values := make([]interface{}, len(columns))
		ptrs := make([]interface{}, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(map[string]interface{}, len(columns))
		for i, col := range columns {
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
				continue
			}
			row[col] = values[i]
		}
		result.Data = append(result.Data, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// DescribeTable returns column names and declared types in column order.
func (s *SQLiteStore) DescribeTable(ctx context.Context, name string) ([]domain.ColumnInfo, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type IN ('table', 'view') AND name = ?`, name,
	).Scan(&count)
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, errors.Errorf("no such table: %s", name)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT name, type FROM pragma_table_info(?) ORDER BY cid`, name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var columns []domain.ColumnInfo
	for rows.Next() {
		var col domain.ColumnInfo
		if err := rows.Scan(&col.Column, &col.Type); err != nil {
			return nil, err
		}
		columns = append(columns, col)
	}
	return columns, rows.Err()
}

// ListTables returns user table names sorted by name.
func (s *SQLiteStore) ListTables(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tables := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		tables = append(tables, name)
	}
	return tables, rows.Err()
}

// Close closes the connection. Only the first call has an effect.
func (s *SQLiteStore) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.db.Close()
	})
	return s.closeErr
}
