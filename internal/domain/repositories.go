package domain

import "context"

// Rows is the raw output of a query: ordered column names and one
// column→value mapping per row.
type Rows struct {
	Columns []string
	Data    []map[string]interface{}
}

// DatasetStore defines the embedded analytical engine consumed by the dispatcher.
// Implementations are not required to be safe for concurrent use.
type DatasetStore interface {
	// RunQuery executes sqlText verbatim and returns its rows.
	RunQuery(ctx context.Context, sqlText string) (*Rows, error)

	// DescribeTable returns the column names and declared types of a table.
	DescribeTable(ctx context.Context, name string) ([]ColumnInfo, error)

	// ListTables returns every table name known to the store.
	ListTables(ctx context.Context) ([]string, error)

	// Close releases the underlying connection.
	Close() error
}

// MetadataProvider supplies the static dataset metadata set.
type MetadataProvider interface {
	// Datasets returns metadata in load order.
	Datasets() []DatasetMetadata

	// Dataset looks up metadata by table name.
	Dataset(name string) (DatasetMetadata, bool)
}
