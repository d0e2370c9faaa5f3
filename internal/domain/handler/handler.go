// Package handler declares the handler contracts the dispatcher routes to.
package handler

import (
	"context"

	"github.com/FreePeak/data-query-server/internal/domain"
)

// ToolHandler executes the data query tools.
type ToolHandler interface {
	// SQLQuery runs a query and renders the outcome as text.
	SQLQuery(ctx context.Context, query string) (*domain.ToolResult, error)

	// DescribeTable renders the schema and metadata of one table.
	DescribeTable(ctx context.Context, tableName string) (*domain.ToolResult, error)

	// ListTables renders every table with its metadata.
	ListTables(ctx context.Context) (*domain.ToolResult, error)
}

// ResourceHandler reads dataset and schema resources.
type ResourceHandler interface {
	// ReadDataset returns a serialized sample of the named dataset.
	ReadDataset(ctx context.Context, dataset string) (string, error)

	// ReadSchema returns the serialized table list with metadata.
	ReadSchema(ctx context.Context) (string, error)
}
