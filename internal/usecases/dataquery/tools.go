// Package dataquery implements the data query tools and resources on top
// of a dataset store.
package dataquery

import (
	"context"

	"github.com/FreePeak/data-query-server/internal/domain"
	"github.com/FreePeak/data-query-server/internal/domain/handler"
	"github.com/FreePeak/data-query-server/internal/infrastructure/logging"
)

var (
	_ handler.ToolHandler     = (*Service)(nil)
	_ handler.ResourceHandler = (*Service)(nil)
)

// Service answers tool calls and resource reads. Store failures that are
// about the question (bad SQL, unknown table) are folded into the text;
// only StoreUnavailable is returned as an error.
type Service struct {
	store  domain.DatasetStore
	meta   domain.MetadataProvider
	logger *logging.Logger
}

// NewService creates a Service. store must already serialize access.
func NewService(store domain.DatasetStore, meta domain.MetadataProvider, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		store:  store,
		meta:   meta,
		logger: logger.Named("dataquery"),
	}
}

// Query runs sqlText verbatim and returns the outcome.
func (s *Service) Query(ctx context.Context, sqlText string) (*domain.QueryResult, error) {
	rows, err := s.store.RunQuery(ctx, sqlText)
	if err != nil {
		if domain.IsStoreUnavailable(err) {
			return nil, err
		}
		s.logger.Debug("query failed", logging.Fields{"error": err.Error()})
		return domain.NewFailedQueryResult(err.Error()), nil
	}
	return domain.NewQueryResult(rows.Columns, rows.Data), nil
}

// SQLQuery implements handler.ToolHandler.
func (s *Service) SQLQuery(ctx context.Context, query string) (*domain.ToolResult, error) {
	result, err := s.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	return &domain.ToolResult{Text: FormatQueryResult(result)}, nil
}

// DescribeTable implements handler.ToolHandler.
func (s *Service) DescribeTable(ctx context.Context, tableName string) (*domain.ToolResult, error) {
	info, err := s.tableInfo(ctx, tableName)
	if err != nil {
		if domain.IsStoreUnavailable(err) {
			return nil, err
		}
		return &domain.ToolResult{Text: "Error describing table: " + err.Error()}, nil
	}
	return &domain.ToolResult{Text: FormatTableDescription(*info)}, nil
}

// ListTables implements handler.ToolHandler.
func (s *Service) ListTables(ctx context.Context) (*domain.ToolResult, error) {
	schema, err := s.schemaInfo(ctx)
	if err != nil {
		if domain.IsStoreUnavailable(err) {
			return nil, err
		}
		return &domain.ToolResult{Text: "Error listing tables: " + err.Error()}, nil
	}
	return &domain.ToolResult{Text: FormatTableList(*schema)}, nil
}

func (s *Service) tableInfo(ctx context.Context, name string) (*domain.TableInfo, error) {
	cols, err := s.store.DescribeTable(ctx, name)
	if err != nil {
		return nil, err
	}
	if cols == nil {
		cols = []domain.ColumnInfo{}
	}
	info := &domain.TableInfo{Table: name, Schema: cols}
	if meta, ok := s.meta.Dataset(name); ok {
		info.Metadata = &meta
	}
	return info, nil
}

func (s *Service) schemaInfo(ctx context.Context) (*domain.SchemaInfo, error) {
	tables, err := s.store.ListTables(ctx)
	if err != nil {
		return nil, err
	}
	if tables == nil {
		tables = []string{}
	}
	info := &domain.SchemaInfo{
		Tables:       tables,
		DatasetsInfo: make(map[string]domain.DatasetMetadata),
	}
	for _, ds := range s.meta.Datasets() {
		info.DatasetsInfo[ds.Name] = ds
	}
	return info, nil
}
