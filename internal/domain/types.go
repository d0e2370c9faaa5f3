// Package domain defines the core entities of the data query server.
package domain

import (
	"github.com/google/uuid"
)

// ClientSession represents a connected caller on one of the transports.
type ClientSession struct {
	ID        string
	UserAgent string
	Transport string
	Connected bool
}

// NewClientSession creates a new ClientSession with a unique ID.
func NewClientSession(transport, userAgent string) *ClientSession {
	return &ClientSession{
		ID:        uuid.New().String(),
		UserAgent: userAgent,
		Transport: transport,
		Connected: true,
	}
}

// Resource describes an addressable resource such as dataset://sales.
type Resource struct {
	URI         string
	Name        string
	Description string
	MIMEType    string
}

// ResourceContents is the payload of a read resource.
type ResourceContents struct {
	URI      string
	MIMEType string
	Text     string
}

// Tool describes a callable tool.
type Tool struct {
	Name        string
	Description string
	Parameters  []ToolParameter
}

// ToolParameter defines a parameter for a tool.
type ToolParameter struct {
	Name        string
	Description string
	Type        string
	Required    bool
}

// ToolResult is the text produced by a successful dispatch. Domain-level
// failures such as bad SQL are reported here, not as errors.
type ToolResult struct {
	Text string
}

// DatasetMetadata describes one loaded table. It is built once when the
// store is initialized and never mutated afterwards.
type DatasetMetadata struct {
	Name        string   `json:"-"`
	Description string   `json:"description"`
	Columns     []string `json:"columns"`
	RowCount    int      `json:"row_count"`
}

// QueryResult is the outcome of a single query. A failed result never
// carries rows or columns.
type QueryResult struct {
	Success  bool                     `json:"success"`
	Rows     []map[string]interface{} `json:"data"`
	Columns  []string                 `json:"columns"`
	RowCount int                      `json:"row_count"`
	Error    string                   `json:"error,omitempty"`
}

// NewQueryResult builds a successful result from store output.
func NewQueryResult(columns []string, rows []map[string]interface{}) *QueryResult {
	if columns == nil {
		columns = []string{}
	}
	if rows == nil {
		rows = []map[string]interface{}{}
	}
	return &QueryResult{
		Success:  true,
		Rows:     rows,
		Columns:  columns,
		RowCount: len(rows),
	}
}

// NewFailedQueryResult builds a failed result carrying the store message.
func NewFailedQueryResult(message string) *QueryResult {
	return &QueryResult{
		Success: false,
		Rows:    []map[string]interface{}{},
		Columns: []string{},
		Error:   message,
	}
}

// ColumnInfo is a column name and its declared type.
type ColumnInfo struct {
	Column string `json:"column"`
	Type   string `json:"type"`
}

// TableInfo is the schema of one table plus any known metadata.
type TableInfo struct {
	Table    string           `json:"table"`
	Schema   []ColumnInfo     `json:"schema"`
	Metadata *DatasetMetadata `json:"metadata,omitempty"`
}

// SchemaInfo lists every table known to the store with its metadata.
type SchemaInfo struct {
	Tables       []string                   `json:"tables"`
	DatasetsInfo map[string]DatasetMetadata `json:"datasets_info"`
}
