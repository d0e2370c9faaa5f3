// Package registry holds the static catalog of tools and resources.
package registry

import (
	"github.com/FreePeak/data-query-server/internal/domain"
)

// Operation is the closed set of callable tools.
type Operation int

const (
	// OpSQLQuery runs arbitrary SQL.
	OpSQLQuery Operation = iota + 1
	// OpDescribeTable describes one table.
	OpDescribeTable
	// OpListTables lists every table.
	OpListTables
)

// Tool names and argument keys.
const (
	ToolSQLQuery      = "sql_query"
	ToolDescribeTable = "describe_table"
	ToolListTables    = "list_tables"

	ArgQuery     = "query"
	ArgTableName = "table_name"
)

// Resource URI parts.
const (
	SchemeDataset = "dataset"
	SchemeSchema  = "schema"
	SchemaURI     = "schema://all"
	MIMETypeJSON  = "application/json"
)

// operations lists every Operation in advertised order.
var operations = []Operation{OpSQLQuery, OpDescribeTable, OpListTables}

// String returns the tool name.
func (o Operation) String() string {
	switch o {
	case OpSQLQuery:
		return ToolSQLQuery
	case OpDescribeTable:
		return ToolDescribeTable
	case OpListTables:
		return ToolListTables
	default:
		return "unknown"
	}
}

// ParseOperation maps a tool name onto the closed set.
func ParseOperation(name string) (Operation, bool) {
	for _, op := range operations {
		if op.String() == name {
			return op, true
		}
	}
	return 0, false
}

func (o Operation) descriptor() domain.Tool {
	switch o {
	case OpSQLQuery:
		return domain.Tool{
			Name:        ToolSQLQuery,
			Description: "Execute a SQL query against the available datasets",
			Parameters: []domain.ToolParameter{{
				Name:        ArgQuery,
				Description: "The SQL query to execute",
				Type:        "string",
				Required:    true,
			}},
		}
	case OpDescribeTable:
		return domain.Tool{
			Name:        ToolDescribeTable,
			Description: "Get schema and metadata information for a specific table",
			Parameters: []domain.ToolParameter{{
				Name:        ArgTableName,
				Description: "Name of the table to describe",
				Type:        "string",
				Required:    true,
			}},
		}
	case OpListTables:
		return domain.Tool{
			Name:        ToolListTables,
			Description: "List all available tables and their basic information",
		}
	default:
		return domain.Tool{}
	}
}

// Registry is built once at startup and is read-only afterwards, so it
// is safe to share between transports.
type Registry struct {
	tools     []domain.Tool
	resources []domain.Resource
	datasets  map[string]struct{}
}

// New builds the catalog from the dataset metadata: one resource per
// dataset, then the schema resource.
func New(meta domain.MetadataProvider) *Registry {
	r := &Registry{datasets: make(map[string]struct{})}

	for _, op := range operations {
		r.tools = append(r.tools, op.descriptor())
	}

	for _, ds := range meta.Datasets() {
		r.datasets[ds.Name] = struct{}{}
		r.resources = append(r.resources, domain.Resource{
			URI:         SchemeDataset + "://" + ds.Name,
			Name:        "Dataset: " + ds.Name,
			Description: ds.Description,
			MIMEType:    MIMETypeJSON,
		})
	}
	r.resources = append(r.resources, domain.Resource{
		URI:         SchemaURI,
		Name:        "Database Schema",
		Description: "Complete schema information for all datasets",
		MIMEType:    MIMETypeJSON,
	})
	return r
}

// Tools returns the tool descriptors in advertised order.
func (r *Registry) Tools() []domain.Tool {
	out := make([]domain.Tool, len(r.tools))
	copy(out, r.tools)
	return out
}

// Resources returns the resource descriptors, datasets first.
func (r *Registry) Resources() []domain.Resource {
	out := make([]domain.Resource, len(r.resources))
	copy(out, r.resources)
	return out
}

// HasDataset reports whether name is a registered dataset.
func (r *Registry) HasDataset(name string) bool {
	_, ok := r.datasets[name]
	return ok
}
