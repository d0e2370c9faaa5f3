package dataquery

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/FreePeak/data-query-server/internal/domain"
)

// PreviewRows is the number of rows rendered individually in a query summary.
const PreviewRows = 10

const notAvailable = "N/A"

// FormatQueryResult renders a query outcome as the sql_query tool text.
func FormatQueryResult(r *domain.QueryResult) string {
	if !r.Success {
		return "Query failed: " + r.Error
	}

	var b strings.Builder
	b.WriteString("Query executed successfully!\n\n")
	fmt.Fprintf(&b, "Columns: %s\n", strings.Join(r.Columns, ", "))
	fmt.Fprintf(&b, "Rows returned: %d\n\n", r.RowCount)

	if len(r.Rows) == 0 {
		return b.String()
	}

	b.WriteString("Results:\n")
	for i, row := range r.Rows {
		if i == PreviewRows {
			break
		}
		fmt.Fprintf(&b, "Row %d: %s\n", i+1, formatRow(r.Columns, row))
	}
	if extra := len(r.Rows) - PreviewRows; extra > 0 {
		fmt.Fprintf(&b, "... and %d more rows\n", extra)
	}
	return b.String()
}

func formatRow(columns []string, row map[string]interface{}) string {
	parts := make([]string, len(columns))
	for i, col := range columns {
		parts[i] = col + ": " + formatValue(row[col])
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

func formatValue(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return "NULL"
	case string:
		return val
	case []byte:
		return string(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case time.Time:
		return val.Format(time.RFC3339)
	default:
		return fmt.Sprint(val)
	}
}

// FormatTableDescription renders the describe_table tool text. The metadata
// block is omitted when info.Metadata is nil.
func FormatTableDescription(info domain.TableInfo) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Table: %s\n\n", info.Table)
	b.WriteString("Schema:\n")
	for _, col := range info.Schema {
		fmt.Fprintf(&b, "  - %s: %s\n", col.Column, col.Type)
	}

	if info.Metadata != nil {
		description := info.Metadata.Description
		if description == "" {
			description = notAvailable
		}
		b.WriteString("\nMetadata:\n")
		fmt.Fprintf(&b, "  - Description: %s\n", description)
		fmt.Fprintf(&b, "  - Row count: %d\n", info.Metadata.RowCount)
	}
	return b.String()
}

// FormatTableList renders the list_tables tool text.
func FormatTableList(schema domain.SchemaInfo) string {
	var b strings.Builder
	b.WriteString("Available tables:\n\n")
	for _, table := range schema.Tables {
		description, rows := notAvailable, notAvailable
		var columns []string
		if meta, ok := schema.DatasetsInfo[table]; ok {
			if meta.Description != "" {
				description = meta.Description
			}
			columns = meta.Columns
			rows = strconv.Itoa(meta.RowCount)
		}
		fmt.Fprintf(&b, "• %s\n", table)
		fmt.Fprintf(&b, "  Description: %s\n", description)
		fmt.Fprintf(&b, "  Columns: %s\n", strings.Join(columns, ", "))
		fmt.Fprintf(&b, "  Rows: %s\n\n", rows)
	}
	return b.String()
}
