package shared

import (
	"testing"

	"github.com/FreePeak/data-query-server/internal/domain"
)

func TestToolFromDomain(t *testing.T) {
	tool := ToolFromDomain(domain.Tool{
		Name:        "sql_query",
		Description: "Execute a SQL query against the available datasets",
		Parameters: []domain.ToolParameter{
			{Name: "query", Description: "The SQL query to execute", Type: "string", Required: true},
		},
	})

	if tool.InputSchema.Type != "object" {
		t.Errorf("InputSchema.Type = %q, want object", tool.InputSchema.Type)
	}
	if _, ok := tool.InputSchema.Properties["query"]; !ok {
		t.Error("expected query property")
	}
	if len(tool.InputSchema.Required) != 1 || tool.InputSchema.Required[0] != "query" {
		t.Errorf("Required = %v, want [query]", tool.InputSchema.Required)
	}
}

func TestToolFromDomainNoParameters(t *testing.T) {
	tool := ToolFromDomain(domain.Tool{Name: "list_tables"})

	if tool.InputSchema.Properties == nil {
		t.Error("Properties should be an empty object, not null")
	}
	if tool.InputSchema.Required != nil {
		t.Errorf("Required = %v, want nil", tool.InputSchema.Required)
	}
}

func TestNewTextContent(t *testing.T) {
	content := NewTextContent("hello")
	if content.Type != "text" || content.Text != "hello" {
		t.Errorf("NewTextContent() = %+v", content)
	}
}
