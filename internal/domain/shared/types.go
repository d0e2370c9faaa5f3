package shared

import (
	"github.com/FreePeak/data-query-server/internal/domain"
)

// ServerInfo contains information about the server
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Capabilities represents the server's capabilities
type Capabilities struct {
	Tools     *ToolsCapability     `json:"tools,omitempty"`
	Resources *ResourcesCapability `json:"resources,omitempty"`
}

// ToolsCapability indicates support for tools
type ToolsCapability struct {
	ListChanged bool `json:"listChanged"`
}

// ResourcesCapability indicates support for resources
type ResourcesCapability struct {
	Subscribe   bool `json:"subscribe"`
	ListChanged bool `json:"listChanged"`
}

// Resource represents a resource exposed by the server
type Resource struct {
	URI         string `json:"uri"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	MIMEType    string `json:"mimeType,omitempty"`
}

// ResourceContents carries the text of a read resource
type ResourceContents struct {
	URI      string `json:"uri"`
	MIMEType string `json:"mimeType"`
	Text     string `json:"text"`
}

// Tool represents a tool exposed by the server
type Tool struct {
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	InputSchema InputSchema `json:"inputSchema"`
}

// InputSchema is the JSON schema object describing tool arguments
type InputSchema struct {
	Type       string                    `json:"type"`
	Properties map[string]PropertySchema `json:"properties"`
	Required   []string                  `json:"required,omitempty"`
}

// PropertySchema describes a single primitive argument
type PropertySchema struct {
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
}

// TextContent represents text content
type TextContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// NewTextContent wraps text as a content item.
func NewTextContent(text string) TextContent {
	return TextContent{Type: "text", Text: text}
}

// ToolFromDomain renders a domain tool with its parameter schema.
func ToolFromDomain(tool domain.Tool) Tool {
	schema := InputSchema{
		Type:       "object",
		Properties: make(map[string]PropertySchema, len(tool.Parameters)),
	}
	for _, param := range tool.Parameters {
		schema.Properties[param.Name] = PropertySchema{
			Type:        param.Type,
			Description: param.Description,
		}
		if param.Required {
			schema.Required = append(schema.Required, param.Name)
		}
	}
	return Tool{
		Name:        tool.Name,
		Description: tool.Description,
		InputSchema: schema,
	}
}

// ResourceFromDomain renders a domain resource descriptor.
func ResourceFromDomain(resource domain.Resource) Resource {
	return Resource{
		URI:         resource.URI,
		Name:        resource.Name,
		Description: resource.Description,
		MIMEType:    resource.MIMEType,
	}
}
