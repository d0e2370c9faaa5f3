package shared

// MCP method names
const (
	// Core methods
	MethodInitialize = "initialize"
	MethodPing       = "ping"

	// Resource methods
	MethodListResources = "resources/list"
	MethodReadResource  = "resources/read"

	// Tool methods
	MethodListTools = "tools/list"
	MethodCallTool  = "tools/call"

	// NotificationPrefix marks methods that never get a response
	NotificationPrefix = "notifications/"
)

// ProtocolVersion is the MCP revision advertised by initialize.
const ProtocolVersion = "2024-11-05"

// InitializeResult represents the result of the initialize method
type InitializeResult struct {
	ProtocolVersion string       `json:"protocolVersion"`
	Capabilities    Capabilities `json:"capabilities"`
	ServerInfo      ServerInfo   `json:"serverInfo"`
}

// ListResourcesResult represents the result of the resources/list method
type ListResourcesResult struct {
	Resources []Resource `json:"resources"`
}

// ReadResourceParams represents parameters for the resources/read method
type ReadResourceParams struct {
	URI string `json:"uri"`
}

// ReadResourceResult represents the result of the resources/read method
type ReadResourceResult struct {
	Contents []ResourceContents `json:"contents"`
}

// ListToolsResult represents the result of the tools/list method
type ListToolsResult struct {
	Tools []Tool `json:"tools"`
}

// CallToolParams represents parameters for the tools/call method
type CallToolParams struct {
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments"`
}

// CallToolResult represents the result of the tools/call method
type CallToolResult struct {
	Content []TextContent `json:"content"`
}
