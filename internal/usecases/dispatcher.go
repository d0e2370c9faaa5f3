// Package usecases implements the transport-agnostic dispatcher core.
package usecases

import (
	"context"
	"net/url"

	"github.com/FreePeak/data-query-server/internal/domain"
	"github.com/FreePeak/data-query-server/internal/domain/handler"
	"github.com/FreePeak/data-query-server/internal/infrastructure/logging"
	"github.com/FreePeak/data-query-server/internal/usecases/registry"
)

// Dispatcher validates and routes tool calls and resource reads. It holds
// no mutable state, so one instance serves every transport.
type Dispatcher struct {
	name      string
	version   string
	registry  *registry.Registry
	tools     handler.ToolHandler
	resources handler.ResourceHandler
	logger    *logging.Logger
}

// DispatcherConfig contains configuration for the Dispatcher.
type DispatcherConfig struct {
	Name      string
	Version   string
	Registry  *registry.Registry
	Tools     handler.ToolHandler
	Resources handler.ResourceHandler
	Logger    *logging.Logger
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(config DispatcherConfig) *Dispatcher {
	logger := config.Logger
	if logger == nil {
		logger = logging.Default()
	}
	return &Dispatcher{
		name:      config.Name,
		version:   config.Version,
		registry:  config.Registry,
		tools:     config.Tools,
		resources: config.Resources,
		logger:    logger.Named("dispatcher"),
	}
}

// ServerInfo returns the server name and version.
func (d *Dispatcher) ServerInfo() (string, string) {
	return d.name, d.version
}

// ListTools returns the tool descriptors in advertised order.
func (d *Dispatcher) ListTools() []domain.Tool {
	return d.registry.Tools()
}

// ListResources returns every dataset resource followed by schema://all.
func (d *Dispatcher) ListResources() []domain.Resource {
	return d.registry.Resources()
}

// CallTool runs the named tool. Arguments are validated before the store
// is touched. Query failures come back as text in the result; the error
// is reserved for malformed calls and an unavailable store.
func (d *Dispatcher) CallTool(ctx context.Context, name string, args map[string]interface{}) (*domain.ToolResult, error) {
	d.logger.Debug("call tool", logging.Fields{"tool": name})

	op, ok := registry.ParseOperation(name)
	if !ok {
		return nil, domain.NewUnknownOperationError(name)
	}

	switch op {
	case registry.OpSQLQuery:
		query, err := requireString(args, registry.ArgQuery, "Missing SQL query")
		if err != nil {
			return nil, err
		}
		return d.tools.SQLQuery(ctx, query)

	case registry.OpDescribeTable:
		table, err := requireString(args, registry.ArgTableName, "Missing table name")
		if err != nil {
			return nil, err
		}
		return d.tools.DescribeTable(ctx, table)

	case registry.OpListTables:
		return d.tools.ListTables(ctx)
	}
	return nil, domain.NewUnknownOperationError(name)
}

// ReadResource resolves a dataset:// or schema:// URI.
func (d *Dispatcher) ReadResource(ctx context.Context, uri string) (*domain.ResourceContents, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return nil, domain.NewInvalidArgumentError("uri", "valid URI")
	}

	var text string
	switch u.Scheme {
	case registry.SchemeDataset:
		if !d.registry.HasDataset(u.Host) {
			return nil, domain.NewResourceNotFoundError(u.Host)
		}
		text, err = d.resources.ReadDataset(ctx, u.Host)
	case registry.SchemeSchema:
		text, err = d.resources.ReadSchema(ctx)
	default:
		return nil, domain.NewUnsupportedSchemeError(u.Scheme)
	}
	if err != nil {
		return nil, err
	}

	return &domain.ResourceContents{
		URI:      uri,
		MIMEType: registry.MIMETypeJSON,
		Text:     text,
	}, nil
}

// requireString extracts a non-empty string argument.
func requireString(args map[string]interface{}, key, missing string) (string, error) {
	raw, ok := args[key]
	if !ok || raw == nil {
		return "", domain.NewMissingArgumentError(key, missing)
	}
	s, ok := raw.(string)
	if !ok {
		return "", domain.NewInvalidArgumentError(key, "string")
	}
	if s == "" {
		return "", domain.NewMissingArgumentError(key, missing)
	}
	return s, nil
}
