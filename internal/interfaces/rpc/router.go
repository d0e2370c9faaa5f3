// Package rpc maps JSON-RPC envelopes onto dispatcher calls. Both
// transports share one Router.
package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/FreePeak/data-query-server/internal/domain"
	"github.com/FreePeak/data-query-server/internal/domain/shared"
	"github.com/FreePeak/data-query-server/internal/infrastructure/logging"
)

// Dispatcher is the transport-agnostic core the router drives.
type Dispatcher interface {
	ServerInfo() (string, string)
	ListTools() []domain.Tool
	ListResources() []domain.Resource
	CallTool(ctx context.Context, name string, args map[string]interface{}) (*domain.ToolResult, error)
	ReadResource(ctx context.Context, uri string) (*domain.ResourceContents, error)
}

// RequestObserver receives the outcome of every envelope.
type RequestObserver interface {
	ObserveRequest(transport, method, outcome string)
}

// Outcome labels passed to the RequestObserver.
const (
	OutcomeOK           = "ok"
	OutcomeError        = "error"
	OutcomeNotification = "notification"
	OutcomeParseFailure = "parse_error"
)

// Router turns requests into responses.
type Router struct {
	dispatcher Dispatcher
	observer   RequestObserver
	logger     *logging.Logger
}

// Option configures a Router.
type Option func(*Router)

// WithLogger sets the router logger.
func WithLogger(logger *logging.Logger) Option {
	return func(r *Router) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithObserver reports every handled envelope to o.
func WithObserver(o RequestObserver) Option {
	return func(r *Router) {
		r.observer = o
	}
}

// NewRouter creates a Router over d.
func NewRouter(d Dispatcher, opts ...Option) *Router {
	r := &Router{
		dispatcher: d,
		logger:     logging.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.Named("rpc")
	return r
}

// HandleRaw parses one envelope and handles it. A parse failure yields a
// -32700 response with a null id and parsed=false. A nil response means
// the envelope was a notification.
func (r *Router) HandleRaw(ctx context.Context, transport string, raw []byte) (resp *shared.Response, parsed bool) {
	req, err := shared.ParseRequest(raw)
	if err != nil {
		r.logger.Warn("unparseable envelope", logging.Fields{
			"transport": transport,
			"error":     err.Error(),
		})
		r.observe(transport, "", OutcomeParseFailure)
		return ParseErrorResponse(err), false
	}
	return r.Handle(ctx, transport, req), true
}

// ParseErrorResponse builds the response for an envelope that could not
// be decoded far enough to read its id.
func ParseErrorResponse(err error) *shared.Response {
	return shared.NewErrorResponse(nil, shared.ParseError, fmt.Sprintf("%s: %v", shared.ErrorMessage(shared.ParseError), err))
}

// Handle routes one request. It never panics: a panicking handler
// becomes a -32603 response.
func (r *Router) Handle(ctx context.Context, transport string, req *shared.Request) (resp *shared.Response) {
	start := time.Now()
	log := r.logger.With(logging.Fields{
		"transport": transport,
		"method":    req.Method,
		"id":        string(req.ID),
	})

	if req.IsNotification() && strings.HasPrefix(req.Method, shared.NotificationPrefix) {
		log.Debug("notification received")
		r.observe(transport, "notification", OutcomeNotification)
		return nil
	}

	defer func() {
		if p := recover(); p != nil {
			log.Error("handler panicked", logging.Fields{"panic": fmt.Sprint(p)})
			resp = shared.NewErrorResponse(req.ID, shared.InternalError, fmt.Sprintf("%s: %v", shared.ErrorMessage(shared.InternalError), p))
		}

		outcome := OutcomeOK
		if resp != nil && resp.Error != nil {
			outcome = OutcomeError
			log.Warn("request failed", logging.Fields{
				"code":    resp.Error.Code,
				"message": resp.Error.Message,
			})
		}
		log.Debug("request handled", logging.Fields{"duration": time.Since(start).String()})
		r.observe(transport, methodLabel(req.Method), outcome)
	}()

	return r.route(ctx, req)
}

func (r *Router) route(ctx context.Context, req *shared.Request) *shared.Response {
	switch req.Method {
	case shared.MethodInitialize:
		return shared.NewResponse(req.ID, r.initialize())

	case shared.MethodPing:
		return shared.NewResponse(req.ID, struct{}{})

	case shared.MethodListTools:
		tools := r.dispatcher.ListTools()
		out := make([]shared.Tool, len(tools))
		for i, t := range tools {
			out[i] = shared.ToolFromDomain(t)
		}
		return shared.NewResponse(req.ID, shared.ListToolsResult{Tools: out})

	case shared.MethodCallTool:
		var params shared.CallToolParams
		if err := req.DecodeParams(&params); err != nil {
			return invalidParams(req.ID, err)
		}
		result, err := r.dispatcher.CallTool(ctx, params.Name, params.Arguments)
		if err != nil {
			return shared.NewErrorResponse(req.ID, shared.InternalError, err.Error())
		}
		return shared.NewResponse(req.ID, shared.CallToolResult{
			Content: []shared.TextContent{shared.NewTextContent(result.Text)},
		})

	case shared.MethodListResources:
		resources := r.dispatcher.ListResources()
		out := make([]shared.Resource, len(resources))
		for i, res := range resources {
			out[i] = shared.ResourceFromDomain(res)
		}
		return shared.NewResponse(req.ID, shared.ListResourcesResult{Resources: out})

	case shared.MethodReadResource:
		var params shared.ReadResourceParams
		if err := req.DecodeParams(&params); err != nil {
			return invalidParams(req.ID, err)
		}
		contents, err := r.dispatcher.ReadResource(ctx, params.URI)
		if err != nil {
			return shared.NewErrorResponse(req.ID, shared.InternalError, err.Error())
		}
		return shared.NewResponse(req.ID, shared.ReadResourceResult{
			Contents: []shared.ResourceContents{{
				URI:      contents.URI,
				MIMEType: contents.MIMEType,
				Text:     contents.Text,
			}},
		})

	default:
		return shared.NewErrorResponse(req.ID, shared.MethodNotFound,
			fmt.Sprintf("%s: %s", shared.ErrorMessage(shared.MethodNotFound), req.Method))
	}
}

func (r *Router) initialize() shared.InitializeResult {
	name, version := r.dispatcher.ServerInfo()
	return shared.InitializeResult{
		ProtocolVersion: shared.ProtocolVersion,
		Capabilities: shared.Capabilities{
			Tools:     &shared.ToolsCapability{ListChanged: false},
			Resources: &shared.ResourcesCapability{Subscribe: false, ListChanged: false},
		},
		ServerInfo: shared.ServerInfo{Name: name, Version: version},
	}
}

func invalidParams(id json.RawMessage, err error) *shared.Response {
	return shared.NewErrorResponse(id, shared.InvalidParams, fmt.Sprintf("%s: %v", shared.ErrorMessage(shared.InvalidParams), err))
}

// methodLabel bounds metric cardinality to the known method set.
func methodLabel(method string) string {
	switch method {
	case shared.MethodInitialize, shared.MethodPing, shared.MethodListTools,
		shared.MethodCallTool, shared.MethodListResources, shared.MethodReadResource:
		return method
	default:
		return "other"
	}
}

func (r *Router) observe(transport, method, outcome string) {
	if r.observer != nil {
		r.observer.ObserveRequest(transport, method, outcome)
	}
}
