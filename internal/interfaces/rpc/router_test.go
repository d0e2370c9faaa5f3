package rpc

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FreePeak/data-query-server/internal/domain"
	"github.com/FreePeak/data-query-server/internal/domain/shared"
	"github.com/FreePeak/data-query-server/internal/infrastructure/logging"
)

type fakeDispatcher struct {
	lastTool string
	lastArgs map[string]interface{}
}

func (f *fakeDispatcher) ServerInfo() (string, string) { return "data-query-server", "0.1.0" }

func (f *fakeDispatcher) ListTools() []domain.Tool {
	return []domain.Tool{
		{Name: "sql_query", Parameters: []domain.ToolParameter{{Name: "query", Type: "string", Required: true}}},
		{Name: "describe_table"},
		{Name: "list_tables"},
	}
}

func (f *fakeDispatcher) ListResources() []domain.Resource {
	return []domain.Resource{{URI: "schema://all", Name: "Database Schema", MIMEType: "application/json"}}
}

func (f *fakeDispatcher) CallTool(_ context.Context, name string, args map[string]interface{}) (*domain.ToolResult, error) {
	f.lastTool, f.lastArgs = name, args
	switch name {
	case "boom":
		panic("kaboom")
	case "sql_query":
		return &domain.ToolResult{Text: "Query executed successfully!"}, nil
	default:
		return nil, domain.NewUnknownOperationError(name)
	}
}

func (f *fakeDispatcher) ReadResource(_ context.Context, uri string) (*domain.ResourceContents, error) {
	if uri != "schema://all" {
		return nil, domain.NewUnsupportedSchemeError("file")
	}
	return &domain.ResourceContents{URI: uri, MIMEType: "application/json", Text: `{"tables":[]}`}, nil
}

type countingObserver struct {
	mu     sync.Mutex
	counts map[string]int
}

func (o *countingObserver) ObserveRequest(transport, method, outcome string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.counts == nil {
		o.counts = map[string]int{}
	}
	o.counts[transport+"|"+method+"|"+outcome]++
}

func newTestRouter() (*Router, *fakeDispatcher, *countingObserver) {
	d := &fakeDispatcher{}
	obs := &countingObserver{}
	return NewRouter(d, WithLogger(logging.NewNop()), WithObserver(obs)), d, obs
}

func handle(t *testing.T, r *Router, raw string) map[string]interface{} {
	t.Helper()
	resp, parsed := r.HandleRaw(context.Background(), "test", []byte(raw))
	require.True(t, parsed)
	require.NotNil(t, resp)
	b, err := json.Marshal(resp)
	require.NoError(t, err)
	out := map[string]interface{}{}
	require.NoError(t, json.Unmarshal(b, &out))
	return out
}

func TestInitialize(t *testing.T) {
	r, _, _ := newTestRouter()

	out := handle(t, r, `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}`)

	assert.Equal(t, "2.0", out["jsonrpc"])
	assert.EqualValues(t, 1, out["id"])
	result := out["result"].(map[string]interface{})
	assert.Equal(t, shared.ProtocolVersion, result["protocolVersion"])
	assert.Equal(t, map[string]interface{}{"name": "data-query-server", "version": "0.1.0"}, result["serverInfo"])
	caps := result["capabilities"].(map[string]interface{})
	assert.Equal(t, map[string]interface{}{"listChanged": false}, caps["tools"])
	assert.Equal(t, map[string]interface{}{"subscribe": false, "listChanged": false}, caps["resources"])
}

func TestPing(t *testing.T) {
	r, _, _ := newTestRouter()

	out := handle(t, r, `{"jsonrpc":"2.0","id":"p","method":"ping"}`)
	assert.Equal(t, "p", out["id"])
	assert.Equal(t, map[string]interface{}{}, out["result"])
}

func TestToolsList(t *testing.T) {
	r, _, _ := newTestRouter()

	out := handle(t, r, `{"jsonrpc":"2.0","id":7,"method":"tools/list","params":{}}`)
	assert.EqualValues(t, 7, out["id"])
	tools := out["result"].(map[string]interface{})["tools"].([]interface{})
	require.Len(t, tools, 3)

	first := tools[0].(map[string]interface{})
	assert.Equal(t, "sql_query", first["name"])
	schema := first["inputSchema"].(map[string]interface{})
	assert.Equal(t, "object", schema["type"])
	assert.Equal(t, []interface{}{"query"}, schema["required"])

	last := tools[2].(map[string]interface{})["inputSchema"].(map[string]interface{})
	assert.Equal(t, map[string]interface{}{}, last["properties"])
}

func TestToolsCall(t *testing.T) {
	r, d, _ := newTestRouter()

	out := handle(t, r, `{"jsonrpc":"2.0","id":"abc","method":"tools/call","params":{"name":"sql_query","arguments":{"query":"SELECT 1"}}}`)

	assert.Equal(t, "abc", out["id"])
	assert.Equal(t, "sql_query", d.lastTool)
	assert.Equal(t, map[string]interface{}{"query": "SELECT 1"}, d.lastArgs)
	content := out["result"].(map[string]interface{})["content"].([]interface{})
	require.Len(t, content, 1)
	assert.Equal(t, map[string]interface{}{"type": "text", "text": "Query executed successfully!"}, content[0])
}

func TestToolsCallDispatchErrorIsInternalError(t *testing.T) {
	r, _, _ := newTestRouter()

	out := handle(t, r, `{"jsonrpc":"2.0","id":3,"method":"tools/call","params":{"name":"nope"}}`)

	assert.EqualValues(t, 3, out["id"])
	assert.Nil(t, out["result"])
	errObj := out["error"].(map[string]interface{})
	assert.EqualValues(t, shared.InternalError, errObj["code"])
	assert.Equal(t, "Unknown tool: nope", errObj["message"])
}

func TestToolsCallBadParams(t *testing.T) {
	r, _, _ := newTestRouter()

	out := handle(t, r, `{"jsonrpc":"2.0","id":4,"method":"tools/call","params":[1,2]}`)

	errObj := out["error"].(map[string]interface{})
	assert.EqualValues(t, shared.InvalidParams, errObj["code"])
	assert.EqualValues(t, 4, out["id"])
}

func TestResources(t *testing.T) {
	r, _, _ := newTestRouter()

	out := handle(t, r, `{"jsonrpc":"2.0","id":5,"method":"resources/list"}`)
	resources := out["result"].(map[string]interface{})["resources"].([]interface{})
	require.Len(t, resources, 1)
	assert.Equal(t, "schema://all", resources[0].(map[string]interface{})["uri"])
	assert.Equal(t, "application/json", resources[0].(map[string]interface{})["mimeType"])

	out = handle(t, r, `{"jsonrpc":"2.0","id":6,"method":"resources/read","params":{"uri":"schema://all"}}`)
	contents := out["result"].(map[string]interface{})["contents"].([]interface{})
	require.Len(t, contents, 1)
	assert.Equal(t, map[string]interface{}{
		"uri": "schema://all", "mimeType": "application/json", "text": `{"tables":[]}`,
	}, contents[0])

	out = handle(t, r, `{"jsonrpc":"2.0","id":8,"method":"resources/read","params":{"uri":"file:///x"}}`)
	errObj := out["error"].(map[string]interface{})
	assert.EqualValues(t, shared.InternalError, errObj["code"])
	assert.Equal(t, "Unsupported URI scheme: file", errObj["message"])
}

func TestMethodNotFound(t *testing.T) {
	r, _, obs := newTestRouter()

	out := handle(t, r, `{"jsonrpc":"2.0","id":9,"method":"prompts/list"}`)
	errObj := out["error"].(map[string]interface{})
	assert.EqualValues(t, shared.MethodNotFound, errObj["code"])
	assert.Equal(t, "Method not found: prompts/list", errObj["message"])
	assert.EqualValues(t, 9, out["id"])

	out = handle(t, r, `{"jsonrpc":"2.0","id":10}`)
	assert.EqualValues(t, shared.MethodNotFound, out["error"].(map[string]interface{})["code"])

	assert.Equal(t, 2, obs.counts["test|other|error"])
}

func TestParseError(t *testing.T) {
	r, _, obs := newTestRouter()

	resp, parsed := r.HandleRaw(context.Background(), "test", []byte(`not json`))
	assert.False(t, parsed)
	require.NotNil(t, resp)
	assert.EqualValues(t, shared.ParseError, resp.Error.Code)

	b, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"id":null`)
	assert.Equal(t, 1, obs.counts["test||parse_error"])
}

func TestNotificationHasNoResponse(t *testing.T) {
	r, _, obs := newTestRouter()

	resp, parsed := r.HandleRaw(context.Background(), "test", []byte(`{"jsonrpc":"2.0","method":"notifications/initialized"}`))
	assert.True(t, parsed)
	assert.Nil(t, resp)
	assert.Equal(t, 1, obs.counts["test|notification|notification"])
}

func TestPanicBecomesInternalError(t *testing.T) {
	r, _, obs := newTestRouter()

	out := handle(t, r, `{"jsonrpc":"2.0","id":11,"method":"tools/call","params":{"name":"boom"}}`)

	errObj := out["error"].(map[string]interface{})
	assert.EqualValues(t, shared.InternalError, errObj["code"])
	assert.Contains(t, errObj["message"], "kaboom")
	assert.EqualValues(t, 11, out["id"])
	assert.Equal(t, 1, obs.counts["test|tools/call|error"])
}

func TestIDIsEchoedVerbatim(t *testing.T) {
	r, _, _ := newTestRouter()

	for _, id := range []string{`0`, `-3`, `1.5`, `"x-1"`, `12345678901234567890`} {
		resp, _ := r.HandleRaw(context.Background(), "test", []byte(`{"jsonrpc":"2.0","id":`+id+`,"method":"ping"}`))
		require.NotNil(t, resp)
		assert.Equal(t, id, string(resp.ID))
	}
}
