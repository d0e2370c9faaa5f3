package stdio

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"strings"
	"sync/atomic"
	"testing"
	"testing/iotest"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FreePeak/data-query-server/internal/domain"
	"github.com/FreePeak/data-query-server/internal/infrastructure/logging"
	"github.com/FreePeak/data-query-server/internal/interfaces/rpc"
)

type echoDispatcher struct{}

func (echoDispatcher) ServerInfo() (string, string) { return "data-query-server", "0.1.0" }

func (echoDispatcher) ListTools() []domain.Tool {
	return []domain.Tool{{Name: "sql_query"}, {Name: "describe_table"}, {Name: "list_tables"}}
}

func (echoDispatcher) ListResources() []domain.Resource { return nil }

func (echoDispatcher) CallTool(_ context.Context, name string, args map[string]interface{}) (*domain.ToolResult, error) {
	if name != "sql_query" {
		return nil, domain.NewUnknownOperationError(name)
	}
	q, _ := args["query"].(string)
	return &domain.ToolResult{Text: "ran " + q}, nil
}

func (echoDispatcher) ReadResource(context.Context, string) (*domain.ResourceContents, error) {
	return nil, domain.NewUnsupportedSchemeError("x")
}

func newTestServer(opts ...StdioOption) *StdioServer {
	router := rpc.NewRouter(echoDispatcher{}, rpc.WithLogger(logging.NewNop()))
	return NewStdioServer(router, append([]StdioOption{WithLogger(logging.NewNop())}, opts...)...)
}

type envelope struct {
	ID     json.RawMessage        `json:"id"`
	Result map[string]interface{} `json:"result"`
	Error  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func decodeAll(t *testing.T, out *bytes.Buffer) []envelope {
	t.Helper()
	var envs []envelope
	dec := json.NewDecoder(out)
	for dec.More() {
		var e envelope
		require.NoError(t, dec.Decode(&e))
		envs = append(envs, e)
	}
	return envs
}

func TestListenAnswersInOrder(t *testing.T) {
	var shutdowns int32
	s := newTestServer(WithShutdownFunc(func() error {
		atomic.AddInt32(&shutdowns, 1)
		return nil
	}))

	in := strings.Join([]string{
		`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}`,
		`{"jsonrpc":"2.0","method":"notifications/initialized"}`,
		``,
		`{"jsonrpc":"2.0","id":2,"method":"tools/list"}`,
		`{"jsonrpc":"2.0","id":"three","method":"tools/call","params":{"name":"sql_query","arguments":{"query":"SELECT 1"}}}`,
		`{"jsonrpc":"2.0","id":4,"method":"tools/call","params":{"name":"nope"}}`,
	}, "\n") + "\n"

	out := &bytes.Buffer{}
	require.NoError(t, s.Listen(context.Background(), strings.NewReader(in), out))

	envs := decodeAll(t, out)
	require.Len(t, envs, 4)
	assert.Equal(t, `1`, string(envs[0].ID))
	assert.Equal(t, "2024-11-05", envs[0].Result["protocolVersion"])
	assert.Equal(t, `2`, string(envs[1].ID))
	assert.Len(t, envs[1].Result["tools"], 3)
	assert.Equal(t, `"three"`, string(envs[2].ID))
	assert.Equal(t, []interface{}{map[string]interface{}{"type": "text", "text": "ran SELECT 1"}}, envs[2].Result["content"])
	assert.Equal(t, `4`, string(envs[3].ID))
	require.NotNil(t, envs[3].Error)
	assert.Equal(t, -32603, envs[3].Error.Code)
	assert.Equal(t, "Unknown tool: nope", envs[3].Error.Message)

	assert.Equal(t, Closed, s.State())
	assert.False(t, s.Session().Connected)
	assert.EqualValues(t, 1, atomic.LoadInt32(&shutdowns))
}

func TestListenBadLineDoesNotEndSession(t *testing.T) {
	s := newTestServer()

	in := "{not json\n" + `{"jsonrpc":"2.0","id":5,"method":"ping"}` + "\n"
	out := &bytes.Buffer{}
	require.NoError(t, s.Listen(context.Background(), strings.NewReader(in), out))

	envs := decodeAll(t, out)
	require.Len(t, envs, 2)
	assert.Equal(t, "null", string(envs[0].ID))
	require.NotNil(t, envs[0].Error)
	assert.Equal(t, -32700, envs[0].Error.Code)
	assert.Equal(t, `5`, string(envs[1].ID))
	assert.Nil(t, envs[1].Error)
}

func TestListenHandlesFinalLineWithoutNewline(t *testing.T) {
	s := newTestServer()

	out := &bytes.Buffer{}
	require.NoError(t, s.Listen(context.Background(), strings.NewReader(`{"jsonrpc":"2.0","id":6,"method":"ping"}`), out))

	envs := decodeAll(t, out)
	require.Len(t, envs, 1)
	assert.Equal(t, `6`, string(envs[0].ID))
}

func TestListenReadErrorIsFatal(t *testing.T) {
	var shutdowns int32
	s := newTestServer(WithShutdownFunc(func() error {
		atomic.AddInt32(&shutdowns, 1)
		return errors.New("close failed")
	}))

	in := io.MultiReader(
		strings.NewReader(`{"jsonrpc":"2.0","id":1,"method":"ping"}`+"\n"),
		iotest.ErrReader(errors.New("device gone")),
	)
	out := &bytes.Buffer{}

	err := s.Listen(context.Background(), in, out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "device gone")
	assert.Len(t, decodeAll(t, out), 1)
	assert.Equal(t, Closed, s.State())
	assert.EqualValues(t, 1, atomic.LoadInt32(&shutdowns))
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("broken pipe") }

func TestListenWriteErrorIsFatal(t *testing.T) {
	s := newTestServer()

	in := `{"jsonrpc":"2.0","id":1,"method":"ping"}` + "\n" + `{"jsonrpc":"2.0","id":2,"method":"ping"}` + "\n"
	err := s.Listen(context.Background(), strings.NewReader(in), failingWriter{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken pipe")
}

func TestListenCancellation(t *testing.T) {
	s := newTestServer()
	pr, pw := io.Pipe()
	defer pw.Close()

	ctx, cancel := context.WithCancel(context.Background())
	result := make(chan error, 1)
	go func() {
		result <- s.Listen(ctx, pr, io.Discard)
	}()

	require.Eventually(t, func() bool { return s.State() == SessionActive }, time.Second, time.Millisecond)
	cancel()

	select {
	case err := <-result:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Listen did not return after cancellation")
	}
	assert.Equal(t, Closed, s.State())
}

func TestListenOnlyOnce(t *testing.T) {
	s := newTestServer()
	require.NoError(t, s.Listen(context.Background(), strings.NewReader(""), io.Discard))

	err := s.Listen(context.Background(), strings.NewReader(""), io.Discard)
	assert.ErrorIs(t, err, ErrAlreadyStarted)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "idle", Idle.String())
	assert.Equal(t, "session_active", SessionActive.String())
	assert.Equal(t, "closed", Closed.String())
	assert.Equal(t, Idle, newTestServer().State())
}

func TestContextFunc(t *testing.T) {
	type key struct{}
	var seen interface{}
	s := newTestServer(WithStdioContextFunc(func(ctx context.Context) context.Context {
		seen = "called"
		return context.WithValue(ctx, key{}, "v")
	}))

	require.NoError(t, s.Listen(context.Background(), strings.NewReader(""), io.Discard))
	assert.Equal(t, "called", seen)
}
