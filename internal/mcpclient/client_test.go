package mcpclient

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stencila-go/docengine/internal/mcpclient/protocol"
)

// fakeTransport is a hand-rolled transport.Transport that answers
// Call with a canned response keyed by method, records every request
// it was asked to send, and lets a test push server-initiated
// messages onto Notifications().
type fakeTransport struct {
	mu       sync.Mutex
	calls    []*protocol.Request
	notifies []*protocol.Request
	results  map[string]json.RawMessage
	errs     map[string]*protocol.RPCError

	notifyCh chan *protocol.Request
	closed   bool
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		results:  map[string]json.RawMessage{},
		errs:     map[string]*protocol.RPCError{},
		notifyCh: make(chan *protocol.Request, 8),
	}
}

func (f *fakeTransport) Call(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	f.mu.Unlock()

	resp := &protocol.Response{JSONRPC: "2.0", ID: req.ID}
	if e, ok := f.errs[req.Method]; ok {
		resp.Error = e
		return resp, nil
	}
	if r, ok := f.results[req.Method]; ok {
		resp.Result = r
	} else {
		resp.Result = json.RawMessage(`{}`)
	}
	return resp, nil
}

func (f *fakeTransport) Notify(ctx context.Context, req *protocol.Request) error {
	f.mu.Lock()
	f.notifies = append(f.notifies, req)
	f.mu.Unlock()
	return nil
}

func (f *fakeTransport) Notifications() <-chan *protocol.Request { return f.notifyCh }

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		close(f.notifyCh)
	}
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestClientInitializeSendsHandshakeAndNotifiesInitialized(t *testing.T) {
	ft := newFakeTransport()
	ft.results["initialize"] = json.RawMessage(`{"protocolVersion":"2024-11-05","capabilities":{},"serverInfo":{"name":"srv","version":"1"}}`)

	c := New("test-server", ft, discardLogger())
	result, err := c.Initialize(context.Background(), "docengine", "0.1.0")
	require.NoError(t, err)
	assert.Equal(t, "srv", result.ServerInfo.Name)

	require.Len(t, ft.calls, 1)
	assert.Equal(t, "initialize", ft.calls[0].Method)
	require.Len(t, ft.notifies, 1)
	assert.Equal(t, "notifications/initialized", ft.notifies[0].Method)
}

func TestClientListToolsDecodesResult(t *testing.T) {
	ft := newFakeTransport()
	ft.results["tools/list"] = json.RawMessage(`{"tools":[{"name":"execute-code","description":"runs code"}]}`)

	c := New("test-server", ft, discardLogger())
	tools, err := c.ListTools(context.Background())
	require.NoError(t, err)
	require.Len(t, tools, 1)
	assert.Equal(t, "execute-code", tools[0].Name)
}

func TestClientCallToolMarshalsArguments(t *testing.T) {
	ft := newFakeTransport()
	ft.results["tools/call"] = json.RawMessage(`{"content":[{"type":"text","text":"ok"}]}`)

	c := New("test-server", ft, discardLogger())
	result, err := c.CallTool(context.Background(), "execute-code", map[string]string{"code": "1+1"})
	require.NoError(t, err)
	require.Len(t, result.Content, 1)
	assert.Equal(t, "ok", result.Content[0].Text)

	require.Len(t, ft.calls, 1)
	var params protocol.ToolsCallParams
	require.NoError(t, json.Unmarshal(ft.calls[0].Params, &params))
	assert.Equal(t, "execute-code", params.Name)
	assert.JSONEq(t, `{"code":"1+1"}`, string(params.Arguments))
}

func TestClientCallReturnsServerErrorAsGoError(t *testing.T) {
	ft := newFakeTransport()
	ft.errs["tools/list"] = &protocol.RPCError{Code: protocol.ErrCodeInternal, Message: "boom"}

	c := New("test-server", ft, discardLogger())
	_, err := c.ListTools(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestClientGetPromptAndReadResource(t *testing.T) {
	ft := newFakeTransport()
	ft.results["prompts/get"] = json.RawMessage(`{"description":"d","messages":[{"role":"user","content":{"type":"text","text":"hi"}}]}`)
	ft.results["resources/read"] = json.RawMessage(`{"contents":[{"uri":"doc://1","text":"body"}]}`)

	c := New("test-server", ft, discardLogger())

	prompt, err := c.GetPrompt(context.Background(), "summarize", map[string]string{"doc": "1"})
	require.NoError(t, err)
	assert.Equal(t, "d", prompt.Description)

	resource, err := c.ReadResource(context.Background(), "doc://1")
	require.NoError(t, err)
	require.Len(t, resource.Contents, 1)
	assert.Equal(t, "body", resource.Contents[0].Text)
}

func TestClientEachCallGetsAFreshMonotonicID(t *testing.T) {
	ft := newFakeTransport()
	c := New("test-server", ft, discardLogger())

	_, _ = c.ListTools(context.Background())
	_, _ = c.ListPrompts(context.Background())
	_, _ = c.ListResources(context.Background())

	require.Len(t, ft.calls, 3)
	ids := map[string]bool{}
	for _, call := range ft.calls {
		ids[string(call.ID)] = true
	}
	assert.Len(t, ids, 3, "every call must carry a distinct id")
}

func TestClientSubscribeFansOutNotifications(t *testing.T) {
	ft := newFakeTransport()
	c := New("test-server", ft, discardLogger())
	sub := c.Subscribe()

	ft.notifyCh <- &protocol.Request{JSONRPC: "2.0", Method: "notifications/tools/list_changed"}

	select {
	case req := <-sub:
		assert.Equal(t, "notifications/tools/list_changed", req.Method)
	case <-time.After(2 * time.Second):
		t.Fatal("subscriber never received fanned-out notification")
	}
}

func TestClientCloseClosesTransport(t *testing.T) {
	ft := newFakeTransport()
	c := New("test-server", ft, discardLogger())
	require.NoError(t, c.Close())
	assert.True(t, ft.closed)
}
