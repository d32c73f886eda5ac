package mcpclient

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/stencila-go/docengine/internal/mcpclient/protocol"
	"github.com/stencila-go/docengine/internal/mcpclient/transport"
)

// Client drives one MCP server connection over a Transport: it owns
// JSON-RPC id assignment, the initialize handshake, and fan-out of
// server-initiated notifications to subscribers. Counterpart to the
// teacher's internal/mcp.Server, with client/server roles inverted
// (spec.md §4.4).
type Client struct {
	name      string
	transport transport.Transport
	logger    *slog.Logger

	nextID int64
	info   *protocol.InitializeResult

	subscribers []chan *protocol.Request
}

// New wraps a transport already connected to a running MCP server.
func New(name string, t transport.Transport, logger *slog.Logger) *Client {
	c := &Client{name: name, transport: t, logger: logger}
	go c.fanOut()
	return c
}

func (c *Client) fanOut() {
	for req := range c.transport.Notifications() {
		for _, sub := range c.subscribers {
			select {
			case sub <- req:
			default:
				if c.logger != nil {
					c.logger.Warn("mcp notification dropped: subscriber channel full", "server", c.name)
				}
			}
		}
	}
}

// Subscribe returns a channel that receives every server-initiated
// message for the lifetime of the client.
func (c *Client) Subscribe() <-chan *protocol.Request {
	ch := make(chan *protocol.Request, 32)
	c.subscribers = append(c.subscribers, ch)
	return ch
}

// Initialize performs the MCP handshake and remembers the server's
// capabilities.
func (c *Client) Initialize(ctx context.Context, clientName, clientVersion string) (*protocol.InitializeResult, error) {
	params := protocol.InitializeParams{
		ProtocolVersion: "2024-11-05",
		Capabilities:    map[string]any{},
		ClientInfo:      protocol.ClientInfo{Name: clientName, Version: clientVersion},
	}
	var result protocol.InitializeResult
	if err := c.call(ctx, "initialize", params, &result); err != nil {
		return nil, err
	}
	c.info = &result

	return &result, c.transport.Notify(ctx, &protocol.Request{
		JSONRPC: "2.0",
		Method:  "notifications/initialized",
	})
}

// ListTools lists the tools the server exposes.
func (c *Client) ListTools(ctx context.Context) ([]protocol.ToolDefinition, error) {
	var result protocol.ToolsListResult
	if err := c.call(ctx, "tools/list", nil, &result); err != nil {
		return nil, err
	}
	return result.Tools, nil
}

// CallTool invokes a named tool with JSON-encoded arguments.
func (c *Client) CallTool(ctx context.Context, name string, arguments any) (*protocol.ToolsCallResult, error) {
	args, err := json.Marshal(arguments)
	if err != nil {
		return nil, fmt.Errorf("marshaling tool arguments: %w", err)
	}
	var result protocol.ToolsCallResult
	if err := c.call(ctx, "tools/call", protocol.ToolsCallParams{Name: name, Arguments: args}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ListPrompts lists the prompts the server exposes.
func (c *Client) ListPrompts(ctx context.Context) ([]protocol.PromptDefinition, error) {
	var result protocol.PromptsListResult
	if err := c.call(ctx, "prompts/list", nil, &result); err != nil {
		return nil, err
	}
	return result.Prompts, nil
}

// GetPrompt resolves a named prompt with the given arguments.
func (c *Client) GetPrompt(ctx context.Context, name string, arguments map[string]string) (*protocol.PromptsGetResult, error) {
	var result protocol.PromptsGetResult
	if err := c.call(ctx, "prompts/get", protocol.PromptsGetParams{Name: name, Arguments: arguments}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ListResources lists the resources the server exposes.
func (c *Client) ListResources(ctx context.Context) ([]protocol.ResourceDefinition, error) {
	var result protocol.ResourcesListResult
	if err := c.call(ctx, "resources/list", nil, &result); err != nil {
		return nil, err
	}
	return result.Resources, nil
}

// ReadResource reads a resource by URI.
func (c *Client) ReadResource(ctx context.Context, uri string) (*protocol.ResourcesReadResult, error) {
	var result protocol.ResourcesReadResult
	if err := c.call(ctx, "resources/read", protocol.ResourcesReadParams{URI: uri}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// call assigns a fresh id, round-trips one request through the
// transport, and decodes the result into out (a pointer), returning
// the server's RPCError as a Go error if present.
func (c *Client) call(ctx context.Context, method string, params any, out any) error {
	var rawParams json.RawMessage
	if params != nil {
		b, err := json.Marshal(params)
		if err != nil {
			return fmt.Errorf("marshaling %s params: %w", method, err)
		}
		rawParams = b
	}

	id := atomic.AddInt64(&c.nextID, 1)
	idBytes, _ := json.Marshal(id)

	resp, err := c.transport.Call(ctx, &protocol.Request{
		JSONRPC: "2.0",
		ID:      idBytes,
		Method:  method,
		Params:  rawParams,
	})
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	if resp == nil {
		return fmt.Errorf("%s: server did not return a response", method)
	}
	if resp.Error != nil {
		return fmt.Errorf("%s: %w", method, resp.Error)
	}
	if out == nil || len(resp.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Result, out); err != nil {
		return fmt.Errorf("%s: decoding result: %w", method, err)
	}
	return nil
}

// Close shuts down the underlying transport.
func (c *Client) Close() error {
	return c.transport.Close()
}
