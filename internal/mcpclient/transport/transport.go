// Package transport implements the two wire transports an MCP client
// can speak to a server over: Streamable HTTP (spec 2025-03-26) and
// newline-delimited stdio, adapted from the teacher's server-side
// internal/mcp.HTTPServer and internal/mcp.Server.Run with client/server
// roles inverted (spec.md §4.4).
package transport

import (
	"context"
	"encoding/json"

	"github.com/stencila-go/docengine/internal/mcpclient/protocol"
)

// Transport sends JSON-RPC requests to a single MCP server and
// delivers server-initiated notifications back to the client.
type Transport interface {
	// Call sends a request and blocks for its matching response.
	Call(ctx context.Context, req *protocol.Request) (*protocol.Response, error)

	// Notify sends a one-way message (no response expected), e.g.
	// "notifications/initialized".
	Notify(ctx context.Context, req *protocol.Request) error

	// Notifications delivers server-initiated messages (tool list
	// changes, log messages) for as long as the transport is open.
	Notifications() <-chan *protocol.Request

	// Close releases transport resources (HTTP notification listener,
	// stdio subprocess).
	Close() error
}

// encodeID renders a monotonically increasing request counter as a
// JSON-RPC id.
func encodeID(n int64) json.RawMessage {
	b, _ := json.Marshal(n)
	return b
}
