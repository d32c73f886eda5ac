package transport

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sony/gobreaker"

	"github.com/stencila-go/docengine/internal/mcpclient/protocol"
)

// HTTPTransport is the client side of the teacher's Streamable HTTP
// transport (internal/mcp.HTTPServer, MCP spec 2025-03-26): it POSTs
// JSON-RPC requests to a single endpoint, captures the
// Mcp-Session-Id the server hands back from initialize, and — unlike
// the teacher, whose server always 405s the GET stream — opens a GET
// SSE listener for server-initiated notifications, reconnecting with a
// gobreaker-guarded backoff.
type HTTPTransport struct {
	endpoint string
	client   *http.Client
	logger   *slog.Logger
	token    string

	mu        sync.RWMutex
	sessionID string

	pendingMu sync.Mutex
	pending   map[string]chan *protocol.Response

	notify chan *protocol.Request

	sseDisabled atomic.Bool // set permanently on a 405 from the GET endpoint
	breaker     *gobreaker.CircuitBreaker

	closeOnce sync.Once
	closeCh   chan struct{}
}

// NewHTTPTransport dials no request connection up front, but it starts
// the GET notification listener goroutine immediately, before any Call
// and before any initialize handshake. Call sends each request as given;
// the MCP initialize handshake is performed by the caller
// (mcpclient.Client).
func NewHTTPTransport(endpoint, bearerToken string, logger *slog.Logger) *HTTPTransport {
	t := &HTTPTransport{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 30 * time.Second},
		logger:   logger,
		token:    bearerToken,
		pending:  make(map[string]chan *protocol.Response),
		notify:   make(chan *protocol.Request, 64),
		closeCh:  make(chan struct{}),
	}
	t.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "mcp-sse-reconnect",
		MaxRequests: 1,
		Interval:    0,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= 3
		},
	})
	go t.listenNotifications()
	return t
}

func (t *HTTPTransport) sessionHeader() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.sessionID
}

func (t *HTTPTransport) setSession(id string) {
	if id == "" {
		return
	}
	t.mu.Lock()
	t.sessionID = id
	t.mu.Unlock()
}

// Call performs one JSON-RPC request/response round trip over POST. Per
// spec.md §4.4.2 the server may answer either with a direct
// application/json body or by upgrading the response to
// text/event-stream and delivering the result as an SSE event later on
// the same connection. A direct JSON body is decoded and returned as the
// response; an event-stream body is routed through the pending map the
// same way stdio.go's StdioTransport correlates its own id-keyed
// responses, so the result reaches the right waiter and Close can wake
// anyone still waiting.
func (t *HTTPTransport) Call(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	var ch chan *protocol.Response
	var key string
	if req.ID != nil {
		key = string(req.ID)
		ch = make(chan *protocol.Response, 1)
		t.pendingMu.Lock()
		t.pending[key] = ch
		t.pendingMu.Unlock()
	}
	cleanup := func() {
		if ch == nil {
			return
		}
		t.pendingMu.Lock()
		delete(t.pending, key)
		t.pendingMu.Unlock()
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(body))
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("building request: %w", err)
	}
	t.setRequestHeaders(httpReq)

	resp, err := t.client.Do(httpReq)
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("posting request: %w", err)
	}

	if sid := resp.Header.Get("Mcp-Session-Id"); sid != "" {
		t.setSession(sid)
	}

	if resp.StatusCode == http.StatusAccepted {
		// Notification or response-less request: nothing to decode.
		resp.Body.Close()
		cleanup()
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
		resp.Body.Close()
		cleanup()
		return nil, fmt.Errorf("mcp server returned %d: %s", resp.StatusCode, string(respBody))
	}
	if ch == nil {
		// A request with no id has nothing to wait for, even if the
		// server answered 200 instead of 202.
		resp.Body.Close()
		return nil, nil
	}

	if strings.Contains(resp.Header.Get("Content-Type"), "text/event-stream") {
		go func() {
			defer resp.Body.Close()
			if err := parseSSE(resp.Body, t.dispatchMessage, t.closeCh); err != nil && t.logger != nil {
				t.logger.Debug("mcp http: sse response stream ended", "error", err)
			}
		}()
	} else {
		respBody, err := io.ReadAll(io.LimitReader(resp.Body, 10*1024*1024))
		resp.Body.Close()
		if err != nil {
			cleanup()
			return nil, fmt.Errorf("reading response body: %w", err)
		}
		var out protocol.Response
		if err := json.Unmarshal(respBody, &out); err != nil {
			cleanup()
			return nil, fmt.Errorf("decoding response: %w", err)
		}
		cleanup()
		return &out, nil
	}

	select {
	case resp, ok := <-ch:
		if !ok {
			return nil, fmt.Errorf("mcp http transport closed before response to %s", key)
		}
		return resp, nil
	case <-ctx.Done():
		cleanup()
		return nil, ctx.Err()
	case <-t.closeCh:
		cleanup()
		return nil, fmt.Errorf("mcp http transport closed")
	}
}

// dispatchMessage routes one decoded JSON-RPC message, whether read off
// the GET notification stream or a POST's text/event-stream response,
// the same way stdio.go's dispatchLine does: a message carrying a
// method is a server-initiated notification, everything else is a
// response matched against the pending map by id. A response for an id
// with no waiter (already delivered, timed out, or simply unknown) is
// logged and dropped rather than left to corrupt the map.
func (t *HTTPTransport) dispatchMessage(data []byte) {
	var peek struct {
		ID     json.RawMessage `json:"id,omitempty"`
		Method string          `json:"method,omitempty"`
	}
	if err := json.Unmarshal(data, &peek); err != nil {
		if t.logger != nil {
			t.logger.Warn("mcp http: malformed sse payload", "error", err)
		}
		return
	}

	if peek.Method != "" {
		var req protocol.Request
		if err := json.Unmarshal(data, &req); err == nil {
			select {
			case t.notify <- &req:
			case <-t.closeCh:
			}
		}
		return
	}

	var resp protocol.Response
	if err := json.Unmarshal(data, &resp); err != nil {
		return
	}
	key := string(resp.ID)
	t.pendingMu.Lock()
	waiter, ok := t.pending[key]
	if ok {
		delete(t.pending, key)
	}
	t.pendingMu.Unlock()
	if ok {
		waiter <- &resp
	} else if t.logger != nil {
		t.logger.Debug("mcp http: response for unknown or already-delivered id", "id", key)
	}
}

// Notify sends a request with no id; the server accepts it with 202
// and no body is decoded.
func (t *HTTPTransport) Notify(ctx context.Context, req *protocol.Request) error {
	req.ID = nil
	_, err := t.Call(ctx, req)
	return err
}

func (t *HTTPTransport) setRequestHeaders(r *http.Request) {
	r.Header.Set("Content-Type", "application/json")
	r.Header.Set("Accept", "application/json, text/event-stream")
	if t.token != "" {
		r.Header.Set("Authorization", "Bearer "+t.token)
	}
	if sid := t.sessionHeader(); sid != "" {
		r.Header.Set("Mcp-Session-Id", sid)
	}
}

func (t *HTTPTransport) Notifications() <-chan *protocol.Request {
	return t.notify
}

// listenNotifications opens the server's GET SSE stream and parses
// events off it for as long as the transport is open. Per spec.md
// §4.4 the server MAY permanently refuse the stream with a 405 (the
// teacher's own server always does); on that response the listener
// stops trying for good rather than looping forever.
func (t *HTTPTransport) listenNotifications() {
	backoff := time.Second
	for {
		select {
		case <-t.closeCh:
			return
		default:
		}
		if t.sseDisabled.Load() {
			return
		}

		_, err := t.breaker.Execute(func() (any, error) {
			return nil, t.runSSEOnce()
		})
		if err != nil && t.logger != nil {
			t.logger.Debug("mcp notification stream reconnecting", "error", err, "backoff", backoff)
		}
		if t.sseDisabled.Load() {
			return
		}

		select {
		case <-t.closeCh:
			return
		case <-time.After(backoff):
		}
		if backoff < 5*time.Second {
			backoff *= 2
		}
	}
}

func (t *HTTPTransport) runSSEOnce() error {
	req, err := http.NewRequest(http.MethodGet, t.endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")
	if t.token != "" {
		req.Header.Set("Authorization", "Bearer "+t.token)
	}
	if sid := t.sessionHeader(); sid != "" {
		req.Header.Set("Mcp-Session-Id", sid)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusMethodNotAllowed {
		t.sseDisabled.Store(true)
		return nil
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("sse stream returned %d", resp.StatusCode)
	}

	return parseSSE(resp.Body, t.dispatchMessage, t.closeCh)
}

// parseSSE reads Server-Sent Events line by line through a buffered
// reader (so events split across TCP reads, and UTF-8 payloads split
// mid-rune, are reassembled before parsing), accumulating "data:" lines until a blank line ends
// the event, then hands the accumulated payload to dispatch for
// decoding and routing. The same parser serves both the GET
// notification stream and a POST response upgraded to
// text/event-stream; only the dispatch callback differs.
func parseSSE(r io.Reader, dispatch func(data []byte), done <-chan struct{}) error {
	reader := bufio.NewReader(r)
	var data strings.Builder

	flush := func() {
		if data.Len() == 0 {
			return
		}
		dispatch([]byte(data.String()))
		data.Reset()
	}

	for {
		select {
		case <-done:
			return nil
		default:
		}

		line, err := reader.ReadString('\n')
		if line != "" {
			trimmed := strings.TrimRight(line, "\r\n")
			switch {
			case trimmed == "":
				flush()
			case strings.HasPrefix(trimmed, "data:"):
				payload := strings.TrimPrefix(trimmed, "data:")
				payload = strings.TrimPrefix(payload, " ")
				if data.Len() > 0 {
					data.WriteByte('\n')
				}
				data.WriteString(payload)
			default:
				// Ignore "event:", "id:", "retry:", and comment lines.
			}
		}
		if err != nil {
			if err == io.EOF {
				flush()
				return nil
			}
			return err
		}
	}
}

// Close stops the notification listener and, if a session was
// established, sends a best-effort DELETE so the server can free the
// session immediately rather than waiting out its idle timeout
// (spec.md §4.4.2). The DELETE is given a short deadline of its own and
// its outcome is never returned, so a server that ignores the DELETE or
// answers it with 404/405 does not make Close fail.
func (t *HTTPTransport) Close() error {
	t.closeOnce.Do(func() {
		close(t.closeCh)
		t.pendingMu.Lock()
		for id, ch := range t.pending {
			close(ch)
			delete(t.pending, id)
		}
		t.pendingMu.Unlock()
		t.sendDelete()
	})
	return nil
}

func (t *HTTPTransport) sendDelete() {
	sid := t.sessionHeader()
	if sid == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, t.endpoint, nil)
	if err != nil {
		return
	}
	req.Header.Set("Mcp-Session-Id", sid)
	if t.token != "" {
		req.Header.Set("Authorization", "Bearer "+t.token)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		if t.logger != nil {
			t.logger.Debug("mcp session delete failed", "error", err)
		}
		return
	}
	resp.Body.Close()
}

var _ Transport = (*HTTPTransport)(nil)
