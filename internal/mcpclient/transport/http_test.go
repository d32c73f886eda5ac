package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stencila-go/docengine/internal/mcpclient/protocol"
)

// discardLogger and rawID mirror the helpers in stdio_test.go; that
// file lives in package transport_test (black-box) while this one
// needs package transport to reach parseSSE and sessionHeader, so the
// two small helpers can't be shared directly.
func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func rawID(n int) json.RawMessage {
	b, _ := json.Marshal(n)
	return b
}

// newTestServer serves POST with handlePost and always 405s GET, which
// permanently disables the transport's SSE reconnect loop (mirroring
// the teacher's own server, see HTTPTransport's doc comment) so these
// tests never race against background reconnect attempts.
func newTestServer(t *testing.T, handlePost http.HandlerFunc) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/mcp", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		handlePost(w, r)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestHTTPTransportCallRoundTrip(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		w.Header().Set("Mcp-Session-Id", "session-1")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":{"ok":true}}`))
	})

	tr := NewHTTPTransport(srv.URL+"/mcp", "tok", discardLogger())
	t.Cleanup(func() { _ = tr.Close() })

	resp, err := tr.Call(context.Background(), &protocol.Request{JSONRPC: "2.0", ID: rawID(1), Method: "initialize"})
	require.NoError(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, "1", string(resp.ID))
	assert.Equal(t, "session-1", tr.sessionHeader())
}

func TestHTTPTransportNotifyGetsNoBodyOn202(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	})

	tr := NewHTTPTransport(srv.URL+"/mcp", "", discardLogger())
	t.Cleanup(func() { _ = tr.Close() })

	err := tr.Notify(context.Background(), &protocol.Request{JSONRPC: "2.0", Method: "notifications/initialized"})
	assert.NoError(t, err)
}

func TestHTTPTransportNonOKStatusReturnsError(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("boom"))
	})

	tr := NewHTTPTransport(srv.URL+"/mcp", "", discardLogger())
	t.Cleanup(func() { _ = tr.Close() })

	_, err := tr.Call(context.Background(), &protocol.Request{JSONRPC: "2.0", ID: rawID(1)})
	assert.Error(t, err)
}

func TestHTTPTransportSessionHeaderSentOnSubsequentCalls(t *testing.T) {
	var calls atomic.Int32
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		if n == 1 {
			w.Header().Set("Mcp-Session-Id", "session-xyz")
		} else {
			assert.Equal(t, "session-xyz", r.Header.Get("Mcp-Session-Id"))
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":{}}`))
	})

	tr := NewHTTPTransport(srv.URL+"/mcp", "", discardLogger())
	t.Cleanup(func() { _ = tr.Close() })

	_, err := tr.Call(context.Background(), &protocol.Request{JSONRPC: "2.0", ID: rawID(1)})
	require.NoError(t, err)
	_, err = tr.Call(context.Background(), &protocol.Request{JSONRPC: "2.0", ID: rawID(2)})
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestHTTPTransportCloseSendsDeleteForEstablishedSession(t *testing.T) {
	deleted := make(chan string, 1)
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Mcp-Session-Id", "session-to-close")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":{}}`))
	})
	mux := srv.Config.Handler.(*http.ServeMux)
	mux.HandleFunc("DELETE /mcp", func(w http.ResponseWriter, r *http.Request) {
		deleted <- r.Header.Get("Mcp-Session-Id")
		w.WriteHeader(http.StatusNoContent)
	})

	tr := NewHTTPTransport(srv.URL+"/mcp", "", discardLogger())
	_, err := tr.Call(context.Background(), &protocol.Request{JSONRPC: "2.0", ID: rawID(1)})
	require.NoError(t, err)

	require.NoError(t, tr.Close())

	select {
	case sid := <-deleted:
		assert.Equal(t, "session-to-close", sid)
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not send DELETE for the established session")
	}
}

func TestHTTPTransportCloseWithoutSessionSendsNoDelete(t *testing.T) {
	var deleteCalled atomic.Bool
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	})
	mux := srv.Config.Handler.(*http.ServeMux)
	mux.HandleFunc("DELETE /mcp", func(w http.ResponseWriter, r *http.Request) {
		deleteCalled.Store(true)
	})

	tr := NewHTTPTransport(srv.URL+"/mcp", "", discardLogger())
	require.NoError(t, tr.Close())
	assert.False(t, deleteCalled.Load())
}

func TestParseSSEAccumulatesMultilineDataUntilBlankLine(t *testing.T) {
	body := "event: message\n" +
		`data: {"jsonrpc":"2.0","method":"notifications/progress","params":{"pct":50}}` + "\n" +
		"\n"
	out := make(chan []byte, 1)
	done := make(chan struct{})

	err := parseSSE(strings.NewReader(body), func(data []byte) { out <- data }, done)
	require.NoError(t, err)

	select {
	case data := <-out:
		var req protocol.Request
		require.NoError(t, json.Unmarshal(data, &req))
		assert.Equal(t, "notifications/progress", req.Method)
	default:
		t.Fatal("expected one parsed SSE event")
	}
}

func TestParseSSEFlushesOnEOFWithoutTrailingBlankLine(t *testing.T) {
	body := `data: {"jsonrpc":"2.0","method":"notifications/ping"}` + "\n"
	out := make(chan []byte, 1)
	done := make(chan struct{})

	err := parseSSE(strings.NewReader(body), func(data []byte) { out <- data }, done)
	require.NoError(t, err)

	select {
	case data := <-out:
		var req protocol.Request
		require.NoError(t, json.Unmarshal(data, &req))
		assert.Equal(t, "notifications/ping", req.Method)
	default:
		t.Fatal("expected EOF to flush the pending event")
	}
}

func TestParseSSEIgnoresCommentAndIDLines(t *testing.T) {
	body := ": keep-alive\n" +
		"id: 42\n" +
		`data: {"jsonrpc":"2.0","method":"x"}` + "\n" +
		"\n"
	out := make(chan []byte, 1)
	done := make(chan struct{})

	require.NoError(t, parseSSE(strings.NewReader(body), func(data []byte) { out <- data }, done))
	var req protocol.Request
	require.NoError(t, json.Unmarshal(<-out, &req))
	assert.Equal(t, "x", req.Method)
}

func TestParseSSEStopsOnDone(t *testing.T) {
	r, w := io.Pipe()
	done := make(chan struct{})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = parseSSE(r, func(data []byte) {}, done)
	}()

	close(done)
	_ = w.Close()
	wg.Wait()
}

// TestHTTPTransportSSEResponseDeliversResult covers spec.md §4.4.2's
// Streamable HTTP shape where the POST response is upgraded to
// text/event-stream and the JSON-RPC result arrives as an SSE event
// rather than the HTTP body itself.
func TestHTTPTransportSSEResponseDeliversResult(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "data: {\"jsonrpc\":\"2.0\",\"id\":1,\"result\":{\"ok\":true}}\n\n")
	})

	tr := NewHTTPTransport(srv.URL+"/mcp", "", discardLogger())
	t.Cleanup(func() { _ = tr.Close() })

	resp, err := tr.Call(context.Background(), &protocol.Request{JSONRPC: "2.0", ID: rawID(1), Method: "tools/call"})
	require.NoError(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, "1", string(resp.ID))
}

// TestHTTPTransportUnknownIDResponseDoesNotCorruptPendingMap covers the
// "responses for unknown ids are logged but do not corrupt the pending
// map" property: a stray response for an id nobody is waiting on must
// not panic or wedge a later, legitimate Call for a different id.
func TestHTTPTransportUnknownIDResponseDoesNotCorruptPendingMap(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "data: {\"jsonrpc\":\"2.0\",\"id\":999,\"result\":{}}\n\n")
		fmt.Fprint(w, "data: {\"jsonrpc\":\"2.0\",\"id\":1,\"result\":{\"ok\":true}}\n\n")
	})

	tr := NewHTTPTransport(srv.URL+"/mcp", "", discardLogger())
	t.Cleanup(func() { _ = tr.Close() })

	resp, err := tr.Call(context.Background(), &protocol.Request{JSONRPC: "2.0", ID: rawID(1), Method: "tools/call"})
	require.NoError(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, "1", string(resp.ID))

	assert.Empty(t, tr.pending)
}

// TestHTTPTransportCloseWakesBlockedCall covers "Shutdown wakes all
// outstanding request callers with a transport error": a Call blocked
// waiting on a response that will never arrive must return, not hang,
// once Close runs.
func TestHTTPTransportCloseWakesBlockedCall(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		close(started)
		<-release
	})
	t.Cleanup(func() { close(release) })

	tr := NewHTTPTransport(srv.URL+"/mcp", "", discardLogger())

	errCh := make(chan error, 1)
	go func() {
		_, err := tr.Call(context.Background(), &protocol.Request{JSONRPC: "2.0", ID: rawID(1), Method: "tools/call"})
		errCh <- err
	}()

	<-started
	require.NoError(t, tr.Close())

	select {
	case err := <-errCh:
		assert.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not wake the blocked Call")
	}
}

var _ Transport = (*HTTPTransport)(nil)
