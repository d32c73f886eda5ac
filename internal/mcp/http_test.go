package mcp

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testHTTPServer(t *testing.T) *HTTPServer {
	t.Helper()
	registry := NewRegistry()
	registry.Register(echoTool{})
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewHTTPServer(NewServer(registry, ServerInfo{Name: "test", Version: "0"}, logger), "*", logger)
}

func doRequest(h http.Handler, method, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, "/mcp", strings.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHTTPServerRequiresAuthentication(t *testing.T) {
	h := testHTTPServer(t).Handler()
	rec := doRequest(h, http.MethodPost, `{"jsonrpc":"2.0","id":1,"method":"initialize"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHTTPServerInitializeCreatesSession(t *testing.T) {
	h := testHTTPServer(t).Handler()
	rec := doRequest(h, http.MethodPost, `{"jsonrpc":"2.0","id":1,"method":"initialize"}`,
		map[string]string{"Authorization": "Bearer tok"})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Mcp-Session-Id"))

	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Nil(t, resp.Error)
}

func TestHTTPServerToolsCall(t *testing.T) {
	h := testHTTPServer(t).Handler()
	rec := doRequest(h, http.MethodPost, `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"echo"}}`,
		map[string]string{"Authorization": "Bearer tok"})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHTTPServerEmptyBodyRejected(t *testing.T) {
	h := testHTTPServer(t).Handler()
	rec := doRequest(h, http.MethodPost, "", map[string]string{"Authorization": "Bearer tok"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHTTPServerDeleteUnknownSessionErrors(t *testing.T) {
	h := testHTTPServer(t).Handler()
	rec := doRequest(h, http.MethodDelete, "", map[string]string{
		"Authorization":   "Bearer tok",
		"Mcp-Session-Id": "does-not-exist",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHTTPServerHealthCheck(t *testing.T) {
	h := testHTTPServer(t).Handler()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthenticateRejectsMissingOrEmptyBearer(t *testing.T) {
	h := testHTTPServer(t)

	req := httptest.NewRequest(http.MethodPost, "/mcp", nil)
	assert.False(t, h.authenticate(req))

	req.Header.Set("Authorization", "Bearer ")
	assert.False(t, h.authenticate(req))

	req.Header.Set("Authorization", "Bearer x")
	assert.True(t, h.authenticate(req))

	req.Header.Set("Authorization", "Basic abc")
	assert.False(t, h.authenticate(req))
}
