package transport

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"sync"

	"github.com/stencila-go/docengine/internal/mcpclient/protocol"
)

// StdioTransport speaks newline-delimited JSON-RPC over a child
// process's stdin/stdout, the same framing the teacher's
// internal/mcp.Server.Run reads on the server side (one JSON value per
// line), with requests and responses correlated by id instead of
// assumed to arrive in order — the teacher's server never needs this
// because it only ever answers the request it just read, but a client
// may have several calls in flight.
type StdioTransport struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	logger *slog.Logger

	mu      sync.Mutex
	writeMu sync.Mutex

	pending map[string]chan *protocol.Response
	notify  chan *protocol.Request

	closeOnce sync.Once
	done      chan struct{}
}

// NewStdioTransport starts command as a subprocess and begins reading
// its stdout line by line.
func NewStdioTransport(ctx context.Context, command string, args []string, logger *slog.Logger) (*StdioTransport, error) {
	cmd := exec.CommandContext(ctx, command, args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("opening stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("opening stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting mcp server process: %w", err)
	}

	t := &StdioTransport{
		cmd:     cmd,
		stdin:   stdin,
		logger:  logger,
		pending: make(map[string]chan *protocol.Response),
		notify:  make(chan *protocol.Request, 64),
		done:    make(chan struct{}),
	}
	go t.readLoop(stdout)
	return t, nil
}

func (t *StdioTransport) readLoop(stdout io.Reader) {
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 1024*1024), 10*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		t.dispatchLine(line)
	}
	t.mu.Lock()
	for id, ch := range t.pending {
		close(ch)
		delete(t.pending, id)
	}
	t.mu.Unlock()
}

func (t *StdioTransport) dispatchLine(line []byte) {
	var peek struct {
		ID     json.RawMessage `json:"id,omitempty"`
		Method string          `json:"method,omitempty"`
	}
	if err := json.Unmarshal(line, &peek); err != nil {
		if t.logger != nil {
			t.logger.Warn("mcp stdio: malformed line", "error", err)
		}
		return
	}

	// A server-initiated message with a method is a notification or
	// a server->client request; both are delivered on Notifications().
	if peek.Method != "" {
		var req protocol.Request
		if err := json.Unmarshal(line, &req); err == nil {
			select {
			case t.notify <- &req:
			case <-t.done:
			}
		}
		return
	}

	var resp protocol.Response
	if err := json.Unmarshal(line, &resp); err != nil {
		return
	}
	key := string(resp.ID)
	t.mu.Lock()
	ch, ok := t.pending[key]
	if ok {
		delete(t.pending, key)
	}
	t.mu.Unlock()
	if ok {
		ch <- &resp
	}
}

func (t *StdioTransport) Call(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
	if req.ID == nil {
		return nil, t.Notify(ctx, req)
	}

	ch := make(chan *protocol.Response, 1)
	key := string(req.ID)
	t.mu.Lock()
	t.pending[key] = ch
	t.mu.Unlock()

	if err := t.writeLine(req); err != nil {
		t.mu.Lock()
		delete(t.pending, key)
		t.mu.Unlock()
		return nil, err
	}

	select {
	case resp, ok := <-ch:
		if !ok {
			return nil, fmt.Errorf("mcp stdio transport closed before response to %s", key)
		}
		return resp, nil
	case <-ctx.Done():
		t.mu.Lock()
		delete(t.pending, key)
		t.mu.Unlock()
		return nil, ctx.Err()
	case <-t.done:
		return nil, fmt.Errorf("mcp stdio transport closed")
	}
}

func (t *StdioTransport) Notify(ctx context.Context, req *protocol.Request) error {
	req.ID = nil
	return t.writeLine(req)
}

func (t *StdioTransport) writeLine(req *protocol.Request) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}
	body = append(body, '\n')

	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	_, err = t.stdin.Write(body)
	return err
}

func (t *StdioTransport) Notifications() <-chan *protocol.Request {
	return t.notify
}

func (t *StdioTransport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		close(t.done)
		_ = t.stdin.Close()
		if t.cmd.Process != nil {
			err = t.cmd.Process.Kill()
		}
	})
	return err
}

var _ Transport = (*StdioTransport)(nil)
