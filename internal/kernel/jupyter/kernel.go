// Package jupyter connects to an external Jupyter-protocol kernel over
// ZeroMQ (spec.md §4.3.4): five HMAC-signed channels, a kernel-spec
// discovery step, and IOPub-driven execute collection.
package jupyter

import (
	"context"
	"encoding/hex"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/go-zeromq/zmq4"
	"github.com/google/uuid"
	"github.com/sony/gobreaker"

	"github.com/stencila-go/docengine/internal/kernel"
	"github.com/stencila-go/docengine/internal/message"
	"github.com/stencila-go/docengine/internal/schema"
)

func init() {
	kernel.Default.RegisterFactory("python", func() kernel.Kernel { return NewForLanguage("python") })
}

// Kernel drives one external Jupyter-protocol kernel, either launched
// from a discovered kernel spec or attached to an already-running one.
type Kernel struct {
	status  *kernel.StatusBox
	signals *kernel.SignalBox

	language string
	session  string

	conn ConnectionInfo
	key  []byte

	cmd *exec.Cmd // nil when attached to a pre-existing kernel

	shell   zmq4.Socket
	control zmq4.Socket
	iopub   zmq4.Socket
	stdin   zmq4.Socket
	hb      zmq4.Socket

	mu      sync.Mutex
	pending map[string]chan *WireMessage

	breaker *gobreaker.CircuitBreaker
	hbDone  chan struct{}
}

// NewForLanguage creates an unstarted kernel that, on Start, discovers
// and launches a local kernel spec matching language.
func NewForLanguage(language string) *Kernel {
	return &Kernel{
		status:   kernel.NewStatusBox(),
		signals:  kernel.NewSignalBox(),
		language: language,
		session:  uuid.New().String(),
		pending:  make(map[string]chan *WireMessage),
	}
}

// NewAttached creates an unstarted kernel that, on Start, connects to
// an already-running kernel described by conn instead of launching one
// (spec.md §4.3.4: "attaches to an already-running kernel listed by a
// notebook server's session API").
func NewAttached(conn ConnectionInfo) *Kernel {
	return &Kernel{
		status:  kernel.NewStatusBox(),
		signals: kernel.NewSignalBox(),
		session: uuid.New().String(),
		pending: make(map[string]chan *WireMessage),
		conn:    conn,
	}
}

func (k *Kernel) Start(ctx context.Context, workingDir string) error {
	k.status.Set(kernel.Starting)

	if k.cmd == nil && k.conn.ShellPort == 0 && k.language != "" {
		if err := k.launch(ctx, workingDir); err != nil {
			k.status.Set(kernel.Failed)
			return err
		}
	}

	key, err := decodeKey(k.conn.Key)
	if err != nil {
		k.status.Set(kernel.Failed)
		return fmt.Errorf("decoding connection key: %w", err)
	}
	k.key = key

	if err := k.dialChannels(ctx); err != nil {
		k.status.Set(kernel.Failed)
		return err
	}

	go k.iopubLoop()

	if err := k.synchronizeStartup(ctx); err != nil {
		k.status.Set(kernel.Failed)
		return err
	}

	k.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name: "jupyter-heartbeat",
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= 3
		},
	})
	k.hbDone = make(chan struct{})
	go k.heartbeatLoop()

	k.status.Set(kernel.Ready)
	return nil
}

func (k *Kernel) launch(ctx context.Context, workingDir string) error {
	specs := DiscoverKernelSpecs()
	name, spec, ok := SelectForLanguage(specs, k.language)
	if !ok {
		return fmt.Errorf("no jupyter kernel spec found for language %q", k.language)
	}

	conn, err := newConnectionInfo(name)
	if err != nil {
		return err
	}
	connFile, err := writeConnectionFile(conn)
	if err != nil {
		return err
	}
	k.conn = conn

	argv := substituteArgv(spec.Argv, connFile)
	if len(argv) == 0 {
		return fmt.Errorf("kernel spec for %q has an empty argv", k.language)
	}
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = workingDir
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("launching jupyter kernel: %w", err)
	}
	k.cmd = cmd
	return nil
}

func (k *Kernel) dialChannels(ctx context.Context) error {
	k.shell = zmq4.NewReq(ctx)
	k.control = zmq4.NewReq(ctx)
	k.stdin = zmq4.NewReq(ctx)
	k.hb = zmq4.NewReq(ctx)
	k.iopub = zmq4.NewSub(ctx)

	dials := []struct {
		sock zmq4.Socket
		port int
	}{
		{k.shell, k.conn.ShellPort},
		{k.control, k.conn.ControlPort},
		{k.stdin, k.conn.StdinPort},
		{k.hb, k.conn.HBPort},
		{k.iopub, k.conn.IOPubPort},
	}
	for _, d := range dials {
		if err := d.sock.Dial(k.conn.endpoint(d.port)); err != nil {
			return fmt.Errorf("dialing jupyter channel on port %d: %w", d.port, err)
		}
	}
	if err := k.iopub.SetOption(zmq4.OptionSubscribe, ""); err != nil {
		return fmt.Errorf("subscribing to iopub: %w", err)
	}
	return nil
}

// iopubLoop reads every IOPub broadcast for the lifetime of the kernel
// and routes it to whichever in-flight execute is awaiting its parent
// message id.
func (k *Kernel) iopubLoop() {
	for {
		msg, err := k.iopub.Recv()
		if err != nil {
			return
		}
		wm, err := DecodeWireMessage(msg, k.key)
		if err != nil {
			continue
		}
		k.mu.Lock()
		ch, ok := k.pending[wm.ParentHeader.MsgID]
		k.mu.Unlock()
		if ok {
			select {
			case ch <- wm:
			default:
			}
		}
	}
}

// synchronizeStartup sends kernel_info_request and waits for both its
// shell reply and the IOPub channel to carry its matching idle status,
// per spec.md §4.3.4's "startup synchronization"; an extra brief wait
// absorbs known kernel races where the SUB socket subscribes a moment
// after the kernel starts publishing. If no idle status arrives within
// 5 seconds of the shell reply, it returns without error anyway.
func (k *Kernel) synchronizeStartup(ctx context.Context) error {
	header := newHeader("kernel_info_request", k.session)
	req := &WireMessage{Header: header}
	encoded, err := req.Encode(k.key)
	if err != nil {
		return err
	}

	ch := make(chan *WireMessage, 16)
	k.mu.Lock()
	k.pending[header.MsgID] = ch
	k.mu.Unlock()
	defer func() {
		k.mu.Lock()
		delete(k.pending, header.MsgID)
		k.mu.Unlock()
	}()

	if err := k.shell.Send(encoded); err != nil {
		return fmt.Errorf("sending kernel_info_request: %w", err)
	}
	if _, err := k.shell.Recv(); err != nil {
		return fmt.Errorf("awaiting kernel_info_reply: %w", err)
	}

	deadline := time.After(5 * time.Second)
	for {
		select {
		case wm := <-ch:
			if wm.Header.MsgType == "status" {
				if state, _ := wm.Content["execution_state"].(string); state == "idle" {
					time.Sleep(200 * time.Millisecond)
					return nil
				}
			}
		case <-deadline:
			time.Sleep(200 * time.Millisecond)
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (k *Kernel) heartbeatLoop() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			_, err := k.breaker.Execute(func() (any, error) { return nil, k.pingOnce() })
			if err != nil && k.breaker.State() == gobreaker.StateOpen {
				k.status.Set(kernel.Unresponsive)
			}
		case <-k.hbDone:
			return
		}
	}
}

func (k *Kernel) pingOnce() error {
	if err := k.hb.Send(zmq4.NewMsgFrom([]byte("ping"))); err != nil {
		return err
	}
	done := make(chan error, 1)
	go func() {
		_, err := k.hb.Recv()
		done <- err
	}()
	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		return fmt.Errorf("heartbeat timed out")
	}
}

func (k *Kernel) Stop(ctx context.Context) error {
	k.status.Set(kernel.Stopping)

	if k.hbDone != nil {
		close(k.hbDone)
	}

	header := newHeader("shutdown_request", k.session)
	req := &WireMessage{Header: header, Content: map[string]any{"restart": false}}
	if encoded, err := req.Encode(k.key); err == nil && k.control != nil {
		_ = k.control.Send(encoded)
		_, _ = k.control.Recv()
	}

	for _, sock := range []zmq4.Socket{k.shell, k.control, k.iopub, k.stdin, k.hb} {
		if sock != nil {
			_ = sock.Close()
		}
	}
	if k.cmd != nil && k.cmd.Process != nil {
		_ = k.cmd.Process.Kill()
	}

	k.status.Set(kernel.Stopped)
	return nil
}

func (k *Kernel) Status() kernel.Status             { return k.status.Get() }
func (k *Kernel) StatusWatch() <-chan kernel.Status { return k.status.Watch() }

// Signal delivers Interrupt over the control channel (the Jupyter
// protocol's interrupt_request); Terminate and Kill fall back to the
// operating-system signal against the launched process, when this
// instance launched one (spec.md §4.3.4 has no wire-level
// terminate/kill; only interrupt is a protocol message).
func (k *Kernel) Signal(sig kernel.Signal) {
	switch sig {
	case kernel.Interrupt:
		header := newHeader("interrupt_request", k.session)
		req := &WireMessage{Header: header}
		if encoded, err := req.Encode(k.key); err == nil && k.control != nil {
			_ = k.control.Send(encoded)
			_, _ = k.control.Recv()
		}
	case kernel.Terminate:
		if k.cmd != nil && k.cmd.Process != nil {
			_ = k.cmd.Process.Signal(syscall.SIGTERM)
		}
	case kernel.Kill:
		if k.cmd != nil && k.cmd.Process != nil {
			_ = k.cmd.Process.Kill()
		}
	}
}

func (k *Kernel) Execute(ctx context.Context, code string) (kernel.ExecResult, error) {
	return k.run(ctx, code)
}

// Evaluate is implemented identically to Execute: the Jupyter protocol
// has no separate "expression" request type, and execute_result already
// carries the REPL's last-expression value.
func (k *Kernel) Evaluate(ctx context.Context, code string) (kernel.ExecResult, error) {
	return k.run(ctx, code)
}

func (k *Kernel) run(ctx context.Context, code string) (kernel.ExecResult, error) {
	header := newHeader("execute_request", k.session)
	content := map[string]any{
		"code":             code,
		"silent":           false,
		"store_history":    true,
		"user_expressions": map[string]any{},
		"allow_stdin":      false,
		"stop_on_error":    true,
	}
	req := &WireMessage{Header: header, Content: content}
	encoded, err := req.Encode(k.key)
	if err != nil {
		return kernel.ExecResult{}, err
	}

	ch := make(chan *WireMessage, 64)
	k.mu.Lock()
	k.pending[header.MsgID] = ch
	k.mu.Unlock()
	defer func() {
		k.mu.Lock()
		delete(k.pending, header.MsgID)
		k.mu.Unlock()
	}()

	k.status.Set(kernel.Busy)
	defer func() {
		if k.status.Get() == kernel.Busy {
			k.status.Set(kernel.Ready)
		}
	}()

	if err := k.shell.Send(encoded); err != nil {
		return kernel.ExecResult{}, fmt.Errorf("sending execute_request: %w", err)
	}

	shellReply := make(chan *WireMessage, 1)
	go func() {
		msg, err := k.shell.Recv()
		if err != nil {
			close(shellReply)
			return
		}
		wm, err := DecodeWireMessage(msg, k.key)
		if err != nil {
			close(shellReply)
			return
		}
		shellReply <- wm
	}()

	var result kernel.ExecResult
	var reply *WireMessage
	for reply == nil {
		select {
		case iopubMsg := <-ch:
			if applyIOPub(&result, iopubMsg) {
				reply = <-shellReply
			}
		case r, ok := <-shellReply:
			if ok {
				reply = r
			}
		case sig := <-k.signals.C():
			if sig == kernel.Interrupt {
				k.Signal(kernel.Interrupt)
			} else {
				return result, fmt.Errorf("kernel terminated by signal %s", sig)
			}
		case <-ctx.Done():
			return result, ctx.Err()
		}
	}

	if reply != nil {
		if status, _ := reply.Content["status"].(string); status == "aborted" {
			return result, fmt.Errorf("execute aborted")
		}
	}
	return result, nil
}

// applyIOPub folds one IOPub broadcast into result and reports whether
// the execute's output collection is complete (status == idle).
func applyIOPub(result *kernel.ExecResult, wm *WireMessage) bool {
	switch wm.Header.MsgType {
	case "execute_result", "display_data":
		data, _ := wm.Content["data"].(map[string]any)
		result.Outputs = append(result.Outputs, translateBundle(data))
	case "stream":
		// stdout (print()) is an output, not a message, mirroring the
		// JS runtime's console.log-to-outputs behaviour: a script like
		// `print(1); print(2); 2+1` yields outputs=[1,2,3], the third
		// entry coming from Python's displayhook as an execute_result.
		text, _ := wm.Content["text"].(string)
		result.Outputs = append(result.Outputs, &schema.StringNode{Value: text})
	case "error":
		ename, _ := wm.Content["ename"].(string)
		evalue, _ := wm.Content["evalue"].(string)
		var trace string
		if tb, ok := wm.Content["traceback"].([]any); ok {
			parts := make([]string, len(tb))
			for i, l := range tb {
				parts[i], _ = l.(string)
			}
			trace = strings.Join(parts, "\n")
		}
		result.Messages = append(result.Messages, message.NewException(ename, evalue, trace))
	case "status":
		if state, _ := wm.Content["execution_state"].(string); state == "idle" {
			return true
		}
	}
	return false
}

// translateBundle converts a MIME bundle into a schema node, preferring
// a Stencila-native type, then an image, then plain text (spec.md
// §4.3.4).
func translateBundle(data map[string]any) schema.Node {
	for mime, v := range data {
		if strings.HasPrefix(mime, "application/vnd.stencila.") {
			if s, ok := v.(string); ok {
				if node, err := schema.UnmarshalNode([]byte(s)); err == nil {
					return node
				}
			}
		}
	}
	if v, ok := data["image/png"]; ok {
		if s, ok := v.(string); ok {
			return &schema.ImageObject{ContentURL: "data:image/png;base64," + s, MediaType: "image/png"}
		}
	}
	if v, ok := data["text/plain"]; ok {
		if s, ok := v.(string); ok {
			return &schema.StringNode{Value: s}
		}
	}
	return &schema.NullNode{}
}

func (k *Kernel) Info(ctx context.Context) (kernel.Info, error) {
	return kernel.Info{
		Name:                k.conn.KernelName,
		ProgrammingLanguage: k.language,
		KernelVersion:       "jupyter",
	}, nil
}

// Packages is emulated by injecting language-specific enumeration code
// rather than a protocol message (spec.md §4.3.4: "variable operations
// are emulated by injecting language-specific code").
func (k *Kernel) Packages(ctx context.Context) ([]kernel.Package, error) {
	result, err := k.Execute(ctx, pythonPackagesSnippet)
	if err != nil {
		return nil, err
	}
	return packagesFromStream(result.Outputs), nil
}

func (k *Kernel) List(ctx context.Context) ([]message.VariableDescriptor, error) {
	result, err := k.Execute(ctx, pythonListSnippet)
	if err != nil {
		return nil, err
	}
	return variablesFromStream(result.Outputs, k.language), nil
}

func (k *Kernel) Get(ctx context.Context, name string) (schema.Node, bool, error) {
	result, err := k.Execute(ctx, fmt.Sprintf(pythonGetSnippet, name, name))
	if err != nil {
		return nil, false, err
	}
	node, ok := nodeFromStream(result.Outputs)
	return node, ok, nil
}

func (k *Kernel) Set(ctx context.Context, name string, value schema.Node) error {
	data, err := schema.MarshalNode(value)
	if err != nil {
		return fmt.Errorf("marshaling %s: %w", name, err)
	}
	_, err = k.Execute(ctx, fmt.Sprintf(pythonSetSnippet, name, string(data)))
	return err
}

func (k *Kernel) Remove(ctx context.Context, name string) error {
	_, err := k.Execute(ctx, fmt.Sprintf("del %s", name))
	return err
}

// Fork is emulated with %reset-safe variable re-injection rather than a
// wire-level operation (the Jupyter protocol has none): a new kernel of
// the same language is started and every current variable is copied
// over by value. Like the sidecar runtime, function/closure state is
// not portable across kernel processes and is never forked.
func (k *Kernel) Fork(ctx context.Context) (kernel.Kernel, error) {
	vars, err := k.List(ctx)
	if err != nil {
		return nil, err
	}
	forked := NewForLanguage(k.language)
	if err := forked.Start(ctx, ""); err != nil {
		return nil, err
	}
	for _, v := range vars {
		node, ok, err := k.Get(ctx, v.Name)
		if err != nil || !ok {
			continue
		}
		_ = forked.Set(ctx, v.Name, node)
	}
	return forked, nil
}

func decodeKey(hexKey string) ([]byte, error) {
	if hexKey == "" {
		return nil, nil
	}
	return hex.DecodeString(hexKey)
}

var _ kernel.Kernel = (*Kernel)(nil)
