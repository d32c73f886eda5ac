// Package sidecar implements the child-process microkernel runtime
// (spec.md §4.3.3, reference: R): the language runs as a subprocess, and
// the supervisor talks to it over stdin/stdout with a line-delimited
// request/response protocol, one JSON object per line.
package sidecar

import (
	"bufio"
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"syscall"

	"github.com/stencila-go/docengine/internal/kernel"
	"github.com/stencila-go/docengine/internal/message"
	"github.com/stencila-go/docengine/internal/schema"
)

// Unlike jsruntime and jupyter, this runtime's factory is parameterized
// by a binary path that comes from configuration, so it has no useful
// zero-argument default to self-register from init(); the docengine
// command registers it explicitly once it has loaded that path.

// New returns a factory-built kernel that runs binary (with args) as the
// sidecar process.
func New(binary string, args []string) *Kernel {
	return &Kernel{
		status:  kernel.NewStatusBox(),
		signals: kernel.NewSignalBox(),
		binary:  binary,
		args:    args,
	}
}

// Kernel drives one sidecar subprocess.
type Kernel struct {
	status  *kernel.StatusBox
	signals *kernel.SignalBox

	binary string
	args   []string

	mu           sync.Mutex
	cmd          *exec.Cmd
	stdin        io.WriteCloser
	reader       *bufio.Reader
	stderr       *capturedStderr
	running      bool
	lastFailure  string

	availability sync.Map // tool name -> bool, memoized probe results
}

func (k *Kernel) Start(ctx context.Context, workingDir string) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	k.status.Set(kernel.Starting)

	cmd := exec.Command(k.binary, k.args...)
	cmd.Dir = workingDir

	stdin, err := cmd.StdinPipe()
	if err != nil {
		k.status.Set(kernel.Failed)
		return fmt.Errorf("opening sidecar stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		k.status.Set(kernel.Failed)
		return fmt.Errorf("opening sidecar stdout: %w", err)
	}
	stderr := newCapturedStderr()
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		k.status.Set(kernel.Failed)
		return fmt.Errorf("starting sidecar process: %w", err)
	}

	k.cmd = cmd
	k.stdin = stdin
	k.reader = bufio.NewReader(stdout)
	k.stderr = stderr
	k.running = true

	go k.monitor()

	k.status.Set(kernel.Ready)
	return nil
}

// monitor polls the child via Wait and, on non-zero exit while the
// kernel was not already being deliberately stopped, transitions status
// to Failed with the captured stderr as a single error message (spec.md
// §4.3.3).
func (k *Kernel) monitor() {
	err := k.cmd.Wait()

	k.mu.Lock()
	wasRunning := k.running
	k.running = false
	k.mu.Unlock()

	if !wasRunning {
		return
	}
	if err != nil {
		k.mu.Lock()
		k.lastFailure = k.stderr.String()
		k.mu.Unlock()
		k.status.Set(kernel.Failed)
	}
}

func (k *Kernel) Stop(ctx context.Context) error {
	k.status.Set(kernel.Stopping)
	k.mu.Lock()
	running := k.running
	k.running = false
	cmd := k.cmd
	stdin := k.stdin
	k.mu.Unlock()

	if stdin != nil {
		_ = stdin.Close()
	}
	if running && cmd != nil && cmd.Process != nil {
		_ = cmd.Process.Signal(syscall.SIGTERM)
	}
	k.status.Set(kernel.Stopped)
	return nil
}

func (k *Kernel) Status() kernel.Status             { return k.status.Get() }
func (k *Kernel) StatusWatch() <-chan kernel.Status { return k.status.Watch() }

// Signal maps Interrupt/Terminate/Kill onto the platform signals spec.md
// §4.3.3 names: interrupt, SIGTERM, SIGKILL.
func (k *Kernel) Signal(sig kernel.Signal) {
	k.mu.Lock()
	cmd := k.cmd
	k.mu.Unlock()
	if cmd == nil || cmd.Process == nil {
		return
	}
	switch sig {
	case kernel.Interrupt:
		_ = cmd.Process.Signal(syscall.SIGINT)
	case kernel.Terminate:
		_ = cmd.Process.Signal(syscall.SIGTERM)
	case kernel.Kill:
		_ = cmd.Process.Kill()
	}
}

func (k *Kernel) Execute(ctx context.Context, code string) (kernel.ExecResult, error) {
	return k.roundTrip(ctx, "execute", code)
}

func (k *Kernel) Evaluate(ctx context.Context, code string) (kernel.ExecResult, error) {
	return k.roundTrip(ctx, "evaluate", code)
}

// roundTrip writes one "<op> <base64 code>" request line and reads
// tagged JSON response lines until the sentinel "done" line, per
// spec.md §4.3.3 ("writes execute <code> and reads results until a
// sentinel").
func (k *Kernel) roundTrip(ctx context.Context, op, code string) (kernel.ExecResult, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if !k.running {
		if k.lastFailure != "" {
			return kernel.ExecResult{}, fmt.Errorf("sidecar kernel not running: %s", k.lastFailure)
		}
		return kernel.ExecResult{}, fmt.Errorf("sidecar kernel not running")
	}

	k.status.Set(kernel.Busy)
	defer func() {
		if k.status.Get() == kernel.Busy {
			k.status.Set(kernel.Ready)
		}
	}()

	encoded := base64.StdEncoding.EncodeToString([]byte(code))
	if _, err := fmt.Fprintf(k.stdin, "%s %s\n", op, encoded); err != nil {
		return kernel.ExecResult{}, fmt.Errorf("writing to sidecar: %w", err)
	}

	var result kernel.ExecResult
	for {
		line, err := k.reader.ReadString('\n')
		if line = trimNewline(line); line != "" {
			var wire wireMessage
			if jerr := json.Unmarshal([]byte(line), &wire); jerr == nil {
				if done, stop := k.applyWireMessage(&result, wire); stop {
					return result, done
				}
			}
		}
		if err != nil {
			return result, fmt.Errorf("reading from sidecar: %w", err)
		}
	}
}

func (k *Kernel) applyWireMessage(result *kernel.ExecResult, wire wireMessage) (error, bool) {
	switch wire.Tag {
	case "output":
		if node, err := schema.UnmarshalNode(wire.Node); err == nil {
			result.Outputs = append(result.Outputs, node)
		}
	case "table":
		cols := make([]schema.DatatableColumn, len(wire.Columns))
		for i, c := range wire.Columns {
			cols[i] = schema.DatatableColumn{Name: c.Name, Values: c.Values}
		}
		result.Outputs = append(result.Outputs, &schema.Datatable{Columns: cols})
	case "plot":
		result.Outputs = append(result.Outputs, &schema.ImageObject{
			ContentURL: "data:image/png;base64," + wire.PNGBase64,
			MediaType:  "image/png",
		})
	case "message":
		result.Messages = append(result.Messages, message.ExecutionMessage{
			Level:     levelFromString(wire.Level),
			Message:   wire.Text,
			ErrorType: wire.ErrorType,
			Trace:     wire.Trace,
		})
	case "done":
		return nil, true
	}
	return nil, false
}

func levelFromString(s string) message.Level {
	switch s {
	case "trace":
		return message.Trace
	case "debug":
		return message.Debug
	case "warning", "warn":
		return message.Warning
	case "error":
		return message.Error
	case "exception":
		return message.Exception
	default:
		return message.Info
	}
}

// Available probes whether an optional companion tool (formatter,
// linter) exists in the sidecar's language environment by executing a
// trivial expression referencing it; any error is treated as absence
// rather than propagated (spec.md §4.3.3: "absence is degraded
// gracefully"). Results are memoized for the life of the kernel.
func (k *Kernel) Available(ctx context.Context, probeExpr string) bool {
	if v, ok := k.availability.Load(probeExpr); ok {
		return v.(bool)
	}
	result, err := k.Evaluate(ctx, probeExpr)
	available := err == nil && len(result.Messages) == 0
	k.availability.Store(probeExpr, available)
	return available
}

func (k *Kernel) Info(ctx context.Context) (kernel.Info, error) {
	result, err := k.Evaluate(ctx, "R.version.string")
	version := ""
	if err == nil && len(result.Outputs) == 1 {
		if s, ok := result.Outputs[0].(*schema.StringNode); ok {
			version = s.Value
		}
	}
	return kernel.Info{
		Name:                "r",
		ProgrammingLanguage: "r",
		LanguageVersion:     version,
		KernelVersion:       "docengine-sidecar/1",
	}, nil
}

func (k *Kernel) Packages(ctx context.Context) ([]kernel.Package, error) {
	result, err := k.Evaluate(ctx, "paste(rownames(installed.packages()), sep=',')")
	if err != nil {
		return nil, err
	}
	var packages []kernel.Package
	for _, out := range result.Outputs {
		if s, ok := out.(*schema.StringNode); ok {
			packages = append(packages, kernel.Package{Name: s.Value})
		}
	}
	return packages, nil
}

func (k *Kernel) List(ctx context.Context) ([]message.VariableDescriptor, error) {
	result, err := k.Evaluate(ctx, "docengine_list_variables()")
	if err != nil {
		return nil, err
	}
	var out []message.VariableDescriptor
	for _, node := range result.Outputs {
		obj, ok := node.(*schema.ObjectNode)
		if !ok {
			continue
		}
		var desc message.VariableDescriptor
		desc.ProgrammingLanguage = "r"
		for _, e := range obj.Entries {
			switch e.Key {
			case "name":
				if s, ok := e.Value.(*schema.StringNode); ok {
					desc.Name = s.Value
				}
			case "type":
				if s, ok := e.Value.(*schema.StringNode); ok {
					desc.NativeType = s.Value
				}
			}
		}
		out = append(out, desc)
	}
	return out, nil
}

func (k *Kernel) Get(ctx context.Context, name string) (schema.Node, bool, error) {
	result, err := k.Evaluate(ctx, fmt.Sprintf("jsonlite::toJSON(%s, auto_unbox=TRUE)", name))
	if err != nil {
		return nil, false, err
	}
	if len(result.Outputs) == 0 {
		return nil, false, nil
	}
	return result.Outputs[0], true, nil
}

func (k *Kernel) Set(ctx context.Context, name string, value schema.Node) error {
	data, err := schema.MarshalNode(value)
	if err != nil {
		return fmt.Errorf("marshaling %s: %w", name, err)
	}
	literal, err := json.Marshal(string(data))
	if err != nil {
		return err
	}
	_, err = k.Execute(ctx, fmt.Sprintf("%s <- jsonlite::fromJSON(%s)", name, literal))
	return err
}

func (k *Kernel) Remove(ctx context.Context, name string) error {
	_, err := k.Execute(ctx, fmt.Sprintf("rm(%s)", name))
	return err
}

// Fork is not meaningful for a subprocess-per-kernel runtime without a
// language-level serialization format for its whole workspace; spec.md
// §4.3.1 requires the operation to exist, so a fresh kernel with an
// independently started process is returned, and the caller is expected
// to re-run whatever setup code seeded the parent's variables.
func (k *Kernel) Fork(ctx context.Context) (kernel.Kernel, error) {
	forked := New(k.binary, k.args)
	if err := forked.Start(ctx, ""); err != nil {
		return nil, err
	}
	return forked, nil
}

type wireColumn struct {
	Name   string `json:"name"`
	Values []any  `json:"values"`
}

type wireMessage struct {
	Tag       string          `json:"tag"`
	Node      json.RawMessage `json:"node,omitempty"`
	Level     string          `json:"level,omitempty"`
	Text      string          `json:"text,omitempty"`
	ErrorType string          `json:"errorType,omitempty"`
	Trace     string          `json:"trace,omitempty"`
	Columns   []wireColumn    `json:"columns,omitempty"`
	PNGBase64 string          `json:"png,omitempty"`
	Status    string          `json:"status,omitempty"`
}

func trimNewline(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	return s
}

// capturedStderr accumulates the child's stderr output, capped, for
// inclusion in the Failed-transition error message.
type capturedStderr struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func newCapturedStderr() *capturedStderr { return &capturedStderr{} }

func (c *capturedStderr) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.buf.Len() < 64*1024 {
		c.buf.Write(p)
	}
	return len(p), nil
}

func (c *capturedStderr) String() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buf.String()
}

var _ kernel.Kernel = (*Kernel)(nil)
