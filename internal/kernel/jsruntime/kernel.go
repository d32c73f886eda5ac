// Package jsruntime implements the in-process JavaScript kernel (spec.md
// §4.3.2) on top of github.com/dop251/goja. Unlike the sidecar and jupyter
// runtimes, it never leaves the process: execute/evaluate run directly
// against an embedded goja.Runtime guarded by the kernel's own mutex.
package jsruntime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"sync"

	"github.com/dop251/goja"

	"github.com/stencila-go/docengine/internal/kernel"
	"github.com/stencila-go/docengine/internal/message"
	"github.com/stencila-go/docengine/internal/schema"
)

func init() {
	kernel.Default.RegisterFactory("javascript", func() kernel.Kernel { return New() })
}

// Kernel is a single embedded JS runtime instance.
type Kernel struct {
	status  *kernel.StatusBox
	signals *kernel.SignalBox

	mu             sync.Mutex
	vm             *goja.Runtime
	console        *consoleCapture
	workingDir     string
	initialGlobals map[string]bool
}

// New creates an unstarted kernel.
func New() *Kernel {
	return &Kernel{
		status:  kernel.NewStatusBox(),
		signals: kernel.NewSignalBox(),
	}
}

func (k *Kernel) Start(ctx context.Context, workingDir string) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	k.status.Set(kernel.Starting)
	k.workingDir = workingDir
	k.vm = goja.New()
	k.console = &consoleCapture{}
	if err := k.console.install(k.vm); err != nil {
		k.status.Set(kernel.Failed)
		return fmt.Errorf("installing console capture: %w", err)
	}

	k.initialGlobals = make(map[string]bool)
	for _, name := range k.vm.GlobalObject().Keys() {
		k.initialGlobals[name] = true
	}

	k.status.Set(kernel.Ready)
	return nil
}

func (k *Kernel) Stop(ctx context.Context) error {
	k.status.Set(kernel.Stopping)
	k.mu.Lock()
	k.vm = nil
	k.mu.Unlock()
	k.status.Set(kernel.Stopped)
	return nil
}

func (k *Kernel) Status() kernel.Status             { return k.status.Get() }
func (k *Kernel) StatusWatch() <-chan kernel.Status { return k.status.Watch() }
func (k *Kernel) Signal(sig kernel.Signal)           { k.signals.Send(sig) }

// Execute runs code as a sequence of statements; outputs are whatever was
// passed to console.log, not the completion value.
func (k *Kernel) Execute(ctx context.Context, code string) (kernel.ExecResult, error) {
	return k.run(ctx, code, false)
}

// Evaluate runs code as a single expression and returns its value as the
// lone output.
func (k *Kernel) Evaluate(ctx context.Context, code string) (kernel.ExecResult, error) {
	return k.run(ctx, code, true)
}

func (k *Kernel) run(ctx context.Context, code string, evaluate bool) (kernel.ExecResult, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.vm == nil {
		return kernel.ExecResult{}, errors.New("kernel not started")
	}

	k.status.Set(kernel.Busy)
	defer func() {
		if k.status.Get() == kernel.Busy {
			k.status.Set(kernel.Ready)
		}
	}()

	k.console.reset()
	wrapped := wrapExpression(code)

	type outcome struct {
		val goja.Value
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		v, err := k.vm.RunString(wrapped)
		done <- outcome{v, err}
	}()

	select {
	case r := <-done:
		return k.finish(r.val, r.err, evaluate)

	case sig := <-k.signals.C():
		switch sig {
		case kernel.Interrupt:
			k.vm.Interrupt("interrupted")
			r := <-done
			return k.finish(r.val, r.err, evaluate)
		default: // Terminate, Kill
			k.vm.Interrupt("terminated")
			<-done
			k.status.Set(kernel.Stopped)
			return kernel.ExecResult{}, fmt.Errorf("kernel terminated by signal %s", sig)
		}

	case <-ctx.Done():
		k.vm.Interrupt("cancelled")
		<-done
		return kernel.ExecResult{}, ctx.Err()
	}
}

func (k *Kernel) finish(val goja.Value, err error, evaluate bool) (kernel.ExecResult, error) {
	if err != nil {
		return kernel.ExecResult{Messages: []message.ExecutionMessage{exceptionMessage(err)}}, nil
	}

	messages := k.console.messages
	if evaluate {
		var outputs []schema.Node
		if val != nil && !goja.IsUndefined(val) {
			outputs = []schema.Node{marshalValue(k.vm, val)}
		}
		return kernel.ExecResult{Outputs: outputs, Messages: messages}, nil
	}
	return kernel.ExecResult{Outputs: append([]schema.Node(nil), k.console.outputs...), Messages: messages}, nil
}

// wrapExpression implements spec.md §4.3.2's rule that code beginning
// and ending with "{" is wrapped in parentheses, so a bare object
// literal parses as an expression instead of a block statement.
func wrapExpression(code string) string {
	trimmed := strings.TrimSpace(code)
	if strings.HasPrefix(trimmed, "{") && strings.HasSuffix(trimmed, "}") {
		return "(" + trimmed + ")"
	}
	return code
}

// exceptionMessage converts a goja error into the single Exception-level
// message spec.md §4.3.2 requires ("exceptions are converted into a
// single Exception-level message carrying the engine's stack trace").
func exceptionMessage(err error) message.ExecutionMessage {
	var jsErr *goja.Exception
	if errors.As(err, &jsErr) {
		errType, msg := "Error", jsErr.Value().String()
		if obj, ok := jsErr.Value().(*goja.Object); ok {
			if name := obj.Get("name"); name != nil && !goja.IsUndefined(name) {
				errType = name.String()
			}
			if m := obj.Get("message"); m != nil && !goja.IsUndefined(m) {
				msg = m.String()
			}
		}
		return message.NewException(errType, msg, jsErr.String())
	}
	return message.NewException("Error", err.Error(), "")
}

func (k *Kernel) Info(ctx context.Context) (kernel.Info, error) {
	return kernel.Info{
		Name:                "javascript",
		ProgrammingLanguage: "javascript",
		LanguageVersion:     "ES2020",
		KernelVersion:       "docengine-jsruntime",
	}, nil
}

// Packages reports nothing: goja is an embedded interpreter with no
// package manager of its own.
func (k *Kernel) Packages(ctx context.Context) ([]kernel.Package, error) {
	return nil, nil
}

func (k *Kernel) List(ctx context.Context) ([]message.VariableDescriptor, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.vm == nil {
		return nil, errors.New("kernel not started")
	}

	global := k.vm.GlobalObject()
	var out []message.VariableDescriptor
	for _, name := range global.Keys() {
		if k.initialGlobals[name] {
			continue
		}
		v := global.Get(name)
		if _, isFunc := goja.AssertFunction(v); isFunc {
			continue
		}
		out = append(out, message.VariableDescriptor{
			Name:                name,
			NativeType:          jsTypeName(v),
			NodeType:            marshalValue(k.vm, v).Type(),
			Hint:                hintFor(v),
			ProgrammingLanguage: "javascript",
		})
	}
	return out, nil
}

func (k *Kernel) Get(ctx context.Context, name string) (schema.Node, bool, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.vm == nil {
		return nil, false, errors.New("kernel not started")
	}
	v := k.vm.GlobalObject().Get(name)
	if v == nil || goja.IsUndefined(v) {
		return nil, false, nil
	}
	return marshalValue(k.vm, v), true, nil
}

// Set converts a Primitive node back to a native JS value; any other
// schema node is JSON-injected, per spec.md §4.3.2.
func (k *Kernel) Set(ctx context.Context, name string, value schema.Node) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.vm == nil {
		return errors.New("kernel not started")
	}
	switch v := value.(type) {
	case *schema.NullNode:
		return k.vm.Set(name, goja.Null())
	case *schema.BooleanNode:
		return k.vm.Set(name, v.Value)
	case *schema.IntegerNode:
		return k.vm.Set(name, v.Value)
	case *schema.NumberNode:
		return k.vm.Set(name, v.Value)
	case *schema.StringNode:
		return k.vm.Set(name, v.Value)
	default:
		return k.injectJSON(name, value)
	}
}

func (k *Kernel) injectJSON(name string, node schema.Node) error {
	data, err := schema.MarshalNode(node)
	if err != nil {
		return fmt.Errorf("marshaling %s: %w", name, err)
	}
	literal, err := json.Marshal(string(data))
	if err != nil {
		return fmt.Errorf("encoding %s literal: %w", name, err)
	}
	key, err := json.Marshal(name)
	if err != nil {
		return fmt.Errorf("encoding %s name: %w", name, err)
	}
	_, err = k.vm.RunString(fmt.Sprintf("globalThis[%s] = JSON.parse(%s)", key, literal))
	return err
}

func (k *Kernel) Remove(ctx context.Context, name string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.vm == nil {
		return errors.New("kernel not started")
	}
	k.vm.GlobalObject().Delete(name)
	return nil
}

// Fork snapshots every user-defined, non-function global as a schema
// node and re-injects it into a freshly started runtime. Functions and
// closures are intentionally not carried over (spec.md §4.3.2).
func (k *Kernel) Fork(ctx context.Context) (kernel.Kernel, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.vm == nil {
		return nil, errors.New("kernel not started")
	}

	forked := New()
	if err := forked.Start(ctx, k.workingDir); err != nil {
		return nil, err
	}

	global := k.vm.GlobalObject()
	for _, name := range global.Keys() {
		if k.initialGlobals[name] {
			continue
		}
		v := global.Get(name)
		if _, isFunc := goja.AssertFunction(v); isFunc {
			continue
		}
		if err := forked.Set(ctx, name, marshalValue(k.vm, v)); err != nil {
			return nil, fmt.Errorf("forking variable %s: %w", name, err)
		}
	}
	return forked, nil
}

// consoleCapture is the JS-visible "console" object spec.md §4.3.2
// describes: console.log accumulates output values, the other levels
// accumulate structured messages.
type consoleCapture struct {
	mu       sync.Mutex
	outputs  []schema.Node
	messages []message.ExecutionMessage
}

func (c *consoleCapture) reset() {
	c.mu.Lock()
	c.outputs = nil
	c.messages = nil
	c.mu.Unlock()
}

func (c *consoleCapture) install(vm *goja.Runtime) error {
	obj := vm.NewObject()

	bind := func(name string, level message.Level, isLog bool) {
		_ = obj.Set(name, func(call goja.FunctionCall) goja.Value {
			if isLog {
				c.mu.Lock()
				for _, a := range call.Arguments {
					c.outputs = append(c.outputs, marshalValue(vm, a))
				}
				c.mu.Unlock()
				return goja.Undefined()
			}
			parts := make([]string, len(call.Arguments))
			for i, a := range call.Arguments {
				parts[i] = a.String()
			}
			c.mu.Lock()
			c.messages = append(c.messages, message.ExecutionMessage{
				Level:   level,
				Message: strings.Join(parts, " "),
			})
			c.mu.Unlock()
			return goja.Undefined()
		})
	}

	bind("log", message.Info, true)
	bind("trace", message.Trace, false)
	bind("debug", message.Debug, false)
	bind("info", message.Info, false)
	bind("warn", message.Warning, false)
	bind("error", message.Error, false)

	return vm.Set("console", obj)
}

// marshalValue implements spec.md §4.3.2's variable marshalling rule:
// a value with a schema "type" property is JSON-round-tripped into a
// schema node; everything else becomes a Primitive node.
func marshalValue(vm *goja.Runtime, v goja.Value) schema.Node {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return &schema.NullNode{}
	}

	switch exported := v.Export().(type) {
	case bool:
		return &schema.BooleanNode{Value: exported}
	case int64:
		return &schema.IntegerNode{Value: exported}
	case *big.Int:
		return &schema.IntegerNode{Value: exported.Int64()}
	case float64:
		return &schema.NumberNode{Value: exported}
	case string:
		return &schema.StringNode{Value: exported}
	case []interface{}:
		obj := v.ToObject(vm)
		items := make([]schema.Node, len(exported))
		for i := range exported {
			items[i] = marshalValue(vm, obj.Get(strconv.Itoa(i)))
		}
		return &schema.ArrayNode{Items: items}
	case map[string]interface{}:
		obj := v.ToObject(vm)
		if typ := obj.Get("type"); typ != nil && !goja.IsUndefined(typ) {
			if typStr, ok := typ.Export().(string); ok && typStr != "" {
				if data, err := json.Marshal(exported); err == nil {
					if node, err := schema.UnmarshalNode(data); err == nil {
						return node
					}
				}
			}
		}
		keys := obj.Keys()
		entries := make([]schema.ObjectEntry, 0, len(keys))
		for _, key := range keys {
			entries = append(entries, schema.ObjectEntry{Key: key, Value: marshalValue(vm, obj.Get(key))})
		}
		return &schema.ObjectNode{Entries: entries}
	default:
		return &schema.StringNode{Value: v.String()}
	}
}

func jsTypeName(v goja.Value) string {
	if t := v.ExportType(); t != nil {
		return t.String()
	}
	return "undefined"
}

func hintFor(v goja.Value) message.Hint {
	switch exported := v.Export().(type) {
	case bool:
		return message.Hint{Kind: message.HintBoolean, BoolValue: exported}
	case int64:
		return message.Hint{Kind: message.HintInteger, IntValue: exported}
	case float64:
		return message.Hint{Kind: message.HintNumber, NumValue: exported}
	case string:
		return message.Hint{Kind: message.HintString, StrLen: len(exported)}
	case []interface{}:
		return message.Hint{Kind: message.HintArray, ArrayLen: len(exported)}
	case map[string]interface{}:
		keys := make([]string, 0, len(exported))
		for k := range exported {
			keys = append(keys, k)
		}
		return message.Hint{Kind: message.HintObject, ObjectLen: len(exported), ObjectKeys: keys}
	default:
		return message.Hint{}
	}
}

var _ kernel.Kernel = (*Kernel)(nil)
