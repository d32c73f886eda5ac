// Package doctools implements the docengine MCP tools: the kernel
// supervisor's start/execute/evaluate/fork/signal/list surface and the
// patch engine's diff/apply surface, each wrapped as an internal/mcp.Tool.
package doctools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/stencila-go/docengine/internal/kernel"
	"github.com/stencila-go/docengine/internal/mcp"
	"github.com/stencila-go/docengine/internal/schema"
)

// --- kernel_start ---

type startParams struct {
	ID         string `json:"id"`
	Language   string `json:"language"`
	WorkingDir string `json:"working_dir,omitempty"`
}

// StartKernel starts a new kernel instance of the given language,
// tracked by the registry under id.
type StartKernel struct {
	registry *kernel.Registry
}

func NewStartKernel(registry *kernel.Registry) *StartKernel {
	return &StartKernel{registry: registry}
}

func (t *StartKernel) Name() string { return "kernel_start" }
func (t *StartKernel) Description() string {
	return "Start a new kernel instance of the given programming language (e.g. javascript, r, python), tracked under the given id."
}
func (t *StartKernel) InputSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {
    "id": {"type": "string", "description": "Identifier to track this kernel instance under"},
    "language": {"type": "string", "description": "Kernel language: javascript, r, or python"},
    "working_dir": {"type": "string", "description": "Working directory for the kernel process, if applicable"}
  },
  "required": ["id", "language"]
}`)
}

func (t *StartKernel) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var p startParams
	if err := json.Unmarshal(params, &p); err != nil {
		return mcp.ErrorResult(fmt.Sprintf("invalid parameters: %v", err)), nil
	}
	if p.ID == "" || p.Language == "" {
		return mcp.ErrorResult("id and language are required"), nil
	}

	k, err := t.registry.Start(ctx, p.ID, p.Language, p.WorkingDir)
	if err != nil {
		return mcp.ErrorResult(fmt.Sprintf("starting kernel: %v", err)), nil
	}
	return mcp.JSONResult(map[string]any{"id": p.ID, "status": k.Status().String()})
}

// --- kernel_execute / kernel_evaluate ---

type execParams struct {
	ID   string `json:"id"`
	Code string `json:"code"`
}

// Execute runs code on a tracked kernel instance for its side effects
// (console output, variable assignment); Evaluate runs it for its
// resulting value. Both share an implementation distinguished only by
// which Kernel method they call, mirroring the interface itself.
type Execute struct {
	registry *kernel.Registry
	evaluate bool
}

func NewExecute(registry *kernel.Registry) *Execute  { return &Execute{registry: registry} }
func NewEvaluate(registry *kernel.Registry) *Execute { return &Execute{registry: registry, evaluate: true} }

func (t *Execute) Name() string {
	if t.evaluate {
		return "kernel_evaluate"
	}
	return "kernel_execute"
}

func (t *Execute) Description() string {
	if t.evaluate {
		return "Evaluate an expression on a kernel instance and return its resulting value."
	}
	return "Execute code on a kernel instance, returning any console output and diagnostic messages."
}

func (t *Execute) InputSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {
    "id": {"type": "string", "description": "Kernel instance id, as passed to kernel_start"},
    "code": {"type": "string", "description": "Source code to run"}
  },
  "required": ["id", "code"]
}`)
}

func (t *Execute) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var p execParams
	if err := json.Unmarshal(params, &p); err != nil {
		return mcp.ErrorResult(fmt.Sprintf("invalid parameters: %v", err)), nil
	}

	k := t.registry.Get(p.ID)
	if k == nil {
		return mcp.ErrorResult(fmt.Sprintf("no kernel instance %q", p.ID)), nil
	}

	var result kernel.ExecResult
	var err error
	if t.evaluate {
		result, err = k.Evaluate(ctx, p.Code)
	} else {
		result, err = k.Execute(ctx, p.Code)
	}
	if err != nil {
		return mcp.ErrorResult(fmt.Sprintf("execution error: %v", err)), nil
	}

	outputs := make([]json.RawMessage, 0, len(result.Outputs))
	for _, o := range result.Outputs {
		data, err := schema.MarshalNode(o)
		if err != nil {
			continue
		}
		outputs = append(outputs, data)
	}
	return mcp.JSONResult(map[string]any{"outputs": outputs, "messages": result.Messages})
}

// --- kernel_fork ---

type forkParams struct {
	ID       string `json:"id"`
	ForkedID string `json:"forked_id"`
}

// Fork forks a tracked kernel instance into a new sibling instance,
// copying non-function global state.
type Fork struct {
	registry *kernel.Registry
}

func NewFork(registry *kernel.Registry) *Fork { return &Fork{registry: registry} }

func (t *Fork) Name() string { return "kernel_fork" }
func (t *Fork) Description() string {
	return "Fork a kernel instance into a new sibling instance, copying its current variables."
}
func (t *Fork) InputSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {
    "id": {"type": "string", "description": "Kernel instance to fork"},
    "forked_id": {"type": "string", "description": "Identifier to track the new sibling instance under"}
  },
  "required": ["id", "forked_id"]
}`)
}

func (t *Fork) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var p forkParams
	if err := json.Unmarshal(params, &p); err != nil {
		return mcp.ErrorResult(fmt.Sprintf("invalid parameters: %v", err)), nil
	}

	k := t.registry.Get(p.ID)
	if k == nil {
		return mcp.ErrorResult(fmt.Sprintf("no kernel instance %q", p.ID)), nil
	}

	forked, err := k.Fork(ctx)
	if err != nil {
		return mcp.ErrorResult(fmt.Sprintf("fork error: %v", err)), nil
	}
	if err := t.registry.Adopt(p.ForkedID, forked); err != nil {
		return mcp.ErrorResult(fmt.Sprintf("adopting fork: %v", err)), nil
	}
	return mcp.JSONResult(map[string]any{"forked_id": p.ForkedID})
}

// --- kernel_signal ---

type signalParams struct {
	ID     string `json:"id"`
	Signal string `json:"signal"`
}

// Signal delivers Interrupt/Terminate/Kill to a running kernel instance.
type Signal struct {
	registry *kernel.Registry
}

func NewSignal(registry *kernel.Registry) *Signal { return &Signal{registry: registry} }

func (t *Signal) Name() string        { return "kernel_signal" }
func (t *Signal) Description() string { return "Send Interrupt, Terminate, or Kill to a running kernel instance." }
func (t *Signal) InputSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {
    "id": {"type": "string"},
    "signal": {"type": "string", "enum": ["interrupt", "terminate", "kill"]}
  },
  "required": ["id", "signal"]
}`)
}

func (t *Signal) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var p signalParams
	if err := json.Unmarshal(params, &p); err != nil {
		return mcp.ErrorResult(fmt.Sprintf("invalid parameters: %v", err)), nil
	}

	k := t.registry.Get(p.ID)
	if k == nil {
		return mcp.ErrorResult(fmt.Sprintf("no kernel instance %q", p.ID)), nil
	}

	sig, ok := signalFromString(p.Signal)
	if !ok {
		return mcp.ErrorResult(fmt.Sprintf("unknown signal %q", p.Signal)), nil
	}
	k.Signal(sig)
	return mcp.JSONResult(map[string]any{"status": k.Status().String()})
}

func signalFromString(s string) (kernel.Signal, bool) {
	switch s {
	case "interrupt":
		return kernel.Interrupt, true
	case "terminate":
		return kernel.Terminate, true
	case "kill":
		return kernel.Kill, true
	default:
		return 0, false
	}
}

// --- kernel_list ---

// ListVariables lists the variables currently defined in a kernel
// instance.
type ListVariables struct {
	registry *kernel.Registry
}

func NewListVariables(registry *kernel.Registry) *ListVariables { return &ListVariables{registry: registry} }

func (t *ListVariables) Name() string        { return "kernel_list" }
func (t *ListVariables) Description() string { return "List the variables currently defined in a kernel instance." }
func (t *ListVariables) InputSchema() json.RawMessage {
	return json.RawMessage(`{"type":"object","properties":{"id":{"type":"string"}},"required":["id"]}`)
}

func (t *ListVariables) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var p struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return mcp.ErrorResult(fmt.Sprintf("invalid parameters: %v", err)), nil
	}
	k := t.registry.Get(p.ID)
	if k == nil {
		return mcp.ErrorResult(fmt.Sprintf("no kernel instance %q", p.ID)), nil
	}
	vars, err := k.List(ctx)
	if err != nil {
		return mcp.ErrorResult(fmt.Sprintf("list error: %v", err)), nil
	}
	return mcp.JSONResult(map[string]any{"variables": vars})
}
