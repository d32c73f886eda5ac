package doctools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/stencila-go/docengine/internal/mcp"
	"github.com/stencila-go/docengine/internal/patch"
	"github.com/stencila-go/docengine/internal/schema"
)

// --- patch_diff ---

type diffParams struct {
	Before json.RawMessage `json:"before"`
	After  json.RawMessage `json:"after"`
}

// Diff computes the patch turning one schema node tree into another.
type Diff struct{}

func NewDiff() *Diff { return &Diff{} }

func (t *Diff) Name() string { return "patch_diff" }
func (t *Diff) Description() string {
	return "Compute the patch operations that turn the before schema node into the after schema node."
}
func (t *Diff) InputSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {
    "before": {"type": "object", "description": "Schema node JSON for the starting state"},
    "after": {"type": "object", "description": "Schema node JSON for the target state"}
  },
  "required": ["before", "after"]
}`)
}

func (t *Diff) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var p diffParams
	if err := json.Unmarshal(params, &p); err != nil {
		return mcp.ErrorResult(fmt.Sprintf("invalid parameters: %v", err)), nil
	}

	before, err := schema.UnmarshalNode(p.Before)
	if err != nil {
		return mcp.ErrorResult(fmt.Sprintf("decoding before: %v", err)), nil
	}
	after, err := schema.UnmarshalNode(p.After)
	if err != nil {
		return mcp.ErrorResult(fmt.Sprintf("decoding after: %v", err)), nil
	}

	ops, err := patch.Diff(before, after)
	if err != nil {
		return mcp.ErrorResult(fmt.Sprintf("diff error: %v", err)), nil
	}
	return mcp.JSONResult(map[string]any{"ops": ops})
}

// --- patch_apply ---

type applyParams struct {
	Root json.RawMessage `json:"root"`
	Ops  patch.Patch     `json:"ops"`
}

// Apply applies a patch to a schema node tree and returns the result.
type Apply struct{}

func NewApply() *Apply { return &Apply{} }

func (t *Apply) Name() string { return "patch_apply" }
func (t *Apply) Description() string {
	return "Apply a patch's operations to a schema node, returning the resulting tree."
}
func (t *Apply) InputSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {
    "root": {"type": "object", "description": "Schema node JSON to apply the patch to"},
    "ops": {"type": "array", "description": "Patch operations, as produced by patch_diff"}
  },
  "required": ["root", "ops"]
}`)
}

func (t *Apply) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var p applyParams
	if err := json.Unmarshal(params, &p); err != nil {
		return mcp.ErrorResult(fmt.Sprintf("invalid parameters: %v", err)), nil
	}

	root, err := schema.UnmarshalNode(p.Root)
	if err != nil {
		return mcp.ErrorResult(fmt.Sprintf("decoding root: %v", err)), nil
	}

	result, err := patch.Apply(root, p.Ops)
	if err != nil {
		return mcp.ErrorResult(fmt.Sprintf("apply error: %v", err)), nil
	}

	data, err := schema.MarshalNode(result)
	if err != nil {
		return mcp.ErrorResult(fmt.Sprintf("encoding result: %v", err)), nil
	}
	return mcp.JSONResult(map[string]any{"root": json.RawMessage(data)})
}
