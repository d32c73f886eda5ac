package doctools

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiffToolComputesOperations(t *testing.T) {
	tool := NewDiff()
	assert.Equal(t, "patch_diff", tool.Name())

	before := `{"before":{"type":"Text","value":"hello"},"after":{"type":"Text","value":"hullo"}}`
	result, err := tool.Execute(context.Background(), json.RawMessage(before))
	require.NoError(t, err)
	require.False(t, result.IsError)

	var decoded struct {
		Ops json.RawMessage `json:"ops"`
	}
	decodeResult(t, result, &decoded)
	assert.NotEmpty(t, decoded.Ops)
}

func TestDiffToolRejectsInvalidBefore(t *testing.T) {
	tool := NewDiff()
	result, err := tool.Execute(context.Background(), json.RawMessage(`{"before":{"type":"NotAType"},"after":{"type":"Text","value":"x"}}`))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestApplyToolRoundTripsWithDiff(t *testing.T) {
	diffTool := NewDiff()
	applyTool := NewApply()
	assert.Equal(t, "patch_apply", applyTool.Name())

	diffResult, err := diffTool.Execute(context.Background(), json.RawMessage(
		`{"before":{"type":"Text","value":"hello"},"after":{"type":"Text","value":"hullo"}}`))
	require.NoError(t, err)
	require.False(t, diffResult.IsError)

	var diffDecoded struct {
		Ops json.RawMessage `json:"ops"`
	}
	decodeResult(t, diffResult, &diffDecoded)

	applyParams, err := json.Marshal(map[string]json.RawMessage{
		"root": json.RawMessage(`{"type":"Text","value":"hello"}`),
		"ops":  diffDecoded.Ops,
	})
	require.NoError(t, err)

	applyResult, err := applyTool.Execute(context.Background(), applyParams)
	require.NoError(t, err)
	require.False(t, applyResult.IsError)

	var applyDecoded struct {
		Root json.RawMessage `json:"root"`
	}
	decodeResult(t, applyResult, &applyDecoded)
	assert.JSONEq(t, `{"type":"Text","value":"hullo"}`, string(applyDecoded.Root))
}

func TestApplyToolRejectsInvalidRoot(t *testing.T) {
	tool := NewApply()
	result, err := tool.Execute(context.Background(), json.RawMessage(`{"root":{"type":"Bogus"},"ops":[]}`))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestApplyToolSurfacesApplyError(t *testing.T) {
	tool := NewApply()
	result, err := tool.Execute(context.Background(), json.RawMessage(
		`{"root":{"type":"Text","value":"hi"},"ops":[{"op":"remove","address":["nonexistent",5]}]}`))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}
