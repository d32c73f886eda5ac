package sidecar

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stencila-go/docengine/internal/kernel"
	"github.com/stencila-go/docengine/internal/message"
	"github.com/stencila-go/docengine/internal/schema"
)

func TestTrimNewline(t *testing.T) {
	assert.Equal(t, "hello", trimNewline("hello\n"))
	assert.Equal(t, "hello", trimNewline("hello\r\n"))
	assert.Equal(t, "hello", trimNewline("hello"))
	assert.Equal(t, "", trimNewline(""))
}

func TestLevelFromString(t *testing.T) {
	assert.Equal(t, message.Trace, levelFromString("trace"))
	assert.Equal(t, message.Warning, levelFromString("warn"))
	assert.Equal(t, message.Warning, levelFromString("warning"))
	assert.Equal(t, message.Exception, levelFromString("exception"))
	assert.Equal(t, message.Info, levelFromString("anything-else"))
}

func TestApplyWireMessageOutput(t *testing.T) {
	k := &Kernel{}
	data, err := schema.MarshalNode(&schema.IntegerNode{Value: 5})
	require.NoError(t, err)

	var result kernel.ExecResult
	err2, stop := k.applyWireMessage(&result, wireMessage{Tag: "output", Node: data})
	assert.NoError(t, err2)
	assert.False(t, stop)
	require.Len(t, result.Outputs, 1)
	assert.Equal(t, int64(5), result.Outputs[0].(*schema.IntegerNode).Value)
}

func TestApplyWireMessagePlot(t *testing.T) {
	k := &Kernel{}
	var result kernel.ExecResult
	_, stop := k.applyWireMessage(&result, wireMessage{Tag: "plot", PNGBase64: "abc"})
	assert.False(t, stop)
	require.Len(t, result.Outputs, 1)
	img := result.Outputs[0].(*schema.ImageObject)
	assert.Contains(t, img.ContentURL, "abc")
}

func TestApplyWireMessageErrorMessage(t *testing.T) {
	k := &Kernel{}
	var result kernel.ExecResult
	_, stop := k.applyWireMessage(&result, wireMessage{
		Tag: "message", Level: "exception", Text: "boom", ErrorType: "SimpleError",
	})
	assert.False(t, stop)
	require.Len(t, result.Messages, 1)
	assert.Equal(t, message.Exception, result.Messages[0].Level)
	assert.Equal(t, "boom", result.Messages[0].Message)
}

func TestApplyWireMessageDoneStopsLoop(t *testing.T) {
	k := &Kernel{}
	var result kernel.ExecResult
	err, stop := k.applyWireMessage(&result, wireMessage{Tag: "done"})
	assert.NoError(t, err)
	assert.True(t, stop)
}

func TestApplyWireMessageTable(t *testing.T) {
	k := &Kernel{}
	var result kernel.ExecResult
	_, stop := k.applyWireMessage(&result, wireMessage{
		Tag:     "table",
		Columns: []wireColumn{{Name: "x", Values: []any{1.0, 2.0}}},
	})
	assert.False(t, stop)
	require.Len(t, result.Outputs, 1)
	dt := result.Outputs[0].(*schema.Datatable)
	require.Len(t, dt.Columns, 1)
	assert.Equal(t, "x", dt.Columns[0].Name)
}

func TestCapturedStderrCapsSize(t *testing.T) {
	c := newCapturedStderr()
	n, err := c.Write([]byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, "hello", c.String())

	// Once the 64 KiB cap is reached, further writes report success but
	// are dropped.
	n, err = c.Write(make([]byte, 64*1024))
	require.NoError(t, err)
	assert.Equal(t, 64*1024, n)
	n, err = c.Write([]byte("more"))
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Len(t, c.String(), 5+64*1024)
}

var _ kernel.Kernel = (*Kernel)(nil)
