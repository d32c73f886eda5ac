package message

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLevelString(t *testing.T) {
	cases := map[Level]string{
		Trace:     "Trace",
		Debug:     "Debug",
		Info:      "Info",
		Warning:   "Warning",
		Error:     "Error",
		Exception: "Exception",
		Level(99): "Unknown",
	}
	for level, want := range cases {
		assert.Equal(t, want, level.String())
	}
}

func TestNewExceptionBuildsExceptionLevelMessage(t *testing.T) {
	msg := NewException("SyntaxError", "unexpected token", "at line 1")
	assert.Equal(t, Exception, msg.Level)
	assert.Equal(t, "SyntaxError", msg.ErrorType)
	assert.Equal(t, "unexpected token", msg.Message)
	assert.Equal(t, "at line 1", msg.Trace)
}
