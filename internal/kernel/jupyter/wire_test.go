package jupyter

import (
	"testing"

	"github.com/go-zeromq/zmq4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWireMessageEncodeDecodeRoundTrip(t *testing.T) {
	key := []byte("test-key")
	msg := &WireMessage{
		Header:       newHeader("execute_request", "session-1"),
		ParentHeader: Header{},
		Metadata:     map[string]any{"foo": "bar"},
		Content:      map[string]any{"code": "1+1"},
	}

	encoded, err := msg.Encode(key)
	require.NoError(t, err)

	decoded, err := DecodeWireMessage(encoded, key)
	require.NoError(t, err)

	assert.Equal(t, msg.Header.MsgID, decoded.Header.MsgID)
	assert.Equal(t, msg.Header.MsgType, decoded.Header.MsgType)
	assert.Equal(t, "1+1", decoded.Content["code"])
	assert.Equal(t, "bar", decoded.Metadata["foo"])
}

func TestWireMessageSignatureMismatchRejected(t *testing.T) {
	msg := &WireMessage{Header: newHeader("execute_request", "session-1")}

	encoded, err := msg.Encode([]byte("key-a"))
	require.NoError(t, err)

	_, err = DecodeWireMessage(encoded, []byte("key-b"))
	assert.Error(t, err)
}

func TestWireMessageUnsignedWhenKeyEmpty(t *testing.T) {
	msg := &WireMessage{Header: newHeader("execute_request", "session-1")}

	encoded, err := msg.Encode(nil)
	require.NoError(t, err)

	decoded, err := DecodeWireMessage(encoded, nil)
	require.NoError(t, err)
	assert.Equal(t, msg.Header.MsgID, decoded.Header.MsgID)
}

func TestDecodeWireMessageMalformedMissingDelimiter(t *testing.T) {
	_, err := DecodeWireMessage(zmq4.NewMsgFrom([]byte("nope")), nil)
	assert.Error(t, err)
}
