package jupyter

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-zeromq/zmq4"
	"github.com/google/uuid"
)

// wireDelimiter separates routing-identity frames from the signed
// message frames in the Jupyter wire protocol.
const wireDelimiter = "<IDS|MSG>"

// Header is the Jupyter message header every request/reply/broadcast
// carries.
type Header struct {
	MsgID    string `json:"msg_id"`
	Session  string `json:"session"`
	Username string `json:"username"`
	Date     string `json:"date"`
	MsgType  string `json:"msg_type"`
	Version  string `json:"version"`
}

func newHeader(msgType, session string) Header {
	return Header{
		MsgID:    uuid.New().String(),
		Session:  session,
		Username: "docengine",
		Date:     time.Now().UTC().Format(time.RFC3339Nano),
		MsgType:  msgType,
		Version:  "5.3",
	}
}

// WireMessage is a decoded Jupyter protocol message: header, optional
// parent header (the request a reply/broadcast answers), metadata, and
// content, each signed as a unit with HMAC-SHA256 over the session key
// (spec.md §4.3.4).
type WireMessage struct {
	Identities   [][]byte
	Header       Header
	ParentHeader Header
	Metadata     map[string]any
	Content      map[string]any
}

func sign(key []byte, parts [][]byte) string {
	if len(key) == 0 {
		return ""
	}
	mac := hmac.New(sha256.New, key)
	for _, p := range parts {
		mac.Write(p)
	}
	return hex.EncodeToString(mac.Sum(nil))
}

// Encode serializes m into a multipart ZeroMQ message, signed with key.
func (m *WireMessage) Encode(key []byte) (zmq4.Msg, error) {
	header, err := json.Marshal(m.Header)
	if err != nil {
		return zmq4.Msg{}, err
	}
	parent := []byte("{}")
	if m.ParentHeader.MsgID != "" {
		parent, err = json.Marshal(m.ParentHeader)
		if err != nil {
			return zmq4.Msg{}, err
		}
	}
	meta := m.Metadata
	if meta == nil {
		meta = map[string]any{}
	}
	metaBytes, err := json.Marshal(meta)
	if err != nil {
		return zmq4.Msg{}, err
	}
	content := m.Content
	if content == nil {
		content = map[string]any{}
	}
	contentBytes, err := json.Marshal(content)
	if err != nil {
		return zmq4.Msg{}, err
	}

	sig := sign(key, [][]byte{header, parent, metaBytes, contentBytes})

	frames := append([][]byte{}, m.Identities...)
	frames = append(frames,
		[]byte(wireDelimiter),
		[]byte(sig),
		header,
		parent,
		metaBytes,
		contentBytes,
	)
	return zmq4.NewMsgFrom(frames...), nil
}

// DecodeWireMessage parses a multipart ZeroMQ message into a
// WireMessage, verifying its HMAC signature against key (skipped if key
// is empty, matching unsigned-connection-file test kernels).
func DecodeWireMessage(msg zmq4.Msg, key []byte) (*WireMessage, error) {
	frames := msg.Frames
	idx := -1
	for i, f := range frames {
		if string(f) == wireDelimiter {
			idx = i
			break
		}
	}
	if idx == -1 || idx+5 >= len(frames) {
		return nil, fmt.Errorf("malformed jupyter wire message: no delimiter frame")
	}

	sig := string(frames[idx+1])
	header := frames[idx+2]
	parent := frames[idx+3]
	meta := frames[idx+4]
	content := frames[idx+5]

	if len(key) > 0 {
		expected := sign(key, [][]byte{header, parent, meta, content})
		if !hmac.Equal([]byte(expected), []byte(sig)) {
			return nil, fmt.Errorf("jupyter wire message signature mismatch")
		}
	}

	wm := &WireMessage{Identities: append([][]byte{}, frames[:idx]...)}
	_ = json.Unmarshal(header, &wm.Header)
	_ = json.Unmarshal(parent, &wm.ParentHeader)
	_ = json.Unmarshal(meta, &wm.Metadata)
	_ = json.Unmarshal(content, &wm.Content)
	return wm, nil
}
