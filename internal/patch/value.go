package patch

import (
	"encoding/json"
	"fmt"

	"github.com/stencila-go/docengine/internal/schema"
)

// ValueKind discriminates the Value tagged union.
type ValueKind int

const (
	KindNull ValueKind = iota
	KindBool
	KindInteger
	KindNumber
	KindString
	KindArray
	KindNode
)

// Value is the payload of Add/Replace operations: a primitive, a
// homogeneous sequence of a schema type, or a whole schema node. It
// carries enough type information to be decoded without the surrounding
// context (spec.md §3).
type Value struct {
	Kind  ValueKind
	Bool  bool
	Int   int64
	Num   float64
	Str   string
	Items []Value
	Node  schema.Node
}

func Null() Value               { return Value{Kind: KindNull} }
func BoolValue(b bool) Value    { return Value{Kind: KindBool, Bool: b} }
func IntValue(i int64) Value    { return Value{Kind: KindInteger, Int: i} }
func NumberValue(f float64) Value { return Value{Kind: KindNumber, Num: f} }
func StringValue(s string) Value { return Value{Kind: KindString, Str: s} }
func ArrayValue(items []Value) Value { return Value{Kind: KindArray, Items: items} }
func NodeValue(n schema.Node) Value  { return Value{Kind: KindNode, Node: n} }

// NodesValue wraps a homogeneous slice of nodes as an array Value, one
// NodeValue per item — this is the payload shape used for sequence
// Add/Replace operations (spec.md §4.2.2).
func NodesValue(nodes []schema.Node) Value {
	items := make([]Value, len(nodes))
	for i, n := range nodes {
		items[i] = NodeValue(n)
	}
	return ArrayValue(items)
}

// Nodes extracts a []schema.Node from an array Value whose items are all
// NodeValues. Returns an error if the value isn't such an array.
func (v Value) Nodes() ([]schema.Node, error) {
	if v.Kind != KindArray {
		return nil, fmt.Errorf("value is not an array")
	}
	out := make([]schema.Node, len(v.Items))
	for i, item := range v.Items {
		if item.Kind != KindNode {
			return nil, fmt.Errorf("array item %d is not a node", i)
		}
		out[i] = item.Node
	}
	return out, nil
}

type jsonValue struct {
	Type  string          `json:"type"`
	Bool  *bool           `json:"bool,omitempty"`
	Int   *int64          `json:"int,omitempty"`
	Num   *float64        `json:"number,omitempty"`
	Str   *string         `json:"string,omitempty"`
	Items []jsonValue     `json:"items,omitempty"`
	Node  json.RawMessage `json:"node,omitempty"`
}

// MarshalJSON encodes the value to its JSON-equivalent form (spec.md §6).
func (v Value) MarshalJSON() ([]byte, error) {
	jv := jsonValue{}
	switch v.Kind {
	case KindNull:
		jv.Type = "null"
	case KindBool:
		jv.Type = "bool"
		jv.Bool = &v.Bool
	case KindInteger:
		jv.Type = "integer"
		jv.Int = &v.Int
	case KindNumber:
		jv.Type = "number"
		jv.Num = &v.Num
	case KindString:
		jv.Type = "string"
		jv.Str = &v.Str
	case KindArray:
		jv.Type = "array"
		jv.Items = make([]jsonValue, len(v.Items))
		for i, item := range v.Items {
			b, err := item.MarshalJSON()
			if err != nil {
				return nil, err
			}
			var sub jsonValue
			if err := json.Unmarshal(b, &sub); err != nil {
				return nil, err
			}
			jv.Items[i] = sub
		}
	case KindNode:
		jv.Type = "node"
		b, err := schema.MarshalNode(v.Node)
		if err != nil {
			return nil, fmt.Errorf("marshaling node value: %w", err)
		}
		jv.Node = b
	}
	return json.Marshal(jv)
}

// UnmarshalJSON decodes a value from its JSON-equivalent form.
func (v *Value) UnmarshalJSON(data []byte) error {
	var jv jsonValue
	if err := json.Unmarshal(data, &jv); err != nil {
		return err
	}
	switch jv.Type {
	case "null":
		*v = Null()
	case "bool":
		*v = BoolValue(jv.Bool != nil && *jv.Bool)
	case "integer":
		if jv.Int != nil {
			*v = IntValue(*jv.Int)
		}
	case "number":
		if jv.Num != nil {
			*v = NumberValue(*jv.Num)
		}
	case "string":
		if jv.Str != nil {
			*v = StringValue(*jv.Str)
		}
	case "array":
		items := make([]Value, len(jv.Items))
		for i, sub := range jv.Items {
			b, err := json.Marshal(sub)
			if err != nil {
				return err
			}
			if err := items[i].UnmarshalJSON(b); err != nil {
				return err
			}
		}
		*v = ArrayValue(items)
	case "node":
		n, err := schema.UnmarshalNode(jv.Node)
		if err != nil {
			return fmt.Errorf("unmarshaling node value: %w", err)
		}
		*v = NodeValue(n)
	default:
		return fmt.Errorf("unknown value type tag: %q", jv.Type)
	}
	return nil
}
