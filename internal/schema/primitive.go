package schema

import "math"

// Primitive node types a kernel uses to represent raw execution values
// (spec.md §4.3.2, §4.5: "Outputs... kernels use Null, Integer, Number,
// String, Array, Object, and ImageObject"). Unlike Text (inline prose
// content), these carry bare values and never appear inside document
// flow — only inside a CodeChunk/CodeExpression's NoWalk Outputs.

type NullNode struct{}

func (n *NullNode) Type() string     { return "schema:Null" }
func (n *NullNode) Nickname() string { return "nul" }
func (n *NullNode) Hash() uint64     { return hashString(n.Type()) }
func (n *NullNode) Equal(o Node) bool {
	_, ok := o.(*NullNode)
	return ok
}
func (n *NullNode) Clone() Node      { return &NullNode{} }
func (n *NullNode) blockMarker()     {}
func (n *NullNode) inlineMarker()    {}

type BooleanNode struct{ Value bool }

func (b *BooleanNode) Type() string     { return "schema:Boolean" }
func (b *BooleanNode) Nickname() string { return "boo" }
func (b *BooleanNode) Hash() uint64 {
	v := uint64(0)
	if b.Value {
		v = 1
	}
	return fnvHash(hashString(b.Type()), v)
}
func (b *BooleanNode) Equal(o Node) bool {
	ob, ok := o.(*BooleanNode)
	return ok && ob.Value == b.Value
}
func (b *BooleanNode) Clone() Node   { return &BooleanNode{Value: b.Value} }
func (b *BooleanNode) blockMarker()  {}
func (b *BooleanNode) inlineMarker() {}

type IntegerNode struct{ Value int64 }

func (i *IntegerNode) Type() string     { return "schema:Integer" }
func (i *IntegerNode) Nickname() string { return "int" }
func (i *IntegerNode) Hash() uint64     { return fnvHash(hashString(i.Type()), uint64(i.Value)) }
func (i *IntegerNode) Equal(o Node) bool {
	oi, ok := o.(*IntegerNode)
	return ok && oi.Value == i.Value
}
func (i *IntegerNode) Clone() Node   { return &IntegerNode{Value: i.Value} }
func (i *IntegerNode) blockMarker()  {}
func (i *IntegerNode) inlineMarker() {}

type NumberNode struct{ Value float64 }

func (n *NumberNode) Type() string     { return "schema:Number" }
func (n *NumberNode) Nickname() string { return "num" }
func (n *NumberNode) Hash() uint64     { return fnvHash(hashString(n.Type()), math.Float64bits(n.Value)) }
func (n *NumberNode) Equal(o Node) bool {
	on, ok := o.(*NumberNode)
	return ok && on.Value == n.Value
}
func (n *NumberNode) Clone() Node   { return &NumberNode{Value: n.Value} }
func (n *NumberNode) blockMarker()  {}
func (n *NumberNode) inlineMarker() {}

type StringNode struct{ Value string }

func (s *StringNode) Type() string     { return "schema:String" }
func (s *StringNode) Nickname() string { return "str" }
func (s *StringNode) Hash() uint64     { return fnvHash(hashString(s.Type()), hashString(s.Value)) }
func (s *StringNode) Equal(o Node) bool {
	os_, ok := o.(*StringNode)
	return ok && os_.Value == s.Value
}
func (s *StringNode) Clone() Node   { return &StringNode{Value: s.Value} }
func (s *StringNode) blockMarker()  {}
func (s *StringNode) inlineMarker() {}

// ArrayNode holds an ordered sequence of arbitrary primitive/node values.
type ArrayNode struct{ Items []Node }

func (a *ArrayNode) Type() string     { return "schema:Array" }
func (a *ArrayNode) Nickname() string { return "arr" }
func (a *ArrayNode) Hash() uint64     { return fnvHash(hashString(a.Type()), hashChildren(a.Items)) }
func (a *ArrayNode) Equal(o Node) bool {
	oa, ok := o.(*ArrayNode)
	if !ok || len(oa.Items) != len(a.Items) {
		return false
	}
	for i, it := range a.Items {
		if !it.Equal(oa.Items[i]) {
			return false
		}
	}
	return true
}
func (a *ArrayNode) Clone() Node {
	cl := &ArrayNode{Items: make([]Node, len(a.Items))}
	for i, it := range a.Items {
		cl.Items[i] = it.Clone()
	}
	return cl
}
func (a *ArrayNode) blockMarker()  {}
func (a *ArrayNode) inlineMarker() {}

// ObjectEntry is one key/value pair of an ObjectNode, in insertion order.
type ObjectEntry struct {
	Key   string
	Value Node
}

// ObjectNode holds key/value pairs preserving insertion order (spec.md
// §4.3.2: "plain object -> ordered Object preserving key insertion
// order").
type ObjectNode struct{ Entries []ObjectEntry }

func (b *ObjectNode) Type() string     { return "schema:Object" }
func (b *ObjectNode) Nickname() string { return "obj" }
func (b *ObjectNode) Hash() uint64 {
	h := hashString(b.Type())
	for _, e := range b.Entries {
		h = fnvHash(h, hashString(e.Key), e.Value.Hash())
	}
	return h
}
func (b *ObjectNode) Equal(o Node) bool {
	ob, ok := o.(*ObjectNode)
	if !ok || len(ob.Entries) != len(b.Entries) {
		return false
	}
	for i, e := range b.Entries {
		if e.Key != ob.Entries[i].Key || !e.Value.Equal(ob.Entries[i].Value) {
			return false
		}
	}
	return true
}
func (b *ObjectNode) Clone() Node {
	cl := &ObjectNode{Entries: make([]ObjectEntry, len(b.Entries))}
	for i, e := range b.Entries {
		cl.Entries[i] = ObjectEntry{Key: e.Key, Value: e.Value.Clone()}
	}
	return cl
}
func (b *ObjectNode) blockMarker()  {}
func (b *ObjectNode) inlineMarker() {}
