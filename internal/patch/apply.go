package patch

import (
	"fmt"

	"github.com/stencila-go/docengine/internal/schema"
)

// ApplyError reports a patch operation that could not be applied,
// naming the offending operation's address so a caller can surface it
// without re-deriving context (spec.md §7, "patch application against a
// stale address").
type ApplyError struct {
	Op      Op
	Address Address
	Reason  string
}

func (e *ApplyError) Error() string {
	return fmt.Sprintf("apply %s at %v: %s", e.Op, e.Address, e.Reason)
}

// Apply applies patch p to root in place, returning the (possibly
// replaced) root node. Operations are applied in order; each is
// interpreted against the tree as left by the previous one (spec.md
// §3). An invalid address or a Move/Transform that cannot be carried
// out returns an ApplyError; whatever was applied before the failing
// operation remains in effect, matching the reference implementation's
// non-transactional apply.
func Apply(root schema.Node, p Patch) (schema.Node, error) {
	for _, op := range p {
		next, err := applyOne(root, op)
		if err != nil {
			return root, err
		}
		root = next
	}
	return root, nil
}

func applyOne(root schema.Node, op Operation) (schema.Node, error) {
	switch op.Op {
	case OpAdd:
		return root, applySplice(root, op.Address, 0, op.Value)
	case OpRemove:
		return root, applySplice(root, op.Address, op.Items, Value{})
	case OpReplace:
		if len(op.Address) == 0 {
			if op.Value.Kind != KindNode {
				return root, &ApplyError{Op: op.Op, Address: op.Address, Reason: "root replacement requires a node value"}
			}
			return op.Value.Node, nil
		}
		return root, applySplice(root, op.Address, op.Items, op.Value)
	case OpMove:
		return root, applyMove(root, op)
	case OpTransform:
		return applyTransform(root, op)
	default:
		return root, &ApplyError{Op: op.Op, Address: op.Address, Reason: "unknown operation"}
	}
}

// target is what an address resolves to just above its final slot: a
// sequence to splice into, a *schema.Text to splice characters into, or
// a node (or IfBlock clause) plus a property name to set. IfBlock
// clauses are not schema.Node values, so a clause's "code" and
// "content" properties resolve through clause instead of node.
type target struct {
	seq    *[]schema.Node
	text   *schema.Text
	node   schema.Node
	clause *schema.IfBlockClause
	prop   string
}

func applySplice(root schema.Node, addr Address, removeItems int, value Value) error {
	if len(addr) == 0 {
		return &ApplyError{Reason: "empty address for a sequence or property operation"}
	}
	last := addr[len(addr)-1]
	t, err := locate(root, addr[:len(addr)-1], last)
	if err != nil {
		return err
	}
	switch {
	case t.seq != nil:
		return spliceSequence(t.seq, last.Int(), removeItems, value)
	case t.text != nil:
		return spliceText(t.text, last.Int(), removeItems, value)
	case t.clause != nil:
		return setClauseProperty(t.clause, t.prop, value)
	default:
		return setProperty(t.node, t.prop, value)
	}
}

// locate walks addr (everything but the operation's final slot) from
// root, then combines the result with last to produce a target.
//
// A trailing property slot always names a scalar or clause property:
// addr is walked as a node path. A trailing index slot is ambiguous
// between two shapes produced by the differ (spec.md §4.2.1): if addr
// itself ends in a property slot, the index splices into the sequence
// that property names (e.g. .../content/<i>); otherwise addr resolves
// to a node directly, and that node must be a *schema.Text whose
// string Value the index splices into (diffTextValue's common-affix
// operations address the Text node itself, not a "value" property).
func locate(root schema.Node, addr Address, last Slot) (target, error) {
	if last.IsIndex() {
		if len(addr) > 0 && !addr[len(addr)-1].IsIndex() {
			seq, err := resolveSequence(root, addr)
			if err != nil {
				return target{}, err
			}
			return target{seq: seq}, nil
		}
		node, clause, err := resolveNode(root, addr)
		if err != nil {
			return target{}, err
		}
		if clause != nil {
			return target{}, &ApplyError{Address: addr, Reason: "clause has no indexable value"}
		}
		text, ok := node.(*schema.Text)
		if !ok {
			return target{}, &ApplyError{Address: addr, Reason: fmt.Sprintf("%s is not indexable", node.Type())}
		}
		return target{text: text}, nil
	}

	node, clause, err := resolveNode(root, addr)
	if err != nil {
		return target{}, err
	}
	return target{node: node, clause: clause, prop: last.Name()}, nil
}

// resolveNode walks a node-valued path: each property slot must name a
// sequence, immediately followed by an index slot into it (or the path
// ends there, which is an error for resolveNode's purposes since a
// sequence is not a node).
func resolveNode(root schema.Node, addr Address) (schema.Node, *schema.IfBlockClause, error) {
	var curNode schema.Node = root
	var curClause *schema.IfBlockClause

	for i := 0; i < len(addr); i++ {
		slot := addr[i]
		if slot.IsIndex() {
			return nil, nil, &ApplyError{Address: addr, Reason: "unexpected index slot in node path"}
		}
		if curClause != nil {
			return nil, nil, &ApplyError{Address: addr, Reason: "clause has no further node properties"}
		}
		if slot.Name() == "clauses" {
			ifBlock, ok := curNode.(*schema.IfBlock)
			if !ok {
				return nil, nil, &ApplyError{Address: addr, Reason: fmt.Sprintf("%s has no clauses", curNode.Type())}
			}
			if i+1 >= len(addr) || !addr[i+1].IsIndex() {
				return nil, nil, &ApplyError{Address: addr, Reason: "clauses must be followed by an index"}
			}
			idx := addr[i+1].Int()
			if idx < 0 || idx >= len(ifBlock.Clauses) {
				return nil, nil, &ApplyError{Address: addr, Reason: fmt.Sprintf("clause index %d out of range", idx)}
			}
			curClause = &ifBlock.Clauses[idx]
			i++
			continue
		}

		seq, err := sequenceFor(curNode, slot)
		if err != nil {
			return nil, nil, &ApplyError{Address: addr, Reason: err.Error()}
		}
		if i+1 >= len(addr) || !addr[i+1].IsIndex() {
			return nil, nil, &ApplyError{Address: addr, Reason: fmt.Sprintf("property %q must be followed by an index", slot.Name())}
		}
		idx := addr[i+1].Int()
		if idx < 0 || idx >= len(*seq) {
			return nil, nil, &ApplyError{Address: addr, Reason: fmt.Sprintf("index %d out of range (len %d)", idx, len(*seq))}
		}
		curNode = (*seq)[idx]
		i++
	}
	return curNode, curClause, nil
}

// resolveSequence walks addr down to a sequence-valued path: the last
// slot of addr must be a property naming a sequence (on a node, or
// "content"/"code" is not applicable here since code is scalar; for
// clauses, only "content" is a sequence).
func resolveSequence(root schema.Node, addr Address) (*[]schema.Node, error) {
	if len(addr) == 0 {
		return nil, &ApplyError{Address: addr, Reason: "sequence address must name a property"}
	}
	last := addr[len(addr)-1]
	if last.IsIndex() {
		return nil, &ApplyError{Address: addr, Reason: "sequence path must end in a property name"}
	}

	node, clause, err := resolveNode(root, addr[:len(addr)-1])
	if err != nil {
		return nil, err
	}
	if clause != nil {
		if last.Name() != "content" {
			return nil, &ApplyError{Address: addr, Reason: fmt.Sprintf("clause has no sequence property %q", last.Name())}
		}
		return &clause.Content, nil
	}
	return sequenceFor(node, last)
}

// sequenceFor returns the child sequence a property slot names on a
// node (spec.md §4.1: "content", plus the type-specific sequence
// properties "rows"/"caption" on Table).
func sequenceFor(node schema.Node, slot Slot) (*[]schema.Node, error) {
	switch slot.Name() {
	case "content":
		if c, ok := node.(schema.Container); ok {
			return c.Children(), nil
		}
	case "rows":
		if t, ok := node.(*schema.Table); ok {
			return &t.Rows, nil
		}
	case "caption":
		if t, ok := node.(*schema.Table); ok {
			return &t.Caption, nil
		}
	}
	return nil, fmt.Errorf("no sequence property %q on %s", slot.Name(), node.Type())
}

func spliceSequence(seq *[]schema.Node, index, removeItems int, value Value) error {
	if index < 0 || index > len(*seq) {
		return &ApplyError{Reason: fmt.Sprintf("splice index %d out of range (len %d)", index, len(*seq))}
	}
	if index+removeItems > len(*seq) {
		return &ApplyError{Reason: fmt.Sprintf("remove count %d at index %d exceeds length %d", removeItems, index, len(*seq))}
	}

	inserted := valueToNodes(value)

	out := make([]schema.Node, 0, len(*seq)-removeItems+len(inserted))
	out = append(out, (*seq)[:index]...)
	out = append(out, inserted...)
	out = append(out, (*seq)[index+removeItems:]...)
	*seq = out
	return nil
}

// valueToNodes converts an Add/Replace payload into the node slice to
// splice in. A zero Value (used by Remove, which carries no payload)
// yields no inserted nodes.
func valueToNodes(v Value) []schema.Node {
	switch v.Kind {
	case KindNode:
		return []schema.Node{v.Node}
	case KindArray:
		nodes, err := v.Nodes()
		if err != nil {
			return nil
		}
		return nodes
	default:
		return nil
	}
}

// spliceText applies a diffTextValue operation: index is a byte offset
// into the Text's Value, matching commonAffixLen's byte-based affix
// trim in differ.go.
func spliceText(text *schema.Text, index, removeItems int, value Value) error {
	s := text.Value
	if index < 0 || index > len(s) {
		return &ApplyError{Reason: fmt.Sprintf("text splice index %d out of range (len %d)", index, len(s))}
	}
	if index+removeItems > len(s) {
		return &ApplyError{Reason: fmt.Sprintf("text remove count %d at index %d exceeds length %d", removeItems, index, len(s))}
	}
	insert := ""
	if value.Kind == KindString {
		insert = value.Str
	}
	text.Value = s[:index] + insert + s[index+removeItems:]
	return nil
}

// setProperty sets a named scalar property on a node. It mirrors
// diffSameType's type switch in differ.go: the two stay in lockstep so
// every property the differ can emit a Replace for, apply can also
// set.
func setProperty(node schema.Node, name string, value Value) error {
	switch n := node.(type) {
	case *schema.Heading:
		if name == "level" && value.Kind == KindInteger {
			n.Level = int(value.Int)
			return nil
		}
	case *schema.MathInline:
		if ok := setCodeLanguage(name, value, &n.Code, &n.MathLanguage); ok {
			return nil
		}
	case *schema.MathBlock:
		if ok := setCodeLanguage(name, value, &n.Code, &n.MathLanguage); ok {
			return nil
		}
	case *schema.CodeChunk:
		if ok := setCodeLanguage(name, value, &n.Code, &n.ProgrammingLanguage); ok {
			return nil
		}
	case *schema.CodeExpression:
		if ok := setCodeLanguage(name, value, &n.Code, &n.ProgrammingLanguage); ok {
			return nil
		}
	case *schema.CodeBlock:
		if ok := setCodeLanguage(name, value, &n.Code, &n.ProgrammingLanguage); ok {
			return nil
		}
	case *schema.Styled:
		if ok := setCodeLanguage(name, value, &n.Code, &n.StyleLanguage); ok {
			return nil
		}
	case *schema.ForBlock:
		switch name {
		case "variable":
			if value.Kind == KindString {
				n.Variable = value.Str
				return nil
			}
		case "code":
			if value.Kind == KindString {
				n.Code = value.Str
				return nil
			}
		}
	case *schema.Article:
		if name == "title" && value.Kind == KindString {
			n.Options.Title = value.Str
			return nil
		}
	}
	return &ApplyError{Reason: fmt.Sprintf("node %s has no settable property %q", node.Type(), name)}
}

// setCodeLanguage handles the common "code"/language-property pair
// shared by every code-like and math-like variant.
func setCodeLanguage(name string, value Value, code, language *string) bool {
	if value.Kind != KindString {
		return false
	}
	switch name {
	case "code":
		*code = value.Str
		return true
	case "mathLanguage", "programmingLanguage", "styleLanguage":
		*language = value.Str
		return true
	}
	return false
}

func setClauseProperty(clause *schema.IfBlockClause, name string, value Value) error {
	switch name {
	case "code":
		if value.Kind != KindString {
			return &ApplyError{Reason: "clause code must be a string value"}
		}
		clause.Code = value.Str
		return nil
	default:
		return &ApplyError{Reason: fmt.Sprintf("clause has no scalar property %q", name)}
	}
}

// applyMove splices op.Items nodes out of the sequence addressed by
// op.From and into the sequence addressed by op.To. Both sequences
// live under root, so it never changes root's identity and reports
// only an error.
func applyMove(root schema.Node, op Operation) error {
	fromLast := op.From[len(op.From)-1]
	toLast := op.To[len(op.To)-1]
	if !fromLast.IsIndex() || !toLast.IsIndex() {
		return &ApplyError{Op: OpMove, Address: op.From, Reason: "move requires index addresses"}
	}

	fromSeq, err := resolveSequence(root, op.From[:len(op.From)-1])
	if err != nil {
		return err
	}
	if fromLast.Int() < 0 || fromLast.Int()+op.Items > len(*fromSeq) {
		return &ApplyError{Op: OpMove, Address: op.From, Reason: "move source range out of bounds"}
	}
	moved := append([]schema.Node(nil), (*fromSeq)[fromLast.Int():fromLast.Int()+op.Items]...)
	*fromSeq = append(append([]schema.Node(nil), (*fromSeq)[:fromLast.Int()]...), (*fromSeq)[fromLast.Int()+op.Items:]...)

	toSeq, err := resolveSequence(root, op.To[:len(op.To)-1])
	if err != nil {
		return err
	}
	if toLast.Int() < 0 || toLast.Int() > len(*toSeq) {
		return &ApplyError{Op: OpMove, Address: op.To, Reason: "move destination index out of bounds"}
	}
	out := make([]schema.Node, 0, len(*toSeq)+len(moved))
	out = append(out, (*toSeq)[:toLast.Int()]...)
	out = append(out, moved...)
	out = append(out, (*toSeq)[toLast.Int():]...)
	*toSeq = out

	return nil
}

func applyTransform(root schema.Node, op Operation) (schema.Node, error) {
	if len(op.Address) == 0 {
		transformed, ok := schema.TransformInline(root, op.ToTag)
		if !ok {
			return root, &ApplyError{Op: OpTransform, Address: op.Address, Reason: fmt.Sprintf("cannot transform %s to %s", op.FromTag, op.ToTag)}
		}
		return transformed, nil
	}

	last := op.Address[len(op.Address)-1]
	if !last.IsIndex() {
		return root, &ApplyError{Op: OpTransform, Address: op.Address, Reason: "transform address must end in an index"}
	}
	seq, err := resolveSequence(root, op.Address[:len(op.Address)-1])
	if err != nil {
		return root, err
	}
	if last.Int() < 0 || last.Int() >= len(*seq) {
		return root, &ApplyError{Op: OpTransform, Address: op.Address, Reason: "transform index out of range"}
	}
	transformed, ok := schema.TransformInline((*seq)[last.Int()], op.ToTag)
	if !ok {
		return root, &ApplyError{Op: OpTransform, Address: op.Address, Reason: fmt.Sprintf("cannot transform %s to %s", op.FromTag, op.ToTag)}
	}
	(*seq)[last.Int()] = transformed
	return root, nil
}
