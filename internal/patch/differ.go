package patch

import (
	"time"

	"github.com/stencila-go/docengine/internal/schema"
)

// diffDeadline bounds a single top-level Diff call; sequence diffs that
// would still be running past it fall back to a whole-sequence Replace
// (spec.md §4.2.1).
const diffDeadline = time.Second

// Differ accumulates operations during a recursive diff. Addresses are
// threaded explicitly through the diff* functions rather than held as
// mutable state on Differ, so there is nothing here to push/pop
// incorrectly across recursive calls.
type Differ struct {
	ops      Patch
	deadline time.Time
}

func (d *Differ) append(ops ...Operation) {
	d.ops = append(d.ops, ops...)
}

func (d *Differ) timedOut() bool {
	return !d.deadline.IsZero() && time.Now().After(d.deadline)
}

// Diff computes a patch P such that Apply(a.Clone(), P) is value-equal to
// b, for two values of the same schema type (spec.md §4.2.1). Two
// invocations on identical inputs produce identical patches.
func Diff(a, b schema.Node) (Patch, error) {
	d := &Differ{deadline: time.Now().Add(diffDeadline)}
	diffNode(d, Address{}, a, b)
	return d.ops, nil
}

// DiffNoDeadline is Diff without the wall-clock cutoff, for deterministic
// tests on pathological inputs.
func DiffNoDeadline(a, b schema.Node) Patch {
	d := &Differ{}
	diffNode(d, Address{}, a, b)
	return d.ops
}

func diffNode(d *Differ, addr Address, a, b schema.Node) {
	if a.Equal(b) {
		return
	}

	ta, tb := a.Type(), b.Type()
	if ta == tb {
		diffSameType(d, addr, a, b)
		return
	}

	// Tagged-union content-compatible variants: emit Transform, then keep
	// diffing from the transformed shape so any remaining content
	// difference still produces minimal operations (spec.md §4.2.1).
	if transformed, ok := schema.TransformInline(a, tb); ok {
		d.append(TransformOp(addr, ta, tb))
		if !transformed.Equal(b) {
			diffSameType(d, addr, transformed, b)
		}
		return
	}

	d.append(ReplaceOp(addr, 1, NodeValue(b.Clone()), 1))
}

func diffSameType(d *Differ, addr Address, a, b schema.Node) {
	switch av := a.(type) {
	case *schema.Text:
		diffTextValue(d, addr, av.Value, b.(*schema.Text).Value)
		return
	case *schema.Heading:
		bv := b.(*schema.Heading)
		diffIntProp(d, addr, "level", av.Level, bv.Level)
	case *schema.MathInline:
		bv := b.(*schema.MathInline)
		diffStringProp(d, addr, "code", av.Code, bv.Code)
		diffStringProp(d, addr, "mathLanguage", av.MathLanguage, bv.MathLanguage)
		return
	case *schema.MathBlock:
		bv := b.(*schema.MathBlock)
		diffStringProp(d, addr, "code", av.Code, bv.Code)
		diffStringProp(d, addr, "mathLanguage", av.MathLanguage, bv.MathLanguage)
		return
	case *schema.CodeChunk:
		bv := b.(*schema.CodeChunk)
		diffStringProp(d, addr, "code", av.Code, bv.Code)
		diffStringProp(d, addr, "programmingLanguage", av.ProgrammingLanguage, bv.ProgrammingLanguage)
		return
	case *schema.CodeExpression:
		bv := b.(*schema.CodeExpression)
		diffStringProp(d, addr, "code", av.Code, bv.Code)
		diffStringProp(d, addr, "programmingLanguage", av.ProgrammingLanguage, bv.ProgrammingLanguage)
		return
	case *schema.CodeBlock:
		bv := b.(*schema.CodeBlock)
		diffStringProp(d, addr, "code", av.Code, bv.Code)
		diffStringProp(d, addr, "programmingLanguage", av.ProgrammingLanguage, bv.ProgrammingLanguage)
		return
	case *schema.Styled:
		bv := b.(*schema.Styled)
		diffStringProp(d, addr, "code", av.Code, bv.Code)
		diffStringProp(d, addr, "styleLanguage", av.StyleLanguage, bv.StyleLanguage)
	case *schema.ForBlock:
		bv := b.(*schema.ForBlock)
		diffStringProp(d, addr, "variable", av.Variable, bv.Variable)
		diffStringProp(d, addr, "code", av.Code, bv.Code)
	case *schema.Table:
		bv := b.(*schema.Table)
		diffContentAt(d, addr, "caption", av.Caption, bv.Caption)
		diffContentAt(d, addr, "rows", av.Rows, bv.Rows)
		return
	case *schema.IfBlock:
		diffIfBlock(d, addr, av, b.(*schema.IfBlock))
		return
	case *schema.Datatable:
		bv := b.(*schema.Datatable)
		if !av.Equal(bv) {
			d.append(ReplaceOp(addr, 1, NodeValue(bv.Clone()), 1))
		}
		return
	case *schema.ImageObject:
		bv := b.(*schema.ImageObject)
		if !av.Equal(bv) {
			d.append(ReplaceOp(addr, 1, NodeValue(bv.Clone()), 1))
		}
		return
	case *schema.NullNode, *schema.BooleanNode, *schema.IntegerNode, *schema.NumberNode,
		*schema.StringNode, *schema.ArrayNode, *schema.ObjectNode:
		if !a.Equal(b) {
			d.append(ReplaceOp(addr, 1, NodeValue(b.Clone()), 1))
		}
		return
	case *schema.Article:
		bv := b.(*schema.Article)
		diffStringProp(d, addr, "title", av.Options.Title, bv.Options.Title)
	}

	if ac, ok := a.(schema.Container); ok {
		bc := b.(schema.Container)
		diffContentAt(d, addr, "content", *ac.Children(), *bc.Children())
	}
}

// diffTextValue reproduces the common-prefix/common-suffix trim that
// produces the exact operation in spec.md §8's Testable Properties
// example 1: Paragraph.content[1] "word2" -> "wotwo" diffs to
// Replace(address + [2], items=3, value="two").
func diffTextValue(d *Differ, addr Address, a, b string) {
	if a == b {
		return
	}
	prefix, suffix := commonAffixLen(a, b)
	oldMiddle := a[prefix : len(a)-suffix]
	newMiddle := b[prefix : len(b)-suffix]
	middleAddr := addr.With(Index(prefix))
	switch {
	case oldMiddle == "":
		d.append(AddOp(middleAddr, StringValue(newMiddle), len(newMiddle)))
	case newMiddle == "":
		d.append(RemoveOp(middleAddr, len(oldMiddle)))
	default:
		d.append(ReplaceOp(middleAddr, len(oldMiddle), StringValue(newMiddle), len(newMiddle)))
	}
}

func commonAffixLen(a, b string) (prefix, suffix int) {
	max := len(a)
	if len(b) < max {
		max = len(b)
	}
	for prefix < max && a[prefix] == b[prefix] {
		prefix++
	}
	max -= prefix
	for suffix < max && a[len(a)-1-suffix] == b[len(b)-1-suffix] {
		suffix++
	}
	return prefix, suffix
}

func diffStringProp(d *Differ, addr Address, prop, a, b string) {
	if a == b {
		return
	}
	d.append(ReplaceOp(addr.With(Prop(prop)), 1, StringValue(b), 1))
}

func diffIntProp(d *Differ, addr Address, prop string, a, b int) {
	if a == b {
		return
	}
	d.append(ReplaceOp(addr.With(Prop(prop)), 1, IntValue(int64(b)), 1))
}

func diffContentAt(d *Differ, addr Address, prop string, a, b []schema.Node) {
	diffSequence(d, addr.With(Prop(prop)), a, b)
}

func diffIfBlock(d *Differ, addr Address, a, b *schema.IfBlock) {
	if len(a.Clauses) != len(b.Clauses) {
		d.append(ReplaceOp(addr, 1, NodeValue(b.Clone()), 1))
		return
	}
	for i := range a.Clauses {
		clauseAddr := addr.With(Prop("clauses")).With(Index(i))
		diffStringProp(d, clauseAddr, "code", a.Clauses[i].Code, b.Clauses[i].Code)
		diffContentAt(d, clauseAddr, "content", a.Clauses[i].Content, b.Clauses[i].Content)
	}
}
