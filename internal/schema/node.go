// Package schema defines the closed universe of document node types.
//
// A node is a tagged value from one of ~150 variants grouped into
// categories (Works, Prose, Math, Code, Data, Flow, Style, Edits). This
// package implements a representative subset; adding a variant means
// implementing the Node interface (and, for containers, the Container
// interface) — the patch engine in internal/patch requires no changes.
package schema

// Node is the interface every schema variant implements. Variant tags are
// prefixed: "stencila:" for native variants, "schema:" for ones borrowed
// from schema.org. Nicknames are short 3-letter codes, one per variant.
type Node interface {
	Type() string
	Nickname() string

	// Hash incorporates the variant tag and structurally significant
	// content, so that two structurally equal nodes share a hash and
	// two different nodes very likely do not. Used as sequence-diff
	// element identity (see internal/patch).
	Hash() uint64

	// Equal reports structural equality (ignoring node ids).
	Equal(other Node) bool

	// Clone returns a deep copy, used when diff holds onto values
	// across a recursive call and when apply splices items into a
	// sequence.
	Clone() Node
}

// Container is implemented by block/inline variants that own an ordered
// child sequence walked by diff/apply. Children returns a pointer to the
// backing slice so the patch engine can splice in place.
type Container interface {
	Node
	Children() *[]Node
}

// Inline marks a node valid inside an inline content sequence
// (Paragraph.Content, Emphasis.Content, ...).
type Inline interface {
	Node
	inlineMarker()
}

// Block marks a node valid inside a block content sequence
// (Article.Content, Styled.Content, ...).
type Block interface {
	Node
	blockMarker()
}

// WalkFlag controls whether the patch engine descends into a property.
type WalkFlag int

const (
	Walk WalkFlag = iota
	NoWalk
)

// StripScope classifies a property for bulk elision at transport
// boundaries (not used by the patch engine itself, but carried on the
// property descriptor per spec.md §4.1).
type StripScope int

const (
	StripNone StripScope = iota
	StripMetadata
	StripContent
	StripCode
	StripExecution
	StripOutput
)

// PropertyDescriptor documents one property of a variant: its name,
// whether it is required, whether diff walks into it, and its strip
// scope. Schema-gen style tooling (out of scope per spec.md §1) would
// consume this to generate documentation; the patch engine does not
// read it and decides what to walk through its own per-type switches.
type PropertyDescriptor struct {
	Name     string
	Required bool
	Walk     WalkFlag
	Scope    StripScope
}

// fnvHash is the hashing primitive used by every variant's Hash method: a
// simple, dependency-free FNV-1a over a type tag and a sequence of
// already-hashed or primitive fields. Kept tiny and inlined by callers
// rather than imported from hash/fnv so Hash can be a pure function with
// no allocation for the common case.
func fnvHash(seed uint64, parts ...uint64) uint64 {
	h := seed
	for _, p := range parts {
		h ^= p
		h *= 1099511628211
	}
	return h
}

func hashString(s string) uint64 {
	var h uint64 = 14695981039346656037
	for i := 0; i < len(s); i++ {
		h ^= uint64(s[i])
		h *= 1099511628211
	}
	return h
}

func hashChildren(children []Node) uint64 {
	h := uint64(14695981039346656037)
	for _, c := range children {
		h = fnvHash(h, c.Hash())
	}
	return h
}
