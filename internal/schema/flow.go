package schema

// IfBlockClause is one branch (the initial "if", any "elif"s, or the
// trailing unconditional "else") of an IfBlock.
type IfBlockClause struct {
	Code    string
	Content []Node // Block
}

// IfBlock is conditional content: a sequence of clauses, exactly one of
// which is active at a time. It has no Children method; the patch engine
// walks each clause's code and content, addressed as nested slots
// (clause index, then property) so diff/apply treat each clause's
// content as its own sequence.
type IfBlock struct {
	ID      string
	Clauses []IfBlockClause
}

func (f *IfBlock) Type() string     { return "stencila:IfBlock" }
func (f *IfBlock) Nickname() string { return "ifb" }
func (f *IfBlock) Hash() uint64 {
	h := hashString(f.Type())
	for _, c := range f.Clauses {
		h = fnvHash(h, hashString(c.Code), hashChildren(c.Content))
	}
	return h
}
func (f *IfBlock) Equal(o Node) bool {
	of_, ok := o.(*IfBlock)
	if !ok || len(of_.Clauses) != len(f.Clauses) {
		return false
	}
	for i, c := range f.Clauses {
		oc := of_.Clauses[i]
		if c.Code != oc.Code || len(c.Content) != len(oc.Content) {
			return false
		}
		for j, ch := range c.Content {
			if !ch.Equal(oc.Content[j]) {
				return false
			}
		}
	}
	return true
}
func (f *IfBlock) Clone() Node {
	cl := &IfBlock{ID: f.ID, Clauses: make([]IfBlockClause, len(f.Clauses))}
	for i, c := range f.Clauses {
		content := make([]Node, len(c.Content))
		for j, ch := range c.Content {
			content[j] = ch.Clone()
		}
		cl.Clauses[i] = IfBlockClause{Code: c.Code, Content: content}
	}
	return cl
}
func (f *IfBlock) blockMarker() {}

// ForBlock repeats Content once per item of a Go-side Variable expression,
// evaluated by a kernel (spec.md §4.3.1 evaluate). Content is the loop
// body's ordered block sequence; IterationContent (NoWalk) caches the
// last rendered expansion as an execution artifact.
type ForBlock struct {
	ID       string
	Variable string
	Code     string // the iterable expression, e.g. "1:10"
	Content  []Node // Block: the loop body template

	IterationContent []Node // NoWalk: last expanded output
}

func (f *ForBlock) Type() string      { return "stencila:ForBlock" }
func (f *ForBlock) Nickname() string  { return "for" }
func (f *ForBlock) Children() *[]Node { return &f.Content }
func (f *ForBlock) Hash() uint64 {
	return fnvHash(hashString(f.Type()), hashString(f.Variable), hashString(f.Code), hashChildren(f.Content))
}
func (f *ForBlock) Equal(o Node) bool {
	of_, ok := o.(*ForBlock)
	if !ok || of_.Variable != f.Variable || of_.Code != f.Code || len(of_.Content) != len(f.Content) {
		return false
	}
	for i, c := range f.Content {
		if !c.Equal(of_.Content[i]) {
			return false
		}
	}
	return true
}
func (f *ForBlock) Clone() Node {
	cl := &ForBlock{ID: f.ID, Variable: f.Variable, Code: f.Code, Content: make([]Node, len(f.Content))}
	for i, c := range f.Content {
		cl.Content[i] = c.Clone()
	}
	cl.IterationContent = append([]Node(nil), f.IterationContent...)
	return cl
}
func (f *ForBlock) blockMarker() {}
