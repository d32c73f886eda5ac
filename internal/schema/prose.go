package schema

// Text is the schema's string leaf: a primitive-ish node (rather than a
// bare Go string) so it can participate in Transform with Emphasis/Strong
// (see internal/patch, Testable Properties example 1).
type Text struct {
	ID    string
	Value string
}

func (t *Text) Type() string     { return "schema:Text" }
func (t *Text) Nickname() string { return "txt" }
func (t *Text) Hash() uint64     { return fnvHash(hashString(t.Type()), hashString(t.Value)) }
func (t *Text) Equal(o Node) bool {
	ot, ok := o.(*Text)
	return ok && ot.Value == t.Value
}
func (t *Text) Clone() Node { c := *t; return &c }

func (t *Text) inlineMarker() {}

// Emphasis is inline emphasised content (e.g. rendered as italics).
type Emphasis struct {
	ID       string
	Content  []Node // Inline
	Options  EmphasisOptions
}

// EmphasisOptions bundles Emphasis's optional properties.
type EmphasisOptions struct {
	Authors []string
}

func (e *Emphasis) Type() string         { return "schema:Emphasis" }
func (e *Emphasis) Nickname() string     { return "emp" }
func (e *Emphasis) Children() *[]Node    { return &e.Content }
func (e *Emphasis) Hash() uint64         { return fnvHash(hashString(e.Type()), hashChildren(e.Content)) }
func (e *Emphasis) Equal(o Node) bool {
	oe, ok := o.(*Emphasis)
	if !ok || len(oe.Content) != len(e.Content) {
		return false
	}
	for i, c := range e.Content {
		if !c.Equal(oe.Content[i]) {
			return false
		}
	}
	return true
}
func (e *Emphasis) Clone() Node {
	c := &Emphasis{ID: e.ID, Options: e.Options, Content: make([]Node, len(e.Content))}
	for i, ch := range e.Content {
		c.Content[i] = ch.Clone()
	}
	return c
}
func (e *Emphasis) inlineMarker() {}

// Strong is inline strongly-emphasised content (e.g. rendered as bold).
type Strong struct {
	ID      string
	Content []Node // Inline
}

func (s *Strong) Type() string      { return "schema:Strong" }
func (s *Strong) Nickname() string  { return "stg" }
func (s *Strong) Children() *[]Node { return &s.Content }
func (s *Strong) Hash() uint64      { return fnvHash(hashString(s.Type()), hashChildren(s.Content)) }
func (s *Strong) Equal(o Node) bool {
	os_, ok := o.(*Strong)
	if !ok || len(os_.Content) != len(s.Content) {
		return false
	}
	for i, c := range s.Content {
		if !c.Equal(os_.Content[i]) {
			return false
		}
	}
	return true
}
func (s *Strong) Clone() Node {
	c := &Strong{ID: s.ID, Content: make([]Node, len(s.Content))}
	for i, ch := range s.Content {
		c.Content[i] = ch.Clone()
	}
	return c
}
func (s *Strong) inlineMarker() {}

// Paragraph is a block of inline content.
type Paragraph struct {
	ID      string
	Content []Node // Inline
}

func (p *Paragraph) Type() string      { return "schema:Paragraph" }
func (p *Paragraph) Nickname() string  { return "par" }
func (p *Paragraph) Children() *[]Node { return &p.Content }
func (p *Paragraph) Hash() uint64      { return fnvHash(hashString(p.Type()), hashChildren(p.Content)) }
func (p *Paragraph) Equal(o Node) bool {
	op, ok := o.(*Paragraph)
	if !ok || len(op.Content) != len(p.Content) {
		return false
	}
	for i, c := range p.Content {
		if !c.Equal(op.Content[i]) {
			return false
		}
	}
	return true
}
func (p *Paragraph) Clone() Node {
	c := &Paragraph{ID: p.ID, Content: make([]Node, len(p.Content))}
	for i, ch := range p.Content {
		c.Content[i] = ch.Clone()
	}
	return c
}
func (p *Paragraph) blockMarker() {}

// Heading is a block of inline content at a given Level (1-6, required).
type Heading struct {
	ID      string
	Level   int
	Content []Node // Inline
}

func (h *Heading) Type() string      { return "schema:Heading" }
func (h *Heading) Nickname() string  { return "hea" }
func (h *Heading) Children() *[]Node { return &h.Content }
func (h *Heading) Hash() uint64 {
	return fnvHash(hashString(h.Type()), uint64(h.Level), hashChildren(h.Content))
}
func (h *Heading) Equal(o Node) bool {
	oh, ok := o.(*Heading)
	if !ok || oh.Level != h.Level || len(oh.Content) != len(h.Content) {
		return false
	}
	for i, c := range h.Content {
		if !c.Equal(oh.Content[i]) {
			return false
		}
	}
	return true
}
func (h *Heading) Clone() Node {
	c := &Heading{ID: h.ID, Level: h.Level, Content: make([]Node, len(h.Content))}
	for i, ch := range h.Content {
		c.Content[i] = ch.Clone()
	}
	return c
}
func (h *Heading) blockMarker() {}

// TransformInline attempts spec.md §4.2.1's inline Transform: String <->
// Emphasis/Strong, preserving the text content. Returns (transformed,
// true) or (nil, false) if the (from, to) tag pair isn't supported.
func TransformInline(n Node, toTag string) (Node, bool) {
	switch from := n.(type) {
	case *Text:
		switch toTag {
		case "schema:Emphasis":
			return &Emphasis{Content: []Node{&Text{Value: from.Value}}}, true
		case "schema:Strong":
			return &Strong{Content: []Node{&Text{Value: from.Value}}}, true
		}
	case *Emphasis:
		if toTag == "schema:Text" && len(from.Content) == 1 {
			if t, ok := from.Content[0].(*Text); ok {
				return &Text{Value: t.Value}, true
			}
		}
		if toTag == "schema:Strong" {
			return &Strong{Content: from.Content}, true
		}
	case *Strong:
		if toTag == "schema:Text" && len(from.Content) == 1 {
			if t, ok := from.Content[0].(*Text); ok {
				return &Text{Value: t.Value}, true
			}
		}
		if toTag == "schema:Emphasis" {
			return &Emphasis{Content: from.Content}, true
		}
	}
	return nil, false
}
