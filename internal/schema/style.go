package schema

// Styled is block content with a styling Code (e.g. a CSS class list or a
// Pandoc-style div attribute string) in an optional StyleLanguage.
type Styled struct {
	ID            string
	Code          string
	StyleLanguage string
	Content       []Node // Block
}

func (s *Styled) Type() string      { return "stencila:Styled" }
func (s *Styled) Nickname() string  { return "sty" }
func (s *Styled) Children() *[]Node { return &s.Content }
func (s *Styled) Hash() uint64 {
	return fnvHash(hashString(s.Type()), hashString(s.Code), hashString(s.StyleLanguage), hashChildren(s.Content))
}
func (s *Styled) Equal(o Node) bool {
	os_, ok := o.(*Styled)
	if !ok || os_.Code != s.Code || os_.StyleLanguage != s.StyleLanguage || len(os_.Content) != len(s.Content) {
		return false
	}
	for i, c := range s.Content {
		if !c.Equal(os_.Content[i]) {
			return false
		}
	}
	return true
}
func (s *Styled) Clone() Node {
	cl := &Styled{ID: s.ID, Code: s.Code, StyleLanguage: s.StyleLanguage, Content: make([]Node, len(s.Content))}
	for i, c := range s.Content {
		cl.Content[i] = c.Clone()
	}
	return cl
}
func (s *Styled) blockMarker() {}
