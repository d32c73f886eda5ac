package schema

// Article is the root Works variant: a document's ordered block content
// plus bibliographic options. Concrete format codecs (out of scope per
// spec.md §1) decode into and encode out of this type.
type Article struct {
	ID      string
	Content []Node // Block

	Options ArticleOptions
}

// ArticleOptions bundles Article's optional properties.
type ArticleOptions struct {
	Title    string
	Authors  []string
	DateType string
}

func (a *Article) Type() string      { return "schema:Article" }
func (a *Article) Nickname() string  { return "art" }
func (a *Article) Children() *[]Node { return &a.Content }
func (a *Article) Hash() uint64 {
	return fnvHash(hashString(a.Type()), hashString(a.Options.Title), hashChildren(a.Content))
}
func (a *Article) Equal(o Node) bool {
	oa, ok := o.(*Article)
	if !ok || oa.Options.Title != a.Options.Title || len(oa.Content) != len(a.Content) {
		return false
	}
	for i, c := range a.Content {
		if !c.Equal(oa.Content[i]) {
			return false
		}
	}
	return true
}
func (a *Article) Clone() Node {
	cl := &Article{ID: a.ID, Options: a.Options, Content: make([]Node, len(a.Content))}
	cl.Options.Authors = append([]string(nil), a.Options.Authors...)
	for i, c := range a.Content {
		cl.Content[i] = c.Clone()
	}
	return cl
}
