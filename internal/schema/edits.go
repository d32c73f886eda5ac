package schema

// InsertBlock marks Content as a tracked insertion (e.g. during
// collaborative editing, before it is accepted into the main tree).
type InsertBlock struct {
	ID      string
	Content []Node // Block
}

func (b *InsertBlock) Type() string      { return "stencila:InsertBlock" }
func (b *InsertBlock) Nickname() string  { return "ins" }
func (b *InsertBlock) Children() *[]Node { return &b.Content }
func (b *InsertBlock) Hash() uint64      { return fnvHash(hashString(b.Type()), hashChildren(b.Content)) }
func (b *InsertBlock) Equal(o Node) bool {
	ob, ok := o.(*InsertBlock)
	if !ok || len(ob.Content) != len(b.Content) {
		return false
	}
	for i, c := range b.Content {
		if !c.Equal(ob.Content[i]) {
			return false
		}
	}
	return true
}
func (b *InsertBlock) Clone() Node {
	cl := &InsertBlock{ID: b.ID, Content: make([]Node, len(b.Content))}
	for i, c := range b.Content {
		cl.Content[i] = c.Clone()
	}
	return cl
}
func (b *InsertBlock) blockMarker() {}

// DeleteBlock marks Content as a tracked deletion.
type DeleteBlock struct {
	ID      string
	Content []Node // Block
}

func (b *DeleteBlock) Type() string      { return "stencila:DeleteBlock" }
func (b *DeleteBlock) Nickname() string  { return "del" }
func (b *DeleteBlock) Children() *[]Node { return &b.Content }
func (b *DeleteBlock) Hash() uint64      { return fnvHash(hashString(b.Type()), hashChildren(b.Content)) }
func (b *DeleteBlock) Equal(o Node) bool {
	ob, ok := o.(*DeleteBlock)
	if !ok || len(ob.Content) != len(b.Content) {
		return false
	}
	for i, c := range b.Content {
		if !c.Equal(ob.Content[i]) {
			return false
		}
	}
	return true
}
func (b *DeleteBlock) Clone() Node {
	cl := &DeleteBlock{ID: b.ID, Content: make([]Node, len(b.Content))}
	for i, c := range b.Content {
		cl.Content[i] = c.Clone()
	}
	return cl
}
func (b *DeleteBlock) blockMarker() {}
