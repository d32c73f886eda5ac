package schema

// TableCell holds block content for one cell of a TableRow.
type TableCell struct {
	ID      string
	Content []Node // Block
}

func (c *TableCell) Type() string      { return "stencila:TableCell" }
func (c *TableCell) Nickname() string  { return "tce" }
func (c *TableCell) Children() *[]Node { return &c.Content }
func (c *TableCell) Hash() uint64      { return fnvHash(hashString(c.Type()), hashChildren(c.Content)) }
func (c *TableCell) Equal(o Node) bool {
	oc, ok := o.(*TableCell)
	if !ok || len(oc.Content) != len(c.Content) {
		return false
	}
	for i, ch := range c.Content {
		if !ch.Equal(oc.Content[i]) {
			return false
		}
	}
	return true
}
func (c *TableCell) Clone() Node {
	cl := &TableCell{ID: c.ID, Content: make([]Node, len(c.Content))}
	for i, ch := range c.Content {
		cl.Content[i] = ch.Clone()
	}
	return cl
}

// TableRow is an ordered sequence of TableCells.
type TableRow struct {
	ID      string
	Content []Node // TableCell
}

func (r *TableRow) Type() string      { return "stencila:TableRow" }
func (r *TableRow) Nickname() string  { return "trw" }
func (r *TableRow) Children() *[]Node { return &r.Content }
func (r *TableRow) Hash() uint64      { return fnvHash(hashString(r.Type()), hashChildren(r.Content)) }
func (r *TableRow) Equal(o Node) bool {
	or_, ok := o.(*TableRow)
	if !ok || len(or_.Content) != len(r.Content) {
		return false
	}
	for i, ch := range r.Content {
		if !ch.Equal(or_.Content[i]) {
			return false
		}
	}
	return true
}
func (r *TableRow) Clone() Node {
	cl := &TableRow{ID: r.ID, Content: make([]Node, len(r.Content))}
	for i, ch := range r.Content {
		cl.Content[i] = ch.Clone()
	}
	return cl
}

// Table is a caption plus an ordered sequence of TableRows.
type Table struct {
	ID      string
	Caption []Node // Inline, optional
	Rows    []Node // TableRow
}

func (t *Table) Type() string      { return "schema:Table" }
func (t *Table) Nickname() string  { return "tbl" }
func (t *Table) Children() *[]Node { return &t.Rows }
func (t *Table) Hash() uint64 {
	return fnvHash(hashString(t.Type()), hashChildren(t.Caption), hashChildren(t.Rows))
}
func (t *Table) Equal(o Node) bool {
	ot, ok := o.(*Table)
	if !ok || len(ot.Rows) != len(t.Rows) || len(ot.Caption) != len(t.Caption) {
		return false
	}
	for i, r := range t.Rows {
		if !r.Equal(ot.Rows[i]) {
			return false
		}
	}
	for i, c := range t.Caption {
		if !c.Equal(ot.Caption[i]) {
			return false
		}
	}
	return true
}
func (t *Table) Clone() Node {
	cl := &Table{ID: t.ID, Caption: make([]Node, len(t.Caption)), Rows: make([]Node, len(t.Rows))}
	for i, c := range t.Caption {
		cl.Caption[i] = c.Clone()
	}
	for i, r := range t.Rows {
		cl.Rows[i] = r.Clone()
	}
	return cl
}
func (t *Table) blockMarker() {}

// Datatable is a kernel execution output: a set of named, typed columns.
// Its Columns are NoWalk — treated as an execution artifact, not prose.
type Datatable struct {
	ID      string
	Columns []DatatableColumn // NoWalk
}

// DatatableColumn is one column of a Datatable.
type DatatableColumn struct {
	Name   string
	Values []any
}

func (d *Datatable) Type() string     { return "stencila:Datatable" }
func (d *Datatable) Nickname() string { return "dtb" }
func (d *Datatable) Hash() uint64 {
	h := hashString(d.Type())
	for _, c := range d.Columns {
		h = fnvHash(h, hashString(c.Name), uint64(len(c.Values)))
	}
	return h
}
func (d *Datatable) Equal(o Node) bool {
	od, ok := o.(*Datatable)
	if !ok || len(od.Columns) != len(d.Columns) {
		return false
	}
	for i, c := range d.Columns {
		if c.Name != od.Columns[i].Name || len(c.Values) != len(od.Columns[i].Values) {
			return false
		}
	}
	return true
}
func (d *Datatable) Clone() Node {
	cl := &Datatable{ID: d.ID, Columns: make([]DatatableColumn, len(d.Columns))}
	for i, c := range d.Columns {
		cl.Columns[i] = DatatableColumn{Name: c.Name, Values: append([]any(nil), c.Values...)}
	}
	return cl
}
func (d *Datatable) blockMarker() {}
func (d *Datatable) inlineMarker() {}

// ImageObject is a kernel execution output for plots: a content URL
// (typically a data: URI carrying base64-encoded PNG bytes) plus an
// optional caption.
type ImageObject struct {
	ID         string
	ContentURL string
	MediaType  string
	Caption    []Node // NoWalk
}

func (i *ImageObject) Type() string     { return "schema:ImageObject" }
func (i *ImageObject) Nickname() string { return "img" }
func (i *ImageObject) Hash() uint64 {
	return fnvHash(hashString(i.Type()), hashString(i.ContentURL), hashString(i.MediaType))
}
func (i *ImageObject) Equal(o Node) bool {
	oi, ok := o.(*ImageObject)
	return ok && oi.ContentURL == i.ContentURL && oi.MediaType == i.MediaType
}
func (i *ImageObject) Clone() Node {
	cl := &ImageObject{ID: i.ID, ContentURL: i.ContentURL, MediaType: i.MediaType, Caption: make([]Node, len(i.Caption))}
	for idx, c := range i.Caption {
		cl.Caption[idx] = c.Clone()
	}
	return cl
}
func (i *ImageObject) blockMarker() {}
func (i *ImageObject) inlineMarker() {}
