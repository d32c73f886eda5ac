package schema

// MathInline is inline math with source Code in MathLanguage (e.g. "tex").
type MathInline struct {
	ID           string
	Code         string
	MathLanguage string
}

func (m *MathInline) Type() string     { return "stencila:MathInline" }
func (m *MathInline) Nickname() string { return "mti" }
func (m *MathInline) Hash() uint64 {
	return fnvHash(hashString(m.Type()), hashString(m.Code), hashString(m.MathLanguage))
}
func (m *MathInline) Equal(o Node) bool {
	om, ok := o.(*MathInline)
	return ok && om.Code == m.Code && om.MathLanguage == m.MathLanguage
}
func (m *MathInline) Clone() Node { c := *m; return &c }
func (m *MathInline) inlineMarker() {}

// MathBlock is a displayed block of math, same shape as MathInline.
type MathBlock struct {
	ID           string
	Code         string
	MathLanguage string
}

func (m *MathBlock) Type() string     { return "stencila:MathBlock" }
func (m *MathBlock) Nickname() string { return "mtb" }
func (m *MathBlock) Hash() uint64 {
	return fnvHash(hashString(m.Type()), hashString(m.Code), hashString(m.MathLanguage))
}
func (m *MathBlock) Equal(o Node) bool {
	om, ok := o.(*MathBlock)
	return ok && om.Code == m.Code && om.MathLanguage == m.MathLanguage
}
func (m *MathBlock) Clone() Node { c := *m; return &c }
func (m *MathBlock) blockMarker() {}
