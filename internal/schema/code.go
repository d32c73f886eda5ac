package schema

import "github.com/stencila-go/docengine/internal/message"

// CodeExpression is an inline executable expression. ExecutionCache-like
// fields (Outputs, Messages) are NoWalk: the patch engine never descends
// into execution results, only into Code/ProgrammingLanguage.
type CodeExpression struct {
	ID                  string
	Code                string
	ProgrammingLanguage string

	Outputs  []Node                     // NoWalk
	Messages []message.ExecutionMessage // NoWalk
}

func (c *CodeExpression) Type() string     { return "stencila:CodeExpression" }
func (c *CodeExpression) Nickname() string { return "cde" }
func (c *CodeExpression) Hash() uint64 {
	return fnvHash(hashString(c.Type()), hashString(c.Code), hashString(c.ProgrammingLanguage))
}
func (c *CodeExpression) Equal(o Node) bool {
	oc, ok := o.(*CodeExpression)
	return ok && oc.Code == c.Code && oc.ProgrammingLanguage == c.ProgrammingLanguage
}
func (c *CodeExpression) Clone() Node {
	cl := *c
	cl.Outputs = append([]Node(nil), c.Outputs...)
	cl.Messages = append([]message.ExecutionMessage(nil), c.Messages...)
	return &cl
}
func (c *CodeExpression) inlineMarker() {}

// CodeChunk is a block of executable source code.
type CodeChunk struct {
	ID                  string
	Code                string
	ProgrammingLanguage string

	Outputs  []Node                     // NoWalk
	Messages []message.ExecutionMessage // NoWalk
}

func (c *CodeChunk) Type() string     { return "stencila:CodeChunk" }
func (c *CodeChunk) Nickname() string { return "cdc" }
func (c *CodeChunk) Hash() uint64 {
	return fnvHash(hashString(c.Type()), hashString(c.Code), hashString(c.ProgrammingLanguage))
}
func (c *CodeChunk) Equal(o Node) bool {
	oc, ok := o.(*CodeChunk)
	return ok && oc.Code == c.Code && oc.ProgrammingLanguage == c.ProgrammingLanguage
}
func (c *CodeChunk) Clone() Node {
	cl := *c
	cl.Outputs = append([]Node(nil), c.Outputs...)
	cl.Messages = append([]message.ExecutionMessage(nil), c.Messages...)
	return &cl
}
func (c *CodeChunk) blockMarker() {}

// CodeBlock is a non-executable, syntax-highlighted block of source code.
type CodeBlock struct {
	ID                  string
	Code                string
	ProgrammingLanguage string
}

func (c *CodeBlock) Type() string     { return "schema:CodeBlock" }
func (c *CodeBlock) Nickname() string { return "cdb" }
func (c *CodeBlock) Hash() uint64 {
	return fnvHash(hashString(c.Type()), hashString(c.Code), hashString(c.ProgrammingLanguage))
}
func (c *CodeBlock) Equal(o Node) bool {
	oc, ok := o.(*CodeBlock)
	return ok && oc.Code == c.Code && oc.ProgrammingLanguage == c.ProgrammingLanguage
}
func (c *CodeBlock) Clone() Node   { cl := *c; return &cl }
func (c *CodeBlock) blockMarker() {}
