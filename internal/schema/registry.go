package schema

import (
	"encoding/json"
	"fmt"
)

// aliases maps a property's authoritative name to the boundary spellings
// a decoder should also accept: kebab-case, snake_case, and (for array
// properties) the singular form. Resolved only at the JSON boundary —
// nothing past UnmarshalNode ever sees an alias.
var aliases = map[string]string{
	"programming-language": "programmingLanguage",
	"programming_language": "programmingLanguage",
	"math-language":        "mathLanguage",
	"math_language":        "mathLanguage",
	"style-language":       "styleLanguage",
	"style_language":       "styleLanguage",
	"content-url":          "contentUrl",
	"content_url":          "contentUrl",
	"media-type":           "mediaType",
	"media_type":           "mediaType",
	"author":               "authors", // singular form of an array property
	"row":                  "rows",
}

func canonicalKey(k string) string {
	if c, ok := aliases[k]; ok {
		return c
	}
	return k
}

// MarshalNode encodes a node to its canonical JSON form: a "type" tag
// plus the variant's properties, keys in encoding/json's sorted map-key
// order (not declaration order), with optional properties
// folded into the top-level object (spec.md §3: "required properties...
// optional properties bundled in an options sub-record" — at the Go
// value level; the wire form flattens options, matching how the
// reference JSON Schema emits stencila documents).
func MarshalNode(n Node) ([]byte, error) {
	return json.Marshal(encodeNode(n))
}

func encodeNode(n Node) map[string]any {
	if n == nil {
		return nil
	}
	m := map[string]any{"type": n.Type()}
	switch v := n.(type) {
	case *Text:
		m["value"] = v.Value
	case *Emphasis:
		m["content"] = encodeNodes(v.Content)
	case *Strong:
		m["content"] = encodeNodes(v.Content)
	case *Paragraph:
		m["content"] = encodeNodes(v.Content)
	case *Heading:
		m["level"] = v.Level
		m["content"] = encodeNodes(v.Content)
	case *MathInline:
		m["code"] = v.Code
		m["mathLanguage"] = v.MathLanguage
	case *MathBlock:
		m["code"] = v.Code
		m["mathLanguage"] = v.MathLanguage
	case *CodeExpression:
		m["code"] = v.Code
		m["programmingLanguage"] = v.ProgrammingLanguage
	case *CodeChunk:
		m["code"] = v.Code
		m["programmingLanguage"] = v.ProgrammingLanguage
	case *CodeBlock:
		m["code"] = v.Code
		m["programmingLanguage"] = v.ProgrammingLanguage
	case *TableCell:
		m["content"] = encodeNodes(v.Content)
	case *TableRow:
		m["content"] = encodeNodes(v.Content)
	case *Table:
		m["rows"] = encodeNodes(v.Rows)
		if len(v.Caption) > 0 {
			m["caption"] = encodeNodes(v.Caption)
		}
	case *Datatable:
		cols := make([]map[string]any, len(v.Columns))
		for i, c := range v.Columns {
			cols[i] = map[string]any{"name": c.Name, "values": c.Values}
		}
		m["columns"] = cols
	case *NullNode:
		// no extra fields
	case *BooleanNode:
		m["value"] = v.Value
	case *IntegerNode:
		m["value"] = v.Value
	case *NumberNode:
		m["value"] = v.Value
	case *StringNode:
		m["value"] = v.Value
	case *ArrayNode:
		m["value"] = encodeNodes(v.Items)
	case *ObjectNode:
		entries := make([]map[string]any, len(v.Entries))
		for i, e := range v.Entries {
			entries[i] = map[string]any{"key": e.Key, "value": encodeNode(e.Value)}
		}
		m["value"] = entries
	case *ImageObject:
		m["contentUrl"] = v.ContentURL
		if v.MediaType != "" {
			m["mediaType"] = v.MediaType
		}
		if len(v.Caption) > 0 {
			m["caption"] = encodeNodes(v.Caption)
		}
	case *IfBlock:
		clauses := make([]map[string]any, len(v.Clauses))
		for i, c := range v.Clauses {
			clauses[i] = map[string]any{"code": c.Code, "content": encodeNodes(c.Content)}
		}
		m["clauses"] = clauses
	case *ForBlock:
		m["variable"] = v.Variable
		m["code"] = v.Code
		m["content"] = encodeNodes(v.Content)
	case *Styled:
		m["code"] = v.Code
		m["styleLanguage"] = v.StyleLanguage
		m["content"] = encodeNodes(v.Content)
	case *InsertBlock:
		m["content"] = encodeNodes(v.Content)
	case *DeleteBlock:
		m["content"] = encodeNodes(v.Content)
	case *Article:
		m["content"] = encodeNodes(v.Content)
		if v.Options.Title != "" {
			m["title"] = v.Options.Title
		}
		if len(v.Options.Authors) > 0 {
			m["authors"] = v.Options.Authors
		}
	}
	return m
}

func encodeNodes(ns []Node) []map[string]any {
	out := make([]map[string]any, len(ns))
	for i, n := range ns {
		out[i] = encodeNode(n)
	}
	return out
}

// UnmarshalNode decodes the canonical JSON form produced by MarshalNode
// (or a boundary-tolerant variant using property aliases) back into a
// Node.
func UnmarshalNode(data []byte) (Node, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("unmarshaling node: %w", err)
	}
	norm := make(map[string]json.RawMessage, len(raw))
	for k, v := range raw {
		norm[canonicalKey(k)] = v
	}
	return decodeNode(norm)
}

func str(m map[string]json.RawMessage, key string) string {
	var s string
	if raw, ok := m[key]; ok {
		_ = json.Unmarshal(raw, &s)
	}
	return s
}

func intVal(m map[string]json.RawMessage, key string) int {
	var i int
	if raw, ok := m[key]; ok {
		_ = json.Unmarshal(raw, &i)
	}
	return i
}

func boolVal(m map[string]json.RawMessage, key string) bool {
	var b bool
	if raw, ok := m[key]; ok {
		_ = json.Unmarshal(raw, &b)
	}
	return b
}

func numVal(m map[string]json.RawMessage, key string) float64 {
	var f float64
	if raw, ok := m[key]; ok {
		_ = json.Unmarshal(raw, &f)
	}
	return f
}

func int64Val(m map[string]json.RawMessage, key string) int64 {
	var i int64
	if raw, ok := m[key]; ok {
		_ = json.Unmarshal(raw, &i)
	}
	return i
}

func nodesVal(m map[string]json.RawMessage, key string) ([]Node, error) {
	raw, ok := m[key]
	if !ok {
		return nil, nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, err
	}
	out := make([]Node, len(items))
	for i, item := range items {
		n, err := UnmarshalNode(item)
		if err != nil {
			return nil, err
		}
		out[i] = n
	}
	return out, nil
}

func decodeNode(m map[string]json.RawMessage) (Node, error) {
	typ := str(m, "type")
	switch typ {
	case "schema:Text":
		return &Text{Value: str(m, "value")}, nil
	case "schema:Emphasis":
		content, err := nodesVal(m, "content")
		return &Emphasis{Content: content}, err
	case "schema:Strong":
		content, err := nodesVal(m, "content")
		return &Strong{Content: content}, err
	case "schema:Paragraph":
		content, err := nodesVal(m, "content")
		return &Paragraph{Content: content}, err
	case "schema:Heading":
		content, err := nodesVal(m, "content")
		return &Heading{Level: intVal(m, "level"), Content: content}, err
	case "stencila:MathInline":
		return &MathInline{Code: str(m, "code"), MathLanguage: str(m, "mathLanguage")}, nil
	case "stencila:MathBlock":
		return &MathBlock{Code: str(m, "code"), MathLanguage: str(m, "mathLanguage")}, nil
	case "stencila:CodeExpression":
		return &CodeExpression{Code: str(m, "code"), ProgrammingLanguage: str(m, "programmingLanguage")}, nil
	case "stencila:CodeChunk":
		return &CodeChunk{Code: str(m, "code"), ProgrammingLanguage: str(m, "programmingLanguage")}, nil
	case "schema:CodeBlock":
		return &CodeBlock{Code: str(m, "code"), ProgrammingLanguage: str(m, "programmingLanguage")}, nil
	case "stencila:TableCell":
		content, err := nodesVal(m, "content")
		return &TableCell{Content: content}, err
	case "stencila:TableRow":
		content, err := nodesVal(m, "content")
		return &TableRow{Content: content}, err
	case "schema:Table":
		rows, err := nodesVal(m, "rows")
		if err != nil {
			return nil, err
		}
		caption, err := nodesVal(m, "caption")
		return &Table{Rows: rows, Caption: caption}, err
	case "stencila:IfBlock":
		raw, ok := m["clauses"]
		if !ok {
			return &IfBlock{}, nil
		}
		var rawClauses []map[string]json.RawMessage
		if err := json.Unmarshal(raw, &rawClauses); err != nil {
			return nil, err
		}
		clauses := make([]IfBlockClause, len(rawClauses))
		for i, rc := range rawClauses {
			content, err := nodesVal(rc, "content")
			if err != nil {
				return nil, err
			}
			clauses[i] = IfBlockClause{Code: str(rc, "code"), Content: content}
		}
		return &IfBlock{Clauses: clauses}, nil
	case "stencila:ForBlock":
		content, err := nodesVal(m, "content")
		return &ForBlock{Variable: str(m, "variable"), Code: str(m, "code"), Content: content}, err
	case "stencila:Styled":
		content, err := nodesVal(m, "content")
		return &Styled{Code: str(m, "code"), StyleLanguage: str(m, "styleLanguage"), Content: content}, err
	case "stencila:InsertBlock":
		content, err := nodesVal(m, "content")
		return &InsertBlock{Content: content}, err
	case "stencila:DeleteBlock":
		content, err := nodesVal(m, "content")
		return &DeleteBlock{Content: content}, err
	case "schema:Null":
		return &NullNode{}, nil
	case "schema:Boolean":
		return &BooleanNode{Value: boolVal(m, "value")}, nil
	case "schema:Integer":
		return &IntegerNode{Value: int64Val(m, "value")}, nil
	case "schema:Number":
		return &NumberNode{Value: numVal(m, "value")}, nil
	case "schema:String":
		return &StringNode{Value: str(m, "value")}, nil
	case "schema:Array":
		items, err := nodesVal(m, "value")
		return &ArrayNode{Items: items}, err
	case "schema:Object":
		raw, ok := m["value"]
		if !ok {
			return &ObjectNode{}, nil
		}
		var rawEntries []map[string]json.RawMessage
		if err := json.Unmarshal(raw, &rawEntries); err != nil {
			return nil, err
		}
		entries := make([]ObjectEntry, len(rawEntries))
		for i, re := range rawEntries {
			valRaw, ok := re["value"]
			if !ok {
				return nil, fmt.Errorf("object entry %d missing value", i)
			}
			val, err := UnmarshalNode(valRaw)
			if err != nil {
				return nil, err
			}
			entries[i] = ObjectEntry{Key: str(re, "key"), Value: val}
		}
		return &ObjectNode{Entries: entries}, nil
	case "stencila:Datatable":
		var cols []struct {
			Name   string `json:"name"`
			Values []any  `json:"values"`
		}
		if raw, ok := m["columns"]; ok {
			if err := json.Unmarshal(raw, &cols); err != nil {
				return nil, err
			}
		}
		columns := make([]DatatableColumn, len(cols))
		for i, c := range cols {
			columns[i] = DatatableColumn{Name: c.Name, Values: c.Values}
		}
		return &Datatable{Columns: columns}, nil
	case "schema:ImageObject":
		caption, err := nodesVal(m, "caption")
		return &ImageObject{ContentURL: str(m, "contentUrl"), MediaType: str(m, "mediaType"), Caption: caption}, err
	case "schema:Article":
		content, err := nodesVal(m, "content")
		if err != nil {
			return nil, err
		}
		var authors []string
		if raw, ok := m["authors"]; ok {
			_ = json.Unmarshal(raw, &authors)
		}
		return &Article{Content: content, Options: ArticleOptions{Title: str(m, "title"), Authors: authors}}, nil
	default:
		return nil, fmt.Errorf("unknown node variant type tag: %q", typ)
	}
}

// abstractTypes lists the variant tags that spec.md §4.1 marks "abstract"
// — they exist only for property-inheritance resolution at schema-load
// time and cannot be instantiated directly. Block and Inline are
// represented as Go interfaces rather than struct types, so this list
// documents the rule for completeness rather than gating construction.
var abstractTypes = map[string]bool{
	"stencila:Block":  true,
	"stencila:Inline": true,
}

// IsAbstract reports whether tag names a variant that cannot be
// instantiated on its own.
func IsAbstract(tag string) bool { return abstractTypes[tag] }

// properties documents the (required, ordered) and (optional) property
// descriptors of a representative set of variants, per spec.md §4.1's
// contract. Nothing in this module reads WalkFlag/StripScope: neither
// MarshalNode nor the patch engine consults this table.
var properties = map[string][]PropertyDescriptor{
	"schema:Paragraph": {
		{Name: "content", Required: true, Walk: Walk, Scope: StripContent},
	},
	"stencila:CodeChunk": {
		{Name: "code", Required: true, Walk: Walk, Scope: StripCode},
		{Name: "programmingLanguage", Required: false, Walk: Walk, Scope: StripCode},
		{Name: "outputs", Required: false, Walk: NoWalk, Scope: StripOutput},
		{Name: "messages", Required: false, Walk: NoWalk, Scope: StripExecution},
	},
	"schema:Article": {
		{Name: "content", Required: true, Walk: Walk, Scope: StripContent},
		{Name: "title", Required: false, Walk: Walk, Scope: StripMetadata},
		{Name: "authors", Required: false, Walk: Walk, Scope: StripMetadata},
	},
}

// Properties returns the documented property descriptors for tag, or nil
// if tag has none on file (not an error: most variants in this reference
// implementation rely on their hand-written Diff/Clone instead of the
// descriptor table).
func Properties(tag string) []PropertyDescriptor { return properties[tag] }
