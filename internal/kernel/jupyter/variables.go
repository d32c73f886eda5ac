package jupyter

import (
	"encoding/json"
	"strings"

	"github.com/stencila-go/docengine/internal/kernel"
	"github.com/stencila-go/docengine/internal/message"
	"github.com/stencila-go/docengine/internal/schema"
)

// The Jupyter protocol has no native package/variable-introspection
// request; Packages/List/Get inject small Python snippets that print a
// JSON line to stdout, which arrives as a "stream" IOPub message rather
// than an execute_result, and Set injects an assignment from a quoted
// JSON string (Info returns a fixed description and injects nothing) (spec.md §4.3.4: "variable
// operations are emulated by injecting language-specific code").

const pythonPackagesSnippet = `
import json as _docengine_json
try:
    import importlib.metadata as _docengine_md
    _docengine_pkgs = [{"name": d.metadata["Name"], "version": d.version} for d in _docengine_md.distributions()]
except Exception:
    _docengine_pkgs = []
print(_docengine_json.dumps(_docengine_pkgs))
`

const pythonListSnippet = `
import json as _docengine_json
_docengine_vars = []
for _docengine_name, _docengine_val in list(globals().items()):
    if _docengine_name.startswith("_docengine_") or _docengine_name.startswith("__"):
        continue
    _docengine_vars.append({"name": _docengine_name, "type": type(_docengine_val).__name__})
print(_docengine_json.dumps(_docengine_vars))
`

const pythonGetSnippet = `
import json as _docengine_json
try:
    print(_docengine_json.dumps(%s))
except TypeError:
    print(_docengine_json.dumps(str(%s)))
`

const pythonSetSnippet = `
import json as _docengine_json
%s = _docengine_json.loads(%q)
`

// streamText concatenates every plain string node collected as output
// during an execute, which is where the injected snippets' print()
// output lands now that applyIOPub routes stdout stream content into
// ExecResult.Outputs rather than Messages (matching jsruntime's
// console.log-to-outputs behaviour).
func streamText(outputs []schema.Node) string {
	var b strings.Builder
	for _, n := range outputs {
		if s, ok := n.(*schema.StringNode); ok {
			b.WriteString(s.Value)
		}
	}
	return strings.TrimSpace(b.String())
}

func packagesFromStream(outputs []schema.Node) []kernel.Package {
	var raw []struct {
		Name    string `json:"name"`
		Version string `json:"version"`
	}
	if err := json.Unmarshal([]byte(streamText(outputs)), &raw); err != nil {
		return nil
	}
	packages := make([]kernel.Package, len(raw))
	for i, r := range raw {
		packages[i] = kernel.Package{Name: r.Name, Version: r.Version}
	}
	return packages
}

// nodeFromStream decodes the plain JSON value an injected get snippet
// printed into a schema node, applying the same primitive mapping
// jsruntime uses for goja values: no "type" tag means no Stencila node
// shape, so the JSON value's own shape becomes Null/Boolean/Integer/
// Number/String/Array/Object.
func nodeFromStream(outputs []schema.Node) (schema.Node, bool) {
	text := streamText(outputs)
	if text == "" {
		return nil, false
	}
	var v any
	if err := json.Unmarshal([]byte(text), &v); err != nil {
		return nil, false
	}
	return nodeFromJSONValue(v), true
}

func nodeFromJSONValue(v any) schema.Node {
	switch val := v.(type) {
	case nil:
		return &schema.NullNode{}
	case bool:
		return &schema.BooleanNode{Value: val}
	case float64:
		if val == float64(int64(val)) {
			return &schema.IntegerNode{Value: int64(val)}
		}
		return &schema.NumberNode{Value: val}
	case string:
		return &schema.StringNode{Value: val}
	case []any:
		items := make([]schema.Node, len(val))
		for i, e := range val {
			items[i] = nodeFromJSONValue(e)
		}
		return &schema.ArrayNode{Items: items}
	case map[string]any:
		entries := make([]schema.ObjectEntry, 0, len(val))
		for k, e := range val {
			entries = append(entries, schema.ObjectEntry{Key: k, Value: nodeFromJSONValue(e)})
		}
		return &schema.ObjectNode{Entries: entries}
	default:
		return &schema.NullNode{}
	}
}

func variablesFromStream(outputs []schema.Node, language string) []message.VariableDescriptor {
	var raw []struct {
		Name string `json:"name"`
		Type string `json:"type"`
	}
	if err := json.Unmarshal([]byte(streamText(outputs)), &raw); err != nil {
		return nil
	}
	out := make([]message.VariableDescriptor, len(raw))
	for i, r := range raw {
		out[i] = message.VariableDescriptor{
			Name:                r.Name,
			NativeType:          r.Type,
			ProgrammingLanguage: language,
		}
	}
	return out
}
