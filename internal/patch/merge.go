package patch

import "github.com/stencila-go/docengine/internal/schema"

// Merge combines an ancestor and n derived versions into one result,
// per spec.md §4.2.3: it diffs the ancestor against each derived
// version (in ascending conflict-winner order) and applies the
// resulting patches in order, so a later derived version's change to
// the same location wins over an earlier one.
//
// This is the provisional, non-rebasing merge spec.md §9 flags as an
// open item: patch Pᵢ is computed against the ancestor but applied
// against the state left by P₁…Pᵢ₋₁, so an address inside Pᵢ can be
// stale by the time it is applied if an earlier patch already changed
// the shape of the tree at or before that address. A full fix requires
// transforming each patch's addresses against every previously-applied
// patch (operational-transform style) before applying it; that
// transform is not implemented here.
func Merge(ancestor schema.Node, derived ...schema.Node) (schema.Node, error) {
	result := ancestor.Clone()
	for _, d := range derived {
		p, err := Diff(ancestor, d)
		if err != nil {
			return result, err
		}
		result, err = Apply(result, p)
		if err != nil {
			return result, err
		}
	}
	return result, nil
}
