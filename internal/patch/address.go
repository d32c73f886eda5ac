// Package patch implements the structural diff/apply/merge engine of
// spec.md §4.2: addresses, values, operations, a Myers-diff-based sequence
// differ with move coalescing, in-place apply, and a provisional
// (non-rebasing) three-way merge.
package patch

import (
	"encoding/json"
	"fmt"
)

// Slot is one element of an Address: either a property name or a
// sequence index.
type Slot struct {
	isIndex bool
	prop    string
	index   int
}

// Prop builds a property-name slot.
func Prop(name string) Slot { return Slot{prop: name} }

// Index builds a sequence-index slot.
func Index(i int) Slot { return Slot{isIndex: true, index: i} }

// IsIndex reports whether the slot is an integer index (vs. a property
// name).
func (s Slot) IsIndex() bool { return s.isIndex }

// Int returns the index value; only meaningful if IsIndex() is true.
func (s Slot) Int() int { return s.index }

// Name returns the property name; only meaningful if IsIndex() is false.
func (s Slot) Name() string { return s.prop }

func (s Slot) String() string {
	if s.isIndex {
		return fmt.Sprintf("[%d]", s.index)
	}
	return s.prop
}

// Address is an ordered sequence of slots locating a sub-node or a splice
// point in a parent sequence. The empty address refers to the root.
// Addresses are compared by structural equality.
type Address []Slot

// With returns a new address with slot appended (Address is treated as
// immutable by callers; diff/apply build addresses by extension, never
// by mutating a shared backing array).
func (a Address) With(s Slot) Address {
	out := make(Address, len(a)+1)
	copy(out, a)
	out[len(a)] = s
	return out
}

// Equal reports structural equality between two addresses.
func (a Address) Equal(b Address) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].isIndex != b[i].isIndex || a[i].prop != b[i].prop || a[i].index != b[i].index {
			return false
		}
	}
	return true
}

// Clone returns a copy of the address.
func (a Address) Clone() Address {
	out := make(Address, len(a))
	copy(out, a)
	return out
}

// MarshalJSON encodes the address as a sequence of strings/integers, per
// spec.md §6's "Patch JSON format".
func (a Address) MarshalJSON() ([]byte, error) {
	raw := make([]any, len(a))
	for i, s := range a {
		if s.isIndex {
			raw[i] = s.index
		} else {
			raw[i] = s.prop
		}
	}
	if raw == nil {
		raw = []any{}
	}
	return json.Marshal(raw)
}

// UnmarshalJSON decodes an address from its wire form.
func (a *Address) UnmarshalJSON(data []byte) error {
	var raw []any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(Address, len(raw))
	for i, v := range raw {
		switch vv := v.(type) {
		case float64:
			out[i] = Index(int(vv))
		case string:
			out[i] = Prop(vv)
		default:
			return fmt.Errorf("invalid address slot at index %d: %v", i, v)
		}
	}
	*a = out
	return nil
}
