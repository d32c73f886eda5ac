package patch

import "encoding/json"

// Op names one of the five patch operation variants (spec.md §3, §6).
type Op string

const (
	OpAdd       Op = "add"
	OpRemove    Op = "remove"
	OpReplace   Op = "replace"
	OpMove      Op = "move"
	OpTransform Op = "transform"
)

// Operation is one step of a Patch. Only the fields relevant to Op are
// populated; JSON encoding flattens them onto one object per spec.md §6
// ("Operations serialized as objects with op ... and the operation's
// typed fields").
type Operation struct {
	Op Op

	Address Address // Add, Remove, Replace, Transform
	Value   Value   // Add, Replace
	Length  int     // Add, Replace: length of the inserted payload

	Items int // Remove, Replace, Move: number of items affected

	From Address // Move
	To   Address // Move

	FromTag string // Transform
	ToTag   string // Transform
}

// AddOp builds an Add operation.
func AddOp(addr Address, value Value, length int) Operation {
	return Operation{Op: OpAdd, Address: addr, Value: value, Length: length}
}

// RemoveOp builds a Remove operation.
func RemoveOp(addr Address, items int) Operation {
	return Operation{Op: OpRemove, Address: addr, Items: items}
}

// ReplaceOp builds a Replace operation.
func ReplaceOp(addr Address, items int, value Value, length int) Operation {
	return Operation{Op: OpReplace, Address: addr, Items: items, Value: value, Length: length}
}

// MoveOp builds a Move operation.
func MoveOp(from Address, items int, to Address) Operation {
	return Operation{Op: OpMove, From: from, Items: items, To: to}
}

// TransformOp builds a Transform operation.
func TransformOp(addr Address, fromTag, toTag string) Operation {
	return Operation{Op: OpTransform, Address: addr, FromTag: fromTag, ToTag: toTag}
}

// Patch is an ordered sequence of operations. Order matters: later
// operations are interpreted against the state produced by applying
// earlier ones (spec.md §3).
type Patch []Operation

type jsonOperation struct {
	Op      Op       `json:"op"`
	Address Address  `json:"address,omitempty"`
	Value   *Value   `json:"value,omitempty"`
	Length  int      `json:"length,omitempty"`
	Items   int      `json:"items,omitempty"`
	From    Address  `json:"from,omitempty"`
	To      Address  `json:"to,omitempty"`
	FromTag string   `json:"from_type,omitempty"`
	ToTag   string   `json:"to_type,omitempty"`
}

// MarshalJSON encodes the operation per spec.md §6.
func (o Operation) MarshalJSON() ([]byte, error) {
	jo := jsonOperation{
		Op:      o.Op,
		Address: o.Address,
		Length:  o.Length,
		Items:   o.Items,
		From:    o.From,
		To:      o.To,
		FromTag: o.FromTag,
		ToTag:   o.ToTag,
	}
	if o.Op == OpAdd || o.Op == OpReplace {
		v := o.Value
		jo.Value = &v
	}
	return json.Marshal(jo)
}

// UnmarshalJSON decodes the operation from its wire form.
func (o *Operation) UnmarshalJSON(data []byte) error {
	var jo jsonOperation
	if err := json.Unmarshal(data, &jo); err != nil {
		return err
	}
	*o = Operation{
		Op:      jo.Op,
		Address: jo.Address,
		Length:  jo.Length,
		Items:   jo.Items,
		From:    jo.From,
		To:      jo.To,
		FromTag: jo.FromTag,
		ToTag:   jo.ToTag,
	}
	if jo.Value != nil {
		o.Value = *jo.Value
	}
	return nil
}
