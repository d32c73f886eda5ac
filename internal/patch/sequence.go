package patch

import (
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/stencila-go/docengine/internal/schema"
)

// diffSequence computes the diff of two node sequences, per spec.md
// §4.2.1. It is ported from the reference Rust implementation's
// Patience-diff-over-identity-hashes algorithm
// (node-patch/src/vecs.rs), substituting a Myers diff (sergi/go-diff)
// over a token encoding of per-element identity hashes for the
// Patience-diff primitive: each distinct hash becomes one Unicode
// private-use-area rune, the two sequences become "text", and
// diffmatchpatch.DiffMain finds the longest common subsequence of
// tokens. The result is walked exactly as vecs.rs walks similar's
// DiffOp stream, including Add/Remove -> Move coalescing and
// element-wise Replace recursion.
func diffSequence(d *Differ, addr Address, a, b []schema.Node) {
	if len(a) == 0 && len(b) == 0 {
		return
	}
	if len(a) == 0 {
		d.append(AddOp(addr.With(Index(0)), NodesValue(cloneAll(b)), len(b)))
		return
	}
	if len(b) == 0 {
		d.append(RemoveOp(addr.With(Index(0)), len(a)))
		return
	}
	if d.timedOut() {
		d.append(ReplaceOp(addr.With(Index(0)), len(a), NodesValue(cloneAll(b)), len(b)))
		return
	}

	// Every op this function appends addresses addr.With(Index(...)), so
	// a direct child splice of *this* sequence always has this address
	// length; move-coalescing must only match against those, never an
	// op nested deeper by runReplace's recursive diffNode call.
	childLen := len(addr) + 1

	table := newIDTable()
	aTokens := table.encode(a)
	bTokens := table.encode(b)

	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(aTokens, bTokens, false)
	runs := coalesceReplaces(toRuns(diffs))

	index := 0
	var ops []Operation
	removes := map[int][2]int{} // sequence index -> (oldIndex, oldLen)

	for _, run := range runs {
		switch run.kind {
		case runEqual:
			index += run.newLen

		case runInsert:
			addedValue := b[run.newIndex : run.newIndex+run.newLen]
			matched := false
			shift := 0
			for prev := len(ops) - 1; prev >= 0; prev-- {
				op := ops[prev]
				switch op.Op {
				case OpAdd:
					if len(op.Address) == childLen {
						shift -= op.Length
					}
				case OpRemove:
					if len(op.Address) == childLen {
						shift += op.Items
						removeIndex := op.Address[len(op.Address)-1].Int()
						removed, ok := removes[removeIndex]
						if !ok {
							continue
						}
						removedValue := a[removed[0] : removed[0]+removed[1]]
						if nodesEqual(addedValue, removedValue) {
							ops[prev] = MoveOp(op.Address, op.Items, addr.With(Index(index+shift-op.Items)))
							matched = true
						}
					}
				case OpReplace:
					if len(op.Address) == childLen {
						shift -= op.Length - op.Items
					}
				}
				if matched {
					break
				}
			}
			if !matched {
				ops = append(ops, AddOp(addr.With(Index(index)), NodesValue(cloneAll(addedValue)), run.newLen))
			}
			index += run.newLen

		case runDelete:
			removedValue := a[run.oldIndex : run.oldIndex+run.oldLen]
			matched := false
			shift := 0
			for prev := len(ops) - 1; prev >= 0; prev-- {
				op := ops[prev]
				switch op.Op {
				case OpAdd:
					if len(op.Address) == childLen {
						shift -= op.Length
						addedNodes, err := op.Value.Nodes()
						if err == nil && nodesEqual(addedNodes, removedValue) {
							ops[prev] = MoveOp(addr.With(Index(index+shift)), run.oldLen, op.Address)
							matched = true
						}
					}
				case OpRemove:
					if len(op.Address) == childLen {
						shift += op.Items
					}
				case OpReplace:
					if len(op.Address) == childLen {
						shift -= op.Length - op.Items
					}
				}
				if matched {
					break
				}
			}
			if !matched {
				ops = append(ops, RemoveOp(addr.With(Index(index)), run.oldLen))
				removes[index] = [2]int{run.oldIndex, run.oldLen}
			}

		case runReplace:
			var replaceOps []Operation
			minLen := run.oldLen
			if run.newLen < minLen {
				minLen = run.newLen
			}
			for i := 0; i < minLen; i++ {
				item := &Differ{deadline: d.deadline}
				diffNode(item, addr.With(Index(index)), a[run.oldIndex+i], b[run.newIndex+i])
				index++

				itemOps := item.ops
				if len(itemOps) == 1 && itemOps[0].Op == OpReplace && len(itemOps[0].Address) == childLen {
					replaceOps = append(replaceOps, ReplaceOp(itemOps[0].Address, 1, NodeValue(b[run.newIndex+i].Clone()), 1))
					continue
				}
				replaceOps = append(replaceOps, itemOps...)
			}

			switch {
			case run.newLen > run.oldLen:
				length := run.newLen - run.oldLen
				replaceOps = append(replaceOps, AddOp(
					addr.With(Index(index)),
					NodesValue(cloneAll(b[run.newIndex+run.oldLen:run.newIndex+run.newLen])),
					length,
				))
				index += length
			case run.newLen < run.oldLen:
				remove := true
				if n := len(replaceOps); n > 0 {
					last := &replaceOps[n-1]
					if last.Op == OpReplace && len(last.Address) == childLen {
						last.Items += run.oldLen - run.newLen
						remove = false
					}
				}
				if remove {
					replaceOps = append(replaceOps, RemoveOp(addr.With(Index(index)), run.oldLen-run.newLen))
					removes[index] = [2]int{run.oldIndex, run.oldLen}
				}
			}

			ops = append(ops, replaceOps...)
		}
	}

	d.append(ops...)
}

func cloneAll(nodes []schema.Node) []schema.Node {
	out := make([]schema.Node, len(nodes))
	for i, n := range nodes {
		out[i] = n.Clone()
	}
	return out
}

func nodesEqual(a, b []schema.Node) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}

// --- identity-hash token encoding ---

type idTable struct {
	next rune
	ids  map[uint64]rune
}

// privateUseStart/End bound the Basic Multilingual Plane's private-use
// area; pastDocuments with more than ~6400 distinct child identities
// spill into the supplementary private-use plane A.
const (
	privateUseStart = 0xE000
	privateUseEnd   = 0xF8FF
	privateUseAStart = 0xF0000
)

func newIDTable() *idTable {
	return &idTable{next: privateUseStart, ids: map[uint64]rune{}}
}

func (t *idTable) encode(nodes []schema.Node) string {
	var sb strings.Builder
	for _, n := range nodes {
		h := n.Hash()
		r, ok := t.ids[h]
		if !ok {
			r = t.next
			t.ids[h] = r
			t.next++
			if t.next == privateUseEnd {
				t.next = privateUseAStart
			}
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

// --- diff run classification ---

type runKind int

const (
	runEqual runKind = iota
	runInsert
	runDelete
	runReplace
)

type run struct {
	kind                         runKind
	oldIndex, oldLen             int
	newIndex, newLen             int
}

// toRuns converts diffmatchpatch's rune-level diff into index/length
// runs over the original node sequences (one rune == one node, by
// construction of idTable.encode).
func toRuns(diffs []diffmatchpatch.Diff) []run {
	var runs []run
	oldIndex, newIndex := 0, 0
	for _, diff := range diffs {
		n := len([]rune(diff.Text))
		switch diff.Type {
		case diffmatchpatch.DiffEqual:
			runs = append(runs, run{kind: runEqual, oldIndex: oldIndex, oldLen: n, newIndex: newIndex, newLen: n})
			oldIndex += n
			newIndex += n
		case diffmatchpatch.DiffDelete:
			runs = append(runs, run{kind: runDelete, oldIndex: oldIndex, oldLen: n})
			oldIndex += n
		case diffmatchpatch.DiffInsert:
			runs = append(runs, run{kind: runInsert, newIndex: newIndex, newLen: n})
			newIndex += n
		}
	}
	return runs
}

// coalesceReplaces merges an adjacent Delete/Insert pair (in either
// order) into a single Replace run, matching similar::DiffOp::Replace's
// behaviour (diffmatchpatch, unlike similar, never emits Replace
// directly).
func coalesceReplaces(runs []run) []run {
	var out []run
	i := 0
	for i < len(runs) {
		if i+1 < len(runs) {
			a, b := runs[i], runs[i+1]
			if a.kind == runDelete && b.kind == runInsert {
				out = append(out, run{kind: runReplace, oldIndex: a.oldIndex, oldLen: a.oldLen, newIndex: b.newIndex, newLen: b.newLen})
				i += 2
				continue
			}
			if a.kind == runInsert && b.kind == runDelete {
				out = append(out, run{kind: runReplace, oldIndex: b.oldIndex, oldLen: b.oldLen, newIndex: a.newIndex, newLen: a.newLen})
				i += 2
				continue
			}
		}
		out = append(out, runs[i])
		i++
	}
	return out
}
