package bplustree

import (
	"iter"

	"CairnDB/types"
)

// Iterator is a lazy, forward-only walk of the leaves in ascending key
// order. It is one-shot: obtain a fresh one per scan. The tree must not be
// mutated while an iterator is live.
//
// The walk carries its descent path as a stack of child cursors and steps
// to the next leaf through the parent, never through the stored sibling
// links: under copy-on-write a committed leaf's nextBlockId can name a
// block that was since freed and recycled for an unrelated node, so a link
// that resolves is not necessarily the successor. The path costs O(depth)
// memory and amortized O(1) per leaf, and is exact by construction.
type Iterator struct {
	tree  *BPlusTree
	path  []ChildCursor
	leaf  *Node
	index int

	start *startBound
	end   *endBound

	err  error
	done bool
}

type startBound struct {
	key       types.Value
	inclusive bool
}

type endBound struct {
	key       types.Value
	inclusive bool
	cmp       CompareFunc
}

// RangeOptions configures Range. Compare overrides the end-bound
// comparator; nil means the tree's own.
type RangeOptions struct {
	InclusiveStart bool
	InclusiveEnd   bool
	Compare        CompareFunc
}

// Entries iterates all pairs from the leftmost leaf.
func (t *BPlusTree) Entries() *Iterator {
	path, leaf, err := t.descend(func(n *Node) int { return 0 })
	it := &Iterator{tree: t, path: path, leaf: leaf, index: -1, err: err}
	if leaf == nil {
		it.done = true
	}
	return it
}

// EntriesFrom iterates pairs starting at the first key >= key. The descent
// takes the lower-bound child so duplicates of a separator key sitting in
// the left subtree are not skipped.
func (t *BPlusTree) EntriesFrom(key types.Value) *Iterator {
	path, leaf, err := t.descend(func(n *Node) int {
		return lowerBound(n.keys, key, t.cmp)
	})
	it := &Iterator{tree: t, path: path, leaf: leaf, err: err,
		start: &startBound{key: key, inclusive: true}}
	if leaf == nil {
		it.done = true
		return it
	}
	it.index = lowerBound(leaf.keys, key, t.cmp) - 1
	return it
}

// Range iterates pairs between start and end with configurable inclusivity.
func (t *BPlusTree) Range(start, end types.Value, opts RangeOptions) *Iterator {
	it := t.EntriesFrom(start)
	it.start.inclusive = opts.InclusiveStart
	cmp := opts.Compare
	if cmp == nil {
		cmp = t.cmp
	}
	it.end = &endBound{key: end, inclusive: opts.InclusiveEnd, cmp: cmp}
	return it
}

// Next advances to the following entry; false means exhausted or failed
// (check Err).
func (it *Iterator) Next() bool {
	if it.done || it.err != nil {
		return false
	}
	for {
		it.index++
		for it.leaf != nil && it.index >= it.leaf.Len() {
			if !it.advanceLeaf() {
				return false
			}
		}
		if it.leaf == nil {
			it.done = true
			return false
		}

		key := it.leaf.keys[it.index]
		if it.start != nil {
			c := it.tree.cmp(key, it.start.key)
			if c < 0 || (c == 0 && !it.start.inclusive) {
				continue
			}
			it.start = nil
		}
		if it.end != nil {
			c := it.end.cmp(key, it.end.key)
			if c > 0 || (c == 0 && !it.end.inclusive) {
				it.done = true
				return false
			}
		}
		return true
	}
}

func (it *Iterator) Key() types.Value   { return it.leaf.keys[it.index] }
func (it *Iterator) Value() types.Value { return it.leaf.vals[it.index] }
func (it *Iterator) Err() error         { return it.err }

// advanceLeaf steps to the next leaf in tree order: unwind the path to the
// deepest ancestor with a subtree to the right, then descend that subtree's
// leftmost spine.
func (it *Iterator) advanceLeaf() bool {
	for len(it.path) > 0 {
		top := &it.path[len(it.path)-1]
		if !top.MoveNext() {
			it.path = it.path[:len(it.path)-1]
			continue
		}
		n, err := it.tree.loadChild(top.Child())
		if err != nil {
			it.err = err
			return false
		}
		for !n.IsLeaf() {
			cur := n.ChildCursorAt(0)
			it.path = append(it.path, cur)
			if n, err = it.tree.loadChild(cur.Child()); err != nil {
				it.err = err
				return false
			}
		}
		it.leaf, it.index = n, 0
		return true
	}
	it.leaf = nil
	it.done = true
	return false
}

// Keys is a lazy view over the keys in ascending order. Iteration stops on
// a storage error; use Entries directly when the error matters.
func (t *BPlusTree) Keys() iter.Seq[types.Value] {
	return func(yield func(types.Value) bool) {
		it := t.Entries()
		for it.Next() {
			if !yield(it.Key()) {
				return
			}
		}
	}
}

// Values is the corresponding lazy view over values.
func (t *BPlusTree) Values() iter.Seq[types.Value] {
	return func(yield func(types.Value) bool) {
		it := t.Entries()
		for it.Next() {
			if !yield(it.Value()) {
				return
			}
		}
	}
}
