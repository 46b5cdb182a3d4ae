package bplustree

import "CairnDB/types"

// Cursors are position markers inside a single node. The tree performs all
// node-local lookups and mutations through them instead of re-scanning key
// slices at every step.

// LeafCursor sits between two entries of a leaf; the entry "after" the
// cursor is keys[pos].
type LeafCursor struct {
	n   *Node
	pos int
}

// CursorBeforeKey positions a cursor just before the first key >= key.
// isAtKey reports whether that key is an exact match.
func (n *Node) CursorBeforeKey(key types.Value, cmp CompareFunc) (LeafCursor, bool) {
	pos := lowerBound(n.keys, key, cmp)
	isAtKey := pos < len(n.keys) && cmp(n.keys[pos], key) == 0
	return LeafCursor{n: n, pos: pos}, isAtKey
}

// Insert places a pair at the cursor position, shifting later entries right.
func (c LeafCursor) Insert(key, val types.Value) {
	n := c.n
	n.keys = append(n.keys, types.Value{})
	copy(n.keys[c.pos+1:], n.keys[c.pos:])
	n.keys[c.pos] = key

	n.vals = append(n.vals, types.Value{})
	copy(n.vals[c.pos+1:], n.vals[c.pos:])
	n.vals[c.pos] = val
}

// KeyAfter returns the key just after the cursor, if any.
func (c LeafCursor) KeyAfter() (types.Value, bool) {
	if c.pos >= len(c.n.keys) {
		return types.Value{}, false
	}
	return c.n.keys[c.pos], true
}

// ValueAfter returns the value just after the cursor, if any.
func (c LeafCursor) ValueAfter() (types.Value, bool) {
	if c.pos >= len(c.n.vals) {
		return types.Value{}, false
	}
	return c.n.vals[c.pos], true
}

// RemovePairAfter deletes the entry just after the cursor.
func (c LeafCursor) RemovePairAfter() {
	n := c.n
	n.keys = append(n.keys[:c.pos], n.keys[c.pos+1:]...)
	n.vals = append(n.vals[:c.pos], n.vals[c.pos+1:]...)
}

// ChildCursor sits on child slot idx of an internal node. The separator
// "after" the cursor is keys[idx], between children idx and idx+1.
type ChildCursor struct {
	n   *Node
	idx int
}

func (n *Node) ChildCursorAt(idx int) ChildCursor {
	return ChildCursor{n: n, idx: idx}
}

// Child returns the block id of the child under the cursor.
func (c ChildCursor) Child() uint32 { return c.n.children[c.idx] }

// KeyAfter returns the separator just after the cursor, if any.
func (c ChildCursor) KeyAfter() (types.Value, bool) {
	if c.idx >= len(c.n.keys) {
		return types.Value{}, false
	}
	return c.n.keys[c.idx], true
}

func (c *ChildCursor) MoveNext() bool {
	if c.idx+1 >= len(c.n.children) {
		return false
	}
	c.idx++
	return true
}

func (c *ChildCursor) MovePrev() bool {
	if c.idx == 0 {
		return false
	}
	c.idx--
	return true
}

// ReplaceAfter splices the node in one step: children[idx:idx+count] become
// newChildren and the count-1 separators between them become newKeys. A
// split installs with count=1 (one slot becomes two children and one new
// separator); a merge installs with count=2 (two slots and the separator
// between them become one child).
func (c ChildCursor) ReplaceAfter(count int, newKeys []types.Value, newChildren []uint32) {
	n := c.n

	children := make([]uint32, 0, len(n.children)-count+len(newChildren))
	children = append(children, n.children[:c.idx]...)
	children = append(children, newChildren...)
	children = append(children, n.children[c.idx+count:]...)
	n.children = children

	keys := make([]types.Value, 0, len(n.keys)-(count-1)+len(newKeys))
	keys = append(keys, n.keys[:c.idx]...)
	keys = append(keys, newKeys...)
	keys = append(keys, n.keys[c.idx+count-1:]...)
	n.keys = keys
}
