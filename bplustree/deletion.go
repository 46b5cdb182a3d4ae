package bplustree

import (
	"fmt"

	"CairnDB/types"
)

// Delete removes the pair stored under key. Deleting an absent key is a
// no-op, not an error.
func (t *BPlusTree) Delete(key types.Value) error {
	rootID := t.store.Root()
	if rootID == NoNode {
		return nil
	}
	root, err := t.store.Load(rootID)
	if err != nil {
		return err
	}

	if root.IsLeaf() {
		cur, isAtKey := root.CursorBeforeKey(key, t.cmp)
		if !isAtKey {
			return nil
		}
		cur.RemovePairAfter()
		// the root leaf tolerates emptiness
		id, err := t.store.Persist(root)
		if err != nil {
			return err
		}
		if id != rootID {
			return t.store.SetRoot(id)
		}
		return nil
	}

	changed, err := t.deleteFrom(root, key)
	if err != nil || !changed {
		return err
	}

	// A merge may leave the root with a single childless slot; that child
	// becomes the new root and the tree shrinks by one level.
	if root.Len() == 0 && len(root.children) == 1 {
		childID := root.children[0]
		if err := t.store.Free(root); err != nil {
			return err
		}
		return t.store.SetRoot(childID)
	}

	id, err := t.store.Persist(root)
	if err != nil {
		return err
	}
	if id != rootID {
		return t.store.SetRoot(id)
	}
	return nil
}

// deleteFrom descends into internal node n and removes key from the leaf
// below. Underflow of a child is repaired here, in the parent's frame, so
// no node ever needs a stored parent reference. Reports whether anything
// was modified.
func (t *BPlusTree) deleteFrom(n *Node, key types.Value) (bool, error) {
	i := upperBound(n.keys, key, t.cmp)
	child, err := t.loadChild(n.ChildCursorAt(i).Child())
	if err != nil {
		return false, err
	}

	if child.IsLeaf() {
		cur, isAtKey := child.CursorBeforeKey(key, t.cmp)
		if !isAtKey {
			return false, nil
		}
		cur.RemovePairAfter()
	} else {
		changed, err := t.deleteFrom(child, key)
		if err != nil || !changed {
			return changed, err
		}
	}

	if child.Len() >= t.minKeys {
		id, err := t.store.Persist(child)
		if err != nil {
			return false, err
		}
		n.children[i] = id
		return true, nil
	}
	return true, t.repairUnderflow(n, i, child)
}

// repairUnderflow restores the occupancy of child (slot i of parent), in
// priority order: borrow from a left sibling with spare keys, borrow from a
// right sibling with spare keys, else merge (preferring left).
func (t *BPlusTree) repairUnderflow(parent *Node, i int, child *Node) error {
	var left, right *Node
	var err error
	if i > 0 {
		if left, err = t.loadChild(parent.children[i-1]); err != nil {
			return err
		}
	}
	if i < len(parent.children)-1 {
		if right, err = t.loadChild(parent.children[i+1]); err != nil {
			return err
		}
	}

	if left != nil && left.Len() > t.minKeys {
		return t.borrowFromLeft(parent, i, left, child)
	}
	if right != nil && right.Len() > t.minKeys {
		return t.borrowFromRight(parent, i, child, right)
	}
	if left != nil {
		return t.mergeChildren(parent, i-1, left, child)
	}
	if right != nil {
		return t.mergeChildren(parent, i, child, right)
	}
	return fmt.Errorf("%w: underfull node %d has no siblings", ErrCorrupted, child.id)
}

// borrowFromLeft shifts left's last element into child and adjusts the
// separator between them.
func (t *BPlusTree) borrowFromLeft(parent *Node, i int, left, child *Node) error {
	if left.IsLeaf() != child.IsLeaf() {
		return fmt.Errorf("%w: siblings %d and %d differ in kind", ErrCorrupted, left.id, child.id)
	}
	last := left.Len() - 1
	if child.IsLeaf() {
		child.keys = append([]types.Value{left.keys[last]}, child.keys...)
		child.vals = append([]types.Value{left.vals[last]}, child.vals...)
		left.keys = left.keys[:last]
		left.vals = left.vals[:last]
		parent.keys[i-1] = child.keys[0]
	} else {
		// rotate through the parent separator
		child.keys = append([]types.Value{parent.keys[i-1]}, child.keys...)
		child.children = append([]uint32{left.children[last+1]}, child.children...)
		parent.keys[i-1] = left.keys[last]
		left.keys = left.keys[:last]
		left.children = left.children[:last+1]
	}

	childID, err := t.store.Persist(child)
	if err != nil {
		return err
	}
	parent.children[i] = childID
	if left.IsLeaf() {
		left.next = childID
	}
	leftID, err := t.store.Persist(left)
	if err != nil {
		return err
	}
	parent.children[i-1] = leftID
	return nil
}

// borrowFromRight shifts right's first element into child, symmetrically.
func (t *BPlusTree) borrowFromRight(parent *Node, i int, child, right *Node) error {
	if right.IsLeaf() != child.IsLeaf() {
		return fmt.Errorf("%w: siblings %d and %d differ in kind", ErrCorrupted, child.id, right.id)
	}
	if child.IsLeaf() {
		child.keys = append(child.keys, right.keys[0])
		child.vals = append(child.vals, right.vals[0])
		right.keys = right.keys[1:]
		right.vals = right.vals[1:]
		parent.keys[i] = right.keys[0]
	} else {
		child.keys = append(child.keys, parent.keys[i])
		child.children = append(child.children, right.children[0])
		parent.keys[i] = right.keys[0]
		right.keys = right.keys[1:]
		right.children = right.children[1:]
	}

	rightID, err := t.store.Persist(right)
	if err != nil {
		return err
	}
	parent.children[i+1] = rightID
	if child.IsLeaf() {
		child.next = rightID
	}
	childID, err := t.store.Persist(child)
	if err != nil {
		return err
	}
	parent.children[i] = childID
	return nil
}

// mergeChildren folds right into left, removing the separator at
// parent.keys[li] and right's child slot in one cursor splice. The caller
// re-checks parent for underflow.
func (t *BPlusTree) mergeChildren(parent *Node, li int, left, right *Node) error {
	if left.IsLeaf() != right.IsLeaf() {
		return fmt.Errorf("%w: merging leaf with non-leaf (%d, %d)", ErrCorrupted, left.id, right.id)
	}
	if left.IsLeaf() {
		left.keys = append(left.keys, right.keys...)
		left.vals = append(left.vals, right.vals...)
		left.next = right.next
	} else {
		// the separator moves down between the two key runs
		left.keys = append(left.keys, parent.keys[li])
		left.keys = append(left.keys, right.keys...)
		left.children = append(left.children, right.children...)
	}

	if err := t.store.Free(right); err != nil {
		return err
	}
	leftID, err := t.store.Persist(left)
	if err != nil {
		return err
	}
	parent.ChildCursorAt(li).ReplaceAfter(2, nil, []uint32{leftID})
	return nil
}
