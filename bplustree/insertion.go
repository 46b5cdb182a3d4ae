package bplustree

import "CairnDB/types"

// Insert adds a key/value pair. Duplicate keys are allowed (secondary
// indexes store one entry per matching document); a duplicate lands at the
// first position >= key.
func (t *BPlusTree) Insert(key, val types.Value) error {
	if err := t.checkKey(key); err != nil {
		return err
	}
	if t.store.Root() == NoNode {
		if err := t.Init(); err != nil {
			return err
		}
	}
	rootID := t.store.Root()
	root, err := t.store.Load(rootID)
	if err != nil {
		return err
	}

	if root.IsLeaf() {
		cur, _ := root.CursorBeforeKey(key, t.cmp)
		cur.Insert(key, val)
	} else {
		if err := t.insertInto(root, key, val); err != nil {
			return err
		}
	}

	if root.Len() > t.order {
		return t.splitRoot(root)
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

// insertInto descends into internal node n, inserts at the leaf, and
// repairs any child overflow on the way back up. n's own overflow belongs
// to n's parent (or to Insert, for the root). Modified children are
// persisted here and their slots in n patched; n itself is persisted by the
// caller.
func (t *BPlusTree) insertInto(n *Node, key, val types.Value) error {
	i := upperBound(n.keys, key, t.cmp)
	child, err := t.loadChild(n.ChildCursorAt(i).Child())
	if err != nil {
		return err
	}

	if child.IsLeaf() {
		cur, _ := child.CursorBeforeKey(key, t.cmp)
		cur.Insert(key, val)
	} else {
		if err := t.insertInto(child, key, val); err != nil {
			return err
		}
	}

	if child.Len() > t.order {
		// A shift into a sibling with spare room keeps the tree shallower
		// than an eager split.
		if child.IsLeaf() {
			done, err := t.redistributeLeaf(n, i, child)
			if err != nil {
				return err
			}
			if done {
				return nil
			}
		}
		return t.splitChild(n, i, child)
	}

	id, err := t.store.Persist(child)
	if err != nil {
		return err
	}
	n.children[i] = id
	return nil
}

// redistributeLeaf tries to move one element from an overfull leaf into an
// adjacent sibling under the same parent. Reports whether it succeeded.
func (t *BPlusTree) redistributeLeaf(parent *Node, i int, child *Node) (bool, error) {
	if i > 0 {
		sib, err := t.loadChild(parent.children[i-1])
		if err != nil {
			return false, err
		}
		if sib.IsLeaf() && sib.Len() < t.order {
			// child's first pair becomes sib's last
			sib.keys = append(sib.keys, child.keys[0])
			sib.vals = append(sib.vals, child.vals[0])
			child.keys = child.keys[1:]
			child.vals = child.vals[1:]
			parent.keys[i-1] = child.keys[0]

			childID, err := t.store.Persist(child)
			if err != nil {
				return false, err
			}
			parent.children[i] = childID
			sib.next = childID
			sibID, err := t.store.Persist(sib)
			if err != nil {
				return false, err
			}
			parent.children[i-1] = sibID
			return true, nil
		}
	}
	if i < len(parent.children)-1 {
		sib, err := t.loadChild(parent.children[i+1])
		if err != nil {
			return false, err
		}
		if sib.IsLeaf() && sib.Len() < t.order {
			// child's last pair becomes sib's first
			last := child.Len() - 1
			sib.keys = append([]types.Value{child.keys[last]}, sib.keys...)
			sib.vals = append([]types.Value{child.vals[last]}, sib.vals...)
			child.keys = child.keys[:last]
			child.vals = child.vals[:last]
			parent.keys[i] = sib.keys[0]

			sibID, err := t.store.Persist(sib)
			if err != nil {
				return false, err
			}
			parent.children[i+1] = sibID
			child.next = sibID
			childID, err := t.store.Persist(child)
			if err != nil {
				return false, err
			}
			parent.children[i] = childID
			return true, nil
		}
	}
	return false, nil
}

// splitChild splits an overfull child of parent and installs both halves
// plus the promoted separator through a single cursor splice.
func (t *BPlusTree) splitChild(parent *Node, i int, child *Node) error {
	sep, right := t.splitNode(child)
	rightID, err := t.store.Persist(right)
	if err != nil {
		return err
	}
	if child.IsLeaf() {
		child.next = rightID
	}
	leftID, err := t.store.Persist(child)
	if err != nil {
		return err
	}
	parent.ChildCursorAt(i).ReplaceAfter(1, []types.Value{sep}, []uint32{leftID, rightID})
	return nil
}

// splitRoot splits an overfull root and grows the tree by one level: a new
// internal root with one key and exactly two children.
func (t *BPlusTree) splitRoot(root *Node) error {
	sep, right := t.splitNode(root)
	rightID, err := t.store.Persist(right)
	if err != nil {
		return err
	}
	if root.IsLeaf() {
		root.next = rightID
	}
	leftID, err := t.store.Persist(root)
	if err != nil {
		return err
	}
	newRoot := t.store.NewInternal([]types.Value{sep}, []uint32{leftID, rightID})
	newRootID, err := t.store.Persist(newRoot)
	if err != nil {
		return err
	}
	return t.store.SetRoot(newRootID)
}

// splitNode divides n and returns the separator to promote plus the new
// right sibling (not yet persisted).
//
// Leaf: split at mid = ceil(n/2); the right half keeps [mid..) and its
// first key is promoted by copy, since leaf keys stay in the leaves.
// Internal: the middle key moves up, it is not duplicated into a child.
func (t *BPlusTree) splitNode(n *Node) (types.Value, *Node) {
	if n.IsLeaf() {
		mid := (n.Len() + 1) / 2
		right := t.store.NewLeaf()
		right.keys = append(right.keys, n.keys[mid:]...)
		right.vals = append(right.vals, n.vals[mid:]...)
		right.next = n.next
		n.keys = n.keys[:mid]
		n.vals = n.vals[:mid]
		return right.keys[0], right
	}

	mid := n.Len() / 2
	sep := n.keys[mid]
	right := t.store.NewInternal(n.keys[mid+1:], n.children[mid+1:])
	n.keys = n.keys[:mid]
	n.children = n.children[:mid+1]
	return sep, right
}
