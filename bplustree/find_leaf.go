package bplustree

import "CairnDB/types"

// findLeaf descends to the leaf a lookup of key lands in. Ties go right:
// at each internal node we take the child after the last separator <= key,
// matching where insertion sends equal keys.
func (t *BPlusTree) findLeaf(key types.Value) (*Node, error) {
	rootID := t.store.Root()
	if rootID == NoNode {
		return nil, nil
	}
	n, err := t.store.Load(rootID)
	if err != nil {
		return nil, err
	}
	for !n.IsLeaf() {
		i := upperBound(n.keys, key, t.cmp)
		n, err = t.loadChild(n.ChildCursorAt(i).Child())
		if err != nil {
			return nil, err
		}
	}
	return n, nil
}

// descend walks from the root to a leaf, taking the child pick selects at
// each internal node and recording the path of child cursors. Iterators
// keep the path to step between leaves positionally.
func (t *BPlusTree) descend(pick func(n *Node) int) ([]ChildCursor, *Node, error) {
	rootID := t.store.Root()
	if rootID == NoNode {
		return nil, nil, nil
	}
	n, err := t.store.Load(rootID)
	if err != nil {
		return nil, nil, err
	}
	var path []ChildCursor
	for !n.IsLeaf() {
		cur := n.ChildCursorAt(pick(n))
		path = append(path, cur)
		if n, err = t.loadChild(cur.Child()); err != nil {
			return nil, nil, err
		}
	}
	return path, n, nil
}
