package bplustree

import "CairnDB/types"

// Search returns the value stored under key. A missing key is not an error:
// found is false and the value is the zero Value.
func (t *BPlusTree) Search(key types.Value) (types.Value, bool, error) {
	leaf, err := t.findLeaf(key)
	if err != nil || leaf == nil {
		return types.Value{}, false, err
	}
	cur, isAtKey := leaf.CursorBeforeKey(key, t.cmp)
	if !isAtKey {
		return types.Value{}, false, nil
	}
	val, _ := cur.ValueAfter()
	return val, true, nil
}
