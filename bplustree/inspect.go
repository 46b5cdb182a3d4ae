// Human-readable tree dumps for debugging and the inspect tool.
// Use InspectTo(w, store) to print every node level by level.

package bplustree

import (
	"fmt"
	"io"
)

// InspectTo writes a dump of the tree rooted in store to w: the root block
// id, then each node's keys (and, for leaves, values and sibling link) in
// breadth-first order.
func InspectTo(w io.Writer, store NodeStorage) error {
	p := func(format string, args ...interface{}) { fmt.Fprintf(w, format, args...) }

	rootID := store.Root()
	p("Root block id = %d\n", rootID)
	if rootID == NoNode {
		p("(empty tree)\n")
		return nil
	}

	p("\nNodes (BFS):\n---\n")

	queue := []uint32{rootID}
	level := 0
	for len(queue) > 0 {
		size := len(queue)
		p("Level %d:\n", level)
		for i := 0; i < size; i++ {
			id := queue[i]
			node, err := store.Load(id)
			if err != nil {
				p("  [block %d] load error: %v\n", id, err)
				continue
			}

			if node.IsLeaf() {
				p("  [block %d] LEAF next=%d\n", id, node.next)
				for j := range node.keys {
					p("    %s -> %s\n", node.keys[j], node.vals[j])
				}
			} else {
				keyStrs := make([]string, len(node.keys))
				for j, k := range node.keys {
					keyStrs[j] = k.String()
				}
				p("  [block %d] INTERNAL keys=%v children=%v\n", id, keyStrs, node.children)
				for _, c := range node.children {
					if c != NoNode {
						queue = append(queue, c)
					}
				}
			}
		}
		queue = queue[size:]
		level++
	}
	return nil
}
