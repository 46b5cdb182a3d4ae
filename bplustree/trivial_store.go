package bplustree

import (
	"fmt"

	"CairnDB/types"
)

// TrivialStore keeps every node in memory. Persistence is a no-op and ids
// are stable for the life of a node, which makes it the reference backend
// for unit tests and for measuring raw algorithmic cost.
type TrivialStore struct {
	nodes  map[uint32]*Node
	nextID uint32
	rootID uint32
}

func NewTrivialStore() *TrivialStore {
	return &TrivialStore{
		nodes:  make(map[uint32]*Node),
		nextID: 1,
	}
}

func (s *TrivialStore) Root() uint32 { return s.rootID }

func (s *TrivialStore) SetRoot(id uint32) error {
	s.rootID = id
	return nil
}

func (s *TrivialStore) Load(id uint32) (*Node, error) {
	n, ok := s.nodes[id]
	if !ok {
		return nil, fmt.Errorf("trivial store: node %d not found", id)
	}
	return n, nil
}

func (s *TrivialStore) NewLeaf() *Node {
	n := &Node{id: s.nextID, kind: NodeLeaf}
	s.nextID++
	s.nodes[n.id] = n
	return n
}

func (s *TrivialStore) NewInternal(keys []types.Value, children []uint32) *Node {
	n := &Node{
		id:       s.nextID,
		kind:     NodeInternal,
		keys:     append([]types.Value(nil), keys...),
		children: append([]uint32(nil), children...),
	}
	s.nextID++
	s.nodes[n.id] = n
	return n
}

func (s *TrivialStore) Persist(n *Node) (uint32, error) {
	s.nodes[n.id] = n
	return n.id, nil
}

func (s *TrivialStore) Free(n *Node) error {
	delete(s.nodes, n.id)
	return nil
}

func (s *TrivialStore) MaxKeySize() int { return 0 }

func (s *TrivialStore) Flush() error { return nil }

func (s *TrivialStore) Close() error { return nil }
