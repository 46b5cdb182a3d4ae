// Structure of B+ Tree
/*
Tree
 ├── Internal Node (separator keys + child block ids)
 │      └── Child Internal Nodes ...
 │             └── Leaf Nodes (keys + values + next pointer)

- keys: sorted ascending per the tree comparator
- internal nodes: len(children) == len(keys)+1
- leaf nodes: len(values) == len(keys)
- leaves carry a `next` sibling link in the stored format; ordered scans
  advance through the descent path, not the links (see iterator.go)
- all leaves at the same depth

The algorithms are written once against NodeStorage; the Trivial backend
keeps nodes in memory, the FB backend materializes them from blobs in a
FreeBlockFile.
*/
package bplustree

import (
	"errors"
	"fmt"

	"CairnDB/types"
)

type NodeKind uint8

const (
	NodeLeaf NodeKind = iota
	NodeInternal
)

// NoNode is the nil node reference. The FB backend reserves block 0 for the
// file header, so the id doubles as the sentinel there too.
const NoNode uint32 = 0

var (
	ErrBadOrder = errors.New("bplustree: order must be at least 1")
	ErrKeySize  = errors.New("bplustree: key exceeds maximum size")

	// ErrCorrupted wraps structural invariant violations: a missing child
	// during descent, a merge between incompatible nodes. These indicate a
	// bug or a damaged file and abort the operation; they are never
	// silently repaired.
	ErrCorrupted = errors.New("bplustree: corrupted tree structure")
)

type CompareFunc func(a, b types.Value) int

type Node struct {
	id       uint32 // storage handle; NoNode until first persist
	kind     NodeKind
	keys     []types.Value
	vals     []types.Value // leaf only
	children []uint32      // internal only
	next     uint32        // leaf only: right sibling
}

func (n *Node) IsLeaf() bool { return n.kind == NodeLeaf }
func (n *Node) ID() uint32   { return n.id }
func (n *Node) Len() int     { return len(n.keys) }

// NodeStorage is the persistence capability set the tree is written against.
// Persist may move a node (the FB backend is copy-on-write and returns a new
// id); callers must patch the reference they hold.
type NodeStorage interface {
	Root() uint32
	SetRoot(id uint32) error
	Load(id uint32) (*Node, error)
	NewLeaf() *Node
	NewInternal(keys []types.Value, children []uint32) *Node
	Persist(n *Node) (uint32, error)
	Free(n *Node) error
	// MaxKeySize is the largest accepted key encoding in bytes; 0 = unbounded.
	MaxKeySize() int
	// Flush makes all persisted nodes durable. No-op for in-memory storage.
	Flush() error
	Close() error
}

type BPlusTree struct {
	store   NodeStorage
	order   int // max keys per node
	minKeys int // ceil(order/2): minimum occupancy of a non-root node
	cmp     CompareFunc
}

type Options struct {
	Order   int
	Compare CompareFunc // defaults to types.Compare
}

func New(store NodeStorage, opts Options) (*BPlusTree, error) {
	if opts.Order < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrBadOrder, opts.Order)
	}
	cmp := opts.Compare
	if cmp == nil {
		cmp = types.Compare
	}
	return &BPlusTree{
		store:   store,
		order:   opts.Order,
		minKeys: (opts.Order + 1) / 2,
		cmp:     cmp,
	}, nil
}

// Init creates the single empty leaf root for a fresh tree. Re-opening an
// existing tree is a no-op.
func (t *BPlusTree) Init() error {
	if t.store.Root() != NoNode {
		return nil
	}
	root := t.store.NewLeaf()
	id, err := t.store.Persist(root)
	if err != nil {
		return err
	}
	return t.store.SetRoot(id)
}

func (t *BPlusTree) Order() int { return t.order }

// loadChild fetches a child that must exist; absence is a structural fault.
func (t *BPlusTree) loadChild(id uint32) (*Node, error) {
	n, err := t.store.Load(id)
	if err != nil {
		return nil, fmt.Errorf("%w: child %d: %v", ErrCorrupted, id, err)
	}
	return n, nil
}

// checkKey enforces the backend's key size bound.
func (t *BPlusTree) checkKey(key types.Value) error {
	if max := t.store.MaxKeySize(); max > 0 && key.Size() > max {
		return fmt.Errorf("%w: %d > %d bytes", ErrKeySize, key.Size(), max)
	}
	return nil
}

// lowerBound returns the first index i with cmp(keys[i], key) >= 0.
func lowerBound(keys []types.Value, key types.Value, cmp CompareFunc) int {
	lo, hi := 0, len(keys)
	for lo < hi {
		mid := (lo + hi) / 2
		if cmp(keys[mid], key) < 0 {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

// upperBound returns the first index i with cmp(keys[i], key) > 0.
func upperBound(keys []types.Value, key types.Value, cmp CompareFunc) int {
	lo, hi := 0, len(keys)
	for lo < hi {
		mid := (lo + hi) / 2
		if cmp(keys[mid], key) <= 0 {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}
