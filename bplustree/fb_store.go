package bplustree

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/dgraph-io/ristretto/v2"

	"CairnDB/freeblock"
	"CairnDB/types"
)

// FBStore materializes nodes from blobs in a FreeBlockFile.
//
// Persistence is copy-on-write: a node is never rewritten in place; each
// Persist writes a fresh blob, queues the previous chain for freeing, and
// hands back the new block id for the caller to patch into the parent. The
// current root id lives in the FreeBlockFile client header behind a
// signature.
//
// Two in-memory layers sit in front of the file. A plain map holds every
// node persisted since the last Flush — those are authoritative, since
// their blobs are not durable yet. A ristretto cache holds clean
// deserialized nodes; it is a bounded read accelerator with manual
// invalidation (entries are dropped the moment their block is freed or
// superseded), never a source of truth.
type FBStore struct {
	blocks *freeblock.FreeBlockFile
	cache  *ristretto.Cache[uint32, *Node]

	live map[uint32]*Node // persisted but not yet flushed

	rootID uint32
}

var fbSignature = []byte("CAIRNDB1")

const (
	fbHeaderSize = len("CAIRNDB1") + 4

	// fbMaxKeySize bounds key encodings so a handful of keys always fits a
	// reasonable node blob.
	fbMaxKeySize = 1024

	fbCacheNumCounters = 1 << 14
	fbCacheMaxNodes    = 1 << 12
)

func NewFBStore(blocks *freeblock.FreeBlockFile) (*FBStore, error) {
	cache, err := ristretto.NewCache(&ristretto.Config[uint32, *Node]{
		NumCounters: fbCacheNumCounters,
		MaxCost:     fbCacheMaxNodes,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("fb store: node cache: %w", err)
	}

	s := &FBStore{
		blocks: blocks,
		cache:  cache,
		live:   make(map[uint32]*Node),
	}

	header := blocks.Header()
	switch {
	case len(header) == 0:
		s.rootID = NoNode // fresh file; header written with the first root
	case len(header) == fbHeaderSize && bytes.Equal(header[:len(fbSignature)], fbSignature):
		s.rootID = binary.LittleEndian.Uint32(header[len(fbSignature):])
	default:
		return nil, fmt.Errorf("fb store: unrecognized file header %q", header)
	}
	return s, nil
}

func (s *FBStore) Root() uint32 { return s.rootID }

func (s *FBStore) SetRoot(id uint32) error {
	header := make([]byte, fbHeaderSize)
	copy(header, fbSignature)
	binary.LittleEndian.PutUint32(header[len(fbSignature):], id)
	if err := s.blocks.SetHeader(header); err != nil {
		return fmt.Errorf("fb store: set root: %w", err)
	}
	s.rootID = id
	return nil
}

func (s *FBStore) Load(id uint32) (*Node, error) {
	if id == NoNode {
		return nil, fmt.Errorf("fb store: load of nil node")
	}
	if n, ok := s.live[id]; ok {
		return n, nil
	}
	if n, ok := s.cache.Get(id); ok {
		return n, nil
	}
	data, err := s.blocks.ReadBlob(id)
	if err != nil {
		return nil, fmt.Errorf("fb store: load node %d: %w", id, err)
	}
	n, err := decodeNode(data, id)
	if err != nil {
		return nil, err
	}
	s.cache.Set(id, n, 1)
	return n, nil
}

func (s *FBStore) NewLeaf() *Node {
	return &Node{kind: NodeLeaf} // no block until first persist
}

func (s *FBStore) NewInternal(keys []types.Value, children []uint32) *Node {
	return &Node{
		kind:     NodeInternal,
		keys:     append([]types.Value(nil), keys...),
		children: append([]uint32(nil), children...),
	}
}

func (s *FBStore) Persist(n *Node) (uint32, error) {
	data, err := encodeNode(n)
	if err != nil {
		return NoNode, err
	}

	old := n.id
	if old != NoNode {
		// supersede, never update in place
		if err := s.blocks.FreeBlob(old); err != nil {
			return NoNode, fmt.Errorf("fb store: supersede node %d: %w", old, err)
		}
		s.cache.Del(old)
		delete(s.live, old)
	}

	id, err := s.blocks.AllocateAndWrite(data)
	if err != nil {
		return NoNode, fmt.Errorf("fb store: persist node: %w", err)
	}
	n.id = id
	s.live[id] = n
	return id, nil
}

func (s *FBStore) Free(n *Node) error {
	if n.id == NoNode {
		return nil
	}
	if err := s.blocks.FreeBlob(n.id); err != nil {
		return fmt.Errorf("fb store: free node %d: %w", n.id, err)
	}
	s.cache.Del(n.id)
	delete(s.live, n.id)
	n.id = NoNode
	return nil
}

func (s *FBStore) MaxKeySize() int { return fbMaxKeySize }

// Flush commits every staged block write — node blobs, deferred frees, the
// header with the current root — as one atomic batch, then promotes the
// flushed nodes into the clean cache.
func (s *FBStore) Flush() error {
	if err := s.blocks.Commit(); err != nil {
		return err
	}
	for id, n := range s.live {
		s.cache.Set(id, n, 1)
	}
	s.live = make(map[uint32]*Node)
	return nil
}

func (s *FBStore) Close() error {
	s.cache.Close()
	return s.blocks.Close()
}
