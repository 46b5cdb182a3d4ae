package bplustree

import (
	"encoding/json"
	"fmt"

	"CairnDB/types"
)

// Nodes are stored as JSON blobs so that the tagged Value codec carries
// arbitrary key/value kinds losslessly.
//
// leaf:     {"type":"leaf","keys":[...],"values":[...],"nextBlockId":n,"version":1}
// internal: {"type":"internal","keys":[...],"childBlockIds":[...],"version":1}

const nodeCodecVersion = 1

const (
	nodeTypeLeaf     = "leaf"
	nodeTypeInternal = "internal"
)

type nodeJSON struct {
	Type          string        `json:"type"`
	Keys          []types.Value `json:"keys"`
	Values        []types.Value `json:"values,omitempty"`
	ChildBlockIDs []uint32      `json:"childBlockIds,omitempty"`
	NextBlockID   uint32        `json:"nextBlockId,omitempty"`
	Version       int           `json:"version"`
}

func encodeNode(n *Node) ([]byte, error) {
	enc := nodeJSON{Keys: n.keys, Version: nodeCodecVersion}
	if n.IsLeaf() {
		enc.Type = nodeTypeLeaf
		enc.Values = n.vals
		enc.NextBlockID = n.next
	} else {
		enc.Type = nodeTypeInternal
		enc.ChildBlockIDs = n.children
	}
	data, err := json.Marshal(enc)
	if err != nil {
		return nil, fmt.Errorf("encode node %d: %w", n.id, err)
	}
	return data, nil
}

func decodeNode(data []byte, id uint32) (*Node, error) {
	var dec nodeJSON
	if err := json.Unmarshal(data, &dec); err != nil {
		return nil, fmt.Errorf("decode node %d: %w", id, err)
	}
	if dec.Version > nodeCodecVersion {
		return nil, fmt.Errorf("decode node %d: version %d is newer than %d", id, dec.Version, nodeCodecVersion)
	}

	switch dec.Type {
	case nodeTypeLeaf:
		if len(dec.Values) != len(dec.Keys) {
			return nil, fmt.Errorf("%w: leaf %d has %d keys but %d values",
				ErrCorrupted, id, len(dec.Keys), len(dec.Values))
		}
		return &Node{
			id:   id,
			kind: NodeLeaf,
			keys: dec.Keys,
			vals: dec.Values,
			next: dec.NextBlockID,
		}, nil
	case nodeTypeInternal:
		if len(dec.ChildBlockIDs) != len(dec.Keys)+1 {
			return nil, fmt.Errorf("%w: internal %d has %d keys but %d children",
				ErrCorrupted, id, len(dec.Keys), len(dec.ChildBlockIDs))
		}
		return &Node{
			id:       id,
			kind:     NodeInternal,
			keys:     dec.Keys,
			children: dec.ChildBlockIDs,
		}, nil
	}
	return nil, fmt.Errorf("%w: node %d has unknown type %q", ErrCorrupted, id, dec.Type)
}
