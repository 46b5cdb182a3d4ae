// Package engine assembles the storage stack into a single handle: an OS
// file wrapped by write-ahead logging, carved into a free-block heap, with a
// B+ tree index on top. One writer at a time; the caller serializes access.
package engine

import (
	"fmt"
	"iter"

	"CairnDB/atomicfile"
	"CairnDB/bplustree"
	"CairnDB/disk"
	"CairnDB/freeblock"
	"CairnDB/types"
)

const (
	DefaultBlockSize = 4096
	DefaultOrder     = 32
)

type Options struct {
	BlockSize int // bytes per heap block; DefaultBlockSize when 0
	Order     int // max keys per tree node; DefaultOrder when 0
}

// Engine is an embedded key/value store. Mutations accumulate in memory and
// in the staged block layer until Commit; Close without Commit discards them.
type Engine struct {
	store *bplustree.FBStore
	tree  *bplustree.BPlusTree
}

// Open opens (or creates) the store at path. A sibling path+".wal" file
// holds the write-ahead log; any interrupted commit found there is resolved
// before the engine is handed back.
func Open(path string, opts Options) (*Engine, error) {
	if opts.BlockSize == 0 {
		opts.BlockSize = DefaultBlockSize
	}
	if opts.Order == 0 {
		opts.Order = DefaultOrder
	}

	f, err := disk.OpenOSFile(path)
	if err != nil {
		return nil, fmt.Errorf("engine: open %s: %w", path, err)
	}
	af, err := atomicfile.Open(f, path+".wal")
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("engine: open %s: %w", path, err)
	}
	fb, err := freeblock.Open(af, opts.BlockSize)
	if err != nil {
		af.Close()
		return nil, fmt.Errorf("engine: open %s: %w", path, err)
	}
	store, err := bplustree.NewFBStore(fb)
	if err != nil {
		fb.Close()
		return nil, fmt.Errorf("engine: open %s: %w", path, err)
	}
	tree, err := bplustree.New(store, bplustree.Options{Order: opts.Order})
	if err != nil {
		store.Close()
		return nil, err
	}
	if err := tree.Init(); err != nil {
		store.Close()
		return nil, fmt.Errorf("engine: init %s: %w", path, err)
	}
	return &Engine{store: store, tree: tree}, nil
}

func (e *Engine) Insert(key, val types.Value) error { return e.tree.Insert(key, val) }

func (e *Engine) Search(key types.Value) (types.Value, bool, error) { return e.tree.Search(key) }

func (e *Engine) Delete(key types.Value) error { return e.tree.Delete(key) }

func (e *Engine) Entries() *bplustree.Iterator { return e.tree.Entries() }

func (e *Engine) EntriesFrom(key types.Value) *bplustree.Iterator { return e.tree.EntriesFrom(key) }

func (e *Engine) Range(start, end types.Value, opts bplustree.RangeOptions) *bplustree.Iterator {
	return e.tree.Range(start, end, opts)
}

func (e *Engine) Keys() iter.Seq[types.Value] { return e.tree.Keys() }

func (e *Engine) Values() iter.Seq[types.Value] { return e.tree.Values() }

// Commit makes everything since the previous Commit durable in one atomic
// step. On crash the store reopens at one commit boundary or the other,
// never in between.
func (e *Engine) Commit() error { return e.store.Flush() }

// Close releases the file handles. Uncommitted work is discarded.
func (e *Engine) Close() error { return e.store.Close() }
