// Inspect a CairnDB store file.
// Usage: go run ./cmd/inspect [-block N] <path-to-.db>
package main

import (
	"encoding/binary"
	"flag"
	"fmt"
	"os"

	"CairnDB/atomicfile"
	"CairnDB/bplustree"
	"CairnDB/disk"
	"CairnDB/engine"
	"CairnDB/freeblock"
)

func main() {
	blockSize := flag.Int("block", engine.DefaultBlockSize, "block size the file was created with")
	flag.Parse()
	if flag.NArg() < 1 {
		fmt.Fprintf(os.Stderr, "Usage: %s [-block N] <store.db>\n", os.Args[0])
		os.Exit(1)
	}
	if err := inspect(flag.Arg(0), *blockSize); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func inspect(path string, blockSize int) error {
	f, err := disk.OpenOSFile(path)
	if err != nil {
		return err
	}
	af, err := atomicfile.Open(f, path+".wal")
	if err != nil {
		f.Close()
		return err
	}
	fb, err := freeblock.Open(af, blockSize)
	if err != nil {
		af.Close()
		return err
	}
	defer fb.Close()

	fmt.Printf("Store file: %s\n", path)
	fmt.Printf("  Block size:     %d\n", fb.BlockSize())
	fmt.Printf("  Blocks on disk: %d\n", fb.NumBlocks())
	fmt.Printf("  Client header:  %q\n", fb.Header())

	free, err := freeListIDs(fb)
	if err != nil {
		return err
	}
	fmt.Printf("  Free list:      %d block(s) %v\n\n", len(free), free)

	store, err := bplustree.NewFBStore(fb)
	if err != nil {
		return err
	}
	return bplustree.InspectTo(os.Stdout, store)
}

func freeListIDs(fb *freeblock.FreeBlockFile) ([]uint32, error) {
	var ids []uint32
	seen := make(map[uint32]bool)
	for id := fb.FreeListHead(); id != freeblock.NoBlock; {
		if seen[id] {
			return nil, fmt.Errorf("free list cycles at block %d", id)
		}
		seen[id] = true
		ids = append(ids, id)
		blk, err := fb.ReadBlock(id)
		if err != nil {
			return nil, err
		}
		id = binary.LittleEndian.Uint32(blk[:4])
	}
	return ids, nil
}
