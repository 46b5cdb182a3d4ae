// Package freeblock turns a flat file into a graph of fixed-size blocks with
// a reusable free list, and stores variable-length blobs as chains of those
// blocks.
//
// File layout:
//
//	Block 0 (header): | freeListHead (4, LE) | headerLen (4, LE) | client header ... |
//	Block N:          | next (4, LE; 0 = no block) | payload ... |
//
// A blob is | length (8, LE) | payload |, chunked across the payload areas of
// a block chain. Every block is either reachable from some blob chain (or is
// the header) or sits on the free list threaded through the leading 4 bytes —
// never both.
//
// All writes are staged in memory. Commit materializes the staged blocks,
// the deferred frees, and the refreshed header as one atomic batch; until
// then nothing is durable, and a fresh open of the same file sees none of it.
package freeblock

import (
	"encoding/binary"
	"errors"
	"fmt"

	"CairnDB/atomicfile"
)

const (
	// NoBlock is the nil block pointer. Block 0 holds the header, so the id
	// doubles as the sentinel.
	NoBlock uint32 = 0

	nextPtrSize            = 4
	headerClientAreaOffset = 8
	blobLenSize            = 8

	// MinBlockSize leaves room for the header's fixed fields plus a usable
	// client area.
	MinBlockSize = headerClientAreaOffset + 16
)

var (
	ErrBlockSize      = errors.New("freeblock: block size too small")
	ErrHeaderTooLarge = errors.New("freeblock: client header exceeds block capacity")

	// ErrCorruptChain marks a block chain whose next pointers revisit a
	// block. Walking such a chain would never terminate; the file is damaged.
	ErrCorruptChain = errors.New("freeblock: corrupt block chain")
)

type FreeBlockFile struct {
	file        *atomicfile.AtomicFile
	blockSize   int
	payloadSize int

	// cached header fields, authoritative between commits
	freeListHead uint32
	clientHeader []byte

	staged       map[uint32][]byte // block id -> full block image, pending commit
	pendingFrees []uint32          // blob start ids queued by FreeBlob
	numBlocks    uint32            // committed blocks on disk
	nextAppend   uint32            // first fresh id past disk and staged blocks
}

// Open mounts a FreeBlockFile over an already-recovered AtomicFile. An empty
// file gets a fresh staged header (durable at the first Commit); otherwise
// block 0 is read and its free-list head and client header cached.
func Open(file *atomicfile.AtomicFile, blockSize int) (*FreeBlockFile, error) {
	if blockSize < MinBlockSize {
		return nil, fmt.Errorf("%w: %d < %d", ErrBlockSize, blockSize, MinBlockSize)
	}

	f := &FreeBlockFile{
		file:        file,
		blockSize:   blockSize,
		payloadSize: blockSize - nextPtrSize,
		staged:      make(map[uint32][]byte),
	}

	size, err := file.Size()
	if err != nil {
		return nil, fmt.Errorf("freeblock: size: %w", err)
	}
	if size == 0 {
		f.freeListHead = NoBlock
		f.clientHeader = nil
		f.numBlocks = 0
		f.nextAppend = 1 // block 0 is the header
		f.staged[0] = f.encodeHeader()
		return f, nil
	}

	if size%int64(blockSize) != 0 {
		return nil, fmt.Errorf("freeblock: file size %d is not a multiple of block size %d", size, blockSize)
	}
	f.numBlocks = uint32(size / int64(blockSize))
	f.nextAppend = f.numBlocks
	if err := f.loadHeader(); err != nil {
		return nil, err
	}
	return f, nil
}

// BlockSize reports the fixed block size this file was opened with.
func (f *FreeBlockFile) BlockSize() int { return f.blockSize }

// NumBlocks reports the committed block count.
func (f *FreeBlockFile) NumBlocks() uint32 { return f.numBlocks }

// FreeListHead exposes the cached free-list head for tests and inspection.
func (f *FreeBlockFile) FreeListHead() uint32 { return f.freeListHead }

// Header returns a copy of the client header bytes.
func (f *FreeBlockFile) Header() []byte {
	return append([]byte(nil), f.clientHeader...)
}

// SetHeader stages new client header bytes, durable at the next Commit.
func (f *FreeBlockFile) SetHeader(b []byte) error {
	if len(b) > f.blockSize-headerClientAreaOffset {
		return fmt.Errorf("%w: %d > %d", ErrHeaderTooLarge, len(b), f.blockSize-headerClientAreaOffset)
	}
	f.clientHeader = append([]byte(nil), b...)
	return nil
}

// AllocateBlocks hands out n block ids, reusing the free list before growing
// past the end of the file (and past any block staged by this transaction).
func (f *FreeBlockFile) AllocateBlocks(n int) ([]uint32, error) {
	ids := make([]uint32, 0, n)
	for len(ids) < n && f.freeListHead != NoBlock {
		id := f.freeListHead
		blk, err := f.readBlock(id)
		if err != nil {
			return nil, fmt.Errorf("freeblock: corrupt free list at block %d: %w", id, err)
		}
		f.freeListHead = binary.LittleEndian.Uint32(blk[:nextPtrSize])
		ids = append(ids, id)
	}
	for len(ids) < n {
		ids = append(ids, f.nextAppend)
		f.nextAppend++
	}
	// Reserve each id with a zeroed image so later appends go past it even
	// before the caller writes anything.
	for _, id := range ids {
		if _, ok := f.staged[id]; !ok {
			f.staged[id] = make([]byte, f.blockSize)
		}
	}
	return ids, nil
}

// AllocateAndWrite stores data as a new blob and returns its first block id.
func (f *FreeBlockFile) AllocateAndWrite(data []byte) (uint32, error) {
	buf := make([]byte, blobLenSize+len(data))
	binary.LittleEndian.PutUint64(buf[:blobLenSize], uint64(len(data)))
	copy(buf[blobLenSize:], data)

	nChunks := (len(buf) + f.payloadSize - 1) / f.payloadSize
	if nChunks == 0 {
		nChunks = 1
	}
	ids, err := f.AllocateBlocks(nChunks)
	if err != nil {
		return NoBlock, err
	}

	for i, id := range ids {
		next := NoBlock
		if i+1 < len(ids) {
			next = ids[i+1]
		}
		blk := make([]byte, f.blockSize)
		binary.LittleEndian.PutUint32(blk[:nextPtrSize], next)
		start := i * f.payloadSize
		end := min(start+f.payloadSize, len(buf))
		copy(blk[nextPtrSize:], buf[start:end])
		f.staged[id] = blk
	}
	return ids[0], nil
}

// ReadBlob walks a blob's chain and returns its payload, staged blocks
// included.
func (f *FreeBlockFile) ReadBlob(startID uint32) ([]byte, error) {
	if startID == NoBlock {
		return nil, fmt.Errorf("freeblock: read blob at nil block")
	}
	var stream []byte
	var length uint64
	haveLen := false
	seen := make(map[uint32]bool)
	id := startID
	for id != NoBlock {
		if seen[id] {
			return nil, fmt.Errorf("%w: blob at %d revisits block %d", ErrCorruptChain, startID, id)
		}
		seen[id] = true
		blk, err := f.readBlock(id)
		if err != nil {
			return nil, err
		}
		stream = append(stream, blk[nextPtrSize:]...)
		if !haveLen && len(stream) >= blobLenSize {
			length = binary.LittleEndian.Uint64(stream[:blobLenSize])
			haveLen = true
		}
		if haveLen && uint64(len(stream)) >= blobLenSize+length {
			return stream[blobLenSize : blobLenSize+length], nil
		}
		id = binary.LittleEndian.Uint32(blk[:nextPtrSize])
	}
	return nil, fmt.Errorf("freeblock: blob chain starting at %d is truncated", startID)
}

// FreeBlob queues a blob's chain for return to the free list. The splice is
// deferred to Commit so the blob stays readable until then; a blob freed and
// still referenced within one uncommitted transaction is never clobbered.
func (f *FreeBlockFile) FreeBlob(startID uint32) error {
	if startID == NoBlock {
		return fmt.Errorf("freeblock: free blob at nil block")
	}
	f.pendingFrees = append(f.pendingFrees, startID)
	return nil
}

// Commit makes everything staged since the last commit durable in one atomic
// batch: blob blocks, the deferred free-list splices, and the header. The
// header is then re-read from the file so the in-memory cache is
// authoritative again.
func (f *FreeBlockFile) Commit() error {
	if err := f.applyPendingFrees(); err != nil {
		return err
	}
	f.staged[0] = f.encodeHeader()

	maxID := uint32(0)
	for id := range f.staged {
		if id > maxID {
			maxID = id
		}
	}
	newNumBlocks := f.numBlocks
	if maxID+1 > newNumBlocks {
		newNumBlocks = maxID + 1
	}
	if newNumBlocks > f.numBlocks {
		if err := f.file.Truncate(int64(newNumBlocks) * int64(f.blockSize)); err != nil {
			return fmt.Errorf("freeblock: grow file: %w", err)
		}
	}

	writes := make([]atomicfile.Write, 0, len(f.staged))
	for id, blk := range f.staged {
		writes = append(writes, atomicfile.Write{
			Position: int64(id) * int64(f.blockSize),
			Data:     blk,
		})
	}
	if err := f.file.AtomicWrite(writes); err != nil {
		return fmt.Errorf("freeblock: commit: %w", err)
	}

	f.staged = make(map[uint32][]byte)
	f.pendingFrees = nil
	f.numBlocks = newNumBlocks
	f.nextAppend = newNumBlocks
	return f.loadHeader()
}

func (f *FreeBlockFile) Close() error { return f.file.Close() }

// applyPendingFrees splices every queued chain onto the free list. Each
// chain is walked in full before any of its next pointers are overwritten.
func (f *FreeBlockFile) applyPendingFrees() error {
	for _, startID := range f.pendingFrees {
		var chain []uint32
		seen := make(map[uint32]bool)
		id := startID
		for id != NoBlock {
			if seen[id] {
				return fmt.Errorf("%w: blob at %d revisits block %d", ErrCorruptChain, startID, id)
			}
			seen[id] = true
			blk, err := f.readBlock(id)
			if err != nil {
				return fmt.Errorf("freeblock: free blob %d: %w", startID, err)
			}
			chain = append(chain, id)
			id = binary.LittleEndian.Uint32(blk[:nextPtrSize])
		}
		for _, id := range chain {
			blk := make([]byte, f.blockSize)
			binary.LittleEndian.PutUint32(blk[:nextPtrSize], f.freeListHead)
			f.staged[id] = blk
			f.freeListHead = id
		}
	}
	return nil
}

// readBlock returns a block image, preferring the staged copy.
func (f *FreeBlockFile) readBlock(id uint32) ([]byte, error) {
	if blk, ok := f.staged[id]; ok {
		return blk, nil
	}
	if id >= f.numBlocks {
		return nil, fmt.Errorf("freeblock: block %d out of range (%d committed)", id, f.numBlocks)
	}
	blk := make([]byte, f.blockSize)
	if _, err := f.file.ReadAt(blk, int64(id)*int64(f.blockSize)); err != nil {
		return nil, fmt.Errorf("freeblock: read block %d: %w", id, err)
	}
	return blk, nil
}

// ReadBlock exposes raw block images for inspection tooling.
func (f *FreeBlockFile) ReadBlock(id uint32) ([]byte, error) {
	blk, err := f.readBlock(id)
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), blk...), nil
}

func (f *FreeBlockFile) encodeHeader() []byte {
	blk := make([]byte, f.blockSize)
	binary.LittleEndian.PutUint32(blk[0:4], f.freeListHead)
	binary.LittleEndian.PutUint32(blk[4:8], uint32(len(f.clientHeader)))
	copy(blk[headerClientAreaOffset:], f.clientHeader)
	return blk
}

func (f *FreeBlockFile) loadHeader() error {
	blk := make([]byte, f.blockSize)
	if _, err := f.file.ReadAt(blk, 0); err != nil {
		return fmt.Errorf("freeblock: read header block: %w", err)
	}
	f.freeListHead = binary.LittleEndian.Uint32(blk[0:4])
	headerLen := int(binary.LittleEndian.Uint32(blk[4:8]))
	if headerLen > f.blockSize-headerClientAreaOffset {
		return fmt.Errorf("freeblock: corrupt header: client length %d", headerLen)
	}
	f.clientHeader = append([]byte(nil), blk[headerClientAreaOffset:headerClientAreaOffset+headerLen]...)
	return nil
}
