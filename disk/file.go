// Package disk declares the byte-addressable file contract the storage core
// is written against, plus the os.File-backed implementation. The contract
// matters more than the implementation: higher layers only assume positioned
// reads/writes, truncate, size, sync, and a sector size within which
// same-offset writes are atomic.
package disk

import (
	"fmt"
	"os"
)

// DefaultSectorSize is what we assume when the platform gives us nothing
// better. 512 bytes is the floor every spinning disk and SSD honors.
const DefaultSectorSize = 512

type File interface {
	ReadAt(p []byte, off int64) (int, error)
	WriteAt(p []byte, off int64) (int, error)
	Truncate(size int64) error
	Size() (int64, error)
	Sync() error
	Close() error
	// SectorSize is the largest write size the device applies atomically.
	SectorSize() int
}

type OSFile struct {
	f          *os.File
	path       string
	sectorSize int
}

func OpenOSFile(path string) (*OSFile, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return &OSFile{f: f, path: path, sectorSize: DefaultSectorSize}, nil
}

func (o *OSFile) ReadAt(p []byte, off int64) (int, error) {
	return o.f.ReadAt(p, off)
}

func (o *OSFile) WriteAt(p []byte, off int64) (int, error) {
	return o.f.WriteAt(p, off)
}

func (o *OSFile) Truncate(size int64) error {
	return o.f.Truncate(size)
}

func (o *OSFile) Size() (int64, error) {
	stat, err := o.f.Stat()
	if err != nil {
		return 0, fmt.Errorf("stat %s: %w", o.path, err)
	}
	return stat.Size(), nil
}

func (o *OSFile) Sync() error { return o.f.Sync() }

func (o *OSFile) Close() error { return o.f.Close() }

func (o *OSFile) SectorSize() int { return o.sectorSize }
