// Package atomicfile makes a batch of positioned writes to a data file
// all-or-nothing across crashes.
//
// The batch is first appended to a write-ahead log file and sealed with a
// commit marker; only then are the writes applied to the data file. Recover,
// run at open time, replays a sealed log and discards an unsealed one, so
// after a crash the data file is always in either the pre-batch or the
// post-batch state, never a mix.
//
// WAL Record:
// ─────────────────────────────────────────────
// | POS (8) | LEN (4) | CRC (4) | DATA (LEN)  |
// ─────────────────────────────────────────────
// A record with POS == 0xFFFFFFFFFFFFFFFF and LEN == 0 is the commit marker.
package atomicfile

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"CairnDB/disk"
)

const (
	recordHeaderSize = 16
	commitMarkerPos  = ^uint64(0)
)

var (
	ErrNoTransaction     = errors.New("atomicfile: no active transaction")
	ErrActiveTransaction = errors.New("atomicfile: transaction already active")
)

// Write is one positioned byte-range write in a batch.
type Write struct {
	Position int64
	Data     []byte
}

type AtomicFile struct {
	data    disk.File
	walPath string
	writes  []Write
	inTx    bool
}

// Open wraps the data file and runs crash recovery against the WAL at
// walPath before returning, so the caller never observes a half-applied
// batch.
func Open(data disk.File, walPath string) (*AtomicFile, error) {
	a := &AtomicFile{data: data, walPath: walPath}
	if err := a.Recover(); err != nil {
		return nil, err
	}
	return a, nil
}

// Begin starts a logical transaction. Staging or committing outside a
// transaction is a usage error, not a storage fault.
func (a *AtomicFile) Begin() error {
	if a.inTx {
		return ErrActiveTransaction
	}
	a.inTx = true
	a.writes = a.writes[:0]
	return nil
}

// StageWrite records one write of the current batch. Data is copied; the
// caller may reuse the buffer.
func (a *AtomicFile) StageWrite(position int64, data []byte) error {
	if !a.inTx {
		return ErrNoTransaction
	}
	a.writes = append(a.writes, Write{
		Position: position,
		Data:     append([]byte(nil), data...),
	})
	return nil
}

// Abort drops the staged batch.
func (a *AtomicFile) Abort() error {
	if !a.inTx {
		return ErrNoTransaction
	}
	a.writes = a.writes[:0]
	a.inTx = false
	return nil
}

// Commit seals the batch into the WAL, applies it to the data file, and
// removes the WAL. If the process dies mid-call, Recover finishes or
// discards the batch on the next open.
func (a *AtomicFile) Commit() error {
	if !a.inTx {
		return ErrNoTransaction
	}
	defer func() {
		a.writes = a.writes[:0]
		a.inTx = false
	}()
	if len(a.writes) == 0 {
		return nil
	}

	if err := a.writeLog(); err != nil {
		return err
	}
	if err := a.applyWrites(a.writes); err != nil {
		return err
	}
	if err := os.Remove(a.walPath); err != nil {
		return fmt.Errorf("remove wal %s: %w", a.walPath, err)
	}
	return nil
}

// AtomicWrite is the one-shot form: a whole batch in a single call.
func (a *AtomicFile) AtomicWrite(writes []Write) error {
	if err := a.Begin(); err != nil {
		return err
	}
	for _, w := range writes {
		if err := a.StageWrite(w.Position, w.Data); err != nil {
			return err
		}
	}
	return a.Commit()
}

// Recover inspects the WAL left by a previous process. A sealed WAL is
// replayed into the data file; an unsealed or corrupt one is discarded.
func (a *AtomicFile) Recover() error {
	f, err := os.Open(a.walPath)
	if os.IsNotExist(err) {
		return nil // clean shutdown
	}
	if err != nil {
		return fmt.Errorf("open wal %s: %w", a.walPath, err)
	}

	writes, sealed, err := readLog(f)
	f.Close()
	if err != nil {
		return err
	}

	if sealed {
		fmt.Printf("atomicfile: replaying %d recovered writes from %s\n", len(writes), a.walPath)
		if err := a.applyWrites(writes); err != nil {
			return err
		}
	}
	if err := os.Remove(a.walPath); err != nil {
		return fmt.Errorf("remove wal %s: %w", a.walPath, err)
	}
	return nil
}

func (a *AtomicFile) ReadAt(p []byte, off int64) (int, error) {
	return a.data.ReadAt(p, off)
}

func (a *AtomicFile) Size() (int64, error) { return a.data.Size() }

func (a *AtomicFile) Truncate(size int64) error { return a.data.Truncate(size) }

func (a *AtomicFile) Close() error { return a.data.Close() }

// writeLog persists the staged batch plus commit marker and syncs.
func (a *AtomicFile) writeLog() error {
	f, err := os.OpenFile(a.walPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("create wal %s: %w", a.walPath, err)
	}
	for _, w := range a.writes {
		if _, err := f.Write(encodeRecord(uint64(w.Position), w.Data)); err != nil {
			f.Close()
			return fmt.Errorf("append wal record: %w", err)
		}
	}
	if _, err := f.Write(encodeRecord(commitMarkerPos, nil)); err != nil {
		f.Close()
		return fmt.Errorf("append wal commit marker: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("sync wal: %w", err)
	}
	return f.Close()
}

// applyWrites pushes a batch into the data file and syncs it.
func (a *AtomicFile) applyWrites(writes []Write) error {
	for _, w := range writes {
		if _, err := a.data.WriteAt(w.Data, w.Position); err != nil {
			return fmt.Errorf("apply write at %d: %w", w.Position, err)
		}
	}
	if err := a.data.Sync(); err != nil {
		return fmt.Errorf("sync data file: %w", err)
	}
	return nil
}

// readLog scans WAL records until EOF, the commit marker, or the first sign
// of a torn tail. sealed reports whether the marker was reached with every
// preceding record intact.
func readLog(r io.Reader) (writes []Write, sealed bool, err error) {
	header := make([]byte, recordHeaderSize)
	for {
		if _, err := io.ReadFull(r, header); err != nil {
			// Torn or empty tail: the batch never sealed.
			return nil, false, nil
		}
		pos := binary.BigEndian.Uint64(header[0:8])
		dataLen := binary.BigEndian.Uint32(header[8:12])
		crc := binary.BigEndian.Uint32(header[12:16])

		data := make([]byte, dataLen)
		if _, err := io.ReadFull(r, data); err != nil {
			return nil, false, nil
		}
		if calculateCRC(pos, data) != crc {
			return nil, false, nil
		}
		if pos == commitMarkerPos {
			return writes, true, nil
		}
		writes = append(writes, Write{Position: int64(pos), Data: data})
	}
}
