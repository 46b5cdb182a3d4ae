package atomicfile

import (
	"encoding/binary"
	"hash/crc32"
)

func encodeRecord(pos uint64, data []byte) []byte {
	buf := make([]byte, recordHeaderSize+len(data))
	binary.BigEndian.PutUint64(buf[0:8], pos)
	binary.BigEndian.PutUint32(buf[8:12], uint32(len(data)))
	binary.BigEndian.PutUint32(buf[12:16], calculateCRC(pos, data))
	copy(buf[16:], data)
	return buf
}

// calculateCRC computes the CRC32 checksum over position and data.
func calculateCRC(pos uint64, data []byte) uint32 {
	hasher := crc32.NewIEEE()

	posBytes := make([]byte, 8)
	binary.BigEndian.PutUint64(posBytes, pos)
	hasher.Write(posBytes)
	hasher.Write(data)

	return hasher.Sum32()
}
