package sstable

import "errors"

// magic identifies the table format. It occupies the last 8 bytes of the
// footer and therefore of every table file.
const magic uint64 = 0xDEADBEEFCAFEBABE

// footerLen is the fixed footer size:
// index offset (8) + index size (8) + magic (8).
const footerLen = 24

// ErrNotFound is returned by the reader when a key cannot be found.
var ErrNotFound = errors.New("sstable: not found")

var (
	errClosed        = errors.New("sstable: is closed")
	errBadMagic      = errors.New("sstable: bad magic number")
	errCorrupted     = errors.New("sstable: corrupted table data")
	errEntryTooLarge = errors.New("sstable: entry is too large")
)

type blockInfo struct {
	LastKey []byte // largest key stored in the block
	Offset  int64  // block offset position
	Size    int64  // block size in bytes
}
