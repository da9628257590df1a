package sstable

import (
	"bytes"
	"encoding/binary"
	"io"
	"os"
	"sort"
	"sync"
)

// Reader instances can look up keys in a table.
type Reader struct {
	r io.ReaderAt

	index []blockInfo

	f *os.File // set by Open
}

// Open opens the table file at path. The returned Reader owns the file
// handle until Close is called.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	stat, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}

	r, err := NewReader(f, stat.Size())
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	r.f = f
	return r, nil
}

// NewReader opens a reader.
func NewReader(r io.ReaderAt, size int64) (*Reader, error) {
	if size < footerLen {
		return nil, errBadMagic
	}

	// read footer
	tmp := make([]byte, footerLen)
	if _, err := r.ReadAt(tmp, size-footerLen); err != nil {
		return nil, err
	}

	// parse footer
	if binary.LittleEndian.Uint64(tmp[16:]) != magic {
		return nil, errBadMagic
	}
	// bounds are compared in subtraction form, additions could overflow
	indexOffset := int64(binary.LittleEndian.Uint64(tmp[0:]))
	indexSize := int64(binary.LittleEndian.Uint64(tmp[8:]))
	if indexSize < 4 || indexOffset < 0 || indexOffset > size-footerLen || indexSize > size-footerLen-indexOffset {
		return nil, errCorrupted
	}

	// read and parse index
	raw := make([]byte, indexSize)
	if _, err := r.ReadAt(raw, indexOffset); err != nil {
		return nil, err
	}
	index, err := parseIndex(raw, indexOffset)
	if err != nil {
		return nil, err
	}

	return &Reader{
		r:     r,
		index: index,
	}, nil
}

// parseIndex decodes the index block. Every referenced data block must
// lie within [0, limit), the data section of the file.
func parseIndex(buf []byte, limit int64) ([]blockInfo, error) {
	n := int(binary.LittleEndian.Uint32(buf))
	buf = buf[4:]

	// an index entry occupies at least 20 bytes
	if n < 0 || n > len(buf)/20 {
		return nil, errCorrupted
	}

	index := make([]blockInfo, 0, n)
	for i := 0; i < n; i++ {
		if len(buf) < 4 {
			return nil, errCorrupted
		}
		klen := int(binary.LittleEndian.Uint32(buf))
		buf = buf[4:]

		if klen < 0 || len(buf) < klen+16 {
			return nil, errCorrupted
		}
		info := blockInfo{
			LastKey: append([]byte(nil), buf[:klen]...),
			Offset:  int64(binary.LittleEndian.Uint64(buf[klen:])),
			Size:    int64(binary.LittleEndian.Uint64(buf[klen+8:])),
		}
		buf = buf[klen+16:]

		if info.Offset < 0 || info.Size < 4 || info.Offset > limit || info.Size > limit-info.Offset {
			return nil, errCorrupted
		}
		index = append(index, info)
	}
	return index, nil
}

// NumBlocks returns the number of stored data blocks.
func (r *Reader) NumBlocks() int {
	return len(r.index)
}

// Close closes the reader. It releases the file handle of readers
// obtained through Open and is a no-op otherwise.
func (r *Reader) Close() error {
	if r.f != nil {
		return r.f.Close()
	}
	return nil
}

// Append retrieves a single value for a key. Unlike Get it doesn't
// allocate a new byte slice but appends the value to dst instead.
// It may return an ErrNotFound error.
func (r *Reader) Append(dst []byte, key []byte) ([]byte, error) {
	b, err := r.SeekBlock(key)
	if err != nil {
		return dst, err
	}
	defer b.Release()

	for b.Next() {
		if bytes.Equal(b.Key(), key) {
			return append(dst, b.Value()...), nil
		}
	}
	if err := b.Err(); err != nil {
		return dst, err
	}
	return dst, ErrNotFound
}

// Get is a shortcut for Append(nil, key).
// It may return an ErrNotFound error.
func (r *Reader) Get(key []byte) ([]byte, error) {
	return r.Append(nil, key)
}

// GetBlock returns a reader for the n-th block.
func (r *Reader) GetBlock(bpos int) (*BlockReader, error) {
	if bpos < 0 {
		bpos = 0
	}
	if bpos >= len(r.index) {
		return &BlockReader{bpos: len(r.index)}, nil
	}
	return r.readBlock(bpos)
}

// SeekBlock seeks the block that may contain the key, i.e. the first
// block whose last key is >= key. Every key stored in a block is <= the
// block's last key and last keys are ascending across blocks, so no
// other block can contain it.
func (r *Reader) SeekBlock(key []byte) (*BlockReader, error) {
	bpos := sort.Search(len(r.index), func(i int) bool {
		return bytes.Compare(r.index[i].LastKey, key) >= 0
	})
	return r.GetBlock(bpos)
}

func (r *Reader) readBlock(bpos int) (*BlockReader, error) {
	info := r.index[bpos]

	block := fetchBuffer(int(info.Size))
	if _, err := r.r.ReadAt(block, info.Offset); err != nil {
		releaseBuffer(block)
		return nil, err
	}

	return &BlockReader{
		block: block,
		bpos:  bpos,
		blen:  int(binary.LittleEndian.Uint32(block)),
		read:  4,
	}, nil
}

// --------------------------------------------------------------------

// BlockReader is a cursor over the entries of a single data block.
type BlockReader struct {
	block []byte
	bpos  int // the block position within the table
	blen  int // the number of entries in the block
	bcur  int // entries consumed so far
	read  int // bytes consumed so far

	key []byte // current key
	val []byte // current value
	err error
}

// NumEntries returns the number of entries in this block.
func (b *BlockReader) NumEntries() int { return b.blen }

// Pos returns the index position of the block within the table.
func (b *BlockReader) Pos() int { return b.bpos }

// Key returns the key of the current entry.
func (b *BlockReader) Key() []byte { return b.key }

// Value returns the value of the current entry. Please note that keys and
// values are temporary buffers and must be copied if used beyond the next
// cursor move.
func (b *BlockReader) Value() []byte { return b.val }

// Next advances the cursor to the next entry within the block and
// returns true if successful.
func (b *BlockReader) Next() bool {
	if b.err != nil || b.bcur >= b.blen {
		return false
	}

	key, err := b.chunk()
	if err != nil {
		b.err = err
		return false
	}
	val, err := b.chunk()
	if err != nil {
		b.err = err
		return false
	}

	b.key, b.val = key, val
	b.bcur++
	return true
}

// Err exposes decode errors, if any. Truncated or malformed block data
// surfaces here rather than being read out of bounds.
func (b *BlockReader) Err() error {
	return b.err
}

// Release releases the block reader and frees up resources. The reader
// must not be used after this method is called.
func (b *BlockReader) Release() { releaseBuffer(b.block) }

// chunk consumes a single length-prefixed byte sequence.
func (b *BlockReader) chunk() ([]byte, error) {
	if b.read+4 > len(b.block) {
		return nil, errCorrupted
	}
	n := int(binary.LittleEndian.Uint32(b.block[b.read:]))
	b.read += 4

	if n < 0 || b.read+n > len(b.block) {
		return nil, errCorrupted
	}
	p := b.block[b.read : b.read+n]
	b.read += n
	return p, nil
}

// --------------------------------------------------------------------

var bufPool sync.Pool

func fetchBuffer(sz int) []byte {
	if v := bufPool.Get(); v != nil {
		if p := v.([]byte); sz <= cap(p) {
			return p[:sz]
		}
	}
	return make([]byte, sz)
}

func releaseBuffer(p []byte) {
	if cap(p) != 0 {
		bufPool.Put(p)
	}
}
