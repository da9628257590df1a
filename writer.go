package sstable

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
)

// WriterOptions define writer specific options.
type WriterOptions struct {
	// BlockSize is the size threshold in bytes at which the current
	// data block is sealed and written out.
	// Default: 4KiB.
	BlockSize int
}

func (o *WriterOptions) norm() *WriterOptions {
	var oo WriterOptions
	if o != nil {
		oo = *o
	}

	if oo.BlockSize < 1 {
		oo.BlockSize = 1 << 12
	}

	return &oo
}

// Writer instances can write a table.
type Writer struct {
	w io.Writer
	o *WriterOptions

	buf     []byte // encoded entries of the current block
	blen    int    // the number of entries in the current block
	lastKey []byte // the most recently appended key

	offset int64       // current file offset
	index  []blockInfo // one entry per sealed block

	tmp []byte // scratch buffer

	bw *bufio.Writer // set by Create
	f  *os.File      // set by Create
}

// NewWriter wraps a writer and returns a Writer.
func NewWriter(w io.Writer, o *WriterOptions) *Writer {
	return &Writer{
		w:   w,
		o:   o.norm(),
		tmp: make([]byte, 8),
	}
}

// Create creates or truncates the file at path and returns a Writer
// for it. The underlying file is buffered, synced and closed by Close.
func Create(path string, o *WriterOptions) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}

	bw := bufio.NewWriter(f)
	w := NewWriter(bw, o)
	w.bw, w.f = bw, f
	return w, nil
}

// Append appends a key/value pair to the table. Keys must be appended in
// ascending lexicographic byte order; appending the previous key again is
// allowed, duplicates are stored as-is.
func (w *Writer) Append(key, value []byte) error {
	if w.tmp == nil {
		return errClosed
	}

	if bytes.Compare(key, w.lastKey) < 0 {
		return fmt.Errorf("sstable: attempted an out-of-order append, %q must be >= %q", key, w.lastKey)
	}

	// lengths must fit the 4-byte length fields
	if uint64(len(key)) > math.MaxUint32 || uint64(len(value)) > math.MaxUint32 {
		return errEntryTooLarge
	}

	binary.LittleEndian.PutUint32(w.tmp, uint32(len(key)))
	w.buf = append(w.buf, w.tmp[:4]...)
	w.buf = append(w.buf, key...)
	binary.LittleEndian.PutUint32(w.tmp, uint32(len(value)))
	w.buf = append(w.buf, w.tmp[:4]...)
	w.buf = append(w.buf, value...)

	w.blen++
	w.lastKey = append(w.lastKey[:0], key...)

	if len(w.buf) >= w.o.BlockSize {
		return w.flush()
	}
	return nil
}

// Close seals the current block, writes the block index and the footer
// and marks the writer as closed. Writers obtained through Create also
// sync and close the underlying file, even when writing the table tail
// fails.
func (w *Writer) Close() error {
	if w.tmp == nil {
		return errClosed
	}

	err := w.finish()
	w.tmp = nil

	if w.bw != nil && err == nil {
		err = w.bw.Flush()
	}
	if w.f != nil {
		if err == nil {
			err = w.f.Sync()
		}
		if e := w.f.Close(); err == nil {
			err = e
		}
	}
	return err
}

func (w *Writer) finish() error {
	if err := w.flush(); err != nil {
		return err
	}

	indexOffset := w.offset
	if err := w.writeIndex(); err != nil {
		return err
	}
	return w.writeFooter(indexOffset, w.offset-indexOffset)
}

func (w *Writer) writeIndex() error {
	binary.LittleEndian.PutUint32(w.tmp, uint32(len(w.index)))
	if err := w.writeRaw(w.tmp[:4]); err != nil {
		return err
	}

	for _, ent := range w.index {
		binary.LittleEndian.PutUint32(w.tmp, uint32(len(ent.LastKey)))
		if err := w.writeRaw(w.tmp[:4]); err != nil {
			return err
		}
		if err := w.writeRaw(ent.LastKey); err != nil {
			return err
		}

		binary.LittleEndian.PutUint64(w.tmp, uint64(ent.Offset))
		if err := w.writeRaw(w.tmp[:8]); err != nil {
			return err
		}
		binary.LittleEndian.PutUint64(w.tmp, uint64(ent.Size))
		if err := w.writeRaw(w.tmp[:8]); err != nil {
			return err
		}
	}
	return nil
}

func (w *Writer) writeFooter(indexOffset, indexSize int64) error {
	binary.LittleEndian.PutUint64(w.tmp, uint64(indexOffset))
	if err := w.writeRaw(w.tmp[:8]); err != nil {
		return err
	}
	binary.LittleEndian.PutUint64(w.tmp, uint64(indexSize))
	if err := w.writeRaw(w.tmp[:8]); err != nil {
		return err
	}
	binary.LittleEndian.PutUint64(w.tmp, magic)
	return w.writeRaw(w.tmp[:8])
}

func (w *Writer) writeRaw(p []byte) error {
	n, err := w.w.Write(p)
	w.offset += int64(n)
	return err
}

func (w *Writer) flush() error {
	if w.blen == 0 {
		return nil
	}

	info := blockInfo{
		LastKey: append([]byte(nil), w.lastKey...),
		Offset:  w.offset,
		Size:    int64(4 + len(w.buf)),
	}

	binary.LittleEndian.PutUint32(w.tmp, uint32(w.blen))
	if err := w.writeRaw(w.tmp[:4]); err != nil {
		return err
	}
	if err := w.writeRaw(w.buf); err != nil {
		return err
	}

	w.index = append(w.index, info)
	w.buf = w.buf[:0]
	w.blen = 0
	return nil
}
