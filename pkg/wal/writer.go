package wal

import (
	"fmt"
	"io"
)

// padding holds the zero bytes used to fill a block tail too small for a header.
var padding [HeaderSize - 1]byte

// maxScratch bounds the frame buffer a Writer keeps between appends.
const maxScratch = 4 * BlockSize

// Writer packs logical payloads into block-aligned records.
// The write offset is tracked explicitly; the destination's own cursor is never used.
type Writer struct {
	dst     io.WriterAt
	offset  int64
	scratch []byte

	// lastRecords is the number of records produced by the most recent Append
	lastRecords int
}

// NewWriter creates a writer that appends to dst starting at offset.
func NewWriter(dst io.WriterAt, offset int64) *Writer {
	return &Writer{
		dst:    dst,
		offset: offset,
	}
}

// Offset returns the offset at which the next record will be written.
func (w *Writer) Offset() int64 {
	return w.offset
}

// Append frames buf into one or more records and writes them at the current offset.
//
// It returns the number of physical bytes written, which includes block padding
// and record headers. On error nothing is considered written and the offset is
// left unchanged.
func (w *Writer) Append(buf []byte) (int, error) {
	frame, records := appendFrame(w.scratch[:0], buf, w.offset)
	if _, err := w.dst.WriteAt(frame, w.offset); err != nil {
		return 0, fmt.Errorf("failed to write %d records at offset %d: %w", records, w.offset, err)
	}

	w.offset += int64(len(frame))
	w.lastRecords = records
	if cap(frame) <= maxScratch {
		w.scratch = frame
	}
	return len(frame), nil
}

// LastRecordCount returns how many records the previous Append produced.
func (w *Writer) LastRecordCount() int {
	return w.lastRecords
}

// Frame appends to dst the bytes Append would write for buf at offset.
func Frame(dst, buf []byte, offset int64) []byte {
	dst, _ = appendFrame(dst, buf, offset)
	return dst
}

func appendFrame(dst, buf []byte, offset int64) ([]byte, int) {
	cursor := int(offset % BlockSize)
	records := 0

	for first := true; first || len(buf) > 0; first = false {
		capacity := BlockSize - cursor
		if capacity < HeaderSize {
			dst = append(dst, padding[:capacity]...)
			cursor = 0
			capacity = BlockSize
		}

		available := capacity - HeaderSize
		n := len(buf)
		fits := n <= available
		if !fits {
			n = available
		}

		var rt RecordType
		switch {
		case first && fits:
			rt = RecordTypeFull
		case first:
			rt = RecordTypeFirst
		case fits:
			rt = RecordTypeLast
		default:
			rt = RecordTypeMiddle
		}

		dst = NewRecord(buf[:n], rt).AppendTo(dst)
		buf = buf[n:]
		cursor += HeaderSize + n
		records++
	}

	return dst, records
}
