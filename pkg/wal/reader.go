package wal

import (
	"bufio"
	"fmt"
	"io"
)

// Reader replays records from a log and reassembles them into logical payloads.
type Reader struct {
	rd     *bufio.Reader
	offset int64

	// good is the offset just past the last complete logical entry
	good int64
	// entryStart is the offset at which the last returned entry began
	entryStart int64

	fragments  []byte
	inFragment bool
	records    uint64

	// OnRecord, if set, is called by Next with every verified record and
	// the offset it starts at.
	OnRecord func(offset int64, rec *Record)
}

// NewReader creates a Reader for r, whose first byte sits at offset within the log.
func NewReader(r io.Reader, offset int64) *Reader {
	return &Reader{
		rd:         bufio.NewReaderSize(r, 64*1024), // 64KB buffer
		offset:     offset,
		good:       offset,
		entryStart: offset,
	}
}

// Offset returns the offset of the next unread byte.
func (r *Reader) Offset() int64 {
	return r.offset
}

// GoodOffset returns the offset just past the last complete logical entry.
// Everything before it has been read and verified.
func (r *Reader) GoodOffset() int64 {
	return r.good
}

// EntryOffset returns the offset at which the most recently returned entry began.
func (r *Reader) EntryOffset() int64 {
	return r.entryStart
}

// RecordCount returns the number of verified records read so far.
func (r *Reader) RecordCount() uint64 {
	return r.records
}

// skipBlockTail discards the padding at the end of a block.
// The padding must be zero; a log may end inside it.
func (r *Reader) skipBlockTail() error {
	remaining := BlockSize - int(r.offset%BlockSize)
	if remaining >= HeaderSize {
		return nil
	}
	tail, err := r.rd.Peek(remaining)
	for i, b := range tail {
		if b != 0 {
			return fmt.Errorf("%w: byte %#x at offset %d", ErrBadPadding, b, r.offset+int64(i))
		}
	}
	n, _ := r.rd.Discard(len(tail))
	r.offset += int64(n)
	return err
}

// ReadRecord reads and verifies the next physical record.
// It returns io.EOF when the log ends on a record boundary.
func (r *Reader) ReadRecord() (*Record, error) {
	if err := r.skipBlockTail(); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		if IsCorruption(err) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to skip block padding at offset %d: %w", r.offset, err)
	}

	start := r.offset
	rec, err := ReadRecord(r.rd)
	if err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("record at offset %d: %w", start, err)
	}
	if err := rec.Verify(); err != nil {
		return nil, fmt.Errorf("record at offset %d: %w", start, err)
	}

	r.offset += int64(rec.Size())
	r.records++
	return rec, nil
}

// Next returns the next complete logical payload.
//
// Fragmented entries are reassembled from their FIRST, MIDDLE and LAST records.
// io.EOF is returned only when the log ends outside a fragmented entry; a log
// ending part way through one yields ErrTruncatedRecord.
func (r *Reader) Next() ([]byte, error) {
	for {
		recordStart := r.offset
		rec, err := r.ReadRecord()
		if err != nil {
			if err == io.EOF {
				if r.inFragment {
					return nil, fmt.Errorf("%w: log ends inside the entry at offset %d", ErrTruncatedRecord, r.good)
				}
				return nil, io.EOF
			}
			return nil, err
		}
		if r.OnRecord != nil {
			r.OnRecord(recordStart, rec)
		}

		switch rec.Type {
		case RecordTypeFull:
			if r.inFragment {
				return nil, fmt.Errorf("%w: FULL record at offset %d inside a fragmented entry", ErrFragmentSequence, recordStart)
			}
			r.entryStart = r.good
			r.good = r.offset
			return rec.Payload, nil

		case RecordTypeFirst:
			if r.inFragment {
				return nil, fmt.Errorf("%w: FIRST record at offset %d inside a fragmented entry", ErrFragmentSequence, recordStart)
			}
			r.inFragment = true
			r.fragments = append(r.fragments[:0], rec.Payload...)

		case RecordTypeMiddle:
			if !r.inFragment {
				return nil, fmt.Errorf("%w: MIDDLE record at offset %d without FIRST", ErrFragmentSequence, recordStart)
			}
			r.fragments = append(r.fragments, rec.Payload...)

		case RecordTypeLast:
			if !r.inFragment {
				return nil, fmt.Errorf("%w: LAST record at offset %d without FIRST", ErrFragmentSequence, recordStart)
			}
			r.fragments = append(r.fragments, rec.Payload...)
			r.inFragment = false
			r.entryStart = r.good
			r.good = r.offset
			return append([]byte(nil), r.fragments...), nil
		}
	}
}
