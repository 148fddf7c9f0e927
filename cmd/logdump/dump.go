package main

import (
	"errors"
	"fmt"
	"io"
	"unicode"

	"github.com/KevoDB/reveldb/pkg/entry"
	"github.com/KevoDB/reveldb/pkg/wal"
)

// summary describes one pass over a log.
type summary struct {
	Records   uint64
	Entries   uint64
	Fragments uint64
	// GoodOffset is the end of the last complete entry
	GoodOffset int64
	// Size is the number of bytes consumed, padding included
	Size int64
	// Err is the first corruption found, if any
	Err error
}

// dump reads every record of the log in r, writing one line per record and
// one per decoded entry to w. Nothing is written when w is nil.
// Records are reassembled exactly as recovery does it, so corruption stops the
// pass at the same place and is reported in the summary; I/O errors are
// returned.
func dump(w io.Writer, r io.Reader) (*summary, error) {
	rd := wal.NewReader(r, 0)
	sum := &summary{}

	printf := func(format string, args ...interface{}) {
		if w != nil {
			fmt.Fprintf(w, format, args...)
		}
	}

	rd.OnRecord = func(offset int64, rec *wal.Record) {
		if rec.Type != wal.RecordTypeFull {
			sum.Fragments++
		}
		printf("%08d  %-6s  len=%-5d  crc=%08x  ok\n", offset, rec.Type, rec.Length, rec.Checksum)
	}

	for {
		payload, err := rd.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			if !wal.IsCorruption(err) {
				return nil, err
			}
			sum.Err = err
			break
		}

		key, value, err := entry.Decode(payload)
		if err != nil {
			sum.Err = fmt.Errorf("entry ending at offset %d: %w", rd.Offset(), err)
			break
		}
		sum.Entries++
		sum.GoodOffset = rd.GoodOffset()
		printf("          entry  key=%s  value=%s\n", printable(key), printable(value))
	}

	sum.Records = rd.RecordCount()
	sum.Size = rd.Offset()
	return sum, nil
}

// printable renders b as a quoted string when it is printable text, else as hex.
func printable(b []byte) string {
	for _, r := range string(b) {
		if r == unicode.ReplacementChar || !unicode.IsPrint(r) {
			return fmt.Sprintf("0x%x", b)
		}
	}
	return fmt.Sprintf("%q", b)
}

// isCorrupt reports whether the summary ends in damage rather than a clean EOF.
func (s *summary) isCorrupt() bool {
	return s.Err != nil && (wal.IsCorruption(s.Err) || errors.Is(s.Err, entry.ErrMalformedEntry))
}
