package wal

import (
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
)

// Archive copies the log read from src into dst as a zstd stream.
// The archived bytes are the raw log, block padding included, so a Reader over
// OpenArchive sees exactly what it would see reading the original file.
func Archive(dst io.Writer, src io.Reader, level zstd.EncoderLevel) (int64, error) {
	enc, err := zstd.NewWriter(dst, zstd.WithEncoderLevel(level))
	if err != nil {
		return 0, fmt.Errorf("failed to create zstd encoder: %w", err)
	}

	n, err := io.Copy(enc, src)
	if err != nil {
		enc.Close()
		return n, fmt.Errorf("failed to archive log: %w", err)
	}

	if err := enc.Close(); err != nil {
		return n, fmt.Errorf("failed to finish archive: %w", err)
	}
	return n, nil
}

// OpenArchive returns a reader over the raw log stored in a zstd archive.
func OpenArchive(r io.Reader) (io.ReadCloser, error) {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}
	return dec.IOReadCloser(), nil
}
