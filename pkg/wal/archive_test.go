package wal

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zstd"
)

func TestArchiveRoundTrip(t *testing.T) {
	dir := createTempDir(t)
	path := filepath.Join(dir, "000001.log")

	payloads := [][]byte{
		[]byte("alpha"),
		bytes.Repeat([]byte("beta"), BlockSize/2),
		[]byte("gamma"),
	}
	writeLog(t, path, payloads...)

	src, err := os.Open(path)
	if err != nil {
		t.Fatalf("failed to open log: %v", err)
	}
	defer src.Close()

	var archived bytes.Buffer
	n, err := Archive(&archived, src, zstd.SpeedDefault)
	if err != nil {
		t.Fatalf("archive failed: %v", err)
	}

	info, _ := os.Stat(path)
	if n != info.Size() {
		t.Errorf("expected %d bytes archived, got %d", info.Size(), n)
	}
	if archived.Len() >= int(n) {
		t.Errorf("expected the repetitive log to compress, %d >= %d", archived.Len(), n)
	}

	rc, err := OpenArchive(&archived)
	if err != nil {
		t.Fatalf("failed to open archive: %v", err)
	}
	defer rc.Close()

	got, err := readAll(NewReader(rc, 0))
	if err != nil {
		t.Fatalf("failed to read archived log: %v", err)
	}
	if len(got) != len(payloads) {
		t.Fatalf("expected %d entries, got %d", len(payloads), len(got))
	}
	for i := range payloads {
		if !bytes.Equal(got[i], payloads[i]) {
			t.Errorf("entry %d mismatch", i)
		}
	}
}

func TestOpenArchiveRejectsGarbage(t *testing.T) {
	rc, err := OpenArchive(bytes.NewReader([]byte("not zstd at all")))
	if err != nil {
		// Some decoder versions validate the header eagerly
		return
	}
	defer rc.Close()

	if _, err := readAll(NewReader(rc, 0)); err == nil {
		t.Error("expected an error reading a non-zstd archive")
	}
}
