package memtable

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/KevoDB/reveldb/pkg/common/log"
	"github.com/KevoDB/reveldb/pkg/config"
	entrycodec "github.com/KevoDB/reveldb/pkg/entry"
	"github.com/KevoDB/reveldb/pkg/wal"
)

func setupTestLog(t *testing.T, mode config.RecoveryMode) (string, *wal.Options) {
	tmpDir, err := os.MkdirTemp("", "memtable_recovery_test")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(tmpDir) })

	opts := wal.DefaultOptions()
	opts.RecoveryMode = mode
	opts.Logger = log.NewStandardLogger(log.WithOutput(&bytes.Buffer{}))
	return filepath.Join(tmpDir, config.DefaultLogFileName), opts
}

func appendEntries(t *testing.T, path string, opts *wal.Options, pairs ...[2]string) {
	t.Helper()
	l, err := wal.Open(path, opts)
	if err != nil {
		t.Fatalf("failed to open log: %v", err)
	}
	defer l.Close()

	for _, p := range pairs {
		buf, err := entrycodec.Encode([]byte(p[0]), []byte(p[1]))
		if err != nil {
			t.Fatalf("failed to encode entry: %v", err)
		}
		if err := l.Append(buf); err != nil {
			t.Fatalf("failed to append: %v", err)
		}
	}
}

func recoverTable(t *testing.T, path string, opts *wal.Options) (*MemTable, *RecoveryStats, error) {
	t.Helper()
	l, err := wal.Open(path, opts)
	if err != nil {
		t.Fatalf("failed to open log: %v", err)
	}
	defer l.Close()

	mt := NewMemTable()
	stats, err := Recover(l, mt)
	return mt, stats, err
}

func TestRecoverFromLog(t *testing.T) {
	path, opts := setupTestLog(t, config.RecoveryStrict)
	appendEntries(t, path, opts,
		[2]string{"key1", "value1"},
		[2]string{"key2", "value2"},
		[2]string{"key1", "value1b"},
		[2]string{"key3", "value3"},
	)

	mt, stats, err := recoverTable(t, path, opts)
	if err != nil {
		t.Fatalf("recovery failed: %v", err)
	}

	expected := map[string]string{"key1": "value1b", "key2": "value2", "key3": "value3"}
	for k, want := range expected {
		got, found := mt.Get([]byte(k))
		if !found || string(got) != want {
			t.Errorf("%s: expected %s, got %s (found %v)", k, want, got, found)
		}
	}

	if stats.Entries != 4 {
		t.Errorf("expected 4 entries replayed, got %d", stats.Entries)
	}
	if stats.Records != 4 {
		t.Errorf("expected 4 records, got %d", stats.Records)
	}
	if mt.Len() != 3 {
		t.Errorf("expected 3 keys, got %d", mt.Len())
	}
}

func TestRecoverIsIdempotent(t *testing.T) {
	path, opts := setupTestLog(t, config.RecoveryStrict)
	appendEntries(t, path, opts, [2]string{"a", "1"}, [2]string{"b", "2"}, [2]string{"a", "3"})

	first, _, err := recoverTable(t, path, opts)
	if err != nil {
		t.Fatalf("recovery failed: %v", err)
	}
	second, _, err := recoverTable(t, path, opts)
	if err != nil {
		t.Fatalf("recovery failed: %v", err)
	}

	if first.Digest() != second.Digest() {
		t.Error("replaying the same log twice produced different tables")
	}
}

func TestRecoverMalformedEntry(t *testing.T) {
	path, opts := setupTestLog(t, config.RecoveryStrict)
	appendEntries(t, path, opts, [2]string{"good", "entry"})

	// A well-framed record whose payload is not a valid entry
	l, err := wal.Open(path, opts)
	if err != nil {
		t.Fatalf("failed to open log: %v", err)
	}
	if err := l.Append([]byte{9, 'x'}); err != nil {
		t.Fatalf("append failed: %v", err)
	}
	l.Close()
	appendEntries(t, path, opts, [2]string{"after", "bad"})

	_, _, err = recoverTable(t, path, opts)
	if !errors.Is(err, entrycodec.ErrMalformedEntry) {
		t.Errorf("expected ErrMalformedEntry, got %v", err)
	}
	if !wal.IsCorruption(err) {
		t.Errorf("expected a malformed entry to count as corruption, got %v", err)
	}

	opts.RecoveryMode = config.RecoveryTruncateTail
	mt, stats, err := recoverTable(t, path, opts)
	if err != nil {
		t.Fatalf("truncating recovery failed: %v", err)
	}
	if _, found := mt.Get([]byte("good")); !found {
		t.Error("entry before the malformed one was lost")
	}
	if _, found := mt.Get([]byte("after")); found {
		t.Error("entry after the malformed one should have been discarded")
	}
	if stats.TruncatedBytes == 0 {
		t.Error("expected truncated bytes to be reported")
	}
}
