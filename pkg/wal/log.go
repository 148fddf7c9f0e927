package wal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/KevoDB/reveldb/pkg/common/log"
	"github.com/KevoDB/reveldb/pkg/config"
)

// ErrCorruptEntry is returned by replay handlers for a payload that was read
// intact from the log but cannot be decoded. Replay treats it like damaged
// records and ends the log before the offending entry.
var ErrCorruptEntry = errors.New("corrupt log entry")

// File is the storage behind a Log. *os.File implements it.
type File interface {
	io.ReaderAt
	io.WriterAt
	Stat() (os.FileInfo, error)
	Truncate(size int64) error
	Sync() error
	Close() error
}

// Options configures a Log.
type Options struct {
	SyncMode     config.SyncMode
	SyncBytes    int64
	RecoveryMode config.RecoveryMode
	Logger       log.Logger
	Metrics      WALMetrics

	// OpenFile opens the backing file. Nil opens path read-write, creating it.
	OpenFile func(path string) (File, error)
}

func openOSFile(path string) (File, error) {
	return os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
}

// DefaultOptions returns options derived from a default configuration.
func DefaultOptions() *Options {
	return OptionsFromConfig(config.NewDefaultConfig())
}

// OptionsFromConfig copies the log settings out of cfg.
func OptionsFromConfig(cfg *config.Config) *Options {
	c := cfg.Clone()
	return &Options{
		SyncMode:     c.SyncMode,
		SyncBytes:    c.SyncBytes,
		RecoveryMode: c.RecoveryMode,
	}
}

// ReplayStats summarizes a replay.
type ReplayStats struct {
	Entries        uint64
	Records        uint64
	Bytes          int64
	TruncatedBytes int64
	Duration       time.Duration
}

// Log is an append-only record log backed by a single file.
type Log struct {
	mu      sync.Mutex
	file    File
	path    string
	writer  *Writer
	opts    Options
	logger  log.Logger
	metrics WALMetrics

	unsynced int64
	closed   atomic.Bool

	// failed is set when a failed append could not be rolled back; the log
	// refuses further appends once it holds an error.
	failed error
}

// Open opens the log at path, creating it if necessary.
// New records are appended after the existing contents; call Replay first to
// read and validate them.
func Open(path string, opts *Options) (*Log, error) {
	if opts == nil {
		opts = DefaultOptions()
	}

	openFile := opts.OpenFile
	if openFile == nil {
		openFile = openOSFile
	}
	file, err := openFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to stat log file: %w", err)
	}

	l := &Log{
		file:    file,
		path:    path,
		writer:  NewWriter(file, info.Size()),
		opts:    *opts,
		logger:  opts.Logger,
		metrics: opts.Metrics,
	}
	if l.logger == nil {
		l.logger = log.GetDefaultLogger()
	}
	l.logger = l.logger.WithField("log", filepath.Base(path))
	if l.metrics == nil {
		l.metrics = NewNoopWALMetrics()
	}

	return l, nil
}

// Path returns the path of the backing file.
func (l *Log) Path() string {
	return l.path
}

// Offset returns the offset at which the next record will be written.
func (l *Log) Offset() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.writer.Offset()
}

// Replay reads every entry from the start of the log and passes it to handler.
//
// On damaged contents the recovery mode decides the outcome. In strict mode
// the corruption error is returned. In truncate-tail mode the file is cut at the
// end of the last good entry and replay succeeds. Handler errors other than
// ErrCorruptEntry abort replay in both modes.
func (l *Log) Replay(handler func([]byte) error) (*ReplayStats, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed.Load() {
		return nil, ErrLogClosed
	}

	start := time.Now()
	size := l.writer.Offset()
	rd := NewReader(io.NewSectionReader(l.file, 0, size), 0)
	stats := &ReplayStats{}

	for {
		payload, err := rd.Next()
		if err == io.EOF {
			break
		}

		cut := int64(-1)
		if err != nil {
			if !IsCorruption(err) {
				return nil, fmt.Errorf("failed to replay log: %w", err)
			}
			cut = rd.GoodOffset()
		} else if herr := handler(payload); herr != nil {
			if !errors.Is(herr, ErrCorruptEntry) {
				return nil, herr
			}
			err = fmt.Errorf("entry at offset %d: %w", rd.EntryOffset(), herr)
			cut = rd.EntryOffset()
		}

		if err != nil {
			l.metrics.RecordCorruption(context.Background(), corruptionReason(err), filepath.Base(l.path))
			if l.opts.RecoveryMode != config.RecoveryTruncateTail {
				return nil, err
			}
			if terr := l.truncate(cut); terr != nil {
				return nil, fmt.Errorf("failed to truncate damaged log tail: %w", terr)
			}
			stats.TruncatedBytes = size - cut
			l.logger.Warn("truncated %d bytes of damaged log tail at offset %d: %v", stats.TruncatedBytes, cut, err)
			break
		}

		stats.Entries++
		stats.Bytes = rd.GoodOffset()
	}

	stats.Records = rd.RecordCount()
	stats.Duration = time.Since(start)
	l.metrics.RecordRecovery(context.Background(), stats.Duration, stats.Entries, stats.TruncatedBytes)
	l.logger.Debug("replayed %d entries from %d records in %s", stats.Entries, stats.Records, stats.Duration)

	return stats, nil
}

// truncate cuts the file at offset and moves the write position there.
// Caller must hold l.mu.
func (l *Log) truncate(offset int64) error {
	if err := l.file.Truncate(offset); err != nil {
		return err
	}
	if err := l.file.Sync(); err != nil {
		return err
	}
	l.writer.offset = offset
	l.unsynced = 0
	return nil
}

// Append writes buf as one logical entry.
// When Append returns an error the entry is not part of the log: any bytes it
// wrote are removed before returning.
func (l *Log) Append(buf []byte) error {
	start := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed.Load() {
		return ErrLogClosed
	}
	if l.failed != nil {
		return l.failed
	}

	prev := l.writer.Offset()
	n, err := l.writer.Append(buf)
	if err == nil {
		l.unsynced += int64(n)
		err = l.maybeSync()
	}
	if err != nil {
		l.rollback(prev, err)
		return err
	}

	l.metrics.RecordAppend(context.Background(), time.Since(start), int64(n), l.writer.LastRecordCount(), l.opts.SyncMode.String())
	return nil
}

// rollback removes a partially written entry. Caller must hold l.mu.
func (l *Log) rollback(offset int64, cause error) {
	if err := l.truncate(offset); err != nil {
		l.failed = fmt.Errorf("log unusable after failed append (%v): %w", cause, err)
		l.logger.Error("failed to roll back append at offset %d: %v", offset, err)
		return
	}
	l.logger.Warn("rolled back failed append at offset %d: %v", offset, cause)
}

// maybeSync syncs the file if the sync mode requires it. Caller must hold l.mu.
func (l *Log) maybeSync() error {
	switch l.opts.SyncMode {
	case config.SyncImmediate:
		return l.syncLocked(false)
	case config.SyncBatch:
		if l.unsynced >= l.opts.SyncBytes {
			return l.syncLocked(false)
		}
	}
	return nil
}

func (l *Log) syncLocked(forced bool) error {
	start := time.Now()
	if err := l.file.Sync(); err != nil {
		return fmt.Errorf("failed to sync log: %w", err)
	}
	l.unsynced = 0
	l.metrics.RecordSync(context.Background(), time.Since(start), l.opts.SyncMode.String(), forced)
	return nil
}

// Sync flushes all appended entries to stable storage.
func (l *Log) Sync() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed.Load() {
		return ErrLogClosed
	}
	return l.syncLocked(true)
}

// Close syncs and closes the log.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.closed.CompareAndSwap(false, true) {
		return nil
	}

	var syncErr error
	if l.failed == nil && l.unsynced > 0 {
		syncErr = l.file.Sync()
	}
	if err := l.file.Close(); err != nil {
		return fmt.Errorf("failed to close log: %w", err)
	}
	if syncErr != nil {
		return fmt.Errorf("failed to sync log on close: %w", syncErr)
	}
	return nil
}

func corruptionReason(err error) string {
	switch {
	case errors.Is(err, ErrChecksumMismatch):
		return "checksum"
	case errors.Is(err, ErrInvalidRecordType):
		return "record_type"
	case errors.Is(err, ErrFragmentSequence):
		return "fragment_sequence"
	case errors.Is(err, ErrTruncatedRecord):
		return "truncated"
	case errors.Is(err, ErrBadPadding):
		return "padding"
	case errors.Is(err, ErrCorruptEntry):
		return "entry"
	default:
		return "unknown"
	}
}
