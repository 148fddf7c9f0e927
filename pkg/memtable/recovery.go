package memtable

import (
	"context"
	"fmt"
	"time"

	entrycodec "github.com/KevoDB/reveldb/pkg/entry"
	"github.com/KevoDB/reveldb/pkg/wal"
)

// RecoveryStats describes a table rebuilt from the log.
type RecoveryStats struct {
	// Entries is the number of entries applied to the table
	Entries uint64
	// Records is the number of physical records read
	Records uint64
	// Bytes is the length of the verified part of the log
	Bytes int64
	// TruncatedBytes is the size of the damaged tail that was discarded
	TruncatedBytes int64
	Duration       time.Duration
}

// Recover replays every entry in log into table, in log order.
// Entries that cannot be decoded are reported to the log as corrupt so its
// recovery mode decides whether replay fails or the tail is discarded.
func Recover(log *wal.Log, table *MemTable) (*RecoveryStats, error) {
	start := time.Now()

	handler := func(payload []byte) error {
		key, value, err := entrycodec.Decode(payload)
		if err != nil {
			return fmt.Errorf("%w: %w", wal.ErrCorruptEntry, err)
		}
		table.Put(key, value)
		return nil
	}

	replay, err := log.Replay(handler)
	if err != nil {
		return nil, fmt.Errorf("failed to recover from %s: %w", log.Path(), err)
	}

	stats := &RecoveryStats{
		Entries:        replay.Entries,
		Records:        replay.Records,
		Bytes:          replay.Bytes,
		TruncatedBytes: replay.TruncatedBytes,
		Duration:       time.Since(start),
	}

	table.mu.RLock()
	metrics := table.metrics
	table.mu.RUnlock()
	metrics.RecordRecovery(context.Background(), stats.Duration, stats.Entries, table.Len())

	return stats, nil
}
