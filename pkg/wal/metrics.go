// ABOUTME: Log telemetry metrics interface and implementation for tracking appends, syncs and replay
// ABOUTME: Records corruption found during recovery along with how much of the tail was discarded

package wal

import (
	"context"
	"time"

	"github.com/KevoDB/reveldb/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
)

// WALMetrics defines the interface for log telemetry operations.
// All metrics are optional - implementations can safely be no-op.
type WALMetrics interface {
	telemetry.ComponentMetrics

	// RecordAppend records metrics for one logical append.
	RecordAppend(ctx context.Context, duration time.Duration, bytes int64, records int, syncMode string)

	// RecordSync records metrics for a sync of the log file.
	RecordSync(ctx context.Context, duration time.Duration, mode string, forced bool)

	// RecordCorruption records when damaged log contents are detected.
	RecordCorruption(ctx context.Context, reason string, fileID string)

	// RecordRecovery records the outcome of a replay.
	RecordRecovery(ctx context.Context, duration time.Duration, entries uint64, truncatedBytes int64)
}

type walMetrics struct {
	tel telemetry.Telemetry
}

// NewWALMetrics creates a new log metrics implementation.
// If tel is nil, returns a no-op implementation.
func NewWALMetrics(tel telemetry.Telemetry) WALMetrics {
	if tel == nil {
		return &noopWALMetrics{}
	}
	return &walMetrics{tel: tel}
}

// NewNoopWALMetrics creates a no-op log metrics implementation for testing.
func NewNoopWALMetrics() WALMetrics {
	return &noopWALMetrics{}
}

func (m *walMetrics) RecordAppend(ctx context.Context, duration time.Duration, bytes int64, records int, syncMode string) {
	fragmented := records > 1

	m.tel.RecordHistogram(ctx, "reveldb.wal.append.duration", duration.Seconds(),
		attribute.String(telemetry.AttrComponent, telemetry.ComponentWAL),
		attribute.Bool("fragmented", fragmented),
		attribute.String("sync_mode", syncMode),
	)

	m.tel.RecordCounter(ctx, "reveldb.wal.append.bytes", bytes,
		attribute.String(telemetry.AttrComponent, telemetry.ComponentWAL),
		attribute.Bool("fragmented", fragmented),
	)

	m.tel.RecordCounter(ctx, "reveldb.wal.records.total", int64(records),
		attribute.String(telemetry.AttrComponent, telemetry.ComponentWAL),
	)
}

func (m *walMetrics) RecordSync(ctx context.Context, duration time.Duration, mode string, forced bool) {
	m.tel.RecordHistogram(ctx, "reveldb.wal.sync.duration", duration.Seconds(),
		attribute.String(telemetry.AttrComponent, telemetry.ComponentWAL),
		attribute.String("sync_mode", mode),
		attribute.Bool("forced", forced),
	)

	m.tel.RecordCounter(ctx, "reveldb.wal.sync.total", 1,
		attribute.String(telemetry.AttrComponent, telemetry.ComponentWAL),
		attribute.String("sync_mode", mode),
		attribute.Bool("forced", forced),
	)
}

func (m *walMetrics) RecordCorruption(ctx context.Context, reason string, fileID string) {
	m.tel.RecordCounter(ctx, "reveldb.wal.corruption.count", 1,
		attribute.String(telemetry.AttrComponent, telemetry.ComponentWAL),
		attribute.String(telemetry.AttrReason, reason),
		attribute.String(telemetry.AttrFileID, fileID),
	)
}

func (m *walMetrics) RecordRecovery(ctx context.Context, duration time.Duration, entries uint64, truncatedBytes int64) {
	m.tel.RecordHistogram(ctx, "reveldb.wal.recovery.duration", duration.Seconds(),
		attribute.String(telemetry.AttrComponent, telemetry.ComponentWAL),
		attribute.Bool("truncated", truncatedBytes > 0),
	)

	m.tel.RecordCounter(ctx, "reveldb.wal.recovery.entries", int64(entries),
		attribute.String(telemetry.AttrComponent, telemetry.ComponentWAL),
	)

	if truncatedBytes > 0 {
		m.tel.RecordCounter(ctx, "reveldb.wal.recovery.truncated_bytes", truncatedBytes,
			attribute.String(telemetry.AttrComponent, telemetry.ComponentWAL),
		)
	}
}

func (m *walMetrics) Close() error {
	return nil
}

// noopWALMetrics provides a no-operation implementation for testing or disabled telemetry.
type noopWALMetrics struct{}

func (n *noopWALMetrics) RecordAppend(ctx context.Context, duration time.Duration, bytes int64, records int, syncMode string) {
}

func (n *noopWALMetrics) RecordSync(ctx context.Context, duration time.Duration, mode string, forced bool) {
}

func (n *noopWALMetrics) RecordCorruption(ctx context.Context, reason string, fileID string) {
}

func (n *noopWALMetrics) RecordRecovery(ctx context.Context, duration time.Duration, entries uint64, truncatedBytes int64) {
}

func (n *noopWALMetrics) Close() error {
	return nil
}
