// ABOUTME: MemTable telemetry metrics interface and implementation for tracking in-memory table operations
// ABOUTME: Provides instrumentation for put/get latency, size growth and recovery replay

package memtable

import (
	"context"
	"time"

	"github.com/KevoDB/reveldb/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
)

// MemTableMetrics defines the interface for MemTable telemetry operations.
// All metrics are optional - implementations can safely be no-op.
type MemTableMetrics interface {
	telemetry.ComponentMetrics

	// RecordOperation records metrics for individual MemTable operations (Put/Get).
	RecordOperation(ctx context.Context, opType string, duration time.Duration)

	// RecordSizeChange records changes in MemTable size for monitoring growth.
	RecordSizeChange(ctx context.Context, newSize int64, delta int64)

	// RecordRecovery records a table rebuilt from the log.
	RecordRecovery(ctx context.Context, duration time.Duration, entries uint64, keys int)
}

type memTableMetrics struct {
	tel telemetry.Telemetry
}

// NewMemTableMetrics creates a new MemTable metrics implementation.
// If tel is nil, returns a no-op implementation.
func NewMemTableMetrics(tel telemetry.Telemetry) MemTableMetrics {
	if tel == nil {
		return &noopMemTableMetrics{}
	}
	return &memTableMetrics{tel: tel}
}

// NewNoopMemTableMetrics creates a no-op MemTable metrics implementation for testing.
func NewNoopMemTableMetrics() MemTableMetrics {
	return &noopMemTableMetrics{}
}

func (m *memTableMetrics) RecordOperation(ctx context.Context, opType string, duration time.Duration) {
	m.tel.RecordHistogram(ctx, "reveldb.memtable.operation.duration", duration.Seconds(),
		attribute.String(telemetry.AttrComponent, telemetry.ComponentMemTable),
		attribute.String(telemetry.AttrOperationType, opType),
	)

	m.tel.RecordCounter(ctx, "reveldb.memtable.operations.total", 1,
		attribute.String(telemetry.AttrComponent, telemetry.ComponentMemTable),
		attribute.String(telemetry.AttrOperationType, opType),
	)
}

func (m *memTableMetrics) RecordSizeChange(ctx context.Context, newSize int64, delta int64) {
	m.tel.RecordHistogram(ctx, "reveldb.memtable.size.bytes", float64(newSize),
		attribute.String(telemetry.AttrComponent, telemetry.ComponentMemTable),
	)

	// Positive for growth, negative when a value is replaced by a shorter one
	m.tel.RecordHistogram(ctx, "reveldb.memtable.size.delta", float64(delta),
		attribute.String(telemetry.AttrComponent, telemetry.ComponentMemTable),
	)
}

func (m *memTableMetrics) RecordRecovery(ctx context.Context, duration time.Duration, entries uint64, keys int) {
	m.tel.RecordHistogram(ctx, "reveldb.memtable.recovery.duration", duration.Seconds(),
		attribute.String(telemetry.AttrComponent, telemetry.ComponentMemTable),
	)

	m.tel.RecordCounter(ctx, "reveldb.memtable.recovery.entries", int64(entries),
		attribute.String(telemetry.AttrComponent, telemetry.ComponentMemTable),
	)

	m.tel.RecordHistogram(ctx, "reveldb.memtable.recovery.keys", float64(keys),
		attribute.String(telemetry.AttrComponent, telemetry.ComponentMemTable),
	)
}

func (m *memTableMetrics) Close() error {
	return nil
}

// noopMemTableMetrics provides a no-operation implementation for testing or disabled telemetry.
type noopMemTableMetrics struct{}

func (n *noopMemTableMetrics) RecordOperation(ctx context.Context, opType string, duration time.Duration) {
}

func (n *noopMemTableMetrics) RecordSizeChange(ctx context.Context, newSize int64, delta int64) {}

func (n *noopMemTableMetrics) RecordRecovery(ctx context.Context, duration time.Duration, entries uint64, keys int) {
}

func (n *noopMemTableMetrics) Close() error {
	return nil
}
