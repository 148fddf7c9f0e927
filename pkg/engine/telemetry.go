// ABOUTME: Engine-level telemetry for operation latency, throughput, errors and startup recovery
// ABOUTME: Wraps the telemetry interface with reveldb.engine.* metric names and a no-op fallback

package engine

import (
	"context"
	"time"

	"github.com/KevoDB/reveldb/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
)

// EngineMetrics defines the interface for engine-level telemetry
type EngineMetrics interface {
	telemetry.ComponentMetrics

	// RecordOperation records the latency and outcome of a Put, Get, Scan or Sync.
	RecordOperation(ctx context.Context, operation string, duration time.Duration, success bool)

	// RecordBytes records key and value bytes moved by an operation.
	RecordBytes(ctx context.Context, operation string, bytes int64)

	// RecordOpen records the time taken to open the engine and replay its log.
	RecordOpen(ctx context.Context, duration time.Duration, entries uint64, keys int)

	// RecordError records a failed operation by error type.
	RecordError(ctx context.Context, operation, errorType string)
}

type engineMetrics struct {
	tel telemetry.Telemetry
}

// NewEngineMetrics creates a new EngineMetrics instance.
// If tel is nil, returns a no-op implementation.
func NewEngineMetrics(tel telemetry.Telemetry) EngineMetrics {
	if tel == nil {
		return &noopEngineMetrics{}
	}
	return &engineMetrics{tel: tel}
}

// NewNoopEngineMetrics creates a no-op EngineMetrics for testing or when telemetry is disabled
func NewNoopEngineMetrics() EngineMetrics {
	return &noopEngineMetrics{}
}

func (m *engineMetrics) RecordOperation(ctx context.Context, operation string, duration time.Duration, success bool) {
	status := telemetry.StatusSuccess
	if !success {
		status = telemetry.StatusError
	}

	attrs := []attribute.KeyValue{
		attribute.String(telemetry.AttrComponent, telemetry.ComponentEngine),
		attribute.String(telemetry.AttrOperationType, operation),
		attribute.String(telemetry.AttrStatus, status),
	}
	m.tel.RecordHistogram(ctx, "reveldb.engine.operation.duration", duration.Seconds(), attrs...)
	m.tel.RecordCounter(ctx, "reveldb.engine.operations.total", 1, attrs...)
}

func (m *engineMetrics) RecordBytes(ctx context.Context, operation string, bytes int64) {
	telemetry.RecordBytes(ctx, m.tel, "reveldb.engine.bytes.total", bytes,
		attribute.String(telemetry.AttrComponent, telemetry.ComponentEngine),
		attribute.String(telemetry.AttrOperationType, operation),
	)
}

func (m *engineMetrics) RecordOpen(ctx context.Context, duration time.Duration, entries uint64, keys int) {
	m.tel.RecordHistogram(ctx, "reveldb.engine.open.duration", duration.Seconds(),
		attribute.String(telemetry.AttrComponent, telemetry.ComponentEngine),
	)

	m.tel.RecordHistogram(ctx, "reveldb.engine.open.keys", float64(keys),
		attribute.String(telemetry.AttrComponent, telemetry.ComponentEngine),
	)

	m.tel.RecordCounter(ctx, "reveldb.engine.open.entries", int64(entries),
		attribute.String(telemetry.AttrComponent, telemetry.ComponentEngine),
	)
}

func (m *engineMetrics) RecordError(ctx context.Context, operation, errorType string) {
	m.tel.RecordCounter(ctx, "reveldb.engine.errors.total", 1,
		attribute.String(telemetry.AttrComponent, telemetry.ComponentEngine),
		attribute.String(telemetry.AttrOperationType, operation),
		attribute.String(telemetry.AttrErrorType, errorType),
	)
}

// Close is a no-op; the engine does not own the telemetry instance.
func (m *engineMetrics) Close() error {
	return nil
}

// noopEngineMetrics provides a no-op implementation for testing or disabled telemetry
type noopEngineMetrics struct{}

func (n *noopEngineMetrics) RecordOperation(ctx context.Context, operation string, duration time.Duration, success bool) {
}
func (n *noopEngineMetrics) RecordBytes(ctx context.Context, operation string, bytes int64) {}
func (n *noopEngineMetrics) RecordOpen(ctx context.Context, duration time.Duration, entries uint64, keys int) {
}
func (n *noopEngineMetrics) RecordError(ctx context.Context, operation, errorType string) {}
func (n *noopEngineMetrics) Close() error                                                 { return nil }
