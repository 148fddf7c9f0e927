// ABOUTME: Tests for engine telemetry using a real provider backed by an in-process Prometheus registry
// ABOUTME: Verifies engine, WAL and MemTable metrics are recorded through Open, Put, Get and recovery

package engine

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/KevoDB/reveldb/pkg/config"
	"github.com/KevoDB/reveldb/pkg/telemetry"
	dto "github.com/prometheus/client_model/go"
)

func gatherFamilies(t *testing.T, tel telemetry.Telemetry) map[string]*dto.MetricFamily {
	t.Helper()
	families, err := telemetry.Gather(tel)
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}
	out := make(map[string]*dto.MetricFamily, len(families))
	for _, mf := range families {
		out[mf.GetName()] = mf
	}
	return out
}

func hasFamily(families map[string]*dto.MetricFamily, prefix string) bool {
	for name := range families {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}

func TestEngineTelemetry(t *testing.T) {
	tel, err := telemetry.New(telemetry.DefaultConfig())
	if err != nil {
		t.Fatalf("Failed to create telemetry: %v", err)
	}
	defer tel.Shutdown(context.Background())

	dir := t.TempDir()
	var buf bytes.Buffer
	eng, err := Open(dir,
		WithConfig(config.NewDefaultConfig()),
		WithLogger(quietLogger(&buf)),
		WithTelemetry(tel),
	)
	if err != nil {
		t.Fatalf("Failed to open engine: %v", err)
	}

	mustPut(t, eng, []byte("a"), []byte("1"))
	mustPut(t, eng, []byte("b"), []byte("2"))
	eng.Get([]byte("a"))
	eng.Put([]byte("big"), bytes.Repeat([]byte{1}, 300))
	eng.Close()

	families := gatherFamilies(t, tel)

	for _, prefix := range []string{
		"reveldb_engine_operation_duration",
		"reveldb_engine_operations",
		"reveldb_engine_bytes",
		"reveldb_engine_open_duration",
		"reveldb_engine_errors",
		"reveldb_wal_append_bytes",
		"reveldb_wal_sync_duration",
		"reveldb_wal_recovery_duration",
		"reveldb_memtable_operation_duration",
	} {
		if !hasFamily(families, prefix) {
			t.Errorf("Expected metric family %s", prefix)
		}
	}
}

func TestEngineTelemetryRecoveryCorruption(t *testing.T) {
	dir := t.TempDir()
	path := writeThreeEntries(t, dir)
	flipByte(t, path, 40)

	tel, err := telemetry.New(telemetry.DefaultConfig())
	if err != nil {
		t.Fatalf("Failed to create telemetry: %v", err)
	}
	defer tel.Shutdown(context.Background())

	var buf bytes.Buffer
	eng, err := Open(dir,
		WithConfig(testConfig(config.RecoveryTruncateTail)),
		WithLogger(quietLogger(&buf)),
		WithTelemetry(tel),
	)
	if err != nil {
		t.Fatalf("Failed to open engine: %v", err)
	}
	defer eng.Close()

	families := gatherFamilies(t, tel)
	if !hasFamily(families, "reveldb_wal_corruption_count") {
		t.Error("Expected corruption counter after damaged log")
	}
	if !hasFamily(families, "reveldb_memtable_recovery_keys") {
		t.Error("Expected memtable recovery histogram")
	}
}

func TestEngineMetricsNoop(t *testing.T) {
	ctx := context.Background()

	for _, m := range []EngineMetrics{NewNoopEngineMetrics(), NewEngineMetrics(nil)} {
		m.RecordOperation(ctx, telemetry.OpTypePut, time.Millisecond, true)
		m.RecordBytes(ctx, telemetry.OpTypePut, 10)
		m.RecordOpen(ctx, time.Millisecond, 3, 2)
		m.RecordError(ctx, telemetry.OpTypePut, "io_error")
		if err := m.Close(); err != nil {
			t.Errorf("Close returned %v", err)
		}
	}
}
