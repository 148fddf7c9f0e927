package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/KevoDB/reveldb/pkg/config"
)

func testBenchConfig() benchConfig {
	return benchConfig{
		Keys:      200,
		ValueSize: 32,
		ScanSize:  10,
		Duration:  20 * time.Millisecond,
		Seed:      1,
	}
}

func TestBenchConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*benchConfig)
		wantErr bool
	}{
		{"valid", func(c *benchConfig) {}, false},
		{"no keys", func(c *benchConfig) { c.Keys = 0 }, true},
		{"value too large", func(c *benchConfig) { c.ValueSize = 256 }, true},
		{"no scan size", func(c *benchConfig) { c.ScanSize = 0 }, true},
		{"no duration", func(c *benchConfig) { c.Duration = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testBenchConfig()
			tt.mutate(&cfg)
			if err := cfg.validate(); (err != nil) != tt.wantErr {
				t.Errorf("validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestKeyGenSequential(t *testing.T) {
	cfg := testBenchConfig()
	cfg.Keys = 3
	cfg.Sequential = true
	g := newKeyGen(cfg)

	var got []string
	for i := 0; i < 4; i++ {
		got = append(got, string(g.next()))
	}
	want := "key-0000000000,key-0000000001,key-0000000002,key-0000000000"
	if strings.Join(got, ",") != want {
		t.Errorf("Sequential keys = %v", got)
	}
}

func TestRunAll(t *testing.T) {
	root := t.TempDir()
	var out bytes.Buffer

	modes := []config.SyncMode{config.SyncNone, config.SyncBatch}
	results, err := runAll(&out, root, modes, benchmarkOrder, testBenchConfig())
	if err != nil {
		t.Fatalf("runAll failed: %v", err)
	}

	if len(results) != len(modes)*len(benchmarkOrder) {
		t.Fatalf("Expected %d results, got %d", len(modes)*len(benchmarkOrder), len(results))
	}

	for _, r := range results {
		if r.Operations == 0 {
			t.Errorf("%s (%s) ran no operations", r.BenchmarkType, r.SyncMode)
		}
		switch r.BenchmarkType {
		case "Read":
			if r.HitRate <= 0 || r.HitRate >= 100 {
				t.Errorf("Read hit rate should include hits and misses, got %.2f", r.HitRate)
			}
		case "Recover":
			if r.Operations < 200 {
				t.Errorf("Expected at least the preloaded entries to be recovered, got %d", r.Operations)
			}
		}
	}

	if !strings.Contains(out.String(), "Running recover benchmark (sync=batch)") {
		t.Errorf("Missing progress output:\n%s", out.String())
	}
}

func TestRunAllUnknownType(t *testing.T) {
	var out bytes.Buffer
	_, err := runAll(&out, t.TempDir(), []config.SyncMode{config.SyncNone}, []string{"compact"}, testBenchConfig())
	if err == nil || !strings.Contains(err.Error(), "unknown benchmark type") {
		t.Errorf("Expected unknown type error, got %v", err)
	}
}

func TestResultCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "results.csv")
	results := []BenchmarkResult{
		{BenchmarkType: "Write", SyncMode: "batch", NumKeys: 10, ValueSize: 8, Mode: "Random",
			Operations: 100, Duration: 1.5, Throughput: 66.67, Latency: 15000, Timestamp: time.Unix(0, 0).UTC()},
		{BenchmarkType: "Mixed", SyncMode: "none", Operations: 40, ReadRatio: 75, WriteRatio: 25,
			Timestamp: time.Unix(0, 0).UTC()},
	}

	if err := SaveResultCSV(results, path); err != nil {
		t.Fatalf("SaveResultCSV failed: %v", err)
	}
	loaded, err := LoadResultCSV(path)
	if err != nil {
		t.Fatalf("LoadResultCSV failed: %v", err)
	}
	if len(loaded) != 2 {
		t.Fatalf("Expected 2 results, got %d", len(loaded))
	}
	if loaded[0].SyncMode != "batch" || loaded[0].Operations != 100 || loaded[0].Latency != 15000 {
		t.Errorf("Unexpected first result %+v", loaded[0])
	}
	if loaded[1].ReadRatio != 75 || loaded[1].WriteRatio != 25 {
		t.Errorf("Unexpected mixed ratios %+v", loaded[1])
	}

	var buf bytes.Buffer
	PrintResultTable(&buf, loaded)
	if !strings.Contains(buf.String(), "R:75/W:25") || !strings.Contains(buf.String(), "15.00ms") {
		t.Errorf("Unexpected table:\n%s", buf.String())
	}
}
