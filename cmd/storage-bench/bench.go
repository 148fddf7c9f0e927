package main

import (
	"errors"
	"fmt"
	"math/rand"
	"os"
	"strconv"
	"time"

	"github.com/KevoDB/reveldb/pkg/common/log"
	"github.com/KevoDB/reveldb/pkg/config"
	"github.com/KevoDB/reveldb/pkg/engine"
	"github.com/KevoDB/reveldb/pkg/entry"
)

// benchConfig holds the workload parameters shared by every benchmark
type benchConfig struct {
	Keys       int
	ValueSize  int
	ScanSize   int
	Duration   time.Duration
	Sequential bool
	Seed       int64
}

func (c benchConfig) validate() error {
	if c.Keys <= 0 {
		return errors.New("keys must be positive")
	}
	if c.ValueSize < 0 || c.ValueSize > entry.MaxFieldSize {
		return fmt.Errorf("value size must be between 0 and %d", entry.MaxFieldSize)
	}
	if c.ScanSize <= 0 {
		return errors.New("scan size must be positive")
	}
	if c.Duration <= 0 {
		return errors.New("duration must be positive")
	}
	return nil
}

// keyMode returns a string describing the key generation mode
func (c benchConfig) keyMode() string {
	if c.Sequential {
		return "Sequential"
	}
	return "Random"
}

// benchEnv owns the engine under test and can reopen it from its log
type benchEnv struct {
	dir string
	cfg *config.Config
	eng *engine.Engine
}

func newBenchEnv(dir string, mode config.SyncMode) (*benchEnv, error) {
	cfg := config.NewDefaultConfig()
	cfg.SyncMode = mode
	env := &benchEnv{dir: dir, cfg: cfg}
	if err := env.open(); err != nil {
		return nil, err
	}
	return env, nil
}

func (b *benchEnv) open() error {
	logger := log.NewStandardLogger(log.WithOutput(os.Stderr), log.WithLevel(log.LevelWarn))
	eng, err := engine.Open(b.dir, engine.WithConfig(b.cfg), engine.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("failed to open storage engine: %w", err)
	}
	b.eng = eng
	return nil
}

func (b *benchEnv) close() error {
	if b.eng == nil {
		return nil
	}
	err := b.eng.Close()
	b.eng = nil
	return err
}

type benchmarkFunc func(env *benchEnv, cfg benchConfig) (BenchmarkResult, error)

var benchmarks = map[string]benchmarkFunc{
	"write":   runWriteBenchmark,
	"read":    runReadBenchmark,
	"scan":    runScanBenchmark,
	"mixed":   runMixedBenchmark,
	"recover": runRecoverBenchmark,
}

// benchmarkOrder is the order used for "all". Recovery runs last so it
// replays everything the earlier benchmarks wrote.
var benchmarkOrder = []string{"write", "read", "scan", "mixed", "recover"}

// keyGen produces keys in the configured mode, drawn from a fixed key space
type keyGen struct {
	cfg benchConfig
	r   *rand.Rand
	n   int
}

func newKeyGen(cfg benchConfig) *keyGen {
	return &keyGen{cfg: cfg, r: rand.New(rand.NewSource(cfg.Seed))}
}

func (g *keyGen) next() []byte {
	var i int
	if g.cfg.Sequential {
		i = g.n % g.cfg.Keys
		g.n++
	} else {
		i = g.r.Intn(g.cfg.Keys)
	}
	return generateKey(i)
}

// generateKey returns the i-th key of the key space. Keys sort in index order.
func generateKey(i int) []byte {
	return []byte(fmt.Sprintf("key-%010d", i))
}

func makeValue(size int) []byte {
	value := make([]byte, size)
	for i := range value {
		value[i] = byte(i % 256)
	}
	return value
}

// preload writes every key of the key space once
func preload(e *engine.Engine, cfg benchConfig) error {
	value := makeValue(cfg.ValueSize)
	for i := 0; i < cfg.Keys; i++ {
		if err := e.Put(generateKey(i), value); err != nil {
			return fmt.Errorf("preload key #%d: %w", i, err)
		}
	}
	return nil
}

func newResult(typ string, cfg benchConfig, ops int, elapsed time.Duration) BenchmarkResult {
	res := BenchmarkResult{
		BenchmarkType: typ,
		NumKeys:       cfg.Keys,
		ValueSize:     cfg.ValueSize,
		Mode:          cfg.keyMode(),
		Operations:    ops,
		Duration:      elapsed.Seconds(),
	}
	if ops > 0 && elapsed > 0 {
		res.Throughput = float64(ops) / elapsed.Seconds()
		res.Latency = float64(elapsed.Microseconds()) / float64(ops)
	}
	return res
}

// runWriteBenchmark benchmarks write performance
func runWriteBenchmark(env *benchEnv, cfg benchConfig) (BenchmarkResult, error) {
	keys := newKeyGen(cfg)
	value := makeValue(cfg.ValueSize)

	var ops int
	start := time.Now()
	deadline := start.Add(cfg.Duration)
	for time.Now().Before(deadline) {
		if err := env.eng.Put(keys.next(), value); err != nil {
			return BenchmarkResult{}, fmt.Errorf("write error (op #%d): %w", ops, err)
		}
		ops++
	}
	if env.cfg.SyncMode != config.SyncImmediate {
		if err := env.eng.Sync(); err != nil {
			return BenchmarkResult{}, err
		}
	}

	return newResult("Write", cfg, ops, time.Since(start)), nil
}

// runReadBenchmark benchmarks point lookups, a tenth of them for absent keys
func runReadBenchmark(env *benchEnv, cfg benchConfig) (BenchmarkResult, error) {
	if env.eng.Len() < cfg.Keys {
		if err := preload(env.eng, cfg); err != nil {
			return BenchmarkResult{}, err
		}
	}

	keys := newKeyGen(cfg)
	var ops, hits int
	start := time.Now()
	deadline := start.Add(cfg.Duration)
	for time.Now().Before(deadline) {
		key := keys.next()
		if ops%10 == 9 {
			key = []byte("missing-" + strconv.Itoa(ops))
		}
		if _, ok := env.eng.Get(key); ok {
			hits++
		}
		ops++
	}

	res := newResult("Read", cfg, ops, time.Since(start))
	if ops > 0 {
		res.HitRate = float64(hits) / float64(ops) * 100
	}
	return res, nil
}

// runScanBenchmark benchmarks range scans of ScanSize entries from random starts
func runScanBenchmark(env *benchEnv, cfg benchConfig) (BenchmarkResult, error) {
	if env.eng.Len() == 0 {
		if err := preload(env.eng, cfg); err != nil {
			return BenchmarkResult{}, err
		}
	}

	keys := newKeyGen(cfg)
	var ops, entries int
	start := time.Now()
	deadline := start.Add(cfg.Duration)
	for time.Now().Before(deadline) {
		seen := 0
		err := env.eng.Scan(keys.next(), nil, func(k, v []byte) bool {
			seen++
			return seen < cfg.ScanSize
		})
		if err != nil {
			return BenchmarkResult{}, fmt.Errorf("scan error (op #%d): %w", ops, err)
		}
		entries += seen
		ops++
	}

	elapsed := time.Since(start)
	res := newResult("Scan", cfg, ops, elapsed)
	if elapsed > 0 {
		res.EntriesPerSec = float64(entries) / elapsed.Seconds()
	}
	return res, nil
}

// runMixedBenchmark interleaves reads and writes at a 3:1 ratio
func runMixedBenchmark(env *benchEnv, cfg benchConfig) (BenchmarkResult, error) {
	keys := newKeyGen(cfg)
	value := makeValue(cfg.ValueSize)

	var ops, hits, reads int
	start := time.Now()
	deadline := start.Add(cfg.Duration)
	for time.Now().Before(deadline) {
		key := keys.next()
		if ops%4 == 3 {
			if err := env.eng.Put(key, value); err != nil {
				return BenchmarkResult{}, fmt.Errorf("write error (op #%d): %w", ops, err)
			}
		} else {
			if _, ok := env.eng.Get(key); ok {
				hits++
			}
			reads++
		}
		ops++
	}

	res := newResult("Mixed", cfg, ops, time.Since(start))
	res.ReadRatio = 75
	res.WriteRatio = 25
	if reads > 0 {
		res.HitRate = float64(hits) / float64(reads) * 100
	}
	return res, nil
}

// runRecoverBenchmark closes the engine and measures how long replaying its
// log takes. Throughput is reported in recovered entries per second.
func runRecoverBenchmark(env *benchEnv, cfg benchConfig) (BenchmarkResult, error) {
	if env.eng.Len() == 0 {
		if err := preload(env.eng, cfg); err != nil {
			return BenchmarkResult{}, err
		}
	}
	digest := env.eng.Digest()

	if err := env.close(); err != nil {
		return BenchmarkResult{}, err
	}
	start := time.Now()
	if err := env.open(); err != nil {
		return BenchmarkResult{}, err
	}
	elapsed := time.Since(start)

	if env.eng.Digest() != digest {
		return BenchmarkResult{}, errors.New("recovered table differs from the table before close")
	}

	rs := env.eng.RecoveryStats()
	res := newResult("Recover", cfg, int(rs.Entries), elapsed)
	res.EntriesPerSec = res.Throughput
	return res, nil
}
