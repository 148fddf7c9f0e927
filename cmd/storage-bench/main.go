package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"runtime/pprof"
	"strings"
	"time"

	"github.com/KevoDB/reveldb/pkg/config"
)

const (
	defaultValueSize = 100
	defaultKeyCount  = 10000
)

var (
	// Command line flags
	benchmarkType = flag.String("type", "all", "Type of benchmark to run (write, read, scan, mixed, recover, or all)")
	duration      = flag.Duration("duration", 10*time.Second, "Duration to run each benchmark")
	numKeys       = flag.Int("keys", defaultKeyCount, "Number of keys to use")
	valueSize     = flag.Int("value-size", defaultValueSize, "Size of values in bytes (at most 255)")
	dataDir       = flag.String("data-dir", "./benchmark-data", "Directory to store benchmark data")
	sequential    = flag.Bool("sequential", false, "Use sequential keys instead of random")
	scanSize      = flag.Int("scan-size", 100, "Number of entries to read per scan")
	syncModes     = flag.String("sync", "batch", "Comma separated sync modes to compare: none, batch, immediate")
	cpuProfile    = flag.String("cpu-profile", "", "Write CPU profile to file")
	memProfile    = flag.String("mem-profile", "", "Write memory profile to file")
	resultsFile   = flag.String("results", "", "CSV file to write results to (in addition to stdout)")
)

func main() {
	flag.Parse()

	// Set up CPU profiling if requested
	if *cpuProfile != "" {
		f, err := os.Create(*cpuProfile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Could not create CPU profile: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			fmt.Fprintf(os.Stderr, "Could not start CPU profile: %v\n", err)
			os.Exit(1)
		}
		defer pprof.StopCPUProfile()
	}

	cfg := benchConfig{
		Keys:       *numKeys,
		ValueSize:  *valueSize,
		ScanSize:   *scanSize,
		Duration:   *duration,
		Sequential: *sequential,
		Seed:       time.Now().UnixNano(),
	}
	if err := cfg.validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid options: %v\n", err)
		os.Exit(1)
	}

	var modes []config.SyncMode
	for _, name := range strings.Split(*syncModes, ",") {
		mode, err := config.ParseSyncMode(strings.TrimSpace(name))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Invalid sync mode: %v\n", err)
			os.Exit(1)
		}
		modes = append(modes, mode)
	}

	types := strings.Split(*benchmarkType, ",")
	if len(types) == 1 && strings.EqualFold(types[0], "all") {
		types = benchmarkOrder
	}

	fmt.Printf("Benchmark Report (%s)\n", time.Now().Format(time.RFC3339))
	fmt.Printf("Keys: %d, Value Size: %d bytes, Duration: %s, Mode: %s\n",
		cfg.Keys, cfg.ValueSize, cfg.Duration, cfg.keyMode())

	results, err := runAll(os.Stdout, *dataDir, modes, types, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Benchmark failed: %v\n", err)
		os.Exit(1)
	}

	PrintResultTable(os.Stdout, results)

	if *resultsFile != "" {
		if err := SaveResultCSV(results, *resultsFile); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to write results to file: %v\n", err)
		}
	}

	// Write memory profile if requested
	if *memProfile != "" {
		f, err := os.Create(*memProfile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Could not create memory profile: %v\n", err)
		} else {
			defer f.Close()
			runtime.GC()
			if err := pprof.WriteHeapProfile(f); err != nil {
				fmt.Fprintf(os.Stderr, "Could not write memory profile: %v\n", err)
			}
		}
	}
}

// runAll runs every benchmark type once per sync mode, each mode in a fresh
// directory under root.
func runAll(out io.Writer, root string, modes []config.SyncMode, types []string, cfg benchConfig) ([]BenchmarkResult, error) {
	for _, typ := range types {
		if _, ok := benchmarks[strings.ToLower(typ)]; !ok {
			return nil, fmt.Errorf("unknown benchmark type: %s", typ)
		}
	}

	var results []BenchmarkResult
	for _, mode := range modes {
		dir := filepath.Join(root, mode.String())
		if err := os.RemoveAll(dir); err != nil {
			return nil, fmt.Errorf("failed to clean benchmark directory: %w", err)
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create benchmark directory: %w", err)
		}

		env, err := newBenchEnv(dir, mode)
		if err != nil {
			return nil, err
		}

		for _, typ := range types {
			typ = strings.ToLower(typ)
			fmt.Fprintf(out, "Running %s benchmark (sync=%s)...\n", typ, mode)
			res, err := benchmarks[typ](env, cfg)
			if err != nil {
				env.close()
				return nil, fmt.Errorf("%s benchmark: %w", typ, err)
			}
			res.SyncMode = mode.String()
			res.Timestamp = time.Now()
			results = append(results, res)
		}

		if err := env.close(); err != nil {
			return nil, err
		}
	}
	return results, nil
}
