package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/prometheus/common/expfmt"

	"github.com/KevoDB/reveldb/pkg/common/log"
	"github.com/KevoDB/reveldb/pkg/config"
	"github.com/KevoDB/reveldb/pkg/engine"
	"github.com/KevoDB/reveldb/pkg/telemetry"
)

// shell executes interactive commands against at most one open engine.
type shell struct {
	out    io.Writer
	tel    telemetry.Telemetry
	opts   Options
	logger log.Logger

	eng    *engine.Engine
	dbPath string
}

func newShell(out io.Writer, tel telemetry.Telemetry, opts Options) *shell {
	if tel == nil {
		tel = telemetry.NewNoop()
	}
	return &shell{out: out, tel: tel, opts: opts}
}

func (s *shell) prompt() string {
	if s.dbPath != "" {
		return fmt.Sprintf("reveldb:%s> ", s.dbPath)
	}
	return "reveldb> "
}

// loadConfig reads the config of dir and applies environment and flag overrides.
func (s *shell) loadConfig(dir string) (*config.Config, error) {
	cfg, err := config.LoadConfig(dir)
	if err != nil {
		if !errors.Is(err, config.ErrConfigNotFound) {
			return nil, err
		}
		cfg = config.NewDefaultConfig()
	}
	cfg.LoadFromEnv()

	var overrideErr error
	cfg.Update(func(c *config.Config) {
		if s.opts.SyncMode != "" {
			mode, err := config.ParseSyncMode(s.opts.SyncMode)
			if err != nil {
				overrideErr = err
				return
			}
			c.SyncMode = mode
		}
		if s.opts.RecoveryMode != "" {
			mode, err := config.ParseRecoveryMode(s.opts.RecoveryMode)
			if err != nil {
				overrideErr = err
				return
			}
			c.RecoveryMode = mode
		}
		if s.opts.LogLevel != "" {
			c.LogLevel = strings.ToLower(s.opts.LogLevel)
		}
	})
	if overrideErr != nil {
		return nil, overrideErr
	}
	return cfg, nil
}

func (s *shell) open(dir string) error {
	s.closeEngine()

	cfg, err := s.loadConfig(dir)
	if err != nil {
		return err
	}

	opts := []engine.Option{engine.WithConfig(cfg), engine.WithTelemetry(s.tel)}
	if s.logger != nil {
		opts = append(opts, engine.WithLogger(s.logger))
	}

	eng, err := engine.Open(dir, opts...)
	if err != nil {
		return err
	}
	s.eng = eng
	s.dbPath = dir
	return nil
}

func (s *shell) closeEngine() error {
	if s.eng == nil {
		return nil
	}
	err := s.eng.Close()
	s.eng = nil
	s.dbPath = ""
	return err
}

func (s *shell) shutdown() {
	s.closeEngine()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.tel.Shutdown(ctx)
}

func (s *shell) printf(format string, args ...interface{}) {
	fmt.Fprintf(s.out, format, args...)
}

// execute runs one command line. It returns false when the shell should exit.
func (s *shell) execute(line string) bool {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return true
	}
	cmd := strings.ToUpper(parts[0])

	if strings.HasPrefix(cmd, ".") {
		return s.executeDot(strings.ToLower(cmd), parts[1:])
	}

	if s.eng == nil {
		s.printf("Error: No database open\n")
		return true
	}

	switch cmd {
	case "PUT":
		if len(parts) < 3 {
			s.printf("Error: PUT requires key and value arguments\n")
			return true
		}
		value := strings.Join(parts[2:], " ")
		if err := s.eng.Put([]byte(parts[1]), []byte(value)); err != nil {
			s.printf("Error putting value: %s\n", err)
		} else {
			s.printf("Value stored\n")
		}

	case "GET":
		if len(parts) < 2 {
			s.printf("Error: GET requires a key argument\n")
			return true
		}
		if val, ok := s.eng.Get([]byte(parts[1])); ok {
			s.printf("%s\n", val)
		} else {
			s.printf("Key not found\n")
		}

	case "SCAN":
		var start, end []byte
		switch len(parts) {
		case 1:
		case 2:
			start = []byte(parts[1])
		case 3:
			start, end = []byte(parts[1]), []byte(parts[2])
		default:
			s.printf("Error: Invalid SCAN syntax. See .help for usage\n")
			return true
		}

		count := 0
		err := s.eng.Scan(start, end, func(k, v []byte) bool {
			s.printf("%s: %s\n", k, v)
			count++
			return true
		})
		if err != nil {
			s.printf("Error scanning: %s\n", err)
			return true
		}
		s.printf("%d entries found\n", count)

	default:
		s.printf("Unknown command: %s\n", cmd)
	}
	return true
}

func (s *shell) executeDot(cmd string, args []string) bool {
	switch cmd {
	case ".help":
		s.printf("%s", helpText)

	case ".open":
		if len(args) < 1 {
			s.printf("Error: Missing path argument\n")
			return true
		}
		if err := s.open(args[0]); err != nil {
			s.printf("Error opening database: %s\n", err)
			return true
		}
		rs := s.eng.RecoveryStats()
		s.printf("Database opened at %s (%d entries recovered", args[0], rs.Entries)
		if rs.TruncatedBytes > 0 {
			s.printf(", %d damaged bytes discarded", rs.TruncatedBytes)
		}
		s.printf(")\n")

	case ".close":
		if s.eng == nil {
			s.printf("No database open\n")
			return true
		}
		path := s.dbPath
		if err := s.closeEngine(); err != nil {
			s.printf("Error closing database: %s\n", err)
		} else {
			s.printf("Database %s closed\n", path)
		}

	case ".exit":
		s.printf("Goodbye!\n")
		return false

	case ".stats":
		if s.eng == nil {
			s.printf("No database open\n")
			return true
		}
		s.printStats(s.eng.Stats())

	case ".digest":
		if s.eng == nil {
			s.printf("No database open\n")
			return true
		}
		s.printf("%016x (%d keys)\n", s.eng.Digest(), s.eng.Len())

	case ".sync":
		if s.eng == nil {
			s.printf("No database open\n")
			return true
		}
		if err := s.eng.Sync(); err != nil {
			s.printf("Error syncing: %s\n", err)
		} else {
			s.printf("Log synced\n")
		}

	case ".metrics":
		families, err := telemetry.Gather(s.tel)
		if err != nil {
			s.printf("Metrics unavailable: %s\n", err)
			return true
		}
		for _, mf := range families {
			if _, err := expfmt.MetricFamilyToText(s.out, mf); err != nil {
				s.printf("Error writing metrics: %s\n", err)
				return true
			}
		}

	default:
		s.printf("Unknown command: %s\n", cmd)
	}
	return true
}

func (s *shell) printStats(stats map[string]interface{}) {
	getUint64 := func(m map[string]interface{}, key string) uint64 {
		switch v := m[key].(type) {
		case uint64:
			return v
		case int64:
			return uint64(v)
		case int:
			return uint64(v)
		}
		return 0
	}

	s.printf("📊 Operations:\n")
	s.printf("  • Puts: %d\n", getUint64(stats, "put_ops"))
	s.printf("  • Gets: %d (Hits: %d, Misses: %d)\n",
		getUint64(stats, "get_ops"), getUint64(stats, "get_hits"), getUint64(stats, "get_misses"))
	s.printf("  • Scans: %d\n", getUint64(stats, "scan_ops"))
	s.printf("  • Syncs: %d\n", getUint64(stats, "sync_ops"))

	for _, op := range []string{"put", "get"} {
		if latency, ok := stats[op+"_latency"].(map[string]interface{}); ok {
			if avgNs, ok := latency["avg_ns"].(uint64); ok {
				s.printf("  • %s avg: %.3f ms\n", toTitle(op), float64(avgNs)/1000000.0)
			}
		}
	}

	s.printf("\n💾 Log:\n")
	s.printf("  • Path: %v\n", stats["log_path"])
	s.printf("  • Offset: %d\n", getUint64(stats, "log_offset"))
	s.printf("  • Sync Mode: %v\n", stats["sync_mode"])
	s.printf("  • Recovery Mode: %v\n", stats["recovery_mode"])
	s.printf("  • Total Bytes Written: %d\n", getUint64(stats, "total_bytes_written"))
	s.printf("  • Total Bytes Read: %d\n", getUint64(stats, "total_bytes_read"))

	s.printf("\n📋 Table:\n")
	s.printf("  • Keys: %d\n", getUint64(stats, "memtable_keys"))
	s.printf("  • Size: %d bytes\n", getUint64(stats, "memtable_size"))

	if recovery, ok := stats["recovery"].(map[string]interface{}); ok {
		s.printf("\n🔄 Recovery:\n")
		s.printf("  • Entries Recovered: %d\n", getUint64(recovery, "entries_recovered"))
		s.printf("  • Records Read: %d\n", getUint64(recovery, "records_read"))
		s.printf("  • Damaged Bytes Discarded: %d\n", getUint64(recovery, "truncated_bytes"))
		if ms, ok := recovery["duration_ms"].(int64); ok {
			s.printf("  • Duration: %d ms\n", ms)
		}
	}

	if errs, ok := stats["errors"].(map[string]uint64); ok && len(errs) > 0 {
		s.printf("\n⚠️ Errors:\n")
		types := make([]string, 0, len(errs))
		for errType := range errs {
			types = append(types, errType)
		}
		sort.Strings(types)
		for _, errType := range types {
			s.printf("  • %s: %d\n", toTitle(strings.ReplaceAll(errType, "_", " ")), errs[errType])
		}
	}
}

// toTitle converts the first character of each word to title case
func toTitle(s string) string {
	prev := ' '
	return strings.Map(
		func(r rune) rune {
			if unicode.IsSpace(prev) || unicode.IsPunct(prev) {
				prev = r
				return unicode.ToTitle(r)
			}
			prev = r
			return r
		},
		s)
}
