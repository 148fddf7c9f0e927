package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/KevoDB/reveldb/pkg/common/iterator"
	"github.com/KevoDB/reveldb/pkg/common/iterator/bounded"
	"github.com/KevoDB/reveldb/pkg/common/log"
	"github.com/KevoDB/reveldb/pkg/config"
	"github.com/KevoDB/reveldb/pkg/entry"
	"github.com/KevoDB/reveldb/pkg/memtable"
	"github.com/KevoDB/reveldb/pkg/stats"
	"github.com/KevoDB/reveldb/pkg/telemetry"
	"github.com/KevoDB/reveldb/pkg/wal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Engine is a single-log key-value store. Every Put is appended to the log
// before it becomes visible, and Open rebuilds the table by replaying the log.
type Engine struct {
	mu  sync.RWMutex
	dir string
	cfg *config.Config

	log   *wal.Log
	table *memtable.MemTable

	stats    stats.Collector
	logger   log.Logger
	tel      telemetry.Telemetry
	metrics  EngineMetrics
	recovery *memtable.RecoveryStats

	closed atomic.Bool
}

type options struct {
	cfg    *config.Config
	logger log.Logger
	tel    telemetry.Telemetry

	// openLog overrides how the log file is opened.
	openLog func(path string) (wal.File, error)
}

// Option configures Open.
type Option func(*options)

// WithConfig uses cfg instead of the config file in the data directory.
// Environment overrides are not applied to an explicit config.
func WithConfig(cfg *config.Config) Option {
	return func(o *options) {
		o.cfg = cfg
	}
}

// WithLogger sets the logger used by the engine and its log.
func WithLogger(logger log.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithTelemetry sets the telemetry sink. The engine does not shut it down.
func WithTelemetry(tel telemetry.Telemetry) Option {
	return func(o *options) {
		o.tel = tel
	}
}

// Open opens the engine stored in dir, replaying its log before returning.
// The directory must already exist.
func Open(dir string, opts ...Option) (*Engine, error) {
	start := time.Now()

	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrDirNotFound, dir)
		}
		return nil, fmt.Errorf("failed to stat data directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrDirNotFound, dir)
	}

	cfg, err := resolveConfig(dir, o.cfg)
	if err != nil {
		return nil, err
	}

	tel := o.tel
	if tel == nil {
		tel = telemetry.NewNoop()
	}

	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", config.ErrInvalidConfig, err)
	}
	logger := o.logger
	if logger == nil {
		logger = log.GetDefaultLogger()
	}
	logger = logger.WithField("component", "engine")
	if o.logger == nil {
		logger.SetLevel(level)
	}

	ctx, span := tel.StartSpan(context.Background(), "engine.open",
		attribute.String("dir", dir),
	)
	defer span.End()

	walOpts := wal.OptionsFromConfig(cfg)
	walOpts.Logger = logger.WithField("component", "wal")
	walOpts.Metrics = wal.NewWALMetrics(tel)
	walOpts.OpenFile = o.openLog

	logPath := filepath.Join(dir, cfg.LogFileName)
	l, err := wal.Open(logPath, walOpts)
	if err != nil {
		failSpan(span, err)
		return nil, err
	}

	table := memtable.NewMemTable()
	table.SetMetrics(memtable.NewMemTableMetrics(tel))

	recovery, err := memtable.Recover(l, table)
	if err != nil {
		l.Close()
		failSpan(span, err)
		return nil, err
	}

	e := &Engine{
		dir:      dir,
		cfg:      cfg,
		log:      l,
		table:    table,
		stats:    stats.NewAtomicCollector(),
		logger:   logger,
		tel:      tel,
		metrics:  NewEngineMetrics(tel),
		recovery: recovery,
	}

	e.stats.TrackRecovery(recovery.Entries, recovery.Records, recovery.Bytes,
		recovery.TruncatedBytes, recovery.Duration)
	e.stats.TrackMemTableSize(uint64(table.ApproximateSize()), uint64(table.Len()))
	e.metrics.RecordOpen(ctx, time.Since(start), recovery.Entries, table.Len())

	span.SetAttributes(
		attribute.Int64("recovery.entries", int64(recovery.Entries)),
		attribute.Int64("recovery.truncated_bytes", recovery.TruncatedBytes),
	)

	logger.Info("opened %s: recovered %d entries (%d keys) in %s",
		logPath, recovery.Entries, table.Len(), recovery.Duration)

	return e, nil
}

// resolveConfig returns a private copy of the explicit config, or the config
// file in dir with environment overrides applied.
func resolveConfig(dir string, explicit *config.Config) (*config.Config, error) {
	if explicit != nil {
		cfg := explicit.Clone()
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		return cfg, nil
	}

	cfg, err := config.LoadConfig(dir)
	if err != nil {
		if !errors.Is(err, config.ErrConfigNotFound) {
			return nil, fmt.Errorf("failed to load configuration: %w", err)
		}
		cfg = config.NewDefaultConfig()
	}

	cfg.LoadFromEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Put stores value under key. The entry is durable according to the sync
// mode before it becomes visible to Get.
func (e *Engine) Put(key, value []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed.Load() {
		return ErrEngineClosed
	}

	buf, err := entry.Encode(key, value)
	if err != nil {
		e.stats.TrackError("put_invalid")
		e.metrics.RecordError(context.Background(), telemetry.OpTypePut, "invalid_entry")
		return err
	}

	ctx, span := e.tel.StartSpan(context.Background(), "engine.put",
		attribute.Int(telemetry.AttrKeySize, len(key)),
		attribute.Int(telemetry.AttrValueSize, len(value)),
	)
	defer span.End()

	start := time.Now()
	if err := e.log.Append(buf); err != nil {
		e.stats.TrackError("put_error")
		e.metrics.RecordError(ctx, telemetry.OpTypePut, errorType(err))
		e.metrics.RecordOperation(ctx, telemetry.OpTypePut, time.Since(start), false)
		failSpan(span, err)
		return fmt.Errorf("failed to append entry: %w", err)
	}

	e.table.Put(key, value)
	elapsed := time.Since(start)

	e.stats.TrackOperationWithLatency(stats.OpPut, uint64(elapsed.Nanoseconds()))
	e.stats.TrackBytes(true, uint64(len(key)+len(value)))
	e.stats.TrackMemTableSize(uint64(e.table.ApproximateSize()), uint64(e.table.Len()))
	e.metrics.RecordOperation(ctx, telemetry.OpTypePut, elapsed, true)
	e.metrics.RecordBytes(ctx, telemetry.OpTypePut, int64(len(key)+len(value)))

	return nil
}

// Get returns a copy of the value stored under key.
// It returns (nil, false) if the key is absent or the engine is closed.
func (e *Engine) Get(key []byte) ([]byte, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.closed.Load() {
		return nil, false
	}

	start := time.Now()
	value, ok := e.table.Get(key)
	elapsed := time.Since(start)

	e.stats.TrackOperationWithLatency(stats.OpGet, uint64(elapsed.Nanoseconds()))
	e.stats.TrackGetResult(ok)
	e.metrics.RecordOperation(context.Background(), telemetry.OpTypeGet, elapsed, true)

	if !ok {
		return nil, false
	}
	e.stats.TrackBytes(false, uint64(len(key)+len(value)))
	return append([]byte{}, value...), true
}

// NewIterator returns an iterator over keys in [start, end) in ascending
// order. A nil start or end leaves that side of the range open. The iterator
// observes later writes and its keys and values must not be modified.
func (e *Engine) NewIterator(start, end []byte) (iterator.Iterator, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.closed.Load() {
		return nil, ErrEngineClosed
	}
	it := memtable.NewIteratorAdapter(e.table.NewIterator())
	return bounded.NewBoundedIterator(it, start, end), nil
}

// Scan calls fn for each key in [start, end) in ascending order until fn
// returns false. A nil start or end leaves that side of the range open.
// The slices passed to fn must not be modified or retained.
func (e *Engine) Scan(start, end []byte, fn func(key, value []byte) bool) error {
	it, err := e.NewIterator(start, end)
	if err != nil {
		return err
	}

	began := time.Now()
	for it.SeekToFirst(); it.Valid(); it.Next() {
		if !fn(it.Key(), it.Value()) {
			break
		}
	}

	elapsed := time.Since(began)
	e.stats.TrackOperationWithLatency(stats.OpScan, uint64(elapsed.Nanoseconds()))
	e.metrics.RecordOperation(context.Background(), telemetry.OpTypeScan, elapsed, true)
	return nil
}

// Len returns the number of keys in the table.
func (e *Engine) Len() int {
	return e.table.Len()
}

// Digest returns a fingerprint of the table contents taken in key order. It
// depends only on the final key-value pairs, not on the order of the writes
// that produced them, so reopening the same log yields the same digest.
func (e *Engine) Digest() uint64 {
	return e.table.Digest()
}

// Sync forces buffered log writes to stable storage.
func (e *Engine) Sync() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed.Load() {
		return ErrEngineClosed
	}

	ctx, span := e.tel.StartSpan(context.Background(), "engine.sync")
	defer span.End()

	start := time.Now()
	err := e.log.Sync()
	elapsed := time.Since(start)

	e.stats.TrackOperationWithLatency(stats.OpSync, uint64(elapsed.Nanoseconds()))
	e.metrics.RecordOperation(ctx, telemetry.OpTypeSync, elapsed, err == nil)
	if err != nil {
		e.stats.TrackError("sync_error")
		e.metrics.RecordError(ctx, telemetry.OpTypeSync, errorType(err))
		failSpan(span, err)
		return fmt.Errorf("failed to sync log: %w", err)
	}
	return nil
}

// Stats returns engine statistics along with the log position and settings.
func (e *Engine) Stats() map[string]interface{} {
	s := e.stats.GetStats()
	s["log_path"] = e.log.Path()
	s["log_offset"] = e.log.Offset()
	s["sync_mode"] = e.cfg.SyncMode.String()
	s["recovery_mode"] = e.cfg.RecoveryMode.String()
	s["closed"] = e.closed.Load()
	return s
}

// RecoveryStats returns the outcome of the replay performed by Open.
func (e *Engine) RecoveryStats() memtable.RecoveryStats {
	return *e.recovery
}

// Config returns a copy of the configuration the engine was opened with.
func (e *Engine) Config() *config.Config {
	return e.cfg.Clone()
}

// Path returns the path of the log file.
func (e *Engine) Path() string {
	return e.log.Path()
}

// Dir returns the data directory.
func (e *Engine) Dir() string {
	return e.dir
}

// Close syncs and closes the log. Closing an already closed engine is a no-op.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed.Swap(true) {
		return nil
	}

	err := e.log.Close()
	e.metrics.Close()
	if err != nil {
		e.stats.TrackError("close_error")
		e.logger.Error("failed to close log: %v", err)
		return fmt.Errorf("failed to close log: %w", err)
	}

	e.logger.Info("closed %s at offset %d", e.log.Path(), e.log.Offset())
	return nil
}

func failSpan(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

func errorType(err error) string {
	switch {
	case errors.Is(err, wal.ErrLogClosed):
		return "log_closed"
	case errors.Is(err, entry.ErrValueTooLarge):
		return "value_too_large"
	case wal.IsCorruption(err):
		return "corruption"
	default:
		return "io_error"
	}
}
