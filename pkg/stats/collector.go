package stats

import (
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// OperationType names an engine call that the collector counts.
type OperationType string

// Engine operation types
const (
	OpPut  OperationType = "put"
	OpGet  OperationType = "get"
	OpScan OperationType = "scan"
	OpSync OperationType = "sync"
)

// AtomicCollector holds the engine counters behind Engine.Stats. Hot paths
// only touch atomics; the maps are locked when a new key first appears.
type AtomicCollector struct {
	counts   map[OperationType]*atomic.Uint64
	countsMu sync.RWMutex

	lastOpTime   map[OperationType]time.Time
	lastOpTimeMu sync.RWMutex

	memTableSize      atomic.Uint64
	keyCount          atomic.Uint64
	getHits           atomic.Uint64
	getMisses         atomic.Uint64
	totalBytesRead    atomic.Uint64
	totalBytesWritten atomic.Uint64

	errors   map[string]*atomic.Uint64
	errorsMu sync.RWMutex

	recoveryStats RecoveryStats

	latencies   map[OperationType]*LatencyTracker
	latenciesMu sync.RWMutex
}

// RecoveryStats tracks the most recent log replay
type RecoveryStats struct {
	EntriesRecovered atomic.Uint64
	RecordsRead      atomic.Uint64
	LogBytes         atomic.Int64
	TruncatedBytes   atomic.Int64
	Duration         atomic.Int64 // nanoseconds
}

// LatencyTracker keeps count, sum, min and max of one operation's latency.
type LatencyTracker struct {
	count atomic.Uint64
	sum   atomic.Uint64 // sum in nanoseconds
	max   atomic.Uint64
	min   atomic.Uint64 // zero until the first sample
}

// NewAtomicCollector returns an empty collector.
func NewAtomicCollector() *AtomicCollector {
	return &AtomicCollector{
		counts:     make(map[OperationType]*atomic.Uint64),
		lastOpTime: make(map[OperationType]time.Time),
		errors:     make(map[string]*atomic.Uint64),
		latencies:  make(map[OperationType]*LatencyTracker),
	}
}

// TrackOperation counts one call of op and stamps its time.
func (c *AtomicCollector) TrackOperation(op OperationType) {
	c.getOrCreateCounter(op).Add(1)

	c.lastOpTimeMu.Lock()
	c.lastOpTime[op] = time.Now()
	c.lastOpTimeMu.Unlock()
}

// TrackOperationWithLatency is TrackOperation plus a latency sample in nanoseconds.
func (c *AtomicCollector) TrackOperationWithLatency(op OperationType, latencyNs uint64) {
	c.TrackOperation(op)

	tracker := c.getOrCreateLatencyTracker(op)
	tracker.count.Add(1)
	tracker.sum.Add(latencyNs)

	for {
		current := tracker.max.Load()
		if latencyNs <= current || tracker.max.CompareAndSwap(current, latencyNs) {
			break
		}
	}

	for {
		current := tracker.min.Load()
		if current != 0 && latencyNs >= current {
			break
		}
		if tracker.min.CompareAndSwap(current, latencyNs) {
			break
		}
	}
}

// TrackGetResult counts a lookup as a hit or a miss
func (c *AtomicCollector) TrackGetResult(found bool) {
	if found {
		c.getHits.Add(1)
	} else {
		c.getMisses.Add(1)
	}
}

// TrackError counts one failure under errorType.
func (c *AtomicCollector) TrackError(errorType string) {
	c.errorsMu.RLock()
	counter, exists := c.errors[errorType]
	c.errorsMu.RUnlock()

	if !exists {
		c.errorsMu.Lock()
		if counter, exists = c.errors[errorType]; !exists {
			counter = &atomic.Uint64{}
			c.errors[errorType] = counter
		}
		c.errorsMu.Unlock()
	}

	counter.Add(1)
}

// TrackBytes adds to the bytes-written or bytes-read total.
func (c *AtomicCollector) TrackBytes(isWrite bool, bytes uint64) {
	if isWrite {
		c.totalBytesWritten.Add(bytes)
	} else {
		c.totalBytesRead.Add(bytes)
	}
}

// TrackMemTableSize records the current memtable size and key count
func (c *AtomicCollector) TrackMemTableSize(size uint64, keys uint64) {
	c.memTableSize.Store(size)
	c.keyCount.Store(keys)
}

// TrackRecovery records the outcome of a log replay, replacing any earlier one
func (c *AtomicCollector) TrackRecovery(entries, records uint64, logBytes, truncatedBytes int64, duration time.Duration) {
	c.recoveryStats.EntriesRecovered.Store(entries)
	c.recoveryStats.RecordsRead.Store(records)
	c.recoveryStats.LogBytes.Store(logBytes)
	c.recoveryStats.TruncatedBytes.Store(truncatedBytes)
	c.recoveryStats.Duration.Store(duration.Nanoseconds())
}

// GetStats returns a snapshot keyed the way Engine.Stats reports it.
func (c *AtomicCollector) GetStats() map[string]interface{} {
	stats := make(map[string]interface{})

	c.countsMu.RLock()
	for op, counter := range c.counts {
		stats[string(op)+"_ops"] = counter.Load()
	}
	c.countsMu.RUnlock()

	c.lastOpTimeMu.RLock()
	for op, timestamp := range c.lastOpTime {
		stats["last_"+string(op)+"_time"] = timestamp.UnixNano()
	}
	c.lastOpTimeMu.RUnlock()

	stats["memtable_size"] = c.memTableSize.Load()
	stats["memtable_keys"] = c.keyCount.Load()
	stats["get_hits"] = c.getHits.Load()
	stats["get_misses"] = c.getMisses.Load()
	stats["total_bytes_read"] = c.totalBytesRead.Load()
	stats["total_bytes_written"] = c.totalBytesWritten.Load()

	c.errorsMu.RLock()
	errorStats := make(map[string]uint64)
	for errType, counter := range c.errors {
		errorStats[errType] = counter.Load()
	}
	c.errorsMu.RUnlock()
	stats["errors"] = errorStats

	recovery := map[string]interface{}{
		"entries_recovered": c.recoveryStats.EntriesRecovered.Load(),
		"records_read":      c.recoveryStats.RecordsRead.Load(),
		"log_bytes":         c.recoveryStats.LogBytes.Load(),
		"truncated_bytes":   c.recoveryStats.TruncatedBytes.Load(),
	}
	if d := c.recoveryStats.Duration.Load(); d > 0 {
		recovery["duration_ms"] = d / int64(time.Millisecond)
	}
	stats["recovery"] = recovery

	c.latenciesMu.RLock()
	for op, tracker := range c.latencies {
		count := tracker.count.Load()
		if count == 0 {
			continue
		}

		latencyStats := map[string]interface{}{
			"count":  count,
			"avg_ns": tracker.sum.Load() / count,
		}
		if min := tracker.min.Load(); min != 0 {
			latencyStats["min_ns"] = min
		}
		if max := tracker.max.Load(); max != 0 {
			latencyStats["max_ns"] = max
		}

		stats[string(op)+"_latency"] = latencyStats
	}
	c.latenciesMu.RUnlock()

	return stats
}

// GetStatsFiltered keeps only the top-level keys starting with prefix.
func (c *AtomicCollector) GetStatsFiltered(prefix string) map[string]interface{} {
	allStats := c.GetStats()
	filtered := make(map[string]interface{})

	for key, value := range allStats {
		if strings.HasPrefix(key, prefix) {
			filtered[key] = value
		}
	}

	return filtered
}

func (c *AtomicCollector) getOrCreateCounter(op OperationType) *atomic.Uint64 {
	c.countsMu.RLock()
	counter, exists := c.counts[op]
	c.countsMu.RUnlock()

	if !exists {
		c.countsMu.Lock()
		if counter, exists = c.counts[op]; !exists {
			counter = &atomic.Uint64{}
			c.counts[op] = counter
		}
		c.countsMu.Unlock()
	}

	return counter
}

func (c *AtomicCollector) getOrCreateLatencyTracker(op OperationType) *LatencyTracker {
	c.latenciesMu.RLock()
	tracker, exists := c.latencies[op]
	c.latenciesMu.RUnlock()

	if !exists {
		c.latenciesMu.Lock()
		if tracker, exists = c.latencies[op]; !exists {
			tracker = &LatencyTracker{}
			c.latencies[op] = tracker
		}
		c.latenciesMu.Unlock()
	}

	return tracker
}
