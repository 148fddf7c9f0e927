package stats

import "time"

// Provider defines the interface for components that provide statistics
type Provider interface {
	// GetStats returns all statistics
	GetStats() map[string]interface{}

	// GetStatsFiltered returns statistics filtered by prefix
	GetStatsFiltered(prefix string) map[string]interface{}
}

// Collector interface defines methods for collecting statistics
type Collector interface {
	Provider

	TrackOperation(op OperationType)
	TrackOperationWithLatency(op OperationType, latencyNs uint64)
	TrackGetResult(found bool)
	TrackError(errorType string)
	TrackBytes(isWrite bool, bytes uint64)
	TrackMemTableSize(size uint64, keys uint64)
	TrackRecovery(entries, records uint64, logBytes, truncatedBytes int64, duration time.Duration)
}

var _ Collector = (*AtomicCollector)(nil)
