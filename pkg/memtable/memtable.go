package memtable

import (
	"context"
	"encoding/binary"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
)

// MemTable is an ordered in-memory table of key-value pairs.
// It is implemented using a skip list; a later Put of a key replaces its value.
type MemTable struct {
	skipList     *SkipList
	creationTime time.Time
	metrics      MemTableMetrics
	mu           sync.RWMutex
}

// NewMemTable creates a new memory table
func NewMemTable() *MemTable {
	return &MemTable{
		skipList:     NewSkipList(),
		creationTime: time.Now(),
		metrics:      NewNoopMemTableMetrics(),
	}
}

// SetMetrics replaces the metrics sink. A nil sink disables metrics.
func (m *MemTable) SetMetrics(metrics MemTableMetrics) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if metrics == nil {
		metrics = NewNoopMemTableMetrics()
	}
	m.metrics = metrics
}

// Put sets key to value. Key and value are copied.
func (m *MemTable) Put(key, value []byte) {
	start := time.Now()

	k := append([]byte(nil), key...)
	v := append(make([]byte, 0, len(value)), value...)

	m.mu.Lock()
	delta := m.skipList.Put(k, v)
	metrics := m.metrics
	m.mu.Unlock()

	ctx := context.Background()
	metrics.RecordOperation(ctx, "put", time.Since(start))
	metrics.RecordSizeChange(ctx, m.skipList.ApproximateSize(), delta)
}

// Get retrieves the value associated with the given key.
// Returns (nil, false) if the key does not exist.
func (m *MemTable) Get(key []byte) ([]byte, bool) {
	start := time.Now()

	m.mu.RLock()
	e := m.skipList.Find(key)
	metrics := m.metrics
	m.mu.RUnlock()

	metrics.RecordOperation(context.Background(), "get", time.Since(start))
	if e == nil {
		return nil, false
	}
	return e.value, true
}

// Contains checks if the key exists in the MemTable
func (m *MemTable) Contains(key []byte) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.skipList.Find(key) != nil
}

// Len returns the number of keys in the MemTable
func (m *MemTable) Len() int {
	return m.skipList.Len()
}

// ApproximateSize returns the approximate size of the MemTable in bytes
func (m *MemTable) ApproximateSize() int64 {
	return m.skipList.ApproximateSize()
}

// Age returns the age of the MemTable in seconds
func (m *MemTable) Age() float64 {
	return time.Since(m.creationTime).Seconds()
}

// NewIterator returns an iterator over the MemTable in key order.
// Values seen by the iterator must not be modified.
func (m *MemTable) NewIterator() *Iterator {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.skipList.NewIterator()
}

// Digest returns an xxhash64 of every key and value in key order.
// Two tables with the same contents have the same digest regardless of the
// order or number of writes that produced them.
func (m *MemTable) Digest() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	h := xxhash.New()
	var lenBuf [4]byte
	it := m.skipList.NewIterator()
	for it.SeekToFirst(); it.Valid(); it.Next() {
		binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(it.Key())))
		h.Write(lenBuf[:])
		h.Write(it.Key())
		binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(it.Value())))
		h.Write(lenBuf[:])
		h.Write(it.Value())
	}
	return h.Sum64()
}
