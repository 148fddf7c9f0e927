package memtable

import (
	"bytes"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"
	"unsafe"
)

const (
	// MaxHeight is the maximum height of the skip list
	MaxHeight = 12

	// BranchingFactor determines the probability of increasing the height
	BranchingFactor = 4

	// entryOverhead approximates the per-entry bookkeeping cost
	entryOverhead = 16
)

// entry is a key with its current value
type entry struct {
	key   []byte
	value []byte
}

// size returns the approximate size of the entry in memory
func (e *entry) size() int {
	return len(e.key) + len(e.value) + entryOverhead
}

// compare compares this entry with another key
// Returns: negative if e.key < key, 0 if equal, positive if e.key > key
func (e *entry) compare(key []byte) int {
	return bytes.Compare(e.key, key)
}

// node represents a node in the skip list
type node struct {
	// entry is swapped wholesale when the key is overwritten
	entry  unsafe.Pointer
	height int32
	next   [MaxHeight]unsafe.Pointer
}

func newNode(e *entry, height int) *node {
	return &node{
		entry:  unsafe.Pointer(e),
		height: int32(height),
	}
}

func (n *node) getEntry() *entry {
	return (*entry)(atomic.LoadPointer(&n.entry))
}

func (n *node) setEntry(e *entry) {
	atomic.StorePointer(&n.entry, unsafe.Pointer(e))
}

// getNext returns the next node at the given level
func (n *node) getNext(level int) *node {
	return (*node)(atomic.LoadPointer(&n.next[level]))
}

// setNext sets the next node at the given level
func (n *node) setNext(level int, next *node) {
	atomic.StorePointer(&n.next[level], unsafe.Pointer(next))
}

// SkipList is an ordered map from key to value with one node per key.
// Writers must be serialized by the caller; readers may run concurrently with
// a single writer.
type SkipList struct {
	head      *node
	maxHeight int32
	rnd       *rand.Rand
	rndMtx    sync.Mutex
	size      int64
	count     int64
}

// NewSkipList creates a new skip list
func NewSkipList() *SkipList {
	return newSkipListWithSeed(time.Now().UnixNano())
}

func newSkipListWithSeed(seed int64) *SkipList {
	return &SkipList{
		head:      newNode(nil, MaxHeight),
		maxHeight: 1,
		rnd:       rand.New(rand.NewSource(seed)),
	}
}

// randomHeight generates a random height for a new node
func (s *SkipList) randomHeight() int {
	s.rndMtx.Lock()
	defer s.rndMtx.Unlock()

	height := 1
	for height < MaxHeight && s.rnd.Intn(BranchingFactor) == 0 {
		height++
	}
	return height
}

// getCurrentHeight returns the current maximum height of the skip list
func (s *SkipList) getCurrentHeight() int {
	return int(atomic.LoadInt32(&s.maxHeight))
}

// findPrev fills prev with the last node before key at every level and
// returns the node holding key, if any.
func (s *SkipList) findPrev(key []byte, prev *[MaxHeight]*node) *node {
	current := s.head
	for level := MaxHeight - 1; level >= 0; level-- {
		for next := current.getNext(level); next != nil; next = current.getNext(level) {
			if next.getEntry().compare(key) >= 0 {
				break
			}
			current = next
		}
		prev[level] = current
	}

	if candidate := current.getNext(0); candidate != nil && candidate.getEntry().compare(key) == 0 {
		return candidate
	}
	return nil
}

// Put sets key to value, replacing any previous value.
// It returns the change in approximate size.
func (s *SkipList) Put(key, value []byte) int64 {
	e := &entry{key: key, value: value}
	prev := [MaxHeight]*node{}

	if existing := s.findPrev(key, &prev); existing != nil {
		old := existing.getEntry()
		existing.setEntry(e)
		delta := int64(len(value) - len(old.value))
		atomic.AddInt64(&s.size, delta)
		return delta
	}

	height := s.randomHeight()
	if height > s.getCurrentHeight() {
		atomic.StoreInt32(&s.maxHeight, int32(height))
	}

	n := newNode(e, height)
	for level := 0; level < height; level++ {
		n.setNext(level, prev[level].getNext(level))
		prev[level].setNext(level, n)
	}

	atomic.AddInt64(&s.count, 1)
	delta := int64(e.size())
	atomic.AddInt64(&s.size, delta)
	return delta
}

// Find looks for the entry with the specified key
func (s *SkipList) Find(key []byte) *entry {
	current := s.head
	height := s.getCurrentHeight()

	for level := height - 1; level >= 0; level-- {
		for next := current.getNext(level); next != nil; next = current.getNext(level) {
			cmp := next.getEntry().compare(key)
			if cmp == 0 {
				return next.getEntry()
			}
			if cmp > 0 {
				break
			}
			current = next
		}
	}
	return nil
}

// Len returns the number of distinct keys
func (s *SkipList) Len() int {
	return int(atomic.LoadInt64(&s.count))
}

// ApproximateSize returns the approximate size of the skip list in bytes
func (s *SkipList) ApproximateSize() int64 {
	return atomic.LoadInt64(&s.size)
}

// Iterator provides sequential access to the skip list entries in key order
type Iterator struct {
	list    *SkipList
	current *node
}

// NewIterator creates a new Iterator for the skip list.
// It is positioned before the first entry; call SeekToFirst or Seek.
func (s *SkipList) NewIterator() *Iterator {
	return &Iterator{
		list:    s,
		current: s.head,
	}
}

// Valid returns true if the iterator is positioned at a valid entry
func (it *Iterator) Valid() bool {
	return it.current != nil && it.current != it.list.head
}

// Next advances the iterator to the next entry
func (it *Iterator) Next() {
	if it.current == nil {
		return
	}
	it.current = it.current.getNext(0)
}

// SeekToFirst positions the iterator at the first entry
func (it *Iterator) SeekToFirst() {
	it.current = it.list.head.getNext(0)
}

// Seek positions the iterator at the first entry with a key >= target
func (it *Iterator) Seek(key []byte) {
	current := it.list.head
	height := it.list.getCurrentHeight()

	for level := height - 1; level >= 0; level-- {
		for next := current.getNext(level); next != nil; next = current.getNext(level) {
			if next.getEntry().compare(key) >= 0 {
				break
			}
			current = next
		}
	}

	it.current = current.getNext(0)
}

// Key returns the key of the current entry
func (it *Iterator) Key() []byte {
	if !it.Valid() {
		return nil
	}
	return it.current.getEntry().key
}

// Value returns the value of the current entry
func (it *Iterator) Value() []byte {
	if !it.Valid() {
		return nil
	}
	return it.current.getEntry().value
}
