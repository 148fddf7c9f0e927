package bounded

import (
	"bytes"

	"github.com/KevoDB/reveldb/pkg/common/iterator"
)

// BoundedIterator limits an iterator to the half-open range [start, end).
// A nil bound leaves that side open.
type BoundedIterator struct {
	iterator.Iterator
	start []byte
	end   []byte
}

// NewBoundedIterator creates a new bounded iterator
func NewBoundedIterator(iter iterator.Iterator, startKey, endKey []byte) *BoundedIterator {
	bi := &BoundedIterator{Iterator: iter}
	bi.SetBounds(startKey, endKey)
	return bi
}

// SetBounds replaces the range. The bounds are copied.
func (b *BoundedIterator) SetBounds(start, end []byte) {
	b.start = cloneBound(start)
	b.end = cloneBound(end)
}

func cloneBound(k []byte) []byte {
	if k == nil {
		return nil
	}
	c := make([]byte, len(k))
	copy(c, k)
	return c
}

// SeekToFirst positions at the first key in the bounded range
func (b *BoundedIterator) SeekToFirst() {
	if b.start != nil {
		b.Iterator.Seek(b.start)
	} else {
		b.Iterator.SeekToFirst()
	}
}

// Seek positions at the first key >= target within bounds
func (b *BoundedIterator) Seek(target []byte) bool {
	if b.start != nil && bytes.Compare(target, b.start) < 0 {
		target = b.start
	}
	if b.end != nil && bytes.Compare(target, b.end) >= 0 {
		// Leave the range so Valid no longer reports the old position
		b.Iterator.Seek(b.end)
		return false
	}
	b.Iterator.Seek(target)
	return b.Valid()
}

// Next advances to the next key within bounds
func (b *BoundedIterator) Next() bool {
	if !b.Valid() {
		return false
	}
	b.Iterator.Next()
	return b.Valid()
}

// Valid returns true if the iterator is positioned at a valid entry within bounds
func (b *BoundedIterator) Valid() bool {
	if !b.Iterator.Valid() {
		return false
	}
	key := b.Iterator.Key()
	if b.start != nil && bytes.Compare(key, b.start) < 0 {
		return false
	}
	return b.end == nil || bytes.Compare(key, b.end) < 0
}

// Key returns the current key if within bounds
func (b *BoundedIterator) Key() []byte {
	if !b.Valid() {
		return nil
	}
	return b.Iterator.Key()
}

// Value returns the current value if within bounds
func (b *BoundedIterator) Value() []byte {
	if !b.Valid() {
		return nil
	}
	return b.Iterator.Value()
}
