package memtable

import "github.com/KevoDB/reveldb/pkg/common/iterator"

// IteratorAdapter adapts a skip list Iterator to iterator.Iterator
type IteratorAdapter struct {
	iter *Iterator
}

var _ iterator.Iterator = (*IteratorAdapter)(nil)

// NewIteratorAdapter creates a new adapter for a memtable iterator
func NewIteratorAdapter(iter *Iterator) *IteratorAdapter {
	return &IteratorAdapter{iter: iter}
}

func (a *IteratorAdapter) SeekToFirst() {
	a.iter.SeekToFirst()
}

func (a *IteratorAdapter) Seek(target []byte) bool {
	a.iter.Seek(target)
	return a.iter.Valid()
}

func (a *IteratorAdapter) Next() bool {
	if !a.iter.Valid() {
		return false
	}
	a.iter.Next()
	return a.iter.Valid()
}

func (a *IteratorAdapter) Key() []byte {
	return a.iter.Key()
}

func (a *IteratorAdapter) Value() []byte {
	return a.iter.Value()
}

func (a *IteratorAdapter) Valid() bool {
	return a.iter != nil && a.iter.Valid()
}
