package store

import (
	"sort"
	"sync"
)

// TypeIndex maps root type names to the offsets of their records in the log.
type TypeIndex struct {
	entries map[string][]int64
	total   int
	mutex   sync.RWMutex
}

// NewTypeIndex creates an empty type index
func NewTypeIndex() *TypeIndex {
	return &TypeIndex{
		entries: make(map[string][]int64),
	}
}

// Add records that a message of typeName starts at offset. Offsets are
// appended in log order.
func (idx *TypeIndex) Add(typeName string, offset int64) {
	idx.mutex.Lock()
	defer idx.mutex.Unlock()

	idx.entries[typeName] = append(idx.entries[typeName], offset)
	idx.total++
}

// Offsets returns a copy of the offsets recorded for typeName.
func (idx *TypeIndex) Offsets(typeName string) []int64 {
	idx.mutex.RLock()
	defer idx.mutex.RUnlock()

	offsets := idx.entries[typeName]
	out := make([]int64, len(offsets))
	copy(out, offsets)
	return out
}

// Types returns the indexed type names in sorted order.
func (idx *TypeIndex) Types() []string {
	idx.mutex.RLock()
	defer idx.mutex.RUnlock()

	types := make([]string, 0, len(idx.entries))
	for name := range idx.entries {
		types = append(types, name)
	}
	sort.Strings(types)
	return types
}

// Counts returns the number of records per type.
func (idx *TypeIndex) Counts() map[string]int {
	idx.mutex.RLock()
	defer idx.mutex.RUnlock()

	counts := make(map[string]int, len(idx.entries))
	for name, offsets := range idx.entries {
		counts[name] = len(offsets)
	}
	return counts
}

// Size returns the number of indexed records
func (idx *TypeIndex) Size() int {
	idx.mutex.RLock()
	defer idx.mutex.RUnlock()
	return idx.total
}

// Clear removes all entries from the index
func (idx *TypeIndex) Clear() {
	idx.mutex.Lock()
	defer idx.mutex.Unlock()

	idx.entries = make(map[string][]int64)
	idx.total = 0
}

// BuildFromLog scans a log from the start and repopulates the index.
func (idx *TypeIndex) BuildFromLog(reader *LogReader) error {
	if err := reader.SeekTo(0); err != nil {
		return err
	}

	idx.Clear()

	it := reader.Iterator()
	defer it.Close()

	for it.Next() {
		idx.Add(string(it.Record().TypeName), it.Offset())
	}
	return it.Err()
}
