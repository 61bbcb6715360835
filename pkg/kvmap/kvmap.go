// Package kvmap provides the ordered factor-name to value map consumed by the
// fuzzy evaluator and the calibration samples.
//
// Entries are kept sorted by key, so positional access through KeyAt and
// ValueAt is stable for a given key set regardless of insertion order.
package kvmap

import (
	"cmp"
	"fmt"
	"iter"
	"slices"

	"github.com/GoSim-25-26J-441/fuzzy-calibration/pkg/models"
)

type entry struct {
	key   string
	value float64
}

// Map is an ordered mapping from factor names to numeric values.
// It is not safe for concurrent mutation.
type Map struct {
	entries []entry
}

// New creates an empty map
func New() *Map {
	return &Map{}
}

// FromMap builds a Map from a Go map
func FromMap(values map[string]float64) *Map {
	m := &Map{entries: make([]entry, 0, len(values))}
	for k, v := range values {
		m.entries = append(m.entries, entry{key: k, value: v})
	}
	slices.SortFunc(m.entries, func(a, b entry) int { return cmp.Compare(a.key, b.key) })
	return m
}

func (m *Map) search(key string) (int, bool) {
	return slices.BinarySearchFunc(m.entries, key, func(e entry, k string) int {
		return cmp.Compare(e.key, k)
	})
}

// Add inserts key with value, overwriting any existing value
func (m *Map) Add(key string, value float64) {
	i, found := m.search(key)
	if found {
		m.entries[i].value = value
		return
	}
	m.entries = slices.Insert(m.entries, i, entry{key: key, value: value})
}

// Remove deletes key if present
func (m *Map) Remove(key string) {
	if i, found := m.search(key); found {
		m.entries = slices.Delete(m.entries, i, i+1)
	}
}

// Has reports whether key is present
func (m *Map) Has(key string) bool {
	_, found := m.search(key)
	return found
}

// Value returns the value stored under key, or 0.0 when key is absent.
// Use Has or Lookup when absence must be distinguished from zero.
func (m *Map) Value(key string) float64 {
	v, _ := m.Lookup(key)
	return v
}

// Lookup returns the value stored under key and whether it was present
func (m *Map) Lookup(key string) (float64, bool) {
	i, found := m.search(key)
	if !found {
		return 0, false
	}
	return m.entries[i].value, true
}

// KeyAt returns the i-th key in ascending key order
func (m *Map) KeyAt(i int) (string, error) {
	if i < 0 || i >= len(m.entries) {
		return "", fmt.Errorf("%w: key index %d (len %d)", models.ErrIndexOutOfRange, i, len(m.entries))
	}
	return m.entries[i].key, nil
}

// ValueAt returns the value of the i-th key in ascending key order
func (m *Map) ValueAt(i int) (float64, error) {
	if i < 0 || i >= len(m.entries) {
		return 0, fmt.Errorf("%w: value index %d (len %d)", models.ErrIndexOutOfRange, i, len(m.entries))
	}
	return m.entries[i].value, nil
}

// Len returns the number of keys
func (m *Map) Len() int {
	return len(m.entries)
}

// Clear removes all keys
func (m *Map) Clear() {
	m.entries = m.entries[:0]
}

// Keys returns a copy of the keys in ascending order
func (m *Map) Keys() []string {
	keys := make([]string, len(m.entries))
	for i, e := range m.entries {
		keys[i] = e.key
	}
	return keys
}

// All iterates over the entries in ascending key order
func (m *Map) All() iter.Seq2[string, float64] {
	return func(yield func(string, float64) bool) {
		for _, e := range m.entries {
			if !yield(e.key, e.value) {
				return
			}
		}
	}
}

// Clone returns an independent copy of the map
func (m *Map) Clone() *Map {
	return &Map{entries: slices.Clone(m.entries)}
}

// ToMap returns the entries as a Go map
func (m *Map) ToMap() map[string]float64 {
	out := make(map[string]float64, len(m.entries))
	for _, e := range m.entries {
		out[e.key] = e.value
	}
	return out
}
