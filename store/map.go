// Package store implements the nested, insertion-ordered mapping that holds
// resolved configuration values, along with dotted-path addressing, update
// merging, and per-path change classification.
package store

import "sort"

// Map is an insertion-ordered mapping from keys to configuration values.
// Values are always in normalized form: nil, bool, int64, float64, string,
// []any, or a nested *Map.
type Map struct {
	keys  []string
	items map[string]any
}

// NewMap constructs an empty Map.
func NewMap() *Map {
	return &Map{items: map[string]any{}}
}

// FromNested normalizes a plain nested map into a Map. Keys of unordered Go
// maps are sorted so the result is deterministic.
func FromNested(src map[string]any) (*Map, error) {
	normalized, err := Normalize(src)
	if err != nil {
		return nil, err
	}
	if m, ok := normalized.(*Map); ok {
		return m, nil
	}
	return NewMap(), nil
}

// Set binds key to value, keeping the key's original position when it already
// exists. The value must already be normalized.
func (m *Map) Set(key string, value any) {
	if m.items == nil {
		m.items = map[string]any{}
	}
	if _, ok := m.items[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.items[key] = value
}

// Get returns the value bound to key.
func (m *Map) Get(key string) (any, bool) {
	if m == nil || m.items == nil {
		return nil, false
	}
	v, ok := m.items[key]
	return v, ok
}

// Has reports whether key is bound.
func (m *Map) Has(key string) bool {
	_, ok := m.Get(key)
	return ok
}

// Delete removes key and its value.
func (m *Map) Delete(key string) {
	if m == nil || m.items == nil {
		return
	}
	if _, ok := m.items[key]; !ok {
		return
	}
	delete(m.items, key)
	for i, k := range m.keys {
		if k == key {
			m.keys = append(m.keys[:i], m.keys[i+1:]...)
			break
		}
	}
}

// Len returns the number of keys.
func (m *Map) Len() int {
	if m == nil {
		return 0
	}
	return len(m.keys)
}

// Keys returns the keys in insertion order.
func (m *Map) Keys() []string {
	if m == nil {
		return nil
	}
	out := make([]string, len(m.keys))
	copy(out, m.keys)
	return out
}

// Range calls fn for each key/value pair in insertion order until fn returns
// false.
func (m *Map) Range(fn func(key string, value any) bool) {
	if m == nil {
		return
	}
	for _, k := range m.keys {
		if !fn(k, m.items[k]) {
			return
		}
	}
}

// Clone returns a deep copy of the map.
func (m *Map) Clone() *Map {
	out := NewMap()
	if m == nil {
		return out
	}
	for _, k := range m.keys {
		out.Set(k, cloneValue(m.items[k]))
	}
	return out
}

func cloneValue(v any) any {
	switch tv := v.(type) {
	case *Map:
		return tv.Clone()
	case []any:
		out := make([]any, len(tv))
		for i, item := range tv {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return v
	}
}

// Nested exports the map as a plain nested map[string]any snapshot, the shape
// storage observers serialize. The snapshot is detached from the Map.
func (m *Map) Nested() map[string]any {
	out := map[string]any{}
	if m == nil {
		return out
	}
	for _, k := range m.keys {
		out[k] = exportValue(m.items[k])
	}
	return out
}

// Export returns the detached plain form of a single normalized value:
// nested Maps become map[string]any, sequences are copied.
func Export(v any) any {
	return exportValue(v)
}

func exportValue(v any) any {
	switch tv := v.(type) {
	case *Map:
		return tv.Nested()
	case []any:
		out := make([]any, len(tv))
		for i, item := range tv {
			out[i] = exportValue(item)
		}
		return out
	default:
		return v
	}
}

// GetPath resolves a dotted path into nested maps and returns the addressed
// value. An empty path addresses the map itself.
func (m *Map) GetPath(path string) (any, bool) {
	if m == nil {
		return nil, false
	}
	if path == "" {
		return m, true
	}
	var current any = m
	for _, segment := range SplitPath(path) {
		node, ok := current.(*Map)
		if !ok {
			return nil, false
		}
		current, ok = node.Get(segment)
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// HasPath reports whether the dotted path addresses a value.
func (m *Map) HasPath(path string) bool {
	_, ok := m.GetPath(path)
	return ok
}

// SetPath binds a value at a dotted path, creating intermediate maps as
// needed. Setting through an existing non-map leaf replaces that leaf with a
// map, matching plain nested-dict assignment semantics.
func (m *Map) SetPath(path string, value any) {
	segments := SplitPath(path)
	node := m
	for _, segment := range segments[:len(segments)-1] {
		next, ok := node.Get(segment)
		child, isMap := next.(*Map)
		if !ok || !isMap {
			child = NewMap()
			node.Set(segment, child)
		}
		node = child
	}
	node.Set(segments[len(segments)-1], value)
}

// Entry pairs a dotted leaf path with its value.
type Entry struct {
	Path  string
	Value any
}

// Flatten returns the leaf entries of the map in insertion order. Nested maps
// are descended into; sequences are leaves.
func (m *Map) Flatten() []Entry {
	var out []Entry
	m.flattenInto("", &out)
	return out
}

func (m *Map) flattenInto(prefix string, out *[]Entry) {
	if m == nil {
		return
	}
	for _, k := range m.keys {
		path := JoinPaths(prefix, k)
		if child, ok := m.items[k].(*Map); ok && child.Len() > 0 {
			child.flattenInto(path, out)
			continue
		}
		*out = append(*out, Entry{Path: path, Value: m.items[k]})
	}
}

// SortedKeys returns the keys in lexical order. Used where deterministic
// iteration matters more than declaration order.
func (m *Map) SortedKeys() []string {
	keys := m.Keys()
	sort.Strings(keys)
	return keys
}
