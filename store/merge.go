package store

import (
	"fmt"
	"strconv"
)

// Update is one path-keyed override, addressed by a dotted path.
type Update struct {
	Path  string
	Value any
}

// PathConflictError reports an update whose path runs through a non-map leaf,
// or descends into a sequence element.
type PathConflictError struct {
	Path   string
	Prefix string
	Reason string
}

func (e *PathConflictError) Error() string {
	return fmt.Sprintf("store: cannot merge %q: %s at %q", e.Path, e.Reason, e.Prefix)
}

// Apply merges an ordered list of updates into a copy of m, classifying every
// touched leaf relative to the original store. Updates are applied in order; a
// later update to the same path wins. A map-valued update over an existing map
// leaf merges recursively (union of keys); any other shape change replaces the
// leaf and is a type change.
//
// Numeric path segments index into sequences for whole-element replacement.
// Dotted paths may not continue through a sequence element into its members;
// lists are otherwise replaced wholesale.
func Apply(m *Map, updates []Update, rules KeyRules) (*Map, *Summary, error) {
	out := m.Clone()
	summary := NewSummary()
	for _, update := range updates {
		value, err := Normalize(update.Value)
		if err != nil {
			return nil, nil, fmt.Errorf("store: update %q: %w", update.Path, err)
		}
		if err := applyOne(out, m, update.Path, value, rules, summary); err != nil {
			return nil, nil, err
		}
	}
	summary.EnsureCoherence()
	return out, summary, nil
}

func applyOne(dst *Map, original *Map, path string, value any, rules KeyRules, summary *Summary) error {
	segments := SplitPath(path)
	for _, segment := range segments {
		if _, err := strconv.Atoi(segment); err == nil {
			continue
		}
		if err := ValidateKey(segment, rules); err != nil && rules.Strict {
			return err
		}
	}

	parent := dst
	for i, segment := range segments[:len(segments)-1] {
		existing, ok := parent.Get(segment)
		if !ok {
			child := NewMap()
			parent.Set(segment, child)
			parent = child
			continue
		}
		switch node := existing.(type) {
		case *Map:
			parent = node
		case []any:
			prefix := JoinPaths(segments[:i+1]...)
			index, err := strconv.Atoi(segments[i+1])
			if err != nil {
				return &PathConflictError{
					Path:   path,
					Prefix: prefix,
					Reason: "numeric segment required to index a sequence",
				}
			}
			if i+1 != len(segments)-1 {
				return &PathConflictError{
					Path:   path,
					Prefix: prefix,
					Reason: "dotted updates into sequence elements are not supported",
				}
			}
			return applyIndex(node, original, path, index, value, summary)
		default:
			return &PathConflictError{
				Path:   path,
				Prefix: JoinPaths(segments[:i+1]...),
				Reason: "prefix addresses a non-mapping leaf",
			}
		}
	}

	leaf := segments[len(segments)-1]
	old, hadOld := parent.Get(leaf)
	newValue, mergedMap := value, false
	if oldMap, ok := old.(*Map); ok {
		if valueMap, ok := value.(*Map); ok {
			mergeMapInto(oldMap, valueMap, path, original, summary)
			mergedMap = true
			newValue = oldMap
		}
	}
	if !mergedMap {
		parent.Set(leaf, newValue)
		classify(summary, path, oldLeaf(original, path, old, hadOld), hadOld || original.HasPath(path), newValue)
	}
	return nil
}

// mergeMapInto folds src into dst in place, recording per-leaf changes
// relative to the original store.
func mergeMapInto(dst, src *Map, path string, original *Map, summary *Summary) {
	src.Range(func(key string, value any) bool {
		childPath := JoinPaths(path, key)
		old, hadOld := dst.Get(key)
		if oldMap, ok := old.(*Map); ok {
			if valueMap, ok := value.(*Map); ok {
				mergeMapInto(oldMap, valueMap, childPath, original, summary)
				return true
			}
		}
		dst.Set(key, value)
		classify(summary, childPath, oldLeaf(original, childPath, old, hadOld), hadOld || original.HasPath(childPath), value)
		return true
	})
}

func applyIndex(seq []any, original *Map, path string, index int, value any, summary *Summary) error {
	if index < 0 || index >= len(seq) {
		return &PathConflictError{Path: path, Prefix: path, Reason: fmt.Sprintf("index %d out of range", index)}
	}
	old := seq[index]
	if v, ok := original.GetPath(path); ok {
		old = v
	}
	seq[index] = value
	classify(summary, path, old, true, value)
	return nil
}

func oldLeaf(original *Map, path string, fromDst any, hadInDst bool) any {
	if v, ok := original.GetPath(path); ok {
		return v
	}
	if hadInDst {
		return fromDst
	}
	return nil
}

func classify(summary *Summary, path string, old any, existed bool, value any) {
	if !existed {
		summary.AddAdded(path)
		return
	}
	if TypeChangedValue(old, value) {
		summary.AddTypechanged(path, TypeChange{Old: KindOf(old), New: KindOf(value)})
		return
	}
	if !Equal(old, value) {
		summary.AddModified(path)
	}
}

// RecursiveUpdate folds src into dst in place: maps merge key-wise, anything
// else replaces.
func RecursiveUpdate(dst, src *Map) {
	src.Range(func(key string, value any) bool {
		if srcChild, ok := value.(*Map); ok {
			if dstChild, ok := dst.Get(key); ok {
				if dstMap, ok := dstChild.(*Map); ok {
					RecursiveUpdate(dstMap, srcChild)
					return true
				}
			}
		}
		dst.Set(key, cloneValue(value))
		return true
	})
}

// RecursiveFillIn adds entries from src that dst lacks, descending into maps
// present on both sides. Existing dst values are never replaced.
func RecursiveFillIn(dst, src *Map) {
	src.Range(func(key string, value any) bool {
		existing, ok := dst.Get(key)
		if !ok {
			dst.Set(key, cloneValue(value))
			return true
		}
		dstMap, dstIsMap := existing.(*Map)
		srcMap, srcIsMap := value.(*Map)
		if dstIsMap && srcIsMap {
			RecursiveFillIn(dstMap, srcMap)
		}
		return true
	})
}
