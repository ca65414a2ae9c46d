package store

import "sort"

// ChangeKind classifies how an update altered a leaf path.
type ChangeKind string

const (
	ChangeUnchanged   ChangeKind = "unchanged"
	ChangeAdded       ChangeKind = "added"
	ChangeModified    ChangeKind = "modified"
	ChangeTypechanged ChangeKind = "typechanged"
)

// TypeChange records the simplified kinds involved in a type change.
type TypeChange struct {
	Old Kind
	New Kind
}

// Summary aggregates per-path change records plus documentation metadata
// harvested from configuration scopes.
type Summary struct {
	Added             map[string]struct{}
	Modified          map[string]struct{}
	Typechanged       map[string]TypeChange
	IgnoredFallbacks  map[string]struct{}
	Docs              map[string]string
}

// NewSummary constructs an empty Summary.
func NewSummary() *Summary {
	return &Summary{
		Added:            map[string]struct{}{},
		Modified:         map[string]struct{}{},
		Typechanged:      map[string]TypeChange{},
		IgnoredFallbacks: map[string]struct{}{},
		Docs:             map[string]string{},
	}
}

// AddAdded records path as newly introduced.
func (s *Summary) AddAdded(path string) {
	s.Added[path] = struct{}{}
}

// AddModified records path as changed in value.
func (s *Summary) AddModified(path string) {
	s.Modified[path] = struct{}{}
}

// AddTypechanged records path as changed in representable type.
func (s *Summary) AddTypechanged(path string, change TypeChange) {
	s.Typechanged[path] = change
}

// ChangeFor returns the strongest classification recorded for path.
func (s *Summary) ChangeFor(path string) ChangeKind {
	if s == nil {
		return ChangeUnchanged
	}
	if _, ok := s.Typechanged[path]; ok {
		return ChangeTypechanged
	}
	if _, ok := s.Added[path]; ok {
		return ChangeAdded
	}
	if _, ok := s.Modified[path]; ok {
		return ChangeModified
	}
	return ChangeUnchanged
}

// UpdateFrom folds a later evaluation pass into this summary. Additions only
// survive if the later pass still considers them added (set intersection),
// while modifications and type changes accumulate. Docs fill gaps only.
func (s *Summary) UpdateFrom(other *Summary, path string) {
	stillAdded := map[string]struct{}{}
	for a := range s.Added {
		if _, ok := other.Added[RelPath(path, a)]; ok {
			stillAdded[a] = struct{}{}
		}
	}
	s.Added = stillAdded
	for m := range other.Modified {
		s.AddModified(JoinPaths(path, m))
	}
	for t, change := range other.Typechanged {
		s.AddTypechanged(JoinPaths(path, t), change)
	}
	for f := range other.IgnoredFallbacks {
		s.IgnoredFallbacks[JoinPaths(path, f)] = struct{}{}
	}
	s.EnsureCoherence()
	for k, v := range other.Docs {
		if s.Docs[k] == "" {
			s.Docs[k] = v
		}
	}
}

// UpdateAdd folds a sibling component's summary in under its path prefix;
// all record classes accumulate. The seed doc is only meaningful at the root
// and is skipped for prefixed components.
func (s *Summary) UpdateAdd(other *Summary, path string) {
	for a := range other.Added {
		s.AddAdded(JoinPaths(path, a))
	}
	for m := range other.Modified {
		s.AddModified(JoinPaths(path, m))
	}
	for t, change := range other.Typechanged {
		s.AddTypechanged(JoinPaths(path, t), change)
	}
	for f := range other.IgnoredFallbacks {
		s.IgnoredFallbacks[JoinPaths(path, f)] = struct{}{}
	}
	for k, v := range other.Docs {
		if path != "" && k == "seed" {
			continue
		}
		s.Docs[JoinPaths(path, k)] = v
	}
	s.EnsureCoherence()
}

// EnsureCoherence makes parent paths of any change show up as modified and
// keeps the three record classes disjoint (typechanged > added > modified).
func (s *Summary) EnsureCoherence() {
	for a := range s.Added {
		for _, p := range parentPrefixes(a) {
			s.Modified[p] = struct{}{}
		}
	}
	for m := range s.Modified {
		for _, p := range parentPrefixes(m) {
			s.Modified[p] = struct{}{}
		}
	}
	for t := range s.Typechanged {
		for _, p := range parentPrefixes(t) {
			s.Modified[p] = struct{}{}
		}
	}
	for t := range s.Typechanged {
		delete(s.Added, t)
		delete(s.Modified, t)
	}
	for a := range s.Added {
		delete(s.Modified, a)
	}
}

func parentPrefixes(path string) []string {
	prefixes := IterPrefixes(path)
	if len(prefixes) == 0 {
		return nil
	}
	return prefixes[:len(prefixes)-1]
}

// SortedAdded returns the added paths in lexical order.
func (s *Summary) SortedAdded() []string {
	return sortedSet(s.Added)
}

// SortedModified returns the modified paths in lexical order.
func (s *Summary) SortedModified() []string {
	return sortedSet(s.Modified)
}

// SortedTypechanged returns the typechanged paths in lexical order.
func (s *Summary) SortedTypechanged() []string {
	out := make([]string, 0, len(s.Typechanged))
	for k := range s.Typechanged {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func sortedSet(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
