package store

import "strings"

// Separator joins the segments of a configuration path.
const Separator = "."

// JoinPaths joins path fragments into a dotted path, dropping empty parts.
func JoinPaths(parts ...string) string {
	joined := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.Trim(p, Separator)
		if p == "" {
			continue
		}
		joined = append(joined, p)
	}
	return strings.Join(joined, Separator)
}

// SplitPath splits a dotted path into its segments.
func SplitPath(path string) []string {
	return strings.Split(strings.Trim(path, Separator), Separator)
}

// IterPrefixes returns every non-empty prefix of a dotted path, shortest
// first, including the path itself.
func IterPrefixes(path string) []string {
	if path == "" {
		return nil
	}
	segments := SplitPath(path)
	out := make([]string, 0, len(segments))
	for i := 1; i <= len(segments); i++ {
		out = append(out, strings.Join(segments[:i], Separator))
	}
	return out
}

// IsPrefix reports whether pre is a strict path-prefix of path. An empty pre
// is a prefix of everything.
func IsPrefix(pre, path string) bool {
	pre = strings.Trim(pre, Separator)
	path = strings.Trim(path, Separator)
	return pre == "" || strings.HasPrefix(path, pre+Separator)
}

// RelPath strips the base prefix from path.
func RelPath(base, path string) string {
	base = strings.Trim(base, Separator)
	path = strings.Trim(path, Separator)
	if base == "" {
		return path
	}
	if path == base {
		return ""
	}
	if strings.HasPrefix(path, base+Separator) {
		return path[len(base)+1:]
	}
	return path
}

// FromFlat converts an ordered list of dotted-path updates into a nested Map
// under the given key rules. Later updates to the same path win.
func FromFlat(updates []Update, rules KeyRules) (*Map, error) {
	out, _, err := Apply(NewMap(), updates, rules)
	return out, err
}
