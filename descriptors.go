package trials

import (
	"encoding/json"

	"github.com/goliatone/go-trials/store"
)

// EntryDescriptor is the reportable shape of one resolved entry: value,
// simplified type, how it changed during resolution, and documentation.
type EntryDescriptor struct {
	Path   string           `json:"path"`
	Value  any              `json:"value"`
	Kind   store.Kind       `json:"kind"`
	Change store.ChangeKind `json:"change"`
	Doc    string           `json:"doc,omitempty"`
}

// Describe returns a descriptor for every leaf entry of the resolved
// configuration, in declaration order.
func (r *Run) Describe() []EntryDescriptor {
	entries := r.config.Flatten()
	out := make([]EntryDescriptor, 0, len(entries))
	for _, entry := range entries {
		out = append(out, EntryDescriptor{
			Path:   entry.Path,
			Value:  store.Export(entry.Value),
			Kind:   store.KindOf(entry.Value),
			Change: r.mods.ChangeFor(entry.Path),
			Doc:    r.mods.Docs[entry.Path],
		})
	}
	return out
}

// DescribeJSON serializes the descriptors for tooling.
func (r *Run) DescribeJSON() ([]byte, error) {
	return json.MarshalIndent(r.Describe(), "", "  ")
}
