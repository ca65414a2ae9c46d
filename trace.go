package trials

import (
	"encoding/json"

	"github.com/goliatone/go-trials/store"
)

// traceLayer is one provenance layer recorded during resolution, in root
// coordinates.
type traceLayer struct {
	source string
	values *store.Map
}

// Provenance reports whether one layer contributed a value for a path.
type Provenance struct {
	Source string `json:"source"`
	Found  bool   `json:"found"`
	Value  any    `json:"value,omitempty"`
}

// Trace explains where a resolved entry came from: every layer that was
// consulted, strongest first, with the first found layer being the winner.
type Trace struct {
	Path   string       `json:"path"`
	Value  any          `json:"value"`
	Layers []Provenance `json:"layers"`
}

// Trace reports the provenance of the entry at path.
func (r *Run) Trace(path string) Trace {
	out := Trace{Path: path}
	if value, ok := r.config.GetPath(path); ok {
		out.Value = store.Export(value)
	}
	for _, layer := range r.trace {
		entry := Provenance{Source: layer.source}
		if value, ok := layer.values.GetPath(path); ok {
			entry.Found = true
			entry.Value = store.Export(value)
		}
		out.Layers = append(out.Layers, entry)
	}
	return out
}

// ToJSON serializes the trace for logs or tooling.
func (t Trace) ToJSON() ([]byte, error) {
	return json.MarshalIndent(t, "", "  ")
}
