package store

// View is a read-only accessor over a Map. It is handed to captured functions
// and to config scopes as the fallback namespace: there is no mutating method,
// so resolved configuration cannot be written to silently.
type View struct {
	m *Map
}

// NewView wraps a Map in a read-only view. The Map must not be mutated after
// wrapping if the view is shared.
func NewView(m *Map) *View {
	return &View{m: m}
}

// Get resolves a dotted path.
func (v *View) Get(path string) (any, bool) {
	if v == nil {
		return nil, false
	}
	value, ok := v.m.GetPath(path)
	if sub, isMap := value.(*Map); isMap {
		return NewView(sub), ok
	}
	return value, ok
}

// Has reports whether a dotted path resolves.
func (v *View) Has(path string) bool {
	_, ok := v.Get(path)
	return ok
}

// Sub returns a view rooted at the given dotted path, or an empty view when
// the path does not address a mapping.
func (v *View) Sub(path string) *View {
	if v == nil {
		return NewView(NewMap())
	}
	value, ok := v.m.GetPath(path)
	if !ok {
		return NewView(NewMap())
	}
	if sub, isMap := value.(*Map); isMap {
		return NewView(sub)
	}
	return NewView(NewMap())
}

// String returns the string at path, or fallback.
func (v *View) String(path, fallback string) string {
	if value, ok := v.Get(path); ok {
		if s, ok := value.(string); ok {
			return s
		}
	}
	return fallback
}

// Int returns the integer at path, or fallback. Float values with an exact
// integer representation are accepted.
func (v *View) Int(path string, fallback int64) int64 {
	value, ok := v.Get(path)
	if !ok {
		return fallback
	}
	switch tv := value.(type) {
	case int64:
		return tv
	case float64:
		if float64(int64(tv)) == tv {
			return int64(tv)
		}
	}
	return fallback
}

// Float returns the float at path, or fallback. Integers widen.
func (v *View) Float(path string, fallback float64) float64 {
	value, ok := v.Get(path)
	if !ok {
		return fallback
	}
	switch tv := value.(type) {
	case float64:
		return tv
	case int64:
		return float64(tv)
	}
	return fallback
}

// Bool returns the bool at path, or fallback.
func (v *View) Bool(path string, fallback bool) bool {
	if value, ok := v.Get(path); ok {
		if b, ok := value.(bool); ok {
			return b
		}
	}
	return fallback
}

// Slice returns the sequence at path, deep-copied, or nil.
func (v *View) Slice(path string) []any {
	if value, ok := v.Get(path); ok {
		if s, ok := value.([]any); ok {
			return cloneValue(s).([]any)
		}
	}
	return nil
}

// Keys returns the top-level keys in insertion order.
func (v *View) Keys() []string {
	if v == nil {
		return nil
	}
	return v.m.Keys()
}

// Len returns the number of top-level keys.
func (v *View) Len() int {
	if v == nil {
		return 0
	}
	return v.m.Len()
}

// Nested exports a detached plain nested-map snapshot.
func (v *View) Nested() map[string]any {
	if v == nil {
		return map[string]any{}
	}
	return v.m.Nested()
}

// Flatten returns the leaf entries in insertion order.
func (v *View) Flatten() []Entry {
	if v == nil {
		return nil
	}
	return v.m.Flatten()
}

// Bindings exposes the view's entries as an expression-environment map:
// nested maps become plain map[string]any so engines can do member access.
func (v *View) Bindings() map[string]any {
	return v.Nested()
}
