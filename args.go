package trials

import (
	"log/slog"

	"github.com/goliatone/go-trials/internal/hydrate"
	"github.com/goliatone/go-trials/store"
)

// Args is the resolved argument set handed to a captured function body.
// Values reflect the per-parameter precedence: explicit call arguments,
// then the function's config namespace, then declared defaults.
type Args struct {
	values map[string]any
	sig    *Signature
	run    *Run
	logger *slog.Logger
	config *store.View
	rng    RNG
	seed   int64
	path   string
}

// Get returns the value bound to a parameter name.
func (a *Args) Get(name string) (any, bool) {
	if a == nil {
		return nil, false
	}
	v, ok := a.values[name]
	return v, ok
}

// String returns the string bound to name, or fallback.
func (a *Args) String(name, fallback string) string {
	if v, ok := a.Get(name); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return fallback
}

// Int returns the integer bound to name, or fallback. Exact-integer floats
// are accepted.
func (a *Args) Int(name string, fallback int64) int64 {
	v, ok := a.Get(name)
	if !ok {
		return fallback
	}
	switch tv := v.(type) {
	case int64:
		return tv
	case int:
		return int64(tv)
	case float64:
		if float64(int64(tv)) == tv {
			return int64(tv)
		}
	}
	return fallback
}

// Float returns the float bound to name, or fallback. Integers widen.
func (a *Args) Float(name string, fallback float64) float64 {
	v, ok := a.Get(name)
	if !ok {
		return fallback
	}
	switch tv := v.(type) {
	case float64:
		return tv
	case int64:
		return float64(tv)
	case int:
		return float64(tv)
	}
	return fallback
}

// Bool returns the bool bound to name, or fallback.
func (a *Args) Bool(name string, fallback bool) bool {
	if v, ok := a.Get(name); ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return fallback
}

// Slice returns the sequence bound to name, or nil.
func (a *Args) Slice(name string) []any {
	if v, ok := a.Get(name); ok {
		if s, ok := v.([]any); ok {
			return s
		}
	}
	return nil
}

// Seed returns the per-call seed, valid when the function declares _seed
// or _rnd.
func (a *Args) Seed() int64 {
	if a == nil {
		return 0
	}
	return a.seed
}

// RNG returns the per-call random source, valid when the function declares
// _seed or _rnd.
func (a *Args) RNG() RNG {
	if a == nil {
		return nil
	}
	return a.rng
}

// Logger returns the component logger.
func (a *Args) Logger() *slog.Logger {
	if a == nil || a.logger == nil {
		return slog.Default()
	}
	return a.logger
}

// Run returns the owning run, or nil for standalone calls.
func (a *Args) Run() *Run {
	if a == nil {
		return nil
	}
	return a.run
}

// Config returns a read-only view of the function's config namespace.
func (a *Args) Config() *store.View {
	if a == nil || a.config == nil {
		return store.NewView(store.NewMap())
	}
	return a.config
}

// Hydrate decodes the function's config namespace into dst, which must be
// a pointer to a struct with JSON tags matching entry names.
func (a *Args) Hydrate(dst any) error {
	payload := a.Config().Nested()
	return hydrate.DecodeInto(hydrate.Context{Run: a.runID(), Path: a.path}, payload, dst)
}

func (a *Args) runID() string {
	if a == nil || a.run == nil {
		return ""
	}
	return a.run.ID().String()
}
