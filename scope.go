package trials

import (
	"fmt"
	"log/slog"

	"github.com/goliatone/go-trials/store"
)

// evalEnv carries the machinery shared by every config source evaluated
// during one resolution pass.
type evalEnv struct {
	evaluator Evaluator
	settings  Settings
	logger    *slog.Logger
	scopePath string
}

// ConfigSource is a declarative block of configuration. Sources are
// evaluated under three overlays: fixed values (overrides, strongest),
// preset values (earlier sources and named configs), and fallback values
// (entries owned by dependency components, visible but not writable).
type ConfigSource interface {
	evaluate(env *evalEnv, fixed, preset, fallback *store.Map) (*store.Map, *store.Summary, error)
}

// Field is one declaration inside a Config block: either a literal value
// or a computed expression, optionally documented and conditional.
type Field struct {
	name     string
	literal  any
	expr     string
	computed bool
	doc      string
	onlyIf   string
}

// Let declares a literal configuration entry.
func Let(name string, value any) *Field {
	return &Field{name: name, literal: value}
}

// Compute declares an entry computed from an expression. The expression
// sees every entry declared before it, plus preset and fallback values.
func Compute(name, expr string) *Field {
	return &Field{name: name, expr: expr, computed: true}
}

// Doc attaches documentation to the entry.
func (f *Field) Doc(text string) *Field {
	f.doc = text
	return f
}

// OnlyIf guards the declaration behind a boolean expression. When the
// condition is false the field is skipped entirely.
func (f *Field) OnlyIf(cond string) *Field {
	f.onlyIf = cond
	return f
}

type fieldScope struct {
	fields []*Field
}

// Config builds a ConfigSource from ordered field declarations.
func Config(fields ...*Field) ConfigSource {
	return &fieldScope{fields: fields}
}

func (s *fieldScope) evaluate(env *evalEnv, fixed, preset, fallback *store.Map) (*store.Map, *store.Summary, error) {
	return evaluateFields(env, s.fields, fixed, preset, fallback)
}

type mapScope struct {
	values map[string]any
}

// ConfigMap builds a ConfigSource from a plain map of literal values.
// Keys are evaluated in sorted order.
func ConfigMap(values map[string]any) ConfigSource {
	return &mapScope{values: values}
}

func (s *mapScope) evaluate(env *evalEnv, fixed, preset, fallback *store.Map) (*store.Map, *store.Summary, error) {
	return evaluateFields(env, literalFields(s.values), fixed, preset, fallback)
}

type funcScope struct {
	fn func(preset *store.View) (map[string]any, error)
}

// ConfigFunc builds a ConfigSource from a function. The function receives
// a read-only view of the values already decided for the scope and returns
// the entries it declares.
func ConfigFunc(fn func(preset *store.View) (map[string]any, error)) ConfigSource {
	return &funcScope{fn: fn}
}

func (s *funcScope) evaluate(env *evalEnv, fixed, preset, fallback *store.Map) (*store.Map, *store.Summary, error) {
	if s.fn == nil {
		return nil, nil, fmt.Errorf("trials: config function is nil")
	}
	seen := fallback.Clone()
	store.RecursiveUpdate(seen, preset)
	store.RecursiveUpdate(seen, fixed)
	values, err := s.fn(store.NewView(seen))
	if err != nil {
		return nil, nil, err
	}
	return evaluateFields(env, literalFields(values), fixed, preset, fallback)
}

type fileScope struct {
	path string
}

// FileConfig builds a ConfigSource that loads literal values from a JSON
// or YAML file at evaluation time.
func FileConfig(path string) ConfigSource {
	return &fileScope{path: path}
}

func (s *fileScope) evaluate(env *evalEnv, fixed, preset, fallback *store.Map) (*store.Map, *store.Summary, error) {
	values, err := LoadConfigFile(s.path)
	if err != nil {
		return nil, nil, err
	}
	return evaluateFields(env, literalFields(values), fixed, preset, fallback)
}

func literalFields(values map[string]any) []*Field {
	tmp := store.NewMap()
	for key := range values {
		tmp.Set(key, nil)
	}
	fields := make([]*Field, 0, len(values))
	for _, key := range tmp.SortedKeys() {
		fields = append(fields, Let(key, values[key]))
	}
	return fields
}

// evaluateFields runs the declarations of one config block under the three
// overlays. Fixed values silently win over declared values, with the
// difference recorded per leaf. Writes into fallback-owned names are
// protected. Preset values fill in anything the block leaves undeclared.
func evaluateFields(env *evalEnv, fields []*Field, fixed, preset, fallback *store.Map) (*store.Map, *store.Summary, error) {
	locals := store.NewMap()
	summary := store.NewSummary()

	bindings := map[string]any{}
	for key, value := range fallback.Nested() {
		bindings[key] = value
	}
	for key, value := range preset.Nested() {
		bindings[key] = value
	}
	for key, value := range fixed.Nested() {
		bindings[key] = value
	}

	for _, field := range fields {
		if field == nil || field.name == "" {
			continue
		}
		if field.onlyIf != "" {
			keep, err := evaluateCondition(env, bindings, field.onlyIf)
			if err != nil {
				return nil, nil, err
			}
			if !keep {
				continue
			}
		}

		candidate, err := fieldValue(env, bindings, field)
		if err != nil {
			if _, drop := err.(*store.ErrNotRepresentable); drop {
				env.logger.Debug("dropping non-representable config value",
					slog.String("scope", env.scopePath),
					slog.String("key", field.name))
				continue
			}
			return nil, nil, err
		}

		if field.doc != "" {
			summary.Docs[field.name] = field.doc
		}

		if fixedValue, ok := fixed.Get(field.name); ok {
			merged := overlayFixed(candidate, fixedValue, field.name, summary)
			locals.Set(field.name, merged)
			bindings[field.name] = store.Export(merged)
			continue
		}
		if fallback.Has(field.name) {
			if env.settings.ProtectedWrites == PolicyFail {
				return nil, nil, &ProtectedKeyError{Scope: env.scopePath, Key: field.name}
			}
			summary.IgnoredFallbacks[field.name] = struct{}{}
			env.logger.Warn("ignoring write to fallback-owned key",
				slog.String("scope", env.scopePath),
				slog.String("key", field.name))
			continue
		}
		locals.Set(field.name, candidate)
		bindings[field.name] = store.Export(candidate)
	}

	// Fixed leaves the block never declared still land in the result; they
	// count as added relative to this scope.
	for _, entry := range fixed.Flatten() {
		if locals.HasPath(entry.Path) {
			continue
		}
		locals.SetPath(entry.Path, cloneNormalized(entry.Value))
		summary.AddAdded(entry.Path)
	}

	store.RecursiveFillIn(locals, preset)

	for _, key := range locals.Keys() {
		if store.IsPrivate(key) {
			locals.Delete(key)
		}
	}

	if err := validateProducedKeys(env, locals); err != nil {
		return nil, nil, err
	}

	summary.EnsureCoherence()
	return locals, summary, nil
}

func fieldValue(env *evalEnv, bindings map[string]any, field *Field) (any, error) {
	if !field.computed {
		return store.Normalize(field.literal)
	}
	result, err := env.evaluator.Evaluate(EvalContext{
		Bindings: bindings,
		Scope:    env.scopePath,
	}, field.expr)
	if err != nil {
		return nil, err
	}
	return store.Normalize(result)
}

func evaluateCondition(env *evalEnv, bindings map[string]any, cond string) (bool, error) {
	result, err := env.evaluator.Evaluate(EvalContext{
		Bindings: bindings,
		Scope:    env.scopePath,
	}, cond)
	if err != nil {
		return false, err
	}
	switch tv := result.(type) {
	case bool:
		return tv, nil
	case nil:
		return false, nil
	default:
		return false, fmt.Errorf("trials: condition %q evaluated to %T, want bool", cond, result)
	}
}

// overlayFixed resolves a declared value against a fixed override. The fixed
// value always wins; the suppressed declaration is recorded as modified or
// typechanged per leaf. Map-on-map merges key-wise so fixed leaves override
// individually while declared-only leaves survive.
func overlayFixed(candidate, fixedValue any, path string, summary *store.Summary) any {
	candidateMap, candidateIsMap := candidate.(*store.Map)
	fixedMap, fixedIsMap := fixedValue.(*store.Map)
	if candidateIsMap && fixedIsMap {
		merged := candidateMap.Clone()
		fixedMap.Range(func(key string, value any) bool {
			childPath := store.JoinPaths(path, key)
			existing, ok := merged.Get(key)
			if !ok {
				merged.Set(key, cloneNormalized(value))
				summary.AddAdded(childPath)
				return true
			}
			merged.Set(key, overlayFixed(existing, value, childPath, summary))
			return true
		})
		return merged
	}
	if store.TypeChangedValue(candidate, fixedValue) {
		summary.AddTypechanged(path, store.TypeChange{
			Old: store.KindOf(candidate),
			New: store.KindOf(fixedValue),
		})
	} else if !store.Equal(candidate, fixedValue) {
		summary.AddModified(path)
	}
	return cloneNormalized(fixedValue)
}

func cloneNormalized(v any) any {
	if m, ok := v.(*store.Map); ok {
		return m.Clone()
	}
	if s, ok := v.([]any); ok {
		out := make([]any, len(s))
		for i, item := range s {
			out[i] = cloneNormalized(item)
		}
		return out
	}
	return v
}

func validateProducedKeys(env *evalEnv, locals *store.Map) error {
	for _, entry := range locals.Flatten() {
		for _, segment := range store.SplitPath(entry.Path) {
			err := store.ValidateKey(segment, env.settings.Keys)
			if err == nil {
				continue
			}
			if env.settings.Keys.Strict {
				return err
			}
			env.logger.Warn("config key violates key rules",
				slog.String("scope", env.scopePath),
				slog.String("key", segment),
				slog.String("reason", err.Error()))
		}
	}
	return nil
}

// chainEvaluate runs the sources of one component in declaration order.
// Each source sees the accumulated result of its predecessors as preset
// values; later sources win on overlap. With no sources the fixed values
// pass through untouched. The per-source results are returned alongside
// the fold for provenance reporting.
func chainEvaluate(env *evalEnv, sources []ConfigSource, fixed, preset, fallback *store.Map) (*store.Map, []*store.Map, []*store.Summary, error) {
	final := preset.Clone()
	locals := make([]*store.Map, 0, len(sources))
	summaries := make([]*store.Summary, 0, len(sources))
	for _, source := range sources {
		result, summary, err := source.evaluate(env, fixed, final, fallback)
		if err != nil {
			return nil, nil, nil, wrapScopeError(env.scopePath, err)
		}
		store.RecursiveUpdate(final, result)
		locals = append(locals, result)
		summaries = append(summaries, summary)
	}
	if len(sources) == 0 {
		store.RecursiveUpdate(final, fixed)
	}
	return final, locals, summaries, nil
}
