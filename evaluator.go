package trials

import "time"

// EvalContext carries the binding environment a config-field expression is
// evaluated against: already-decided entries of the current scope, preset and
// fallback values, and registered functions.
type EvalContext struct {
	// Bindings maps entry names to their current values. Nested entries
	// appear as plain map[string]any so engines can do member access.
	Bindings map[string]any
	// Scope is the owning component's path, used for diagnostics.
	Scope string
	Now   *time.Time
}

func (ctx EvalContext) withDefaultNow() EvalContext {
	if ctx.Now != nil {
		return ctx
	}
	now := time.Now()
	ctx.Now = &now
	return ctx
}

func (ctx EvalContext) timestamp() time.Time {
	ctx = ctx.withDefaultNow()
	return *ctx.Now
}

func (ctx EvalContext) withDefaultBindings() EvalContext {
	if ctx.Bindings == nil {
		ctx.Bindings = map[string]any{}
	}
	return ctx
}

func (ctx EvalContext) withDefaults() EvalContext {
	return ctx.withDefaultNow().withDefaultBindings()
}

func (ctx EvalContext) scopeLabel() string {
	if ctx.Scope != "" {
		return ctx.Scope
	}
	return "<root>"
}

// Evaluator executes config-field expressions against an EvalContext.
type Evaluator interface {
	Evaluate(ctx EvalContext, expr string) (any, error)
	Compile(expr string, opts ...CompileOption) (CompiledRule, error)
}

// CompiledRule represents a reusable expression program.
type CompiledRule interface {
	Evaluate(ctx EvalContext) (any, error)
}

// CompileOption configures evaluator compile behaviour.
type CompileOption interface {
	applyCompileOption(*compileConfig)
}

type compileConfig struct{}

type compileOptionFunc func(*compileConfig)

func (f compileOptionFunc) applyCompileOption(cfg *compileConfig) {
	if f != nil {
		f(cfg)
	}
}
