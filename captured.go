package trials

import (
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/goliatone/go-trials/store"
)

// Captured is a function declaration registered against a component: a
// parameter manifest plus a body. Declarations are immutable; per-run
// bindings carry the resolved configuration, logger and random state.
type Captured struct {
	sig    *Signature
	fn     func(*Args) (any, error)
	prefix string
}

// CapturedOption configures a captured declaration.
type CapturedOption func(*Captured)

// WithPrefix scopes the function's config namespace to a sub-path of its
// component's configuration.
func WithPrefix(prefix string) CapturedOption {
	return func(c *Captured) {
		c.prefix = prefix
	}
}

// NewCaptured declares a captured function.
func NewCaptured(sig *Signature, fn func(*Args) (any, error), opts ...CapturedOption) (*Captured, error) {
	if sig == nil {
		return nil, fmt.Errorf("trials: captured function requires a signature")
	}
	if fn == nil {
		return nil, fmt.Errorf("trials: captured function %s has no body", sig.Name())
	}
	c := &Captured{sig: sig, fn: fn}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

// MustCaptured is NewCaptured for static declarations; it panics on error.
func MustCaptured(sig *Signature, fn func(*Args) (any, error), opts ...CapturedOption) *Captured {
	c, err := NewCaptured(sig, fn, opts...)
	if err != nil {
		panic(err)
	}
	return c
}

// Signature returns the declared manifest.
func (c *Captured) Signature() *Signature {
	if c == nil {
		return nil
	}
	return c.sig
}

// Prefix returns the config sub-path the function reads from, if any.
func (c *Captured) Prefix() string {
	if c == nil {
		return ""
	}
	return c.prefix
}

// boundFunction is one captured declaration bound to a resolved run: the
// prefixed config view, component logger and seed. Call counting drives
// per-call seed derivation, so repeated calls draw distinct but
// reproducible random streams.
type boundFunction struct {
	decl   *Captured
	path   string
	config *store.View
	logger *slog.Logger
	run    *Run
	seed   int64
	legacy bool
	calls  atomic.Int64
}

func (b *boundFunction) call(pos []any, kw map[string]any) (any, error) {
	specials := map[string]any{
		ParamLog:    b.logger,
		ParamRun:    b.run,
		ParamConfig: b.config,
	}

	var callSeed int64
	var callRNG RNG
	if b.decl.sig.UsesRandomness() {
		n := b.calls.Add(1)
		callSeed = DeriveSeed(b.seed, fmt.Sprintf("#%d", n))
		callRNG = NewRNG(callSeed, b.legacy)
		specials[ParamSeed] = callSeed
		specials[ParamRNG] = callRNG
	}

	lookup := func(name string) (any, bool) {
		value, ok := b.config.Get(name)
		if !ok {
			return nil, false
		}
		if sub, isView := value.(*store.View); isView {
			return sub.Nested(), true
		}
		return value, true
	}

	values, err := b.decl.sig.constructArguments(pos, kw, lookup, specials)
	if err != nil {
		return nil, err
	}

	args := &Args{
		values: values,
		sig:    b.decl.sig,
		run:    b.run,
		logger: b.logger,
		config: b.config,
		rng:    callRNG,
		seed:   callSeed,
		path:   b.path,
	}

	started := time.Now()
	b.logger.Debug("started", slog.String("function", b.decl.sig.Name()))
	result, err := b.decl.fn(args)
	elapsed := time.Since(started)
	if err != nil {
		b.logger.Debug("failed",
			slog.String("function", b.decl.sig.Name()),
			slog.Duration("elapsed", elapsed),
			slog.String("error", err.Error()))
		return nil, err
	}
	b.logger.Debug("finished",
		slog.String("function", b.decl.sig.Name()),
		slog.Duration("elapsed", elapsed))
	return result, nil
}
