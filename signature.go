package trials

import (
	"fmt"
	"sort"
)

// Special parameter names injected by the framework rather than resolved
// from configuration.
const (
	ParamSeed   = "_seed"
	ParamRNG    = "_rnd"
	ParamLog    = "_log"
	ParamRun    = "_run"
	ParamConfig = "_config"
)

var specialParams = map[string]struct{}{
	ParamSeed:   {},
	ParamRNG:    {},
	ParamLog:    {},
	ParamRun:    {},
	ParamConfig: {},
}

func isSpecialParam(name string) bool {
	_, ok := specialParams[name]
	return ok
}

// Param is one declared parameter of a captured function's manifest.
type Param struct {
	Name       string
	HasDefault bool
	Default    any
}

// Arg declares a required parameter.
func Arg(name string) Param {
	return Param{Name: name}
}

// ArgDefault declares a parameter with a default value, used when neither
// an explicit argument nor the config namespace provides one.
func ArgDefault(name string, value any) Param {
	return Param{Name: name, HasDefault: true, Default: value}
}

// Signature is the ordered parameter manifest a captured function exposes
// for injection.
type Signature struct {
	name   string
	params []Param
	byName map[string]int
}

// NewSignature builds a manifest for the named function. Parameter names
// must be unique.
func NewSignature(name string, params ...Param) (*Signature, error) {
	byName := make(map[string]int, len(params))
	for i, p := range params {
		if p.Name == "" {
			return nil, fmt.Errorf("trials: signature %s: parameter %d has no name", name, i)
		}
		if _, dup := byName[p.Name]; dup {
			return nil, fmt.Errorf("trials: signature %s: duplicate parameter %q", name, p.Name)
		}
		byName[p.Name] = i
	}
	return &Signature{name: name, params: params, byName: byName}, nil
}

// Name returns the function name the manifest was declared for.
func (s *Signature) Name() string {
	if s == nil {
		return ""
	}
	return s.name
}

// Params returns a copy of the declared parameters in order.
func (s *Signature) Params() []Param {
	if s == nil {
		return nil
	}
	out := make([]Param, len(s.params))
	copy(out, s.params)
	return out
}

// Declares reports whether the manifest names the given parameter.
func (s *Signature) Declares(name string) bool {
	if s == nil {
		return false
	}
	_, ok := s.byName[name]
	return ok
}

// UsesRandomness reports whether the manifest requests seed or RNG
// injection.
func (s *Signature) UsesRandomness() bool {
	return s.Declares(ParamSeed) || s.Declares(ParamRNG)
}

// positional returns the non-special parameters in declaration order.
func (s *Signature) positional() []Param {
	out := make([]Param, 0, len(s.params))
	for _, p := range s.params {
		if isSpecialParam(p.Name) {
			continue
		}
		out = append(out, p)
	}
	return out
}

// constructArguments resolves the full argument set for one call.
// Precedence per parameter: explicit arguments beat the lookup namespace,
// the namespace beats declared defaults. Special parameters come from the
// specials map and never from callers or config.
func (s *Signature) constructArguments(pos []any, kw map[string]any, lookup func(name string) (any, bool), specials map[string]any) (map[string]any, error) {
	positional := s.positional()
	if len(pos) > len(positional) {
		return nil, &TooManyArgumentsError{
			Function: s.name,
			Expected: len(positional),
			Got:      len(pos),
		}
	}

	args := make(map[string]any, len(s.params))
	for i, value := range pos {
		args[positional[i].Name] = value
	}

	var duplicates []string
	for name, value := range kw {
		if isSpecialParam(name) {
			return nil, &UnexpectedKeywordError{Function: s.name, Keyword: name}
		}
		if !s.Declares(name) {
			return nil, &UnexpectedKeywordError{Function: s.name, Keyword: name}
		}
		if _, bound := args[name]; bound {
			duplicates = append(duplicates, name)
			continue
		}
		args[name] = value
	}
	if len(duplicates) > 0 {
		sort.Strings(duplicates)
		return nil, &DuplicateArgumentError{Function: s.name, Names: duplicates}
	}

	for name, value := range specials {
		if s.Declares(name) {
			args[name] = value
		}
	}

	var missing []string
	for _, p := range s.params {
		if _, bound := args[p.Name]; bound {
			continue
		}
		if isSpecialParam(p.Name) {
			continue
		}
		if lookup != nil {
			if value, ok := lookup(p.Name); ok {
				args[p.Name] = value
				continue
			}
		}
		if p.HasDefault {
			args[p.Name] = p.Default
			continue
		}
		missing = append(missing, p.Name)
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, &MissingArgumentError{Function: s.name, Missing: missing}
	}
	return args, nil
}
