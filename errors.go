package trials

import (
	"fmt"
	"sort"
	"strings"
)

// ProtectedKeyError reports a config block writing to a key owned by a
// fallback namespace, or a mutation of an already resolved configuration.
type ProtectedKeyError struct {
	Scope string
	Key   string
}

func (e *ProtectedKeyError) Error() string {
	if e == nil {
		return "<nil>"
	}
	scope := e.Scope
	if scope == "" {
		scope = "<root>"
	}
	return fmt.Sprintf("trials: scope %s cannot write protected key %q", scope, e.Key)
}

// ConfigAddedError reports an override path that no config block declares
// and no captured function consumes. It almost always means a typo.
type ConfigAddedError struct {
	Paths []string
}

func (e *ConfigAddedError) Error() string {
	if e == nil {
		return "<nil>"
	}
	paths := append([]string(nil), e.Paths...)
	sort.Strings(paths)
	return fmt.Sprintf("trials: added config values are not used anywhere: %s", strings.Join(paths, ", "))
}

// NamedConfigNotFoundError reports a preset name that no component declares.
type NamedConfigNotFoundError struct {
	Name      string
	Available []string
}

func (e *NamedConfigNotFoundError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if len(e.Available) == 0 {
		return fmt.Sprintf("trials: named config %q not found", e.Name)
	}
	available := append([]string(nil), e.Available...)
	sort.Strings(available)
	return fmt.Sprintf("trials: named config %q not found, available: %s", e.Name, strings.Join(available, ", "))
}

// CircularDependencyError reports a component that reaches itself through
// its own dependency graph.
type CircularDependencyError struct {
	Path string
}

func (e *CircularDependencyError) Error() string {
	if e == nil {
		return "<nil>"
	}
	path := e.Path
	if path == "" {
		path = "<root>"
	}
	return fmt.Sprintf("trials: circular dependency detected at component %s", path)
}

// MissingArgumentError reports captured-function parameters left unfilled
// after explicit arguments, the config namespace and defaults.
type MissingArgumentError struct {
	Function string
	Missing  []string
}

func (e *MissingArgumentError) Error() string {
	if e == nil {
		return "<nil>"
	}
	missing := append([]string(nil), e.Missing...)
	sort.Strings(missing)
	return fmt.Sprintf("trials: %s is missing value(s) for: %s", e.Function, strings.Join(missing, ", "))
}

// TooManyArgumentsError reports surplus positional arguments.
type TooManyArgumentsError struct {
	Function string
	Expected int
	Got      int
}

func (e *TooManyArgumentsError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("trials: %s takes at most %d argument(s), got %d", e.Function, e.Expected, e.Got)
}

// UnexpectedKeywordError reports a named argument that matches no parameter.
type UnexpectedKeywordError struct {
	Function string
	Keyword  string
}

func (e *UnexpectedKeywordError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("trials: %s got unexpected named argument %q", e.Function, e.Keyword)
}

// DuplicateArgumentError reports parameters bound both positionally and
// by name in the same call.
type DuplicateArgumentError struct {
	Function string
	Names    []string
}

func (e *DuplicateArgumentError) Error() string {
	if e == nil {
		return "<nil>"
	}
	names := append([]string(nil), e.Names...)
	sort.Strings(names)
	return fmt.Sprintf("trials: %s got multiple values for argument(s): %s", e.Function, strings.Join(names, ", "))
}

// ScopeError wraps a failure inside one component's config evaluation with
// the component path so callers can locate the offending block.
type ScopeError struct {
	Component string
	Err       error
}

func (e *ScopeError) Error() string {
	if e == nil {
		return "<nil>"
	}
	component := e.Component
	if component == "" {
		component = "<root>"
	}
	return fmt.Sprintf("trials: config of component %s: %v", component, e.Err)
}

func (e *ScopeError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func wrapScopeError(component string, err error) error {
	if err == nil {
		return nil
	}
	if scoped, ok := err.(*ScopeError); ok && scoped != nil {
		return scoped
	}
	return &ScopeError{Component: component, Err: err}
}
