package trials

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/goliatone/go-trials/store"
)

// ConfigHook runs after a component's config blocks are evaluated and may
// contribute late adjustments. Returned entries merge into the component's
// configuration below explicit overrides.
type ConfigHook func(config *store.View, command string, logger *slog.Logger) (map[string]any, error)

// Ingredient is a reusable component: config blocks, named presets,
// captured functions and dependencies on other components. Its entries
// live under its dotted path in the resolved configuration.
type Ingredient struct {
	path         string
	configs      []ConfigSource
	namedConfigs map[string]ConfigSource
	namedOrder   []string
	ingredients  []*Ingredient
	captured     []*Captured
	commands     map[string]*Captured
	commandOrder []string
	configHooks  []ConfigHook
	preRun       []*Captured
	postRun      []*Captured

	traversing bool
}

// NewIngredient constructs a component mounted at path, depending on the
// given components.
func NewIngredient(path string, ingredients ...*Ingredient) *Ingredient {
	return &Ingredient{
		path:         path,
		ingredients:  ingredients,
		namedConfigs: map[string]ConfigSource{},
		commands:     map[string]*Captured{},
	}
}

// Path returns the component's dotted mount path.
func (ing *Ingredient) Path() string {
	if ing == nil {
		return ""
	}
	return ing.path
}

// AddConfig appends a config block. Blocks evaluate in declaration order;
// later blocks see and may override earlier results.
func (ing *Ingredient) AddConfig(source ConfigSource) *Ingredient {
	if source != nil {
		ing.configs = append(ing.configs, source)
	}
	return ing
}

// AddConfigMap appends a literal config block.
func (ing *Ingredient) AddConfigMap(values map[string]any) *Ingredient {
	return ing.AddConfig(ConfigMap(values))
}

// AddNamedConfig registers a preset selectable by name at resolution time.
func (ing *Ingredient) AddNamedConfig(name string, source ConfigSource) *Ingredient {
	if name == "" || source == nil {
		return ing
	}
	if _, exists := ing.namedConfigs[name]; !exists {
		ing.namedOrder = append(ing.namedOrder, name)
	}
	ing.namedConfigs[name] = source
	return ing
}

// Capture registers a captured function against the component so it is
// bound to the component's namespace on every run.
func (ing *Ingredient) Capture(fn *Captured) *Ingredient {
	if fn != nil {
		ing.captured = append(ing.captured, fn)
	}
	return ing
}

// Command registers a captured function invocable by name.
func (ing *Ingredient) Command(name string, fn *Captured) *Ingredient {
	if name == "" || fn == nil {
		return ing
	}
	if _, exists := ing.commands[name]; !exists {
		ing.commandOrder = append(ing.commandOrder, name)
	}
	ing.commands[name] = fn
	ing.captured = append(ing.captured, fn)
	return ing
}

// AddConfigHook registers a hook that adjusts the component's configuration
// after its blocks evaluate.
func (ing *Ingredient) AddConfigHook(hook ConfigHook) *Ingredient {
	if hook != nil {
		ing.configHooks = append(ing.configHooks, hook)
	}
	return ing
}

// PreRunHook registers a captured function executed before the command.
func (ing *Ingredient) PreRunHook(fn *Captured) *Ingredient {
	if fn != nil {
		ing.preRun = append(ing.preRun, fn)
		ing.captured = append(ing.captured, fn)
	}
	return ing
}

// PostRunHook registers a captured function executed after the command.
func (ing *Ingredient) PostRunHook(fn *Captured) *Ingredient {
	if fn != nil {
		ing.postRun = append(ing.postRun, fn)
		ing.captured = append(ing.captured, fn)
	}
	return ing
}

// traverse collects this component and every transitive dependency,
// depth-first, each exactly once. Cycles are an error.
func (ing *Ingredient) traverse() ([]*Ingredient, error) {
	seen := map[*Ingredient]struct{}{}
	var out []*Ingredient
	if err := ing.traverseInto(seen, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (ing *Ingredient) traverseInto(seen map[*Ingredient]struct{}, out *[]*Ingredient) error {
	if ing == nil {
		return nil
	}
	if ing.traversing {
		return &CircularDependencyError{Path: ing.path}
	}
	if _, done := seen[ing]; done {
		return nil
	}
	ing.traversing = true
	defer func() { ing.traversing = false }()
	seen[ing] = struct{}{}
	*out = append(*out, ing)
	for _, dep := range ing.ingredients {
		if err := dep.traverseInto(seen, out); err != nil {
			return err
		}
	}
	return nil
}

// getCommand resolves a possibly path-qualified command name against this
// component and its dependencies.
func (ing *Ingredient) getCommand(name string) (*Ingredient, *Captured, error) {
	componentPath, commandName := splitQualified(name)
	all, err := ing.traverse()
	if err != nil {
		return nil, nil, err
	}
	for _, component := range all {
		if componentPath != "" && component.path != componentPath {
			continue
		}
		if fn, ok := component.commands[commandName]; ok {
			return component, fn, nil
		}
	}
	return nil, nil, fmt.Errorf("trials: command %q not found", name)
}

func splitQualified(name string) (componentPath, local string) {
	if i := strings.LastIndex(name, store.Separator); i >= 0 {
		return name[:i], name[i+1:]
	}
	return "", name
}
