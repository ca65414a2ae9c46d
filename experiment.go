package trials

// Experiment is the root component of a resolution. It behaves like an
// Ingredient mounted at the empty path, plus a human-readable name and a
// default command.
type Experiment struct {
	*Ingredient
	name string
}

// New constructs an experiment depending on the given components.
func New(name string, ingredients ...*Ingredient) *Experiment {
	return &Experiment{
		Ingredient: NewIngredient("", ingredients...),
		name:       name,
	}
}

// Name returns the experiment name.
func (e *Experiment) Name() string {
	if e == nil {
		return ""
	}
	return e.name
}

// Main registers fn as the default command, invoked when a run is resolved
// without an explicit command name.
func (e *Experiment) Main(fn *Captured) *Experiment {
	e.Command("main", fn)
	return e
}

// Run resolves and immediately executes the default command.
func (e *Experiment) Run(updates []Update, namedConfigs []string, opts ...ResolveOption) (*Run, error) {
	run, err := Resolve(e, "main", updates, namedConfigs, opts...)
	if err != nil {
		return nil, err
	}
	if _, err := run.Execute(); err != nil {
		return run, err
	}
	return run, nil
}

// RunCommand resolves and immediately executes a named command.
func (e *Experiment) RunCommand(command string, updates []Update, namedConfigs []string, opts ...ResolveOption) (*Run, error) {
	run, err := Resolve(e, command, updates, namedConfigs, opts...)
	if err != nil {
		return nil, err
	}
	if _, err := run.Execute(); err != nil {
		return run, err
	}
	return run, nil
}
