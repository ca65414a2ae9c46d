package trials

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/google/uuid"

	"github.com/goliatone/go-trials/pkg/audit"
	"github.com/goliatone/go-trials/pkg/runstore"
	"github.com/goliatone/go-trials/store"
)

// Update is one dotted-path configuration override.
type Update = store.Update

type resolveConfig struct {
	settings  Settings
	evaluator Evaluator
	cache     ProgramCache
	registry  *FunctionRegistry
	logger    *slog.Logger
	hooks     audit.Hooks
	records   runstore.Store
	force     bool
}

// ResolveOption configures one resolution.
type ResolveOption func(*resolveConfig)

// WithSettings overrides the default resolution settings.
func WithSettings(settings Settings) ResolveOption {
	return func(cfg *resolveConfig) {
		cfg.settings = settings
	}
}

// WithEvaluator selects the expression engine used for computed fields.
func WithEvaluator(evaluator Evaluator) ResolveOption {
	return func(cfg *resolveConfig) {
		if evaluator != nil {
			cfg.evaluator = evaluator
		}
	}
}

// WithProgramCache shares a compiled-program cache across resolutions.
func WithProgramCache(cache ProgramCache) ResolveOption {
	return func(cfg *resolveConfig) {
		cfg.cache = cache
	}
}

// WithFunctionRegistry exposes registered functions to config expressions.
func WithFunctionRegistry(registry *FunctionRegistry) ResolveOption {
	return func(cfg *resolveConfig) {
		if registry != nil {
			cfg.registry = registry.Clone()
		}
	}
}

// WithLogger sets the logger for resolution and the resulting run.
func WithLogger(logger *slog.Logger) ResolveOption {
	return func(cfg *resolveConfig) {
		if logger != nil {
			cfg.logger = logger
		}
	}
}

// WithAuditHooks registers observers for change records and run lifecycle
// events.
func WithAuditHooks(hooks ...audit.Hook) ResolveOption {
	return func(cfg *resolveConfig) {
		cfg.hooks = append(cfg.hooks, hooks...)
	}
}

// WithRunStore persists executed runs into records.
func WithRunStore(records runstore.Store) ResolveOption {
	return func(cfg *resolveConfig) {
		cfg.records = records
	}
}

// WithForce downgrades the unused-override check to a warning for this
// resolution only.
func WithForce() ResolveOption {
	return func(cfg *resolveConfig) {
		cfg.force = true
	}
}

// scaffold is the per-component working state of one resolution.
type scaffold struct {
	ing           *Ingredient
	path          string
	flatUpdates   []Update
	configUpdates *store.Map
	presets       *store.Map
	fallback      *store.Map
	config        *store.Map
	sourceLocals  []*store.Map
	hookResults   *store.Map
	summaries     []*store.Summary
	configMods    *store.Summary
	logger        *slog.Logger
	seed          int64
}

func (sc *scaffold) label() string {
	if sc.path == "" {
		return "<root>"
	}
	return sc.path
}

// Resolve evaluates an experiment's configuration under the given overrides
// and named configs and returns an executable Run. The input experiment is
// never mutated; resolving the same inputs twice yields identical
// configurations apart from a generated root seed.
func Resolve(exp *Experiment, command string, updates []Update, namedConfigs []string, opts ...ResolveOption) (*Run, error) {
	if exp == nil {
		return nil, fmt.Errorf("trials: experiment is nil")
	}
	cfg := resolveConfig{
		settings: DefaultSettings(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if cfg.evaluator == nil {
		if cfg.cache == nil {
			cfg.cache = NewMemoryProgramCache()
		}
		cfg.evaluator = NewExprEvaluator(
			ExprWithProgramCache(cfg.cache),
			ExprWithFunctionRegistry(cfg.registry),
		)
	}

	components, err := exp.traverse()
	if err != nil {
		return nil, err
	}
	scaffolds, byPath, err := buildScaffolds(components, cfg.logger)
	if err != nil {
		return nil, err
	}

	capturedArgs := gatherCapturedArgs(scaffolds)

	// Named-config outputs act as overrides below the explicit ones, so
	// they come first and the explicit updates are appended last.
	var presetUpdates []Update
	if err := distributeUpdates(scaffolds, append(presetUpdates, updates...), cfg.settings.Keys); err != nil {
		return nil, err
	}

	var presetLayers []traceLayer
	for _, name := range namedConfigs {
		produced, layer, err := applyNamedConfig(&cfg, scaffolds, byPath, name)
		if err != nil {
			return nil, err
		}
		presetUpdates = append(presetUpdates, produced...)
		presetLayers = append(presetLayers, layer)
		combined := append(append([]Update{}, presetUpdates...), updates...)
		if err := distributeUpdates(scaffolds, combined, cfg.settings.Keys); err != nil {
			return nil, err
		}
	}

	// Evaluate deepest components first so parents see dependency
	// configurations as fallbacks.
	for _, sc := range scaffolds {
		sc.fallback = gatherFallbacks(sc, scaffolds)
		env := &evalEnv{
			evaluator: cfg.evaluator,
			settings:  cfg.settings,
			logger:    sc.logger,
			scopePath: sc.path,
		}
		final, locals, summaries, err := chainEvaluate(env, sc.ing.configs, sc.configUpdates, sc.presets, sc.fallback)
		if err != nil {
			return nil, err
		}
		sc.config = final
		sc.sourceLocals = locals
		sc.summaries = summaries

		if err := runConfigHooks(sc, command); err != nil {
			return nil, err
		}
		sc.buildConfigMods()
	}

	assignSeeds(scaffolds)

	globalConfig := foldConfiguration(scaffolds)
	mods := aggregateMods(scaffolds)

	emitter := audit.NewEmitter(cfg.hooks, audit.Config{
		Enabled:    len(cfg.hooks) > 0,
		Experiment: exp.Name(),
	})

	if err := reportSuspiciousChanges(&cfg, emitter, mods, capturedArgs); err != nil {
		return nil, err
	}

	_, commandFn, err := exp.getCommand(command)
	if err != nil {
		return nil, err
	}

	run := &Run{
		id:         uuid.New(),
		experiment: exp.Name(),
		command:    command,
		config:     globalConfig,
		view:       store.NewView(globalConfig),
		mods:       mods,
		seeds:      map[string]int64{},
		logger:     cfg.logger,
		settings:   cfg.settings,
		bound:      map[*Captured]*boundFunction{},
		emitter:    emitter,
		records:    cfg.records,
		trace:      buildTraceLayers(scaffolds, updates, presetLayers, cfg.settings.Keys),
	}

	for _, sc := range scaffolds {
		run.seeds[sc.path] = sc.seed
		if sc.path == "" {
			run.rootSeed = sc.seed
		}
		for _, fn := range sc.ing.captured {
			if _, done := run.bound[fn]; done {
				continue
			}
			run.bound[fn] = bindCaptured(run, sc, fn)
		}
		for _, fn := range sc.ing.preRun {
			run.preRun = append(run.preRun, run.bound[fn])
		}
		for _, fn := range sc.ing.postRun {
			run.postRun = append(run.postRun, run.bound[fn])
		}
	}
	run.main = run.bound[commandFn]
	return run, nil
}

func buildScaffolds(components []*Ingredient, logger *slog.Logger) ([]*scaffold, map[string]*scaffold, error) {
	scaffolds := make([]*scaffold, 0, len(components))
	byPath := map[string]*scaffold{}
	for _, component := range components {
		if _, dup := byPath[component.path]; dup {
			return nil, nil, fmt.Errorf("trials: duplicate component path %q", component.path)
		}
		sc := &scaffold{
			ing:           component,
			path:          component.path,
			configUpdates: store.NewMap(),
			presets:       store.NewMap(),
			fallback:      store.NewMap(),
			config:        store.NewMap(),
		}
		sc.logger = logger.With(slog.String("component", sc.label()))
		byPath[component.path] = sc
		scaffolds = append(scaffolds, sc)
	}
	// Deepest paths first, root last; stable within the same depth.
	sort.SliceStable(scaffolds, func(i, j int) bool {
		return pathDepth(scaffolds[i].path) > pathDepth(scaffolds[j].path)
	})
	return scaffolds, byPath, nil
}

func pathDepth(path string) int {
	if path == "" {
		return 0
	}
	return len(store.SplitPath(path))
}

// gatherCapturedArgs collects the absolute config path every captured
// parameter resolves from, used to tell a typo from a legitimate new entry.
func gatherCapturedArgs(scaffolds []*scaffold) map[string]struct{} {
	out := map[string]struct{}{}
	for _, sc := range scaffolds {
		for _, fn := range sc.ing.captured {
			for _, p := range fn.sig.Params() {
				if isSpecialParam(p.Name) {
					continue
				}
				out[store.JoinPaths(sc.path, fn.prefix, p.Name)] = struct{}{}
			}
		}
	}
	return out
}

// distributeUpdates assigns each override to the component owning the
// longest matching path prefix and rebuilds per-component update maps.
// Map-valued overrides are flattened to their leaves first, so an update
// addressed exactly at a component's mount path reaches that component
// instead of the parent owning the prefix.
func distributeUpdates(scaffolds []*scaffold, updates []Update, rules store.KeyRules) error {
	flat, err := flattenUpdates(updates)
	if err != nil {
		return err
	}
	buckets := map[*scaffold][]Update{}
	for _, update := range flat {
		target := longestPrefixScaffold(scaffolds, update.Path)
		if target == nil {
			return fmt.Errorf("trials: no component claims update %q", update.Path)
		}
		buckets[target] = append(buckets[target], Update{
			Path:  store.RelPath(target.path, update.Path),
			Value: update.Value,
		})
	}
	for _, sc := range scaffolds {
		sc.flatUpdates = buckets[sc]
		merged, err := store.FromFlat(buckets[sc], rules)
		if err != nil {
			return err
		}
		sc.configUpdates = merged
	}
	return nil
}

// flattenUpdates expands map-valued overrides into dotted leaf updates.
func flattenUpdates(updates []Update) ([]Update, error) {
	out := make([]Update, 0, len(updates))
	for _, update := range updates {
		value, err := store.Normalize(update.Value)
		if err != nil {
			return nil, fmt.Errorf("trials: update %q: %w", update.Path, err)
		}
		m, isMap := value.(*store.Map)
		if !isMap || m.Len() == 0 {
			out = append(out, Update{Path: update.Path, Value: store.Export(value)})
			continue
		}
		for _, entry := range m.Flatten() {
			out = append(out, Update{
				Path:  store.JoinPaths(update.Path, entry.Path),
				Value: store.Export(entry.Value),
			})
		}
	}
	return out, nil
}

func longestPrefixScaffold(scaffolds []*scaffold, path string) *scaffold {
	var best *scaffold
	bestLen := -1
	for _, sc := range scaffolds {
		if !store.IsPrefix(sc.path, path) {
			continue
		}
		if len(sc.path) > bestLen {
			best = sc
			bestLen = len(sc.path)
		}
	}
	return best
}

// applyNamedConfig evaluates one named config (or config file) against its
// owning component and returns the produced overrides in root coordinates.
func applyNamedConfig(cfg *resolveConfig, scaffolds []*scaffold, byPath map[string]*scaffold, name string) ([]Update, traceLayer, error) {
	var target *scaffold
	var source ConfigSource

	if isConfigFile(name) {
		target = byPath[""]
		source = FileConfig(name)
	} else {
		componentPath, localName := splitQualified(name)
		sc, ok := byPath[componentPath]
		if ok {
			source = sc.ing.namedConfigs[localName]
			target = sc
		}
		if source == nil {
			return nil, traceLayer{}, &NamedConfigNotFoundError{
				Name:      name,
				Available: availableNamedConfigs(scaffolds),
			}
		}
	}

	target.fallback = gatherFallbacks(target, scaffolds)
	env := &evalEnv{
		evaluator: cfg.evaluator,
		settings:  cfg.settings,
		logger:    target.logger,
		scopePath: target.path,
	}
	result, _, err := source.evaluate(env, target.configUpdates, target.presets, target.fallback)
	if err != nil {
		return nil, traceLayer{}, wrapScopeError(target.path, err)
	}
	store.RecursiveUpdate(target.presets, result)

	absolute := store.NewMap()
	produced := make([]Update, 0)
	for _, entry := range result.Flatten() {
		path := store.JoinPaths(target.path, entry.Path)
		produced = append(produced, Update{Path: path, Value: store.Export(entry.Value)})
		absolute.SetPath(path, cloneNormalized(entry.Value))
	}
	return produced, traceLayer{source: "preset:" + name, values: absolute}, nil
}

func availableNamedConfigs(scaffolds []*scaffold) []string {
	var out []string
	for _, sc := range scaffolds {
		for _, name := range sc.ing.namedOrder {
			out = append(out, store.JoinPaths(sc.path, name))
		}
	}
	sort.Strings(out)
	return out
}

// gatherFallbacks nests the resolved configurations of every deeper
// component under its relative path, giving the current component
// read-only visibility into its dependencies.
func gatherFallbacks(sc *scaffold, scaffolds []*scaffold) *store.Map {
	fallback := store.NewMap()
	for _, other := range scaffolds {
		if other == sc || !store.IsPrefix(sc.path, other.path) {
			continue
		}
		fallback.SetPath(store.RelPath(sc.path, other.path), other.config.Clone())
	}
	return fallback
}

// runConfigHooks lets component hooks adjust the evaluated config. Hook
// output merges in below explicit overrides, which are re-applied on top.
func runConfigHooks(sc *scaffold, command string) error {
	if len(sc.ing.configHooks) == 0 {
		return nil
	}
	sc.hookResults = store.NewMap()
	for _, hook := range sc.ing.configHooks {
		result, err := hook(store.NewView(sc.config), command, sc.logger)
		if err != nil {
			return wrapScopeError(sc.path, err)
		}
		if len(result) == 0 {
			continue
		}
		normalized, err := store.FromNested(result)
		if err != nil {
			return wrapScopeError(sc.path, err)
		}
		store.RecursiveUpdate(sc.config, normalized)
		store.RecursiveUpdate(sc.hookResults, normalized)
	}
	store.RecursiveUpdate(sc.config, sc.configUpdates)
	return nil
}

// buildConfigMods classifies this component's changes: overrides start as
// added, then each scope's records refine them (an override that matched a
// declared entry stops being an addition).
func (sc *scaffold) buildConfigMods() {
	mods := store.NewSummary()
	for _, entry := range sc.configUpdates.Flatten() {
		mods.AddAdded(entry.Path)
	}
	for _, summary := range sc.summaries {
		mods.UpdateFrom(summary, "")
	}
	mods.EnsureCoherence()
	sc.configMods = mods
}

// assignSeeds walks root-first. The root honours an explicit seed entry and
// otherwise draws a fresh one; every child derives its seed from its
// nearest resolved ancestor and its own path, so sibling order never
// shifts existing streams.
func assignSeeds(scaffolds []*scaffold) {
	for i := len(scaffolds) - 1; i >= 0; i-- {
		sc := scaffolds[i]
		if explicit, ok := seedFromConfig(sc.config); ok {
			sc.seed = explicit
			continue
		}
		if sc.path == "" {
			sc.seed = GenerateSeed()
			sc.config.Set("seed", sc.seed)
			if sc.configMods != nil {
				sc.configMods.AddAdded("seed")
			}
			continue
		}
		parent := nearestAncestor(scaffolds, sc.path)
		sc.seed = DeriveSeed(parent.seed, sc.path)
	}
	root := scaffolds[len(scaffolds)-1]
	if root.configMods != nil {
		root.configMods.Docs["seed"] = "the root seed of this run"
	}
}

func seedFromConfig(config *store.Map) (int64, bool) {
	value, ok := config.Get("seed")
	if !ok {
		return 0, false
	}
	switch tv := value.(type) {
	case int64:
		return tv, true
	case float64:
		if float64(int64(tv)) == tv {
			return int64(tv), true
		}
	}
	return 0, false
}

func nearestAncestor(scaffolds []*scaffold, path string) *scaffold {
	var best *scaffold
	bestLen := -1
	for _, sc := range scaffolds {
		if sc.path == path || !store.IsPrefix(sc.path, path) {
			continue
		}
		if len(sc.path) > bestLen {
			best = sc
			bestLen = len(sc.path)
		}
	}
	return best
}

// foldConfiguration assembles the global configuration: the root config
// first, then each component's config nested at its path. Deeper
// components are authoritative for their subtrees.
func foldConfiguration(scaffolds []*scaffold) *store.Map {
	global := store.NewMap()
	for i := len(scaffolds) - 1; i >= 0; i-- {
		sc := scaffolds[i]
		if sc.path == "" {
			store.RecursiveUpdate(global, sc.config)
			continue
		}
		global.SetPath(sc.path, sc.config.Clone())
	}
	return global
}

func aggregateMods(scaffolds []*scaffold) *store.Summary {
	mods := store.NewSummary()
	for i := len(scaffolds) - 1; i >= 0; i-- {
		sc := scaffolds[i]
		mods.UpdateAdd(sc.configMods, sc.path)
	}
	return mods
}

// reportSuspiciousChanges surfaces override paths nothing consumes and
// unexpected type changes. Unused additions are fatal by default since
// they almost always spell a typo.
func reportSuspiciousChanges(cfg *resolveConfig, emitter *audit.Emitter, mods *store.Summary, capturedArgs map[string]struct{}) error {
	ctx := context.Background()

	var unused []string
	for _, added := range mods.SortedAdded() {
		if added == "seed" {
			continue
		}
		if addedPathConsumed(added, capturedArgs) {
			continue
		}
		unused = append(unused, added)
	}
	if len(unused) > 0 {
		if cfg.settings.AddedKeys == PolicyFail && !cfg.force {
			return &ConfigAddedError{Paths: unused}
		}
		for _, path := range unused {
			cfg.logger.Warn("added config value is not used anywhere",
				slog.String("path", path))
			_ = emitter.Emit(ctx, audit.Event{Kind: audit.KindConfigAdded, Path: path})
		}
	}

	for _, path := range mods.SortedTypechanged() {
		change := mods.Typechanged[path]
		if isNumericWidening(change) {
			continue
		}
		cfg.logger.Warn("config entry changed type",
			slog.String("path", path),
			slog.String("old", string(change.Old)),
			slog.String("new", string(change.New)))
		_ = emitter.Emit(ctx, audit.Event{
			Kind:    audit.KindConfigTypechanged,
			Path:    path,
			OldKind: string(change.Old),
			NewKind: string(change.New),
		})
	}

	for path := range mods.IgnoredFallbacks {
		cfg.logger.Warn("config write was ignored, key belongs to a dependency",
			slog.String("path", path))
		_ = emitter.Emit(ctx, audit.Event{Kind: audit.KindFallbackIgnored, Path: path})
	}

	for _, path := range mods.SortedModified() {
		_ = emitter.Emit(ctx, audit.Event{Kind: audit.KindConfigModified, Path: path})
	}
	return nil
}

// addedPathConsumed reports whether an added path feeds any captured
// parameter: exact match, an ancestor dict parameter, or a child of it.
func addedPathConsumed(added string, capturedArgs map[string]struct{}) bool {
	if _, ok := capturedArgs[added]; ok {
		return true
	}
	for arg := range capturedArgs {
		if store.IsPrefix(arg, added) || store.IsPrefix(added, arg) {
			return true
		}
	}
	return false
}

// int and float trade places freely; flagging those changes would bury the
// real type errors in noise.
func isNumericWidening(change store.TypeChange) bool {
	intFloat := change.Old == store.KindInt && change.New == store.KindFloat
	floatInt := change.Old == store.KindFloat && change.New == store.KindInt
	return intFloat || floatInt
}

// bindCaptured attaches one declaration to the resolved run: the
// component's config view narrowed by the function's prefix, the component
// logger and seed.
func bindCaptured(run *Run, sc *scaffold, fn *Captured) *boundFunction {
	view := store.NewView(sc.config)
	path := sc.path
	if fn.prefix != "" {
		view = view.Sub(fn.prefix)
		path = store.JoinPaths(sc.path, fn.prefix)
	}
	return &boundFunction{
		decl:   fn,
		path:   path,
		config: view,
		logger: sc.logger,
		run:    run,
		seed:   sc.seed,
		legacy: run.settings.LegacyRNG,
	}
}

// buildTraceLayers assembles the provenance stack, strongest first:
// explicit overrides, hook adjustments, config blocks (latest first),
// named presets (latest first).
func buildTraceLayers(scaffolds []*scaffold, updates []Update, presetLayers []traceLayer, rules store.KeyRules) []traceLayer {
	var layers []traceLayer

	if len(updates) > 0 {
		if merged, err := store.FromFlat(updates, rules); err == nil {
			layers = append(layers, traceLayer{source: "updates", values: merged})
		}
	}

	for i := len(scaffolds) - 1; i >= 0; i-- {
		sc := scaffolds[i]
		if sc.hookResults == nil || sc.hookResults.Len() == 0 {
			continue
		}
		layers = append(layers, traceLayer{
			source: "hooks:" + sc.label(),
			values: atPath(sc.path, sc.hookResults),
		})
	}

	for i := len(scaffolds) - 1; i >= 0; i-- {
		sc := scaffolds[i]
		for j := len(sc.sourceLocals) - 1; j >= 0; j-- {
			layers = append(layers, traceLayer{
				source: fmt.Sprintf("config[%d]:%s", j, sc.label()),
				values: atPath(sc.path, sc.sourceLocals[j]),
			})
		}
	}

	for i := len(presetLayers) - 1; i >= 0; i-- {
		layers = append(layers, presetLayers[i])
	}
	return layers
}

func atPath(path string, values *store.Map) *store.Map {
	if path == "" {
		return values.Clone()
	}
	out := store.NewMap()
	out.SetPath(path, values.Clone())
	return out
}
