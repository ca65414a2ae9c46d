package trials

import (
	"context"
	"errors"
	"log/slog"
	"reflect"
	"testing"

	"github.com/goliatone/go-trials/pkg/audit"
	"github.com/goliatone/go-trials/pkg/runstore"
	"github.com/goliatone/go-trials/store"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func newDemo(t *testing.T) *Experiment {
	t.Helper()
	exp := New("demo")
	exp.AddConfig(Config(
		Let("a", 10).Doc("alpha value"),
		Compute("b", "3 * a"),
		Let("c", "foo"),
	))
	exp.AddNamedConfig("variant1", Config(
		Let("a", 100),
		Let("c", "bar"),
	))

	sig, err := NewSignature("main", Arg("a"), Arg("b"), Arg("c"))
	if err != nil {
		t.Fatalf("signature: %v", err)
	}
	exp.Main(MustCaptured(sig, func(args *Args) (any, error) {
		return []any{
			args.Int("a", -1),
			args.Int("b", -1),
			args.String("c", ""),
		}, nil
	}))
	return exp
}

func mustResolve(t *testing.T, exp *Experiment, updates []Update, named []string, opts ...ResolveOption) *Run {
	t.Helper()
	opts = append(opts, WithLogger(discardLogger()))
	run, err := Resolve(exp, "main", updates, named, opts...)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	return run
}

func TestResolveDefaults(t *testing.T) {
	run := mustResolve(t, newDemo(t), nil, nil)
	view := run.ConfigView()
	if v := view.Int("a", -1); v != 10 {
		t.Fatalf("expected a=10, got %d", v)
	}
	if v := view.Int("b", -1); v != 30 {
		t.Fatalf("expected b=30, got %d", v)
	}
	if v := view.String("c", ""); v != "foo" {
		t.Fatalf("expected c=foo, got %q", v)
	}
}

func TestResolveNamedConfigLayers(t *testing.T) {
	run := mustResolve(t, newDemo(t), nil, []string{"variant1"})
	view := run.ConfigView()
	if v := view.Int("a", -1); v != 100 {
		t.Fatalf("expected a=100, got %d", v)
	}
	if v := view.Int("b", -1); v != 300 {
		t.Fatalf("expressions must recompute over preset values, got %d", v)
	}
	if v := view.String("c", ""); v != "bar" {
		t.Fatalf("expected c=bar, got %q", v)
	}
}

func TestResolveExplicitUpdateBeatsNamedConfig(t *testing.T) {
	run := mustResolve(t, newDemo(t),
		[]Update{{Path: "a", Value: 23}},
		[]string{"variant1"})
	view := run.ConfigView()
	if v := view.Int("a", -1); v != 23 {
		t.Fatalf("explicit updates win over presets, got %d", v)
	}
	if v := view.Int("b", -1); v != 69 {
		t.Fatalf("expected b=69, got %d", v)
	}
	if v := view.String("c", ""); v != "bar" {
		t.Fatalf("preset survives where not overridden, got %q", v)
	}
}

func TestResolveNamedConfigNotFound(t *testing.T) {
	_, err := Resolve(newDemo(t), "main", nil, []string{"nope"}, WithLogger(discardLogger()))
	var notFound *NamedConfigNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected NamedConfigNotFoundError, got %v", err)
	}
	if len(notFound.Available) != 1 || notFound.Available[0] != "variant1" {
		t.Fatalf("expected available [variant1], got %v", notFound.Available)
	}
}

func TestResolveUnusedAddedFails(t *testing.T) {
	_, err := Resolve(newDemo(t), "main",
		[]Update{{Path: "typo_key", Value: 1}}, nil,
		WithLogger(discardLogger()))
	var added *ConfigAddedError
	if !errors.As(err, &added) {
		t.Fatalf("expected ConfigAddedError, got %v", err)
	}
	if len(added.Paths) != 1 || added.Paths[0] != "typo_key" {
		t.Fatalf("expected [typo_key], got %v", added.Paths)
	}
}

func TestResolveUnusedAddedForced(t *testing.T) {
	run := mustResolve(t, newDemo(t),
		[]Update{{Path: "typo_key", Value: 1}}, nil,
		WithForce())
	if v := run.ConfigView().Int("typo_key", -1); v != 1 {
		t.Fatalf("forced additions land in the config, got %d", v)
	}
}

func TestResolveAddedConsumedByCapturedArg(t *testing.T) {
	// typo_key matches no parameter, but a declared parameter name does.
	exp := New("consumer")
	sig, err := NewSignature("main", ArgDefault("threshold", 0.5))
	if err != nil {
		t.Fatalf("signature: %v", err)
	}
	exp.Main(MustCaptured(sig, func(args *Args) (any, error) {
		return args.Float("threshold", 0), nil
	}))

	run := mustResolve(t, exp, []Update{{Path: "threshold", Value: 0.9}}, nil)
	result, err := run.Execute()
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if result != 0.9 {
		t.Fatalf("override should reach the parameter, got %v", result)
	}
}

func TestResolveIsDeterministicWithFixedSeed(t *testing.T) {
	first := mustResolve(t, newDemo(t), []Update{{Path: "seed", Value: 42}}, nil)
	second := mustResolve(t, newDemo(t), []Update{{Path: "seed", Value: 42}}, nil)
	if !reflect.DeepEqual(first.ExportConfig(), second.ExportConfig()) {
		t.Fatal("identical inputs must resolve to identical configurations")
	}
	if first.Seed() != 42 || second.Seed() != 42 {
		t.Fatalf("explicit seed must be honoured, got %d/%d", first.Seed(), second.Seed())
	}
}

func TestResolveGeneratesRootSeed(t *testing.T) {
	run := mustResolve(t, newDemo(t), nil, nil)
	if run.Seed() < SeedMin || run.Seed() > SeedMax {
		t.Fatalf("generated seed out of range: %d", run.Seed())
	}
	if v := run.ConfigView().Int("seed", -1); v != run.Seed() {
		t.Fatalf("root seed must be published in the config, got %d", v)
	}
}

func TestResolveComponentSeedsOrderIndependent(t *testing.T) {
	build := func(order []string) *Experiment {
		ings := make([]*Ingredient, len(order))
		for i, path := range order {
			ings[i] = NewIngredient(path)
		}
		exp := New("seeds", ings...)
		sig, _ := NewSignature("main")
		exp.Main(MustCaptured(sig, func(args *Args) (any, error) { return nil, nil }))
		return exp
	}

	first := mustResolve(t, build([]string{"model", "dataset"}),
		[]Update{{Path: "seed", Value: 7}}, nil)
	second := mustResolve(t, build([]string{"dataset", "model"}),
		[]Update{{Path: "seed", Value: 7}}, nil)

	for _, path := range []string{"model", "dataset"} {
		a, ok := first.ComponentSeed(path)
		if !ok {
			t.Fatalf("missing seed for %s", path)
		}
		b, _ := second.ComponentSeed(path)
		if a != b {
			t.Fatalf("seed for %s depends on sibling order: %d vs %d", path, a, b)
		}
		if a < SeedMin || a > SeedMax {
			t.Fatalf("derived seed out of range: %d", a)
		}
	}
}

func TestResolveIngredientFallback(t *testing.T) {
	dataset := NewIngredient("dataset").
		AddConfig(Config(Let("batch_size", 32)))

	exp := New("pipeline", dataset)
	exp.AddConfig(Config(Compute("steps", "3200 / dataset.batch_size")))
	sig, _ := NewSignature("main", Arg("steps"))
	exp.Main(MustCaptured(sig, func(args *Args) (any, error) {
		return args.Int("steps", -1), nil
	}))

	run := mustResolve(t, exp, nil, nil)
	if v := run.ConfigView().Int("steps", -1); v != 100 {
		t.Fatalf("parent must see dependency config, got %d", v)
	}
	if v := run.ConfigView().Int("dataset.batch_size", -1); v != 32 {
		t.Fatalf("dependency config nests under its path, got %d", v)
	}
}

func TestResolveUpdateDistributesToIngredient(t *testing.T) {
	dataset := NewIngredient("dataset").
		AddConfig(Config(Let("batch_size", 32)))

	exp := New("pipeline", dataset)
	exp.AddConfig(Config(Compute("steps", "3200 / dataset.batch_size")))
	sig, _ := NewSignature("main", Arg("steps"))
	exp.Main(MustCaptured(sig, func(args *Args) (any, error) {
		return args.Int("steps", -1), nil
	}))

	run := mustResolve(t, exp, []Update{{Path: "dataset.batch_size", Value: 64}}, nil)
	if v := run.ConfigView().Int("dataset.batch_size", -1); v != 64 {
		t.Fatalf("update must reach the owning component, got %d", v)
	}
	if v := run.ConfigView().Int("steps", -1); v != 50 {
		t.Fatalf("parent expressions recompute over the override, got %d", v)
	}
	if run.Mods().ChangeFor("dataset.batch_size") == store.ChangeUnchanged {
		t.Fatal("the override should be recorded as a change")
	}
}

func TestResolveIngredientNamedConfig(t *testing.T) {
	dataset := NewIngredient("dataset").
		AddConfig(Config(Let("batch_size", 32))).
		AddNamedConfig("large", Config(Let("batch_size", 256)))

	exp := New("pipeline", dataset)
	sig, _ := NewSignature("main")
	exp.Main(MustCaptured(sig, func(args *Args) (any, error) { return nil, nil }))

	run := mustResolve(t, exp, nil, []string{"dataset.large"})
	if v := run.ConfigView().Int("dataset.batch_size", -1); v != 256 {
		t.Fatalf("qualified named config must apply, got %d", v)
	}
}

func TestResolveCircularDependency(t *testing.T) {
	a := NewIngredient("a")
	b := NewIngredient("b", a)
	a.ingredients = append(a.ingredients, b)

	exp := New("cyclic", a)
	sig, _ := NewSignature("main")
	exp.Main(MustCaptured(sig, func(args *Args) (any, error) { return nil, nil }))

	_, err := Resolve(exp, "main", nil, nil, WithLogger(discardLogger()))
	var circular *CircularDependencyError
	if !errors.As(err, &circular) {
		t.Fatalf("expected CircularDependencyError, got %v", err)
	}
}

func TestResolveConfigHookAdjusts(t *testing.T) {
	exp := New("hooked")
	exp.AddConfig(Config(Let("mode", "train")))
	exp.AddConfigHook(func(config *store.View, command string, logger *slog.Logger) (map[string]any, error) {
		if config.String("mode", "") != "train" {
			t.Fatal("hook must see the evaluated config")
		}
		return map[string]any{"checkpoints": command == "main"}, nil
	})
	sig, _ := NewSignature("main")
	exp.Main(MustCaptured(sig, func(args *Args) (any, error) { return nil, nil }))

	run := mustResolve(t, exp, nil, nil)
	if !run.ConfigView().Bool("checkpoints", false) {
		t.Fatal("hook output should merge into the configuration")
	}
}

func TestResolveConfigHookBelowUpdates(t *testing.T) {
	exp := New("hooked")
	exp.AddConfig(Config(Let("mode", "train")))
	exp.AddConfigHook(func(config *store.View, command string, logger *slog.Logger) (map[string]any, error) {
		return map[string]any{"mode": "eval"}, nil
	})
	sig, _ := NewSignature("main")
	exp.Main(MustCaptured(sig, func(args *Args) (any, error) { return nil, nil }))

	run := mustResolve(t, exp, []Update{{Path: "mode", Value: "debug"}}, nil)
	if v := run.ConfigView().String("mode", ""); v != "debug" {
		t.Fatalf("explicit overrides stay on top of hook output, got %q", v)
	}
}

func TestRunExecuteRecordsAndReturns(t *testing.T) {
	records := runstore.New()
	run := mustResolve(t, newDemo(t), nil, nil, WithRunStore(records))

	result, err := run.Execute()
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	want := []any{int64(10), int64(30), "foo"}
	if !reflect.DeepEqual(result, want) {
		t.Fatalf("expected %v, got %v", want, result)
	}
	if run.Status() != runstore.StatusCompleted {
		t.Fatalf("expected completed, got %v", run.Status())
	}
	if records.Len() != 1 {
		t.Fatalf("expected one persisted record, got %d", records.Len())
	}
	record, ok := records.Get(run.ID())
	if !ok {
		t.Fatal("record should be retrievable by run id")
	}
	if record.Status != runstore.StatusCompleted || record.Config == nil {
		t.Fatalf("record incomplete: %+v", record)
	}
}

func TestRunExecuteFailureRecorded(t *testing.T) {
	records := runstore.New()
	exp := New("failing")
	sig, _ := NewSignature("main")
	exp.Main(MustCaptured(sig, func(args *Args) (any, error) {
		return nil, errors.New("boom")
	}))

	run := mustResolve(t, exp, nil, nil, WithRunStore(records))
	if _, err := run.Execute(); err == nil {
		t.Fatal("expected execution error")
	}
	if run.Status() != runstore.StatusFailed {
		t.Fatalf("expected failed status, got %v", run.Status())
	}
	record, _ := records.Get(run.ID())
	if record.Status != runstore.StatusFailed {
		t.Fatalf("failure should be persisted, got %v", record.Status)
	}
}

func TestRunPreAndPostHooks(t *testing.T) {
	var order []string
	exp := New("hooks")
	mkHook := func(name string) *Captured {
		sig, _ := NewSignature(name)
		return MustCaptured(sig, func(args *Args) (any, error) {
			order = append(order, name)
			return nil, nil
		})
	}
	exp.PreRunHook(mkHook("pre"))
	exp.PostRunHook(mkHook("post"))
	sig, _ := NewSignature("main")
	exp.Main(MustCaptured(sig, func(args *Args) (any, error) {
		order = append(order, "main")
		return nil, nil
	}))

	run := mustResolve(t, exp, nil, nil)
	if _, err := run.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}
	want := []string{"pre", "main", "post"}
	if !reflect.DeepEqual(order, want) {
		t.Fatalf("expected hook order %v, got %v", want, order)
	}
}

func TestRunTraceReportsProvenance(t *testing.T) {
	run := mustResolve(t, newDemo(t),
		[]Update{{Path: "a", Value: 23}},
		[]string{"variant1"})

	trace := run.Trace("a")
	if trace.Value != int64(23) {
		t.Fatalf("expected winning value 23, got %v", trace.Value)
	}
	if len(trace.Layers) == 0 {
		t.Fatal("expected provenance layers")
	}
	if trace.Layers[0].Source != "updates" || !trace.Layers[0].Found {
		t.Fatalf("strongest layer should be the explicit update, got %+v", trace.Layers[0])
	}
	var sawPreset bool
	for _, layer := range trace.Layers {
		if layer.Source == "preset:variant1" && layer.Found {
			sawPreset = true
		}
	}
	if !sawPreset {
		t.Fatal("the named config layer should be reported")
	}
}

func TestRunDescribe(t *testing.T) {
	run := mustResolve(t, newDemo(t), []Update{{Path: "a", Value: 23}}, nil)

	var described *EntryDescriptor
	for _, entry := range run.Describe() {
		if entry.Path == "a" {
			described = &entry
			break
		}
	}
	if described == nil {
		t.Fatal("expected a descriptor for entry a")
	}
	if described.Value != int64(23) {
		t.Fatalf("expected value 23, got %v", described.Value)
	}
	if described.Change != store.ChangeModified {
		t.Fatalf("expected modified, got %v", described.Change)
	}
	if described.Doc != "alpha value" {
		t.Fatalf("expected doc to surface, got %q", described.Doc)
	}
}

func TestRunOverrideConfigEntry(t *testing.T) {
	run := mustResolve(t, newDemo(t), nil, nil)
	if err := run.OverrideConfigEntry("c", "patched"); err != nil {
		t.Fatalf("override: %v", err)
	}
	if v := run.ConfigView().String("c", ""); v != "patched" {
		t.Fatalf("expected patched, got %q", v)
	}
	if run.Mods().ChangeFor("c") != store.ChangeModified {
		t.Fatal("the sanctioned mutation must be recorded")
	}
}

func TestResolveMapUpdateAtIngredientPath(t *testing.T) {
	dataset := NewIngredient("dataset").
		AddConfig(Config(Let("batch_size", 32)))
	exp := New("pipeline", dataset)
	exp.AddConfig(Config(Compute("steps", "3200 / dataset.batch_size")))
	sig, _ := NewSignature("main", Arg("steps"))
	exp.Main(MustCaptured(sig, func(args *Args) (any, error) {
		return args.Int("steps", -1), nil
	}))

	run := mustResolve(t, exp,
		[]Update{{Path: "dataset", Value: map[string]any{"batch_size": 64}}}, nil)
	if v := run.ConfigView().Int("dataset.batch_size", -1); v != 64 {
		t.Fatalf("a map update at the component path must reach the component, got %d", v)
	}
	if v := run.ConfigView().Int("steps", -1); v != 50 {
		t.Fatalf("parent expressions recompute over the override, got %d", v)
	}
	if run.Mods().ChangeFor("dataset.batch_size") != store.ChangeModified {
		t.Fatal("the override should be recorded against the component entry")
	}
}

func TestRunOverrideConfigEntryReadOnlyGate(t *testing.T) {
	var events []audit.Event
	hook := audit.HookFunc(func(_ context.Context, event audit.Event) error {
		events = append(events, event)
		return nil
	})

	run := mustResolve(t, newDemo(t), nil, nil, WithAuditHooks(hook))
	if err := run.OverrideConfigEntry("c", "patched"); err != nil {
		t.Fatalf("override: %v", err)
	}
	var modified int
	for _, event := range events {
		if event.Kind == audit.KindConfigModified {
			modified++
		}
	}
	if modified != 1 {
		t.Fatalf("read-only override should notify observers once, got %d", modified)
	}

	events = nil
	settings := DefaultSettings()
	settings.ReadOnlyConfig = false
	relaxed := mustResolve(t, newDemo(t), nil, nil,
		WithAuditHooks(hook), WithSettings(settings))
	if err := relaxed.OverrideConfigEntry("c", "patched"); err != nil {
		t.Fatalf("override: %v", err)
	}
	for _, event := range events {
		if event.Kind == audit.KindConfigModified {
			t.Fatal("a relaxed override should not alarm observers")
		}
	}
	if v := relaxed.ConfigView().String("c", ""); v != "patched" {
		t.Fatalf("the override must still apply, got %q", v)
	}
	if relaxed.Mods().ChangeFor("c") != store.ChangeModified {
		t.Fatal("the override must still be recorded")
	}
}

func TestResolveGeneratedSeedRecorded(t *testing.T) {
	run := mustResolve(t, newDemo(t), nil, nil)
	if run.Mods().ChangeFor("seed") != store.ChangeAdded {
		t.Fatalf("a generated root seed should be recorded, got %v", run.Mods().ChangeFor("seed"))
	}
	var described bool
	for _, entry := range run.Describe() {
		if entry.Path == "seed" && entry.Change == store.ChangeAdded {
			described = true
		}
	}
	if !described {
		t.Fatal("descriptors should report the generated seed as added")
	}
}
