package trials

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/goliatone/go-trials/pkg/audit"
	"github.com/goliatone/go-trials/pkg/runstore"
	"github.com/goliatone/go-trials/store"
)

// Run is one resolved configuration bound to an executable command. The
// configuration is frozen; captured functions read it through views and
// every sanctioned mutation goes through OverrideConfigEntry.
type Run struct {
	id         uuid.UUID
	experiment string
	command    string
	config     *store.Map
	view       *store.View
	mods       *store.Summary
	seeds      map[string]int64
	rootSeed   int64
	logger     *slog.Logger
	settings   Settings
	main       *boundFunction
	bound      map[*Captured]*boundFunction
	preRun     []*boundFunction
	postRun    []*boundFunction
	emitter    *audit.Emitter
	records    runstore.Store
	trace      []traceLayer

	status    runstore.Status
	result    any
	startedAt time.Time
	stoppedAt time.Time
}

// ID returns the run identifier.
func (r *Run) ID() uuid.UUID {
	return r.id
}

// Experiment returns the experiment name the run was resolved from.
func (r *Run) Experiment() string {
	return r.experiment
}

// Command returns the command the run executes.
func (r *Run) Command() string {
	return r.command
}

// Seed returns the root seed.
func (r *Run) Seed() int64 {
	return r.rootSeed
}

// ComponentSeed returns the derived seed of the component at path.
func (r *Run) ComponentSeed(path string) (int64, bool) {
	seed, ok := r.seeds[path]
	return seed, ok
}

// ConfigView returns a read-only view over the resolved configuration.
func (r *Run) ConfigView() *store.View {
	return r.view
}

// Mods returns the change summary accumulated during resolution.
func (r *Run) Mods() *store.Summary {
	return r.mods
}

// Status returns the run's lifecycle state; empty before Execute.
func (r *Run) Status() runstore.Status {
	return r.status
}

// Result returns the command's return value after Execute.
func (r *Run) Result() any {
	return r.result
}

// ExportConfig returns a detached plain-map snapshot of the resolved
// configuration, the shape observers serialize.
func (r *Run) ExportConfig() map[string]any {
	return r.config.Nested()
}

// Call invokes a captured function bound to this run with positional
// arguments.
func (r *Run) Call(fn *Captured, pos ...any) (any, error) {
	bound, ok := r.bound[fn]
	if !ok {
		return nil, fmt.Errorf("trials: function %s is not bound to this run", fn.Signature().Name())
	}
	return bound.call(pos, nil)
}

// CallKw invokes a captured function with positional and named arguments.
func (r *Run) CallKw(fn *Captured, pos []any, kw map[string]any) (any, error) {
	bound, ok := r.bound[fn]
	if !ok {
		return nil, fmt.Errorf("trials: function %s is not bound to this run", fn.Signature().Name())
	}
	return bound.call(pos, kw)
}

// Execute runs pre-run hooks, the command, and post-run hooks, records the
// outcome and returns the command's result.
func (r *Run) Execute(pos ...any) (any, error) {
	if r.main == nil {
		return nil, fmt.Errorf("trials: run has no command bound")
	}
	ctx := context.Background()
	r.startedAt = time.Now()
	r.status = runstore.StatusRunning
	r.logger.Info("run started",
		slog.String("run", r.id.String()),
		slog.String("experiment", r.experiment),
		slog.String("command", r.command),
		slog.Int64("seed", r.rootSeed))
	_ = r.emitter.Emit(ctx, audit.Event{
		Kind:  audit.KindRunStarted,
		RunID: r.id.String(),
	})

	finish := func(status runstore.Status, kind string, runErr error) {
		r.stoppedAt = time.Now()
		r.status = status
		event := audit.Event{Kind: kind, RunID: r.id.String()}
		if runErr != nil {
			event.Metadata = map[string]any{"error": runErr.Error()}
		}
		_ = r.emitter.Emit(ctx, event)
		r.saveRecord()
	}

	for _, hook := range r.preRun {
		if _, err := hook.call(nil, nil); err != nil {
			finish(runstore.StatusFailed, audit.KindRunFailed, err)
			return nil, err
		}
	}

	result, err := r.main.call(pos, nil)
	if err != nil {
		r.logger.Error("run failed",
			slog.String("run", r.id.String()),
			slog.String("error", err.Error()))
		finish(runstore.StatusFailed, audit.KindRunFailed, err)
		return nil, err
	}
	r.result = result

	for _, hook := range r.postRun {
		if _, err := hook.call(nil, nil); err != nil {
			finish(runstore.StatusFailed, audit.KindRunFailed, err)
			return result, err
		}
	}

	finish(runstore.StatusCompleted, audit.KindRunCompleted, nil)
	r.logger.Info("run completed",
		slog.String("run", r.id.String()),
		slog.Duration("elapsed", r.stoppedAt.Sub(r.startedAt)))
	return result, nil
}

// OverrideConfigEntry is the sanctioned post-resolution mutation: it
// replaces one entry and records the change. With ReadOnlyConfig set the
// write is warned about and reported to audit observers; unset, it is a
// routine adjustment logged at debug level only.
func (r *Run) OverrideConfigEntry(path string, value any) error {
	normalized, err := store.Normalize(value)
	if err != nil {
		return err
	}
	old, existed := r.config.GetPath(path)
	r.config.SetPath(path, normalized)

	if !existed {
		r.mods.AddAdded(path)
	} else if store.TypeChangedValue(old, normalized) {
		r.mods.AddTypechanged(path, store.TypeChange{
			Old: store.KindOf(old),
			New: store.KindOf(normalized),
		})
	} else if !store.Equal(old, normalized) {
		r.mods.AddModified(path)
	}
	r.mods.EnsureCoherence()

	if r.settings.ReadOnlyConfig {
		r.logger.Warn("config entry overridden after resolution",
			slog.String("run", r.id.String()),
			slog.String("path", path))
		_ = r.emitter.Emit(context.Background(), audit.Event{
			Kind:  audit.KindConfigModified,
			RunID: r.id.String(),
			Path:  path,
		})
	} else {
		r.logger.Debug("config entry overridden after resolution",
			slog.String("run", r.id.String()),
			slog.String("path", path))
	}
	return nil
}

func (r *Run) saveRecord() {
	if r.records == nil {
		return
	}
	record := runstore.Record{
		ID:          r.id,
		Experiment:  r.experiment,
		Command:     r.command,
		Status:      r.status,
		Seed:        r.rootSeed,
		Config:      r.ExportConfig(),
		Added:       r.mods.SortedAdded(),
		Modified:    r.mods.SortedModified(),
		Typechanged: r.mods.SortedTypechanged(),
		Result:      r.result,
		StartedAt:   r.startedAt,
		StoppedAt:   r.stoppedAt,
	}
	if err := r.records.Save(record); err != nil {
		r.logger.Error("failed to persist run record",
			slog.String("run", r.id.String()),
			slog.String("error", err.Error()))
	}
}
