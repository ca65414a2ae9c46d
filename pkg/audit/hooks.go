// Package audit fans out resolution and run lifecycle events to observer
// hooks: change records surfaced during config resolution, ignored
// fallback writes, and run start/stop notifications.
package audit

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Event kinds emitted during resolution and execution.
const (
	KindConfigAdded       = "config.added"
	KindConfigModified    = "config.modified"
	KindConfigTypechanged = "config.typechanged"
	KindFallbackIgnored   = "config.fallback_ignored"
	KindRunStarted        = "run.started"
	KindRunCompleted      = "run.completed"
	KindRunFailed         = "run.failed"
)

// Event describes one occurrence that can be fanned out to hooks.
// IDs are stringly-typed to avoid coupling call sites to UUID types.
type Event struct {
	Kind       string
	RunID      string
	Experiment string
	Component  string
	Path       string
	OldKind    string
	NewKind    string
	Metadata   map[string]any
	OccurredAt time.Time
}

// Hook receives normalized events.
type Hook interface {
	Notify(ctx context.Context, event Event) error
}

// HookFunc allows plain functions to satisfy Hook.
type HookFunc func(ctx context.Context, event Event) error

// Notify dispatches to the underlying function.
func (fn HookFunc) Notify(ctx context.Context, event Event) error {
	if fn == nil {
		return nil
	}
	return fn(ctx, event)
}

// Hooks fans out events to zero or more hooks.
type Hooks []Hook

// Enabled reports whether there are any hooks to notify.
func (h Hooks) Enabled() bool {
	return len(h) > 0
}

// Notify forwards the event to all hooks, returning a joined error if any
// fail. It normalizes the event and short-circuits when the kind is missing.
func (h Hooks) Notify(ctx context.Context, event Event) error {
	if len(h) == 0 {
		return nil
	}

	normalized := NormalizeEvent(event)
	if normalized.Kind == "" {
		return nil
	}

	if ctx == nil {
		ctx = context.Background()
	}

	var errs []error
	for _, hook := range h {
		if hook == nil {
			continue
		}
		if err := hook.Notify(ctx, normalized); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return errors.Join(errs...)
}

// NormalizeEvent trims whitespace, clones metadata, and ensures a timestamp
// is present.
func NormalizeEvent(event Event) Event {
	normalized := event
	normalized.Kind = strings.TrimSpace(event.Kind)
	normalized.RunID = strings.TrimSpace(event.RunID)
	normalized.Experiment = strings.TrimSpace(event.Experiment)
	normalized.Component = strings.TrimSpace(event.Component)
	normalized.Path = strings.TrimSpace(event.Path)
	normalized.OldKind = strings.TrimSpace(event.OldKind)
	normalized.NewKind = strings.TrimSpace(event.NewKind)
	normalized.Metadata = cloneMap(event.Metadata)
	if normalized.OccurredAt.IsZero() {
		normalized.OccurredAt = time.Now()
	}
	return normalized
}

func cloneMap(src map[string]any) map[string]any {
	if len(src) == 0 {
		return nil
	}
	dst := make(map[string]any, len(src))
	for key, value := range src {
		dst[key] = value
	}
	return dst
}
