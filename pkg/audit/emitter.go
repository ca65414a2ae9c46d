package audit

import (
	"context"
	"strings"
)

// Config controls emission defaults.
type Config struct {
	Enabled    bool
	Experiment string
}

// Emitter fans out events to hooks while applying defaults.
type Emitter struct {
	hooks      Hooks
	enabled    bool
	experiment string
}

// NewEmitter constructs an emitter from hooks and configuration.
func NewEmitter(hooks Hooks, cfg Config) *Emitter {
	normalizedHooks := cloneHooks(hooks)
	return &Emitter{
		hooks:      normalizedHooks,
		enabled:    cfg.Enabled && len(normalizedHooks) > 0,
		experiment: strings.TrimSpace(cfg.Experiment),
	}
}

// Enabled reports whether emissions should be attempted.
func (e *Emitter) Enabled() bool {
	return e != nil && e.enabled && len(e.hooks) > 0
}

// Emit forwards the event to all hooks, applying the default experiment
// name when missing.
func (e *Emitter) Emit(ctx context.Context, event Event) error {
	if !e.Enabled() {
		return nil
	}
	if strings.TrimSpace(event.Experiment) == "" && e.experiment != "" {
		event.Experiment = e.experiment
	}
	return e.hooks.Notify(ctx, event)
}

func cloneHooks(hooks Hooks) Hooks {
	if len(hooks) == 0 {
		return nil
	}
	normalized := make([]Hook, 0, len(hooks))
	for _, hook := range hooks {
		if hook == nil {
			continue
		}
		normalized = append(normalized, hook)
	}
	return Hooks(normalized)
}
