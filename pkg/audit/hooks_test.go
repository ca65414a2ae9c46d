package audit

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestHooksNotifyFansOut(t *testing.T) {
	var got []Event
	hooks := Hooks{
		HookFunc(func(ctx context.Context, event Event) error {
			got = append(got, event)
			return nil
		}),
		HookFunc(func(ctx context.Context, event Event) error {
			got = append(got, event)
			return nil
		}),
	}

	err := hooks.Notify(context.Background(), Event{
		Kind: "  config.modified  ",
		Path: "lr",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected both hooks notified, got %d", len(got))
	}
	if got[0].Kind != KindConfigModified {
		t.Fatalf("kind should be trimmed, got %q", got[0].Kind)
	}
	if got[0].OccurredAt.IsZero() {
		t.Fatal("timestamp should be defaulted")
	}
}

func TestHooksNotifySkipsEmptyKind(t *testing.T) {
	called := false
	hooks := Hooks{HookFunc(func(ctx context.Context, event Event) error {
		called = true
		return nil
	})}
	if err := hooks.Notify(context.Background(), Event{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if called {
		t.Fatal("events without a kind are dropped")
	}
}

func TestHooksNotifyJoinsErrors(t *testing.T) {
	first := errors.New("first")
	second := errors.New("second")
	hooks := Hooks{
		HookFunc(func(ctx context.Context, event Event) error { return first }),
		HookFunc(func(ctx context.Context, event Event) error { return second }),
	}
	err := hooks.Notify(context.Background(), Event{Kind: KindRunStarted})
	if !errors.Is(err, first) || !errors.Is(err, second) {
		t.Fatalf("expected both errors joined, got %v", err)
	}
}

func TestNormalizeEventClonesMetadata(t *testing.T) {
	metadata := map[string]any{"k": "v"}
	normalized := NormalizeEvent(Event{Kind: KindRunCompleted, Metadata: metadata})
	normalized.Metadata["k"] = "mutated"
	if metadata["k"] != "v" {
		t.Fatal("normalization must clone metadata")
	}
}

func TestEmitterDefaultsAndGate(t *testing.T) {
	var got Event
	hooks := Hooks{HookFunc(func(ctx context.Context, event Event) error {
		got = event
		return nil
	})}

	disabled := NewEmitter(hooks, Config{Enabled: false})
	if disabled.Enabled() {
		t.Fatal("emitter should respect the enabled flag")
	}

	emitter := NewEmitter(hooks, Config{Enabled: true, Experiment: "demo"})
	err := emitter.Emit(context.Background(), Event{
		Kind:       KindRunStarted,
		OccurredAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Experiment != "demo" {
		t.Fatalf("default experiment should be applied, got %q", got.Experiment)
	}
}
