package hydrate

import (
	"strings"
	"testing"
)

type datasetConfig struct {
	Path      string `json:"path"`
	BatchSize int    `json:"batch_size"`
}

func TestDecodeBasic(t *testing.T) {
	decoder := NewDecoder[datasetConfig]()
	got, err := decoder.Decode(Context{Path: "dataset"}, map[string]any{
		"path":       "data/train.csv",
		"batch_size": 32,
	})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Path != "data/train.csv" || got.BatchSize != 32 {
		t.Fatalf("unexpected result: %+v", got)
	}
}

func TestDecodeNilPayload(t *testing.T) {
	decoder := NewDecoder[datasetConfig]()
	if _, err := decoder.Decode(Context{Path: "dataset"}, nil); err == nil {
		t.Fatal("nil payload must be rejected")
	}
}

func TestDecodeHooks(t *testing.T) {
	decoder := NewDecoder[datasetConfig](
		WithPreHook[datasetConfig](func(ctx Context, payload map[string]any) (map[string]any, error) {
			payload["path"] = strings.TrimSpace(payload["path"].(string))
			return payload, nil
		}),
		WithPostHook[datasetConfig](func(ctx Context, cfg *datasetConfig) error {
			if cfg.BatchSize == 0 {
				cfg.BatchSize = 1
			}
			return nil
		}),
	)
	got, err := decoder.Decode(Context{Path: "dataset"}, map[string]any{
		"path": "  data/x.csv  ",
	})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Path != "data/x.csv" {
		t.Fatalf("pre-hook should trim, got %q", got.Path)
	}
	if got.BatchSize != 1 {
		t.Fatalf("post-hook should default, got %d", got.BatchSize)
	}
}

func TestDecodeDisallowUnknownFields(t *testing.T) {
	decoder := NewDecoder[datasetConfig](WithDisallowUnknownFields[datasetConfig]())
	_, err := decoder.Decode(Context{Path: "dataset"}, map[string]any{
		"path":    "x",
		"unknown": true,
	})
	if err == nil {
		t.Fatal("unknown fields should be rejected when configured")
	}
}

func TestDecodeInto(t *testing.T) {
	var got datasetConfig
	err := DecodeInto(Context{Path: "dataset"}, map[string]any{
		"path":       "x",
		"batch_size": 8,
	}, &got)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.BatchSize != 8 {
		t.Fatalf("expected 8, got %d", got.BatchSize)
	}
}
