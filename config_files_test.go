package trials

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadConfigFileJSON(t *testing.T) {
	path := writeFile(t, "config.json", `{"lr": 0.1, "layers": [10, 20]}`)
	values, err := LoadConfigFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if values["lr"] != 0.1 {
		t.Fatalf("expected lr=0.1, got %v", values["lr"])
	}
}

func TestLoadConfigFileYAML(t *testing.T) {
	path := writeFile(t, "config.yaml", "lr: 0.1\nmodel:\n  depth: 3\n")
	values, err := LoadConfigFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	model, ok := values["model"].(map[string]any)
	if !ok {
		t.Fatalf("expected nested map, got %T", values["model"])
	}
	if model["depth"] != 3 {
		t.Fatalf("expected depth=3, got %v", model["depth"])
	}
}

func TestLoadConfigFileUnknownExtension(t *testing.T) {
	path := writeFile(t, "config.toml", "lr = 0.1")
	if _, err := LoadConfigFile(path); err == nil {
		t.Fatal("unsupported extensions must be rejected")
	}
}

func TestResolveWithConfigFileAsNamedConfig(t *testing.T) {
	path := writeFile(t, "override.yaml", "a: 77\n")
	run := mustResolve(t, newDemo(t), nil, []string{path})
	if v := run.ConfigView().Int("a", -1); v != 77 {
		t.Fatalf("config file values should apply as presets, got %d", v)
	}
	if v := run.ConfigView().Int("b", -1); v != 231 {
		t.Fatalf("expressions recompute over file values, got %d", v)
	}
}

func TestFileConfigSource(t *testing.T) {
	path := writeFile(t, "block.json", `{"batch_size": 64}`)
	exp := New("filed")
	exp.AddConfig(FileConfig(path))
	sig, _ := NewSignature("main", Arg("batch_size"))
	exp.Main(MustCaptured(sig, func(args *Args) (any, error) {
		return args.Int("batch_size", -1), nil
	}))

	run := mustResolve(t, exp, nil, nil)
	result, err := run.Execute()
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if result != int64(64) {
		t.Fatalf("expected 64, got %v", result)
	}
}
