package blueprint

import (
	"os"
	"strings"
	"testing"
)

func TestSaveRoundTripPreservesComments(t *testing.T) {
	path := writeTempConfig(t, `# a header comment
- name: widget
  version: "1.0.0"  # keep this version pinned
  summary: a widget
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := cfg.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	out := string(data)
	if !strings.Contains(out, "# a header comment") {
		t.Fatalf("lost header comment:\n%s", out)
	}
	if !strings.Contains(out, "# keep this version pinned") {
		t.Fatalf("lost inline comment:\n%s", out)
	}
}

func TestSetVersionUpdatesExistingField(t *testing.T) {
	path := writeTempConfig(t, `
- name: widget
  version: "1.0.0"
  summary: a widget
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := cfg.SetVersion("widget", "2.0.0"); err != nil {
		t.Fatalf("SetVersion: %v", err)
	}
	if cfg.Blueprints[0].Version != "2.0.0" {
		t.Fatalf("Version = %q, want 2.0.0", cfg.Blueprints[0].Version)
	}
	if err := cfg.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !strings.Contains(string(data), `2.0.0`) {
		t.Fatalf("saved file missing new version:\n%s", string(data))
	}
	if strings.Contains(string(data), `1.0.0`) {
		t.Fatalf("saved file still has old version:\n%s", string(data))
	}
}

func TestSetVersionAppendsWhenAbsent(t *testing.T) {
	path := writeTempConfig(t, `
- name: widget
  matrix:
    architectures: ["amd64"]
    versions: ["1.0.0"]
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := cfg.SetVersion("widget", "1.5.0"); err != nil {
		t.Fatalf("SetVersion: %v", err)
	}
	if cfg.Blueprints[0].Version != "1.5.0" {
		t.Fatalf("Version = %q, want 1.5.0", cfg.Blueprints[0].Version)
	}
}

func TestSetVersionUnknownBlueprintFails(t *testing.T) {
	path := writeTempConfig(t, `
- name: widget
  version: "1.0.0"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := cfg.SetVersion("nonexistent", "2.0.0"); err == nil {
		t.Fatal("expected an error for an unknown blueprint name")
	}
}
