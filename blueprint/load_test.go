package blueprint

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "ops2deb.yml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestLoadSequenceConfig(t *testing.T) {
	path := writeTempConfig(t, `
- name: widget
  version: "1.0.0"
  summary: a widget
  fetch: https://example.com/widget.tar.gz
- name: gadget
  version: "2.0.0"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.Blueprints) != 2 {
		t.Fatalf("got %d blueprints, want 2", len(cfg.Blueprints))
	}
	if cfg.Blueprints[0].Fetch == nil || cfg.Blueprints[0].Fetch.URL != "https://example.com/widget.tar.gz" {
		t.Fatalf("unexpected fetch: %+v", cfg.Blueprints[0].Fetch)
	}
	if cfg.LockfilePath != defaultLockfileName {
		t.Fatalf("LockfilePath = %q, want default", cfg.LockfilePath)
	}
}

func TestLoadMappingConfigSingleBlueprint(t *testing.T) {
	path := writeTempConfig(t, `
name: widget
version: "1.0.0"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.Blueprints) != 1 || cfg.Blueprints[0].Name != "widget" {
		t.Fatalf("unexpected blueprints: %+v", cfg.Blueprints)
	}
}

func TestLoadRejectsUnknownField(t *testing.T) {
	path := writeTempConfig(t, `
- name: widget
  version: "1.0.0"
  bogus_field: 1
`)
	_, err := Load(path)
	if err == nil {
		t.Fatal("expected a SchemaError for an unknown field")
	}
}

func TestLoadRejectsDuplicateName(t *testing.T) {
	path := writeTempConfig(t, `
- name: widget
  version: "1.0.0"
- name: widget
  version: "2.0.0"
`)
	_, err := Load(path)
	if err == nil {
		t.Fatal("expected a SchemaError for a duplicate blueprint name")
	}
}

func TestLoadLockfileDirective(t *testing.T) {
	path := writeTempConfig(t, `# lockfile=custom.lock.yml
- name: widget
  version: "1.0.0"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := filepath.Join(filepath.Dir(path), "custom.lock.yml")
	if cfg.LockfilePath != want {
		t.Fatalf("LockfilePath = %q, want %q", cfg.LockfilePath, want)
	}
	if len(cfg.leadingComments) != 1 {
		t.Fatalf("leadingComments = %v, want 1 line", cfg.leadingComments)
	}
}

func TestLoadRendersEnvInRevisionBeforeValidation(t *testing.T) {
	t.Setenv("OPS2DEB_TEST_REVISION", "3")
	path := writeTempConfig(t, `
- name: widget
  version: "1.0.0"
  revision: '{{env("OPS2DEB_TEST_REVISION")}}'
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Blueprints[0].Revision != 3 {
		t.Fatalf("Revision = %d, want 3", cfg.Blueprints[0].Revision)
	}
}

func TestLoadMatrixVersionsAndTopLevelVersionConflict(t *testing.T) {
	path := writeTempConfig(t, `
- name: widget
  version: "1.0.0"
  matrix:
    versions: ["1.0.0", "1.1.0"]
`)
	_, err := Load(path)
	if err == nil {
		t.Fatal("expected a SchemaError for matrix.versions + version conflict")
	}
}

func TestLoadFetchTargetsMustCoverMatrixArchitectures(t *testing.T) {
	path := writeTempConfig(t, `
- name: widget
  version: "1.0.0"
  fetch:
    url: https://example.com/{{target}}.tar.gz
    targets:
      amd64: x86_64
  matrix:
    architectures: ["amd64", "arm64"]
`)
	_, err := Load(path)
	if err == nil {
		t.Fatal("expected a SchemaError for missing fetch.targets entry")
	}
}

func TestExpandFromConfig(t *testing.T) {
	path := writeTempConfig(t, `
- name: widget
  matrix:
    versions: ["1.0.0", "1.1.0"]
    architectures: ["amd64", "arm64"]
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	rendered, err := cfg.Expand()
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	if len(rendered) != 4 {
		t.Fatalf("got %d rendered blueprints, want 4", len(rendered))
	}
}
