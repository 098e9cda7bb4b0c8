package blueprint

import (
	"path/filepath"
	"testing"

	"github.com/debforge/debforge/lockfile"
)

func TestMigrateFlatLegacySHA256(t *testing.T) {
	path := writeTempConfig(t, `
- name: widget
  version: "1.0.0"
  fetch:
    url: https://example.com/widget-{{version}}.tar.gz
    sha256: deadbeef
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	lf, err := lockfile.Load(filepath.Join(t.TempDir(), "ops2deb.lock.yml"))
	if err != nil {
		t.Fatalf("lockfile.Load: %v", err)
	}

	res, err := Migrate(cfg, lf)
	if err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	if len(res.BlueprintsChanged) != 1 || res.BlueprintsChanged[0] != "widget" {
		t.Fatalf("BlueprintsChanged = %v", res.BlueprintsChanged)
	}

	bp := cfg.Blueprints[0]
	if bp.Fetch.LegacySHA256 != "" {
		t.Fatalf("LegacySHA256 not cleared: %q", bp.Fetch.LegacySHA256)
	}

	entry, ok := lf.Get("https://example.com/widget-1.0.0.tar.gz")
	if !ok {
		t.Fatal("expected a lockfile entry for the rendered URL")
	}
	if entry.SHA256 != "deadbeef" {
		t.Fatalf("SHA256 = %q, want deadbeef", entry.SHA256)
	}
}

func TestMigratePerArchitectureLegacySHA256(t *testing.T) {
	path := writeTempConfig(t, `
- name: widget
  version: "1.0.0"
  fetch:
    url: https://example.com/widget-{{version}}-{{target}}.tar.gz
    sha256:
      amd64: aaa
      arm64: bbb
    targets:
      amd64: x86_64
      arm64: aarch64
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	lf, err := lockfile.Load(filepath.Join(t.TempDir(), "ops2deb.lock.yml"))
	if err != nil {
		t.Fatalf("lockfile.Load: %v", err)
	}

	res, err := Migrate(cfg, lf)
	if err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	if len(res.LockEntriesAdded) != 2 {
		t.Fatalf("LockEntriesAdded = %v, want 2 entries", res.LockEntriesAdded)
	}

	bp := cfg.Blueprints[0]
	if len(bp.Fetch.LegacySHA256PerArch) != 0 {
		t.Fatalf("LegacySHA256PerArch not cleared: %+v", bp.Fetch.LegacySHA256PerArch)
	}
	if len(bp.Matrix.Architectures) != 2 {
		t.Fatalf("Matrix.Architectures not seeded: %v", bp.Matrix.Architectures)
	}

	amd64Entry, ok := lf.Get("https://example.com/widget-1.0.0-x86_64.tar.gz")
	if !ok || amd64Entry.SHA256 != "aaa" {
		t.Fatalf("amd64 entry = %+v, ok=%v", amd64Entry, ok)
	}
	arm64Entry, ok := lf.Get("https://example.com/widget-1.0.0-aarch64.tar.gz")
	if !ok || arm64Entry.SHA256 != "bbb" {
		t.Fatalf("arm64 entry = %+v, ok=%v", arm64Entry, ok)
	}
}

func TestMigrateNoopWithoutLegacyFields(t *testing.T) {
	path := writeTempConfig(t, `
- name: widget
  version: "1.0.0"
  fetch:
    url: https://example.com/widget.tar.gz
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	lf, err := lockfile.Load(filepath.Join(t.TempDir(), "ops2deb.lock.yml"))
	if err != nil {
		t.Fatalf("lockfile.Load: %v", err)
	}

	res, err := Migrate(cfg, lf)
	if err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	if len(res.BlueprintsChanged) != 0 || len(res.LockEntriesAdded) != 0 {
		t.Fatalf("expected no changes, got %+v", res)
	}
}
