package generate

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/debforge/debforge/blueprint"
	"github.com/debforge/debforge/fetch"
	"github.com/debforge/debforge/lockfile"
)

func newRendered(t *testing.T, b blueprint.Blueprint) *blueprint.Rendered {
	t.Helper()
	all, err := blueprint.Expand(b)
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("Expand returned %d blueprints, want 1", len(all))
	}
	return all[0]
}

func newLockfile(t *testing.T) *lockfile.Lockfile {
	t.Helper()
	lf, err := lockfile.Load(filepath.Join(t.TempDir(), "ops2deb.lock.yml"))
	if err != nil {
		t.Fatalf("lockfile.Load: %v", err)
	}
	return lf
}

func TestGenerateWithoutFetchOrInstall(t *testing.T) {
	r := newRendered(t, blueprint.Blueprint{
		Name:    "widget",
		Version: "1.0.0",
		Summary: "a widget",
		Script:  []string{"mkdir -p {{src}}/usr/bin", "echo hi > {{src}}/usr/bin/widget"},
	})

	cache := fetch.New(t.TempDir(), http.DefaultClient)
	lf := newLockfile(t)
	outputDir := t.TempDir()

	tree, err := Generate(context.Background(), r, outputDir, cache, lf)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(tree.SrcDir, "usr", "bin", "widget"))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if strings.TrimSpace(string(data)) != "hi" {
		t.Fatalf("widget content = %q", data)
	}

	control, err := os.ReadFile(filepath.Join(tree.DebianDir, "control"))
	if err != nil {
		t.Fatalf("ReadFile control: %v", err)
	}
	if !strings.Contains(string(control), "Package: widget") {
		t.Fatalf("control missing Package stanza: %s", control)
	}
	if !strings.Contains(string(control), "Description: a widget") {
		t.Fatalf("control missing Description: %s", control)
	}
	if !strings.Contains(string(control), "Section: devops") {
		t.Fatalf("control missing Section: devops: %s", control)
	}

	changelog, err := os.ReadFile(filepath.Join(tree.DebianDir, "changelog"))
	if err != nil {
		t.Fatalf("ReadFile changelog: %v", err)
	}
	if !strings.Contains(string(changelog), "widget (1.0.0-1~ops2deb)") {
		t.Fatalf("changelog missing version header: %s", changelog)
	}
}

func TestGenerateIsIdempotent(t *testing.T) {
	r := newRendered(t, blueprint.Blueprint{
		Name:    "widget",
		Version: "1.0.0",
		Script:  []string{"mkdir -p {{src}}/usr/bin"},
	})
	cache := fetch.New(t.TempDir(), http.DefaultClient)
	lf := newLockfile(t)
	outputDir := t.TempDir()

	first, err := Generate(context.Background(), r, outputDir, cache, lf)
	if err != nil {
		t.Fatalf("first Generate: %v", err)
	}
	firstChangelog, err := os.ReadFile(filepath.Join(first.DebianDir, "changelog"))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}

	second, err := Generate(context.Background(), r, outputDir, cache, lf)
	if err != nil {
		t.Fatalf("second Generate: %v", err)
	}
	secondChangelog, err := os.ReadFile(filepath.Join(second.DebianDir, "changelog"))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}

	if string(firstChangelog) != string(secondChangelog) {
		t.Fatalf("changelog not idempotent:\nfirst:  %q\nsecond: %q", firstChangelog, secondChangelog)
	}
}

func TestGenerateFetchesAndExtractsArchive(t *testing.T) {
	archivePath := buildTestTarGz(t, map[string]string{
		"bin/widget": "#!/bin/sh\necho hi\n",
	})
	data, err := os.ReadFile(archivePath)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Write(data)
	}))
	defer srv.Close()

	r := newRendered(t, blueprint.Blueprint{
		Name:    "widget",
		Version: "2.0.0",
		Fetch:   &blueprint.Fetch{URL: srv.URL + "/widget.tar.gz"},
	})

	cache := fetch.New(t.TempDir(), http.DefaultClient)
	lf := newLockfile(t)
	lf.Put(srv.URL+"/widget.tar.gz", sha256Hex(data))
	outputDir := t.TempDir()

	tree, err := Generate(context.Background(), r, outputDir, cache, lf)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	got, err := os.ReadFile(filepath.Join(tree.SrcDir, "bin", "widget"))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(got) != "#!/bin/sh\necho hi\n" {
		t.Fatalf("bin/widget content = %q", got)
	}
}

func TestApplyInstallEntryCopyAndHeredoc(t *testing.T) {
	r := newRendered(t, blueprint.Blueprint{
		Name:    "widget",
		Version: "1.0.0",
		Install: []blueprint.InstallEntry{
			{Path: "raw/bin", Content: "payload"},
			{Copy: "raw/bin:usr/bin/widget"},
			{Path: "etc/widget.conf", Content: "debug=true"},
		},
	})

	cache := fetch.New(t.TempDir(), http.DefaultClient)
	lf := newLockfile(t)
	outputDir := t.TempDir()

	tree, err := Generate(context.Background(), r, outputDir, cache, lf)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	copied, err := os.ReadFile(filepath.Join(tree.SrcDir, "usr", "bin", "widget"))
	if err != nil {
		t.Fatalf("ReadFile copied install entry: %v", err)
	}
	if strings.TrimSpace(string(copied)) != "payload" {
		t.Fatalf("copied content = %q", copied)
	}

	conf, err := os.ReadFile(filepath.Join(tree.SrcDir, "etc", "widget.conf"))
	if err != nil {
		t.Fatalf("ReadFile heredoc install entry: %v", err)
	}
	if string(conf) != "debug=true\n" {
		t.Fatalf("heredoc content = %q", conf)
	}
}

func TestRunScriptsFailureAbortsGenerate(t *testing.T) {
	r := newRendered(t, blueprint.Blueprint{
		Name:    "widget",
		Version: "1.0.0",
		Script:  []string{"exit 1"},
	})
	cache := fetch.New(t.TempDir(), http.DefaultClient)
	lf := newLockfile(t)
	outputDir := t.TempDir()

	if _, err := Generate(context.Background(), r, outputDir, cache, lf); err == nil {
		t.Fatal("expected a ScriptError from a failing script")
	}
}

func TestExistingTreeFindsAPriorGenerate(t *testing.T) {
	r := newRendered(t, blueprint.Blueprint{
		Name:    "widget",
		Version: "1.0.0",
		Script:  []string{"echo hi > {{src}}/hi.txt"},
	})
	cache := fetch.New(t.TempDir(), http.DefaultClient)
	lf := newLockfile(t)
	outputDir := t.TempDir()

	want, err := Generate(context.Background(), r, outputDir, cache, lf)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	got, err := ExistingTree(r, outputDir)
	if err != nil {
		t.Fatalf("ExistingTree: %v", err)
	}
	if got.DebianDir != want.DebianDir || got.SrcDir != want.SrcDir {
		t.Fatalf("ExistingTree = %+v, want %+v", got, want)
	}
}

func TestExistingTreeFailsWithoutAPriorGenerate(t *testing.T) {
	r := newRendered(t, blueprint.Blueprint{Name: "widget", Version: "1.0.0"})
	if _, err := ExistingTree(r, t.TempDir()); err == nil {
		t.Fatal("expected an error when no tree has been generated yet")
	}
}
