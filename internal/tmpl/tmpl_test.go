package tmpl

import (
	"os"
	"testing"
)

func TestRenderIdentifier(t *testing.T) {
	r := New(map[string]string{"version": "1.2.3", "goarch": "amd64"})
	got, err := r.Render("fetch", "https://e.test/{{version}}/{{goarch}}.tgz")
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	want := "https://e.test/1.2.3/amd64.tgz"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestRenderUndefinedFails(t *testing.T) {
	r := New(nil)
	if _, err := r.Render("f", "{{missing}}"); err == nil {
		t.Fatal("expected error for undefined variable")
	}
}

func TestRenderNoOpWithoutBraces(t *testing.T) {
	r := New(nil)
	got, err := r.Render("f", "plain text")
	if err != nil || got != "plain text" {
		t.Errorf("expected passthrough, got %q err=%v", got, err)
	}
}

func TestRenderEnvWithDefault(t *testing.T) {
	os.Unsetenv("DEBFORGE_TEST_VAR")
	r := New(nil)
	got, err := r.Render("f", `{{ env("DEBFORGE_TEST_VAR", "fallback") }}`)
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if got != "fallback" {
		t.Errorf("got %q, want fallback", got)
	}
}

func TestRenderEnvSet(t *testing.T) {
	os.Setenv("DEBFORGE_TEST_VAR", "actual")
	defer os.Unsetenv("DEBFORGE_TEST_VAR")
	r := New(nil)
	got, err := r.Render("f", `{{env("DEBFORGE_TEST_VAR")}}`)
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if got != "actual" {
		t.Errorf("got %q, want actual", got)
	}
}

func TestRenderEnvMissingNoDefaultFails(t *testing.T) {
	os.Unsetenv("DEBFORGE_TEST_VAR_MISSING")
	r := New(nil)
	if _, err := r.Render("f", `{{env("DEBFORGE_TEST_VAR_MISSING")}}`); err == nil {
		t.Fatal("expected error for missing env without default")
	}
}

func TestRenderIdempotent(t *testing.T) {
	r := New(map[string]string{"version": "1.0.0"})
	once, err := r.Render("f", "v={{version}}")
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	twice, err := r.Render("f", once)
	if err != nil {
		t.Fatalf("second Render failed: %v", err)
	}
	if once != twice {
		t.Errorf("not idempotent: %q != %q", once, twice)
	}
}

func TestWithOverridesScope(t *testing.T) {
	r := New(map[string]string{"version": "1.0.0"})
	sub := r.With(map[string]string{"src": "/staging"})
	got, err := sub.Render("f", "{{version}}:{{src}}")
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if got != "1.0.0:/staging" {
		t.Errorf("got %q", got)
	}
}
