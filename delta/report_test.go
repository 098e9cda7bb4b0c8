package delta

import (
	"encoding/json"
	"strings"
	"testing"
)

func sampleResult() Result {
	return Result{
		Added:   []Entry{{Key: Key{Name: "gizmo", Architecture: "amd64"}, Version: "3.0.0"}},
		Removed: []Entry{{Key: Key{Name: "gadget", Architecture: "amd64"}, Version: "2.0.0"}},
		Updated: []Update{{Key: Key{Name: "widget", Architecture: "amd64"}, OldVersion: "1.0.0", NewVersion: "1.1.0"}},
	}
}

func TestResultTextIsStableAndReadable(t *testing.T) {
	text := sampleResult().Text()
	for _, want := range []string{"+ gizmo (amd64) @ 3.0.0", "- gadget (amd64) @ 2.0.0", "~ widget (amd64): 1.0.0 -> 1.1.0"} {
		if !strings.Contains(text, want) {
			t.Fatalf("Text() = %q, missing %q", text, want)
		}
	}
}

func TestResultJSONRoundTrips(t *testing.T) {
	out, err := sampleResult().JSON()
	if err != nil {
		t.Fatalf("JSON: %v", err)
	}
	var decoded jsonResult
	if err := json.Unmarshal([]byte(out), &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if len(decoded.Added) != 1 || decoded.Added[0].Name != "gizmo" {
		t.Fatalf("decoded.Added = %+v", decoded.Added)
	}
	if len(decoded.Updated) != 1 || decoded.Updated[0].OldVersion != "1.0.0" || decoded.Updated[0].NewVersion != "1.1.0" {
		t.Fatalf("decoded.Updated = %+v", decoded.Updated)
	}
}

func TestFormatRejectsUnknownFormat(t *testing.T) {
	if _, err := sampleResult().Format("yaml"); err == nil {
		t.Fatal("Format(\"yaml\") = nil error, want an error")
	}
}

func TestFormatDefaultsToText(t *testing.T) {
	out, err := sampleResult().Format("")
	if err != nil {
		t.Fatalf("Format(\"\"): %v", err)
	}
	if out != sampleResult().Text() {
		t.Fatalf("Format(\"\") = %q, want Text()", out)
	}
}
