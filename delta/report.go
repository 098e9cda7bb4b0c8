package delta

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// jsonResult is the wire shape for Result.JSON, with json tags matching
// the Debian-repository-slug vocabulary (name/architecture/version).
type jsonResult struct {
	Added   []jsonEntry `json:"added"`
	Removed []jsonEntry `json:"removed"`
	Updated []jsonUpdate `json:"updated"`
}

type jsonEntry struct {
	Name         string `json:"name"`
	Architecture string `json:"architecture"`
	Version      string `json:"version"`
}

type jsonUpdate struct {
	Name         string `json:"name"`
	Architecture string `json:"architecture"`
	OldVersion   string `json:"old_version"`
	NewVersion   string `json:"new_version"`
}

// JSON renders the result as a machine-readable, CI-friendly mapping.
func (r Result) JSON() (string, error) {
	out := jsonResult{
		Added:   make([]jsonEntry, 0, len(r.Added)),
		Removed: make([]jsonEntry, 0, len(r.Removed)),
		Updated: make([]jsonUpdate, 0, len(r.Updated)),
	}
	for _, e := range r.Added {
		out.Added = append(out.Added, jsonEntry{Name: e.Name, Architecture: e.Architecture, Version: e.Version})
	}
	for _, e := range r.Removed {
		out.Removed = append(out.Removed, jsonEntry{Name: e.Name, Architecture: e.Architecture, Version: e.Version})
	}
	for _, u := range r.Updated {
		out.Updated = append(out.Updated, jsonUpdate{
			Name: u.Name, Architecture: u.Architecture,
			OldVersion: u.OldVersion, NewVersion: u.NewVersion,
		})
	}
	b, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshalling delta result: %w", err)
	}
	return string(b), nil
}

// Text renders a stable, sorted, human-readable summary, one line per
// changed key, grouped added/removed/updated.
func (r Result) Text() string {
	var b strings.Builder
	for _, e := range r.Added {
		fmt.Fprintf(&b, "+ %s\n", e)
	}
	for _, e := range r.Removed {
		fmt.Fprintf(&b, "- %s\n", e)
	}
	for _, u := range r.Updated {
		fmt.Fprintf(&b, "~ %s\n", u)
	}
	return b.String()
}

// Format renders the result in the named output format, as accepted by
// the `delta OLD NEW --format` flag.
func (r Result) Format(format string) (string, error) {
	switch format {
	case "", "text":
		return r.Text(), nil
	case "json":
		return r.JSON()
	default:
		return "", fmt.Errorf("unsupported delta format %q: want text or json", format)
	}
}

// SortedKeys returns every key touched by the result (added, removed, or
// updated), sorted, useful for callers that want a single iteration
// order across all three categories.
func (r Result) SortedKeys() []Key {
	seen := make(map[Key]bool)
	var keys []Key
	add := func(k Key) {
		if !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
	}
	for _, e := range r.Added {
		add(e.Key)
	}
	for _, e := range r.Removed {
		add(e.Key)
	}
	for _, u := range r.Updated {
		add(u.Key)
	}
	sort.Slice(keys, func(i, j int) bool { return lessKey(keys[i], keys[j]) })
	return keys
}
