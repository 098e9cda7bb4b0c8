// Package delta compares two rendered configurations, keyed by
// (name, architecture), and reports what was added, removed, or had its
// version changed.
package delta

import (
	"fmt"
	"sort"

	"github.com/debforge/debforge/blueprint"
)

// Key identifies a package slot across two configurations, independent
// of version: the same (name, architecture) pair in A and B is the same
// slot even if its version moved.
type Key struct {
	Name         string
	Architecture string
}

func (k Key) String() string { return fmt.Sprintf("%s (%s)", k.Name, k.Architecture) }

// Update records a version transition for a key present in both
// configurations.
type Update struct {
	Key
	OldVersion string
	NewVersion string
}

func (u Update) String() string {
	return fmt.Sprintf("%s: %s -> %s", u.Key, u.OldVersion, u.NewVersion)
}

// Entry records a key present in only one configuration, alongside the
// version it carries there.
type Entry struct {
	Key
	Version string
}

func (e Entry) String() string { return fmt.Sprintf("%s @ %s", e.Key, e.Version) }

// Result is the outcome of comparing configuration A (before) against
// configuration B (after).
type Result struct {
	Added   []Entry
	Removed []Entry
	Updated []Update
}

// IsEmpty reports whether the two configurations were identical over
// (name, architecture, version).
func (r Result) IsEmpty() bool {
	return len(r.Added) == 0 && len(r.Removed) == 0 && len(r.Updated) == 0
}

// Compute diffs the rendered sets of two configurations over
// (name, architecture), per §4.8: added (in B not A), removed (in A not
// B), updated (in both, version differs).
func Compute(before, after []*blueprint.Rendered) Result {
	beforeByKey := indexByKey(before)
	afterByKey := indexByKey(after)

	var result Result
	for key, version := range beforeByKey {
		newVersion, ok := afterByKey[key]
		switch {
		case !ok:
			result.Removed = append(result.Removed, Entry{Key: key, Version: version})
		case newVersion != version:
			result.Updated = append(result.Updated, Update{Key: key, OldVersion: version, NewVersion: newVersion})
		}
	}
	for key, version := range afterByKey {
		if _, ok := beforeByKey[key]; !ok {
			result.Added = append(result.Added, Entry{Key: key, Version: version})
		}
	}

	sortEntries(result.Added)
	sortEntries(result.Removed)
	sort.Slice(result.Updated, func(i, j int) bool { return lessKey(result.Updated[i].Key, result.Updated[j].Key) })
	return result
}

// CompareConfigs loads nothing itself: it expands two already loaded
// configurations (OLD and NEW) and diffs their rendered sets, mirroring the
// `delta OLD NEW` subcommand.
func CompareConfigs(before, after *blueprint.Config) (Result, error) {
	beforeRendered, err := before.Expand()
	if err != nil {
		return Result{}, err
	}
	afterRendered, err := after.Expand()
	if err != nil {
		return Result{}, err
	}
	return Compute(beforeRendered, afterRendered), nil
}

func indexByKey(rendered []*blueprint.Rendered) map[Key]string {
	out := make(map[Key]string, len(rendered))
	for _, r := range rendered {
		out[Key{Name: r.Name, Architecture: r.Architecture}] = r.Version
	}
	return out
}

func sortEntries(entries []Entry) {
	sort.Slice(entries, func(i, j int) bool { return lessKey(entries[i].Key, entries[j].Key) })
}

func lessKey(a, b Key) bool {
	if a.Name != b.Name {
		return a.Name < b.Name
	}
	return a.Architecture < b.Architecture
}
