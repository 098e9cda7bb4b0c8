// Package strategy implements the pluggable version-discovery strategies
// used by the updater: how to decide whether a newer upstream version
// exists for a blueprint, before any hash is recomputed.
package strategy

import (
	"context"

	"github.com/debforge/debforge/blueprint"
)

// Strategy discovers the latest version available for a blueprint, without
// touching the lockfile or fetch cache.
type Strategy interface {
	// Name identifies the strategy, matching Blueprint.UpdateStrategy.
	Name() string
	// Latest returns the newest version upstream offers for b, or ("", nil)
	// if b is already at the newest version (or no newer version could be
	// determined).
	Latest(ctx context.Context, b blueprint.Blueprint) (string, error)
}

// Registry holds the strategies the updater picks from by name, plus a
// fallback. The updater uses an explicit Blueprint.UpdateStrategy name
// first, then "github-releases" for a github.com fetch URL, then Fallback().
type Registry struct {
	byName map[string]Strategy
	fallback Strategy
}

// NewRegistry builds a Registry from strategies, keyed by their Name(),
// with fallback as the strategy Fallback() returns.
func NewRegistry(strategies []Strategy, fallback Strategy) *Registry {
	r := &Registry{byName: make(map[string]Strategy, len(strategies)), fallback: fallback}
	for _, s := range strategies {
		r.byName[s.Name()] = s
	}
	return r
}

func (r *Registry) Lookup(name string) (Strategy, bool) {
	s, ok := r.byName[name]
	return s, ok
}

func (r *Registry) Fallback() Strategy {
	return r.fallback
}
