// Package update implements the version-bump workflow: for each blueprint,
// ask a strategy whether a newer upstream version exists, confirm and hash
// it through the fetch cache, and rewrite the configuration and lockfile.
package update

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/debforge/debforge/blueprint"
	"github.com/debforge/debforge/fetch"
	"github.com/debforge/debforge/internal/errs"
	"github.com/debforge/debforge/internal/logx"
	"github.com/debforge/debforge/internal/tmpl"
	"github.com/debforge/debforge/lockfile"
	"github.com/debforge/debforge/update/strategy"
)

// Status classifies the outcome of checking one blueprint for updates.
type Status string

const (
	StatusUpToDate Status = "up-to-date"
	StatusUpdated  Status = "updated"
	StatusFailed   Status = "failed"
)

// Outcome reports what happened to a single blueprint.
type Outcome struct {
	Name       string
	OldVersion string
	NewVersion string
	Status     Status
	Err        error
}

// Options controls a Run.
type Options struct {
	DryRun bool
}

// Run checks every blueprint in cfg for a newer upstream version using the
// strategy resolved per blueprint (explicit Blueprint.UpdateStrategy name,
// else github-releases for a github.com fetch URL, else the registry
// fallback; a blueprint naming an unregistered strategy is not checked),
// recomputes hashes for any blueprint that moved, and rewrites cfg/lf
// unless DryRun is set.
func Run(ctx context.Context, cfg *blueprint.Config, lf *lockfile.Lockfile, reg *strategy.Registry, cache *fetch.Cache, opts Options) ([]Outcome, error) {
	logx.Title("Looking for new releases...")

	var outcomes []Outcome
	rehashQueue := make(map[string][]*blueprint.Rendered)
	original := make(map[string]blueprint.Blueprint, len(cfg.Blueprints))
	knownURLs := make(map[string]bool)

	for _, bp := range cfg.Blueprints {
		original[bp.Name] = bp
		s := resolveStrategy(reg, bp)
		if s == nil {
			collectURLs(bp, knownURLs)
			continue
		}

		latest, err := s.Latest(ctx, bp)
		if err != nil {
			outcomes = append(outcomes, Outcome{Name: bp.Name, OldVersion: bp.Version, Status: StatusFailed, Err: err})
			collectURLs(bp, knownURLs)
			continue
		}
		if latest == "" {
			outcomes = append(outcomes, Outcome{Name: bp.Name, OldVersion: bp.Version, NewVersion: bp.Version, Status: StatusUpToDate})
			collectURLs(bp, knownURLs)
			continue
		}

		updated := bp
		updated.Version = latest
		rendered, err := blueprint.Expand(updated)
		if err != nil {
			outcomes = append(outcomes, Outcome{Name: bp.Name, OldVersion: bp.Version, NewVersion: latest, Status: StatusFailed, Err: err})
			collectURLs(bp, knownURLs)
			continue
		}
		rehashQueue[bp.Name] = rendered

		outcomes = append(outcomes, Outcome{Name: bp.Name, OldVersion: bp.Version, NewVersion: latest, Status: StatusUpdated})
	}

	if opts.DryRun {
		return sortedOutcomes(outcomes), nil
	}

	// Each blueprint's rehash is isolated: a NetworkError or hash mismatch
	// on one candidate demotes only that blueprint's outcome to failed and
	// falls back to its previous URLs, so the run still commits every
	// other blueprint's update.
	for i := range outcomes {
		o := &outcomes[i]
		if o.Status != StatusUpdated {
			continue
		}
		if err := rehashAll(ctx, cache, lf, rehashQueue[o.Name], knownURLs); err != nil {
			collectURLs(original[o.Name], knownURLs)
			o.Status = StatusFailed
			o.Err = err
			continue
		}
	}

	for i := range outcomes {
		o := &outcomes[i]
		if o.Status != StatusUpdated {
			continue
		}
		if err := cfg.SetVersion(o.Name, o.NewVersion); err != nil {
			o.Status = StatusFailed
			o.Err = err
			continue
		}
	}

	lf.PruneExcept(knownURLs)

	if err := cfg.Save(); err != nil {
		return sortedOutcomes(outcomes), err
	}
	if err := lf.Save(); err != nil {
		return sortedOutcomes(outcomes), err
	}

	return sortedOutcomes(outcomes), firstFailure(outcomes)
}

// firstFailure returns the first per-blueprint error still on the
// outcomes, if any, so the process exit code reflects that the run had a
// failure even though every unaffected blueprint's update was committed.
func firstFailure(outcomes []Outcome) error {
	for _, o := range outcomes {
		if o.Status == StatusFailed {
			return o.Err
		}
	}
	return nil
}

func resolveStrategy(reg *strategy.Registry, bp blueprint.Blueprint) strategy.Strategy {
	if bp.UpdateStrategy != "" {
		if s, ok := reg.Lookup(bp.UpdateStrategy); ok {
			return s
		}
		return nil
	}
	if bp.Fetch != nil && strings.Contains(bp.Fetch.URL, "github.com/") {
		if s, ok := reg.Lookup("github-releases"); ok {
			return s
		}
	}
	return reg.Fallback()
}

// rehashAll fetches and hashes every rendered URL of one blueprint's
// candidate version, recording each successfully hashed URL into known so
// it survives lockfile pruning. It stops and returns the first error for
// this blueprint; the caller isolates that failure to this blueprint's
// outcome rather than aborting the whole run.
func rehashAll(ctx context.Context, cache *fetch.Cache, lf *lockfile.Lockfile, rendered []*blueprint.Rendered, known map[string]bool) error {
	for _, r := range rendered {
		engine := tmpl.New(map[string]string{"version": r.Version, "goarch": r.GoArch})
		url, err := blueprint.RenderURL(r, engine)
		if err != nil {
			return err
		}
		if url == "" {
			continue
		}
		if _, err := cache.Fetch(ctx, url, lf, fetch.ModeLocking); err != nil {
			return errs.Wrapf(errs.NetworkError, r.Name, "hashing updated release: %w", err)
		}
		known[url] = true
	}
	return nil
}

func collectURLs(bp blueprint.Blueprint, known map[string]bool) {
	all, err := blueprint.Expand(bp)
	if err != nil {
		return
	}
	for _, r := range all {
		engine := tmpl.New(map[string]string{"version": r.Version, "goarch": r.GoArch})
		url, err := blueprint.RenderURL(r, engine)
		if err == nil && url != "" {
			known[url] = true
		}
	}
}

func sortedOutcomes(outcomes []Outcome) []Outcome {
	sort.Slice(outcomes, func(i, j int) bool { return outcomes[i].Name < outcomes[j].Name })
	return outcomes
}

// String renders an outcome as a single human-readable report line.
func (o Outcome) String() string {
	switch o.Status {
	case StatusUpdated:
		return fmt.Sprintf("%s: %s -> %s", o.Name, o.OldVersion, o.NewVersion)
	case StatusFailed:
		return fmt.Sprintf("%s: failed: %v", o.Name, o.Err)
	default:
		return fmt.Sprintf("%s: up to date (%s)", o.Name, o.OldVersion)
	}
}
