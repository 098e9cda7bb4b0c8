package strategy

import (
	"context"
	"net/http"

	"github.com/Masterminds/semver/v3"
	"github.com/debforge/debforge/blueprint"
	"github.com/debforge/debforge/internal/errs"
	"github.com/debforge/debforge/internal/logx"
	"github.com/debforge/debforge/internal/tmpl"
)

// HTTPHeadStrategy probes increasing semver candidates by HEAD request,
// bumping minor first and then patch, stopping at the first 4xx response.
// Grounded on original_source/updater.py's `_bump_and_poll`.
type HTTPHeadStrategy struct {
	Client *http.Client
}

func NewHTTPHeadStrategy(client *http.Client) *HTTPHeadStrategy {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPHeadStrategy{Client: client}
}

func (s *HTTPHeadStrategy) Name() string { return "generic-http-head" }

func (s *HTTPHeadStrategy) Latest(ctx context.Context, b blueprint.Blueprint) (string, error) {
	if b.Fetch == nil {
		return "", nil
	}
	current, err := semver.NewVersion(b.Version)
	if err != nil {
		logx.Warn("%s is not using semantic versioning, skipping generic-http-head", b.Name)
		return "", nil
	}

	best := *current
	best, err = s.bumpAndPoll(ctx, b, best, bumpMinor)
	if err != nil {
		return "", err
	}
	best, err = s.bumpAndPoll(ctx, b, best, bumpPatch)
	if err != nil {
		return "", err
	}

	if best.Equal(current) {
		return "", nil
	}
	return best.String(), nil
}

type bumpFunc func(semver.Version) semver.Version

func bumpMinor(v semver.Version) semver.Version { return v.IncMinor() }
func bumpPatch(v semver.Version) semver.Version { return v.IncPatch() }

func (s *HTTPHeadStrategy) bumpAndPoll(ctx context.Context, b blueprint.Blueprint, from semver.Version, bump bumpFunc) (semver.Version, error) {
	newest := from
	candidate := from
	for {
		candidate = bump(candidate)

		url, err := renderCandidateURL(b, candidate.String())
		if err != nil {
			return newest, err
		}
		if url == "" {
			break
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
		if err != nil {
			return newest, errs.New(errs.NetworkError, b.Name, err)
		}
		resp, err := s.Client.Do(req)
		if err != nil {
			return newest, errs.Wrapf(errs.NetworkError, b.Name, "HEAD %s: %w", url, err)
		}
		resp.Body.Close()

		if resp.StatusCode >= 500 {
			return newest, errs.Wrapf(errs.NetworkError, b.Name, "HEAD %s: server error %d", url, resp.StatusCode)
		}
		if resp.StatusCode >= 400 {
			break
		}
		newest = candidate
	}
	return newest, nil
}

// renderCandidateURL renders b's fetch URL for a hypothetical version,
// using the blueprint's own declared architecture (or its first matrix
// architecture) as a representative probe target.
func renderCandidateURL(b blueprint.Blueprint, version string) (string, error) {
	probe := b
	probe.Version = version
	all, err := blueprint.Expand(probe)
	if err != nil || len(all) == 0 {
		return "", nil
	}
	engine := tmpl.New(map[string]string{
		"version": all[0].Version,
		"goarch":  all[0].GoArch,
	})
	return blueprint.RenderURL(all[0], engine)
}
