package strategy

import (
	"context"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/debforge/debforge/blueprint"
	"github.com/debforge/debforge/internal/errs"
	"github.com/google/go-github/v57/github"
)

// GitHubReleasesStrategy lists a repository's releases and returns the
// highest tag that parses as semver, generalizing the teacher's
// github.fetchReleases raw-REST call onto google/go-github.
type GitHubReleasesStrategy struct {
	Client *github.Client
}

// NewGitHubReleasesStrategy builds a strategy using token for
// authentication (may be empty for unauthenticated, rate-limited access).
func NewGitHubReleasesStrategy(token string) *GitHubReleasesStrategy {
	client := github.NewClient(nil)
	if token != "" {
		client = client.WithAuthToken(token)
	}
	return &GitHubReleasesStrategy{Client: client}
}

func (s *GitHubReleasesStrategy) Name() string { return "github-releases" }

// ownerRepoFromFetchURL extracts "owner/repo" from a github.com or
// github.com release-asset URL, e.g.
// https://github.com/owner/repo/releases/download/v1.2.3/asset.tar.gz.
func ownerRepoFromFetchURL(url string) (owner, repo string, ok bool) {
	const marker = "github.com/"
	idx := strings.Index(url, marker)
	if idx == -1 {
		return "", "", false
	}
	rest := url[idx+len(marker):]
	parts := strings.SplitN(rest, "/", 3)
	if len(parts) < 2 {
		return "", "", false
	}
	return parts[0], parts[1], true
}

func (s *GitHubReleasesStrategy) Latest(ctx context.Context, b blueprint.Blueprint) (string, error) {
	if b.Fetch == nil {
		return "", nil
	}
	owner, repo, ok := ownerRepoFromFetchURL(b.Fetch.URL)
	if !ok {
		return "", nil
	}

	releases, _, err := s.Client.Repositories.ListReleases(ctx, owner, repo, &github.ListOptions{PerPage: 100})
	if err != nil {
		return "", errs.Wrapf(errs.NetworkError, b.Name, "listing releases for %s/%s: %w", owner, repo, err)
	}

	current, currentErr := semver.NewVersion(b.Version)

	var best *semver.Version
	for _, rel := range releases {
		if rel.GetDraft() || rel.GetPrerelease() {
			continue
		}
		tag := strings.TrimPrefix(rel.GetTagName(), "v")
		v, err := semver.NewVersion(tag)
		if err != nil {
			continue
		}
		if best == nil || v.GreaterThan(best) {
			best = v
		}
	}
	if best == nil {
		return "", nil
	}
	if currentErr == nil && !best.GreaterThan(current) {
		return "", nil
	}
	return best.String(), nil
}
