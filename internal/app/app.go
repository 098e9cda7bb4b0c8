// Package app wires the blueprint, fetch, generate, build, update, and
// delta packages into the operations the CLI exposes, so cmd/debforge
// stays a thin urfave/cli front end.
package app

import (
	"context"
	"net/http"
	"os"
	"runtime"
	"sort"
	"sync"

	"github.com/debforge/debforge/blueprint"
	"github.com/debforge/debforge/build"
	"github.com/debforge/debforge/delta"
	"github.com/debforge/debforge/fetch"
	"github.com/debforge/debforge/generate"
	"github.com/debforge/debforge/internal/errs"
	"github.com/debforge/debforge/internal/logx"
	"github.com/debforge/debforge/internal/tmpl"
	"github.com/debforge/debforge/lockfile"
	"github.com/debforge/debforge/update"
	"github.com/debforge/debforge/update/strategy"
)

// Options are the global settings every subcommand threads through: the
// config path, the cache/output directories, the worker count, and the
// GitHub token used by the github-releases update strategy.
type Options struct {
	ConfigPath  string
	CacheDir    string
	OutputDir   string
	Workers     int
	GitHubToken string
}

// App holds the loaded configuration and lockfile for one invocation, plus
// the shared fetch cache and update-strategy registry built from Options.
type App struct {
	Config   *blueprint.Config
	Lockfile *lockfile.Lockfile
	Cache    *fetch.Cache
	Registry *strategy.Registry
	Options  Options
}

// Open loads the configuration and its paired lockfile and builds the
// fetch cache and strategy registry named by opts.
func Open(opts Options) (*App, error) {
	if err := ensureDirs(opts); err != nil {
		return nil, err
	}
	cfg, err := blueprint.Load(opts.ConfigPath)
	if err != nil {
		return nil, err
	}
	lf, err := lockfile.Load(cfg.LockfilePath)
	if err != nil {
		return nil, err
	}
	cache := fetch.New(opts.CacheDir, http.DefaultClient)
	httpHead := strategy.NewHTTPHeadStrategy(nil)
	reg := strategy.NewRegistry(
		[]strategy.Strategy{strategy.NewGitHubReleasesStrategy(opts.GitHubToken), httpHead},
		httpHead,
	)
	return &App{Config: cfg, Lockfile: lf, Cache: cache, Registry: reg, Options: opts}, nil
}

func (a *App) workers() int {
	if a.Options.Workers > 0 {
		return a.Options.Workers
	}
	return runtime.NumCPU()
}

// Validate runs only the configuration-loading and matrix-expansion stage
// (§4.2), surfacing schema errors without touching the network or disk.
func (a *App) Validate() ([]*blueprint.Rendered, error) {
	rendered, err := a.Config.Expand()
	if err != nil {
		return nil, err
	}
	if err := blueprint.ValidateUnique(rendered); err != nil {
		return nil, err
	}
	return blueprint.SortedByKey(rendered), nil
}

// Format rewrites the configuration file canonically while preserving
// comments and node styles, per the `format` subcommand.
func (a *App) Format() error {
	return a.Config.Save()
}

// Lock fetches every URL referenced by the configuration in locking mode,
// recording and persisting the hash of each URL the lockfile does not list
// yet (a listed URL is checked against its recorded hash), without
// generating any source tree.
func (a *App) Lock(ctx context.Context) error {
	rendered, err := a.Validate()
	if err != nil {
		return err
	}
	return a.forEachFetchURL(ctx, rendered, func(ctx context.Context, url string) error {
		_, err := a.Cache.Fetch(ctx, url, a.Lockfile, fetch.ModeLocking)
		return err
	}, func() error { return a.Lockfile.Save() })
}

// Purge removes the fetch cache directory entirely.
func (a *App) Purge() error {
	logx.Title("Purging cache %s", a.Options.CacheDir)
	return a.Cache.Purge()
}

// Migrate rewrites legacy inline `fetch.sha256` hashes into the split
// configuration + lockfile layout, committing both files.
func (a *App) Migrate() (*blueprint.MigrateResult, error) {
	res, err := blueprint.Migrate(a.Config, a.Lockfile)
	if err != nil {
		return nil, err
	}
	if err := a.Config.Save(); err != nil {
		return nil, err
	}
	if err := a.Lockfile.Save(); err != nil {
		return nil, err
	}
	return res, nil
}

// Generate expands the configuration and materialises every rendered
// blueprint's debian/+src/ tree in parallel (§4.2 → §4.4 → §4.5).
func (a *App) Generate(ctx context.Context) ([]*generate.Tree, error) {
	rendered, err := a.Validate()
	if err != nil {
		return nil, err
	}

	jobs := make(chan *blueprint.Rendered)
	results := make(chan genResult)
	var wg sync.WaitGroup
	for i := 0; i < a.workers(); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for r := range jobs {
				tree, err := generate.Generate(ctx, r, a.Options.OutputDir, a.Cache, a.Lockfile)
				results <- genResult{tree: tree, err: err, rendered: r}
			}
		}()
	}
	go func() {
		defer close(jobs)
		for _, r := range rendered {
			select {
			case jobs <- r:
			case <-ctx.Done():
				return
			}
		}
	}()
	go func() { wg.Wait(); close(results) }()

	var trees []*generate.Tree
	var firstErr error
	for res := range results {
		if res.err != nil {
			logx.Error("%s: generate: %v", res.rendered.Name, res.err)
			if firstErr == nil {
				firstErr = res.err
			}
			continue
		}
		trees = append(trees, res.tree)
	}
	if firstErr != nil {
		return trees, firstErr
	}
	sort.Slice(trees, func(i, j int) bool { return trees[i].Rendered.DirName() < trees[j].Rendered.DirName() })
	return trees, nil
}

type genResult struct {
	tree     *generate.Tree
	err      error
	rendered *blueprint.Rendered
}

// Build runs the bounded-parallelism `.deb` assembly over previously
// generated trees (§4.6).
func (a *App) Build(ctx context.Context, trees []*generate.Tree) (*build.Report, error) {
	return build.Run(ctx, trees, a.Options.OutputDir, a.workers(), nil)
}

// BuildExisting reconstructs each rendered blueprint's tree from a prior
// generate run's output directory and builds those, without regenerating
// (and clobbering) anything: the `build` subcommand's entry point. A
// blueprint with no generated tree on disk is reported as a failed
// outcome rather than silently dropped or forcing a regeneration.
func (a *App) BuildExisting(ctx context.Context) (*build.Report, error) {
	rendered, err := a.Validate()
	if err != nil {
		return nil, err
	}
	var trees []*generate.Tree
	var missing []build.Outcome
	for _, r := range rendered {
		tree, err := generate.ExistingTree(r, a.Options.OutputDir)
		if err != nil {
			logx.Error("%s: %v", r.Name, err)
			missing = append(missing, build.Outcome{Name: r.Name, Architecture: r.Architecture, Version: r.Version, Err: err})
			continue
		}
		trees = append(trees, tree)
	}
	report, err := a.Build(ctx, trees)
	if err != nil {
		return report, err
	}
	report.Outcomes = append(report.Outcomes, missing...)
	return report, nil
}

// Default runs Generate followed by Build, the `default` subcommand.
func (a *App) Default(ctx context.Context) (*build.Report, error) {
	trees, err := a.Generate(ctx)
	if err != nil && len(trees) == 0 {
		return nil, err
	}
	report, buildErr := a.Build(ctx, trees)
	if err != nil {
		return report, err
	}
	return report, buildErr
}

// UpdateOptions controls the `update` subcommand beyond update.Options.
type UpdateOptions struct {
	update.Options
	Only      []string
	SkipBuild bool
}

// Update checks for newer upstream versions, rewrites the configuration
// and lockfile accordingly, and optionally runs Default over the result.
func (a *App) Update(ctx context.Context, opts UpdateOptions) ([]update.Outcome, *build.Report, error) {
	cfg := a.Config
	if len(opts.Only) > 0 {
		cfg = filterBlueprints(cfg, opts.Only)
	}
	// update.Run isolates a per-blueprint rehash/write failure to that
	// blueprint's Outcome and still commits every other blueprint's
	// update; its returned error only flags that at least one outcome
	// failed; it does not mean nothing was persisted. So a non-nil err
	// here still proceeds to Default, same as if every outcome had
	// succeeded, and the original update error rides along with
	// whatever the subsequent build reports.
	outcomes, updateErr := update.Run(ctx, cfg, a.Lockfile, a.Registry, a.Cache, opts.Options)
	if opts.DryRun || opts.SkipBuild {
		return outcomes, nil, updateErr
	}
	report, buildErr := a.Default(ctx)
	if buildErr != nil {
		return outcomes, report, buildErr
	}
	return outcomes, report, updateErr
}

func filterBlueprints(cfg *blueprint.Config, names []string) *blueprint.Config {
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[n] = true
	}
	filtered := *cfg
	filtered.Blueprints = nil
	for _, bp := range cfg.Blueprints {
		if want[bp.Name] {
			filtered.Blueprints = append(filtered.Blueprints, bp)
		}
	}
	return &filtered
}

// Delta loads two configuration files and diffs their rendered sets,
// per the `delta OLD NEW` subcommand.
func Delta(oldPath, newPath string) (delta.Result, error) {
	before, err := blueprint.Load(oldPath)
	if err != nil {
		return delta.Result{}, err
	}
	after, err := blueprint.Load(newPath)
	if err != nil {
		return delta.Result{}, err
	}
	return delta.CompareConfigs(before, after)
}

// forEachFetchURL fetches every URL referenced by rendered in parallel
// (bounded by a.workers()), then always runs commit so that whatever
// fetched successfully is persisted. A failure resolving one blueprint's
// URL or fetching it is per-blueprint (spec propagation policy): it is
// logged and reported as the returned error, but never keeps the rest of
// the run's results from being committed.
func (a *App) forEachFetchURL(ctx context.Context, rendered []*blueprint.Rendered, fetchOne func(ctx context.Context, url string) error, commit func() error) error {
	urls, collectErrs := collectFetchURLs(rendered)

	sem := make(chan struct{}, a.workers())
	var wg sync.WaitGroup
	errCh := make(chan error, len(urls))
	for _, url := range urls {
		wg.Add(1)
		go func(url string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			if err := fetchOne(ctx, url); err != nil {
				errCh <- err
			}
		}(url)
	}
	wg.Wait()
	close(errCh)

	var firstErr error
	for _, err := range collectErrs {
		logx.Error("lock: %v", err)
		if firstErr == nil {
			firstErr = err
		}
	}
	for err := range errCh {
		logx.Error("lock: %v", err)
		if firstErr == nil {
			firstErr = err
		}
	}

	if err := commit(); err != nil {
		return err
	}
	return firstErr
}

// collectFetchURLs resolves every rendered blueprint's fetch URL,
// skipping (and reporting) any blueprint whose URL fails to render
// instead of aborting the whole collection.
func collectFetchURLs(rendered []*blueprint.Rendered) ([]string, []error) {
	engine := tmpl.New(nil)
	var urls []string
	var failed []error
	for _, r := range rendered {
		if r.Fetch == nil {
			continue
		}
		url, err := blueprint.RenderURL(r, engine)
		if err != nil {
			failed = append(failed, err)
			continue
		}
		if url != "" {
			urls = append(urls, url)
		}
	}
	return urls, failed
}

func ensureDirs(opts Options) error {
	if err := os.MkdirAll(opts.CacheDir, 0755); err != nil {
		return errs.New(errs.IOError, opts.CacheDir, err)
	}
	if err := os.MkdirAll(opts.OutputDir, 0755); err != nil {
		return errs.New(errs.IOError, opts.OutputDir, err)
	}
	return nil
}
