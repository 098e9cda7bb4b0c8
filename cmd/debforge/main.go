// Command debforge turns declarative YAML blueprints into Debian binary
// packages: expansion, content-addressed fetch, parallel source-tree
// generation, parallel build, a version-bump updater, and a delta
// reporter between two configurations.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/debforge/debforge/internal/app"
	"github.com/debforge/debforge/internal/errs"
	"github.com/debforge/debforge/internal/logx"
)

func main() {
	cli.VersionFlag = &cli.BoolFlag{Name: "version", Aliases: []string{"V"}}

	application := &cli.App{
		Name:  "debforge",
		Usage: "turn YAML blueprints into Debian packages",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   "debforge.yml",
				Usage:   "path to the blueprint configuration file",
			},
			&cli.StringFlag{
				Name:    "cache-dir",
				Value:   defaultCacheDir(),
				EnvVars: []string{"OPS2DEB_CACHE_DIR"},
				Usage:   "fetch cache directory",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Value:   defaultOutputDir(),
				EnvVars: []string{"OPS2DEB_OUTPUT_DIR"},
				Usage:   "output directory for generated trees and .deb files",
			},
			&cli.IntFlag{
				Name:    "workers",
				Aliases: []string{"w"},
				Usage:   "number of parallel fetch/build workers (default: number of CPUs)",
			},
			&cli.StringFlag{
				Name:    "github-token",
				EnvVars: []string{"OPS2DEB_GITHUB_TOKEN"},
				Usage:   "bearer token for the GitHub releases update strategy",
			},
			&cli.BoolFlag{
				Name:    "verbose",
				EnvVars: []string{"OPS2DEB_VERBOSE"},
				Usage:   "enable debug logging",
			},
		},
		Before: func(c *cli.Context) error {
			logx.SetVerbose(c.Bool("verbose"))
			return nil
		},
		Commands: []*cli.Command{
			generateCommand(),
			buildCommand(),
			defaultCommand(),
			updateCommand(),
			lockCommand(),
			purgeCommand(),
			migrateCommand(),
			validateCommand(),
			formatCommand(),
			deltaCommand(),
		},
	}

	ctx, cancel := signalContext()
	defer cancel()

	if err := application.RunContext(ctx, os.Args); err != nil {
		logx.Error("%v", err)
		os.Exit(errs.ExitCode(errs.KindOf(err)))
	}
}

// signalContext returns a context cancelled on SIGINT/SIGTERM, so
// in-flight fetches and builds observe cancellation at their next
// suspension point (spec's non-preemptive cancellation policy).
func signalContext() (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	return ctx, stop
}

func defaultCacheDir() string {
	if v := os.Getenv("OPS2DEB_CACHE_DIR"); v != "" {
		return v
	}
	return fmt.Sprintf("%s/ops2deb_cache", os.TempDir())
}

func defaultOutputDir() string {
	if v := os.Getenv("OPS2DEB_OUTPUT_DIR"); v != "" {
		return v
	}
	return "./output"
}

func openApp(c *cli.Context) (*app.App, error) {
	return app.Open(app.Options{
		ConfigPath:  c.String("config"),
		CacheDir:    c.String("cache-dir"),
		OutputDir:   c.String("output"),
		Workers:     c.Int("workers"),
		GitHubToken: c.String("github-token"),
	})
}
