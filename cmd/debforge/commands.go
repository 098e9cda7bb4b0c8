package main

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/debforge/debforge/build"
	"github.com/debforge/debforge/internal/app"
	"github.com/debforge/debforge/internal/logx"
	"github.com/debforge/debforge/update"
)

func generateCommand() *cli.Command {
	return &cli.Command{
		Name:  "generate",
		Usage: "expand blueprints and fetch upstream sources into debian/+src/ trees",
		Action: func(c *cli.Context) error {
			a, err := openApp(c)
			if err != nil {
				return err
			}
			trees, err := a.Generate(c.Context)
			logx.Info("generated %d source tree(s)", len(trees))
			return err
		},
	}
}

func buildCommand() *cli.Command {
	return &cli.Command{
		Name:  "build",
		Usage: "assemble .deb packages from trees left by a previous generate run",
		Action: func(c *cli.Context) error {
			a, err := openApp(c)
			if err != nil {
				return err
			}
			report, err := a.BuildExisting(c.Context)
			reportBuild(report)
			return err
		},
	}
}

func defaultCommand() *cli.Command {
	return &cli.Command{
		Name:  "default",
		Usage: "run generate then build",
		Action: func(c *cli.Context) error {
			a, err := openApp(c)
			if err != nil {
				return err
			}
			report, err := a.Default(c.Context)
			reportBuild(report)
			return err
		},
	}
}

func updateCommand() *cli.Command {
	return &cli.Command{
		Name:  "update",
		Usage: "check for newer upstream versions and rewrite the configuration",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{Name: "only", Usage: "limit to these blueprint names"},
			&cli.BoolFlag{Name: "dry-run", Usage: "report what would change without writing"},
			&cli.BoolFlag{Name: "skip-build", Usage: "skip the generate+build pass that follows the update"},
		},
		Action: func(c *cli.Context) error {
			a, err := openApp(c)
			if err != nil {
				return err
			}
			opts := app.UpdateOptions{
				Options:   update.Options{DryRun: c.Bool("dry-run")},
				Only:      c.StringSlice("only"),
				SkipBuild: c.Bool("skip-build"),
			}
			outcomes, report, err := a.Update(c.Context, opts)
			for _, o := range outcomes {
				logx.Info("%s", o)
			}
			reportBuild(report)
			return err
		},
	}
}

func lockCommand() *cli.Command {
	return &cli.Command{
		Name:  "lock",
		Usage: "fetch every referenced URL in locking mode without generating",
		Action: func(c *cli.Context) error {
			a, err := openApp(c)
			if err != nil {
				return err
			}
			return a.Lock(c.Context)
		},
	}
}

func purgeCommand() *cli.Command {
	return &cli.Command{
		Name:  "purge",
		Usage: "remove the fetch cache directory",
		Action: func(c *cli.Context) error {
			a, err := openApp(c)
			if err != nil {
				return err
			}
			return a.Purge()
		},
	}
}

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "rewrite a legacy inline-hash configuration into configuration + lockfile",
		Action: func(c *cli.Context) error {
			a, err := openApp(c)
			if err != nil {
				return err
			}
			res, err := a.Migrate()
			if res != nil {
				logx.Info("migrated %d blueprint(s), added %d lockfile entries", len(res.BlueprintsChanged), len(res.LockEntriesAdded))
			}
			return err
		},
	}
}

func validateCommand() *cli.Command {
	return &cli.Command{
		Name:  "validate",
		Usage: "parse and expand the configuration without fetching or generating",
		Action: func(c *cli.Context) error {
			a, err := openApp(c)
			if err != nil {
				return err
			}
			rendered, err := a.Validate()
			if err != nil {
				return err
			}
			logx.Info("%d rendered blueprint(s) are valid", len(rendered))
			return nil
		},
	}
}

func formatCommand() *cli.Command {
	return &cli.Command{
		Name:  "format",
		Usage: "rewrite the configuration canonically, preserving comments",
		Action: func(c *cli.Context) error {
			a, err := openApp(c)
			if err != nil {
				return err
			}
			return a.Format()
		},
	}
}

func deltaCommand() *cli.Command {
	return &cli.Command{
		Name:      "delta",
		Usage:     "diff two configurations over (name, architecture)",
		ArgsUsage: "OLD NEW",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "format", Value: "text", Usage: "output format: text or json"},
		},
		Action: func(c *cli.Context) error {
			if c.Args().Len() != 2 {
				return fmt.Errorf("delta requires exactly two arguments: OLD NEW")
			}
			result, err := app.Delta(c.Args().Get(0), c.Args().Get(1))
			if err != nil {
				return err
			}
			out, err := result.Format(c.String("format"))
			if err != nil {
				return err
			}
			fmt.Fprint(c.App.Writer, out)
			return nil
		},
	}
}

func reportBuild(report *build.Report) {
	if report == nil {
		return
	}
	if s := report.String(); s != "" {
		logx.Info("%s", s)
	}
}
