// Package generate produces, for each rendered blueprint, a Debian source
// package tree: a debian/ metadata subdirectory and a populated src/ payload
// staged from fetch extraction, install directives, and build script output.
package generate

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/debforge/debforge/blueprint"
	"github.com/debforge/debforge/fetch"
	"github.com/debforge/debforge/internal/errs"
	"github.com/debforge/debforge/internal/logx"
	"github.com/debforge/debforge/internal/tmpl"
	"github.com/debforge/debforge/lockfile"
)

// Maintainer is the constant maintainer identity recorded in every
// generated debian/control and debian/changelog.
const Maintainer = "debforge <debforge@localhost>"

// Tree describes the on-disk source package directory produced for one
// rendered blueprint.
type Tree struct {
	Rendered  *blueprint.Rendered
	RootDir   string
	DebianDir string
	SrcDir    string
}

// Generate lays out outputDir/<name>_<version>_<architecture>/ for r,
// fetching its upstream artifact (if any), applying install directives,
// running its build script, and emitting the debian/ metadata files (§4.5).
func Generate(ctx context.Context, r *blueprint.Rendered, outputDir string, cache *fetch.Cache, lf *lockfile.Lockfile) (*Tree, error) {
	tree := &Tree{
		Rendered:  r,
		RootDir:   filepath.Join(outputDir, r.DirName()),
		DebianDir: filepath.Join(outputDir, r.DirName(), "debian"),
		SrcDir:    filepath.Join(outputDir, r.DirName(), "src"),
	}

	if err := resetDir(tree.DebianDir); err != nil {
		return nil, err
	}
	if err := resetDir(tree.SrcDir); err != nil {
		return nil, err
	}

	vars := map[string]string{
		"version": r.Version,
		"goarch":  r.GoArch,
		"src":     tree.SrcDir,
	}
	if r.Fetch != nil {
		if t, ok := r.Fetch.Targets[r.Architecture]; ok {
			vars["target"] = t
		}
	}
	engine := tmpl.New(vars)

	if r.Fetch != nil {
		if err := populateFromFetch(ctx, r, tree, cache, lf, engine); err != nil {
			return nil, err
		}
	}

	if err := applyInstallEntries(r, tree, engine); err != nil {
		return nil, err
	}

	if err := runScripts(ctx, r, tree, engine); err != nil {
		return nil, err
	}

	if err := writeDebianFiles(tree); err != nil {
		return nil, err
	}

	return tree, nil
}

// ExistingTree reconstructs the Tree for a rendered blueprint from a prior
// Generate run, without touching the network or the filesystem beyond a
// stat: the `build` subcommand builds over trees a previous `generate` run
// left on disk instead of regenerating them (§4.9). It fails if either
// subdirectory is missing, telling the caller to run generate first.
func ExistingTree(r *blueprint.Rendered, outputDir string) (*Tree, error) {
	tree := &Tree{
		Rendered:  r,
		RootDir:   filepath.Join(outputDir, r.DirName()),
		DebianDir: filepath.Join(outputDir, r.DirName(), "debian"),
		SrcDir:    filepath.Join(outputDir, r.DirName(), "src"),
	}
	for _, dir := range []string{tree.DebianDir, tree.SrcDir} {
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			return nil, errs.Wrapf(errs.IOError, r.Name, "no generated tree at %s: run generate first", dir)
		}
	}
	return tree, nil
}

func resetDir(path string) error {
	if err := os.RemoveAll(path); err != nil {
		return errs.New(errs.IOError, path, err)
	}
	if err := os.MkdirAll(path, 0755); err != nil {
		return errs.New(errs.IOError, path, err)
	}
	return nil
}

// populateFromFetch resolves the blueprint's fetch URL, retrieves it through
// cache (in Normal mode: generate never mutates the lockfile), and copies
// its extracted tree (or the bare file, if not an archive) into src/.
func populateFromFetch(ctx context.Context, r *blueprint.Rendered, tree *Tree, cache *fetch.Cache, lf *lockfile.Lockfile, engine *tmpl.Renderer) error {
	url, err := blueprint.RenderURL(r, engine)
	if err != nil {
		return err
	}
	res, err := cache.Fetch(ctx, url, lf, fetch.ModeNormal)
	if err != nil {
		return err
	}
	if res.ExtractedDir != "" {
		return copyTree(res.ExtractedDir, tree.SrcDir)
	}
	return copyFile(res.FilePath, filepath.Join(tree.SrcDir, filepath.Base(res.FilePath)), 0644)
}

// applyInstallEntries applies a rendered blueprint's install directives in
// order (§4.5 step 2): "A:B" copies staging path A to destination B under
// src/, a trailing-slash "dir/" recursively re-stages a subdirectory, and a
// {path, content} entry materialises a here-document.
func applyInstallEntries(r *blueprint.Rendered, tree *Tree, engine *tmpl.Renderer) error {
	for i, entry := range r.Install {
		switch {
		case entry.Path != "":
			content, err := engine.Render(r.Name+".install["+itoa(i)+"]", entry.Content)
			if err != nil {
				return err
			}
			if !strings.HasSuffix(content, "\n") {
				content += "\n"
			}
			dest := filepath.Join(tree.SrcDir, strings.TrimPrefix(entry.Path, "/"))
			if err := writeFile(dest, []byte(content), 0644); err != nil {
				return err
			}

		case entry.RecursiveDir != "":
			dir := strings.TrimSuffix(entry.RecursiveDir, "/")
			src := filepath.Join(tree.SrcDir, dir)
			dst := filepath.Join(tree.SrcDir, dir)
			if err := copyTree(src, dst); err != nil {
				return err
			}

		case entry.Copy != "":
			parts := strings.SplitN(entry.Copy, ":", 2)
			if len(parts) != 2 {
				return errs.Wrapf(errs.SchemaError, r.Name, "install entry %q is not SOURCE:DEST", entry.Copy)
			}
			src := filepath.Join(tree.SrcDir, parts[0])
			dst := filepath.Join(tree.SrcDir, strings.TrimPrefix(parts[1], "/"))
			if err := copyPath(src, dst); err != nil {
				return err
			}
		}
	}
	return nil
}

// runScripts executes a rendered blueprint's build script in order, with
// cwd the process's working directory and {{src}} resolved to the staging
// path, aborting on the first non-zero exit (§4.5 step 2).
func runScripts(ctx context.Context, r *blueprint.Rendered, tree *Tree, engine *tmpl.Renderer) error {
	for i, line := range r.Script {
		rendered, err := engine.Render(r.Name+".script["+itoa(i)+"]", line)
		if err != nil {
			return err
		}
		logx.Info("$ %s", rendered)

		cmd := exec.CommandContext(ctx, "sh", "-c", rendered)
		cmd.Env = append(os.Environ(), "src="+tree.SrcDir)
		var stdout, stderr bytes.Buffer
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr

		if err := cmd.Run(); err != nil {
			if stdout.Len() > 0 {
				logx.Info("%s", stdout.String())
			}
			if stderr.Len() > 0 {
				logx.Error("%s", stderr.String())
			}
			return errs.Wrapf(errs.ScriptError, r.Name, "script %q: %w", rendered, err)
		}
	}
	return nil
}

func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	neg := i < 0
	if neg {
		i = -i
	}
	var b [20]byte
	pos := len(b)
	for i > 0 {
		pos--
		b[pos] = byte('0' + i%10)
		i /= 10
	}
	if neg {
		pos--
		b[pos] = '-'
	}
	return string(b[pos:])
}
