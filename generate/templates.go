package generate

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/debforge/debforge/blueprint"
	"github.com/debforge/debforge/internal/errs"
)

// writeDebianFiles emits the debian/ metadata files for tree, translating
// the fixed Jinja templates (changelog, compat, control, install,
// lintian-overrides, rules) into their rendered form for this blueprint.
func writeDebianFiles(tree *Tree) error {
	r := tree.Rendered

	writers := []struct {
		name string
		fn   func() (string, error)
	}{
		{"changelog", func() (string, error) { return changelogContent(r), nil }},
		{"compat", func() (string, error) { return "13\n", nil }},
		{"control", func() (string, error) { return controlContent(r), nil }},
		{"rules", func() (string, error) { return rulesContent(), nil }},
		{"copyright", func() (string, error) { return copyrightContent(r), nil }},
		{r.Name + ".lintian-overrides", func() (string, error) { return lintianOverridesContent(r), nil }},
		{"install", func() (string, error) { return installFileContent(tree) }},
	}

	for _, w := range writers {
		content, err := w.fn()
		if err != nil {
			return err
		}
		path := filepath.Join(tree.DebianDir, w.name)
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			return errs.New(errs.IOError, path, err)
		}
	}

	rulesPath := filepath.Join(tree.DebianDir, "rules")
	if err := os.Chmod(rulesPath, 0755); err != nil {
		return errs.New(errs.IOError, rulesPath, err)
	}
	return nil
}

// changelogTimestamp is fixed so regenerating an unchanged blueprint produces
// byte-identical debian/changelog (idempotent regeneration, §4.5).
const changelogTimestamp = "Tue, 07 May 2019 20:31:30 +0000"

func changelogContent(r *blueprint.Rendered) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (%s) unstable; urgency=medium\n\n", r.Name, r.DebianVersion())
	b.WriteString("  * Package generated with debforge.\n\n")
	fmt.Fprintf(&b, " -- %s  %s\n", Maintainer, changelogTimestamp)
	return b.String()
}

func controlContent(r *blueprint.Rendered) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Source: %s\n", r.Name)
	b.WriteString("Section: devops\n")
	b.WriteString("Priority: optional\n")
	fmt.Fprintf(&b, "Maintainer: %s\n", Maintainer)
	b.WriteString("Build-Depends: debhelper-compat (= 13)\n")
	b.WriteString("Standards-Version: 4.6.0\n")
	if r.Homepage != "" {
		fmt.Fprintf(&b, "Homepage: %s\n", r.Homepage)
	}
	b.WriteString("\n")

	fmt.Fprintf(&b, "Package: %s\n", r.Name)
	fmt.Fprintf(&b, "Architecture: %s\n", r.Architecture)
	if len(r.Depends) > 0 {
		fmt.Fprintf(&b, "Depends: %s\n", joinSorted(r.Depends))
	}
	if len(r.Recommends) > 0 {
		fmt.Fprintf(&b, "Recommends: %s\n", joinSorted(r.Recommends))
	}
	if len(r.Conflicts) > 0 {
		fmt.Fprintf(&b, "Conflicts: %s\n", joinSorted(r.Conflicts))
	}
	fmt.Fprintf(&b, "Description: %s\n", r.Summary)
	writeFoldedDescription(&b, r.Description)
	return b.String()
}

func writeFoldedDescription(b *strings.Builder, description string) {
	if description == "" {
		return
	}
	for _, line := range strings.Split(description, "\n") {
		if line == "" {
			line = "."
		}
		fmt.Fprintf(b, " %s\n", line)
	}
}

func joinSorted(items []string) string {
	sorted := append([]string(nil), items...)
	sort.Strings(sorted)
	return strings.Join(sorted, ", ")
}

func rulesContent() string {
	return "#!/usr/bin/make -f\n\n%:\n\tdh $@\n"
}

func copyrightContent(r *blueprint.Rendered) string {
	return fmt.Sprintf("Packaged by debforge for %s. Upstream license not redistributed.\n", r.Name)
}

func lintianOverridesContent(r *blueprint.Rendered) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: statically-linked-binary\n", r.Name)
	fmt.Fprintf(&b, "%s: binary-without-manpage\n", r.Name)
	return b.String()
}

// installFileContent lists, one per line, every regular file staged under
// src/ relative to the package root, satisfying dh_install's expectation
// that debian/install enumerate `SOURCE DEST` pairs explicitly rather than
// rely on a glob (unlike the static "src/* /" form this mirrors in spirit).
func installFileContent(tree *Tree) (string, error) {
	var lines []string
	err := filepath.Walk(tree.SrcDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(tree.SrcDir, path)
		if err != nil {
			return err
		}
		lines = append(lines, fmt.Sprintf("src/%s /", filepath.ToSlash(rel)))
		return nil
	})
	if err != nil {
		return "", errs.New(errs.IOError, tree.SrcDir, err)
	}
	sort.Strings(lines)
	if len(lines) == 0 {
		return "src/* /\n", nil
	}
	return strings.Join(lines, "\n") + "\n", nil
}

