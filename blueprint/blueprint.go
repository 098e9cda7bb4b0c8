// Package blueprint models the declarative package description (§3 of the
// configuration file) and its matrix expansion into concrete, renderable
// package instances.
package blueprint

import (
	"fmt"
	"sort"

	"github.com/debforge/debforge/internal/errs"
	"github.com/debforge/debforge/internal/tmpl"
)

// goArchMap resolves a Debian architecture to the Go GOARCH value used by
// the `{{goarch}}` template variable.
var goArchMap = map[string]string{
	"amd64": "amd64",
	"arm64": "arm64",
	"armhf": "arm",
}

// Fetch describes how to retrieve a blueprint's upstream artifact.
type Fetch struct {
	URL     string            `yaml:"url"`
	Targets map[string]string `yaml:"targets,omitempty"`

	// Legacy fields, populated only when loading a pre-lockfile configuration
	// (see Migrate). MarshalYAML never writes them; Config.Save writes the
	// node tree retained by Load, which keeps a legacy sha256 key until
	// Migrate has run.
	LegacySHA256        string            `yaml:"-"`
	LegacySHA256PerArch map[string]string `yaml:"-"`
}

// InstallEntry is one entry of a blueprint's `install` sequence.
type InstallEntry struct {
	// Copy holds a raw "SOURCE:DEST" string, or RecursiveDir holds a
	// trailing-slash "dir/" string. Exactly one of Copy, RecursiveDir, or
	// (Path != "") is set, mirroring the declared union in §3.
	Copy         string
	RecursiveDir string
	Path         string
	Content      string
}

// Matrix describes the optional cartesian expansion axes.
type Matrix struct {
	Architectures []string `yaml:"architectures,omitempty"`
	Versions      []string `yaml:"versions,omitempty"`
}

// Blueprint is one declared package description, prior to matrix expansion.
type Blueprint struct {
	Name         string   `yaml:"name"`
	Version      string   `yaml:"version,omitempty"`
	Revision     int      `yaml:"revision,omitempty"`
	Epoch        int      `yaml:"epoch,omitempty"`
	Architecture string   `yaml:"architecture,omitempty"`
	Homepage     string   `yaml:"homepage,omitempty"`
	Summary      string   `yaml:"summary,omitempty"`
	Description  string   `yaml:"description,omitempty"`
	Depends      []string `yaml:"depends,omitempty"`
	Recommends   []string `yaml:"recommends,omitempty"`
	Conflicts    []string `yaml:"conflicts,omitempty"`

	Fetch   *Fetch         `yaml:"fetch,omitempty"`
	Install []InstallEntry `yaml:"install,omitempty"`
	Script  []string       `yaml:"script,omitempty"`
	Matrix  *Matrix        `yaml:"matrix,omitempty"`

	// UpdateStrategy overrides the inferred updater strategy name
	// ("generic-http-head", "github-releases", "custom").
	UpdateStrategy string `yaml:"update_strategy,omitempty"`
	// VersionRegex is accepted by the loader and kept on the blueprint; no
	// update strategy reads it, so version discovery always uses semver
	// ordering.
	VersionRegex string `yaml:"version_regex,omitempty"`

	// sourceFile is the originating configuration path, recorded by Load
	// and syncTyped. No code reads it: install sources resolve against src/.
	sourceFile string
}

// Rendered is one concrete (name, version, architecture) instance produced
// by matrix expansion, with its goarch mapping. Expand leaves FetchURL
// empty; RenderURL computes the concrete fetch URL on demand.
type Rendered struct {
	Blueprint
	GoArch   string
	FetchURL string
}

// Key identifies a rendered blueprint within a configuration, per the
// (name, version, revision, epoch, architecture) uniqueness invariant.
type Key struct {
	Name         string
	Version      string
	Revision     int
	Epoch        int
	Architecture string
}

func (k Key) String() string {
	return fmt.Sprintf("(%s, %s, %s)", k.Name, k.Version, k.Architecture)
}

// DebianVersion renders the full Debian version string
// `[epoch:]upstream_version-revision~ops2deb`.
func (r *Rendered) DebianVersion() string {
	v := fmt.Sprintf("%s-%d~ops2deb", r.Version, r.Revision)
	if r.Epoch > 0 {
		v = fmt.Sprintf("%d:%s", r.Epoch, v)
	}
	return v
}

// StandardFilename returns `<name>_<debian-version>_<architecture>.deb`.
func (r *Rendered) StandardFilename() string {
	return fmt.Sprintf("%s_%s_%s.deb", r.Name, r.DebianVersion(), r.Architecture)
}

// DirName returns the generated source tree's directory name,
// `<name>_<version>_<architecture>`.
func (r *Rendered) DirName() string {
	return fmt.Sprintf("%s_%s_%s", r.Name, r.Version, r.Architecture)
}

// Expand applies defaults and matrix expansion, returning the list of
// Rendered instances in declaration order × architectures-order ×
// versions-order, per §4.2.
func Expand(b Blueprint) ([]*Rendered, error) {
	revision := b.Revision
	if revision == 0 {
		revision = 1
	}
	arch := b.Architecture
	if arch == "" {
		arch = "amd64"
	}

	architectures := []string{arch}
	versions := []string{b.Version}
	if b.Matrix != nil {
		if len(b.Matrix.Architectures) > 0 {
			architectures = b.Matrix.Architectures
		}
		if len(b.Matrix.Versions) > 0 {
			versions = b.Matrix.Versions
		}
	}

	var out []*Rendered
	for _, a := range architectures {
		for _, v := range versions {
			base := b
			base.Architecture = a
			base.Version = v
			base.Revision = revision

			// goarch is resolved lazily: "all" and other unmapped
			// architectures are legal (§3) as long as no fetch URL
			// ever asks for {{goarch}}. See RenderURL.
			rb := &Rendered{Blueprint: base, GoArch: goArchMap[a]}
			out = append(out, rb)
		}
	}
	return out, nil
}

// RenderURL computes the concrete fetch URL for a Rendered blueprint,
// resolving {{version}}, {{goarch}}, {{target}}, and env() against it.
func RenderURL(r *Rendered, engine *tmpl.Renderer) (string, error) {
	if r.Fetch == nil {
		return "", nil
	}
	if _, ok := goArchMap[r.Architecture]; !ok {
		return "", errs.Wrapf(errs.SchemaError, r.Name, "architecture %q has no goarch mapping (only amd64, arm64, armhf are supported for {{goarch}}); use an architecture-independent fetch or drop fetch for %q", r.Architecture, r.Architecture)
	}
	vars := map[string]string{
		"version": r.Version,
		"goarch":  r.GoArch,
	}
	if r.Fetch.Targets != nil {
		if t, ok := r.Fetch.Targets[r.Architecture]; ok {
			vars["target"] = t
		}
	}
	scoped := engine.With(vars)
	url, err := scoped.Render(r.Name+".fetch.url", r.Fetch.URL)
	if err != nil {
		return "", err
	}
	return url, nil
}

// ValidateUnique checks the (name, version, revision, epoch, architecture)
// uniqueness invariant (§3) across a fully rendered configuration.
func ValidateUnique(all []*Rendered) error {
	seen := make(map[Key]bool, len(all))
	for _, r := range all {
		k := Key{r.Name, r.Version, r.Revision, r.Epoch, r.Architecture}
		if seen[k] {
			return errs.Wrapf(errs.SchemaError, k.String(), "duplicate rendered blueprint %s", k)
		}
		seen[k] = true
	}
	return nil
}

// SortedByKey returns a copy of all sorted by (name, architecture, version),
// used for deterministic delta/report output.
func SortedByKey(all []*Rendered) []*Rendered {
	out := make([]*Rendered, len(all))
	copy(out, all)
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		if a.Architecture != b.Architecture {
			return a.Architecture < b.Architecture
		}
		return a.Version < b.Version
	})
	return out
}
