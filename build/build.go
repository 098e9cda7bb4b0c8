// Package build turns a generated source tree into a binary .deb, via a
// bounded worker pool so a large configuration builds many packages
// concurrently while isolating one package's failure from the rest.
package build

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"

	"github.com/debforge/debforge/blueprint"
	"github.com/debforge/debforge/deb"
	"github.com/debforge/debforge/generate"
	"github.com/debforge/debforge/internal/errs"
	"github.com/debforge/debforge/internal/logx"
)

// Backend assembles one generated tree into the bytes of a .deb file.
// The only implementation carried is inProcessBackend (WriteTo-based);
// the interface exists so an external dpkg-buildpackage backend could be
// added later without changing Run's orchestration.
type Backend interface {
	Build(tree *generate.Tree) (*deb.Package, error)
}

// Outcome is the per-package result of one build attempt.
type Outcome struct {
	Name         string
	Architecture string
	Version      string
	OutputPath   string
	Err          error
}

// Report summarises a Run: every outcome, partitioned into built and failed.
type Report struct {
	Outcomes []Outcome
}

func (r *Report) Built() []Outcome {
	var out []Outcome
	for _, o := range r.Outcomes {
		if o.Err == nil {
			out = append(out, o)
		}
	}
	return out
}

func (r *Report) Failed() []Outcome {
	var out []Outcome
	for _, o := range r.Outcomes {
		if o.Err != nil {
			out = append(out, o)
		}
	}
	return out
}

// String renders a one-line-per-outcome summary, built packages first.
func (r *Report) String() string {
	var b strings.Builder
	for _, o := range r.Built() {
		fmt.Fprintf(&b, "built %s\n", o.OutputPath)
	}
	for _, o := range r.Failed() {
		fmt.Fprintf(&b, "failed %s (%s, %s): %v\n", o.Name, o.Version, o.Architecture, o.Err)
	}
	return b.String()
}

// Run builds every tree with up to workers concurrent builders (workers <= 0
// defaults to runtime.NumCPU), writing each package's .deb to outputDir under
// its StandardFilename. One package's BuildError never aborts the others.
func Run(ctx context.Context, trees []*generate.Tree, outputDir string, workers int, backend Backend) (*Report, error) {
	if backend == nil {
		backend = inProcessBackend{}
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, errs.New(errs.IOError, outputDir, err)
	}

	jobs := make(chan *generate.Tree)
	results := make(chan Outcome)
	var wg sync.WaitGroup

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for tree := range jobs {
				results <- buildOne(ctx, tree, outputDir, backend)
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, tree := range trees {
			select {
			case jobs <- tree:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	report := &Report{}
	for o := range results {
		report.Outcomes = append(report.Outcomes, o)
	}
	sort.Slice(report.Outcomes, func(i, j int) bool {
		a, b := report.Outcomes[i], report.Outcomes[j]
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.Architecture < b.Architecture
	})
	return report, nil
}

func buildOne(ctx context.Context, tree *generate.Tree, outputDir string, backend Backend) Outcome {
	r := tree.Rendered
	o := Outcome{Name: r.Name, Architecture: r.Architecture, Version: r.Version}

	if err := ctx.Err(); err != nil {
		o.Err = errs.New(errs.Cancelled, r.Name, err)
		return o
	}

	logx.Info("building %s %s (%s)", r.Name, r.Version, r.Architecture)
	pkg, err := backend.Build(tree)
	if err != nil {
		o.Err = err
		return o
	}

	outPath := filepath.Join(outputDir, r.StandardFilename())
	f, err := os.Create(outPath)
	if err != nil {
		o.Err = errs.New(errs.IOError, outPath, err)
		return o
	}
	defer f.Close()

	if _, err := pkg.WriteTo(f); err != nil {
		o.Err = errs.Wrapf(errs.BuildError, r.Name, "writing %s: %w", outPath, err)
		return o
	}
	o.OutputPath = outPath
	return o
}

// inProcessBackend is the only Backend implemented: it reads tree.SrcDir
// directly and assembles an in-memory deb.Package, per the decision to
// never shell out to dpkg-buildpackage.
type inProcessBackend struct{}

func (inProcessBackend) Build(tree *generate.Tree) (*deb.Package, error) {
	r := tree.Rendered
	pkg := &deb.Package{
		Metadata: metadataFor(r),
	}

	err := filepathWalkFiles(tree.SrcDir, func(relPath string, mode os.FileMode, content []byte) error {
		pkg.Files = append(pkg.Files, deb.File{
			DestPath: "/" + filepath.ToSlash(relPath),
			Mode:     int64(mode.Perm()),
			Body:     string(content),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return pkg, nil
}

func metadataFor(r *blueprint.Rendered) deb.Metadata {
	return deb.Metadata{
		Package:      r.Name,
		Version:      r.DebianVersion(),
		Architecture: r.Architecture,
		Maintainer:   generate.Maintainer,
		Description:  descriptionField(r),
		Section:      "devops",
		Priority:     "optional",
		Homepage:     r.Homepage,
		Depends:      r.Depends,
		Recommends:   r.Recommends,
		Conflicts:    r.Conflicts,
	}
}

func descriptionField(r *blueprint.Rendered) string {
	if r.Description == "" {
		return r.Summary
	}
	return fmt.Sprintf("%s\n%s", r.Summary, r.Description)
}
