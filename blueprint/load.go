package blueprint

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/debforge/debforge/internal/errs"
	"github.com/debforge/debforge/internal/tmpl"
	"go.yaml.in/yaml/v3"
)

// defaultLockfileName is used when the configuration carries no
// `# lockfile=PATH` directive.
const defaultLockfileName = "ops2deb.lock.yml"

// knownBlueprintFields lists the fields a single blueprint mapping may
// declare; anything else is a SchemaError, matching the original
// implementation's `extra = "forbid"` strictness.
var knownBlueprintFields = map[string]bool{
	"name": true, "version": true, "revision": true, "epoch": true,
	"architecture": true, "homepage": true, "summary": true, "description": true,
	"depends": true, "recommends": true, "conflicts": true,
	"fetch": true, "install": true, "script": true, "matrix": true,
	"update_strategy": true, "version_regex": true,
}

// Config is a loaded configuration file: its blueprints, the lockfile path
// it names, and the raw document node retained for format-preserving
// round-trip rewrites (used by update/format).
type Config struct {
	Path         string
	LockfilePath string
	Blueprints   []Blueprint

	leadingComments []string // verbatim comment lines before the document, lockfile directive included
	root            *yaml.Node
}

// Load reads and validates a configuration file, returning its blueprints
// prior to matrix expansion. See Config.Expand for the rendered list.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.New(errs.IOError, path, err)
	}

	cfg := &Config{Path: path, LockfilePath: defaultLockfileName}
	cfg.leadingComments, cfg.LockfilePath = parseLeadingComments(data, filepath.Dir(path))

	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, errs.New(errs.ParseError, path, err)
	}
	if len(root.Content) == 0 {
		return cfg, nil
	}
	cfg.root = root.Content[0]

	var nodes []*yaml.Node
	switch cfg.root.Kind {
	case yaml.MappingNode:
		nodes = []*yaml.Node{cfg.root}
	case yaml.SequenceNode:
		nodes = cfg.root.Content
	default:
		return nil, errs.Wrapf(errs.ParseError, path, "configuration must be a mapping or a sequence of mappings")
	}

	var schemaErrs []string
	env := tmpl.New(nil)
	for i, n := range nodes {
		bp, errsForNode := decodeBlueprint(n, env)
		for _, e := range errsForNode {
			schemaErrs = append(schemaErrs, fmt.Sprintf("blueprint[%d]: %v", i, e))
		}
		bp.sourceFile = path
		cfg.Blueprints = append(cfg.Blueprints, bp)
	}
	if len(schemaErrs) > 0 {
		return nil, errs.Wrapf(errs.SchemaError, path, "%s", strings.Join(schemaErrs, "; "))
	}

	if err := validateBlueprints(cfg.Blueprints); err != nil {
		return nil, err
	}

	return cfg, nil
}

// parseLeadingComments scans the leading `#`-prefixed lines of a
// configuration file, returning them verbatim and resolving the
// `# lockfile=PATH` directive if present (relative to dir).
func parseLeadingComments(data []byte, dir string) ([]string, string) {
	lockfile := defaultLockfileName
	var lines []string
	for _, line := range strings.Split(string(data), "\n") {
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, "#") {
			break
		}
		lines = append(lines, line)
		if rest, ok := strings.CutPrefix(trimmed, "# lockfile="); ok {
			path := strings.TrimSpace(rest)
			if !filepath.IsAbs(path) {
				path = filepath.Join(dir, path)
			}
			lockfile = path
		}
	}
	return lines, lockfile
}

// decodeBlueprint performs the strict-field check, renders any inline
// `{{env(...)}}` in scalar fields against env (so that a numeric field like
// revision can be driven by an environment variable before its type is
// checked), and decodes the mapping into a typed Blueprint.
func decodeBlueprint(n *yaml.Node, env *tmpl.Renderer) (Blueprint, []error) {
	var problems []error
	if n.Kind != yaml.MappingNode {
		return Blueprint{}, []error{fmt.Errorf("expected a mapping")}
	}

	rendered := &yaml.Node{Kind: yaml.MappingNode, Tag: n.Tag}
	for i := 0; i+1 < len(n.Content); i += 2 {
		key := n.Content[i]
		val := n.Content[i+1]
		if !knownBlueprintFields[key.Value] {
			problems = append(problems, fmt.Errorf("unknown field %q", key.Value))
			continue
		}
		renderScalarsInPlace(val, env, &problems)
		rendered.Content = append(rendered.Content, key, val)
	}

	var bp Blueprint
	if err := rendered.Decode(&bp); err != nil {
		problems = append(problems, err)
	}
	if bp.Revision == 0 {
		bp.Revision = 1
	}
	if bp.Architecture == "" {
		bp.Architecture = "amd64"
	}
	return bp, problems
}

// renderScalarsInPlace walks a value node and renders `{{...}}` occurrences
// in every scalar string found, in place, so later strict-typed decoding
// sees the expanded value. This is restricted to env()-only expressions:
// no blueprint field cross-references exist at this stage.
func renderScalarsInPlace(n *yaml.Node, env *tmpl.Renderer, problems *[]error) {
	switch n.Kind {
	case yaml.ScalarNode:
		// Only env() calls are resolved at this stage: {{version}},
		// {{goarch}}, {{target}}, and {{src}} are not yet in scope and remain
		// for Expand/RenderURL/Generate to fill in later.
		if strings.Contains(n.Value, "env(") {
			// Each later-stage variable renders to its own placeholder, so a
			// value mixing env() with them keeps those placeholders intact.
			deferred := env.With(map[string]string{
				"version": "{{version}}", "goarch": "{{goarch}}",
				"target": "{{target}}", "src": "{{src}}",
			})
			out, err := deferred.Render(n.Value, n.Value)
			if err != nil {
				*problems = append(*problems, err)
				return
			}
			n.Value = out
			n.Tag = ""  // let the decoder re-infer the scalar type (e.g. "3" -> int)
			n.Style = 0 // a quoted style would otherwise keep the scalar a !!str
		}
	case yaml.MappingNode, yaml.SequenceNode:
		for _, c := range n.Content {
			renderScalarsInPlace(c, env, problems)
		}
	}
}

func validateBlueprints(bps []Blueprint) error {
	var problems []string
	seen := make(map[string]bool)
	for _, bp := range bps {
		if bp.Name == "" {
			problems = append(problems, "blueprint name is required")
			continue
		}
		if seen[bp.Name] {
			problems = append(problems, fmt.Sprintf("%s: duplicate blueprint name", bp.Name))
		}
		seen[bp.Name] = true

		if bp.Revision <= 0 {
			problems = append(problems, fmt.Sprintf("%s: revision must be positive", bp.Name))
		}
		if bp.Epoch < 0 {
			problems = append(problems, fmt.Sprintf("%s: epoch must be non-negative", bp.Name))
		}
		if bp.Matrix != nil && len(bp.Matrix.Versions) > 0 && bp.Version != "" {
			problems = append(problems, fmt.Sprintf("%s: matrix.versions and top-level version are mutually exclusive", bp.Name))
		}
		if bp.Matrix == nil || len(bp.Matrix.Versions) == 0 {
			if bp.Version == "" {
				problems = append(problems, fmt.Sprintf("%s: version is required when matrix.versions is absent", bp.Name))
			}
		}
		if err := validateFetchTargets(bp); err != nil {
			problems = append(problems, err.Error())
		}
	}
	if len(problems) > 0 {
		return errs.Wrapf(errs.SchemaError, "", "%s", strings.Join(problems, "; "))
	}
	return nil
}

// validateFetchTargets ensures fetch.targets covers every architecture that
// would render {{target}}, per §4.2.
func validateFetchTargets(bp Blueprint) error {
	if bp.Fetch == nil || !strings.Contains(bp.Fetch.URL, "{{target}}") {
		return nil
	}
	architectures := []string{bp.Architecture}
	if bp.Matrix != nil && len(bp.Matrix.Architectures) > 0 {
		architectures = bp.Matrix.Architectures
	}
	for _, a := range architectures {
		if _, ok := bp.Fetch.Targets[a]; !ok {
			return fmt.Errorf("%s: fetch.targets is missing architecture %q referenced by {{target}}", bp.Name, a)
		}
	}
	return nil
}

// Expand renders every blueprint's matrix, returning the full list of
// rendered blueprints in stable order, and enforces the
// (name, version, revision, epoch, architecture) uniqueness invariant.
func (c *Config) Expand() ([]*Rendered, error) {
	var all []*Rendered
	for _, bp := range c.Blueprints {
		list, err := Expand(bp)
		if err != nil {
			return nil, err
		}
		all = append(all, list...)
	}
	if err := ValidateUnique(all); err != nil {
		return nil, err
	}
	return all, nil
}

// tmplNoVars returns a renderer with no variables, used wherever a
// blueprint mapping is re-decoded outside the initial Load pass.
func tmplNoVars() *tmpl.Renderer { return tmpl.New(nil) }
