package blueprint

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/debforge/debforge/internal/errs"
	"go.yaml.in/yaml/v3"
)

// Save rewrites the configuration file, preserving the leading comment
// block (including `# lockfile=PATH`) and, whenever a node tree is
// available (the common case: Load always keeps one), the original node
// styles, key order, and blank lines. Writes are atomic: a sibling temp
// file is written and fsynced, then renamed over the destination.
func (c *Config) Save() error {
	var body []byte
	if c.root != nil {
		out, err := yaml.Marshal(c.root)
		if err != nil {
			return errs.New(errs.IOError, c.Path, err)
		}
		body = out
	} else {
		out, err := yaml.Marshal(c.Blueprints)
		if err != nil {
			return errs.New(errs.IOError, c.Path, err)
		}
		body = out
	}

	var full bytes.Buffer
	for _, line := range c.leadingComments {
		full.WriteString(line)
		full.WriteString("\n")
	}
	full.Write(body)

	return atomicWrite(c.Path, full.Bytes())
}

// atomicWrite writes data to a sibling temp file, fsyncs it, and renames it
// over path, so a crash never leaves a truncated file (§4.3, §8 invariant 4).
func atomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return errs.New(errs.IOError, path, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errs.New(errs.IOError, path, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return errs.New(errs.IOError, path, err)
	}
	if err := tmp.Close(); err != nil {
		return errs.New(errs.IOError, path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return errs.New(errs.IOError, path, err)
	}
	return nil
}

// SetVersion rewrites the `version` scalar of the named blueprint in place
// on the retained node tree (preserving comments, key order, and quoting
// style elsewhere in the document), for use by the updater (§4.7).
func (c *Config) SetVersion(name, newVersion string) error {
	node, ok := c.findBlueprintNode(name)
	if !ok {
		return fmt.Errorf("blueprint %q not found", name)
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == "version" {
			node.Content[i+1].SetString(newVersion)
			return c.syncTyped()
		}
	}
	// No existing version key (matrix-only blueprint): append one.
	keyNode := &yaml.Node{Kind: yaml.ScalarNode, Value: "version"}
	valNode := &yaml.Node{Kind: yaml.ScalarNode}
	valNode.SetString(newVersion)
	node.Content = append(node.Content, keyNode, valNode)
	return c.syncTyped()
}

func (c *Config) findBlueprintNode(name string) (*yaml.Node, bool) {
	if c.root == nil {
		return nil, false
	}
	var candidates []*yaml.Node
	switch c.root.Kind {
	case yaml.MappingNode:
		candidates = []*yaml.Node{c.root}
	case yaml.SequenceNode:
		candidates = c.root.Content
	}
	for _, n := range candidates {
		for i := 0; i+1 < len(n.Content); i += 2 {
			if n.Content[i].Value == "name" && n.Content[i+1].Value == name {
				return n, true
			}
		}
	}
	return nil, false
}

// syncTyped re-decodes the node tree back into c.Blueprints so in-memory
// callers observe the edit immediately.
func (c *Config) syncTyped() error {
	bps, err := decodeAllNodes(c.root)
	if err != nil {
		return err
	}
	for i := range bps {
		bps[i].sourceFile = c.Path
	}
	c.Blueprints = bps
	return nil
}

func decodeAllNodes(root *yaml.Node) ([]Blueprint, error) {
	if root == nil {
		return nil, nil
	}
	var nodes []*yaml.Node
	switch root.Kind {
	case yaml.MappingNode:
		nodes = []*yaml.Node{root}
	case yaml.SequenceNode:
		nodes = root.Content
	}
	var out []Blueprint
	var problems []string
	env := tmplNoVars()
	for i, n := range nodes {
		bp, errsForNode := decodeBlueprint(n, env)
		for _, e := range errsForNode {
			problems = append(problems, fmt.Sprintf("blueprint[%d]: %v", i, e))
		}
		out = append(out, bp)
	}
	if len(problems) > 0 {
		return nil, errs.Wrapf(errs.SchemaError, "", "%s", strings.Join(problems, "; "))
	}
	return out, nil
}
