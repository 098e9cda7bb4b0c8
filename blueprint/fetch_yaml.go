package blueprint

import (
	"fmt"

	"go.yaml.in/yaml/v3"
)

// UnmarshalYAML implements the fetch union: either a bare URL string or an
// object `{url, targets}` (current form) or the legacy `{url, sha256}` /
// `{url, sha256: {arch: hash}}` form consumed by migrate.
func (f *Fetch) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		f.URL = node.Value
		return nil
	}
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("fetch: expected a URL string or a mapping, got %v", node.Kind)
	}

	for i := 0; i+1 < len(node.Content); i += 2 {
		key := node.Content[i].Value
		val := node.Content[i+1]
		switch key {
		case "url":
			f.URL = val.Value
		case "targets":
			if err := val.Decode(&f.Targets); err != nil {
				return fmt.Errorf("fetch.targets: %w", err)
			}
		case "sha256":
			switch val.Kind {
			case yaml.ScalarNode:
				f.LegacySHA256 = val.Value
			case yaml.MappingNode:
				if err := val.Decode(&f.LegacySHA256PerArch); err != nil {
					return fmt.Errorf("fetch.sha256: %w", err)
				}
			default:
				return fmt.Errorf("fetch.sha256: unsupported shape %v", val.Kind)
			}
		default:
			return fmt.Errorf("fetch: unknown field %q", key)
		}
	}
	return nil
}

// MarshalYAML renders fetch back as the canonical (non-legacy) object shape,
// or a bare string when no targets are set, for the formatter's round trip.
func (f Fetch) MarshalYAML() (any, error) {
	if len(f.Targets) == 0 {
		return f.URL, nil
	}
	return struct {
		URL     string            `yaml:"url"`
		Targets map[string]string `yaml:"targets"`
	}{f.URL, f.Targets}, nil
}

// UnmarshalYAML implements the install-entry union: "SRC:DST", "dir/", or
// an object `{path, content}`.
func (e *InstallEntry) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		s := node.Value
		if len(s) > 0 && s[len(s)-1] == '/' {
			e.RecursiveDir = s
			return nil
		}
		e.Copy = s
		return nil
	}
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("install: expected a string or a {path, content} mapping, got %v", node.Kind)
	}
	var obj struct {
		Path    string `yaml:"path"`
		Content string `yaml:"content"`
	}
	if err := node.Decode(&obj); err != nil {
		return err
	}
	e.Path, e.Content = obj.Path, obj.Content
	return nil
}

// MarshalYAML renders an InstallEntry back to its canonical declared shape.
func (e InstallEntry) MarshalYAML() (any, error) {
	if e.Path != "" {
		return struct {
			Path    string `yaml:"path"`
			Content string `yaml:"content"`
		}{e.Path, e.Content}, nil
	}
	if e.RecursiveDir != "" {
		return e.RecursiveDir, nil
	}
	return e.Copy, nil
}
