// Package tmpl implements the small Jinja-brace-subset renderer used to
// expand blueprint fields.
//
// Recognised syntax is `{{ expr }}` where expr is either a bare identifier
// or a call `env("NAME")` / `env("NAME", "default")`. This is deliberately
// not a general-purpose template language: Go's text/template cannot parse
// the quoted-argument call convention `env("NAME","default")` through its
// space-separated pipeline syntax, so this package hand-rolls the single
// grammar the blueprint schema actually needs. Rendering is one left-to-right
// pass, non-recursive: a substituted value is never re-scanned for further
// `{{ }}` occurrences.
package tmpl

import (
	"fmt"
	"os"
	"strings"

	"github.com/debforge/debforge/internal/errs"
)

// Renderer holds a scope of named string variables available to `{{ident}}`.
type Renderer struct {
	vars map[string]string
}

// New creates a Renderer over the given variable scope. The map is copied.
func New(vars map[string]string) *Renderer {
	r := &Renderer{vars: make(map[string]string, len(vars))}
	for k, v := range vars {
		r.vars[k] = v
	}
	return r
}

// With returns a derived Renderer whose scope is the receiver's variables
// overridden by locals, mirroring how a blueprint's per-field renders see
// global defines overridden by the current context (e.g. `{{src}}`).
func (r *Renderer) With(locals map[string]string) *Renderer {
	merged := make(map[string]string, len(r.vars)+len(locals))
	for k, v := range r.vars {
		merged[k] = v
	}
	for k, v := range locals {
		merged[k] = v
	}
	return &Renderer{vars: merged}
}

// Render expands every `{{ expr }}` occurrence in text. name identifies the
// field being rendered, used only for error messages. An undefined
// identifier, an `env()` call naming an unset variable with no default, or
// a malformed expression fails with a TemplateError.
func (r *Renderer) Render(name, text string) (string, error) {
	if !strings.Contains(text, "{{") {
		return text, nil
	}

	var out strings.Builder
	rest := text
	for {
		start := strings.Index(rest, "{{")
		if start == -1 {
			out.WriteString(rest)
			break
		}
		out.WriteString(rest[:start])
		rest = rest[start+2:]

		end := strings.Index(rest, "}}")
		if end == -1 {
			return "", errs.Wrapf(errs.TemplateError, name, "unterminated {{ in %q", text)
		}
		expr := strings.TrimSpace(rest[:end])
		rest = rest[end+2:]

		val, err := r.eval(expr)
		if err != nil {
			return "", errs.Wrapf(errs.TemplateError, name, "%w", err)
		}
		out.WriteString(val)
	}
	return out.String(), nil
}

// eval resolves one brace expression: a bare identifier or env("N","d").
func (r *Renderer) eval(expr string) (string, error) {
	if strings.HasPrefix(expr, "env(") && strings.HasSuffix(expr, ")") {
		return r.evalEnv(expr[len("env(") : len(expr)-1])
	}
	if !isIdentifier(expr) {
		return "", fmt.Errorf("invalid template expression %q", expr)
	}
	v, ok := r.vars[expr]
	if !ok {
		return "", fmt.Errorf("undefined variable %q", expr)
	}
	return v, nil
}

func (r *Renderer) evalEnv(args string) (string, error) {
	parts, err := splitQuotedArgs(args)
	if err != nil {
		return "", fmt.Errorf("env(): %w", err)
	}
	if len(parts) < 1 || len(parts) > 2 {
		return "", fmt.Errorf("env() takes 1 or 2 arguments, got %d", len(parts))
	}
	name := parts[0]
	if v, ok := os.LookupEnv(name); ok {
		return v, nil
	}
	if len(parts) == 2 {
		return parts[1], nil
	}
	return "", fmt.Errorf("environment variable %q is not set and no default was given", name)
}

// splitQuotedArgs parses a comma-separated list of double-quoted string
// literals, e.g. `"NAME", "default"` -> ["NAME", "default"].
func splitQuotedArgs(s string) ([]string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	var args []string
	for len(s) > 0 {
		if s[0] != '"' {
			return nil, fmt.Errorf("expected quoted string argument, got %q", s)
		}
		end := strings.IndexByte(s[1:], '"')
		if end == -1 {
			return nil, fmt.Errorf("unterminated string literal in %q", s)
		}
		args = append(args, s[1:1+end])
		s = strings.TrimSpace(s[1+end+1:])
		if len(s) == 0 {
			break
		}
		if s[0] != ',' {
			return nil, fmt.Errorf("expected ',' between arguments, got %q", s)
		}
		s = strings.TrimSpace(s[1:])
	}
	return args, nil
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, c := range s {
		isAlpha := (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '_'
		isDigit := c >= '0' && c <= '9'
		if i == 0 && !isAlpha {
			return false
		}
		if !isAlpha && !isDigit {
			return false
		}
	}
	return true
}
