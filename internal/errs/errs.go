// Package errs defines the typed error taxonomy shared by every stage of the
// pipeline: parsing, templating, fetching, building, and updating.
package errs

import "fmt"

// Kind identifies one of the stable error classes. Each kind maps to an exit
// code at the CLI boundary.
type Kind string

const (
	ParseError       Kind = "ParseError"
	SchemaError      Kind = "SchemaError"
	TemplateError    Kind = "TemplateError"
	NetworkError     Kind = "NetworkError"
	HashMissing      Kind = "HashMissing"
	HashMismatch     Kind = "HashMismatch"
	ArchiveError     Kind = "ArchiveError"
	UnsupportedFmt   Kind = "UnsupportedFormat"
	ScriptError      Kind = "ScriptError"
	BuildError       Kind = "BuildError"
	IOError          Kind = "IOError"
	Cancelled        Kind = "Cancelled"
)

// Error wraps an underlying cause with a stable Kind and the blueprint
// coordinates (when known) that the error should be reported against.
type Error struct {
	Kind    Kind
	Subject string // e.g. "(demo, 1.0.0, amd64) generate"
	Err     error
}

func (e *Error) Error() string {
	if e.Subject == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Subject, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an *Error for kind, wrapping err with optional subject context.
func New(kind Kind, subject string, err error) *Error {
	return &Error{Kind: kind, Subject: subject, Err: err}
}

// Wrapf is a convenience constructor that formats err like fmt.Errorf and
// tags it with kind.
func Wrapf(kind Kind, subject, format string, args ...any) *Error {
	return &Error{Kind: kind, Subject: subject, Err: fmt.Errorf(format, args...)}
}

// ExitCode maps a Kind to the process exit status described by the CLI
// surface: 0 success, 1 generic, 2 config/schema, 3 lockfile/hash, 4 build,
// 77 interrupted.
func ExitCode(kind Kind) int {
	switch kind {
	case ParseError, SchemaError, TemplateError:
		return 2
	case HashMissing, HashMismatch:
		return 3
	case BuildError, ScriptError:
		return 4
	case Cancelled:
		return 77
	default:
		return 1
	}
}

// KindOf walks err's Unwrap chain looking for an *Error and returns its Kind,
// or "" if none is found.
func KindOf(err error) Kind {
	for err != nil {
		if e, ok := err.(*Error); ok {
			return e.Kind
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	return ""
}
