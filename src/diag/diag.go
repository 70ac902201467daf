// Package diag implements the error taxonomy of spec §7. No error is
// recovered inside the core; every Fatal aborts the run and is converted by
// the pipeline driver into a non-zero-exit-equivalent error return.
package diag

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/pkg/errors"
)

// Category is one of the four fatal-error classes spec §7 names.
type Category int

const (
	// InputInvalid: the ASG shape violates an assumed invariant (unknown
	// cast kind, missing type).
	InputInvalid Category = iota
	// InternalInconsistency: a pass violated its own precondition (e.g. a
	// phi missing an incoming value for a predecessor).
	InternalInconsistency
	// OutOfRangeInit: an initializer list is longer than its array's
	// capacity.
	OutOfRangeInit
	// UnsupportedConstruct: a well-formed but unimplemented ASG variant
	// was reached.
	UnsupportedConstruct
)

func (c Category) String() string {
	switch c {
	case InputInvalid:
		return "input-invalid"
	case InternalInconsistency:
		return "internal-inconsistency"
	case OutOfRangeInit:
		return "out-of-range-initializer"
	case UnsupportedConstruct:
		return "unsupported-construct"
	default:
		return "unknown"
	}
}

// Fatal is a fatal diagnostic. It wraps the triggering condition with
// github.com/pkg/errors so callers that bubble it up keep a stack trace
// back to the offending pass, the same idiom
// golint-fixer-exp/cmd/bin2ll/ll.go uses around its own translation errors.
type Fatal struct {
	Category Category
	Decl     string // declaration name, when relevant (e.g. OutOfRangeInit)
	cause    error
}

func (f *Fatal) Error() string {
	if f.Decl != "" {
		return fmt.Sprintf("%s: %s: %s", f.Category, f.Decl, f.cause)
	}
	return fmt.Sprintf("%s: %s", f.Category, f.cause)
}

func (f *Fatal) Unwrap() error { return f.cause }

// New builds a Fatal of the given category with a formatted message.
func New(cat Category, format string, args ...interface{}) *Fatal {
	return &Fatal{Category: cat, cause: errors.Errorf(format, args...)}
}

// NewWithDecl is New plus the declaration name the error carries (spec §7:
// "diagnostic carries declaration name").
func NewWithDecl(cat Category, decl string, format string, args ...interface{}) *Fatal {
	return &Fatal{Category: cat, Decl: decl, cause: errors.Errorf(format, args...)}
}

// Wrap attaches cat and a stack trace to an existing error, or returns nil
// if err is nil.
func Wrap(cat Category, err error, message string) *Fatal {
	if err == nil {
		return nil
	}
	return &Fatal{Category: cat, cause: errors.Wrap(err, message)}
}

// Report returns a colorized, human-readable rendering of a fatal error as
// a string for the caller to print or log. Grounded on the terminal-color
// idiom both kanso and ailang pull in independently.
func Report(f *Fatal) string {
	red := color.New(color.FgRed, color.Bold)
	return red.Sprintf("fatal[%s]: ", f.Category) + f.Error()
}
