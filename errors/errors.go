package errors

import (
	"fmt"
	"strings"
)

// Phase indicates where in linkage the error occurred
type Phase string

const (
	PhaseBuild   Phase = "build"   // adapter program construction
	PhaseLink    Phase = "link"    // call-site and invoker linkage
	PhaseInvoke  Phase = "invoke"  // adapter execution
	PhaseConvert Phase = "convert" // asType retyping
	PhaseLower   Phase = "lower"   // native lowering
	PhaseConfig  Phase = "config"  // configuration loading
	PhaseArchive Phase = "archive" // invoker archive read/write
	PhaseParse   Phase = "parse"   // descriptor and WIT parsing
)

// Kind categorizes the error
type Kind string

const (
	KindSignatureMismatch   Kind = "signature_mismatch"
	KindHeterogeneousSpread Kind = "heterogeneous_spread"
	KindArityLimit          Kind = "arity_limit"
	KindInternal            Kind = "internal"
	KindClassCast           Kind = "class_cast"
	KindInvalidValue        Kind = "invalid_value"
	KindUnsupported         Kind = "unsupported"
	KindNotFound            Kind = "not_found"
	KindInvalidInput        Kind = "invalid_input"
	KindInvalidData         Kind = "invalid_data"
)

// Error is the structured error type used throughout the runtime
type Error struct {
	Value    any
	Cause    error
	Phase    Phase
	Kind     Kind
	Expected string
	Actual   string
	Detail   string
	Path     []string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}

	if e.Expected != "" || e.Actual != "" {
		b.WriteString(": ")
		if e.Expected != "" && e.Actual != "" {
			b.WriteString("expected ")
			b.WriteString(e.Expected)
			b.WriteString(" but found ")
			b.WriteString(e.Actual)
		} else if e.Expected != "" {
			b.WriteString("expected ")
			b.WriteString(e.Expected)
		} else {
			b.WriteString("found ")
			b.WriteString(e.Actual)
		}
	}

	if e.Detail != "" {
		if e.Expected != "" || e.Actual != "" {
			b.WriteString(" - ")
		} else {
			b.WriteString(": ")
		}
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error.
// A target with an empty Phase matches any phase.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		if t.Phase != "" && e.Phase != t.Phase {
			return false
		}
		return e.Kind == t.Kind
	}
	return false
}

// Fatal reports whether the error signals a linkage inconsistency that
// must abort the enclosing request rather than be retried.
func (e *Error) Fatal() bool {
	return e.Kind == KindArityLimit || e.Kind == KindInternal
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Path sets the operand path
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// Expected sets the expected signature or type
func (b *Builder) Expected(s string) *Builder {
	b.err.Expected = s
	return b
}

// Actual sets the signature or type that was found
func (b *Builder) Actual(s string) *Builder {
	b.err.Actual = s
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Sentinels for errors.Is matching across phases.
var (
	ErrSignatureMismatch   = &Error{Kind: KindSignatureMismatch}
	ErrHeterogeneousSpread = &Error{Kind: KindHeterogeneousSpread}
	ErrArityLimit          = &Error{Kind: KindArityLimit}
	ErrInternal            = &Error{Kind: KindInternal}
	ErrClassCast           = &Error{Kind: KindClassCast}
	ErrInvalidValue        = &Error{Kind: KindInvalidValue}
)

// Convenience constructors for common error patterns

// SignatureMismatch creates a wrong-signature error
func SignatureMismatch(phase Phase, expected, actual string) *Error {
	return &Error{
		Phase:    phase,
		Kind:     KindSignatureMismatch,
		Expected: expected,
		Actual:   actual,
	}
}

// HeterogeneousSpread creates an error for non-uniform spread arguments
func HeterogeneousSpread(signature string, from int) *Error {
	return &Error{
		Phase:  PhaseBuild,
		Kind:   KindHeterogeneousSpread,
		Actual: signature,
		Detail: fmt.Sprintf("need homogeneous rest arguments from position %d", from),
	}
}

// ArityLimit creates an error for a slot count above the platform maximum
func ArityLimit(phase Phase, signature string, slots, limit int) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindArityLimit,
		Actual: signature,
		Detail: fmt.Sprintf("parameter slot count %d exceeds %d", slots, limit),
		Value:  slots,
	}
}

// Internal creates an internal consistency error
func Internal(phase Phase, detail string, args ...any) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInternal,
		Detail: fmt.Sprintf(detail, args...),
	}
}

// ClassCast creates a failed reference or unboxing conversion error
func ClassCast(path []string, value any, target string) *Error {
	return &Error{
		Phase:    PhaseConvert,
		Kind:     KindClassCast,
		Path:     path,
		Expected: target,
		Actual:   fmt.Sprintf("%T", value),
		Value:    value,
	}
}

// InvalidValue creates an error for an argument that does not conform to its type
func InvalidValue(phase Phase, path []string, value any, typ string) *Error {
	return &Error{
		Phase:    phase,
		Kind:     KindInvalidValue,
		Path:     path,
		Expected: typ,
		Actual:   fmt.Sprintf("%T", value),
		Value:    value,
	}
}

// Unsupported creates an unsupported operation error
func Unsupported(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnsupported,
		Detail: what,
	}
}

// NotFound creates a not-found error
func NotFound(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Detail: fmt.Sprintf("%s %q not found", what, name),
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// InvalidData creates an invalid data error
func InvalidData(phase Phase, path []string, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidData,
		Path:   path,
		Detail: detail,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}

// ParseFailed creates a parsing error
func ParseFailed(what string, cause error) *Error {
	return &Error{
		Phase:  PhaseParse,
		Kind:   KindInvalidData,
		Detail: fmt.Sprintf("parse %s", what),
		Cause:  cause,
	}
}
