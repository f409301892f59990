package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Phase indicates which component reported the error
type Phase string

const (
	PhaseEnvironment Phase = "environment" // environment creation and sharing
	PhaseStore       Phase = "store"       // store creation
	PhaseModule      Phase = "module"      // module ownership and loading
	PhaseRuntime     Phase = "runtime"     // calls into loaded modules
	PhaseNative      Phase = "native"      // native library operations
	PhaseParse       Phase = "parse"       // wasm binary parsing
)

// Kind categorizes the error
type Kind string

const (
	KindAllocation          Kind = "allocation"
	KindReleased            Kind = "released"
	KindEnvironmentMismatch Kind = "environment_mismatch"
	KindNotFound            Kind = "not_found"
	KindInvalidInput        Kind = "invalid_input"
	KindInvalidData         Kind = "invalid_data"
	KindInstantiation       Kind = "instantiation"
	KindTrap                Kind = "trap"
)

// Error is the structured error type used throughout the bindings
type Error struct {
	Cause    error
	Phase    Phase
	Kind     Kind
	Resource string
	Detail   string
	Handle   uint32
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if e.Resource != "" {
		b.WriteString(" on ")
		b.WriteString(e.Resource)
		if e.Handle != 0 {
			fmt.Fprintf(&b, " #%d", e.Handle)
		}
	}

	if e.Detail != "" {
		b.WriteString(": ")
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
// An empty Phase in target matches any phase.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Phase != "" && t.Phase != e.Phase {
		return false
	}
	return e.Kind == t.Kind
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

// Resource names the resource the error concerns
func (b *Builder) Resource(name string) *Builder {
	b.err.Resource = name
	return b
}

// Handle sets the native handle involved
func (b *Builder) Handle(h uint32) *Builder {
	b.err.Handle = h
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

// Convenience constructors for common error patterns

// AllocationFailed creates an allocation failure error for a native
// creation call that returned a null handle.
func AllocationFailed(phase Phase, resource string) *Error {
	return &Error{
		Phase:    phase,
		Kind:     KindAllocation,
		Resource: resource,
		Detail:   "native library returned a null handle",
	}
}

// Released creates an error for use of a handle after its owner released it
func Released(phase Phase, resource string, cause error) *Error {
	return &Error{
		Phase:    phase,
		Kind:     KindReleased,
		Resource: resource,
		Detail:   "handle already released",
		Cause:    cause,
	}
}

// EnvironmentMismatch creates an error for combining resources that belong
// to different environments.
func EnvironmentMismatch(phase Phase, resource string) *Error {
	return &Error{
		Phase:    phase,
		Kind:     KindEnvironmentMismatch,
		Resource: resource,
		Detail:   "resource belongs to a different environment",
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

// Instantiation creates an instantiation error
func Instantiation(cause error) *Error {
	return &Error{
		Phase:  PhaseModule,
		Kind:   KindInstantiation,
		Detail: "instantiate module",
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

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}

// Is is errors.Is from the standard library.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As is errors.As from the standard library.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// IsKind reports whether any error in err's chain is an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	return errors.Is(err, &Error{Kind: kind})
}

// IsAllocation reports whether err is a native allocation failure.
func IsAllocation(err error) bool {
	return IsKind(err, KindAllocation)
}

// IsReleased reports whether err reports use of a released handle.
func IsReleased(err error) bool {
	return IsKind(err, KindReleased)
}
