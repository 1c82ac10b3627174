package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// Phase indicates which component raised the error
type Phase string

const (
	PhaseArray  Phase = "array"
	PhaseHash   Phase = "hash"
	PhaseStream Phase = "stream"
	PhaseDate   Phase = "date"
	PhaseCodec  Phase = "codec"
	PhasePool   Phase = "pool"
	PhaseEngine Phase = "engine"
)

// Kind categorizes the error
type Kind string

const (
	KindKeyNotFound      Kind = "key_not_found"
	KindOutOfBounds      Kind = "index_out_of_range"
	KindTypeConsistency  Kind = "type_consistency"
	KindNativeCall       Kind = "native_call_failure"
	KindCallbackContract Kind = "callback_contract_violation"
	KindPoolDestroyed    Kind = "pool_destroyed"
	KindInvalidInput     Kind = "invalid_input"
	KindUnsupported      Kind = "unsupported"
)

// Sentinels for errors.Is. They match any Error of the same Kind.
var (
	ErrKeyNotFound      = &Error{Kind: KindKeyNotFound}
	ErrIndexOutOfRange  = &Error{Kind: KindOutOfBounds}
	ErrTypeConsistency  = &Error{Kind: KindTypeConsistency}
	ErrNativeCall       = &Error{Kind: KindNativeCall}
	ErrCallbackContract = &Error{Kind: KindCallbackContract}
	ErrPoolDestroyed    = &Error{Kind: KindPoolDestroyed}
	ErrInvalidInput     = &Error{Kind: KindInvalidInput}
	ErrUnsupported      = &Error{Kind: KindUnsupported}
)

// Error is the structured error type used throughout the module
type Error struct {
	Value  any
	Cause  error
	Phase  Phase
	Kind   Kind
	Op     string
	Detail string
	// Status is the native status code for KindNativeCall, 0 otherwise.
	Status int
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	if e.Phase != "" {
		b.WriteByte('[')
		b.WriteString(string(e.Phase))
		b.WriteString("] ")
	}
	b.WriteString(string(e.Kind))

	if e.Op != "" {
		b.WriteString(" in ")
		b.WriteString(e.Op)
	}

	if e.Status != 0 {
		fmt.Fprintf(&b, " (status %d)", e.Status)
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

// Is reports whether target matches this error. A target without a phase
// matches on kind alone.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if e.Kind != t.Kind {
		return false
	}
	return t.Phase == "" || t.Phase == e.Phase
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

// Op sets the failing operation name
func (b *Builder) Op(op string) *Builder {
	b.err.Op = op
	return b
}

// Status sets the native status code
func (b *Builder) Status(code int) *Builder {
	b.err.Status = code
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

// Convenience constructors for common error patterns

// KeyNotFound creates a missing key error. The key is kept as a copy.
func KeyNotFound(phase Phase, key []byte) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindKeyNotFound,
		Detail: fmt.Sprintf("key %q not found", key),
		Value:  append([]byte(nil), key...),
	}
}

// OutOfBounds creates an index out of range error
func OutOfBounds(phase Phase, op string, index, length int) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOutOfBounds,
		Op:     op,
		Detail: fmt.Sprintf("index %d out of range (length %d)", index, length),
		Value:  index,
	}
}

// RegionOutOfBounds creates an out of range error for a [start, end) region
func RegionOutOfBounds(phase Phase, op string, start, end, length int) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOutOfBounds,
		Op:     op,
		Detail: fmt.Sprintf("region [%d, %d) invalid (length %d)", start, end, length),
		Value:  [2]int{start, end},
	}
}

// TypeConsistency creates an element size mismatch error
func TypeConsistency(phase Phase, typeName string, want, got uint32) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindTypeConsistency,
		Detail: fmt.Sprintf("element type %s has size %d, native structure has %d", typeName, want, got),
	}
}

// NativeCall creates a native primitive failure, preserving its status code
func NativeCall(phase Phase, op string, status int, statusText string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNativeCall,
		Op:     op,
		Status: status,
		Detail: statusText,
	}
}

// CallbackContract creates a fatal callback contract violation
func CallbackContract(phase Phase, op string, cause error) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindCallbackContract,
		Op:     op,
		Detail: "callback failed without a native status to report it",
		Cause:  cause,
	}
}

// PoolDestroyed creates a use-after-destroy error
func PoolDestroyed(phase Phase, op string, cause error) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindPoolDestroyed,
		Op:     op,
		Detail: "owning pool has been destroyed or cleared",
		Cause:  cause,
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

// Unsupported creates an unsupported operation error
func Unsupported(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnsupported,
		Detail: what,
	}
}

// Is forwards to the standard library so callers need a single import.
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// As forwards to the standard library so callers need a single import.
func As(err error, target any) bool {
	return stderrors.As(err, target)
}
