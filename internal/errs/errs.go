// Package errs defines the error-kind taxonomy shared by every index
// component: a small closed set of terminal conditions rather than a
// generic numeric registry, since this repo has no user-facing error
// catalog to render.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies the terminal condition that ended an operation.
type Kind int

const (
	Unknown Kind = iota
	NotInitialized
	NotTrained
	DuplicateVector
	DimensionMismatch
	InsufficientTrainingData
	InconsistentDimensions
	ChunkLoadError
	FilterUnsupportedOperator
	FilterInvalidSyntax
	PersistenceStorage
	PersistenceSerialization
	PersistenceIncompatibleVersion
	PersistenceIntegrityError
	PersistenceMissingComponent
	NotFound
)

func (k Kind) String() string {
	switch k {
	case NotInitialized:
		return "NotInitialized"
	case NotTrained:
		return "NotTrained"
	case DuplicateVector:
		return "DuplicateVector"
	case DimensionMismatch:
		return "DimensionMismatch"
	case InsufficientTrainingData:
		return "InsufficientTrainingData"
	case InconsistentDimensions:
		return "InconsistentDimensions"
	case ChunkLoadError:
		return "ChunkLoadError"
	case FilterUnsupportedOperator:
		return "FilterUnsupportedOperator"
	case FilterInvalidSyntax:
		return "FilterInvalidSyntax"
	case PersistenceStorage:
		return "PersistenceStorage"
	case PersistenceSerialization:
		return "PersistenceSerialization"
	case PersistenceIncompatibleVersion:
		return "PersistenceIncompatibleVersion"
	case PersistenceIntegrityError:
		return "PersistenceIntegrityError"
	case PersistenceMissingComponent:
		return "PersistenceMissingComponent"
	case NotFound:
		return "NotFound"
	default:
		return "Unknown"
	}
}

// Error is the concrete error type raised by every component in this
// module. Op names the failing operation (e.g. "hnsw.Insert");
// the wrapped Err, if present, supports errors.Unwrap.
type Error struct {
	Kind Kind
	Op   string
	Err  error

	// Structured fields, populated as relevant to Kind.
	VectorID string
	Expected int
	Actual   int
	Got      int
	Need     int
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	switch e.Kind {
	case DuplicateVector:
		msg += fmt.Sprintf(" (id=%s)", e.VectorID)
	case DimensionMismatch, PersistenceIncompatibleVersion:
		msg += fmt.Sprintf(" (expected=%d, actual=%d)", e.Expected, e.Actual)
	case InsufficientTrainingData:
		msg += fmt.Sprintf(" (got=%d, need=%d)", e.Got, e.Need)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is supports errors.Is(err, &Error{Kind: X}) for kind comparison.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

func New(kind Kind, op string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Err: cause}
}

func NotInitializedErr(op string) *Error {
	return &Error{Kind: NotInitialized, Op: op}
}

func NotTrainedErr(op string) *Error {
	return &Error{Kind: NotTrained, Op: op}
}

func DuplicateVectorErr(op, id string) *Error {
	return &Error{Kind: DuplicateVector, Op: op, VectorID: id}
}

func DimensionMismatchErr(op string, expected, actual int) *Error {
	return &Error{Kind: DimensionMismatch, Op: op, Expected: expected, Actual: actual}
}

func InsufficientTrainingDataErr(op string, got, need int) *Error {
	return &Error{Kind: InsufficientTrainingData, Op: op, Got: got, Need: need}
}

func InconsistentDimensionsErr(op string) *Error {
	return &Error{Kind: InconsistentDimensions, Op: op}
}

func ChunkLoadErr(op string, cause error) *Error {
	return &Error{Kind: ChunkLoadError, Op: op, Err: cause}
}

func NotFoundErr(op string) *Error {
	return &Error{Kind: NotFound, Op: op}
}

// PersistenceErr wraps a storage/serialization/integrity failure under
// the given kind, one of the PersistenceXxx constants.
func PersistenceErr(kind Kind, op string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Err: cause}
}

// IncompatibleVersionErr reports a persisted metadata version newer
// than this build's CurrentVersion.
func IncompatibleVersionErr(op string, expected, actual int) *Error {
	return &Error{Kind: PersistenceIncompatibleVersion, Op: op, Expected: expected, Actual: actual}
}

// Of reports whether err (or something it wraps) carries the given Kind.
func Of(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
