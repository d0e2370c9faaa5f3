package domain

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrorKind classifies request-shape failures raised by the dispatcher.
type ErrorKind int

const (
	// UnknownOperation indicates a tool name outside the supported set.
	UnknownOperation ErrorKind = iota
	// MissingArgument indicates a required argument was absent or empty.
	MissingArgument
	// InvalidArgument indicates an argument had the wrong type.
	InvalidArgument
	// NotFound indicates an addressed resource does not exist.
	NotFound
	// UnsupportedScheme indicates a resource URI with an unknown scheme.
	UnsupportedScheme
	// StoreUnavailable indicates the dataset store could not be reached in time.
	StoreUnavailable
)

// String returns the kind name.
func (k ErrorKind) String() string {
	switch k {
	case UnknownOperation:
		return "unknown_operation"
	case MissingArgument:
		return "missing_argument"
	case InvalidArgument:
		return "invalid_argument"
	case NotFound:
		return "not_found"
	case UnsupportedScheme:
		return "unsupported_scheme"
	case StoreUnavailable:
		return "store_unavailable"
	default:
		return "unknown"
	}
}

// DispatchError is raised for malformed requests. Query failures are never
// DispatchErrors; they travel in QueryResult.Error.
type DispatchError struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

// Error returns the error message.
func (e *DispatchError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause.
func (e *DispatchError) Unwrap() error {
	return e.Cause
}

// NewUnknownOperationError creates an UnknownOperation error.
func NewUnknownOperationError(name string) *DispatchError {
	return &DispatchError{
		Kind:    UnknownOperation,
		Message: fmt.Sprintf("Unknown tool: %s", name),
	}
}

// NewMissingArgumentError creates a MissingArgument error.
func NewMissingArgumentError(argument, message string) *DispatchError {
	return &DispatchError{
		Kind:    MissingArgument,
		Message: fmt.Sprintf("%s (argument %q is required)", message, argument),
	}
}

// NewInvalidArgumentError creates an InvalidArgument error.
func NewInvalidArgumentError(argument, expected string) *DispatchError {
	return &DispatchError{
		Kind:    InvalidArgument,
		Message: fmt.Sprintf("argument %q must be a %s", argument, expected),
	}
}

// NewResourceNotFoundError creates a NotFound error for a dataset.
func NewResourceNotFoundError(dataset string) *DispatchError {
	return &DispatchError{
		Kind:    NotFound,
		Message: fmt.Sprintf("Dataset not found: %s", dataset),
	}
}

// NewUnsupportedSchemeError creates an UnsupportedScheme error.
func NewUnsupportedSchemeError(scheme string) *DispatchError {
	return &DispatchError{
		Kind:    UnsupportedScheme,
		Message: fmt.Sprintf("Unsupported URI scheme: %s", scheme),
	}
}

// NewStoreUnavailableError creates a StoreUnavailable error.
func NewStoreUnavailableError(cause error) *DispatchError {
	return &DispatchError{
		Kind:    StoreUnavailable,
		Message: "dataset store unavailable",
		Cause:   cause,
	}
}

// KindOf reports the kind of a DispatchError anywhere in err's chain.
func KindOf(err error) (ErrorKind, bool) {
	var de *DispatchError
	if errors.As(err, &de) {
		return de.Kind, true
	}
	return 0, false
}

// IsKind checks whether err is a DispatchError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}

// IsStoreUnavailable checks if an error is a StoreUnavailable error.
func IsStoreUnavailable(err error) bool {
	return IsKind(err, StoreUnavailable)
}
