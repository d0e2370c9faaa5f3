package domain

import (
	"fmt"
	"strings"
	"testing"

	"github.com/pkg/errors"
)

func TestDispatchErrorKinds(t *testing.T) {
	tests := []struct {
		name     string
		err      *DispatchError
		kind     ErrorKind
		contains string
	}{
		{
			name:     "Unknown operation",
			err:      NewUnknownOperationError("drop_everything"),
			kind:     UnknownOperation,
			contains: "Unknown tool: drop_everything",
		},
		{
			name:     "Missing argument",
			err:      NewMissingArgumentError("query", "Missing SQL query"),
			kind:     MissingArgument,
			contains: "Missing SQL query",
		},
		{
			name:     "Invalid argument",
			err:      NewInvalidArgumentError("table_name", "string"),
			kind:     InvalidArgument,
			contains: "table_name",
		},
		{
			name:     "Resource not found",
			err:      NewResourceNotFoundError("nonexistent"),
			kind:     NotFound,
			contains: "Dataset not found: nonexistent",
		},
		{
			name:     "Unsupported scheme",
			err:      NewUnsupportedSchemeError("invalid"),
			kind:     UnsupportedScheme,
			contains: "Unsupported URI scheme: invalid",
		},
		{
			name:     "Store unavailable",
			err:      NewStoreUnavailableError(fmt.Errorf("lock wait exceeded")),
			kind:     StoreUnavailable,
			contains: "lock wait exceeded",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Kind != tt.kind {
				t.Errorf("Kind = %v, want %v", tt.err.Kind, tt.kind)
			}
			if !strings.Contains(tt.err.Error(), tt.contains) {
				t.Errorf("Error() = %q, want it to contain %q", tt.err.Error(), tt.contains)
			}
			if !IsKind(tt.err, tt.kind) {
				t.Errorf("IsKind(%v) = false", tt.kind)
			}
		})
	}
}

func TestKindOfWrapped(t *testing.T) {
	err := errors.Wrap(NewResourceNotFoundError("orders"), "read resource")

	kind, ok := KindOf(err)
	if !ok {
		t.Fatal("KindOf() did not find the dispatch error")
	}
	if kind != NotFound {
		t.Errorf("KindOf() = %v, want %v", kind, NotFound)
	}
}

func TestKindOfPlainError(t *testing.T) {
	if _, ok := KindOf(fmt.Errorf("boom")); ok {
		t.Error("KindOf() should not classify plain errors")
	}
	if IsStoreUnavailable(nil) {
		t.Error("IsStoreUnavailable(nil) = true")
	}
}

func TestStoreUnavailableUnwrap(t *testing.T) {
	cause := fmt.Errorf("deadline exceeded")
	err := NewStoreUnavailableError(cause)

	if !errors.Is(err, cause) {
		t.Error("StoreUnavailable error should unwrap to its cause")
	}
}

func TestErrorKindString(t *testing.T) {
	if UnsupportedScheme.String() != "unsupported_scheme" {
		t.Errorf("String() = %q", UnsupportedScheme.String())
	}
	if ErrorKind(99).String() != "unknown" {
		t.Errorf("String() = %q", ErrorKind(99).String())
	}
}
