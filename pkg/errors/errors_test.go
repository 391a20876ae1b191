package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDomainError_Creation(t *testing.T) {
	cause := errors.New("underlying error")

	err := NewLockTimeoutError("cannot create lock directory", cause)

	assert.Equal(t, ErrorTypeLockTimeout, err.Type)
	assert.Equal(t, "cannot create lock directory", err.Message)
	assert.Equal(t, cause, err.Cause)
	assert.NotNil(t, err.Context)
}

func TestDomainError_WithContext(t *testing.T) {
	err := NewStopTimeoutError("process still running", nil)

	err = err.WithContext("service", "fooservice")
	err = err.WithContext("pid", 12345)

	assert.Equal(t, "fooservice", err.Context["service"])
	assert.Equal(t, 12345, err.Context["pid"])
}

func TestDomainError_ErrorMessage(t *testing.T) {
	tests := []struct {
		name     string
		error    *DomainError
		expected string
	}{
		{
			name:     "error without cause",
			error:    NewTemplateConvergenceError("could not substitute values after 10 runs", nil),
			expected: "template_convergence: could not substitute values after 10 runs",
		},
		{
			name:     "error with cause",
			error:    NewPropertiesIOError("cannot open file", errors.New("permission denied")),
			expected: "properties_io: cannot open file: permission denied",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.error.Error())
		})
	}
}

func TestDomainError_TypeChecking(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		check func(error) bool
	}{
		{"lock timeout", NewLockTimeoutError("x", nil), IsLockTimeoutError},
		{"lock release", NewLockReleaseError("x", nil), IsLockReleaseError},
		{"template key", NewTemplateKeyNotFoundError("x", nil), IsTemplateKeyNotFoundError},
		{"template convergence", NewTemplateConvergenceError("x", nil), IsTemplateConvergenceError},
		{"properties io", NewPropertiesIOError("x", nil), IsPropertiesIOError},
		{"invalid service", NewInvalidServiceConfigError("x", nil), IsInvalidServiceConfigError},
		{"start verification", NewStartVerificationError("x", nil), IsStartVerificationError},
		{"stop timeout", NewStopTimeoutError("x", nil), IsStopTimeoutError},
		{"setup required", NewSetupRequiredError("x", nil), IsSetupRequiredError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, tt.check(tt.err))
			assert.False(t, IsValidationError(tt.err))
		})
	}
}

func TestDomainError_WrappedChecking(t *testing.T) {
	inner := NewLockTimeoutError("lock busy", nil)
	wrapped := fmt.Errorf("starting fooservice: %w", inner)

	assert.True(t, IsLockTimeoutError(wrapped))
	assert.True(t, errors.Is(wrapped, &DomainError{Type: ErrorTypeLockTimeout}))
	assert.False(t, errors.Is(wrapped, &DomainError{Type: ErrorTypeLockRelease}))
}

func TestErrorCollection(t *testing.T) {
	collection := NewErrorCollection()
	assert.False(t, collection.HasErrors())
	assert.NoError(t, collection.ToError())

	collection.Add(nil)
	assert.False(t, collection.HasErrors())

	first := NewStopTimeoutError("still running", nil)
	collection.Add(first)
	assert.Equal(t, first, collection.ToError())

	collection.Add(NewLockReleaseError("cannot remove lock", nil))
	err := collection.ToError()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 errors occurred")
	assert.True(t, IsStopTimeoutError(err))
	assert.True(t, IsLockReleaseError(err))
}
