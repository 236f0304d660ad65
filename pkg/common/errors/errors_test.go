package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestCommonErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"ErrClosed", ErrClosed, "resource is closed"},
		{"ErrAlreadyStarted", ErrAlreadyStarted, "already started"},
		{"ErrAlreadyRegistered", ErrAlreadyRegistered, "unit already registered"},
		{"ErrInvalidConfiguration", ErrInvalidConfiguration, "invalid configuration"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err == nil {
				t.Fatal("error should not be nil")
			}
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestValidationError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *ValidationError
		want string
	}{
		{
			name: "without hint",
			err: &ValidationError{
				Module: "hosting",
				Field:  "gracePeriod",
				Value:  -1,
				Reason: "must be positive",
			},
			want: "hosting: invalid gracePeriod=-1 (must be positive)",
		},
		{
			name: "with hint",
			err: &ValidationError{
				Module: "heartbeat",
				Field:  "interval",
				Value:  0,
				Reason: "must be positive",
				Hint:   "use a value greater than 0",
			},
			want: "heartbeat: invalid interval=0 (must be positive) - use a value greater than 0",
		},
		{
			name: "string value",
			err: &ValidationError{
				Module: "hosting",
				Field:  "name",
				Value:  "",
				Reason: "cannot be empty",
			},
			want: "hosting: invalid name= (cannot be empty)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestValidationError_Unwrap(t *testing.T) {
	verr := &ValidationError{
		Module: "test",
		Field:  "field",
		Value:  0,
		Reason: "test",
	}

	if unwrapped := verr.Unwrap(); unwrapped != ErrInvalidConfiguration {
		t.Errorf("Unwrap() = %v, want ErrInvalidConfiguration", unwrapped)
	}

	if !errors.Is(verr, ErrInvalidConfiguration) {
		t.Error("ValidationError should wrap ErrInvalidConfiguration")
	}
}

func TestValidationError_WithHint(t *testing.T) {
	err := NewValidationError("test", "field", 0, "invalid").
		WithHint("try using a positive value")

	if err.Hint != "try using a positive value" {
		t.Errorf("Hint = %q, want %q", err.Hint, "try using a positive value")
	}

	// Should return same instance for chaining
	result := err.WithHint("new hint")
	if result != err {
		t.Error("WithHint should return the same instance")
	}
}

func TestOperationError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *OperationError
		want string
	}{
		{
			name: "without context",
			err: &OperationError{
				Module:    "heartbeat",
				Operation: "Register",
				Cause:     errors.New("connection refused"),
			},
			want: "heartbeat.Register failed: connection refused",
		},
		{
			name: "with context",
			err: &OperationError{
				Module:    "hosting",
				Operation: "StartAll",
				Cause:     errors.New("unit failed"),
				Context:   "1 of 3 units failed",
			},
			want: "hosting.StartAll failed: unit failed (1 of 3 units failed)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestOperationError_Unwrap(t *testing.T) {
	cause := errors.New("underlying error")
	opErr := &OperationError{
		Module:    "test",
		Operation: "test",
		Cause:     cause,
	}

	if unwrapped := opErr.Unwrap(); unwrapped != cause {
		t.Errorf("Unwrap() = %v, want %v", unwrapped, cause)
	}

	if !errors.Is(opErr, cause) {
		t.Error("OperationError should wrap the cause error")
	}
}

func TestIsValidationError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{
			"validation error",
			&ValidationError{Module: "test", Field: "field", Value: 0, Reason: "test"},
			true,
		},
		{
			"wrapped validation error",
			&OperationError{Cause: &ValidationError{Module: "test", Field: "field", Value: 0, Reason: "test"}},
			true,
		},
		{"operation error", &OperationError{Cause: errors.New("test")}, false},
		{"standard error", errors.New("test"), false},
		{"nil error", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsValidationError(tt.err); got != tt.want {
				t.Errorf("IsValidationError() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsCancellation(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"canceled", context.Canceled, true},
		{"deadline exceeded", context.DeadlineExceeded, true},
		{"wrapped canceled", fmt.Errorf("run: %w", context.Canceled), true},
		{"wrapped deadline", &OperationError{Cause: context.DeadlineExceeded}, true},
		{"plain error", errors.New("boom"), false},
		{"sentinel", ErrClosed, false},
		{"nil error", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsCancellation(tt.err); got != tt.want {
				t.Errorf("IsCancellation() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestErrorMessages(t *testing.T) {
	t.Run("ValidationError message components", func(t *testing.T) {
		err := NewValidationError("mymodule", "myfield", 42, "must be less than 10").
			WithHint("use a value between 0 and 10")

		msg := err.Error()

		expectedParts := []string{"mymodule", "myfield", "42", "must be less than 10", "use a value between 0 and 10"}
		for _, part := range expectedParts {
			if !strings.Contains(msg, part) {
				t.Errorf("error message should contain %q, got %q", part, msg)
			}
		}
	})

	t.Run("OperationError message components", func(t *testing.T) {
		err := NewOperationError("mymodule", "MyOp", errors.New("connection refused")).
			WithContext("server unreachable")

		msg := err.Error()

		expectedParts := []string{"mymodule", "MyOp", "connection refused", "server unreachable"}
		for _, part := range expectedParts {
			if !strings.Contains(msg, part) {
				t.Errorf("error message should contain %q, got %q", part, msg)
			}
		}
	})
}
