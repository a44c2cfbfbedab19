package domain

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestConfigurationError(t *testing.T) {
	err := NewConfigurationError("llm.provider", "unknown provider")

	if err.Key != "llm.provider" {
		t.Errorf("Expected key llm.provider, got %s", err.Key)
	}

	if time.Since(err.Timestamp) > time.Minute {
		t.Errorf("Timestamp should be recent, got %v", err.Timestamp)
	}

	expected := "CONFIGURATION_ERROR: llm.provider: unknown provider"
	if err.Error() != expected {
		t.Errorf("Expected error string %s, got %s", expected, err.Error())
	}

	noKey := NewConfigurationError("", "missing")
	if noKey.Error() != "CONFIGURATION_ERROR: missing" {
		t.Errorf("Unexpected error string %s", noKey.Error())
	}
}

func TestBackendUnavailableError(t *testing.T) {
	cause := errors.New("connection refused")

	tests := []struct {
		name     string
		err      *BackendUnavailableError
		contains []string
	}{
		{
			name:     "Transport failure",
			err:      NewBackendUnavailableError("ollama", 0, "", cause),
			contains: []string{"ollama backend unavailable", "connection refused"},
		},
		{
			name:     "Non-success status",
			err:      NewBackendUnavailableError("anthropic", 529, "overloaded", nil),
			contains: []string{"anthropic backend unavailable", "(status 529)", "overloaded"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			if !strings.HasPrefix(msg, ErrCodeBackendUnavailable) {
				t.Errorf("Expected prefix %s, got %s", ErrCodeBackendUnavailable, msg)
			}
			for _, part := range tt.contains {
				if !strings.Contains(msg, part) {
					t.Errorf("Expected %q to contain %q", msg, part)
				}
			}
		})
	}

	wrapped := fmt.Errorf("matching trial: %w", NewBackendUnavailableError("ollama", 0, "", cause))
	if !IsBackendUnavailable(wrapped) {
		t.Error("Expected wrapped error to be recognized as backend unavailable")
	}
	if !errors.Is(wrapped, cause) {
		t.Error("Expected the transport cause to be reachable through Unwrap")
	}
}

func TestRegistryFetchError(t *testing.T) {
	err := NewRegistryFetchError("search studies", 503, nil)

	expected := "REGISTRY_FETCH_ERROR: search studies returned status 503"
	if err.Error() != expected {
		t.Errorf("Expected error string %s, got %s", expected, err.Error())
	}

	if !IsRegistryFetch(fmt.Errorf("searching trials: %w", err)) {
		t.Error("Expected wrapped error to be recognized as registry fetch failure")
	}
	if IsRegistryFetch(errors.New("other")) {
		t.Error("Plain error must not be recognized as registry fetch failure")
	}
}

func TestMalformedRecordError(t *testing.T) {
	cause := errors.New("unexpected end of JSON input")

	withID := &MalformedRecordError{Index: 2, NCTID: "NCT01234567", Err: cause}
	if withID.Error() != "MALFORMED_RECORD: record 2 (NCT01234567): unexpected end of JSON input" {
		t.Errorf("Unexpected error string %s", withID.Error())
	}

	withoutID := &MalformedRecordError{Index: 0, Err: cause}
	if withoutID.Error() != "MALFORMED_RECORD: record 0: unexpected end of JSON input" {
		t.Errorf("Unexpected error string %s", withoutID.Error())
	}

	if !errors.Is(withID, cause) {
		t.Error("Expected Unwrap to expose the decode error")
	}
}

func TestNotFoundError(t *testing.T) {
	err := &NotFoundError{Resource: "trial", ID: "NCT00000000"}

	if err.Error() != "NOT_FOUND: trial NCT00000000 not found" {
		t.Errorf("Unexpected error string %s", err.Error())
	}
	if !IsNotFound(fmt.Errorf("lookup: %w", err)) {
		t.Error("Expected wrapped error to be recognized as not found")
	}
}

func TestValidationError(t *testing.T) {
	tests := []struct {
		name    string
		field   string
		message string
		value   interface{}
	}{
		{
			name:    "String validation error",
			field:   "gender",
			message: "must be one of male, female, other",
			value:   "unknown",
		},
		{
			name:    "Integer validation error",
			field:   "age",
			message: "must be between 0 and 120",
			value:   -1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewValidationError(tt.field, tt.message, tt.value)

			if err.Field != tt.field {
				t.Errorf("Expected field %s, got %s", tt.field, err.Field)
			}

			if err.Value != tt.value {
				t.Errorf("Expected value %v, got %v", tt.value, err.Value)
			}

			expectedError := "validation error for field '" + tt.field + "': " + tt.message
			if err.Error() != expectedError {
				t.Errorf("Expected error string %s, got %s", expectedError, err.Error())
			}

			if !IsValidation(err) {
				t.Error("Expected IsValidation to recognize the error")
			}
		})
	}
}
