package domain

import (
	"errors"
	"fmt"
	"time"
)

// Error codes for the failure classes of the matching pipeline
const (
	ErrCodeConfiguration      = "CONFIGURATION_ERROR"
	ErrCodeBackendUnavailable = "BACKEND_UNAVAILABLE"
	ErrCodeRegistryFetch      = "REGISTRY_FETCH_ERROR"
	ErrCodeMalformedRecord    = "MALFORMED_RECORD"
	ErrCodeVerdictParse       = "VERDICT_PARSE_FAILURE"
	ErrCodeNotFound           = "NOT_FOUND"
	ErrCodeValidation         = "VALIDATION_ERROR"
)

// ConfigurationError reports a missing or invalid setting. It is fatal at startup.
type ConfigurationError struct {
	Key       string    `json:"key"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Error implements the error interface
func (e *ConfigurationError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("%s: %s", ErrCodeConfiguration, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", ErrCodeConfiguration, e.Key, e.Message)
}

// NewConfigurationError creates a new ConfigurationError with timestamp
func NewConfigurationError(key, message string) *ConfigurationError {
	return &ConfigurationError{
		Key:       key,
		Message:   message,
		Timestamp: time.Now().UTC(),
	}
}

// BackendUnavailableError reports that an LLM backend call could not be completed
type BackendUnavailableError struct {
	Backend    string    `json:"backend"`
	StatusCode int       `json:"status_code,omitempty"`
	Details    string    `json:"details,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
	Err        error     `json:"-"`
}

// Error implements the error interface
func (e *BackendUnavailableError) Error() string {
	msg := fmt.Sprintf("%s: %s backend unavailable", ErrCodeBackendUnavailable, e.Backend)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Details != "" {
		msg += ": " + e.Details
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying transport error
func (e *BackendUnavailableError) Unwrap() error {
	return e.Err
}

// NewBackendUnavailableError creates a new BackendUnavailableError with timestamp
func NewBackendUnavailableError(backend string, statusCode int, details string, err error) *BackendUnavailableError {
	return &BackendUnavailableError{
		Backend:    backend,
		StatusCode: statusCode,
		Details:    details,
		Timestamp:  time.Now().UTC(),
		Err:        err,
	}
}

// RegistryFetchError reports that the trial registry could not be queried.
// An empty trial list is not an error; this is.
type RegistryFetchError struct {
	Operation  string    `json:"operation"`
	StatusCode int       `json:"status_code,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
	Err        error     `json:"-"`
}

// Error implements the error interface
func (e *RegistryFetchError) Error() string {
	msg := fmt.Sprintf("%s: %s", ErrCodeRegistryFetch, e.Operation)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" returned status %d", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error
func (e *RegistryFetchError) Unwrap() error {
	return e.Err
}

// NewRegistryFetchError creates a new RegistryFetchError with timestamp
func NewRegistryFetchError(operation string, statusCode int, err error) *RegistryFetchError {
	return &RegistryFetchError{
		Operation:  operation,
		StatusCode: statusCode,
		Timestamp:  time.Now().UTC(),
		Err:        err,
	}
}

// MalformedRecordError reports a single registry record that could not be normalized
type MalformedRecordError struct {
	Index int    `json:"index"`
	NCTID string `json:"nct_id,omitempty"`
	Err   error  `json:"-"`
}

// Error implements the error interface
func (e *MalformedRecordError) Error() string {
	if e.NCTID != "" {
		return fmt.Sprintf("%s: record %d (%s): %v", ErrCodeMalformedRecord, e.Index, e.NCTID, e.Err)
	}
	return fmt.Sprintf("%s: record %d: %v", ErrCodeMalformedRecord, e.Index, e.Err)
}

// Unwrap returns the underlying decode error
func (e *MalformedRecordError) Unwrap() error {
	return e.Err
}

// VerdictParseError reports LLM output that could not be turned into a verdict.
// It never leaves the interpreter.
type VerdictParseError struct {
	Excerpt string `json:"excerpt"`
	Err     error  `json:"-"`
}

// Error implements the error interface
func (e *VerdictParseError) Error() string {
	return fmt.Sprintf("%s: %v", ErrCodeVerdictParse, e.Err)
}

// Unwrap returns the underlying JSON error
func (e *VerdictParseError) Unwrap() error {
	return e.Err
}

// NotFoundError reports a lookup that found nothing
type NotFoundError struct {
	Resource string `json:"resource"`
	ID       string `json:"id"`
}

// Error implements the error interface
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s: %s %s not found", ErrCodeNotFound, e.Resource, e.ID)
}

// ValidationError represents input validation errors
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value"`
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// NewValidationError creates a new ValidationError
func NewValidationError(field, message string, value interface{}) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Value:   value,
	}
}

// IsBackendUnavailable reports whether err carries a BackendUnavailableError
func IsBackendUnavailable(err error) bool {
	var target *BackendUnavailableError
	return errors.As(err, &target)
}

// IsRegistryFetch reports whether err carries a RegistryFetchError
func IsRegistryFetch(err error) bool {
	var target *RegistryFetchError
	return errors.As(err, &target)
}

// IsConfiguration reports whether err carries a ConfigurationError
func IsConfiguration(err error) bool {
	var target *ConfigurationError
	return errors.As(err, &target)
}

// IsNotFound reports whether err carries a NotFoundError
func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

// IsValidation reports whether err carries a ValidationError
func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}
