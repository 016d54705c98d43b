package utils

import (
	"errors"
	"fmt"
)

// Custom error types
var (
	// ErrConfiguration is returned when the service is misconfigured or the
	// database connection cannot be established
	ErrConfiguration = errors.New("configuration error")

	// ErrValidation is returned when input validation fails
	ErrValidation = errors.New("validation error")

	// ErrNotFound is returned when a requested resource is not found
	ErrNotFound = errors.New("not found")

	// ErrTransaction is returned when a multi-statement write fails and is
	// rolled back
	ErrTransaction = errors.New("transaction error")

	// ErrSerialization is returned when stored JSON cannot be decoded
	ErrSerialization = errors.New("serialization error")
)

// ConfigurationError represents a startup or connection configuration failure
type ConfigurationError struct {
	Component string
	Cause     error
}

func (e *ConfigurationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("configuration error in %s: %v", e.Component, e.Cause)
	}
	return fmt.Sprintf("configuration error in %s", e.Component)
}

func (e *ConfigurationError) Unwrap() error {
	return ErrConfiguration
}

// ValidationError represents an error that occurs during input validation
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// NotFoundError represents an error when a resource is not found
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s with ID '%s' not found", e.Resource, e.ID)
	}
	return fmt.Sprintf("%s not found", e.Resource)
}

func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// TransactionError represents a failed multi-statement write. Phase names the
// step that failed before the rollback: allocate-index, insert-migration,
// save-snapshot or update-journal.
type TransactionError struct {
	Plugin string
	Phase  string
	Cause  error
}

func (e *TransactionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("transaction error for plugin '%s' during %s: %v", e.Plugin, e.Phase, e.Cause)
	}
	return fmt.Sprintf("transaction error for plugin '%s' during %s", e.Plugin, e.Phase)
}

func (e *TransactionError) Unwrap() error {
	return ErrTransaction
}

// SerializationError represents malformed JSON read back from the database
type SerializationError struct {
	Column string
	Cause  error
}

func (e *SerializationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("serialization error in column '%s': %v", e.Column, e.Cause)
	}
	return fmt.Sprintf("serialization error in column '%s'", e.Column)
}

func (e *SerializationError) Unwrap() error {
	return ErrSerialization
}

// Error wrapping functions

// WrapConfigurationError wraps an error as a configuration error
func WrapConfigurationError(component string, cause error) error {
	return &ConfigurationError{
		Component: component,
		Cause:     cause,
	}
}

// WrapValidationError wraps an error as a validation error
func WrapValidationError(field, message string) error {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// WrapNotFoundError wraps an error as a not found error
func WrapNotFoundError(resource, id string) error {
	return &NotFoundError{
		Resource: resource,
		ID:       id,
	}
}

// WrapTransactionError wraps an error as a transaction error
func WrapTransactionError(plugin, phase string, cause error) error {
	return &TransactionError{
		Plugin: plugin,
		Phase:  phase,
		Cause:  cause,
	}
}

// WrapSerializationError wraps an error as a serialization error
func WrapSerializationError(column string, cause error) error {
	return &SerializationError{
		Column: column,
		Cause:  cause,
	}
}

// Error checking functions

// IsConfigurationError checks if an error is a configuration error
func IsConfigurationError(err error) bool {
	return errors.Is(err, ErrConfiguration)
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsNotFoundError checks if an error is a not found error
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsTransactionError checks if an error is a transaction error
func IsTransactionError(err error) bool {
	return errors.Is(err, ErrTransaction)
}

// IsSerializationError checks if an error is a serialization error
func IsSerializationError(err error) bool {
	return errors.Is(err, ErrSerialization)
}

// Helper function to create a validation error for required fields
func RequiredFieldError(field string) error {
	return WrapValidationError(field, "field is required")
}

// Helper function to create a validation error for invalid field values
func InvalidFieldError(field, reason string) error {
	return WrapValidationError(field, reason)
}
