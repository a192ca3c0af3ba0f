package wizard

import (
	"errors"
	"fmt"

	"github.com/esnunes/codewizard/internal/prompt"
)

// ConfigurationError means the completion backend cannot be used at all,
// typically because no API key is configured. It is fatal for the session.
type ConfigurationError struct {
	Err error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %v", e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// ValidationError is a rejected user input. The user may correct it and
// try again.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Unwrap() error { return e.Err }

// UpstreamError is a failed or empty remote completion. Session state is
// left untouched so the user can retry.
type UpstreamError struct {
	Kind prompt.Kind
	Err  error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s request failed: %v", e.Kind, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

func IsConfiguration(err error) bool {
	var target *ConfigurationError
	return errors.As(err, &target)
}

func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

func IsUpstream(err error) bool {
	var target *UpstreamError
	return errors.As(err, &target)
}

func validation(field, msg string, err error) error {
	return &ValidationError{Field: field, Message: msg, Err: err}
}
