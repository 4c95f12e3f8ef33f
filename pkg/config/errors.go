package config

import "fmt"

// LoadError wraps a failure to read or parse a configuration file.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("loading %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// FieldError reports an invalid or missing configuration value.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("config field %q: %s", e.Field, e.Message)
}

func newFieldError(field, message string) error {
	return &FieldError{Field: field, Message: message}
}
