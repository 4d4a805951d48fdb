package common

import (
	"fmt"
	"net/url"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/joseph-ayodele/vision-ocr/constants"
)

// ValidationError represents validation failures
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation failed for field '%s' with value '%v': %s", e.Field, e.Value, e.Message)
}

// Validator provides validation utilities
type Validator struct {
	errors []ValidationError
}

// NewValidator creates a new validator instance
func NewValidator() *Validator {
	return &Validator{
		errors: make([]ValidationError, 0),
	}
}

// Field validates a field and collects errors
func (v *Validator) Field(fieldName string, value interface{}, rules ...ValidationRule) *Validator {
	for _, rule := range rules {
		if err := rule(fieldName, value); err != nil {
			v.errors = append(v.errors, *err)
		}
	}
	return v
}

// HasErrors returns true if there are validation errors
func (v *Validator) HasErrors() bool {
	return len(v.errors) > 0
}

// Errors returns all validation errors
func (v *Validator) Errors() []ValidationError {
	return v.errors
}

// ErrorMessage returns a combined error message as string
func (v *Validator) ErrorMessage() string {
	if !v.HasErrors() {
		return ""
	}

	var messages []string
	for _, err := range v.errors {
		messages = append(messages, err.Error())
	}
	return strings.Join(messages, "; ")
}

// Err returns nil or an AppError with the given code wrapping ErrInvalidInput.
func (v *Validator) Err(code string) error {
	if !v.HasErrors() {
		return nil
	}
	return NewAppError(code, v.ErrorMessage(), ErrInvalidInput, nil)
}

// ValidationRule represents a single validation rule
type ValidationRule func(fieldName string, value interface{}) *ValidationError

// Required - Common validation rules
func Required(fieldName string, value interface{}) *ValidationError {
	if value == nil {
		return &ValidationError{Field: fieldName, Value: value, Message: "is required"}
	}

	switch v := value.(type) {
	case string:
		if strings.TrimSpace(v) == "" {
			return &ValidationError{Field: fieldName, Value: value, Message: "is required"}
		}
	case *string:
		if v == nil || strings.TrimSpace(*v) == "" {
			return &ValidationError{Field: fieldName, Value: value, Message: "is required"}
		}
	}
	return nil
}

// NonNegative accepts ints and durations >= 0.
func NonNegative(fieldName string, value interface{}) *ValidationError {
	switch v := value.(type) {
	case int:
		if v < 0 {
			return &ValidationError{Field: fieldName, Value: value, Message: "must not be negative"}
		}
	case time.Duration:
		if v < 0 {
			return &ValidationError{Field: fieldName, Value: value, Message: "must not be negative"}
		}
	}
	return nil
}

// Positive accepts ints and durations > 0.
func Positive(fieldName string, value interface{}) *ValidationError {
	switch v := value.(type) {
	case int:
		if v <= 0 {
			return &ValidationError{Field: fieldName, Value: value, Message: "must be positive"}
		}
	case time.Duration:
		if v <= 0 {
			return &ValidationError{Field: fieldName, Value: value, Message: "must be positive"}
		}
	}
	return nil
}

// OneOf returns a rule accepting only the listed strings.
func OneOf(allowed ...string) ValidationRule {
	return func(fieldName string, value interface{}) *ValidationError {
		str, ok := value.(string)
		if !ok || !slices.Contains(allowed, str) {
			return &ValidationError{
				Field:   fieldName,
				Value:   value,
				Message: "must be one of: " + strings.Join(allowed, ", "),
			}
		}
		return nil
	}
}

// ImageSource accepts an absolute http(s) URL or a local path with an image extension.
func ImageSource(fieldName string, value interface{}) *ValidationError {
	str, ok := value.(string)
	if !ok {
		return &ValidationError{Field: fieldName, Value: value, Message: "must be a string"}
	}
	if str == "" {
		return nil // Required reports this
	}
	if u, err := url.Parse(str); err == nil && (u.Scheme == "http" || u.Scheme == "https") {
		if u.Host == "" {
			return &ValidationError{Field: fieldName, Value: value, Message: "url must have a host"}
		}
		return nil
	}
	if !constants.IsImageExt(filepath.Ext(str)) {
		return &ValidationError{
			Field:   fieldName,
			Value:   value,
			Message: "must be an http(s) url or a path to an image file",
		}
	}
	return nil
}
