package service

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Service errors. Callers match them with errors.Is.
var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("validation failed")
	ErrConflict   = errors.New("already exists")
	ErrStore      = errors.New("store failure")
	ErrAuth       = errors.New("invalid username or password")

	// ErrProtectedPage is returned when deleting the home page.
	ErrProtectedPage = fmt.Errorf("%w: the home page cannot be deleted", ErrValidation)
)

// ValidationError carries one message per invalid input field.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Is makes every ValidationError match ErrValidation.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// fieldError builds a ValidationError for a single field.
func fieldError(field, msg string) error {
	return &ValidationError{Fields: map[string]string{field: msg}}
}

// fromValidation converts ozzo-validation output into a ValidationError.
// Internal rule errors are passed through unchanged.
func fromValidation(err error) error {
	if err == nil {
		return nil
	}
	var errs validation.Errors
	if !errors.As(err, &errs) {
		return err
	}
	fields := make(map[string]string, len(errs))
	for k, v := range errs {
		fields[k] = v.Error()
	}
	return &ValidationError{Fields: fields}
}

func storeError(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStore, err)
}
