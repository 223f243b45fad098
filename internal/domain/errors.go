package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrTemplateNotFound is returned when the merge template is missing from storage.
var ErrTemplateNotFound = errors.New("template not found")

// InputError reports a file the caller must fix: wrong type, unreadable
// workbook, missing sheet.
type InputError struct {
	Reason string
	Err    error
}

func (e *InputError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid input: %s: %v", e.Reason, e.Err)
	}
	return "invalid input: " + e.Reason
}

func (e *InputError) Unwrap() error { return e.Err }

// NewInputError wraps err with a reason.
func NewInputError(reason string, err error) error {
	return &InputError{Reason: reason, Err: err}
}

// SchemaError reports a workbook that lacks an expected sheet.
type SchemaError struct {
	Sheet     string
	Available []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("sheet %q not found in template, available sheets: [%s]", e.Sheet, strings.Join(e.Available, ", "))
}

// PersistenceError reports a failure to publish results that were computed
// correctly.
type PersistenceError struct {
	Step string
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist %s: %v", e.Step, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// NewPersistenceError wraps err for step.
func NewPersistenceError(step string, err error) error {
	return &PersistenceError{Step: step, Err: err}
}
