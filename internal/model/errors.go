package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrValidation        = errors.New("validation error")
	ErrNotFound          = errors.New("not found")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrCorruptData       = errors.New("corrupt data")
	ErrBusy              = errors.New("storage busy")
	ErrIO                = errors.New("storage i/o error")
)

// ValidationError names the offending field and value.
type ValidationError struct {
	Field  string
	Value  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Value != "" {
		return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Reason)
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("task %q not found", e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

type TransitionError struct {
	ID   string
	From Status
	To   Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("task %q cannot move from %s to %s", e.ID, e.From, e.To)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

// CorruptDataError reports a persisted document that failed validation.
type CorruptDataError struct {
	Path     string
	Problems []string
	Err      error
}

func (e *CorruptDataError) Error() string {
	msg := fmt.Sprintf("corrupt task file %s", e.Path)
	if len(e.Problems) > 0 {
		msg += ": " + strings.Join(e.Problems, "; ")
	} else if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *CorruptDataError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrCorruptData}
	}
	return []error{ErrCorruptData, e.Err}
}

type BusyError struct {
	Path   string
	Waited time.Duration
}

func (e *BusyError) Error() string {
	return fmt.Sprintf("task file %s is locked by another operation (waited %s)", e.Path, e.Waited)
}

func (e *BusyError) Unwrap() error { return ErrBusy }

type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() []error { return []error{ErrIO, e.Err} }
