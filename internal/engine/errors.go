package engine

import (
	"errors"
	"fmt"
)

// Error kinds. Every failure returned by Run matches exactly one of them
// with errors.Is.
var (
	ErrInput       = errors.New("input error")
	ErrConfig      = errors.New("configuration error")
	ErrIO          = errors.New("i/o error")
	ErrPatch       = errors.New("patch error")
	ErrInterrupted = errors.New("interrupted")
)

// Error is a failed pipeline stage.
type Error struct {
	Kind  error
	Stage string
	Err   error
}

func (e *Error) Error() string {
	if e.Stage == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *Error) Unwrap() []error { return []error{e.Kind, e.Err} }

// fail wraps err for stage. Context errors are reported as interruptions
// regardless of the stage kind.
func fail(kind error, stage string, err error) error {
	if isCancel(err) {
		kind = ErrInterrupted
	}
	return &Error{Kind: kind, Stage: stage, Err: err}
}
