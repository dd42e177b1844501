package api

import (
	"errors"
	"fmt"
)

var (
	// ErrDuplicateWorkflow is returned when a (module, name) pair is registered twice.
	ErrDuplicateWorkflow = errors.New("tickflow: workflow already registered")

	// ErrUnknownWorkflow is the panic value for requests naming a workflow
	// that was never registered.
	ErrUnknownWorkflow = errors.New("tickflow: unknown workflow")

	// ErrInvalidDefinition is returned for malformed or mis-wired definitions.
	ErrInvalidDefinition = errors.New("tickflow: invalid workflow definition")

	// ErrSignatureMismatch is the panic value for a request whose signature
	// class does not match the registered workflow.
	ErrSignatureMismatch = errors.New("tickflow: request signature does not match workflow")

	// ErrSignatureViolation is reported when a stage declared without an
	// error type returns one anyway.
	ErrSignatureViolation = errors.New("tickflow: stage returned an error it does not declare")

	// ErrStageTimeout is wrapped by TimeoutError.
	ErrStageTimeout = errors.New("tickflow: stage never reported back")

	// ErrAdmissionRejected is wrapped by AdmissionError.
	ErrAdmissionRejected = errors.New("tickflow: admission retries exhausted")

	// ErrEngineClosed resolves every future still outstanding at shutdown.
	ErrEngineClosed = errors.New("tickflow: engine closed")
)

// AdmissionError reports a duplicate request that could not be admitted
// before its retry budget ran out. The workflow never started.
type AdmissionError struct {
	Key      Key
	Attempts int
}

func (e *AdmissionError) Error() string {
	return fmt.Sprintf("tickflow: workflow %s still busy after %d admission attempts", e.Key, e.Attempts)
}

func (e *AdmissionError) Unwrap() error { return ErrAdmissionRejected }

// StageError carries a stage's own error, tagged with the stage that
// produced it. The wrapped error is the stage's error, unmodified.
type StageError struct {
	Key        Key
	InstanceID string
	StageIndex int
	StageName  string
	Err        error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("workflow %s stage %d (%s): %v", e.Key, e.StageIndex, e.StageName, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// TimeoutError reports an instance whose current stage never reported back
// within its tick budget. It is fatal.
type TimeoutError struct {
	Key        Key
	InstanceID string
	StageIndex int
	StageName  string
	Ticks      int
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("tickflow: workflow %s stage %d (%s) made no progress for %d ticks",
		e.Key, e.StageIndex, e.StageName, e.Ticks)
}

func (e *TimeoutError) Unwrap() error { return ErrStageTimeout }

// TypeBindingError reports a payload whose runtime type does not match what
// its consumer expects. It is fatal: it can only come from a wiring defect.
type TypeBindingError struct {
	Expected string
	Actual   string
}

func (e *TypeBindingError) Error() string {
	return fmt.Sprintf("tickflow: payload type mismatch: expected %s, got %s", e.Expected, e.Actual)
}

// StagePanicError wraps a value recovered from a panicking stage.
type StagePanicError struct {
	Value any
}

func (e *StagePanicError) Error() string {
	return fmt.Sprintf("tickflow: stage panicked: %v", e.Value)
}

// IsFatal reports whether err is a structural engine failure (timeout,
// type-binding defect, signature violation) rather than a business failure.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	var tb *TypeBindingError
	var to *TimeoutError
	return errors.As(err, &tb) || errors.As(err, &to) || errors.Is(err, ErrSignatureViolation)
}
