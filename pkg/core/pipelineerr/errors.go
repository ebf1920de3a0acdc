// Package pipelineerr implements the four-way error taxonomy of §7:
// configuration errors, data-shape errors, transient store errors, and
// invariant violations. Each carries (stage, academic_year,
// row_count_attempted) so the CLI can print it and select an exit code,
// mirroring yairfalse-vaino's internal/errors exit-code dispatch.
package pipelineerr

import (
	"errors"
	"fmt"
)

// Kind is one of the four taxonomy buckets of §7.
type Kind int

const (
	KindConfiguration Kind = iota
	KindDataShape
	KindTransient
	KindInvariant
)

func (k Kind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration"
	case KindDataShape:
		return "data-shape"
	case KindTransient:
		return "transient"
	case KindInvariant:
		return "invariant"
	default:
		return "unknown"
	}
}

// ExitCode maps a Kind to a process exit code. Configuration errors are
// non-retryable operator mistakes (exit 2); data-shape is a partial-batch
// failure (exit 3); transient errors that escaped retry are exit 4;
// invariant violations are exit 5.
func (k Kind) ExitCode() int {
	switch k {
	case KindConfiguration:
		return 2
	case KindDataShape:
		return 3
	case KindTransient:
		return 4
	case KindInvariant:
		return 5
	default:
		return 1
	}
}

// StageError is the error type every engine and the orchestrator return.
type StageError struct {
	Kind             Kind
	Stage            string
	AcademicYear     string
	RowCountAttempted int
	Err              error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s error in stage %q year %q (rows attempted: %d): %v",
		e.Kind, e.Stage, e.AcademicYear, e.RowCountAttempted, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// New builds a StageError, the sole constructor engines should use so the
// taxonomy stays exhaustive.
func New(kind Kind, stage, year string, rowCount int, err error) *StageError {
	return &StageError{Kind: kind, Stage: stage, AcademicYear: year, RowCountAttempted: rowCount, Err: err}
}

// GetExitCode extracts the process exit code for any error, defaulting to 1
// for errors outside the taxonomy (programmer errors, context cancellation).
func GetExitCode(err error) int {
	var se *StageError
	if errors.As(err, &se) {
		return se.Kind.ExitCode()
	}
	return 1
}
