package pipelineerr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindExitCode(t *testing.T) {
	assert.Equal(t, 2, KindConfiguration.ExitCode())
	assert.Equal(t, 3, KindDataShape.ExitCode())
	assert.Equal(t, 4, KindTransient.ExitCode())
	assert.Equal(t, 5, KindInvariant.ExitCode())
}

func TestGetExitCodeUnwrapsStageError(t *testing.T) {
	base := errors.New("connection refused")
	wrapped := fmt.Errorf("pipeline: stage infra-gap failed for academic_year 2023-24: %w",
		New(KindTransient, "infra-gap", "2023-24", 0, base))

	assert.Equal(t, 4, GetExitCode(wrapped))
}

func TestGetExitCodeDefaultsToOne(t *testing.T) {
	assert.Equal(t, 1, GetExitCode(errors.New("unrelated")))
}

func TestStageErrorMessage(t *testing.T) {
	err := New(KindDataShape, "teacher-adequacy", "2022-23", 42, errors.New("no rows"))
	msg := err.Error()
	assert.Contains(t, msg, "teacher-adequacy")
	assert.Contains(t, msg, "2022-23")
	assert.Contains(t, msg, "42")
}
