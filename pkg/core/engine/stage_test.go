package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTimeBatch(t *testing.T) {
	start := time.Now().Add(-50 * time.Millisecond)
	r := timeBatch("infra-gap", "2023-24", 63000, start)

	assert.Equal(t, "infra-gap", r.Stage)
	assert.Equal(t, "2023-24", r.AcademicYear)
	assert.Equal(t, 63000, r.RowsAffected)
	assert.GreaterOrEqual(t, r.Elapsed, 50*time.Millisecond)
}
