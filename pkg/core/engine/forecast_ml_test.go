package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"schoolrisk/pkg/core/model"
)

func TestCeilDiv(t *testing.T) {
	assert.Equal(t, 4, ceilDiv(100, 30))
	assert.Equal(t, 0, ceilDiv(0, 30))
	assert.Equal(t, 0, ceilDiv(100, 0))
}

func TestClassroomNormLookupFallsBackForUnknownCategory(t *testing.T) {
	norm, fallback := classroomNormLookup(model.ClassroomNorm, 99)
	assert.Equal(t, model.DefaultClassroomNorm, norm)
	assert.True(t, fallback)

	norm, fallback = classroomNormLookup(model.ClassroomNorm, 1)
	assert.Equal(t, 30, norm)
	assert.False(t, fallback)
}

func TestMaxInt(t *testing.T) {
	assert.Equal(t, 5, maxInt(5, 3))
	assert.Equal(t, 3, maxInt(1, 3))
}
