package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassroomNormFor(t *testing.T) {
	tests := []struct {
		category     int
		wantNorm     int
		wantFallback bool
	}{
		{1, 30, false},
		{3, 30, false},
		{4, 35, false},
		{5, 35, false},
		{6, 40, false},
		{11, 40, false},
		{99, 40, true},
		{0, 40, true},
	}

	for _, tt := range tests {
		norm, fallback := ClassroomNormFor(tt.category)
		assert.Equal(t, tt.wantNorm, norm, "category %d", tt.category)
		assert.Equal(t, tt.wantFallback, fallback, "category %d", tt.category)
	}
}

func TestPTRNormFor(t *testing.T) {
	tests := []struct {
		category int
		wantNorm int
	}{
		{1, 30}, {2, 30}, {3, 30}, {5, 30}, {6, 30},
		{4, 35}, {7, 35}, {8, 35}, {9, 35}, {10, 35}, {11, 35},
	}
	for _, tt := range tests {
		norm, fallback := PTRNormFor(tt.category)
		assert.Equal(t, tt.wantNorm, norm, "category %d", tt.category)
		assert.False(t, fallback)
	}

	norm, fallback := PTRNormFor(42)
	assert.Equal(t, DefaultPTRNorm, norm)
	assert.True(t, fallback)
}

func TestValidCategory(t *testing.T) {
	for c := 1; c <= 11; c++ {
		assert.True(t, ValidCategory(c), "category %d should be valid", c)
	}
	assert.False(t, ValidCategory(0))
	assert.False(t, ValidCategory(12))
}

func TestClassroomNormCaseSQL(t *testing.T) {
	sql := ClassroomNormCaseSQL("s.school_category")
	assert.Contains(t, sql, "CASE s.school_category")
	assert.Contains(t, sql, "WHEN 1 THEN 30")
	assert.Contains(t, sql, "ELSE 40 END")
}

func TestUnknownCategoryError(t *testing.T) {
	err := &UnknownCategoryError{SchoolID: "S001", Category: 99}
	assert.Contains(t, err.Error(), "S001")
	assert.Contains(t, err.Error(), "99")
}
