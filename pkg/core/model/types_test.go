package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRiskLevelIsHighOrCritical(t *testing.T) {
	assert.True(t, RiskHigh.IsHighOrCritical())
	assert.True(t, RiskCritical.IsHighOrCritical())
	assert.False(t, RiskModerate.IsHighOrCritical())
	assert.False(t, RiskLow.IsHighOrCritical())
}
