package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"schoolrisk/pkg/core/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("load default config: %v", err)
	}
	return cfg
}

func TestNoiseIsDeterministic(t *testing.T) {
	cfg := testConfig(t)
	a := noise("SCH001", "2023-24", "classroom", cfg)
	b := noise("SCH001", "2023-24", "classroom", cfg)
	assert.Equal(t, a, b)
}

func TestNoiseVariesWithSalt(t *testing.T) {
	cfg := testConfig(t)
	cr := noise("SCH001", "2023-24", "classroom", cfg)
	tr := noise("SCH001", "2023-24", "teacher", cfg)
	assert.NotEqual(t, cr, tr)
}

func TestNoiseWithinConfiguredSpan(t *testing.T) {
	cfg := testConfig(t)
	for _, id := range []string{"A", "B", "C", "D1234", "school-with-a-long-id"} {
		n := noise(id, "2021-22", "classroom", cfg)
		assert.GreaterOrEqual(t, n, cfg.ProposalNoiseFloor)
		assert.LessOrEqual(t, n, cfg.ProposalNoiseFloor+cfg.ProposalNoiseSpan)
	}
}

func TestRequestedForZeroGapStaysZero(t *testing.T) {
	assert.Equal(t, 0, requestedFor(0, 1.2))
}

func TestRequestedForRoundsNoiseFactor(t *testing.T) {
	assert.Equal(t, 12, requestedFor(10, 1.24))
	assert.Equal(t, 7, requestedFor(10, 0.70))
}
