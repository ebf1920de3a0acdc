package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 0.45, cfg.RiskWeights.Teacher)
	assert.Equal(t, 0.35, cfg.RiskWeights.Classroom)
	assert.Equal(t, 0.20, cfg.RiskWeights.Growth)
	assert.Equal(t, 0.60, cfg.RiskBands.Critical)
	assert.Equal(t, 0.15, cfg.VolatileThreshold)
	assert.Equal(t, 1000, cfg.Budget.MaxClassrooms())
}

func TestLoadFromYAMLOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("budget:\n  max_teachers: 500\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 500, cfg.Budget.MaxTeachers)
	// Unset keys still take the compiled-in default.
	assert.Equal(t, 0.45, cfg.RiskWeights.Teacher)
}

func TestValidateRejectsBadWeights(t *testing.T) {
	cfg := &Config{
		RiskWeights: RiskWeights{Teacher: 0.5, Classroom: 0.5, Growth: 0.5},
		RiskBands:   RiskBands{Critical: 0.6, High: 0.4, Moderate: 0.2},
		Budget:      BudgetConfig{CostPerClassroom: 1},
	}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sum to 1.00")
}

func TestValidateRejectsNonDescendingBands(t *testing.T) {
	cfg := &Config{
		RiskWeights: RiskWeights{Teacher: 0.45, Classroom: 0.35, Growth: 0.20},
		RiskBands:   RiskBands{Critical: 0.3, High: 0.4, Moderate: 0.2},
		Budget:      BudgetConfig{CostPerClassroom: 1},
	}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "strictly descending")
}

func TestBudgetConfigMaxClassrooms(t *testing.T) {
	b := BudgetConfig{TotalClassroomBudget: 5e8, CostPerClassroom: 5e5}
	assert.Equal(t, 1000, b.MaxClassrooms())

	zero := BudgetConfig{CostPerClassroom: 0}
	assert.Equal(t, 0, zero.MaxClassrooms())
}
