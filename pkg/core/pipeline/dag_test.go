package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"schoolrisk/pkg/core/engine"
	"schoolrisk/pkg/core/logging"
)

func testGraph() *Graph {
	log := logging.New()
	return NewGraph(
		engine.NewInfraGapEngine(log),
		engine.NewTeacherAdequacyEngine(log),
		engine.NewComplianceRiskEngine(log),
		engine.NewPrioritisationEngine(log),
		engine.NewRiskTrendEngine(log),
		engine.NewDistrictComplianceEngine(log),
		engine.NewProposalValidationEngine(log),
		engine.NewWMAForecastEngine(log),
		engine.NewMLForecastEngine(log, 1),
		engine.NewBudgetAllocationEngine(log),
	)
}

func TestOrderRespectsDependencies(t *testing.T) {
	g := testGraph()
	order := g.Order()

	pos := make(map[string]int, len(order))
	for i, s := range order {
		pos[s.Name()] = i
	}

	assert.Less(t, pos["infra-gap"], pos["compliance-risk"])
	assert.Less(t, pos["teacher-adequacy"], pos["compliance-risk"])
	assert.Less(t, pos["compliance-risk"], pos["prioritisation"])
	assert.Less(t, pos["prioritisation"], pos["budget"])
}

func TestSliceFullRange(t *testing.T) {
	g := testGraph()
	stages, err := g.Slice("", "")
	require.NoError(t, err)
	assert.Len(t, stages, 10)
}

func TestSliceBoundedRange(t *testing.T) {
	g := testGraph()
	stages, err := g.Slice("infra-gap", "compliance-risk")
	require.NoError(t, err)

	names := make([]string, len(stages))
	for i, s := range stages {
		names[i] = s.Name()
	}
	assert.Equal(t, []string{"infra-gap", "teacher-adequacy", "compliance-risk"}, names)
}

func TestSliceUnknownStageErrors(t *testing.T) {
	g := testGraph()
	_, err := g.Slice("not-a-stage", "")
	assert.Error(t, err)
}
