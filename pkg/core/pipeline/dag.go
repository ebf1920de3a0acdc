// Package pipeline sequences the ten engines of §4 into the dependency
// order the spec lays out, and drives them against a single academic_year
// batch at a time.
package pipeline

import "schoolrisk/pkg/core/engine"

// node pairs a stage with the names of the stages it depends on.
type node struct {
	stage     engine.Stage
	dependsOn []string
}

// Graph is the fixed ten-stage DAG: Bootstrap has already run by the time a
// Graph is built (it is not itself a Stage — see cmd/pipeline), so this
// only orders stages 1 through 10.
//
//	Bootstrap -> {Infra Gap, Teacher Adequacy} -> Compliance Risk ->
//	{Prioritisation, Risk Trend, District Compliance, Proposal Validation,
//	 WMA Forecast, ML Forecast} -> Budget Allocation (depends on Prioritisation)
type Graph struct {
	nodes []node
	index map[string]int
}

// NewGraph builds the DAG from the ten concrete engines.
func NewGraph(
	infra *engine.InfraGapEngine,
	teacher *engine.TeacherAdequacyEngine,
	risk *engine.ComplianceRiskEngine,
	priority *engine.PrioritisationEngine,
	trend *engine.RiskTrendEngine,
	district *engine.DistrictComplianceEngine,
	proposal *engine.ProposalValidationEngine,
	wma *engine.WMAForecastEngine,
	mlForecast *engine.MLForecastEngine,
	budget *engine.BudgetAllocationEngine,
) *Graph {
	nodes := []node{
		{stage: infra},
		{stage: teacher},
		{stage: risk, dependsOn: []string{infra.Name(), teacher.Name()}},
		{stage: priority, dependsOn: []string{risk.Name()}},
		{stage: trend, dependsOn: []string{risk.Name()}},
		{stage: district, dependsOn: []string{risk.Name()}},
		{stage: proposal, dependsOn: []string{risk.Name()}},
		{stage: wma, dependsOn: []string{risk.Name()}},
		{stage: mlForecast, dependsOn: []string{risk.Name()}},
		{stage: budget, dependsOn: []string{priority.Name()}},
	}

	g := &Graph{nodes: nodes, index: make(map[string]int, len(nodes))}
	for i, n := range nodes {
		g.index[n.stage.Name()] = i
	}
	return g
}

// Order returns the stages in a topological order consistent with
// dependsOn. Since the graph is fixed and already declared in dependency
// order above, this is a direct validation pass rather than a general
// sort: it panics (a programmer error, not a runtime one) if dependsOn
// ever references a stage declared later.
func (g *Graph) Order() []engine.Stage {
	seen := make(map[string]bool, len(g.nodes))
	out := make([]engine.Stage, 0, len(g.nodes))
	for _, n := range g.nodes {
		for _, dep := range n.dependsOn {
			if !seen[dep] {
				panic("pipeline: stage " + n.stage.Name() + " depends on undeclared-before-it stage " + dep)
			}
		}
		seen[n.stage.Name()] = true
		out = append(out, n.stage)
	}
	return out
}

// Slice returns the stages between from and to inclusive (by declaration
// order), for the --from/--to CLI cut. Empty from/to means "no bound" on
// that side.
func (g *Graph) Slice(from, to string) ([]engine.Stage, error) {
	order := g.Order()

	startIdx := 0
	if from != "" {
		idx, ok := g.index[from]
		if !ok {
			return nil, unknownStageError(from)
		}
		startIdx = idx
	}

	endIdx := len(order) - 1
	if to != "" {
		idx, ok := g.index[to]
		if !ok {
			return nil, unknownStageError(to)
		}
		endIdx = idx
	}

	if startIdx > endIdx {
		return nil, nil
	}
	return order[startIdx : endIdx+1], nil
}

type unknownStageError string

func (e unknownStageError) Error() string { return "pipeline: unknown stage name " + string(e) }
