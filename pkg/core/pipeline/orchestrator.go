package pipeline

import (
	"context"
	"fmt"

	"schoolrisk/pkg/core/config"
	"schoolrisk/pkg/core/logging"
	"schoolrisk/pkg/core/store"
)

// Orchestrator runs the DAG's stages, in order, against a single
// academic_year batch, stopping at the first failing stage: per §4's
// failure semantics, already-committed batches for earlier stages or
// earlier years stay committed, and a re-run replays idempotently.
type Orchestrator struct {
	graph *Graph
	store *store.Store
	cfg   *config.Config
	log   logging.Logger
}

// NewOrchestrator builds an Orchestrator over an already-bootstrapped
// store.
func NewOrchestrator(graph *Graph, st *store.Store, cfg *config.Config, log logging.Logger) *Orchestrator {
	return &Orchestrator{graph: graph, store: st, cfg: cfg, log: log}
}

// Run executes every stage from `from` to `to` (either may be empty to
// mean "no bound") for a single academic_year.
func (o *Orchestrator) Run(ctx context.Context, from, to, year string) error {
	stages, err := o.graph.Slice(from, to)
	if err != nil {
		return err
	}

	for _, stage := range stages {
		o.log.WithFields(map[string]interface{}{
			"stage":         stage.Name(),
			"academic_year": year,
		}).Info("stage starting")

		if _, err := stage.Apply(ctx, o.store, o.cfg, year); err != nil {
			return fmt.Errorf("pipeline: stage %s failed for academic_year %s: %w", stage.Name(), year, err)
		}
	}
	return nil
}

// RunYears runs the full configured stage range across a sequence of
// academic years in order, stopping at the first year that fails (earlier
// years' committed batches are left in place, per §4's failure semantics).
func (o *Orchestrator) RunYears(ctx context.Context, from, to string, years []string) error {
	for _, year := range years {
		if err := o.Run(ctx, from, to, year); err != nil {
			return err
		}
	}
	return nil
}
