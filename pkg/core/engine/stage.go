// Package engine holds the ten set-oriented stages of §4: each one owns a
// single SQL template (or a short, ordered sequence of them inside one
// transaction) and exposes it behind a narrow Apply(ctx, year) interface, in
// place of the dynamic ORM-text-fragment dispatch §9 flags for replacement.
package engine

import (
	"context"
	"time"

	"schoolrisk/pkg/core/config"
	"schoolrisk/pkg/core/logging"
	"schoolrisk/pkg/core/store"
)

// BatchReport is returned by every Apply call and is what the orchestrator
// logs per §7's "one structured log line per batch" requirement.
type BatchReport struct {
	Stage        string
	AcademicYear string
	RowsAffected int
	Elapsed      time.Duration
}

// Stage is the interface every engine in this package implements. The
// pipeline package treats all ten stages uniformly through it.
type Stage interface {
	// Name is the stage's identity for logging, error annotation, and
	// --from/--to CLI cuts.
	Name() string

	// Apply runs the stage for a single academic_year batch. It must be
	// idempotent: re-running it with unchanged inputs reproduces the same
	// output rows (§3 lifecycle rule, property 8).
	Apply(ctx context.Context, st *store.Store, cfg *config.Config, year string) (BatchReport, error)
}

// timeBatch is a small helper so every engine reports elapsed time the same
// way.
func timeBatch(stage, year string, rows int, start time.Time) BatchReport {
	return BatchReport{Stage: stage, AcademicYear: year, RowsAffected: rows, Elapsed: time.Since(start)}
}

// logBatch emits the one-line-per-batch log entry (§7) for a completed
// Apply call.
func logBatch(log logging.Logger, r BatchReport) {
	logging.BatchLogger(log, r.Stage, r.AcademicYear, r.RowsAffected, r.Elapsed)
}
