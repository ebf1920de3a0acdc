package engine

import (
	"context"
	"fmt"
	"time"

	"schoolrisk/pkg/core/config"
	"schoolrisk/pkg/core/logging"
	"schoolrisk/pkg/core/pipelineerr"
	"schoolrisk/pkg/core/store"
)

// PrioritisationEngine is stage 4 (§4.5): per-year DELETE+INSERT of
// school_priority_index from rank/percentile window functions.
type PrioritisationEngine struct {
	log logging.Logger
}

// NewPrioritisationEngine builds the stage 4 engine.
func NewPrioritisationEngine(log logging.Logger) *PrioritisationEngine {
	return &PrioritisationEngine{log: log}
}

func (e *PrioritisationEngine) Name() string { return "prioritisation" }

// Apply runs stage 4 for a single academic_year: one DELETE, one INSERT ...
// SELECT, both in the same transaction so a failure leaves the prior
// contents of school_priority_index untouched for that year.
func (e *PrioritisationEngine) Apply(ctx context.Context, st *store.Store, cfg *config.Config, year string) (BatchReport, error) {
	start := time.Now()

	insert := fmt.Sprintf(`
		WITH ranked AS (
			SELECT
				i.school_id,
				i.academic_year,
				i.risk_score,
				RANK() OVER (ORDER BY i.risk_score DESC) AS risk_rank,
				RANK() OVER (PARTITION BY s.district ORDER BY i.risk_score DESC) AS district_rank,
				PERCENT_RANK() OVER (ORDER BY i.risk_score DESC) AS percentile
			FROM infrastructure_details i
			JOIN schools s ON s.school_id = i.school_id
			WHERE i.academic_year = $1
		),
		persistence AS (
			SELECT
				school_id,
				academic_year,
				risk_level,
				LAG(risk_level, 1) OVER (PARTITION BY school_id ORDER BY academic_year) AS prev1,
				LAG(risk_level, 2) OVER (PARTITION BY school_id ORDER BY academic_year) AS prev2
			FROM infrastructure_details
		)
		INSERT INTO school_priority_index (
			school_id, academic_year, risk_score, risk_rank, district_rank, percentile, priority_bucket, persistent_high_risk
		)
		SELECT
			r.school_id,
			r.academic_year,
			r.risk_score,
			r.risk_rank,
			r.district_rank,
			r.percentile,
			CASE
				WHEN r.percentile < %f THEN 'TOP_5'
				WHEN r.percentile < %f THEN 'TOP_10'
				WHEN r.percentile < %f THEN 'TOP_20'
				ELSE 'STANDARD'
			END,
			COALESCE(p.prev1 IN ('HIGH', 'CRITICAL') AND p.prev2 IN ('HIGH', 'CRITICAL'), FALSE)
		FROM ranked r
		JOIN persistence p ON p.school_id = r.school_id AND p.academic_year = r.academic_year
	`, cfg.PriorityBuckets.Top5, cfg.PriorityBuckets.Top10, cfg.PriorityBuckets.Top20)

	var rows int
	err := store.WithRetry(ctx, func(ctx context.Context) error {
		tx, err := st.Pool.Begin(ctx)
		if err != nil {
			return err
		}
		defer tx.Rollback(ctx)

		if _, err := tx.Exec(ctx, `DELETE FROM school_priority_index WHERE academic_year = $1`, year); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, insert, year)
		if err != nil {
			return err
		}
		rows = int(tag.RowsAffected())
		return tx.Commit(ctx)
	})
	if err != nil {
		return BatchReport{}, pipelineerr.New(pipelineerr.KindTransient, e.Name(), year, rows, err)
	}
	if rows == 0 {
		return BatchReport{}, pipelineerr.New(pipelineerr.KindDataShape, e.Name(), year, 0,
			fmt.Errorf("no school_priority_index rows produced for academic_year %s", year))
	}

	report := timeBatch(e.Name(), year, rows, start)
	logBatch(e.log, report)
	return report, nil
}
