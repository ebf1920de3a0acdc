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

// RiskTrendEngine is stage 6 (§4.7): year-over-year risk_score delta,
// direction classification, and chronic/volatile flags.
type RiskTrendEngine struct {
	log logging.Logger
}

// NewRiskTrendEngine builds the stage 6 engine.
func NewRiskTrendEngine(log logging.Logger) *RiskTrendEngine {
	return &RiskTrendEngine{log: log}
}

func (e *RiskTrendEngine) Name() string { return "risk-trend" }

// Apply runs stage 6 for a single academic_year. The LAG windows span the
// school's whole history (not just year), the same pitfall §4.9 calls out
// for the WMA forecast, then the result is filtered to the requested year.
func (e *RiskTrendEngine) Apply(ctx context.Context, st *store.Store, cfg *config.Config, year string) (BatchReport, error) {
	start := time.Now()

	insert := fmt.Sprintf(`
		WITH series AS (
			SELECT
				school_id,
				academic_year,
				risk_score,
				risk_level,
				LAG(risk_score, 1) OVER (PARTITION BY school_id ORDER BY academic_year) AS prev_risk_score,
				LAG(risk_level, 1) OVER (PARTITION BY school_id ORDER BY academic_year) AS prev1_level,
				LAG(risk_level, 2) OVER (PARTITION BY school_id ORDER BY academic_year) AS prev2_level
			FROM infrastructure_details
		)
		INSERT INTO risk_trend (
			school_id, academic_year, prev_risk_score, risk_delta, trend_direction, is_chronic, is_volatile
		)
		SELECT
			school_id,
			academic_year,
			prev_risk_score,
			risk_score - prev_risk_score,
			CASE
				WHEN prev_risk_score IS NULL THEN 'BASELINE'
				WHEN risk_score - prev_risk_score < -%f THEN 'IMPROVING'
				WHEN risk_score - prev_risk_score > %f THEN 'DETERIORATING'
				ELSE 'STABLE'
			END,
			COALESCE(
				risk_level IN ('HIGH', 'CRITICAL')
					AND prev1_level IN ('HIGH', 'CRITICAL')
					AND prev2_level IN ('HIGH', 'CRITICAL'),
				FALSE
			),
			COALESCE(ABS(risk_score - prev_risk_score) > %f, FALSE)
		FROM series
		WHERE academic_year = $1
	`, cfg.TrendBand, cfg.TrendBand, cfg.VolatileThreshold)

	var rows int
	err := store.WithRetry(ctx, func(ctx context.Context) error {
		tx, err := st.Pool.Begin(ctx)
		if err != nil {
			return err
		}
		defer tx.Rollback(ctx)

		if _, err := tx.Exec(ctx, `DELETE FROM risk_trend WHERE academic_year = $1`, year); err != nil {
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
			fmt.Errorf("no risk_trend rows produced for academic_year %s", year))
	}

	report := timeBatch(e.Name(), year, rows, start)
	logBatch(e.log, report)
	return report, nil
}
