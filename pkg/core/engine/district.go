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

// DistrictComplianceEngine is stage 7: district-year aggregates of the
// per-school risk classification (DistrictComplianceRow, §3), graded A–F on
// avg_risk_score and ranked against every other district in the same year.
type DistrictComplianceEngine struct {
	log logging.Logger
}

// NewDistrictComplianceEngine builds the stage 7 engine.
func NewDistrictComplianceEngine(log logging.Logger) *DistrictComplianceEngine {
	return &DistrictComplianceEngine{log: log}
}

func (e *DistrictComplianceEngine) Name() string { return "district-compliance" }

// Apply runs stage 7 for a single academic_year. yoy_risk_change needs the
// district's own prior-year average, so the aggregate is computed in a CTE
// before the LAG is applied, and state_rank is computed across every
// district present for the year.
func (e *DistrictComplianceEngine) Apply(ctx context.Context, st *store.Store, cfg *config.Config, year string) (BatchReport, error) {
	start := time.Now()

	insert := fmt.Sprintf(`
		WITH by_district AS (
			SELECT
				s.district,
				i.academic_year,
				COUNT(*) AS total_schools,
				AVG(i.risk_score) AS avg_risk_score,
				AVG((i.risk_level = 'CRITICAL')::INT::NUMERIC) AS pct_critical,
				AVG((i.risk_level = 'HIGH')::INT::NUMERIC) AS pct_high,
				AVG((i.risk_level = 'MODERATE')::INT::NUMERIC) AS pct_moderate,
				AVG((i.risk_level = 'LOW')::INT::NUMERIC) AS pct_low
			FROM infrastructure_details i
			JOIN schools s ON s.school_id = i.school_id
			GROUP BY s.district, i.academic_year
		),
		with_trend AS (
			SELECT
				district,
				academic_year,
				total_schools,
				avg_risk_score,
				pct_critical,
				pct_high,
				pct_moderate,
				pct_low,
				avg_risk_score - LAG(avg_risk_score, 1) OVER (PARTITION BY district ORDER BY academic_year) AS yoy_risk_change
			FROM by_district
		)
		INSERT INTO district_compliance (
			district, academic_year, total_schools, avg_risk_score,
			pct_critical, pct_high, pct_moderate, pct_low,
			compliance_grade, yoy_risk_change, state_rank
		)
		SELECT
			district,
			academic_year,
			total_schools,
			avg_risk_score,
			pct_critical,
			pct_high,
			pct_moderate,
			pct_low,
			CASE
				WHEN avg_risk_score < %f THEN 'A'
				WHEN avg_risk_score < %f THEN 'B'
				WHEN avg_risk_score < %f THEN 'C'
				WHEN avg_risk_score < %f THEN 'D'
				ELSE 'F'
			END,
			yoy_risk_change,
			RANK() OVER (ORDER BY avg_risk_score ASC)
		FROM with_trend
		WHERE academic_year = $1
	`, cfg.ComplianceGrades.A, cfg.ComplianceGrades.B, cfg.ComplianceGrades.C, cfg.ComplianceGrades.D)

	var rows int
	err := store.WithRetry(ctx, func(ctx context.Context) error {
		tx, err := st.Pool.Begin(ctx)
		if err != nil {
			return err
		}
		defer tx.Rollback(ctx)

		if _, err := tx.Exec(ctx, `DELETE FROM district_compliance WHERE academic_year = $1`, year); err != nil {
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
			fmt.Errorf("no district_compliance rows produced for academic_year %s", year))
	}

	report := timeBatch(e.Name(), year, rows, start)
	logBatch(e.log, report)
	return report, nil
}
