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

// ComplianceRiskEngine is stage 3 (§4.4): three ordered set-oriented passes
// producing the composite risk_score and 4-tier risk_level.
type ComplianceRiskEngine struct {
	log logging.Logger
}

// NewComplianceRiskEngine builds the stage 3 engine.
func NewComplianceRiskEngine(log logging.Logger) *ComplianceRiskEngine {
	return &ComplianceRiskEngine{log: log}
}

func (e *ComplianceRiskEngine) Name() string { return "compliance-risk" }

// Apply runs all three passes of §4.4, each in its own set-oriented UPDATE.
// Passes A and C are scoped to academic_year; Pass B updates every year.
func (e *ComplianceRiskEngine) Apply(ctx context.Context, st *store.Store, cfg *config.Config, year string) (BatchReport, error) {
	start := time.Now()

	// Pass A — deficit ratios, clamped to [0,1] (required_* = 0 floors the
	// denominator at 1 so the ratio never divides by zero).
	passA := `
		UPDATE infrastructure_details AS i
		SET
			teacher_deficit_ratio = LEAST(1.0, t.teacher_gap::NUMERIC / GREATEST(t.required_teachers, 1)),
			classroom_deficit_ratio = LEAST(1.0, i.classroom_gap::NUMERIC / GREATEST(i.required_class_rooms, 1))
		FROM teacher_metrics AS t
		WHERE i.school_id = t.school_id AND i.academic_year = t.academic_year AND i.academic_year = $1
	`
	var rows int
	if err := store.WithRetry(ctx, func(ctx context.Context) error {
		tag, err := st.Pool.Exec(ctx, passA, year)
		if err != nil {
			return err
		}
		rows = int(tag.RowsAffected())
		return nil
	}); err != nil {
		return BatchReport{}, pipelineerr.New(pipelineerr.KindTransient, e.Name(), year, rows, err)
	}

	// Pass B — enrolment YoY growth. This is a whole-series window function,
	// so it runs over every year, not just the requested one: LAG needs the
	// full per-school history to see the prior year at all.
	passB := `
		WITH lagged AS (
			SELECT
				ym.school_id,
				ym.academic_year,
				ym.total_enrolment,
				LAG(ym.total_enrolment, 1) OVER (
					PARTITION BY ym.school_id ORDER BY ym.academic_year
				) AS prev_enrolment
			FROM yearly_metrics ym
		)
		UPDATE infrastructure_details AS i
		SET enrolment_growth_rate = CASE
			WHEN l.prev_enrolment > 0 THEN (l.total_enrolment - l.prev_enrolment)::NUMERIC / l.prev_enrolment
			ELSE NULL
		END
		FROM lagged l
		WHERE i.school_id = l.school_id AND i.academic_year = l.academic_year
	`
	if err := store.WithRetry(ctx, func(ctx context.Context) error {
		_, err := st.Pool.Exec(ctx, passB)
		return err
	}); err != nil {
		return BatchReport{}, pipelineerr.New(pipelineerr.KindTransient, e.Name(), year, rows, err)
	}

	// Pass C — composite score and classification, scoped back to the
	// requested year.
	passC := fmt.Sprintf(`
		UPDATE infrastructure_details
		SET
			risk_score = %f * COALESCE(teacher_deficit_ratio, 0)
				+ %f * COALESCE(classroom_deficit_ratio, 0)
				+ %f * LEAST(ABS(COALESCE(enrolment_growth_rate, 0)), %f),
			risk_level = CASE
				WHEN (%f * COALESCE(teacher_deficit_ratio, 0)
					+ %f * COALESCE(classroom_deficit_ratio, 0)
					+ %f * LEAST(ABS(COALESCE(enrolment_growth_rate, 0)), %f)) >= %f THEN 'CRITICAL'
				WHEN (%f * COALESCE(teacher_deficit_ratio, 0)
					+ %f * COALESCE(classroom_deficit_ratio, 0)
					+ %f * LEAST(ABS(COALESCE(enrolment_growth_rate, 0)), %f)) >= %f THEN 'HIGH'
				WHEN (%f * COALESCE(teacher_deficit_ratio, 0)
					+ %f * COALESCE(classroom_deficit_ratio, 0)
					+ %f * LEAST(ABS(COALESCE(enrolment_growth_rate, 0)), %f)) >= %f THEN 'MODERATE'
				ELSE 'LOW'
			END
		WHERE academic_year = $1
	`,
		cfg.RiskWeights.Teacher, cfg.RiskWeights.Classroom, cfg.RiskWeights.Growth, cfg.GrowthCapRisk,
		cfg.RiskWeights.Teacher, cfg.RiskWeights.Classroom, cfg.RiskWeights.Growth, cfg.GrowthCapRisk, cfg.RiskBands.Critical,
		cfg.RiskWeights.Teacher, cfg.RiskWeights.Classroom, cfg.RiskWeights.Growth, cfg.GrowthCapRisk, cfg.RiskBands.High,
		cfg.RiskWeights.Teacher, cfg.RiskWeights.Classroom, cfg.RiskWeights.Growth, cfg.GrowthCapRisk, cfg.RiskBands.Moderate,
	)
	if err := store.WithRetry(ctx, func(ctx context.Context) error {
		tag, err := st.Pool.Exec(ctx, passC, year)
		if err != nil {
			return err
		}
		rows = int(tag.RowsAffected())
		return nil
	}); err != nil {
		return BatchReport{}, pipelineerr.New(pipelineerr.KindTransient, e.Name(), year, rows, err)
	}
	if rows == 0 {
		return BatchReport{}, pipelineerr.New(pipelineerr.KindDataShape, e.Name(), year, 0,
			fmt.Errorf("no infrastructure_details rows for academic_year %s", year))
	}

	report := timeBatch(e.Name(), year, rows, start)
	logBatch(e.log, report)
	return report, nil
}
