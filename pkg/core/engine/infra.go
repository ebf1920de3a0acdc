package engine

import (
	"context"
	"fmt"
	"time"

	"schoolrisk/pkg/core/config"
	"schoolrisk/pkg/core/logging"
	"schoolrisk/pkg/core/model"
	"schoolrisk/pkg/core/pipelineerr"
	"schoolrisk/pkg/core/store"
)

// InfraGapEngine is stage 1 (§4.2): norm-based required_class_rooms and
// classroom_gap, computed by one set-oriented UPDATE per academic year.
type InfraGapEngine struct {
	log logging.Logger
}

// NewInfraGapEngine builds the stage 1 engine.
func NewInfraGapEngine(log logging.Logger) *InfraGapEngine {
	return &InfraGapEngine{log: log}
}

func (e *InfraGapEngine) Name() string { return "infra-gap" }

// Apply runs stage 1 for a single academic_year. Missing enrolment yields
// required_class_rooms = 0; unknown categories fall back to norm 40 with a
// warning, per §4.2's error-handling rule.
func (e *InfraGapEngine) Apply(ctx context.Context, st *store.Store, cfg *config.Config, year string) (BatchReport, error) {
	start := time.Now()

	if err := warnUnknownCategories(ctx, st, e.log, year); err != nil {
		return BatchReport{}, pipelineerr.New(pipelineerr.KindTransient, e.Name(), year, 0, err)
	}

	normCase := model.ClassroomNormCaseSQL("s.school_category")

	query := fmt.Sprintf(`
		UPDATE infrastructure_details AS i
		SET
			required_class_rooms = CEIL(COALESCE(ym.total_enrolment, 0)::NUMERIC / %s)::INTEGER,
			classroom_gap = GREATEST(
				0,
				CEIL(COALESCE(ym.total_enrolment, 0)::NUMERIC / %s)::INTEGER - COALESCE(i.usable_class_rooms, 0)
			)
		FROM schools AS s
		LEFT JOIN yearly_metrics AS ym
			ON ym.school_id = s.school_id AND ym.academic_year = $1
		WHERE i.school_id = s.school_id AND i.academic_year = $1
	`, normCase, normCase)

	var rows int
	err := store.WithRetry(ctx, func(ctx context.Context) error {
		tag, err := st.Pool.Exec(ctx, query, year)
		if err != nil {
			return err
		}
		rows = int(tag.RowsAffected())
		return nil
	})
	if err != nil {
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

// warnUnknownCategories logs (but does not fail on) schools whose category
// falls outside the policy contract, since the CASE fallback already covers
// them with the most-permissive norm.
func warnUnknownCategories(ctx context.Context, st *store.Store, log logging.Logger, year string) error {
	rows, err := st.Pool.Query(ctx, `
		SELECT DISTINCT s.school_id, s.school_category
		FROM schools s
		JOIN infrastructure_details i ON i.school_id = s.school_id AND i.academic_year = $1
		WHERE s.school_category NOT BETWEEN 1 AND 11
	`, year)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var schoolID string
		var category int
		if err := rows.Scan(&schoolID, &category); err != nil {
			return err
		}
		log.Warn((&model.UnknownCategoryError{SchoolID: schoolID, Category: category}).Error())
	}
	return rows.Err()
}
