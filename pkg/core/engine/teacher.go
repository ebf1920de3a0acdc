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

// TeacherAdequacyEngine is stage 2 (§4.3): PTR-norm-based required_teachers
// and teacher_gap.
type TeacherAdequacyEngine struct {
	log logging.Logger
}

// NewTeacherAdequacyEngine builds the stage 2 engine.
func NewTeacherAdequacyEngine(log logging.Logger) *TeacherAdequacyEngine {
	return &TeacherAdequacyEngine{log: log}
}

func (e *TeacherAdequacyEngine) Name() string { return "teacher-adequacy" }

// Apply runs stage 2 for a single academic_year. Missing enrolment yields
// required_teachers = 0, mirroring stage 1's treatment of missing enrolment.
func (e *TeacherAdequacyEngine) Apply(ctx context.Context, st *store.Store, cfg *config.Config, year string) (BatchReport, error) {
	start := time.Now()

	if err := warnUnknownCategories(ctx, st, e.log, year); err != nil {
		return BatchReport{}, pipelineerr.New(pipelineerr.KindTransient, e.Name(), year, 0, err)
	}

	normCase := model.PTRNormCaseSQL("s.school_category")

	query := fmt.Sprintf(`
		UPDATE teacher_metrics AS t
		SET
			required_teachers = CEIL(COALESCE(ym.total_enrolment, 0)::NUMERIC / %s)::INTEGER,
			teacher_gap = GREATEST(
				0,
				CEIL(COALESCE(ym.total_enrolment, 0)::NUMERIC / %s)::INTEGER - COALESCE(t.total_teachers, 0)
			)
		FROM schools AS s
		LEFT JOIN yearly_metrics AS ym
			ON ym.school_id = s.school_id AND ym.academic_year = $1
		WHERE t.school_id = s.school_id AND t.academic_year = $1
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
			fmt.Errorf("no teacher_metrics rows for academic_year %s", year))
	}

	// teacher_deficit_ratio/classroom_deficit_ratio on infrastructure_details
	// are written solely by compliance-risk's Pass A: stage 1 and stage 2
	// must touch disjoint tables so they can run concurrently, and
	// compliance-risk always runs after both (dag.go), so a second writer
	// here would just be clobbered.
	report := timeBatch(e.Name(), year, rows, start)
	logBatch(e.log, report)
	return report, nil
}
