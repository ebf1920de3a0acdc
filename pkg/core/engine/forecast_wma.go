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

// WMAForecastEngine is stage 9 (§4.9): a closed-form 3-year weighted moving
// average projection, 3 horizons ahead, from each school's latest observed
// year.
type WMAForecastEngine struct {
	log logging.Logger
}

// NewWMAForecastEngine builds the stage 9 engine.
func NewWMAForecastEngine(log logging.Logger) *WMAForecastEngine {
	return &WMAForecastEngine{log: log}
}

func (e *WMAForecastEngine) Name() string { return "forecast-wma" }

// Apply runs stage 9 for schools whose latest observed year is the given
// base year. The three deltas feeding the weighted growth rate are LAG
// windows over each school's complete series, computed before any filter is
// applied — filtering to the base year first would collapse the partition
// to one row and force every lag to NULL (§4.9's documented pitfall).
func (e *WMAForecastEngine) Apply(ctx context.Context, st *store.Store, cfg *config.Config, year string) (BatchReport, error) {
	start := time.Now()

	classroomNorm := model.ClassroomNormCaseSQL("s.school_category")
	ptrNorm := model.PTRNormCaseSQL("s.school_category")

	insert := fmt.Sprintf(`
		WITH series AS (
			SELECT
				ym.school_id,
				ym.academic_year,
				ym.total_enrolment AS e_t,
				LAG(ym.total_enrolment, 1) OVER w AS e_t1,
				LAG(ym.total_enrolment, 2) OVER w AS e_t2,
				LAG(ym.total_enrolment, 3) OVER w AS e_t3,
				ROW_NUMBER() OVER (PARTITION BY ym.school_id ORDER BY ym.academic_year DESC) AS recency
			FROM yearly_metrics ym
			WINDOW w AS (PARTITION BY ym.school_id ORDER BY ym.academic_year)
		),
		base AS (
			SELECT * FROM series WHERE academic_year = $1 AND recency = 1
		),
		growth AS (
			SELECT
				school_id,
				academic_year,
				e_t,
				GREATEST(-0.30, LEAST(0.30,
					CASE WHEN e_t1 > 0 THEN
						(3 * (e_t - e_t1) + 2 * (e_t1 - e_t2) + 1 * (e_t2 - e_t3))::NUMERIC / (6 * e_t1)
					ELSE 0 END
				)) AS g
			FROM base
		),
		horizons AS (
			SELECT g.school_id, g.academic_year, g.e_t, g.g, h.k
			FROM growth g
			CROSS JOIN (VALUES (1), (2), (3)) AS h(k)
		),
		projected AS (
			SELECT
				school_id,
				academic_year,
				k,
				GREATEST(0, ROUND(e_t * POWER(1 + g, k))) AS projected_enrolment,
				g
			FROM horizons
		)
		INSERT INTO enrolment_forecast_wma (
			school_id, base_year, years_ahead, base_enrolment, growth_rate_used,
			projected_enrolment, projected_classrooms_req, projected_teachers_req,
			projected_classroom_gap, projected_teacher_gap
		)
		SELECT
			p.school_id,
			p.academic_year,
			p.k,
			b.e_t,
			p.g,
			p.projected_enrolment,
			CEIL(p.projected_enrolment / %s)::INTEGER,
			CEIL(p.projected_enrolment / %s)::INTEGER,
			GREATEST(0, CEIL(p.projected_enrolment / %s)::INTEGER - COALESCE(i.usable_class_rooms, 0)),
			GREATEST(0, CEIL(p.projected_enrolment / %s)::INTEGER - COALESCE(t.total_teachers, 0))
		FROM projected p
		JOIN base b ON b.school_id = p.school_id
		JOIN schools s ON s.school_id = p.school_id
		LEFT JOIN infrastructure_details i ON i.school_id = p.school_id AND i.academic_year = $1
		LEFT JOIN teacher_metrics t ON t.school_id = p.school_id AND t.academic_year = $1
	`, classroomNorm, ptrNorm, classroomNorm, ptrNorm)

	var rows int
	err := store.WithRetry(ctx, func(ctx context.Context) error {
		tx, err := st.Pool.Begin(ctx)
		if err != nil {
			return err
		}
		defer tx.Rollback(ctx)

		if _, err := tx.Exec(ctx, `DELETE FROM enrolment_forecast_wma WHERE base_year = $1`, year); err != nil {
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
			fmt.Errorf("no enrolment_forecast_wma rows produced for base_year %s", year))
	}

	report := timeBatch(e.Name(), year, rows, start)
	logBatch(e.log, report)
	return report, nil
}
