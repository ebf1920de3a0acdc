package engine

import (
	"context"
	"fmt"
	"hash/crc32"
	"math"
	"time"

	"schoolrisk/pkg/core/config"
	"schoolrisk/pkg/core/logging"
	"schoolrisk/pkg/core/pipelineerr"
	"schoolrisk/pkg/core/store"
)

// ProposalValidationEngine is stage 8 (§4.8): deterministic synthetic demand
// proposals and their rule-based validation against computed gaps.
type ProposalValidationEngine struct {
	log logging.Logger
}

// NewProposalValidationEngine builds the stage 8 engine.
func NewProposalValidationEngine(log logging.Logger) *ProposalValidationEngine {
	return &ProposalValidationEngine{log: log}
}

func (e *ProposalValidationEngine) Name() string { return "proposal-validation" }

// noise renders the CRC32-based pseudo-random factor of §4.8: a checksum
// over (school_id, academic_year, salt) is the only source of variation, so
// the same inputs always reproduce the same requested quantities. No
// database dialect in the retrieved corpus exposes a CRC32 builtin, so this
// runs in Go against rows fetched from the store rather than inline SQL.
func noise(schoolID, year, salt string, cfg *config.Config) float64 {
	sum := crc32.ChecksumIEEE([]byte(schoolID + year + salt))
	return cfg.ProposalNoiseFloor + float64(sum%80)/100*(cfg.ProposalNoiseSpan/0.80)
}

type gapRow struct {
	schoolID string
	gapCR    int
	gapTR    int
}

// Apply runs stage 8 for a single academic_year: generate proposals from
// stage 1/2 gaps, then validate each against the rule table of §4.8.
func (e *ProposalValidationEngine) Apply(ctx context.Context, st *store.Store, cfg *config.Config, year string) (BatchReport, error) {
	start := time.Now()

	var gaps []gapRow
	err := store.WithRetry(ctx, func(ctx context.Context) error {
		gaps = gaps[:0]
		rows, err := st.Pool.Query(ctx, `
			SELECT i.school_id, COALESCE(i.classroom_gap, 0), COALESCE(t.teacher_gap, 0)
			FROM infrastructure_details i
			JOIN teacher_metrics t ON t.school_id = i.school_id AND t.academic_year = i.academic_year
			WHERE i.academic_year = $1
		`, year)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var g gapRow
			if err := rows.Scan(&g.schoolID, &g.gapCR, &g.gapTR); err != nil {
				return err
			}
			gaps = append(gaps, g)
		}
		return rows.Err()
	})
	if err != nil {
		return BatchReport{}, pipelineerr.New(pipelineerr.KindTransient, e.Name(), year, 0, err)
	}
	if len(gaps) == 0 {
		return BatchReport{}, pipelineerr.New(pipelineerr.KindDataShape, e.Name(), year, 0,
			fmt.Errorf("no infrastructure/teacher rows for academic_year %s", year))
	}

	schoolIDs := make([]string, len(gaps))
	reqCR := make([]int32, len(gaps))
	reqTR := make([]int32, len(gaps))
	for idx, g := range gaps {
		reqCR[idx] = int32(requestedFor(g.gapCR, noise(g.schoolID, year, "classroom", cfg)))
		reqTR[idx] = int32(requestedFor(g.gapTR, noise(g.schoolID, year, "teacher", cfg)))
		schoolIDs[idx] = g.schoolID
	}

	var rows int
	err = store.WithRetry(ctx, func(ctx context.Context) error {
		tx, err := st.Pool.Begin(ctx)
		if err != nil {
			return err
		}
		defer tx.Rollback(ctx)

		if _, err := tx.Exec(ctx, `DELETE FROM proposals WHERE academic_year = $1`, year); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM proposal_validations WHERE academic_year = $1`, year); err != nil {
			return err
		}

		if _, err := tx.Exec(ctx, `
			INSERT INTO proposals (school_id, academic_year, classrooms_requested, teachers_requested)
			SELECT s, $2, cr, tr
			FROM UNNEST($1::text[], $3::int[], $4::int[]) AS u(s, cr, tr)
		`, schoolIDs, year, reqCR, reqTR); err != nil {
			return err
		}

		validate := `
			INSERT INTO proposal_validations (
				school_id, academic_year, classroom_ratio, teacher_ratio,
				decision_status, reason_code, confidence_score
			)
			SELECT
				p.school_id,
				p.academic_year,
				p.classrooms_requested::NUMERIC / GREATEST(i.classroom_gap, 1) AS classroom_ratio,
				p.teachers_requested::NUMERIC / GREATEST(t.teacher_gap, 1) AS teacher_ratio,
				CASE
					WHEN i.classroom_gap = 0 AND t.teacher_gap = 0 AND (p.classrooms_requested > 0 OR p.teachers_requested > 0) THEN 'REJECTED'
					WHEN p.classrooms_requested::NUMERIC / GREATEST(i.classroom_gap, 1) > 1.50 THEN 'REJECTED'
					WHEN p.teachers_requested::NUMERIC / GREATEST(t.teacher_gap, 1) > 1.50 THEN 'REJECTED'
					WHEN p.classrooms_requested::NUMERIC / GREATEST(i.classroom_gap, 1) > 1.20 THEN 'FLAGGED'
					WHEN p.teachers_requested::NUMERIC / GREATEST(t.teacher_gap, 1) > 1.20 THEN 'FLAGGED'
					WHEN p.classrooms_requested::NUMERIC / GREATEST(i.classroom_gap, 1) < 0.50 AND i.classroom_gap > 0 THEN 'FLAGGED'
					WHEN p.teachers_requested::NUMERIC / GREATEST(t.teacher_gap, 1) < 0.50 AND t.teacher_gap > 0 THEN 'FLAGGED'
					WHEN p.classrooms_requested = 0 AND p.teachers_requested = 0 AND i.classroom_gap = 0 AND t.teacher_gap = 0 THEN 'ACCEPTED'
					ELSE 'ACCEPTED'
				END,
				CASE
					WHEN i.classroom_gap = 0 AND t.teacher_gap = 0 AND (p.classrooms_requested > 0 OR p.teachers_requested > 0) THEN 'NO_DEFICIT'
					WHEN p.classrooms_requested::NUMERIC / GREATEST(i.classroom_gap, 1) > 1.50 THEN 'CLASSROOM_OVER_REQUEST'
					WHEN p.teachers_requested::NUMERIC / GREATEST(t.teacher_gap, 1) > 1.50 THEN 'TEACHER_OVER_REQUEST'
					WHEN p.classrooms_requested::NUMERIC / GREATEST(i.classroom_gap, 1) > 1.20 THEN 'CLASSROOM_MODERATE_OVER'
					WHEN p.teachers_requested::NUMERIC / GREATEST(t.teacher_gap, 1) > 1.20 THEN 'TEACHER_MODERATE_OVER'
					WHEN p.classrooms_requested::NUMERIC / GREATEST(i.classroom_gap, 1) < 0.50 AND i.classroom_gap > 0 THEN 'CLASSROOM_UNDER_REQUEST'
					WHEN p.teachers_requested::NUMERIC / GREATEST(t.teacher_gap, 1) < 0.50 AND t.teacher_gap > 0 THEN 'TEACHER_UNDER_REQUEST'
					WHEN p.classrooms_requested = 0 AND p.teachers_requested = 0 AND i.classroom_gap = 0 AND t.teacher_gap = 0 THEN 'NO_REQUEST'
					ELSE 'WITHIN_TOLERANCE'
				END,
				GREATEST(0, 1 - (
					ABS(1 - p.classrooms_requested::NUMERIC / GREATEST(i.classroom_gap, 1))
					+ ABS(1 - p.teachers_requested::NUMERIC / GREATEST(t.teacher_gap, 1))
				) / 2)
			FROM proposals p
			JOIN infrastructure_details i ON i.school_id = p.school_id AND i.academic_year = p.academic_year
			JOIN teacher_metrics t ON t.school_id = p.school_id AND t.academic_year = p.academic_year
			WHERE p.academic_year = $1
		`
		tag, err := tx.Exec(ctx, validate, year)
		if err != nil {
			return err
		}
		rows = int(tag.RowsAffected())
		return tx.Commit(ctx)
	})
	if err != nil {
		return BatchReport{}, pipelineerr.New(pipelineerr.KindTransient, e.Name(), year, rows, err)
	}

	report := timeBatch(e.Name(), year, rows, start)
	logBatch(e.log, report)
	return report, nil
}

// requestedFor rounds gap*noiseFactor, per §4.8's requested_d rule. A zero
// gap stays zero: the default configuration does not model a no-deficit
// request.
func requestedFor(gap int, factor float64) int {
	if gap == 0 {
		return 0
	}
	return int(math.Round(float64(gap) * factor))
}
