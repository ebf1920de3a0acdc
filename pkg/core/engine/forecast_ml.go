package engine

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"schoolrisk/pkg/core/config"
	"schoolrisk/pkg/core/forecast/ml"
	"schoolrisk/pkg/core/logging"
	"schoolrisk/pkg/core/model"
	"schoolrisk/pkg/core/pipelineerr"
	"schoolrisk/pkg/core/store"
)

// MLForecastEngine is stage 10 (§4.10): a trained gradient-boosted
// growth-rate model, projected 3 horizons ahead and calibrated against
// training-set drift.
type MLForecastEngine struct {
	log logging.Logger
	seed int64
}

// NewMLForecastEngine builds the stage 10 engine. seed controls the GBM's
// row-subsampling draw, kept fixed so a re-run over unchanged data
// reproduces the same model.
func NewMLForecastEngine(log logging.Logger, seed int64) *MLForecastEngine {
	return &MLForecastEngine{log: log, seed: seed}
}

func (e *MLForecastEngine) Name() string { return "forecast-ml" }

type seriesRow struct {
	schoolID         string
	year             string
	category         int
	district         string
	management       string
	enrolment        int
	lag1, lag2, lag3 int
	rollingMean3     float64
	rollingStd3      float64
	totalTeachers    int
	totalClassrooms  int
	usableClassrooms int
	classroomGap     int
	teacherGap       int
	riskScore        float64
	teacherDeficit   float64
	classroomDeficit float64
}

// Apply runs stage 10: (re)train the ensemble over every transition
// strictly before the base year, project growth for each school whose
// latest observed year is the base year, and persist both the forecast
// rows and the model's provenance.
func (e *MLForecastEngine) Apply(ctx context.Context, st *store.Store, cfg *config.Config, year string) (BatchReport, error) {
	start := time.Now()

	rowsBySchool, err := e.loadSeries(ctx, st)
	if err != nil {
		return BatchReport{}, pipelineerr.New(pipelineerr.KindTransient, e.Name(), year, 0, err)
	}
	if len(rowsBySchool) == 0 {
		return BatchReport{}, pipelineerr.New(pipelineerr.KindDataShape, e.Name(), year, 0,
			fmt.Errorf("no yearly_metrics rows available to train forecast-ml"))
	}

	district := ml.NewLabelEncoder()
	management := ml.NewLabelEncoder()

	var transitions []ml.Sample
	projection := make(map[string]ml.Sample)

	schoolIDs := make([]string, 0, len(rowsBySchool))
	for schoolID := range rowsBySchool {
		schoolIDs = append(schoolIDs, schoolID)
	}
	sort.Strings(schoolIDs)

	for _, schoolID := range schoolIDs {
		series := rowsBySchool[schoolID]
		for i, r := range series {
			features := ml.Vector(toMLRow(r, district, management))

			if i+1 < len(series) && ml.Eligible(r.enrolment) && series[i+1].year < year {
				transitions = append(transitions, ml.Sample{
					SchoolID: schoolID,
					Year:     series[i+1].year,
					Features: features,
					Label:    ml.Label(series[i+1].enrolment, r.enrolment),
				})
			}
			if r.year == year && i == len(series)-1 {
				projection[schoolID] = ml.Sample{SchoolID: schoolID, Year: r.year, Features: features}
			}
		}
	}
	if len(transitions) == 0 {
		return BatchReport{}, pipelineerr.New(pipelineerr.KindDataShape, e.Name(), year, 0,
			fmt.Errorf("no training transitions available strictly before base_year %s", year))
	}
	if len(projection) == 0 {
		return BatchReport{}, pipelineerr.New(pipelineerr.KindDataShape, e.Name(), year, 0,
			fmt.Errorf("no schools have base_year %s as their latest observed year", year))
	}

	result := ml.Train(transitions, district, management, e.seed)

	rawPredictions := make([]float64, 0, len(projection))
	schoolOrder := make([]string, 0, len(projection))
	for _, schoolID := range schoolIDs {
		sample, ok := projection[schoolID]
		if !ok {
			continue
		}
		rawPredictions = append(rawPredictions, result.Project(sample.Features, cfg.ForecastGrowthCap))
		schoolOrder = append(schoolOrder, schoolID)
	}
	shift := ml.BiasShift(result.TrainTargetMean, rawPredictions)

	modelVersion := uuid.NewString()
	classroomNorm := model.ClassroomNorm
	ptrNorm := model.PTRNorm

	var rowsWritten int
	err = store.WithRetry(ctx, func(ctx context.Context) error {
		tx, err := st.Pool.Begin(ctx)
		if err != nil {
			return err
		}
		defer tx.Rollback(ctx)

		if _, err := tx.Exec(ctx, `DELETE FROM enrolment_forecast_ml WHERE base_year = $1`, year); err != nil {
			return err
		}

		for i, schoolID := range schoolOrder {
			r := rowsBySchool[schoolID]
			base := latest(r, year)
			if base == nil {
				continue
			}
			gPred := math.Max(-cfg.ForecastGrowthCap, math.Min(cfg.ForecastGrowthCap, rawPredictions[i]+shift))

			classroomN, fallbackC := classroomNormLookup(classroomNorm, base.category)
			ptrN, fallbackT := ptrNormLookup(ptrNorm, base.category)
			if fallbackC || fallbackT {
				e.log.Warn((&model.UnknownCategoryError{SchoolID: schoolID, Category: base.category}).Error())
			}

			for k := 1; k <= 3; k++ {
				projectedEnrolment := int(math.Max(0, math.Round(float64(base.enrolment)*math.Pow(1+gPred, float64(k)))))
				projClassrooms := ceilDiv(projectedEnrolment, classroomN)
				projTeachers := ceilDiv(projectedEnrolment, ptrN)
				gapClassrooms := maxInt(0, projClassrooms-base.usableClassrooms)
				gapTeachers := maxInt(0, projTeachers-base.totalTeachers)

				_, err := tx.Exec(ctx, `
					INSERT INTO enrolment_forecast_ml (
						school_id, base_year, years_ahead, base_enrolment, growth_rate_used,
						projected_enrolment, projected_classrooms_req, projected_teachers_req,
						projected_classroom_gap, projected_teacher_gap, model_version
					) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
				`, schoolID, year, k, base.enrolment, gPred, projectedEnrolment,
					projClassrooms, projTeachers, gapClassrooms, gapTeachers, modelVersion)
				if err != nil {
					return err
				}
				rowsWritten++
			}
		}

		artifact := ml.ToArtifact(modelVersion, result, shift, time.Now().UTC())
		metadataYAML, err := yaml.Marshal(artifact)
		if err != nil {
			return fmt.Errorf("marshal model artifact: %w", err)
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO model_artifacts (model_version, trained_at, metadata_yaml)
			VALUES ($1, $2, $3)
		`, modelVersion, artifact.TrainedAt, string(metadataYAML)); err != nil {
			return err
		}

		return tx.Commit(ctx)
	})
	if err != nil {
		return BatchReport{}, pipelineerr.New(pipelineerr.KindTransient, e.Name(), year, rowsWritten, err)
	}

	report := timeBatch(e.Name(), year, rowsWritten, start)
	logBatch(e.log, report)
	return report, nil
}

// loadSeries fetches every school's full observed history, ordered by
// year, along with the rolling enrolment statistics the feature set needs.
func (e *MLForecastEngine) loadSeries(ctx context.Context, st *store.Store) (map[string][]seriesRow, error) {
	query := `
		SELECT
			ym.school_id,
			ym.academic_year,
			s.school_category,
			s.district,
			COALESCE(s.management_type, ''),
			COALESCE(ym.total_enrolment, 0),
			COALESCE(LAG(ym.total_enrolment, 1) OVER w, 0),
			COALESCE(LAG(ym.total_enrolment, 2) OVER w, 0),
			COALESCE(LAG(ym.total_enrolment, 3) OVER w, 0),
			COALESCE(AVG(ym.total_enrolment) OVER (PARTITION BY ym.school_id ORDER BY ym.academic_year ROWS BETWEEN 2 PRECEDING AND CURRENT ROW), 0),
			COALESCE(STDDEV_POP(ym.total_enrolment) OVER (PARTITION BY ym.school_id ORDER BY ym.academic_year ROWS BETWEEN 2 PRECEDING AND CURRENT ROW), 0),
			COALESCE(t.total_teachers, 0),
			COALESCE(i.total_class_rooms, 0),
			COALESCE(i.usable_class_rooms, 0),
			COALESCE(i.classroom_gap, 0),
			COALESCE(t.teacher_gap, 0),
			COALESCE(i.risk_score, 0),
			COALESCE(i.teacher_deficit_ratio, 0),
			COALESCE(i.classroom_deficit_ratio, 0)
		FROM yearly_metrics ym
		JOIN schools s ON s.school_id = ym.school_id
		LEFT JOIN infrastructure_details i ON i.school_id = ym.school_id AND i.academic_year = ym.academic_year
		LEFT JOIN teacher_metrics t ON t.school_id = ym.school_id AND t.academic_year = ym.academic_year
		WINDOW w AS (PARTITION BY ym.school_id ORDER BY ym.academic_year)
		ORDER BY ym.school_id, ym.academic_year
	`
	rows, err := st.Pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string][]seriesRow)
	for rows.Next() {
		var r seriesRow
		if err := rows.Scan(
			&r.schoolID, &r.year, &r.category, &r.district, &r.management,
			&r.enrolment, &r.lag1, &r.lag2, &r.lag3,
			&r.rollingMean3, &r.rollingStd3,
			&r.totalTeachers, &r.totalClassrooms, &r.usableClassrooms,
			&r.classroomGap, &r.teacherGap, &r.riskScore, &r.teacherDeficit, &r.classroomDeficit,
		); err != nil {
			return nil, err
		}
		out[r.schoolID] = append(out[r.schoolID], r)
	}
	return out, rows.Err()
}

func toMLRow(r seriesRow, district, management *ml.LabelEncoder) ml.Row {
	return ml.Row{
		SchoolID:         r.schoolID,
		AcademicYear:     r.year,
		Enrolment:        r.enrolment,
		PrevEnrolment1:   r.lag1,
		PrevEnrolment2:   r.lag2,
		PrevEnrolment3:   r.lag3,
		Category:         r.category,
		TotalTeachers:    r.totalTeachers,
		TotalClassrooms:  r.totalClassrooms,
		UsableClassrooms: r.usableClassrooms,
		ClassroomGap:     r.classroomGap,
		TeacherGap:       r.teacherGap,
		RiskScore:        r.riskScore,
		TeacherDeficit:   r.teacherDeficit,
		ClassroomDeficit: r.classroomDeficit,
		DistrictCode:     district.Encode(r.district),
		ManagementCode:   management.Encode(r.management),
		RollingMean3:     r.rollingMean3,
		RollingStd3:      r.rollingStd3,
	}
}

func latest(series []seriesRow, year string) *seriesRow {
	for i := range series {
		if series[i].year == year {
			return &series[i]
		}
	}
	return nil
}

func classroomNormLookup(norms map[int]int, category int) (int, bool) {
	if n, ok := norms[category]; ok {
		return n, false
	}
	return model.DefaultClassroomNorm, true
}

func ptrNormLookup(norms map[int]int, category int) (int, bool) {
	if n, ok := norms[category]; ok {
		return n, false
	}
	return model.DefaultPTRNorm, true
}

func ceilDiv(numerator, denom int) int {
	if denom <= 0 {
		return 0
	}
	return int(math.Ceil(float64(numerator) / float64(denom)))
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
