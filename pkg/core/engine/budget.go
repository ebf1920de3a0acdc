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

// BudgetAllocationEngine is stage 5 (§4.6): a greedy, rank-ordered
// allocation against fixed classroom and teacher budgets, computed entirely
// by running-sum window functions.
type BudgetAllocationEngine struct {
	log logging.Logger
}

// NewBudgetAllocationEngine builds the stage 5 engine.
func NewBudgetAllocationEngine(log logging.Logger) *BudgetAllocationEngine {
	return &BudgetAllocationEngine{log: log}
}

func (e *BudgetAllocationEngine) Name() string { return "budget" }

// Apply runs stage 5 for a single academic_year. It depends on
// school_priority_index (stage 4) for risk_rank ordering.
func (e *BudgetAllocationEngine) Apply(ctx context.Context, st *store.Store, cfg *config.Config, year string) (BatchReport, error) {
	start := time.Now()

	maxClassrooms := cfg.Budget.MaxClassrooms()
	maxTeachers := cfg.Budget.MaxTeachers
	costPerClassroom := cfg.Budget.CostPerClassroom

	insert := fmt.Sprintf(`
		WITH ordered AS (
			SELECT
				p.school_id,
				ROW_NUMBER() OVER (ORDER BY p.risk_rank ASC) AS alloc_order,
				i.classroom_gap,
				t.teacher_gap
			FROM school_priority_index p
			JOIN infrastructure_details i ON i.school_id = p.school_id AND i.academic_year = p.academic_year
			JOIN teacher_metrics t ON t.school_id = p.school_id AND t.academic_year = p.academic_year
			WHERE p.academic_year = $1
		),
		cumulative AS (
			SELECT
				school_id,
				alloc_order,
				classroom_gap,
				teacher_gap,
				SUM(classroom_gap) OVER (ORDER BY alloc_order ROWS UNBOUNDED PRECEDING) AS cum_cr,
				SUM(teacher_gap) OVER (ORDER BY alloc_order ROWS UNBOUNDED PRECEDING) AS cum_tr
			FROM ordered
		),
		allocated AS (
			SELECT
				school_id,
				CASE WHEN cum_cr <= %d THEN classroom_gap ELSE 0 END AS classrooms_allocated,
				CASE WHEN cum_tr <= %d THEN teacher_gap ELSE 0 END AS teachers_allocated,
				alloc_order
			FROM cumulative
		)
		INSERT INTO budget_allocation (
			school_id, academic_year, classrooms_allocated, teachers_allocated,
			estimated_cost, cumulative_cost, allocation_status
		)
		SELECT
			school_id,
			$1,
			classrooms_allocated,
			teachers_allocated,
			classrooms_allocated * %f,
			SUM(classrooms_allocated * %f) OVER (ORDER BY alloc_order ROWS UNBOUNDED PRECEDING),
			CASE
				WHEN classrooms_allocated > 0 AND teachers_allocated > 0 THEN 'FUNDED'
				WHEN classrooms_allocated = 0 AND teachers_allocated = 0 THEN 'UNFUNDED'
				ELSE 'PARTIALLY_FUNDED'
			END
		FROM allocated
	`, maxClassrooms, maxTeachers, costPerClassroom, costPerClassroom)

	var rows int
	err := store.WithRetry(ctx, func(ctx context.Context) error {
		tx, err := st.Pool.Begin(ctx)
		if err != nil {
			return err
		}
		defer tx.Rollback(ctx)

		if _, err := tx.Exec(ctx, `DELETE FROM budget_allocation WHERE academic_year = $1`, year); err != nil {
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
			fmt.Errorf("no budget_allocation rows produced for academic_year %s", year))
	}

	report := timeBatch(e.Name(), year, rows, start)
	logBatch(e.log, report)
	return report, nil
}
