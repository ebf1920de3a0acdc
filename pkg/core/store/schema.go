package store

import (
	"context"
	"fmt"
)

// Bootstrap is stage 0: idempotent DDL for the 12 tables of §3 plus the
// model_artifacts provenance table, and the composite/year-partitioned
// indexes of §4.1. CREATE TABLE/INDEX use IF NOT EXISTS and ALTER TABLE
// uses ADD COLUMN IF NOT EXISTS, so objects that already exist are skipped,
// per §4.1's tolerance requirement; any other error stops the bootstrap.
func (s *Store) Bootstrap(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := s.Pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("store: bootstrap: %w", err)
		}
	}
	return nil
}

// schemaStatements is ordered: base facts first, then per-stage output
// tables, then indexes. Every statement is independently idempotent so a
// partial prior run can be safely replayed.
var schemaStatements = []string{
	// --- Base facts (normally owned by ingestion; created here so the
	// bootstrap is a complete, self-contained precondition for tests and
	// fresh environments). ---
	`CREATE TABLE IF NOT EXISTS schools (
		school_id       TEXT PRIMARY KEY,
		school_name     TEXT,
		district        TEXT NOT NULL,
		block           TEXT,
		management_type TEXT,
		school_category INTEGER NOT NULL,
		latitude        DOUBLE PRECISION,
		longitude       DOUBLE PRECISION
	)`,
	`CREATE TABLE IF NOT EXISTS yearly_metrics (
		id              BIGSERIAL PRIMARY KEY,
		school_id       TEXT NOT NULL REFERENCES schools(school_id),
		academic_year   TEXT NOT NULL,
		total_enrolment INTEGER,
		attendance_rate DOUBLE PRECISION,
		UNIQUE (school_id, academic_year)
	)`,
	`CREATE TABLE IF NOT EXISTS infrastructure_details (
		id                       BIGSERIAL PRIMARY KEY,
		school_id                TEXT NOT NULL REFERENCES schools(school_id),
		academic_year            TEXT NOT NULL,
		total_class_rooms        INTEGER,
		usable_class_rooms       INTEGER,
		classroom_condition_score INTEGER,
		has_drinking_water       BOOLEAN,
		has_electricity          BOOLEAN,
		has_internet             BOOLEAN,
		has_girls_toilet         BOOLEAN,
		has_cwsn_toilet          BOOLEAN,
		has_ramp                 BOOLEAN,
		has_resource_room        BOOLEAN,
		building_condition       TEXT,
		last_major_repair_year   INTEGER,
		UNIQUE (school_id, academic_year)
	)`,
	`ALTER TABLE infrastructure_details ADD COLUMN IF NOT EXISTS required_class_rooms INTEGER`,
	`ALTER TABLE infrastructure_details ADD COLUMN IF NOT EXISTS classroom_gap INTEGER`,
	`ALTER TABLE infrastructure_details ADD COLUMN IF NOT EXISTS teacher_deficit_ratio DOUBLE PRECISION`,
	`ALTER TABLE infrastructure_details ADD COLUMN IF NOT EXISTS classroom_deficit_ratio DOUBLE PRECISION`,
	`ALTER TABLE infrastructure_details ADD COLUMN IF NOT EXISTS enrolment_growth_rate DOUBLE PRECISION`,
	`ALTER TABLE infrastructure_details ADD COLUMN IF NOT EXISTS risk_score DOUBLE PRECISION`,
	`ALTER TABLE infrastructure_details ADD COLUMN IF NOT EXISTS risk_level TEXT`,

	`CREATE TABLE IF NOT EXISTS teacher_metrics (
		id               BIGSERIAL PRIMARY KEY,
		school_id        TEXT NOT NULL REFERENCES schools(school_id),
		academic_year    TEXT NOT NULL,
		total_teachers   INTEGER,
		required_teachers INTEGER,
		teacher_gap      INTEGER,
		UNIQUE (school_id, academic_year)
	)`,

	// --- Stage outputs. ---
	`CREATE TABLE IF NOT EXISTS school_priority_index (
		school_id            TEXT NOT NULL,
		academic_year        TEXT NOT NULL,
		risk_score            DOUBLE PRECISION,
		risk_rank              INTEGER,
		district_rank          INTEGER,
		percentile             DOUBLE PRECISION,
		priority_bucket        TEXT,
		persistent_high_risk   BOOLEAN,
		PRIMARY KEY (school_id, academic_year)
	)`,
	`CREATE TABLE IF NOT EXISTS budget_allocation (
		school_id            TEXT NOT NULL,
		academic_year        TEXT NOT NULL,
		classrooms_allocated  INTEGER,
		teachers_allocated    INTEGER,
		estimated_cost        DOUBLE PRECISION,
		cumulative_cost       DOUBLE PRECISION,
		allocation_status     TEXT,
		PRIMARY KEY (school_id, academic_year)
	)`,
	`CREATE TABLE IF NOT EXISTS risk_trend (
		school_id        TEXT NOT NULL,
		academic_year    TEXT NOT NULL,
		prev_risk_score  DOUBLE PRECISION,
		risk_delta       DOUBLE PRECISION,
		trend_direction  TEXT,
		is_chronic       BOOLEAN,
		is_volatile      BOOLEAN,
		PRIMARY KEY (school_id, academic_year)
	)`,
	`CREATE TABLE IF NOT EXISTS district_compliance (
		district          TEXT NOT NULL,
		academic_year     TEXT NOT NULL,
		total_schools      INTEGER,
		avg_risk_score     DOUBLE PRECISION,
		pct_critical       DOUBLE PRECISION,
		pct_high           DOUBLE PRECISION,
		pct_moderate       DOUBLE PRECISION,
		pct_low            DOUBLE PRECISION,
		compliance_grade   TEXT,
		yoy_risk_change    DOUBLE PRECISION,
		state_rank         INTEGER,
		PRIMARY KEY (district, academic_year)
	)`,
	`CREATE TABLE IF NOT EXISTS proposals (
		school_id             TEXT NOT NULL,
		academic_year         TEXT NOT NULL,
		classrooms_requested  INTEGER,
		teachers_requested    INTEGER,
		PRIMARY KEY (school_id, academic_year)
	)`,
	`CREATE TABLE IF NOT EXISTS proposal_validations (
		school_id         TEXT NOT NULL,
		academic_year     TEXT NOT NULL,
		classroom_ratio    DOUBLE PRECISION,
		teacher_ratio      DOUBLE PRECISION,
		decision_status    TEXT,
		reason_code        TEXT,
		confidence_score   DOUBLE PRECISION,
		PRIMARY KEY (school_id, academic_year)
	)`,
	`CREATE TABLE IF NOT EXISTS enrolment_forecast_wma (
		school_id                 TEXT NOT NULL,
		base_year                 TEXT NOT NULL,
		years_ahead                INTEGER NOT NULL,
		base_enrolment             INTEGER,
		growth_rate_used           DOUBLE PRECISION,
		projected_enrolment        INTEGER,
		projected_classrooms_req   INTEGER,
		projected_teachers_req     INTEGER,
		projected_classroom_gap    INTEGER,
		projected_teacher_gap      INTEGER,
		PRIMARY KEY (school_id, base_year, years_ahead)
	)`,
	`CREATE TABLE IF NOT EXISTS enrolment_forecast_ml (
		school_id                 TEXT NOT NULL,
		base_year                 TEXT NOT NULL,
		years_ahead                INTEGER NOT NULL,
		base_enrolment             INTEGER,
		growth_rate_used           DOUBLE PRECISION,
		projected_enrolment        INTEGER,
		projected_classrooms_req   INTEGER,
		projected_teachers_req     INTEGER,
		projected_classroom_gap    INTEGER,
		projected_teacher_gap      INTEGER,
		model_version              TEXT,
		PRIMARY KEY (school_id, base_year, years_ahead)
	)`,
	`CREATE TABLE IF NOT EXISTS model_artifacts (
		model_version   TEXT PRIMARY KEY,
		trained_at      TIMESTAMPTZ NOT NULL,
		metadata_yaml   TEXT NOT NULL
	)`,

	// --- Indexes (§4.1). Every per-school-year table gets the composite
	// lookup index; the year-partitioned classification columns each get
	// their own index since downstream queries filter on them. ---
	`CREATE INDEX IF NOT EXISTS idx_yearly_metrics_school_year ON yearly_metrics (school_id, academic_year)`,
	`CREATE INDEX IF NOT EXISTS idx_infra_school_year ON infrastructure_details (school_id, academic_year)`,
	`CREATE INDEX IF NOT EXISTS idx_infra_risk_level ON infrastructure_details (academic_year, risk_level)`,
	`CREATE INDEX IF NOT EXISTS idx_teacher_school_year ON teacher_metrics (school_id, academic_year)`,
	`CREATE INDEX IF NOT EXISTS idx_priority_school_year ON school_priority_index (school_id, academic_year)`,
	`CREATE INDEX IF NOT EXISTS idx_priority_bucket ON school_priority_index (academic_year, priority_bucket)`,
	`CREATE INDEX IF NOT EXISTS idx_priority_rank ON school_priority_index (academic_year, risk_rank)`,
	`CREATE INDEX IF NOT EXISTS idx_budget_school_year ON budget_allocation (school_id, academic_year)`,
	`CREATE INDEX IF NOT EXISTS idx_budget_status ON budget_allocation (academic_year, allocation_status)`,
	`CREATE INDEX IF NOT EXISTS idx_trend_school_year ON risk_trend (school_id, academic_year)`,
	`CREATE INDEX IF NOT EXISTS idx_trend_direction ON risk_trend (academic_year, trend_direction)`,
	`CREATE INDEX IF NOT EXISTS idx_district_grade ON district_compliance (academic_year, compliance_grade)`,
	`CREATE INDEX IF NOT EXISTS idx_proposals_school_year ON proposals (school_id, academic_year)`,
	`CREATE INDEX IF NOT EXISTS idx_validations_school_year ON proposal_validations (school_id, academic_year)`,
	`CREATE INDEX IF NOT EXISTS idx_validations_status ON proposal_validations (academic_year, decision_status)`,
	`CREATE INDEX IF NOT EXISTS idx_forecast_wma_school ON enrolment_forecast_wma (school_id, base_year)`,
	`CREATE INDEX IF NOT EXISTS idx_forecast_ml_school ON enrolment_forecast_ml (school_id, base_year)`,
}
