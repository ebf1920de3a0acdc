// Package model holds the shared domain types written and read across every
// pipeline stage: the four upstream facts, and the output row of each
// downstream engine.
package model

// RiskLevel is the four-tier classification of a school-year's risk_score.
type RiskLevel string

const (
	RiskLow      RiskLevel = "LOW"
	RiskModerate RiskLevel = "MODERATE"
	RiskHigh     RiskLevel = "HIGH"
	RiskCritical RiskLevel = "CRITICAL"
)

// IsHighOrCritical reports whether the level counts toward chronic/persistent
// streaks (§4.5, §4.7).
func (l RiskLevel) IsHighOrCritical() bool {
	return l == RiskHigh || l == RiskCritical
}

// PriorityBucket is the percentile-based partition of schools by risk within
// a year (§4.5).
type PriorityBucket string

const (
	BucketTop5      PriorityBucket = "TOP_5"
	BucketTop10     PriorityBucket = "TOP_10"
	BucketTop20     PriorityBucket = "TOP_20"
	BucketStandard  PriorityBucket = "STANDARD"
)

// AllocationStatus is the per-school-year outcome of the budget simulator
// (§4.6).
type AllocationStatus string

const (
	AllocationFunded           AllocationStatus = "FUNDED"
	AllocationPartiallyFunded  AllocationStatus = "PARTIALLY_FUNDED"
	AllocationUnfunded         AllocationStatus = "UNFUNDED"
)

// TrendDirection classifies the YoY change in risk_score (§4.7).
type TrendDirection string

const (
	TrendBaseline      TrendDirection = "BASELINE"
	TrendImproving     TrendDirection = "IMPROVING"
	TrendStable        TrendDirection = "STABLE"
	TrendDeteriorating TrendDirection = "DETERIORATING"
)

// ComplianceGrade is the district-year letter grade (§4.7/§6).
type ComplianceGrade string

const (
	GradeA ComplianceGrade = "A"
	GradeB ComplianceGrade = "B"
	GradeC ComplianceGrade = "C"
	GradeD ComplianceGrade = "D"
	GradeF ComplianceGrade = "F"
)

// DecisionStatus is the outcome of rule-based proposal validation (§4.8).
type DecisionStatus string

const (
	DecisionAccepted DecisionStatus = "ACCEPTED"
	DecisionFlagged  DecisionStatus = "FLAGGED"
	DecisionRejected DecisionStatus = "REJECTED"
)

// ReasonCode enumerates the first-match-wins validation rule that fired.
type ReasonCode string

const (
	ReasonNoDeficit            ReasonCode = "NO_DEFICIT"
	ReasonClassroomOverRequest ReasonCode = "CLASSROOM_OVER_REQUEST"
	ReasonTeacherOverRequest   ReasonCode = "TEACHER_OVER_REQUEST"
	ReasonClassroomModerateOver ReasonCode = "CLASSROOM_MODERATE_OVER"
	ReasonTeacherModerateOver  ReasonCode = "TEACHER_MODERATE_OVER"
	ReasonClassroomUnderRequest ReasonCode = "CLASSROOM_UNDER_REQUEST"
	ReasonTeacherUnderRequest  ReasonCode = "TEACHER_UNDER_REQUEST"
	ReasonNoRequest            ReasonCode = "NO_REQUEST"
	ReasonWithinTolerance      ReasonCode = "WITHIN_TOLERANCE"
)

// ForecastModel distinguishes the two forecast engines that share the
// ForecastRow shape (§3).
type ForecastModel string

const (
	ForecastWMA ForecastModel = "WMA"
	ForecastML  ForecastModel = "ML"
)

// School is the dimension table populated by ingestion. The core pipeline
// never writes to it.
type School struct {
	SchoolID       string
	Name           string
	District       string
	Block          string
	ManagementType string
	Category       int
}

// YearlyEnrolmentFact is read-only for the core (§3).
type YearlyEnrolmentFact struct {
	SchoolID      string
	AcademicYear  string
	TotalEnrolment int
}

// InfrastructureFact carries both the raw columns written by ingestion and
// the computed columns written by stages 1 and 3.
type InfrastructureFact struct {
	SchoolID       string
	AcademicYear   string
	TotalClassRooms   int
	UsableClassRooms  int

	// Computed by stage 1.
	RequiredClassRooms int
	ClassroomGap       int

	// Computed by stage 3.
	TeacherDeficitRatio   float64
	ClassroomDeficitRatio float64
	EnrolmentGrowthRate   *float64 // NULL for the earliest year of a school
	RiskScore             float64
	RiskLevel              RiskLevel
}

// TeacherFact carries the raw total and the computed gap (§4.3).
type TeacherFact struct {
	SchoolID       string
	AcademicYear   string
	TotalTeachers  int

	RequiredTeachers int
	TeacherGap       int
}

// PriorityRow is the output of the Prioritisation engine (§4.5).
type PriorityRow struct {
	SchoolID           string
	AcademicYear       string
	RiskScore          float64
	RiskRank           int
	DistrictRank       int
	Percentile         float64
	PriorityBucket     PriorityBucket
	PersistentHighRisk bool
}

// BudgetRow is the output of the Budget Allocation simulator (§4.6).
type BudgetRow struct {
	SchoolID            string
	AcademicYear        string
	ClassroomsAllocated int
	TeachersAllocated   int
	EstimatedCost       float64
	CumulativeCost      float64
	AllocationStatus    AllocationStatus
}

// TrendRow is the output of the Risk Trend engine (§4.7).
type TrendRow struct {
	SchoolID       string
	AcademicYear   string
	PrevRiskScore  *float64
	RiskDelta      *float64
	TrendDirection TrendDirection
	IsChronic      bool
	IsVolatile     bool
}

// DistrictComplianceRow is the output of the District Compliance engine.
type DistrictComplianceRow struct {
	District        string
	AcademicYear    string
	TotalSchools    int
	AvgRiskScore    float64
	PctCritical     float64
	PctHigh         float64
	PctModerate     float64
	PctLow          float64
	ComplianceGrade ComplianceGrade
	YoYRiskChange   *float64
	StateRank       int
}

// ProposalRow is a deterministic synthetic demand proposal (§4.8).
type ProposalRow struct {
	SchoolID            string
	AcademicYear        string
	ClassroomsRequested int
	TeachersRequested   int
}

// ValidationRow is the rule-based verdict on a ProposalRow (§4.8).
type ValidationRow struct {
	SchoolID        string
	AcademicYear    string
	ClassroomRatio  float64
	TeacherRatio    float64
	DecisionStatus  DecisionStatus
	ReasonCode      ReasonCode
	ConfidenceScore float64
}

// ForecastRow is the shared shape of the WMA and ML forecast engines (§3).
type ForecastRow struct {
	SchoolID               string
	BaseYear               string
	YearsAhead             int
	Model                  ForecastModel
	BaseEnrolment          int
	GrowthRateUsed         float64
	ProjectedEnrolment     int
	ProjectedClassroomsReq int
	ProjectedTeachersReq   int
	ProjectedClassroomGap  int
	ProjectedTeacherGap    int
	ModelVersion           string // empty for WMA rows
}
