// Package ml implements the trained growth-rate forecaster of §4.10: a
// from-scratch gradient-boosted regression tree ensemble, since nothing in
// the retrieved reference corpus links an ML library and importing one
// un-grounded would violate the no-fabricated-dependency rule.
package ml

import "math"

// featureCount is the width of the §4.10 feature vector.
const featureCount = 20

// Sample is one (school, year) training or projection instance: the 20
// engineered features plus the label used at training time.
type Sample struct {
	SchoolID string
	Year     string
	Features [featureCount]float64
	Label    float64
}

// Row is the raw per-school-year input this package engineers features
// from, mirroring model.InfrastructureFact/TeacherFact/YearlyEnrolmentFact
// joined on (school_id, academic_year).
type Row struct {
	SchoolID          string
	AcademicYear      string
	Enrolment         int
	PrevEnrolment1    int
	PrevEnrolment2    int
	PrevEnrolment3    int
	Category          int
	TotalTeachers     int
	TotalClassrooms   int
	UsableClassrooms  int
	ClassroomGap      int
	TeacherGap        int
	RiskScore         float64
	TeacherDeficit    float64
	ClassroomDeficit  float64
	DistrictCode      int
	ManagementCode    int
	RollingMean3      float64
	RollingStd3       float64
}

// Vector computes the §4.10 20-feature vector for a row. Growth rates are
// clipped to [-0.30, 0.30] exactly as the forecast they help predict.
func Vector(r Row) [featureCount]float64 {
	growth := clippedGrowth(r.Enrolment, r.PrevEnrolment1)
	lagGrowth := clippedGrowth(r.PrevEnrolment1, r.PrevEnrolment2)

	var teachersPerStudent, roomsPerStudent float64
	if r.Enrolment > 0 {
		teachersPerStudent = float64(r.TotalTeachers) / float64(r.Enrolment)
		roomsPerStudent = float64(r.UsableClassrooms) / float64(r.Enrolment)
	}

	return [featureCount]float64{
		float64(r.Enrolment),
		float64(r.PrevEnrolment1),
		float64(r.PrevEnrolment2),
		growth,
		lagGrowth,
		float64(r.Category),
		float64(r.TotalTeachers),
		float64(r.TotalClassrooms),
		float64(r.UsableClassrooms),
		float64(r.ClassroomGap),
		float64(r.TeacherGap),
		r.RiskScore,
		r.TeacherDeficit,
		r.ClassroomDeficit,
		float64(r.DistrictCode),
		float64(r.ManagementCode),
		r.RollingMean3,
		math.Min(r.RollingStd3, 500),
		teachersPerStudent,
		roomsPerStudent,
	}
}

// clippedGrowth computes (cur-prev)/prev clipped to [-0.30,0.30], or 0 when
// prev is non-positive.
func clippedGrowth(cur, prev int) float64 {
	if prev <= 0 {
		return 0
	}
	g := float64(cur-prev) / float64(prev)
	return math.Max(-0.30, math.Min(0.30, g))
}

// Label is the training target for a transition year_i -> year_{i+1}: the
// realised, clipped growth rate into year_{i+1}.
func Label(enrolmentNext, enrolmentCur int) float64 {
	return clippedGrowth(enrolmentNext, enrolmentCur)
}

// Eligible reports whether a row may enter training (§4.10: "only schools
// with enrolment >= 10 at feature time").
func Eligible(enrolment int) bool {
	return enrolment >= 10
}

// LabelEncoder assigns stable integer codes to category strings (district,
// management type), so retraining on the same inputs reproduces identical
// codes.
type LabelEncoder struct {
	codes map[string]int
	next  int
}

// NewLabelEncoder returns an empty encoder.
func NewLabelEncoder() *LabelEncoder {
	return &LabelEncoder{codes: make(map[string]int)}
}

// Encode returns the stable code for value, assigning a new one if unseen.
func (enc *LabelEncoder) Encode(value string) int {
	if c, ok := enc.codes[value]; ok {
		return c
	}
	c := enc.next
	enc.codes[value] = c
	enc.next++
	return c
}

// Codes returns the value->code table, for persistence in a model artifact.
func (enc *LabelEncoder) Codes() map[string]int {
	return enc.codes
}

// LoadLabelEncoder rebuilds an encoder from a persisted value->code table.
func LoadLabelEncoder(codes map[string]int) *LabelEncoder {
	next := 0
	for _, c := range codes {
		if c >= next {
			next = c + 1
		}
	}
	return &LabelEncoder{codes: codes, next: next}
}
