package ml

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVectorClipsGrowth(t *testing.T) {
	r := Row{Enrolment: 1000, PrevEnrolment1: 100} // +900%, must clip to 0.30
	v := Vector(r)
	assert.InDelta(t, 0.30, v[3], 1e-9)
}

func TestVectorZeroPrevYieldsZeroGrowth(t *testing.T) {
	r := Row{Enrolment: 500, PrevEnrolment1: 0}
	v := Vector(r)
	assert.Equal(t, 0.0, v[3])
}

func TestVectorRollingStdCappedAt500(t *testing.T) {
	r := Row{RollingStd3: 10000}
	v := Vector(r)
	assert.Equal(t, 500.0, v[17])
}

func TestVectorPerStudentRatios(t *testing.T) {
	r := Row{Enrolment: 100, TotalTeachers: 5, UsableClassrooms: 4}
	v := Vector(r)
	assert.InDelta(t, 0.05, v[18], 1e-9)
	assert.InDelta(t, 0.04, v[19], 1e-9)
}

func TestEligible(t *testing.T) {
	assert.True(t, Eligible(10))
	assert.True(t, Eligible(11))
	assert.False(t, Eligible(9))
	assert.False(t, Eligible(0))
}

func TestLabelClipsToGrowthCap(t *testing.T) {
	assert.InDelta(t, -0.30, Label(0, 1000), 1e-9)
	assert.InDelta(t, 0.30, Label(10000, 100), 1e-9)
	assert.InDelta(t, 0.10, Label(110, 100), 1e-9)
}

func TestLabelEncoderStableAndReload(t *testing.T) {
	enc := NewLabelEncoder()
	a := enc.Encode("Pune")
	b := enc.Encode("Nagpur")
	aAgain := enc.Encode("Pune")
	assert.Equal(t, a, aAgain)
	assert.NotEqual(t, a, b)

	reloaded := LoadLabelEncoder(enc.Codes())
	assert.Equal(t, a, reloaded.Encode("Pune"))
	c := reloaded.Encode("Mumbai")
	assert.NotEqual(t, a, c)
	assert.NotEqual(t, b, c)
}
