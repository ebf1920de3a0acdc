package ml

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitHeldOutYearIsolatesLatestYear(t *testing.T) {
	samples := []Sample{
		{SchoolID: "S1", Year: "2020-21"},
		{SchoolID: "S1", Year: "2021-22"},
		{SchoolID: "S2", Year: "2022-23"},
		{SchoolID: "S3", Year: "2021-22"},
	}
	train, val := splitHeldOutYear(samples)

	assert.Len(t, val, 1)
	assert.Equal(t, "2022-23", val[0].Year)
	assert.Len(t, train, 3)
}

func TestBiasShiftCorrectsMeanDrift(t *testing.T) {
	shift := BiasShift(0.10, []float64{0.0, 0.02, 0.04})
	assert.InDelta(t, 0.08, shift, 1e-9)
}

func TestTrainProducesUsableModel(t *testing.T) {
	var samples []Sample
	for i := 0; i < 60; i++ {
		var f [featureCount]float64
		f[0] = float64(i % 20)
		year := "2020-21"
		if i%2 == 0 {
			year = "2021-22"
		}
		samples = append(samples, Sample{SchoolID: "S", Year: year, Features: f, Label: f[0] * 0.01})
	}

	result := Train(samples, NewLabelEncoder(), NewLabelEncoder(), 3)
	assert.NotNil(t, result.Model)

	var f [featureCount]float64
	f[0] = 10
	projected := result.Project(f, 0.30)
	assert.GreaterOrEqual(t, projected, -0.30)
	assert.LessOrEqual(t, projected, 0.30)
}
