package ml

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// syntheticRows builds a feature matrix where feature 0 alone determines the
// label, so a shallow tree ensemble should learn it well within a handful of
// rounds.
func syntheticRows(n int) ([][]float64, []float64) {
	X := make([][]float64, n)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		row := make([]float64, featureCount)
		row[0] = float64(i % 50)
		X[i] = row
		y[i] = row[0] * 0.01
	}
	return X, y
}

func TestFitReducesTrainingLoss(t *testing.T) {
	X, y := syntheticRows(400)
	valX, valY := syntheticRows(100)

	hp := Hyperparameters{
		NumTrees:        40,
		MaxDepth:        3,
		MinSamplesLeaf:  5,
		LearningRate:    0.1,
		Subsample:       1.0,
		HuberDelta:      1.0,
		EarlyStopRounds: 40,
	}

	model := Fit(X, y, valX, valY, hp, NewRand(1))
	require.NotNil(t, model)

	var sumErrBefore, sumErrAfter float64
	for i := range X {
		sumErrBefore += abs(y[i] - y[0])
		sumErrAfter += abs(y[i] - model.Predict(X[i]))
	}
	assert.Less(t, sumErrAfter, sumErrBefore)
}

func TestFitIsDeterministicForAFixedSeed(t *testing.T) {
	X, y := syntheticRows(200)
	valX, valY := syntheticRows(50)
	hp := Hyperparameters{NumTrees: 10, MaxDepth: 2, MinSamplesLeaf: 5, LearningRate: 0.1, Subsample: 0.8, HuberDelta: 1.0, EarlyStopRounds: 10}

	m1 := Fit(X, y, valX, valY, hp, NewRand(7))
	m2 := Fit(X, y, valX, valY, hp, NewRand(7))

	for i := range X {
		assert.InDelta(t, m1.Predict(X[i]), m2.Predict(X[i]), 1e-9)
	}
}

func TestHuberGradientClampsOutliers(t *testing.T) {
	assert.InDelta(t, 0.5, huberGradient(0.5, 1.0), 1e-9)
	assert.InDelta(t, 1.0, huberGradient(5.0, 1.0), 1e-9)
	assert.InDelta(t, -1.0, huberGradient(-5.0, 1.0), 1e-9)
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
