package ml

import "math"

// TrainResult bundles a fitted model with the bookkeeping needed to persist
// and later calibrate it: the training-target mean (for §4.10's bias-shift
// correction) and the encoders that produced its categorical features.
type TrainResult struct {
	Model           *Model
	TrainTargetMean float64
	District        *LabelEncoder
	Management      *LabelEncoder
	Hyperparameters Hyperparameters
}

// Train fits a model over transitions, holding the most recent transition
// out as a validation split exactly as §4.10 specifies ("all transitions
// where year_{i+1} is strictly before a held-out most-recent transition").
// transitions must already be in ascending year order within each school.
func Train(transitions []Sample, district, management *LabelEncoder, seed int64) TrainResult {
	trainSet, valSet := splitHeldOutYear(transitions)

	trainX := toMatrix(trainSet)
	trainY := toLabels(trainSet)
	valX := toMatrix(valSet)
	valY := toLabels(valSet)

	hp := DefaultHyperparameters()
	model := Fit(trainX, trainY, valX, valY, hp, NewRand(seed))

	return TrainResult{
		Model:           model,
		TrainTargetMean: mean(trainY),
		District:        district,
		Management:      management,
		Hyperparameters: hp,
	}
}

// splitHeldOutYear partitions transitions so every sample from the single
// most recent academic_year present becomes the validation split, and
// everything strictly earlier is training data.
func splitHeldOutYear(transitions []Sample) (train, val []Sample) {
	latest := ""
	for _, s := range transitions {
		if s.Year > latest {
			latest = s.Year
		}
	}
	for _, s := range transitions {
		if s.Year == latest {
			val = append(val, s)
		} else {
			train = append(train, s)
		}
	}
	return train, val
}

func toMatrix(samples []Sample) [][]float64 {
	out := make([][]float64, len(samples))
	for i, s := range samples {
		row := make([]float64, featureCount)
		copy(row, s.Features[:])
		out[i] = row
	}
	return out
}

func toLabels(samples []Sample) []float64 {
	out := make([]float64, len(samples))
	for i, s := range samples {
		out[i] = s.Label
	}
	return out
}

func mean(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	var sum float64
	for _, x := range v {
		sum += x
	}
	return sum / float64(len(v))
}

// Project predicts growth for a projection-set feature vector, clips to
// [-growthCap, growthCap], and is the raw (pre-bias-shift) prediction:
// BiasShift below turns a batch of these into the final calibrated values.
func (tr TrainResult) Project(x [featureCount]float64, growthCap float64) float64 {
	raw := tr.Model.Predict(x[:])
	return math.Max(-growthCap, math.Min(growthCap, raw))
}

// BiasShift computes §4.10's calibration term: the gap between the
// training target's mean and the mean of this batch of raw projections,
// to be added to every prediction (then re-clipped) before compounding.
func BiasShift(trainTargetMean float64, rawPredictions []float64) float64 {
	return trainTargetMean - mean(rawPredictions)
}
