package ml

import (
	"math"
	"sort"
)

// Hyperparameters are the fixed §4.10 settings: no search is performed, but
// a correct re-implementation must preserve a robust loss, shallow trees
// with large leaves, and early stopping.
type Hyperparameters struct {
	NumTrees       int
	MaxDepth       int
	MinSamplesLeaf int
	LearningRate   float64
	Subsample      float64
	HuberDelta     float64
	EarlyStopRounds int
}

// DefaultHyperparameters matches §4.10 exactly.
func DefaultHyperparameters() Hyperparameters {
	return Hyperparameters{
		NumTrees:        500,
		MaxDepth:        4,
		MinSamplesLeaf:  100,
		LearningRate:    0.03,
		Subsample:       0.8,
		HuberDelta:      1.0,
		EarlyStopRounds: 30,
	}
}

// node is one split or leaf of a regression stump/tree.
type node struct {
	isLeaf     bool
	value      float64
	feature    int
	threshold  float64
	left, right *node
}

// Tree is a single shallow regression tree in the ensemble.
type Tree struct {
	root *node
}

func (t *Tree) predict(x []float64) float64 {
	n := t.root
	for !n.isLeaf {
		if x[n.feature] <= n.threshold {
			n = n.left
		} else {
			n = n.right
		}
	}
	return n.value
}

// Model is the trained additive ensemble: base prediction plus a sequence
// of trees, each contributing learningRate * tree(x).
type Model struct {
	Base         float64
	Trees        []*Tree
	LearningRate float64
}

// Predict returns the raw (uncalibrated) model output for one feature
// vector.
func (m *Model) Predict(x []float64) float64 {
	p := m.Base
	for _, t := range m.Trees {
		p += m.LearningRate * t.predict(x)
	}
	return p
}

// huberGradient is the negative pseudo-residual of the Huber loss at the
// current prediction, the direction each tree is fit to reduce.
func huberGradient(residual, delta float64) float64 {
	if math.Abs(residual) <= delta {
		return residual
	}
	if residual > 0 {
		return delta
	}
	return -delta
}

// Fit trains a gradient-boosted ensemble on (X, y), holding out valX/valY
// for early stopping. Outlier-heavy growth-rate targets motivate the Huber
// pseudo-residual in place of a squared-error gradient, and shallow,
// large-leaf trees in place of deep ones, per §4.10.
func Fit(X [][]float64, y []float64, valX [][]float64, valY []float64, hp Hyperparameters, rng *Rand) *Model {
	base := median(y)
	m := &Model{Base: base, LearningRate: hp.LearningRate}

	pred := make([]float64, len(y))
	for i := range pred {
		pred[i] = base
	}
	valPred := make([]float64, len(valY))
	for i := range valPred {
		valPred[i] = base
	}

	bestValLoss := math.Inf(1)
	roundsSinceImprovement := 0

	for round := 0; round < hp.NumTrees; round++ {
		residuals := make([]float64, len(y))
		for i := range y {
			residuals[i] = huberGradient(y[i]-pred[i], hp.HuberDelta)
		}

		idx := rng.SubsampleIndices(len(y), hp.Subsample)
		subX := make([][]float64, len(idx))
		subR := make([]float64, len(idx))
		for j, i := range idx {
			subX[j] = X[i]
			subR[j] = residuals[i]
		}

		tree := buildTree(subX, subR, hp.MaxDepth, hp.MinSamplesLeaf)
		m.Trees = append(m.Trees, tree)

		for i := range pred {
			pred[i] += hp.LearningRate * tree.predict(X[i])
		}
		for i := range valPred {
			valPred[i] += hp.LearningRate * tree.predict(valX[i])
		}

		valLoss := huberLoss(valY, valPred, hp.HuberDelta)
		if valLoss < bestValLoss-1e-9 {
			bestValLoss = valLoss
			roundsSinceImprovement = 0
		} else {
			roundsSinceImprovement++
			if roundsSinceImprovement >= hp.EarlyStopRounds {
				break
			}
		}
	}

	return m
}

func huberLoss(y, pred []float64, delta float64) float64 {
	var sum float64
	for i := range y {
		r := math.Abs(y[i] - pred[i])
		if r <= delta {
			sum += 0.5 * r * r
		} else {
			sum += delta * (r - 0.5*delta)
		}
	}
	if len(y) == 0 {
		return 0
	}
	return sum / float64(len(y))
}

func median(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	sorted := append([]float64(nil), v...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

// buildTree recursively splits on the feature/threshold that minimises the
// sum of squared residual error within each child, stopping at maxDepth or
// when a split would leave fewer than minLeaf samples on either side.
func buildTree(X [][]float64, residuals []float64, maxDepth, minLeaf int) *Tree {
	return &Tree{root: split(X, residuals, maxDepth, minLeaf)}
}

func split(X [][]float64, y []float64, depth, minLeaf int) *node {
	if depth == 0 || len(y) < 2*minLeaf {
		return leaf(y)
	}

	bestFeature := -1
	bestThreshold := 0.0
	bestScore := math.Inf(1)

	for f := 0; f < featureCount; f++ {
		thresholds := candidateThresholds(X, f)
		for _, thr := range thresholds {
			var leftSum, rightSum, leftSumSq, rightSumSq float64
			var leftN, rightN int
			for i, row := range X {
				if row[f] <= thr {
					leftSum += y[i]
					leftSumSq += y[i] * y[i]
					leftN++
				} else {
					rightSum += y[i]
					rightSumSq += y[i] * y[i]
					rightN++
				}
			}
			if leftN < minLeaf || rightN < minLeaf {
				continue
			}
			leftVar := leftSumSq - leftSum*leftSum/float64(leftN)
			rightVar := rightSumSq - rightSum*rightSum/float64(rightN)
			score := leftVar + rightVar
			if score < bestScore {
				bestScore = score
				bestFeature = f
				bestThreshold = thr
			}
		}
	}

	if bestFeature == -1 {
		return leaf(y)
	}

	var leftX, rightX [][]float64
	var leftY, rightY []float64
	for i, row := range X {
		if row[bestFeature] <= bestThreshold {
			leftX = append(leftX, row)
			leftY = append(leftY, y[i])
		} else {
			rightX = append(rightX, row)
			rightY = append(rightY, y[i])
		}
	}

	return &node{
		feature:   bestFeature,
		threshold: bestThreshold,
		left:      split(leftX, leftY, depth-1, minLeaf),
		right:     split(rightX, rightY, depth-1, minLeaf),
	}
}

func leaf(y []float64) *node {
	var sum float64
	for _, v := range y {
		sum += v
	}
	val := 0.0
	if len(y) > 0 {
		val = sum / float64(len(y))
	}
	return &node{isLeaf: true, value: val}
}

// candidateThresholds picks split points from the quantiles of one feature
// column, capping the search width so a 500-tree ensemble over ~300k rows
// stays tractable.
func candidateThresholds(X [][]float64, feature int) []float64 {
	const maxCandidates = 16
	values := make([]float64, len(X))
	for i, row := range X {
		values[i] = row[feature]
	}
	sort.Float64s(values)

	seen := make(map[float64]bool, maxCandidates)
	var out []float64
	for q := 1; q < maxCandidates; q++ {
		idx := q * (len(values) - 1) / maxCandidates
		v := values[idx]
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}
