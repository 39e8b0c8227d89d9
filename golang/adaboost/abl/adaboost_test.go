package abl

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/fakeProgrammer0/ML-lab/golang/mlkit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

//constantClassifier predicts the same label for every sample.
type constantClassifier struct {
	label float64
	fits  *int
}

func (c *constantClassifier) Fit(*mat.Dense, *mat.VecDense, *mat.VecDense) error {
	if c.fits != nil {
		*c.fits++
	}
	return nil
}

func (c *constantClassifier) Predict(samples *mat.Dense) *mat.VecDense {
	h := mlkit.Height(samples)
	prediction := mat.NewVecDense(h, nil)
	for p := 0; p < h; p++ {
		prediction.SetVec(p, c.label)
	}
	return prediction
}

func (c *constantClassifier) Clone() WeakClassifier {
	return &constantClassifier{label: c.label, fits: c.fits}
}

//oracleClassifier remembers the training labels by the first feature and predicts them back.
//With flip set the n-th fit gets the label of sample (n-1) mod h wrong.
//A positive failAt makes the fit with that number fail.
type oracleClassifier struct {
	calls  *int
	failAt int
	flip   bool
	memory map[float64]float64
}

var errWeakFailure = errors.New("weak learner failure")

func (o *oracleClassifier) Fit(samples *mat.Dense, labels, _ *mat.VecDense) error {
	*o.calls++
	if o.failAt > 0 && *o.calls == o.failAt {
		return errWeakFailure
	}
	o.memory = map[float64]float64{}
	h := mlkit.Height(samples)
	wrong := (*o.calls - 1) % h
	for p := 0; p < h; p++ {
		label := labels.AtVec(p)
		if o.flip && p == wrong {
			label = -label
		}
		o.memory[samples.At(p, 0)] = label
	}
	return nil
}

func (o *oracleClassifier) Predict(samples *mat.Dense) *mat.VecDense {
	h := mlkit.Height(samples)
	prediction := mat.NewVecDense(h, nil)
	for p := 0; p < h; p++ {
		label, ok := o.memory[samples.At(p, 0)]
		if !ok {
			label = 1
		}
		prediction.SetVec(p, label)
	}
	return prediction
}

func (o *oracleClassifier) Clone() WeakClassifier {
	return &oracleClassifier{calls: o.calls, failAt: o.failAt, flip: o.flip}
}

func fourPoints() (*mat.Dense, *mat.VecDense) {
	samples := mat.NewDense(4, 1, []float64{1, 2, 3, 4})
	labels := mat.NewVecDense(4, []float64{1, 1, -1, -1})
	return samples, labels
}

//noisyDataset is a two dimensional set where no single threshold separates the classes.
func noisyDataset(rng *rand.Rand, h int) mlkit.DMatrix {
	samples := mat.NewDense(h, 2, nil)
	labels := mat.NewVecDense(h, nil)
	for p := 0; p < h; p++ {
		x, y := rng.Float64()*2-1, rng.Float64()*2-1
		samples.Set(p, 0, x)
		samples.Set(p, 1, y)
		label := -1.0
		if x*x+y*y < 0.5 {
			label = 1
		}
		if rng.Float64() < 0.05 {
			label = -label
		}
		labels.SetVec(p, label)
	}
	return mlkit.DMatrix{Samples: samples, Labels: labels}
}

func TestUpdateWeightsKeepsDistribution(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for trial := 0; trial < 200; trial++ {
		h := 1 + rng.Intn(50)
		weights := make([]float64, h)
		labels := mat.NewVecDense(h, nil)
		prediction := mat.NewVecDense(h, nil)
		for i := range weights {
			weights[i] = rng.Float64() + 1e-3
			labels.SetVec(i, []float64{-1, 1}[rng.Intn(2)])
			prediction.SetVec(i, []float64{-1, 1}[rng.Intn(2)])
		}
		floats.Scale(1/floats.Sum(weights), weights)

		updateWeights(weights, labels, prediction, rng.Float64()*5)

		for i, w := range weights {
			require.GreaterOrEqual(t, w, 0.0, "trial %d weight %d", trial, i)
		}
		require.InDelta(t, 1.0, floats.Sum(weights), 1e-9, "trial %d", trial)
	}
}

func TestUpdateWeightsFocusesOnMistakes(t *testing.T) {
	weights := []float64{0.25, 0.25, 0.25, 0.25}
	labels := mat.NewVecDense(4, []float64{1, 1, -1, -1})
	prediction := mat.NewVecDense(4, []float64{1, 1, -1, 1})

	errRate := weightedErrorRate(weights, labels, prediction)
	assert.InDelta(t, 0.25, errRate, 1e-12)
	updateWeights(weights, labels, prediction, confidence(errRate))

	assert.InDelta(t, 0.5, weights[3], 1e-12)
	assert.InDelta(t, 1.0/6.0, weights[0], 1e-12)
}

func TestFitRespectsMaxRounds(t *testing.T) {
	dm := noisyDataset(rand.New(rand.NewSource(1)), 200)
	for _, maxRounds := range []int{1, 3, 10} {
		clf := NewAdaBoost(AdaBoostParams{Prototype: NewDecisionStump(), MaxRounds: maxRounds})
		require.NoError(t, clf.Fit(dm.Samples, dm.Labels))
		assert.LessOrEqual(t, clf.Len(), maxRounds)
		assert.Greater(t, clf.Len(), 0)
		for _, entry := range clf.Entries() {
			assert.Greater(t, entry.Alpha, 0.0)
		}
	}
}

func TestBoostingImprovesOverSingleStump(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	dm := noisyDataset(rng, 400)

	single := NewDecisionStump()
	require.NoError(t, single.Fit(dm.Samples, dm.Labels, nil))
	singleAccuracy := mlkit.Accuracy(dm.Labels, single.Predict(dm.Samples))

	clf := NewAdaBoost(AdaBoostParams{Prototype: NewDecisionStump(), MaxRounds: 50})
	require.NoError(t, clf.Fit(dm.Samples, dm.Labels))
	boostedAccuracy := mlkit.Accuracy(dm.Labels, clf.Predict(dm.Samples, 0))

	assert.Greater(t, boostedAccuracy, singleAccuracy)
}

func TestFitPerfectFirstRound(t *testing.T) {
	samples, labels := fourPoints()

	clf := NewAdaBoost(AdaBoostParams{Prototype: NewDecisionStump(), MaxRounds: 5})
	require.NoError(t, clf.Fit(samples, labels))
	require.Equal(t, 1, clf.Len())
	assert.Greater(t, clf.Entries()[0].Alpha, 10.0)
	assert.False(t, math.IsInf(clf.Entries()[0].Alpha, 0))
	assert.Equal(t, 1.0, mlkit.Accuracy(labels, clf.Predict(samples, 0)))

	calls := 0
	discarding := NewAdaBoost(AdaBoostParams{
		Prototype:           &oracleClassifier{calls: &calls},
		MaxRounds:           5,
		DiscardPerfectRound: true,
	})
	require.NoError(t, discarding.Fit(samples, labels))
	assert.Equal(t, 0, discarding.Len())
	assert.Equal(t, 1, calls)
}

func TestFitConstantClassifierStops(t *testing.T) {
	samples, labels := fourPoints()
	fits := 0
	clf := NewAdaBoost(AdaBoostParams{Prototype: &constantClassifier{label: 1, fits: &fits}, MaxRounds: 5})

	require.NoError(t, clf.Fit(samples, labels))
	assert.Equal(t, 0, clf.Len())
	assert.Equal(t, 1, fits)

	assert.Equal(t, []float64{0, 0, 0, 0}, clf.PredictScores(samples).RawVector().Data)
	assert.Equal(t, []float64{-1, -1, -1, -1}, clf.Predict(samples, 0).RawVector().Data)
	assert.Nil(t, clf.StagedScores(samples))
}

func TestFitWorseThanChanceStops(t *testing.T) {
	samples := mat.NewDense(4, 1, []float64{1, 2, 3, 4})
	labels := mat.NewVecDense(4, []float64{-1, -1, -1, 1})
	clf := NewAdaBoost(AdaBoostParams{Prototype: &constantClassifier{label: 1}, MaxRounds: 5})

	require.NoError(t, clf.Fit(samples, labels))
	assert.Equal(t, 0, clf.Len())
	assert.Equal(t, []float64{0, 0, 0, 0}, clf.PredictScores(samples).RawVector().Data)
}

func TestFitRejectsBadInputBeforeTraining(t *testing.T) {
	samples, labels := fourPoints()
	fits := 0
	prototype := &constantClassifier{label: 1, fits: &fits}

	clf := NewAdaBoost(AdaBoostParams{Prototype: prototype, MaxRounds: 5})
	err := clf.Fit(samples, mat.NewVecDense(3, []float64{1, 1, -1}))
	assert.True(t, errors.Is(err, mlkit.ErrShapeMismatch), "got %v", err)

	bad := mat.NewVecDense(4, []float64{1, 0, -1, -1})
	err = clf.Fit(samples, bad)
	assert.True(t, errors.Is(err, mlkit.ErrInvalidLabel), "got %v", err)

	err = NewAdaBoost(AdaBoostParams{Prototype: prototype}).Fit(samples, labels)
	assert.True(t, errors.Is(err, ErrInvalidRounds), "got %v", err)

	err = NewAdaBoost(AdaBoostParams{MaxRounds: 3}).Fit(samples, labels)
	assert.True(t, errors.Is(err, ErrNoPrototype), "got %v", err)

	monitor := mlkit.DMatrix{Samples: mat.NewDense(2, 2, nil), Labels: mat.NewVecDense(2, []float64{1, -1})}
	err = NewAdaBoost(AdaBoostParams{Prototype: prototype, MaxRounds: 3, Monitors: []mlkit.DMatrix{monitor}}).Fit(samples, labels)
	assert.True(t, errors.Is(err, mlkit.ErrShapeMismatch), "got %v", err)

	assert.Equal(t, 0, fits)
	require.NoError(t, clf.Fit(samples, labels))
}

func TestFitPropagatesWeakFailure(t *testing.T) {
	samples := mat.NewDense(6, 1, []float64{1, 2, 3, 4, 5, 6})
	labels := mat.NewVecDense(6, []float64{1, -1, 1, -1, 1, -1})
	calls := 0
	clf := NewAdaBoost(AdaBoostParams{
		Prototype: &oracleClassifier{calls: &calls, failAt: 3, flip: true},
		MaxRounds: 10,
	})

	err := clf.Fit(samples, labels)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errWeakFailure), "got %v", err)
	assert.Equal(t, 2, clf.Len())
	assert.Equal(t, 6, clf.PredictScores(samples).Len())
}

func TestFitRejectsNonBinaryPredictions(t *testing.T) {
	samples, labels := fourPoints()
	clf := NewAdaBoost(AdaBoostParams{Prototype: &constantClassifier{label: 0}, MaxRounds: 2})
	err := clf.Fit(samples, labels)
	assert.True(t, errors.Is(err, ErrInvalidPrediction), "got %v", err)
}

func TestFittedEnsembleIsFrozen(t *testing.T) {
	samples, labels := fourPoints()
	clf := NewAdaBoost(AdaBoostParams{Prototype: NewDecisionStump(), MaxRounds: 2})
	require.NoError(t, clf.Fit(samples, labels))
	assert.True(t, errors.Is(clf.Fit(samples, labels), ErrFrozen))

	scores := clf.PredictScores(samples)
	entries := clf.Entries()
	entries[0].Alpha = -100
	stump, ok := entries[0].Classifier.(*DecisionStump)
	require.True(t, ok)
	stump.LeftLabel, stump.RightLabel = stump.RightLabel, stump.LeftLabel
	stump.Threshold = 100

	assert.Greater(t, clf.Entries()[0].Alpha, 0.0)
	assert.True(t, mat.Equal(scores, clf.PredictScores(samples)))

	tree := NewAdaBoost(AdaBoostParams{Prototype: NewDecisionTree(), MaxRounds: 2})
	require.NoError(t, tree.Fit(samples, labels))
	treeScores := tree.PredictScores(samples)
	copied, ok := tree.Entries()[0].Classifier.(*DecisionTree)
	require.True(t, ok)
	for ind := range copied.LeafNodes {
		copied.LeafNodes[ind].Label = -copied.LeafNodes[ind].Label
	}
	assert.True(t, mat.Equal(treeScores, tree.PredictScores(samples)))
}

func TestPredictIsIdempotent(t *testing.T) {
	dm := noisyDataset(rand.New(rand.NewSource(5)), 150)
	clf := NewAdaBoost(AdaBoostParams{Prototype: NewDecisionTree(WithMaxDepth(2)), MaxRounds: 15})
	require.NoError(t, clf.Fit(dm.Samples, dm.Labels))

	first := clf.PredictScores(dm.Samples)
	firstLabels := clf.Predict(dm.Samples, 0)
	for i := 0; i < 3; i++ {
		assert.True(t, mat.Equal(first, clf.PredictScores(dm.Samples)))
		assert.True(t, mat.Equal(firstLabels, clf.Predict(dm.Samples, 0)))
	}
}

func TestPredictThresholdIsInclusiveTowardsNegative(t *testing.T) {
	samples, labels := fourPoints()
	clf := NewAdaBoost(AdaBoostParams{Prototype: NewDecisionStump(), MaxRounds: 1})
	require.NoError(t, clf.Fit(samples, labels))

	alpha := clf.Entries()[0].Alpha
	assert.Equal(t, []float64{-1, -1, -1, -1}, clf.Predict(samples, alpha).RawVector().Data)
	assert.Equal(t, []float64{1, 1, 1, 1}, clf.Predict(samples, -alpha-1).RawVector().Data)
}

func TestLearningCurvesFollowRounds(t *testing.T) {
	rng := rand.New(rand.NewSource(9))
	train := noisyDataset(rng, 200)
	train.SetDescription("train")
	val := noisyDataset(rng, 100)
	val.SetDescription("val")

	clf := NewAdaBoost(AdaBoostParams{
		Prototype: NewDecisionStump(),
		MaxRounds: 20,
		Monitors:  []mlkit.DMatrix{train, val},
	})
	require.NoError(t, clf.Fit(train.Samples, train.Labels))

	curves := clf.LearningCurves()
	assert.Equal(t, []string{"train 0-1 loss", "train exp loss", "val 0-1 loss", "val exp loss"}, curves.Titles)
	require.Equal(t, clf.Len(), curves.Len())

	last := curves.Values[curves.Len()-1]
	assert.InDelta(t, mlkit.ZeroOneLoss(train.Labels, clf.Predict(train.Samples, 0)), last[0], 1e-12)
	assert.InDelta(t, mlkit.ExpLoss(val.Labels, clf.PredictScores(val.Samples)), last[3], 1e-9)

	replayed, err := clf.StagedLearningCurves(val)
	require.NoError(t, err)
	require.Equal(t, curves.Len(), replayed.Len())
	for round := range replayed.Values {
		assert.InDelta(t, curves.Values[round][2], replayed.Values[round][0], 1e-12)
		assert.InDelta(t, curves.Values[round][3], replayed.Values[round][1], 1e-9)
	}
}

func TestStagedScoresEndWithPredictScores(t *testing.T) {
	dm := noisyDataset(rand.New(rand.NewSource(11)), 80)
	clf := NewAdaBoost(AdaBoostParams{Prototype: NewDecisionStump(), MaxRounds: 7})
	require.NoError(t, clf.Fit(dm.Samples, dm.Labels))

	staged := clf.StagedScores(dm.Samples)
	require.NotNil(t, staged)
	assert.Equal(t, []int{clf.Len(), 80}, []int(staged.Shape()))

	scores := clf.PredictScores(dm.Samples)
	for p := 0; p < 80; p++ {
		value, err := staged.At(clf.Len()-1, p)
		require.NoError(t, err)
		assert.InDelta(t, scores.AtVec(p), value.(float64), 1e-12)

		first, err := staged.At(0, p)
		require.NoError(t, err)
		entry := clf.Entries()[0]
		assert.InDelta(t, entry.Alpha*entry.Classifier.Predict(dm.Samples).AtVec(p), first.(float64), 1e-12)
	}
}
