package abl

import (
	"bytes"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fakeProgrammer0/ML-lab/golang/mlkit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestEncodeDecodeKeepsScores(t *testing.T) {
	rng := rand.New(rand.NewSource(31))
	train := noisyDataset(rng, 200)
	train.SetDescription("train")
	heldOut := noisyDataset(rng, 100)

	for _, prototype := range []WeakClassifier{NewDecisionStump(), NewDecisionTree(WithMaxDepth(3))} {
		clf := NewAdaBoost(AdaBoostParams{Prototype: prototype, MaxRounds: 12, Monitors: []mlkit.DMatrix{train}})
		require.NoError(t, clf.Fit(train.Samples, train.Labels))

		var buffer bytes.Buffer
		require.NoError(t, clf.Encode(&buffer))
		restored, err := Decode(&buffer)
		require.NoError(t, err)

		assert.Equal(t, clf.Len(), restored.Len())
		assert.Equal(t, clf.NFeatures(), restored.NFeatures())
		assert.Equal(t, clf.MaxRounds(), restored.MaxRounds())
		assert.Equal(t, clf.LearningCurves(), restored.LearningCurves())
		assert.True(t, mat.Equal(clf.PredictScores(heldOut.Samples), restored.PredictScores(heldOut.Samples)))

		err = restored.Fit(train.Samples, train.Labels)
		assert.True(t, errors.Is(err, ErrFrozen), "got %v", err)
	}
}

func TestSaveLoadModel(t *testing.T) {
	dm := noisyDataset(rand.New(rand.NewSource(37)), 120)
	clf := NewAdaBoost(AdaBoostParams{Prototype: NewDecisionStump(), MaxRounds: 5})
	require.NoError(t, clf.Fit(dm.Samples, dm.Labels))

	filename := filepath.Join(t.TempDir(), "model.json")
	require.NoError(t, clf.Save(filename))
	restored, err := LoadModel(filename)
	require.NoError(t, err)
	assert.True(t, mat.Equal(clf.Predict(dm.Samples, 0), restored.Predict(dm.Samples, 0)))

	_, err = LoadModel(filepath.Join(t.TempDir(), "missing.json"))
	assert.True(t, errors.Is(err, os.ErrNotExist), "got %v", err)
}

func TestEmptyEnsembleRoundTrip(t *testing.T) {
	samples, labels := fourPoints()
	clf := NewAdaBoost(AdaBoostParams{Prototype: &constantClassifier{label: 1}, MaxRounds: 3})
	require.NoError(t, clf.Fit(samples, labels))

	var buffer bytes.Buffer
	require.NoError(t, clf.Encode(&buffer))
	restored, err := Decode(&buffer)
	require.NoError(t, err)
	assert.Equal(t, 0, restored.Len())
	assert.Equal(t, []float64{-1, -1, -1, -1}, restored.Predict(samples, 0).RawVector().Data)
}

func TestEncodeRejectsUnregisteredClassifiers(t *testing.T) {
	samples := mat.NewDense(6, 1, []float64{1, 2, 3, 4, 5, 6})
	labels := mat.NewVecDense(6, []float64{1, -1, 1, -1, 1, -1})
	calls := 0
	clf := NewAdaBoost(AdaBoostParams{Prototype: &oracleClassifier{calls: &calls, flip: true}, MaxRounds: 2})
	require.NoError(t, clf.Fit(samples, labels))
	require.Greater(t, clf.Len(), 0)

	err := clf.Encode(&bytes.Buffer{})
	assert.True(t, errors.Is(err, ErrNotSerializable), "got %v", err)
}

func TestDecodeErrors(t *testing.T) {
	_, err := Decode(strings.NewReader(`{"max_rounds": 3, "n_features": 1,
		"entries": [{"kind": "forest", "alpha": 0.5, "model": {}}]}`))
	assert.True(t, errors.Is(err, ErrUnknownKind), "got %v", err)

	_, err = Decode(strings.NewReader(`{"entries": [`))
	assert.Error(t, err)

	stump := `{"kind": "stump", "alpha": 0.5, "model": {"Fitted": true, "FeatureNumber": 0, "Threshold": 1.5, "LeftLabel": 1, "RightLabel": -1}}`
	restored, err := Decode(strings.NewReader(`{"max_rounds": 2, "n_features": 1, "entries": [` + stump + `]}`))
	require.NoError(t, err)
	assert.Equal(t, []float64{0.5, -0.5}, restored.PredictScores(mat.NewDense(2, 1, []float64{1, 2})).RawVector().Data)

	for name, blob := range map[string]string{
		"too many entries": `{"max_rounds": 1, "n_features": 1, "entries": [` + stump + `, ` + stump + `]}`,
		"no rounds":        `{"max_rounds": 0, "n_features": 1, "entries": []}`,
		"no features":      `{"max_rounds": 2, "n_features": 0, "entries": [` + stump + `]}`,
		"stump feature": `{"max_rounds": 2, "n_features": 1, "entries": [{"kind": "stump", "alpha": 0.5,
			"model": {"Fitted": true, "FeatureNumber": 5, "Threshold": 1.5, "LeftLabel": 1, "RightLabel": -1}}]}`,
		"stump label": `{"max_rounds": 2, "n_features": 1, "entries": [{"kind": "stump", "alpha": 0.5,
			"model": {"Fitted": true, "FeatureNumber": 0, "Threshold": 1.5, "LeftLabel": 0, "RightLabel": -1}}]}`,
		"self loop": `{"max_rounds": 2, "n_features": 1, "entries": [{"kind": "tree", "alpha": 0.5, "model": {
			"TreeNodes": [{"TreeNodeId": 0, "FeatureNumber": 0, "Threshold": 0.5, "LeftIndex": 0, "RightIndex": 0, "LeafIndex": -1}],
			"LeafNodes": []}}]}`,
		"leaf index": `{"max_rounds": 2, "n_features": 1, "entries": [{"kind": "tree", "alpha": 0.5, "model": {
			"TreeNodes": [{"TreeNodeId": 0, "FeatureNumber": -1, "LeftIndex": -1, "RightIndex": -1, "LeafIndex": 3}],
			"LeafNodes": [{"LeafNodeId": 0, "Label": 1}]}}]}`,
		"tree feature": `{"max_rounds": 2, "n_features": 1, "entries": [{"kind": "tree", "alpha": 0.5, "model": {
			"TreeNodes": [
				{"TreeNodeId": 0, "FeatureNumber": 2, "Threshold": 0.5, "LeftIndex": 1, "RightIndex": 2, "LeafIndex": -1},
				{"TreeNodeId": 1, "FeatureNumber": -1, "LeftIndex": -1, "RightIndex": -1, "LeafIndex": 0},
				{"TreeNodeId": 2, "FeatureNumber": -1, "LeftIndex": -1, "RightIndex": -1, "LeafIndex": 1}],
			"LeafNodes": [{"LeafNodeId": 0, "Label": 1}, {"LeafNodeId": 1, "Label": -1}]}}]}`,
	} {
		_, err = Decode(strings.NewReader(blob))
		assert.True(t, errors.Is(err, ErrCorruptModel), "%s: got %v", name, err)
	}

	assert.Equal(t, []string{"stump", "tree"}, RegisteredKinds())
}

func TestRenderTrees(t *testing.T) {
	dm := noisyDataset(rand.New(rand.NewSource(41)), 60)
	clf := NewAdaBoost(AdaBoostParams{Prototype: NewDecisionTree(WithMaxDepth(2)), MaxRounds: 3})
	require.NoError(t, clf.Fit(dm.Samples, dm.Labels))

	dir := t.TempDir()
	require.NoError(t, clf.RenderTrees("tree", "svg", dir))
	for ind := 0; ind < clf.Len(); ind++ {
		info, err := os.Stat(filepath.Join(dir, fmt.Sprintf("tree_%05d.svg", ind)))
		require.NoError(t, err)
		assert.Greater(t, info.Size(), int64(0))
	}

	assert.Error(t, clf.RenderTrees("tree", "bmp", dir))
}
