package abl

import (
	"math"
	"sort"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
)

//splitCriterion scores a partition from the label weights on both sides, lower is better.
type splitCriterion func(posLeft, negLeft, posRight, negRight float64) float64

//giniCriterion is the weighted Gini impurity of both parts.
func giniCriterion(posLeft, negLeft, posRight, negRight float64) float64 {
	return weightedGini(posLeft, negLeft) + weightedGini(posRight, negRight)
}

func weightedGini(pos, neg float64) float64 {
	total := pos + neg
	if total <= 0 {
		return 0
	}
	return total - (pos*pos+neg*neg)/total
}

//errorCriterion is the weighted misclassification of both parts labelled by their majority.
func errorCriterion(posLeft, negLeft, posRight, negRight float64) float64 {
	return math.Min(posLeft, negLeft) + math.Min(posRight, negRight)
}

//majorityLabel returns +1 unless the negative weight strictly dominates.
func majorityLabel(pos, neg float64) float64 {
	if neg > pos {
		return -1
	}
	return 1
}

//BestSplit contains results of the split selection algorithm.
type BestSplit struct {
	bestValue             float64
	featureIndex          int
	threshold             float64
	leftLabel, rightLabel float64
	validSplit            bool
	numberOfObjects       int
}

//trainingView is a weighted training set prepared for split search.
type trainingView struct {
	samples *mat.Dense
	labels  []float64
	weights []float64
}

func newTrainingView(samples *mat.Dense, labels *mat.VecDense, weights []float64) trainingView {
	h := labels.Len()
	view := trainingView{samples: samples, labels: make([]float64, h), weights: weights}
	for i := range view.labels {
		view.labels[i] = labels.AtVec(i)
	}
	return view
}

//labelWeights sums the weights of positive and negative samples among indices.
func (view trainingView) labelWeights(indices []int) (pos, neg float64) {
	for _, ind := range indices {
		if view.labels[ind] > 0 {
			pos += view.weights[ind]
		} else {
			neg += view.weights[ind]
		}
	}
	return
}

//partition splits indices by the split criterion: values below the threshold go left.
func (view trainingView) partition(indices []int, split BestSplit) (left, right []int) {
	left, right = make([]int, 0), make([]int, 0)
	for _, ind := range indices {
		if view.samples.At(ind, split.featureIndex) < split.threshold {
			left = append(left, ind)
		} else {
			right = append(right, ind)
		}
	}
	return
}

//columnArgsort orders indices by the values of column q.
func columnArgsort(samples *mat.Dense, indices []int, q int) []int {
	sorted := append([]int(nil), indices...)
	sort.SliceStable(sorted, func(a, b int) bool {
		return samples.At(sorted[a], q) < samples.At(sorted[b], q)
	})
	return sorted
}

//scanForSplit performs argsort of the selected feature column and iterates through
//thresholds placed between distinct neighbouring values, keeping the best one.
//Both parts must hold at least minLeaf samples.
func scanForSplit(view trainingView, indices []int, q int, criterion splitCriterion, minLeaf int) (bestSplit BestSplit) {
	featuresAs := columnArgsort(view.samples, indices, q)
	totalPos, totalNeg := view.labelWeights(indices)

	bestSplit.featureIndex = q
	bestSplit.numberOfObjects = len(indices)

	posLeft, negLeft := 0.0, 0.0
	for hInd := 0; hInd < len(featuresAs)-1; hInd++ {
		ind := featuresAs[hInd]
		if view.labels[ind] > 0 {
			posLeft += view.weights[ind]
		} else {
			negLeft += view.weights[ind]
		}

		current, next := view.samples.At(ind, q), view.samples.At(featuresAs[hInd+1], q)
		if current == next {
			continue
		}
		leftCount := hInd + 1
		if leftCount < minLeaf || len(featuresAs)-leftCount < minLeaf {
			continue
		}

		posRight := math.Max(0, totalPos-posLeft)
		negRight := math.Max(0, totalNeg-negLeft)
		currentLossValue := criterion(posLeft, negLeft, posRight, negRight)
		if !bestSplit.validSplit || currentLossValue < bestSplit.bestValue {
			bestSplit.validSplit = true
			bestSplit.bestValue = currentLossValue
			bestSplit.threshold = (current + next) / 2
			bestSplit.leftLabel = majorityLabel(posLeft, negLeft)
			bestSplit.rightLabel = majorityLabel(posRight, negRight)
		}
	}
	return
}

//TheBestSplit finds the best possible split of the rows listed in indices.
//Columns are scanned by up to threadsNum goroutines. Ties go to the lowest feature index.
//It returns nil when no column can be split.
func TheBestSplit(view trainingView, indices []int, criterion splitCriterion, minLeaf, threadsNum int) *BestSplit {
	_, w := view.samples.Dims()
	result := make([]BestSplit, w)

	if threadsNum <= 1 {
		for q := 0; q < w; q++ {
			result[q] = scanForSplit(view, indices, q, criterion, minLeaf)
		}
	} else {
		var group errgroup.Group
		group.SetLimit(threadsNum)
		for q := 0; q < w; q++ {
			localQ := q
			group.Go(func() error {
				result[localQ] = scanForSplit(view, indices, localQ, criterion, minLeaf)
				return nil
			})
		}
		_ = group.Wait()
	}

	bestIndex := -1
	for ind, currentSplit := range result {
		if currentSplit.validSplit && (bestIndex == -1 || currentSplit.bestValue < result[bestIndex].bestValue) {
			bestIndex = ind
		}
	}

	if bestIndex == -1 {
		return nil
	}

	return &result[bestIndex]
}
