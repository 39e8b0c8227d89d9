package mlkit

import (
	"log"

	"gonum.org/v1/gonum/mat"
)

//HandleError aborts the program on a non-nil error. It is meant for command line drivers only,
//library code returns errors instead.
func HandleError(err error) {
	if err != nil {
		log.Panic(err)
	}
}

//Height returns the number of rows of a matrix.
func Height(m mat.Matrix) int {
	h, _ := m.Dims()
	return h
}

//Width returns the number of columns of a matrix.
func Width(m mat.Matrix) int {
	_, w := m.Dims()
	return w
}

//Sign converts scores into {-1, +1} labels: +1 when the score is strictly greater than threshold.
func Sign(scores mat.Vector, threshold float64) *mat.VecDense {
	n := scores.Len()
	if n == 0 {
		return &mat.VecDense{}
	}
	labels := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		if scores.AtVec(i) > threshold {
			labels.SetVec(i, 1)
		} else {
			labels.SetVec(i, -1)
		}
	}
	return labels
}

//NewVector allocates a zero vector of length n. Unlike mat.NewVecDense it accepts n == 0.
func NewVector(n int) *mat.VecDense {
	if n == 0 {
		return &mat.VecDense{}
	}
	return mat.NewVecDense(n, nil)
}

//IsBinaryLabel reports whether v is one of -1 or +1.
func IsBinaryLabel(v float64) bool {
	return v == 1 || v == -1
}
