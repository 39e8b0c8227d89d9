package abl

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/fakeProgrammer0/ML-lab/golang/mlkit"
	"gonum.org/v1/gonum/mat"
)

//WeakClassifier is a trainable binary classifier used as a building block of the ensemble.
//Predict returns one value from {-1, +1} per row of samples.
//Clone returns a fresh unfitted copy carrying the same hyperparameters.
type WeakClassifier interface {
	Fit(samples *mat.Dense, labels, weights *mat.VecDense) error
	Predict(samples *mat.Dense) *mat.VecDense
	Clone() WeakClassifier
}

//KindedClassifier is a WeakClassifier that can be saved as a part of a model.
//Its JSON representation must be accepted by the factory registered for Kind.
type KindedClassifier interface {
	WeakClassifier
	Kind() string
}

var (
	//ErrNegativeWeight is returned when a sample weight is negative or not a number.
	ErrNegativeWeight = errors.New("sample weight must be non-negative")
	//ErrUnknownKind is returned when a saved weak classifier has no registered factory.
	ErrUnknownKind = errors.New("unknown weak classifier kind")
)

var (
	registryMu   sync.RWMutex
	weakRegistry = map[string]func() WeakClassifier{}
)

//RegisterWeakClassifier makes a weak classifier kind loadable by Decode.
func RegisterWeakClassifier(kind string, factory func() WeakClassifier) {
	registryMu.Lock()
	defer registryMu.Unlock()
	weakRegistry[kind] = factory
}

//RegisteredKinds lists known weak classifier kinds in alphabetical order.
func RegisteredKinds() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	kinds := make([]string, 0, len(weakRegistry))
	for kind := range weakRegistry {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	return kinds
}

func newWeakClassifier(kind string) (WeakClassifier, error) {
	registryMu.RLock()
	factory, ok := weakRegistry[kind]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	return factory(), nil
}

func init() {
	RegisterWeakClassifier(stumpKind, func() WeakClassifier { return NewDecisionStump() })
	RegisterWeakClassifier(treeKind, func() WeakClassifier { return NewDecisionTree() })
}

//validatedDimensions checks the consistency of a weighted training set
//and returns the number of samples and the number of features.
func validatedDimensions(samples *mat.Dense, labels, weights *mat.VecDense) (h, w int, err error) {
	h, w, err = mlkit.DMatrix{Samples: samples, Labels: labels}.Validate()
	if err != nil {
		return 0, 0, err
	}
	if weights == nil {
		return h, w, nil
	}
	if n := weights.Len(); n != h {
		return 0, 0, fmt.Errorf("%w: %d samples but %d weights", mlkit.ErrShapeMismatch, h, n)
	}
	for i := 0; i < h; i++ {
		if v := weights.AtVec(i); !(v >= 0) {
			return 0, 0, fmt.Errorf("%w: weights[%d] = %v", ErrNegativeWeight, i, v)
		}
	}
	return h, w, nil
}

//weightsOrUniform returns the weights as a slice, uniform weights when none are given.
func weightsOrUniform(weights *mat.VecDense, h int) []float64 {
	result := make([]float64, h)
	for i := range result {
		if weights == nil {
			result[i] = 1.0 / float64(h)
		} else {
			result[i] = weights.AtVec(i)
		}
	}
	return result
}
