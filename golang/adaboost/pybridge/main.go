// SPDX-License-Identifier: Apache-2.0

package main

/*
#cgo CFLAGS: -I.
#include <stdlib.h>
*/
import "C"

import (
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"unsafe"

	"github.com/fakeProgrammer0/ML-lab/golang/adaboost/abl"
	"github.com/fakeProgrammer0/ML-lab/golang/mlkit"
	"gonum.org/v1/gonum/mat"
)

var (
	handleMu   sync.Mutex
	nextHandle uint64 = 1
	ensembles         = make(map[uint64]*abl.AdaBoost)

	monitorMu       sync.Mutex
	pendingMonitors []mlkit.DMatrix

	lastErrorMu sync.Mutex
	lastError   string

	logSilenceOnce sync.Once
)

func setLastError(err error) {
	lastErrorMu.Lock()
	defer lastErrorMu.Unlock()
	if err != nil {
		lastError = err.Error()
	} else {
		lastError = ""
	}
}

func getLastError() string {
	lastErrorMu.Lock()
	defer lastErrorMu.Unlock()
	return lastError
}

func storeEnsemble(ab *abl.AdaBoost) uint64 {
	handleMu.Lock()
	defer handleMu.Unlock()
	handle := nextHandle
	ensembles[handle] = ab
	nextHandle++
	return handle
}

func fetchEnsemble(handle uint64) (*abl.AdaBoost, error) {
	handleMu.Lock()
	defer handleMu.Unlock()
	ensemble, ok := ensembles[handle]
	if !ok {
		return nil, errors.New("invalid model handle")
	}
	return ensemble, nil
}

//export FreeModel
func FreeModel(handle C.ulonglong) {
	handleMu.Lock()
	defer handleMu.Unlock()
	delete(ensembles, uint64(handle))
}

func copyFloatSlice(ptr *C.double, length int) ([]float64, error) {
	if length < 0 {
		return nil, errors.New("negative length")
	}
	if length == 0 {
		return nil, nil
	}
	if ptr == nil {
		return nil, errors.New("null pointer for non-empty slice")
	}
	src := unsafe.Slice((*float64)(unsafe.Pointer(ptr)), length)
	dst := make([]float64, length)
	copy(dst, src)
	return dst, nil
}

func sliceFromPtr(ptr *C.double, length int) ([]float64, error) {
	if length < 0 {
		return nil, errors.New("negative length")
	}
	if length == 0 {
		return nil, nil
	}
	if ptr == nil {
		return nil, errors.New("null pointer for non-empty slice")
	}
	return unsafe.Slice((*float64)(unsafe.Pointer(ptr)), length), nil
}

func buildDense(ptr *C.double, rows, cols C.int) (*mat.Dense, error) {
	r := int(rows)
	c := int(cols)
	if r <= 0 || c <= 0 {
		return nil, errors.New("invalid matrix dimensions")
	}
	data, err := copyFloatSlice(ptr, r*c)
	if err != nil {
		return nil, err
	}
	return mat.NewDense(r, c, data), nil
}

//buildDMatrix copies a row major sample matrix and its labels and validates them.
func buildDMatrix(samplesPtr *C.double, rows, cols C.int, labelsPtr *C.double) (mlkit.DMatrix, error) {
	samples, err := buildDense(samplesPtr, rows, cols)
	if err != nil {
		return mlkit.DMatrix{}, err
	}
	labels, err := copyFloatSlice(labelsPtr, int(rows))
	if err != nil {
		return mlkit.DMatrix{}, err
	}
	dm := mlkit.DMatrix{Samples: samples, Labels: mat.NewVecDense(int(rows), labels)}
	if _, _, err = dm.Validate(); err != nil {
		return mlkit.DMatrix{}, err
	}
	return dm, nil
}

func buildPrototype(kind, maxDepth, minSamplesLeaf, threadsNum C.int) (abl.WeakClassifier, error) {
	opts := []abl.Option{abl.WithThreadsNum(int(threadsNum))}
	if maxDepth > 0 {
		opts = append(opts, abl.WithMaxDepth(int(maxDepth)))
	}
	if minSamplesLeaf > 0 {
		opts = append(opts, abl.WithMinSamplesLeaf(int(minSamplesLeaf)))
	}
	switch kind {
	case 0:
		return abl.NewDecisionStump(opts...), nil
	case 1:
		return abl.NewDecisionTree(opts...), nil
	default:
		return nil, fmt.Errorf("unsupported weak classifier kind %d", int(kind))
	}
}

//export RegisterMonitorDataset
func RegisterMonitorDataset(
	samplesPtr *C.double,
	rows C.int,
	cols C.int,
	labelsPtr *C.double,
	desc *C.char,
) C.int {
	setLastError(nil)

	if rows <= 0 {
		setLastError(errors.New("monitor rows must be positive"))
		return 1
	}

	matrix, err := buildDMatrix(samplesPtr, rows, cols, labelsPtr)
	if err != nil {
		setLastError(err)
		return 2
	}

	if desc != nil {
		matrix.SetDescription(C.GoString(desc))
	}

	monitorMu.Lock()
	defer monitorMu.Unlock()
	pendingMonitors = append(pendingMonitors, matrix)
	return 0
}

//export TrainModel
func TrainModel(
	samplesPtr *C.double,
	rows C.int,
	cols C.int,
	labelsPtr *C.double,
	weakKind C.int,
	maxDepth C.int,
	minSamplesLeaf C.int,
	threadsNum C.int,
	maxRounds C.int,
	discardPerfectRound C.int,
) C.ulonglong {
	setLastError(nil)
	logSilenceOnce.Do(func() {
		log.SetOutput(io.Discard)
	})

	if rows <= 0 {
		setLastError(errors.New("rows must be positive"))
		return 0
	}

	matrix, err := buildDMatrix(samplesPtr, rows, cols, labelsPtr)
	if err != nil {
		setLastError(err)
		return 0
	}

	prototype, err := buildPrototype(weakKind, maxDepth, minSamplesLeaf, threadsNum)
	if err != nil {
		setLastError(err)
		return 0
	}

	params := abl.AdaBoostParams{
		Prototype:           prototype,
		MaxRounds:           int(maxRounds),
		DiscardPerfectRound: discardPerfectRound != 0,
	}

	monitorMu.Lock()
	if len(pendingMonitors) > 0 {
		params.Monitors = append([]mlkit.DMatrix(nil), pendingMonitors...)
		pendingMonitors = nil
	}
	monitorMu.Unlock()

	ensemble := abl.NewAdaBoost(params)
	if err = ensemble.Fit(matrix.Samples, matrix.Labels); err != nil {
		setLastError(err)
		return 0
	}
	return C.ulonglong(storeEnsemble(ensemble))
}

func scoresFor(handle C.ulonglong, samplesPtr *C.double, rows, cols C.int) (*mat.VecDense, C.int, error) {
	ensemble, err := fetchEnsemble(uint64(handle))
	if err != nil {
		return nil, 1, err
	}

	samples, err := buildDense(samplesPtr, rows, cols)
	if err != nil {
		return nil, 2, err
	}

	if n := ensemble.NFeatures(); n != 0 && n != int(cols) {
		return nil, 3, fmt.Errorf("%w: %d features, model expects %d", mlkit.ErrShapeMismatch, int(cols), n)
	}
	return ensemble.PredictScores(samples), 0, nil
}

//export Predict
func Predict(
	handle C.ulonglong,
	samplesPtr *C.double,
	rows C.int,
	cols C.int,
	outputPtr *C.double,
) C.int {
	setLastError(nil)
	scores, code, err := scoresFor(handle, samplesPtr, rows, cols)
	if err != nil {
		setLastError(err)
		return code
	}

	outSlice, err := sliceFromPtr(outputPtr, int(rows))
	if err != nil {
		setLastError(err)
		return 4
	}
	copy(outSlice, scores.RawVector().Data)
	return 0
}

//export PredictLabels
func PredictLabels(
	handle C.ulonglong,
	samplesPtr *C.double,
	rows C.int,
	cols C.int,
	threshold C.double,
	outputPtr *C.double,
) C.int {
	setLastError(nil)
	scores, code, err := scoresFor(handle, samplesPtr, rows, cols)
	if err != nil {
		setLastError(err)
		return code
	}

	outSlice, err := sliceFromPtr(outputPtr, int(rows))
	if err != nil {
		setLastError(err)
		return 4
	}
	copy(outSlice, mlkit.Sign(scores, float64(threshold)).RawVector().Data)
	return 0
}

//export EnsembleSize
func EnsembleSize(handle C.ulonglong) C.int {
	setLastError(nil)
	ensemble, err := fetchEnsemble(uint64(handle))
	if err != nil {
		setLastError(err)
		return -1
	}
	return C.int(ensemble.Len())
}

//export SaveModel
func SaveModel(handle C.ulonglong, path *C.char) C.int {
	setLastError(nil)
	ensemble, err := fetchEnsemble(uint64(handle))
	if err != nil {
		setLastError(err)
		return 1
	}
	if err = ensemble.Save(C.GoString(path)); err != nil {
		setLastError(err)
		return 2
	}
	return 0
}

//export RenderTrees
func RenderTrees(handle C.ulonglong, prefix, figureType, directory *C.char) C.int {
	setLastError(nil)
	ensemble, err := fetchEnsemble(uint64(handle))
	if err != nil {
		setLastError(err)
		return 1
	}
	goPrefix := C.GoString(prefix)
	goFigureType := C.GoString(figureType)
	goDir := C.GoString(directory)
	if goPrefix == "" {
		goPrefix = "tree"
	}
	if goFigureType == "" {
		goFigureType = "svg"
	}
	if goDir == "" {
		goDir = "."
	}
	if err = ensemble.RenderTrees(goPrefix, goFigureType, goDir); err != nil {
		setLastError(err)
		return 2
	}
	return 0
}

//export LoadModel
func LoadModel(path *C.char) C.ulonglong {
	setLastError(nil)
	ensemble, err := abl.LoadModel(C.GoString(path))
	if err != nil {
		setLastError(err)
		return 0
	}
	return C.ulonglong(storeEnsemble(ensemble))
}

//export DumpLearningCurves
func DumpLearningCurves(handle C.ulonglong, path *C.char) C.int {
	setLastError(nil)
	ensemble, err := fetchEnsemble(uint64(handle))
	if err != nil {
		setLastError(err)
		return 1
	}
	if err = ensemble.LearningCurves().Dump(C.GoString(path)); err != nil {
		setLastError(err)
		return 2
	}
	return 0
}

//export GetLastError
func GetLastError() *C.char {
	errStr := getLastError()
	if errStr == "" {
		return nil
	}
	return C.CString(errStr)
}

//export FreeCString
func FreeCString(str *C.char) {
	if str != nil {
		C.free(unsafe.Pointer(str))
	}
}

func main() {}
