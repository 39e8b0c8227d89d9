package mlkit

import (
	"errors"
	"fmt"
	"log"
	"math/rand"
	"os"

	"github.com/sbinet/npyio"
	"gonum.org/v1/gonum/mat"
)

var (
	//ErrShapeMismatch is returned when samples, labels or weights disagree on their dimensions.
	ErrShapeMismatch = errors.New("shape mismatch")
	//ErrInvalidLabel is returned when a label is outside of {-1, +1}.
	ErrInvalidLabel = errors.New("label must be -1 or +1")
	//ErrEmptyDataset is returned when a data set holds no samples.
	ErrEmptyDataset = errors.New("empty data set")
)

//DMatrix contains a sample matrix and the aligned vector of binary labels.
type DMatrix struct {
	Samples     *mat.Dense
	Labels      *mat.VecDense
	Description *string
}

//SetDescription sets a description for a DMatrix object
func (dm *DMatrix) SetDescription(description string) {
	dm.Description = &description
}

//Title returns the description or the fallback when the description is absent.
func (dm DMatrix) Title(fallback string) string {
	if dm.Description == nil {
		return fallback
	}
	return *dm.Description
}

//Validate checks that samples and labels are aligned and that every label is -1 or +1.
//It returns the number of samples and the number of features.
func (dm DMatrix) Validate() (h, w int, err error) {
	if dm.Samples == nil || dm.Labels == nil {
		return 0, 0, ErrEmptyDataset
	}
	h, w = dm.Samples.Dims()
	if h == 0 || w == 0 {
		return 0, 0, ErrEmptyDataset
	}
	if n := dm.Labels.Len(); n != h {
		return 0, 0, fmt.Errorf("%w: %d samples but %d labels", ErrShapeMismatch, h, n)
	}
	for i := 0; i < h; i++ {
		if v := dm.Labels.AtVec(i); !IsBinaryLabel(v) {
			return 0, 0, fmt.Errorf("%w: labels[%d] = %v", ErrInvalidLabel, i, v)
		}
	}
	return h, w, nil
}

//Rows selects the given rows into a new DMatrix. The description is not copied.
func (dm DMatrix) Rows(indices []int) DMatrix {
	_, w := dm.Samples.Dims()
	if len(indices) == 0 {
		return DMatrix{Samples: &mat.Dense{}, Labels: &mat.VecDense{}}
	}
	samples := mat.NewDense(len(indices), w, nil)
	labels := mat.NewVecDense(len(indices), nil)
	for p, ind := range indices {
		samples.SetRow(p, dm.Samples.RawRowView(ind))
		labels.SetVec(p, dm.Labels.AtVec(ind))
	}
	return DMatrix{Samples: samples, Labels: labels}
}

//Head returns the first n samples, or the whole data set when it is shorter.
func (dm DMatrix) Head(n int) DMatrix {
	h := Height(dm.Samples)
	if n <= 0 || n >= h {
		return dm
	}
	indices := make([]int, n)
	for i := range indices {
		indices[i] = i
	}
	head := dm.Rows(indices)
	head.Description = dm.Description
	return head
}

//TrainTestSplit shuffles the data set with rng and puts testRatio of it into the test part.
func TrainTestSplit(dm DMatrix, testRatio float64, rng *rand.Rand) (train, test DMatrix, err error) {
	if testRatio < 0 || testRatio >= 1 {
		return train, test, fmt.Errorf("test ratio %v is outside of [0, 1)", testRatio)
	}
	h := Height(dm.Samples)
	if h == 0 {
		return train, test, ErrEmptyDataset
	}
	permutation := rng.Perm(h)
	nTest := int(float64(h) * testRatio)
	return dm.Rows(permutation[nTest:]), dm.Rows(permutation[:nTest]), nil
}

//ReadDMatrix reads samples and labels from two npy files and unites them into one DMatrix object
func ReadDMatrix(fileNameSamples, fileNameLabels string) (dm DMatrix, err error) {
	log.Print("\ttry to load samples <", fileNameSamples, ">")
	if dm.Samples, err = ReadNpy(fileNameSamples); err != nil {
		return dm, err
	}
	log.Print("\ttry to load labels <", fileNameLabels, ">")
	labels, err := ReadNpyVector(fileNameLabels)
	if err != nil {
		return dm, err
	}
	if len(labels) == 0 {
		return dm, fmt.Errorf("%s: %w", fileNameLabels, ErrEmptyDataset)
	}
	dm.Labels = mat.NewVecDense(len(labels), labels)
	if _, _, err = dm.Validate(); err != nil {
		return dm, fmt.Errorf("%s, %s: %w", fileNameSamples, fileNameLabels, err)
	}
	return dm, nil
}

//ReadNpy reads the content of a two dimensional npy file
func ReadNpy(fileName string) (denseMat *mat.Dense, err error) {
	f, err := os.Open(fileName)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r, err := npyio.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", fileName, err)
	}

	denseMat = &mat.Dense{}
	if err = r.Read(denseMat); err != nil {
		return nil, fmt.Errorf("%s: %w", fileName, err)
	}
	return denseMat, nil
}

//ReadNpyVector reads a float64 npy file of any shape as a flat slice.
func ReadNpyVector(fileName string) ([]float64, error) {
	f, err := os.Open(fileName)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r, err := npyio.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", fileName, err)
	}

	var data []float64
	if err = r.Read(&data); err != nil {
		return nil, fmt.Errorf("%s: %w", fileName, err)
	}
	return data, nil
}

//WriteNpy writes a matrix into an npy file. Vectors are written as one dimensional arrays.
func WriteNpy(fileName string, m mat.Matrix) (err error) {
	dst, err := os.Create(fileName)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := dst.Close(); err == nil {
			err = closeErr
		}
	}()
	return npyio.Write(dst, npyValue(m))
}

//npyValue converts m into a value npyio can write: *mat.Dense or []float64.
func npyValue(m mat.Matrix) interface{} {
	if v, ok := m.(mat.Vector); ok {
		data := make([]float64, v.Len())
		for i := range data {
			data[i] = v.AtVec(i)
		}
		return data
	}
	if dense, ok := m.(*mat.Dense); ok {
		return dense
	}
	return mat.DenseCopyOf(m)
}

//WriteDMatrix writes samples and labels into two npy files readable by ReadDMatrix.
func WriteDMatrix(dm DMatrix, fileNameSamples, fileNameLabels string) error {
	if err := WriteNpy(fileNameSamples, dm.Samples); err != nil {
		return err
	}
	return WriteNpy(fileNameLabels, dm.Labels)
}

//Stack concatenates data sets vertically. All parts must have the same number of features.
func Stack(parts ...DMatrix) (DMatrix, error) {
	total, w := 0, -1
	for _, part := range parts {
		h, pw := part.Samples.Dims()
		if h == 0 {
			continue
		}
		if w != -1 && pw != w {
			return DMatrix{}, fmt.Errorf("%w: %d features vs %d", ErrShapeMismatch, pw, w)
		}
		w = pw
		total += h
	}
	if total == 0 {
		return DMatrix{}, ErrEmptyDataset
	}
	samples := mat.NewDense(total, w, nil)
	labels := mat.NewVecDense(total, nil)
	row := 0
	for _, part := range parts {
		h := Height(part.Samples)
		for p := 0; p < h; p++ {
			samples.SetRow(row, part.Samples.RawRowView(p))
			labels.SetVec(row, part.Labels.AtVec(p))
			row++
		}
	}
	return DMatrix{Samples: samples, Labels: labels}, nil
}
