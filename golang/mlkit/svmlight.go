package mlkit

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"
)

//LoadSVMLight parses a data set in the svmlight / libsvm text format: one sample per line,
//"label index:value index:value ...", indices start from 1. Absent indices are zeros.
//When prependBias is true a column of ones is added in front of the features,
//so the resulting matrix has nFeatures+1 columns.
func LoadSVMLight(r io.Reader, nFeatures int, prependBias bool) (dm DMatrix, err error) {
	if nFeatures <= 0 {
		return dm, fmt.Errorf("number of features must be positive, got %d", nFeatures)
	}
	offset := 0
	if prependBias {
		offset = 1
	}
	w := nFeatures + offset

	var data, labels []float64
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	lineNumber := 0
	for scanner.Scan() {
		lineNumber++
		line := scanner.Text()
		if ind := strings.IndexByte(line, '#'); ind >= 0 {
			line = line[:ind]
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}

		label, err := strconv.ParseFloat(fields[0], 64)
		if err != nil {
			return dm, fmt.Errorf("line %d: bad label %q: %w", lineNumber, fields[0], err)
		}
		if !IsBinaryLabel(label) {
			return dm, fmt.Errorf("line %d: %w, got %v", lineNumber, ErrInvalidLabel, label)
		}

		row := make([]float64, w)
		if prependBias {
			row[0] = 1
		}
		for _, field := range fields[1:] {
			sep := strings.IndexByte(field, ':')
			if sep <= 0 {
				return dm, fmt.Errorf("line %d: bad feature %q", lineNumber, field)
			}
			index, err := strconv.Atoi(field[:sep])
			if err != nil {
				return dm, fmt.Errorf("line %d: bad feature index %q: %w", lineNumber, field, err)
			}
			if index < 1 || index > nFeatures {
				return dm, fmt.Errorf("line %d: feature index %d is outside of [1, %d]", lineNumber, index, nFeatures)
			}
			value, err := strconv.ParseFloat(field[sep+1:], 64)
			if err != nil {
				return dm, fmt.Errorf("line %d: bad feature value %q: %w", lineNumber, field, err)
			}
			row[index-1+offset] = value
		}
		data = append(data, row...)
		labels = append(labels, label)
	}
	if err = scanner.Err(); err != nil {
		return dm, err
	}
	if len(labels) == 0 {
		return dm, ErrEmptyDataset
	}

	dm.Samples = mat.NewDense(len(labels), w, data)
	dm.Labels = mat.NewVecDense(len(labels), labels)
	return dm, nil
}

//ReadSVMLight opens fileName and parses it with LoadSVMLight.
func ReadSVMLight(fileName string, nFeatures int, prependBias bool) (DMatrix, error) {
	f, err := os.Open(fileName)
	if err != nil {
		return DMatrix{}, err
	}
	defer f.Close()

	dm, err := LoadSVMLight(f, nFeatures, prependBias)
	if err != nil {
		return dm, fmt.Errorf("%s: %w", fileName, err)
	}
	return dm, nil
}
