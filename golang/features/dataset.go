package features

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"sort"

	"github.com/fakeProgrammer0/ML-lab/golang/mlkit"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
)

//ImageSize is the side of the square every image is resized to before feature extraction.
const ImageSize = 24

//ImagePaths lists regular files of a directory in alphabetical order.
func ImagePaths(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	paths := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		paths = append(paths, filepath.Join(dir, entry.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}

//Extract loads an image, resizes it to size x size and returns its NPD features.
func Extract(fileName string, size int) ([]float64, error) {
	gray, err := LoadGray(fileName)
	if err != nil {
		return nil, err
	}
	return NPD(Resize(gray, size, size)), nil
}

//LoadDirectory extracts NPD features from every image in dir and labels all of them with label.
//Images are processed by up to threadsNum goroutines, 0 means one per CPU.
func LoadDirectory(dir string, label float64, size, threadsNum int) (mlkit.DMatrix, error) {
	if !mlkit.IsBinaryLabel(label) {
		return mlkit.DMatrix{}, fmt.Errorf("%w: %v", mlkit.ErrInvalidLabel, label)
	}
	paths, err := ImagePaths(dir)
	if err != nil {
		return mlkit.DMatrix{}, err
	}
	if len(paths) == 0 {
		return mlkit.DMatrix{}, fmt.Errorf("%s: %w", dir, mlkit.ErrEmptyDataset)
	}
	log.Print("\textract features of ", len(paths), " images from <", dir, ">")

	if threadsNum <= 0 {
		threadsNum = runtime.NumCPU()
	}
	samples := mat.NewDense(len(paths), NPDLen(size*size), nil)
	var group errgroup.Group
	group.SetLimit(threadsNum)
	for ind, path := range paths {
		localInd, localPath := ind, path
		group.Go(func() error {
			row, err := Extract(localPath, size)
			if err != nil {
				return err
			}
			samples.SetRow(localInd, row)
			return nil
		})
	}
	if err = group.Wait(); err != nil {
		return mlkit.DMatrix{}, err
	}

	labels := mat.NewVecDense(len(paths), nil)
	for i := 0; i < len(paths); i++ {
		labels.SetVec(i, label)
	}
	dm := mlkit.DMatrix{Samples: samples, Labels: labels}
	dm.SetDescription(filepath.Base(dir))
	return dm, nil
}
