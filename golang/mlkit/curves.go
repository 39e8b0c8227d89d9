package mlkit

import (
	"encoding/json"
	"fmt"
	"os"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

//LearningCurves collects one row of values per training step, one column per title.
type LearningCurves struct {
	Titles []string
	Values [][]float64
}

//NewLearningCurves creates empty curves with the given column titles.
func NewLearningCurves(titles ...string) LearningCurves {
	return LearningCurves{Titles: titles, Values: make([][]float64, 0)}
}

//Append adds a row of values. The row must have a value for every title.
func (lc *LearningCurves) Append(row ...float64) error {
	if len(row) != len(lc.Titles) {
		return fmt.Errorf("%w: %d values for %d curves", ErrShapeMismatch, len(row), len(lc.Titles))
	}
	lc.Values = append(lc.Values, append([]float64(nil), row...))
	return nil
}

//Column returns the values of the curve with the given index.
func (lc LearningCurves) Column(ind int) []float64 {
	column := make([]float64, len(lc.Values))
	for p, row := range lc.Values {
		column[p] = row[ind]
	}
	return column
}

//Len returns the number of recorded steps.
func (lc LearningCurves) Len() int {
	return len(lc.Values)
}

//Dump writes the curves into a json file.
func (lc LearningCurves) Dump(filename string) error {
	bytesResult, err := json.MarshalIndent(lc, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filename, bytesResult, 0o644)
}

//LoadLearningCurves reads curves written by Dump.
func LoadLearningCurves(filename string) (lc LearningCurves, err error) {
	raw, err := os.ReadFile(filename)
	if err != nil {
		return lc, err
	}
	err = json.Unmarshal(raw, &lc)
	return lc, err
}

//Plot draws every curve as a line against the step number and saves the figure.
//The image format is deduced from the file extension (png, svg, pdf, ...).
func (lc LearningCurves) Plot(filename, title, xLabel, yLabel string) error {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = xLabel
	p.Y.Label.Text = yLabel
	p.Add(plotter.NewGrid())

	for ind, curveTitle := range lc.Titles {
		points := make(plotter.XYs, len(lc.Values))
		for step, row := range lc.Values {
			points[step].X = float64(step)
			points[step].Y = row[ind]
		}
		line, err := plotter.NewLine(points)
		if err != nil {
			return fmt.Errorf("curve %q: %w", curveTitle, err)
		}
		line.Color = plotutil.Color(ind)
		line.Dashes = plotutil.Dashes(ind)
		p.Add(line)
		p.Legend.Add(curveTitle, line)
	}

	return p.Save(16*vg.Inch, 9*vg.Inch, filename)
}
