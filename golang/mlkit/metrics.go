package mlkit

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

//ZeroOneLoss returns the fraction of predictions that differ from the labels.
func ZeroOneLoss(labels, predictions mat.Vector) float64 {
	n := mustSameLen(labels, predictions)
	if n == 0 {
		return 0
	}
	wrong := 0
	for i := 0; i < n; i++ {
		if labels.AtVec(i) != predictions.AtVec(i) {
			wrong++
		}
	}
	return float64(wrong) / float64(n)
}

//Accuracy is 1 - ZeroOneLoss.
func Accuracy(labels, predictions mat.Vector) float64 {
	return 1 - ZeroOneLoss(labels, predictions)
}

//ExpLoss returns the mean exponential loss exp(-y*f) of real valued scores f.
func ExpLoss(labels, scores mat.Vector) float64 {
	n := mustSameLen(labels, scores)
	if n == 0 {
		return 0
	}
	losses := make([]float64, n)
	for i := range losses {
		losses[i] = math.Exp(-labels.AtVec(i) * scores.AtVec(i))
	}
	return stat.Mean(losses, nil)
}

//ClassStats holds the binary classification statistics of one class.
type ClassStats struct {
	Name      string
	Label     float64
	Precision float64
	Recall    float64
	F1        float64
	Support   int
}

//ClassificationStats computes per class precision, recall and F1 for the labels -1 and +1.
//names[0] is the name of the class +1 and names[1] is the name of the class -1.
func ClassificationStats(labels, predictions mat.Vector, names [2]string) []ClassStats {
	n := mustSameLen(labels, predictions)
	result := make([]ClassStats, 0, 2)
	for ind, label := range []float64{1, -1} {
		tp, fp, fn, support := 0, 0, 0, 0
		for i := 0; i < n; i++ {
			y, p := labels.AtVec(i), predictions.AtVec(i)
			if y == label {
				support++
			}
			switch {
			case y == label && p == label:
				tp++
			case y != label && p == label:
				fp++
			case y == label && p != label:
				fn++
			}
		}
		cs := ClassStats{Name: names[ind], Label: label, Support: support}
		if tp+fp > 0 {
			cs.Precision = float64(tp) / float64(tp+fp)
		}
		if tp+fn > 0 {
			cs.Recall = float64(tp) / float64(tp+fn)
		}
		if cs.Precision+cs.Recall > 0 {
			cs.F1 = 2 * cs.Precision * cs.Recall / (cs.Precision + cs.Recall)
		}
		result = append(result, cs)
	}
	return result
}

//ClassificationReport renders ClassificationStats as a text table with a support weighted average row.
func ClassificationReport(labels, predictions mat.Vector, names [2]string) string {
	stats := ClassificationStats(labels, predictions, names)

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%12s %10s %10s %10s %10s\n", "", "precision", "recall", "f1-score", "support"))
	var precision, recall, f1 []float64
	var support []float64
	total := 0
	for _, cs := range stats {
		sb.WriteString(fmt.Sprintf("%12s %10.2f %10.2f %10.2f %10d\n", cs.Name, cs.Precision, cs.Recall, cs.F1, cs.Support))
		precision = append(precision, cs.Precision)
		recall = append(recall, cs.Recall)
		f1 = append(f1, cs.F1)
		support = append(support, float64(cs.Support))
		total += cs.Support
	}
	if total > 0 {
		sb.WriteString(fmt.Sprintf("\n%12s %10.2f %10.2f %10.2f %10d\n", "avg / total",
			stat.Mean(precision, support), stat.Mean(recall, support), stat.Mean(f1, support), total))
	}
	return sb.String()
}

func mustSameLen(a, b mat.Vector) int {
	if a.Len() != b.Len() {
		panic(fmt.Sprintf("mlkit: %v: %d vs %d", ErrShapeMismatch, a.Len(), b.Len()))
	}
	return a.Len()
}
