package abl

import (
	"github.com/fakeProgrammer0/ML-lab/golang/mlkit"
	"gonum.org/v1/gonum/mat"
	"gorgonia.org/tensor"
)

//StagedScores infers the ensemble score after every round. The result has the shape
//(rounds, samples): row r holds the score of the first r+1 weak classifiers.
//It returns nil for an empty ensemble or an empty sample matrix.
func (ab *AdaBoost) StagedScores(samples *mat.Dense) *tensor.Dense {
	ab.checkFeatures(samples)
	h := mlkit.Height(samples)
	rounds := len(ab.entries)
	if rounds == 0 || h == 0 {
		return nil
	}

	backing := make([]float64, rounds*h)
	for round, entry := range ab.entries {
		prediction := entry.Classifier.Predict(samples)
		for p := 0; p < h; p++ {
			previous := 0.0
			if round > 0 {
				previous = backing[(round-1)*h+p]
			}
			backing[round*h+p] = previous + entry.Alpha*prediction.AtVec(p)
		}
	}
	return tensor.New(tensor.WithShape(rounds, h), tensor.WithBacking(backing))
}

//StagedLearningCurves replays the ensemble round by round on a labelled data set
//and returns its 0-1 and exponential losses after every round.
func (ab *AdaBoost) StagedLearningCurves(dm mlkit.DMatrix) (mlkit.LearningCurves, error) {
	title := dm.Title("data")
	curves := mlkit.NewLearningCurves(title+" 0-1 loss", title+" exp loss")
	h, _, err := dm.Validate()
	if err != nil {
		return curves, err
	}

	staged := ab.StagedScores(dm.Samples)
	if staged == nil {
		return curves, nil
	}
	rounds := staged.Shape()[0]
	scores := mat.NewVecDense(h, nil)
	for round := 0; round < rounds; round++ {
		for p := 0; p < h; p++ {
			value, err := staged.At(round, p)
			if err != nil {
				return curves, err
			}
			scores.SetVec(p, value.(float64))
		}
		zeroOne := mlkit.ZeroOneLoss(dm.Labels, mlkit.Sign(scores, 0))
		if err = curves.Append(zeroOne, mlkit.ExpLoss(dm.Labels, scores)); err != nil {
			return curves, err
		}
	}
	return curves, nil
}
