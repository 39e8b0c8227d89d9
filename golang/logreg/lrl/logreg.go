package lrl

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math"
	"math/rand"
	"os"

	"github.com/fakeProgrammer0/ML-lab/golang/mlkit"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

//ErrInvalidParams is returned by Train when a hyperparameter is out of range.
var ErrInvalidParams = errors.New("invalid logistic regression parameters")

//Params collect hyperparameters of the mini-batch SGD training.
type Params struct {
	BatchSize    int     `json:"batch_size"`
	MaxEpoch     int     `json:"max_epoch"`
	LearningRate float64 `json:"learning_rate"`
	RegParam     float64 `json:"reg_param"`
	Seed         int64   `json:"seed"`
	Verbose      bool    `json:"verbose"`
}

//DefaultParams returns the parameters used for the a9a data set.
func DefaultParams() Params {
	return Params{BatchSize: 512, MaxEpoch: 200, LearningRate: 0.1, RegParam: 0.1, Seed: 1}
}

func (params Params) validate() error {
	switch {
	case params.BatchSize < 1:
		return fmt.Errorf("%w: batch size %d", ErrInvalidParams, params.BatchSize)
	case params.MaxEpoch < 1:
		return fmt.Errorf("%w: max epoch %d", ErrInvalidParams, params.MaxEpoch)
	case !(params.LearningRate > 0):
		return fmt.Errorf("%w: learning rate %v", ErrInvalidParams, params.LearningRate)
	case !(params.RegParam >= 0):
		return fmt.Errorf("%w: regularization %v", ErrInvalidParams, params.RegParam)
	}
	return nil
}

//Model is a linear binary classifier P(y=+1|x) = sigmoid(w.x).
type Model struct {
	W      *mat.VecDense
	Curves mlkit.LearningCurves
}

//Train fits a logistic regression by mini-batch stochastic gradient descent with L2 regularization.
//Every epoch makes one step over BatchSize distinct random samples:
//w = (1 - lr*reg)*w + lr/B * sum(y*x*sigmoid(-y*w.x)).
//The log-likelihood loss on train and val is recorded after every epoch.
func Train(params Params, train, val mlkit.DMatrix) (*Model, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}
	h, w, err := train.Validate()
	if err != nil {
		return nil, fmt.Errorf("train: %w", err)
	}
	_, valW, err := val.Validate()
	if err != nil {
		return nil, fmt.Errorf("val: %w", err)
	}
	if valW != w {
		return nil, fmt.Errorf("val: %w: %d features, train has %d", mlkit.ErrShapeMismatch, valW, w)
	}

	batchSize := params.BatchSize
	if batchSize > h {
		batchSize = h
	}
	rng := rand.New(rand.NewSource(params.Seed))
	model := &Model{
		W:      mat.NewVecDense(w, nil),
		Curves: mlkit.NewLearningCurves(train.Title("train")+" loss", val.Title("val")+" loss"),
	}
	weights := model.W.RawVector().Data
	gradient := make([]float64, w)

	for epoch := 0; epoch < params.MaxEpoch; epoch++ {
		for i := range gradient {
			gradient[i] = 0
		}
		for _, ind := range rng.Perm(h)[:batchSize] {
			row := train.Samples.RawRowView(ind)
			y := train.Labels.AtVec(ind)
			floats.AddScaled(gradient, y*sigmoid(-y*floats.Dot(weights, row)), row)
		}
		floats.Scale(1-params.LearningRate*params.RegParam, weights)
		floats.AddScaled(weights, params.LearningRate/float64(batchSize), gradient)

		trainLoss, valLoss := model.Loss(train), model.Loss(val)
		if err = model.Curves.Append(trainLoss, valLoss); err != nil {
			return nil, err
		}
		if params.Verbose {
			log.Printf("Epoch %d: train loss %.6f, val loss %.6f\n", epoch+1, trainLoss, valLoss)
		}
	}
	return model, nil
}

func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1 + e)
}

//softplus is log(1 + exp(z)) without overflow.
func softplus(z float64) float64 {
	if z > 0 {
		return z + math.Log1p(math.Exp(-z))
	}
	return math.Log1p(math.Exp(z))
}

//Decision returns w.x for every row of samples.
func (model *Model) Decision(samples *mat.Dense) *mat.VecDense {
	h := mlkit.Height(samples)
	decision := mlkit.NewVector(h)
	if h == 0 {
		return decision
	}
	decision.MulVec(samples, model.W)
	return decision
}

//Loss is the mean log-likelihood loss log(1 + exp(-y*w.x)) over a labelled data set.
func (model *Model) Loss(dm mlkit.DMatrix) float64 {
	decision := model.Decision(dm.Samples)
	losses := make([]float64, decision.Len())
	for i := range losses {
		losses[i] = softplus(-dm.Labels.AtVec(i) * decision.AtVec(i))
	}
	return stat.Mean(losses, nil)
}

//PredictProba returns the probability of the positive class for every row of samples.
func (model *Model) PredictProba(samples *mat.Dense) *mat.VecDense {
	proba := model.Decision(samples)
	for i := 0; i < proba.Len(); i++ {
		proba.SetVec(i, sigmoid(proba.AtVec(i)))
	}
	return proba
}

//Predict returns +1 for samples whose positive class probability is strictly above threshold and -1 otherwise.
func (model *Model) Predict(samples *mat.Dense, threshold float64) *mat.VecDense {
	return mlkit.Sign(model.PredictProba(samples), threshold)
}

type modelDump struct {
	Weights []float64            `json:"weights"`
	Curves  mlkit.LearningCurves `json:"learning_curves"`
}

//Save writes the model into a json file.
func (model *Model) Save(filename string) error {
	bytesResult, err := json.MarshalIndent(modelDump{Weights: model.W.RawVector().Data, Curves: model.Curves}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filename, bytesResult, 0o644)
}

//LoadModel reads a model written by Save.
func LoadModel(filename string) (*Model, error) {
	raw, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	var dump modelDump
	if err = json.Unmarshal(raw, &dump); err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	if len(dump.Weights) == 0 {
		return nil, fmt.Errorf("%s: model has no weights", filename)
	}
	return &Model{W: mat.NewVecDense(len(dump.Weights), dump.Weights), Curves: dump.Curves}, nil
}
