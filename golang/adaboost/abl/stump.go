package abl

import (
	"fmt"

	"github.com/fakeProgrammer0/ML-lab/golang/mlkit"
	"github.com/goccy/go-graphviz"
	"github.com/goccy/go-graphviz/cgraph"
	"gonum.org/v1/gonum/mat"
)

const stumpKind = "stump"

//LearnerParams collects hyperparameters shared by the tree based weak classifiers.
type LearnerParams struct {
	MaxDepth       int
	MinSamplesLeaf int
	ThreadsNum     int
}

//Option configures a weak classifier at construction time.
type Option func(*LearnerParams)

//WithMaxDepth limits the depth of a tree. The root split has depth 1.
func WithMaxDepth(depth int) Option { return func(p *LearnerParams) { p.MaxDepth = depth } }

//WithMinSamplesLeaf sets the minimal number of samples in each leaf.
func WithMinSamplesLeaf(n int) Option { return func(p *LearnerParams) { p.MinSamplesLeaf = n } }

//WithThreadsNum sets the number of goroutines scanning feature columns.
func WithThreadsNum(n int) Option { return func(p *LearnerParams) { p.ThreadsNum = n } }

func newLearnerParams(opts []Option) LearnerParams {
	params := LearnerParams{MaxDepth: 2, MinSamplesLeaf: 1, ThreadsNum: 1}
	for _, opt := range opts {
		opt(&params)
	}
	return params
}

//DecisionStump is a one level decision tree minimizing the weighted misclassification.
//Samples with a value of FeatureNumber below Threshold get LeftLabel, others get RightLabel.
//FeatureNumber is -1 when no feature separates the samples; LeftLabel is predicted then.
type DecisionStump struct {
	LearnerParams
	Fitted        bool
	FeatureNumber int
	Threshold     float64
	LeftLabel     float64
	RightLabel    float64
}

//NewDecisionStump creates an unfitted stump. Only WithThreadsNum and WithMinSamplesLeaf affect it.
func NewDecisionStump(opts ...Option) *DecisionStump {
	params := newLearnerParams(opts)
	params.MaxDepth = 1
	return &DecisionStump{LearnerParams: params, FeatureNumber: -1, LeftLabel: 1, RightLabel: 1}
}

//Kind names the stump in saved models.
func (stump *DecisionStump) Kind() string { return stumpKind }

//Clone returns an unfitted stump with the same hyperparameters.
func (stump *DecisionStump) Clone() WeakClassifier {
	return &DecisionStump{LearnerParams: stump.LearnerParams, FeatureNumber: -1, LeftLabel: 1, RightLabel: 1}
}

//Fit selects the feature and the threshold with the lowest weighted error.
//Nil weights mean uniform weights.
func (stump *DecisionStump) Fit(samples *mat.Dense, labels, weights *mat.VecDense) error {
	h, _, err := validatedDimensions(samples, labels, weights)
	if err != nil {
		return fmt.Errorf("decision stump: %w", err)
	}
	view := newTrainingView(samples, labels, weightsOrUniform(weights, h))
	indices := make([]int, h)
	for i := range indices {
		indices[i] = i
	}

	minLeaf := stump.MinSamplesLeaf
	if minLeaf < 1 {
		minLeaf = 1
	}
	bestSplit := TheBestSplit(view, indices, errorCriterion, minLeaf, stump.ThreadsNum)
	if bestSplit == nil {
		label := majorityLabel(view.labelWeights(indices))
		stump.FeatureNumber, stump.Threshold = -1, 0
		stump.LeftLabel, stump.RightLabel = label, label
	} else {
		stump.FeatureNumber, stump.Threshold = bestSplit.featureIndex, bestSplit.threshold
		stump.LeftLabel, stump.RightLabel = bestSplit.leftLabel, bestSplit.rightLabel
	}
	stump.Fitted = true
	return nil
}

//Predict labels every row of samples. An unfitted stump predicts +1.
func (stump *DecisionStump) Predict(samples *mat.Dense) *mat.VecDense {
	h := mlkit.Height(samples)
	prediction := mlkit.NewVector(h)
	for p := 0; p < h; p++ {
		if stump.FeatureNumber >= 0 && samples.At(p, stump.FeatureNumber) >= stump.Threshold {
			prediction.SetVec(p, stump.RightLabel)
		} else {
			prediction.SetVec(p, stump.LeftLabel)
		}
	}
	return prediction
}

//DrawGraph builds a graphviz representation of the stump.
func (stump *DecisionStump) DrawGraph() (*graphviz.Graphviz, *cgraph.Graph, error) {
	graphViz := graphviz.New()
	graph, err := graphViz.Graph()
	if err != nil {
		closeGraph(graphViz, nil)
		return nil, nil, err
	}
	if err = stump.drawNodes(graph); err != nil {
		closeGraph(graphViz, graph)
		return nil, nil, err
	}
	return graphViz, graph, nil
}

func (stump *DecisionStump) drawNodes(graph *cgraph.Graph) error {
	root, err := graph.CreateNode("0")
	if err != nil {
		return err
	}
	if stump.FeatureNumber < 0 {
		root.Set("label", fmt.Sprintf("%+.0f", stump.LeftLabel))
		root.Set("shape", "box")
		return nil
	}

	root.Set("label", fmt.Sprintf("f_%d < %6.5f", stump.FeatureNumber, stump.Threshold))
	for ind, label := range []float64{stump.LeftLabel, stump.RightLabel} {
		leaf, err := graph.CreateNode(fmt.Sprint(ind + 1))
		if err != nil {
			return err
		}
		leaf.Set("label", fmt.Sprintf("%+.0f", label))
		leaf.Set("shape", "box")
		if _, err = graph.CreateEdge("", root, leaf); err != nil {
			return err
		}
	}
	return nil
}

//fittedCopy returns an independent copy of the fitted stump.
func (stump *DecisionStump) fittedCopy() WeakClassifier {
	copied := *stump
	return &copied
}

func (stump *DecisionStump) validate(nFeatures int) error {
	if stump.FeatureNumber < -1 || stump.FeatureNumber >= nFeatures {
		return fmt.Errorf("stump feature %d is outside of [-1, %d)", stump.FeatureNumber, nFeatures)
	}
	if !mlkit.IsBinaryLabel(stump.LeftLabel) || !mlkit.IsBinaryLabel(stump.RightLabel) {
		return fmt.Errorf("stump labels %v, %v", stump.LeftLabel, stump.RightLabel)
	}
	return nil
}
