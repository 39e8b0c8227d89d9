package abl

import (
	"errors"
	"fmt"
	"log"
	"math"
	"path"

	"github.com/fakeProgrammer0/ML-lab/golang/mlkit"
	"github.com/goccy/go-graphviz"
	"github.com/goccy/go-graphviz/cgraph"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

var (
	//ErrNoPrototype is returned by Fit when no weak classifier prototype was given.
	ErrNoPrototype = errors.New("weak classifier prototype is not set")
	//ErrInvalidRounds is returned by Fit when the round limit is not positive.
	ErrInvalidRounds = errors.New("max rounds must be positive")
	//ErrInvalidPrediction is returned when a weak classifier predicts something other than -1 or +1.
	ErrInvalidPrediction = errors.New("weak classifier prediction must be -1 or +1")
	//ErrFrozen is returned by Fit on an ensemble that has already been fitted or loaded.
	ErrFrozen = errors.New("ensemble is frozen")
)

//Entry is one member of the ensemble: a fitted weak classifier and its confidence coefficient.
type Entry struct {
	Classifier WeakClassifier
	Alpha      float64
}

//AdaBoostParams collect arguments required to construct an ensemble trainer.
type AdaBoostParams struct {
	Prototype WeakClassifier
	MaxRounds int
	//Monitors are data sets scored after every accepted round to build learning curves.
	Monitors []mlkit.DMatrix
	//DiscardPerfectRound drops a weak classifier with zero weighted error instead of keeping it
	//with the confidence of MinErrorRate. Boosting stops after such a round either way.
	DiscardPerfectRound bool
	//Verbose enables one log line per round.
	Verbose bool
}

//MinErrorRate bounds the error rate used to weigh a perfect weak classifier, so its confidence stays finite.
const MinErrorRate = 1e-10

//AdaBoost is a binary classifier combining weak classifiers by confidence weighted voting.
//Entries only grow during Fit; once Fit returns the ensemble is read-only.
type AdaBoost struct {
	params         AdaBoostParams
	entries        []Entry
	nFeatures      int
	frozen         bool
	learningCurves mlkit.LearningCurves
}

//NewAdaBoost creates an empty ensemble trainer.
func NewAdaBoost(params AdaBoostParams) *AdaBoost {
	return &AdaBoost{params: params, entries: make([]Entry, 0)}
}

//fittedCopier is implemented by weak classifiers that can copy their fitted state.
type fittedCopier interface {
	fittedCopy() WeakClassifier
}

//Entries returns a copy of the ensemble members in the order they were added.
//Built-in weak classifiers are deep copied; other classifiers are shared and must not be modified.
func (ab *AdaBoost) Entries() []Entry {
	entries := make([]Entry, len(ab.entries))
	for ind, entry := range ab.entries {
		if copier, ok := entry.Classifier.(fittedCopier); ok {
			entry.Classifier = copier.fittedCopy()
		}
		entries[ind] = entry
	}
	return entries
}

//Len returns the number of weak classifiers in the ensemble.
func (ab *AdaBoost) Len() int {
	return len(ab.entries)
}

//MaxRounds returns the configured round limit.
func (ab *AdaBoost) MaxRounds() int {
	return ab.params.MaxRounds
}

//NFeatures returns the number of features seen during fitting, 0 before fitting.
func (ab *AdaBoost) NFeatures() int {
	return ab.nFeatures
}

//LearningCurves returns the monitor losses recorded during Fit, one row per round.
func (ab *AdaBoost) LearningCurves() mlkit.LearningCurves {
	return ab.learningCurves
}

//monitorState accumulates the ensemble score of one monitor data set.
type monitorState struct {
	matrix mlkit.DMatrix
	scores *mat.VecDense
}

func (ab *AdaBoost) validateParams(w int) error {
	if ab.params.Prototype == nil {
		return ErrNoPrototype
	}
	if ab.params.MaxRounds < 1 {
		return fmt.Errorf("%w, got %d", ErrInvalidRounds, ab.params.MaxRounds)
	}
	for ind, monitor := range ab.params.Monitors {
		_, monitorW, err := monitor.Validate()
		if err != nil {
			return fmt.Errorf("monitor %d: %w", ind, err)
		}
		if monitorW != w {
			return fmt.Errorf("monitor %d: %w: %d features, training set has %d", ind, mlkit.ErrShapeMismatch, monitorW, w)
		}
	}
	return nil
}

//Fit builds a boosted classifier from the training set. Labels must be -1 or +1.
//Every round a fresh copy of the prototype is fitted on the re-weighted samples.
//Fitting stops early when a round is no better than chance (error >= 1/2), such a round is
//not added. A round that fits the weighted samples perfectly (error == 0) also stops fitting;
//it is kept with the confidence of MinErrorRate unless DiscardPerfectRound is set.
//DiscardPerfectRound: true gives the classic behaviour of dropping the perfect round.
//A weak classifier failure aborts Fit and keeps the entries added before it.
func (ab *AdaBoost) Fit(samples *mat.Dense, labels *mat.VecDense) error {
	if ab.frozen {
		return ErrFrozen
	}
	h, w, err := mlkit.DMatrix{Samples: samples, Labels: labels}.Validate()
	if err != nil {
		return err
	}
	if err = ab.validateParams(w); err != nil {
		return err
	}

	defer func() { ab.frozen = true }()
	ab.entries = make([]Entry, 0, ab.params.MaxRounds)
	ab.nFeatures = w

	monitors := make([]monitorState, len(ab.params.Monitors))
	titles := make([]string, 0, 2*len(monitors))
	for ind, monitor := range ab.params.Monitors {
		monitors[ind] = monitorState{matrix: monitor, scores: mat.NewVecDense(mlkit.Height(monitor.Samples), nil)}
		title := monitor.Title(fmt.Sprintf("monitor_%d", ind))
		titles = append(titles, title+" 0-1 loss", title+" exp loss")
	}
	ab.learningCurves = mlkit.NewLearningCurves(titles...)

	weights := make([]float64, h)
	for i := range weights {
		weights[i] = 1.0 / float64(h)
	}

	for round := 0; round < ab.params.MaxRounds; round++ {
		classifier := ab.params.Prototype.Clone()
		if err = classifier.Fit(samples, labels, mat.NewVecDense(h, append([]float64(nil), weights...))); err != nil {
			return fmt.Errorf("round %d: %w", round+1, err)
		}

		prediction := classifier.Predict(samples)
		if err = checkPrediction(prediction, h); err != nil {
			return fmt.Errorf("round %d: %w", round+1, err)
		}

		errRate := weightedErrorRate(weights, labels, prediction)
		perfect := errRate == 0
		if errRate >= 0.5 || (perfect && ab.params.DiscardPerfectRound) {
			if ab.params.Verbose {
				log.Printf("Round %d: weighted error %.6f, stop boosting\n", round+1, errRate)
			}
			break
		}

		alpha := confidence(errRate)
		ab.entries = append(ab.entries, Entry{Classifier: classifier, Alpha: alpha})
		if ab.params.Verbose {
			log.Printf("Round %d: weighted error %.6f, alpha %.6f\n", round+1, errRate, alpha)
		}
		if err = ab.recordLearningCurves(monitors, classifier, alpha); err != nil {
			return err
		}
		if perfect {
			break
		}
		updateWeights(weights, labels, prediction, alpha)
	}
	return nil
}

//recordLearningCurves adds the last round to the monitor scores and appends their losses.
func (ab *AdaBoost) recordLearningCurves(monitors []monitorState, classifier WeakClassifier, alpha float64) error {
	if len(monitors) == 0 {
		return nil
	}
	row := make([]float64, 0, 2*len(monitors))
	for _, monitor := range monitors {
		monitor.scores.AddScaledVec(monitor.scores, alpha, classifier.Predict(monitor.matrix.Samples))
		zeroOne := mlkit.ZeroOneLoss(monitor.matrix.Labels, mlkit.Sign(monitor.scores, 0))
		exp := mlkit.ExpLoss(monitor.matrix.Labels, monitor.scores)
		if ab.params.Verbose {
			log.Print("0-1 loss for ", monitor.matrix.Title("monitor"), " = ", zeroOne, ", exp loss = ", exp)
		}
		row = append(row, zeroOne, exp)
	}
	return ab.learningCurves.Append(row...)
}

func checkPrediction(prediction *mat.VecDense, h int) error {
	if prediction == nil || prediction.Len() != h {
		n := 0
		if prediction != nil {
			n = prediction.Len()
		}
		return fmt.Errorf("%w: %d predictions for %d samples", mlkit.ErrShapeMismatch, n, h)
	}
	for i := 0; i < h; i++ {
		if v := prediction.AtVec(i); !mlkit.IsBinaryLabel(v) {
			return fmt.Errorf("%w: prediction[%d] = %v", ErrInvalidPrediction, i, v)
		}
	}
	return nil
}

//confidence is the vote of a weak classifier with the given weighted error rate.
func confidence(errRate float64) float64 {
	errRate = math.Max(errRate, MinErrorRate)
	return math.Log((1-errRate)/errRate) / 2
}

//weightedErrorRate is the share of the total weight that falls on misclassified samples.
func weightedErrorRate(weights []float64, labels, prediction mat.Vector) float64 {
	wrong := 0.0
	for i, weight := range weights {
		if prediction.AtVec(i) != labels.AtVec(i) {
			wrong += weight
		}
	}
	return wrong / floats.Sum(weights)
}

//updateWeights multiplies each weight by exp(-alpha*y*h(x)) and renormalizes the weights to sum to 1.
func updateWeights(weights []float64, labels, prediction mat.Vector, alpha float64) {
	for i := range weights {
		weights[i] *= math.Exp(-alpha * labels.AtVec(i) * prediction.AtVec(i))
	}
	floats.Scale(1/floats.Sum(weights), weights)
}

//checkFeatures panics when samples have a different number of columns than the training set.
func (ab *AdaBoost) checkFeatures(samples *mat.Dense) {
	if ab.nFeatures == 0 {
		return
	}
	if w := mlkit.Width(samples); w != ab.nFeatures && mlkit.Height(samples) > 0 {
		panic(fmt.Errorf("abl: %w: %d features, model expects %d", mlkit.ErrShapeMismatch, w, ab.nFeatures))
	}
}

//PredictScores returns the confidence weighted sum of weak predictions for every row of samples.
//An empty ensemble scores every sample with 0.
func (ab *AdaBoost) PredictScores(samples *mat.Dense) *mat.VecDense {
	ab.checkFeatures(samples)
	scores := mlkit.NewVector(mlkit.Height(samples))
	if scores.Len() == 0 {
		return scores
	}
	for _, entry := range ab.entries {
		scores.AddScaledVec(scores, entry.Alpha, entry.Classifier.Predict(samples))
	}
	return scores
}

//Predict returns +1 for samples scoring strictly above threshold and -1 otherwise.
func (ab *AdaBoost) Predict(samples *mat.Dense, threshold float64) *mat.VecDense {
	return mlkit.Sign(ab.PredictScores(samples), threshold)
}

//GraphDrawer is implemented by weak classifiers that can be rendered with graphviz.
type GraphDrawer interface {
	DrawGraph() (*graphviz.Graphviz, *cgraph.Graph, error)
}

//RenderTrees renders every drawable weak classifier into picturesDirectory.
//Files are named <dumpPrefix>_<index>.<figureType>, figureType is png, svg or jpg.
func (ab *AdaBoost) RenderTrees(dumpPrefix, figureType, picturesDirectory string) error {
	graphvizType, ok := map[string]graphviz.Format{
		"png": graphviz.PNG,
		"svg": graphviz.SVG,
		"jpg": graphviz.JPG,
	}[figureType]
	if !ok {
		return fmt.Errorf("unsupported figure type %q", figureType)
	}

	for graphInd, entry := range ab.entries {
		drawer, ok := entry.Classifier.(GraphDrawer)
		if !ok {
			continue
		}
		filename := fmt.Sprintf("%s_%05d.%s", dumpPrefix, graphInd, figureType)
		if err := renderOne(drawer, graphvizType, path.Join(picturesDirectory, filename)); err != nil {
			return fmt.Errorf("%s: %w", filename, err)
		}
	}
	return nil
}

func renderOne(drawer GraphDrawer, format graphviz.Format, filename string) error {
	graphViz, graph, err := drawer.DrawGraph()
	if err != nil {
		return err
	}
	defer closeGraph(graphViz, graph)
	return graphViz.RenderFilename(graph, format, filename)
}

//closeGraph releases a graph and its graphviz context, either may be nil.
func closeGraph(graphViz *graphviz.Graphviz, graph *cgraph.Graph) {
	if graph != nil {
		_ = graph.Close()
	}
	if graphViz != nil {
		_ = graphViz.Close()
	}
}
