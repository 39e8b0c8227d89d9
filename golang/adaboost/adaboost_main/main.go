package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"github.com/fakeProgrammer0/ML-lab/golang/adaboost/abl"
	"github.com/fakeProgrammer0/ML-lab/golang/features"
	"github.com/fakeProgrammer0/ML-lab/golang/mlkit"
	"gonum.org/v1/gonum/mat"
	"log"
	"math/rand"
	"os"
	"runtime"
	"runtime/pprof"
	"strings"
	"time"
)

var classNames = [2]string{"face", "nonface"}

func decodeConfig(srcConfig string, out interface{}) {
	file, err := os.Open(srcConfig)
	mlkit.HandleError(err)
	defer func() { mlkit.HandleError(file.Close()) }()

	decoder := json.NewDecoder(file)
	decoder.DisallowUnknownFields()
	mlkit.HandleError(decoder.Decode(out))
}

type PreprocessConfig struct {
	FaceDirectory    string `json:"face_directory"`
	NonFaceDirectory string `json:"nonface_directory"`
	ImageSize        int    `json:"image_size"`
	ThreadsNum       int    `json:"threads_num"`
	FileNameSamples  string `json:"filename_samples"`
	FileNameLabels   string `json:"filename_labels"`
}

//preprocess extracts NPD features of face and non-face images into an npy cache.
func preprocess(srcConfig string) {
	var preprocessConfig PreprocessConfig
	decodeConfig(srcConfig, &preprocessConfig)
	if preprocessConfig.ImageSize == 0 {
		preprocessConfig.ImageSize = features.ImageSize
	}

	faces, err := features.LoadDirectory(preprocessConfig.FaceDirectory, 1,
		preprocessConfig.ImageSize, preprocessConfig.ThreadsNum)
	mlkit.HandleError(err)
	nonFaces, err := features.LoadDirectory(preprocessConfig.NonFaceDirectory, -1,
		preprocessConfig.ImageSize, preprocessConfig.ThreadsNum)
	mlkit.HandleError(err)

	dataset, err := mlkit.Stack(faces, nonFaces)
	mlkit.HandleError(err)
	log.Println("dataset shape:", mlkit.Height(dataset.Samples), "x", mlkit.Width(dataset.Samples))
	mlkit.HandleError(mlkit.WriteDMatrix(dataset, preprocessConfig.FileNameSamples, preprocessConfig.FileNameLabels))
}

type WeakConfig struct {
	Kind           string `json:"kind"`
	MaxDepth       int    `json:"max_depth"`
	MinSamplesLeaf int    `json:"min_samples_leaf"`
	ThreadsNum     int    `json:"threads_num"`
}

func (weakConfig WeakConfig) options() []abl.Option {
	opts := []abl.Option{abl.WithThreadsNum(weakConfig.ThreadsNum)}
	if weakConfig.MaxDepth != 0 {
		opts = append(opts, abl.WithMaxDepth(weakConfig.MaxDepth))
	}
	if weakConfig.MinSamplesLeaf != 0 {
		opts = append(opts, abl.WithMinSamplesLeaf(weakConfig.MinSamplesLeaf))
	}
	return opts
}

func (weakConfig WeakConfig) prototype() abl.WeakClassifier {
	switch weakConfig.Kind {
	case "stump":
		return abl.NewDecisionStump(weakConfig.options()...)
	case "tree", "":
		return abl.NewDecisionTree(weakConfig.options()...)
	}
	log.Panicf("unknown weak classifier %q, known kinds: %s", weakConfig.Kind, strings.Join(abl.RegisteredKinds(), ", "))
	return nil
}

type TestConfig struct {
	Description    string `json:"description"`
	FileNameSample string `json:"filename_samples"`
	FileNameLabels string `json:"filename_labels"`
}

type DatasetConfig struct {
	FileNameSamples string  `json:"filename_samples"`
	FileNameLabels  string  `json:"filename_labels"`
	TestRatio       float64 `json:"test_ratio"`
	TrainLimit      int     `json:"train_limit"`
	Seed            int64   `json:"seed"`
}

//load reads the cached data set and divides it into train and validation parts.
func (datasetConfig DatasetConfig) load() (train, val mlkit.DMatrix) {
	dataset, err := mlkit.ReadDMatrix(datasetConfig.FileNameSamples, datasetConfig.FileNameLabels)
	mlkit.HandleError(err)

	train, val, err = mlkit.TrainTestSplit(dataset, datasetConfig.TestRatio, rand.New(rand.NewSource(datasetConfig.Seed)))
	mlkit.HandleError(err)
	train = train.Head(datasetConfig.TrainLimit)
	train.SetDescription("train")
	val.SetDescription("val")
	log.Println("train size:", mlkit.Height(train.Samples), "val size:", mlkit.Height(val.Samples))
	return train, val
}

type TrainConfig struct {
	Dataset                     DatasetConfig `json:"dataset"`
	Tests                       []TestConfig  `json:"tests"`
	Weak                        WeakConfig    `json:"weak_classifier"`
	MaxRounds                   int           `json:"max_rounds"`
	DiscardPerfectRound         bool          `json:"discard_perfect_round"`
	FileNameModel               string        `json:"filename_model"`
	FileNameLearningCurves      string        `json:"filename_learning_curves"`
	FileNameLearningCurvesGraph string        `json:"filename_learning_curves_graph"`
}

func train(srcConfig string) {
	var trainConfig TrainConfig
	decodeConfig(srcConfig, &trainConfig)

	trainMatrix, valMatrix := trainConfig.Dataset.load()
	monitors := []mlkit.DMatrix{trainMatrix}
	if mlkit.Height(valMatrix.Samples) > 0 {
		monitors = append(monitors, valMatrix)
	}
	for _, testConfig := range trainConfig.Tests {
		dm, err := mlkit.ReadDMatrix(testConfig.FileNameSample, testConfig.FileNameLabels)
		mlkit.HandleError(err)
		dm.SetDescription(testConfig.Description)
		monitors = append(monitors, dm)
	}

	clf := abl.NewAdaBoost(abl.AdaBoostParams{
		Prototype:           trainConfig.Weak.prototype(),
		MaxRounds:           trainConfig.MaxRounds,
		Monitors:            monitors,
		DiscardPerfectRound: trainConfig.DiscardPerfectRound,
		Verbose:             true,
	})
	mlkit.HandleError(clf.Fit(trainMatrix.Samples, trainMatrix.Labels))
	log.Println("ensemble size:", clf.Len())

	mlkit.HandleError(clf.Save(trainConfig.FileNameModel))
	dumpCurves(clf.LearningCurves(), trainConfig.FileNameLearningCurves, trainConfig.FileNameLearningCurvesGraph)
}

func dumpCurves(curves mlkit.LearningCurves, fileNameJSON, fileNameGraph string) {
	if fileNameJSON != "" {
		mlkit.HandleError(curves.Dump(fileNameJSON))
	}
	if fileNameGraph != "" && curves.Len() > 0 {
		mlkit.HandleError(curves.Plot(fileNameGraph, "AdaBoost learning curves", "rounds", "loss"))
	}
}

type CompareConfig struct {
	Dataset        DatasetConfig `json:"dataset"`
	Weak           WeakConfig    `json:"weak_classifier"`
	MaxRounds      int           `json:"max_rounds"`
	FileNameReport string        `json:"filename_report"`
}

//classifiedResult renders losses and classification reports of one classifier on train and val.
func classifiedResult(title string, trainMatrix, valMatrix mlkit.DMatrix, trainScores, valScores *mat.VecDense) string {
	var sb strings.Builder
	sb.WriteString(title + "\n")
	for _, part := range []struct {
		dm     mlkit.DMatrix
		scores *mat.VecDense
	}{{trainMatrix, trainScores}, {valMatrix, valScores}} {
		name := part.dm.Title("data")
		prediction := mlkit.Sign(part.scores, 0)
		sb.WriteString(fmt.Sprintf("%s exp loss: %.6f\n", name, mlkit.ExpLoss(part.dm.Labels, part.scores)))
		sb.WriteString(fmt.Sprintf("%s 0-1 loss: %.6f\n", name, mlkit.ZeroOneLoss(part.dm.Labels, prediction)))
		sb.WriteString(fmt.Sprintf("%s classification report:\n", name))
		sb.WriteString(mlkit.ClassificationReport(part.dm.Labels, prediction, classNames))
		sb.WriteString("\n")
	}
	return sb.String()
}

//compare fits a single weak classifier and an ensemble of them on the same split
//and appends a timestamped report.
func compare(srcConfig string) {
	var compareConfig CompareConfig
	decodeConfig(srcConfig, &compareConfig)

	trainMatrix, valMatrix := compareConfig.Dataset.load()

	single := compareConfig.Weak.prototype()
	mlkit.HandleError(single.Fit(trainMatrix.Samples, trainMatrix.Labels, nil))
	singleReport := classifiedResult("single weak classifier", trainMatrix, valMatrix,
		single.Predict(trainMatrix.Samples), single.Predict(valMatrix.Samples))

	clf := abl.NewAdaBoost(abl.AdaBoostParams{
		Prototype: compareConfig.Weak.prototype(),
		MaxRounds: compareConfig.MaxRounds,
		Verbose:   true,
	})
	mlkit.HandleError(clf.Fit(trainMatrix.Samples, trainMatrix.Labels))
	ensembleReport := classifiedResult(fmt.Sprintf("AdaBoost of %d weak classifiers", clf.Len()), trainMatrix, valMatrix,
		clf.PredictScores(trainMatrix.Samples), clf.PredictScores(valMatrix.Samples))

	report := fmt.Sprintf("%s\n%s\n%s\n", time.Now().Format("2006-01-02 15:04:05"), singleReport, ensembleReport)
	log.Print(report)

	dst, err := os.OpenFile(compareConfig.FileNameReport, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	mlkit.HandleError(err)
	defer func() { mlkit.HandleError(dst.Close()) }()
	_, err = dst.WriteString(report)
	mlkit.HandleError(err)
}

type PredictConfig struct {
	SamplesFileName    string  `json:"filename_samples"`
	ModelFileName      string  `json:"filename_model"`
	ScoresFileName     string  `json:"filename_scores"`
	PredictionFileName string  `json:"filename_prediction"`
	Threshold          float64 `json:"threshold"`
}

func predict(srcConfig string) {
	var predictConfig PredictConfig
	decodeConfig(srcConfig, &predictConfig)

	samples, err := mlkit.ReadNpy(predictConfig.SamplesFileName)
	mlkit.HandleError(err)
	clf, err := abl.LoadModel(predictConfig.ModelFileName)
	mlkit.HandleError(err)

	scores := clf.PredictScores(samples)
	if predictConfig.ScoresFileName != "" {
		mlkit.HandleError(mlkit.WriteNpy(predictConfig.ScoresFileName, scores))
	}
	if predictConfig.PredictionFileName != "" {
		mlkit.HandleError(mlkit.WriteNpy(predictConfig.PredictionFileName, mlkit.Sign(scores, predictConfig.Threshold)))
	}
}

type LcurveConfig struct {
	Description            string `json:"description"`
	SamplesFileName        string `json:"filename_samples"`
	LabelsFileName         string `json:"filename_labels"`
	ModelFileName          string `json:"filename_model"`
	StagedScoresFileName   string `json:"filename_staged_scores"`
	LearningCurveFileName  string `json:"filename_learning_curve"`
	LearningCurveGraphName string `json:"filename_learning_curve_graph"`
}

//lcurve replays a saved model round by round on a labelled data set.
func lcurve(srcConfig string) {
	var lcurveConfig LcurveConfig
	decodeConfig(srcConfig, &lcurveConfig)

	dm, err := mlkit.ReadDMatrix(lcurveConfig.SamplesFileName, lcurveConfig.LabelsFileName)
	mlkit.HandleError(err)
	if lcurveConfig.Description != "" {
		dm.SetDescription(lcurveConfig.Description)
	}
	clf, err := abl.LoadModel(lcurveConfig.ModelFileName)
	mlkit.HandleError(err)

	if lcurveConfig.StagedScoresFileName != "" {
		staged := clf.StagedScores(dm.Samples)
		if staged == nil {
			log.Panic("the model has no weak classifiers")
		}
		shape := staged.Shape()
		mlkit.HandleError(mlkit.WriteNpy(lcurveConfig.StagedScoresFileName,
			mat.NewDense(shape[0], shape[1], staged.Data().([]float64))))
	}

	curves, err := clf.StagedLearningCurves(dm)
	mlkit.HandleError(err)
	dumpCurves(curves, lcurveConfig.LearningCurveFileName, lcurveConfig.LearningCurveGraphName)
}

type GraphConfig struct {
	ModelFileName     string `json:"filename_model"`
	FigureType        string `json:"figure_type"`
	PicturesDirectory string `json:"pictures_directory"`
	DumpPrefix        string `json:"dump_prefix"`
}

func graph(srcConfig string) {
	var graphConfig GraphConfig
	decodeConfig(srcConfig, &graphConfig)

	clf, err := abl.LoadModel(graphConfig.ModelFileName)
	mlkit.HandleError(err)
	mlkit.HandleError(clf.RenderTrees(graphConfig.DumpPrefix, graphConfig.FigureType, graphConfig.PicturesDirectory))
}

type ModelLearningCurvesConfig struct {
	PathToModel                 string `json:"path_to_model"`
	FilenameLearningCurves      string `json:"filename_learning_curves"`
	FilenameLearningCurvesGraph string `json:"filename_learning_curves_graph"`
}

func getLearningCurves(srcConfig string) {
	var modelLearningCurves ModelLearningCurvesConfig
	decodeConfig(srcConfig, &modelLearningCurves)

	clf, err := abl.LoadModel(modelLearningCurves.PathToModel)
	mlkit.HandleError(err)
	dumpCurves(clf.LearningCurves(), modelLearningCurves.FilenameLearningCurves, modelLearningCurves.FilenameLearningCurvesGraph)
}

func main() {
	runMode := flag.String("mode", "train",
		"you can select 'preprocess', 'train', 'compare', 'predict', 'lcurve', 'graph' or 'get_learning_curves' modes")
	config := flag.String("config", "adaboost_config.json", "a config file for the run of the program")
	memprofile := flag.String("memprofile", "", "write memory profile to `file`")

	flag.Parse()

	mode, ok := map[string]func(string){
		"preprocess":          preprocess,
		"train":               train,
		"compare":             compare,
		"predict":             predict,
		"lcurve":              lcurve,
		"graph":               graph,
		"get_learning_curves": getLearningCurves,
	}[*runMode]
	if !ok {
		flag.Usage()
		log.Fatal("unknown mode ", *runMode)
	}
	mode(*config)

	if *memprofile != "" {
		f, err := os.Create(*memprofile)
		mlkit.HandleError(err)
		defer func() { mlkit.HandleError(f.Close()) }()
		runtime.GC()
		if err := pprof.WriteHeapProfile(f); err != nil {
			log.Fatal("could not write memory profile: ", err)
		}
	}
}
