package main

import (
	"encoding/json"
	"flag"
	"github.com/fakeProgrammer0/ML-lab/golang/logreg/lrl"
	"github.com/fakeProgrammer0/ML-lab/golang/mlkit"
	"log"
	"os"
)

func decodeConfig(srcConfig string, out interface{}) {
	file, err := os.Open(srcConfig)
	mlkit.HandleError(err)
	defer func() { mlkit.HandleError(file.Close()) }()

	decoder := json.NewDecoder(file)
	decoder.DisallowUnknownFields()
	mlkit.HandleError(decoder.Decode(out))
}

type TrainConfig struct {
	FileNameTrain               string     `json:"filename_train"`
	FileNameVal                 string     `json:"filename_val"`
	NFeatures                   int        `json:"n_features"`
	Params                      lrl.Params `json:"params"`
	FileNameModel               string     `json:"filename_model"`
	FileNameLearningCurves      string     `json:"filename_learning_curves"`
	FileNameLearningCurvesGraph string     `json:"filename_learning_curves_graph"`
}

//train fits a logistic regression on svmlight files. A bias column is prepended to the features.
func train(srcConfig string) {
	trainConfig := TrainConfig{NFeatures: 123, Params: lrl.DefaultParams()}
	decodeConfig(srcConfig, &trainConfig)

	log.Print("\ttry to load <", trainConfig.FileNameTrain, ">")
	trainMatrix, err := mlkit.ReadSVMLight(trainConfig.FileNameTrain, trainConfig.NFeatures, true)
	mlkit.HandleError(err)
	trainMatrix.SetDescription("train")
	log.Print("\ttry to load <", trainConfig.FileNameVal, ">")
	valMatrix, err := mlkit.ReadSVMLight(trainConfig.FileNameVal, trainConfig.NFeatures, true)
	mlkit.HandleError(err)
	valMatrix.SetDescription("val")

	model, err := lrl.Train(trainConfig.Params, trainMatrix, valMatrix)
	mlkit.HandleError(err)
	log.Println("val accuracy:", mlkit.Accuracy(valMatrix.Labels, model.Predict(valMatrix.Samples, 0.5)))

	if trainConfig.FileNameModel != "" {
		mlkit.HandleError(model.Save(trainConfig.FileNameModel))
	}
	if trainConfig.FileNameLearningCurves != "" {
		mlkit.HandleError(model.Curves.Dump(trainConfig.FileNameLearningCurves))
	}
	if trainConfig.FileNameLearningCurvesGraph != "" {
		mlkit.HandleError(model.Curves.Plot(trainConfig.FileNameLearningCurvesGraph,
			"Logistic regression with mini-batch SGD", "epoch", "log-likelihood loss"))
	}
}

type PlotConfig struct {
	FileNameLearningCurves      string `json:"filename_learning_curves"`
	FileNameLearningCurvesGraph string `json:"filename_learning_curves_graph"`
	Title                       string `json:"title"`
}

//plot draws learning curves dumped by an earlier run.
func plot(srcConfig string) {
	var plotConfig PlotConfig
	decodeConfig(srcConfig, &plotConfig)

	curves, err := mlkit.LoadLearningCurves(plotConfig.FileNameLearningCurves)
	mlkit.HandleError(err)
	mlkit.HandleError(curves.Plot(plotConfig.FileNameLearningCurvesGraph, plotConfig.Title, "epoch", "loss"))
}

func main() {
	runMode := flag.String("mode", "train", "you can select either 'train' or 'plot' modes")
	config := flag.String("config", "logreg_config.json", "a config file for the run of the program")

	flag.Parse()

	mode, ok := map[string]func(string){
		"train": train,
		"plot":  plot,
	}[*runMode]
	if !ok {
		flag.Usage()
		log.Fatal("unknown mode ", *runMode)
	}
	mode(*config)
}
