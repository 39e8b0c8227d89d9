package abl

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fakeProgrammer0/ML-lab/golang/mlkit"
)

var (
	//ErrNotSerializable is returned by Encode when a weak classifier does not implement KindedClassifier.
	ErrNotSerializable = errors.New("weak classifier is not serializable")
	//ErrCorruptModel is returned by Decode when a saved ensemble is inconsistent.
	ErrCorruptModel = errors.New("corrupt model")
)

//modelValidator is implemented by weak classifiers that can check a decoded state
//against the number of features of the ensemble.
type modelValidator interface {
	validate(nFeatures int) error
}

type entryDump struct {
	Kind  string          `json:"kind"`
	Alpha float64         `json:"alpha"`
	Model json.RawMessage `json:"model"`
}

type modelDump struct {
	MaxRounds      int                  `json:"max_rounds"`
	NFeatures      int                  `json:"n_features"`
	Entries        []entryDump          `json:"entries"`
	LearningCurves mlkit.LearningCurves `json:"learning_curves"`
}

//Encode writes the ensemble as JSON. Every weak classifier must be a KindedClassifier.
func (ab *AdaBoost) Encode(w io.Writer) error {
	dump := modelDump{
		MaxRounds:      ab.params.MaxRounds,
		NFeatures:      ab.nFeatures,
		Entries:        make([]entryDump, 0, len(ab.entries)),
		LearningCurves: ab.learningCurves,
	}
	for ind, entry := range ab.entries {
		kinded, ok := entry.Classifier.(KindedClassifier)
		if !ok {
			return fmt.Errorf("entry %d: %w: %T", ind, ErrNotSerializable, entry.Classifier)
		}
		model, err := json.Marshal(kinded)
		if err != nil {
			return fmt.Errorf("entry %d: %w", ind, err)
		}
		dump.Entries = append(dump.Entries, entryDump{Kind: kinded.Kind(), Alpha: entry.Alpha, Model: model})
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(dump)
}

//Decode restores an ensemble written by Encode and checks its consistency. The restored ensemble is frozen.
func Decode(r io.Reader) (*AdaBoost, error) {
	var dump modelDump
	if err := json.NewDecoder(r).Decode(&dump); err != nil {
		return nil, err
	}

	if dump.MaxRounds < 1 {
		return nil, fmt.Errorf("%w: max rounds %d", ErrCorruptModel, dump.MaxRounds)
	}
	if len(dump.Entries) > dump.MaxRounds {
		return nil, fmt.Errorf("%w: %d entries exceed max rounds %d", ErrCorruptModel, len(dump.Entries), dump.MaxRounds)
	}
	if dump.NFeatures < 0 || (dump.NFeatures == 0 && len(dump.Entries) > 0) {
		return nil, fmt.Errorf("%w: %d features", ErrCorruptModel, dump.NFeatures)
	}

	ab := NewAdaBoost(AdaBoostParams{MaxRounds: dump.MaxRounds})
	ab.nFeatures = dump.NFeatures
	ab.learningCurves = dump.LearningCurves
	for ind, entry := range dump.Entries {
		classifier, err := newWeakClassifier(entry.Kind)
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", ind, err)
		}
		if err = json.Unmarshal(entry.Model, classifier); err != nil {
			return nil, fmt.Errorf("entry %d: %w", ind, err)
		}
		if validator, ok := classifier.(modelValidator); ok {
			if err = validator.validate(dump.NFeatures); err != nil {
				return nil, fmt.Errorf("entry %d: %w: %v", ind, ErrCorruptModel, err)
			}
		}
		ab.entries = append(ab.entries, Entry{Classifier: classifier, Alpha: entry.Alpha})
	}
	ab.frozen = true
	return ab, nil
}

//Save writes the ensemble into a file.
func (ab *AdaBoost) Save(filename string) (err error) {
	dest, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := dest.Close(); err == nil {
			err = closeErr
		}
	}()
	return ab.Encode(dest)
}

//LoadModel reads an ensemble saved by Save.
func LoadModel(filename string) (*AdaBoost, error) {
	source, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer source.Close()

	ab, err := Decode(source)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	return ab, nil
}
