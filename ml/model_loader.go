package ml

import (
	"github.com/pkg/errors"
)

const (
	PreprocessorStandard = "standard"
	PreprocessorMinMax   = "minmax"
	PreprocessorIdentity = "identity"

	ClassifierDecisionTree = "decision_tree"
	ClassifierRandomForest = "random_forest"
	ClassifierLinear       = "linear"
)

// ArtifactConfig names the fitted artifacts to load at startup.
type ArtifactConfig struct {
	PreprocessorKind string `yaml:"preprocessor_kind"`
	PreprocessorPath string `yaml:"preprocessor_path"`
	ClassifierKind   string `yaml:"classifier_kind"`
	ClassifierPath   string `yaml:"classifier_path"`
}

// LoadPreprocessor loads the preprocessor of the given kind from path.
func LoadPreprocessor(kind, path string) (Preprocessor, error) {
	var err error
	switch kind {
	case PreprocessorStandard:
		scaler := &StandardScaler{}
		if err = scaler.Load(path); err == nil {
			return scaler, nil
		}
	case PreprocessorMinMax:
		scaler := &MinMaxScaler{}
		if err = scaler.Load(path); err == nil {
			return scaler, nil
		}
	case PreprocessorIdentity:
		return IdentityScaler{}, nil
	default:
		err = errors.Errorf("unsupported preprocessor kind %q", kind)
	}
	return nil, &ArtifactLoadError{Artifact: "preprocessor", Path: path, Err: err}
}

// LoadClassifier loads the classifier of the given kind from path.
func LoadClassifier(kind, path string) (Classifier, error) {
	var err error
	switch kind {
	case ClassifierDecisionTree:
		model := &DecisionTree{}
		if err = model.Load(path); err == nil {
			return model, nil
		}
	case ClassifierRandomForest:
		model := &RandomForest{}
		if err = model.Load(path); err == nil {
			return model, nil
		}
	case ClassifierLinear:
		model := &LinearModel{}
		if err = model.Load(path); err == nil {
			return model, nil
		}
	default:
		err = errors.Errorf("unsupported classifier kind %q", kind)
	}
	return nil, &ArtifactLoadError{Artifact: "classifier", Path: path, Err: err}
}
