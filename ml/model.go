package ml

// Preprocessor is the fitted scaling transform applied before classification.
type Preprocessor interface {
	Transform(vector FeatureVector) (ScaledVector, error)
}

// Classifier maps a scaled vector to a phase label.
type Classifier interface {
	Predict(scaled ScaledVector) (PhaseLabel, error)
}
