package ml

// Session owns the fitted preprocessor and classifier for the life of the
// process. It is never mutated after construction, so a single *Session is
// shared by every adapter without locking.
type Session struct {
	preprocessor Preprocessor
	classifier   Classifier
}

// NewSession pairs an already fitted preprocessor and classifier.
func NewSession(preprocessor Preprocessor, classifier Classifier) *Session {
	return &Session{preprocessor: preprocessor, classifier: classifier}
}

// LoadSession loads both artifacts; either failing fails the whole load.
func LoadSession(cfg ArtifactConfig) (*Session, error) {
	preprocessor, err := LoadPreprocessor(cfg.PreprocessorKind, cfg.PreprocessorPath)
	if err != nil {
		return nil, err
	}
	classifier, err := LoadClassifier(cfg.ClassifierKind, cfg.ClassifierPath)
	if err != nil {
		return nil, err
	}
	return NewSession(preprocessor, classifier), nil
}

// Classify runs assemble, transform and predict for a single sample.
// Errors from the preprocessor or classifier are returned as-is.
func (s *Session) Classify(raw RawSample) (PhaseLabel, error) {
	scaled, err := s.preprocessor.Transform(Assemble(raw))
	if err != nil {
		return 0, err
	}
	return s.classifier.Predict(scaled)
}
