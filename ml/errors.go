package ml

import (
	"errors"
	"fmt"
)

var (
	ErrMalformedSample = errors.New("malformed sample")
	ErrPreprocessing   = errors.New("preprocessing failed")
	ErrClassification  = errors.New("classification failed")
	ErrArtifactLoad    = errors.New("artifact load failed")
)

// MalformedSampleError reports an input line that is not exactly six integers.
// Field is the zero-based offending field, or -1 when the arity is wrong.
type MalformedSampleError struct {
	Line   string
	Field  int
	Reason string
}

func (e *MalformedSampleError) Error() string {
	if e.Field < 0 {
		return fmt.Sprintf("malformed sample %q: %s", e.Line, e.Reason)
	}
	return fmt.Sprintf("malformed sample %q: field %d: %s", e.Line, e.Field+1, e.Reason)
}

func (e *MalformedSampleError) Unwrap() error { return ErrMalformedSample }

type PreprocessingError struct {
	Reason string
}

func (e *PreprocessingError) Error() string { return "preprocessing failed: " + e.Reason }

func (e *PreprocessingError) Unwrap() error { return ErrPreprocessing }

type ClassificationError struct {
	Reason string
}

func (e *ClassificationError) Error() string { return "classification failed: " + e.Reason }

func (e *ClassificationError) Unwrap() error { return ErrClassification }

// ArtifactLoadError is fatal: the process must not serve predictions after it.
type ArtifactLoadError struct {
	Artifact string
	Path     string
	Err      error
}

func (e *ArtifactLoadError) Error() string {
	return fmt.Sprintf("load %s artifact %s: %v", e.Artifact, e.Path, e.Err)
}

func (e *ArtifactLoadError) Unwrap() []error { return []error{ErrArtifactLoad, e.Err} }
