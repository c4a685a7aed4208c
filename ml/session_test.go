package ml

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sumMod3 labels a vector with the sum of its scaled features modulo 3.
type sumMod3 struct{}

func (sumMod3) Predict(scaled ScaledVector) (PhaseLabel, error) {
	sum := 0.0
	for _, v := range scaled {
		sum += v
	}
	return PhaseLabel(int64(math.Round(sum)) % 3), nil
}

type failingClassifier struct{ err error }

func (f failingClassifier) Predict(ScaledVector) (PhaseLabel, error) { return 0, f.err }

type recordingPreprocessor struct{ seen *FeatureVector }

func (r recordingPreprocessor) Transform(vector FeatureVector) (ScaledVector, error) {
	*r.seen = vector
	return ScaledVector(vector), nil
}

func TestSessionClassifyExampleScenario(t *testing.T) {
	var seen FeatureVector
	session := NewSession(recordingPreprocessor{seen: &seen}, sumMod3{})

	raw, err := ParseSample("100,200,50,10,5,2")
	require.NoError(t, err)
	label, err := session.Classify(raw)
	require.NoError(t, err)

	assert.Equal(t, FeatureVector{50, 5, 100, 10, 200, 2}, seen)
	assert.Equal(t, PhaseLabel(1), label)
}

func TestSessionClassifyDeterministic(t *testing.T) {
	session := NewSession(&StandardScaler{
		Mean:  []float64{1, 2, 3, 4, 5, 6},
		Scale: []float64{1, 1, 1, 1, 1, 1},
	}, sumMod3{})

	samples := []RawSample{
		{1, 2, 3, 4, 5, 6},
		{1000, 2000, 3000, 4000, 5000, 0},
		{0, 0, 0, 0, 0, 4},
	}
	for _, raw := range samples {
		first, err := session.Classify(raw)
		require.NoError(t, err)
		for i := 0; i < 10; i++ {
			again, err := session.Classify(raw)
			require.NoError(t, err)
			assert.Equal(t, first, again)
		}
	}
}

func TestSessionPropagatesErrorsUnchanged(t *testing.T) {
	classifyErr := &ClassificationError{Reason: "unavailable"}
	session := NewSession(IdentityScaler{}, failingClassifier{err: classifyErr})
	_, err := session.Classify(RawSample{})
	assert.Same(t, classifyErr, err)

	badScaler := &StandardScaler{Mean: []float64{0}, Scale: []float64{1}}
	session = NewSession(badScaler, sumMod3{})
	_, err = session.Classify(RawSample{})
	assert.True(t, errors.Is(err, ErrPreprocessing))
}
