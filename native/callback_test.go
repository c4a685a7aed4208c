package native

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"phasebridge/ml"
	"phasebridge/monitoring"
)

type sumMod3 struct{}

func (sumMod3) Predict(scaled ml.ScaledVector) (ml.PhaseLabel, error) {
	var sum int64
	for _, v := range scaled {
		sum += int64(v)
	}
	return ml.PhaseLabel(sum % 3), nil
}

type predictorFunc func(ml.RawSample) (ml.PhaseLabel, error)

func (f predictorFunc) Classify(raw ml.RawSample) (ml.PhaseLabel, error) { return f(raw) }

func newCallback(t *testing.T, p Predictor, sentinel int32) *Callback {
	t.Helper()
	c, err := NewCallback(p, sentinel, monitoring.NewCounters())
	require.NoError(t, err)
	return c
}

func install(t *testing.T, c *Callback) {
	t.Helper()
	require.NoError(t, Install(c))
	t.Cleanup(uninstall)
}

func TestCallbackUsesSession(t *testing.T) {
	c := newCallback(t, ml.NewSession(ml.IdentityScaler{}, sumMod3{}), DefaultSentinel)

	// 100+200+50+10+5+2 = 367, 367 % 3 = 1
	assert.Equal(t, int32(1), c.Predict(100, 200, 50, 10, 5, 2))
	assert.Equal(t, c.Predict(100, 200, 50, 10, 5, 2), c.Predict(100, 200, 50, 10, 5, 2))
	assert.NoError(t, c.FirstFailure())
	assert.Equal(t, uint64(3), c.Stats().Requests)
}

func TestCallbackPassesFieldsInInputOrder(t *testing.T) {
	var got ml.RawSample
	c := newCallback(t, predictorFunc(func(raw ml.RawSample) (ml.PhaseLabel, error) {
		got = raw
		return 3, nil
	}), DefaultSentinel)

	assert.Equal(t, int32(3), c.Predict(1, 2, 3, 4, 5, 6))
	assert.Equal(t, ml.RawSample{PMC1: 1, PMC2: 2, PMC3: 3, PMC4: 4, PMC5: 5, ClusterID: 6}, got)
}

func TestCallbackCollapsesErrorsToSentinel(t *testing.T) {
	classifyErr := &ml.ClassificationError{Reason: "unavailable"}
	c := newCallback(t, predictorFunc(func(ml.RawSample) (ml.PhaseLabel, error) {
		return 0, classifyErr
	}), -7)

	assert.Equal(t, int32(-7), c.Predict(1, 1, 1, 1, 1, 0))
	assert.Equal(t, int32(-7), c.Predict(2, 2, 2, 2, 2, 0))
	assert.Same(t, classifyErr, c.FirstFailure())
	assert.Equal(t, uint64(2), c.Stats().Failures)
}

func TestCallbackRecoversPanics(t *testing.T) {
	c := newCallback(t, predictorFunc(func(ml.RawSample) (ml.PhaseLabel, error) {
		panic("boom")
	}), DefaultSentinel)

	assert.Equal(t, DefaultSentinel, c.Predict(0, 0, 0, 0, 0, 0))
	require.Error(t, c.FirstFailure())
	assert.Contains(t, c.FirstFailure().Error(), "boom")
}

func TestInstalledPredict(t *testing.T) {
	uninstall()
	assert.Equal(t, DefaultSentinel, Predict(1, 2, 3, 4, 5, 6))

	c := newCallback(t, ml.NewSession(ml.IdentityScaler{}, sumMod3{}), DefaultSentinel)
	install(t, c)
	assert.Equal(t, int32(0), Predict(1, 2, 3, 4, 5, 6))
	assert.Equal(t, uint64(1), c.Stats().Requests)
}

func TestInstallOnce(t *testing.T) {
	install(t, newCallback(t, ml.NewSession(ml.IdentityScaler{}, sumMod3{}), DefaultSentinel))
	err := Install(newCallback(t, ml.NewSession(ml.IdentityScaler{}, sumMod3{}), DefaultSentinel))
	assert.True(t, errors.Is(err, ErrInstalled))
	assert.Error(t, Install(nil))

	_, err = NewCallback(nil, DefaultSentinel, nil)
	assert.Error(t, err)
}
