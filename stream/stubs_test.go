package stream

import (
	"errors"
	"sync"

	"phasebridge/ml"
)

// sumMod3 labels a vector with the sum of its scaled features modulo 3.
type sumMod3 struct{}

func (sumMod3) Predict(scaled ml.ScaledVector) (ml.PhaseLabel, error) {
	var sum int64
	for _, v := range scaled {
		sum += int64(v)
	}
	return ml.PhaseLabel(sum % 3), nil
}

func testSession() *ml.Session {
	return ml.NewSession(ml.IdentityScaler{}, sumMod3{})
}

type predictorFunc func(ml.RawSample) (ml.PhaseLabel, error)

func (f predictorFunc) Classify(raw ml.RawSample) (ml.PhaseLabel, error) { return f(raw) }

type memoryJournal struct {
	mu      sync.Mutex
	samples []ml.RawSample
	labels  []ml.PhaseLabel
	errs    []error
	fail    bool
}

func (j *memoryJournal) Record(sample ml.RawSample, label ml.PhaseLabel, err error) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.fail {
		return errors.New("disk full")
	}
	j.samples = append(j.samples, sample)
	j.labels = append(j.labels, label)
	j.errs = append(j.errs, err)
	return nil
}
