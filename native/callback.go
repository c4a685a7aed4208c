// Package native exposes the prediction session to a native scheduler that
// is loaded into this process and calls back on every scheduling decision.
package native

import (
	"errors"
	"fmt"
	"sync/atomic"

	"phasebridge/ml"
	"phasebridge/monitoring"
)

// DefaultSentinel is returned to the scheduler when a sample cannot be
// classified. Real labels are non-negative.
const DefaultSentinel int32 = -1

var (
	ErrInstalled    = errors.New("native: callback already installed")
	ErrNotInstalled = errors.New("native: no callback installed")
)

// Predictor is the classification capability the callback serves.
type Predictor interface {
	Classify(raw ml.RawSample) (ml.PhaseLabel, error)
}

// Callback adapts a Predictor to the scheduler's integer ABI.
type Callback struct {
	predictor Predictor
	sentinel  int32
	counters  *monitoring.Counters
	firstErr  atomic.Pointer[error]
}

// NewCallback builds the callback state for p. A nil counters gets a fresh set.
func NewCallback(p Predictor, sentinel int32, counters *monitoring.Counters) (*Callback, error) {
	if p == nil {
		return nil, errors.New("native: nil predictor")
	}
	if counters == nil {
		counters = monitoring.NewCounters()
	}
	return &Callback{predictor: p, sentinel: sentinel, counters: counters}, nil
}

// Predict runs on the scheduler's thread: no logging, no goroutines, and
// every failure, including a panic, becomes the sentinel label.
func (c *Callback) Predict(pmc1, pmc2, pmc3, pmc4, pmc5 int64, cluster int32) (label int32) {
	c.counters.RecordRequest()
	defer func() {
		if r := recover(); r != nil {
			c.fail(fmt.Errorf("native: classifier panic: %v", r))
			label = c.sentinel
		}
	}()

	phase, err := c.predictor.Classify(ml.RawSample{
		PMC1:      pmc1,
		PMC2:      pmc2,
		PMC3:      pmc3,
		PMC4:      pmc4,
		PMC5:      pmc5,
		ClusterID: int64(cluster),
	})
	if err != nil {
		c.fail(err)
		return c.sentinel
	}
	return int32(phase)
}

// Sentinel is the label returned for any sample that could not be classified.
func (c *Callback) Sentinel() int32 { return c.sentinel }

func (c *Callback) fail(err error) {
	c.counters.RecordFailure()
	c.firstErr.CompareAndSwap(nil, &err)
}

// FirstFailure returns the first error collapsed to the sentinel, if any.
func (c *Callback) FirstFailure() error {
	if err := c.firstErr.Load(); err != nil {
		return *err
	}
	return nil
}

// Stats reports requests and failures seen by the callback so far.
func (c *Callback) Stats() monitoring.Snapshot {
	return c.counters.Snapshot()
}

var current atomic.Pointer[Callback]

// Install publishes the callback reached through the exported C symbol. It
// must run before the scheduler is launched and succeeds once per process.
func Install(c *Callback) error {
	if c == nil {
		return errors.New("native: nil callback")
	}
	if !current.CompareAndSwap(nil, c) {
		return ErrInstalled
	}
	return nil
}

// Predict forwards to the installed callback, or returns DefaultSentinel
// when none is installed.
func Predict(pmc1, pmc2, pmc3, pmc4, pmc5 int64, cluster int32) int32 {
	c := current.Load()
	if c == nil {
		return DefaultSentinel
	}
	return c.Predict(pmc1, pmc2, pmc3, pmc4, pmc5, cluster)
}

func uninstall() {
	current.Store(nil)
}
