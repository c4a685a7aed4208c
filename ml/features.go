package ml

import (
	"strconv"
	"strings"
)

// FeatureCount is the number of fields in a sample and in every vector.
const FeatureCount = 6

// RawSample is one counter reading as produced by the scheduler, in input order.
type RawSample struct {
	PMC1      int64
	PMC2      int64
	PMC3      int64
	PMC4      int64
	PMC5      int64
	ClusterID int64
}

// FeatureVector holds the features in the column order the models were fit on.
type FeatureVector [FeatureCount]float64

// ScaledVector is a FeatureVector after preprocessing, still in training order.
type ScaledVector [FeatureCount]float64

// PhaseLabel is the classifier's output class.
type PhaseLabel int32

// TrainingOrder maps each FeatureVector position to a RawSample field index
// (0-based, pmc1..pmc5 then clusterId). The models were fit on columns
// pmc3, pmc5, pmc1, pmc4, pmc2, clusterId; changing this table silently
// corrupts every prediction.
var TrainingOrder = [FeatureCount]int{2, 4, 0, 3, 1, 5}

// Fields returns the sample in input order.
func (s RawSample) Fields() [FeatureCount]int64 {
	return [FeatureCount]int64{s.PMC1, s.PMC2, s.PMC3, s.PMC4, s.PMC5, s.ClusterID}
}

// Assemble reorders a sample into training order.
func Assemble(raw RawSample) FeatureVector {
	fields := raw.Fields()
	var vector FeatureVector
	for i, src := range TrainingOrder {
		vector[i] = float64(fields[src])
	}
	return vector
}

// ParseSample parses "pmc1,pmc2,pmc3,pmc4,pmc5,clusterId". Fields must be
// base-10 integers with no surrounding whitespace.
func ParseSample(line string) (RawSample, error) {
	parts := strings.Split(line, ",")
	if len(parts) != FeatureCount {
		return RawSample{}, &MalformedSampleError{
			Line:   line,
			Field:  -1,
			Reason: "expected " + strconv.Itoa(FeatureCount) + " fields, got " + strconv.Itoa(len(parts)),
		}
	}
	var values [FeatureCount]int64
	for i, part := range parts {
		v, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			reason := "not an integer"
			if numErr, ok := err.(*strconv.NumError); ok && numErr.Err == strconv.ErrRange {
				reason = "out of int64 range"
			}
			return RawSample{}, &MalformedSampleError{Line: line, Field: i, Reason: reason}
		}
		values[i] = v
	}
	return RawSample{
		PMC1:      values[0],
		PMC2:      values[1],
		PMC3:      values[2],
		PMC4:      values[3],
		PMC5:      values[4],
		ClusterID: values[5],
	}, nil
}
