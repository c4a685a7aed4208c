package ml

import (
	"math"
	"strconv"
)

func NormalizeFeature(value, min, max float64) float64 {
	if max == min {
		return 0
	}
	return (value - min) / (max - min)
}

func StandardizeFeature(value, mean, scale float64) float64 {
	if scale == 0 {
		scale = 1
	}
	return (value - mean) / scale
}

func checkFinite(scaled ScaledVector) error {
	for i, v := range scaled {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return &PreprocessingError{Reason: "non-finite value at feature " + strconv.Itoa(i)}
		}
	}
	return nil
}

func checkArity(name string, values []float64) error {
	if len(values) != FeatureCount {
		return &PreprocessingError{
			Reason: name + " has " + strconv.Itoa(len(values)) + " values, want " + strconv.Itoa(FeatureCount),
		}
	}
	return nil
}
