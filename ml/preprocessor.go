package ml

import (
	"encoding/json"
	"os"

	"github.com/pkg/errors"
)

// StandardScaler subtracts the fitted mean and divides by the fitted scale.
// A zero scale marks a constant training column and is treated as 1.
type StandardScaler struct {
	Mean  []float64 `json:"mean"`
	Scale []float64 `json:"scale"`
}

func (s *StandardScaler) Transform(vector FeatureVector) (ScaledVector, error) {
	if err := s.validate(); err != nil {
		return ScaledVector{}, err
	}
	var scaled ScaledVector
	for i, v := range vector {
		scaled[i] = StandardizeFeature(v, s.Mean[i], s.Scale[i])
	}
	if err := checkFinite(scaled); err != nil {
		return ScaledVector{}, err
	}
	return scaled, nil
}

func (s *StandardScaler) validate() error {
	if err := checkArity("mean", s.Mean); err != nil {
		return err
	}
	return checkArity("scale", s.Scale)
}

func (s *StandardScaler) Load(path string) error {
	if err := loadJSON(path, s); err != nil {
		return err
	}
	return s.validate()
}

// MinMaxScaler maps each feature onto [0, 1] using the fitted bounds.
type MinMaxScaler struct {
	Min []float64 `json:"min"`
	Max []float64 `json:"max"`
}

func (s *MinMaxScaler) Transform(vector FeatureVector) (ScaledVector, error) {
	if err := s.validate(); err != nil {
		return ScaledVector{}, err
	}
	var scaled ScaledVector
	for i, v := range vector {
		scaled[i] = NormalizeFeature(v, s.Min[i], s.Max[i])
	}
	if err := checkFinite(scaled); err != nil {
		return ScaledVector{}, err
	}
	return scaled, nil
}

func (s *MinMaxScaler) validate() error {
	if err := checkArity("min", s.Min); err != nil {
		return err
	}
	return checkArity("max", s.Max)
}

func (s *MinMaxScaler) Load(path string) error {
	if err := loadJSON(path, s); err != nil {
		return err
	}
	return s.validate()
}

// IdentityScaler passes features through unchanged.
type IdentityScaler struct{}

func (IdentityScaler) Transform(vector FeatureVector) (ScaledVector, error) {
	return ScaledVector(vector), nil
}

func loadJSON(path string, v interface{}) error {
	payload, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "read artifact")
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return errors.Wrap(err, "decode artifact")
	}
	return nil
}
