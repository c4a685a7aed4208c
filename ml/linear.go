package ml

import "strconv"

// LinearModel picks the class whose row of W·x + b scores highest.
// Ties resolve to the lowest row.
type LinearModel struct {
	Weights    [][]float64 `json:"weights"`
	Intercepts []float64   `json:"intercepts"`
	Classes    []int       `json:"classes"`
}

func (m *LinearModel) Predict(scaled ScaledVector) (PhaseLabel, error) {
	if err := m.validate(); err != nil {
		return 0, err
	}
	best := 0
	bestScore := 0.0
	for row, weights := range m.Weights {
		score := m.Intercepts[row]
		for i, w := range weights {
			score += w * scaled[i]
		}
		if row == 0 || score > bestScore {
			best, bestScore = row, score
		}
	}
	return PhaseLabel(m.Classes[best]), nil
}

func (m *LinearModel) validate() error {
	if len(m.Weights) == 0 {
		return &ClassificationError{Reason: "model has no classes"}
	}
	if len(m.Intercepts) != len(m.Weights) || len(m.Classes) != len(m.Weights) {
		return &ClassificationError{Reason: "weights, intercepts and classes differ in length"}
	}
	for row, weights := range m.Weights {
		if len(weights) != FeatureCount {
			return &ClassificationError{
				Reason: "row " + strconv.Itoa(row) + " has " + strconv.Itoa(len(weights)) + " weights",
			}
		}
	}
	return nil
}

func (m *LinearModel) Load(path string) error {
	if err := loadJSON(path, m); err != nil {
		return err
	}
	return m.validate()
}
