package dataset

import (
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Scaler standardizes every column to zero mean and unit variance.
type Scaler struct {
	Mean  []float64 `json:"mean"`
	Scale []float64 `json:"scale"`
}

// FitScaler computes per-column mean and population standard deviation.
// Constant columns get a scale of 1.
func FitScaler(m mat.Matrix) *Scaler {
	_, c := m.Dims()
	s := &Scaler{
		Mean:  make([]float64, c),
		Scale: make([]float64, c),
	}

	var col []float64
	for j := range c {
		col = mat.Col(col, j, m)
		mean, std := stat.PopMeanStdDev(col, nil)
		if std == 0 {
			std = 1
		}
		s.Mean[j] = mean
		s.Scale[j] = std
	}

	return s
}

// Transform standardizes m in place.
func (s *Scaler) Transform(m *mat.Dense) {
	m.Apply(func(_, j int, v float64) float64 {
		return (v - s.Mean[j]) / s.Scale[j]
	}, m)
}
