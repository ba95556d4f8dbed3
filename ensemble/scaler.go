package ensemble

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/biotinker/peppergrade/anfis"
)

// Scaler maps each feature linearly so the fitted range becomes [0, 1].
// Values outside the fitted range are not clipped.
type Scaler struct {
	Min []float64 `json:"min"`
	Max []float64 `json:"max"`
}

// FitScaler computes per-feature minima and maxima of xs. Every vector must be valid.
func FitScaler(xs []anfis.FeatureVector) (*Scaler, error) {
	if len(xs) == 0 {
		return nil, anfis.ErrEmptyDataset
	}
	n := len(xs[0])
	s := &Scaler{Min: make([]float64, n), Max: make([]float64, n)}
	column := make([]float64, len(xs))
	for i := 0; i < n; i++ {
		for j, x := range xs {
			if len(x) != n {
				return nil, fmt.Errorf("%w: length %d, want %d", anfis.ErrInvalidFeatureVector, len(x), n)
			}
			column[j] = x[i]
		}
		s.Min[i] = floats.Min(column)
		s.Max[i] = floats.Max(column)
	}
	return s, nil
}

// Dim returns the feature vector length the scaler was fitted on.
func (s *Scaler) Dim() int { return len(s.Min) }

// Transform returns the scaled copy of x. Constant features map to 0.
func (s *Scaler) Transform(x anfis.FeatureVector) anfis.FeatureVector {
	out := make(anfis.FeatureVector, len(x))
	for i, v := range x {
		span := s.Max[i] - s.Min[i]
		if span > 0 {
			out[i] = (v - s.Min[i]) / span
		}
	}
	return out
}

func (s *Scaler) valid(n int) bool {
	if s == nil || len(s.Min) != n || len(s.Max) != n {
		return false
	}
	for i := range s.Min {
		lo, hi := s.Min[i], s.Max[i]
		if math.IsNaN(lo) || math.IsNaN(hi) || math.IsInf(lo, 0) || math.IsInf(hi, 0) || lo > hi {
			return false
		}
	}
	return true
}
