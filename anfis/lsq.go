package anfis

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// fitConsequents solves for every rule's consequent coefficients in one
// weighted least-squares problem, holding the normalized firing strengths fixed.
//
// Row s of the design matrix is sqrt(w_s) * [nb_s1*x_s, nb_s1, ..., nb_sR*x_s, nb_sR].
// The minimum-norm SVD solution tolerates rank-deficient designs; with ridge > 0
// sqrt(ridge)*I rows are appended.
func fitConsequents(xs [][]float64, targets, weights []float64, normalized [][]float64, numInputs int, ridge, rcond float64) ([][]float64, error) {
	m := len(xs)
	if m == 0 {
		return nil, fmt.Errorf("%w: empty design", ErrSingularConsequentSystem)
	}
	numRules := len(normalized[0])
	stride := numInputs + 1
	cols := numRules * stride

	rows := m
	if ridge > 0 {
		rows += cols
	}

	a := mat.NewDense(rows, cols, nil)
	b := mat.NewVecDense(rows, nil)
	for s, x := range xs {
		sw := math.Sqrt(weights[s])
		for r := 0; r < numRules; r++ {
			nb := sw * normalized[s][r]
			base := r * stride
			for i := 0; i < numInputs; i++ {
				a.Set(s, base+i, nb*x[i])
			}
			a.Set(s, base+numInputs, nb)
		}
		b.SetVec(s, sw*targets[s])
	}
	if ridge > 0 {
		lambda := math.Sqrt(ridge)
		for j := 0; j < cols; j++ {
			a.Set(m+j, j, lambda)
		}
	}

	var svd mat.SVD
	if ok := svd.Factorize(a, mat.SVDThin); !ok {
		return nil, fmt.Errorf("%w: SVD did not converge", ErrSingularConsequentSystem)
	}
	rank := svd.Rank(rcond)
	if rank == 0 {
		return nil, fmt.Errorf("%w: rank 0", ErrSingularConsequentSystem)
	}

	var theta mat.VecDense
	svd.SolveVecTo(&theta, b, rank)

	out := newMatrix(numRules, stride)
	for r := 0; r < numRules; r++ {
		for j := 0; j < stride; j++ {
			v := theta.AtVec(r*stride + j)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, fmt.Errorf("%w: non-finite coefficient", ErrSingularConsequentSystem)
			}
			out[r][j] = v
		}
	}
	return out, nil
}

// weightedMSE returns sum(w*(o-y)^2) / sum(w).
func weightedMSE(outputs, targets, weights []float64) float64 {
	var sse, sw float64
	for i, o := range outputs {
		d := o - targets[i]
		sse += weights[i] * d * d
		sw += weights[i]
	}
	if sw == 0 {
		return 0
	}
	return sse / sw
}
