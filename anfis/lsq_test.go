package anfis

import (
	"errors"
	"math"
	"math/rand"
	"testing"
)

func TestFitConsequents_NeverRaisesTrainingError(t *testing.T) {
	cfg := DefaultConfig()
	//nolint:gosec
	rng := rand.New(rand.NewSource(11))

	for trial := 0; trial < 5; trial++ {
		net := randomNetwork(t, cfg, int64(100+trial))
		n := 150
		xs := make([][]float64, n)
		targets := make([]float64, n)
		weights := make([]float64, n)
		normalized := make([][]float64, n)
		before := make([]float64, n)
		for s := range xs {
			xs[s] = randomVector(rng, cfg.NumInputs)
			targets[s] = float64(rng.Intn(2))
			weights[s] = 0.5 + rng.Float64()
			tr, err := net.Forward(xs[s])
			if err != nil {
				t.Fatalf("Forward failed: %v", err)
			}
			normalized[s] = tr.Normalized
			before[s] = tr.Output
		}
		mseBefore := weightedMSE(before, targets, weights)

		theta, err := fitConsequents(xs, targets, weights, normalized, cfg.NumInputs, 0, 1e-10)
		if err != nil {
			t.Fatalf("fitConsequents failed: %v", err)
		}
		net.consequents = theta
		after := make([]float64, n)
		for s, x := range xs {
			after[s] = net.outputWith(x, normalized[s])
		}
		mseAfter := weightedMSE(after, targets, weights)
		if mseAfter > mseBefore+1e-12 {
			t.Errorf("trial %d: MSE rose from %.6f to %.6f", trial, mseBefore, mseAfter)
		}
		t.Logf("trial %d: MSE %.5f -> %.5f", trial, mseBefore, mseAfter)
	}
}

func TestFitConsequents_RecoversLinearTarget(t *testing.T) {
	//nolint:gosec
	rng := rand.New(rand.NewSource(12))
	coef := []float64{0.5, -1.5, 2, 0.25}
	n := 60
	xs := make([][]float64, n)
	targets := make([]float64, n)
	weights := make([]float64, n)
	normalized := make([][]float64, n)
	for s := range xs {
		xs[s] = randomVector(rng, 3)
		targets[s] = coef[0]*xs[s][0] + coef[1]*xs[s][1] + coef[2]*xs[s][2] + coef[3]
		weights[s] = 1
		normalized[s] = []float64{1}
	}

	theta, err := fitConsequents(xs, targets, weights, normalized, 3, 0, 1e-12)
	if err != nil {
		t.Fatalf("fitConsequents failed: %v", err)
	}
	for j, want := range coef {
		if math.Abs(theta[0][j]-want) > 1e-8 {
			t.Errorf("coefficient %d = %g, want %g", j, theta[0][j], want)
		}
	}
}

func TestFitConsequents_RankDeficientDesign(t *testing.T) {
	// Identical rows and a rule that never fires make the design rank deficient.
	n := 20
	xs := make([][]float64, n)
	targets := make([]float64, n)
	weights := make([]float64, n)
	normalized := make([][]float64, n)
	for s := range xs {
		xs[s] = []float64{0.3, 0.3}
		targets[s] = float64(s % 2)
		weights[s] = 1
		normalized[s] = []float64{1, 0}
	}

	theta, err := fitConsequents(xs, targets, weights, normalized, 2, 0, 1e-10)
	if err != nil {
		t.Fatalf("rank-deficient solve should succeed, got %v", err)
	}
	out := theta[0][0]*0.3 + theta[0][1]*0.3 + theta[0][2]
	if math.Abs(out-0.5) > 1e-9 {
		t.Errorf("minimum-norm fit predicts %g, want the mean target 0.5", out)
	}
	for _, v := range theta[1] {
		if v != 0 && math.Abs(v) > 1e-12 {
			t.Errorf("inactive rule got non-zero coefficient %g", v)
		}
	}
}

func TestFitConsequents_ZeroDesignIsSingular(t *testing.T) {
	xs := [][]float64{{1}, {2}}
	_, err := fitConsequents(xs, []float64{0, 1}, []float64{0, 0}, [][]float64{{1}, {1}}, 1, 0, 1e-10)
	if !errors.Is(err, ErrSingularConsequentSystem) {
		t.Errorf("expected ErrSingularConsequentSystem, got %v", err)
	}
}

func TestFitConsequents_RidgeShrinks(t *testing.T) {
	//nolint:gosec
	rng := rand.New(rand.NewSource(13))
	n := 40
	xs := make([][]float64, n)
	targets := make([]float64, n)
	weights := make([]float64, n)
	normalized := make([][]float64, n)
	for s := range xs {
		xs[s] = randomVector(rng, 2)
		targets[s] = 3*xs[s][0] - 2*xs[s][1]
		weights[s] = 1
		normalized[s] = []float64{1}
	}
	plain, err := fitConsequents(xs, targets, weights, normalized, 2, 0, 1e-12)
	if err != nil {
		t.Fatalf("plain solve failed: %v", err)
	}
	ridged, err := fitConsequents(xs, targets, weights, normalized, 2, 10, 1e-12)
	if err != nil {
		t.Fatalf("ridge solve failed: %v", err)
	}
	norm := func(v []float64) float64 {
		var s float64
		for _, x := range v {
			s += x * x
		}
		return s
	}
	if norm(ridged[0]) >= norm(plain[0]) {
		t.Errorf("ridge solution norm %g not below plain %g", norm(ridged[0]), norm(plain[0]))
	}
}
