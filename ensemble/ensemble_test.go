package ensemble

import (
	"errors"
	"math"
	"testing"

	"github.com/biotinker/peppergrade/anfis"
)

func sum(v []float64) float64 {
	var s float64
	for _, x := range v {
		s += x
	}
	return s
}

func TestCombine_Clamp(t *testing.T) {
	probs := combine([]float64{-0.5, 0.25, 1.75}, CombineClamp)
	want := []float64{0, 0.2, 0.8}
	for k := range want {
		if math.Abs(probs[k]-want[k]) > 1e-12 {
			t.Errorf("probs[%d] = %g, want %g", k, probs[k], want[k])
		}
	}

	uniform := combine([]float64{-1, -2, 0}, CombineClamp)
	for k, p := range uniform {
		if math.Abs(p-1.0/3) > 1e-12 {
			t.Errorf("all-zero clamp: probs[%d] = %g, want 1/3", k, p)
		}
	}
}

func TestCombine_Softmax(t *testing.T) {
	probs := combine([]float64{1000, 1000, -5}, CombineSoftmax)
	if math.Abs(sum(probs)-1) > 1e-12 {
		t.Errorf("softmax probabilities sum to %g", sum(probs))
	}
	if math.Abs(probs[0]-0.5) > 1e-9 || math.Abs(probs[1]-0.5) > 1e-9 {
		t.Errorf("softmax of equal large outputs = %v", probs)
	}
}

func TestPredict_TieGoesToLowestIndex(t *testing.T) {
	for _, c := range []Combination{CombineClamp, CombineSoftmax} {
		e := constantEnsemble(t, []string{"damaged", "old", "ripe"}, []float64{0.7, 0.7, 0.2}, 3, c)
		p, err := e.Predict(anfis.FeatureVector{0.1, 0.2, 0.3})
		if err != nil {
			t.Fatalf("Predict failed: %v", err)
		}
		if p.Index != 0 || p.Label != "damaged" {
			t.Errorf("%s: predicted %q (index %d), want damaged (index 0)", c, p.Label, p.Index)
		}
		if math.Abs(sum(p.Probabilities)-1) > 1e-12 {
			t.Errorf("%s: probabilities sum to %g", c, sum(p.Probabilities))
		}
		if p.Confidence != p.Probabilities[p.Index] {
			t.Errorf("%s: confidence %g != top probability %g", c, p.Confidence, p.Probabilities[p.Index])
		}
		if got := p.RawMap()["old"]; got != 0.7 {
			t.Errorf("%s: raw output for old = %g, want 0.7", c, got)
		}
	}
}

func TestPredict_InvalidFeatureVector(t *testing.T) {
	e := thresholdEnsemble(t)
	before, err := e.Predict(anfis.FeatureVector{0.2, 0})
	if err != nil {
		t.Fatalf("Predict failed: %v", err)
	}
	for _, bad := range []anfis.FeatureVector{{0.2}, {0.2, 0, 0}, {math.NaN(), 0}} {
		if _, err := e.Predict(bad); !errors.Is(err, anfis.ErrInvalidFeatureVector) {
			t.Errorf("expected ErrInvalidFeatureVector for %v, got %v", bad, err)
		}
	}
	after, err := e.Predict(anfis.FeatureVector{0.2, 0})
	if err != nil {
		t.Fatalf("Predict failed: %v", err)
	}
	for k := range before.Probabilities {
		if before.Probabilities[k] != after.Probabilities[k] {
			t.Errorf("probabilities changed after invalid input: %v -> %v", before.Probabilities, after.Probabilities)
		}
	}
}

func TestRollback_RestoresChosenClasses(t *testing.T) {
	prev := constantEnsemble(t, []string{"a", "b", "c"}, []float64{0.1, 0.2, 0.3}, 2, CombineClamp)
	cur := constantEnsemble(t, []string{"a", "b", "c"}, []float64{0.9, 0.8, 0.7}, 2, CombineClamp)
	cur.Version = 4

	rolled, err := cur.Rollback(prev, []string{"b"})
	if err != nil {
		t.Fatalf("Rollback failed: %v", err)
	}
	p, _ := rolled.Predict(anfis.FeatureVector{0, 0})
	want := []float64{0.9, 0.2, 0.7}
	for k := range want {
		if math.Abs(p.Raw[k]-want[k]) > 1e-12 {
			t.Errorf("raw[%d] = %g, want %g", k, p.Raw[k], want[k])
		}
	}
	if rolled.Parent != cur.ID || rolled.Version != 5 {
		t.Errorf("rolled back snapshot parent %s version %d, want %s version 5", rolled.Parent, rolled.Version, cur.ID)
	}

	if _, err := cur.Rollback(prev, []string{"z"}); !errors.Is(err, ErrUnknownLabel) {
		t.Errorf("expected ErrUnknownLabel, got %v", err)
	}
}

func TestFuse(t *testing.T) {
	e := constantEnsemble(t, []string{"a", "b"}, []float64{0.8, 0.2}, 1, CombineClamp)
	p, _ := e.Predict(anfis.FeatureVector{0})

	fused, err := Fuse(p, []float64{0, 4}, 0.25)
	if err != nil {
		t.Fatalf("Fuse failed: %v", err)
	}
	// 0.25*[0.8 0.2] + 0.75*[0 1] = [0.2 0.8]
	if fused.Label != "b" || math.Abs(fused.Probabilities[1]-0.8) > 1e-12 {
		t.Errorf("fused prediction %q %v, want b [0.2 0.8]", fused.Label, fused.Probabilities)
	}
	if math.Abs(sum(fused.Probabilities)-1) > 1e-12 {
		t.Errorf("fused probabilities sum to %g", sum(fused.Probabilities))
	}

	for _, external := range [][]float64{{1}, {0.5, -0.1}, {math.NaN(), 1}, {math.Inf(1), 0}} {
		if _, err := Fuse(p, external, 0.5); !errors.Is(err, ErrInvalidProbabilities) {
			t.Errorf("expected ErrInvalidProbabilities for %v, got %v", external, err)
		}
	}
	if _, err := Fuse(p, []float64{0.5, 0.5}, 1.5); !errors.Is(err, anfis.ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig for weight 1.5, got %v", err)
	}
}

func TestNewLabels(t *testing.T) {
	ls, err := NewLabels([]string{"unripe", "damaged", "ripe"})
	if err != nil {
		t.Fatalf("NewLabels failed: %v", err)
	}
	if ls[0] != "damaged" || ls[2] != "unripe" {
		t.Errorf("labels not sorted: %v", ls)
	}
	if i, _ := ls.Index("ripe"); i != 1 {
		t.Errorf("Index(ripe) = %d, want 1", i)
	}
	if _, err := ls.Index("dried"); !errors.Is(err, ErrUnknownLabel) {
		t.Errorf("expected ErrUnknownLabel, got %v", err)
	}
	if _, err := NewLabels([]string{"a", "a"}); !errors.Is(err, ErrInvalidLabels) {
		t.Errorf("expected ErrInvalidLabels for duplicates, got %v", err)
	}
	if _, err := NewLabels([]string{"a"}); !errors.Is(err, ErrInvalidLabels) {
		t.Errorf("expected ErrInvalidLabels for one label, got %v", err)
	}
}

func TestScaler(t *testing.T) {
	s, err := FitScaler([]anfis.FeatureVector{{0, 5, 2}, {10, 5, 4}, {5, 5, 3}})
	if err != nil {
		t.Fatalf("FitScaler failed: %v", err)
	}
	got := s.Transform(anfis.FeatureVector{2.5, 5, 6})
	want := []float64{0.25, 0, 2}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-12 {
			t.Errorf("Transform[%d] = %g, want %g", i, got[i], want[i])
		}
	}
	if _, err := FitScaler(nil); !errors.Is(err, anfis.ErrEmptyDataset) {
		t.Errorf("expected ErrEmptyDataset, got %v", err)
	}
}
