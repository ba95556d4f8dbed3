package ensemble

import (
	"math/rand"
	"testing"

	"github.com/biotinker/peppergrade/anfis"
)

// linearNetwork returns a one-rule network whose output is weights·x + bias everywhere.
func linearNetwork(t *testing.T, weights []float64, bias float64) *anfis.Network {
	t.Helper()
	n := len(weights)
	centers := make([]float64, n)
	widths := make([]float64, n)
	for i := range widths {
		centers[i] = 0.5
		widths[i] = 1
	}
	net, err := anfis.NewNetworkFromParams(anfis.Params{
		NumInputs:   n,
		NumRules:    1,
		Norm:        anfis.NormProduct,
		Centers:     [][]float64{centers},
		Widths:      [][]float64{widths},
		Consequents: [][]float64{append(append([]float64(nil), weights...), bias)},
	})
	if err != nil {
		t.Fatalf("NewNetworkFromParams failed: %v", err)
	}
	return net
}

func identityScaler(n int) *Scaler {
	s := &Scaler{Min: make([]float64, n), Max: make([]float64, n)}
	for i := range s.Max {
		s.Max[i] = 1
	}
	return s
}

// constantEnsemble returns an ensemble over n inputs whose class k always outputs outputs[k].
func constantEnsemble(t *testing.T, labels []string, outputs []float64, n int, c Combination) *Ensemble {
	t.Helper()
	ls, err := NewLabels(labels)
	if err != nil {
		t.Fatalf("NewLabels failed: %v", err)
	}
	nets := make([]*anfis.Network, len(outputs))
	for k, out := range outputs {
		nets[k] = linearNetwork(t, make([]float64, n), out)
	}
	return newSnapshot(nil, ls, identityScaler(n), c, nets)
}

// thresholdEnsemble is a two-class ensemble over 2 inputs: "a" outputs 1-x0, "b" outputs x0.
func thresholdEnsemble(t *testing.T) *Ensemble {
	t.Helper()
	ls, _ := NewLabels([]string{"a", "b"})
	nets := []*anfis.Network{
		linearNetwork(t, []float64{-1, 0}, 1),
		linearNetwork(t, []float64{1, 0}, 0),
	}
	return newSnapshot(nil, ls, identityScaler(2), CombineClamp, nets)
}

// generateExamples draws perClass examples for each label, class k centered at
// 0.2 + 0.6k/(C-1) on every feature.
func generateExamples(rng *rand.Rand, labels []string, perClass int, std float64) []Example {
	var out []Example
	for k, label := range labels {
		center := 0.2 + 0.6*float64(k)/float64(len(labels)-1)
		for s := 0; s < perClass; s++ {
			x := make(anfis.FeatureVector, anfis.NumFeatures)
			for i := range x {
				x[i] = center + rng.NormFloat64()*std
			}
			out = append(out, Example{Features: x, Label: label})
		}
	}
	rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}

func fastConfig() Config {
	cfg := DefaultConfig()
	cfg.Network.NumRules = 3
	cfg.Network.Training.MaxEpochs = 60
	cfg.Network.Training.Patience = 10
	return cfg
}
