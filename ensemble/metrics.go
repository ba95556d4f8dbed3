package ensemble

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/biotinker/peppergrade/anfis"
)

// ClassMetrics holds one-vs-rest counts and rates for a single class.
type ClassMetrics struct {
	Label     string
	Support   int // Examples whose true label is this class
	TP        int
	FP        int
	FN        int
	TN        int
	Precision float64
	Recall    float64
	F1        float64
	FPR       float64 // False-positive rate FP / (FP + TN)
}

// Evaluation is the result of running an ensemble over labeled examples.
type Evaluation struct {
	Labels    []string
	Total     int // Examples evaluated
	Skipped   int // Examples with invalid feature vectors
	Correct   int
	Accuracy  float64
	MacroF1   float64
	MaxFPR    float64
	Confusion [][]int // [true][predicted]
	Classes   []ClassMetrics

	// Predictions is aligned with the evaluated examples; nil for skipped ones.
	Predictions []*Prediction
}

// Class returns the metrics of label.
func (ev *Evaluation) Class(label string) (ClassMetrics, bool) {
	for _, c := range ev.Classes {
		if c.Label == label {
			return c, true
		}
	}
	return ClassMetrics{}, false
}

// Evaluate predicts every example and computes accuracy, the confusion matrix
// and per-class metrics. Examples with invalid feature vectors are skipped and
// counted; an unknown label is an error.
func Evaluate(e *Ensemble, examples []Example) (*Evaluation, error) {
	c := len(e.labels)
	ev := &Evaluation{
		Labels:      e.Labels(),
		Confusion:   make([][]int, c),
		Predictions: make([]*Prediction, len(examples)),
	}
	for k := range ev.Confusion {
		ev.Confusion[k] = make([]int, c)
	}

	for i, ex := range examples {
		truth, err := e.labels.Index(ex.Label)
		if err != nil {
			return nil, err
		}
		p, err := e.Predict(ex.Features)
		if errors.Is(err, anfis.ErrInvalidFeatureVector) {
			ev.Skipped++
			continue
		}
		if err != nil {
			return nil, err
		}
		ev.Predictions[i] = p
		ev.Confusion[truth][p.Index]++
		ev.Total++
		if truth == p.Index {
			ev.Correct++
		}
	}
	if ev.Total > 0 {
		ev.Accuracy = float64(ev.Correct) / float64(ev.Total)
	}

	ev.Classes = make([]ClassMetrics, c)
	var f1sum float64
	for k := 0; k < c; k++ {
		m := ClassMetrics{Label: e.labels[k]}
		for t := 0; t < c; t++ {
			for p := 0; p < c; p++ {
				n := ev.Confusion[t][p]
				switch {
				case t == k && p == k:
					m.TP += n
				case t == k:
					m.FN += n
				case p == k:
					m.FP += n
				default:
					m.TN += n
				}
			}
		}
		m.Support = m.TP + m.FN
		m.Precision = ratio(m.TP, m.TP+m.FP)
		m.Recall = ratio(m.TP, m.TP+m.FN)
		if m.Precision+m.Recall > 0 {
			m.F1 = 2 * m.Precision * m.Recall / (m.Precision + m.Recall)
		}
		m.FPR = ratio(m.FP, m.FP+m.TN)
		ev.Classes[k] = m
		f1sum += m.F1
		if m.FPR > ev.MaxFPR {
			ev.MaxFPR = m.FPR
		}
	}
	ev.MacroF1 = f1sum / float64(c)
	return ev, nil
}

func ratio(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}

// LightingResult is the evaluation under one brightness factor.
type LightingResult struct {
	Factor   float64
	Accuracy float64
	MacroF1  float64
}

// LightingRobustness re-evaluates e with the value-channel mean and spread of
// every example scaled by each factor, simulating darker or brighter capture.
func LightingRobustness(e *Ensemble, examples []Example, factors []float64) ([]LightingResult, error) {
	out := make([]LightingResult, 0, len(factors))
	for _, f := range factors {
		ev, err := evaluatePerturbed(e, examples, func(x anfis.FeatureVector) {
			if len(x) <= anfis.FeatureVStd {
				return
			}
			x[anfis.FeatureVMean] *= f
			x[anfis.FeatureVStd] *= f
		})
		if err != nil {
			return nil, err
		}
		out = append(out, LightingResult{Factor: f, Accuracy: ev.Accuracy, MacroF1: ev.MacroF1})
	}
	return out, nil
}

// RotationResult is the evaluation under one simulated rotation.
type RotationResult struct {
	Angle    float64 // Degrees
	Factor   float64
	Accuracy float64
	MacroF1  float64
}

// RotationFactor is the feature scale that simulates a rotation of angle
// degrees: 10% per quarter turn.
func RotationFactor(angle float64) float64 {
	return 1 + angle/90*0.1
}

// RotationRobustness re-evaluates e with every feature scaled by
// RotationFactor(angle) for each angle. Homogeneity, circularity and solidity
// stay in [0, 1].
func RotationRobustness(e *Ensemble, examples []Example, angles []float64) ([]RotationResult, error) {
	out := make([]RotationResult, 0, len(angles))
	for _, a := range angles {
		f := RotationFactor(a)
		ev, err := evaluatePerturbed(e, examples, func(x anfis.FeatureVector) {
			floats.Scale(f, x)
			if len(x) <= anfis.FeatureSolidity {
				return
			}
			for _, i := range []int{anfis.FeatureGLCMHomogeneity, anfis.FeatureCircularity, anfis.FeatureSolidity} {
				x[i] = math.Min(math.Max(x[i], 0), 1)
			}
		})
		if err != nil {
			return nil, err
		}
		out = append(out, RotationResult{Angle: a, Factor: f, Accuracy: ev.Accuracy, MacroF1: ev.MacroF1})
	}
	return out, nil
}

// evaluatePerturbed evaluates e on copies of examples modified by perturb.
func evaluatePerturbed(e *Ensemble, examples []Example, perturb func(anfis.FeatureVector)) (*Evaluation, error) {
	shifted := make([]Example, len(examples))
	for i, ex := range examples {
		x := append(anfis.FeatureVector(nil), ex.Features...)
		perturb(x)
		shifted[i] = Example{Features: x, Label: ex.Label}
	}
	return Evaluate(e, shifted)
}
