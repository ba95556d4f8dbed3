package ensemble

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/floats"

	"github.com/biotinker/peppergrade/anfis"
)

// Ensemble is an immutable one-vs-all classifier snapshot: one network per
// label, the feature scaler they were trained on, and the combination policy.
// Retraining or rolling back produces a new Ensemble; networks that did not
// change are shared with the parent.
type Ensemble struct {
	ID        uuid.UUID
	Parent    uuid.UUID // uuid.Nil for a from-scratch snapshot
	Version   int
	CreatedAt time.Time

	labels      Labels
	scaler      *Scaler
	combination Combination
	networks    []*anfis.Network // indexed like labels
}

// Prediction is the ensemble's decision for one feature vector.
type Prediction struct {
	Label         string
	Index         int
	Confidence    float64   // Probability of the predicted class
	Labels        []string  // Class order of Probabilities and Raw
	Probabilities []float64 // Pseudo-probabilities; sum to 1
	Raw           []float64 // Raw network outputs
}

// ProbabilityMap returns the per-class pseudo-probabilities keyed by label.
func (p *Prediction) ProbabilityMap() map[string]float64 {
	return toMap(p.Labels, p.Probabilities)
}

// RawMap returns the raw per-class outputs keyed by label.
func (p *Prediction) RawMap() map[string]float64 {
	return toMap(p.Labels, p.Raw)
}

func toMap(labels []string, values []float64) map[string]float64 {
	m := make(map[string]float64, len(labels))
	for i, l := range labels {
		m[l] = values[i]
	}
	return m
}

func newSnapshot(parent *Ensemble, labels Labels, scaler *Scaler, combination Combination, networks []*anfis.Network) *Ensemble {
	e := &Ensemble{
		ID:          uuid.New(),
		Version:     1,
		CreatedAt:   time.Now().UTC(),
		labels:      labels,
		scaler:      scaler,
		combination: combination,
		networks:    networks,
	}
	if parent != nil {
		e.Parent = parent.ID
		e.Version = parent.Version + 1
	}
	return e
}

// Labels returns a copy of the ordered label set.
func (e *Ensemble) Labels() []string {
	return append([]string(nil), e.labels...)
}

// NumInputs returns the raw feature vector length the ensemble accepts.
func (e *Ensemble) NumInputs() int { return e.networks[0].NumInputs() }

// NumRules returns the rule count shared by every network.
func (e *Ensemble) NumRules() int { return e.networks[0].NumRules() }

// Combination returns the probability combination policy.
func (e *Ensemble) Combination() Combination { return e.combination }

// Network returns a copy of the network trained for label.
func (e *Ensemble) Network(label string) (*anfis.Network, error) {
	i, err := e.labels.Index(label)
	if err != nil {
		return nil, err
	}
	return e.networks[i].Clone(), nil
}

// Predict scales x, evaluates every class network and combines the outputs.
// The predicted class is the argmax, ties going to the lowest class index.
func (e *Ensemble) Predict(x anfis.FeatureVector) (*Prediction, error) {
	if err := x.Validate(e.NumInputs()); err != nil {
		return nil, err
	}
	scaled := e.scaler.Transform(x)

	raw := make([]float64, len(e.networks))
	for k, net := range e.networks {
		out, err := net.Evaluate(scaled)
		if err != nil {
			return nil, fmt.Errorf("class %q: %w", e.labels[k], err)
		}
		raw[k] = out
	}
	return newPrediction(e.labels, raw, combine(raw, e.combination)), nil
}

func newPrediction(labels Labels, raw, probs []float64) *Prediction {
	idx := floats.MaxIdx(probs)
	return &Prediction{
		Label:         labels[idx],
		Index:         idx,
		Confidence:    probs[idx],
		Labels:        append([]string(nil), labels...),
		Probabilities: probs,
		Raw:           raw,
	}
}

// combine converts raw outputs to probabilities summing to 1.
func combine(raw []float64, c Combination) []float64 {
	probs := make([]float64, len(raw))
	if c == CombineSoftmax {
		top := floats.Max(raw)
		for k, v := range raw {
			probs[k] = math.Exp(v - top)
		}
	} else {
		for k, v := range raw {
			probs[k] = math.Max(0, math.Min(1, v))
		}
	}
	sum := floats.Sum(probs)
	if !(sum > 0) {
		for k := range probs {
			probs[k] = 1 / float64(len(probs))
		}
		return probs
	}
	floats.Scale(1/sum, probs)
	return probs
}

// Rollback returns a new snapshot equal to e except that the networks of the
// given labels are taken from prev. Both snapshots must share the label set.
func (e *Ensemble) Rollback(prev *Ensemble, labels []string) (*Ensemble, error) {
	if !sameLabels(e.labels, prev.labels) {
		return nil, fmt.Errorf("%w: snapshots have different label sets", ErrInvalidLabels)
	}
	idx, err := e.labels.Indices(labels)
	if err != nil {
		return nil, err
	}
	networks := append([]*anfis.Network(nil), e.networks...)
	for _, k := range idx {
		networks[k] = prev.networks[k]
	}
	return newSnapshot(e, e.labels, e.scaler, e.combination, networks), nil
}

// Fuse averages p with an external model's class probabilities, in the
// ensemble's label order. anfisWeight in [0, 1] is the share given to p.
// external is normalized to sum to 1 before mixing.
func Fuse(p *Prediction, external []float64, anfisWeight float64) (*Prediction, error) {
	if len(external) != len(p.Probabilities) {
		return nil, fmt.Errorf("%w: %d external probabilities for %d classes",
			ErrInvalidProbabilities, len(external), len(p.Probabilities))
	}
	if anfisWeight < 0 || anfisWeight > 1 {
		return nil, fmt.Errorf("%w: fusion weight %g outside [0, 1]", anfis.ErrInvalidConfig, anfisWeight)
	}
	ext := make([]float64, len(external))
	for k, v := range external {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return nil, fmt.Errorf("%w: external probability %g", ErrInvalidProbabilities, v)
		}
		ext[k] = v
	}
	if sum := floats.Sum(ext); sum > 0 {
		floats.Scale(1/sum, ext)
	} else {
		for k := range ext {
			ext[k] = 1 / float64(len(ext))
		}
	}

	probs := make([]float64, len(ext))
	for k := range probs {
		probs[k] = anfisWeight*p.Probabilities[k] + (1-anfisWeight)*ext[k]
	}
	return newPrediction(p.Labels, append([]float64(nil), p.Raw...), probs), nil
}

func sameLabels(a, b Labels) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
