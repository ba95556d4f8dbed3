package active

import (
	"sort"

	"github.com/biotinker/peppergrade/anfis"
	"github.com/biotinker/peppergrade/ensemble"
)

// Flagged is one queued evaluation sample.
type Flagged struct {
	Index      int // Position in the evaluation set
	Example    ensemble.Example
	Prediction *ensemble.Prediction
}

// Misclassified reports whether the prediction disagrees with the true label.
func (f Flagged) Misclassified() bool { return f.Prediction.Label != f.Example.Label }

// Queue holds the low-confidence samples of one iteration.
type Queue struct {
	Items     []Flagged
	Evaluated int  // Samples with a prediction
	InBand    int  // Samples whose top probability lies inside the band
	Fallback  bool // Band was empty; Items are the misclassified samples
}

// Len returns the number of queued samples.
func (q *Queue) Len() int { return len(q.Items) }

// FlaggedFraction is the share of evaluated samples inside the uncertainty band.
func (q *Queue) FlaggedFraction() float64 {
	if q.Evaluated == 0 {
		return 0
	}
	return float64(q.InBand) / float64(q.Evaluated)
}

// BuildQueue flags the samples of ev whose top-class probability lies in [low, high].
// When none do, the misclassified samples are queued instead.
func BuildQueue(ev *ensemble.Evaluation, examples []ensemble.Example, low, high float64) *Queue {
	q := &Queue{}
	var wrong []Flagged
	for i, p := range ev.Predictions {
		if p == nil {
			continue
		}
		q.Evaluated++
		f := Flagged{Index: i, Example: examples[i], Prediction: p}
		if p.Confidence >= low && p.Confidence <= high {
			q.Items = append(q.Items, f)
			continue
		}
		if f.Misclassified() {
			wrong = append(wrong, f)
		}
	}
	q.InBand = len(q.Items)
	if q.InBand == 0 && len(wrong) > 0 {
		q.Items = wrong
		q.Fallback = true
	}
	return q
}

// ClassCounts counts every queued sample under its true label and, when
// different, its predicted label.
func (q *Queue) ClassCounts() map[string]int {
	counts := make(map[string]int)
	for _, f := range q.Items {
		counts[f.Example.Label]++
		if f.Misclassified() {
			counts[f.Prediction.Label]++
		}
	}
	return counts
}

// Anchors returns the feature vectors of queued samples that are truly, or
// predicted as, label.
func (q *Queue) Anchors(label string) []anfis.FeatureVector {
	var out []anfis.FeatureVector
	for _, f := range q.Items {
		if f.Example.Label == label || f.Prediction.Label == label {
			out = append(out, f.Example.Features)
		}
	}
	return out
}

// allocate splits total generated samples across classes in proportion to
// their queue counts, at least one each. Classes are returned sorted.
func allocate(counts map[string]int, total int) ([]string, map[string]int) {
	labels := make([]string, 0, len(counts))
	sum := 0
	for l, c := range counts {
		labels = append(labels, l)
		sum += c
	}
	sort.Strings(labels)
	quotas := make(map[string]int, len(labels))
	for _, l := range labels {
		quotas[l] = max(1, total*counts[l]/sum)
	}
	return labels, quotas
}
