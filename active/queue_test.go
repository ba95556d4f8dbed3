package active

import (
	"math"
	"testing"

	"github.com/biotinker/peppergrade/ensemble"
)

func pred(label string, confidence float64) *ensemble.Prediction {
	return &ensemble.Prediction{Label: label, Confidence: confidence}
}

func TestBuildQueue_Band(t *testing.T) {
	examples := []ensemble.Example{{Label: "a"}, {Label: "a"}, {Label: "b"}, {Label: "b"}}
	ev := &ensemble.Evaluation{Predictions: []*ensemble.Prediction{
		pred("a", 0.9),
		pred("a", 0.5),
		pred("a", 0.65),
		nil, // skipped sample
	}}

	q := BuildQueue(ev, examples, 0.3, 0.7)
	if q.Len() != 2 || q.InBand != 2 || q.Evaluated != 3 || q.Fallback {
		t.Fatalf("queue len %d in-band %d evaluated %d fallback %v", q.Len(), q.InBand, q.Evaluated, q.Fallback)
	}
	if math.Abs(q.FlaggedFraction()-2.0/3) > 1e-12 {
		t.Errorf("flagged fraction %g, want 2/3", q.FlaggedFraction())
	}
	counts := q.ClassCounts()
	if counts["a"] != 2 || counts["b"] != 1 {
		t.Errorf("class counts %v, want a:2 b:1", counts)
	}
	if anchors := q.Anchors("b"); len(anchors) != 1 {
		t.Errorf("%d anchors for b, want 1", len(anchors))
	}
}

func TestBuildQueue_FallsBackToMisclassified(t *testing.T) {
	examples := []ensemble.Example{{Label: "a"}, {Label: "b"}, {Label: "b"}}
	ev := &ensemble.Evaluation{Predictions: []*ensemble.Prediction{
		pred("a", 0.9),
		pred("a", 0.8),
		pred("b", 0.95),
	}}

	q := BuildQueue(ev, examples, 0.3, 0.7)
	if !q.Fallback || q.Len() != 1 || q.Items[0].Index != 1 {
		t.Fatalf("expected fallback queue with sample 1, got %+v", q)
	}
	if q.FlaggedFraction() != 0 {
		t.Errorf("flagged fraction %g, want 0", q.FlaggedFraction())
	}
}

func TestAllocate(t *testing.T) {
	labels, quotas := allocate(map[string]int{"b": 1, "a": 3}, 10)
	if len(labels) != 2 || labels[0] != "a" || labels[1] != "b" {
		t.Errorf("labels %v, want [a b]", labels)
	}
	if quotas["a"] != 7 || quotas["b"] != 2 {
		t.Errorf("quotas %v, want a:7 b:2", quotas)
	}

	_, quotas = allocate(map[string]int{"a": 3, "b": 1}, 2)
	if quotas["a"] != 1 || quotas["b"] != 1 {
		t.Errorf("every class gets at least one sample, got %v", quotas)
	}
}
