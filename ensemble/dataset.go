package ensemble

import (
	"math"
	"math/rand"

	"github.com/biotinker/peppergrade/anfis"
)

// Example is one labeled feature vector.
type Example struct {
	Features anfis.FeatureVector
	Label    string
}

// Counts returns the number of examples per label.
func Counts(examples []Example) map[string]int {
	counts := make(map[string]int)
	for _, ex := range examples {
		counts[ex.Label]++
	}
	return counts
}

// StratifiedSplit holds out about fraction of every label's examples.
// A label with at least two examples keeps at least one on each side.
// Example order within each side follows the input order.
func StratifiedSplit(examples []Example, fraction float64, rng *rand.Rand) (train, val []Example) {
	labels := make([]string, len(examples))
	for i, ex := range examples {
		labels[i] = ex.Label
	}
	trainIdx, valIdx := splitIndices(labels, fraction, rng)
	for _, i := range trainIdx {
		train = append(train, examples[i])
	}
	for _, i := range valIdx {
		val = append(val, examples[i])
	}
	return train, val
}

func splitIndices(labels []string, fraction float64, rng *rand.Rand) (train, val []int) {
	held := make([]bool, len(labels))
	if fraction > 0 {
		byLabel := make(map[string][]int)
		var order []string
		for i, l := range labels {
			if _, ok := byLabel[l]; !ok {
				order = append(order, l)
			}
			byLabel[l] = append(byLabel[l], i)
		}
		for _, l := range order {
			idx := byLabel[l]
			if len(idx) < 2 {
				continue
			}
			k := int(math.Round(fraction * float64(len(idx))))
			k = max(1, min(k, len(idx)-1))
			for _, p := range rng.Perm(len(idx))[:k] {
				held[idx[p]] = true
			}
		}
	}
	for i, h := range held {
		if h {
			val = append(val, i)
		} else {
			train = append(train, i)
		}
	}
	return train, val
}
