package anfis

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// initFromData places rule premises on k-means clusters of xs.
// Centers start on distinct samples and run iters Lloyd iterations; each
// width is the cluster's spread on that input, falling back to the global
// spread for singleton clusters, floored at minWidth. Consequents are zeroed.
func (n *Network) initFromData(xs [][]float64, iters int, minWidth float64, rng *rand.Rand) {
	if len(xs) == 0 {
		return
	}
	k := n.numRules

	globalStd := make([]float64, n.numInputs)
	column := make([]float64, len(xs))
	for i := 0; i < n.numInputs; i++ {
		for s, x := range xs {
			column[s] = x[i]
		}
		globalStd[i] = stat.StdDev(column, nil)
		if !(globalStd[i] > 0) {
			globalStd[i] = gridWidth
		}
	}

	perm := rng.Perm(len(xs))
	for r := 0; r < k; r++ {
		src := xs[perm[r%len(perm)]]
		copy(n.centers[r], src)
		if r >= len(xs) {
			// Fewer samples than rules: spread the duplicates.
			for i := range n.centers[r] {
				n.centers[r][i] += rng.NormFloat64() * globalStd[i] * 0.5
			}
		}
	}

	assign := make([]int, len(xs))
	for it := 0; it < iters; it++ {
		moved := false
		for s, x := range xs {
			if best := nearestCenter(n.centers, x); it == 0 || best != assign[s] {
				assign[s] = best
				moved = true
			}
		}
		if !moved {
			break
		}
		sums := newMatrix(k, n.numInputs)
		counts := make([]int, k)
		for s, x := range xs {
			floats.Add(sums[assign[s]], x)
			counts[assign[s]]++
		}
		for r := 0; r < k; r++ {
			if counts[r] == 0 {
				continue
			}
			floats.Scale(1/float64(counts[r]), sums[r])
			copy(n.centers[r], sums[r])
		}
	}

	for r := 0; r < k; r++ {
		var members [][]float64
		for s, x := range xs {
			if assign[s] == r {
				members = append(members, x)
			}
		}
		for i := 0; i < n.numInputs; i++ {
			w := globalStd[i]
			if len(members) > 1 {
				col := make([]float64, len(members))
				for j, x := range members {
					col[j] = x[i]
				}
				if sd := stat.StdDev(col, nil); sd > 0 {
					w = sd
				}
			}
			n.widths[r][i] = math.Max(w, minWidth)
		}
		for j := range n.consequents[r] {
			n.consequents[r][j] = 0
		}
	}
}

func nearestCenter(centers [][]float64, x []float64) int {
	best := 0
	bestDist := math.Inf(1)
	for r, c := range centers {
		if d := floats.Distance(c, x, 2); d < bestDist {
			bestDist = d
			best = r
		}
	}
	return best
}
