package anfis

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// Network is a five-layer Takagi-Sugeno ANFIS for one binary sub-problem.
//
// Layer 1 computes Gaussian memberships, layer 2 combines them into rule
// firing strengths, layer 3 normalizes the strengths, layer 4 evaluates each
// rule's linear consequent and layer 5 sums the weighted consequents.
// A Network is not safe for concurrent mutation; concurrent Evaluate calls are fine.
type Network struct {
	numInputs int
	numRules  int
	norm      TNorm

	centers     [][]float64 // [rule][input]
	widths      [][]float64 // [rule][input]
	consequents [][]float64 // [rule][input weights..., bias]
}

// Trace holds every layer's values for one forward pass.
type Trace struct {
	Memberships [][]float64 // [rule][input]
	Strengths   []float64
	Total       float64 // Sum of strengths
	Uniform     bool    // All strengths were zero; normalized values fell back to 1/R
	Normalized  []float64
	Consequents []float64
	Output      float64
}

// Params is the serializable form of a Network.
type Params struct {
	NumInputs   int         `json:"num_inputs"`
	NumRules    int         `json:"num_rules"`
	Norm        TNorm       `json:"norm"`
	Centers     [][]float64 `json:"centers"`
	Widths      [][]float64 `json:"widths"`
	Consequents [][]float64 `json:"consequents"`
}

// NewNetwork creates a grid-initialized network: rule r places every input's
// membership center at r/(R-1) of the unit interval, all consequents are zero.
func NewNetwork(cfg Config) (*Network, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	n := allocNetwork(cfg.NumInputs, cfg.NumRules, cfg.Norm)
	width := math.Max(gridWidth, cfg.Training.MinWidth)
	for r := 0; r < n.numRules; r++ {
		c := 0.5
		if n.numRules > 1 {
			c = float64(r) / float64(n.numRules-1)
		}
		for i := 0; i < n.numInputs; i++ {
			n.centers[r][i] = c
			n.widths[r][i] = width
		}
	}
	return n, nil
}

// NewNetworkFromParams rebuilds a network from its serialized parameters.
func NewNetworkFromParams(p Params) (*Network, error) {
	if p.NumInputs <= 0 || p.NumRules <= 0 {
		return nil, fmt.Errorf("%w: shape %dx%d", ErrInvalidConfig, p.NumRules, p.NumInputs)
	}
	if !p.Norm.valid() {
		return nil, fmt.Errorf("%w: unknown norm %q", ErrInvalidConfig, p.Norm)
	}
	if err := checkMatrix(p.Centers, p.NumRules, p.NumInputs, "centers"); err != nil {
		return nil, err
	}
	if err := checkMatrix(p.Widths, p.NumRules, p.NumInputs, "widths"); err != nil {
		return nil, err
	}
	if err := checkMatrix(p.Consequents, p.NumRules, p.NumInputs+1, "consequents"); err != nil {
		return nil, err
	}
	n := allocNetwork(p.NumInputs, p.NumRules, p.Norm)
	for r := 0; r < n.numRules; r++ {
		for i, w := range p.Widths[r] {
			if !(w > widthEpsilon) {
				return nil, fmt.Errorf("rule %d input %d: %w", r, i, ErrDegenerateMembership)
			}
		}
		copy(n.centers[r], p.Centers[r])
		copy(n.widths[r], p.Widths[r])
		copy(n.consequents[r], p.Consequents[r])
	}
	return n, nil
}

func checkMatrix(m [][]float64, rows, cols int, name string) error {
	if len(m) != rows {
		return fmt.Errorf("%w: %s has %d rows, want %d", ErrInvalidConfig, name, len(m), rows)
	}
	for r, row := range m {
		if len(row) != cols {
			return fmt.Errorf("%w: %s row %d has %d columns, want %d", ErrInvalidConfig, name, r, len(row), cols)
		}
		for _, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("%w: %s row %d is not finite", ErrInvalidConfig, name, r)
			}
		}
	}
	return nil
}

func allocNetwork(numInputs, numRules int, norm TNorm) *Network {
	return &Network{
		numInputs:   numInputs,
		numRules:    numRules,
		norm:        norm,
		centers:     newMatrix(numRules, numInputs),
		widths:      newMatrix(numRules, numInputs),
		consequents: newMatrix(numRules, numInputs+1),
	}
}

func newMatrix(rows, cols int) [][]float64 {
	backing := make([]float64, rows*cols)
	m := make([][]float64, rows)
	for r := range m {
		m[r] = backing[r*cols : (r+1)*cols : (r+1)*cols]
	}
	return m
}

func copyMatrix(m [][]float64) [][]float64 {
	if len(m) == 0 {
		return nil
	}
	out := newMatrix(len(m), len(m[0]))
	for r := range m {
		copy(out[r], m[r])
	}
	return out
}

// NumInputs returns the feature vector length the network expects.
func (n *Network) NumInputs() int { return n.numInputs }

// NumRules returns the fixed rule count.
func (n *Network) NumRules() int { return n.numRules }

// Norm returns the T-norm used by the rule layer.
func (n *Network) Norm() TNorm { return n.norm }

// Clone returns a deep copy of n.
func (n *Network) Clone() *Network {
	return &Network{
		numInputs:   n.numInputs,
		numRules:    n.numRules,
		norm:        n.norm,
		centers:     copyMatrix(n.centers),
		widths:      copyMatrix(n.widths),
		consequents: copyMatrix(n.consequents),
	}
}

// Params returns a deep copy of the network parameters.
func (n *Network) Params() Params {
	return Params{
		NumInputs:   n.numInputs,
		NumRules:    n.numRules,
		Norm:        n.norm,
		Centers:     copyMatrix(n.centers),
		Widths:      copyMatrix(n.widths),
		Consequents: copyMatrix(n.consequents),
	}
}

func (n *Network) restore(from *Network) {
	n.centers = copyMatrix(from.centers)
	n.widths = copyMatrix(from.widths)
	n.consequents = copyMatrix(from.consequents)
}

func (n *Network) newTrace() *Trace {
	return &Trace{
		Memberships: newMatrix(n.numRules, n.numInputs),
		Strengths:   make([]float64, n.numRules),
		Normalized:  make([]float64, n.numRules),
		Consequents: make([]float64, n.numRules),
	}
}

// Forward validates x and runs all five layers, returning every intermediate value.
func (n *Network) Forward(x FeatureVector) (*Trace, error) {
	if err := x.Validate(n.numInputs); err != nil {
		return nil, err
	}
	tr := n.newTrace()
	if err := n.forward(x, tr); err != nil {
		return nil, err
	}
	return tr, nil
}

// Evaluate returns the network output for x.
func (n *Network) Evaluate(x FeatureVector) (float64, error) {
	tr, err := n.Forward(x)
	if err != nil {
		return 0, err
	}
	return tr.Output, nil
}

// Firing returns the normalized firing strength of every rule for x.
func (n *Network) Firing(x FeatureVector) ([]float64, error) {
	tr, err := n.Forward(x)
	if err != nil {
		return nil, err
	}
	return tr.Normalized, nil
}

// forward fills tr for an already validated input.
func (n *Network) forward(x []float64, tr *Trace) error {
	total := 0.0
	for r := 0; r < n.numRules; r++ {
		strength := 1.0
		for i := 0; i < n.numInputs; i++ {
			mu, err := gaussian(x[i], n.centers[r][i], n.widths[r][i])
			if err != nil {
				return fmt.Errorf("rule %d input %d: %w", r, i, err)
			}
			tr.Memberships[r][i] = mu
			if n.norm == NormMin {
				strength = math.Min(strength, mu)
			} else {
				strength *= mu
			}
		}
		tr.Strengths[r] = strength
		total += strength
		tr.Consequents[r] = n.consequent(r, x)
	}
	tr.Total = total
	tr.Uniform = !(total > 0)
	tr.Output = 0
	for r := 0; r < n.numRules; r++ {
		if tr.Uniform {
			tr.Normalized[r] = 1 / float64(n.numRules)
		} else {
			tr.Normalized[r] = tr.Strengths[r] / total
		}
		tr.Output += tr.Normalized[r] * tr.Consequents[r]
	}
	return nil
}

// consequent evaluates rule r's linear function at x.
func (n *Network) consequent(r int, x []float64) float64 {
	c := n.consequents[r]
	return floats.Dot(c[:n.numInputs], x) + c[n.numInputs]
}

// outputWith recomputes the layer-5 output for fixed normalized strengths.
func (n *Network) outputWith(x, normalized []float64) float64 {
	out := 0.0
	for r, nb := range normalized {
		out += nb * n.consequent(r, x)
	}
	return out
}

// clampWidths raises every width below floor to floor and returns how many changed.
func (n *Network) clampWidths(floor float64) int {
	clamped := 0
	for r := range n.widths {
		for i, w := range n.widths[r] {
			if !(w >= floor) {
				n.widths[r][i] = floor
				clamped++
			}
		}
	}
	return clamped
}
