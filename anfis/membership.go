package anfis

import "math"

// widthEpsilon is the width at or below which a membership function is degenerate.
const widthEpsilon = 1e-9

// gridWidth is the initial membership width for grid-initialized networks.
const gridWidth = 0.2

// gaussian returns exp(-(x-center)^2 / (2 width^2)).
func gaussian(x, center, width float64) (float64, error) {
	if !(width > widthEpsilon) {
		return 0, ErrDegenerateMembership
	}
	d := x - center
	return math.Exp(-(d * d) / (2 * width * width)), nil
}

// gaussianGrad returns the derivatives, with respect to one Gaussian's center
// and width, of a product containing that Gaussian whose value at x is mu.
func gaussianGrad(x, center, width, mu float64) (dCenter, dWidth float64) {
	d := x - center
	w2 := width * width
	dCenter = mu * d / w2
	dWidth = mu * d * d / (w2 * width)
	return dCenter, dWidth
}
