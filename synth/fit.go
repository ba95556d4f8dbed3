package synth

import (
	"fmt"
	"sort"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/biotinker/peppergrade/anfis"
	"github.com/biotinker/peppergrade/ensemble"
)

// minFitExamples is the fewest valid examples a label needs to be fitted.
const minFitExamples = 2

// FitProfiles estimates one profile per label from real examples. Fitted
// profiles carry no defects since real blemishes are already in the statistics.
// Base profiles of labels absent from examples are kept unchanged. Examples
// with invalid feature vectors are ignored.
func FitProfiles(examples []ensemble.Example, base []Profile) ([]Profile, error) {
	byLabel := make(map[string][]anfis.FeatureVector)
	for _, ex := range examples {
		if ex.Features.Validate(anfis.NumFeatures) != nil {
			continue
		}
		byLabel[ex.Label] = append(byLabel[ex.Label], ex.Features)
	}
	baseByLabel := make(map[string]Profile, len(base))
	for _, p := range base {
		baseByLabel[p.Label] = p
	}

	labels := make([]string, 0, len(byLabel)+len(base))
	for l := range byLabel {
		labels = append(labels, l)
	}
	for l := range baseByLabel {
		if _, ok := byLabel[l]; !ok {
			labels = append(labels, l)
		}
	}
	sort.Strings(labels)

	out := make([]Profile, 0, len(labels))
	for _, label := range labels {
		xs, ok := byLabel[label]
		if !ok {
			out = append(out, baseByLabel[label])
			continue
		}
		if len(xs) < minFitExamples {
			return nil, fmt.Errorf("%w: %q has %d examples", ErrInsufficientData, label, len(xs))
		}
		col := func(j int) []float64 {
			c := make([]float64, len(xs))
			for i, x := range xs {
				c[i] = x[j]
			}
			return c
		}
		triplet := func(j int) (mean, std r3.Vector) {
			mean.X, std.X = stat.MeanStdDev(col(j), nil)
			mean.Y, std.Y = stat.MeanStdDev(col(j+1), nil)
			mean.Z, std.Z = stat.MeanStdDev(col(j+2), nil)
			return mean, std
		}
		span := func(j int) Range {
			c := col(j)
			mean, std := stat.MeanStdDev(c, nil)
			return Range{Min: max(floats.Min(c), mean-std), Max: min(floats.Max(c), mean+std)}
		}

		p := Profile{Label: label}
		p.Color, p.ColorSpread = triplet(anfis.FeatureHMean)
		p.Texture, p.TextureSpread = triplet(anfis.FeatureHStd)
		p.Contrast = span(anfis.FeatureGLCMContrast)
		p.Homogeneity = span(anfis.FeatureGLCMHomogeneity)
		p.Area = span(anfis.FeatureContourArea)
		p.Circularity = span(anfis.FeatureCircularity)
		p.Solidity = span(anfis.FeatureSolidity)
		if err := p.Validate(); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}
