package synth

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/golang/geo/r3"

	"github.com/biotinker/peppergrade/anfis"
)

// Range is a closed interval sampled uniformly.
type Range struct {
	Min float64 `mapstructure:"min"`
	Max float64 `mapstructure:"max"`
}

func (r Range) sample(rng *rand.Rand) float64 {
	return r.Min + rng.Float64()*(r.Max-r.Min)
}

func (r Range) valid() bool {
	return !math.IsNaN(r.Min) && !math.IsNaN(r.Max) && r.Min <= r.Max
}

// Defect is a surface blemish painted over part of a pepper.
type Defect struct {
	Name      string    `mapstructure:"name"`
	Color     r3.Vector `mapstructure:"color"`     // HSV of the blemish
	Coverage  Range     `mapstructure:"coverage"`  // Fraction of the surface covered
	Roughness float64   `mapstructure:"roughness"` // Relative GLCM contrast gain at full coverage
}

// Profile describes the feature distribution of one grade class.
// All HSV triplets use the scale of RGBToHSV.
type Profile struct {
	Label         string    `mapstructure:"label"`
	Color         r3.Vector `mapstructure:"color"`          // Mean surface HSV
	ColorSpread   r3.Vector `mapstructure:"color_spread"`   // Standard deviation of Color between peppers
	Texture       r3.Vector `mapstructure:"texture"`        // Mean within-image HSV standard deviation
	TextureSpread r3.Vector `mapstructure:"texture_spread"` // Standard deviation of Texture between peppers
	Contrast      Range     `mapstructure:"contrast"`
	Homogeneity   Range     `mapstructure:"homogeneity"`
	Area          Range     `mapstructure:"area"` // Contour area in pixels
	Circularity   Range     `mapstructure:"circularity"`
	Solidity      Range     `mapstructure:"solidity"`
	Defects       []Defect  `mapstructure:"defects"`
	DefectRate    float64   `mapstructure:"defect_rate"` // Probability a sample carries one defect
}

// Validate checks ranges and spreads.
func (p Profile) Validate() error {
	if p.Label == "" {
		return fmt.Errorf("%w: empty label", ErrInvalidProfile)
	}
	for name, r := range map[string]Range{
		"contrast":    p.Contrast,
		"homogeneity": p.Homogeneity,
		"area":        p.Area,
		"circularity": p.Circularity,
		"solidity":    p.Solidity,
	} {
		if !r.valid() {
			return fmt.Errorf("%w: %q %s range [%g, %g]", ErrInvalidProfile, p.Label, name, r.Min, r.Max)
		}
	}
	if !nonNegative(p.ColorSpread) || !nonNegative(p.TextureSpread) {
		return fmt.Errorf("%w: %q has a negative spread", ErrInvalidProfile, p.Label)
	}
	if p.DefectRate < 0 || p.DefectRate > 1 {
		return fmt.Errorf("%w: %q defect_rate %g", ErrInvalidProfile, p.Label, p.DefectRate)
	}
	if p.DefectRate > 0 && len(p.Defects) == 0 {
		return fmt.Errorf("%w: %q has a defect rate but no defects", ErrInvalidProfile, p.Label)
	}
	for _, d := range p.Defects {
		if !d.Coverage.valid() || d.Coverage.Min < 0 || d.Coverage.Max > 1 {
			return fmt.Errorf("%w: %q defect %q coverage", ErrInvalidProfile, p.Label, d.Name)
		}
	}
	return nil
}

func nonNegative(v r3.Vector) bool {
	return v.X >= 0 && v.Y >= 0 && v.Z >= 0
}

// Sample draws one feature vector from the profile.
func (p Profile) Sample(rng *rand.Rand) anfis.FeatureVector {
	color := clampHSV(r3.Vector{
		X: p.Color.X + rng.NormFloat64()*p.ColorSpread.X,
		Y: p.Color.Y + rng.NormFloat64()*p.ColorSpread.Y,
		Z: p.Color.Z + rng.NormFloat64()*p.ColorSpread.Z,
	})
	texture := r3.Vector{
		X: math.Abs(p.Texture.X + rng.NormFloat64()*p.TextureSpread.X),
		Y: math.Abs(p.Texture.Y + rng.NormFloat64()*p.TextureSpread.Y),
		Z: math.Abs(p.Texture.Z + rng.NormFloat64()*p.TextureSpread.Z),
	}
	contrast := p.Contrast.sample(rng)
	homogeneity := p.Homogeneity.sample(rng)
	solidity := p.Solidity.sample(rng)

	if len(p.Defects) > 0 && rng.Float64() < p.DefectRate {
		d := p.Defects[rng.Intn(len(p.Defects))]
		coverage := d.Coverage.sample(rng)
		diff := d.Color.Sub(color)
		texture = mixSpread(texture, diff, coverage)
		color = clampHSV(color.Add(diff.Mul(coverage)))
		contrast *= 1 + d.Roughness*coverage
		homogeneity *= 1 - coverage/2
		solidity *= 1 - coverage/4
	}

	x := make(anfis.FeatureVector, anfis.NumFeatures)
	x[anfis.FeatureHMean] = color.X
	x[anfis.FeatureSMean] = color.Y
	x[anfis.FeatureVMean] = color.Z
	x[anfis.FeatureHStd] = texture.X
	x[anfis.FeatureSStd] = texture.Y
	x[anfis.FeatureVStd] = texture.Z
	x[anfis.FeatureGLCMContrast] = contrast
	x[anfis.FeatureGLCMHomogeneity] = clamp(homogeneity, 0, 1)
	x[anfis.FeatureContourArea] = p.Area.sample(rng)
	x[anfis.FeatureCircularity] = clamp(p.Circularity.sample(rng), 0, 1)
	x[anfis.FeatureSolidity] = clamp(solidity, 0, 1)
	return x
}
