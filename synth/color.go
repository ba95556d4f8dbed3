package synth

import (
	"math"

	"github.com/golang/geo/r3"
)

// Channel ranges of the HSV features, in the 8-bit convention of the feature extractor.
const (
	MaxHue        = 180.0
	MaxSaturation = 255.0
	MaxValue      = 255.0
)

// RGBToHSV converts RGB (0-255) to HSV in feature scale: X is hue in [0, 180),
// Y is saturation and Z is value, both in [0, 255].
func RGBToHSV(r, g, b uint8) r3.Vector {
	rf := float64(r) / 255.0
	gf := float64(g) / 255.0
	bf := float64(b) / 255.0

	maxC := math.Max(rf, math.Max(gf, bf))
	minC := math.Min(rf, math.Min(gf, bf))
	delta := maxC - minC

	var h float64
	switch {
	case delta == 0:
		h = 0
	case maxC == rf:
		h = 60 * math.Mod((gf-bf)/delta, 6)
	case maxC == gf:
		h = 60 * ((bf-rf)/delta + 2)
	case maxC == bf:
		h = 60 * ((rf-gf)/delta + 4)
	}
	if h < 0 {
		h += 360
	}

	var s float64
	if maxC > 0 {
		s = delta / maxC
	}

	return r3.Vector{X: h / 2, Y: s * MaxSaturation, Z: maxC * MaxValue}
}

// clampHSV limits each channel to its range. Hue is clamped, not wrapped.
func clampHSV(c r3.Vector) r3.Vector {
	return r3.Vector{
		X: clamp(c.X, 0, MaxHue),
		Y: clamp(c.Y, 0, MaxSaturation),
		Z: clamp(c.Z, 0, MaxValue),
	}
}

// mixSpread is the per-channel standard deviation of a surface where a fraction
// coverage of pixels is offset by diff from the rest, each part having spread s.
func mixSpread(s, diff r3.Vector, coverage float64) r3.Vector {
	f := coverage * (1 - coverage)
	return r3.Vector{
		X: math.Sqrt(s.X*s.X + f*diff.X*diff.X),
		Y: math.Sqrt(s.Y*s.Y + f*diff.Y*diff.Y),
		Z: math.Sqrt(s.Z*s.Z + f*diff.Z*diff.Z),
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
