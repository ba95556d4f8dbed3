package synth

import "github.com/golang/geo/r3"

// Grade labels of the default profiles.
const (
	LabelDamaged = "damaged"
	LabelDried   = "dried"
	LabelOld     = "old"
	LabelRipe    = "ripe"
	LabelUnripe  = "unripe"
)

// DefaultDefects returns the known blemish types keyed by name.
func DefaultDefects() map[string]Defect {
	return map[string]Defect{
		"anthracnose": {Name: "anthracnose", Color: r3.Vector{X: 10, Y: 50, Z: 30}, Coverage: Range{0.05, 0.15}, Roughness: 0.6},
		"blight":      {Name: "blight", Color: r3.Vector{X: 20, Y: 40, Z: 25}, Coverage: Range{0.08, 0.25}, Roughness: 0.8},
		"sunscald":    {Name: "sunscald", Color: r3.Vector{X: 15, Y: 30, Z: 80}, Coverage: Range{0.10, 0.30}, Roughness: 0.5},
		"mildew":      {Name: "mildew", Color: r3.Vector{X: 120, Y: 20, Z: 60}, Coverage: Range{0.05, 0.20}, Roughness: 0.3},
		"rot":         {Name: "rot", Color: r3.Vector{X: 0, Y: 80, Z: 40}, Coverage: Range{0.15, 0.40}, Roughness: 0.4},
		"insect":      {Name: "insect", Color: r3.Vector{X: 30, Y: 150, Z: 40}, Coverage: Range{0.01, 0.08}, Roughness: 0.9},
	}
}

// DefaultProfiles returns profiles for the five pepper grades, sorted by label.
func DefaultProfiles() []Profile {
	defects := DefaultDefects()
	pick := func(names ...string) []Defect {
		out := make([]Defect, len(names))
		for i, n := range names {
			out[i] = defects[n]
		}
		return out
	}

	return []Profile{
		{
			Label:         LabelDamaged,
			Color:         RGBToHSV(175, 40, 30),
			ColorSpread:   r3.Vector{X: 4, Y: 18, Z: 18},
			Texture:       r3.Vector{X: 5, Y: 22, Z: 26},
			TextureSpread: r3.Vector{X: 1.5, Y: 5, Z: 6},
			Contrast:      Range{60, 150},
			Homogeneity:   Range{0.42, 0.62},
			Area:          Range{35000, 85000},
			Circularity:   Range{0.62, 0.82},
			Solidity:      Range{0.84, 0.95},
			Defects:       pick("anthracnose", "blight", "insect", "rot"),
			DefectRate:    1,
		},
		{
			Label:         LabelDried,
			Color:         RGBToHSV(105, 45, 30),
			ColorSpread:   r3.Vector{X: 3, Y: 20, Z: 15},
			Texture:       r3.Vector{X: 7, Y: 30, Z: 30},
			TextureSpread: r3.Vector{X: 2, Y: 6, Z: 6},
			Contrast:      Range{100, 200},
			Homogeneity:   Range{0.32, 0.48},
			Area:          Range{18000, 45000},
			Circularity:   Range{0.45, 0.65},
			Solidity:      Range{0.74, 0.88},
		},
		{
			Label:         LabelOld,
			Color:         RGBToHSV(150, 55, 35),
			ColorSpread:   r3.Vector{X: 3, Y: 18, Z: 18},
			Texture:       r3.Vector{X: 6, Y: 28, Z: 32},
			TextureSpread: r3.Vector{X: 1.5, Y: 5, Z: 6},
			Contrast:      Range{55, 110},
			Homogeneity:   Range{0.45, 0.62},
			Area:          Range{35000, 80000},
			Circularity:   Range{0.62, 0.76},
			Solidity:      Range{0.86, 0.94},
			Defects:       pick("mildew", "sunscald"),
			DefectRate:    0.35,
		},
		{
			Label:         LabelRipe,
			Color:         RGBToHSV(190, 28, 22),
			ColorSpread:   r3.Vector{X: 3, Y: 15, Z: 15},
			Texture:       r3.Vector{X: 4, Y: 20, Z: 25},
			TextureSpread: r3.Vector{X: 1, Y: 4, Z: 5},
			Contrast:      Range{20, 60},
			Homogeneity:   Range{0.55, 0.75},
			Area:          Range{45000, 90000},
			Circularity:   Range{0.72, 0.86},
			Solidity:      Range{0.93, 0.98},
		},
		{
			Label:         LabelUnripe,
			Color:         RGBToHSV(70, 140, 45),
			ColorSpread:   r3.Vector{X: 4, Y: 15, Z: 15},
			Texture:       r3.Vector{X: 5, Y: 18, Z: 22},
			TextureSpread: r3.Vector{X: 1, Y: 4, Z: 5},
			Contrast:      Range{25, 65},
			Homogeneity:   Range{0.55, 0.72},
			Area:          Range{35000, 75000},
			Circularity:   Range{0.72, 0.86},
			Solidity:      Range{0.93, 0.98},
		},
	}
}
