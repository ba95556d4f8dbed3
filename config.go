package peppergrade

import (
	"fmt"

	"github.com/biotinker/peppergrade/active"
	"github.com/biotinker/peppergrade/anfis"
	"github.com/biotinker/peppergrade/ensemble"
	"github.com/biotinker/peppergrade/synth"
)

// Config holds every parameter of a grading pipeline run.
type Config struct {
	// Labels fixes the class set. Empty means the labels found in the training data.
	Labels []string `mapstructure:"labels"`

	Data     DataConfig      `mapstructure:"data"`
	Ensemble ensemble.Config `mapstructure:"ensemble"`
	Active   active.Config   `mapstructure:"active"`
	Synth    synth.Config    `mapstructure:"synth"`

	// AnfisWeight is the ANFIS share when fusing with a transfer model.
	AnfisWeight float64 `mapstructure:"anfis_weight"`

	// LightingFactors are the brightness scales of the robustness check; empty skips it.
	LightingFactors []float64 `mapstructure:"lighting_factors"`

	// RotationAngles are the simulated rotations, in degrees, of the robustness check; empty skips it.
	RotationAngles []float64 `mapstructure:"rotation_angles"`

	// KeepSnapshots bounds the retained ensemble history; 0 keeps all.
	KeepSnapshots int `mapstructure:"keep_snapshots"`
}

// DataConfig locates the datasets and the model artifact.
type DataConfig struct {
	Train    string `mapstructure:"train"`    // CSV of labeled feature vectors; empty generates a synthetic set
	Test     string `mapstructure:"test"`     // Optional CSV; empty holds out TestFraction of Train
	Artifact string `mapstructure:"artifact"` // Where the final model is saved; empty skips saving

	TestFraction       float64 `mapstructure:"test_fraction"`       // Per-class share of Train held out for the final evaluation
	ValidationFraction float64 `mapstructure:"validation_fraction"` // Per-class share of the rest used to queue and score active learning
	RealRatio          float64 `mapstructure:"real_ratio"`          // Share of real examples in the seed training set; 1 disables mixing
	SyntheticPerClass  int     `mapstructure:"synthetic_per_class"` // Synthetic pool size per class
	Seed               int64   `mapstructure:"seed"`
}

// DefaultConfig returns the default pipeline configuration.
func DefaultConfig() Config {
	return Config{
		Data: DataConfig{
			Artifact:           "peppergrade-model.json.zst",
			TestFraction:       0.2,
			ValidationFraction: 0.2,
			RealRatio:          0.2,
			SyntheticPerClass:  200,
			Seed:               1,
		},
		Ensemble:        ensemble.DefaultConfig(),
		Active:          active.DefaultConfig(),
		Synth:           synth.DefaultConfig(),
		AnfisWeight:     0.5,
		LightingFactors: []float64{0.6, 0.8, 1.2, 1.4},
		RotationAngles:  []float64{-15, -7.5, 7.5, 15},
		KeepSnapshots:   0,
	}
}

// Validate checks every section.
func (c Config) Validate() error {
	if err := c.Ensemble.Validate(); err != nil {
		return fmt.Errorf("ensemble: %w", err)
	}
	if err := c.Active.Validate(); err != nil {
		return fmt.Errorf("active: %w", err)
	}
	if err := c.Synth.Validate(); err != nil {
		return fmt.Errorf("synth: %w", err)
	}
	if len(c.Labels) > 0 {
		if _, err := ensemble.NewLabels(c.Labels); err != nil {
			return err
		}
	}

	d := c.Data
	switch {
	case d.TestFraction < 0 || d.TestFraction >= 1:
		return fmt.Errorf("%w: data.test_fraction must be in [0, 1)", anfis.ErrInvalidConfig)
	case d.ValidationFraction <= 0 || d.ValidationFraction >= 1:
		return fmt.Errorf("%w: data.validation_fraction must be in (0, 1)", anfis.ErrInvalidConfig)
	case d.RealRatio <= 0 || d.RealRatio > 1:
		return fmt.Errorf("%w: data.real_ratio must be in (0, 1]", anfis.ErrInvalidConfig)
	case d.SyntheticPerClass < 0:
		return fmt.Errorf("%w: data.synthetic_per_class must not be negative", anfis.ErrInvalidConfig)
	case d.Train == "" && d.SyntheticPerClass < 2:
		return fmt.Errorf("%w: without data.train at least 2 synthetic examples per class are needed", anfis.ErrInvalidConfig)
	case d.Test == "" && d.TestFraction == 0:
		return fmt.Errorf("%w: data.test or data.test_fraction is required", anfis.ErrInvalidConfig)
	}
	if c.AnfisWeight < 0 || c.AnfisWeight > 1 {
		return fmt.Errorf("%w: anfis_weight must be in [0, 1]", anfis.ErrInvalidConfig)
	}
	for _, f := range c.LightingFactors {
		if f <= 0 {
			return fmt.Errorf("%w: lighting factor %g must be positive", anfis.ErrInvalidConfig, f)
		}
	}
	for _, a := range c.RotationAngles {
		if !(a >= -90 && a <= 90) {
			return fmt.Errorf("%w: rotation angle %g must be in [-90, 90]", anfis.ErrInvalidConfig, a)
		}
	}
	if c.KeepSnapshots < 0 {
		return fmt.Errorf("%w: keep_snapshots must not be negative", anfis.ErrInvalidConfig)
	}
	return nil
}
