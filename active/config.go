package active

import (
	"fmt"

	"github.com/biotinker/peppergrade/anfis"
)

// Config holds the active-learning loop parameters.
type Config struct {
	BandLow             float64 `mapstructure:"band_low"`              // Lower bound of the uncertainty band on top-class probability
	BandHigh            float64 `mapstructure:"band_high"`             // Upper bound of the uncertainty band
	TargetF1            float64 `mapstructure:"target_f1"`             // Macro F1 needed to stop
	MaxFPR              float64 `mapstructure:"max_fpr"`               // Largest per-class false-positive rate allowed to stop
	MaxIterations       int     `mapstructure:"max_iterations"`        // Evaluate/augment/retrain cycles before giving up
	MaxStaleRounds      int     `mapstructure:"max_stale_rounds"`      // Rounds without F1 improvement before a class is non-convergent
	SamplesPerIteration int     `mapstructure:"samples_per_iteration"` // Generated samples requested per cycle, split across classes
	UseAnchors          bool    `mapstructure:"use_anchors"`           // Generate near queued samples when the generator supports it
	Rollback            bool    `mapstructure:"rollback"`              // Restore a class's previous network when its F1 regresses
}

// DefaultConfig returns a Config with the documented default band and targets.
func DefaultConfig() Config {
	return Config{
		BandLow:             0.3,
		BandHigh:            0.7,
		TargetF1:            0.90,
		MaxFPR:              0.05,
		MaxIterations:       10,
		MaxStaleRounds:      3,
		SamplesPerIteration: 60,
		UseAnchors:          true,
		Rollback:            true,
	}
}

// Validate checks the configuration for consistency.
func (c Config) Validate() error {
	switch {
	case c.BandLow < 0 || c.BandHigh > 1 || c.BandLow > c.BandHigh:
		return fmt.Errorf("%w: uncertainty band [%g, %g]", anfis.ErrInvalidConfig, c.BandLow, c.BandHigh)
	case c.TargetF1 < 0 || c.TargetF1 > 1:
		return fmt.Errorf("%w: target_f1 must be in [0, 1]", anfis.ErrInvalidConfig)
	case c.MaxFPR < 0 || c.MaxFPR > 1:
		return fmt.Errorf("%w: max_fpr must be in [0, 1]", anfis.ErrInvalidConfig)
	case c.MaxIterations < 0:
		return fmt.Errorf("%w: max_iterations must not be negative", anfis.ErrInvalidConfig)
	case c.MaxStaleRounds <= 0:
		return fmt.Errorf("%w: max_stale_rounds must be positive", anfis.ErrInvalidConfig)
	case c.SamplesPerIteration <= 0:
		return fmt.Errorf("%w: samples_per_iteration must be positive", anfis.ErrInvalidConfig)
	}
	return nil
}
