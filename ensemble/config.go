package ensemble

import (
	"fmt"

	"github.com/biotinker/peppergrade/anfis"
)

// Combination selects how raw per-class outputs become pseudo-probabilities.
type Combination string

const (
	// CombineClamp clamps each raw output to [0, 1] and normalizes the result to sum to 1.
	// When every output clamps to 0 the probabilities are uniform.
	CombineClamp Combination = "clamp"
	// CombineSoftmax applies a softmax over the raw outputs.
	CombineSoftmax Combination = "softmax"
)

// Config holds parameters for one-vs-all training and inference.
type Config struct {
	Network            anfis.Config `mapstructure:"network"`
	Combination        Combination  `mapstructure:"combination"`
	BalanceClasses     bool         `mapstructure:"balance_classes"`     // Weight samples so each sub-problem sees balanced classes
	ValidationFraction float64      `mapstructure:"validation_fraction"` // Per-class share held out for early stopping
	Workers            int          `mapstructure:"workers"`             // Parallel sub-problems; 0 = GOMAXPROCS
	Seed               int64        `mapstructure:"seed"`                // Seed for the train/validation split
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Network:            anfis.DefaultConfig(),
		Combination:        CombineClamp,
		BalanceClasses:     true,
		ValidationFraction: 0.2,
		Workers:            0,
		Seed:               42,
	}
}

// Validate checks the configuration for consistency.
func (c Config) Validate() error {
	if err := c.Network.Validate(); err != nil {
		return err
	}
	if c.Combination != CombineClamp && c.Combination != CombineSoftmax {
		return fmt.Errorf("%w: unknown combination %q", anfis.ErrInvalidConfig, c.Combination)
	}
	if c.ValidationFraction < 0 || c.ValidationFraction >= 1 {
		return fmt.Errorf("%w: validation_fraction must be in [0, 1)", anfis.ErrInvalidConfig)
	}
	if c.Workers < 0 {
		return fmt.Errorf("%w: workers must not be negative", anfis.ErrInvalidConfig)
	}
	return nil
}
