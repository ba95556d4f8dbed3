package anfis

import "fmt"

// Config holds the shape and training parameters of one ANFIS network.
type Config struct {
	NumInputs int            `mapstructure:"num_inputs"` // Length of every feature vector
	NumRules  int            `mapstructure:"num_rules"`  // Fixed rule count; never changes after construction
	Norm      TNorm          `mapstructure:"norm"`       // T-norm combining memberships into firing strengths
	Training  TrainingConfig `mapstructure:"training"`
}

// TrainingConfig holds parameters for the hybrid LSE / gradient-descent trainer.
type TrainingConfig struct {
	MaxEpochs       int     `mapstructure:"max_epochs"`        // Hard cap on training epochs
	Patience        int     `mapstructure:"patience"`          // Epochs without validation improvement before stopping
	Tolerance       float64 `mapstructure:"tolerance"`         // Validation MSE at or below which training has converged
	LearningRate    float64 `mapstructure:"learning_rate"`     // Initial step size for premise parameters
	MinLearningRate float64 `mapstructure:"min_learning_rate"` // Lower bound of the step-size schedule
	MaxLearningRate float64 `mapstructure:"max_learning_rate"` // Upper bound of the step-size schedule
	LRIncrease      float64 `mapstructure:"lr_increase"`       // Step multiplier after an epoch whose training error fell
	LRDecrease      float64 `mapstructure:"lr_decrease"`       // Step multiplier after an epoch whose training error rose
	MinWidth        float64 `mapstructure:"min_width"`         // Floor for membership widths
	Ridge           float64 `mapstructure:"ridge"`             // Ridge penalty on consequents; 0 = plain least squares
	RankTolerance   float64 `mapstructure:"rank_tolerance"`    // Relative singular value cut-off in the consequent solve
	InitIterations  int     `mapstructure:"init_iterations"`   // k-means iterations for premise init; 0 = grid init
	Seed            int64   `mapstructure:"seed"`              // Seed for premise initialization
}

// DefaultConfig returns a Config with sensible defaults for the 11-feature pepper vector.
func DefaultConfig() Config {
	return Config{
		NumInputs: NumFeatures,
		NumRules:  7,
		Norm:      NormProduct,
		Training:  DefaultTrainingConfig(),
	}
}

// DefaultTrainingConfig returns the default trainer parameters.
func DefaultTrainingConfig() TrainingConfig {
	return TrainingConfig{
		MaxEpochs:       300,
		Patience:        25,
		Tolerance:       1e-4,
		LearningRate:    0.01,
		MinLearningRate: 1e-5,
		MaxLearningRate: 0.5,
		LRIncrease:      1.05,
		LRDecrease:      0.7,
		MinWidth:        0.02,
		Ridge:           0,
		RankTolerance:   1e-10,
		InitIterations:  10,
		Seed:            42,
	}
}

// Validate checks the network shape and training parameters.
func (c Config) Validate() error {
	if c.NumInputs <= 0 {
		return fmt.Errorf("%w: num_inputs must be positive, got %d", ErrInvalidConfig, c.NumInputs)
	}
	if c.NumRules <= 0 {
		return fmt.Errorf("%w: num_rules must be positive, got %d", ErrInvalidConfig, c.NumRules)
	}
	if !c.Norm.valid() {
		return fmt.Errorf("%w: unknown norm %q", ErrInvalidConfig, c.Norm)
	}
	return c.Training.Validate()
}

// Validate checks the trainer parameters.
func (c TrainingConfig) Validate() error {
	switch {
	case c.MaxEpochs <= 0:
		return fmt.Errorf("%w: max_epochs must be positive", ErrInvalidConfig)
	case c.Patience <= 0:
		return fmt.Errorf("%w: patience must be positive", ErrInvalidConfig)
	case c.Tolerance < 0:
		return fmt.Errorf("%w: tolerance must not be negative", ErrInvalidConfig)
	case c.LearningRate <= 0:
		return fmt.Errorf("%w: learning_rate must be positive", ErrInvalidConfig)
	case c.MinLearningRate <= 0 || c.MinLearningRate > c.MaxLearningRate:
		return fmt.Errorf("%w: learning rate bounds [%g, %g] are inconsistent",
			ErrInvalidConfig, c.MinLearningRate, c.MaxLearningRate)
	case c.LRIncrease < 1 || c.LRDecrease <= 0 || c.LRDecrease > 1:
		return fmt.Errorf("%w: lr_increase must be >= 1 and lr_decrease in (0, 1]", ErrInvalidConfig)
	case c.MinWidth <= widthEpsilon:
		return fmt.Errorf("%w: min_width must exceed %g", ErrInvalidConfig, widthEpsilon)
	case c.Ridge < 0:
		return fmt.Errorf("%w: ridge must not be negative", ErrInvalidConfig)
	case c.RankTolerance < 0 || c.RankTolerance >= 1:
		return fmt.Errorf("%w: rank_tolerance must be in [0, 1)", ErrInvalidConfig)
	case c.InitIterations < 0:
		return fmt.Errorf("%w: init_iterations must not be negative", ErrInvalidConfig)
	}
	return nil
}
