package anfis

import "errors"

var (
	// ErrDegenerateMembership is returned when a membership width has collapsed to ~0.
	ErrDegenerateMembership = errors.New("degenerate membership width")

	// ErrSingularConsequentSystem is returned when the consequent least-squares system has no usable solution.
	ErrSingularConsequentSystem = errors.New("singular consequent system")

	// ErrInvalidFeatureVector is returned for a feature vector of the wrong length or with non-finite values.
	ErrInvalidFeatureVector = errors.New("invalid feature vector")

	// ErrEmptyDataset is returned when no valid samples remain after input validation.
	ErrEmptyDataset = errors.New("no valid samples")

	// ErrInvalidConfig is returned when a network or training configuration is inconsistent.
	ErrInvalidConfig = errors.New("invalid configuration")
)
