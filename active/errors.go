package active

import "errors"

var (
	// ErrNonConvergentClass marks a class whose metrics stopped improving under augmentation.
	ErrNonConvergentClass = errors.New("class did not converge under active learning")

	// ErrNilGenerator is returned when a Loop is built without a sample generator.
	ErrNilGenerator = errors.New("nil sample generator")
)
