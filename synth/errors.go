package synth

import "errors"

var (
	// ErrUnknownProfile is returned when samples are requested for a label without a profile.
	ErrUnknownProfile = errors.New("no profile for label")

	// ErrInvalidProfile is returned for a profile with inverted ranges or negative spreads.
	ErrInvalidProfile = errors.New("invalid profile")

	// ErrInsufficientData is returned when a label has too few examples to fit a profile.
	ErrInsufficientData = errors.New("insufficient data to fit profile")
)
