package ensemble

import "errors"

var (
	// ErrArtifactLoadMismatch is returned when a persisted ensemble does not match the configured network shape.
	ErrArtifactLoadMismatch = errors.New("artifact does not match configured network")

	// ErrUnknownLabel is returned for a class label outside the ensemble's label set.
	ErrUnknownLabel = errors.New("unknown class label")

	// ErrInvalidLabels is returned when a label set is too small or has duplicates.
	ErrInvalidLabels = errors.New("invalid label set")

	// ErrInvalidProbabilities is returned for external class probabilities of the wrong
	// length or with negative or non-finite values.
	ErrInvalidProbabilities = errors.New("invalid class probabilities")

	// ErrDuplicateSnapshot is returned when a snapshot ID is committed twice.
	ErrDuplicateSnapshot = errors.New("snapshot already committed")
)
