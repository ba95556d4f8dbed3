package peppergrade

import "errors"

var (
	// ErrExtractionFailed is returned when an image yields no feature vector.
	ErrExtractionFailed = errors.New("feature extraction failed")

	// ErrNoModel is returned by steps that need a trained or loaded model before one exists.
	ErrNoModel = errors.New("no model")

	// ErrNoData is returned by steps that need loaded data before LoadData ran.
	ErrNoData = errors.New("no data loaded")
)
