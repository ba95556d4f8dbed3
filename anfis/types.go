package anfis

import (
	"fmt"
	"math"
)

// NumFeatures is the length of the feature vector produced by the pepper feature extractor.
const NumFeatures = 11

// Feature indices into a FeatureVector.
const (
	FeatureHMean = iota
	FeatureSMean
	FeatureVMean
	FeatureHStd
	FeatureSStd
	FeatureVStd
	FeatureGLCMContrast
	FeatureGLCMHomogeneity
	FeatureContourArea
	FeatureCircularity
	FeatureSolidity
)

// FeatureNames lists the feature vector columns in order.
var FeatureNames = []string{
	"h_mean", "s_mean", "v_mean",
	"h_std", "s_std", "v_std",
	"glcm_contrast", "glcm_homogeneity",
	"contour_area", "circularity", "solidity",
}

// FeatureVector is one image's numeric description. It is never mutated by this package.
type FeatureVector []float64

// Validate returns ErrInvalidFeatureVector if f does not have length n or holds NaN/Inf.
func (f FeatureVector) Validate(n int) error {
	if len(f) != n {
		return fmt.Errorf("%w: length %d, want %d", ErrInvalidFeatureVector, len(f), n)
	}
	for i, v := range f {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: non-finite value at index %d", ErrInvalidFeatureVector, i)
		}
	}
	return nil
}

// TNorm selects how per-input memberships combine into a rule firing strength.
type TNorm string

const (
	// NormProduct multiplies memberships (algebraic product).
	NormProduct TNorm = "product"
	// NormMin takes the smallest membership.
	NormMin TNorm = "min"
)

func (t TNorm) valid() bool {
	return t == NormProduct || t == NormMin
}

// TrainState is the hybrid trainer's lifecycle state.
type TrainState int

const (
	StateInitialized TrainState = iota
	StateTraining
	StateConverged
	StateEarlyStopped
	StateMaxEpochsReached
)

func (s TrainState) String() string {
	switch s {
	case StateInitialized:
		return "initialized"
	case StateTraining:
		return "training"
	case StateConverged:
		return "converged"
	case StateEarlyStopped:
		return "early_stopped"
	case StateMaxEpochsReached:
		return "max_epochs_reached"
	default:
		return "unknown"
	}
}

// Terminal reports whether s is one of the three finished states.
func (s TrainState) Terminal() bool {
	return s == StateConverged || s == StateEarlyStopped || s == StateMaxEpochsReached
}

// Sample is one training row of a binary sub-problem.
type Sample struct {
	Features FeatureVector
	Target   float64 // 1 for the positive class, 0 otherwise
	Weight   float64 // Loss weight; 0 means 1
}

// EpochStats records one training epoch.
type EpochStats struct {
	Epoch        int
	TrainMSE     float64 // Weighted training MSE after the consequent fit
	ValMSE       float64 // Validation MSE after the premise step
	LearningRate float64
	SingularFit  bool // Consequent solve failed; previous consequents kept
	LSERejected  bool // Consequent solution would have raised the training error
	WidthClamps  int
}

// Result summarizes a training run.
type Result struct {
	State         TrainState
	Epochs        int
	BestEpoch     int
	BestValMSE    float64
	FinalTrainMSE float64
	Skipped       int // Invalid samples dropped before training
	SingularFits  int
	WidthClamps   int
	History       []EpochStats
}
