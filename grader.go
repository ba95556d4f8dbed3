package peppergrade

import (
	"context"
	"errors"
	"fmt"

	"go.viam.com/rdk/logging"

	"github.com/biotinker/peppergrade/anfis"
	"github.com/biotinker/peppergrade/ensemble"
)

// Extractor turns an image reference into a feature vector. Implementations
// return an error wrapping ErrExtractionFailed when no pepper can be measured.
type Extractor interface {
	Extract(ctx context.Context, image string) (anfis.FeatureVector, error)
}

// TransferModel is an external image classifier returning per-label probabilities.
type TransferModel interface {
	Predict(ctx context.Context, image string) (map[string]float64, error)
}

// Grade is the outcome of grading one image.
type Grade struct {
	Image    string
	Features anfis.FeatureVector
	ANFIS    *ensemble.Prediction
	Transfer map[string]float64 // nil when no transfer model contributed
	Final    *ensemble.Prediction
}

// Fused reports whether the transfer model contributed to Final.
func (g *Grade) Fused() bool { return g.Transfer != nil }

// Grader grades images with an ensemble, optionally fused with a transfer model.
type Grader struct {
	model       *ensemble.Ensemble
	extractor   Extractor
	transfer    TransferModel
	anfisWeight float64
	logger      logging.Logger
}

// NewGrader creates a Grader. transfer may be nil.
func NewGrader(model *ensemble.Ensemble, extractor Extractor, transfer TransferModel, anfisWeight float64, logger logging.Logger) (*Grader, error) {
	if model == nil {
		return nil, ErrNoModel
	}
	if anfisWeight < 0 || anfisWeight > 1 {
		return nil, fmt.Errorf("%w: anfis weight %g outside [0, 1]", anfis.ErrInvalidConfig, anfisWeight)
	}
	return &Grader{model: model, extractor: extractor, transfer: transfer, anfisWeight: anfisWeight, logger: logger}, nil
}

// Grader returns a Grader over the pipeline's current model.
func (p *Pipeline) Grader(extractor Extractor, transfer TransferModel) (*Grader, error) {
	return NewGrader(p.state.Model, extractor, transfer, p.cfg.AnfisWeight, p.logger.Sublogger("grader"))
}

// GradeImage extracts features from image, classifies them and fuses the
// result with the transfer model when one is configured. A failing transfer
// model degrades to the ANFIS prediction alone.
func (g *Grader) GradeImage(ctx context.Context, image string) (*Grade, error) {
	if g.extractor == nil {
		return nil, fmt.Errorf("%w: no extractor configured", ErrExtractionFailed)
	}
	x, err := g.extractor.Extract(ctx, image)
	if err != nil {
		if errors.Is(err, ErrExtractionFailed) {
			return nil, fmt.Errorf("%s: %w", image, err)
		}
		return nil, fmt.Errorf("%w: %s: %w", ErrExtractionFailed, image, err)
	}
	grade, err := g.GradeFeatures(x)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", image, err)
	}
	grade.Image = image

	if g.transfer == nil {
		return grade, nil
	}
	probs, err := g.transfer.Predict(ctx, image)
	if err != nil {
		g.logger.Warnf("transfer model failed on %s, using ANFIS only: %v", image, err)
		return grade, nil
	}
	external := make([]float64, len(grade.ANFIS.Labels))
	for k, label := range grade.ANFIS.Labels {
		external[k] = probs[label]
	}
	fused, err := ensemble.Fuse(grade.ANFIS, external, g.anfisWeight)
	if err != nil {
		g.logger.Warnf("cannot fuse transfer output for %s, using ANFIS only: %v", image, err)
		return grade, nil
	}
	grade.Transfer = probs
	grade.Final = fused
	return grade, nil
}

// GradeFeatures classifies an already extracted feature vector.
func (g *Grader) GradeFeatures(x anfis.FeatureVector) (*Grade, error) {
	pred, err := g.model.Predict(x)
	if err != nil {
		return nil, err
	}
	return &Grade{Features: x, ANFIS: pred, Final: pred}, nil
}
