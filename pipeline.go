// Package peppergrade grades bell peppers from image feature vectors with a
// one-vs-all ANFIS ensemble improved by active learning.
package peppergrade

import (
	"math/rand"

	"go.viam.com/rdk/logging"

	"github.com/biotinker/peppergrade/active"
	"github.com/biotinker/peppergrade/ensemble"
	"github.com/biotinker/peppergrade/synth"
)

// Pipeline holds the components and state of a grading pipeline run.
type Pipeline struct {
	cfg    Config
	logger logging.Logger

	// Synthetic sample source for mixing and active learning.
	generator *synth.Generator

	// Set once the label set is known.
	orch *ensemble.Orchestrator

	// Deterministic source for splits and mixing.
	rng *rand.Rand

	state *PipelineState
}

// PipelineState tracks the data and models produced by the pipeline steps.
type PipelineState struct {
	// Seed training set (possibly mixed with synthetic examples), the
	// active-learning validation set and the held-out test set.
	Train      []ensemble.Example
	Validation []ensemble.Example
	Test       []ensemble.Example

	// Example counts of Train by origin.
	RealExamples      int
	SyntheticExamples int

	// Whether Train came from the generator instead of a file.
	SyntheticOnly bool

	Seed       *ensemble.Ensemble
	SeedReport *ensemble.TrainReport

	// Active-learning outcome; nil when the step was skipped.
	Active  *active.Report
	History *ensemble.History

	// Model is the ensemble the final steps evaluate and save.
	Model      *ensemble.Ensemble
	Evaluation *ensemble.Evaluation
	Lighting   []ensemble.LightingResult
	Rotation   []ensemble.RotationResult

	// Where Model was written, if it was.
	ArtifactPath string
}

// NewPipeline validates cfg and creates the synthetic generator.
// A nil cfg uses DefaultConfig.
func NewPipeline(cfg *Config, logger logging.Logger) (*Pipeline, error) {
	if cfg == nil {
		c := DefaultConfig()
		cfg = &c
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	p := &Pipeline{
		cfg:    *cfg,
		logger: logger,
		state:  &PipelineState{},
	}
	if err := p.resetState(); err != nil {
		return nil, err
	}
	return p, nil
}

// Config returns the pipeline configuration.
func (p *Pipeline) Config() Config { return p.cfg }

// State returns the state of the current run.
func (p *Pipeline) State() *PipelineState { return p.state }

// Generator returns the synthetic sample generator in use.
func (p *Pipeline) Generator() *synth.Generator { return p.generator }

// Orchestrator returns the ensemble trainer, or nil before LoadData.
func (p *Pipeline) Orchestrator() *ensemble.Orchestrator { return p.orch }

// Model returns the current model: the active-learning result when there is
// one, otherwise the seed ensemble.
func (p *Pipeline) Model() *ensemble.Ensemble { return p.state.Model }

// resetState clears all per-run state, reseeds the random source and
// rebuilds the generator from the configured profiles.
func (p *Pipeline) resetState() error {
	gen, err := synth.NewGenerator(&p.cfg.Synth, p.logger.Sublogger("synth"))
	if err != nil {
		return err
	}
	*p.state = PipelineState{}
	p.generator = gen
	p.orch = nil
	//nolint:gosec
	p.rng = rand.New(rand.NewSource(p.cfg.Data.Seed))
	return nil
}
