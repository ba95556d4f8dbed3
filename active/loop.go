package active

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.viam.com/rdk/logging"

	"github.com/biotinker/peppergrade/anfis"
	"github.com/biotinker/peppergrade/ensemble"
)

// f1Epsilon is the smallest F1 change counted as an improvement or regression.
const f1Epsilon = 1e-9

// State is the active-learning loop's lifecycle state.
type State int

const (
	StateSeedTrained State = iota
	StateEvaluating
	StateAugmenting
	StateRetraining
	StateTargetMet
	StateIterationLimitReached
	StateStalled // Every class needing samples is non-convergent, or nothing is queued
)

func (s State) String() string {
	switch s {
	case StateSeedTrained:
		return "seed_trained"
	case StateEvaluating:
		return "evaluating"
	case StateAugmenting:
		return "augmenting"
	case StateRetraining:
		return "retraining"
	case StateTargetMet:
		return "target_met"
	case StateIterationLimitReached:
		return "iteration_limit_reached"
	case StateStalled:
		return "stalled"
	default:
		return "unknown"
	}
}

// Generator produces additional labeled samples resembling a class.
type Generator interface {
	Generate(ctx context.Context, label string, n int) ([]ensemble.Example, error)
}

// TargetedGenerator can also generate samples near given feature vectors.
type TargetedGenerator interface {
	Generator
	GenerateNear(ctx context.Context, label string, anchors []anfis.FeatureVector, n int) ([]ensemble.Example, error)
}

// ClassStatus tracks one class across iterations.
type ClassStatus struct {
	Label         string
	F1            float64
	Stale         int // Consecutive rounds without F1 improvement
	Retrained     int
	Rollbacks     int
	NonConvergent bool
	Err           error // Wraps ErrNonConvergentClass once NonConvergent
}

// Iteration records one evaluate/augment/retrain cycle.
type Iteration struct {
	Number          int
	Queued          int
	FlaggedFraction float64 // Share of the evaluation set inside the uncertainty band
	Fallback        bool    // Queue held misclassified samples instead of in-band ones
	Targets         []string
	Requested       int
	Generated       int      // Samples accepted into the training set
	Rejected        int      // Samples with invalid features or unknown labels
	Unsupported     []string // Targets the generator failed to produce samples for
	RolledBack      []string
	Accuracy        float64 // Metrics of the snapshot this iteration produced
	MacroF1         float64
	MaxFPR          float64
	Snapshot        uuid.UUID
}

// Report is the outcome of a Run.
type Report struct {
	State           State
	Iterations      []Iteration
	Classes         []ClassStatus
	Final           *ensemble.Ensemble
	FinalEvaluation *ensemble.Evaluation
	TrainingSet     []ensemble.Example // Seed training set plus every accepted generated sample
}

// NonConvergent returns the labels of non-convergent classes.
func (r *Report) NonConvergent() []string {
	var out []string
	for _, c := range r.Classes {
		if c.NonConvergent {
			out = append(out, c.Label)
		}
	}
	return out
}

// Loop runs active learning around an orchestrator.
type Loop struct {
	cfg     Config
	orch    *ensemble.Orchestrator
	gen     Generator
	history *ensemble.History
	logger  logging.Logger
}

// NewLoop creates a Loop. A nil cfg uses DefaultConfig.
func NewLoop(orch *ensemble.Orchestrator, gen Generator, cfg *Config, logger logging.Logger) (*Loop, error) {
	if gen == nil {
		return nil, ErrNilGenerator
	}
	if cfg == nil {
		c := DefaultConfig()
		cfg = &c
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Loop{cfg: *cfg, orch: orch, gen: gen, history: ensemble.NewHistory(), logger: logger}, nil
}

// History returns every snapshot the loop has committed.
func (l *Loop) History() *ensemble.History { return l.history }

// Run improves seed until the targets are met, the iteration cap is reached
// or no class can be augmented further. train is the seed's training set and
// eval the held-out set used for queueing and metrics.
func (l *Loop) Run(ctx context.Context, seed *ensemble.Ensemble, train, eval []ensemble.Example) (*Report, error) {
	if err := l.history.Commit(seed); err != nil && !errors.Is(err, ensemble.ErrDuplicateSnapshot) {
		return nil, err
	}
	labels := seed.Labels()
	status := make(map[string]*ClassStatus, len(labels))
	report := &Report{State: StateSeedTrained}

	current := seed
	ev, err := ensemble.Evaluate(current, eval)
	if err != nil {
		return nil, fmt.Errorf("evaluating seed: %w", err)
	}
	for _, label := range labels {
		m, _ := ev.Class(label)
		status[label] = &ClassStatus{Label: label, F1: m.F1}
	}
	trainSet := append([]ensemble.Example(nil), train...)
	l.logger.Infof("seed snapshot %s: macro F1 %.3f, max FPR %.3f", seed.ID, ev.MacroF1, ev.MaxFPR)

	report.State = StateIterationLimitReached
	for iter := 1; iter <= l.cfg.MaxIterations; iter++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if l.targetMet(ev) {
			report.State = StateTargetMet
			break
		}

		l.logger.Debugf("iteration %d: %s", iter, StateEvaluating)
		q := BuildQueue(ev, eval, l.cfg.BandLow, l.cfg.BandHigh)
		it := Iteration{Number: iter, Queued: q.Len(), FlaggedFraction: q.FlaggedFraction(), Fallback: q.Fallback}

		counts := q.ClassCounts()
		for label := range counts {
			if status[label].NonConvergent {
				delete(counts, label)
			}
		}
		if len(counts) == 0 {
			l.logger.Warnf("iteration %d: nothing left to augment (%d queued)", iter, q.Len())
			report.State = StateStalled
			break
		}
		targets, quotas := allocate(counts, l.cfg.SamplesPerIteration)
		it.Targets = targets

		l.logger.Debugf("iteration %d: %s %v", iter, StateAugmenting, targets)
		accepted, err := l.augment(ctx, q, targets, quotas, &it)
		if err != nil {
			return nil, err
		}
		trainSet = append(trainSet, accepted...)

		next, nextEv := current, ev
		if len(accepted) > 0 {
			l.logger.Debugf("iteration %d: %s on %d examples", iter, StateRetraining, len(trainSet))
			if next, _, err = l.orch.Retrain(ctx, current, trainSet, targets); err != nil {
				return nil, fmt.Errorf("iteration %d: %w", iter, err)
			}
			if nextEv, err = ensemble.Evaluate(next, eval); err != nil {
				return nil, fmt.Errorf("iteration %d: %w", iter, err)
			}
		} else {
			l.logger.Warnf("iteration %d: generator produced no usable samples", iter)
		}

		var regressed []string
		for _, label := range targets {
			st := status[label]
			m, _ := nextEv.Class(label)
			if len(accepted) > 0 {
				st.Retrained++
			}
			switch {
			case m.F1 > st.F1+f1Epsilon:
				st.Stale = 0
			case m.F1 < st.F1-f1Epsilon && l.cfg.Rollback:
				regressed = append(regressed, label)
				st.Stale++
			default:
				st.Stale++
			}
			if st.Stale >= l.cfg.MaxStaleRounds && !st.NonConvergent {
				st.NonConvergent = true
				st.Err = fmt.Errorf("%w: %q after %d rounds without F1 improvement", ErrNonConvergentClass, label, st.Stale)
				l.logger.Warnf("%v", st.Err)
			}
		}

		if len(regressed) > 0 {
			// The retrained snapshot is the rollback's parent.
			if err := l.history.Commit(next); err != nil {
				return nil, err
			}
			if next, err = next.Rollback(current, regressed); err != nil {
				return nil, err
			}
			if nextEv, err = ensemble.Evaluate(next, eval); err != nil {
				return nil, fmt.Errorf("iteration %d: %w", iter, err)
			}
			for _, label := range regressed {
				status[label].Rollbacks++
			}
			it.RolledBack = regressed
			l.logger.Infof("iteration %d: rolled back %v", iter, regressed)
		}
		for _, label := range labels {
			m, _ := nextEv.Class(label)
			status[label].F1 = m.F1
		}

		if next != current {
			if err := l.history.Commit(next); err != nil {
				return nil, err
			}
		}
		current, ev = next, nextEv
		it.Accuracy, it.MacroF1, it.MaxFPR, it.Snapshot = ev.Accuracy, ev.MacroF1, ev.MaxFPR, current.ID
		report.Iterations = append(report.Iterations, it)
		l.logger.Infof("iteration %d: queued %d (%.1f%% in band), generated %d, macro F1 %.3f, max FPR %.3f",
			iter, it.Queued, 100*it.FlaggedFraction, it.Generated, ev.MacroF1, ev.MaxFPR)
	}
	if report.State == StateIterationLimitReached && l.targetMet(ev) {
		report.State = StateTargetMet
	}

	for _, label := range labels {
		report.Classes = append(report.Classes, *status[label])
	}
	report.Final = current
	report.FinalEvaluation = ev
	report.TrainingSet = trainSet
	l.logger.Infof("active learning %s after %d iterations: macro F1 %.3f, max FPR %.3f",
		report.State, len(report.Iterations), ev.MacroF1, ev.MaxFPR)
	return report, nil
}

func (l *Loop) targetMet(ev *ensemble.Evaluation) bool {
	return ev.MacroF1 >= l.cfg.TargetF1 && ev.MaxFPR <= l.cfg.MaxFPR
}

// augment requests quotas[label] samples for every target and returns the valid ones.
func (l *Loop) augment(ctx context.Context, q *Queue, targets []string, quotas map[string]int, it *Iteration) ([]ensemble.Example, error) {
	numInputs := l.orch.Config().Network.NumInputs
	tg, targeted := l.gen.(TargetedGenerator)

	var accepted []ensemble.Example
	for _, label := range targets {
		n := quotas[label]
		it.Requested += n

		var (
			generated []ensemble.Example
			err       error
		)
		if anchors := q.Anchors(label); targeted && l.cfg.UseAnchors && len(anchors) > 0 {
			generated, err = tg.GenerateNear(ctx, label, anchors, n)
		} else {
			generated, err = l.gen.Generate(ctx, label, n)
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			l.logger.Warnf("no samples for %q: %v", label, err)
			it.Unsupported = append(it.Unsupported, label)
			continue
		}

		for _, ex := range generated {
			if _, err := l.orch.Labels().Index(ex.Label); err != nil {
				it.Rejected++
				continue
			}
			if err := ex.Features.Validate(numInputs); err != nil {
				it.Rejected++
				continue
			}
			accepted = append(accepted, ex)
		}
	}
	it.Generated = len(accepted)
	if it.Rejected > 0 {
		l.logger.Warnf("%v: rejected %d generated samples", anfis.ErrInvalidFeatureVector, it.Rejected)
	}
	return accepted, nil
}
