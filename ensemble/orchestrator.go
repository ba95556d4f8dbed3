package ensemble

import (
	"context"
	"fmt"
	"math/rand"
	"runtime"

	"go.viam.com/rdk/logging"
	"golang.org/x/sync/errgroup"

	"github.com/biotinker/peppergrade/anfis"
)

// Orchestrator trains one ANFIS network per class label.
type Orchestrator struct {
	labels Labels
	cfg    Config
	logger logging.Logger
}

// ClassReport summarizes one binary sub-problem's training run.
type ClassReport struct {
	Label     string
	Positives int
	Negatives int
	Result    *anfis.Result
}

// TrainReport summarizes a Train or Retrain call.
type TrainReport struct {
	Classes []ClassReport // Only the classes that were trained
	Skipped int           // Examples with invalid feature vectors
}

// NewOrchestrator creates an Orchestrator for a fixed label set.
// A nil cfg uses DefaultConfig.
func NewOrchestrator(labels []string, cfg *Config, logger logging.Logger) (*Orchestrator, error) {
	if cfg == nil {
		c := DefaultConfig()
		cfg = &c
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	ls, err := NewLabels(labels)
	if err != nil {
		return nil, err
	}
	return &Orchestrator{labels: ls, cfg: *cfg, logger: logger}, nil
}

// Labels returns the ordered label set.
func (o *Orchestrator) Labels() Labels { return o.labels }

// Config returns the orchestrator's configuration.
func (o *Orchestrator) Config() Config { return o.cfg }

// Train fits the scaler and every class network from scratch.
func (o *Orchestrator) Train(ctx context.Context, examples []Example) (*Ensemble, *TrainReport, error) {
	valid, targets, skipped, err := o.prepare(examples)
	if err != nil {
		return nil, nil, err
	}

	xs := make([]anfis.FeatureVector, len(valid))
	for i, ex := range valid {
		xs[i] = ex.Features
	}
	scaler, err := FitScaler(xs)
	if err != nil {
		return nil, nil, err
	}

	all := make([]int, len(o.labels))
	for k := range all {
		all[k] = k
	}
	networks := make([]*anfis.Network, len(o.labels))
	report, err := o.trainClasses(ctx, scaler, valid, targets, all, networks, o.cfg.Seed)
	if err != nil {
		return nil, nil, err
	}
	report.Skipped = skipped

	e := newSnapshot(nil, o.labels, scaler, o.cfg.Combination, networks)
	o.logger.Infof("trained %d classes on %d examples (snapshot %s)", len(o.labels), len(valid), e.ID)
	return e, report, nil
}

// Retrain warm-starts the networks of classes from parent and trains them on
// examples, returning a new snapshot. The other classes keep parent's networks
// and the scaler is reused so old and new networks see the same inputs.
func (o *Orchestrator) Retrain(ctx context.Context, parent *Ensemble, examples []Example, classes []string) (*Ensemble, *TrainReport, error) {
	if !sameLabels(parent.labels, o.labels) {
		return nil, nil, fmt.Errorf("%w: snapshot labels %v, orchestrator labels %v", ErrInvalidLabels, parent.labels, o.labels)
	}
	if parent.NumInputs() != o.cfg.Network.NumInputs || parent.NumRules() != o.cfg.Network.NumRules {
		return nil, nil, fmt.Errorf("%w: snapshot is %dx%d, configured %dx%d", ErrArtifactLoadMismatch,
			parent.NumRules(), parent.NumInputs(), o.cfg.Network.NumRules, o.cfg.Network.NumInputs)
	}
	idx, err := o.labels.Indices(classes)
	if err != nil {
		return nil, nil, err
	}
	valid, targets, skipped, err := o.prepare(examples)
	if err != nil {
		return nil, nil, err
	}

	networks := append([]*anfis.Network(nil), parent.networks...)
	for _, k := range idx {
		networks[k] = parent.networks[k].Clone()
	}
	report, err := o.trainClasses(ctx, parent.scaler, valid, targets, idx, networks, o.cfg.Seed+int64(parent.Version))
	if err != nil {
		return nil, nil, err
	}
	report.Skipped = skipped

	e := newSnapshot(parent, o.labels, parent.scaler, parent.combination, networks)
	o.logger.Infof("retrained %v on %d examples (snapshot %s, version %d)", classes, len(valid), e.ID, e.Version)
	return e, report, nil
}

// prepare drops examples with invalid feature vectors and resolves labels to class indices.
func (o *Orchestrator) prepare(examples []Example) ([]Example, []int, int, error) {
	valid := make([]Example, 0, len(examples))
	targets := make([]int, 0, len(examples))
	skipped := 0
	for _, ex := range examples {
		k, err := o.labels.Index(ex.Label)
		if err != nil {
			return nil, nil, 0, err
		}
		if err := ex.Features.Validate(o.cfg.Network.NumInputs); err != nil {
			skipped++
			continue
		}
		valid = append(valid, ex)
		targets = append(targets, k)
	}
	if skipped > 0 {
		o.logger.Warnf("%v: skipped %d examples", anfis.ErrInvalidFeatureVector, skipped)
	}
	if len(valid) == 0 {
		return nil, nil, skipped, anfis.ErrEmptyDataset
	}
	return valid, targets, skipped, nil
}

// trainClasses trains the sub-problems in idx in parallel. networks[k] is
// trained in place when non-nil (warm start) and created fresh otherwise.
func (o *Orchestrator) trainClasses(
	ctx context.Context,
	scaler *Scaler,
	examples []Example,
	targets []int,
	idx []int,
	networks []*anfis.Network,
	seed int64,
) (*TrainReport, error) {
	scaled := make([]anfis.FeatureVector, len(examples))
	labels := make([]string, len(examples))
	for i, ex := range examples {
		scaled[i] = scaler.Transform(ex.Features)
		labels[i] = ex.Label
	}
	//nolint:gosec
	rng := rand.New(rand.NewSource(seed))
	trainRows, valRows := splitIndices(labels, o.cfg.ValidationFraction, rng)

	workers := o.cfg.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	reports := make([]ClassReport, len(idx))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for j, k := range idx {
		j, k := j, k
		g.Go(func() error {
			train, pos, neg := o.binarySamples(scaled, targets, trainRows, k)
			val, _, _ := o.binarySamples(scaled, targets, valRows, k)
			if pos == 0 {
				o.logger.Warnf("class %q has no positive training examples", o.labels[k])
			}

			tcfg := o.cfg.Network.Training
			tcfg.Seed += int64(k)
			trainer := anfis.NewTrainer(tcfg, o.logger.Sublogger(o.labels[k]))

			net := networks[k]
			if net == nil {
				var err error
				if net, err = anfis.NewNetwork(o.cfg.Network); err != nil {
					return err
				}
				if err := trainer.Initialize(net, train); err != nil {
					return fmt.Errorf("class %q: %w", o.labels[k], err)
				}
			}
			res, err := trainer.Train(gctx, net, train, val)
			if err != nil {
				return fmt.Errorf("class %q: %w", o.labels[k], err)
			}
			networks[k] = net
			reports[j] = ClassReport{Label: o.labels[k], Positives: pos, Negatives: neg, Result: res}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &TrainReport{Classes: reports}, nil
}

// binarySamples builds class k's one-vs-all samples from the given rows. With
// BalanceClasses each side's weights sum to half the row count.
func (o *Orchestrator) binarySamples(scaled []anfis.FeatureVector, targets, rows []int, k int) ([]anfis.Sample, int, int) {
	pos := 0
	for _, row := range rows {
		if targets[row] == k {
			pos++
		}
	}
	neg := len(rows) - pos

	posWeight, negWeight := 1.0, 1.0
	if o.cfg.BalanceClasses && pos > 0 && neg > 0 {
		m := float64(len(rows))
		posWeight = m / (2 * float64(pos))
		negWeight = m / (2 * float64(neg))
	}

	samples := make([]anfis.Sample, len(rows))
	for i, row := range rows {
		samples[i] = anfis.Sample{Features: scaled[row], Target: 0, Weight: negWeight}
		if targets[row] == k {
			samples[i].Target = 1
			samples[i].Weight = posWeight
		}
	}
	return samples, pos, neg
}
