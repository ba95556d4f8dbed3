package peppergrade

import (
	"context"
	"errors"
	"fmt"

	"github.com/biotinker/peppergrade/active"
	"github.com/biotinker/peppergrade/ensemble"
	"github.com/biotinker/peppergrade/internal/dataset"
	"github.com/biotinker/peppergrade/synth"
)

// Step is one named stage of the pipeline.
type Step struct {
	Name string
	Fn   func(context.Context, *Pipeline) error
}

// TrainSteps trains a seed ensemble without active learning.
var TrainSteps = []Step{
	{"LoadData", LoadData},
	{"MixSynthetic", MixSynthetic},
	{"TrainSeed", TrainSeed},
	{"Evaluate", Evaluate},
	{"SaveModel", SaveModel},
}

// FullSteps is the complete load → train → active learning → evaluate → save cycle.
var FullSteps = []Step{
	{"LoadData", LoadData},
	{"MixSynthetic", MixSynthetic},
	{"TrainSeed", TrainSeed},
	{"ActiveLearning", ActiveLearning},
	{"Evaluate", Evaluate},
	{"SaveModel", SaveModel},
}

// Run executes FullSteps.
func Run(ctx context.Context, p *Pipeline) error {
	return RunSteps(ctx, p, FullSteps)
}

// RunSteps resets the pipeline state and executes steps in order.
func RunSteps(ctx context.Context, p *Pipeline, steps []Step) error {
	if err := p.resetState(); err != nil {
		return err
	}
	for _, step := range steps {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		p.logger.Infof("=== %s ===", step.Name)
		if err := step.Fn(ctx, p); err != nil {
			return fmt.Errorf("%s: %w", step.Name, err)
		}
	}
	return nil
}

// LoadData reads the training set, or generates one when no path is
// configured, and splits it into train, validation and test sets.
func LoadData(ctx context.Context, p *Pipeline) error {
	d := p.cfg.Data
	var all []ensemble.Example
	if d.Train == "" {
		labels := p.cfg.Labels
		if len(labels) == 0 {
			labels = p.generator.Labels()
		}
		for _, label := range labels {
			exs, err := p.generator.Generate(ctx, label, d.SyntheticPerClass)
			if err != nil {
				return err
			}
			all = append(all, exs...)
		}
		p.state.SyntheticOnly = true
		p.logger.Infof("no training data configured; generated %d synthetic examples", len(all))
	} else {
		var err error
		if all, err = dataset.Load(d.Train); err != nil {
			return err
		}
		p.logger.Infof("loaded %d examples from %s", len(all), d.Train)
	}

	labels := p.cfg.Labels
	if len(labels) == 0 {
		for label := range ensemble.Counts(all) {
			labels = append(labels, label)
		}
	}
	orch, err := ensemble.NewOrchestrator(labels, &p.cfg.Ensemble, p.logger.Sublogger("ensemble"))
	if err != nil {
		return err
	}
	p.orch = orch

	rest, test := all, []ensemble.Example(nil)
	if d.Test != "" {
		if test, err = dataset.Load(d.Test); err != nil {
			return err
		}
	} else {
		rest, test = ensemble.StratifiedSplit(all, d.TestFraction, p.rng)
	}
	train, val := ensemble.StratifiedSplit(rest, d.ValidationFraction, p.rng)

	p.state.Train, p.state.Validation, p.state.Test = train, val, test
	if p.state.SyntheticOnly {
		p.state.SyntheticExamples = len(train)
	} else {
		p.state.RealExamples = len(train)
	}
	p.logger.Infof("labels %v: %d train, %d validation, %d test", orch.Labels(), len(train), len(val), len(test))
	return nil
}

// MixSynthetic adds synthetic examples to the training set until real
// examples make up data.real_ratio of it. Profiles are refit to the real
// training data first when synth.fit is set. Labels without a profile get no
// synthetic examples.
func MixSynthetic(ctx context.Context, p *Pipeline) error {
	if p.orch == nil {
		return ErrNoData
	}
	d := p.cfg.Data
	if p.state.SyntheticOnly || d.RealRatio >= 1 || d.SyntheticPerClass == 0 {
		p.logger.Info("synthetic mixing disabled")
		return nil
	}

	if p.cfg.Synth.Fit {
		profiles, err := synth.FitProfiles(p.state.Train, p.generator.Profiles())
		switch {
		case errors.Is(err, synth.ErrInsufficientData):
			p.logger.Warnf("keeping configured profiles: %v", err)
		case err != nil:
			return err
		default:
			cfg := p.cfg.Synth
			cfg.Profiles = profiles
			gen, err := synth.NewGenerator(&cfg, p.logger.Sublogger("synth"))
			if err != nil {
				return err
			}
			p.generator = gen
			p.logger.Infof("fitted %d synthetic profiles to the training data", len(profiles))
		}
	}

	var pool []ensemble.Example
	for _, label := range p.orch.Labels() {
		if _, ok := p.generator.Profile(label); !ok {
			p.logger.Warnf("%v: %q gets no synthetic examples", synth.ErrUnknownProfile, label)
			continue
		}
		exs, err := p.generator.Generate(ctx, label, d.SyntheticPerClass)
		if err != nil {
			return err
		}
		pool = append(pool, exs...)
	}
	mixed, err := dataset.Mix(p.state.Train, pool, d.RealRatio, p.rng)
	if err != nil {
		return err
	}
	p.state.SyntheticExamples = len(mixed) - len(p.state.Train)
	p.state.Train = mixed
	p.logger.Infof("training set: %d real + %d synthetic examples", p.state.RealExamples, p.state.SyntheticExamples)
	return nil
}

// TrainSeed trains every class network on the training set.
func TrainSeed(ctx context.Context, p *Pipeline) error {
	if p.orch == nil {
		return ErrNoData
	}
	seed, report, err := p.orch.Train(ctx, p.state.Train)
	if err != nil {
		return err
	}
	for _, c := range report.Classes {
		p.logger.Infof("  %s: %s after %d epochs (best %d, val MSE %.4f), %d+/%d-",
			c.Label, c.Result.State, c.Result.Epochs, c.Result.BestEpoch, c.Result.BestValMSE, c.Positives, c.Negatives)
	}
	p.state.Seed = seed
	p.state.SeedReport = report
	p.state.Model = seed
	p.state.History = ensemble.NewHistory()
	return p.state.History.Commit(seed)
}

// ActiveLearning improves the seed ensemble with targeted synthetic samples,
// scoring each round on the validation set.
func ActiveLearning(ctx context.Context, p *Pipeline) error {
	if p.state.Seed == nil {
		return ErrNoModel
	}
	if p.cfg.Active.MaxIterations == 0 {
		p.logger.Info("active learning disabled")
		return nil
	}
	loop, err := active.NewLoop(p.orch, p.generator, &p.cfg.Active, p.logger.Sublogger("active"))
	if err != nil {
		return err
	}
	report, err := loop.Run(ctx, p.state.Seed, p.state.Train, p.state.Validation)
	if err != nil {
		return err
	}
	p.state.Active = report
	p.state.Model = report.Final
	p.state.History = loop.History()
	if p.cfg.KeepSnapshots > 0 {
		if n := p.state.History.Prune(p.cfg.KeepSnapshots); n > 0 {
			p.logger.Debugf("pruned %d snapshots", n)
		}
	}
	if nc := report.NonConvergent(); len(nc) > 0 {
		p.logger.Warnf("classes without further improvement: %v", nc)
	}
	return nil
}

// Evaluate scores the model on the test set and, when lighting factors are
// configured, under simulated brightness changes.
func Evaluate(ctx context.Context, p *Pipeline) error {
	if p.state.Model == nil {
		return ErrNoModel
	}
	if len(p.state.Test) == 0 {
		return fmt.Errorf("%w: empty test set", ErrNoData)
	}
	ev, err := ensemble.Evaluate(p.state.Model, p.state.Test)
	if err != nil {
		return err
	}
	p.state.Evaluation = ev
	p.logger.Infof("test accuracy %.3f, macro F1 %.3f, max FPR %.3f (%d examples, %d skipped)",
		ev.Accuracy, ev.MacroF1, ev.MaxFPR, ev.Total, ev.Skipped)
	for _, c := range ev.Classes {
		p.logger.Infof("  %s: precision %.3f recall %.3f F1 %.3f (support %d)", c.Label, c.Precision, c.Recall, c.F1, c.Support)
	}

	if len(p.cfg.LightingFactors) > 0 {
		if p.state.Lighting, err = ensemble.LightingRobustness(p.state.Model, p.state.Test, p.cfg.LightingFactors); err != nil {
			return err
		}
		for _, l := range p.state.Lighting {
			p.logger.Debugf("  lighting x%.2f: accuracy %.3f", l.Factor, l.Accuracy)
		}
	}
	if len(p.cfg.RotationAngles) > 0 {
		if p.state.Rotation, err = ensemble.RotationRobustness(p.state.Model, p.state.Test, p.cfg.RotationAngles); err != nil {
			return err
		}
		for _, r := range p.state.Rotation {
			p.logger.Debugf("  rotation %+.1f deg: accuracy %.3f", r.Angle, r.Accuracy)
		}
	}
	return nil
}

// SaveModel writes the model to data.artifact. An empty path skips saving.
func SaveModel(ctx context.Context, p *Pipeline) error {
	if p.state.Model == nil {
		return ErrNoModel
	}
	path := p.cfg.Data.Artifact
	if path == "" {
		p.logger.Info("no artifact path configured; model not saved")
		return nil
	}
	if err := ensemble.SaveFile(path, p.state.Model); err != nil {
		return err
	}
	p.state.ArtifactPath = path
	p.logger.Infof("saved model %s (version %d) to %s", p.state.Model.ID, p.state.Model.Version, path)
	return nil
}
