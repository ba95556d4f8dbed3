package anfis

import (
	"context"
	"math"
	"math/rand"

	"go.viam.com/rdk/logging"
)

// improvementEpsilon is the smallest validation MSE decrease counted as progress.
const improvementEpsilon = 1e-12

// Trainer fits networks with the hybrid learning rule: each epoch solves the
// consequents in closed form for fixed firing strengths, then takes one
// gradient step on the membership centers and widths.
type Trainer struct {
	cfg    TrainingConfig
	logger logging.Logger
}

// NewTrainer creates a Trainer. cfg is assumed valid (see TrainingConfig.Validate).
func NewTrainer(cfg TrainingConfig, logger logging.Logger) *Trainer {
	return &Trainer{cfg: cfg, logger: logger}
}

// batch is the validated, column-split form of a sample slice.
type batch struct {
	xs      [][]float64
	targets []float64
	weights []float64
}

func newBatch(samples []Sample, numInputs int) (batch, int) {
	var b batch
	skipped := 0
	for _, s := range samples {
		if err := s.Features.Validate(numInputs); err != nil {
			skipped++
			continue
		}
		w := s.Weight
		if w == 0 {
			w = 1
		}
		if w < 0 || math.IsNaN(w) || math.IsInf(w, 0) || math.IsNaN(s.Target) || math.IsInf(s.Target, 0) {
			skipped++
			continue
		}
		b.xs = append(b.xs, s.Features)
		b.targets = append(b.targets, s.Target)
		b.weights = append(b.weights, w)
	}
	return b, skipped
}

func (b batch) len() int { return len(b.xs) }

// Initialize places net's premises on clusters of the valid samples. With
// InitIterations == 0 the network keeps its grid initialization.
func (t *Trainer) Initialize(net *Network, samples []Sample) error {
	b, _ := newBatch(samples, net.numInputs)
	if b.len() == 0 {
		return ErrEmptyDataset
	}
	if t.cfg.InitIterations == 0 {
		return nil
	}
	//nolint:gosec
	rng := rand.New(rand.NewSource(t.cfg.Seed))
	net.initFromData(b.xs, t.cfg.InitIterations, t.cfg.MinWidth, rng)
	return nil
}

// Train fits net to train, stopping early on val (on train when val has no
// valid samples). Invalid samples are skipped and counted. On return net holds
// the parameters of the epoch with the lowest validation error.
func (t *Trainer) Train(ctx context.Context, net *Network, train, val []Sample) (*Result, error) {
	fit, skipped := newBatch(train, net.numInputs)
	hold, valSkipped := newBatch(val, net.numInputs)
	skipped += valSkipped
	if skipped > 0 {
		t.logger.Warnf("skipped %d invalid samples", skipped)
	}
	if fit.len() == 0 {
		return nil, ErrEmptyDataset
	}
	if hold.len() == 0 {
		hold = fit
	}

	res := &Result{State: StateInitialized, Skipped: skipped}
	if clamped := net.clampWidths(t.cfg.MinWidth); clamped > 0 {
		res.WidthClamps += clamped
		t.logger.Warnf("%v: clamped %d widths to %g before training", ErrDegenerateMembership, clamped, t.cfg.MinWidth)
	}

	traces := make([]*Trace, fit.len())
	for s := range traces {
		traces[s] = net.newTrace()
	}
	normalized := make([][]float64, fit.len())
	outputs := make([]float64, fit.len())

	lr := t.cfg.LearningRate
	best := net.Clone()
	bestVal := math.Inf(1)
	prevTrain := math.Inf(1)
	stale := 0

	for epoch := 1; epoch <= t.cfg.MaxEpochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		res.State = StateTraining
		stats := EpochStats{Epoch: epoch, LearningRate: lr}

		// Forward pass; normalized strengths are fixed for the consequent fit.
		if err := forwardAll(net, fit.xs, traces); err != nil {
			return res, err
		}
		for s, tr := range traces {
			normalized[s] = tr.Normalized
			outputs[s] = tr.Output
		}
		before := weightedMSE(outputs, fit.targets, fit.weights)

		theta, err := fitConsequents(fit.xs, fit.targets, fit.weights, normalized,
			net.numInputs, t.cfg.Ridge, t.cfg.RankTolerance)
		if err != nil {
			stats.SingularFit = true
			res.SingularFits++
			t.logger.Warnf("epoch %d: %v; keeping previous consequents", epoch, err)
		} else {
			prev := net.consequents
			net.consequents = theta
			for s, x := range fit.xs {
				outputs[s] = net.outputWith(x, normalized[s])
			}
			if after := weightedMSE(outputs, fit.targets, fit.weights); after > before {
				net.consequents = prev
				stats.LSERejected = true
			}
		}

		// Refresh the traces so the premise gradient sees the fitted consequents.
		if err := forwardAll(net, fit.xs, traces); err != nil {
			return res, err
		}
		for s, tr := range traces {
			outputs[s] = tr.Output
		}
		stats.TrainMSE = weightedMSE(outputs, fit.targets, fit.weights)

		stats.WidthClamps = t.premiseStep(net, fit, traces, lr)
		if stats.WidthClamps > 0 {
			res.WidthClamps += stats.WidthClamps
			t.logger.Warnf("epoch %d: %v: clamped %d widths to %g",
				epoch, ErrDegenerateMembership, stats.WidthClamps, t.cfg.MinWidth)
		}

		valMSE, err := networkMSE(net, hold)
		if err != nil {
			return res, err
		}
		stats.ValMSE = valMSE
		res.History = append(res.History, stats)
		res.Epochs = epoch

		if valMSE < bestVal-improvementEpsilon {
			bestVal = valMSE
			best = net.Clone()
			res.BestEpoch = epoch
			stale = 0
		} else {
			stale++
		}

		switch {
		case stats.TrainMSE < prevTrain:
			lr = math.Min(lr*t.cfg.LRIncrease, t.cfg.MaxLearningRate)
		case stats.TrainMSE > prevTrain:
			lr = math.Max(lr*t.cfg.LRDecrease, t.cfg.MinLearningRate)
		}
		prevTrain = stats.TrainMSE

		if epoch%50 == 0 {
			t.logger.Debugf("epoch %d: train MSE %.5f, val MSE %.5f, lr %.4g", epoch, stats.TrainMSE, valMSE, lr)
		}
		if valMSE <= t.cfg.Tolerance {
			res.State = StateConverged
			break
		}
		if stale >= t.cfg.Patience {
			res.State = StateEarlyStopped
			break
		}
	}
	if !res.State.Terminal() {
		res.State = StateMaxEpochsReached
	}

	net.restore(best)
	res.BestValMSE = bestVal
	finalTrain, err := networkMSE(net, fit)
	if err != nil {
		return res, err
	}
	res.FinalTrainMSE = finalTrain

	t.logger.Infof("%s after %d epochs (best epoch %d): train MSE %.5f, val MSE %.5f",
		res.State, res.Epochs, res.BestEpoch, res.FinalTrainMSE, res.BestValMSE)
	return res, nil
}

// premiseStep applies one gradient-descent step to every center and width,
// backpropagating the weighted squared error through the fixed consequents.
// It returns the number of widths clamped to MinWidth.
func (t *Trainer) premiseStep(net *Network, b batch, traces []*Trace, lr float64) int {
	gradC := newMatrix(net.numRules, net.numInputs)
	gradW := newMatrix(net.numRules, net.numInputs)

	var wsum float64
	for _, w := range b.weights {
		wsum += w
	}

	for s, tr := range traces {
		if tr.Uniform {
			// The uniform fallback does not depend on the premises.
			continue
		}
		g := 2 * b.weights[s] * (tr.Output - b.targets[s]) / wsum
		x := b.xs[s]
		for r := 0; r < net.numRules; r++ {
			if tr.Strengths[r] == 0 {
				continue
			}
			// dOutput/dStrength_r = (f_r - output) / total.
			dOut := (tr.Consequents[r] - tr.Output) / tr.Total
			argmin := -1
			if net.norm == NormMin {
				argmin = minIndex(tr.Memberships[r])
			}
			for i := 0; i < net.numInputs; i++ {
				if argmin >= 0 && i != argmin {
					continue
				}
				// Under both norms the strength scales like the membership of input i,
				// so dStrength/dParam is the Gaussian derivative with mu replaced by the strength.
				dc, dw := gaussianGrad(x[i], net.centers[r][i], net.widths[r][i], tr.Strengths[r])
				gradC[r][i] += g * dOut * dc
				gradW[r][i] += g * dOut * dw
			}
		}
	}

	for r := 0; r < net.numRules; r++ {
		for i := 0; i < net.numInputs; i++ {
			net.centers[r][i] -= lr * gradC[r][i]
			net.widths[r][i] -= lr * gradW[r][i]
		}
	}
	return net.clampWidths(t.cfg.MinWidth)
}

func minIndex(v []float64) int {
	idx := 0
	for i, x := range v {
		if x < v[idx] {
			idx = i
		}
	}
	return idx
}

func forwardAll(net *Network, xs [][]float64, traces []*Trace) error {
	for s, x := range xs {
		if err := net.forward(x, traces[s]); err != nil {
			return err
		}
	}
	return nil
}

func networkMSE(net *Network, b batch) (float64, error) {
	tr := net.newTrace()
	outputs := make([]float64, b.len())
	for s, x := range b.xs {
		if err := net.forward(x, tr); err != nil {
			return 0, err
		}
		outputs[s] = tr.Output
	}
	return weightedMSE(outputs, b.targets, b.weights), nil
}
