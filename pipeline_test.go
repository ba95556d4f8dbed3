package peppergrade

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"go.viam.com/rdk/logging"

	"github.com/biotinker/peppergrade/anfis"
	"github.com/biotinker/peppergrade/ensemble"
	"github.com/biotinker/peppergrade/internal/dataset"
	"github.com/biotinker/peppergrade/synth"
)

// testConfig returns a small, fast configuration over two well separated grades.
func testConfig(t *testing.T) Config {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Labels = []string{synth.LabelRipe, synth.LabelUnripe}
	cfg.Data.Artifact = filepath.Join(t.TempDir(), "model.json.zst")
	cfg.Data.SyntheticPerClass = 60
	cfg.Ensemble.Network.NumRules = 3
	cfg.Ensemble.Network.Training.MaxEpochs = 40
	cfg.Ensemble.Network.Training.Patience = 10
	cfg.Active.MaxIterations = 2
	cfg.Active.SamplesPerIteration = 20
	cfg.LightingFactors = []float64{0.8, 1.2}
	cfg.RotationAngles = []float64{-15, 15}
	return cfg
}

func TestRunSyntheticOnly(t *testing.T) {
	cfg := testConfig(t)
	p, err := NewPipeline(&cfg, logging.NewTestLogger(t))
	if err != nil {
		t.Fatal(err)
	}
	if err := Run(context.Background(), p); err != nil {
		t.Fatal(err)
	}

	st := p.State()
	if !st.SyntheticOnly || st.RealExamples != 0 || st.SyntheticExamples != len(st.Train) {
		t.Errorf("unexpected example accounting: real %d, synthetic %d, train %d",
			st.RealExamples, st.SyntheticExamples, len(st.Train))
	}
	if len(st.Train) == 0 || len(st.Validation) == 0 || len(st.Test) == 0 {
		t.Fatalf("empty split: %d/%d/%d", len(st.Train), len(st.Validation), len(st.Test))
	}
	if st.Seed == nil || st.Active == nil || st.Model != st.Active.Final {
		t.Fatal("seed or active-learning result missing")
	}
	if st.History == nil || st.History.Head() != st.Model {
		t.Error("history head is not the final model")
	}
	if st.Evaluation == nil || st.Evaluation.Accuracy < 0.9 {
		t.Fatalf("test evaluation too weak: %+v", st.Evaluation)
	}
	if len(st.Lighting) != 2 {
		t.Errorf("expected 2 lighting results, got %d", len(st.Lighting))
	}
	if len(st.Rotation) != 2 || st.Rotation[1].Angle != 15 {
		t.Errorf("unexpected rotation results: %+v", st.Rotation)
	}
	t.Logf("accuracy %.3f, active state %s after %d iterations",
		st.Evaluation.Accuracy, st.Active.State, len(st.Active.Iterations))

	if st.ArtifactPath != cfg.Data.Artifact {
		t.Fatalf("artifact not recorded: %q", st.ArtifactPath)
	}
	loaded, err := ensemble.LoadFile(st.ArtifactPath, cfg.Ensemble.Network)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.ID != st.Model.ID {
		t.Errorf("saved model %s, state model %s", loaded.ID, st.Model.ID)
	}
}

func TestTrainStepsWithCSV(t *testing.T) {
	ctx := context.Background()
	logger := logging.NewTestLogger(t)

	gen, err := synth.NewGenerator(nil, logger)
	if err != nil {
		t.Fatal(err)
	}
	var examples []ensemble.Example
	for _, label := range []string{synth.LabelOld, synth.LabelRipe, synth.LabelUnripe} {
		exs, err := gen.Generate(ctx, label, 40)
		if err != nil {
			t.Fatal(err)
		}
		examples = append(examples, exs...)
	}
	path := filepath.Join(t.TempDir(), "features.csv")
	if err := dataset.Save(path, examples); err != nil {
		t.Fatal(err)
	}

	cfg := testConfig(t)
	cfg.Labels = nil
	cfg.Data.Train = path
	cfg.Data.RealRatio = 0.5
	cfg.Data.Artifact = ""

	p, err := NewPipeline(&cfg, logger)
	if err != nil {
		t.Fatal(err)
	}
	if err := RunSteps(ctx, p, TrainSteps); err != nil {
		t.Fatal(err)
	}

	st := p.State()
	if got := p.Orchestrator().Labels(); len(got) != 3 || got[0] != synth.LabelOld {
		t.Errorf("labels not derived from data: %v", got)
	}
	if st.SyntheticOnly {
		t.Error("CSV data reported as synthetic")
	}
	if st.SyntheticExamples != st.RealExamples {
		t.Errorf("real ratio 0.5: %d real, %d synthetic", st.RealExamples, st.SyntheticExamples)
	}
	if st.Active != nil || st.Model != st.Seed {
		t.Error("train steps should not run active learning")
	}
	if st.ArtifactPath != "" {
		t.Errorf("artifact saved despite empty path: %q", st.ArtifactPath)
	}
	if st.Evaluation == nil {
		t.Fatal("no evaluation")
	}
	t.Logf("3-class accuracy %.3f", st.Evaluation.Accuracy)
}

func TestRunWithUnprofiledLabel(t *testing.T) {
	ctx := context.Background()
	logger := logging.NewTestLogger(t)

	gen, err := synth.NewGenerator(nil, logger)
	if err != nil {
		t.Fatal(err)
	}
	var examples []ensemble.Example
	for label, as := range map[string]string{synth.LabelRipe: synth.LabelRipe, synth.LabelUnripe: synth.LabelUnripe, synth.LabelDried: "bruised"} {
		exs, err := gen.Generate(ctx, label, 40)
		if err != nil {
			t.Fatal(err)
		}
		for _, ex := range exs {
			examples = append(examples, ensemble.Example{Features: ex.Features, Label: as})
		}
	}
	path := filepath.Join(t.TempDir(), "features.csv")
	if err := dataset.Save(path, examples); err != nil {
		t.Fatal(err)
	}

	cfg := testConfig(t)
	cfg.Labels = nil
	cfg.Data.Train = path
	cfg.Data.RealRatio = 0.5
	cfg.Data.Artifact = ""
	cfg.Synth.Fit = false
	cfg.Data.SyntheticPerClass = 20

	p, err := NewPipeline(&cfg, logger)
	if err != nil {
		t.Fatal(err)
	}
	if err := Run(ctx, p); err != nil {
		t.Fatalf("a label without a synthetic profile aborted the run: %v", err)
	}

	st := p.State()
	if _, err := p.Orchestrator().Labels().Index("bruised"); err != nil {
		t.Errorf("bruised missing from labels %v", p.Orchestrator().Labels())
	}
	if st.SyntheticExamples == 0 || st.SyntheticExamples >= st.RealExamples {
		t.Errorf("expected synthetic examples for the two profiled labels only: %d real, %d synthetic",
			st.RealExamples, st.SyntheticExamples)
	}
	for _, it := range st.Active.Iterations {
		for _, label := range it.Unsupported {
			if label != "bruised" {
				t.Errorf("iteration %d could not generate %q", it.Number, label)
			}
		}
	}
}

func TestStepsNeedEarlierSteps(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	p, err := NewPipeline(&cfg, logging.NewTestLogger(t))
	if err != nil {
		t.Fatal(err)
	}
	if err := MixSynthetic(ctx, p); !errors.Is(err, ErrNoData) {
		t.Errorf("MixSynthetic: expected ErrNoData, got %v", err)
	}
	if err := TrainSeed(ctx, p); !errors.Is(err, ErrNoData) {
		t.Errorf("TrainSeed: expected ErrNoData, got %v", err)
	}
	if err := ActiveLearning(ctx, p); !errors.Is(err, ErrNoModel) {
		t.Errorf("ActiveLearning: expected ErrNoModel, got %v", err)
	}
	if err := Evaluate(ctx, p); !errors.Is(err, ErrNoModel) {
		t.Errorf("Evaluate: expected ErrNoModel, got %v", err)
	}
	if err := SaveModel(ctx, p); !errors.Is(err, ErrNoModel) {
		t.Errorf("SaveModel: expected ErrNoModel, got %v", err)
	}
}

func TestRunStepsWrapsStepErrors(t *testing.T) {
	cfg := testConfig(t)
	cfg.Data.Train = filepath.Join(t.TempDir(), "missing.csv")
	p, err := NewPipeline(&cfg, logging.NewTestLogger(t))
	if err != nil {
		t.Fatal(err)
	}
	err = Run(context.Background(), p)
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected a wrapped os.ErrNotExist, got %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := Run(ctx, p); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	cases := map[string]func(*Config){
		"test fraction":   func(c *Config) { c.Data.TestFraction = 1 },
		"real ratio":      func(c *Config) { c.Data.RealRatio = 0 },
		"anfis weight":    func(c *Config) { c.AnfisWeight = 2 },
		"lighting factor": func(c *Config) { c.LightingFactors = []float64{0} },
		"rotation angle":  func(c *Config) { c.RotationAngles = []float64{120} },
		"no data":         func(c *Config) { c.Data.SyntheticPerClass = 1 },
		"no test set":     func(c *Config) { c.Data.TestFraction = 0 },
		"network":         func(c *Config) { c.Ensemble.Network.NumRules = 0 },
	}
	for name, mutate := range cases {
		cfg := DefaultConfig()
		mutate(&cfg)
		if err := cfg.Validate(); !errors.Is(err, anfis.ErrInvalidConfig) {
			t.Errorf("%s: expected ErrInvalidConfig, got %v", name, err)
		}
	}
	if _, err := NewPipeline(nil, logging.NewTestLogger(t)); err != nil {
		t.Errorf("default config rejected: %v", err)
	}
}
