package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/gonuts/commander"
	"github.com/gonuts/flag"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/biotinker/peppergrade"
	"github.com/biotinker/peppergrade/anfis"
	"github.com/biotinker/peppergrade/ensemble"
	"github.com/biotinker/peppergrade/internal/config"
	"github.com/biotinker/peppergrade/internal/dataset"
	"github.com/biotinker/peppergrade/synth"

	"go.viam.com/rdk/logging"
)

var (
	configPath string
	dataPath   string
	modelPath  string
	outPath    string
	features   string
	perClass   int
	verbose    bool
)

func main() {
	root := &commander.Command{
		UsageLine: "peppergrade-cli <command> [options]",
		Short:     "train, evaluate and run bell pepper grading models",
		Subcommands: []*commander.Command{
			pipelineCmd("train", "train a seed ensemble without active learning", peppergrade.TrainSteps),
			pipelineCmd("active", "train a seed ensemble and improve it by active learning", peppergrade.FullSteps),
			evaluateCmd(),
			predictCmd(),
			synthCmd(),
		},
		Flag: *flag.NewFlagSet("peppergrade-cli", flag.ExitOnError),
	}
	if err := root.Dispatch(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "**err**: %v\n", err)
		os.Exit(1)
	}
}

func pipelineCmd(name, short string, steps []peppergrade.Step) *commander.Command {
	cmd := &commander.Command{
		Run: func(cmd *commander.Command, args []string) error {
			return runPipeline(steps)
		},
		UsageLine: name + " [-config file.yaml] [-data features.csv] [-out model.json.zst]",
		Short:     short,
		Long: `
` + short + `.

	$ peppergrade-cli ` + name + ` -config peppergrade.yaml -data features.csv -out model.json.zst

Without -data and data.train a synthetic training set is generated.
`,
		Flag: *flag.NewFlagSet(name, flag.ExitOnError),
	}
	commonFlags(cmd)
	cmd.Flag.StringVar(&dataPath, "data", "", "training CSV; overrides data.train")
	cmd.Flag.StringVar(&outPath, "out", "", "model artifact path; overrides data.artifact")
	return cmd
}

func evaluateCmd() *commander.Command {
	cmd := &commander.Command{
		Run:       runEvaluate,
		UsageLine: "evaluate -model model.json.zst -data features.csv",
		Short:     "evaluate a saved model on a labeled CSV",
		Flag:      *flag.NewFlagSet("evaluate", flag.ExitOnError),
	}
	commonFlags(cmd)
	cmd.Flag.StringVar(&modelPath, "model", "", "model artifact")
	cmd.Flag.StringVar(&dataPath, "data", "", "labeled feature CSV")
	return cmd
}

func predictCmd() *commander.Command {
	cmd := &commander.Command{
		Run:       runPredict,
		UsageLine: "predict -model model.json.zst (-features v1,...,v11 | -data features.csv)",
		Short:     "grade feature vectors with a saved model",
		Flag:      *flag.NewFlagSet("predict", flag.ExitOnError),
	}
	commonFlags(cmd)
	cmd.Flag.StringVar(&modelPath, "model", "", "model artifact")
	cmd.Flag.StringVar(&features, "features", "", "comma separated feature vector")
	cmd.Flag.StringVar(&dataPath, "data", "", "CSV of feature vectors; the label column is ignored")
	return cmd
}

func synthCmd() *commander.Command {
	cmd := &commander.Command{
		Run:       runSynth,
		UsageLine: "synth -out synthetic.csv [-n 200]",
		Short:     "write a synthetic labeled feature dataset",
		Flag:      *flag.NewFlagSet("synth", flag.ExitOnError),
	}
	commonFlags(cmd)
	cmd.Flag.StringVar(&outPath, "out", "", "output CSV (.zst to compress)")
	cmd.Flag.IntVar(&perClass, "n", 200, "samples per class")
	return cmd
}

func commonFlags(cmd *commander.Command) {
	cmd.Flag.StringVar(&configPath, "config", "", "YAML configuration file")
	cmd.Flag.BoolVar(&verbose, "v", false, "debug logging")
}

func requireFlags(cmd *commander.Command, names ...string) error {
	for _, name := range names {
		f := cmd.Flag.Lookup(name)
		if f == nil || f.Value.String() == "" {
			return fmt.Errorf("-%s flag is required", name)
		}
	}
	return nil
}

func newLogger() logging.Logger {
	if verbose {
		return logging.NewDebugLogger("peppergrade-cli")
	}
	return logging.NewLogger("peppergrade-cli")
}

func loadConfig() (*peppergrade.Config, error) {
	if configPath == "" {
		cfg := peppergrade.DefaultConfig()
		return &cfg, nil
	}
	return config.Load(configPath)
}

func runPipeline(steps []peppergrade.Step) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if dataPath != "" {
		cfg.Data.Train = dataPath
	}
	if outPath != "" {
		cfg.Data.Artifact = outPath
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	p, err := peppergrade.NewPipeline(cfg, newLogger())
	if err != nil {
		return err
	}
	if err := peppergrade.RunSteps(ctx, p, steps); err != nil {
		return err
	}
	return printReport(p.Report())
}

func runEvaluate(cmd *commander.Command, args []string) error {
	if err := requireFlags(cmd, "model", "data"); err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	model, err := ensemble.LoadFile(modelPath, cfg.Ensemble.Network)
	if err != nil {
		return err
	}
	examples, err := dataset.Load(dataPath)
	if err != nil {
		return err
	}
	ev, err := ensemble.Evaluate(model, examples)
	if err != nil {
		return err
	}
	newLogger().Infof("accuracy %.3f, macro F1 %.3f on %d examples", ev.Accuracy, ev.MacroF1, ev.Total)
	return printReport(peppergrade.EvaluationReport(model, ev))
}

func runPredict(cmd *commander.Command, args []string) error {
	if err := requireFlags(cmd, "model"); err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	model, err := ensemble.LoadFile(modelPath, cfg.Ensemble.Network)
	if err != nil {
		return err
	}
	grader, err := peppergrade.NewGrader(model, nil, nil, cfg.AnfisWeight, newLogger())
	if err != nil {
		return err
	}

	var vectors []anfis.FeatureVector
	switch {
	case features != "":
		x, err := parseVector(features)
		if err != nil {
			return err
		}
		vectors = append(vectors, x)
	case dataPath != "":
		examples, err := dataset.Load(dataPath)
		if err != nil {
			return err
		}
		for _, ex := range examples {
			vectors = append(vectors, ex.Features)
		}
	default:
		return fmt.Errorf("one of -features or -data is required")
	}

	for _, x := range vectors {
		g, err := grader.GradeFeatures(x)
		if err != nil {
			return err
		}
		if err := printReport(peppergrade.GradeReport(g)); err != nil {
			return err
		}
	}
	return nil
}

func runSynth(cmd *commander.Command, args []string) error {
	if err := requireFlags(cmd, "out"); err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger()
	gen, err := synth.NewGenerator(&cfg.Synth, logger)
	if err != nil {
		return err
	}
	examples, err := gen.Dataset(context.Background(), perClass)
	if err != nil {
		return err
	}
	if err := dataset.Save(outPath, examples); err != nil {
		return err
	}
	logger.Infof("wrote %d synthetic examples for %v to %s", len(examples), gen.Labels(), outPath)
	return nil
}

func parseVector(s string) (anfis.FeatureVector, error) {
	parts := strings.Split(s, ",")
	x := make(anfis.FeatureVector, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("%w: element %d: %w", anfis.ErrInvalidFeatureVector, i, err)
		}
		x[i] = v
	}
	return x, nil
}

func printReport(s *structpb.Struct, err error) error {
	if err != nil {
		return err
	}
	b, err := peppergrade.MarshalReport(s)
	if err != nil {
		return err
	}
	fmt.Println(string(b))
	return nil
}
