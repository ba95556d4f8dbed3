package peppergrade

import (
	"fmt"
	"time"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/biotinker/peppergrade/active"
	"github.com/biotinker/peppergrade/ensemble"
)

// MarshalReport renders a report as indented JSON.
func MarshalReport(s *structpb.Struct) ([]byte, error) {
	b, err := protojson.MarshalOptions{Multiline: true, Indent: "  "}.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshal report: %w", err)
	}
	return b, nil
}

// Report summarizes the pipeline state of the last run.
func (p *Pipeline) Report() (*structpb.Struct, error) {
	st := p.state
	out := map[string]any{
		"train_examples":      len(st.Train),
		"real_examples":       st.RealExamples,
		"synthetic_examples":  st.SyntheticExamples,
		"validation_examples": len(st.Validation),
		"test_examples":       len(st.Test),
	}
	if st.Model != nil {
		out["model"] = modelFields(st.Model)
	}
	if st.SeedReport != nil {
		var classes []any
		for _, c := range st.SeedReport.Classes {
			classes = append(classes, map[string]any{
				"label":        c.Label,
				"positives":    c.Positives,
				"negatives":    c.Negatives,
				"state":        c.Result.State.String(),
				"epochs":       c.Result.Epochs,
				"best_epoch":   c.Result.BestEpoch,
				"best_val_mse": c.Result.BestValMSE,
			})
		}
		out["seed_training"] = map[string]any{"classes": classes, "skipped": st.SeedReport.Skipped}
	}
	if st.Active != nil {
		out["active_learning"] = activeFields(st.Active)
	}
	if st.Evaluation != nil {
		out["evaluation"] = evaluationFields(st.Evaluation)
	}
	if len(st.Lighting) > 0 {
		var lighting []any
		for _, l := range st.Lighting {
			lighting = append(lighting, map[string]any{"factor": l.Factor, "accuracy": l.Accuracy, "macro_f1": l.MacroF1})
		}
		out["lighting"] = lighting
	}
	if len(st.Rotation) > 0 {
		var rotation []any
		for _, r := range st.Rotation {
			rotation = append(rotation, map[string]any{
				"angle": r.Angle, "factor": r.Factor, "accuracy": r.Accuracy, "macro_f1": r.MacroF1,
			})
		}
		out["rotation"] = rotation
	}
	if st.ArtifactPath != "" {
		out["artifact"] = st.ArtifactPath
	}
	return structpb.NewStruct(out)
}

// EvaluationReport describes an evaluation of model.
func EvaluationReport(model *ensemble.Ensemble, ev *ensemble.Evaluation) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"model":      modelFields(model),
		"evaluation": evaluationFields(ev),
	})
}

// GradeReport describes one graded image or feature vector.
func GradeReport(g *Grade) (*structpb.Struct, error) {
	out := map[string]any{
		"label":         g.Final.Label,
		"confidence":    g.Final.Confidence,
		"probabilities": numberMap(g.Final.ProbabilityMap()),
		"anfis_raw":     numberMap(g.ANFIS.RawMap()),
		"fused":         g.Fused(),
	}
	if g.Image != "" {
		out["image"] = g.Image
	}
	if g.Fused() {
		out["anfis_probabilities"] = numberMap(g.ANFIS.ProbabilityMap())
		out["transfer_probabilities"] = numberMap(g.Transfer)
	}
	return structpb.NewStruct(out)
}

func modelFields(e *ensemble.Ensemble) map[string]any {
	return map[string]any{
		"id":          e.ID.String(),
		"parent":      e.Parent.String(),
		"version":     e.Version,
		"created_at":  e.CreatedAt.Format(time.RFC3339),
		"labels":      stringList(e.Labels()),
		"rules":       e.NumRules(),
		"inputs":      e.NumInputs(),
		"combination": string(e.Combination()),
	}
}

func evaluationFields(ev *ensemble.Evaluation) map[string]any {
	classes := make([]any, len(ev.Classes))
	for i, c := range ev.Classes {
		classes[i] = map[string]any{
			"label":     c.Label,
			"support":   c.Support,
			"precision": c.Precision,
			"recall":    c.Recall,
			"f1":        c.F1,
			"fpr":       c.FPR,
		}
	}
	confusion := make([]any, len(ev.Confusion))
	for i, row := range ev.Confusion {
		r := make([]any, len(row))
		for j, n := range row {
			r[j] = n
		}
		confusion[i] = r
	}
	return map[string]any{
		"labels":    stringList(ev.Labels),
		"total":     ev.Total,
		"skipped":   ev.Skipped,
		"correct":   ev.Correct,
		"accuracy":  ev.Accuracy,
		"macro_f1":  ev.MacroF1,
		"max_fpr":   ev.MaxFPR,
		"confusion": confusion,
		"classes":   classes,
	}
}

func activeFields(r *active.Report) map[string]any {
	iterations := make([]any, len(r.Iterations))
	for i, it := range r.Iterations {
		iterations[i] = map[string]any{
			"number":           it.Number,
			"queued":           it.Queued,
			"flagged_fraction": it.FlaggedFraction,
			"fallback":         it.Fallback,
			"targets":          stringList(it.Targets),
			"requested":        it.Requested,
			"generated":        it.Generated,
			"rejected":         it.Rejected,
			"rolled_back":      stringList(it.RolledBack),
			"accuracy":         it.Accuracy,
			"macro_f1":         it.MacroF1,
			"max_fpr":          it.MaxFPR,
			"snapshot":         it.Snapshot.String(),
		}
	}
	classes := make([]any, len(r.Classes))
	for i, c := range r.Classes {
		classes[i] = map[string]any{
			"label":          c.Label,
			"f1":             c.F1,
			"retrained":      c.Retrained,
			"rollbacks":      c.Rollbacks,
			"non_convergent": c.NonConvergent,
		}
	}
	return map[string]any{
		"state":         r.State.String(),
		"iterations":    iterations,
		"classes":       classes,
		"training_size": len(r.TrainingSet),
	}
}

func stringList(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

func numberMap(m map[string]float64) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
