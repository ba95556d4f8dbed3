package ensemble

import (
	"bytes"
	"context"
	"errors"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"go.viam.com/rdk/logging"
)

func trainedEnsemble(t *testing.T) (*Ensemble, Config, []Example) {
	t.Helper()
	//nolint:gosec
	rng := rand.New(rand.NewSource(21))
	labels := []string{"damaged", "ripe", "unripe"}
	examples := generateExamples(rng, labels, 25, 0.08)

	cfg := fastConfig()
	cfg.Network.Training.MaxEpochs = 15
	o, err := NewOrchestrator(labels, &cfg, logging.NewTestLogger(t))
	if err != nil {
		t.Fatalf("NewOrchestrator failed: %v", err)
	}
	e, _, err := o.Train(context.Background(), examples)
	if err != nil {
		t.Fatalf("Train failed: %v", err)
	}
	return e, cfg, examples
}

func TestSaveLoadFile_RoundTrip(t *testing.T) {
	e, cfg, examples := trainedEnsemble(t)
	dir := t.TempDir()

	for _, name := range []string{"model.json", "model.json.zst"} {
		path := filepath.Join(dir, name)
		if err := SaveFile(path, e); err != nil {
			t.Fatalf("%s: SaveFile failed: %v", name, err)
		}
		loaded, err := LoadFile(path, cfg.Network)
		if err != nil {
			t.Fatalf("%s: LoadFile failed: %v", name, err)
		}
		if loaded.ID != e.ID || loaded.Version != e.Version || !loaded.CreatedAt.Equal(e.CreatedAt) {
			t.Errorf("%s: metadata %s/%d, want %s/%d", name, loaded.ID, loaded.Version, e.ID, e.Version)
		}
		for _, ex := range examples {
			want, _ := e.Predict(ex.Features)
			got, err := loaded.Predict(ex.Features)
			if err != nil {
				t.Fatalf("%s: Predict failed: %v", name, err)
			}
			if got.Label != want.Label {
				t.Fatalf("%s: label %q, want %q", name, got.Label, want.Label)
			}
			for k := range want.Raw {
				if got.Raw[k] != want.Raw[k] || got.Probabilities[k] != want.Probabilities[k] {
					t.Fatalf("%s: class %d output %g/%g, want %g/%g", name, k,
						got.Raw[k], got.Probabilities[k], want.Raw[k], want.Probabilities[k])
				}
			}
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("expected only the two artifacts in %s, found %d entries", dir, len(entries))
	}
}

func TestLoad_ShapeMismatch(t *testing.T) {
	e, cfg, _ := trainedEnsemble(t)
	var buf bytes.Buffer
	if err := Save(&buf, e); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	data := buf.Bytes()

	rules := cfg.Network
	rules.NumRules++
	if _, err := Load(bytes.NewReader(data), rules); !errors.Is(err, ErrArtifactLoadMismatch) {
		t.Errorf("rule count mismatch: expected ErrArtifactLoadMismatch, got %v", err)
	}

	inputs := cfg.Network
	inputs.NumInputs = 10
	if _, err := Load(bytes.NewReader(data), inputs); !errors.Is(err, ErrArtifactLoadMismatch) {
		t.Errorf("input count mismatch: expected ErrArtifactLoadMismatch, got %v", err)
	}

	if _, err := Load(bytes.NewReader(data), cfg.Network); err != nil {
		t.Errorf("matching shape should load, got %v", err)
	}
}

func TestLoadFile_Missing(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "absent.json"), DefaultConfig().Network); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected os.ErrNotExist, got %v", err)
	}
}
