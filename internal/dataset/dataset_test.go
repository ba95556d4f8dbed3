package dataset

import (
	"errors"
	"math/rand"
	"path/filepath"
	"strings"
	"testing"

	"github.com/biotinker/peppergrade/anfis"
	"github.com/biotinker/peppergrade/ensemble"
)

func sampleExamples(rng *rand.Rand, n int, label string) []ensemble.Example {
	out := make([]ensemble.Example, n)
	for i := range out {
		x := make(anfis.FeatureVector, anfis.NumFeatures)
		for j := range x {
			x[j] = rng.Float64() * 100
		}
		out[i] = ensemble.Example{Features: x, Label: label}
	}
	return out
}

func TestReadReorderedColumns(t *testing.T) {
	// Label first, an extra filename column, and features in reverse order.
	cols := []string{"label", "filename"}
	for j := len(anfis.FeatureNames) - 1; j >= 0; j-- {
		cols = append(cols, anfis.FeatureNames[j])
	}
	row := []string{"ripe", "img_001.jpg"}
	for j := len(anfis.FeatureNames) - 1; j >= 0; j-- {
		row = append(row, strings.Repeat("1", j+1))
	}
	in := strings.Join(cols, ",") + "\n" + strings.Join(row, ", ") + "\n"

	got, err := Read(strings.NewReader(in))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Label != "ripe" {
		t.Fatalf("unexpected examples: %+v", got)
	}
	if got[0].Features[0] != 1 || got[0].Features[2] != 111 || got[0].Features[10] != 11111111111 {
		t.Errorf("features not mapped by column name: %v", got[0].Features)
	}
}

func TestReadErrors(t *testing.T) {
	header := strings.Join(anfis.FeatureNames, ",")

	if _, err := Read(strings.NewReader(header + "\n")); !errors.Is(err, ErrMissingColumn) {
		t.Errorf("missing label: expected ErrMissingColumn, got %v", err)
	}

	short := strings.Join(anfis.FeatureNames[1:], ",") + ",label\n"
	if _, err := Read(strings.NewReader(short)); !errors.Is(err, ErrMissingColumn) {
		t.Errorf("missing feature: expected ErrMissingColumn, got %v", err)
	}

	bad := header + ",label\n" + strings.Repeat("1,", 10) + "abc,ripe\n"
	if _, err := Read(strings.NewReader(bad)); !errors.Is(err, ErrMalformedRow) {
		t.Errorf("unparsable value: expected ErrMalformedRow, got %v", err)
	}

	ragged := header + ",label\n1,2,ripe\n"
	if _, err := Read(strings.NewReader(ragged)); !errors.Is(err, ErrMalformedRow) {
		t.Errorf("ragged row: expected ErrMalformedRow, got %v", err)
	}

	noLabel := header + ",label\n" + strings.Repeat("1,", 11) + "\n"
	if _, err := Read(strings.NewReader(noLabel)); !errors.Is(err, ErrMalformedRow) {
		t.Errorf("empty label: expected ErrMalformedRow, got %v", err)
	}
}

func TestSaveLoad(t *testing.T) {
	//nolint:gosec
	rng := rand.New(rand.NewSource(1))
	examples := append(sampleExamples(rng, 5, "ripe"), sampleExamples(rng, 3, "old")...)

	for _, name := range []string{"features.csv", "features.csv.zst"} {
		path := filepath.Join(t.TempDir(), name)
		if err := Save(path, examples); err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		got, err := Load(path)
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if len(got) != len(examples) {
			t.Fatalf("%s: expected %d examples, got %d", name, len(examples), len(got))
		}
		for i := range got {
			if got[i].Label != examples[i].Label {
				t.Errorf("%s row %d: label %q, want %q", name, i, got[i].Label, examples[i].Label)
			}
			for j := range got[i].Features {
				if got[i].Features[j] != examples[i].Features[j] {
					t.Errorf("%s row %d: feature %d = %v, want %v", name, i, j, got[i].Features[j], examples[i].Features[j])
				}
			}
		}
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.csv")); err == nil {
		t.Error("expected an error for a missing file")
	}
}

func TestWriteRejectsShortVector(t *testing.T) {
	var sb strings.Builder
	err := Write(&sb, []ensemble.Example{{Features: anfis.FeatureVector{1, 2}, Label: "ripe"}})
	if !errors.Is(err, anfis.ErrInvalidFeatureVector) {
		t.Errorf("expected ErrInvalidFeatureVector, got %v", err)
	}
}

func TestMix(t *testing.T) {
	//nolint:gosec
	rng := rand.New(rand.NewSource(2))
	realSet := sampleExamples(rng, 20, "real")
	synthetic := sampleExamples(rng, 200, "synthetic")

	mixed, err := Mix(realSet, synthetic, 0.2, rng)
	if err != nil {
		t.Fatal(err)
	}
	counts := ensemble.Counts(mixed)
	if counts["real"] != 20 || counts["synthetic"] != 80 {
		t.Errorf("expected 20 real and 80 synthetic, got %v", counts)
	}

	// Not enough synthetic data: everything available is used once.
	mixed, err = Mix(realSet, synthetic[:10], 0.2, rng)
	if err != nil {
		t.Fatal(err)
	}
	if counts := ensemble.Counts(mixed); counts["synthetic"] != 10 {
		t.Errorf("expected all 10 synthetic examples, got %v", counts)
	}

	mixed, err = Mix(realSet, synthetic, 1, rng)
	if err != nil {
		t.Fatal(err)
	}
	if len(mixed) != 20 {
		t.Errorf("ratio 1 should keep only real examples, got %d", len(mixed))
	}

	if _, err := Mix(realSet, synthetic, 0, rng); !errors.Is(err, anfis.ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
}
