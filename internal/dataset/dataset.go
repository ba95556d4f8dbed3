// Package dataset reads and writes labeled feature tables and mixes real
// examples with synthetic ones.
package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"os"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zstd"

	"github.com/biotinker/peppergrade/anfis"
	"github.com/biotinker/peppergrade/ensemble"
)

// LabelColumn is the header of the class label column.
const LabelColumn = "label"

var (
	// ErrMissingColumn is returned when the header lacks a feature or label column.
	ErrMissingColumn = errors.New("missing column")

	// ErrMalformedRow is returned for a row with an unparsable value or wrong field count.
	ErrMalformedRow = errors.New("malformed row")
)

// Read parses a CSV table with a header naming the label column and every
// feature column. Column order is free and other columns are ignored.
func Read(r io.Reader) ([]ensemble.Example, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	pos := make(map[string]int, len(header))
	for i, h := range header {
		pos[strings.ToLower(strings.TrimSpace(h))] = i
	}
	labelCol, ok := pos[LabelColumn]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrMissingColumn, LabelColumn)
	}
	cols := make([]int, len(anfis.FeatureNames))
	for j, name := range anfis.FeatureNames {
		if cols[j], ok = pos[name]; !ok {
			return nil, fmt.Errorf("%w: %q", ErrMissingColumn, name)
		}
	}

	var out []ensemble.Example
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %w", ErrMalformedRow, line, err)
		}
		label := strings.TrimSpace(rec[labelCol])
		if label == "" {
			return nil, fmt.Errorf("%w: line %d: empty label", ErrMalformedRow, line)
		}
		x := make(anfis.FeatureVector, len(cols))
		for j, c := range cols {
			if x[j], err = strconv.ParseFloat(strings.TrimSpace(rec[c]), 64); err != nil {
				return nil, fmt.Errorf("%w: line %d column %q: %w", ErrMalformedRow, line, anfis.FeatureNames[j], err)
			}
		}
		out = append(out, ensemble.Example{Features: x, Label: label})
	}
	return out, nil
}

// Write emits examples as CSV with the feature columns followed by the label.
func Write(w io.Writer, examples []ensemble.Example) error {
	cw := csv.NewWriter(w)
	header := append(append([]string(nil), anfis.FeatureNames...), LabelColumn)
	if err := cw.Write(header); err != nil {
		return err
	}
	rec := make([]string, len(header))
	for i, ex := range examples {
		if len(ex.Features) != len(anfis.FeatureNames) {
			return fmt.Errorf("example %d: %w: length %d", i, anfis.ErrInvalidFeatureVector, len(ex.Features))
		}
		for j, v := range ex.Features {
			rec[j] = strconv.FormatFloat(v, 'g', -1, 64)
		}
		rec[len(rec)-1] = ex.Label
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Load reads a CSV file. Paths ending in .zst are zstd compressed.
func Load(path string) ([]ensemble.Example, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening dataset: %w", err)
	}
	defer f.Close()

	if !strings.HasSuffix(path, ".zst") {
		return Read(f)
	}
	zr, err := zstd.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("creating zstd reader: %w", err)
	}
	defer zr.Close()
	return Read(zr)
}

// Save writes examples to a CSV file, zstd compressed when path ends in .zst.
func Save(path string, examples []ensemble.Example) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating dataset: %w", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = cerr
		}
	}()

	if !strings.HasSuffix(path, ".zst") {
		return Write(f, examples)
	}
	zw, err := zstd.NewWriter(f)
	if err != nil {
		return fmt.Errorf("creating zstd writer: %w", err)
	}
	if err := Write(zw, examples); err != nil {
		//nolint:errcheck
		zw.Close()
		return err
	}
	return zw.Close()
}

// Mix combines real examples with synthetic ones so that real examples make up
// about realRatio of the result. All real examples are kept; synthetic ones
// are drawn without replacement, so fewer are used when not enough are
// available. The result is shuffled.
func Mix(realSet, synthetic []ensemble.Example, realRatio float64, rng *rand.Rand) ([]ensemble.Example, error) {
	if realRatio <= 0 || realRatio > 1 || math.IsNaN(realRatio) {
		return nil, fmt.Errorf("%w: real ratio must be in (0, 1], got %g", anfis.ErrInvalidConfig, realRatio)
	}
	want := len(synthetic)
	if len(realSet) > 0 {
		want = int(math.Round(float64(len(realSet)) * (1 - realRatio) / realRatio))
	}
	want = min(want, len(synthetic))

	out := make([]ensemble.Example, 0, len(realSet)+want)
	out = append(out, realSet...)
	for _, i := range rng.Perm(len(synthetic))[:want] {
		out = append(out, synthetic[i])
	}
	rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out, nil
}
