package ensemble

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"

	"github.com/biotinker/peppergrade/anfis"
)

// artifactFormat is the current artifact format version.
const artifactFormat = 1

// compressedExt marks artifact paths that are zstd compressed.
const compressedExt = ".zst"

type artifact struct {
	Format      int            `json:"format"`
	ID          uuid.UUID      `json:"id"`
	Parent      uuid.UUID      `json:"parent"`
	Version     int            `json:"version"`
	CreatedAt   time.Time      `json:"created_at"`
	Labels      []string       `json:"labels"`
	Combination Combination    `json:"combination"`
	Scaler      *Scaler        `json:"scaler"`
	Networks    []anfis.Params `json:"networks"`
}

// Save writes e as a JSON artifact.
func Save(w io.Writer, e *Ensemble) error {
	a := artifact{
		Format:      artifactFormat,
		ID:          e.ID,
		Parent:      e.Parent,
		Version:     e.Version,
		CreatedAt:   e.CreatedAt,
		Labels:      e.labels,
		Combination: e.combination,
		Scaler:      e.scaler,
		Networks:    make([]anfis.Params, len(e.networks)),
	}
	for k, net := range e.networks {
		a.Networks[k] = net.Params()
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(a); err != nil {
		return fmt.Errorf("encoding artifact: %w", err)
	}
	return nil
}

// Load reads an artifact written by Save and checks it against the configured
// network shape. Any disagreement returns ErrArtifactLoadMismatch.
func Load(r io.Reader, cfg anfis.Config) (*Ensemble, error) {
	var a artifact
	if err := json.NewDecoder(r).Decode(&a); err != nil {
		return nil, fmt.Errorf("decoding artifact: %w", err)
	}
	if a.Format != artifactFormat {
		return nil, fmt.Errorf("%w: format %d, want %d", ErrArtifactLoadMismatch, a.Format, artifactFormat)
	}
	labels, err := NewLabels(a.Labels)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrArtifactLoadMismatch, err)
	}
	if !sameLabels(labels, a.Labels) {
		return nil, fmt.Errorf("%w: labels not in canonical order", ErrArtifactLoadMismatch)
	}
	if len(a.Networks) != len(labels) {
		return nil, fmt.Errorf("%w: %d networks for %d labels", ErrArtifactLoadMismatch, len(a.Networks), len(labels))
	}
	if a.Combination != CombineClamp && a.Combination != CombineSoftmax {
		return nil, fmt.Errorf("%w: unknown combination %q", ErrArtifactLoadMismatch, a.Combination)
	}
	if !a.Scaler.valid(cfg.NumInputs) {
		return nil, fmt.Errorf("%w: scaler does not cover %d inputs", ErrArtifactLoadMismatch, cfg.NumInputs)
	}

	networks := make([]*anfis.Network, len(a.Networks))
	for k, p := range a.Networks {
		if p.NumInputs != cfg.NumInputs || p.NumRules != cfg.NumRules {
			return nil, fmt.Errorf("%w: class %q network is %d rules x %d inputs, configured %d x %d",
				ErrArtifactLoadMismatch, labels[k], p.NumRules, p.NumInputs, cfg.NumRules, cfg.NumInputs)
		}
		net, err := anfis.NewNetworkFromParams(p)
		if err != nil {
			return nil, fmt.Errorf("%w: class %q: %w", ErrArtifactLoadMismatch, labels[k], err)
		}
		networks[k] = net
	}

	return &Ensemble{
		ID:          a.ID,
		Parent:      a.Parent,
		Version:     a.Version,
		CreatedAt:   a.CreatedAt,
		labels:      labels,
		scaler:      a.Scaler,
		combination: a.Combination,
		networks:    networks,
	}, nil
}

// SaveFile writes e to path through a temporary file in the same directory,
// renamed into place once fully written. Paths ending in .zst are zstd compressed.
func SaveFile(path string, e *Ensemble) (err error) {
	dir, base := filepath.Split(path)
	if dir == "" {
		dir = "."
	}
	f, err := os.CreateTemp(dir, base+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp artifact: %w", err)
	}
	tmp := f.Name()
	defer func() {
		if err != nil {
			//nolint:errcheck
			f.Close()
			//nolint:errcheck
			os.Remove(tmp)
		}
	}()

	if strings.HasSuffix(path, compressedExt) {
		zw, zerr := zstd.NewWriter(f)
		if zerr != nil {
			return fmt.Errorf("creating zstd writer: %w", zerr)
		}
		if err = Save(zw, e); err != nil {
			//nolint:errcheck
			zw.Close()
			return err
		}
		if err = zw.Close(); err != nil {
			return fmt.Errorf("flushing zstd stream: %w", err)
		}
	} else if err = Save(f, e); err != nil {
		return err
	}

	if err = f.Sync(); err != nil {
		return fmt.Errorf("syncing artifact: %w", err)
	}
	if err = f.Close(); err != nil {
		return fmt.Errorf("closing artifact: %w", err)
	}
	if err = os.Rename(tmp, path); err != nil {
		return fmt.Errorf("renaming artifact: %w", err)
	}
	return nil
}

// LoadFile reads an artifact from path, decompressing .zst paths.
func LoadFile(path string, cfg anfis.Config) (*Ensemble, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening artifact: %w", err)
	}
	defer f.Close()

	if !strings.HasSuffix(path, compressedExt) {
		return Load(f, cfg)
	}
	zr, err := zstd.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("creating zstd reader: %w", err)
	}
	defer zr.Close()
	return Load(zr, cfg)
}
