package synth

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"sync"

	"go.viam.com/rdk/logging"

	"github.com/biotinker/peppergrade/anfis"
	"github.com/biotinker/peppergrade/ensemble"
)

// Config holds the synthetic generator parameters.
type Config struct {
	Seed     int64     `mapstructure:"seed"`
	Pull     float64   `mapstructure:"pull"`     // How far GenerateNear moves from an anchor toward a fresh sample, in [0, 1]
	Fit      bool      `mapstructure:"fit"`      // Refit profile statistics from the real training data
	Profiles []Profile `mapstructure:"profiles"` // Empty means DefaultProfiles
}

// DefaultConfig returns a Config using the default grade profiles.
func DefaultConfig() Config {
	return Config{
		Seed: 7,
		Pull: 0.5,
		Fit:  true,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.Pull < 0 || c.Pull > 1 {
		return fmt.Errorf("%w: pull must be in [0, 1], got %g", anfis.ErrInvalidConfig, c.Pull)
	}
	for _, p := range c.Profiles {
		if err := p.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Generator draws labeled feature vectors from per-class profiles.
// It is safe for concurrent use.
type Generator struct {
	pull     float64
	profiles map[string]Profile
	logger   logging.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

// NewGenerator creates a Generator. A nil cfg uses DefaultConfig; empty
// cfg.Profiles uses DefaultProfiles.
func NewGenerator(cfg *Config, logger logging.Logger) (*Generator, error) {
	if cfg == nil {
		c := DefaultConfig()
		cfg = &c
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	profiles := cfg.Profiles
	if len(profiles) == 0 {
		profiles = DefaultProfiles()
	}
	g := &Generator{
		pull:     cfg.Pull,
		profiles: make(map[string]Profile, len(profiles)),
		logger:   logger,
		//nolint:gosec
		rng: rand.New(rand.NewSource(cfg.Seed)),
	}
	for _, p := range profiles {
		if _, dup := g.profiles[p.Label]; dup {
			return nil, fmt.Errorf("%w: duplicate label %q", ErrInvalidProfile, p.Label)
		}
		g.profiles[p.Label] = p
	}
	return g, nil
}

// Labels returns the labels the generator has profiles for, sorted.
func (g *Generator) Labels() []string {
	out := make([]string, 0, len(g.profiles))
	for l := range g.profiles {
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}

// Profile returns the profile of label.
func (g *Generator) Profile(label string) (Profile, bool) {
	p, ok := g.profiles[label]
	return p, ok
}

// Profiles returns the generator's profiles sorted by label.
func (g *Generator) Profiles() []Profile {
	labels := g.Labels()
	out := make([]Profile, len(labels))
	for i, l := range labels {
		out[i] = g.profiles[l]
	}
	return out
}

// Generate returns n samples resembling label.
func (g *Generator) Generate(ctx context.Context, label string, n int) ([]ensemble.Example, error) {
	return g.generate(ctx, label, nil, n)
}

// GenerateNear returns n samples of label, each drawn between an anchor and a
// fresh profile sample. Anchors are used round robin.
func (g *Generator) GenerateNear(ctx context.Context, label string, anchors []anfis.FeatureVector, n int) ([]ensemble.Example, error) {
	return g.generate(ctx, label, anchors, n)
}

// Dataset returns perClass samples of every profiled label.
func (g *Generator) Dataset(ctx context.Context, perClass int) ([]ensemble.Example, error) {
	var out []ensemble.Example
	for _, label := range g.Labels() {
		exs, err := g.Generate(ctx, label, perClass)
		if err != nil {
			return nil, err
		}
		out = append(out, exs...)
	}
	return out, nil
}

func (g *Generator) generate(ctx context.Context, label string, anchors []anfis.FeatureVector, n int) ([]ensemble.Example, error) {
	p, ok := g.profiles[label]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProfile, label)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	out := make([]ensemble.Example, 0, max(n, 0))
	for i := 0; i < n; i++ {
		x := p.Sample(g.rng)
		if len(anchors) > 0 {
			a := anchors[i%len(anchors)]
			if len(a) == len(x) {
				for j := range x {
					x[j] = a[j] + g.pull*(x[j]-a[j])
				}
			}
		}
		out = append(out, ensemble.Example{Features: x, Label: label})
	}
	g.logger.Debugf("generated %d %q samples (%d anchors)", len(out), label, len(anchors))
	return out, nil
}
